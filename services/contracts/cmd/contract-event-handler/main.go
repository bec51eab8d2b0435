package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"

	"github.com/propertylane/propertylane/pkg/awsconf"
	"github.com/propertylane/propertylane/pkg/events"
	"github.com/propertylane/propertylane/pkg/logging"
	"github.com/propertylane/propertylane/services/contracts/internal/handler"
	"github.com/propertylane/propertylane/services/contracts/internal/store"
)

func main() {
	ctx := context.Background()
	logging.Init("contracts.contract-event-handler")

	cfg := awsconf.MustLoad(ctx)
	contracts := store.New(dynamodb.NewFromConfig(cfg), awsconf.MustEnv("CONTRACTS_TABLE"))
	bus := events.NewPublisher(eventbridge.NewFromConfig(cfg), awsconf.MustEnv("EVENT_BUS_NAME"), events.SourceContracts)
	h := handler.NewCommandHandler(contracts, bus)

	lambda.StartWithOptions(h.HandleSQS, lambda.WithContext(ctx))
}
