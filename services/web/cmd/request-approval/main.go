package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"

	"github.com/propertylane/propertylane/pkg/awsconf"
	"github.com/propertylane/propertylane/pkg/events"
	"github.com/propertylane/propertylane/pkg/logging"
	"github.com/propertylane/propertylane/services/web/internal/approval"
	"github.com/propertylane/propertylane/services/web/internal/store"
)

func main() {
	ctx := context.Background()
	logging.Init("web.request-approval")

	cfg := awsconf.MustLoad(ctx)
	listings := store.New(dynamodb.NewFromConfig(cfg), awsconf.MustEnv("WEB_TABLE"))
	bus := events.NewPublisher(eventbridge.NewFromConfig(cfg), awsconf.MustEnv("EVENT_BUS_NAME"), events.SourceWeb)
	requester := approval.NewRequester(listings, bus)

	lambda.StartWithOptions(requester.HandleSQS, lambda.WithContext(ctx))
}
