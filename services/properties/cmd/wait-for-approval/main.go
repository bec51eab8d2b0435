package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/propertylane/propertylane/pkg/awsconf"
	"github.com/propertylane/propertylane/pkg/logging"
	"github.com/propertylane/propertylane/services/properties/internal/approval"
	"github.com/propertylane/propertylane/services/properties/internal/store"
)

func main() {
	ctx := context.Background()
	logging.Init("properties.wait-for-approval")

	cfg := awsconf.MustLoad(ctx)
	statuses := store.New(dynamodb.NewFromConfig(cfg), awsconf.MustEnv("CONTRACT_STATUS_TABLE"))
	registrar := approval.NewRegistrar(statuses)

	lambda.StartWithOptions(registrar.Register, lambda.WithContext(ctx))
}
