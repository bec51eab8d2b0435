package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/propertylane/propertylane/pkg/awsconf"
	"github.com/propertylane/propertylane/pkg/logging"
	"github.com/propertylane/propertylane/services/properties/internal/ingest"
	"github.com/propertylane/propertylane/services/properties/internal/store"
)

func main() {
	ctx := context.Background()
	logging.Init("properties.contract-status-changed-handler")

	cfg := awsconf.MustLoad(ctx)
	statuses := store.New(dynamodb.NewFromConfig(cfg), awsconf.MustEnv("CONTRACT_STATUS_TABLE"))
	recorder := ingest.NewRecorder(statuses)

	lambda.StartWithOptions(recorder.HandleEvent, lambda.WithContext(ctx))
}
