package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/propertylane/propertylane/pkg/awsconf"
	"github.com/propertylane/propertylane/pkg/logging"
	"github.com/propertylane/propertylane/services/web/internal/projection"
	"github.com/propertylane/propertylane/services/web/internal/store"
)

func main() {
	ctx := context.Background()
	logging.Init("web.publication-eval-handler")

	cfg := awsconf.MustLoad(ctx)
	listings := store.New(dynamodb.NewFromConfig(cfg), awsconf.MustEnv("WEB_TABLE"))
	updater := projection.NewUpdater(listings)

	lambda.StartWithOptions(updater.HandleEvent, lambda.WithContext(ctx))
}
