package main

import (
	"context"
	"log/slog"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/propertylane/propertylane/pkg/logging"
	"github.com/propertylane/propertylane/services/properties/internal/integrity"
)

type request struct {
	PropertyID string `json:"property_id"`
	integrity.ModerationBundle
}

func handle(ctx context.Context, req request) (integrity.Evaluation, error) {
	ctx = logging.WithAttrs(ctx, slog.String("property_id", req.PropertyID))

	eval, err := integrity.Evaluate(req.ModerationBundle)
	if err != nil {
		logging.Error(ctx, "content integrity evaluation failed", logging.Err(err))
		return integrity.Evaluation{}, err
	}

	logging.Info(ctx, "content integrity evaluated",
		slog.String("validation_result", string(eval.Result)),
		slog.String("reason", eval.Reason),
	)
	return eval, nil
}

func main() {
	ctx := context.Background()
	logging.Init("properties.content-integrity-validator")

	lambda.StartWithOptions(handle, lambda.WithContext(ctx))
}
