package main

import (
	"context"
	"net/http"

	awsevents "github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	chiadapter "github.com/awslabs/aws-lambda-go-api-proxy/chi"
	"github.com/go-chi/chi/v5"

	"github.com/propertylane/propertylane/pkg/awsconf"
	"github.com/propertylane/propertylane/pkg/logging"
	"github.com/propertylane/propertylane/services/web/internal/search"
	"github.com/propertylane/propertylane/services/web/internal/store"
)

func main() {
	ctx := context.Background()
	logging.Init("web.search-api")

	cfg := awsconf.MustLoad(ctx)
	listings := store.New(dynamodb.NewFromConfig(cfg), awsconf.MustEnv("WEB_TABLE"))
	h := search.NewHandler(listings)

	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/search/{country}/{city}", h.SearchCity)
	r.Get("/search/{country}/{city}/{street}", h.SearchStreet)
	r.Get("/properties/{country}/{city}/{street}/{number}", h.GetProperty)

	adapter := chiadapter.New(r)
	lambda.StartWithOptions(func(ctx context.Context, req awsevents.APIGatewayProxyRequest) (awsevents.APIGatewayProxyResponse, error) {
		return adapter.ProxyWithContext(ctx, req)
	}, lambda.WithContext(ctx))
}
