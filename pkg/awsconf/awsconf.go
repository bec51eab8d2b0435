package awsconf

import (
	"context"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
)

// MustLoad resolves the process-wide AWS configuration once, at startup.
// Clients built from it are constructed in main and injected into handlers.
func MustLoad(ctx context.Context) aws.Config {
	var opts []func(*config.LoadOptions) error
	if region := strings.TrimSpace(os.Getenv("AWS_REGION")); region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		panic(err)
	}
	return cfg
}

func MustEnv(name string) string {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		panic(name + " is required")
	}
	return v
}
