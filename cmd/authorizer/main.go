// Command authorizer is the Lambda@Edge viewer-request handler.
package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/dropDatabas3/edgegate/internal/app"
	"github.com/dropDatabas3/edgegate/internal/observability/logger"
)

func main() {
	ctx := context.Background()

	cfg, err := app.Load("")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	defer logger.Sync()

	// Built once per container; the parameter cache lives as long as it.
	h, cleanup, err := app.BuildAuthorizer(ctx, cfg)
	if err != nil {
		logger.L().Fatal("authorizer wiring failed", logger.Err(err))
	}
	defer cleanup()

	lambda.Start(h.HandleEvent)
}
