// Command rotator is the scheduled Lambda that rotates the CloudFront
// signing key.
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

	rot, cleanup, err := app.BuildRotator(ctx, cfg)
	if err != nil {
		logger.L().Fatal("rotator wiring failed", logger.Err(err))
	}
	defer cleanup()

	// Errors are returned so the scheduler records the failed run and retries.
	lambda.Start(func(ctx context.Context) error {
		_, err := rot.Run(ctx)
		return err
	})
}
