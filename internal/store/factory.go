package store

import (
	"context"
	"fmt"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

type Config struct {
	Driver string // aws | redis | memory
	Region string
	// SecretsRegion overrides Region for Secrets Manager.
	SecretsRegion string
	Redis  struct {
		Addr   string
		DB     int
		Prefix string
	}
}

// Stores bundles both collaborators of one backend.
type Stores struct {
	Params  Params
	Secrets Secrets
	Close   func() error
}

// Open builds the backend selected by cfg.Driver.
func Open(ctx context.Context, cfg Config) (*Stores, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "aws", "":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
		if err != nil {
			return nil, fmt.Errorf("store: load aws config: %w", err)
		}
		sm := secretsmanager.NewFromConfig(awsCfg, func(o *secretsmanager.Options) {
			if cfg.SecretsRegion != "" {
				o.Region = cfg.SecretsRegion
			}
		})
		a := NewAWS(ssm.NewFromConfig(awsCfg), sm)
		return &Stores{Params: a, Secrets: a, Close: func() error { return nil }}, nil
	case "redis":
		r, err := NewRedis(ctx, cfg.Redis.Addr, cfg.Redis.DB, cfg.Redis.Prefix)
		if err != nil {
			return nil, err
		}
		return &Stores{Params: r, Secrets: r, Close: r.Close}, nil
	case "memory":
		m := NewMemory()
		return &Stores{Params: m, Secrets: m, Close: func() error { return nil }}, nil
	default:
		return nil, fmt.Errorf("store: unsupported driver: %s", cfg.Driver)
	}
}
