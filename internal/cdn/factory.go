package cdn

import (
	"context"
	"fmt"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
)

type Config struct {
	Driver string // aws | memory
	Region string
	// KeyGroupID is created empty by the memory driver so local runs have a
	// group to rotate into.
	KeyGroupID string
}

// Open builds the registry selected by cfg.Driver.
func Open(ctx context.Context, cfg Config) (Registry, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "aws", "":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
		if err != nil {
			return nil, fmt.Errorf("cdn: load aws config: %w", err)
		}
		return NewCloudFront(cloudfront.NewFromConfig(awsCfg)), nil
	case "memory":
		m := NewMemory()
		if cfg.KeyGroupID != "" {
			m.EnsureKeyGroup(cfg.KeyGroupID, "edgegate-local")
		}
		return m, nil
	default:
		return nil, fmt.Errorf("cdn: unsupported driver: %s", cfg.Driver)
	}
}
