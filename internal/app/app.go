// Package app wires configuration into the authorizer and rotator so the
// Lambda binaries and the CLI share one construction path.
package app

import (
	"context"
	"os"

	"github.com/joho/godotenv"

	"github.com/dropDatabas3/edgegate/internal/authorizer"
	"github.com/dropDatabas3/edgegate/internal/cdn"
	"github.com/dropDatabas3/edgegate/internal/config"
	"github.com/dropDatabas3/edgegate/internal/cookie"
	"github.com/dropDatabas3/edgegate/internal/jwks"
	"github.com/dropDatabas3/edgegate/internal/jwt"
	"github.com/dropDatabas3/edgegate/internal/metrics"
	"github.com/dropDatabas3/edgegate/internal/observability/logger"
	"github.com/dropDatabas3/edgegate/internal/rotation"
	"github.com/dropDatabas3/edgegate/internal/store"
)

// Version is set at build time with -ldflags.
var Version = "dev"

// ConfigPath resolves the config file: explicit flag, then EDGEGATE_CONFIG,
// then config.yaml or configs/config.yaml when present. "" means environment
// only. Lambda@Edge has no environment, so the authorizer ships config.yaml in
// its bundle.
func ConfigPath(flag string) string {
	if flag != "" {
		return flag
	}
	if v := os.Getenv("EDGEGATE_CONFIG"); v != "" {
		return v
	}
	for _, p := range []string{"config.yaml", "configs/config.yaml"} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Load reads .env (if any) and the config, then initialises logging and
// metrics.
func Load(path string) (*config.Config, error) {
	_ = godotenv.Load()

	cfg, err := config.Load(ConfigPath(path))
	if err != nil {
		return nil, err
	}
	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.Log.Level,
		ServiceName: cfg.App.Name,
		Version:     Version,
	})
	if err := metrics.Register(nil); err != nil {
		return nil, err
	}
	return cfg, nil
}

func storeConfig(cfg *config.Config) store.Config {
	sc := store.Config{Driver: cfg.Store.Driver, Region: cfg.Store.Region}
	sc.Redis.Addr = cfg.Store.Redis.Addr
	sc.Redis.DB = cfg.Store.Redis.DB
	sc.Redis.Prefix = cfg.Store.Redis.Prefix
	return sc
}

// rotatorStoreConfig keeps parameters in the store region and writes the
// private key in the rotation region.
func rotatorStoreConfig(cfg *config.Config) store.Config {
	sc := storeConfig(cfg)
	sc.SecretsRegion = cfg.Rotation.Region
	return sc
}

// BuildAuthorizer returns the request handler and a cleanup func.
func BuildAuthorizer(ctx context.Context, cfg *config.Config) (*authorizer.Handler, func() error, error) {
	if err := cfg.ValidateAuthorizer(); err != nil {
		return nil, nil, err
	}
	stores, err := store.Open(ctx, storeConfig(cfg))
	if err != nil {
		return nil, nil, err
	}

	fetcher := jwks.NewFetcher(
		jwks.WithHTTPClient(jwks.NewHTTPClient(cfg.HTTPTimeout())),
		jwks.WithStrictStatus(cfg.Identity.JWKSStrictStatus),
	)
	h := authorizer.New(
		config.NewParams(stores.Params, config.Names(cfg.Parameters.Prefix)),
		jwt.NewVerifier(fetcher, jwt.KeySelection(cfg.Identity.KeySelection)),
		cookie.NewSigner(),
		authorizer.Options{
			RemovePath:     cfg.Server.RemovePath,
			AllowedOrigins: cfg.Server.CORSAllowedOrigins,
		},
	)
	return h, stores.Close, nil
}

// BuildRotator returns a rotator bound to the configured key group.
func BuildRotator(ctx context.Context, cfg *config.Config) (*rotation.Rotator, func() error, error) {
	if err := cfg.ValidateRotation(); err != nil {
		return nil, nil, err
	}
	stores, err := store.Open(ctx, rotatorStoreConfig(cfg))
	if err != nil {
		return nil, nil, err
	}
	registry, err := cdn.Open(ctx, cdn.Config{
		Driver:     cfg.CDN.Driver,
		Region:     cfg.Rotation.Region,
		KeyGroupID: cfg.Rotation.KeyGroupID,
	})
	if err != nil {
		_ = stores.Close()
		return nil, nil, err
	}

	rot, err := rotation.New(registry, stores.Params, stores.Secrets, rotation.Config{
		KeyGroupID:         cfg.Rotation.KeyGroupID,
		SecretID:           cfg.Rotation.SecretID,
		ActiveKeyParameter: cfg.Rotation.ActiveKeyParameter,
		Names:              rotation.Names(cfg.Rotation.KeyPrefix),
	})
	if err != nil {
		_ = stores.Close()
		return nil, nil, err
	}
	return rot, stores.Close, nil
}
