package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/edgegate/internal/app"
	"github.com/dropDatabas3/edgegate/internal/authorizer"
	"github.com/dropDatabas3/edgegate/internal/observability/logger"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the authorizer over HTTP (metrics on /metrics)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg := opts.cfg
			if addr != "" {
				cfg.Server.Addr = addr
			}

			h, cleanup, err := app.BuildAuthorizer(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			srv := &http.Server{
				Addr:              cfg.Server.Addr,
				Handler:           authorizer.NewRouter(h),
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       10 * time.Second,
				WriteTimeout:      30 * time.Second,
			}

			errc := make(chan error, 1)
			go func() {
				logger.L().Info("authorizer listening", logger.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errc <- err
				}
				close(errc)
			}()

			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			logger.L().Info("shutting down")
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}
