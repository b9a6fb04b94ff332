package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dropDatabas3/edgegate/internal/app"
	"github.com/dropDatabas3/edgegate/internal/observability/logger"
	"github.com/dropDatabas3/edgegate/internal/rotation"
)

// cronLogger adapts zap to cron.Logger.
type cronLogger struct{ l *zap.SugaredLogger }

func (c cronLogger) Info(msg string, kv ...interface{}) { c.l.Infow(msg, kv...) }

func (c cronLogger) Error(err error, msg string, kv ...interface{}) {
	c.l.Errorw(msg, append(kv, "error", err)...)
}

type rotationRunner interface {
	Run(ctx context.Context) (*rotation.Result, error)
}

func rotationJob(ctx context.Context, rot rotationRunner, log *zap.Logger) cron.FuncJob {
	return func() {
		res, err := rot.Run(ctx)
		if err != nil {
			// Run logs and counts the failure; the next tick retries.
			return
		}
		log.Debug("scheduled rotation done", logger.KeyName(res.Created.Name), logger.KeyIDs(res.TrustedKeyIDs))
	}
}

func newScheduleCmd(opts *rootOptions) *cobra.Command {
	var spec string
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Rotate keys on a cron schedule until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if spec == "" {
				spec = opts.cfg.Rotation.Schedule
			}
			schedule, err := cron.ParseStandard(spec)
			if err != nil {
				return err
			}

			rot, cleanup, err := app.BuildRotator(ctx, opts.cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			log := logger.L().With(logger.Component("schedule"))
			clog := cronLogger{l: log.Sugar()}
			// Overlapping runs could race on the key group.
			c := cron.New(cron.WithLogger(clog), cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)))
			c.Schedule(schedule, rotationJob(ctx, rot, log))

			log.Info("rotation scheduled", logger.String("spec", spec), logger.String("next", schedule.Next(time.Now()).String()))
			c.Start()
			<-ctx.Done()
			<-c.Stop().Done()
			return nil
		},
	}
	cmd.Flags().StringVar(&spec, "spec", "", "cron spec (overrides rotation.schedule)")
	return cmd
}
