// Command edgegate runs the authorizer locally and drives key rotation from
// the command line.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/edgegate/internal/app"
	"github.com/dropDatabas3/edgegate/internal/config"
	"github.com/dropDatabas3/edgegate/internal/observability/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
	out        string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "edgegate",
		Short:         "Signed-cookie edge authorizer and CloudFront key rotator",
		Version:       app.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.Load(opts.configPath)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config.yaml (env EDGEGATE_CONFIG)")
	root.PersistentFlags().StringVar(&opts.out, "out", "text", "output format: text|json")

	root.AddCommand(
		newServeCmd(opts),
		newRotateCmd(opts),
		newPlanCmd(opts),
		newScheduleCmd(opts),
	)
	return root
}
