package main

import (
	"github.com/spf13/cobra"

	"shelver/internal/daemonrun"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	var development bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Watch the configured directory and organize files until interrupted",
		Long: "Run acquires the instance lock, organizes everything already present in the\n" +
			"watch root, then keeps watching for new files. SIGINT or SIGTERM stop it after\n" +
			"the current pass; SIGHUP requests an immediate pass.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    logLevel,
				Development: development,
			})
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&development, "development", false, "Include source locations in log output")
	return cmd
}
