// Package run implements the full end-to-end migration command.
package run

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stylr/migrate/internal/conf"
	"github.com/stylr/migrate/internal/logger"
	"github.com/stylr/migrate/internal/phase"
)

// Command creates the run command.
func Command(settings *conf.Settings, log logger.Logger) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full migration: users, related entities, media and score",
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, metrics, err := phase.FromSettings(settings, log, force)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			if settings.Telemetry.Enabled {
				go func() {
					if err := metrics.Serve(ctx, settings.Telemetry.Listen, log); err != nil {
						log.Warn("metrics listener stopped", logger.Error(err))
					}
				}()
			}

			summary, runErr := orch.Run(ctx)
			if summary != nil {
				summary.Print(cmd.OutOrStdout())
				if runErr == nil && summary.ExitCode() != 0 {
					return fmt.Errorf("migration readiness verdict: %s", summary.Status)
				}
			}
			return runErr
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Recompute every step even when checkpoints exist")
	return cmd
}
