// Package score implements the readiness scoring command.
package score

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stylr/migrate/internal/conf"
	"github.com/stylr/migrate/internal/logger"
	"github.com/stylr/migrate/internal/phase"
)

// Command creates the score command: compute the readiness report, resuming
// every earlier step from its checkpoint.
func Command(settings *conf.Settings, log logger.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Compute the migration readiness score",
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, _, err := phase.FromSettings(settings, log, false)
			if err != nil {
				return err
			}
			summary, runErr := orch.RunThrough(cmd.Context(), "score")
			if summary != nil {
				summary.Print(cmd.OutOrStdout())
				if runErr == nil && summary.ExitCode() != 0 {
					return fmt.Errorf("migration readiness verdict: %s", summary.Status)
				}
			}
			return runErr
		},
	}
	return cmd
}
