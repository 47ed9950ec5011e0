// Package users implements the identity consolidation command.
package users

import (
	"github.com/spf13/cobra"

	"github.com/stylr/migrate/internal/conf"
	"github.com/stylr/migrate/internal/logger"
	"github.com/stylr/migrate/internal/phase"
)

// Command creates the users command: extract, consolidate and persist the
// user identities, stopping before related entities and media.
func Command(settings *conf.Settings, log logger.Logger) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "users",
		Short: "Consolidate and persist user identities",
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, _, err := phase.FromSettings(settings, log, force)
			if err != nil {
				return err
			}
			summary, runErr := orch.RunThrough(cmd.Context(), "persist_users")
			if summary != nil {
				summary.Print(cmd.OutOrStdout())
			}
			return runErr
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Recompute steps even when checkpoints exist")
	return cmd
}
