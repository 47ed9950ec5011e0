// Package media implements the media migration command.
package media

import (
	"github.com/spf13/cobra"

	"github.com/stylr/migrate/internal/conf"
	"github.com/stylr/migrate/internal/logger"
	"github.com/stylr/migrate/internal/phase"
)

// Command creates the media command: run everything through the media
// pipeline, resuming earlier steps from their checkpoints.
func Command(settings *conf.Settings, log logger.Logger) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "media",
		Short: "Migrate media assets: compress, upload and create records",
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, _, err := phase.FromSettings(settings, log, force)
			if err != nil {
				return err
			}
			summary, runErr := orch.RunThrough(cmd.Context(), "media")
			if summary != nil {
				summary.Print(cmd.OutOrStdout())
			}
			return runErr
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Recompute steps even when checkpoints exist")
	return cmd
}
