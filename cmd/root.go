// Package cmd assembles the migration CLI.
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	mediacmd "github.com/stylr/migrate/cmd/media"
	runcmd "github.com/stylr/migrate/cmd/run"
	scorecmd "github.com/stylr/migrate/cmd/score"
	userscmd "github.com/stylr/migrate/cmd/users"
	validatecmd "github.com/stylr/migrate/cmd/validate"
	"github.com/stylr/migrate/internal/conf"
	"github.com/stylr/migrate/internal/logger"
)

// RootCommand creates and returns the root command.
func RootCommand(settings *conf.Settings, log logger.Logger) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "stylr-migrate",
		Short: "Legacy marketplace migration engine",
		Long: "Moves the legacy marketplace dataset (users, services, bookings, chat, media)\n" +
			"into the new backend with identity consolidation, checkpointed batch writes\n" +
			"and a final readiness score.",
		SilenceUsage: true,
	}

	setupFlags(rootCmd, settings)

	rootCmd.AddCommand(
		runcmd.Command(settings, log),
		userscmd.Command(settings, log),
		mediacmd.Command(settings, log),
		scorecmd.Command(settings, log),
		validatecmd.Command(settings, log),
	)

	return rootCmd
}

// setupFlags defines flags global to the whole CLI.
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&settings.Source.DumpPath, "dump", viper.GetString("source.dumppath"), "Path to the legacy JSON dump file")
	rootCmd.PersistentFlags().StringVar(&settings.Checkpoint.Dir, "checkpoint-dir", viper.GetString("checkpoint.dir"), "Directory for step checkpoint files")
}
