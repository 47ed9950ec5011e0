// Package validate implements the dry-run source validation command.
package validate

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stylr/migrate/internal/conf"
	"github.com/stylr/migrate/internal/extract"
	"github.com/stylr/migrate/internal/identity"
	"github.com/stylr/migrate/internal/logger"
)

// Command creates the validate command: parse the dump, run structural
// validation and conflict detection, and report without writing anything.
func Command(settings *conf.Settings, log logger.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the source dump and preview duplicate conflicts",
		RunE: func(cmd *cobra.Command, args []string) error {
			dump, err := extract.Read(settings.Source.DumpPath, log)
			if err != nil {
				return err
			}

			validator := identity.NewValidator()
			var issues []identity.ValidationIssue
			for i := range dump.Buyers {
				issues = append(issues, validator.ValidateBuyer(&dump.Buyers[i])...)
			}
			for i := range dump.Stylists {
				issues = append(issues, validator.ValidateStylist(&dump.Stylists[i])...)
			}

			dedup := identity.NewDeduplicator(log)
			conflicts := dedup.FindConflicts(dump.Buyers, dump.Stylists)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "buyers: %d, stylists: %d\n", len(dump.Buyers), len(dump.Stylists))
			fmt.Fprintf(out, "validation issues: %d\n", len(issues))
			for i := range issues {
				issue := &issues[i]
				fmt.Fprintf(out, "  [%s] %s/%s %s: %s\n",
					issue.Severity, issue.Source, issue.RecordID, issue.Code, issue.Message)
			}
			fmt.Fprintf(out, "duplicate conflicts: %d\n", len(conflicts))
			for i := range conflicts {
				c := &conflicts[i]
				fmt.Fprintf(out, "  %s -> %s (%s)\n", c.Email, c.Resolution, c.Reason)
			}

			if identity.HasErrors(issues) {
				return fmt.Errorf("source dump has %d validation issues", len(issues))
			}
			return nil
		},
	}
	return cmd
}
