package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/doodlesbykumbi/licensing-in-go/pkg/model"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/store"
)

// auditCmd represents the audit command
var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect and prune the audit trail",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("error: Command 'audit' requires a subcommand (list, cleanup)")
		fmt.Println()
		_ = cmd.Help()
		os.Exit(1)
	},
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audit entries, newest first",
	Long: `List audit entries, newest first.

Example:
  licensectl audit list --since 24h --min-severity High
  licensectl audit list --workshop WS-001 --limit 20`,
	Run: func(cmd *cobra.Command, args []string) {
		f := cmd.Flags()
		filter := store.AuditFilter{}
		filter.EventType, _ = f.GetString("event-type")
		filter.WorkshopCode, _ = f.GetString("workshop")
		filter.Limit, _ = f.GetInt("limit")

		if since, _ := f.GetDuration("since"); since > 0 {
			filter.Since = time.Now().Add(-since)
		}
		if name, _ := f.GetString("min-severity"); name != "" {
			sev, err := model.SeverityString(name)
			exitOnError("Invalid severity", err)
			filter.MinSeverity = sev
		}

		a := mustOpenApp()
		defer func() { _ = a.Close() }()

		entries, err := a.Audit.Query(cmd.Context(), filter)
		exitOnError("Unable to query audit trail", err)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TIMESTAMP\tSEVERITY\tEVENT\tWORKSHOP\tACTOR\tDESCRIPTION")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				e.Timestamp.UTC().Format(time.RFC3339), e.Severity, e.EventType,
				e.WorkshopCode, e.Actor, e.Description)
		}
		_ = w.Flush()
	},
}

var auditCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete audit entries older than the retention period",
	Long: `Delete audit entries older than the retention period.

The retention period comes from audit_retention_days in the configuration
unless --days is given. The cleanup itself is recorded in the audit trail.`,
	Run: func(cmd *cobra.Command, args []string) {
		actor, _ := cmd.Flags().GetString("actor")
		days, _ := cmd.Flags().GetInt("days")

		a := mustOpenApp()
		defer func() { _ = a.Close() }()

		if days <= 0 {
			days = a.Config.AuditRetentionDays
		}
		removed, err := a.Audit.Cleanup(cmd.Context(), days, actor)
		exitOnError("Audit cleanup failed", err)
		fmt.Printf("Removed %d audit entries older than %d days\n", removed, days)
	},
}

func init() {
	rootCmd.AddCommand(auditCmd)

	f := auditListCmd.Flags()
	f.Duration("since", 0, "only entries newer than this (e.g. 24h)")
	f.String("min-severity", "", "lowest severity to include: Low, Medium, High or Critical")
	f.String("event-type", "", "only this event type")
	f.String("workshop", "", "only entries for this workshop code")
	f.Int("limit", 100, "maximum number of entries")

	auditCleanupCmd.Flags().Int("days", 0, "retention in days (default from configuration)")
	auditCleanupCmd.Flags().String("actor", "", "who performs the cleanup (required)")
	_ = auditCleanupCmd.MarkFlagRequired("actor")

	auditCmd.AddCommand(auditListCmd, auditCleanupCmd)
}
