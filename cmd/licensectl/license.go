package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/doodlesbykumbi/licensing-in-go/pkg/license"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/model"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/server/endpoints"
)

// licenseCmd represents the license command
var licenseCmd = &cobra.Command{
	Use:   "license",
	Short: "Issue, renew and revoke licenses",
	Long:  `Administer workshop licenses directly against the database.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("error: Command 'license' requires a subcommand (issue, renew, reactivate, revoke, show, list, sweep, dashboard)")
		fmt.Println()
		_ = cmd.Help()
		os.Exit(1)
	},
}

var licenseIssueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Issue a license and print its token",
	Long: `Issue a license and print its token.

Duration and features default per license type when omitted.

Example:
  licensectl license issue --workshop WS-001 --business "Al Noor Garage" \
    --email owner@alnoor.example --type Standard --fingerprint <fp> --actor admin`,
	Run: func(cmd *cobra.Command, args []string) {
		f := cmd.Flags()
		req := license.IssueRequest{}
		req.WorkshopCode, _ = f.GetString("workshop")
		req.BusinessName, _ = f.GetString("business")
		req.BusinessNameLocalized, _ = f.GetString("business-localized")
		req.ContactEmail, _ = f.GetString("email")
		req.LicenseType, _ = f.GetString("type")
		req.DurationDays, _ = f.GetInt("days")
		req.Features, _ = f.GetStringSlice("features")
		req.HardwareFingerprint, _ = f.GetString("fingerprint")
		req.Actor, _ = f.GetString("actor")

		a := mustOpenApp()
		defer func() { _ = a.Close() }()

		res, err := a.Licenses.Issue(cmd.Context(), req)
		exitOnError("Unable to issue license", err)
		printJSON(res)
	},
}

var licenseRenewCmd = &cobra.Command{
	Use:   "renew <license-id>",
	Short: "Extend an active license",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := mustOpenApp()
		defer func() { _ = a.Close() }()

		res, err := a.Licenses.Renew(cmd.Context(), args[0], renewRequest(cmd))
		exitOnError("Unable to renew license", err)
		printJSON(res)
	},
}

var licenseReactivateCmd = &cobra.Command{
	Use:   "reactivate <license-id>",
	Short: "Bring an expired license back to Active",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := mustOpenApp()
		defer func() { _ = a.Close() }()

		res, err := a.Licenses.Reactivate(cmd.Context(), args[0], renewRequest(cmd))
		exitOnError("Unable to reactivate license", err)
		printJSON(res)
	},
}

var licenseRevokeCmd = &cobra.Command{
	Use:   "revoke <license-id>",
	Short: "Revoke a license and every token issued for it",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		req := license.RevokeRequest{}
		req.Reason, _ = cmd.Flags().GetString("reason")
		req.ReasonLocalized, _ = cmd.Flags().GetString("reason-localized")
		req.Actor, _ = cmd.Flags().GetString("actor")

		a := mustOpenApp()
		defer func() { _ = a.Close() }()

		res, err := a.Licenses.Revoke(cmd.Context(), args[0], req)
		exitOnError("Unable to revoke license", err)
		printJSON(res)
	},
}

var licenseShowCmd = &cobra.Command{
	Use:   "show <license-id>",
	Short: "Show a license record",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := mustOpenApp()
		defer func() { _ = a.Close() }()

		l, err := a.Licenses.Get(cmd.Context(), args[0])
		exitOnError("Unable to load license", err)
		printJSON(endpoints.NewLicenseResponse(l))
	},
}

var licenseListCmd = &cobra.Command{
	Use:   "list",
	Short: "List licenses in one status",
	Run: func(cmd *cobra.Command, args []string) {
		name, _ := cmd.Flags().GetString("status")
		status, err := model.LicenseStatusString(name)
		if err != nil {
			exitOnError("Invalid status", fmt.Errorf("%q is not one of %s", name, strings.Join(model.LicenseStatusStrings(), ", ")))
		}

		a := mustOpenApp()
		defer func() { _ = a.Close() }()

		licenses, err := a.Licenses.List(cmd.Context(), status)
		exitOnError("Unable to list licenses", err)
		out := make([]endpoints.LicenseResponse, 0, len(licenses))
		for i := range licenses {
			out = append(out, endpoints.NewLicenseResponse(&licenses[i]))
		}
		printJSON(out)
	},
}

var licenseSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Expire overdue licenses and flag those expiring soon",
	Long: `Expire overdue licenses and flag those expiring soon.

Safe to run repeatedly, e.g. from cron: licenses already expired or warned
about are not touched again.`,
	Run: func(cmd *cobra.Command, args []string) {
		a := mustOpenApp()
		defer func() { _ = a.Close() }()

		res, err := a.Licenses.CheckExpiration(cmd.Context())
		exitOnError("Sweep failed", err)
		printJSON(res)
	},
}

var licenseDashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Print the license overview and system health",
	Run: func(cmd *cobra.Command, args []string) {
		a := mustOpenApp()
		defer func() { _ = a.Close() }()

		d, err := a.Licenses.Dashboard(cmd.Context())
		exitOnError("Unable to build dashboard", err)
		printJSON(d)
	},
}

func init() {
	rootCmd.AddCommand(licenseCmd)

	f := licenseIssueCmd.Flags()
	f.String("workshop", "", "workshop code (required)")
	f.String("business", "", "business name (required)")
	f.String("business-localized", "", "business name in the local script")
	f.String("email", "", "contact email (required)")
	f.String("type", "", "license type: "+strings.Join(model.LicenseTypeStrings(), ", "))
	f.Int("days", 0, "term in days (default per license type)")
	f.StringSlice("features", nil, "enabled features (default per license type)")
	f.String("fingerprint", "", "hardware fingerprint to bind the license to")
	_ = licenseIssueCmd.MarkFlagRequired("type")

	for _, c := range []*cobra.Command{licenseRenewCmd, licenseReactivateCmd} {
		c.Flags().Int("days", 0, "days to add (default per license type)")
		c.Flags().String("type", "", "expected license type; renewal never changes it")
		c.Flags().String("reason", "", "reason recorded in the renewal history")
	}

	licenseRevokeCmd.Flags().String("reason", "", "revocation reason (required)")
	licenseRevokeCmd.Flags().String("reason-localized", "", "revocation reason in the local language")
	_ = licenseRevokeCmd.MarkFlagRequired("reason")

	for _, c := range []*cobra.Command{licenseIssueCmd, licenseRenewCmd, licenseReactivateCmd, licenseRevokeCmd} {
		c.Flags().String("actor", "", "who performs the change (required)")
		_ = c.MarkFlagRequired("actor")
	}

	licenseListCmd.Flags().String("status", model.LicenseStatusActive.String(), "status to list")

	licenseCmd.AddCommand(licenseIssueCmd, licenseRenewCmd, licenseReactivateCmd, licenseRevokeCmd,
		licenseShowCmd, licenseListCmd, licenseSweepCmd, licenseDashboardCmd)
}

func renewRequest(cmd *cobra.Command) license.RenewRequest {
	req := license.RenewRequest{}
	req.DurationDays, _ = cmd.Flags().GetInt("days")
	req.LicenseType, _ = cmd.Flags().GetString("type")
	req.Reason, _ = cmd.Flags().GetString("reason")
	req.Actor, _ = cmd.Flags().GetString("actor")
	return req
}

func printJSON(v interface{}) {
	out, err := json.MarshalIndent(v, "", "  ")
	exitOnError("Unable to encode output", err)
	fmt.Println(string(out))
}
