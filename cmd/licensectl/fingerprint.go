package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/doodlesbykumbi/licensing-in-go/pkg/fingerprint"
)

// fingerprintCmd represents the fingerprint command
var fingerprintCmd = &cobra.Command{
	Use:   "fingerprint",
	Short: "Print this machine's hardware fingerprint",
	Long: `Print this machine's hardware fingerprint.

Pass the value to 'license issue --fingerprint' to bind a license to this
machine. Use --verbose to see the attributes it was derived from.`,
	Run: func(cmd *cobra.Command, args []string) {
		verbose, _ := cmd.Flags().GetBool("verbose")

		fp, err := fingerprint.NewGenerator().Generate(cmd.Context())
		exitOnError("Unable to compute fingerprint", err)

		if verbose {
			printJSON(fp)
			return
		}
		fmt.Println(fp.Value)
	},
}

func init() {
	rootCmd.AddCommand(fingerprintCmd)
	fingerprintCmd.Flags().BoolP("verbose", "v", false, "Also print the machine attributes")
}
