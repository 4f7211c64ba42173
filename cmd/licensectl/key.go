package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/doodlesbykumbi/licensing-in-go/pkg/signing"
)

// keyCmd represents the key command
var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage token-signing keys",
	Long: `Manage the RSA keys that sign license tokens.

At most one key per algorithm is active. Retired keys stay available to
verify tokens they signed.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("error: Command 'key' requires a subcommand (generate, import, activate, rotate, deactivate, list)")
		fmt.Println()
		_ = cmd.Help()
		os.Exit(1)
	},
}

var keyGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a signing key without activating it",
	Run: func(cmd *cobra.Command, args []string) {
		alg, bits, actor := keyFlags(cmd)
		a := mustOpenApp()
		defer func() { _ = a.Close() }()

		key, err := a.Keys.Generate(cmd.Context(), alg, bits, actor)
		exitOnError("Unable to generate key", err)
		fmt.Println(key.Fingerprint())
	},
}

var keyImportCmd = &cobra.Command{
	Use:   "import <private-key.pem>",
	Short: "Import a PEM encoded RSA private key",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		alg, _, actor := keyFlags(cmd)
		data, err := os.ReadFile(args[0])
		exitOnError("Unable to read key file", err)

		a := mustOpenApp()
		defer func() { _ = a.Close() }()

		key, err := a.Keys.Import(cmd.Context(), alg, data, actor)
		exitOnError("Unable to import key", err)
		fmt.Println(key.Fingerprint())
	},
}

var keyActivateCmd = &cobra.Command{
	Use:   "activate <kid>",
	Short: "Make a key the active key for its algorithm",
	Long: `Make a key the active key for its algorithm.

Fails when another key is already active unless --replace is given, in which
case the current key is retired in the same transaction.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		_, _, actor := keyFlags(cmd)
		replace, _ := cmd.Flags().GetBool("replace")

		a := mustOpenApp()
		defer func() { _ = a.Close() }()

		var err error
		if replace {
			err = a.Keys.ActivateReplacing(cmd.Context(), args[0], actor)
		} else {
			err = a.Keys.Activate(cmd.Context(), args[0], actor)
		}
		exitOnError("Unable to activate key", err)
		fmt.Printf("Activated %s\n", args[0])
	},
}

var keyRotateCmd = &cobra.Command{
	Use:   "rotate",
	Short: "Generate a new key and make it active, retiring the current one",
	Run: func(cmd *cobra.Command, args []string) {
		alg, bits, actor := keyFlags(cmd)
		a := mustOpenApp()
		defer func() { _ = a.Close() }()

		key, err := a.Keys.Rotate(cmd.Context(), alg, bits, actor)
		exitOnError("Unable to rotate key", err)
		fmt.Println(key.Fingerprint())
	},
}

var keyDeactivateCmd = &cobra.Command{
	Use:   "deactivate <kid>",
	Short: "Retire a key; it keeps verifying the tokens it signed",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		_, _, actor := keyFlags(cmd)
		a := mustOpenApp()
		defer func() { _ = a.Close() }()

		exitOnError("Unable to deactivate key", a.Keys.Deactivate(cmd.Context(), args[0], actor))
		fmt.Printf("Deactivated %s\n", args[0])
	},
}

var keyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List signing keys",
	Run: func(cmd *cobra.Command, args []string) {
		a := mustOpenApp()
		defer func() { _ = a.Close() }()

		keys, err := a.Keys.List(cmd.Context())
		exitOnError("Unable to list keys", err)

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "KID\tALGORITHM\tBITS\tACTIVE\tCREATED\tRETIRED")
		for _, k := range keys {
			fmt.Fprintf(w, "%s\t%s\t%d\t%v\t%s\t%s\n", k.Kid, k.Algorithm, k.KeySize, k.Active, k.CreatedAt, k.RetiredAt)
		}
		_ = w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(keyCmd)
	for _, c := range []*cobra.Command{keyGenerateCmd, keyImportCmd, keyActivateCmd, keyRotateCmd, keyDeactivateCmd} {
		c.Flags().String("actor", "", "who performs the change (required)")
		_ = c.MarkFlagRequired("actor")
	}
	for _, c := range []*cobra.Command{keyGenerateCmd, keyImportCmd, keyRotateCmd} {
		c.Flags().StringP("algorithm", "a", string(signing.RS256), "RS256, RS384 or RS512")
	}
	for _, c := range []*cobra.Command{keyGenerateCmd, keyRotateCmd} {
		c.Flags().IntP("bits", "b", signing.MinKeySize, "RSA modulus size")
	}
	keyActivateCmd.Flags().Bool("replace", false, "retire the currently active key")

	keyCmd.AddCommand(keyGenerateCmd, keyImportCmd, keyActivateCmd, keyRotateCmd, keyDeactivateCmd, keyListCmd)
}

func keyFlags(cmd *cobra.Command) (signing.Algorithm, int, string) {
	actor, _ := cmd.Flags().GetString("actor")
	bits, _ := cmd.Flags().GetInt("bits")

	var alg signing.Algorithm
	if cmd.Flags().Lookup("algorithm") != nil {
		name, _ := cmd.Flags().GetString("algorithm")
		parsed, err := signing.ParseAlgorithm(name)
		exitOnError("Invalid algorithm", err)
		alg = parsed
	}
	return alg, bits, actor
}
