package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/doodlesbykumbi/licensing-in-go/pkg/config"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/fingerprint"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/offline"
)

const defaultStateFile = ".licensing-session"

// offlineCmd represents the offline command
var offlineCmd = &cobra.Command{
	Use:   "offline",
	Short: "Validate a license token with intermittent connectivity",
	Long: `Validate a license token with intermittent connectivity.

'offline start' validates the token against the server and records the time.
'offline check' then succeeds without the server until the grace period runs
out. The session is sealed with LICENSING_STATE_KEY.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("error: Command 'offline' requires a subcommand (start, check, end)")
		fmt.Println()
		_ = cmd.Help()
		os.Exit(1)
	},
}

var offlineStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Validate online and open an offline session",
	Run: func(cmd *cobra.Command, args []string) {
		tok, _ := cmd.Flags().GetString("token")
		if tok == "" {
			tok = os.Getenv("LICENSING_TOKEN")
		}
		if tok == "" {
			exitOnError("Missing token", fmt.Errorf("pass --token or set LICENSING_TOKEN"))
		}

		fp, err := fingerprint.NewGenerator().Generate(cmd.Context())
		exitOnError("Unable to compute fingerprint", err)

		v, err := offlineValidator(cmd, false)
		exitOnError("Unable to initialize", err)

		s, err := v.Start(cmd.Context(), tok, fp.Value)
		exitOnError("Online validation failed", err)
		fmt.Printf("Offline session %s started for %s; valid offline for %s\n",
			s.ID, s.WorkshopCode, s.GracePeriod)
	},
}

var offlineCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the offline session without contacting the server",
	Long: `Check the offline session without contacting the server.

With --refresh the server is tried first; a successful online validation
restarts the grace period. If the server cannot be reached the offline
check is used instead.`,
	Run: func(cmd *cobra.Command, args []string) {
		refresh, _ := cmd.Flags().GetBool("refresh")

		v, err := offlineValidator(cmd, true)
		exitOnError("Unable to initialize", err)

		s, err := v.Resume()
		exitOnError("No usable offline session", err)

		if refresh {
			if fresh, err := v.Refresh(cmd.Context(), s); err == nil {
				s = fresh
				fmt.Println("Revalidated online")
			} else {
				fmt.Fprintf(os.Stderr, "Online revalidation failed: %v\n", err)
			}
		}

		exitOnError("Offline validation failed", v.ValidateOffline(cmd.Context(), s))
		fmt.Printf("Session %s is valid for another %s\n",
			s.ID, s.Remaining(time.Now()).Truncate(time.Minute))
	},
}

var offlineEndCmd = &cobra.Command{
	Use:   "end",
	Short: "Remove the offline session",
	Run: func(cmd *cobra.Command, args []string) {
		v, err := offlineValidator(cmd, false)
		exitOnError("Unable to initialize", err)
		exitOnError("Unable to end session", v.End())
		fmt.Println("Offline session removed")
	},
}

func init() {
	rootCmd.AddCommand(offlineCmd)

	offlineCmd.PersistentFlags().StringP("url", "u", fmt.Sprintf("http://localhost:%d", defaultPortInt()), "Licensing server URL")
	offlineCmd.PersistentFlags().String("state-file", "", "Session file (default ~/"+defaultStateFile+")")
	offlineStartCmd.Flags().StringP("token", "t", "", "License token (default LICENSING_TOKEN)")
	offlineCheckCmd.Flags().Bool("refresh", false, "Try to revalidate online first")

	offlineCmd.AddCommand(offlineStartCmd, offlineCheckCmd, offlineEndCmd)
}

// offlineValidator builds a validator against the configured server. With
// localKeys the server's JWKS is fetched so offline checks also verify the
// token signature; failure to fetch only disables that verification.
func offlineValidator(cmd *cobra.Command, localKeys bool) (*offline.Validator, error) {
	baseURL, _ := cmd.Flags().GetString("url")
	path, _ := cmd.Flags().GetString("state-file")
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(home, defaultStateFile)
	}

	secret := os.Getenv("LICENSING_STATE_KEY")
	if secret == "" {
		return nil, fmt.Errorf("LICENSING_STATE_KEY environment variable is required")
	}
	state, err := offline.NewStateFile(path, []byte(secret))
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	remote := offline.NewRemoteValidator(baseURL, &http.Client{Timeout: 10 * time.Second})
	opts := []offline.Option{
		offline.WithStateFile(state),
		offline.WithGracePeriod(cfg.OfflineGracePeriod()),
	}
	if localKeys {
		if keys, err := remote.FetchKeys(cmd.Context()); err == nil {
			opts = append(opts, offline.WithLocalKeys(keys))
		} else {
			fmt.Fprintf(os.Stderr, "Signing keys unavailable, skipping signature check: %v\n", err)
		}
	}
	return offline.NewValidator(remote, opts...), nil
}
