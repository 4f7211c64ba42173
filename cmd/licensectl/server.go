package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/doodlesbykumbi/licensing-in-go/pkg/app"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/config"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/metrics"
)

func defaultBindAddress() string {
	if addr := os.Getenv("BIND_ADDRESS"); addr != "" {
		return addr
	}
	return "0.0.0.0"
}

func defaultPort() string {
	if port := os.Getenv("PORT"); port != "" {
		return port
	}
	return "8080"
}

func defaultPortInt() int {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			return p
		}
	}
	return 8080
}

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the licensing server",
	Long: `Run the licensing server.

With the postgres backend the server requires DATABASE_URL and
LICENSING_DATA_KEY. Management endpoints require LICENSING_ADMIN_TOKEN.

By default, database migrations are run on startup. Use --no-migrate to skip.
The server reloads licensing.yml on SIGHUP and whenever the file changes.`,
	Run: func(cmd *cobra.Command, args []string) {
		logger := newLogger()
		defer func() { _ = logger.Sync() }()

		adminToken := os.Getenv("LICENSING_ADMIN_TOKEN")
		if adminToken == "" {
			fmt.Fprintln(os.Stderr, "LICENSING_ADMIN_TOKEN environment variable is required")
			os.Exit(1)
		}

		cfg, err := loadConfig()
		exitOnError("Unable to load configuration", err)

		noMigrate, _ := cmd.Flags().GetBool("no-migrate")
		if !noMigrate && cfg.StoreBackend == config.StoreBackendPostgres {
			logger.Info("Running database migrations")
			exitOnError("Migration failed", runMigrations())
		}

		a, err := openApp(logger, metrics.New(), os.Stdout, true)
		exitOnError("Unable to initialize", err)
		defer func() { _ = a.Close() }()

		host, _ := cmd.Flags().GetString("bind-address")
		port, _ := cmd.Flags().GetString("port")
		exitOnError("Server stopped", serve(cmd.Context(), a, host, port, adminToken, logger))
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().StringP("port", "p", defaultPort(), "server listen port")
	serverCmd.Flags().StringP("bind-address", "b", defaultBindAddress(), "server bind address")
	serverCmd.Flags().Bool("no-migrate", false, "skip running database migrations on start")
}

// serve runs the HTTP server until SIGINT or SIGTERM, reloading the
// configuration on SIGHUP and on file changes.
func serve(parent context.Context, a *app.App, host, port, adminToken string, logger *zap.Logger) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := a.Server(host, port, adminToken)

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				cfg, err := loadConfig()
				if err != nil {
					logger.Warn("Ignoring reload", zap.Error(err))
					continue
				}
				a.Apply(cfg)
			}
		}
	}()

	go func() {
		path := a.Config.ConfigFilePath()
		if err := config.Watch(ctx, path, logger.Named("config"), a.Apply); err != nil {
			logger.Warn("Config file watch disabled", zap.String("path", path), zap.Error(err))
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Running server", zap.String("addr", s.Addr()))
		errCh <- s.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}
