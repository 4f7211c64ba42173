package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var rootCmd = &cobra.Command{
	Use:   "licensectl",
	Short: "Manage workshop licenses and their signing keys",
	Long: `licensectl runs the licensing server and administers licenses, signing
keys and the audit trail directly against the database.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// newLogger builds a production logger, or a development one when
// LICENSING_LOG_LEVEL=debug.
func newLogger() *zap.Logger {
	level := strings.ToLower(os.Getenv("LICENSING_LOG_LEVEL"))

	var cfg zap.Config
	if level == "debug" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		if lvl, err := zapcore.ParseLevel(level); err == nil && level != "" {
			cfg.Level = zap.NewAtomicLevelAt(lvl)
		}
	}
	logger, err := cfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to build logger: %v\n", err)
		return zap.NewNop()
	}
	return logger
}

// exitOnError prints msg and err to stderr and exits when err is set.
func exitOnError(msg string, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	os.Exit(1)
}
