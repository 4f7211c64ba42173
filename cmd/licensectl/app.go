package main

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/doodlesbykumbi/licensing-in-go/pkg/app"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/config"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/db"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/metrics"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/store"
	gormstore "github.com/doodlesbykumbi/licensing-in-go/pkg/store/gorm"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/store/memory"
)

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// openStore opens the configured backend. The memory backend keeps nothing
// between processes, so only the server may use it.
func openStore(cfg *config.Config, allowMemory bool, logger *zap.Logger) (store.Store, error) {
	if cfg.StoreBackend == config.StoreBackendMemory {
		if !allowMemory {
			return nil, fmt.Errorf("store_backend %q is not persistent; this command needs postgres", cfg.StoreBackend)
		}
		logger.Warn("Using the in-memory store; nothing is persisted")
		return memory.New(), nil
	}

	cipher, err := db.CipherFromEnv()
	if err != nil {
		return nil, err
	}
	conn, err := db.Connect(db.Config{Cipher: cipher})
	if err != nil {
		return nil, err
	}
	return gormstore.NewStore(conn, gormstore.WithTimeout(cfg.StorageTimeout())), nil
}

// openApp loads the config and wires every component for a CLI command.
// Audit lines go to auditOut.
func openApp(logger *zap.Logger, m *metrics.Metrics, auditOut io.Writer, allowMemory bool) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	st, err := openStore(cfg, allowMemory, logger)
	if err != nil {
		return nil, err
	}
	if auditOut == nil {
		auditOut = os.Stderr
	}
	return app.New(cfg, st,
		app.WithLogger(logger),
		app.WithMetrics(m),
		app.WithAuditWriter(auditOut))
}

// mustOpenApp is openApp for commands that cannot continue without it.
func mustOpenApp() *app.App {
	a, err := openApp(zap.NewNop(), nil, io.Discard, false)
	exitOnError("Unable to initialize", err)
	return a
}
