package integration

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"

	migrations "github.com/doodlesbykumbi/licensing-in-go/db"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/db"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/signing"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/store"
	gormstore "github.com/doodlesbykumbi/licensing-in-go/pkg/store/gorm"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/store/memory"
)

// Backend hands each scenario an empty store.
type Backend interface {
	NewStore(ctx context.Context) (store.Store, error)
}

// MemoryBackend gives every scenario its own in-memory store.
type MemoryBackend struct{}

func (MemoryBackend) NewStore(context.Context) (store.Store, error) {
	return memory.New(), nil
}

// PostgresBackend shares one migrated container across scenarios and
// truncates every table before handing out a store.
type PostgresBackend struct {
	Container   testcontainers.Container
	DatabaseURL string
	DB          *gorm.DB
}

func NewPostgresBackend(ctx context.Context) (*PostgresBackend, error) {
	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("licensing_test"),
		tcpostgres.WithUsername("licensing"),
		tcpostgres.WithPassword("licensing"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = pgContainer.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	if err := runMigrations(connStr); err != nil {
		_ = pgContainer.Terminate(ctx)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	dataKey, err := signing.GenerateDataKey()
	if err != nil {
		_ = pgContainer.Terminate(ctx)
		return nil, err
	}
	cipher, err := signing.NewDataCipherFromBase64(dataKey)
	if err != nil {
		_ = pgContainer.Terminate(ctx)
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	conn, err := db.Connect(db.Config{URL: connStr, Cipher: cipher})
	if err != nil {
		_ = pgContainer.Terminate(ctx)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Printf("Postgres ready at %s", pgContainer.GetContainerID())
	return &PostgresBackend{Container: pgContainer, DatabaseURL: connStr, DB: conn}, nil
}

func (b *PostgresBackend) NewStore(ctx context.Context) (store.Store, error) {
	err := b.DB.WithContext(ctx).
		Exec("TRUNCATE key_pairs, licenses, revoked_tokens, audit_entries").Error
	if err != nil {
		return nil, err
	}
	return gormstore.NewStore(b.DB), nil
}

// Close cleans up all test resources
func (b *PostgresBackend) Close(ctx context.Context) {
	if sqlDB, err := b.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
	if b.Container != nil {
		_ = b.Container.Terminate(ctx)
	}
}

func runMigrations(dbURL string) error {
	migrationsFS, err := fs.Sub(migrations.Migrations, "migrations")
	if err != nil {
		return err
	}
	src, err := iofs.New(migrationsFS, ".")
	if err != nil {
		return err
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dbURL)
	if err != nil {
		return err
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
