package db

import (
	"fmt"
	"os"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/doodlesbykumbi/licensing-in-go/pkg/signing"
	gormstore "github.com/doodlesbykumbi/licensing-in-go/pkg/store/gorm"
)

// Config holds database connection configuration
type Config struct {
	// URL is the database connection URL (defaults to DATABASE_URL env var)
	URL string
	// Cipher seals private key material at rest. Required.
	Cipher signing.DataCipher
}

// Connect establishes a database connection.
// If no URL is provided, it reads from DATABASE_URL environment variable.
func Connect(cfg Config) (*gorm.DB, error) {
	dbURL := cfg.URL
	if dbURL == "" {
		dbURL = URL()
	}
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}
	if cfg.Cipher == nil {
		return nil, fmt.Errorf("a data key is required to open the key store")
	}

	// Default to silent logging unless LICENSING_LOG_LEVEL=debug is set
	logMode := logger.Silent
	if os.Getenv("LICENSING_LOG_LEVEL") == "debug" {
		logMode = logger.Info
	}

	db, err := gorm.Open(
		postgres.New(postgres.Config{
			DSN:                  dbURL,
			PreferSimpleProtocol: true, // disables implicit prepared statement usage
		}),
		&gorm.Config{
			Logger:                 logger.Default.LogMode(logMode),
			SkipDefaultTransaction: true,
			TranslateError:         true,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Use(gormstore.NewSealPlugin(cfg.Cipher)); err != nil {
		return nil, fmt.Errorf("failed to register seal plugin: %w", err)
	}

	return db, nil
}

// URL returns the database URL from environment.
// Returns empty string if DATABASE_URL is not set.
func URL() string {
	return os.Getenv("DATABASE_URL")
}

// DataKey returns the base64 data key from LICENSING_DATA_KEY.
func DataKey() string {
	return os.Getenv("LICENSING_DATA_KEY")
}

// CipherFromEnv builds the data cipher from LICENSING_DATA_KEY.
func CipherFromEnv() (signing.DataCipher, error) {
	key := DataKey()
	if key == "" {
		return nil, fmt.Errorf("LICENSING_DATA_KEY environment variable is required")
	}
	return signing.NewDataCipherFromBase64(key)
}
