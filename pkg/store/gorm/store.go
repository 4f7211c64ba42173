package gorm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/doodlesbykumbi/licensing-in-go/pkg/errs"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/store"
)

var _ store.Store = (*Store)(nil)

// DefaultTimeout bounds a store call when no timeout is configured.
const DefaultTimeout = 5 * time.Second

// Store implements every store port on one gorm connection.
type Store struct {
	db      *gorm.DB
	timeout time.Duration
}

type Option func(*Store)

// WithTimeout bounds every store call. Zero or negative keeps DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func NewStore(db *gorm.DB, opts ...Option) *Store {
	s := &Store{db: db, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CheckConnectivity verifies database connectivity
func (s *Store) CheckConnectivity(ctx context.Context) error {
	return s.run(ctx, "CheckConnectivity", func(db *gorm.DB) error {
		return db.Exec("SELECT 1").Error
	})
}

// run calls fn on a session bounded by the store timeout. A call cut off by
// its deadline fails with StorageUnavailable whatever error the driver
// surfaced.
func (s *Store) run(ctx context.Context, op string, fn func(db *gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := fn(s.db.WithContext(ctx))
	if err != nil && ctx.Err() != nil {
		return errs.Storage("store."+op, fmt.Errorf("%w: %w", ctx.Err(), err))
	}
	return err
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.ErrNotFound
	}
	return err
}

const pgUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
