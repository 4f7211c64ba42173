package store

import (
	"context"
	"time"

	"github.com/doodlesbykumbi/licensing-in-go/pkg/model"
)

// LicenseStore persists license records.
type LicenseStore interface {
	CreateLicense(ctx context.Context, l *model.License) error

	GetLicense(ctx context.Context, id string) (*model.License, error)

	// UpdateLicense writes l only if the stored version still equals
	// l.Version, then increments l.Version. A mismatch yields ErrVersionConflict.
	UpdateLicense(ctx context.Context, l *model.License) error

	ListLicensesByStatus(ctx context.Context, status model.LicenseStatus) ([]model.License, error)

	CountLicensesByStatus(ctx context.Context) (map[model.LicenseStatus]int64, error)

	// CountLicensesExpiringBetween counts Active licenses with from <= expires_at < to.
	CountLicensesExpiringBetween(ctx context.Context, from, to time.Time) (int64, error)
}
