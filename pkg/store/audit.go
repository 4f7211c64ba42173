package store

import (
	"context"
	"time"

	"github.com/doodlesbykumbi/licensing-in-go/pkg/model"
)

// AuditFilter narrows ListAuditEntries. Zero fields do not filter.
type AuditFilter struct {
	Since        time.Time
	MinSeverity  model.Severity
	EventType    string
	WorkshopCode string
	Limit        int
}

// AuditStore persists audit entries. Entries are never updated.
type AuditStore interface {
	// AppendAuditEntry inserts the entry unless its event id already exists.
	// It reports whether the entry was new.
	AppendAuditEntry(ctx context.Context, entry *model.AuditEntry) (bool, error)

	// PurgeAuditEntriesBefore deletes entries older than cutoff and returns the
	// number removed.
	PurgeAuditEntriesBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// ListAuditEntries returns matching entries, newest first.
	ListAuditEntries(ctx context.Context, filter AuditFilter) ([]model.AuditEntry, error)

	CountAuditEntries(ctx context.Context, filter AuditFilter) (int64, error)
}
