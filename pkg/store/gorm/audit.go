package gorm

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/doodlesbykumbi/licensing-in-go/pkg/model"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/store"
)

func (s *Store) AppendAuditEntry(ctx context.Context, entry *model.AuditEntry) (bool, error) {
	var created bool
	err := s.run(ctx, "AppendAuditEntry", func(db *gorm.DB) error {
		res := db.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "event_id"}}, DoNothing: true}).
			Create(entry)
		created = res.RowsAffected == 1
		return res.Error
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

func (s *Store) PurgeAuditEntriesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	err := s.run(ctx, "PurgeAuditEntriesBefore", func(db *gorm.DB) error {
		res := db.Where("timestamp < ?", cutoff).Delete(&model.AuditEntry{})
		n = res.RowsAffected
		return res.Error
	})
	return n, err
}

func auditQuery(db *gorm.DB, f store.AuditFilter) *gorm.DB {
	q := db.Model(&model.AuditEntry{})
	if !f.Since.IsZero() {
		q = q.Where("timestamp >= ?", f.Since)
	}
	if f.MinSeverity > model.SeverityLow {
		var severities []string
		for _, sev := range model.SeverityValues() {
			if sev >= f.MinSeverity {
				severities = append(severities, sev.String())
			}
		}
		q = q.Where("severity IN ?", severities)
	}
	if f.EventType != "" {
		q = q.Where("event_type = ?", f.EventType)
	}
	if f.WorkshopCode != "" {
		q = q.Where("workshop_code = ?", f.WorkshopCode)
	}
	return q
}

func (s *Store) ListAuditEntries(ctx context.Context, filter store.AuditFilter) ([]model.AuditEntry, error) {
	var entries []model.AuditEntry
	err := s.run(ctx, "ListAuditEntries", func(db *gorm.DB) error {
		q := auditQuery(db, filter).Order("timestamp DESC")
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		return q.Find(&entries).Error
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) CountAuditEntries(ctx context.Context, filter store.AuditFilter) (int64, error) {
	var n int64
	err := s.run(ctx, "CountAuditEntries", func(db *gorm.DB) error {
		return auditQuery(db, filter).Count(&n).Error
	})
	return n, err
}
