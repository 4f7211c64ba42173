package gorm

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/doodlesbykumbi/licensing-in-go/pkg/model"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/store"
)

func (s *Store) CreateLicense(ctx context.Context, l *model.License) error {
	if l.Version == 0 {
		l.Version = 1
	}
	err := s.run(ctx, "CreateLicense", func(db *gorm.DB) error {
		return db.Create(l).Error
	})
	if isUniqueViolation(err) {
		return store.ErrVersionConflict
	}
	return err
}

func (s *Store) GetLicense(ctx context.Context, id string) (*model.License, error) {
	var l model.License
	err := s.run(ctx, "GetLicense", func(db *gorm.DB) error {
		return notFound(db.Where("id = ?", id).First(&l).Error)
	})
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// UpdateLicense is a compare-and-set on the version column.
func (s *Store) UpdateLicense(ctx context.Context, l *model.License) error {
	expected := l.Version
	next := *l
	next.Version = expected + 1
	next.UpdatedAt = time.Now().UTC()

	err := s.run(ctx, "UpdateLicense", func(db *gorm.DB) error {
		res := db.Model(&model.License{}).
			Where("id = ? AND version = ?", l.ID, expected).
			Select("*").Omit("id").
			Updates(&next)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}
		var count int64
		if err := db.Model(&model.License{}).Where("id = ?", l.ID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return store.ErrNotFound
		}
		return store.ErrVersionConflict
	})
	if err != nil {
		return err
	}
	l.Version = next.Version
	l.UpdatedAt = next.UpdatedAt
	return nil
}

func (s *Store) ListLicensesByStatus(ctx context.Context, status model.LicenseStatus) ([]model.License, error) {
	var ls []model.License
	err := s.run(ctx, "ListLicensesByStatus", func(db *gorm.DB) error {
		return db.Where("status = ?", status).
			Order("expires_at").
			Find(&ls).Error
	})
	if err != nil {
		return nil, err
	}
	return ls, nil
}

func (s *Store) CountLicensesByStatus(ctx context.Context) (map[model.LicenseStatus]int64, error) {
	var rows []struct {
		Status model.LicenseStatus
		Count  int64
	}
	err := s.run(ctx, "CountLicensesByStatus", func(db *gorm.DB) error {
		return db.Model(&model.License{}).
			Select("status, count(*) AS count").
			Group("status").
			Scan(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	counts := make(map[model.LicenseStatus]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

func (s *Store) CountLicensesExpiringBetween(ctx context.Context, from, to time.Time) (int64, error) {
	var n int64
	err := s.run(ctx, "CountLicensesExpiringBetween", func(db *gorm.DB) error {
		return db.Model(&model.License{}).
			Where("status = ? AND expires_at >= ? AND expires_at < ?", model.LicenseStatusActive, from, to).
			Count(&n).Error
	})
	return n, err
}
