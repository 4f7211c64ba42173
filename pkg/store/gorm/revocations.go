package gorm

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/doodlesbykumbi/licensing-in-go/pkg/model"
)

func (s *Store) InsertRevokedToken(ctx context.Context, entry *model.RevokedToken) (*model.RevokedToken, bool, error) {
	var created bool
	err := s.run(ctx, "InsertRevokedToken", func(db *gorm.DB) error {
		res := db.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "jti"}}, DoNothing: true}).
			Create(entry)
		created = res.RowsAffected == 1
		return res.Error
	})
	if err != nil {
		return nil, false, err
	}
	if created {
		return entry, true, nil
	}

	existing, err := s.RevokedTokenByJTI(ctx, entry.JTI)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (s *Store) RevokedTokenByJTI(ctx context.Context, jti string) (*model.RevokedToken, error) {
	var entry model.RevokedToken
	err := s.run(ctx, "RevokedTokenByJTI", func(db *gorm.DB) error {
		return notFound(db.Where("jti = ?", jti).First(&entry).Error)
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *Store) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var exists bool
	err := s.run(ctx, "IsRevoked", func(db *gorm.DB) error {
		return db.Raw("SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE jti = ?)", jti).
			Scan(&exists).Error
	})
	return exists, err
}

func (s *Store) CountRevokedTokens(ctx context.Context) (int64, error) {
	var n int64
	err := s.run(ctx, "CountRevokedTokens", func(db *gorm.DB) error {
		return db.Model(&model.RevokedToken{}).Count(&n).Error
	})
	return n, err
}
