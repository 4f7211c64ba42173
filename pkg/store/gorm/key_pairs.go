package gorm

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/doodlesbykumbi/licensing-in-go/pkg/model"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/store"
)

func (s *Store) CreateKeyPair(ctx context.Context, kp *model.KeyPair) error {
	kp.IsActive = false
	if kp.CreatedAt.IsZero() {
		kp.CreatedAt = time.Now().UTC()
	}
	return s.run(ctx, "CreateKeyPair", func(db *gorm.DB) error {
		return db.Create(kp).Error
	})
}

// ActivateKeyPair relies on the partial unique index on (algorithm) WHERE
// is_active: a concurrent activation for the same algorithm fails at commit
// time instead of passing a read-side check.
func (s *Store) ActivateKeyPair(ctx context.Context, id string, replace bool) error {
	err := s.run(ctx, "ActivateKeyPair", func(db *gorm.DB) error {
		return db.Transaction(func(tx *gorm.DB) error {
			var kp model.KeyPair
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("id = ?", id).
				First(&kp).Error
			if err != nil {
				return notFound(err)
			}
			if kp.IsActive {
				return nil
			}

			now := time.Now().UTC()
			if replace {
				err := tx.Model(&model.KeyPair{}).
					Where("algorithm = ? AND is_active = ?", kp.Algorithm, true).
					Updates(map[string]interface{}{"is_active": false, "retired_at": now}).Error
				if err != nil {
					return err
				}
			}

			return tx.Model(&model.KeyPair{}).
				Where("id = ?", id).
				Updates(map[string]interface{}{"is_active": true, "activated_at": now, "retired_at": nil}).Error
		})
	})
	if isUniqueViolation(err) {
		return store.ErrActiveKeyConflict
	}
	return err
}

func (s *Store) DeactivateKeyPair(ctx context.Context, id string) error {
	return s.run(ctx, "DeactivateKeyPair", func(db *gorm.DB) error {
		res := db.Model(&model.KeyPair{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{"is_active": false, "retired_at": time.Now().UTC()})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return store.ErrNotFound
		}
		return nil
	})
}

func (s *Store) ActiveKeyPair(ctx context.Context, algorithm string) (*model.KeyPair, error) {
	var kp model.KeyPair
	err := s.run(ctx, "ActiveKeyPair", func(db *gorm.DB) error {
		return notFound(db.Where("algorithm = ? AND is_active = ?", algorithm, true).First(&kp).Error)
	})
	if err != nil {
		return nil, err
	}
	return &kp, nil
}

func (s *Store) KeyPairByID(ctx context.Context, id string) (*model.KeyPair, error) {
	var kp model.KeyPair
	err := s.run(ctx, "KeyPairByID", func(db *gorm.DB) error {
		return notFound(db.Where("id = ?", id).First(&kp).Error)
	})
	if err != nil {
		return nil, err
	}
	return &kp, nil
}

func (s *Store) ListKeyPairs(ctx context.Context) ([]model.KeyPair, error) {
	var kps []model.KeyPair
	err := s.run(ctx, "ListKeyPairs", func(db *gorm.DB) error {
		return db.Order("created_at").Find(&kps).Error
	})
	if err != nil {
		return nil, err
	}
	return kps, nil
}
