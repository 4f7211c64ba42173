package license

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/doodlesbykumbi/licensing-in-go/pkg/audit"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/errs"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/model"
)

// SweepResult summarizes one expiration sweep.
type SweepResult struct {
	LicensesChecked int `json:"licenses_checked"`
	// ExpiringSoon counts Active licenses inside the warning window,
	// including ones warned about by earlier sweeps.
	ExpiringSoon int `json:"expiring_soon"`
	// Expired counts licenses this sweep moved to Expired.
	Expired int `json:"expired"`
	// Warned counts licenses that got their first expiry warning.
	Warned int `json:"warned"`
	// Skipped counts licenses changed concurrently; the next sweep sees them.
	Skipped   int       `json:"skipped"`
	CheckedAt time.Time `json:"checked_at"`
}

// CheckExpiration moves Active licenses past their expiry to Expired and
// flags those inside the warning window. Each license is expired and warned
// at most once, so repeated sweeps add no transitions or audit entries.
func (m *Manager) CheckExpiration(ctx context.Context) (*SweepResult, error) {
	const op = "license.CheckExpiration"
	now := m.now().UTC()
	horizon := now.Add(m.ExpiryWarning())

	active, err := m.store.ListLicensesByStatus(ctx, model.LicenseStatusActive)
	if err != nil {
		return nil, errs.Storage(op, err)
	}

	res := &SweepResult{CheckedAt: now}
	for i := range active {
		candidate := &active[i]
		res.LicensesChecked++
		switch {
		case candidate.ExpiredAt(now):
			done, err := m.expire(ctx, op, candidate.ID, now)
			if err != nil {
				return res, err
			}
			if done {
				res.Expired++
			} else {
				res.Skipped++
			}
		case candidate.ExpiresAt.Before(horizon):
			res.ExpiringSoon++
			if candidate.ExpiryWarnedAt != nil {
				continue
			}
			done, err := m.warn(ctx, op, candidate.ID, now)
			if err != nil {
				return res, err
			}
			if done {
				res.Warned++
			} else {
				res.Skipped++
			}
		}
	}

	if pruned := m.revoker.Prune(now); pruned > 0 {
		m.logger.Debug("pruned revocation entries", zap.Int("count", pruned))
	}
	m.metrics.LicensesExpired(res.Expired)
	m.logger.Info("expiration sweep finished",
		zap.Int("checked", res.LicensesChecked),
		zap.Int("expiring_soon", res.ExpiringSoon),
		zap.Int("expired", res.Expired),
		zap.Int("skipped", res.Skipped))
	return res, nil
}

// expire re-reads the license under its lock so a concurrent renewal or
// revocation wins. It reports whether this call made the transition.
func (m *Manager) expire(ctx context.Context, op, id string, now time.Time) (bool, error) {
	unlock := m.locks.Lock(id)
	defer unlock()

	l, err := m.load(ctx, op, id)
	if err != nil {
		return false, skipState(err)
	}
	if l.Status != model.LicenseStatusActive || !l.ExpiredAt(now) {
		return false, nil
	}

	l.Status = model.LicenseStatusExpired
	if err := m.save(ctx, op, l); err != nil {
		return false, skipState(err)
	}
	m.record(ctx, audit.LicenseEvent{
		Kind:         audit.EventLicenseExpired,
		LicenseID:    l.ID,
		WorkshopCode: l.WorkshopCode,
		LicenseType:  l.LicenseType,
		ExpiresAt:    l.ExpiresAt,
	})
	return true, nil
}

func (m *Manager) warn(ctx context.Context, op, id string, now time.Time) (bool, error) {
	unlock := m.locks.Lock(id)
	defer unlock()

	l, err := m.load(ctx, op, id)
	if err != nil {
		return false, skipState(err)
	}
	if l.Status != model.LicenseStatusActive || l.ExpiryWarnedAt != nil || l.ExpiredAt(now) {
		return false, nil
	}

	l.ExpiryWarnedAt = &now
	if err := m.save(ctx, op, l); err != nil {
		return false, skipState(err)
	}
	m.record(ctx, audit.LicenseEvent{
		Kind:         audit.EventLicenseExpiringSoon,
		LicenseID:    l.ID,
		WorkshopCode: l.WorkshopCode,
		LicenseType:  l.LicenseType,
		ExpiresAt:    l.ExpiresAt,
	})
	return true, nil
}

// skipState drops state errors, which only mean another writer got there
// first, and keeps infrastructure errors.
func skipState(err error) error {
	var e *errs.Error
	if errors.As(err, &e) && e.Kind() == errs.KindState {
		return nil
	}
	return err
}
