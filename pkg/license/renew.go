package license

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/doodlesbykumbi/licensing-in-go/pkg/audit"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/errs"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/model"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/token"
)

// Renew extends an Active license by req.DurationDays (the type default when
// zero) past its current expiry and mints a new token. The previous token
// stays valid until it expires; its id is kept in the renewal history so a
// later revocation reaches it.
func (m *Manager) Renew(ctx context.Context, id string, req RenewRequest) (*RenewalResult, error) {
	const op = "license.Renew"
	return m.extend(ctx, op, "renew", id, req, false)
}

// Reactivate returns an Expired license to Active with a term starting now.
// It is the only way out of Expired.
func (m *Manager) Reactivate(ctx context.Context, id string, req RenewRequest) (*RenewalResult, error) {
	const op = "license.Reactivate"
	return m.extend(ctx, op, "reactivate", id, req, true)
}

func (m *Manager) extend(ctx context.Context, op, operation, id string, req RenewRequest, reactivate bool) (*RenewalResult, error) {
	if err := check(m.validate, op, req); err != nil {
		return nil, err
	}

	unlock := m.locks.Lock(id)
	defer unlock()

	l, err := m.load(ctx, op, id)
	if err != nil {
		if stateError(err) {
			return nil, m.reject(ctx, operation, nil, id, req.Actor, err)
		}
		return nil, err
	}

	now := m.now().UTC().Truncate(time.Second)
	if err := m.checkExtendable(op, l, now, req, reactivate); err != nil {
		if stateError(err) {
			return nil, m.reject(ctx, operation, l, id, req.Actor, err)
		}
		return nil, err
	}

	days := req.DurationDays
	if days == 0 {
		days = l.LicenseType.DefaultDuration()
	}
	start := l.ExpiresAt
	if reactivate {
		start = now
	}
	newExpiry := start.Add(days24(days))

	signed, err := m.issuer.Issue(ctx, token.IssueRequest{
		WorkshopCode:          l.WorkshopCode,
		HardwareFingerprint:   l.HardwareFingerprint,
		BusinessName:          l.BusinessName,
		BusinessNameLocalized: l.BusinessNameLocalized,
		LicenseType:           l.LicenseType,
		LicenseID:             l.ID,
		Features:              []string(l.FeaturesEnabled),
		IssuedAt:              now,
		TTL:                   newExpiry.Sub(now),
	})
	if err != nil {
		return nil, err
	}

	previous := l.ExpiresAt
	l.RenewalHistory = append(l.RenewalHistory, model.RenewalEvent{
		RenewedAt:      now,
		RenewedBy:      req.Actor,
		PreviousExpiry: previous,
		NewExpiry:      newExpiry,
		DurationDays:   days,
		PreviousJTI:    l.CurrentJTI,
		Reactivation:   reactivate,
		Reason:         req.Reason,
	})
	l.ExpiresAt = newExpiry
	l.CurrentJTI = signed.JTI
	l.Status = model.LicenseStatusActive
	l.ExpiryWarnedAt = nil

	if err := m.save(ctx, op, l); err != nil {
		if stateError(err) {
			return nil, m.reject(ctx, operation, l, id, req.Actor, err)
		}
		return nil, err
	}

	kind := audit.EventLicenseRenewed
	if reactivate {
		kind = audit.EventLicenseReactivated
	}
	m.record(ctx, audit.LicenseEvent{
		Kind:         kind,
		LicenseID:    l.ID,
		WorkshopCode: l.WorkshopCode,
		LicenseType:  l.LicenseType,
		By:           req.Actor,
		ExpiresAt:    newExpiry,
		Reason:       req.Reason,
	})
	m.metrics.LicenseRenewed(l.LicenseType.String())
	m.logger.Info("license extended",
		zap.String("license_id", l.ID),
		zap.Bool("reactivation", reactivate),
		zap.Time("previous_expiry", previous),
		zap.Time("expires_at", newExpiry),
		zap.String("actor", req.Actor))

	return &RenewalResult{
		LicenseID:      l.ID,
		PreviousExpiry: previous,
		NewExpiryDate:  newExpiry,
		Token:          signed.Token,
		JTI:            signed.JTI,
	}, nil
}

func (m *Manager) checkExtendable(op string, l *model.License, now time.Time, req RenewRequest, reactivate bool) error {
	if req.LicenseType != "" {
		t, err := parseLicenseType(op, req.LicenseType)
		if err != nil {
			return err
		}
		if t != l.LicenseType {
			return errs.New(errs.CodeLicenseTypeChange, op, "license %s is %s; renewal cannot change it to %s", l.ID, l.LicenseType, t)
		}
	}

	// An Active license past its expiry is expired even if no sweep has
	// recorded it yet.
	expired := l.Status == model.LicenseStatusExpired ||
		(l.Status == model.LicenseStatusActive && l.ExpiredAt(now))

	switch {
	case l.Status == model.LicenseStatusRevoked:
		return errs.New(errs.CodeLicenseRevoked, op, "license %s is revoked", l.ID)
	case l.Status == model.LicenseStatusDraft:
		return errs.New(errs.CodeInvalidTransition, op, "license %s has not been issued", l.ID)
	case expired && !reactivate:
		return errs.New(errs.CodeLicenseExpired, op, "license %s expired on %s; reactivate it instead", l.ID, l.ExpiresAt.Format(time.DateOnly))
	case !expired && reactivate:
		return errs.New(errs.CodeInvalidTransition, op, "license %s is not expired", l.ID)
	}
	return nil
}
