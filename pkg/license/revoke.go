package license

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/doodlesbykumbi/licensing-in-go/pkg/audit"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/model"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/revocation"
)

// Revoke moves a license to Revoked and revokes every token it has carried,
// so outstanding tokens fail validation immediately. Revoking a revoked
// license returns the original effective date with AlreadyRevoked set; its
// tokens are revoked again in case an earlier attempt stopped half way.
func (m *Manager) Revoke(ctx context.Context, id string, req RevokeRequest) (*RevocationResult, error) {
	const op = "license.Revoke"
	if err := check(m.validate, op, req); err != nil {
		return nil, err
	}

	unlock := m.locks.Lock(id)
	defer unlock()

	l, err := m.load(ctx, op, id)
	if err != nil {
		if stateError(err) {
			return nil, m.reject(ctx, "revoke", nil, id, req.Actor, err)
		}
		return nil, err
	}

	jtis := l.TokenIDs()
	for _, jti := range jtis {
		if _, _, err := m.revoker.Revoke(ctx, revocation.Request{
			JTI:             jti,
			Reason:          req.Reason,
			ReasonLocalized: req.ReasonLocalized,
			Actor:           req.Actor,
			WorkshopCode:    l.WorkshopCode,
			LicenseID:       l.ID,
			TokenExpiresAt:  l.ExpiresAt,
		}); err != nil {
			return nil, err
		}
	}

	if l.Status == model.LicenseStatusRevoked {
		effective := l.UpdatedAt
		if l.RevokedAt != nil {
			effective = *l.RevokedAt
		}
		return &RevocationResult{
			LicenseID:               l.ID,
			RevocationEffectiveDate: effective,
			TokensRevoked:           len(jtis),
			AlreadyRevoked:          true,
		}, nil
	}

	now := m.now().UTC().Truncate(time.Second)
	l.Status = model.LicenseStatusRevoked
	l.RevokedAt = &now
	l.RevokedBy = req.Actor
	l.RevocationReason = req.Reason
	if err := m.save(ctx, op, l); err != nil {
		if stateError(err) {
			return nil, m.reject(ctx, "revoke", l, id, req.Actor, err)
		}
		return nil, err
	}

	m.record(ctx, audit.LicenseEvent{
		Kind:          audit.EventLicenseRevoked,
		LicenseID:     l.ID,
		WorkshopCode:  l.WorkshopCode,
		LicenseType:   l.LicenseType,
		By:            req.Actor,
		Reason:        req.Reason,
		TokensRevoked: len(jtis),
	})
	m.metrics.LicenseRevoked(l.LicenseType.String())
	m.logger.Info("license revoked",
		zap.String("license_id", l.ID),
		zap.Int("tokens_revoked", len(jtis)),
		zap.String("actor", req.Actor))

	return &RevocationResult{
		LicenseID:               l.ID,
		RevocationEffectiveDate: now,
		TokensRevoked:           len(jtis),
	}, nil
}
