package license

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/doodlesbykumbi/licensing-in-go/pkg/audit"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/errs"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/metrics"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/model"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/revocation"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/signing"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/store"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/token"
)

const DefaultExpiryWarning = 30 * 24 * time.Hour

// Issuer signs license tokens. *token.Issuer implements it.
type Issuer interface {
	Issue(ctx context.Context, req token.IssueRequest) (*token.SignedToken, error)
	Algorithm() signing.Algorithm
}

// Revoker records dead token ids. *revocation.Registry implements it.
type Revoker interface {
	Revoke(ctx context.Context, req revocation.Request) (*model.RevokedToken, bool, error)
	Count(ctx context.Context) (int64, error)
	Prune(cutoff time.Time) int
}

// KeyChecker reports the active signing key. *keystore.KeyStore implements it.
type KeyChecker interface {
	Active(ctx context.Context, alg signing.Algorithm) (*signing.Key, error)
}

type Manager struct {
	store    store.LicenseStore
	issuer   Issuer
	revoker  Revoker
	health   store.HealthStore
	keys     KeyChecker
	audit    *audit.Log
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time
	validate *validator.Validate
	warning  atomic.Int64
	locks    keyedMutex
}

type Option func(*Manager)

func WithAudit(log *audit.Log) Option {
	return func(m *Manager) { m.audit = log }
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithHealth lets the dashboard probe storage connectivity.
func WithHealth(h store.HealthStore) Option {
	return func(m *Manager) { m.health = h }
}

// WithKeys lets the dashboard report whether a signing key is active.
func WithKeys(k KeyChecker) Option {
	return func(m *Manager) { m.keys = k }
}

func WithExpiryWarning(d time.Duration) Option {
	return func(m *Manager) { m.SetExpiryWarning(d) }
}

func New(s store.LicenseStore, issuer Issuer, revoker Revoker, opts ...Option) *Manager {
	m := &Manager{
		store:    s,
		issuer:   issuer,
		revoker:  revoker,
		logger:   zap.NewNop(),
		now:      time.Now,
		validate: newValidate(),
	}
	m.warning.Store(int64(DefaultExpiryWarning))
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetExpiryWarning changes how far ahead the sweep flags licenses as
// expiring soon. Safe to call concurrently.
func (m *Manager) SetExpiryWarning(d time.Duration) {
	if d < 0 {
		d = 0
	}
	m.warning.Store(int64(d))
}

func (m *Manager) ExpiryWarning() time.Duration {
	return time.Duration(m.warning.Load())
}

// Issue creates an Active license and its first token. A license whose token
// could not be signed stays a Draft.
func (m *Manager) Issue(ctx context.Context, req IssueRequest) (*IssuanceResult, error) {
	const op = "license.Issue"
	if err := check(m.validate, op, req); err != nil {
		return nil, err
	}
	licenseType, err := parseLicenseType(op, req.LicenseType)
	if err != nil {
		return nil, err
	}

	days := req.DurationDays
	if days == 0 {
		days = licenseType.DefaultDuration()
	}
	features := req.Features
	if len(features) == 0 {
		features = licenseType.DefaultFeatures()
	}

	now := m.now().UTC().Truncate(time.Second)

	// The record exists as a Draft before any token does, so every signed
	// token belongs to a stored license.
	l := &model.License{
		ID:                    uuid.NewString(),
		WorkshopCode:          req.WorkshopCode,
		BusinessName:          req.BusinessName,
		BusinessNameLocalized: req.BusinessNameLocalized,
		ContactEmail:          req.ContactEmail,
		LicenseType:           licenseType,
		Status:                model.LicenseStatusDraft,
		IssuedAt:              now,
		ExpiresAt:             now.Add(days24(days)),
		FeaturesEnabled:       features,
		HardwareFingerprint:   req.HardwareFingerprint,
		CreatedBy:             req.Actor,
	}
	if l.Bound() {
		l.BoundAt = &now
	}
	if err := m.store.CreateLicense(ctx, l); err != nil {
		return nil, errs.Storage(op, err)
	}

	signed, err := m.issuer.Issue(ctx, token.IssueRequest{
		WorkshopCode:          req.WorkshopCode,
		HardwareFingerprint:   req.HardwareFingerprint,
		BusinessName:          req.BusinessName,
		BusinessNameLocalized: req.BusinessNameLocalized,
		LicenseType:           licenseType,
		LicenseID:             l.ID,
		Features:              features,
		IssuedAt:              now,
		TTL:                   days24(days),
	})
	if err != nil {
		m.logger.Warn("license left in draft",
			zap.String("license_id", l.ID),
			zap.String("workshop_code", l.WorkshopCode),
			zap.Error(err))
		return nil, err
	}

	l.Status = model.LicenseStatusActive
	l.IssuedAt = signed.IssuedAt
	l.ExpiresAt = signed.ExpiresAt
	l.CurrentJTI = signed.JTI
	if err := m.save(ctx, op, l); err != nil {
		return nil, err
	}

	m.record(ctx, audit.LicenseEvent{
		Kind:         audit.EventLicenseIssued,
		LicenseID:    l.ID,
		WorkshopCode: l.WorkshopCode,
		LicenseType:  l.LicenseType,
		By:           req.Actor,
		ExpiresAt:    l.ExpiresAt,
	})
	m.metrics.LicenseIssued(l.LicenseType.String())
	m.logger.Info("license issued",
		zap.String("license_id", l.ID),
		zap.String("workshop_code", l.WorkshopCode),
		zap.String("license_type", l.LicenseType.String()),
		zap.Time("expires_at", l.ExpiresAt),
		zap.String("actor", req.Actor))

	return &IssuanceResult{
		LicenseID:       l.ID,
		LicenseType:     l.LicenseType.String(),
		Token:           signed.Token,
		TokenType:       signed.TokenType,
		JTI:             signed.JTI,
		IssuedAt:        l.IssuedAt,
		ExpiresAt:       l.ExpiresAt,
		FeaturesEnabled: []string(l.FeaturesEnabled),
	}, nil
}

// Get returns the license record.
func (m *Manager) Get(ctx context.Context, id string) (*model.License, error) {
	return m.load(ctx, "license.Get", id)
}

// List returns licenses in the given status, soonest expiry first.
func (m *Manager) List(ctx context.Context, status model.LicenseStatus) ([]model.License, error) {
	licenses, err := m.store.ListLicensesByStatus(ctx, status)
	if err != nil {
		return nil, errs.Storage("license.List", err)
	}
	return licenses, nil
}

func (m *Manager) load(ctx context.Context, op, id string) (*model.License, error) {
	if id == "" {
		return nil, errs.New(errs.CodeInvalidRequest, op, "license id is required")
	}
	l, err := m.store.GetLicense(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, errs.New(errs.CodeNotFound, op, "license %s not found", id)
	case err != nil:
		return nil, errs.Storage(op, err)
	}
	return l, nil
}

// save writes l with compare-and-set semantics.
func (m *Manager) save(ctx context.Context, op string, l *model.License) error {
	err := m.store.UpdateLicense(ctx, l)
	switch {
	case errors.Is(err, store.ErrVersionConflict):
		return errs.New(errs.CodeConcurrentModification, op, "license %s was modified concurrently", l.ID)
	case errors.Is(err, store.ErrNotFound):
		return errs.New(errs.CodeNotFound, op, "license %s not found", l.ID)
	case err != nil:
		return errs.Storage(op, err)
	}
	return nil
}

// reject audits a refused state transition and returns err unchanged.
func (m *Manager) reject(ctx context.Context, operation string, l *model.License, id, actor string, err error) error {
	e := audit.RejectedEvent{
		Operation: operation,
		Code:      errs.CodeOf(err),
		LicenseID: id,
		By:        actor,
	}
	if l != nil {
		e.WorkshopCode = l.WorkshopCode
	}
	var ee *errs.Error
	if errors.As(err, &ee) {
		e.Detail = ee.Message
	}
	m.record(ctx, e)
	return err
}

func (m *Manager) record(ctx context.Context, e audit.Event) {
	if m.audit != nil {
		m.audit.LogEvent(ctx, e)
	}
}

// stateError reports whether err is a refusal worth auditing, as opposed to
// an input or infrastructure failure.
func stateError(err error) bool {
	return errs.KindOf(err) == errs.KindState
}

func days24(days int) time.Duration {
	return time.Duration(days) * 24 * time.Hour
}
