package license

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doodlesbykumbi/licensing-in-go/pkg/audit"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/errs"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/keystore"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/model"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/revocation"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/signing"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/store"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/store/memory"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/token"
)

var t0 = time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

var (
	keyOnce sync.Once
	rsKey   *signing.Key
)

func sharedKey(t *testing.T) *signing.Key {
	t.Helper()
	keyOnce.Do(func() {
		var err error
		rsKey, err = signing.GenerateKeyPair(signing.RS256, 2048)
		require.NoError(t, err)
	})
	return rsKey
}

type env struct {
	now        time.Time
	store      *memory.Store
	auditStore *memory.Store
	log        *audit.Log
	keys       *keystore.KeyStore
	registry   *revocation.Registry
	validator  *token.Validator
	manager    *Manager
}

func (e *env) clock() time.Time { return e.now }

func newEnv(t *testing.T, activateKey bool) *env {
	t.Helper()
	e := &env{now: t0, store: memory.New(), auditStore: memory.New()}

	// Every audit call gets its own instant so entries list in call order.
	var tick atomic.Int64
	e.log = audit.New(e.auditStore, audit.WithClock(func() time.Time {
		return e.now.Add(time.Duration(tick.Add(1)) * time.Millisecond)
	}))

	e.keys = keystore.New(e.store)
	if activateKey {
		key, err := e.keys.Import(t.Context(), signing.RS256, sharedKey(t).PrivatePEM(), "admin")
		require.NoError(t, err)
		require.NoError(t, e.keys.Activate(t.Context(), key.Fingerprint(), "admin"))
	}

	e.registry = revocation.New(e.store, revocation.WithClock(e.clock))
	e.validator = token.NewValidator(e.keys,
		token.WithRevocations(e.registry),
		token.WithValidatorClock(e.clock))
	issuer := token.NewIssuer(e.keys, token.WithIssuerClock(e.clock))
	e.manager = New(e.store, issuer, e.registry,
		WithAudit(e.log),
		WithClock(e.clock),
		WithHealth(e.store),
		WithKeys(e.keys))
	return e
}

func (e *env) issue(t *testing.T, licenseType string, days int) *IssuanceResult {
	t.Helper()
	res, err := e.manager.Issue(t.Context(), IssueRequest{
		WorkshopCode:        "WS-001",
		BusinessName:        "Al Noor Garage",
		ContactEmail:        "owner@alnoor.example",
		LicenseType:         licenseType,
		DurationDays:        days,
		HardwareFingerprint: "F1",
		Actor:               "admin",
	})
	require.NoError(t, err)
	return res
}

func (e *env) auditCount(t *testing.T, eventType audit.EventType) int64 {
	t.Helper()
	n, err := e.log.Count(t.Context(), store.AuditFilter{EventType: string(eventType)})
	require.NoError(t, err)
	return n
}

func (e *env) validate(t *testing.T, tok string) *token.Result {
	t.Helper()
	res, err := e.validator.Validate(t.Context(), tok, "F1")
	require.NoError(t, err)
	return res
}

func TestIssueDemo(t *testing.T) {
	e := newEnv(t, true)
	res := e.issue(t, "Demo", 30)

	l, err := e.manager.Get(t.Context(), res.LicenseID)
	require.NoError(t, err)
	assert.Equal(t, model.LicenseStatusActive, l.Status)
	assert.Equal(t, l.IssuedAt.Add(30*24*time.Hour), l.ExpiresAt)
	assert.Equal(t, res.ExpiresAt, l.ExpiresAt)
	assert.Equal(t, res.JTI, l.CurrentJTI)
	assert.True(t, l.Bound())
	assert.Equal(t, "admin", l.CreatedBy)

	v := e.validate(t, res.Token)
	require.True(t, v.Valid, v.Message)
	assert.Equal(t, res.LicenseID, v.Claims.LicenseID)
	assert.Equal(t, "Demo", v.Claims.LicenseType)
	assert.EqualValues(t, 1, e.auditCount(t, audit.EventLicenseIssued))
}

func TestIssueDefaults(t *testing.T) {
	e := newEnv(t, true)
	res := e.issue(t, "standard", 0)

	assert.Equal(t, "Standard", res.LicenseType)
	assert.Equal(t, res.IssuedAt.Add(365*24*time.Hour), res.ExpiresAt)
	assert.Equal(t, model.LicenseTypeStandard.DefaultFeatures(), res.FeaturesEnabled)
}

func TestIssueRejectsInvalidRequests(t *testing.T) {
	e := newEnv(t, true)
	valid := IssueRequest{
		WorkshopCode: "WS-001",
		BusinessName: "Garage",
		ContactEmail: "a@b.example",
		LicenseType:  "Trial",
		Actor:        "admin",
	}

	tests := map[string]func(r *IssueRequest){
		"missing business name": func(r *IssueRequest) { r.BusinessName = "" },
		"unreachable contact":   func(r *IssueRequest) { r.ContactEmail = "not-an-email" },
		"unknown license type":  func(r *IssueRequest) { r.LicenseType = "Platinum" },
		"missing actor":         func(r *IssueRequest) { r.Actor = "" },
		"negative duration":     func(r *IssueRequest) { r.DurationDays = -1 },
		"excessive duration":    func(r *IssueRequest) { r.DurationDays = MaxDurationDays + 1 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			req := valid
			mutate(&req)
			_, err := e.manager.Issue(t.Context(), req)
			require.ErrorIs(t, err, errs.ErrInvalidRequest)
			assert.Equal(t, errs.KindInput, errs.KindOf(err))
		})
	}

	counts, err := e.store.CountLicensesByStatus(t.Context())
	require.NoError(t, err)
	assert.Empty(t, counts)
	n, err := e.log.Count(t.Context(), store.AuditFilter{})
	require.NoError(t, err)
	assert.Zero(t, n, "input errors are not audited")
}

func TestIssueWithoutActiveKeyLeavesDraft(t *testing.T) {
	e := newEnv(t, false)
	_, err := e.manager.Issue(t.Context(), IssueRequest{
		WorkshopCode: "WS-001",
		BusinessName: "Garage",
		ContactEmail: "a@b.example",
		LicenseType:  "Demo",
		Actor:        "admin",
	})
	require.ErrorIs(t, err, errs.ErrNoActiveKey)

	counts, err := e.store.CountLicensesByStatus(t.Context())
	require.NoError(t, err)
	assert.Equal(t, map[model.LicenseStatus]int64{model.LicenseStatusDraft: 1}, counts)
	assert.Zero(t, e.auditCount(t, audit.EventLicenseIssued))

	drafts, err := e.manager.List(t.Context(), model.LicenseStatusDraft)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	draft := drafts[0]
	assert.Empty(t, draft.CurrentJTI)
	assert.Equal(t, "admin", draft.CreatedBy)

	_, err = e.manager.Renew(t.Context(), draft.ID, RenewRequest{Actor: "sales"})
	require.ErrorIs(t, err, errs.ErrInvalidTransition)
	_, err = e.manager.Reactivate(t.Context(), draft.ID, RenewRequest{Actor: "sales"})
	require.ErrorIs(t, err, errs.ErrInvalidTransition)

	res, err := e.manager.Revoke(t.Context(), draft.ID, RevokeRequest{Reason: "abandoned", Actor: "admin"})
	require.NoError(t, err)
	assert.Zero(t, res.TokensRevoked)
	l, err := e.manager.Get(t.Context(), draft.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LicenseStatusRevoked, l.Status)
}

func TestIssueActivatesDraft(t *testing.T) {
	e := newEnv(t, true)
	res := e.issue(t, "Standard", 30)

	l, err := e.manager.Get(t.Context(), res.LicenseID)
	require.NoError(t, err)
	assert.Equal(t, model.LicenseStatusActive, l.Status)
	assert.Equal(t, res.JTI, l.CurrentJTI)
	assert.EqualValues(t, 2, l.Version, "created as a draft, then activated")

	drafts, err := e.manager.List(t.Context(), model.LicenseStatusDraft)
	require.NoError(t, err)
	assert.Empty(t, drafts)
}

func TestIssueStorageFailure(t *testing.T) {
	e := newEnv(t, true)
	e.store.FailWith = errors.New("connection reset")

	_, err := e.manager.Issue(t.Context(), IssueRequest{
		WorkshopCode: "WS-002",
		BusinessName: "Garage",
		ContactEmail: "a@b.example",
		LicenseType:  "Demo",
		Actor:        "admin",
	})
	require.ErrorIs(t, err, errs.ErrStorageUnavailable)
	assert.Equal(t, errs.KindInfrastructure, errs.KindOf(err))
	assert.Zero(t, e.auditCount(t, audit.EventLicenseIssued))
}

func TestRenew(t *testing.T) {
	e := newEnv(t, true)
	issued := e.issue(t, "Standard", 365)

	e.now = t0.Add(100 * 24 * time.Hour)
	res, err := e.manager.Renew(t.Context(), issued.LicenseID, RenewRequest{DurationDays: 365, Actor: "sales", Reason: "annual"})
	require.NoError(t, err)
	assert.Equal(t, issued.ExpiresAt, res.PreviousExpiry)
	assert.Equal(t, issued.ExpiresAt.Add(365*24*time.Hour), res.NewExpiryDate)
	assert.NotEqual(t, issued.JTI, res.JTI)

	l, err := e.manager.Get(t.Context(), issued.LicenseID)
	require.NoError(t, err)
	require.Len(t, l.RenewalHistory, 1)
	h := l.RenewalHistory[0]
	assert.Equal(t, "sales", h.RenewedBy)
	assert.Equal(t, issued.JTI, h.PreviousJTI)
	assert.Equal(t, 365, h.DurationDays)
	assert.False(t, h.Reactivation)
	assert.Equal(t, []string{res.JTI, issued.JTI}, l.TokenIDs())

	assert.True(t, e.validate(t, res.Token).Valid)
	assert.True(t, e.validate(t, issued.Token).Valid, "the previous token lives until it expires")
	assert.EqualValues(t, 1, e.auditCount(t, audit.EventLicenseRenewed))
}

func TestRenewRefusals(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		e := newEnv(t, true)
		_, err := e.manager.Renew(t.Context(), "missing", RenewRequest{Actor: "sales"})
		require.ErrorIs(t, err, errs.ErrNotFound)
		assert.EqualValues(t, 1, e.auditCount(t, audit.EventOperationRejected))
	})

	t.Run("revoked", func(t *testing.T) {
		e := newEnv(t, true)
		issued := e.issue(t, "Premium", 30)
		_, err := e.manager.Revoke(t.Context(), issued.LicenseID, RevokeRequest{Reason: "fraud", Actor: "admin"})
		require.NoError(t, err)

		_, err = e.manager.Renew(t.Context(), issued.LicenseID, RenewRequest{Actor: "sales"})
		require.ErrorIs(t, err, errs.ErrLicenseRevoked)

		entries, err := e.log.Query(t.Context(), store.AuditFilter{EventType: string(audit.EventOperationRejected)})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, model.SeverityMedium, entries[0].Severity)
		assert.Equal(t, "sales", entries[0].Actor)
	})

	t.Run("expired needs reactivation", func(t *testing.T) {
		e := newEnv(t, true)
		issued := e.issue(t, "Trial", 30)
		e.now = t0.Add(31 * 24 * time.Hour)

		_, err := e.manager.Renew(t.Context(), issued.LicenseID, RenewRequest{Actor: "sales"})
		require.ErrorIs(t, err, errs.ErrLicenseExpired)
	})

	t.Run("type change", func(t *testing.T) {
		e := newEnv(t, true)
		issued := e.issue(t, "Standard", 30)
		_, err := e.manager.Renew(t.Context(), issued.LicenseID, RenewRequest{LicenseType: "Enterprise", Actor: "sales"})
		require.ErrorIs(t, err, errs.ErrLicenseTypeChange)

		_, err = e.manager.Renew(t.Context(), issued.LicenseID, RenewRequest{LicenseType: "Standard", Actor: "sales"})
		require.NoError(t, err)
	})

	t.Run("missing actor", func(t *testing.T) {
		e := newEnv(t, true)
		issued := e.issue(t, "Standard", 30)
		_, err := e.manager.Renew(t.Context(), issued.LicenseID, RenewRequest{})
		require.ErrorIs(t, err, errs.ErrInvalidRequest)
	})
}

func TestReactivate(t *testing.T) {
	e := newEnv(t, true)
	issued := e.issue(t, "Trial", 30)

	_, err := e.manager.Reactivate(t.Context(), issued.LicenseID, RenewRequest{Actor: "sales"})
	require.ErrorIs(t, err, errs.ErrInvalidTransition, "active licenses are renewed, not reactivated")

	e.now = t0.Add(40 * 24 * time.Hour)
	_, err = e.manager.CheckExpiration(t.Context())
	require.NoError(t, err)
	l, err := e.manager.Get(t.Context(), issued.LicenseID)
	require.NoError(t, err)
	require.Equal(t, model.LicenseStatusExpired, l.Status)

	res, err := e.manager.Reactivate(t.Context(), issued.LicenseID, RenewRequest{DurationDays: 10, Actor: "sales"})
	require.NoError(t, err)
	assert.Equal(t, e.now.Add(10*24*time.Hour), res.NewExpiryDate)

	l, err = e.manager.Get(t.Context(), issued.LicenseID)
	require.NoError(t, err)
	assert.Equal(t, model.LicenseStatusActive, l.Status)
	assert.True(t, l.RenewalHistory[0].Reactivation)
	assert.True(t, e.validate(t, res.Token).Valid)
	assert.Equal(t, errs.CodeExpired, e.validate(t, issued.Token).Code)
	assert.EqualValues(t, 1, e.auditCount(t, audit.EventLicenseReactivated))
}

func TestRevokeInvalidatesTokens(t *testing.T) {
	e := newEnv(t, true)
	issued := e.issue(t, "Standard", 30)
	require.True(t, e.validate(t, issued.Token).Valid)

	res, err := e.manager.Revoke(t.Context(), issued.LicenseID, RevokeRequest{Reason: "chargeback", Actor: "admin"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.TokensRevoked)
	assert.Equal(t, t0, res.RevocationEffectiveDate)

	v := e.validate(t, issued.Token)
	assert.False(t, v.Valid)
	assert.Equal(t, errs.CodeRevoked, v.Code)

	l, err := e.manager.Get(t.Context(), issued.LicenseID)
	require.NoError(t, err)
	assert.Equal(t, model.LicenseStatusRevoked, l.Status)
	assert.Equal(t, "admin", l.RevokedBy)
	assert.Equal(t, "chargeback", l.RevocationReason)

	entry, err := e.registry.Get(t.Context(), issued.JTI)
	require.NoError(t, err)
	assert.Equal(t, issued.LicenseID, entry.LicenseID)
	assert.Equal(t, "WS-001", entry.WorkshopCode)
}

func TestRevokeCoversRenewedTokens(t *testing.T) {
	e := newEnv(t, true)
	issued := e.issue(t, "Standard", 30)
	renewed, err := e.manager.Renew(t.Context(), issued.LicenseID, RenewRequest{DurationDays: 30, Actor: "sales"})
	require.NoError(t, err)

	res, err := e.manager.Revoke(t.Context(), issued.LicenseID, RevokeRequest{Reason: "closed", Actor: "admin"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.TokensRevoked)
	assert.Equal(t, errs.CodeRevoked, e.validate(t, issued.Token).Code)
	assert.Equal(t, errs.CodeRevoked, e.validate(t, renewed.Token).Code)
}

func TestRevokeIsIdempotent(t *testing.T) {
	e := newEnv(t, true)
	issued := e.issue(t, "Standard", 30)

	first, err := e.manager.Revoke(t.Context(), issued.LicenseID, RevokeRequest{Reason: "fraud", Actor: "admin"})
	require.NoError(t, err)

	e.now = t0.Add(time.Hour)
	second, err := e.manager.Revoke(t.Context(), issued.LicenseID, RevokeRequest{Reason: "again", Actor: "admin"})
	require.NoError(t, err)
	assert.True(t, second.AlreadyRevoked)
	assert.Equal(t, first.RevocationEffectiveDate, second.RevocationEffectiveDate)
	assert.EqualValues(t, 1, e.auditCount(t, audit.EventLicenseRevoked))

	entry, err := e.registry.Get(t.Context(), issued.JTI)
	require.NoError(t, err)
	assert.Equal(t, "fraud", entry.Reason, "the first revocation entry is kept")
}

func TestRevokeExpiredLicense(t *testing.T) {
	e := newEnv(t, true)
	issued := e.issue(t, "Trial", 30)

	e.now = t0.Add(31 * 24 * time.Hour)
	_, err := e.manager.CheckExpiration(t.Context())
	require.NoError(t, err)
	l, err := e.manager.Get(t.Context(), issued.LicenseID)
	require.NoError(t, err)
	require.Equal(t, model.LicenseStatusExpired, l.Status)

	res, err := e.manager.Revoke(t.Context(), issued.LicenseID, RevokeRequest{Reason: "chargeback", Actor: "admin"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.TokensRevoked)
	assert.False(t, res.AlreadyRevoked)

	l, err = e.manager.Get(t.Context(), issued.LicenseID)
	require.NoError(t, err)
	assert.Equal(t, model.LicenseStatusRevoked, l.Status)
	revoked, err := e.registry.IsRevoked(t.Context(), issued.JTI)
	require.NoError(t, err)
	assert.True(t, revoked)

	_, err = e.manager.Reactivate(t.Context(), issued.LicenseID, RenewRequest{Actor: "sales"})
	require.ErrorIs(t, err, errs.ErrLicenseRevoked)
}

func TestRevokeRequiresReason(t *testing.T) {
	e := newEnv(t, true)
	issued := e.issue(t, "Standard", 30)
	_, err := e.manager.Revoke(t.Context(), issued.LicenseID, RevokeRequest{Actor: "admin"})
	require.ErrorIs(t, err, errs.ErrInvalidRequest)
}

func TestConcurrentRenewals(t *testing.T) {
	e := newEnv(t, true)
	issued := e.issue(t, "Standard", 30)

	var wg sync.WaitGroup
	errCh := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.manager.Renew(t.Context(), issued.LicenseID, RenewRequest{DurationDays: 1, Actor: "sales"})
			errCh <- err
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		require.NoError(t, err)
	}

	l, err := e.manager.Get(t.Context(), issued.LicenseID)
	require.NoError(t, err)
	assert.Len(t, l.RenewalHistory, 8)
	assert.Equal(t, issued.ExpiresAt.Add(8*24*time.Hour), l.ExpiresAt)
	assert.Zero(t, e.manager.locks.size())
}

func TestConcurrentModificationFromAnotherWriter(t *testing.T) {
	e := newEnv(t, true)
	issued := e.issue(t, "Standard", 30)

	// a second process bumps the version behind this manager's back
	other := New(e.store, token.NewIssuer(e.keys, token.WithIssuerClock(e.clock)), e.registry, WithClock(e.clock))
	stale, err := e.store.GetLicense(t.Context(), issued.LicenseID)
	require.NoError(t, err)
	_, err = other.Renew(t.Context(), issued.LicenseID, RenewRequest{DurationDays: 1, Actor: "other"})
	require.NoError(t, err)

	err = e.manager.save(t.Context(), "test", stale)
	require.ErrorIs(t, err, errs.ErrConcurrentModification)
}
