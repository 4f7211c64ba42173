package offline

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doodlesbykumbi/licensing-in-go/pkg/audit"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/errs"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/model"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/signing"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/store"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/store/memory"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/token"
)

var (
	keyOnce sync.Once
	keys    token.StaticKeys
)

func testKeys(t *testing.T) token.StaticKeys {
	t.Helper()
	keyOnce.Do(func() {
		k, err := signing.GenerateKeyPair(signing.RS256, 2048)
		require.NoError(t, err)
		keys = token.StaticKeys{}.Add(k)
	})
	return keys
}

var t0 = time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func issue(t *testing.T, ttl time.Duration) string {
	t.Helper()
	st, err := token.NewIssuer(testKeys(t)).Issue(t.Context(), token.IssueRequest{
		WorkshopCode:        "WS-7",
		HardwareFingerprint: "fp-7",
		LicenseType:         model.LicenseTypePremium,
		IssuedAt:            t0,
		TTL:                 ttl,
	})
	require.NoError(t, err)
	return st.Token
}

func newValidator(t *testing.T, c *clock, opts ...Option) *Validator {
	online := token.NewValidator(testKeys(t), token.WithValidatorClock(c.Now))
	return NewValidator(Local(online), append([]Option{WithClock(c.Now)}, opts...)...)
}

func TestGracePeriod(t *testing.T) {
	c := &clock{now: t0}
	v := newValidator(t, c)

	s, err := v.Start(t.Context(), issue(t, 30*24*time.Hour), "fp-7")
	require.NoError(t, err)
	assert.Equal(t, "WS-7", s.WorkshopCode)
	assert.Equal(t, DefaultGracePeriod, s.GracePeriod)

	c.now = t0.Add(time.Hour)
	assert.NoError(t, v.ValidateOffline(t.Context(), s))
	assert.Equal(t, 71*time.Hour, s.Remaining(c.now))

	c.now = t0.Add(73 * time.Hour)
	err = v.ValidateOffline(t.Context(), s)
	assert.ErrorIs(t, err, errs.ErrGracePeriodExceeded)
	assert.Zero(t, s.Remaining(c.now))

	c.now = t0.Add(72 * time.Hour)
	assert.ErrorIs(t, v.ValidateOffline(t.Context(), s), errs.ErrGracePeriodExceeded, "the boundary itself is outside the window")
}

func TestClockMovedBackwards(t *testing.T) {
	c := &clock{now: t0}
	v := newValidator(t, c)
	s, err := v.Start(t.Context(), issue(t, time.Hour*24), "fp-7")
	require.NoError(t, err)

	c.now = t0.Add(-time.Minute)
	assert.ErrorIs(t, v.ValidateOffline(t.Context(), s), errs.ErrGracePeriodExceeded)
}

func TestStartRequiresOnlineSuccess(t *testing.T) {
	c := &clock{now: t0}
	v := newValidator(t, c)

	_, err := v.Start(t.Context(), issue(t, time.Hour), "other-machine")
	assert.ErrorIs(t, err, errs.ErrFingerprintMismatch)

	_, err = v.Start(t.Context(), "garbage", "fp-7")
	assert.ErrorIs(t, err, errs.ErrMalformed)
}

func TestRefreshResetsWindow(t *testing.T) {
	c := &clock{now: t0}
	v := newValidator(t, c)
	s, err := v.Start(t.Context(), issue(t, 30*24*time.Hour), "fp-7")
	require.NoError(t, err)

	c.now = t0.Add(70 * time.Hour)
	fresh, err := v.Refresh(t.Context(), s)
	require.NoError(t, err)
	assert.NotEqual(t, s.ID, fresh.ID)

	c.now = t0.Add(100 * time.Hour)
	assert.NoError(t, v.ValidateOffline(t.Context(), fresh))
	assert.Error(t, v.ValidateOffline(t.Context(), s))
}

func TestLocalKeysCheckToken(t *testing.T) {
	c := &clock{now: t0}
	v := newValidator(t, c, WithLocalKeys(testKeys(t)))
	s, err := v.Start(t.Context(), issue(t, 2*time.Hour), "fp-7")
	require.NoError(t, err)

	c.now = t0.Add(time.Hour)
	require.NoError(t, v.ValidateOffline(t.Context(), s))

	// inside the grace window but past the token's own expiry
	c.now = t0.Add(3 * time.Hour)
	assert.ErrorIs(t, v.ValidateOffline(t.Context(), s), errs.ErrExpired)
}

func TestGraceExceededIsAudited(t *testing.T) {
	st := memory.New()
	log := audit.New(st)
	c := &clock{now: t0}
	v := newValidator(t, c, WithAudit(log), WithGracePeriod(time.Hour))

	s, err := v.Start(t.Context(), issue(t, 24*time.Hour), "fp-7")
	require.NoError(t, err)
	c.now = t0.Add(2 * time.Hour)
	require.Error(t, v.ValidateOffline(t.Context(), s))

	entries, err := log.Query(t.Context(), store.AuditFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, string(audit.EventOfflineGraceExceeded), entries[0].EventType)
	assert.Equal(t, model.SeverityHigh, entries[0].Severity)
}

func TestStateFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "session.json")
	f, err := NewStateFile(path, []byte("0123456789abcdef0123"))
	require.NoError(t, err)

	_, err = f.Load()
	assert.ErrorIs(t, err, errs.ErrNotFound)

	c := &clock{now: t0}
	v := newValidator(t, c, WithStateFile(f))
	s, err := v.Start(t.Context(), issue(t, 24*time.Hour), "fp-7")
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	resumed, err := v.Resume()
	require.NoError(t, err)
	assert.Equal(t, s.ID, resumed.ID)
	assert.True(t, s.LastOnlineValidationAt.Equal(resumed.LastOnlineValidationAt))

	t.Run("tampered", func(t *testing.T) {
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		var sealed sealedState
		require.NoError(t, json.Unmarshal(data, &sealed))
		sealed.Session = json.RawMessage(strings.Replace(string(sealed.Session), "2026-05-04", "2026-05-09", 1))
		data, err = json.Marshal(sealed)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(path, data, 0o600))

		_, err = f.Load()
		assert.ErrorIs(t, err, errs.ErrBadSignature)
	})

	t.Run("other key", func(t *testing.T) {
		require.NoError(t, f.Save(s))
		other, err := NewStateFile(path, []byte("another-secret-of-length"))
		require.NoError(t, err)
		_, err = other.Load()
		assert.ErrorIs(t, err, errs.ErrBadSignature)
	})

	require.NoError(t, v.End())
	require.NoError(t, v.End())
	_, err = f.Load()
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestStateFileShortSecret(t *testing.T) {
	_, err := NewStateFile("x", []byte("short"))
	assert.ErrorIs(t, err, errs.ErrInvalidRequest)
}

func TestRemoteValidator(t *testing.T) {
	c := &clock{now: t0}
	online := token.NewValidator(testKeys(t), token.WithValidatorClock(c.Now))
	data, err := token.JWKS([]*signing.Key{firstKey(testKeys(t))})
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/tokens/validate":
			var req validateRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			res, err := online.Validate(r.Context(), req.Token, req.HardwareFingerprint)
			require.NoError(t, err)
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(res)
		case "/.well-known/jwks.json":
			_, _ = w.Write(data)
		default:
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	remote := NewRemoteValidator(srv.URL+"/", srv.Client())
	tok := issue(t, 24*time.Hour)

	res, err := remote.Validate(t.Context(), tok, "fp-7")
	require.NoError(t, err)
	require.True(t, res.Valid)
	assert.Equal(t, "WS-7", res.Claims.WorkshopCode)

	res, err = remote.Validate(t.Context(), tok, "fp-8")
	require.NoError(t, err)
	assert.Equal(t, errs.CodeFingerprintMismatch, res.Code)

	fetched, err := remote.FetchKeys(t.Context())
	require.NoError(t, err)
	assert.Len(t, fetched, 1)

	v := NewValidator(remote, WithClock(c.Now), WithLocalKeys(fetched))
	s, err := v.Start(t.Context(), tok, "fp-7")
	require.NoError(t, err)
	assert.NoError(t, v.ValidateOffline(t.Context(), s))
}

func TestRemoteValidatorUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewRemoteValidator(srv.URL, nil).Validate(t.Context(), "a.b.c", "fp")
	assert.ErrorIs(t, err, errs.ErrStorageUnavailable)

	srv.Close()
	_, err = NewRemoteValidator(srv.URL, nil).Validate(t.Context(), "a.b.c", "fp")
	assert.ErrorIs(t, err, errs.ErrStorageUnavailable)
}

type failingAuthority struct{}

func (failingAuthority) Validate(context.Context, string, string) (*token.Result, error) {
	return nil, errs.Storage("test", errors.New("offline"))
}

func TestStartWhileUnreachable(t *testing.T) {
	_, err := NewValidator(failingAuthority{}).Start(t.Context(), "a.b.c", "fp")
	assert.ErrorIs(t, err, errs.ErrStorageUnavailable)
}

func firstKey(k token.StaticKeys) *signing.Key {
	for _, key := range k {
		return key
	}
	return nil
}
