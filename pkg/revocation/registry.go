package revocation

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/doodlesbykumbi/licensing-in-go/pkg/errs"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/model"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/store"
)

// Cache holds revoked ids shared between registry instances.
type Cache interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
	MarkRevoked(ctx context.Context, jti string, ttl time.Duration) error
}

// Request describes one revocation.
type Request struct {
	JTI             string
	Reason          string
	ReasonLocalized string
	Actor           string
	WorkshopCode    string
	LicenseID       string
	// Zero when unknown.
	TokenExpiresAt time.Time
}

type Registry struct {
	store  store.RevocationStore
	cache  Cache
	logger *zap.Logger
	now    func() time.Time

	mu    sync.RWMutex
	local map[string]time.Time

	group singleflight.Group
}

type Option func(*Registry)

func WithCache(c Cache) Option {
	return func(r *Registry) { r.cache = c }
}

func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

func New(s store.RevocationStore, opts ...Option) *Registry {
	r := &Registry{
		store:  s,
		logger: zap.NewNop(),
		now:    time.Now,
		local:  map[string]time.Time{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Revoke records req.JTI as dead. Revoking an id twice is not an error: the
// original entry is returned unchanged and created is false.
func (r *Registry) Revoke(ctx context.Context, req Request) (entry *model.RevokedToken, created bool, err error) {
	const op = "revocation.Revoke"
	if req.JTI == "" {
		return nil, false, errs.New(errs.CodeInvalidRequest, op, "jti is required")
	}
	if req.Actor == "" {
		return nil, false, errs.New(errs.CodeInvalidRequest, op, "actor is required")
	}

	entry, created, err = r.store.InsertRevokedToken(ctx, &model.RevokedToken{
		JTI:             req.JTI,
		Reason:          req.Reason,
		ReasonLocalized: req.ReasonLocalized,
		RevokedAt:       r.now().UTC(),
		RevokedBy:       req.Actor,
		WorkshopCode:    req.WorkshopCode,
		LicenseID:       req.LicenseID,
		TokenExpiresAt:  req.TokenExpiresAt,
	})
	if err != nil {
		return nil, false, errs.Storage(op, err)
	}

	r.remember(ctx, entry.JTI, entry.TokenExpiresAt)
	if created {
		r.logger.Info("token revoked",
			zap.String("jti", entry.JTI),
			zap.String("license_id", entry.LicenseID),
			zap.String("actor", entry.RevokedBy))
	}
	return entry, created, nil
}

// IsRevoked reports whether jti has been revoked.
func (r *Registry) IsRevoked(ctx context.Context, jti string) (bool, error) {
	r.mu.RLock()
	_, ok := r.local[jti]
	r.mu.RUnlock()
	if ok {
		return true, nil
	}

	if r.cache != nil {
		revoked, err := r.cache.IsRevoked(ctx, jti)
		switch {
		case err != nil:
			r.logger.Warn("revocation cache unavailable", zap.Error(err))
		case revoked:
			r.mu.Lock()
			r.local[jti] = time.Time{}
			r.mu.Unlock()
			return true, nil
		}
	}

	v, err, _ := r.group.Do(jti, func() (interface{}, error) {
		return r.store.IsRevoked(ctx, jti)
	})
	if err != nil {
		return false, errs.Storage("revocation.IsRevoked", err)
	}
	revoked := v.(bool)
	if revoked {
		r.remember(ctx, jti, time.Time{})
	}
	return revoked, nil
}

// Get returns the stored entry for jti.
func (r *Registry) Get(ctx context.Context, jti string) (*model.RevokedToken, error) {
	const op = "revocation.Get"
	entry, err := r.store.RevokedTokenByJTI(ctx, jti)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, errs.New(errs.CodeNotFound, op, "token %s is not revoked", jti)
	case err != nil:
		return nil, errs.Storage(op, err)
	}
	return entry, nil
}

func (r *Registry) Count(ctx context.Context) (int64, error) {
	n, err := r.store.CountRevokedTokens(ctx)
	if err != nil {
		return 0, errs.Storage("revocation.Count", err)
	}
	return n, nil
}

// Prune drops in-process entries for tokens that expired before cutoff. The
// store keeps them.
func (r *Registry) Prune(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int
	for jti, exp := range r.local {
		if !exp.IsZero() && exp.Before(cutoff) {
			delete(r.local, jti)
			n++
		}
	}
	return n
}

func (r *Registry) remember(ctx context.Context, jti string, expiresAt time.Time) {
	r.mu.Lock()
	r.local[jti] = expiresAt
	r.mu.Unlock()

	if r.cache == nil {
		return
	}
	var ttl time.Duration
	if !expiresAt.IsZero() {
		ttl = expiresAt.Sub(r.now())
		if ttl <= 0 {
			return
		}
	}
	if err := r.cache.MarkRevoked(ctx, jti, ttl); err != nil {
		r.logger.Warn("revocation cache not updated", zap.String("jti", jti), zap.Error(err))
	}
}
