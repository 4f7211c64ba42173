package offline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/doodlesbykumbi/licensing-in-go/pkg/audit"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/errs"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/token"
)

const DefaultGracePeriod = 72 * time.Hour

// Authority performs online validation. *RemoteValidator implements it; Local
// adapts an in-process *token.Validator.
type Authority interface {
	Validate(ctx context.Context, tok, fingerprint string) (*token.Result, error)
}

type localAuthority struct {
	v *token.Validator
}

func (a localAuthority) Validate(ctx context.Context, tok, fingerprint string) (*token.Result, error) {
	return a.v.Validate(ctx, tok, fingerprint)
}

// Local uses v as the online authority.
func Local(v *token.Validator) Authority {
	return localAuthority{v: v}
}

// Session is the local record of the last successful online validation.
type Session struct {
	ID                     string        `json:"session_id"`
	WorkshopCode           string        `json:"workshop_code"`
	HardwareFingerprint    string        `json:"hardware_fingerprint"`
	Token                  string        `json:"token"`
	LastOnlineValidationAt time.Time     `json:"last_online_validation_at"`
	GracePeriod            time.Duration `json:"grace_period"`
}

// Remaining returns the grace left at now, never negative.
func (s *Session) Remaining(now time.Time) time.Duration {
	left := s.GracePeriod - now.Sub(s.LastOnlineValidationAt)
	if left < 0 || now.Before(s.LastOnlineValidationAt) {
		return 0
	}
	return left
}

type Validator struct {
	authority Authority
	local     *token.Validator
	state     *StateFile
	audit     *audit.Log
	logger    *zap.Logger
	grace     time.Duration
	now       func() time.Time
}

type Option func(*Validator)

func WithGracePeriod(d time.Duration) Option {
	return func(v *Validator) { v.grace = d }
}

// WithLocalKeys makes ValidateOffline also verify the session token's
// signature, expiry and fingerprint against keys, typically loaded from the
// server's JWKS. Revocation cannot be checked offline.
func WithLocalKeys(keys token.KeyResolver) Option {
	return func(v *Validator) {
		v.local = token.NewValidator(keys, token.WithValidatorClock(func() time.Time { return v.now() }))
	}
}

// WithStateFile persists sessions so they survive restarts.
func WithStateFile(f *StateFile) Option {
	return func(v *Validator) { v.state = f }
}

func WithAudit(log *audit.Log) Option {
	return func(v *Validator) { v.audit = log }
}

func WithLogger(logger *zap.Logger) Option {
	return func(v *Validator) { v.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(v *Validator) { v.now = now }
}

func NewValidator(authority Authority, opts ...Option) *Validator {
	v := &Validator{
		authority: authority,
		logger:    zap.NewNop(),
		grace:     DefaultGracePeriod,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Start validates tok online and, on success, opens a session stamped with
// the current time. A failed validation returns its error and no session.
func (v *Validator) Start(ctx context.Context, tok, fingerprint string) (*Session, error) {
	res, err := v.authority.Validate(ctx, tok, fingerprint)
	if err != nil {
		return nil, err
	}
	if !res.Valid {
		return nil, res.Err()
	}

	s := &Session{
		ID:                     uuid.NewString(),
		WorkshopCode:           res.Claims.WorkshopCode,
		HardwareFingerprint:    fingerprint,
		Token:                  tok,
		LastOnlineValidationAt: v.now().UTC(),
		GracePeriod:            v.grace,
	}
	if v.state != nil {
		if err := v.state.Save(s); err != nil {
			return nil, err
		}
	}
	v.logger.Info("offline session started",
		zap.String("session_id", s.ID),
		zap.String("workshop_code", s.WorkshopCode))
	return s, nil
}

// Refresh replaces s with a new session after a fresh online validation. The
// old session is no longer valid once this returns successfully.
func (v *Validator) Refresh(ctx context.Context, s *Session) (*Session, error) {
	return v.Start(ctx, s.Token, s.HardwareFingerprint)
}

// Resume loads the persisted session. It fails with NotFound when none was
// saved.
func (v *Validator) Resume() (*Session, error) {
	if v.state == nil {
		return nil, errs.New(errs.CodeNotFound, "offline.Resume", "no state file configured")
	}
	return v.state.Load()
}

// ValidateOffline reports whether s may still be used without contacting the
// server.
func (v *Validator) ValidateOffline(ctx context.Context, s *Session) error {
	const op = "offline.ValidateOffline"
	now := v.now()
	grace := s.GracePeriod
	if grace <= 0 {
		grace = v.grace
	}

	elapsed := now.Sub(s.LastOnlineValidationAt)
	if elapsed < 0 || elapsed >= grace {
		if v.audit != nil {
			v.audit.LogEvent(ctx, audit.OfflineGraceExceededEvent{
				SessionID:    s.ID,
				WorkshopCode: s.WorkshopCode,
				LastOnline:   s.LastOnlineValidationAt.UTC().Format(time.RFC3339),
				GracePeriod:  grace.String(),
			})
		}
		v.logger.Warn("offline grace period exceeded",
			zap.String("session_id", s.ID),
			zap.Duration("elapsed", elapsed))
		if elapsed < 0 {
			return errs.New(errs.CodeGracePeriodExceeded, op, "clock is earlier than the last online validation")
		}
		return errs.New(errs.CodeGracePeriodExceeded, op, "last online validation was %s ago, grace period is %s", elapsed.Truncate(time.Second), grace)
	}

	if v.local != nil {
		res, err := v.local.Validate(ctx, s.Token, s.HardwareFingerprint)
		if err != nil {
			return err
		}
		if !res.Valid {
			return res.Err()
		}
	}
	return nil
}

// End removes the persisted session.
func (v *Validator) End() error {
	if v.state == nil {
		return nil
	}
	return v.state.Remove()
}
