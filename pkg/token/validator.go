package token

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/doodlesbykumbi/licensing-in-go/pkg/audit"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/errs"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/metrics"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/signing"
)

const (
	DefaultLeeway = 30 * time.Second
	// MaxLeeway caps the clock skew tolerance whatever the configuration says.
	MaxLeeway = 60 * time.Second
)

// RevocationChecker answers whether a jti is dead.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// Result is the outcome of a validation. Exactly one of Claims (when Valid)
// or Code is set.
type Result struct {
	Valid   bool      `json:"valid"`
	Claims  *Claims   `json:"claims,omitempty"`
	Code    errs.Code `json:"code,omitempty"`
	Message string    `json:"message,omitempty"`
}

// Err returns the failure as an *errs.Error, or nil for a valid token.
func (r *Result) Err() error {
	if r.Valid {
		return nil
	}
	return &errs.Error{Code: r.Code, Op: "token.Validate", Message: r.Message}
}

type Validator struct {
	keys        KeyResolver
	revocations RevocationChecker
	audit       *audit.Log
	metrics     *metrics.Metrics
	logger      *zap.Logger
	now         func() time.Time
	leeway      atomic.Int64
}

type ValidatorOption func(*Validator)

// WithRevocations enables the revocation step. Without it the validator only
// checks what the token itself proves.
func WithRevocations(r RevocationChecker) ValidatorOption {
	return func(v *Validator) { v.revocations = r }
}

func WithAudit(log *audit.Log) ValidatorOption {
	return func(v *Validator) { v.audit = log }
}

func WithMetrics(m *metrics.Metrics) ValidatorOption {
	return func(v *Validator) { v.metrics = m }
}

func WithLogger(logger *zap.Logger) ValidatorOption {
	return func(v *Validator) { v.logger = logger }
}

func WithValidatorClock(now func() time.Time) ValidatorOption {
	return func(v *Validator) { v.now = now }
}

func WithLeeway(d time.Duration) ValidatorOption {
	return func(v *Validator) { v.SetLeeway(d) }
}

func NewValidator(keys KeyResolver, opts ...ValidatorOption) *Validator {
	v := &Validator{
		keys:   keys,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	v.leeway.Store(int64(DefaultLeeway))
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// SetLeeway changes the expiry tolerance, clamped to [0, MaxLeeway]. It is
// safe to call while validations run.
func (v *Validator) SetLeeway(d time.Duration) {
	if d < 0 {
		d = 0
	}
	if d > MaxLeeway {
		d = MaxLeeway
	}
	v.leeway.Store(int64(d))
}

func (v *Validator) Leeway() time.Duration {
	return time.Duration(v.leeway.Load())
}

// ValidateOption annotates a validation for auditing.
type ValidateOption func(*validateContext)

type validateContext struct {
	clientIP string
}

func WithClientIP(ip string) ValidateOption {
	return func(c *validateContext) { c.clientIP = ip }
}

// Validate checks token against the presented hardware fingerprint. A failed
// check is reported in the Result; the error is only set when a collaborator
// is unavailable, in which case no decision was made.
func (v *Validator) Validate(ctx context.Context, token, fingerprint string, opts ...ValidateOption) (*Result, error) {
	var vc validateContext
	for _, opt := range opts {
		opt(&vc)
	}

	res, claims, kid, err := v.validate(ctx, token, fingerprint)
	if err != nil {
		v.logger.Warn("token validation unavailable", zap.Error(err))
		return nil, err
	}

	v.metrics.TokenValidated(string(res.Code))
	if !res.Valid && res.Code != errs.CodeMalformed && v.audit != nil {
		event := audit.TokenRejectedEvent{
			Code:     res.Code,
			Kid:      kid,
			ClientIP: vc.clientIP,
			Detail:   res.Message,
		}
		if claims != nil {
			event.JTI = claims.ID
			event.WorkshopCode = claims.WorkshopCode
		}
		v.audit.LogEvent(ctx, event)
	}
	return res, nil
}

func reject(code errs.Code, msg string) *Result {
	return &Result{Code: code, Message: msg}
}

func (v *Validator) validate(ctx context.Context, token, fingerprint string) (*Result, *Claims, string, error) {
	// (a) structure
	parts := strings.Split(token, ".")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return reject(errs.CodeMalformed, "token must have three segments"), nil, "", nil
	}

	claims := &Claims{}
	parser := jwt.NewParser()
	// The signature segment is checked in step (b); a damaged signature is
	// bad_signature, not malformed.
	parsed, _, err := parser.ParseUnverified(parts[0]+"."+parts[1]+".", claims)
	if err != nil && !errors.Is(err, jwt.ErrTokenUnverifiable) {
		return reject(errs.CodeMalformed, "token could not be decoded"), nil, "", nil
	}
	kid, _ := parsed.Header["kid"].(string)
	if kid == "" {
		return reject(errs.CodeMalformed, "token header has no kid"), nil, "", nil
	}
	if claims.ID == "" || claims.ExpiresAt == nil {
		return reject(errs.CodeMalformed, "token has no jti or exp"), nil, kid, nil
	}

	// (b) signature
	alg, _ := parsed.Header["alg"].(string)
	algorithm, err := signing.ParseAlgorithm(alg)
	if err != nil || algorithm.String() != alg {
		return reject(errs.CodeBadSignature, "unsupported signing algorithm"), claims, kid, nil
	}
	key, err := v.keys.ByKid(ctx, kid)
	if err != nil {
		if unavailable(err) {
			return nil, nil, kid, errs.Storage("token.Validate", err)
		}
		return reject(errs.CodeBadSignature, "unknown signing key"), claims, kid, nil
	}
	if key.Algorithm() != algorithm {
		return reject(errs.CodeBadSignature, "algorithm does not match signing key"), claims, kid, nil
	}
	sig, err := base64.RawURLEncoding.Strict().DecodeString(parts[2])
	if err != nil || len(sig) == 0 {
		return reject(errs.CodeBadSignature, "signature could not be decoded"), claims, kid, nil
	}
	method := jwt.GetSigningMethod(alg)
	if err := method.Verify(parts[0]+"."+parts[1], sig, key.PublicKey()); err != nil {
		return reject(errs.CodeBadSignature, "signature verification failed"), claims, kid, nil
	}

	// (c) expiry
	if v.now().After(claims.ExpiresAt.Add(v.Leeway())) {
		return reject(errs.CodeExpired, "token expired at "+claims.ExpiresAt.UTC().Format(time.RFC3339)), claims, kid, nil
	}

	// (d) fingerprint
	if subtle.ConstantTimeCompare([]byte(claims.HardwareFingerprint), []byte(fingerprint)) != 1 {
		return reject(errs.CodeFingerprintMismatch, "hardware fingerprint does not match"), claims, kid, nil
	}

	// (e) revocation
	if v.revocations != nil {
		revoked, err := v.revocations.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, nil, kid, errs.Storage("token.Validate", err)
		}
		if revoked {
			return reject(errs.CodeRevoked, "token has been revoked"), claims, kid, nil
		}
	}

	return &Result{Valid: true, Claims: claims}, claims, kid, nil
}

// unavailable reports whether err means the key could not be looked up, as
// opposed to the key not existing or being unusable.
func unavailable(err error) bool {
	k := errs.KindOf(err)
	return k == errs.KindInfrastructure || k == errs.KindUnknown
}
