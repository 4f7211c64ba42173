package token

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/doodlesbykumbi/licensing-in-go/pkg/errs"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/model"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/signing"
)

// IssueRequest holds the claims of a new token.
type IssueRequest struct {
	WorkshopCode          string
	HardwareFingerprint   string
	BusinessName          string
	BusinessNameLocalized string
	LicenseType           model.LicenseType
	LicenseID             string
	Features              []string
	IssuedAt              time.Time
	TTL                   time.Duration
}

// SignedToken is a minted token plus the metadata callers need without
// decoding it.
type SignedToken struct {
	Token     string
	JTI       string
	Kid       string
	TokenType string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Claims    *Claims
}

type Issuer struct {
	keys      KeyResolver
	algorithm signing.Algorithm
	issuer    string
	now       func() time.Time
}

type IssuerOption func(*Issuer)

func WithAlgorithm(alg signing.Algorithm) IssuerOption {
	return func(i *Issuer) { i.algorithm = alg }
}

func WithIssuerName(name string) IssuerOption {
	return func(i *Issuer) { i.issuer = name }
}

func WithIssuerClock(now func() time.Time) IssuerOption {
	return func(i *Issuer) { i.now = now }
}

func NewIssuer(keys KeyResolver, opts ...IssuerOption) *Issuer {
	i := &Issuer{
		keys:      keys,
		algorithm: signing.RS256,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

func (i *Issuer) Algorithm() signing.Algorithm {
	return i.algorithm
}

// Issue signs a token with the active key for the configured algorithm. It
// fails with NoActiveKey when there is none. A zero req.IssuedAt means now.
func (i *Issuer) Issue(ctx context.Context, req IssueRequest) (*SignedToken, error) {
	const op = "token.Issue"
	if req.TTL <= 0 {
		return nil, errs.New(errs.CodeInvalidRequest, op, "ttl must be positive")
	}

	key, err := i.keys.Active(ctx, i.algorithm)
	if err != nil {
		return nil, err
	}

	issuedAt := req.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = i.now()
	}
	issuedAt = issuedAt.UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(req.TTL)
	jti := uuid.NewString()

	claims := &Claims{
		WorkshopCode:          req.WorkshopCode,
		HardwareFingerprint:   req.HardwareFingerprint,
		BusinessName:          req.BusinessName,
		BusinessNameLocalized: req.BusinessNameLocalized,
		TokenType:             TypeLicense,
		LicenseType:           req.LicenseType.String(),
		LicenseID:             req.LicenseID,
		Features:              req.Features,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    i.issuer,
			Subject:   req.WorkshopCode,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	t := jwt.NewWithClaims(jwt.GetSigningMethod(key.Algorithm().String()), claims)
	t.Header["kid"] = key.Fingerprint()

	signed, err := t.SignedString(key.PrivateKey())
	if err != nil {
		return nil, errs.Wrap(errs.CodeInvalidKeyMaterial, op, err)
	}

	return &SignedToken{
		Token:     signed,
		JTI:       jti,
		Kid:       key.Fingerprint(),
		TokenType: TypeLicense,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
		Claims:    claims,
	}, nil
}
