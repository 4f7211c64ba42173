package token

import (
	"context"

	"github.com/doodlesbykumbi/licensing-in-go/pkg/errs"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/signing"
)

// KeyResolver finds signing keys. *keystore.KeyStore implements it.
type KeyResolver interface {
	Active(ctx context.Context, alg signing.Algorithm) (*signing.Key, error)
	ByKid(ctx context.Context, kid string) (*signing.Key, error)
}

// StaticKeys is a fixed set of verification keys indexed by kid, used where
// no key store is reachable.
type StaticKeys map[string]*signing.Key

func (s StaticKeys) Active(_ context.Context, alg signing.Algorithm) (*signing.Key, error) {
	for _, k := range s {
		if k.Algorithm() == alg && k.CanSign() {
			return k, nil
		}
	}
	return nil, errs.New(errs.CodeNoActiveKey, "token.StaticKeys", "no signing key for %s", alg)
}

func (s StaticKeys) ByKid(_ context.Context, kid string) (*signing.Key, error) {
	if k, ok := s[kid]; ok {
		return k, nil
	}
	return nil, errs.New(errs.CodeNotFound, "token.StaticKeys", "key %s not found", kid)
}

// Add indexes keys by fingerprint.
func (s StaticKeys) Add(keys ...*signing.Key) StaticKeys {
	for _, k := range keys {
		s[k.Fingerprint()] = k
	}
	return s
}
