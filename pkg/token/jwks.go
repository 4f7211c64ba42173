package token

import (
	"crypto/rsa"
	"encoding/json"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"

	"github.com/doodlesbykumbi/licensing-in-go/pkg/errs"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/signing"
)

// JWKS publishes the verification halves of keys as a JSON Web Key Set.
func JWKS(keys []*signing.Key) ([]byte, error) {
	const op = "token.JWKS"
	set := jwk.NewSet()
	for _, k := range keys {
		jk, err := jwk.Import(k.PublicKey())
		if err != nil {
			return nil, errs.Wrap(errs.CodeInvalidKeyMaterial, op, err)
		}
		alg, ok := jwa.LookupSignatureAlgorithm(k.Algorithm().String())
		if !ok {
			return nil, errs.New(errs.CodeUnsupportedAlgorithm, op, "unsupported algorithm %q", k.Algorithm())
		}
		for name, value := range map[string]any{
			jwk.KeyIDKey:     k.Fingerprint(),
			jwk.AlgorithmKey: alg,
			jwk.KeyUsageKey:  jwk.ForSignature,
		} {
			if err := jk.Set(name, value); err != nil {
				return nil, errs.Wrap(errs.CodeInvalidKeyMaterial, op, err)
			}
		}
		if err := set.AddKey(jk); err != nil {
			return nil, errs.Wrap(errs.CodeInvalidKeyMaterial, op, err)
		}
	}
	return json.Marshal(set)
}

// ParseJWKS loads a key set published by JWKS. Every key must carry an RSA
// algorithm and a kid equal to its fingerprint.
func ParseJWKS(data []byte) (StaticKeys, error) {
	const op = "token.ParseJWKS"
	set, err := jwk.Parse(data)
	if err != nil {
		return nil, errs.Wrap(errs.CodeMalformed, op, err)
	}

	keys := StaticKeys{}
	for i := 0; i < set.Len(); i++ {
		jk, _ := set.Key(i)
		kid, _ := jk.KeyID()
		alg, ok := jk.Algorithm()
		if !ok {
			return nil, errs.New(errs.CodeInvalidKeyMaterial, op, "key %q has no algorithm", kid)
		}
		algorithm, err := signing.ParseAlgorithm(alg.String())
		if err != nil {
			return nil, err
		}

		var raw any
		if err := jwk.Export(jk, &raw); err != nil {
			return nil, errs.Wrap(errs.CodeInvalidKeyMaterial, op, err)
		}
		pub, ok := raw.(*rsa.PublicKey)
		if !ok {
			return nil, errs.New(errs.CodeInvalidKeyMaterial, op, "key %q is not RSA", kid)
		}
		key, err := signing.NewPublicKey(algorithm, pub)
		if err != nil {
			return nil, err
		}
		if key.Fingerprint() != kid {
			return nil, errs.New(errs.CodeInvalidKeyMaterial, op, "key id %q does not match its fingerprint", kid)
		}
		keys.Add(key)
	}
	return keys, nil
}
