package signing

import (
	"crypto"
	"strings"

	"github.com/doodlesbykumbi/licensing-in-go/pkg/errs"
)

// Algorithm names a signing scheme in JOSE terms.
type Algorithm string

const (
	RS256 Algorithm = "RS256"
	RS384 Algorithm = "RS384"
	RS512 Algorithm = "RS512"
)

// MinKeySize is the smallest RSA modulus accepted for signing.
const MinKeySize = 2048

// Algorithms lists every supported scheme.
var Algorithms = []Algorithm{RS256, RS384, RS512}

// ParseAlgorithm accepts an algorithm name case-insensitively.
func ParseAlgorithm(name string) (Algorithm, error) {
	alg := Algorithm(strings.ToUpper(strings.TrimSpace(name)))
	if !alg.Valid() {
		return "", errs.New(errs.CodeUnsupportedAlgorithm, "signing.ParseAlgorithm", "unsupported algorithm %q", name)
	}
	return alg, nil
}

func (a Algorithm) Valid() bool {
	switch a {
	case RS256, RS384, RS512:
		return true
	}
	return false
}

// Hash returns the digest used with the scheme.
func (a Algorithm) Hash() crypto.Hash {
	switch a {
	case RS384:
		return crypto.SHA384
	case RS512:
		return crypto.SHA512
	default:
		return crypto.SHA256
	}
}

func (a Algorithm) String() string {
	return string(a)
}
