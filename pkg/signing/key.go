package signing

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"

	"github.com/doodlesbykumbi/licensing-in-go/pkg/errs"
)

const (
	pemRSAPrivateKey = "RSA PRIVATE KEY"
	pemPrivateKey    = "PRIVATE KEY"
	pemPublicKey     = "PUBLIC KEY"
)

// Key is an RSA key bound to one signing algorithm. A Key built from public
// material only can verify but not sign.
type Key struct {
	algorithm   Algorithm
	privateKey  *rsa.PrivateKey
	publicKey   *rsa.PublicKey
	fingerprint string
}

// GenerateKeyPair creates a fresh key. Nothing is persisted.
func GenerateKeyPair(alg Algorithm, bits int) (*Key, error) {
	const op = "signing.GenerateKeyPair"
	if !alg.Valid() {
		return nil, errs.New(errs.CodeUnsupportedAlgorithm, op, "unsupported algorithm %q", alg)
	}
	if bits < MinKeySize {
		return nil, errs.New(errs.CodeWeakKey, op, "key size %d is below the %d bit minimum", bits, MinKeySize)
	}

	pkey, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, err
	}
	return newKey(alg, pkey, &pkey.PublicKey)
}

// ParsePrivateKeyPEM loads a PKCS#1 or PKCS#8 RSA private key.
func ParsePrivateKeyPEM(alg Algorithm, data []byte) (*Key, error) {
	const op = "signing.ParsePrivateKeyPEM"
	if !alg.Valid() {
		return nil, errs.New(errs.CodeUnsupportedAlgorithm, op, "unsupported algorithm %q", alg)
	}
	block, err := ValidatePEM(data, pemRSAPrivateKey, pemPrivateKey)
	if err != nil {
		return nil, err
	}

	var pkey *rsa.PrivateKey
	switch block.Type {
	case pemRSAPrivateKey:
		pkey, err = x509.ParsePKCS1PrivateKey(block.Bytes)
	default:
		var parsed any
		parsed, err = x509.ParsePKCS8PrivateKey(block.Bytes)
		if err == nil {
			var ok bool
			if pkey, ok = parsed.(*rsa.PrivateKey); !ok {
				return nil, errs.New(errs.CodeInvalidKeyMaterial, op, "private key is not RSA")
			}
		}
	}
	if err != nil {
		return nil, errs.Wrap(errs.CodeInvalidKeyMaterial, op, err)
	}
	if pkey.N.BitLen() < MinKeySize {
		return nil, errs.New(errs.CodeWeakKey, op, "key size %d is below the %d bit minimum", pkey.N.BitLen(), MinKeySize)
	}
	return newKey(alg, pkey, &pkey.PublicKey)
}

// ParsePublicKeyPEM loads a PKIX RSA public key for verification only.
func ParsePublicKeyPEM(alg Algorithm, data []byte) (*Key, error) {
	const op = "signing.ParsePublicKeyPEM"
	if !alg.Valid() {
		return nil, errs.New(errs.CodeUnsupportedAlgorithm, op, "unsupported algorithm %q", alg)
	}
	block, err := ValidatePEM(data, pemPublicKey)
	if err != nil {
		return nil, err
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, errs.Wrap(errs.CodeInvalidKeyMaterial, op, err)
	}
	pub, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, errs.New(errs.CodeInvalidKeyMaterial, op, "public key is not RSA")
	}
	return newKey(alg, nil, pub)
}

func newKey(alg Algorithm, priv *rsa.PrivateKey, pub *rsa.PublicKey) (*Key, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(der)
	return &Key{
		algorithm:   alg,
		privateKey:  priv,
		publicKey:   pub,
		fingerprint: hex.EncodeToString(sum[:]),
	}, nil
}

func (k *Key) Algorithm() Algorithm {
	return k.algorithm
}

// Size returns the modulus length in bits.
func (k *Key) Size() int {
	return k.publicKey.N.BitLen()
}

// Fingerprint is the hex SHA-256 of the PKIX public key and doubles as the
// token kid.
func (k *Key) Fingerprint() string {
	return k.fingerprint
}

func (k *Key) CanSign() bool {
	return k.privateKey != nil
}

func (k *Key) PrivateKey() *rsa.PrivateKey {
	return k.privateKey
}

func (k *Key) PublicKey() *rsa.PublicKey {
	return k.publicKey
}

// PrivatePEM returns the PKCS#1 encoding, or nil for verify-only keys.
func (k *Key) PrivatePEM() []byte {
	if k.privateKey == nil {
		return nil
	}
	return pem.EncodeToMemory(&pem.Block{
		Type:  pemRSAPrivateKey,
		Bytes: x509.MarshalPKCS1PrivateKey(k.privateKey),
	})
}

func (k *Key) PublicPEM() []byte {
	der, err := x509.MarshalPKIXPublicKey(k.publicKey)
	if err != nil {
		panic(err)
	}
	return pem.EncodeToMemory(&pem.Block{
		Type:  pemPublicKey,
		Bytes: der,
	})
}

// NewPublicKey wraps an RSA public key for verification only.
func NewPublicKey(alg Algorithm, pub *rsa.PublicKey) (*Key, error) {
	const op = "signing.NewPublicKey"
	if !alg.Valid() {
		return nil, errs.New(errs.CodeUnsupportedAlgorithm, op, "unsupported algorithm %q", alg)
	}
	if pub == nil || pub.N == nil {
		return nil, errs.New(errs.CodeInvalidKeyMaterial, op, "missing public key")
	}
	if pub.N.BitLen() < MinKeySize {
		return nil, errs.New(errs.CodeWeakKey, op, "key size %d is below the %d bit minimum", pub.N.BitLen(), MinKeySize)
	}
	return newKey(alg, nil, pub)
}
