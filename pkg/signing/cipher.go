package signing

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

const (
	dataKeySize  = 32
	nonceSize    = 12
	sealedFormat = byte('G')
)

// DataCipher seals small values with AES-256-GCM. The associated data binds a
// ciphertext to the record that owns it.
type DataCipher interface {
	Encrypt(aad, plainText []byte) ([]byte, error)
	Decrypt(aad, sealed []byte) ([]byte, error)
}

type aesCipher struct {
	aead cipher.AEAD
}

// NewDataCipher builds a cipher from a raw 256-bit key.
func NewDataCipher(key []byte) (DataCipher, error) {
	if len(key) != dataKeySize {
		return nil, fmt.Errorf("data key must be %d bytes, got %d", dataKeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &aesCipher{aead: aead}, nil
}

// NewDataCipherFromBase64 decodes a standard base64 data key first.
func NewDataCipherFromBase64(encoded string) (DataCipher, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("bad data key: %w", err)
	}
	return NewDataCipher(key)
}

// Encrypt returns format byte || nonce || ciphertext || tag.
func (c *aesCipher) Encrypt(aad, plainText []byte) ([]byte, error) {
	nonce, err := RandomBytes(nonceSize)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, 1+nonceSize+len(plainText)+c.aead.Overhead())
	out = append(out, sealedFormat)
	out = append(out, nonce...)
	return c.aead.Seal(out, nonce, plainText, aad), nil
}

func (c *aesCipher) Decrypt(aad, sealed []byte) ([]byte, error) {
	if len(sealed) < 1+nonceSize+c.aead.Overhead() {
		return nil, errors.New("sealed value is too short")
	}
	if sealed[0] != sealedFormat {
		return nil, fmt.Errorf("unknown sealed value format %q", sealed[0])
	}
	nonce := sealed[1 : 1+nonceSize]
	return c.aead.Open(nil, nonce, sealed[1+nonceSize:], aad)
}

// RandomBytes reads size bytes from crypto/rand.
func RandomBytes(size int) ([]byte, error) {
	value := make([]byte, size)
	if _, err := io.ReadFull(rand.Reader, value); err != nil {
		return nil, err
	}
	return value, nil
}

// GenerateDataKey returns a fresh base64 encoded 256-bit data key.
func GenerateDataKey() (string, error) {
	key, err := RandomBytes(dataKeySize)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(key), nil
}
