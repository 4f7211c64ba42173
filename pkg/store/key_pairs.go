package store

import (
	"context"

	"github.com/doodlesbykumbi/licensing-in-go/pkg/model"
)

// KeyPairStore persists signing keys.
type KeyPairStore interface {
	// CreateKeyPair inserts an inactive key pair.
	CreateKeyPair(ctx context.Context, kp *model.KeyPair) error

	// ActivateKeyPair marks a key active in a single atomic step. When replace
	// is false it fails with ErrActiveKeyConflict if another key for the same
	// algorithm is active; when true the previous active key is retired in the
	// same transaction.
	ActivateKeyPair(ctx context.Context, id string, replace bool) error

	// DeactivateKeyPair retires a key. Retired keys still verify.
	DeactivateKeyPair(ctx context.Context, id string) error

	// ActiveKeyPair returns the active key for an algorithm or ErrNotFound.
	ActiveKeyPair(ctx context.Context, algorithm string) (*model.KeyPair, error)

	KeyPairByID(ctx context.Context, id string) (*model.KeyPair, error)

	ListKeyPairs(ctx context.Context) ([]model.KeyPair, error)
}
