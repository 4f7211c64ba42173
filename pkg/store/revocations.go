package store

import (
	"context"

	"github.com/doodlesbykumbi/licensing-in-go/pkg/model"
)

// RevocationStore persists revoked token entries.
type RevocationStore interface {
	// InsertRevokedToken stores the entry unless one already exists for the
	// jti. It returns the stored entry and whether this call created it.
	InsertRevokedToken(ctx context.Context, entry *model.RevokedToken) (*model.RevokedToken, bool, error)

	RevokedTokenByJTI(ctx context.Context, jti string) (*model.RevokedToken, error)

	// IsRevoked is a primary key existence check.
	IsRevoked(ctx context.Context, jti string) (bool, error)

	CountRevokedTokens(ctx context.Context) (int64, error)
}
