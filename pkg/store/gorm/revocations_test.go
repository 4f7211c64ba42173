package gorm

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doodlesbykumbi/licensing-in-go/pkg/model"
)

var revokedColumns = []string{
	"jti", "reason", "reason_localized", "revoked_at", "revoked_by",
	"workshop_code", "license_id", "token_expires_at",
}

func TestInsertRevokedToken(t *testing.T) {
	first := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("new entry", func(t *testing.T) {
		s, mock, _ := newMockStore(t)

		mock.ExpectExec(`INSERT INTO "revoked_tokens" .* ON CONFLICT \("jti"\) DO NOTHING`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		entry := &model.RevokedToken{JTI: "jti-1", Reason: "fraud", RevokedAt: first, RevokedBy: "admin"}
		got, created, err := s.InsertRevokedToken(t.Context(), entry)
		require.NoError(t, err)
		assert.True(t, created)
		assert.Same(t, entry, got)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("existing entry is returned unchanged", func(t *testing.T) {
		s, mock, _ := newMockStore(t)

		mock.ExpectExec(`INSERT INTO "revoked_tokens" .* ON CONFLICT \("jti"\) DO NOTHING`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT \* FROM "revoked_tokens" WHERE jti = \$1`).
			WillReturnRows(sqlmock.NewRows(revokedColumns).
				AddRow("jti-1", "fraud", "", first, "admin", "WS-001", "lic-1", time.Time{}))

		got, created, err := s.InsertRevokedToken(t.Context(), &model.RevokedToken{
			JTI: "jti-1", Reason: "again", RevokedAt: first.Add(time.Hour), RevokedBy: "other",
		})
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, "fraud", got.Reason)
		assert.True(t, first.Equal(got.RevokedAt))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestIsRevoked(t *testing.T) {
	s, mock, _ := newMockStore(t)

	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM revoked_tokens WHERE jti = \$1\)`).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM revoked_tokens WHERE jti = \$1\)`).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(`SELECT EXISTS`).WillReturnError(errBoom)

	revoked, err := s.IsRevoked(t.Context(), "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = s.IsRevoked(t.Context(), "jti-2")
	require.NoError(t, err)
	assert.False(t, revoked)

	_, err = s.IsRevoked(t.Context(), "jti-3")
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
