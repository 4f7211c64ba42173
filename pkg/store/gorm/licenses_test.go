package gorm

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doodlesbykumbi/licensing-in-go/pkg/model"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/store"
)

func testLicense() *model.License {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return &model.License{
		ID:           "lic-1",
		WorkshopCode: "WS-001",
		BusinessName: "Garage",
		LicenseType:  model.LicenseTypeStandard,
		Status:       model.LicenseStatusActive,
		IssuedAt:     now,
		ExpiresAt:    now.AddDate(0, 0, 365),
		CurrentJTI:   "jti-1",
		CreatedBy:    "admin",
	}
}

func TestCreateLicenseStartsAtVersionOne(t *testing.T) {
	s, mock, _ := newMockStore(t)

	mock.ExpectExec(`INSERT INTO "licenses"`).WillReturnResult(sqlmock.NewResult(1, 1))

	l := testLicense()
	require.NoError(t, s.CreateLicense(t.Context(), l))
	assert.EqualValues(t, 1, l.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateLicenseStorageError(t *testing.T) {
	s, mock, _ := newMockStore(t)

	mock.ExpectExec(`INSERT INTO "licenses"`).WillReturnError(errBoom)

	require.ErrorIs(t, s.CreateLicense(t.Context(), testLicense()), errBoom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateLicense(t *testing.T) {
	t.Run("matching version", func(t *testing.T) {
		s, mock, _ := newMockStore(t)

		mock.ExpectExec(`UPDATE "licenses" SET .* WHERE id = \$\d+ AND version = \$\d+`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		l := testLicense()
		l.Version = 3
		require.NoError(t, s.UpdateLicense(t.Context(), l))
		assert.EqualValues(t, 4, l.Version)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stale version", func(t *testing.T) {
		s, mock, _ := newMockStore(t)

		mock.ExpectExec(`UPDATE "licenses" SET .* WHERE id = \$\d+ AND version = \$\d+`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT count\(\*\) FROM "licenses" WHERE id = \$1`).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

		l := testLicense()
		l.Version = 3
		require.ErrorIs(t, s.UpdateLicense(t.Context(), l), store.ErrVersionConflict)
		assert.EqualValues(t, 3, l.Version)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing row", func(t *testing.T) {
		s, mock, _ := newMockStore(t)

		mock.ExpectExec(`UPDATE "licenses" SET .* WHERE id = \$\d+ AND version = \$\d+`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT count\(\*\) FROM "licenses" WHERE id = \$1`).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

		require.ErrorIs(t, s.UpdateLicense(t.Context(), testLicense()), store.ErrNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCountLicensesByStatus(t *testing.T) {
	s, mock, _ := newMockStore(t)

	mock.ExpectQuery(`SELECT status, count\(\*\) AS count FROM "licenses" GROUP BY "status"`).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("Active", 4).
			AddRow("Revoked", 1))

	counts, err := s.CountLicensesByStatus(t.Context())
	require.NoError(t, err)
	assert.EqualValues(t, 4, counts[model.LicenseStatusActive])
	assert.EqualValues(t, 1, counts[model.LicenseStatusRevoked])
	assert.Zero(t, counts[model.LicenseStatusExpired])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCountLicensesExpiringBetween(t *testing.T) {
	s, mock, _ := newMockStore(t)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "licenses" WHERE status = \$1 AND expires_at >= \$2 AND expires_at < \$3`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	now := time.Now()
	n, err := s.CountLicensesExpiringBetween(t.Context(), now, now.AddDate(0, 0, 30))
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	require.NoError(t, mock.ExpectationsWereMet())
}
