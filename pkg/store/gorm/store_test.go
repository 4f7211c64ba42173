package gorm

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/doodlesbykumbi/licensing-in-go/pkg/errs"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/model"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/signing"
)

const testDataKey = "6QrDHLBWYXieY5FM5DlRWRXX/wA8hefCuwMciHQ5ms0="

func newMockStore(t *testing.T, opts ...Option) (*Store, sqlmock.Sqlmock, signing.DataCipher) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 mockDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	require.NoError(t, err)

	cipher, err := signing.NewDataCipherFromBase64(testDataKey)
	require.NoError(t, err)
	require.NoError(t, db.Use(NewSealPlugin(cipher)))

	return NewStore(db, opts...), mock, cipher
}

func TestCheckConnectivity(t *testing.T) {
	s, mock, _ := newMockStore(t)

	mock.ExpectExec(`SELECT 1`).WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, s.CheckConnectivity(t.Context()))

	mock.ExpectExec(`SELECT 1`).WillReturnError(errBoom)
	require.Error(t, s.CheckConnectivity(t.Context()))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHungQueryIsStorageUnavailable(t *testing.T) {
	s, mock, _ := newMockStore(t, WithTimeout(20*time.Millisecond))

	mock.ExpectQuery(`SELECT EXISTS`).
		WillDelayFor(time.Second).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	start := time.Now()
	_, err := s.IsRevoked(t.Context(), "jti-1")
	require.Error(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, errs.CodeStorageUnavailable, errs.CodeOf(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHungAuditAppendIsStorageUnavailable(t *testing.T) {
	s, mock, _ := newMockStore(t, WithTimeout(20*time.Millisecond))

	mock.ExpectExec(`INSERT INTO "audit_entries"`).
		WillDelayFor(time.Second).
		WillReturnResult(sqlmock.NewResult(0, 1))

	created, err := s.AppendAuditEntry(t.Context(), &model.AuditEntry{EventID: "e1", EventType: "license_issued"})
	require.ErrorIs(t, err, errs.ErrStorageUnavailable)
	assert.False(t, created)
}

func TestDriverErrorsPassThrough(t *testing.T) {
	s, mock, _ := newMockStore(t, WithTimeout(time.Second))

	mock.ExpectQuery(`SELECT EXISTS`).WillReturnError(errBoom)
	_, err := s.IsRevoked(t.Context(), "jti-1")
	require.ErrorIs(t, err, errBoom)
	assert.Empty(t, errs.CodeOf(err))
}
