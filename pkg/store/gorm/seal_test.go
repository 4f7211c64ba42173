package gorm

import (
	"database/sql"
	"database/sql/driver"
	"encoding/base64"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/doodlesbykumbi/licensing-in-go/pkg/signing"
)

type SealSuite struct {
	suite.Suite
	DB     *gorm.DB
	mock   sqlmock.Sqlmock
	cipher signing.DataCipher
}

func (s *SealSuite) SetupTest() {
	var (
		db  *sql.DB
		err error
	)

	db, s.mock, err = sqlmock.New()
	require.NoError(s.T(), err)

	s.DB, err = gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(s.T(), err)

	s.cipher, err = signing.NewDataCipherFromBase64(testDataKey)
	require.NoError(s.T(), err)
	require.NoError(s.T(), s.DB.Use(NewSealPlugin(s.cipher)))
}

func (s *SealSuite) TearDownTest() {
	require.NoError(s.T(), s.mock.ExpectationsWereMet())
}

func TestSealPlugin(t *testing.T) {
	suite.Run(t, new(SealSuite))
}

type sealedRecord struct {
	ID      uint64 `gorm:"primaryKey"`
	Owner   string `seal:"aad"`
	Content string `seal:"encrypted"`
}

type plainRecord struct {
	ID      uint64 `gorm:"primaryKey"`
	Owner   string
	Content string
}

func (s *SealSuite) sealed(aad, value string) string {
	out, err := s.cipher.Encrypt([]byte(aad), []byte(value))
	require.NoError(s.T(), err)
	return base64.StdEncoding.EncodeToString(out)
}

func (s *SealSuite) TestReadPlainRecordsUntouched() {
	s.mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "plain_records"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "owner", "content"}).
			AddRow(1, "kid-1", "visible"))

	var records []plainRecord
	require.NoError(s.T(), s.DB.Find(&records).Error)
	require.Len(s.T(), records, 1)
	assert.Equal(s.T(), "visible", records[0].Content)
}

func (s *SealSuite) TestReadOpensEverySealedRow() {
	s.mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "sealed_records"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "owner", "content"}).
			AddRow(1, "kid-1", s.sealed("kid-1", "first secret")).
			AddRow(2, "kid-2", s.sealed("kid-2", "second secret")))

	var records []sealedRecord
	require.NoError(s.T(), s.DB.Find(&records).Error)
	require.Len(s.T(), records, 2)
	assert.Equal(s.T(), "first secret", records[0].Content)
	assert.Equal(s.T(), "second secret", records[1].Content)
}

func (s *SealSuite) TestReadRejectsCiphertextFromAnotherRow() {
	s.mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "sealed_records"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "owner", "content"}).
			AddRow(1, "kid-1", s.sealed("kid-2", "moved")))

	var record sealedRecord
	err := s.DB.Take(&record).Error
	require.Error(s.T(), err)
	assert.Contains(s.T(), err.Error(), "sealed_records.content")
}

func (s *SealSuite) TestReadRejectsGarbage() {
	s.mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "sealed_records"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "owner", "content"}).
			AddRow(1, "kid-1", "%%% not base64"))

	var record sealedRecord
	require.Error(s.T(), s.DB.Take(&record).Error)
}

func (s *SealSuite) TestWriteSealsAndReopens() {
	s.mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "sealed_records" ("owner","content") VALUES ($1,$2) RETURNING "id"`)).
		WithArgs("kid-1", sealedContent{s: s, aad: "kid-1", want: "top secret"}).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

	record := sealedRecord{Owner: "kid-1", Content: "top secret"}
	require.NoError(s.T(), s.DB.Create(&record).Error)
	assert.Equal(s.T(), uint64(7), record.ID)
	assert.Equal(s.T(), "top secret", record.Content)
}

func (s *SealSuite) TestWriteSkipsEmptyFields() {
	s.mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "sealed_records" ("owner","content") VALUES ($1,$2) RETURNING "id"`)).
		WithArgs("kid-1", "").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(8))

	record := sealedRecord{Owner: "kid-1"}
	require.NoError(s.T(), s.DB.Create(&record).Error)
	assert.Empty(s.T(), record.Content)
}

// sealedContent matches a value that opens to want under aad.
type sealedContent struct {
	s    *SealSuite
	aad  string
	want string
}

func (m sealedContent) Match(v driver.Value) bool {
	str, ok := v.(string)
	if !ok {
		return false
	}
	raw, err := base64.StdEncoding.DecodeString(str)
	if err != nil {
		return false
	}
	plain, err := m.s.cipher.Decrypt([]byte(m.aad), raw)
	return err == nil && string(plain) == m.want
}
