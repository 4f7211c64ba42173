package gorm

import (
	"encoding/base64"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"gorm.io/gorm"

	"github.com/doodlesbykumbi/licensing-in-go/pkg/signing"
)

const sealTag = "seal"

type fieldProcessor func(value, aad string) (string, error)

type sealPlugin struct {
	cipher signing.DataCipher
}

// NewSealPlugin returns a gorm plugin that seals string fields tagged
// seal:"encrypted" before create and update and opens them after create and
// query. Fields tagged seal:"aad" are concatenated, in sorted order, into the
// associated data.
func NewSealPlugin(cipher signing.DataCipher) gorm.Plugin {
	return sealPlugin{cipher: cipher}
}

func (p sealPlugin) Name() string {
	return "seal"
}

func (p sealPlugin) Initialize(db *gorm.DB) error {
	if err := db.Callback().Create().Before("gorm:create").Register("seal:before_create", p.sealFields); err != nil {
		return err
	}
	if err := db.Callback().Create().After("gorm:create").Register("seal:after_create", p.openFields); err != nil {
		return err
	}
	if err := db.Callback().Update().Before("gorm:update").Register("seal:before_update", p.sealFields); err != nil {
		return err
	}
	return db.Callback().Query().After("gorm:query").Register("seal:after_query", p.openFields)
}

func (p sealPlugin) seal(value, aad string) (string, error) {
	sealed, err := p.cipher.Encrypt([]byte(aad), []byte(value))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (p sealPlugin) open(value, aad string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return "", fmt.Errorf("sealed field is not base64: %w", err)
	}
	plain, err := p.cipher.Decrypt([]byte(aad), raw)
	if err != nil {
		return "", fmt.Errorf("unable to open sealed field: %w", err)
	}
	return string(plain), nil
}

func (p sealPlugin) sealFields(db *gorm.DB) {
	p.process(db, p.seal)
}

func (p sealPlugin) openFields(db *gorm.DB) {
	if db.Error != nil {
		return
	}
	p.process(db, p.open)
}

func (p sealPlugin) process(db *gorm.DB, fn fieldProcessor) {
	if db.Statement.Schema == nil {
		return
	}
	switch db.Statement.ReflectValue.Kind() {
	case reflect.Struct:
		p.processFields(db, db.Statement.ReflectValue, fn)
	case reflect.Slice, reflect.Array:
		for i := 0; i < db.Statement.ReflectValue.Len(); i++ {
			p.processFields(db, db.Statement.ReflectValue.Index(i), fn)
		}
	}
}

func (p sealPlugin) processFields(db *gorm.DB, rv reflect.Value, fn fieldProcessor) {
	ctx := db.Statement.Context
	aad := additionalData(db, rv)
	for _, field := range db.Statement.Schema.Fields {
		if field.Tag.Get(sealTag) != "encrypted" || field.FieldType.Kind() != reflect.String {
			continue
		}
		value, isZero := field.ValueOf(ctx, rv)
		if isZero {
			continue
		}
		result, err := fn(value.(string), aad)
		if err != nil {
			_ = db.AddError(fmt.Errorf("%s.%s: %w", db.Statement.Schema.Table, field.DBName, err))
			return
		}
		if err := field.Set(ctx, rv, result); err != nil {
			_ = db.AddError(err)
			return
		}
	}
}

func additionalData(db *gorm.DB, rv reflect.Value) string {
	var parts []string
	for _, field := range db.Statement.Schema.Fields {
		if field.Tag.Get(sealTag) != "aad" || field.FieldType.Kind() != reflect.String {
			continue
		}
		if value, isZero := field.ValueOf(db.Statement.Context, rv); !isZero {
			parts = append(parts, value.(string))
		}
	}
	sort.Strings(parts)
	return strings.Join(parts, "")
}
