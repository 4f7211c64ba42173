// Package gorm provides GORM-based implementations of the store interfaces
// defined in the parent store package.
//
// The adapters expect the schema created by the migrations under db/migrations,
// in particular the partial unique index that allows one active key pair per
// algorithm, and a *gorm.DB opened with TranslateError so unique violations
// surface as gorm.ErrDuplicatedKey.
//
// Fields tagged seal:"encrypted" are sealed with the data key by the plugin
// returned from NewSealPlugin before they are written.
package gorm
