// Package model defines the persisted records of the licensing service.
//
// Models are plain gorm structs with TableName methods. Enumerations
// (LicenseType, LicenseStatus, Severity) are int enums whose String, JSON and
// SQL methods are generated by enumer; they are stored as their names.
//
// # Records
//
//   - KeyPair: an RSA signing key; private key material is sealed at rest
//   - License: the license record and its state machine fields
//   - RevokedToken: an immutable revocation entry keyed by jti
//   - AuditEntry: an append-only audit event keyed by its content hash
package model
