// Package store defines the persistence ports of the licensing service.
//
// Components depend on these interfaces, never on a database. Two adapter
// packages implement them:
//
//   - store/gorm: PostgreSQL through gorm, used in production
//   - store/memory: process-local maps, used for development and tests
//
// # Available Stores
//
//   - KeyPairStore: signing keys and the single-active-key invariant
//   - LicenseStore: license records with compare-and-set updates
//   - RevocationStore: revoked token entries keyed by jti
//   - AuditStore: append-only audit entries with retention purge
//   - HealthStore: connectivity probe
//
// # Errors
//
// Adapters report ErrNotFound, ErrVersionConflict and ErrActiveKeyConflict
// for the conditions services branch on. Any other error means the backend
// itself failed.
package store
