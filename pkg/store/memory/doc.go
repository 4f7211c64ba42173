// Package memory implements the store interfaces with process-local maps.
//
// It honours the same invariants as the PostgreSQL adapters (single active key
// per algorithm, version checked license updates, idempotent revocation and
// audit inserts) under one mutex, which makes it suitable for development
// servers and unit tests. Records are copied on the way in and out.
package memory
