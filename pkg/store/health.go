package store

import "context"

// HealthStore provides health check operations
type HealthStore interface {
	// CheckConnectivity verifies backend connectivity
	CheckConnectivity(ctx context.Context) error
}

// Store bundles every port. Both adapter packages provide one.
type Store interface {
	KeyPairStore
	LicenseStore
	RevocationStore
	AuditStore
	HealthStore
}
