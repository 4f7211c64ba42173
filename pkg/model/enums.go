package model

//go:generate go run github.com/dmarkham/enumer -type LicenseType -trimprefix LicenseType -json -sql -output license_type.gen.go
//go:generate go run github.com/dmarkham/enumer -type LicenseStatus -trimprefix LicenseStatus -json -sql -output license_status.gen.go
//go:generate go run github.com/dmarkham/enumer -type Severity -trimprefix Severity -json -sql -output severity.gen.go

type LicenseType int

const (
	LicenseTypeDemo LicenseType = iota
	LicenseTypeTrial
	LicenseTypeStandard
	LicenseTypePremium
	LicenseTypeEnterprise
)

// DefaultDuration is the term granted when an issuance request omits one.
func (t LicenseType) DefaultDuration() int {
	switch t {
	case LicenseTypeDemo, LicenseTypeTrial:
		return 30
	case LicenseTypeEnterprise:
		return 1095
	default:
		return 365
	}
}

// DefaultFeatures is the capability set granted when an issuance request
// omits one.
func (t LicenseType) DefaultFeatures() []string {
	switch t {
	case LicenseTypeDemo:
		return []string{"core"}
	case LicenseTypeTrial:
		return []string{"core", "reports"}
	case LicenseTypeStandard:
		return []string{"core", "reports", "invoicing"}
	case LicenseTypePremium:
		return []string{"core", "reports", "invoicing", "multi_user", "offline"}
	default:
		return []string{"core", "reports", "invoicing", "multi_user", "offline", "api_access", "priority_support"}
	}
}

// LicenseStatus is the lifecycle state of a license record.
//
//	Draft -> Active -> {Active (renewal), Expired, Revoked}
//	Draft -> Revoked
//	Expired -> Active (explicit reactivation only)
//	Expired -> Revoked
type LicenseStatus int

const (
	LicenseStatusDraft LicenseStatus = iota
	LicenseStatusActive
	LicenseStatusExpired
	LicenseStatusRevoked
)

type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

// Alerting reports whether events of this severity are dispatched as alerts.
func (s Severity) Alerting() bool {
	return s >= SeverityHigh
}
