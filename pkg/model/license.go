package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

type License struct {
	ID                    string `gorm:"primaryKey"`
	WorkshopCode          string `gorm:"not null;index"`
	BusinessName          string `gorm:"not null"`
	BusinessNameLocalized string
	ContactEmail          string
	LicenseType           LicenseType    `gorm:"type:text;not null"`
	Status                LicenseStatus  `gorm:"type:text;not null;index"`
	IssuedAt              time.Time      `gorm:"not null"`
	ExpiresAt             time.Time      `gorm:"not null;index"`
	FeaturesEnabled       pq.StringArray `gorm:"type:text[]"`
	RenewalHistory        RenewalHistory `gorm:"type:jsonb"`

	// Binding to a device. Empty when the license has no bound hardware.
	HardwareFingerprint string
	BoundAt             *time.Time

	CurrentJTI       string
	ExpiryWarnedAt   *time.Time
	RevokedAt        *time.Time
	RevokedBy        string
	RevocationReason string
	CreatedBy        string

	Version   int64 `gorm:"not null"`
	UpdatedAt time.Time
}

func (License) TableName() string {
	return "licenses"
}

// Bound reports whether the license carries a hardware binding.
func (l *License) Bound() bool {
	return l.HardwareFingerprint != ""
}

// ExpiredAt reports whether the license term has ended at t, regardless of
// whether a sweep has recorded it yet.
func (l *License) ExpiredAt(t time.Time) bool {
	return !t.Before(l.ExpiresAt)
}

// TokenIDs returns every jti ever issued for the license, current first.
func (l *License) TokenIDs() []string {
	var ids []string
	if l.CurrentJTI != "" {
		ids = append(ids, l.CurrentJTI)
	}
	for i := len(l.RenewalHistory) - 1; i >= 0; i-- {
		if jti := l.RenewalHistory[i].PreviousJTI; jti != "" {
			ids = append(ids, jti)
		}
	}
	return ids
}

// RenewalEvent records one extension of a license term.
type RenewalEvent struct {
	RenewedAt      time.Time `json:"renewed_at"`
	RenewedBy      string    `json:"renewed_by"`
	PreviousExpiry time.Time `json:"previous_expiry"`
	NewExpiry      time.Time `json:"new_expiry"`
	DurationDays   int       `json:"duration_days"`
	PreviousJTI    string    `json:"previous_jti,omitempty"`
	Reactivation   bool      `json:"reactivation,omitempty"`
	Reason         string    `json:"reason,omitempty"`
}

type RenewalHistory []RenewalEvent

func (h RenewalHistory) Value() (driver.Value, error) {
	if h == nil {
		return "[]", nil
	}
	b, err := json.Marshal(h)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (h *RenewalHistory) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*h = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("invalid value of RenewalHistory: %T", value)
	}
	return json.Unmarshal(raw, h)
}
