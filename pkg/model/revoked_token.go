package model

import "time"

// RevokedToken marks a single token dead. Rows are written once and never
// updated.
type RevokedToken struct {
	JTI             string `gorm:"primaryKey;column:jti"`
	Reason          string `gorm:"not null"`
	ReasonLocalized string
	RevokedAt       time.Time `gorm:"not null"`
	RevokedBy       string    `gorm:"not null"`
	WorkshopCode    string    `gorm:"index"`
	LicenseID       string    `gorm:"index"`
	// Zero when unknown. Entries past this instant no longer need caching.
	TokenExpiresAt time.Time
}

func (RevokedToken) TableName() string {
	return "revoked_tokens"
}
