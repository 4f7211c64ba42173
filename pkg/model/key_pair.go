package model

import "time"

// KeyPair is a stored signing key. PrivateKey holds PEM text that the gorm
// store seals with the data key before it reaches the database; ID is mixed in
// as additional authenticated data so a sealed key cannot be moved between rows.
type KeyPair struct {
	ID          string `gorm:"primaryKey" seal:"aad"`
	Algorithm   string `gorm:"not null"`
	KeySize     int    `gorm:"not null"`
	PublicKey   string `gorm:"not null"`
	PrivateKey  string `gorm:"not null" seal:"encrypted"`
	IsActive    bool   `gorm:"not null"`
	CreatedAt   time.Time
	ActivatedAt *time.Time
	RetiredAt   *time.Time
}

func (KeyPair) TableName() string {
	return "key_pairs"
}
