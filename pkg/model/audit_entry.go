package model

import "time"

type AuditEntry struct {
	EventID      string    `gorm:"primaryKey;column:event_id"`
	EventType    string    `gorm:"not null;index"`
	Severity     Severity  `gorm:"type:text;not null"`
	Timestamp    time.Time `gorm:"not null;index"`
	Actor        string    `gorm:"not null"`
	Description  string
	Detail       string `gorm:"type:jsonb"`
	WorkshopCode string `gorm:"index"`
}

func (AuditEntry) TableName() string {
	return "audit_entries"
}
