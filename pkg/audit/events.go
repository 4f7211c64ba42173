package audit

import "github.com/doodlesbykumbi/licensing-in-go/pkg/model"

type EventType string

const (
	EventLicenseIssued        EventType = "license_issued"
	EventLicenseRenewed       EventType = "license_renewed"
	EventLicenseReactivated   EventType = "license_reactivated"
	EventLicenseRevoked       EventType = "license_revoked"
	EventLicenseExpired       EventType = "license_expired"
	EventLicenseExpiringSoon  EventType = "license_expiring_soon"
	EventTokenRejected        EventType = "token_rejected"
	EventOperationRejected    EventType = "operation_rejected"
	EventOfflineGraceExceeded EventType = "offline_grace_exceeded"
	EventKeyGenerated         EventType = "key_generated"
	EventKeyActivated         EventType = "key_activated"
	EventKeyRotated           EventType = "key_rotated"
	EventKeyDeactivated       EventType = "key_deactivated"
	EventAuditCleanup         EventType = "audit_cleanup"
)

// SystemActor is recorded for events no caller initiated.
const SystemActor = "system"

// Event is anything that can be audited.
type Event interface {
	Type() EventType
	Severity() model.Severity
	Message() string
	Actor() string
	WorkshopID() string
	StructuredData() map[string]map[string]string
}

// Entry is a free-form event for callers without a dedicated type.
type Entry struct {
	Kind        EventType
	Level       model.Severity
	Description string
	Detail      map[string]string
	ActorID     string
	Workshop    string
}

func (e Entry) Type() EventType          { return e.Kind }
func (e Entry) Severity() model.Severity { return e.Level }
func (e Entry) Message() string          { return e.Description }
func (e Entry) Actor() string            { return e.ActorID }
func (e Entry) WorkshopID() string       { return e.Workshop }

func (e Entry) StructuredData() map[string]map[string]string {
	if len(e.Detail) == 0 {
		return nil
	}
	detail := make(map[string]string, len(e.Detail))
	for k, v := range e.Detail {
		detail[k] = v
	}
	return map[string]map[string]string{SDIDAction: detail}
}
