package audit

import (
	"fmt"
	"time"

	"github.com/doodlesbykumbi/licensing-in-go/pkg/errs"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/model"
)

// LicenseEvent records a lifecycle transition of a license record.
type LicenseEvent struct {
	Kind         EventType
	LicenseID    string
	WorkshopCode string
	LicenseType  model.LicenseType
	By           string
	ExpiresAt    time.Time
	Reason       string
	// Number of tokens revoked alongside the license.
	TokensRevoked int
}

func (e LicenseEvent) Type() EventType {
	return e.Kind
}

func (e LicenseEvent) Message() string {
	switch e.Kind {
	case EventLicenseIssued:
		return fmt.Sprintf("%s issued %s license %s for %s until %s", e.By, e.LicenseType, e.LicenseID, e.WorkshopCode, day(e.ExpiresAt))
	case EventLicenseRenewed:
		return fmt.Sprintf("%s renewed license %s until %s", e.By, e.LicenseID, day(e.ExpiresAt))
	case EventLicenseReactivated:
		return fmt.Sprintf("%s reactivated license %s until %s", e.By, e.LicenseID, day(e.ExpiresAt))
	case EventLicenseRevoked:
		msg := fmt.Sprintf("%s revoked license %s (%d tokens)", e.By, e.LicenseID, e.TokensRevoked)
		if e.Reason != "" {
			msg += ": " + e.Reason
		}
		return msg
	case EventLicenseExpired:
		return fmt.Sprintf("license %s expired on %s", e.LicenseID, day(e.ExpiresAt))
	case EventLicenseExpiringSoon:
		return fmt.Sprintf("license %s expires on %s", e.LicenseID, day(e.ExpiresAt))
	default:
		return fmt.Sprintf("%s %s", e.Kind, e.LicenseID)
	}
}

func (e LicenseEvent) Severity() model.Severity {
	switch e.Kind {
	case EventLicenseRevoked, EventLicenseExpired, EventLicenseReactivated:
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}

func (e LicenseEvent) Actor() string {
	if e.By == "" {
		return SystemActor
	}
	return e.By
}

func (e LicenseEvent) WorkshopID() string {
	return e.WorkshopCode
}

func (e LicenseEvent) StructuredData() map[string]map[string]string {
	sd := map[string]map[string]string{
		SDIDLicense: {
			"id":       e.LicenseID,
			"workshop": e.WorkshopCode,
			"type":     e.LicenseType.String(),
		},
	}
	if !e.ExpiresAt.IsZero() {
		sd[SDIDLicense]["expires_at"] = e.ExpiresAt.UTC().Format(time.RFC3339)
	}
	if e.Reason != "" {
		sd[SDIDAction] = map[string]string{"reason": e.Reason}
	}
	if e.Kind == EventLicenseRevoked {
		if sd[SDIDAction] == nil {
			sd[SDIDAction] = map[string]string{}
		}
		sd[SDIDAction]["tokens_revoked"] = fmt.Sprintf("%d", e.TokensRevoked)
	}
	return sd
}

// RejectedEvent records a license operation refused for a state reason, such
// as renewing a revoked license.
type RejectedEvent struct {
	Operation    string
	Code         errs.Code
	LicenseID    string
	WorkshopCode string
	By           string
	Detail       string
}

func (e RejectedEvent) Type() EventType {
	return EventOperationRejected
}

func (e RejectedEvent) Message() string {
	msg := fmt.Sprintf("%s was refused %s on license %s: %s", e.Actor(), e.Operation, e.LicenseID, e.Code)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e RejectedEvent) Severity() model.Severity {
	switch e.Code {
	case errs.CodeLicenseRevoked, errs.CodeLicenseExpired, errs.CodeConflictingActiveKey, errs.CodeConcurrentModification:
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}

func (e RejectedEvent) Actor() string {
	if e.By == "" {
		return SystemActor
	}
	return e.By
}

func (e RejectedEvent) WorkshopID() string {
	return e.WorkshopCode
}

func (e RejectedEvent) StructuredData() map[string]map[string]string {
	return map[string]map[string]string{
		SDIDLicense: {
			"id":       e.LicenseID,
			"workshop": e.WorkshopCode,
		},
		SDIDAction: {
			"operation": e.Operation,
			"result":    "failure",
			"code":      string(e.Code),
		},
	}
}

func day(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}
