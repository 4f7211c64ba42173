package audit

import (
	"fmt"

	"github.com/doodlesbykumbi/licensing-in-go/pkg/errs"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/model"
)

// TokenRejectedEvent records a token that failed validation.
type TokenRejectedEvent struct {
	Code         errs.Code
	JTI          string
	Kid          string
	WorkshopCode string
	ClientIP     string
	Detail       string
}

func (e TokenRejectedEvent) Type() EventType {
	return EventTokenRejected
}

func (e TokenRejectedEvent) Message() string {
	subject := "token"
	if e.JTI != "" {
		subject = "token " + e.JTI
	}
	msg := fmt.Sprintf("%s rejected: %s", subject, e.Code)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Severity follows the token failure: presenting a revoked token is Critical,
// other security failures are High and an expired token is Low.
func (e TokenRejectedEvent) Severity() model.Severity {
	switch e.Code {
	case errs.CodeRevoked:
		return model.SeverityCritical
	case errs.CodeBadSignature, errs.CodeFingerprintMismatch, errs.CodeGracePeriodExceeded:
		return model.SeverityHigh
	case errs.CodeExpired:
		return model.SeverityLow
	default:
		return model.SeverityMedium
	}
}

func (e TokenRejectedEvent) Actor() string {
	return SystemActor
}

func (e TokenRejectedEvent) WorkshopID() string {
	return e.WorkshopCode
}

func (e TokenRejectedEvent) StructuredData() map[string]map[string]string {
	sd := map[string]map[string]string{
		SDIDToken: {
			"jti": e.JTI,
			"kid": e.Kid,
		},
		SDIDAction: {
			"operation": "validate",
			"result":    "failure",
			"code":      string(e.Code),
		},
	}
	if e.ClientIP != "" {
		sd[SDIDAction]["client_ip"] = e.ClientIP
	}
	return sd
}

// OfflineGraceExceededEvent records a client that stayed offline past its
// grace period.
type OfflineGraceExceededEvent struct {
	SessionID    string
	WorkshopCode string
	LastOnline   string
	GracePeriod  string
}

func (e OfflineGraceExceededEvent) Type() EventType {
	return EventOfflineGraceExceeded
}

func (e OfflineGraceExceededEvent) Message() string {
	return fmt.Sprintf("offline session %s exceeded its %s grace period (last online %s)", e.SessionID, e.GracePeriod, e.LastOnline)
}

func (e OfflineGraceExceededEvent) Severity() model.Severity {
	return model.SeverityHigh
}

func (e OfflineGraceExceededEvent) Actor() string {
	return SystemActor
}

func (e OfflineGraceExceededEvent) WorkshopID() string {
	return e.WorkshopCode
}

func (e OfflineGraceExceededEvent) StructuredData() map[string]map[string]string {
	return map[string]map[string]string{
		SDIDAction: {
			"operation":    "validate-offline",
			"result":       "failure",
			"session":      e.SessionID,
			"last_online":  e.LastOnline,
			"grace_period": e.GracePeriod,
		},
	}
}
