package audit

import (
	"fmt"

	"github.com/doodlesbykumbi/licensing-in-go/pkg/model"
)

// KeyEvent records a change to the signing keys.
type KeyEvent struct {
	Kind      EventType
	Kid       string
	Algorithm string
	KeySize   int
	By        string
}

func (e KeyEvent) Type() EventType {
	return e.Kind
}

func (e KeyEvent) Message() string {
	switch e.Kind {
	case EventKeyGenerated:
		return fmt.Sprintf("%s generated %d-bit %s key %s", e.Actor(), e.KeySize, e.Algorithm, e.Kid)
	case EventKeyActivated:
		return fmt.Sprintf("%s activated %s key %s", e.Actor(), e.Algorithm, e.Kid)
	case EventKeyRotated:
		return fmt.Sprintf("%s rotated the %s signing key to %s", e.Actor(), e.Algorithm, e.Kid)
	case EventKeyDeactivated:
		return fmt.Sprintf("%s deactivated key %s", e.Actor(), e.Kid)
	default:
		return fmt.Sprintf("%s %s", e.Kind, e.Kid)
	}
}

func (e KeyEvent) Severity() model.Severity {
	if e.Kind == EventKeyGenerated {
		return model.SeverityLow
	}
	return model.SeverityMedium
}

func (e KeyEvent) Actor() string {
	if e.By == "" {
		return SystemActor
	}
	return e.By
}

func (e KeyEvent) WorkshopID() string {
	return ""
}

func (e KeyEvent) StructuredData() map[string]map[string]string {
	sd := map[string]map[string]string{
		SDIDKey: {
			"kid":       e.Kid,
			"algorithm": e.Algorithm,
		},
	}
	if e.KeySize > 0 {
		sd[SDIDKey]["size"] = fmt.Sprintf("%d", e.KeySize)
	}
	return sd
}
