package audit

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/doodlesbykumbi/licensing-in-go/pkg/model"
)

// SDID constants for structured data IDs (RFC5424). 32473 is the
// documentation enterprise number from RFC 5612.
const (
	PEN         = 32473
	SDIDEvent   = "event@32473"
	SDIDActor   = "actor@32473"
	SDIDLicense = "license@32473"
	SDIDToken   = "token@32473"
	SDIDKey     = "key@32473"
	SDIDAction  = "action@32473"
)

// FacilityAuthPriv is LOG_AUTHPRIV, used for every licensing event.
const FacilityAuthPriv = 10

// syslog severities (RFC5424 section 6.2.1)
const (
	syslogCritical = 2
	syslogWarning  = 4
	syslogNotice   = 5
	syslogInfo     = 6
)

func syslogSeverity(s model.Severity) int {
	switch s {
	case model.SeverityCritical:
		return syslogCritical
	case model.SeverityHigh:
		return syslogWarning
	case model.SeverityMedium:
		return syslogNotice
	default:
		return syslogInfo
	}
}

// Writer formats events as RFC5424 syslog lines.
type Writer struct {
	mu       sync.Mutex
	writer   io.Writer
	hostname string
	appName  string
	pid      int
}

// NewWriter creates a writer; a nil w discards output.
func NewWriter(w io.Writer) *Writer {
	if w == nil {
		w = io.Discard
	}
	hostname, _ := os.Hostname()
	return &Writer{
		writer:   w,
		hostname: hostname,
		appName:  "licensing",
		pid:      os.Getpid(),
	}
}

// Write emits one line.
// Format: <PRI>VERSION TIMESTAMP HOSTNAME APP-NAME PROCID MSGID SD MSG
func (w *Writer) Write(event Event, eventID string, ts time.Time) {
	pri := FacilityAuthPriv*8 + syslogSeverity(event.Severity())

	sdata := event.StructuredData()
	if sdata == nil {
		sdata = map[string]map[string]string{}
	}
	sdata[SDIDEvent] = map[string]string{
		"id":       eventID,
		"severity": event.Severity().String(),
	}
	if actor := event.Actor(); actor != "" {
		sdata[SDIDActor] = map[string]string{"id": actor}
	}

	hostname := w.hostname
	if hostname == "" {
		hostname = "-"
	}

	line := fmt.Sprintf("<%d>1 %s %s %s %d %s %s %s\n",
		pri,
		ts.UTC().Format("2006-01-02T15:04:05.000000Z"),
		hostname,
		w.appName,
		w.pid,
		event.Type(),
		formatStructuredData(sdata),
		escapeLineBreaks(event.Message()),
	)

	w.mu.Lock()
	defer w.mu.Unlock()
	_, _ = io.WriteString(w.writer, line)
}

// formatStructuredData renders [sdid k="v" ...] blocks with ids and params in
// sorted order, or "-" when there is nothing to render.
func formatStructuredData(sd map[string]map[string]string) string {
	if len(sd) == 0 {
		return "-"
	}

	ids := make([]string, 0, len(sd))
	for id := range sd {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var b strings.Builder
	for _, id := range ids {
		params := sd[id]
		keys := make([]string, 0, len(params))
		for k := range params {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		b.WriteString("[")
		b.WriteString(id)
		for _, k := range keys {
			b.WriteString(" ")
			b.WriteString(k)
			b.WriteString("=")
			b.WriteString(escapeSDValue(params[k]))
		}
		b.WriteString("]")
	}
	return b.String()
}

// escapeSDValue escapes special characters in structured data values per RFC5424
func escapeSDValue(value string) string {
	value = strings.ReplaceAll(value, "\\", "\\\\")
	value = strings.ReplaceAll(value, "\"", "\\\"")
	value = strings.ReplaceAll(value, "]", "\\]")
	return "\"" + escapeLineBreaks(value) + "\""
}

var lineBreaks = strings.NewReplacer("\r", `\r`, "\n", `\n`)

// escapeLineBreaks keeps caller text on one line so it cannot start a record
// of its own.
func escapeLineBreaks(s string) string {
	return lineBreaks.Replace(s)
}
