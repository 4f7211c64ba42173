package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/doodlesbykumbi/licensing-in-go/pkg/errs"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/metrics"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/model"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/notify"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/store"
)

const (
	DefaultRetentionDays = 90
	DefaultAlertTimeout  = 5 * time.Second
	DefaultStoreTimeout  = 5 * time.Second
)

// Log is the audit trail. It is safe for concurrent use.
type Log struct {
	store        store.AuditStore
	writer       *Writer
	sink         notify.Sink
	logger       *zap.Logger
	metrics      *metrics.Metrics
	now          func() time.Time
	alertTimeout time.Duration
	storeTimeout time.Duration

	mu         sync.RWMutex
	recipients []string

	alerts sync.WaitGroup
}

type Option func(*Log)

// WithWriter sets the destination of RFC5424 lines. The default discards them.
func WithWriter(w io.Writer) Option {
	return func(l *Log) { l.writer = NewWriter(w) }
}

func WithSink(sink notify.Sink) Option {
	return func(l *Log) { l.sink = sink }
}

func WithRecipients(recipients []string) Option {
	return func(l *Log) { l.recipients = recipients }
}

func WithLogger(logger *zap.Logger) Option {
	return func(l *Log) { l.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Log) { l.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(l *Log) { l.now = now }
}

func WithAlertTimeout(d time.Duration) Option {
	return func(l *Log) { l.alertTimeout = d }
}

// WithStoreTimeout bounds the write of each entry so a hung store cannot
// stall the caller. Zero or negative keeps DefaultStoreTimeout.
func WithStoreTimeout(d time.Duration) Option {
	return func(l *Log) {
		if d > 0 {
			l.storeTimeout = d
		}
	}
}

func New(s store.AuditStore, opts ...Option) *Log {
	l := &Log{
		store:        s,
		writer:       NewWriter(nil),
		logger:       zap.NewNop(),
		now:          time.Now,
		alertTimeout: DefaultAlertTimeout,
		storeTimeout: DefaultStoreTimeout,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// EventID derives the id of an event from its type, actor and timestamp,
// plus its description and serialized detail so that distinct events in the
// same microsecond get distinct ids.
func EventID(eventType EventType, actor string, ts time.Time, description, detail string) string {
	h := sha256.New()
	for _, part := range []string{string(eventType), actor, ts.UTC().Format(time.RFC3339Nano), description} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	h.Write([]byte(detail))
	return hex.EncodeToString(h.Sum(nil))
}

// LogEvent records e and returns its id. It never fails: write errors are
// logged and the caller carries on. High and Critical events are dispatched
// as alerts in the background unless the same event was already stored.
func (l *Log) LogEvent(ctx context.Context, e Event) string {
	// Postgres keeps microseconds; truncating keeps the id stable across a
	// round trip through storage.
	ts := l.now().UTC().Truncate(time.Microsecond)
	// map keys marshal sorted, so equal details give equal bytes
	detail, err := json.Marshal(e.StructuredData())
	if err != nil || string(detail) == "null" {
		detail = []byte("{}")
	}
	id := EventID(e.Type(), e.Actor(), ts, e.Message(), string(detail))

	l.writer.Write(e, id, ts)

	entry := &model.AuditEntry{
		EventID:      id,
		EventType:    string(e.Type()),
		Severity:     e.Severity(),
		Timestamp:    ts,
		Actor:        e.Actor(),
		Description:  e.Message(),
		Detail:       string(detail),
		WorkshopCode: e.WorkshopID(),
	}

	storeCtx, cancel := context.WithTimeout(ctx, l.storeTimeout)
	created, err := l.store.AppendAuditEntry(storeCtx, entry)
	cancel()
	if err != nil {
		l.logger.Error("audit entry not persisted",
			zap.String("event_id", id),
			zap.String("event_type", entry.EventType),
			zap.Error(err))
		// alert anyway
		created = true
	}
	if !created {
		l.logger.Debug("duplicate audit event", zap.String("event_id", id))
		return id
	}

	if e.Severity().Alerting() {
		l.dispatch(ctx, entry)
	}
	return id
}

func (l *Log) dispatch(ctx context.Context, entry *model.AuditEntry) {
	if l.sink == nil {
		return
	}
	l.mu.RLock()
	recipients := append([]string(nil), l.recipients...)
	l.mu.RUnlock()

	msg := notify.Message{
		Recipients: recipients,
		Subject:    fmt.Sprintf("[licensing] %s: %s", entry.Severity, entry.EventType),
		Body:       alertBody(entry),
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.alertTimeout)
	l.alerts.Add(1)
	go func() {
		defer l.alerts.Done()
		defer cancel()

		err := l.sink.Notify(ctx, msg)
		l.metrics.AlertDispatched(err)
		if err != nil {
			l.logger.Warn("audit alert not delivered",
				zap.String("event_id", entry.EventID),
				zap.Error(err))
		}
	}()
}

func alertBody(entry *model.AuditEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s** `%s` at %s\n\n", entry.Severity, entry.EventType, entry.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(&b, "%s\n\n", entry.Description)
	fmt.Fprintf(&b, "- event: `%s`\n", entry.EventID)
	fmt.Fprintf(&b, "- actor: `%s`\n", entry.Actor)
	if entry.WorkshopCode != "" {
		fmt.Fprintf(&b, "- workshop: `%s`\n", entry.WorkshopCode)
	}

	var sd map[string]map[string]string
	if json.Unmarshal([]byte(entry.Detail), &sd) == nil {
		ids := make([]string, 0, len(sd))
		for id := range sd {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			keys := make([]string, 0, len(sd[id]))
			for k := range sd[id] {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(&b, "- %s.%s: `%s`\n", strings.SplitN(id, "@", 2)[0], k, sd[id][k])
			}
		}
	}
	return b.String()
}

// Record is LogEvent for a free-form event.
func (l *Log) Record(ctx context.Context, eventType EventType, severity model.Severity, description string, detail map[string]string, actor string) string {
	return l.LogEvent(ctx, Entry{
		Kind:        eventType,
		Level:       severity,
		Description: description,
		Detail:      detail,
		ActorID:     actor,
	})
}

// Cleanup deletes entries older than retentionDays; zero or negative selects
// DefaultRetentionDays. It returns the number of entries removed.
func (l *Log) Cleanup(ctx context.Context, retentionDays int, actor string) (int64, error) {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	cutoff := l.now().UTC().AddDate(0, 0, -retentionDays)

	n, err := l.store.PurgeAuditEntriesBefore(ctx, cutoff)
	if err != nil {
		return 0, errs.Storage("audit.Cleanup", err)
	}
	l.logger.Info("audit entries purged",
		zap.Int64("count", n),
		zap.Time("cutoff", cutoff))
	l.Record(ctx, EventAuditCleanup, model.SeverityLow,
		fmt.Sprintf("purged %d audit entries older than %d days", n, retentionDays),
		map[string]string{"purged": fmt.Sprintf("%d", n), "retention_days": fmt.Sprintf("%d", retentionDays)},
		actor)
	return n, nil
}

// Query lists stored entries, newest first.
func (l *Log) Query(ctx context.Context, filter store.AuditFilter) ([]model.AuditEntry, error) {
	entries, err := l.store.ListAuditEntries(ctx, filter)
	if err != nil {
		return nil, errs.Storage("audit.Query", err)
	}
	return entries, nil
}

// Count counts stored entries matching filter.
func (l *Log) Count(ctx context.Context, filter store.AuditFilter) (int64, error) {
	n, err := l.store.CountAuditEntries(ctx, filter)
	if err != nil {
		return 0, errs.Storage("audit.Count", err)
	}
	return n, nil
}

// SetRecipients replaces the alert recipients. Used on configuration reload.
func (l *Log) SetRecipients(recipients []string) {
	l.mu.Lock()
	l.recipients = append([]string(nil), recipients...)
	l.mu.Unlock()
}

// Wait blocks until in-flight alerts finish.
func (l *Log) Wait() {
	l.alerts.Wait()
}
