// Package audit records licensing events.
//
// Every event is written as an RFC5424 syslog line and persisted through a
// store.AuditStore. The event id is a SHA-256 over the event type, actor and
// timestamp, so resubmitting an identical event in the same instant is
// detected and stored once.
//
// Events of High or Critical severity are also dispatched as alerts to a
// notify.Sink. Dispatch runs in the background with its own timeout; neither a
// failed write nor a failed alert is reported to the caller of LogEvent.
//
// # Usage
//
//	log := audit.New(st, audit.WithSink(sink), audit.WithRecipients(to))
//	id := log.LogEvent(ctx, audit.LicenseEvent{
//		Kind:         audit.EventLicenseIssued,
//		LicenseID:    l.ID,
//		WorkshopCode: l.WorkshopCode,
//		By:           actor,
//	})
package audit
