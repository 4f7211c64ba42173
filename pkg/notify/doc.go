// Package notify delivers audit alerts. A Sink accepts a recipient list, a
// subject and a Markdown body; delivery is best effort and callers decide how
// long to wait through the context.
package notify
