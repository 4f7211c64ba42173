// Package offline lets a client keep working without reaching the licensing
// server, for a bounded time.
//
// A Session can only be started by a successful online validation. While
// the time since that validation is below the grace period (72 hours by
// default) ValidateOffline succeeds; after that, or when the local clock
// reads earlier than the last online validation, it fails with
// GracePeriodExceeded and the client must validate online again.
//
// Sessions survive restarts through a StateFile, a JSON document sealed with
// HMAC-SHA256 under a key derived from a client secret with HKDF.
package offline
