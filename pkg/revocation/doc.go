// Package revocation is the registry of dead token ids.
//
// Entries are written once and never removed, so positive answers are cached
// without invalidation: first in process, then optionally in Redis for other
// instances. Negative answers always reach the store. Concurrent misses for the
// same jti share one store query.
package revocation
