// Package errs defines the error taxonomy shared by every licensing component.
//
// Each failure carries a Code naming the exact decision (BadSignature,
// LicenseRevoked, StorageUnavailable, ...) and a Kind grouping codes into the
// four families callers branch on:
//
//   - KindInput: malformed requests, rejected before any state is read
//   - KindState: the request is well formed but the current state forbids it
//   - KindSecurity: a credential failed verification; always audited
//   - KindInfrastructure: a collaborator failed; never a license decision
//
// # Usage
//
//	if errors.Is(err, errs.ErrRevoked) {
//	    // token was revoked
//	}
//	if errs.KindOf(err) == errs.KindInfrastructure {
//	    // surface as 503, do not treat as a denial
//	}
package errs
