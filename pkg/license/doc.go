// Package license implements the license lifecycle: issuance, renewal,
// reactivation, revocation, the expiration sweep and the read-only
// dashboard.
//
// # State machine
//
//	Draft -> Active -> {Active (renewal), Expired, Revoked}
//	Draft -> Revoked
//	Expired -> Active (Reactivate only)
//	Expired -> Revoked
//
// Issue stores the record as a Draft, signs its first token, then makes it
// Active; a Draft has no token and only revocation applies to it. Revoked is
// final. Renewing a revoked license fails with LicenseRevoked and renewing an
// expired one fails with LicenseExpired. Revoking an expired license revokes
// the tokens it carried, in case a client clock lets one through.
//
// # Consistency
//
// Mutations of one license are serialized in process by a per-license lock
// and across processes by a compare-and-set on the record version. Renewal
// signs a token first, then persists, then audits, so a failure never leaves
// a record pointing at a token that was not handed out.
// Revoking a license revokes every token id it has carried before the status
// changes; a retried revocation finishes the job.
package license
