// Package token issues and validates signed license tokens.
//
// A token is a compact JWS: base64url header, payload and signature joined by
// dots. The header carries the signing algorithm and the kid of the key that
// signed it; the payload carries the license claims and a random jti.
//
// Validation runs in a fixed order and stops at the first failure:
//
//  1. structure      -> malformed
//  2. signature      -> bad_signature
//  3. expiry         -> expired (with bounded leeway)
//  4. fingerprint    -> fingerprint_mismatch
//  5. revocation     -> revoked
//
// Only the last step needs external state, so garbage input never reaches the
// revocation registry.
package token
