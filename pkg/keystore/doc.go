// Package keystore manages RSA signing keys: generation, import, activation
// with a single active key per algorithm, rotation, and lookup by key id for
// verification of tokens signed by retired keys.
package keystore
