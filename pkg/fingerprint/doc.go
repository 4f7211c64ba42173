// Package fingerprint derives the hardware fingerprint a license is bound to.
//
// The fingerprint is the hex SHA-256 of a normalized set of machine
// attributes read through gopsutil: host id, primary MAC address, CPU model,
// operating system and architecture. Hostname is collected for display but
// is not hashed, so renaming a machine does not unbind its license.
package fingerprint
