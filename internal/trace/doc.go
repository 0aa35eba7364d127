// Package trace renders executor exchanges as canonical JSON and derives
// their content digests.
//
// Canonical JSON follows RFC 8785: object keys sorted by UTF-16 code units,
// no HTML escaping, NFC-normalised strings, compact output. Floats never
// appear: F32 and F64 payloads are rendered as their IEEE bit patterns in
// hex, so a snapshot is byte-identical across platforms.
//
// Digests are SHA-256 over a domain prefix, a 0x00 separator and the
// canonical bytes.
package trace
