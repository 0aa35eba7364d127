// Package wire defines the binary records exchanged between the tracking
// core and the external symbolic executor.
//
// There is one request kind, ExecCommand ("execute, possibly with symbolic
// operands"), and one reply kind, Response. Only the record contents are
// specified here; framing belongs to the transport.
//
// All integers are little endian. An operand descriptor is a one-byte Tag
// followed by a fixed-width payload: pointer-width for Ref, eight bytes for
// everything else.
//
//	ExecCommand: u32 offset | u32 branch | u32 n, n×u32 token | u32 frame pops |
//	             u32 m, m×descriptor | u32 stack pops
//	Response:    u8 has return | [u8 return concrete] | [u32 n, n×descriptor]
//
// Any truncated, oversized or otherwise malformed record is reported as a
// *ProtocolError and must be treated as fatal by the caller.
package wire
