// Package probe implements the per-instruction concreteness rules and the
// exchange with the symbolic executor.
//
// The instrumentation layer owns one Tracker per managed thread and calls it
// before each instruction. When every value an instruction touches is
// concrete the Tracker only updates its shadow stack. Otherwise it encodes an
// ExecCommand describing the batched stack changes, blocks on the Transport
// for the executor's Response, and reconciles the answer into the shadow
// stack and the operand memory.
//
// Instruction probes come from one table: Lookup maps an IL mnemonic to an
// Instr whose Opcode selects a Shape (class, pops, pushes, branch flag).
// Classes whose slow path needs runtime values are two-phase: Track returns
// false and the caller follows up with Exec carrying the operand values.
//
// Errors are fatal. The first one poisons the Tracker and every later call
// returns ErrPoisoned wrapping it.
package probe
