// Package shadow implements the shadow call and operand stack of the
// concolic tracking core.
//
// A Stack mirrors the real call stack of one managed thread. Each Frame holds
// only concreteness bits: one per argument, one per local and one per live
// operand-stack slot. Real values never live here; they stay in the
// instrumented program and are handed over by the instrumentation layer only
// when a command has to be built.
//
// # Batching
//
// Frames and operand pops are reported to the external executor lazily. The
// stack remembers the shallowest depth reached since the last flush
// (MinTopSinceLastSent) and the number of reported frames that returned
// since then (UnsentPops). A flush reports the frames above that depth and
// calls ResetPopsTracking exactly once.
//
// Every symbolic slot popped since the last flush is remembered as a
// PoppedSymbolic so a command can refer to it by its distance from the
// executor's symbolic-stack top instead of by value.
//
// # Ownership
//
// A Stack is owned by exactly one thread and is not safe for concurrent use.
// Every invariant violation is reported as a *CorruptionError; callers must
// treat it as fatal.
package shadow
