// Package harness runs scripted scenarios against the tracker.
//
// A scenario is a YAML file listing probe calls per thread, the answers of
// a scripted executor and assertions on the commands sent and the final
// shadow state. Files are checked against an embedded CUE schema, then
// decoded strictly.
//
// # Scenario Format
//
//	name: mixed_binop
//	description: "add over a concrete and a symbolic operand"
//	steps:
//	  - enter_main: { token: 1, args: 1, concrete: false, max_stack: 8 }
//	  - track: ldc.i4.7
//	  - track: ldarg.0
//	    respond: {}
//	  - track: add
//	    offset: 4
//	    expect: false
//	  - exec: add
//	    offset: 4
//	    operands: [{ i4: 7 }, { i4: 3 }]
//	assertions:
//	  - type: command
//	    index: 1
//	    command: { operands: [{ i4: 7 }, { sym: 0 }], stack_pops: 2 }
//
// Steps without a respond clause that reach the executor get an empty
// response: every symbolic operand stays symbolic.
//
// # Assertion Types
//
//   - command_count: number of commands sent
//   - command: fields of the command at an index
//   - eval_stack: operand stack of a thread's top frame
//   - depth: call-stack depth of a thread
//   - failure: the code of the error that stopped the run
//
// # Deterministic Testing
//
// Runs use a fixed session ID and a fresh logical clock, so the snapshot
// of a run (see MarshalSnapshot) is byte-for-byte reproducible and can be
// compared with golden files.
package harness
