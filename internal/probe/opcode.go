package probe

import "fmt"

// Class groups instructions that share one concreteness rule.
type Class int

const (
	ClassLoadSlot Class = iota + 1
	ClassLoadConst
	ClassStoreSlot
	ClassCompute
	ClassMemoryStore
	ClassMemoryLoad
	ClassDup
	ClassBranch
	ClassDiscard
	ClassUnimplemented
)

var classNames = map[Class]string{
	ClassLoadSlot:      "load-slot",
	ClassLoadConst:     "load-const",
	ClassStoreSlot:     "store-slot",
	ClassCompute:       "compute",
	ClassMemoryStore:   "memory-store",
	ClassMemoryLoad:    "memory-load",
	ClassDup:           "dup",
	ClassBranch:        "branch",
	ClassDiscard:       "discard",
	ClassUnimplemented: "unimplemented",
}

func (c Class) String() string {
	if s, ok := classNames[c]; ok {
		return s
	}
	return fmt.Sprintf("class(%d)", int(c))
}

// TwoPhase reports whether the slow path of the class waits for Exec.
func (c Class) TwoPhase() bool {
	return c == ClassCompute || c == ClassMemoryStore || c == ClassMemoryLoad
}

// Slot names the frame storage a slot instruction addresses.
type Slot int

const (
	SlotNone Slot = iota
	SlotArg
	SlotLocal
)

// Shape describes the stack effect of an Opcode.
type Shape struct {
	Class  Class
	Pops   int
	Pushes int
	Slot   Slot

	// Branch marks instructions whose command carries the branch flag.
	Branch bool
}

// Opcode is an abstract instruction. Several IL mnemonics map to one Opcode.
type Opcode uint16

const (
	OpLdarg Opcode = iota + 1
	OpLdloc
	OpStarg
	OpStloc

	OpLdc
	OpLdnull
	OpLdstr
	OpLdtoken
	OpLdftn
	OpLdvirtftn
	OpSizeof
	OpArglist
	OpLdarga
	OpLdloca
	OpLdsflda
	OpLdlen
	OpNewobjResult

	OpUnary
	OpBinary
	OpCompare
	OpConv
	OpCkfinite
	OpBox
	OpCastclass
	OpIsinst
	OpLdflda
	OpLdelema
	OpNewarr
	OpLocalloc
	OpCompareBranch

	OpStind
	OpStfld
	OpStsfld
	OpStobj
	OpStelem
	OpInitobj
	OpCpobj
	OpCpblk
	OpInitblk

	OpLdind
	OpLdfld
	OpLdsfld
	OpLdobj
	OpLdelem
	OpUnbox
	OpUnboxAny

	OpDup
	OpCondBranch
	OpSwitch

	OpPop
	OpThrow
	OpRethrow
	OpMkrefany

	OpCalli
	OpStfldStruct
)

type opInfo struct {
	name  string
	shape Shape
}

var opcodes = map[Opcode]opInfo{
	OpLdarg: {"ldarg", Shape{Class: ClassLoadSlot, Pushes: 1, Slot: SlotArg}},
	OpLdloc: {"ldloc", Shape{Class: ClassLoadSlot, Pushes: 1, Slot: SlotLocal}},
	OpStarg: {"starg", Shape{Class: ClassStoreSlot, Pops: 1, Slot: SlotArg}},
	OpStloc: {"stloc", Shape{Class: ClassStoreSlot, Pops: 1, Slot: SlotLocal}},

	OpLdc:          {"ldc", Shape{Class: ClassLoadConst, Pushes: 1}},
	OpLdnull:       {"ldnull", Shape{Class: ClassLoadConst, Pushes: 1}},
	OpLdstr:        {"ldstr", Shape{Class: ClassLoadConst, Pushes: 1}},
	OpLdtoken:      {"ldtoken", Shape{Class: ClassLoadConst, Pushes: 1}},
	OpLdftn:        {"ldftn", Shape{Class: ClassLoadConst, Pushes: 1}},
	OpLdvirtftn:    {"ldvirtftn", Shape{Class: ClassLoadConst, Pops: 1, Pushes: 1}},
	OpSizeof:       {"sizeof", Shape{Class: ClassLoadConst, Pushes: 1}},
	OpArglist:      {"arglist", Shape{Class: ClassLoadConst, Pushes: 1}},
	OpLdarga:       {"ldarga", Shape{Class: ClassLoadConst, Pushes: 1}},
	OpLdloca:       {"ldloca", Shape{Class: ClassLoadConst, Pushes: 1}},
	OpLdsflda:      {"ldsflda", Shape{Class: ClassLoadConst, Pushes: 1}},
	OpLdlen:        {"ldlen", Shape{Class: ClassLoadConst, Pops: 1, Pushes: 1}},
	OpNewobjResult: {"newobj.result", Shape{Class: ClassLoadConst, Pushes: 1}},

	OpUnary:         {"unary", Shape{Class: ClassCompute, Pops: 1, Pushes: 1}},
	OpBinary:        {"binary", Shape{Class: ClassCompute, Pops: 2, Pushes: 1}},
	OpCompare:       {"compare", Shape{Class: ClassCompute, Pops: 2, Pushes: 1}},
	OpConv:          {"conv", Shape{Class: ClassCompute, Pops: 1, Pushes: 1}},
	OpCkfinite:      {"ckfinite", Shape{Class: ClassCompute, Pops: 1, Pushes: 1}},
	OpBox:           {"box", Shape{Class: ClassCompute, Pops: 1, Pushes: 1}},
	OpCastclass:     {"castclass", Shape{Class: ClassCompute, Pops: 1, Pushes: 1}},
	OpIsinst:        {"isinst", Shape{Class: ClassCompute, Pops: 1, Pushes: 1}},
	OpLdflda:        {"ldflda", Shape{Class: ClassCompute, Pops: 1, Pushes: 1}},
	OpLdelema:       {"ldelema", Shape{Class: ClassCompute, Pops: 2, Pushes: 1}},
	OpNewarr:        {"newarr", Shape{Class: ClassCompute, Pops: 1, Pushes: 1}},
	OpLocalloc:      {"localloc", Shape{Class: ClassCompute, Pops: 1, Pushes: 1}},
	OpCompareBranch: {"compare.branch", Shape{Class: ClassCompute, Pops: 2, Branch: true}},

	OpStind:   {"stind", Shape{Class: ClassMemoryStore, Pops: 2}},
	OpStfld:   {"stfld", Shape{Class: ClassMemoryStore, Pops: 2}},
	OpStsfld:  {"stsfld", Shape{Class: ClassMemoryStore, Pops: 1}},
	OpStobj:   {"stobj", Shape{Class: ClassMemoryStore, Pops: 2}},
	OpStelem:  {"stelem", Shape{Class: ClassMemoryStore, Pops: 3}},
	OpInitobj: {"initobj", Shape{Class: ClassMemoryStore, Pops: 1}},
	OpCpobj:   {"cpobj", Shape{Class: ClassMemoryStore, Pops: 2}},
	OpCpblk:   {"cpblk", Shape{Class: ClassMemoryStore, Pops: 3}},
	OpInitblk: {"initblk", Shape{Class: ClassMemoryStore, Pops: 3}},

	OpLdind:    {"ldind", Shape{Class: ClassMemoryLoad, Pops: 1, Pushes: 1}},
	OpLdfld:    {"ldfld", Shape{Class: ClassMemoryLoad, Pops: 1, Pushes: 1}},
	OpLdsfld:   {"ldsfld", Shape{Class: ClassMemoryLoad, Pushes: 1}},
	OpLdobj:    {"ldobj", Shape{Class: ClassMemoryLoad, Pops: 1, Pushes: 1}},
	OpLdelem:   {"ldelem", Shape{Class: ClassMemoryLoad, Pops: 2, Pushes: 1}},
	OpUnbox:    {"unbox", Shape{Class: ClassMemoryLoad, Pops: 1, Pushes: 1}},
	OpUnboxAny: {"unbox.any", Shape{Class: ClassMemoryLoad, Pops: 1, Pushes: 1}},

	OpDup:        {"dup", Shape{Class: ClassDup, Pops: 1, Pushes: 2}},
	OpCondBranch: {"brcond", Shape{Class: ClassBranch, Pops: 1, Branch: true}},
	OpSwitch:     {"switch", Shape{Class: ClassBranch, Pops: 1, Branch: true}},

	OpPop:      {"pop", Shape{Class: ClassDiscard, Pops: 1}},
	OpThrow:    {"throw", Shape{Class: ClassDiscard, Pops: 1}},
	OpRethrow:  {"rethrow", Shape{Class: ClassDiscard}},
	OpMkrefany: {"mkrefany", Shape{Class: ClassDiscard, Pops: 1}},

	OpCalli:       {"calli", Shape{Class: ClassUnimplemented}},
	OpStfldStruct: {"stfld.struct", Shape{Class: ClassUnimplemented}},
}

// ShapeOf returns the stack effect of op.
func ShapeOf(op Opcode) (Shape, bool) {
	info, ok := opcodes[op]
	return info.shape, ok
}

func (op Opcode) String() string {
	if info, ok := opcodes[op]; ok {
		return info.name
	}
	return fmt.Sprintf("op(%d)", int(op))
}

// Instr is the probe selected for one IL mnemonic. Index is the slot index
// baked into short forms such as ldarg.1, or -1 when it comes from the
// instruction's immediate.
type Instr struct {
	Mnemonic string
	Op       Opcode
	Index    int
}

// FixedIndex reports whether the mnemonic encodes its slot index.
func (i Instr) FixedIndex() bool { return i.Index >= 0 }

var mnemonics = buildMnemonics()

// Lookup returns the probe for an IL mnemonic such as "ldarg.1" or "add.ovf".
func Lookup(mnemonic string) (Instr, bool) {
	in, ok := mnemonics[mnemonic]
	return in, ok
}

// Mnemonics returns the number of IL mnemonics the table knows.
func Mnemonics() int { return len(mnemonics) }

func buildMnemonics() map[string]Instr {
	m := make(map[string]Instr)
	add := func(op Opcode, names ...string) {
		for _, n := range names {
			m[n] = Instr{Mnemonic: n, Op: op, Index: -1}
		}
	}
	addShort := func(op Opcode, prefix string, count int) {
		for i := 0; i < count; i++ {
			n := fmt.Sprintf("%s.%d", prefix, i)
			m[n] = Instr{Mnemonic: n, Op: op, Index: i}
		}
	}

	add(OpLdarg, "ldarg", "ldarg.s")
	addShort(OpLdarg, "ldarg", 4)
	add(OpLdloc, "ldloc", "ldloc.s")
	addShort(OpLdloc, "ldloc", 4)
	add(OpStarg, "starg", "starg.s")
	add(OpStloc, "stloc", "stloc.s")
	addShort(OpStloc, "stloc", 4)

	add(OpLdc, "ldc.i4", "ldc.i4.s", "ldc.i4.m1", "ldc.i8", "ldc.r4", "ldc.r8")
	for i := 0; i <= 8; i++ {
		add(OpLdc, fmt.Sprintf("ldc.i4.%d", i))
	}
	add(OpLdnull, "ldnull")
	add(OpLdstr, "ldstr")
	add(OpLdtoken, "ldtoken")
	add(OpLdftn, "ldftn")
	add(OpLdvirtftn, "ldvirtftn")
	add(OpSizeof, "sizeof")
	add(OpArglist, "arglist")
	add(OpLdarga, "ldarga", "ldarga.s")
	add(OpLdloca, "ldloca", "ldloca.s")
	add(OpLdsflda, "ldsflda")
	add(OpLdlen, "ldlen")

	add(OpUnary, "neg", "not")
	add(OpBinary, "add", "sub", "mul", "div", "div.un", "rem", "rem.un",
		"and", "or", "xor", "shl", "shr", "shr.un",
		"add.ovf", "add.ovf.un", "sub.ovf", "sub.ovf.un", "mul.ovf", "mul.ovf.un")
	add(OpCompare, "ceq", "cgt", "cgt.un", "clt", "clt.un")
	for _, t := range []string{"i1", "i2", "i4", "i8", "u1", "u2", "u4", "u8", "i", "u", "r4", "r8", "r.un"} {
		add(OpConv, "conv."+t)
		if t == "r4" || t == "r8" || t == "r.un" {
			continue
		}
		add(OpConv, "conv.ovf."+t, "conv.ovf."+t+".un")
	}
	add(OpCkfinite, "ckfinite")
	add(OpBox, "box")
	add(OpCastclass, "castclass")
	add(OpIsinst, "isinst")
	add(OpLdflda, "ldflda")
	add(OpLdelema, "ldelema")
	add(OpNewarr, "newarr")
	add(OpLocalloc, "localloc")
	for _, b := range []string{"beq", "bge", "bgt", "ble", "blt", "bne.un", "bge.un", "bgt.un", "ble.un", "blt.un"} {
		add(OpCompareBranch, b, b+".s")
	}

	add(OpStind, "stind.i", "stind.i1", "stind.i2", "stind.i4", "stind.i8", "stind.r4", "stind.r8", "stind.ref")
	add(OpStfld, "stfld")
	add(OpStsfld, "stsfld")
	add(OpStobj, "stobj")
	add(OpStelem, "stelem", "stelem.i", "stelem.i1", "stelem.i2", "stelem.i4", "stelem.i8",
		"stelem.r4", "stelem.r8", "stelem.ref")
	add(OpInitobj, "initobj")
	add(OpCpobj, "cpobj")
	add(OpCpblk, "cpblk")
	add(OpInitblk, "initblk")

	add(OpLdind, "ldind.i", "ldind.i1", "ldind.i2", "ldind.i4", "ldind.i8", "ldind.u1",
		"ldind.u2", "ldind.u4", "ldind.r4", "ldind.r8", "ldind.ref")
	add(OpLdfld, "ldfld")
	add(OpLdsfld, "ldsfld")
	add(OpLdobj, "ldobj")
	add(OpLdelem, "ldelem", "ldelem.i", "ldelem.i1", "ldelem.i2", "ldelem.i4", "ldelem.i8",
		"ldelem.u1", "ldelem.u2", "ldelem.u4", "ldelem.r4", "ldelem.r8", "ldelem.ref")
	add(OpUnbox, "unbox")
	add(OpUnboxAny, "unbox.any")

	add(OpDup, "dup")
	add(OpCondBranch, "brtrue", "brtrue.s", "brfalse", "brfalse.s")
	add(OpSwitch, "switch")

	add(OpPop, "pop")
	add(OpThrow, "throw")
	add(OpRethrow, "rethrow")
	add(OpMkrefany, "mkrefany")

	add(OpCalli, "calli")
	return m
}
