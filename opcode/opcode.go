// Package opcode implements the encrypted opcode bank (spec 4.8, component
// C8): the three small enumerations that drive every cycle's
// register/memory/program-counter update (RdUpdate, RamUpdate, PcUpdate),
// each carrying both an encrypted evaluator (EvalEnc, a BDD circuit
// selected and run over the current register/immediate/PC operands) and a
// plaintext oracle (EvalPlain, the reference semantics package debug and
// package interp check encrypted execution against).
//
// The enumeration order and the opcode-to-ALU-operation mapping are
// grounded verbatim on rd_update.rs and pc_update.rs; the encrypted
// circuits themselves are generic width-parameterized BDD builders (package
// bdd) rather than the original's codegen-generated per-opcode node
// tables, since this module builds decision diagrams directly in Go instead
// of through a Rust proc-macro.
package opcode

import (
	"fmt"

	"github.com/entropic-labs/fhevm/bdd"
	"github.com/entropic-labs/fhevm/fheuint"
)

// Width is the RISC-V word width this opcode bank operates on.
const Width = 32

// RdUpdate selects how a cycle's destination register is recomputed. The
// order matches rd_update.rs's RD_UPDATE enum: 0 is always NONE (no write),
// 1-28 are the RV32I opcodes, and 29-36 are the RV32M opcodes, gated off by
// default (spec: Config.EnableRV32M).
type RdUpdate int

const (
	RdNone RdUpdate = iota
	RdLUI
	RdAUIPC
	RdADDI
	RdSLTI
	RdSLTIU
	RdXORI
	RdORI
	RdANDI
	RdSLLI
	RdSRLI
	RdSRAI
	RdADD
	RdSUB
	RdSLL
	RdSLT
	RdSLTU
	RdXOR
	RdSRL
	RdSRA
	RdOR
	RdAND
	RdJAL
	RdJALR
	RdLB
	RdLBU
	RdLH
	RdLHU
	RdLW
	// RV32M, default disabled (spec Open Question resolution).
	RdMUL
	RdMULH
	RdMULHSU
	RdMULHU
	RdDIV
	RdDIVU
	RdREM
	RdREMU
)

// IsRV32M reports whether op belongs to the optional multiply/divide
// extension.
func (op RdUpdate) IsRV32M() bool { return op >= RdMUL }

// PcUpdate selects how the program counter advances. Order matches
// pc_update.rs's PC_UPDATE enum.
type PcUpdate int

const (
	PcNone PcUpdate = iota
	PcJAL
	PcJALR
	PcBEQ
	PcBNE
	PcBLT
	PcBGE
	PcBLTU
	PcBGEU
)

// RamUpdate selects how (and whether) a cycle writes to memory. Order
// matches instructions/mod.rs's store-class opcodes.
type RamUpdate int

const (
	RamNone RamUpdate = iota
	RamSB
	RamSH
	RamSW
)

// Operands bundles the encrypted and plaintext-reference forms every
// EvalEnc/EvalPlain call reads from: a cycle's rs1, rs2, the decoded
// immediate, the current PC, and (for loads) the RAM word already fetched
// at the effective address.
type Operands struct {
	Rs1, Rs2, Imm, Pc, Ram *fheuint.FheUint
}

// PreparedOperands are Operands whose bits have been circuit-bootstrapped,
// needed wherever an operand drives a BDD branch or a blind rotation
// (package bdd's EvalEnc, package coordinate's addressing).
type PreparedOperands struct {
	Rs1, Rs2, Imm, Pc *fheuint.FheUintPrepared
}

// Bank lazily builds and caches the BDD circuit for every RdUpdate code
// that runs a two-operand circuit (the pure-ALU codes and MUL; AUIPC reuses
// ADD's cached circuit). LUI and the loads copy or mask existing ciphertexts
// without a circuit, and JAL/JALR build their pc+4 adder circuit on each
// call without caching it.
type Bank struct {
	circuits   map[RdUpdate]*bdd.Circuit
	pcCircuits map[PcUpdate]*bdd.Circuit
}

// NewBank allocates an empty circuit cache.
func NewBank() *Bank {
	return &Bank{
		circuits:   make(map[RdUpdate]*bdd.Circuit),
		pcCircuits: make(map[PcUpdate]*bdd.Circuit),
	}
}

func (b *Bank) circuitFor(op RdUpdate) *bdd.Circuit {
	if c, ok := b.circuits[op]; ok {
		return c
	}
	c := buildCircuit(op)
	b.circuits[op] = c
	return c
}

// buildCircuit constructs the 2*Width-input, Width-output decision diagram
// for op, using rs1's bits as inputs [0,Width) and rs2's (or imm's) bits as
// inputs [Width,2*Width).
func buildCircuit(op RdUpdate) *bdd.Circuit {
	switch op {
	case RdADD, RdADDI:
		sum, _ := bdd.RippleCarryAdder(Width, false, bdd.Leaf(0))
		return bdd.New(2*Width, sum...)
	case RdSUB:
		sum, _ := bdd.RippleCarryAdder(Width, true, bdd.Leaf(1))
		return bdd.New(2*Width, sum...)
	case RdAND:
		return bitwise(bdd.And2)
	case RdOR:
		return bitwise(bdd.Or2)
	case RdXOR:
		return bitwise(bdd.Xor2)
	case RdSLT:
		return bdd.New(2*Width, signedLess(Width)...)
	case RdSLTU, RdSLTIU:
		return bdd.New(2*Width, unsignedLess(Width)...)
	case RdSLL, RdSLLI:
		return shifter(false, false)
	case RdSRL, RdSRLI:
		return shifter(true, false)
	case RdSRA, RdSRAI:
		return shifter(true, true)
	case RdMUL:
		return mulLow(Width)
	default:
		panic(fmt.Errorf("opcode: buildCircuit: %v has no generic ALU circuit", op))
	}
}

func bitwise(gate func(ai, bi int) *bdd.Node) *bdd.Circuit {
	out := make([]*bdd.Node, Width)
	for i := 0; i < Width; i++ {
		out[i] = gate(i, Width+i)
	}
	return bdd.New(2*Width, out...)
}

// unsignedLess returns the Width output bits of "rs1 < rs2" (unsigned): bit 0
// carries the comparison result and every higher bit is the constant 0, so
// the result packs into a FheUint holding 0 or 1, as EvalPlain returns.
func unsignedLess(width int) []*bdd.Node {
	lt := bdd.Leaf(0)
	eq := bdd.Leaf(1)
	for i := 0; i < width; i++ {
		ai := bdd.Branch(i, bdd.Leaf(0), bdd.Leaf(1))
		bi := bdd.Branch(width+i, bdd.Leaf(0), bdd.Leaf(1))
		bitLess := iteNode(bi, iteNode(ai, bdd.Leaf(0), bdd.Leaf(1)), bdd.Leaf(0))
		bitEq := iteNode(ai, iteNode(bi, bdd.Leaf(1), bdd.Leaf(0)), iteNode(bi, bdd.Leaf(0), bdd.Leaf(1)))
		newLt := orNode(bitLess, andNode(bitEq, lt))
		newEq := andNode(eq, bitEq)
		lt, eq = newLt, newEq
	}
	out := make([]*bdd.Node, width)
	out[0] = lt
	for i := 1; i < width; i++ {
		out[i] = bdd.Leaf(0)
	}
	return out
}

// signedLess is unsignedLess with the sign bits (index width-1 of each
// operand) inverted before comparison, the standard two's-complement
// less-than-via-unsigned-compare trick.
func signedLess(width int) []*bdd.Node {
	lt := bdd.Leaf(0)
	eq := bdd.Leaf(1)
	for i := 0; i < width; i++ {
		var ai, bi *bdd.Node
		if i == width-1 {
			ai = bdd.Branch(i, bdd.Leaf(1), bdd.Leaf(0))
			bi = bdd.Branch(width+i, bdd.Leaf(1), bdd.Leaf(0))
		} else {
			ai = bdd.Branch(i, bdd.Leaf(0), bdd.Leaf(1))
			bi = bdd.Branch(width+i, bdd.Leaf(0), bdd.Leaf(1))
		}
		bitLess := iteNode(bi, iteNode(ai, bdd.Leaf(0), bdd.Leaf(1)), bdd.Leaf(0))
		bitEq := iteNode(ai, iteNode(bi, bdd.Leaf(1), bdd.Leaf(0)), iteNode(bi, bdd.Leaf(0), bdd.Leaf(1)))
		newLt := orNode(bitLess, andNode(bitEq, lt))
		newEq := andNode(eq, bitEq)
		lt, eq = newLt, newEq
	}
	out := make([]*bdd.Node, width)
	out[0] = lt
	for i := 1; i < width; i++ {
		out[i] = bdd.Leaf(0)
	}
	return out
}

func iteNode(cond, t, e *bdd.Node) *bdd.Node { return bdd.IfElse(cond, t, e) }
func andNode(a, b *bdd.Node) *bdd.Node       { return bdd.And(a, b) }
func orNode(a, b *bdd.Node) *bdd.Node        { return bdd.Or(a, b) }

// shifter returns the Width-output circuit for a barrel shift by
// rs2[0:log2(Width)), amounts >= Width are well-defined (RISC-V masks the
// shift amount to the low 5 bits for a 32-bit shift; that masking is
// exactly "only read shamt's low 5 bits", which this circuit already does
// by construction).
func shifter(right, arithmetic bool) *bdd.Circuit {
	logW := 0
	for (1 << logW) < Width {
		logW++
	}

	cur := make([]*bdd.Node, Width)
	for i := 0; i < Width; i++ {
		cur[i] = bdd.Branch(i, bdd.Leaf(0), bdd.Leaf(1))
	}
	fill := bdd.Leaf(0)
	if arithmetic {
		fill = bdd.Branch(Width-1, bdd.Leaf(0), bdd.Leaf(1))
	}

	for stage := 0; stage < logW; stage++ {
		amt := 1 << stage
		next := make([]*bdd.Node, Width)
		for i := 0; i < Width; i++ {
			var shifted *bdd.Node
			if right {
				if i+amt < Width {
					shifted = cur[i+amt]
				} else {
					shifted = fill
				}
			} else {
				if i-amt >= 0 {
					shifted = cur[i-amt]
				} else {
					shifted = bdd.Leaf(0)
				}
			}
			next[i] = bdd.Mux(Width+stage, cur[i], shifted)
		}
		cur = next
	}
	return bdd.New(2*Width, cur...)
}

// mulLow returns the low `width` bits of the unsigned product rs1*rs2, via
// a shift-and-add multiplier: width partial products, each conditionally
// added (via RippleCarryAdder-style full adders folded through andNode as
// the AND gate) into a running sum. This is the circuit RdMUL uses; the
// other RV32M opcodes (MULH family, DIV family) are evaluated only by
// EvalPlain in this build (see DESIGN.md: those
// wider/iterative circuits are out of scope while RV32M stays
// config-disabled by default).
func mulLow(width int) *bdd.Circuit {
	sum := make([]*bdd.Node, width)
	for i := range sum {
		sum[i] = bdd.Leaf(0)
	}
	for shift := 0; shift < width; shift++ {
		bShift := bdd.Branch(width+shift, bdd.Leaf(0), bdd.Leaf(1))
		carry := bdd.Leaf(0)
		next := make([]*bdd.Node, width)
		copy(next, sum[:shift])
		for i := shift; i < width; i++ {
			ai := bdd.Branch(i-shift, bdd.Leaf(0), bdd.Leaf(1))
			pp := andNode(ai, bShift)
			s, c := bdd.FullAdder(sum[i], pp, carry)
			next[i] = s
			carry = c
		}
		sum = next
	}
	return bdd.New(2*width, sum...)
}
