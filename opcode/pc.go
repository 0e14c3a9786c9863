package opcode

import (
	"fmt"

	"github.com/entropic-labs/fhevm/bdd"
	"github.com/entropic-labs/fhevm/fheuint"
	"github.com/entropic-labs/fhevm/glwe"
)

// pcCircuitFor lazily builds and caches the BDD for op, mirroring
// circuitFor's cache for RdUpdate (package-level Bank extension: the two
// caches are keyed by different enum types so they share the Bank struct
// without colliding).
func (b *Bank) pcCircuitFor(op PcUpdate) *bdd.Circuit {
	if c, ok := b.pcCircuits[op]; ok {
		return c
	}
	c := buildPcCircuit(op)
	b.pcCircuits[op] = c
	return c
}

// buildPcCircuit constructs the 4*Width-input (rs1, rs2, pc, imm), Width-
// output decision diagram computing op's next-PC value, grounded on
// pc_update.rs's PC_UPDATE::eval_plain: the unconditional jumps are direct
// adders, and every branch is "pc+imm if the comparison holds, else pc+4"
// selected bit by bit.
func buildPcCircuit(op PcUpdate) *bdd.Circuit {
	const rs1Base, rs2Base, pcBase, immBase = 0, Width, 2 * Width, 3 * Width
	numInputs := 4 * Width

	switch op {
	case PcNone:
		sum := adderConstAt(Width, pcBase, 4)
		return bdd.New(numInputs, sum...)
	case PcJAL:
		sum, _ := adderAt(Width, pcBase, immBase, false, bdd.Leaf(0))
		return bdd.New(numInputs, sum...)
	case PcJALR:
		sum, _ := adderAt(Width, rs1Base, immBase, false, bdd.Leaf(0))
		sum[0] = bdd.Leaf(0)
		return bdd.New(numInputs, sum...)
	case PcBEQ, PcBNE, PcBLT, PcBGE, PcBLTU, PcBGEU:
		pcPlusImm, _ := adderAt(Width, pcBase, immBase, false, bdd.Leaf(0))
		pcPlusFour := adderConstAt(Width, pcBase, 4)
		taken := branchCondition(op, rs1Base, rs2Base)
		out := make([]*bdd.Node, Width)
		for i := 0; i < Width; i++ {
			out[i] = iteNode(taken, pcPlusImm[i], pcPlusFour[i])
		}
		return bdd.New(numInputs, out...)
	default:
		panic(fmt.Errorf("opcode: buildPcCircuit: %v has no circuit", op))
	}
}

// branchCondition returns the single-bit node deciding whether op's branch
// is taken, built from the shared unsigned/signed comparators at rs1Base
// (operand a) / rs2Base (operand b, must equal rs1Base+Width).
func branchCondition(op PcUpdate, rs1Base, rs2Base int) *bdd.Node {
	switch op {
	case PcBEQ:
		return equalAt(Width, rs1Base, rs2Base)
	case PcBNE:
		return bdd.Not(equalAt(Width, rs1Base, rs2Base))
	case PcBLT:
		return signedLessAt(Width, rs1Base, rs2Base)
	case PcBGE:
		return bdd.Not(signedLessAt(Width, rs1Base, rs2Base))
	case PcBLTU:
		return unsignedLessAt(Width, rs1Base, rs2Base)
	case PcBGEU:
		return bdd.Not(unsignedLessAt(Width, rs1Base, rs2Base))
	default:
		panic(fmt.Errorf("opcode: branchCondition: %v is not a branch", op))
	}
}

// adderAt is RippleCarryAdder generalized to arbitrary input-variable base
// offsets, needed because a PC-update circuit's operands don't start at
// input 0 the way a two-operand ALU circuit's do.
func adderAt(width, aBase, bBase int, invertB bool, carryIn *bdd.Node) (sum []*bdd.Node, carryOut *bdd.Node) {
	sum = make([]*bdd.Node, width)
	carry := carryIn
	for i := 0; i < width; i++ {
		ai := bdd.Branch(aBase+i, bdd.Leaf(0), bdd.Leaf(1))
		var bi *bdd.Node
		if invertB {
			bi = bdd.Branch(bBase+i, bdd.Leaf(1), bdd.Leaf(0))
		} else {
			bi = bdd.Branch(bBase+i, bdd.Leaf(0), bdd.Leaf(1))
		}
		s, c := bdd.FullAdder(ai, bi, carry)
		sum[i] = s
		carry = c
	}
	return sum, carry
}

// adderConstAt is bdd.AddConstant generalized to an arbitrary input-variable
// base offset.
func adderConstAt(width, aBase int, c uint64) []*bdd.Node {
	sum := make([]*bdd.Node, width)
	carry := bdd.Leaf(0)
	for i := 0; i < width; i++ {
		ai := bdd.Branch(aBase+i, bdd.Leaf(0), bdd.Leaf(1))
		bi := bdd.Leaf((c >> uint(i)) & 1)
		s, cr := bdd.FullAdder(ai, bi, carry)
		sum[i] = s
		carry = cr
	}
	return sum
}

// equalAt returns a single bit node testing whether the width-bit operands
// at aBase and bBase are equal.
func equalAt(width, aBase, bBase int) *bdd.Node {
	eq := bdd.Leaf(1)
	for i := 0; i < width; i++ {
		ai := bdd.Branch(aBase+i, bdd.Leaf(0), bdd.Leaf(1))
		bi := bdd.Branch(bBase+i, bdd.Leaf(0), bdd.Leaf(1))
		bitEq := bdd.Not(bdd.Xor(ai, bi))
		eq = bdd.And(eq, bitEq)
	}
	return eq
}

// unsignedLessAt is unsignedLess generalized to arbitrary operand bases.
func unsignedLessAt(width, aBase, bBase int) *bdd.Node {
	lt := bdd.Leaf(0)
	eq := bdd.Leaf(1)
	for i := 0; i < width; i++ {
		ai := bdd.Branch(aBase+i, bdd.Leaf(0), bdd.Leaf(1))
		bi := bdd.Branch(bBase+i, bdd.Leaf(0), bdd.Leaf(1))
		bitLess := iteNode(bi, iteNode(ai, bdd.Leaf(0), bdd.Leaf(1)), bdd.Leaf(0))
		bitEq := iteNode(ai, iteNode(bi, bdd.Leaf(1), bdd.Leaf(0)), iteNode(bi, bdd.Leaf(0), bdd.Leaf(1)))
		newLt := orNode(bitLess, andNode(bitEq, lt))
		newEq := andNode(eq, bitEq)
		lt, eq = newLt, newEq
	}
	return lt
}

// signedLessAt is signedLess generalized to arbitrary operand bases.
func signedLessAt(width, aBase, bBase int) *bdd.Node {
	lt := bdd.Leaf(0)
	eq := bdd.Leaf(1)
	for i := 0; i < width; i++ {
		var ai, bi *bdd.Node
		if i == width-1 {
			ai = bdd.Branch(aBase+i, bdd.Leaf(1), bdd.Leaf(0))
			bi = bdd.Branch(bBase+i, bdd.Leaf(1), bdd.Leaf(0))
		} else {
			ai = bdd.Branch(aBase+i, bdd.Leaf(0), bdd.Leaf(1))
			bi = bdd.Branch(bBase+i, bdd.Leaf(0), bdd.Leaf(1))
		}
		bitLess := iteNode(bi, iteNode(ai, bdd.Leaf(0), bdd.Leaf(1)), bdd.Leaf(0))
		bitEq := iteNode(ai, iteNode(bi, bdd.Leaf(1), bdd.Leaf(0)), iteNode(bi, bdd.Leaf(0), bdd.Leaf(1)))
		newLt := orNode(bitLess, andNode(bitEq, lt))
		newEq := andNode(eq, bitEq)
		lt, eq = newLt, newEq
	}
	return lt
}

// EvalEnc computes op's candidate next-PC value from the cycle's prepared
// rs1/rs2/pc/imm operands (spec 4.9 step 9: every PcUpdate candidate is
// computed, then the cycle blind-selects by the decoded pcu tag).
func (op PcUpdate) EvalEnc(bank *Bank, eval *glwe.Evaluator, preps PreparedOperands) *fheuint.FheUint {
	circuit := bank.pcCircuitFor(op)
	selectors := make([]*glwe.Selector, 0, 4*Width)
	selectors = append(selectors, preps.Rs1.Selectors...)
	selectors = append(selectors, preps.Rs2.Selectors...)
	selectors = append(selectors, preps.Pc.Selectors...)
	selectors = append(selectors, preps.Imm.Selectors...)
	return evalFromBits(eval, circuit, selectors)
}
