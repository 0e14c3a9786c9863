// Package bdd implements the encrypted binary-decision-diagram evaluator
// (spec 4.7, component C7): a Circuit is a set of output Nodes forming a
// DAG over two terminal leaves (constant 0, constant 1) and internal
// branch nodes that each test one input bit. Evaluating a Circuit under
// encryption replaces every branch with a CMUX gated by the corresponding
// input's GGSW selector and every leaf with a trivial plaintext
// ciphertext, exactly the level-by-level reduction the original model's
// arithmetic/add/mod.rs performs (there, codegen-generated per-output-bit
// node lists processed level by level with node sharing across levels).
// Package opcode's per-instruction ALU/comparator/shifter tables are built
// as Circuits over this evaluator.
package bdd

import (
	"fmt"

	"github.com/entropic-labs/fhevm/blindselect"
	"github.com/entropic-labs/fhevm/glwe"
)

// Node is one vertex of a decision diagram: either a constant leaf or a
// branch testing input variable Var, descending to Lo when that input is
// 0 and Hi when it is 1.
type Node struct {
	leaf  bool
	value uint64
	var_  int
	lo    *Node
	hi    *Node
}

// Leaf returns the constant-0 or constant-1 terminal node.
func Leaf(bit uint64) *Node {
	return &Node{leaf: true, value: bit & 1}
}

// Branch returns a node testing input variable v, taking lo when v=0 and
// hi when v=1.
func Branch(v int, lo, hi *Node) *Node {
	return &Node{var_: v, lo: lo, hi: hi}
}

// IsLeaf reports whether n is a constant terminal.
func (n *Node) IsLeaf() bool { return n.leaf }

// LeafValue returns n's constant value; only meaningful when IsLeaf() is
// true.
func (n *Node) LeafValue() uint64 { return n.value }

// Var returns the input variable n branches on; only meaningful when
// IsLeaf() is false.
func (n *Node) Var() int { return n.var_ }

// Lo returns the subtree taken when Var() is 0.
func (n *Node) Lo() *Node { return n.lo }

// Hi returns the subtree taken when Var() is 1.
func (n *Node) Hi() *Node { return n.hi }

// And returns a BDD computing a && b, for pre-built sub-diagrams a, b
// (unlike And2, which takes raw circuit-input indices).
func And(a, b *Node) *Node { return ite(a, b, Leaf(0)) }

// Or returns a BDD computing a || b, for pre-built sub-diagrams.
func Or(a, b *Node) *Node { return ite(a, Leaf(1), b) }

// Xor returns a BDD computing a != b, for pre-built sub-diagrams.
func Xor(a, b *Node) *Node { return ite(a, Not(b), b) }

// IfElse substitutes sub-diagram t/e in place of constant 1/0 leaves of
// cond: if-then-else(cond, t, e).
func IfElse(cond, t, e *Node) *Node { return ite(cond, t, e) }

// Circuit is a collection of output Nodes sharing structure (common
// sub-diagrams are visited once per evaluation via memoization), over
// NumInputs encrypted input bits.
type Circuit struct {
	NumInputs int
	Outputs   []*Node
}

// New builds a Circuit testing numInputs input bits and producing
// len(outputs) output bits.
func New(numInputs int, outputs ...*Node) *Circuit {
	return &Circuit{NumInputs: numInputs, Outputs: outputs}
}

// EvalEnc evaluates every output of c under encryption: inputs[i] must be
// the GGSW circuit-bootstrap of input bit i (package fheuint.Prepare).
// Shared sub-diagrams are evaluated once via per-call memoization, as the
// original model's level-bounded node lists do.
func (c *Circuit) EvalEnc(eval *glwe.Evaluator, inputs []*glwe.Selector) []*glwe.Ciphertext {
	if len(inputs) < c.NumInputs {
		panic(fmt.Errorf("bdd: EvalEnc: got %d input selectors, need %d", len(inputs), c.NumInputs))
	}
	memo := make(map[*Node]*glwe.Ciphertext)
	var walk func(n *Node) *glwe.Ciphertext
	walk = func(n *Node) *glwe.Ciphertext {
		if ct, ok := memo[n]; ok {
			return ct
		}
		var out *glwe.Ciphertext
		if n.leaf {
			out = eval.TrivialBit(n.value)
		} else {
			lo := walk(n.lo)
			hi := walk(n.hi)
			out = glwe.NewCiphertext(eval.Params(), lo.Degree(), lo.Level())
			blindselect.Cmux(eval, inputs[n.var_], lo, hi, out)
		}
		memo[n] = out
		return out
	}
	res := make([]*glwe.Ciphertext, len(c.Outputs))
	for i, o := range c.Outputs {
		res[i] = walk(o)
	}
	return res
}

// EvalPlain is the cleartext reference oracle for c, used by package debug
// and package interp to validate encrypted evaluation against the same
// decision diagram with no ciphertexts involved.
func (c *Circuit) EvalPlain(inputs []bool) []bool {
	if len(inputs) < c.NumInputs {
		panic(fmt.Errorf("bdd: EvalPlain: got %d inputs, need %d", len(inputs), c.NumInputs))
	}
	memo := make(map[*Node]bool)
	var walk func(n *Node) bool
	walk = func(n *Node) bool {
		if v, ok := memo[n]; ok {
			return v
		}
		var out bool
		if n.leaf {
			out = n.value != 0
		} else if inputs[n.var_] {
			out = walk(n.hi)
		} else {
			out = walk(n.lo)
		}
		memo[n] = out
		return out
	}
	res := make([]bool, len(c.Outputs))
	for i, o := range c.Outputs {
		res[i] = walk(o)
	}
	return res
}

// --- gate-level builders -------------------------------------------------
//
// Elementary 2-input boolean gates expressed as 2-level decision diagrams
// over the two named input variables, for composing wider circuits (an
// N-bit ripple-carry adder, a bit-serial comparator, a barrel shifter)
// without hand-writing every node.

// Not returns a BDD computing !a.
func Not(a *Node) *Node {
	if a.leaf {
		return Leaf(a.value ^ 1)
	}
	return Branch(a.var_, Not(a.lo), Not(a.hi))
}

// And2 returns a BDD testing input variables ai, bi directly (used for the
// leaves of wider circuits where a and b are raw circuit inputs rather
// than already-built sub-diagrams).
func And2(ai, bi int) *Node {
	return Branch(ai, Leaf(0), Branch(bi, Leaf(0), Leaf(1)))
}

// Or2 returns a BDD testing input variables ai, bi directly.
func Or2(ai, bi int) *Node {
	return Branch(ai, Branch(bi, Leaf(0), Leaf(1)), Leaf(1))
}

// Xor2 returns a BDD testing input variables ai, bi directly.
func Xor2(ai, bi int) *Node {
	return Branch(ai, Branch(bi, Leaf(0), Leaf(1)), Branch(bi, Leaf(1), Leaf(0)))
}

// Mux returns a BDD selecting hi when the selector variable sel is 1, lo
// when it is 0 — the same semantics as blindselect.Cmux, expressed as a
// reusable decision-diagram fragment for composing bigger circuits (e.g. a
// shifter's per-stage mux).
func Mux(sel int, lo, hi *Node) *Node {
	return Branch(sel, lo, hi)
}

// FullAdder returns (sum, carryOut) decision diagrams for inputs a, b,
// carryIn, each an already-built sub-diagram (not necessarily a raw
// variable), the building block a RippleCarryAdder composes N times (spec
// 4.7's worked example for ALU ADD/SUB, grounded on arithmetic/add/mod.rs's
// per-bit cmux cascade).
func FullAdder(a, b, carryIn *Node) (sum, carryOut *Node) {
	axorb := xorNodes(a, b)
	sum = xorNodes(axorb, carryIn)
	ab := andNodes(a, b)
	cinAxorb := andNodes(carryIn, axorb)
	carryOut = orNodes(ab, cinAxorb)
	return sum, carryOut
}

func andNodes(a, b *Node) *Node { return ite(a, b, Leaf(0)) }
func orNodes(a, b *Node) *Node  { return ite(a, Leaf(1), b) }
func xorNodes(a, b *Node) *Node { return ite(a, Not(b), b) }

// ite substitutes sub-diagram t/e in place of constant 1/0 leaves of cond,
// i.e. if-then-else(cond, t, e), by cloning cond's structure with its
// leaves replaced. Used to compose pre-built sub-diagrams (rather than raw
// variables) the way FullAdder chains carries across bit positions.
func ite(cond, t, e *Node) *Node {
	if cond.leaf {
		if cond.value != 0 {
			return t
		}
		return e
	}
	return Branch(cond.var_, ite(cond.lo, t, e), ite(cond.hi, t, e))
}

// AddConstant returns width sum bits for (raw input variables [0,width)) +
// c, a fixed cleartext constant, via the same full-adder chain
// RippleCarryAdder uses but with c's bits as Leaf constants instead of a
// second set of input variables. Used for PC+4-style updates (spec 4.8's
// JAL/JALR return-address computation), where one operand is a compile-time
// constant rather than an encrypted register.
func AddConstant(width int, c uint64) []*Node {
	sum := make([]*Node, width)
	carry := Leaf(0)
	for i := 0; i < width; i++ {
		ai := Branch(i, Leaf(0), Leaf(1))
		bi := Leaf((c >> uint(i)) & 1)
		s, cr := FullAdder(ai, bi, carry)
		sum[i] = s
		carry = cr
	}
	return sum
}

// RippleCarryAdder returns width sum bits and the final carry-out bit for
// a + b (+ an optional carryIn, for SUB via two's-complement: b inverted
// and carryIn fixed to 1). a and b are the circuit's raw input variable
// indices, width each, a's at [0,width) and b's at [width,2*width).
func RippleCarryAdder(width int, invertB bool, carryIn *Node) (sum []*Node, carryOut *Node) {
	sum = make([]*Node, width)
	carry := carryIn
	for i := 0; i < width; i++ {
		ai := Branch(i, Leaf(0), Leaf(1))
		var bi *Node
		if invertB {
			bi = Branch(width+i, Leaf(1), Leaf(0))
		} else {
			bi = Branch(width+i, Leaf(0), Leaf(1))
		}
		s, c := FullAdder(ai, bi, carry)
		sum[i] = s
		carry = c
	}
	return sum, carry
}
