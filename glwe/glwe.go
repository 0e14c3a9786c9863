// Package glwe binds the RISC-V cycle engine's vocabulary (GLWE ciphertext,
// GLWE plaintext, external product, automorphism, trace) onto the ring/rlwe/
// rgsw algebra layer. It adds no new cryptography: every method here is a
// thin, panic-on-shape-mismatch wrapper around an [rlwe.Evaluator] or
// [rgsw.Evaluator] call, named the way the rest of this module's components
// (packer, coordinate, ram, fheuint, bdd) expect to call them.
package glwe

import (
	"fmt"

	"github.com/entropic-labs/fhevm/ring"
	"github.com/entropic-labs/fhevm/rgsw"
	"github.com/entropic-labs/fhevm/rlwe"
)

// Ciphertext is a GLWE ciphertext: a tuple of RANK+1 ring elements encrypting
// a polynomial plaintext. It is exactly an [rlwe.Ciphertext]; the alias keeps
// the spec's vocabulary in the type name without duplicating the layout.
type Ciphertext = rlwe.Ciphertext

// Plaintext is a GLWE plaintext: a polynomial carrying a declared precision
// k_pt <= K, placed in the high limbs of the torus representation.
type Plaintext = rlwe.Plaintext

// Selector is a GGSW ciphertext: the left operand of external product, used
// as a CMUX selector and as a Coordinate digit.
type Selector = rgsw.Ciphertext

// Params is the GLWE-layer parameter set: ring dimension, torus radix, rank
// and per-component precisions (spec 3.1).
type Params struct {
	rlwe.Parameters
	// Rank is the GLWE rank (spec: RANK), typically 1 or 2.
	Rank int
	// Base2K is the torus radix in bits per limb (spec: BASE2K).
	Base2K int
}

// Evaluator performs every public GLWE/GGSW operation the cycle engine
// needs: encrypt, decrypt, add, sub, rotate, automorphism, trace, external
// product, normalize. It embeds an [rgsw.Evaluator], which itself embeds an
// [rlwe.Evaluator], so GLWE-only call sites can use it directly.
type Evaluator struct {
	*rgsw.Evaluator
	params Params
}

// NewEvaluator allocates an Evaluator bound to params and an evaluation-key
// set already containing every automorphism key the Trace/Packer/Coordinate
// machinery will request.
func NewEvaluator(params Params, evk rlwe.EvaluationKeySet) *Evaluator {
	return &Evaluator{
		Evaluator: rgsw.NewEvaluator(params.Parameters, evk),
		params:    params,
	}
}

// Params returns the bound parameter set.
func (eval *Evaluator) Params() Params { return eval.params }

// NewCiphertext allocates a zero GLWE ciphertext of the given degree
// (RANK) and level, as a fresh heap allocation. It serves both long-lived
// state (registers, RAM, evaluation keys) and per-cycle temporaries; there is
// no scratch arena.
func NewCiphertext(params Params, degree, levelQ int) *Ciphertext {
	return rlwe.NewCiphertext(params.Parameters, degree, levelQ, -1)
}

// NewPlaintext allocates a zero GLWE plaintext at the given level.
func NewPlaintext(params Params, levelQ int) *Plaintext {
	return rlwe.NewPlaintext(params.Parameters, levelQ, -1)
}

// ShallowCopy returns an Evaluator sharing read-only state (keys, module)
// with the receiver but owning fresh scratch buffers, safe for concurrent
// use from a worker goroutine alongside the receiver.
func (eval *Evaluator) ShallowCopy() *Evaluator {
	return &Evaluator{Evaluator: eval.Evaluator.ShallowCopy(), params: eval.params}
}

// Add computes opOut = op0 + op1. Panics on rank/level mismatch.
func (eval *Evaluator) Add(op0, op1 *Ciphertext, opOut *Ciphertext) {
	if op0.Degree() != op1.Degree() || op0.Degree() != opOut.Degree() {
		panic(fmt.Errorf("glwe: Add: degree mismatch: %d, %d, %d", op0.Degree(), op1.Degree(), opOut.Degree()))
	}
	level := min(op0.Level(), op1.Level())
	rQ := eval.GetRLWEParameters().RingQAtLevel(level)
	opOut.ResizeQ(level)
	for i := range op0.Q {
		rQ.Add(op0.Q[i], op1.Q[i], opOut.Q[i])
	}
	*opOut.MetaData = *op0.MetaData
}

// Sub computes opOut = op0 - op1. Panics on rank/level mismatch.
func (eval *Evaluator) Sub(op0, op1 *Ciphertext, opOut *Ciphertext) {
	if op0.Degree() != op1.Degree() || op0.Degree() != opOut.Degree() {
		panic(fmt.Errorf("glwe: Sub: degree mismatch: %d, %d, %d", op0.Degree(), op1.Degree(), opOut.Degree()))
	}
	level := min(op0.Level(), op1.Level())
	rQ := eval.GetRLWEParameters().RingQAtLevel(level)
	opOut.ResizeQ(level)
	for i := range op0.Q {
		rQ.Sub(op0.Q[i], op1.Q[i], opOut.Q[i])
	}
	*opOut.MetaData = *op0.MetaData
}

// Copy copies op0 into opOut without re-encrypting.
func (eval *Evaluator) Copy(op0, opOut *Ciphertext) {
	opOut.Copy(op0)
}

// Rotate negacyclically shifts ct's coefficients by k positions: coefficient
// i of the result is (sign-adjusted) coefficient i-k of ct. Implemented as
// multiplication by the monomial X^k, which for a negacyclic ring is exact
// (no wrap-around sign correction needed beyond what MultByMonomial already
// performs).
func (eval *Evaluator) Rotate(ct *Ciphertext, k int, opOut *Ciphertext) {
	rQ := eval.GetRLWEParameters().RingQAtLevel(ct.Level())
	opOut.ResizeDegree(ct.Degree())
	opOut.ResizeQ(ct.Level())
	*opOut.MetaData = *ct.MetaData
	for i := range ct.Q {
		rQ.MultByMonomial(ct.Q[i], k, opOut.Q[i])
	}
}

// Automorphism applies X -> X^g to ct's underlying plaintext, using the
// automorphism (GGLWE) key for Galois element g out of evk.
func (eval *Evaluator) Automorphism(ct *Ciphertext, g uint64, opOut *Ciphertext) {
	if err := eval.Evaluator.Automorphism(ct, g, opOut); err != nil {
		panic(fmt.Errorf("glwe: Automorphism(%d): %w", g, err))
	}
}

// Trace performs partial trace over [start, end): it zeros every coefficient
// whose index is not a multiple of 2^(LogN-end+start), implemented as the
// (x + phi_g(x))/2 automorphism tower spec 4.1 describes.
func (eval *Evaluator) Trace(ct *Ciphertext, start, end int, opOut *Ciphertext) {
	logN := eval.params.LogN()
	if err := eval.Evaluator.Trace(ct, logN-(end-start), opOut); err != nil {
		panic(fmt.Errorf("glwe: Trace(%d,%d): %w", start, end, err))
	}
}

// ExternalProduct computes ggsw x glwe -> glwe, i.e. Selector-encrypted m1
// times Ciphertext-encrypted m2 yields a GLWE encrypting m1*m2.
func (eval *Evaluator) ExternalProduct(selector *Selector, ct *Ciphertext, opOut *Ciphertext) {
	eval.Evaluator.ExternalProduct(ct, selector, opOut)
}

// TrivialBit returns a trivial (unencrypted, zero-mask) GLWE ciphertext
// whose body carries the boolean constant bit (0 or 1) on the constant
// coefficient's top limb. This is the BDD leaf representation (spec 4.7):
// external-producting a Selector by a trivial ciphertext is how a decision
// diagram's constant outputs enter a CMUX cascade.
func (eval *Evaluator) TrivialBit(bit uint64) *Ciphertext {
	params := eval.params
	ct := NewCiphertext(params, params.Rank, params.MaxLevelQ())
	top := len(ct.Q[0]) - 1
	ct.Q[0][top][0] = (bit & 1) << 63
	return ct
}

// Normalize re-centers and carry-propagates ct's limb representation. Every
// public operation in this package already leaves its output normalized;
// this is exposed for callers (the BDD evaluator's CMUX chains) that
// accumulate several intermediate additions before handing a ciphertext back
// across a package boundary.
func (eval *Evaluator) Normalize(ct *Ciphertext) {
	rQ := eval.GetRLWEParameters().RingQAtLevel(ct.Level())
	for i := range ct.Q {
		rQ.Reduce(ct.Q[i], ct.Q[i])
	}
}
