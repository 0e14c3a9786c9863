// Package fheuint implements the encrypted unsigned-integer register type
// (spec 4.5, component C6): a FheUint holds one GLWE ciphertext per bit of
// an N-bit word (each bit living in the constant coefficient of its own
// ciphertext), the natural representation for a value living in a RISC-V
// register or flowing through a BDD circuit. Prepare (circuit bootstrap)
// upgrades a FheUint into a FheUintPrepared, whose bits are GGSW selectors
// usable as coordinate.Coordinates for RAM addressing or as BDD CMUX
// selector inputs. Pack folds a FheUint's bits down into one dense GLWE for
// storage, the same packing tower package packer exposes.
//
// Grounded on the original model's circuit_bootstrapping.rs
// (CircuitBootstrapper: bit -> GGSW via blind rotation + partial trace) and
// memory.rs's FheUint/FheUintPrepared usage (pack, get_bit_glwe). The
// teacher's rgsw/rlwe stack already exposes GGSW automorphism and trace as
// first-class evaluator calls, so Prepare is expressed directly in terms of
// this module's glwe.Evaluator rather than re-deriving the original's
// LWE-programmable-bootstrap pipeline.
package fheuint

import (
	"fmt"

	"github.com/entropic-labs/fhevm/coordinate"
	"github.com/entropic-labs/fhevm/glwe"
	"github.com/entropic-labs/fhevm/packer"
)

// FheUint is an N-bit encrypted unsigned integer: one GLWE ciphertext per
// bit, each carrying its bit's value on the constant coefficient.
type FheUint struct {
	Bits []*glwe.Ciphertext
}

// New allocates a zeroed N-bit FheUint.
func New(eval *glwe.Evaluator, width int) *FheUint {
	params := eval.Params()
	bits := make([]*glwe.Ciphertext, width)
	for i := range bits {
		bits[i] = glwe.NewCiphertext(params, 1, params.MaxLevelQ())
	}
	return &FheUint{Bits: bits}
}

// Width returns the bit width.
func (f *FheUint) Width() int { return len(f.Bits) }

// GetBit returns the ciphertext carrying bit i.
func (f *FheUint) GetBit(i int) *glwe.Ciphertext { return f.Bits[i] }

// SetBit overwrites bit i.
func (f *FheUint) SetBit(i int, ct *glwe.Ciphertext) { f.Bits[i] = ct }

// Pack folds every bit down into one dense GLWE whose i-th coefficient is
// bit i's value, via the log-N automorphism tower (spec 4.2/4.5's
// FheUint::pack).
func (f *FheUint) Pack(eval *glwe.Evaluator, logN int, scratchBufs [2]*glwe.Ciphertext) *glwe.Ciphertext {
	p := packer.New(eval, logN)
	for _, b := range f.Bits {
		p.Add(b)
	}
	return p.Flush(scratchBufs)
}

// Bootstrapper converts a single encrypted bit (a GLWE ciphertext whose
// constant coefficient is 0 or 1) into a GGSW encryption of the constant
// polynomial bit (0 or 1), i.e. a circuit bootstrap producing a plain 0/1
// selector. CircuitBootstrapWeighted is the same operation but
// scaled for addressing use: it returns the GGSW encryption of
// X^{bit*weight}, the form a bit's Coordinate must take for Address.
// BlindRotate's chained external products to land on the right coefficient
// (spec 4.3's per-level digit weighting). Implemented by package keys
// using the module's circuit-bootstrap key material.
type Bootstrapper interface {
	CircuitBootstrap(eval *glwe.Evaluator, bit *glwe.Ciphertext) *glwe.Selector
	CircuitBootstrapWeighted(eval *glwe.Evaluator, bit *glwe.Ciphertext, weight int) *glwe.Selector
}

// FheUintPrepared is a FheUint whose bits have been circuit-bootstrapped
// into GGSW selectors, ready for use as RAM-addressing Coordinates or BDD
// CMUX selector inputs.
type FheUintPrepared struct {
	Selectors []*glwe.Selector
}

// Prepare circuit-bootstraps every bit of f into a plain 0/1 GGSW selector,
// the form a BDD CMUX or a blind-select tag bit needs.
func (f *FheUint) Prepare(eval *glwe.Evaluator, bs Bootstrapper) *FheUintPrepared {
	sels := make([]*glwe.Selector, len(f.Bits))
	for i, b := range f.Bits {
		sels[i] = bs.CircuitBootstrap(eval, b)
	}
	return &FheUintPrepared{Selectors: sels}
}

// PrepareAddress circuit-bootstraps every bit of f with its positional
// weight 2^i, producing the form ToAddress needs: bit i's selector encodes
// X^{bit_i * 2^i}, so Address.BlindRotate's chained external products
// multiply out to X^{value of f} rather than X^{popcount of f}.
func (f *FheUint) PrepareAddress(eval *glwe.Evaluator, bs Bootstrapper) *FheUintPrepared {
	sels := make([]*glwe.Selector, len(f.Bits))
	for i, b := range f.Bits {
		sels[i] = bs.CircuitBootstrapWeighted(eval, b, 1<<i)
	}
	return &FheUintPrepared{Selectors: sels}
}

// ToAddress reinterprets the prepared bits as a coordinate.Address whose
// Schedule is one single-bit Digit per bit, least-significant bit first:
// the natural address representation for RAM indexing by an encrypted
// integer (spec 4.3/4.4). p must have been built by PrepareAddress, not
// Prepare, or the resulting Address will rotate by the popcount of f
// instead of f's value.
func (p *FheUintPrepared) ToAddress(inverse bool) *coordinate.Address {
	schedule := make(coordinate.Schedule, len(p.Selectors))
	coords := make([]*coordinate.Coordinate, len(p.Selectors))
	for i, sel := range p.Selectors {
		schedule[i] = coordinate.Digit{Bits: 1}
		coords[i] = coordinate.FromSelector(sel, inverse)
	}
	return &coordinate.Address{Coordinates: coords, Schedule: schedule}
}

// GetBitGLWE extracts bit i of f as a fresh one-coefficient GLWE ciphertext
// suitable for a RAM write (spec 4.4's get_bit_glwe: memory.rs calls this
// once per SubRam before calling write/read_statefull_rev). Since f already
// stores bits individually, this is a defensive copy rather than a real
// extraction.
func (f *FheUint) GetBitGLWE(eval *glwe.Evaluator, i int) *glwe.Ciphertext {
	if i < 0 || i >= len(f.Bits) {
		panic(fmt.Errorf("fheuint: GetBitGLWE: bit %d out of range [0,%d)", i, len(f.Bits)))
	}
	out := glwe.NewCiphertext(eval.Params(), f.Bits[i].Degree(), f.Bits[i].Level())
	eval.Copy(f.Bits[i], out)
	return out
}

// ZeroExtend returns a new, wider FheUint whose low bits are f's bits and
// whose high bits are plaintext zero (RISC-V LBU/LHU semantics).
func (f *FheUint) ZeroExtend(eval *glwe.Evaluator, width int) *FheUint {
	if width < len(f.Bits) {
		panic(fmt.Errorf("fheuint: ZeroExtend: target width %d < current width %d", width, len(f.Bits)))
	}
	out := New(eval, width)
	for i, b := range f.Bits {
		eval.Copy(b, out.Bits[i])
	}
	return out
}

// SignExtend returns a new, wider FheUint whose low bits are f's bits and
// whose high bits are copies of f's sign bit (RISC-V LB/LH semantics). Every
// high bit is its own ciphertext, copied from the sign bit, so the result
// shares no ciphertext with f.
func (f *FheUint) SignExtend(eval *glwe.Evaluator, width int) *FheUint {
	if width < len(f.Bits) {
		panic(fmt.Errorf("fheuint: SignExtend: target width %d < current width %d", width, len(f.Bits)))
	}
	out := New(eval, width)
	for i, b := range f.Bits {
		eval.Copy(b, out.Bits[i])
	}
	sign := f.Bits[len(f.Bits)-1]
	for i := len(f.Bits); i < width; i++ {
		eval.Copy(sign, out.Bits[i])
	}
	return out
}
