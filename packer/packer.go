// Package packer implements the log-N automorphism tower that bundles up to
// N one-coefficient GLWE ciphertexts into a single dense GLWE (spec 4.2,
// component C3). It is the mechanism every RAM tree level (package ram) and
// every FheUint repack (package fheuint) uses to go from "many ciphertexts,
// one live coefficient each" to "one ciphertext, many live coefficients".
package packer

import (
	"fmt"

	"github.com/entropic-labs/fhevm/glwe"
)

// Packer accumulates up to N inputs via Add, then emits one GLWE whose j-th
// coefficient equals the constant-coefficient of the j-th input (or 0 for a
// nil input) via Flush. A Packer instance is single-use: Flush leaves it
// exhausted, and the caller constructs a fresh one for the next bundle.
type Packer struct {
	eval   *glwe.Evaluator
	logN   int
	n      int
	inputs []*glwe.Ciphertext // nil entries encode "zero at this slot"
	count  int
}

// New allocates a Packer that will accept up to N = 2^logN inputs.
func New(eval *glwe.Evaluator, logN int) *Packer {
	return &Packer{
		eval:   eval,
		logN:   logN,
		n:      1 << logN,
		inputs: make([]*glwe.Ciphertext, 1<<logN),
	}
}

// Add consumes the next input in the stream. ct may be nil, meaning "this
// coefficient slot is zero". Only ct's constant coefficient is meaningful;
// every other coefficient is discarded by the packing tower. Panics if more
// than N inputs are added.
func (p *Packer) Add(ct *glwe.Ciphertext) {
	if p.count >= p.n {
		panic(fmt.Errorf("packer: Add: already received N=%d inputs", p.n))
	}
	p.inputs[p.count] = ct
	p.count++
}

// Flush runs the classic log-N packing tower and returns one GLWE
// ciphertext whose i-th coefficient is the constant-coefficient of the i-th
// Add'd input. Uses Galois elements g_i = 2^i+1 for i in [0,logN) and
// g_logN = -1, exactly as spec 4.2 describes; the automorphism keys for
// these elements must already be present in the Evaluator's key set (see
// keys.TraceGaloisElements).
func (p *Packer) Flush(scratchBufs [2]*glwe.Ciphertext) *glwe.Ciphertext {
	params := p.eval.Params()

	// Level 0: fold pairs (i, i+n/2) together at gap n/2, recursively halving
	// the gap down to 1. Standard "powers of two" packing tower: at each
	// step, combine ct_lo and ct_hi (separated by `gap` in the original
	// index space) into one ciphertext whose two halves each carry one of
	// the originals, using an automorphism to fold the upper half down.
	level := make([]*glwe.Ciphertext, p.n)
	for i, ct := range p.inputs {
		if ct == nil {
			z := glwe.NewCiphertext(params, ct0Degree(p.inputs), 0)
			level[i] = z
		} else {
			level[i] = ct
		}
	}

	for gap := p.n / 2; gap >= 1; gap /= 2 {
		galIdx := log2(p.n / gap)
		var g uint64
		if galIdx < p.logN {
			g = params.GaloisElement(1<<galIdx + 1)
		} else {
			g = params.GaloisElementOrderTwoOrthogonalSubgroup()
		}

		next := make([]*glwe.Ciphertext, gap)
		for i := 0; i < gap; i++ {
			lo, hi := level[i], level[i+gap]

			rotated := scratchBufs[0]
			p.eval.Automorphism(hi, g, rotated)

			sum := scratchBufs[1]
			p.eval.Add(lo, rotated, sum)

			out := glwe.NewCiphertext(params, sum.Degree(), sum.Level())
			p.eval.Copy(sum, out)
			next[i] = out
		}
		level = next
	}

	return level[0]
}

func ct0Degree(inputs []*glwe.Ciphertext) int {
	for _, ct := range inputs {
		if ct != nil {
			return ct.Degree()
		}
	}
	return 1
}

func log2(n int) int {
	l := 0
	for (1 << l) < n {
		l++
	}
	return l
}
