// Package blindselect implements the CMUX-tree blind retrieval primitive
// (spec 4.9, component C9): given 2^d ciphertext "leaves" and d GGSW
// selector bits, it returns the one leaf whose index matches the bits'
// (encrypted) value, without the evaluator ever learning which index was
// selected. This is the workhorse underneath package ram's tree descent and
// package bdd's CMUX cascades; both package coordinate.Address.BlindRotate
// (intra-ciphertext coefficient rotation) and this package (inter-
// ciphertext leaf selection) together realize a full encrypted RAM read.
package blindselect

import (
	"fmt"

	"github.com/entropic-labs/fhevm/glwe"
)

// Cmux computes opOut = lo + sel*(hi-lo): if sel encrypts 0, opOut carries
// lo's plaintext; if sel encrypts 1, opOut carries hi's. This is the single
// gate every BDD node and every tree level of a blind retrieval is built
// from (spec 4.7/4.9).
func Cmux(eval *glwe.Evaluator, sel *glwe.Selector, lo, hi *glwe.Ciphertext, opOut *glwe.Ciphertext) {
	params := eval.Params()
	diff := glwe.NewCiphertext(params, hi.Degree(), hi.Level())
	eval.Sub(hi, lo, diff)
	prod := glwe.NewCiphertext(params, diff.Degree(), diff.Level())
	eval.ExternalProduct(sel, diff, prod)
	eval.Add(lo, prod, opOut)
}

// CmuxInplace is Cmux with lo as both input and output.
func CmuxInplace(eval *glwe.Evaluator, sel *glwe.Selector, lo, hi *glwe.Ciphertext) {
	Cmux(eval, sel, lo, hi, lo)
}

// TreeSelect blind-selects leaves[idx] for the encrypted idx represented
// (MSB-first) by bits, via a balanced CMUX-tree reduction: len(leaves) must
// equal 2^len(bits). Each level of the tree halves the candidate set by
// CMUXing adjacent pairs on the next bit, exactly mirroring
// GLWEBlindRetriever's recursive descent in the original implementation,
// generalized here to any depth rather than being folded into a single
// polynomial packing.
func TreeSelect(eval *glwe.Evaluator, bits []*glwe.Selector, leaves []*glwe.Ciphertext) *glwe.Ciphertext {
	n := len(leaves)
	if n != 1<<len(bits) {
		panic(fmt.Errorf("blindselect: TreeSelect: %d leaves does not match %d bits", n, len(bits)))
	}
	if n == 1 {
		out := glwe.NewCiphertext(eval.Params(), leaves[0].Degree(), leaves[0].Level())
		eval.Copy(leaves[0], out)
		return out
	}

	level := leaves
	for depth := 0; depth < len(bits); depth++ {
		sel := bits[len(bits)-1-depth] // LSB selects the innermost pairing
		next := make([]*glwe.Ciphertext, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			out := glwe.NewCiphertext(eval.Params(), level[i].Degree(), level[i].Level())
			Cmux(eval, sel, level[i], level[i+1], out)
			next[i/2] = out
		}
		level = next
	}
	return level[0]
}

// BlindRotateRetrieve performs a full encrypted RAM read from a tree of
// GLWE ciphertexts addressed by address: the coarse (per-ciphertext) digits
// of address select a leaf via TreeSelect, and the fine (intra-ciphertext)
// digits rotate that leaf's coefficients into position via
// coordinate.Address.BlindRotate, so the answer always lands on the
// ciphertext's constant coefficient (spec 4.9.2's retrieve_stateless).
//
// treeBits is the prefix of address's Coordinates (as single-bit Selectors)
// used for TreeSelect; rotateAddr is the suffix used for the final
// BlindRotate. Callers (package ram) are responsible for splitting a
// coordinate.Address into these two pieces according to how many leaves the
// underlying data slice has.
func BlindRotateRetrieve(eval *glwe.Evaluator, treeBits []*glwe.Selector, leaves []*glwe.Ciphertext, rotate func(ct, opOut, tmp *glwe.Ciphertext)) *glwe.Ciphertext {
	selected := TreeSelect(eval, treeBits, leaves)
	if rotate == nil {
		return selected
	}
	params := eval.Params()
	out := glwe.NewCiphertext(params, selected.Degree(), selected.Level())
	tmp := glwe.NewCiphertext(params, selected.Degree(), selected.Level())
	rotate(selected, out, tmp)
	return out
}
