// Package ram implements the encrypted random-access memory (spec 4.4,
// component C5): a Ram is wordSize SubRams, one per bit-plane, each holding
// a tree of packed GLWE ciphertexts. Reads and writes never touch an
// address in the clear; they use package coordinate's encrypted
// Coordinates and package blindselect's CMUX tree to move the addressed
// bit to a known ciphertext position, operate on it, and move it back.
// Grounded on the original memory model's Memory/BitArray pair
// (read_stateless, read_statefull, read_statefull_rev, write, zero).
package ram

import (
	"fmt"

	"github.com/entropic-labs/fhevm/blindselect"
	"github.com/entropic-labs/fhevm/coordinate"
	"github.com/entropic-labs/fhevm/glwe"
)

// AutomorphismHelper supplies the trace key glwe.Trace needs and the
// inversion key coordinate.Address.Inverted needs; implemented by package
// keys.
type AutomorphismHelper interface {
	coordinate.Inverter
	TraceTo(eval *glwe.Evaluator, ct *glwe.Ciphertext, start, end int, opOut *glwe.Ciphertext)
}

// SubRam is one bit-plane of encrypted RAM: a tree of GLWE ciphertexts
// whose packed coefficients together hold one bit of every memory word.
type SubRam struct {
	data    []*glwe.Ciphertext
	size    int // number of addressable words in this plane
	bitSize int // ceil(log2(size))
	state   bool
}

// NewSubRam allocates a zeroed SubRam addressing size words, each
// ciphertext packing up to N = 2^LogN words' worth of this bit.
func NewSubRam(eval *glwe.Evaluator, size int) *SubRam {
	params := eval.Params()
	n := 1 << params.LogN()
	leaves := (size + n - 1) / n
	if leaves < 1 {
		leaves = 1
	}
	data := make([]*glwe.Ciphertext, leaves)
	for i := range data {
		data[i] = glwe.NewCiphertext(params, 1, params.MaxLevelQ())
	}
	return &SubRam{data: data, size: size, bitSize: bitLen(size)}
}

func bitLen(size int) int {
	b := 0
	for (1 << b) < size {
		b++
	}
	return b
}

// splitAddress partitions address's Coordinates into a coarse prefix
// (selecting which leaf ciphertext, one bit per leaf-doubling) and a fine
// suffix (rotating within the selected leaf), matching how the original
// model splits an address between GLWEBlindRetriever's tree descent and
// glwe_blind_rotation's intra-ciphertext rotation.
func (s *SubRam) splitAddress(address *coordinate.Address) (treeCoords, rotateCoords []*coordinate.Coordinate) {
	treeDepth := bitLen(len(s.data))
	if treeDepth == 0 {
		return nil, address.Coordinates
	}
	if treeDepth > len(address.Coordinates) {
		treeDepth = len(address.Coordinates)
	}
	return address.Coordinates[len(address.Coordinates)-treeDepth:], address.Coordinates[:len(address.Coordinates)-treeDepth]
}

// ReadStateless returns the bit addressed by address, leaving the SubRam
// unmodified and reusable for further stateless reads (spec 4.4's
// read_stateless).
func (s *SubRam) ReadStateless(eval *glwe.Evaluator, address *coordinate.Address) *glwe.Ciphertext {
	if s.state {
		panic(fmt.Errorf("ram: ReadStateless: SubRam is mid read_statefull/write"))
	}
	treeCoords, rotateCoords := s.splitAddress(address)

	leaves := make([]*glwe.Ciphertext, len(s.data))
	copy(leaves, s.data)
	treeBits := make([]*glwe.Selector, len(treeCoords))
	for i, c := range treeCoords {
		treeBits[i] = c.Selector()
	}

	rotate := func(ct, opOut, tmp *glwe.Ciphertext) {
		rest := &coordinate.Address{Coordinates: rotateCoords}
		rest.BlindRotate(eval, ct, opOut, tmp)
	}
	return blindselect.BlindRotateRetrieve(eval, treeBits, leaves, rotate)
}

// ReadStatefull is ReadStateless, but marks the SubRam as "mid read": a
// subsequent ReadStatefullRev or Write must be called on the same address
// before any further stateless read is permitted. The rotation is written
// to a fresh output ciphertext; the stored leaf data is not rotated in
// place, and the later write-back computes the rotation again.
func (s *SubRam) ReadStatefull(eval *glwe.Evaluator, address *coordinate.Address) *glwe.Ciphertext {
	if s.state {
		panic(fmt.Errorf("ram: ReadStatefull: already mid read_statefull"))
	}
	treeCoords, rotateCoords := s.splitAddress(address)

	if len(treeCoords) > 0 {
		leaves := make([]*glwe.Ciphertext, len(s.data))
		copy(leaves, s.data)
		treeBits := make([]*glwe.Selector, len(treeCoords))
		for i, c := range treeCoords {
			treeBits[i] = c.Selector()
		}
		// Tree-selected leaf becomes the sole working ciphertext: collapse
		// data down to it so the later ReadStatefullRev writes back to the
		// same position it was read from.
		selected := blindselect.TreeSelect(eval, treeBits, leaves)
		s.data[0] = selected
	}

	out := glwe.NewCiphertext(eval.Params(), s.data[0].Degree(), s.data[0].Level())
	tmp := glwe.NewCiphertext(eval.Params(), s.data[0].Degree(), s.data[0].Level())
	rest := &coordinate.Address{Coordinates: rotateCoords}
	rest.BlindRotate(eval, s.data[0], out, tmp)
	s.state = true
	return out
}

// ReadStatefullRev completes a pending ReadStatefull by writing bit back
// into the position it was rotated out of: to_write_on = to_write_on -
// TRACE(to_write_on) + bit, then rotating back (spec 4.4's
// read_statefull_rev).
func (s *SubRam) ReadStatefullRev(eval *glwe.Evaluator, address *coordinate.Address, bit *glwe.Ciphertext, helper AutomorphismHelper) {
	if !s.state {
		panic(fmt.Errorf("ram: ReadStatefullRev: no pending read_statefull"))
	}
	s.writeBack(eval, address, bit, helper)
	s.state = false
}

// Write overwrites the bit addressed by address with bit, without a prior
// ReadStatefull (spec 4.4's write: equivalent to ReadStatefull followed
// immediately by ReadStatefullRev with the same address, fused into one
// call since the caller never needs the old value).
func (s *SubRam) Write(eval *glwe.Evaluator, address *coordinate.Address, bit *glwe.Ciphertext, helper AutomorphismHelper) {
	if s.state {
		panic(fmt.Errorf("ram: Write: SubRam is mid read_statefull"))
	}
	treeCoords, _ := s.splitAddress(address)
	if len(treeCoords) > 0 {
		leaves := make([]*glwe.Ciphertext, len(s.data))
		copy(leaves, s.data)
		treeBits := make([]*glwe.Selector, len(treeCoords))
		for i, c := range treeCoords {
			treeBits[i] = c.Selector()
		}
		s.data[0] = blindselect.TreeSelect(eval, treeBits, leaves)
	}
	s.writeBack(eval, address, bit, helper)
}

func (s *SubRam) writeBack(eval *glwe.Evaluator, address *coordinate.Address, bit *glwe.Ciphertext, helper AutomorphismHelper) {
	_, rotateCoords := s.splitAddress(address)
	target := s.data[0]

	// rotate the addressed coefficient into the constant slot, subtract it
	// out via trace, add the new bit in, rotate back.
	rotated := glwe.NewCiphertext(eval.Params(), target.Degree(), target.Level())
	tmp := glwe.NewCiphertext(eval.Params(), target.Degree(), target.Level())
	rest := &coordinate.Address{Coordinates: rotateCoords}
	rest.BlindRotate(eval, target, rotated, tmp)

	traced := glwe.NewCiphertext(eval.Params(), rotated.Degree(), rotated.Level())
	helper.TraceTo(eval, rotated, 0, eval.Params().LogN(), traced)
	eval.Sub(rotated, traced, rotated)
	eval.Add(rotated, bit, rotated)
	eval.Normalize(rotated)

	invRest := rest.Inverted(eval, helper)
	invRest.BlindRotate(eval, rotated, target, tmp)
}

// Zero forces the bit at addr to plaintext zero, used to re-assert x0's
// hard-wired-zero invariant after any speculative write path might have
// touched it (spec invariant I-X0; grounded on the original model's
// Memory::zero, which rotates the addressed coefficient to position 0,
// traces it out, and rotates back).
func (s *SubRam) Zero(eval *glwe.Evaluator, addr int, helper AutomorphismHelper) {
	n := 1 << eval.Params().LogN()
	poly := addr / n
	idx := addr % n
	if poly >= len(s.data) {
		panic(fmt.Errorf("ram: Zero: addr %d out of range", addr))
	}
	a := s.data[poly]
	rotated := glwe.NewCiphertext(eval.Params(), a.Degree(), a.Level())
	eval.Rotate(a, -idx, rotated)
	traced := glwe.NewCiphertext(eval.Params(), rotated.Degree(), rotated.Level())
	helper.TraceTo(eval, rotated, 0, eval.Params().LogN(), traced)
	eval.Sub(rotated, traced, rotated)
	eval.Rotate(rotated, idx, a)
}

// Ram is wordSize SubRams, one per bit of the stored word width (spec 4.4).
type Ram struct {
	Planes   []*SubRam
	Size     int
	WordSize int
}

// New allocates a zeroed Ram addressing size words of wordSize bits each.
func New(eval *glwe.Evaluator, wordSize, size int) *Ram {
	planes := make([]*SubRam, wordSize)
	for i := range planes {
		planes[i] = NewSubRam(eval, size)
	}
	return &Ram{Planes: planes, Size: size, WordSize: wordSize}
}

// ReadStateless reads one full word nondestructively.
func (r *Ram) ReadStateless(eval *glwe.Evaluator, address *coordinate.Address) []*glwe.Ciphertext {
	out := make([]*glwe.Ciphertext, r.WordSize)
	for i, p := range r.Planes {
		out[i] = p.ReadStateless(eval, address)
	}
	return out
}

// ReadStatefull reads one full word, leaving every plane primed for a
// matching ReadStatefullRev or Write at the same address.
func (r *Ram) ReadStatefull(eval *glwe.Evaluator, address *coordinate.Address) []*glwe.Ciphertext {
	out := make([]*glwe.Ciphertext, r.WordSize)
	for i, p := range r.Planes {
		out[i] = p.ReadStatefull(eval, address)
	}
	return out
}

// ReadStatefullRev completes a pending ReadStatefull, writing bits back.
func (r *Ram) ReadStatefullRev(eval *glwe.Evaluator, address *coordinate.Address, bits []*glwe.Ciphertext, helper AutomorphismHelper) {
	for i, p := range r.Planes {
		p.ReadStatefullRev(eval, address, bits[i], helper)
	}
}

// Write overwrites one full word at address.
func (r *Ram) Write(eval *glwe.Evaluator, address *coordinate.Address, bits []*glwe.Ciphertext, helper AutomorphismHelper) {
	for i, p := range r.Planes {
		p.Write(eval, address, bits[i], helper)
	}
}

// ZeroWord forces every bit-plane at addr to plaintext zero.
func (r *Ram) ZeroWord(eval *glwe.Evaluator, addr int, helper AutomorphismHelper) {
	for _, p := range r.Planes {
		p.Zero(eval, addr, helper)
	}
}
