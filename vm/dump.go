package vm

import (
	"github.com/entropic-labs/fhevm/glwe"
	"github.com/entropic-labs/fhevm/keys"
)

// DecryptPc decrypts the program counter, the counterpart of
// NewStateFromImage's seeding path (spec 6.3's debug-mode decrypt surface,
// exposed here for the non-debug CLI path too: a final register/PC dump
// needs the same decrypt, whether or not debug assertions ran along the way).
func (st *State) DecryptPc(bundle *keys.Bundle) uint32 {
	return bundle.DecryptWord(st.Pc.Bits)
}

// DecryptRegisters decrypts every general-purpose register.
func (st *State) DecryptRegisters(eval *glwe.Evaluator, bundle *keys.Bundle) [NumRegs]uint32 {
	var out [NumRegs]uint32
	for i := range out {
		bits := st.Registers.ReadStateless(eval, constAddress(eval, bundle, i, RegAddrBits))
		out[i] = bundle.DecryptWord(bits)
	}
	return out
}

// DecryptRamRange decrypts count consecutive RAM words starting at the word
// address start (e.g. the .outdata region a program wrote its result to).
func (st *State) DecryptRamRange(eval *glwe.Evaluator, bundle *keys.Bundle, start, count int) []uint32 {
	width := log2Ceil(st.Ram.Size)
	out := make([]uint32, count)
	for i := range out {
		bits := st.Ram.ReadStateless(eval, constAddress(eval, bundle, start+i, width))
		out[i] = bundle.DecryptWord(bits)
	}
	return out
}
