package vm

import (
	"fmt"

	"github.com/entropic-labs/fhevm/coordinate"
	"github.com/entropic-labs/fhevm/glwe"
	"github.com/entropic-labs/fhevm/keys"
	"github.com/entropic-labs/fhevm/loader"
	"github.com/entropic-labs/fhevm/ram"
)

// NewStateFromImage allocates a State sized by cfg and encrypts img's
// decoded instruction ROMs and initial data-RAM image into it under bundle
// (spec 6.1's instructions_encrypt_sk / RAM preload, generalized from the
// original's one-shot secret-key batch encryption to per-word EncryptWord
// calls, since this module's Ram is written one addressed word at a time
// rather than constructed directly from a coefficient vector).
func NewStateFromImage(eval *glwe.Evaluator, bundle *keys.Bundle, cfg *Config, img *loader.Image) (*State, error) {
	if img.NumWords > 1<<cfg.RomAddrBits {
		return nil, fmt.Errorf("vm: NewStateFromImage: image has %d instructions, exceeds 2^%d ROM capacity", img.NumWords, cfg.RomAddrBits)
	}

	st := NewState(eval, cfg)

	for i := 0; i < img.NumWords; i++ {
		fl := img.Fields[i]
		writeWord(eval, bundle, st.Roms[RomImm], i, fl.Imm)
		writeWord(eval, bundle, st.Roms[RomRs1Addr], i, fl.Rs1Addr)
		writeWord(eval, bundle, st.Roms[RomRs2Addr], i, fl.Rs2Addr)
		writeWord(eval, bundle, st.Roms[RomRdAddr], i, fl.RdAddr)
		writeWord(eval, bundle, st.Roms[RomRdu], i, uint32(fl.Rdu))
		writeWord(eval, bundle, st.Roms[RomMu], i, uint32(fl.Mu))
		writeWord(eval, bundle, st.Roms[RomPcu], i, uint32(fl.Pcu))
	}

	ramWords := img.RamWords()
	if len(ramWords) > st.Ram.Size {
		return nil, fmt.Errorf("vm: NewStateFromImage: data image has %d words, exceeds 2^%d RAM capacity", len(ramWords), cfg.RamAddrBits)
	}
	for addr, word := range ramWords {
		writeWord(eval, bundle, st.Ram, addr, word)
	}

	return st, nil
}

// writeWord encrypts value under bundle and writes it into r at addr, over
// a freshly built constant address spanning log2Ceil(r.Size) single-bit
// digits — the same per-bit weighted layout a runtime
// fheuint.FheUintPrepared.ToAddress produces, so the write lands exactly
// where a later encrypted-address read or write expects it.
func writeWord(eval *glwe.Evaluator, bundle *keys.Bundle, r *ram.Ram, addr int, value uint32) {
	bits := bundle.EncryptWord(eval, value, r.WordSize)
	r.Write(eval, constAddress(eval, bundle, addr, log2Ceil(r.Size)), bits, bundle)
}

func constAddress(eval *glwe.Evaluator, bundle *keys.Bundle, addr, width int) *coordinate.Address {
	schedule := make(coordinate.Schedule, width)
	for i := range schedule {
		schedule[i] = coordinate.Digit{Bits: 1}
	}
	return coordinate.NewEncryptedAddress(eval, bundle, addr, schedule, false)
}
