// Package debug implements the plaintext shadow interpreter (spec 6.3,
// component C12): a Shadow mirrors one vm.State entirely in cleartext
// uint32s, stepped through the same fetch/decode/execute/writeback sequence
// via every opcode's EvalPlain oracle instead of its encrypted EvalEnc
// circuit. Assert decrypts the real encrypted state with the evaluation-key
// bundle and panics on the first mismatch, naming the sub-step and the
// values that disagreed.
//
// Grounded on _examples/original_source/fhevm/src/debug.rs's
// InterpreterDebug: the same seven ROM arrays, 32-register file and RAM
// image kept in the clear, stepped in lockstep with the encrypted VM and
// compared after every cycle. debug mode is strictly an assertion harness;
// it never feeds back into the encrypted computation.
package debug

import (
	"fmt"

	"github.com/entropic-labs/fhevm/coordinate"
	"github.com/entropic-labs/fhevm/glwe"
	"github.com/entropic-labs/fhevm/keys"
	"github.com/entropic-labs/fhevm/opcode"
	"github.com/entropic-labs/fhevm/vm"
)

// Shadow is a plaintext mirror of one vm.State: the same program counter,
// register file, data RAM and seven pre-decoded instruction ROMs, but held
// as bare uint32s rather than ciphertexts.
type Shadow struct {
	cfg *vm.Config

	Pc        uint32
	Registers [vm.NumRegs]uint32
	Ram       []uint32
	Roms      [7][]uint32
}

// NewShadow allocates a zeroed Shadow sized the same way vm.NewState sizes
// its encrypted counterpart.
func NewShadow(cfg *vm.Config) *Shadow {
	sh := &Shadow{
		cfg: cfg,
		Ram: make([]uint32, 1<<cfg.RamAddrBits),
	}
	for i := range sh.Roms {
		sh.Roms[i] = make([]uint32, 1<<cfg.RomAddrBits)
	}
	return sh
}

// LoadROM copies one fully-decoded instruction ROM's plaintext contents into
// the shadow, the cleartext counterpart of loader writing the same values
// into vm.State.Roms[field] as ciphertexts.
func (sh *Shadow) LoadROM(field vm.RomField, words []uint32) {
	copy(sh.Roms[field], words)
}

// LoadRAM copies the initial data-memory image into the shadow.
func (sh *Shadow) LoadRAM(words []uint32) {
	copy(sh.Ram, words)
}

// Cycle runs exactly one plaintext fetch/decode/execute/writeback step,
// mirroring vm.Interpreter.Cycle's ten steps without any encryption.
func (sh *Shadow) Cycle() {
	cfg := sh.cfg

	romMask := uint32(1<<cfg.RomAddrBits) - 1
	fetchIdx := (sh.Pc >> 2) & romMask

	imm := sh.Roms[vm.RomImm][fetchIdx]
	rs1Addr := sh.Roms[vm.RomRs1Addr][fetchIdx] & (vm.NumRegs - 1)
	rs2Addr := sh.Roms[vm.RomRs2Addr][fetchIdx] & (vm.NumRegs - 1)
	rdAddr := sh.Roms[vm.RomRdAddr][fetchIdx] & (vm.NumRegs - 1)
	rdu := opcode.RdUpdate(sh.Roms[vm.RomRdu][fetchIdx])
	mu := opcode.RamUpdate(sh.Roms[vm.RomMu][fetchIdx])
	pcu := opcode.PcUpdate(sh.Roms[vm.RomPcu][fetchIdx])

	rs1 := sh.Registers[rs1Addr]
	rs2 := sh.Registers[rs2Addr]

	ramMask := uint32(1<<cfg.RamAddrBits) - 1
	ramAddr := rs1 + imm - cfg.Offset
	wordAddr := (ramAddr >> 2) & ramMask
	ramVal := sh.Ram[wordAddr]

	rdVal := rdu.EvalPlain(rs1, rs2, imm, sh.Pc, ramVal)
	sh.Registers[rdAddr] = rdVal
	sh.Registers[0] = 0

	sh.Ram[wordAddr] = mu.EvalPlain(ramVal, rs2)
	sh.Pc = pcu.EvalPlain(rs1, rs2, sh.Pc, imm)
}

// Run steps cycles plaintext cycles.
func (sh *Shadow) Run(cycles int) {
	for i := 0; i < cycles; i++ {
		sh.Cycle()
	}
}

// Assert decrypts st with bundle and panics on the first field that
// disagrees with sh's plaintext mirror, naming the field and both values
// (spec 7's debug-mode "decryption-time mismatch" abort class).
func (sh *Shadow) Assert(eval *glwe.Evaluator, bundle *keys.Bundle, st *vm.State) {
	if got := bundle.DecryptWord(st.Pc.Bits); got != sh.Pc {
		panic(fmt.Errorf("debug: Assert: pc mismatch: encrypted=%#x shadow=%#x", got, sh.Pc))
	}
	for addr := 0; addr < vm.NumRegs; addr++ {
		bits := st.Registers.ReadStateless(eval, constAddress(eval, bundle, addr, vm.RegAddrBits))
		if got := bundle.DecryptWord(bits); got != sh.Registers[addr] {
			panic(fmt.Errorf("debug: Assert: register x%d mismatch: encrypted=%#x shadow=%#x", addr, got, sh.Registers[addr]))
		}
	}
	for addr := 0; addr < len(sh.Ram); addr++ {
		bits := st.Ram.ReadStateless(eval, constAddress(eval, bundle, addr, sh.cfg.RamAddrBits))
		if got := bundle.DecryptWord(bits); got != sh.Ram[addr] {
			panic(fmt.Errorf("debug: Assert: ram[%#x] mismatch: encrypted=%#x shadow=%#x", addr, got, sh.Ram[addr]))
		}
	}
}

// constAddress builds the Address encrypting the known plaintext value addr
// over width single-bit digits, the same per-bit layout
// fheuint.FheUintPrepared.ToAddress produces, so Assert's stateless reads
// split into the same tree/rotate levels a real cycle's reads do.
func constAddress(eval *glwe.Evaluator, bundle *keys.Bundle, addr, width int) *coordinate.Address {
	schedule := make(coordinate.Schedule, width)
	for i := range schedule {
		schedule[i] = coordinate.Digit{Bits: 1}
	}
	return coordinate.NewEncryptedAddress(eval, bundle, addr, schedule, false)
}
