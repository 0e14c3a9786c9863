// Package vm implements the cycle orchestrator (spec 4.9, component C10):
// the single VM state (program counter, register file, data RAM, seven
// instruction ROMs) and the ten-step Cycle procedure that fetches,
// decodes, executes and writes back exactly one RISC-V instruction,
// entirely under encryption. Every sub-step is built from the packages
// below it: coordinate (addressing), ram (storage), fheuint (the register/
// operand representation), opcode (the per-instruction BDD banks) and
// blindselect (candidate selection) — vm only sequences them the way
// interpreter.rs's cycle function does.
//
// Grounded on _examples/original_source/fhevm/src/interpreter.rs (the
// per-cycle fetch/decode/execute/writeback sequence) and registers.rs (the
// x0-hardwired-zero register file convention).
package vm

import (
	"fmt"

	"github.com/entropic-labs/fhevm/blindselect"
	"github.com/entropic-labs/fhevm/fheuint"
	"github.com/entropic-labs/fhevm/glwe"
	"github.com/entropic-labs/fhevm/keys"
	"github.com/entropic-labs/fhevm/opcode"
	"github.com/entropic-labs/fhevm/ram"
	"github.com/entropic-labs/fhevm/utils/concurrency"
)

// Width is the RISC-V word width this VM operates on.
const Width = opcode.Width

// RegAddrBits is the register file's address width: 32 general-purpose
// registers, x0 hardwired to zero (registers.rs).
const RegAddrBits = 5

// NumRegs is the register file's size, 2^RegAddrBits.
const NumRegs = 1 << RegAddrBits

// RomField indexes State.Roms: the seven instruction ROMs a cycle fetches,
// in the field order spec 6.2 fixes. Exported so package loader can populate
// each ROM by name and package debug can mirror the same layout in plaintext.
type RomField int

const (
	RomImm RomField = iota
	RomRs1Addr
	RomRs2Addr
	RomRdAddr
	RomRdu
	RomMu
	RomPcu
	numROMs
)

// Config is the VM's immutable configuration, validated once at
// construction (spec 7's configuration-error class: the only error return
// in this package).
type Config struct {
	Params glwe.Params
	// RomAddrBits is log2(MAX_ROM), the instruction memory's address width.
	RomAddrBits int
	// RamAddrBits is log2(MAX_ADDR), the data RAM's word address width.
	RamAddrBits int
	// Offset is the plaintext base address of the data RAM region within
	// the RV32 address space (spec 4.9 step 5: ram_addr = rs1+imm-Offset).
	Offset uint32
	// EnableRV32M gates RdMUL on (spec's Open Question, default off). The
	// MULH/DIV/REM family has no encrypted circuit in this build (see
	// opcode.RdUpdate.EvalEnc's doc) and stays plaintext-oracle-only
	// regardless of this flag.
	EnableRV32M bool
	// Threads bounds the fork-join width within a cycle sub-step (spec
	// 4.9.1).
	Threads int
}

// NewConfig validates cfg's shape and returns it, or a configuration error
// if the address widths don't fit the word width this VM operates on.
func NewConfig(params glwe.Params, romAddrBits, ramAddrBits int, offset uint32, enableRV32M bool, threads int) (*Config, error) {
	if romAddrBits <= 0 || romAddrBits+2 > Width {
		return nil, fmt.Errorf("vm: NewConfig: RomAddrBits %d out of range for a %d-bit PC", romAddrBits, Width)
	}
	if ramAddrBits <= 0 || ramAddrBits+2 > Width {
		return nil, fmt.Errorf("vm: NewConfig: RamAddrBits %d out of range for a %d-bit address", ramAddrBits, Width)
	}
	if threads < 1 {
		threads = 1
	}
	return &Config{
		Params:      params,
		RomAddrBits: romAddrBits,
		RamAddrBits: ramAddrBits,
		Offset:      offset,
		EnableRV32M: enableRV32M,
		Threads:     threads,
	}, nil
}

// rdOpCount returns how many RdUpdate candidates a cycle must evaluate,
// including RdMUL only when the configuration enables it.
func (cfg *Config) rdOpCount() int {
	if cfg.EnableRV32M {
		return int(opcode.RdMUL) + 1
	}
	return int(opcode.RdLW) + 1
}

// pcOpCount is how many PcUpdate candidates a cycle must evaluate
// (pc_update.rs's PC_UPDATE enum has no RV32M-gated tail).
const pcOpCount = int(opcode.PcBGEU) + 1

// State is one VM instance's mutable encrypted state: the program counter,
// the register file, the data RAM, and the seven pre-decoded instruction
// ROMs (spec 4.9's per-VM state).
type State struct {
	Pc        *fheuint.FheUint
	Registers *ram.Ram
	Ram       *ram.Ram
	Roms      [numROMs]*ram.Ram
}

// NewState allocates a zeroed State sized by cfg: Pc and every register/RAM
// word are Width bits wide, the register file holds NumRegs words, the data
// RAM holds 2^RamAddrBits words, and each ROM holds 2^RomAddrBits words.
func NewState(eval *glwe.Evaluator, cfg *Config) *State {
	st := &State{
		Pc:        fheuint.New(eval, Width),
		Registers: ram.New(eval, Width, NumRegs),
		Ram:       ram.New(eval, Width, 1<<cfg.RamAddrBits),
	}
	for i := range st.Roms {
		st.Roms[i] = ram.New(eval, Width, 1<<cfg.RomAddrBits)
	}
	return st
}

// Interpreter runs cycles against a State using cfg and the evaluation-key
// bundle that owns sk (spec 4.9's orchestrator; the Bank it owns caches one
// BDD circuit per ALU/branch opcode across every cycle run).
type Interpreter struct {
	cfg    *Config
	bundle *keys.Bundle
	bank   *opcode.Bank
}

// NewInterpreter binds an Interpreter to cfg and bundle.
func NewInterpreter(cfg *Config, bundle *keys.Bundle) *Interpreter {
	return &Interpreter{cfg: cfg, bundle: bundle, bank: opcode.NewBank()}
}

// Run executes cycles sequential cycles, one Cycle call each (spec 4.13:
// cycle count is an external decision; there is no internal halt
// detection).
func (it *Interpreter) Run(eval *glwe.Evaluator, st *State, cycles int) {
	for i := 0; i < cycles; i++ {
		it.Cycle(eval, st)
	}
}

// workerEvaluators returns cfg.Threads independent evaluators sharing eval's
// keys (spec 4.9.1: each fork-join sub-step gets its own pool).
func (it *Interpreter) workerEvaluators(eval *glwe.Evaluator) []*glwe.Evaluator {
	evs := make([]*glwe.Evaluator, it.cfg.Threads)
	for i := range evs {
		evs[i] = eval.ShallowCopy()
	}
	return evs
}

// prepare circuit-bootstraps every bit of fu in parallel across
// cfg.Threads workers (spec 4.9.1: "each of the 32 bits gets an
// independent circuit bootstrap").
func (it *Interpreter) prepare(eval *glwe.Evaluator, fu *fheuint.FheUint) *fheuint.FheUintPrepared {
	n := fu.Width()
	sel := make([]*glwe.Selector, n)
	rm := concurrency.NewRessourceManager(it.workerEvaluators(eval))
	for i := 0; i < n; i++ {
		i := i
		rm.Run(func(e *glwe.Evaluator) error {
			sel[i] = it.bundle.CircuitBootstrap(e, fu.GetBit(i))
			return nil
		})
	}
	if err := rm.Wait(); err != nil {
		panic(fmt.Errorf("vm: prepare: %w", err))
	}
	return &fheuint.FheUintPrepared{Selectors: sel}
}

// prepareAddress is prepare, but circuit-bootstraps with positional weight
// so the result is valid input to FheUintPrepared.ToAddress (spec 4.3: an
// address digit's Coordinate must encode X^{bit*2^i}, not X^bit).
func (it *Interpreter) prepareAddress(eval *glwe.Evaluator, fu *fheuint.FheUint) *fheuint.FheUintPrepared {
	n := fu.Width()
	sel := make([]*glwe.Selector, n)
	rm := concurrency.NewRessourceManager(it.workerEvaluators(eval))
	for i := 0; i < n; i++ {
		i := i
		rm.Run(func(e *glwe.Evaluator) error {
			sel[i] = it.bundle.CircuitBootstrapWeighted(e, fu.GetBit(i), 1<<i)
			return nil
		})
	}
	if err := rm.Wait(); err != nil {
		panic(fmt.Errorf("vm: prepareAddress: %w", err))
	}
	return &fheuint.FheUintPrepared{Selectors: sel}
}

// sliceBits returns the sub-FheUint covering bits [lo,hi) of fu, sharing
// the underlying ciphertexts (no copy).
func sliceBits(fu *fheuint.FheUint, lo, hi int) *fheuint.FheUint {
	return &fheuint.FheUint{Bits: fu.Bits[lo:hi]}
}

// msbFirst returns sel's selectors in reverse order: the ordering
// blindselect.TreeSelect requires (bits[0] is the candidate index's most
// significant bit), whereas every FheUintPrepared in this package is
// indexed least-significant-bit-first (selector i corresponds to value
// bit i).
func msbFirst(sel []*glwe.Selector) []*glwe.Selector {
	out := make([]*glwe.Selector, len(sel))
	for i, s := range sel {
		out[len(sel)-1-i] = s
	}
	return out
}

// selectCandidate blind-selects candidates[tag] using tag's prepared low
// bits, the shared primitive both the RdUpdate and RamUpdate/PcUpdate
// writeback steps use (spec 4.8's blind select). candidates is padded with
// copies of fill up to the next power of two TreeSelect needs.
func selectCandidate(eval *glwe.Evaluator, tag *fheuint.FheUintPrepared, candidates []*fheuint.FheUint, fill *fheuint.FheUint) *fheuint.FheUint {
	width := fill.Width()
	n := 1 << len(tag.Selectors)
	leaves := make([]*fheuint.FheUint, n)
	for i := range leaves {
		if i < len(candidates) {
			leaves[i] = candidates[i]
		} else {
			leaves[i] = fill
		}
	}
	bits := msbFirst(tag.Selectors)
	out := fheuint.New(eval, width)
	for bit := 0; bit < width; bit++ {
		cts := make([]*glwe.Ciphertext, n)
		for i, c := range leaves {
			cts[i] = c.GetBit(bit)
		}
		out.SetBit(bit, blindselect.TreeSelect(eval, bits, cts))
	}
	return out
}

// addTwoOperand runs the shared RdADD circuit over a and b's prepared
// bits, used for RAM address arithmetic (rs1 + imm), since that is plain
// Width-bit unsigned addition identical to RdADD's circuit.
func (it *Interpreter) addTwoOperand(eval *glwe.Evaluator, a, b *fheuint.FheUintPrepared) *fheuint.FheUint {
	return opcode.RdADD.EvalEnc(it.bank, eval, opcode.Operands{}, opcode.PreparedOperands{Rs1: a, Rs2: b})
}

// twosComplement returns the 32-bit two's-complement negation of c, so
// "add twosComplement(Offset)" implements "subtract Offset" over the same
// Width-bit adder circuit used for addition.
func twosComplement(c uint32) uint32 { return ^c + 1 }

// Cycle runs exactly one fetch/decode/execute/writeback step, mutating st
// in place (spec 4.9's ten-step procedure). eval's key set must already
// contain every Galois element keys.Generate produced.
func (it *Interpreter) Cycle(eval *glwe.Evaluator, st *State) {
	cfg := it.cfg

	// 1. Prepare PC over bits [2, RomAddrBits+2): the PC is 4-byte
	// aligned, so the low two bits are always zero and are skipped.
	pcRomBits := it.prepareAddress(eval, sliceBits(st.Pc, 2, 2+cfg.RomAddrBits))
	fetchAddr := pcRomBits.ToAddress(false)

	// 2. Fetch: one stateless read per ROM.
	var fetched [numROMs]*fheuint.FheUint
	for i := range st.Roms {
		fetched[i] = &fheuint.FheUint{Bits: st.Roms[i].ReadStateless(eval, fetchAddr)}
	}
	imm := fetched[RomImm]
	rs1Addr, rs2Addr, rdAddr := fetched[RomRs1Addr], fetched[RomRs2Addr], fetched[RomRdAddr]
	rduWord, muWord, pcuWord := fetched[RomRdu], fetched[RomMu], fetched[RomPcu]

	// 3. Prepare imm (needed both for ALU ops and RAM address arithmetic).
	immPrepared := it.prepare(eval, imm)

	// 4. Read registers: prepare the two source addresses over
	// RegAddrBits bits, stateless-read rs1/rs2, then prepare both values
	// over the full word width.
	rs1AddrPrepared := it.prepareAddress(eval, sliceBits(rs1Addr, 0, RegAddrBits))
	rs2AddrPrepared := it.prepareAddress(eval, sliceBits(rs2Addr, 0, RegAddrBits))
	rs1 := &fheuint.FheUint{Bits: st.Registers.ReadStateless(eval, rs1AddrPrepared.ToAddress(false))}
	rs2 := &fheuint.FheUint{Bits: st.Registers.ReadStateless(eval, rs2AddrPrepared.ToAddress(false))}
	rs1Prepared := it.prepare(eval, rs1)
	rs2Prepared := it.prepare(eval, rs2)

	// 5. Compute the RAM address, prepared over RamAddrBits+2 bits (the
	// low 2 bits are the byte offset the store-masking step reads; the
	// rest addresses a word), then statefully read the addressed word.
	sumPrepared := it.prepare(eval, it.addTwoOperand(eval, rs1Prepared, immPrepared))
	ramAddrFull := it.subtractOffset(eval, sumPrepared, cfg.Offset)
	ramByteOffset := it.prepare(eval, sliceBits(ramAddrFull, 0, 2))
	ramWordAddrPrepared := it.prepareAddress(eval, sliceBits(ramAddrFull, 2, 2+cfg.RamAddrBits))
	ramWordAddr := ramWordAddrPrepared.ToAddress(false)
	ramVal := &fheuint.FheUint{Bits: st.Ram.ReadStatefull(eval, ramWordAddr)}

	// 6. Evaluate every RdUpdate candidate, then blind-select by rdu.
	pcFullPrepared := it.prepare(eval, st.Pc)
	ops := opcode.Operands{Rs1: rs1, Rs2: rs2, Imm: imm, Pc: st.Pc, Ram: ramVal}
	preps := opcode.PreparedOperands{Rs1: rs1Prepared, Rs2: rs2Prepared, Imm: immPrepared, Pc: pcFullPrepared}

	numRdOps := cfg.rdOpCount()
	rdCandidates := make([]*fheuint.FheUint, numRdOps)
	rm := concurrency.NewRessourceManager(it.workerEvaluators(eval))
	for i := 0; i < numRdOps; i++ {
		op := opcode.RdUpdate(i)
		rm.Run(func(e *glwe.Evaluator) error {
			rdCandidates[op] = op.EvalEnc(it.bank, e, ops, preps)
			return nil
		})
	}
	if err := rm.Wait(); err != nil {
		panic(fmt.Errorf("vm: Cycle: rd-update evaluation: %w", err))
	}
	rduTagBits := log2Ceil(numRdOps)
	rduPrepared := it.prepare(eval, sliceBits(rduWord, 0, rduTagBits))
	rdVal := selectCandidate(eval, rduPrepared, rdCandidates, rdCandidates[opcode.RdNone])

	// 7. Write back rd, then re-assert x0's hardwired-zero invariant.
	rdAddrPrepared := it.prepareAddress(eval, sliceBits(rdAddr, 0, RegAddrBits))
	st.Registers.Write(eval, rdAddrPrepared.ToAddress(false), rdVal.Bits, it.bundle)
	st.Registers.ZeroWord(eval, 0, it.bundle)

	// 8. Evaluate every RamUpdate candidate, blind-select by mu, and write
	// the result back to the RAM word the statefull read primed.
	ramCandidates := []*fheuint.FheUint{
		ramVal,
		storeByteMask(eval, ramVal, rs2, ramByteOffset, 1),
		storeByteMask(eval, ramVal, rs2, ramByteOffset, 2),
		rs2,
	}
	muPrepared := it.prepare(eval, sliceBits(muWord, 0, 2))
	newRamVal := selectCandidate(eval, muPrepared, ramCandidates, ramCandidates[opcode.RamNone])
	st.Ram.ReadStatefullRev(eval, ramWordAddr, newRamVal.Bits, it.bundle)

	// 9. Update PC: evaluate every PcUpdate candidate and blind-select by
	// the decoded pcu tag.
	pcCandidates := make([]*fheuint.FheUint, pcOpCount)
	rm2 := concurrency.NewRessourceManager(it.workerEvaluators(eval))
	for i := 0; i < pcOpCount; i++ {
		op := opcode.PcUpdate(i)
		rm2.Run(func(e *glwe.Evaluator) error {
			pcCandidates[op] = op.EvalEnc(it.bank, e, preps)
			return nil
		})
	}
	if err := rm2.Wait(); err != nil {
		panic(fmt.Errorf("vm: Cycle: pc-update evaluation: %w", err))
	}
	pcuTagBits := log2Ceil(pcOpCount)
	pcuPrepared := it.prepare(eval, sliceBits(pcuWord, 0, pcuTagBits))
	st.Pc = selectCandidate(eval, pcuPrepared, pcCandidates, pcCandidates[opcode.PcNone])

	// 10. Halt detection is external (spec 4.13): this method never
	// inspects decrypted state.
}

// subtractOffset computes sum - offset over Width bits, by adding
// offset's two's-complement negation through the shared ADD circuit
// (rs1+imm was already computed by addTwoOperand; this folds in the
// configuration-time base-address subtraction spec 4.9 step 5 needs).
func (it *Interpreter) subtractOffset(eval *glwe.Evaluator, sum *fheuint.FheUintPrepared, offset uint32) *fheuint.FheUint {
	neg := twosComplement(offset)
	sels := make([]*glwe.Selector, Width)
	for i := 0; i < Width; i++ {
		bit := (neg >> uint(i)) & 1
		sels[i] = it.bundle.EncryptMonomialSelector(int(bit))
	}
	negPrepared := &fheuint.FheUintPrepared{Selectors: sels}
	return it.addTwoOperand(eval, sum, negPrepared)
}

// log2Ceil returns the smallest b such that 2^b >= n.
func log2Ceil(n int) int {
	b := 0
	for (1 << b) < n {
		b++
	}
	return b
}

// storeByteMask builds the SB (widthBytes=1) or SH (widthBytes=2)
// candidate: the low widthBytes*8 bits of rs2 overwrite the corresponding
// bytes of ram at the byte offset held in offset's low 2 bits, the rest of
// ram is untouched. Spec 4.7's "select store" test-vector-per-offset
// construction is folded here into one 4-way blind select per output bit
// rather than built as 4 separate byte-aligned candidates, since FheUint's
// bit-per-ciphertext layout makes an explicit byte-rotate unnecessary.
func storeByteMask(eval *glwe.Evaluator, ramWord, rs2 *fheuint.FheUint, offset *fheuint.FheUintPrepared, widthBytes int) *fheuint.FheUint {
	width := ramWord.Width()
	out := fheuint.New(eval, width)
	spanBits := widthBytes * 8
	bits := msbFirst(offset.Selectors)
	for bit := 0; bit < width; bit++ {
		leaves := make([]*glwe.Ciphertext, 4)
		for o := 0; o < 4; o++ {
			lowBit := bit - o*8
			if lowBit >= 0 && lowBit < spanBits {
				leaves[o] = rs2.GetBit(lowBit)
			} else {
				leaves[o] = ramWord.GetBit(bit)
			}
		}
		out.SetBit(bit, blindselect.TreeSelect(eval, bits, leaves))
	}
	return out
}
