// Package interp implements the unified plaintext reference interpreter
// (spec 4.12): the test oracle every opcode.EvalPlain and end-to-end vm
// scenario is checked against. It is never linked into the encrypted path.
//
// Grounded on _examples/original_source/compiler/src/interpreter.rs and
// compiler/src/interpreter/testvm.rs, unified into one interpreter per spec
// 9's instruction to take testvm.rs's RV32M-aware, signed/unsigned-careful
// semantics as the reference: both originals re-derived their own
// instruction decode and ALU logic independently, where this package shares
// package loader's decoder and package opcode's EvalPlain oracle with
// package debug's shadow interpreter, so there is exactly one plaintext
// semantics definition in this tree, not three.
package interp

import (
	"fmt"

	"github.com/entropic-labs/fhevm/loader"
)

// Interpreter runs an Image to completion (or a cycle budget) over plain
// uint32 state: the same register file / PC / byte-addressable RAM layout
// as vm.State, but never touching a ciphertext.
type Interpreter struct {
	img *loader.Image

	Pc        uint32
	Registers [32]uint32
	Ram       []byte
	Halted    bool

	Cycles int
}

// New allocates an Interpreter over img, with PC and RAM at their initial
// image state (PC relative to img.TextBase, RAM relative to img.RamBase —
// the same convention package vm and package debug use, so a cycle trace
// compares directly against either).
func New(img *loader.Image) *Interpreter {
	ram := make([]byte, len(img.Ram))
	copy(ram, img.Ram)
	return &Interpreter{img: img, Ram: ram}
}

// WriteInput seeds the .inpdata region of this Interpreter's own RAM copy
// (the underlying Image is left untouched, unlike Image.WriteInput).
func (it *Interpreter) WriteInput(data []byte) error {
	off := it.img.InputAddr - it.img.RamBase
	if uint32(len(data)) > it.img.InputSize {
		return loader.ErrInputTapeOverflow
	}
	copy(it.Ram[off:], data)
	return nil
}

// ReadOutput returns the .outdata region's current bytes.
func (it *Interpreter) ReadOutput() []byte {
	off := it.img.OutputAddr - it.img.RamBase
	return it.Ram[off : off+it.img.OutputSize]
}

// Run steps at most maxCycles instructions, stopping early if the PC walks
// off the end of the loaded instruction stream (spec 4.13: there is no
// encrypted halt channel, but the plaintext oracle can recognize running
// off the program's end as a natural stopping point for test harnesses).
func (it *Interpreter) Run(maxCycles int) error {
	for i := 0; i < maxCycles; i++ {
		idx := it.Pc / 4
		if idx >= uint32(it.img.NumWords) {
			it.Halted = true
			return nil
		}
		if err := it.Step(); err != nil {
			return err
		}
	}
	return nil
}

// Step decodes and executes exactly one instruction, mirroring
// vm.Interpreter.Cycle's fetch/decode/execute/writeback sequence over plain
// uint32s.
func (it *Interpreter) Step() error {
	idx := it.Pc / 4
	if idx >= uint32(it.img.NumWords) {
		return fmt.Errorf("interp: Step: pc %#x out of range of the loaded program", it.Pc)
	}
	fl := it.img.Fields[idx]

	rs1 := it.Registers[fl.Rs1Addr]
	rs2 := it.Registers[fl.Rs2Addr]

	ramAddr := rs1 + fl.Imm - it.img.RamBase
	wordAddr := ramAddr &^ 3
	ramVal := it.readWord(wordAddr)

	rdVal := fl.Rdu.EvalPlain(rs1, rs2, fl.Imm, it.Pc, ramVal)
	it.Registers[fl.RdAddr] = rdVal
	it.Registers[0] = 0

	it.writeWord(wordAddr, fl.Mu.EvalPlain(ramVal, rs2))

	it.Pc = fl.Pcu.EvalPlain(rs1, rs2, it.Pc, fl.Imm)
	it.Cycles++
	return nil
}

func (it *Interpreter) readWord(addr uint32) uint32 {
	var v uint32
	for i := uint32(0); i < 4; i++ {
		if int(addr+i) < len(it.Ram) {
			v |= uint32(it.Ram[addr+i]) << (8 * i)
		}
	}
	return v
}

func (it *Interpreter) writeWord(addr uint32, v uint32) {
	for i := uint32(0); i < 4; i++ {
		if int(addr+i) < len(it.Ram) {
			it.Ram[addr+i] = byte(v >> (8 * i))
		}
	}
}
