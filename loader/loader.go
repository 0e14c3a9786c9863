// Package loader implements the out-of-scope-but-required RISC-V ELF
// ingestion contract (spec 4.11): parsing a RV32I/M ELF binary into an
// Image — the initial instruction stream, the initial data-memory contents,
// and the .inpdata/.outdata region descriptors — and decoding each
// instruction word into the seven ROM fields (imm, rs1_addr, rs2_addr,
// rd_addr, rdu, mu, pcu) package vm's ROMs store.
//
// Grounded on _examples/original_source/compiler/src/interpreter.rs's
// TestVM::init (PT_LOAD segment selection by R/W/X flags, .inpdata/.outdata
// section lookup) and decode_inst (the RV32I/M bit-field layouts), unified
// here into a single Go decoder using the standard library's debug/elf: no
// example repo parses ELF, this is a pure external-collaborator concern, and
// debug/elf already covers everything TestVM::init needs (see DESIGN.md).
package loader

import (
	"debug/elf"
	"fmt"

	"github.com/entropic-labs/fhevm/opcode"
)

// Image is everything a cycle loop needs to seed a vm.State: the decoded
// ROM fields for every instruction slot, the initial data-RAM image, and the
// input/output tape descriptors .inpdata/.outdata name.
type Image struct {
	TextBase  uint32   // .text segment's virtual address; pc=0 in the VM maps to this address
	NumWords  int      // instructions in .text, i.e. len(text)/4
	TextWords []uint32 // raw instruction words, index = (pc-TextBase)/4

	Fields []Fields // one decoded instruction per word, index = (pc-TextBase)/4

	RamBase uint32
	Ram     []byte

	InputAddr, InputSize   uint32
	OutputAddr, OutputSize uint32
}

// ErrInputTapeOverflow is returned by WriteInput when the supplied input is
// larger than the ELF's declared .inpdata size (spec 9's open question on
// out-of-range input-tape writes, resolved fail-closed rather than
// silently clipped).
var ErrInputTapeOverflow = fmt.Errorf("loader: input exceeds .inpdata size")

// LoadELF parses the RV32 ELF at path: the single R|X PT_LOAD segment
// becomes the instruction stream (decoded eagerly into Fields), every other
// R or R|W PT_LOAD segment is copied into the RAM image at its virtual
// address (offset by the first such segment's base), and .inpdata/.outdata
// section headers supply the tape descriptors.
func LoadELF(path string) (*Image, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loader: LoadELF: %w", err)
	}
	defer f.Close()
	return loadFrom(f)
}

func loadFrom(f *elf.File) (*Image, error) {
	var text *elf.Prog
	var dataSegs []*elf.Prog
	for _, p := range f.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		switch p.Flags {
		case elf.PF_R | elf.PF_X:
			if text != nil {
				return nil, fmt.Errorf("loader: LoadELF: more than one R|X PT_LOAD segment")
			}
			text = p
		case elf.PF_R, elf.PF_R | elf.PF_W:
			dataSegs = append(dataSegs, p)
		}
	}
	if text == nil {
		return nil, fmt.Errorf("loader: LoadELF: no R|X PT_LOAD segment (.text) found")
	}
	if text.Filesz != text.Memsz {
		return nil, fmt.Errorf("loader: LoadELF: .text segment has an uninitialized (bss) tail")
	}

	textBytes := make([]byte, text.Filesz)
	if _, err := text.ReadAt(textBytes, 0); err != nil {
		return nil, fmt.Errorf("loader: LoadELF: reading .text: %w", err)
	}
	if len(textBytes)%4 != 0 {
		return nil, fmt.Errorf("loader: LoadELF: .text size %d is not word-aligned", len(textBytes))
	}

	numWords := len(textBytes) / 4
	words := make([]uint32, numWords)
	fields := make([]Fields, numWords)
	for i := 0; i < numWords; i++ {
		word := leUint32(textBytes[i*4:])
		words[i] = word
		fl, err := Decode(word)
		if err != nil {
			return nil, fmt.Errorf("loader: LoadELF: instruction %d (pc=%#x): %w", i, uint32(text.Vaddr)+uint32(i*4), err)
		}
		fields[i] = fl
	}

	img := &Image{
		TextBase:  uint32(text.Vaddr),
		NumWords:  numWords,
		TextWords: words,
		Fields:    fields,
	}

	if len(dataSegs) > 0 {
		base := uint32(dataSegs[0].Vaddr)
		var top uint32
		for _, p := range dataSegs {
			end := uint32(p.Vaddr) + uint32(p.Memsz)
			if end > top {
				top = end
			}
		}
		img.RamBase = base
		img.Ram = make([]byte, top-base)
		for _, p := range dataSegs {
			if p.Filesz != p.Memsz {
				return nil, fmt.Errorf("loader: LoadELF: data segment at %#x has an uninitialized (bss) tail", p.Vaddr)
			}
			if p.Memsz == 0 {
				continue
			}
			buf := make([]byte, p.Filesz)
			if _, err := p.ReadAt(buf, 0); err != nil {
				return nil, fmt.Errorf("loader: LoadELF: reading data segment at %#x: %w", p.Vaddr, err)
			}
			copy(img.Ram[uint32(p.Vaddr)-base:], buf)
		}
	}

	if sec := f.Section(".inpdata"); sec != nil {
		img.InputAddr, img.InputSize = uint32(sec.Addr), uint32(sec.Size)
	}
	if sec := f.Section(".outdata"); sec != nil {
		img.OutputAddr, img.OutputSize = uint32(sec.Addr), uint32(sec.Size)
	}

	return img, nil
}

// WriteInput copies data into the image's RAM at .inpdata's address, failing
// closed with ErrInputTapeOverflow rather than silently truncating an
// oversized input.
func (img *Image) WriteInput(data []byte) error {
	if uint32(len(data)) > img.InputSize {
		return ErrInputTapeOverflow
	}
	off := img.InputAddr - img.RamBase
	copy(img.Ram[off:], data)
	return nil
}

// ReadOutput returns the .outdata region's current bytes.
func (img *Image) ReadOutput() []byte {
	off := img.OutputAddr - img.RamBase
	return img.Ram[off : off+img.OutputSize]
}

// RamWords returns the data image as little-endian 32-bit words, the form
// vm.State.Ram (and debug.Shadow.Ram) store.
func (img *Image) RamWords() []uint32 {
	words := make([]uint32, (len(img.Ram)+3)/4)
	for i := range words {
		words[i] = leUint32(img.Ram[i*4:])
	}
	return words
}

func leUint32(b []byte) uint32 {
	var v uint32
	for i := 0; i < 4 && i < len(b); i++ {
		v |= uint32(b[i]) << (8 * uint(i))
	}
	return v
}

// Fields is one instruction's pre-decoded ROM row, spec 6.2's seven fields.
type Fields struct {
	Imm              uint32
	Rs1Addr, Rs2Addr uint32
	RdAddr           uint32
	Rdu              opcode.RdUpdate
	Mu               opcode.RamUpdate
	Pcu              opcode.PcUpdate
}
