package loader

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/entropic-labs/fhevm/opcode"
)

// encode* build RV32 instruction words the way an assembler would, so
// Decode can be tested against known-good encodings instead of only round-
// tripping its own output.

func encodeR(funct7, rs2, rs1, funct3, rd, op uint32) uint32 {
	return funct7<<25 | rs2<<20 | rs1<<15 | funct3<<12 | rd<<7 | op
}

func encodeI(imm, rs1, funct3, rd, op uint32) uint32 {
	return (imm&0xfff)<<20 | rs1<<15 | funct3<<12 | rd<<7 | op
}

func encodeS(imm, rs2, rs1, funct3, op uint32) uint32 {
	return (imm>>5&0x7f)<<25 | rs2<<20 | rs1<<15 | funct3<<12 | (imm&0x1f)<<7 | op
}

func encodeB(imm, rs2, rs1, funct3, op uint32) uint32 {
	b12 := (imm >> 12) & 1
	b11 := (imm >> 11) & 1
	b10_5 := (imm >> 5) & 0x3f
	b4_1 := (imm >> 1) & 0xf
	return b12<<31 | b10_5<<25 | rs2<<20 | rs1<<15 | funct3<<12 | b4_1<<8 | b11<<7 | op
}

func encodeU(imm, rd, op uint32) uint32 {
	return (imm & 0xfffff000) | rd<<7 | op
}

func encodeJ(imm, rd, op uint32) uint32 {
	b20 := (imm >> 20) & 1
	b19_12 := (imm >> 12) & 0xff
	b11 := (imm >> 11) & 1
	b10_1 := (imm >> 1) & 0x3ff
	return b20<<31 | b10_1<<21 | b11<<20 | b19_12<<12 | rd<<7 | op
}

func TestDecodeRType(t *testing.T) {
	fl, err := Decode(encodeR(0, 3, 2, 0b000, 1, 0b0110011)) // ADD x1, x2, x3
	require.NoError(t, err)
	require.Equal(t, opcode.RdADD, fl.Rdu)
	require.Equal(t, uint32(2), fl.Rs1Addr)
	require.Equal(t, uint32(3), fl.Rs2Addr)
	require.Equal(t, uint32(1), fl.RdAddr)

	fl, err = Decode(encodeR(0b0100000, 3, 2, 0b000, 1, 0b0110011)) // SUB
	require.NoError(t, err)
	require.Equal(t, opcode.RdSUB, fl.Rdu)

	fl, err = Decode(encodeR(0b0000001, 3, 2, 0b000, 1, 0b0110011)) // MUL (RV32M)
	require.NoError(t, err)
	require.Equal(t, opcode.RdMUL, fl.Rdu)

	fl, err = Decode(encodeR(0b0000001, 3, 2, 0b110, 1, 0b0110011)) // REM
	require.NoError(t, err)
	require.Equal(t, opcode.RdREM, fl.Rdu)
}

func TestDecodeIType(t *testing.T) {
	fl, err := Decode(encodeI(0xFFF, 2, 0b000, 1, 0b0010011)) // ADDI x1, x2, -1
	require.NoError(t, err)
	require.Equal(t, opcode.RdADDI, fl.Rdu)
	require.Equal(t, uint32(0xFFFFFFFF), fl.Imm) // sign-extended -1

	fl, err = Decode(encodeI(5, 2, 0b001, 1, 0b0010011)) // SLLI x1, x2, 5
	require.NoError(t, err)
	require.Equal(t, opcode.RdSLLI, fl.Rdu)
	require.Equal(t, uint32(5), fl.Imm)

	fl, err = Decode(encodeI(1024|10, 2, 0b101, 1, 0b0010011)) // SRAI x1, x2, 10
	require.NoError(t, err)
	require.Equal(t, opcode.RdSRAI, fl.Rdu)
	require.Equal(t, uint32(10), fl.Imm)
}

func TestDecodeLoadStore(t *testing.T) {
	fl, err := Decode(encodeI(8, 2, 0b010, 1, 0b0000011)) // LW x1, 8(x2)
	require.NoError(t, err)
	require.Equal(t, opcode.RdLW, fl.Rdu)
	require.Equal(t, uint32(8), fl.Imm)

	fl, err = Decode(encodeS(12, 3, 2, 0b010, 0b0100011)) // SW x3, 12(x2)
	require.NoError(t, err)
	require.Equal(t, opcode.RamSW, fl.Mu)
	require.Equal(t, uint32(12), fl.Imm)
	require.Equal(t, uint32(2), fl.Rs1Addr)
	require.Equal(t, uint32(3), fl.Rs2Addr)
}

func TestDecodeBranch(t *testing.T) {
	fl, err := Decode(encodeB(16, 3, 2, 0b000, 0b1100011)) // BEQ x2, x3, +16
	require.NoError(t, err)
	require.Equal(t, opcode.PcBEQ, fl.Pcu)
	require.Equal(t, uint32(16), fl.Imm)

	fl, err = Decode(encodeB(uint32(int32(-4)), 3, 2, 0b101, 0b1100011)) // BGE, negative offset
	require.NoError(t, err)
	require.Equal(t, opcode.PcBGE, fl.Pcu)
	require.Equal(t, uint32(0xFFFFFFFC), fl.Imm)
}

func TestDecodeUAndJ(t *testing.T) {
	fl, err := Decode(encodeU(0x12345000, 1, 0b0110111)) // LUI x1, 0x12345
	require.NoError(t, err)
	require.Equal(t, opcode.RdLUI, fl.Rdu)
	require.Equal(t, uint32(0x12345000), fl.Imm)

	fl, err = Decode(encodeU(0x1000, 1, 0b0010111)) // AUIPC x1, 1
	require.NoError(t, err)
	require.Equal(t, opcode.RdAUIPC, fl.Rdu)

	fl, err = Decode(encodeJ(100, 1, 0b1101111)) // JAL x1, +100
	require.NoError(t, err)
	require.Equal(t, opcode.RdJAL, fl.Rdu)
	require.Equal(t, opcode.PcJAL, fl.Pcu)
	require.Equal(t, uint32(100), fl.Imm)

	fl, err = Decode(encodeI(4, 2, 0b000, 1, 0b1100111)) // JALR x1, 4(x2)
	require.NoError(t, err)
	require.Equal(t, opcode.RdJALR, fl.Rdu)
	require.Equal(t, opcode.PcJALR, fl.Pcu)
}

func TestDecodeRejectsUnknownOpcode(t *testing.T) {
	_, err := Decode(0b1111111) // reserved opcode bits, no valid base RV32 instruction
	require.Error(t, err)
}

func TestDecodeRejectsBadFunct3(t *testing.T) {
	_, err := Decode(encodeB(0, 3, 2, 0b010, 0b1100011)) // funct3=010 is not a defined branch
	require.Error(t, err)
}
