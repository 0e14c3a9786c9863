package interp

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/entropic-labs/fhevm/loader"
	"github.com/entropic-labs/fhevm/opcode"
)

// program computes x3 = 5 + 7 and stores it to RAM word 0:
//
//	ADDI x1, x0, 5
//	ADDI x2, x0, 7
//	ADD  x3, x1, x2
//	SW   x3, 0(x0)
func program() *loader.Image {
	return &loader.Image{
		TextBase: 0,
		NumWords: 4,
		Fields: []loader.Fields{
			{Imm: 5, RdAddr: 1, Rdu: opcode.RdADDI},
			{Imm: 7, RdAddr: 2, Rdu: opcode.RdADDI},
			{Rs1Addr: 1, Rs2Addr: 2, RdAddr: 3, Rdu: opcode.RdADD},
			{Rs2Addr: 3, Mu: opcode.RamSW},
		},
		RamBase: 0,
		Ram:     make([]byte, 16),
	}
}

func TestInterpreterRunsToCompletion(t *testing.T) {
	it := New(program())
	require.NoError(t, it.Run(10))
	require.True(t, it.Halted)
	require.Equal(t, uint32(16), it.Pc) // four instructions, pc walked off the end
	require.Equal(t, uint32(5), it.Registers[1])
	require.Equal(t, uint32(7), it.Registers[2])
	require.Equal(t, uint32(12), it.Registers[3])
	require.Equal(t, uint32(12), it.readWord(0))
}

func TestInterpreterStepByStep(t *testing.T) {
	it := New(program())
	require.NoError(t, it.Step())
	require.Equal(t, uint32(5), it.Registers[1])
	require.Equal(t, uint32(4), it.Pc)
	require.Equal(t, 1, it.Cycles)
}

func TestInterpreterX0StaysZero(t *testing.T) {
	img := &loader.Image{
		TextBase: 0,
		NumWords: 1,
		Fields:   []loader.Fields{{Imm: 99, RdAddr: 0, Rdu: opcode.RdADDI}},
		RamBase:  0,
		Ram:      make([]byte, 4),
	}
	it := New(img)
	require.NoError(t, it.Step())
	require.Equal(t, uint32(0), it.Registers[0])
}

func TestInterpreterInputOutputTapes(t *testing.T) {
	img := &loader.Image{
		RamBase:    0,
		Ram:        make([]byte, 32),
		InputAddr:  0,
		InputSize:  4,
		OutputAddr: 16,
		OutputSize: 4,
	}
	it := New(img)
	require.NoError(t, it.WriteInput([]byte{1, 2, 3, 4}))
	require.Equal(t, []byte{1, 2, 3, 4}, it.Ram[0:4])

	copy(it.Ram[16:], []byte{9, 9, 9, 9})
	require.Equal(t, []byte{9, 9, 9, 9}, it.ReadOutput())

	require.ErrorIs(t, it.WriteInput(make([]byte, 5)), loader.ErrInputTapeOverflow)
}
