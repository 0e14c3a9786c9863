package opcode

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRdUpdateEvalPlainArithmetic(t *testing.T) {
	require.Equal(t, uint32(7), RdADD.EvalPlain(3, 4, 0, 0, 0))
	require.Equal(t, uint32(0xFFFFFFFF), RdSUB.EvalPlain(4, 5, 0, 0, 0))
	require.Equal(t, uint32(10), RdADDI.EvalPlain(5, 0, 5, 0, 0))
}

func TestRdUpdateEvalPlainComparators(t *testing.T) {
	require.Equal(t, uint32(1), RdSLT.EvalPlain(uint32(int32(-1)), 1, 0, 0, 0))
	require.Equal(t, uint32(0), RdSLTU.EvalPlain(uint32(int32(-1)), 1, 0, 0, 0)) // unsigned: huge > 1
}

func TestRdUpdateEvalPlainShifts(t *testing.T) {
	require.Equal(t, uint32(8), RdSLL.EvalPlain(1, 3, 0, 0, 0))
	require.Equal(t, uint32(1), RdSRL.EvalPlain(8, 3, 0, 0, 0))
	require.Equal(t, uint32(0xFFFFFFFF), RdSRA.EvalPlain(uint32(int32(-8)), 3, 0, 0, 0))
}

func TestRdUpdateEvalPlainLoads(t *testing.T) {
	require.Equal(t, uint32(0xFFFFFFFF), RdLB.EvalPlain(0, 0, 0, 0, 0xFF))
	require.Equal(t, uint32(0xFF), RdLBU.EvalPlain(0, 0, 0, 0, 0xFF))
	require.Equal(t, uint32(0xFFFFFFFF), RdLH.EvalPlain(0, 0, 0, 0, 0xFFFF))
	require.Equal(t, uint32(0xFFFF), RdLHU.EvalPlain(0, 0, 0, 0, 0xFFFF))
	require.Equal(t, uint32(0xDEADBEEF), RdLW.EvalPlain(0, 0, 0, 0, 0xDEADBEEF))
}

func TestRdUpdateEvalPlainLUIAUIPCJump(t *testing.T) {
	require.Equal(t, uint32(0x1000), RdLUI.EvalPlain(0, 0, 0x1000, 0, 0))
	require.Equal(t, uint32(0x2100), RdAUIPC.EvalPlain(0, 0, 0x100, 0x2000, 0))
	require.Equal(t, uint32(0x2004), RdJAL.EvalPlain(0, 0, 0, 0x2000, 0))
}

func TestRdUpdateEvalPlainRV32M(t *testing.T) {
	require.Equal(t, uint32(42), RdMUL.EvalPlain(6, 7, 0, 0, 0))
	require.Equal(t, uint32(5), RdDIVU.EvalPlain(17, 3, 0, 0, 0))
	require.Equal(t, uint32(2), RdREMU.EvalPlain(17, 3, 0, 0, 0))
	require.Equal(t, uint32(0xFFFFFFFF), RdDIVU.EvalPlain(17, 0, 0, 0, 0)) // divide by zero: all-ones
	require.Equal(t, uint32(17), RdREMU.EvalPlain(17, 0, 0, 0, 0))         // remainder by zero: dividend
}

func TestPcUpdateEvalPlainBranches(t *testing.T) {
	require.Equal(t, uint32(0x1010), PcBEQ.EvalPlain(5, 5, 0x1000, 0x10))
	require.Equal(t, uint32(0x1004), PcBEQ.EvalPlain(5, 6, 0x1000, 0x10))
	require.Equal(t, uint32(0x1010), PcBLT.EvalPlain(uint32(int32(-1)), 0, 0x1000, 0x10))
	require.Equal(t, uint32(0x1004), PcBLTU.EvalPlain(uint32(int32(-1)), 0, 0x1000, 0x10)) // unsigned: -1 is huge
}

func TestPcUpdateEvalPlainJumps(t *testing.T) {
	require.Equal(t, uint32(0x1010), PcJAL.EvalPlain(0, 0, 0x1000, 0x10))
	require.Equal(t, uint32(0x1008), PcJALR.EvalPlain(0x1004, 0, 0x2000, 0x5)) // low bit cleared
}

func TestRamUpdateEvalPlain(t *testing.T) {
	require.Equal(t, uint32(0xDEADBEAB), RamSB.EvalPlain(0xDEADBEEF, 0xAB))
	require.Equal(t, uint32(0xDEADABCD), RamSH.EvalPlain(0xDEADBEEF, 0xABCD))
	require.Equal(t, uint32(0x12345678), RamSW.EvalPlain(0xDEADBEEF, 0x12345678))
	require.Equal(t, uint32(0xDEADBEEF), RamNone.EvalPlain(0xDEADBEEF, 0x12345678))
}
