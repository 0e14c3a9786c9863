package opcode

import (
	"fmt"

	"github.com/entropic-labs/fhevm/bdd"
	"github.com/entropic-labs/fhevm/fheuint"
	"github.com/entropic-labs/fhevm/glwe"
)

// EvalEnc computes the encrypted register-write value for op, dispatching
// exactly the way rd_update.rs's eval_enc match does: pure-ALU opcodes and
// MUL run a cached two-operand BDD circuit, LUI copies imm, AUIPC runs the
// ADD circuit over pc and imm, JAL/JALR run a circuit adding the constant 4
// to pc, and the load opcodes mask/sign-
// extend the already-fetched RAM word rather than running a circuit at all
// (truncateAndExtend works directly over FheUint's bit-per-ciphertext
// representation, so unlike the packed-GLWE original it needs no trace key).
func (op RdUpdate) EvalEnc(bank *Bank, eval *glwe.Evaluator, ops Operands, preps PreparedOperands) *fheuint.FheUint {
	switch op {
	case RdNone:
		return fheuint.New(eval, Width)

	case RdLUI:
		return copyOf(eval, ops.Imm)

	case RdAUIPC:
		return evalTwoOperand(bank, eval, RdADD, preps.Pc, preps.Imm)

	case RdJAL, RdJALR:
		sumBits := bdd.AddConstant(Width, 4)
		return evalFromBits(eval, bdd.New(Width, sumBits...), preps.Pc.Selectors)

	case RdLB:
		return truncateAndExtend(eval, ops.Ram, 1, true)
	case RdLBU:
		return truncateAndExtend(eval, ops.Ram, 1, false)
	case RdLH:
		return truncateAndExtend(eval, ops.Ram, 2, true)
	case RdLHU:
		return truncateAndExtend(eval, ops.Ram, 2, false)
	case RdLW:
		return copyOf(eval, ops.Ram)

	case RdADDI, RdSLTI, RdSLTIU, RdXORI, RdORI, RdANDI, RdSLLI, RdSRLI, RdSRAI:
		return evalTwoOperand(bank, eval, baseOpFor(op), preps.Rs1, preps.Imm)

	case RdMUL:
		return evalTwoOperand(bank, eval, op, preps.Rs1, preps.Rs2)

	case RdADD, RdSUB, RdSLL, RdSLT, RdSLTU, RdXOR, RdSRL, RdSRA, RdOR, RdAND:
		return evalTwoOperand(bank, eval, op, preps.Rs1, preps.Rs2)

	default:
		panic(fmt.Errorf("opcode: EvalEnc: %v not implemented in encrypted form (MUL is the only RV32M opcode with an encrypted circuit in this build)", op))
	}
}

// baseOpFor maps an immediate-operand opcode (e.g. ADDI) to the register-
// operand opcode whose circuit it shares (ADD), since the BDD only cares
// about bit positions, not which FheUintPrepared supplies them.
func baseOpFor(op RdUpdate) RdUpdate {
	switch op {
	case RdADDI:
		return RdADD
	case RdSLTI:
		return RdSLT
	case RdSLTIU:
		return RdSLTU
	case RdXORI:
		return RdXOR
	case RdORI:
		return RdOR
	case RdANDI:
		return RdAND
	case RdSLLI:
		return RdSLL
	case RdSRLI:
		return RdSRL
	case RdSRAI:
		return RdSRA
	default:
		panic(fmt.Errorf("opcode: baseOpFor: %v has no immediate-form base", op))
	}
}

func evalTwoOperand(bank *Bank, eval *glwe.Evaluator, op RdUpdate, a, b *fheuint.FheUintPrepared) *fheuint.FheUint {
	circuit := bank.circuitFor(op)
	selectors := append(append([]*glwe.Selector{}, a.Selectors...), b.Selectors...)
	return evalFromBits(eval, circuit, selectors)
}

func evalFromBits(eval *glwe.Evaluator, circuit *bdd.Circuit, selectors []*glwe.Selector) *fheuint.FheUint {
	bits := circuit.EvalEnc(eval, selectors)
	out := &fheuint.FheUint{Bits: bits}
	return out
}

func copyOf(eval *glwe.Evaluator, src *fheuint.FheUint) *fheuint.FheUint {
	out := fheuint.New(eval, src.Width())
	for i := 0; i < src.Width(); i++ {
		eval.Copy(src.GetBit(i), out.GetBit(i))
	}
	return out
}

// truncateAndExtend implements LB/LBU/LH/LHU: keep the low width*8 bits of
// word and either zero- or sign-extend to Width (rd_update.rs's
// zero_byte/sext sequence, expressed here directly over FheUint's
// bit-per-ciphertext representation rather than the original's in-place
// byte-zeroing of a packed GLWE).
func truncateAndExtend(eval *glwe.Evaluator, word *fheuint.FheUint, widthBytes int, signed bool) *fheuint.FheUint {
	lowBits := widthBytes * 8
	low := fheuint.New(eval, lowBits)
	for i := 0; i < lowBits; i++ {
		eval.Copy(word.GetBit(i), low.GetBit(i))
	}
	if signed {
		return low.SignExtend(eval, Width)
	}
	return low.ZeroExtend(eval, Width)
}

// EvalPlain is the cleartext reference oracle for op, grounded on
// instructions/mod.rs / rd_update.rs's plaintext RD_UPDATE semantics.
func (op RdUpdate) EvalPlain(rs1, rs2, imm, pc, ram uint32) uint32 {
	s1, s2, simm := int32(rs1), int32(rs2), int32(imm)
	switch op {
	case RdNone:
		return 0
	case RdLUI:
		return imm
	case RdAUIPC:
		return pc + imm
	case RdJAL, RdJALR:
		return pc + 4
	case RdADDI, RdADD:
		if op == RdADDI {
			return rs1 + imm
		}
		return rs1 + rs2
	case RdSUB:
		return rs1 - rs2
	case RdSLTI:
		if s1 < simm {
			return 1
		}
		return 0
	case RdSLT:
		if s1 < s2 {
			return 1
		}
		return 0
	case RdSLTIU:
		if rs1 < imm {
			return 1
		}
		return 0
	case RdSLTU:
		if rs1 < rs2 {
			return 1
		}
		return 0
	case RdXORI:
		return rs1 ^ imm
	case RdXOR:
		return rs1 ^ rs2
	case RdORI:
		return rs1 | imm
	case RdOR:
		return rs1 | rs2
	case RdANDI:
		return rs1 & imm
	case RdAND:
		return rs1 & rs2
	case RdSLLI, RdSLL:
		shamt := imm
		if op == RdSLL {
			shamt = rs2
		}
		return rs1 << (shamt & 31)
	case RdSRLI, RdSRL:
		shamt := imm
		if op == RdSRL {
			shamt = rs2
		}
		return rs1 >> (shamt & 31)
	case RdSRAI, RdSRA:
		shamt := imm
		if op == RdSRA {
			shamt = rs2
		}
		return uint32(s1 >> (shamt & 31))
	case RdLB:
		return uint32(int32(int8(ram)))
	case RdLBU:
		return ram & 0xFF
	case RdLH:
		return uint32(int32(int16(ram)))
	case RdLHU:
		return ram & 0xFFFF
	case RdLW:
		return ram
	case RdMUL:
		return rs1 * rs2
	case RdMULHU:
		return uint32((uint64(rs1) * uint64(rs2)) >> 32)
	case RdMULH:
		return uint32((int64(s1) * int64(s2)) >> 32)
	case RdMULHSU:
		return uint32((int64(s1) * int64(uint64(rs2))) >> 32)
	case RdDIV:
		if s2 == 0 {
			return 0xFFFFFFFF
		}
		return uint32(s1 / s2)
	case RdDIVU:
		if rs2 == 0 {
			return 0xFFFFFFFF
		}
		return rs1 / rs2
	case RdREM:
		if s2 == 0 {
			return rs1
		}
		return uint32(s1 % s2)
	case RdREMU:
		if rs2 == 0 {
			return rs1
		}
		return rs1 % rs2
	default:
		panic(fmt.Errorf("opcode: EvalPlain: unknown RdUpdate %v", op))
	}
}

// EvalPlain is the cleartext reference oracle for a PcUpdate, grounded on
// pc_update.rs's PC_UPDATE::eval_plain (branch target vs. fallthrough
// pc+4).
func (op PcUpdate) EvalPlain(rs1, rs2, pc, imm uint32) uint32 {
	s1, s2 := int32(rs1), int32(rs2)
	taken := false
	switch op {
	case PcNone:
		return pc + 4
	case PcJAL, PcJALR:
		if op == PcJALR {
			return (rs1 + imm) &^ 1
		}
		return pc + imm
	case PcBEQ:
		taken = rs1 == rs2
	case PcBNE:
		taken = rs1 != rs2
	case PcBLT:
		taken = s1 < s2
	case PcBGE:
		taken = s1 >= s2
	case PcBLTU:
		taken = rs1 < rs2
	case PcBGEU:
		taken = rs1 >= rs2
	default:
		panic(fmt.Errorf("opcode: PcUpdate.EvalPlain: unknown op %v", op))
	}
	if taken {
		return pc + imm
	}
	return pc + 4
}

// EvalPlain is the cleartext reference oracle for a RamUpdate: whether and
// how many bytes of rs2 get written to the effective address (spec 4.4's
// write path, grounded on instructions/mod.rs's store-class opcodes).
func (op RamUpdate) EvalPlain(current, rs2 uint32) uint32 {
	switch op {
	case RamNone:
		return current
	case RamSB:
		return (current &^ 0xFF) | (rs2 & 0xFF)
	case RamSH:
		return (current &^ 0xFFFF) | (rs2 & 0xFFFF)
	case RamSW:
		return rs2
	default:
		panic(fmt.Errorf("opcode: RamUpdate.EvalPlain: unknown op %v", op))
	}
}
