package loader

import (
	"fmt"

	"github.com/entropic-labs/fhevm/opcode"
)

// Decode pre-decodes one RV32I/M instruction word into the seven ROM fields
// a vm.State ROM row stores, grounded on
// compiler/src/interpreter.rs's decode_inst bit-field layouts (here
// generalized to the standard RV32 immediate-encoding formats rather than
// decode_inst's per-opcode ad hoc extraction, since every I/S/B/U/J format
// is needed and decode_inst only implemented a subset).
func Decode(word uint32) (Fields, error) {
	op := word & 0x7f
	rd := (word >> 7) & 0x1f
	funct3 := (word >> 12) & 0x7
	rs1 := (word >> 15) & 0x1f
	rs2 := (word >> 20) & 0x1f
	funct7 := (word >> 25) & 0x7f

	switch op {
	case 0b0110111: // LUI
		return Fields{Imm: uImm(word), RdAddr: rd, Rdu: opcode.RdLUI}, nil

	case 0b0010111: // AUIPC
		return Fields{Imm: uImm(word), RdAddr: rd, Rdu: opcode.RdAUIPC}, nil

	case 0b1101111: // JAL
		return Fields{Imm: jImm(word), RdAddr: rd, Rdu: opcode.RdJAL, Pcu: opcode.PcJAL}, nil

	case 0b1100111: // JALR
		if funct3 != 0 {
			return Fields{}, fmt.Errorf("loader: Decode: bad JALR funct3 %#x", funct3)
		}
		return Fields{Imm: iImm(word), Rs1Addr: rs1, RdAddr: rd, Rdu: opcode.RdJALR, Pcu: opcode.PcJALR}, nil

	case 0b1100011: // branches
		pcu, err := branchOp(funct3)
		if err != nil {
			return Fields{}, err
		}
		return Fields{Imm: bImm(word), Rs1Addr: rs1, Rs2Addr: rs2, Pcu: pcu}, nil

	case 0b0000011: // loads
		rdu, err := loadOp(funct3)
		if err != nil {
			return Fields{}, err
		}
		return Fields{Imm: iImm(word), Rs1Addr: rs1, RdAddr: rd, Rdu: rdu}, nil

	case 0b0100011: // stores
		mu, err := storeOp(funct3)
		if err != nil {
			return Fields{}, err
		}
		return Fields{Imm: sImm(word), Rs1Addr: rs1, Rs2Addr: rs2, Mu: mu}, nil

	case 0b0010011: // OP-IMM
		rdu, err := opImmOp(funct3, funct7)
		if err != nil {
			return Fields{}, err
		}
		imm := iImm(word)
		if rdu == opcode.RdSLLI || rdu == opcode.RdSRLI || rdu == opcode.RdSRAI {
			imm = rs2 // shamt lives in the same bit positions as rs2
		}
		return Fields{Imm: imm, Rs1Addr: rs1, RdAddr: rd, Rdu: rdu}, nil

	case 0b0110011: // OP (register-register, incl. RV32M)
		rdu, err := opOp(funct3, funct7)
		if err != nil {
			return Fields{}, err
		}
		return Fields{Rs1Addr: rs1, Rs2Addr: rs2, RdAddr: rd, Rdu: rdu}, nil

	default:
		return Fields{}, fmt.Errorf("loader: Decode: unsupported opcode %#09b", op)
	}
}

func branchOp(funct3 uint32) (opcode.PcUpdate, error) {
	switch funct3 {
	case 0b000:
		return opcode.PcBEQ, nil
	case 0b001:
		return opcode.PcBNE, nil
	case 0b100:
		return opcode.PcBLT, nil
	case 0b101:
		return opcode.PcBGE, nil
	case 0b110:
		return opcode.PcBLTU, nil
	case 0b111:
		return opcode.PcBGEU, nil
	default:
		return 0, fmt.Errorf("loader: Decode: bad branch funct3 %#x", funct3)
	}
}

func loadOp(funct3 uint32) (opcode.RdUpdate, error) {
	switch funct3 {
	case 0b000:
		return opcode.RdLB, nil
	case 0b001:
		return opcode.RdLH, nil
	case 0b010:
		return opcode.RdLW, nil
	case 0b100:
		return opcode.RdLBU, nil
	case 0b101:
		return opcode.RdLHU, nil
	default:
		return 0, fmt.Errorf("loader: Decode: bad load funct3 %#x", funct3)
	}
}

func storeOp(funct3 uint32) (opcode.RamUpdate, error) {
	switch funct3 {
	case 0b000:
		return opcode.RamSB, nil
	case 0b001:
		return opcode.RamSH, nil
	case 0b010:
		return opcode.RamSW, nil
	default:
		return 0, fmt.Errorf("loader: Decode: bad store funct3 %#x", funct3)
	}
}

func opImmOp(funct3, funct7 uint32) (opcode.RdUpdate, error) {
	switch funct3 {
	case 0b000:
		return opcode.RdADDI, nil
	case 0b010:
		return opcode.RdSLTI, nil
	case 0b011:
		return opcode.RdSLTIU, nil
	case 0b100:
		return opcode.RdXORI, nil
	case 0b110:
		return opcode.RdORI, nil
	case 0b111:
		return opcode.RdANDI, nil
	case 0b001:
		return opcode.RdSLLI, nil
	case 0b101:
		if funct7 == 0b0100000 {
			return opcode.RdSRAI, nil
		}
		return opcode.RdSRLI, nil
	default:
		return 0, fmt.Errorf("loader: Decode: bad OP-IMM funct3 %#x", funct3)
	}
}

func opOp(funct3, funct7 uint32) (opcode.RdUpdate, error) {
	if funct7 == 0b0000001 {
		switch funct3 {
		case 0b000:
			return opcode.RdMUL, nil
		case 0b001:
			return opcode.RdMULH, nil
		case 0b010:
			return opcode.RdMULHSU, nil
		case 0b011:
			return opcode.RdMULHU, nil
		case 0b100:
			return opcode.RdDIV, nil
		case 0b101:
			return opcode.RdDIVU, nil
		case 0b110:
			return opcode.RdREM, nil
		case 0b111:
			return opcode.RdREMU, nil
		}
	}
	switch funct3 {
	case 0b000:
		if funct7 == 0b0100000 {
			return opcode.RdSUB, nil
		}
		return opcode.RdADD, nil
	case 0b001:
		return opcode.RdSLL, nil
	case 0b010:
		return opcode.RdSLT, nil
	case 0b011:
		return opcode.RdSLTU, nil
	case 0b100:
		return opcode.RdXOR, nil
	case 0b101:
		if funct7 == 0b0100000 {
			return opcode.RdSRA, nil
		}
		return opcode.RdSRL, nil
	case 0b110:
		return opcode.RdOR, nil
	case 0b111:
		return opcode.RdAND, nil
	default:
		return 0, fmt.Errorf("loader: Decode: bad OP funct3 %#x / funct7 %#x", funct3, funct7)
	}
}

// iImm sign-extends the I-type immediate, bits [31:20].
func iImm(word uint32) uint32 {
	v := word >> 20
	if word&(1<<31) != 0 {
		v |= 0xFFFFF000
	}
	return v
}

// sImm sign-extends the S-type immediate: imm[11:5] from bits [31:25],
// imm[4:0] from bits [11:7].
func sImm(word uint32) uint32 {
	v := ((word >> 25) << 5) | ((word >> 7) & 0x1f)
	if word&(1<<31) != 0 {
		v |= 0xFFFFF000
	}
	return v
}

// bImm sign-extends the B-type immediate: imm[12|10:5|4:1|11], scaled by 2
// (bit 0 is always zero).
func bImm(word uint32) uint32 {
	b12 := (word >> 31) & 1
	b11 := (word >> 7) & 1
	b10_5 := (word >> 25) & 0x3f
	b4_1 := (word >> 8) & 0xf
	v := (b4_1 << 1) | (b10_5 << 5) | (b11 << 11) | (b12 << 12)
	if b12 != 0 {
		v |= 0xFFFFE000
	}
	return v
}

// uImm returns the U-type immediate: bits [31:12], already shifted into
// place (the low 12 bits are zero).
func uImm(word uint32) uint32 {
	return word & 0xFFFFF000
}

// jImm sign-extends the J-type immediate: imm[20|10:1|11|19:12], scaled by 2.
func jImm(word uint32) uint32 {
	b20 := (word >> 31) & 1
	b19_12 := (word >> 12) & 0xff
	b11 := (word >> 20) & 1
	b10_1 := (word >> 21) & 0x3ff
	v := (b10_1 << 1) | (b11 << 11) | (b19_12 << 12) | (b20 << 20)
	if b20 != 0 {
		v |= 0xFFE00000
	}
	return v
}
