package emu

import "github.com/sarchlab/rv32sim/insts"

// ShiftMask selects the shift amount bits of a 32-bit shift.
const ShiftMask = 0x1F

// ShiftLeft returns a << (shamt mod 32).
func ShiftLeft(a, shamt uint32) uint32 {
	return a << (shamt & ShiftMask)
}

// ShiftRightLogical returns a >> (shamt mod 32), filling with zeros.
func ShiftRightLogical(a, shamt uint32) uint32 {
	return a >> (shamt & ShiftMask)
}

// ShiftRightArith returns a >> (shamt mod 32), filling with the sign bit.
func ShiftRightArith(a, shamt uint32) uint32 {
	return uint32(int32(a) >> (shamt & ShiftMask))
}

// LessThan compares a and b as signed integers.
func LessThan(a, b uint32) bool {
	return int32(a) < int32(b)
}

// LessThanUnsigned compares a and b as unsigned integers.
func LessThanUnsigned(a, b uint32) bool {
	return a < b
}

func boolToWord(v bool) uint32 {
	if v {
		return 1
	}
	return 0
}

// OperandB returns the second ALU operand of a computational instruction:
// the immediate for OP-IMM, LUI and AUIPC forms, rs2 otherwise.
func OperandB(inst *insts.Instruction, rs2 uint32) uint32 {
	switch inst.Opcode {
	case insts.OpcodeOpImm, insts.OpcodeLUI, insts.OpcodeAUIPC:
		return inst.Imm
	}
	return rs2
}

// Compute returns the result of an add, logic, compare or shift class
// instruction. pc is only used by AUIPC.
func Compute(inst *insts.Instruction, rs1, rs2, pc uint32) uint32 {
	b := OperandB(inst, rs2)

	switch inst.Op {
	case insts.OpLUI:
		return b
	case insts.OpAUIPC:
		return pc + b
	case insts.OpADD, insts.OpADDI:
		return rs1 + b
	case insts.OpSUB:
		return rs1 - b
	case insts.OpAND, insts.OpANDI:
		return rs1 & b
	case insts.OpOR, insts.OpORI:
		return rs1 | b
	case insts.OpXOR, insts.OpXORI:
		return rs1 ^ b
	case insts.OpSLT, insts.OpSLTI:
		return boolToWord(LessThan(rs1, b))
	case insts.OpSLTU, insts.OpSLTIU:
		return boolToWord(LessThanUnsigned(rs1, b))
	case insts.OpSLL, insts.OpSLLI:
		return ShiftLeft(rs1, b)
	case insts.OpSRL, insts.OpSRLI:
		return ShiftRightLogical(rs1, b)
	case insts.OpSRA, insts.OpSRAI:
		return ShiftRightArith(rs1, b)
	}
	return 0
}

// MulDiv returns the architectural result of an M-extension instruction,
// including the division-by-zero and signed-overflow special cases.
func MulDiv(op insts.Op, a, b uint32) uint32 {
	switch op {
	case insts.OpMUL:
		return a * b
	case insts.OpMULH:
		return uint32(uint64(int64(int32(a))*int64(int32(b))) >> 32)
	case insts.OpMULHSU:
		return uint32(uint64(int64(int32(a))*int64(uint64(b))) >> 32)
	case insts.OpMULHU:
		return uint32(uint64(a) * uint64(b) >> 32)
	case insts.OpDIV:
		switch {
		case b == 0:
			return 0xFFFFFFFF
		case a == 0x80000000 && b == 0xFFFFFFFF:
			return a
		}
		return uint32(int32(a) / int32(b))
	case insts.OpDIVU:
		if b == 0 {
			return 0xFFFFFFFF
		}
		return a / b
	case insts.OpREM:
		switch {
		case b == 0:
			return a
		case a == 0x80000000 && b == 0xFFFFFFFF:
			return 0
		}
		return uint32(int32(a) % int32(b))
	case insts.OpREMU:
		if b == 0 {
			return a
		}
		return a % b
	}
	return 0
}

// AMOResult returns the value an atomic memory operation stores, computed
// from the loaded memory value and the rs2 operand.
func AMOResult(op insts.Op, loaded, operand uint32) uint32 {
	switch op {
	case insts.OpAMOSWAP:
		return operand
	case insts.OpAMOADD:
		return loaded + operand
	case insts.OpAMOXOR:
		return loaded ^ operand
	case insts.OpAMOAND:
		return loaded & operand
	case insts.OpAMOOR:
		return loaded | operand
	case insts.OpAMOMIN:
		if LessThan(operand, loaded) {
			return operand
		}
		return loaded
	case insts.OpAMOMAX:
		if LessThan(loaded, operand) {
			return operand
		}
		return loaded
	case insts.OpAMOMINU:
		if operand < loaded {
			return operand
		}
		return loaded
	case insts.OpAMOMAXU:
		if loaded < operand {
			return operand
		}
		return loaded
	}
	return loaded
}
