package core

import (
	"github.com/sarchlab/rv32sim/emu"
	"github.com/sarchlab/rv32sim/insts"
)

// aluLatches are the datapath results registered every cycle from the
// current decoded instruction and the latched source operands.
type aluLatches struct {
	addOut   uint32
	logicOut uint32
	shiftOut uint32
	isEq     bool
	isLt     bool
	isLtu    bool
	csrSrc   uint32
}

func operandA(inst *insts.Instruction, rs1, pc uint32) uint32 {
	switch inst.Op {
	case insts.OpLUI:
		return 0
	case insts.OpAUIPC, insts.OpJAL:
		return pc
	}
	if inst.Class == insts.ClassBranch {
		return pc
	}
	return rs1
}

// adderB returns the second adder operand and the carry in.
func adderB(inst *insts.Instruction, rs2 uint32) (uint32, uint32) {
	switch inst.Class {
	case insts.ClassAMO, insts.ClassLRSC:
		return 0, 0
	}
	switch inst.Opcode {
	case insts.OpcodeLUI, insts.OpcodeAUIPC, insts.OpcodeJAL, insts.OpcodeJALR,
		insts.OpcodeBranch, insts.OpcodeLoad, insts.OpcodeStore, insts.OpcodeOpImm:
		return inst.Imm, 0
	}
	if inst.Op == insts.OpSUB {
		return ^rs2, 1
	}
	return rs2, 0
}

func computeALU(inst *insts.Instruction, rs1, rs2, pc uint32) aluLatches {
	a := operandA(inst, rs1, pc)
	b, carry := adderB(inst, rs2)

	cmpB := rs2
	if inst.Op == insts.OpSLTI || inst.Op == insts.OpSLTIU {
		cmpB = inst.Imm
	}

	logicB := emu.OperandB(inst, rs2)
	var logic uint32
	switch inst.Funct3 {
	case insts.Funct3AND:
		logic = rs1 & logicB
	case insts.Funct3OR:
		logic = rs1 | logicB
	default:
		logic = rs1 ^ logicB
	}

	var shift uint32
	shamt := logicB & emu.ShiftMask
	switch {
	case inst.Funct3 == insts.Funct3SLL:
		shift = emu.ShiftLeft(rs1, shamt)
	case inst.Funct7 == insts.Funct7Alt:
		shift = emu.ShiftRightArith(rs1, shamt)
	default:
		shift = emu.ShiftRightLogical(rs1, shamt)
	}

	src := rs1
	if inst.CSRImmediate() {
		src = uint32(inst.Rs1)
	}

	return aluLatches{
		addOut:   a + b + carry,
		logicOut: logic,
		shiftOut: shift,
		isEq:     rs1 == cmpB,
		isLt:     emu.LessThan(rs1, cmpB),
		isLtu:    emu.LessThanUnsigned(rs1, cmpB),
		csrSrc:   src,
	}
}

func (l aluLatches) compareOut(inst *insts.Instruction) uint32 {
	lt := l.isLt
	if inst.Op == insts.OpSLTU || inst.Op == insts.OpSLTIU {
		lt = l.isLtu
	}
	if lt {
		return 1
	}
	return 0
}

func (l aluLatches) branchTaken(inst *insts.Instruction) bool {
	switch inst.Op {
	case insts.OpBEQ:
		return l.isEq
	case insts.OpBNE:
		return !l.isEq
	case insts.OpBLT:
		return l.isLt
	case insts.OpBGE:
		return !l.isLt
	case insts.OpBLTU:
		return l.isLtu
	case insts.OpBGEU:
		return !l.isLtu
	}
	return false
}

// csrWriteData computes the value written by a CSR instruction from the
// old register value.
func csrWriteData(inst *insts.Instruction, old, src uint32) uint32 {
	switch inst.Funct3 & 0b11 {
	case insts.Funct3CSRRS & 0b11:
		return old | src
	case insts.Funct3CSRRC & 0b11:
		return old &^ src
	}
	return src
}
