package emu

import "github.com/sarchlab/rv32sim/insts"

// BranchTaken evaluates the condition of a conditional branch.
func BranchTaken(op insts.Op, rs1, rs2 uint32) bool {
	switch op {
	case insts.OpBEQ:
		return rs1 == rs2
	case insts.OpBNE:
		return rs1 != rs2
	case insts.OpBLT:
		return LessThan(rs1, rs2)
	case insts.OpBGE:
		return !LessThan(rs1, rs2)
	case insts.OpBLTU:
		return LessThanUnsigned(rs1, rs2)
	case insts.OpBGEU:
		return !LessThanUnsigned(rs1, rs2)
	}
	return false
}

// JumpTarget returns the target of a jump or branch. JALR clears bit 0.
func JumpTarget(inst *insts.Instruction, pc, rs1 uint32) uint32 {
	if inst.Op == insts.OpJALR {
		return (rs1 + inst.Imm) &^ 1
	}
	return pc + inst.Imm
}

// TargetMisaligned reports whether a control-transfer target is not aligned
// to a 4-byte instruction boundary.
func TargetMisaligned(target uint32) bool {
	return target&0b10 != 0
}
