package insts

import "encoding/binary"

// Instruction encoding helpers, used to build programs in tests and
// microbenchmarks without an external assembler.

// EncodeR encodes an R-type instruction.
func EncodeR(opcode, rd, funct3, rs1, rs2, funct7 uint8) uint32 {
	return uint32(funct7&0x7F)<<25 | uint32(rs2&0x1F)<<20 | uint32(rs1&0x1F)<<15 |
		uint32(funct3&0x7)<<12 | uint32(rd&0x1F)<<7 | uint32(opcode&0x7F)
}

// EncodeI encodes an I-type instruction with a 12-bit signed immediate.
func EncodeI(opcode, rd, funct3, rs1 uint8, imm int32) uint32 {
	return uint32(imm&0xFFF)<<20 | uint32(rs1&0x1F)<<15 |
		uint32(funct3&0x7)<<12 | uint32(rd&0x1F)<<7 | uint32(opcode&0x7F)
}

// EncodeS encodes an S-type instruction.
func EncodeS(opcode, funct3, rs1, rs2 uint8, imm int32) uint32 {
	u := uint32(imm)
	return (u>>5&0x7F)<<25 | uint32(rs2&0x1F)<<20 | uint32(rs1&0x1F)<<15 |
		uint32(funct3&0x7)<<12 | (u&0x1F)<<7 | uint32(opcode&0x7F)
}

// EncodeB encodes a B-type instruction. offset is in bytes and must be even.
func EncodeB(opcode, funct3, rs1, rs2 uint8, offset int32) uint32 {
	u := uint32(offset)
	return (u>>12&0x1)<<31 | (u>>5&0x3F)<<25 | uint32(rs2&0x1F)<<20 |
		uint32(rs1&0x1F)<<15 | uint32(funct3&0x7)<<12 |
		(u>>1&0xF)<<8 | (u>>11&0x1)<<7 | uint32(opcode&0x7F)
}

// EncodeU encodes a U-type instruction. imm holds the upper 20 bits.
func EncodeU(opcode, rd uint8, imm uint32) uint32 {
	return (imm&0xFFFFF)<<12 | uint32(rd&0x1F)<<7 | uint32(opcode&0x7F)
}

// EncodeJ encodes a J-type instruction. offset is in bytes and must be even.
func EncodeJ(opcode, rd uint8, offset int32) uint32 {
	u := uint32(offset)
	return (u>>20&0x1)<<31 | (u>>1&0x3FF)<<21 | (u>>11&0x1)<<20 |
		(u>>12&0xFF)<<12 | uint32(rd&0x1F)<<7 | uint32(opcode&0x7F)
}

// EncodeLUI encodes lui rd, imm20.
func EncodeLUI(rd uint8, imm20 uint32) uint32 { return EncodeU(OpcodeLUI, rd, imm20) }

// EncodeAUIPC encodes auipc rd, imm20.
func EncodeAUIPC(rd uint8, imm20 uint32) uint32 { return EncodeU(OpcodeAUIPC, rd, imm20) }

// EncodeJAL encodes jal rd, offset.
func EncodeJAL(rd uint8, offset int32) uint32 { return EncodeJ(OpcodeJAL, rd, offset) }

// EncodeJALR encodes jalr rd, imm(rs1).
func EncodeJALR(rd, rs1 uint8, imm int32) uint32 { return EncodeI(OpcodeJALR, rd, 0, rs1, imm) }

// EncodeBEQ encodes beq rs1, rs2, offset.
func EncodeBEQ(rs1, rs2 uint8, offset int32) uint32 {
	return EncodeB(OpcodeBranch, Funct3BEQ, rs1, rs2, offset)
}

// EncodeBNE encodes bne rs1, rs2, offset.
func EncodeBNE(rs1, rs2 uint8, offset int32) uint32 {
	return EncodeB(OpcodeBranch, Funct3BNE, rs1, rs2, offset)
}

// EncodeBLT encodes blt rs1, rs2, offset.
func EncodeBLT(rs1, rs2 uint8, offset int32) uint32 {
	return EncodeB(OpcodeBranch, Funct3BLT, rs1, rs2, offset)
}

// EncodeBGE encodes bge rs1, rs2, offset.
func EncodeBGE(rs1, rs2 uint8, offset int32) uint32 {
	return EncodeB(OpcodeBranch, Funct3BGE, rs1, rs2, offset)
}

// EncodeBLTU encodes bltu rs1, rs2, offset.
func EncodeBLTU(rs1, rs2 uint8, offset int32) uint32 {
	return EncodeB(OpcodeBranch, Funct3BLTU, rs1, rs2, offset)
}

// EncodeBGEU encodes bgeu rs1, rs2, offset.
func EncodeBGEU(rs1, rs2 uint8, offset int32) uint32 {
	return EncodeB(OpcodeBranch, Funct3BGEU, rs1, rs2, offset)
}

// EncodeLoad encodes a load with the given width funct3 (Funct3B ... Funct3HU).
func EncodeLoad(funct3, rd, rs1 uint8, imm int32) uint32 {
	return EncodeI(OpcodeLoad, rd, funct3, rs1, imm)
}

// EncodeLW encodes lw rd, imm(rs1).
func EncodeLW(rd, rs1 uint8, imm int32) uint32 { return EncodeLoad(Funct3W, rd, rs1, imm) }

// EncodeStore encodes a store with the given width funct3 (Funct3B, Funct3H, Funct3W).
func EncodeStore(funct3, rs1, rs2 uint8, imm int32) uint32 {
	return EncodeS(OpcodeStore, funct3, rs1, rs2, imm)
}

// EncodeSW encodes sw rs2, imm(rs1).
func EncodeSW(rs2, rs1 uint8, imm int32) uint32 { return EncodeStore(Funct3W, rs1, rs2, imm) }

// EncodeOpImm encodes an OP-IMM instruction (addi, slti, ..., andi).
func EncodeOpImm(funct3, rd, rs1 uint8, imm int32) uint32 {
	return EncodeI(OpcodeOpImm, rd, funct3, rs1, imm)
}

// EncodeADDI encodes addi rd, rs1, imm.
func EncodeADDI(rd, rs1 uint8, imm int32) uint32 { return EncodeOpImm(Funct3ADD, rd, rs1, imm) }

// EncodeShiftImm encodes slli/srli/srai. arith selects srai.
func EncodeShiftImm(funct3, rd, rs1, shamt uint8, arith bool) uint32 {
	funct7 := Funct7Base
	if arith {
		funct7 = Funct7Alt
	}
	return EncodeR(OpcodeOpImm, rd, funct3, rs1, shamt, funct7)
}

// EncodeOp encodes a register-register OP instruction.
func EncodeOp(funct3, funct7, rd, rs1, rs2 uint8) uint32 {
	return EncodeR(OpcodeOp, rd, funct3, rs1, rs2, funct7)
}

// EncodeADD encodes add rd, rs1, rs2.
func EncodeADD(rd, rs1, rs2 uint8) uint32 { return EncodeOp(Funct3ADD, Funct7Base, rd, rs1, rs2) }

// EncodeSUB encodes sub rd, rs1, rs2.
func EncodeSUB(rd, rs1, rs2 uint8) uint32 { return EncodeOp(Funct3ADD, Funct7Alt, rd, rs1, rs2) }

// EncodeMulDiv encodes an M-extension instruction.
func EncodeMulDiv(funct3, rd, rs1, rs2 uint8) uint32 {
	return EncodeOp(funct3, Funct7MulDiv, rd, rs1, rs2)
}

// EncodeFENCE encodes fence iorw, iorw.
func EncodeFENCE() uint32 { return EncodeI(OpcodeFence, 0, Funct3FENCE, 0, 0x0FF) }

// EncodeFENCEI encodes fence.i.
func EncodeFENCEI() uint32 { return EncodeI(OpcodeFence, 0, Funct3FENCEI, 0, 0) }

// EncodeECALL encodes ecall.
func EncodeECALL() uint32 { return EncodeI(OpcodeSystem, 0, Funct3PRIV, 0, int32(Funct12ECALL)) }

// EncodeEBREAK encodes ebreak.
func EncodeEBREAK() uint32 { return EncodeI(OpcodeSystem, 0, Funct3PRIV, 0, int32(Funct12EBREAK)) }

// EncodeMRET encodes mret.
func EncodeMRET() uint32 { return EncodeI(OpcodeSystem, 0, Funct3PRIV, 0, int32(Funct12MRET)) }

// EncodeWFI encodes wfi.
func EncodeWFI() uint32 { return EncodeI(OpcodeSystem, 0, Funct3PRIV, 0, int32(Funct12WFI)) }

// EncodeCSR encodes a Zicsr instruction. For the immediate forms src is the
// 5-bit unsigned immediate, otherwise it is the rs1 register.
func EncodeCSR(funct3, rd uint8, csr uint16, src uint8) uint32 {
	return uint32(csr&0xFFF)<<20 | uint32(src&0x1F)<<15 |
		uint32(funct3&0x7)<<12 | uint32(rd&0x1F)<<7 | uint32(OpcodeSystem)
}

// EncodeAMO encodes an A-extension instruction with aq = rl = 0.
func EncodeAMO(funct5, rd, rs1, rs2 uint8) uint32 {
	return EncodeR(OpcodeAMO, rd, Funct3AMO, rs1, rs2, funct5<<2)
}

// EncodeLR encodes lr.w rd, (rs1).
func EncodeLR(rd, rs1 uint8) uint32 { return EncodeAMO(Funct5LR, rd, rs1, 0) }

// EncodeSC encodes sc.w rd, rs2, (rs1).
func EncodeSC(rd, rs1, rs2 uint8) uint32 { return EncodeAMO(Funct5SC, rd, rs1, rs2) }

// Assemble packs instruction words into little-endian program bytes.
func Assemble(words ...uint32) []byte {
	program := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(program[4*i:], w)
	}
	return program
}
