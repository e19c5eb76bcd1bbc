package insts

// Decoder decodes RISC-V machine code into instructions.
//
// Decoding is a pure function of the instruction word, the enabled ISA
// extensions and the current privilege mode. Words that do not exactly
// match an entry of the encoding table decode to OpUnknown/ClassNone.
type Decoder struct {
	enableRV32M bool
	enableRV32A bool
}

// DecoderOption is a functional option for configuring the Decoder.
type DecoderOption func(*Decoder)

// WithRV32M enables decoding of the multiply/divide extension.
func WithRV32M() DecoderOption {
	return func(d *Decoder) {
		d.enableRV32M = true
	}
}

// WithRV32A enables decoding of the atomics extension.
func WithRV32A() DecoderOption {
	return func(d *Decoder) {
		d.enableRV32A = true
	}
}

// NewDecoder creates a new RV32I instruction decoder.
func NewDecoder(opts ...DecoderOption) *Decoder {
	d := &Decoder{}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decode decodes a 32-bit instruction word. The privilege mode only affects
// MRET, which is recognized in Machine mode alone.
func (d *Decoder) Decode(word uint32, priv PrivMode) *Instruction {
	inst := &Instruction{}
	d.DecodeInto(inst, word, priv)
	return inst
}

// DecodeInto decodes word into an existing Instruction, overwriting all fields.
func (d *Decoder) DecodeInto(inst *Instruction, word uint32, priv PrivMode) {
	*inst = Instruction{
		Word:    word,
		Opcode:  uint8(word & 0x7F),
		Rd:      uint8((word >> 7) & 0x1F),
		Funct3:  uint8((word >> 12) & 0x7),
		Rs1:     uint8((word >> 15) & 0x1F),
		Rs2:     uint8((word >> 20) & 0x1F),
		Funct5:  uint8(word >> 27),
		Funct7:  uint8(word >> 25),
		Funct12: uint16(word >> 20),
		CSR:     uint16(word >> 20),
	}

	inst.Format = formatOf(inst.Opcode)
	inst.Imm = immediate(word, inst.Format)
	inst.CSRWrite = inst.Funct3&0b010 == 0 || inst.Rs1 != 0

	inst.Op = d.match(inst, priv)
	inst.Class = classOf(inst.Op)
}

// RegisterFields extracts the source register indices of word. The core uses
// it to start register reads in the same cycle the word arrives.
func RegisterFields(word uint32) (rs1, rs2 uint8) {
	return uint8((word >> 15) & 0x1F), uint8((word >> 20) & 0x1F)
}

func formatOf(opcode uint8) Format {
	switch opcode {
	case OpcodeLUI, OpcodeAUIPC:
		return FormatU
	case OpcodeJAL:
		return FormatJ
	case OpcodeJALR, OpcodeLoad, OpcodeOpImm, OpcodeFence, OpcodeSystem:
		return FormatI
	case OpcodeBranch:
		return FormatB
	case OpcodeStore:
		return FormatS
	case OpcodeOp, OpcodeAMO:
		return FormatR
	}
	return FormatUnknown
}

func immediate(word uint32, format Format) uint32 {
	switch format {
	case FormatI:
		return uint32(int32(word) >> 20)
	case FormatS:
		return uint32(int32(word)>>25)<<5 | (word>>7)&0x1F
	case FormatB:
		return uint32(int32(word)>>31)<<12 |
			(word>>7&0x1)<<11 |
			(word>>25&0x3F)<<5 |
			(word>>8&0xF)<<1
	case FormatU:
		return word & 0xFFFFF000
	case FormatJ:
		return uint32(int32(word)>>31)<<20 |
			(word>>12&0xFF)<<12 |
			(word>>20&0x1)<<11 |
			(word>>21&0x3FF)<<1
	}
	return 0
}

func (d *Decoder) match(inst *Instruction, priv PrivMode) Op {
	switch inst.Opcode {
	case OpcodeLUI:
		return OpLUI
	case OpcodeAUIPC:
		return OpAUIPC
	case OpcodeJAL:
		return OpJAL
	case OpcodeJALR:
		if inst.Funct3 == 0 {
			return OpJALR
		}
	case OpcodeBranch:
		return matchBranch(inst.Funct3)
	case OpcodeLoad:
		return matchLoad(inst.Funct3)
	case OpcodeStore:
		return matchStore(inst.Funct3)
	case OpcodeOpImm:
		return matchOpImm(inst.Funct3, inst.Funct7)
	case OpcodeOp:
		if inst.Funct7 == Funct7MulDiv {
			if d.enableRV32M {
				return matchMulDiv(inst.Funct3)
			}
			return OpUnknown
		}
		return matchOp(inst.Funct3, inst.Funct7)
	case OpcodeFence:
		switch inst.Funct3 {
		case Funct3FENCE:
			return OpFENCE
		case Funct3FENCEI:
			return OpFENCEI
		}
	case OpcodeSystem:
		return matchSystem(inst, priv)
	case OpcodeAMO:
		if d.enableRV32A && inst.Funct3 == Funct3AMO {
			return matchAMO(inst.Funct5)
		}
	}
	return OpUnknown
}

func matchBranch(funct3 uint8) Op {
	switch funct3 {
	case Funct3BEQ:
		return OpBEQ
	case Funct3BNE:
		return OpBNE
	case Funct3BLT:
		return OpBLT
	case Funct3BGE:
		return OpBGE
	case Funct3BLTU:
		return OpBLTU
	case Funct3BGEU:
		return OpBGEU
	}
	return OpUnknown
}

func matchLoad(funct3 uint8) Op {
	switch funct3 {
	case Funct3B:
		return OpLB
	case Funct3H:
		return OpLH
	case Funct3W:
		return OpLW
	case Funct3BU:
		return OpLBU
	case Funct3HU:
		return OpLHU
	}
	return OpUnknown
}

func matchStore(funct3 uint8) Op {
	switch funct3 {
	case Funct3B:
		return OpSB
	case Funct3H:
		return OpSH
	case Funct3W:
		return OpSW
	}
	return OpUnknown
}

func matchOpImm(funct3, funct7 uint8) Op {
	switch funct3 {
	case Funct3ADD:
		return OpADDI
	case Funct3SLT:
		return OpSLTI
	case Funct3SLTU:
		return OpSLTIU
	case Funct3XOR:
		return OpXORI
	case Funct3OR:
		return OpORI
	case Funct3AND:
		return OpANDI
	case Funct3SLL:
		if funct7 == Funct7Base {
			return OpSLLI
		}
	case Funct3SR:
		switch funct7 {
		case Funct7Base:
			return OpSRLI
		case Funct7Alt:
			return OpSRAI
		}
	}
	return OpUnknown
}

func matchOp(funct3, funct7 uint8) Op {
	if funct7 == Funct7Alt {
		switch funct3 {
		case Funct3ADD:
			return OpSUB
		case Funct3SR:
			return OpSRA
		}
		return OpUnknown
	}
	if funct7 != Funct7Base {
		return OpUnknown
	}

	switch funct3 {
	case Funct3ADD:
		return OpADD
	case Funct3SLL:
		return OpSLL
	case Funct3SLT:
		return OpSLT
	case Funct3SLTU:
		return OpSLTU
	case Funct3XOR:
		return OpXOR
	case Funct3SR:
		return OpSRL
	case Funct3OR:
		return OpOR
	case Funct3AND:
		return OpAND
	}
	return OpUnknown
}

func matchMulDiv(funct3 uint8) Op {
	return [...]Op{
		Funct3MUL:    OpMUL,
		Funct3MULH:   OpMULH,
		Funct3MULHSU: OpMULHSU,
		Funct3MULHU:  OpMULHU,
		Funct3DIV:    OpDIV,
		Funct3DIVU:   OpDIVU,
		Funct3REM:    OpREM,
		Funct3REMU:   OpREMU,
	}[funct3&0x7]
}

func matchSystem(inst *Instruction, priv PrivMode) Op {
	switch inst.Funct3 {
	case Funct3PRIV:
		// The privileged encodings reserve rd and rs1.
		if inst.Rd != 0 || inst.Rs1 != 0 {
			return OpUnknown
		}
		switch inst.Funct12 {
		case Funct12ECALL:
			return OpECALL
		case Funct12EBREAK:
			return OpEBREAK
		case Funct12WFI:
			return OpWFI
		case Funct12MRET:
			if priv == PrivMachine {
				return OpMRET
			}
		}
	case Funct3CSRRW:
		return OpCSRRW
	case Funct3CSRRS:
		return OpCSRRS
	case Funct3CSRRC:
		return OpCSRRC
	case Funct3CSRRWI:
		return OpCSRRWI
	case Funct3CSRRSI:
		return OpCSRRSI
	case Funct3CSRRCI:
		return OpCSRRCI
	}
	return OpUnknown
}

func matchAMO(funct5 uint8) Op {
	switch funct5 {
	case Funct5LR:
		return OpLR
	case Funct5SC:
		return OpSC
	case Funct5AMOSWAP:
		return OpAMOSWAP
	case Funct5AMOADD:
		return OpAMOADD
	case Funct5AMOXOR:
		return OpAMOXOR
	case Funct5AMOAND:
		return OpAMOAND
	case Funct5AMOOR:
		return OpAMOOR
	case Funct5AMOMIN:
		return OpAMOMIN
	case Funct5AMOMAX:
		return OpAMOMAX
	case Funct5AMOMINU:
		return OpAMOMINU
	case Funct5AMOMAXU:
		return OpAMOMAXU
	}
	return OpUnknown
}

func classOf(op Op) Class {
	switch op {
	case OpADD, OpSUB, OpADDI, OpLUI, OpAUIPC:
		return ClassAdd
	case OpAND, OpANDI, OpOR, OpORI, OpXOR, OpXORI:
		return ClassLogic
	case OpSLT, OpSLTI, OpSLTU, OpSLTIU:
		return ClassCompare
	case OpSLL, OpSLLI, OpSRL, OpSRLI, OpSRA, OpSRAI:
		return ClassShift
	case OpJAL, OpJALR:
		return ClassJump
	case OpBEQ, OpBNE, OpBLT, OpBGE, OpBLTU, OpBGEU:
		return ClassBranch
	case OpLB, OpLH, OpLW, OpLBU, OpLHU:
		return ClassLoad
	case OpSB, OpSH, OpSW:
		return ClassStore
	case OpCSRRW, OpCSRRS, OpCSRRC, OpCSRRWI, OpCSRRSI, OpCSRRCI:
		return ClassCSR
	case OpMUL, OpMULH, OpMULHSU, OpMULHU:
		return ClassMul
	case OpDIV, OpDIVU, OpREM, OpREMU:
		return ClassDiv
	case OpLR, OpSC:
		return ClassLRSC
	case OpAMOSWAP, OpAMOADD, OpAMOXOR, OpAMOAND, OpAMOOR,
		OpAMOMIN, OpAMOMAX, OpAMOMINU, OpAMOMAXU:
		return ClassAMO
	case OpFENCE, OpFENCEI, OpWFI:
		return ClassFence
	case OpECALL, OpEBREAK, OpMRET:
		return ClassSystem
	}
	return ClassNone
}
