// Package insts provides RV32I instruction definitions and decoding.
//
// This package implements decoding of RISC-V machine code into structured
// instruction representations. It supports:
//   - RV32I base integer instructions, FENCE/FENCE.I and the Zicsr instructions
//   - Machine-mode system instructions: ECALL, EBREAK, MRET, WFI
//   - The optional M (multiply/divide) and A (atomics) extensions
//
// Usage:
//
//	decoder := insts.NewDecoder(insts.WithRV32M())
//	inst := decoder.Decode(0x00500093, insts.PrivMachine) // addi x1, x0, 5
//	fmt.Printf("Op: %v, Rd: %d, Rs1: %d, Imm: %d\n", inst.Op, inst.Rd, inst.Rs1, int32(inst.Imm))
package insts

// Op represents a RISC-V operation.
type Op uint8

// RV32IMA operations.
const (
	OpUnknown Op = iota
	OpLUI
	OpAUIPC
	OpJAL
	OpJALR
	OpBEQ
	OpBNE
	OpBLT
	OpBGE
	OpBLTU
	OpBGEU
	OpLB
	OpLH
	OpLW
	OpLBU
	OpLHU
	OpSB
	OpSH
	OpSW
	OpADDI
	OpSLTI
	OpSLTIU
	OpXORI
	OpORI
	OpANDI
	OpSLLI
	OpSRLI
	OpSRAI
	OpADD
	OpSUB
	OpSLL
	OpSLT
	OpSLTU
	OpXOR
	OpSRL
	OpSRA
	OpOR
	OpAND
	OpFENCE
	OpFENCEI
	OpCSRRW
	OpCSRRS
	OpCSRRC
	OpCSRRWI
	OpCSRRSI
	OpCSRRCI
	OpECALL
	OpEBREAK
	OpMRET
	OpWFI
	OpMUL
	OpMULH
	OpMULHSU
	OpMULHU
	OpDIV
	OpDIVU
	OpREM
	OpREMU
	OpLR
	OpSC
	OpAMOSWAP
	OpAMOADD
	OpAMOXOR
	OpAMOAND
	OpAMOOR
	OpAMOMIN
	OpAMOMAX
	OpAMOMINU
	OpAMOMAXU
)

var opNames = [...]string{
	OpUnknown: "unknown",
	OpLUI:     "lui", OpAUIPC: "auipc", OpJAL: "jal", OpJALR: "jalr",
	OpBEQ: "beq", OpBNE: "bne", OpBLT: "blt", OpBGE: "bge", OpBLTU: "bltu", OpBGEU: "bgeu",
	OpLB: "lb", OpLH: "lh", OpLW: "lw", OpLBU: "lbu", OpLHU: "lhu",
	OpSB: "sb", OpSH: "sh", OpSW: "sw",
	OpADDI: "addi", OpSLTI: "slti", OpSLTIU: "sltiu", OpXORI: "xori", OpORI: "ori", OpANDI: "andi",
	OpSLLI: "slli", OpSRLI: "srli", OpSRAI: "srai",
	OpADD: "add", OpSUB: "sub", OpSLL: "sll", OpSLT: "slt", OpSLTU: "sltu",
	OpXOR: "xor", OpSRL: "srl", OpSRA: "sra", OpOR: "or", OpAND: "and",
	OpFENCE: "fence", OpFENCEI: "fence.i",
	OpCSRRW: "csrrw", OpCSRRS: "csrrs", OpCSRRC: "csrrc",
	OpCSRRWI: "csrrwi", OpCSRRSI: "csrrsi", OpCSRRCI: "csrrci",
	OpECALL: "ecall", OpEBREAK: "ebreak", OpMRET: "mret", OpWFI: "wfi",
	OpMUL: "mul", OpMULH: "mulh", OpMULHSU: "mulhsu", OpMULHU: "mulhu",
	OpDIV: "div", OpDIVU: "divu", OpREM: "rem", OpREMU: "remu",
	OpLR: "lr.w", OpSC: "sc.w",
	OpAMOSWAP: "amoswap.w", OpAMOADD: "amoadd.w", OpAMOXOR: "amoxor.w",
	OpAMOAND: "amoand.w", OpAMOOR: "amoor.w", OpAMOMIN: "amomin.w",
	OpAMOMAX: "amomax.w", OpAMOMINU: "amominu.w", OpAMOMAXU: "amomaxu.w",
}

// String returns the assembler mnemonic of the operation.
func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return "unknown"
}

// Class groups operations by the execution path they take through the core.
// Exactly one class is assigned to every decoded instruction.
type Class uint8

// Instruction classes.
const (
	ClassNone    Class = iota // not a recognized encoding
	ClassAdd                  // ADD, SUB, ADDI, LUI, AUIPC
	ClassLogic                // AND, OR, XOR and immediate forms
	ClassCompare              // SLT, SLTU and immediate forms
	ClassShift                // SLL, SRL, SRA and immediate forms
	ClassJump                 // JAL, JALR
	ClassBranch               // conditional branches
	ClassLoad
	ClassStore
	ClassCSR
	ClassMul
	ClassDiv
	ClassLRSC
	ClassAMO
	ClassFence  // FENCE, FENCE.I, WFI
	ClassSystem // ECALL, EBREAK, MRET
)

var classNames = [...]string{
	ClassNone: "none", ClassAdd: "add", ClassLogic: "logic", ClassCompare: "compare",
	ClassShift: "shift", ClassJump: "jump", ClassBranch: "branch", ClassLoad: "load",
	ClassStore: "store", ClassCSR: "csr", ClassMul: "mul", ClassDiv: "div",
	ClassLRSC: "lrsc", ClassAMO: "amo", ClassFence: "fence", ClassSystem: "system",
}

// String returns the class name.
func (c Class) String() string {
	if int(c) < len(classNames) {
		return classNames[c]
	}
	return "none"
}

// Format represents an instruction encoding format.
type Format uint8

// Instruction formats.
const (
	FormatUnknown Format = iota
	FormatR
	FormatI
	FormatS
	FormatB
	FormatU
	FormatJ
)

// Instruction represents a decoded RISC-V instruction.
type Instruction struct {
	Word   uint32 // Raw instruction word
	Op     Op     // Operation
	Class  Class  // Execution class
	Format Format // Encoding format

	Opcode  uint8
	Funct3  uint8
	Funct5  uint8 // AMO function, bits [31:27]
	Funct7  uint8
	Funct12 uint16

	Rd  uint8
	Rs1 uint8
	Rs2 uint8

	// Imm is the sign-extended immediate for the instruction's format.
	Imm uint32

	// CSR holds the 12-bit CSR address of Zicsr instructions.
	CSR uint16
	// CSRWrite is false for CSRRS/CSRRC (and immediate forms) with a zero
	// source field, which must not perform a write.
	CSRWrite bool
}

// IsLegal reports whether the instruction was recognized by the decoder.
func (i *Instruction) IsLegal() bool {
	return i.Op != OpUnknown
}

// IsImmediate reports whether the instruction is an OP-IMM arithmetic form.
func (i *Instruction) IsImmediate() bool {
	return i.Opcode == OpcodeOpImm
}

// ReadsMemory reports whether the instruction performs a load-type bus access.
func (i *Instruction) ReadsMemory() bool {
	return i.Class == ClassLoad || i.Op == OpLR
}

// WritesMemory reports whether the instruction performs a store-type bus access.
func (i *Instruction) WritesMemory() bool {
	return i.Class == ClassStore || i.Op == OpSC
}

// WritesRd reports whether the class produces a register result.
func (i *Instruction) WritesRd() bool {
	switch i.Class {
	case ClassAdd, ClassLogic, ClassCompare, ClassShift, ClassJump,
		ClassLoad, ClassCSR, ClassMul, ClassDiv, ClassLRSC, ClassAMO:
		return true
	}
	return false
}

// CSRImmediate reports whether a Zicsr instruction takes its operand from
// the zero-extended rs1 field instead of the rs1 register.
func (i *Instruction) CSRImmediate() bool {
	return i.Funct3&0b100 != 0
}
