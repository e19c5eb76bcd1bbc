package insts

// Major opcodes (bits [6:0]).
const (
	OpcodeLUI    uint8 = 0b0110111
	OpcodeAUIPC  uint8 = 0b0010111
	OpcodeJAL    uint8 = 0b1101111
	OpcodeJALR   uint8 = 0b1100111
	OpcodeBranch uint8 = 0b1100011
	OpcodeLoad   uint8 = 0b0000011
	OpcodeStore  uint8 = 0b0100011
	OpcodeOpImm  uint8 = 0b0010011
	OpcodeOp     uint8 = 0b0110011
	OpcodeFence  uint8 = 0b0001111
	OpcodeSystem uint8 = 0b1110011
	OpcodeAMO    uint8 = 0b0101111
)

// Funct3 values. Several encodings share a value across opcodes.
const (
	Funct3BEQ  uint8 = 0b000
	Funct3BNE  uint8 = 0b001
	Funct3BLT  uint8 = 0b100
	Funct3BGE  uint8 = 0b101
	Funct3BLTU uint8 = 0b110
	Funct3BGEU uint8 = 0b111

	Funct3B  uint8 = 0b000
	Funct3H  uint8 = 0b001
	Funct3W  uint8 = 0b010
	Funct3BU uint8 = 0b100
	Funct3HU uint8 = 0b101

	Funct3ADD  uint8 = 0b000
	Funct3SLL  uint8 = 0b001
	Funct3SLT  uint8 = 0b010
	Funct3SLTU uint8 = 0b011
	Funct3XOR  uint8 = 0b100
	Funct3SR   uint8 = 0b101
	Funct3OR   uint8 = 0b110
	Funct3AND  uint8 = 0b111

	Funct3FENCE  uint8 = 0b000
	Funct3FENCEI uint8 = 0b001

	Funct3PRIV   uint8 = 0b000
	Funct3CSRRW  uint8 = 0b001
	Funct3CSRRS  uint8 = 0b010
	Funct3CSRRC  uint8 = 0b011
	Funct3CSRRWI uint8 = 0b101
	Funct3CSRRSI uint8 = 0b110
	Funct3CSRRCI uint8 = 0b111

	Funct3MUL    uint8 = 0b000
	Funct3MULH   uint8 = 0b001
	Funct3MULHSU uint8 = 0b010
	Funct3MULHU  uint8 = 0b011
	Funct3DIV    uint8 = 0b100
	Funct3DIVU   uint8 = 0b101
	Funct3REM    uint8 = 0b110
	Funct3REMU   uint8 = 0b111

	Funct3AMO uint8 = 0b010
)

// Funct7 values.
const (
	Funct7Base   uint8 = 0b0000000
	Funct7Alt    uint8 = 0b0100000 // SUB, SRA, SRAI
	Funct7MulDiv uint8 = 0b0000001
)

// Funct5 values of the A extension (bits [31:27]).
const (
	Funct5LR      uint8 = 0b00010
	Funct5SC      uint8 = 0b00011
	Funct5AMOSWAP uint8 = 0b00001
	Funct5AMOADD  uint8 = 0b00000
	Funct5AMOXOR  uint8 = 0b00100
	Funct5AMOAND  uint8 = 0b01100
	Funct5AMOOR   uint8 = 0b01000
	Funct5AMOMIN  uint8 = 0b10000
	Funct5AMOMAX  uint8 = 0b10100
	Funct5AMOMINU uint8 = 0b11000
	Funct5AMOMAXU uint8 = 0b11100
)

// Funct12 values of the privileged instructions.
const (
	Funct12ECALL  uint16 = 0b000000000000
	Funct12EBREAK uint16 = 0b000000000001
	Funct12MRET   uint16 = 0b001100000010
	Funct12WFI    uint16 = 0b000100000101
)

// PrivMode is a RISC-V privilege level.
type PrivMode uint8

// Privilege levels. Supervisor is listed for completeness and is never
// entered by this core.
const (
	PrivUser       PrivMode = 0
	PrivSupervisor PrivMode = 1
	PrivMachine    PrivMode = 3
)

// String returns the privilege mode name.
func (p PrivMode) String() string {
	switch p {
	case PrivUser:
		return "U"
	case PrivSupervisor:
		return "S"
	case PrivMachine:
		return "M"
	}
	return "?"
}

// CSR addresses.
const (
	CSRMVendorID uint16 = 0xF11
	CSRMArchID   uint16 = 0xF12
	CSRMImpID    uint16 = 0xF13
	CSRMHartID   uint16 = 0xF14

	CSRMStatus    uint16 = 0x300
	CSRMISA       uint16 = 0x301
	CSRMEDeleg    uint16 = 0x302
	CSRMIDeleg    uint16 = 0x303
	CSRMIE        uint16 = 0x304
	CSRMTVec      uint16 = 0x305
	CSRMCounterEn uint16 = 0x306
	CSRMScratch   uint16 = 0x340
	CSRMEPC       uint16 = 0x341
	CSRMCause     uint16 = 0x342
	CSRMTVal      uint16 = 0x343
	CSRMIP        uint16 = 0x344

	CSRMCycle    uint16 = 0xB00
	CSRMInstret  uint16 = 0xB02
	CSRMCycleH   uint16 = 0xB80
	CSRMInstretH uint16 = 0xB82
	CSRCycle     uint16 = 0xC00
	CSRInstret   uint16 = 0xC02
	CSRCycleH    uint16 = 0xC80
	CSRInstretH  uint16 = 0xC82

	CSRTSelect uint16 = 0x7A0
	CSRTData1  uint16 = 0x7A1
	CSRTData2  uint16 = 0x7A2
	CSRDCSR    uint16 = 0x7B0
	CSRDPC     uint16 = 0x7B1
)

// Cause is an mcause exception or interrupt code.
type Cause uint32

// Synchronous exception causes.
const (
	CauseInstAddrMisaligned     Cause = 0
	CauseInstAccessFault        Cause = 1
	CauseIllegalInst            Cause = 2
	CauseBreakpoint             Cause = 3
	CauseLoadAddrMisaligned     Cause = 4
	CauseLoadAccessFault        Cause = 5
	CauseStoreAMOAddrMisaligned Cause = 6
	CauseStoreAMOAccessFault    Cause = 7
	CauseECallFromU             Cause = 8
	CauseECallFromS             Cause = 9
	CauseECallFromM             Cause = 11
)

// Machine-level interrupt causes.
const (
	InterruptMSoftware Cause = 3
	InterruptMTimer    Cause = 7
	InterruptMExternal Cause = 11
)

// InterruptFlag is the mcause bit marking an interrupt.
const InterruptFlag uint32 = 1 << 31

var causeNames = map[Cause]string{
	CauseInstAddrMisaligned:     "instruction address misaligned",
	CauseInstAccessFault:        "instruction access fault",
	CauseIllegalInst:            "illegal instruction",
	CauseBreakpoint:             "breakpoint",
	CauseLoadAddrMisaligned:     "load address misaligned",
	CauseLoadAccessFault:        "load access fault",
	CauseStoreAMOAddrMisaligned: "store/AMO address misaligned",
	CauseStoreAMOAccessFault:    "store/AMO access fault",
	CauseECallFromU:             "environment call from U-mode",
	CauseECallFromS:             "environment call from S-mode",
	CauseECallFromM:             "environment call from M-mode",
}

var interruptNames = map[Cause]string{
	InterruptMSoftware: "machine software interrupt",
	InterruptMTimer:    "machine timer interrupt",
	InterruptMExternal: "machine external interrupt",
}

// Describe returns a human-readable name for an exception or interrupt cause.
func (c Cause) Describe(interrupt bool) string {
	names := causeNames
	if interrupt {
		names = interruptNames
	}
	if name, ok := names[c]; ok {
		return name
	}
	return "reserved"
}
