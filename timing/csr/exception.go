package csr

import (
	"github.com/sarchlab/rv32sim/config"
	"github.com/sarchlab/rv32sim/insts"
)

// mstatus bits.
const (
	MStatusMIE      uint32 = 1 << 3
	MStatusMPIE     uint32 = 1 << 7
	MStatusMPPShift        = 11
	MStatusMPPMask  uint32 = 0b11 << MStatusMPPShift
)

// mip/mie bits of the machine interrupts.
const (
	MIPMSIP uint32 = 1 << insts.InterruptMSoftware
	MIPMTIP uint32 = 1 << insts.InterruptMTimer
	MIPMEIP uint32 = 1 << insts.InterruptMExternal
)

// misa bits.
const (
	MISAA   uint32 = 1 << ('A' - 'A')
	MISAI   uint32 = 1 << ('I' - 'A')
	MISAM   uint32 = 1 << ('M' - 'A')
	MISAU   uint32 = 1 << ('U' - 'A')
	MISAMXL uint32 = 1 << 30
)

// Record is the exception record handed from the core to the exception unit.
// It is registered by the core and consumed during the TRAP state.
type Record struct {
	Enable    bool
	Exception bool
	Interrupt bool
	Mret      bool
	Cause     insts.Cause

	// Data is the faulting address or instruction, written to mtval for
	// exceptions.
	Data uint32
}

// IsTrap reports whether the record enters the trap handler.
func (r Record) IsTrap() bool {
	return r.Enable && (r.Exception || r.Interrupt)
}

// MCause returns the mcause encoding of the record. Exceptions take
// precedence over interrupts.
func (r Record) MCause() uint32 {
	if r.Exception {
		return uint32(r.Cause)
	}
	return insts.InterruptFlag | uint32(r.Cause)
}

// InterruptLines are the level-sensitive interrupt inputs of one hart.
type InterruptLines struct {
	External bool
	Timer    bool
	Software bool
}

// Any reports whether any line is raised.
func (l InterruptLines) Any() bool {
	return l.External || l.Timer || l.Software
}

func (l InterruptLines) mip() uint32 {
	var v uint32
	if l.External {
		v |= MIPMEIP
	}
	if l.Timer {
		v |= MIPMTIP
	}
	if l.Software {
		v |= MIPMSIP
	}
	return v
}

// ExceptionInput is everything the exception unit samples at a clock edge.
type ExceptionInput struct {
	Record Record

	// PC is the pc of the instruction described by Record.
	PC uint32

	// Retire pulses once per retired instruction.
	Retire bool

	Lines InterruptLines
}

// ExceptionUnit owns the machine-mode trap registers, the optional counters
// and identification registers, and the current privilege mode.
type ExceptionUnit struct {
	cfg  config.CoreConfig
	priv insts.PrivMode

	mstatus    *Register
	misa       *Register
	medeleg    *Register
	mideleg    *Register
	mie        *Register
	mtvec      *Register
	mcounteren *Register
	mscratch   *Register
	mepc       *Register
	mcause     *Register
	mtval      *Register
	mip        *Register
	dcsr       *Register
	dpc        *Register

	mvendorid *Register
	marchid   *Register
	mimpid    *Register
	mhartid   *Register

	mcycle    *Register
	mcycleh   *Register
	minstret  *Register
	minstreth *Register
	cycle     *Register
	cycleh    *Register
	instret   *Register
	instreth  *Register

	plain []*Register
}

// NewExceptionUnit registers the trap registers in file.
func NewExceptionUnit(file *File, cfg config.CoreConfig) (*ExceptionUnit, error) {
	u := &ExceptionUnit{cfg: cfg}

	regs := []struct {
		reg   **Register
		addr  uint16
		plain bool
	}{
		{&u.mstatus, insts.CSRMStatus, false},
		{&u.misa, insts.CSRMISA, true},
		{&u.medeleg, insts.CSRMEDeleg, true},
		{&u.mideleg, insts.CSRMIDeleg, true},
		{&u.mie, insts.CSRMIE, true},
		{&u.mtvec, insts.CSRMTVec, true},
		{&u.mcounteren, insts.CSRMCounterEn, true},
		{&u.mscratch, insts.CSRMScratch, true},
		{&u.mepc, insts.CSRMEPC, true},
		{&u.mcause, insts.CSRMCause, true},
		{&u.mtval, insts.CSRMTVal, true},
		{&u.mip, insts.CSRMIP, true},
		{&u.dcsr, insts.CSRDCSR, true},
		{&u.dpc, insts.CSRDPC, true},
	}
	if cfg.EnableExtraCSR {
		regs = append(regs, []struct {
			reg   **Register
			addr  uint16
			plain bool
		}{
			{&u.mvendorid, insts.CSRMVendorID, true},
			{&u.marchid, insts.CSRMArchID, true},
			{&u.mimpid, insts.CSRMImpID, true},
			{&u.mhartid, insts.CSRMHartID, true},
			{&u.mcycle, insts.CSRMCycle, false},
			{&u.mcycleh, insts.CSRMCycleH, false},
			{&u.minstret, insts.CSRMInstret, false},
			{&u.minstreth, insts.CSRMInstretH, false},
			{&u.cycle, insts.CSRCycle, false},
			{&u.cycleh, insts.CSRCycleH, false},
			{&u.instret, insts.CSRInstret, false},
			{&u.instreth, insts.CSRInstretH, false},
		}...)
	}

	for _, r := range regs {
		reg, err := file.AddRegister(r.addr)
		if err != nil {
			return nil, err
		}
		*r.reg = reg
		if r.plain {
			u.plain = append(u.plain, reg)
		}
	}

	u.Reset()
	return u, nil
}

// Priv returns the current privilege mode.
func (u *ExceptionUnit) Priv() insts.PrivMode {
	return u.priv
}

// MEPC returns the exception program counter.
func (u *ExceptionUnit) MEPC() uint32 {
	return u.mepc.Value
}

// MStatus returns the mstatus value.
func (u *ExceptionUnit) MStatus() uint32 {
	return u.mstatus.Value
}

// InterruptsEnabled reports whether interrupts are globally enabled.
func (u *ExceptionUnit) InterruptsEnabled() bool {
	return u.mstatus.Value&MStatusMIE != 0 || u.priv != insts.PrivMachine
}

var interruptPriority = []insts.Cause{
	insts.InterruptMExternal,
	insts.InterruptMTimer,
	insts.InterruptMSoftware,
}

// PendingInterrupt returns the highest priority enabled pending interrupt.
func (u *ExceptionUnit) PendingInterrupt() (insts.Cause, bool) {
	if !u.InterruptsEnabled() {
		return 0, false
	}

	pending := u.mip.Value & u.mie.Value
	for _, cause := range interruptPriority {
		if pending&(1<<cause) != 0 {
			return cause, true
		}
	}
	return 0, false
}

// TrapTarget returns the handler address for a trap record. Vectored mode
// only applies to interrupts; modes above 1 behave as direct.
func (u *ExceptionUnit) TrapTarget(rec Record) uint32 {
	base := u.mtvec.Value &^ 0b11
	if u.mtvec.Value&0b11 == 1 && rec.Interrupt && !rec.Exception {
		return base + 4*uint32(rec.Cause)
	}
	return base
}

func (u *ExceptionUnit) legalMPP(mpp uint32) uint32 {
	if mpp == uint32(insts.PrivUser) && u.cfg.EnableUserMode {
		return mpp
	}
	return uint32(insts.PrivMachine)
}

func (u *ExceptionUnit) setMPP(status, mpp uint32) uint32 {
	return status&^MStatusMPPMask | mpp<<MStatusMPPShift
}

// Tick advances the unit by one clock edge: software writes, interrupt
// lines, the trap record and finally the counters.
func (u *ExceptionUnit) Tick(in ExceptionInput) {
	for _, r := range u.plain {
		r.Apply()
	}
	if u.mstatus.Pending {
		v := u.mstatus.Shadow
		u.mstatus.Value = u.setMPP(v, u.legalMPP(v&MStatusMPPMask>>MStatusMPPShift))
	}

	u.mip.Value = u.mip.Value&^(MIPMSIP|MIPMTIP|MIPMEIP) | in.Lines.mip()

	u.applyRecord(in.Record, in.PC)

	if u.cfg.EnableExtraCSR {
		u.tickCounters(in.Retire)
	}
}

func (u *ExceptionUnit) applyRecord(rec Record, pc uint32) {
	if !rec.Enable {
		return
	}

	status := u.mstatus.Value
	switch {
	case rec.Exception || rec.Interrupt:
		u.mepc.Value = pc &^ 0b11
		status &^= MStatusMIE | MStatusMPIE
		if u.mstatus.Value&MStatusMIE != 0 {
			status |= MStatusMPIE
		}
		status = u.setMPP(status, uint32(u.priv))
		u.priv = insts.PrivMachine
		u.mcause.Value = rec.MCause()
		if rec.Exception {
			u.mtval.Value = rec.Data
		}
	case rec.Mret:
		status &^= MStatusMIE
		if u.mstatus.Value&MStatusMPIE != 0 {
			status |= MStatusMIE
		}
		u.priv = insts.PrivMode(status & MStatusMPPMask >> MStatusMPPShift)
		if u.cfg.EnableUserMode {
			status = u.setMPP(status, uint32(insts.PrivUser))
		}
	}
	u.mstatus.Value = status
}

func tickCounter(lo, hi *Register, increment bool) {
	value := uint64(hi.Value)<<32 | uint64(lo.Value)
	if increment {
		value++
	}

	lo.Value = uint32(value)
	hi.Value = uint32(value >> 32)
	lo.Apply()
	hi.Apply()
}

func (u *ExceptionUnit) tickCounters(retire bool) {
	tickCounter(u.mcycle, u.mcycleh, true)
	tickCounter(u.minstret, u.minstreth, retire)

	u.cycle.Value = u.mcycle.Value
	u.cycleh.Value = u.mcycleh.Value
	u.instret.Value = u.minstret.Value
	u.instreth.Value = u.minstreth.Value
}

// Cycles returns the 64-bit cycle counter, or 0 without the counters.
func (u *ExceptionUnit) Cycles() uint64 {
	if u.mcycle == nil {
		return 0
	}
	return uint64(u.mcycleh.Value)<<32 | uint64(u.mcycle.Value)
}

// Retired returns the 64-bit instruction-retired counter, or 0 without the
// counters.
func (u *ExceptionUnit) Retired() uint64 {
	if u.minstret == nil {
		return 0
	}
	return uint64(u.minstreth.Value)<<32 | uint64(u.minstret.Value)
}

// MISA returns the misa value for the configured extensions.
func (u *ExceptionUnit) MISA() uint32 {
	misa := MISAMXL | MISAI
	if u.cfg.EnableRV32M {
		misa |= MISAM
	}
	if u.cfg.EnableRV32A {
		misa |= MISAA
	}
	if u.cfg.EnableUserMode {
		misa |= MISAU
	}
	return misa
}

// Reset puts every owned register into its reset state.
func (u *ExceptionUnit) Reset() {
	u.priv = insts.PrivMachine

	for _, r := range u.plain {
		r.Value = 0
		r.Pending = false
	}

	mpp := uint32(insts.PrivMachine)
	if u.cfg.EnableUserMode {
		mpp = uint32(insts.PrivUser)
	}
	u.mstatus.Value = u.setMPP(0, mpp)
	u.mstatus.Pending = false
	u.mtvec.Value = u.cfg.ResetAddress &^ 0b11
	u.misa.Value = u.MISA()

	if u.cfg.EnableExtraCSR {
		u.mhartid.Value = u.cfg.HartID
		for _, r := range []*Register{
			u.mcycle, u.mcycleh, u.minstret, u.minstreth,
			u.cycle, u.cycleh, u.instret, u.instreth,
		} {
			r.Value = 0
			r.Pending = false
		}
	}
}
