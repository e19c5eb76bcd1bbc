// Package core provides the cycle-accurate RV32 execution engine.
//
// The engine executes one instruction at a time by walking a state machine
// (RESET, FETCH, EXECUTE, MEMORY, ATOMIC, CSR, COMMIT, TRAP). Every clock is
// split in two phases: Request exposes the bus request derived from the
// registered state only, and Step takes the bus response, computes every
// combinational value from the state before the edge and then commits the
// next state of all units at once.
package core

import (
	"fmt"

	"github.com/go-logr/logr"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/rv32sim/config"
	"github.com/sarchlab/rv32sim/emu"
	"github.com/sarchlab/rv32sim/insts"
	"github.com/sarchlab/rv32sim/timing/bus"
	"github.com/sarchlab/rv32sim/timing/csr"
	"github.com/sarchlab/rv32sim/timing/lsu"
	"github.com/sarchlab/rv32sim/timing/muldiv"
	"github.com/sarchlab/rv32sim/timing/trigger"
)

// Stats holds performance statistics for the core.
type Stats struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64
	// Instructions is the number of instructions retired.
	Instructions uint64
	// Exceptions is the number of synchronous traps taken.
	Exceptions uint64
	// Interrupts is the number of interrupts taken.
	Interrupts uint64
	// HaltRequests is the number of trigger halt requests raised.
	HaltRequests uint64
	// FetchWaitCycles is the number of FETCH cycles spent waiting for the bus.
	FetchWaitCycles uint64
	// MemWaitCycles is the number of MEMORY and ATOMIC cycles spent waiting
	// for the bus.
	MemWaitCycles uint64
	// MulDivCycles is the number of EXECUTE cycles spent waiting for the
	// multiplier or divider.
	MulDivCycles uint64
}

// CPI returns the cycles per instruction.
func (s Stats) CPI() float64 {
	if s.Instructions == 0 {
		return 0
	}
	return float64(s.Cycles) / float64(s.Instructions)
}

// Traps returns the number of traps of any kind.
func (s Stats) Traps() uint64 {
	return s.Exceptions + s.Interrupts
}

// Option is a functional option for configuring the Core.
type Option func(*Core)

// WithLogger sets the logger. Traps are logged at V(1), retirements at V(2).
func WithLogger(logger logr.Logger) Option {
	return func(c *Core) {
		c.logger = logger
	}
}

// Core is one RV32 hart.
type Core struct {
	*sim.HookableBase

	cfg    config.CoreConfig
	logger logr.Logger

	state State
	regs  *emu.RegFile

	decoder  *insts.Decoder
	decode   *insts.DecodeUnit
	csrs     *csr.File
	exc      *csr.ExceptionUnit
	triggers *trigger.Unit
	mul      *muldiv.Multiplier
	div      *muldiv.Divider
	tracker  *lsu.Tracker

	// Latched intermediates of the instruction in flight.
	word    uint32
	rs1Data uint32
	rs2Data uint32
	alu     aluLatches
	ldOut   uint32
	csrOut  uint32
	mdOut   uint32
	amoOut  uint32
	phase   atomicPhase
	record  csr.Record

	stats Stats
}

// NewCore creates a core from its construction-time configuration.
func NewCore(cfg config.CoreConfig, opts ...Option) (*Core, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to create core: %w", err)
	}

	c := &Core{
		HookableBase: sim.NewHookableBase(),
		cfg:          cfg,
		logger:       logr.Discard(),
		regs:         &emu.RegFile{},
		csrs:         csr.NewFile(),
		tracker:      lsu.NewTracker(),
	}

	var decoderOpts []insts.DecoderOption
	if cfg.EnableRV32M {
		decoderOpts = append(decoderOpts, insts.WithRV32M())
		c.mul = muldiv.NewMultiplier()
		c.div = muldiv.NewDivider()
	}
	if cfg.EnableRV32A {
		decoderOpts = append(decoderOpts, insts.WithRV32A())
	}
	c.decoder = insts.NewDecoder(decoderOpts...)
	c.decode = insts.NewDecodeUnit(c.decoder)

	var err error
	c.exc, err = csr.NewExceptionUnit(c.csrs, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create core: %w", err)
	}

	if cfg.EnableTriggers {
		c.triggers, err = trigger.New(c.csrs, cfg.NumTriggers, cfg.EnableUserMode)
		if err != nil {
			return nil, fmt.Errorf("failed to create core: %w", err)
		}
	}

	for _, opt := range opts {
		opt(c)
	}

	c.Reset()
	return c, nil
}

// Config returns the construction-time configuration.
func (c *Core) Config() config.CoreConfig {
	return c.cfg
}

// HartID returns the hart identifier.
func (c *Core) HartID() uint32 {
	return c.cfg.HartID
}

// State returns the current engine state.
func (c *Core) State() State {
	return c.state
}

// PC returns the program counter.
func (c *Core) PC() uint32 {
	return c.regs.PC
}

// Reg returns general-purpose register i.
func (c *Core) Reg(i uint8) uint32 {
	return c.regs.ReadReg(i)
}

// RegFile returns the architectural register file. Writing it while the
// core runs bypasses the engine.
func (c *Core) RegFile() *emu.RegFile {
	return c.regs
}

// Priv returns the current privilege mode.
func (c *Core) Priv() insts.PrivMode {
	return c.exc.Priv()
}

// CSR returns the value of an implemented CSR, or 0.
func (c *Core) CSR(addr uint16) uint32 {
	return c.csrs.Read(addr)
}

// CSRFile returns the CSR file.
func (c *Core) CSRFile() *csr.File {
	return c.csrs
}

// Triggers returns the trigger unit, or nil when triggers are disabled.
func (c *Core) Triggers() *trigger.Unit {
	return c.triggers
}

// Reservation returns the LR/SC reservation.
func (c *Core) Reservation() (uint32, bool) {
	return c.tracker.Reservation()
}

// Stats returns performance statistics for the core.
func (c *Core) Stats() Stats {
	return c.stats
}

// Reset puts the core into the RESET state with the pc at the reset address.
// General-purpose registers are cleared.
func (c *Core) Reset() {
	c.state = StateReset
	*c.regs = emu.RegFile{PC: c.cfg.ResetAddress}

	c.decode.Reset()
	c.csrs.Reset()
	c.exc.Reset()
	if c.triggers != nil {
		c.triggers.Reset()
	}
	if c.mul != nil {
		c.mul.Reset()
		c.div.Reset()
	}
	c.tracker.Reset()

	c.word = 0
	c.rs1Data, c.rs2Data = 0, 0
	c.alu = aluLatches{}
	c.ldOut, c.csrOut, c.mdOut, c.amoOut = 0, 0, 0, 0
	c.phase = atomicLoad
	c.record = csr.Record{}
	c.stats = Stats{}
}

// Request returns the bus request of the current cycle. It only depends on
// the registered state.
func (c *Core) Request() bus.Request {
	return lsu.Request(c.access())
}

// Tick runs one full clock against a private bus: the request goes to
// slave, and the core snoops its own transaction.
func (c *Core) Tick(slave bus.Slave, lines csr.InterruptLines) {
	req := c.Request()
	rsp := slave.Cycle(req)
	c.Step(rsp, bus.SnoopOf(req, rsp), lines)
}

// Step advances the core by one clock edge. rsp answers the request returned
// by Request this cycle, snoop is the shared bus traffic of this cycle, and
// lines are the interrupt inputs.
func (c *Core) Step(rsp bus.Response, snoop bus.Snoop, lines csr.InterruptLines) {
	access := c.access()
	req := lsu.Request(access)
	n := c.evaluate(access, rsp)
	c.commit(n, req, rsp, snoop, lines)
}
