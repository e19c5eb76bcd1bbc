// Package system assembles cores, memories and the interruptor into a
// clocked platform driven by an akita serial engine.
//
// Every clock is resolved in two passes. First every core exposes the bus
// request of its registered state. The arbiter then forwards the request of
// the bus owner through the address decoder to a slave, which produces one
// response per core and one snoop record of the shared bus. Finally every
// core steps with its response, the snoop and its interrupt lines.
package system

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-logr/logr"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/rv32sim/config"
	"github.com/sarchlab/rv32sim/emu"
	"github.com/sarchlab/rv32sim/loader"
	"github.com/sarchlab/rv32sim/platform"
	"github.com/sarchlab/rv32sim/timing/bus"
	"github.com/sarchlab/rv32sim/timing/core"
	"github.com/sarchlab/rv32sim/timing/csr"
)

// ErrMaxCycles is returned by Run when the cycle limit is reached before
// the program reports a result.
var ErrMaxCycles = errors.New("cycle limit reached")

// ToHostPass is the tohost value of a passing test. Any other non-zero
// value is a failure code.
const ToHostPass uint32 = 1

// Result summarizes a run.
type Result struct {
	// Finished is set once the program wrote tohost.
	Finished bool
	// ToHost is the value written to tohost.
	ToHost uint32
	// Cycles is the number of clocks simulated since the last reset.
	Cycles uint64
	// Harts holds the statistics of every core, indexed by hart ID.
	Harts []core.Stats
}

// Passed reports whether the program finished with the pass code.
func (r Result) Passed() bool {
	return r.Finished && r.ToHost == ToHostPass
}

// Instructions returns the number of instructions retired by all harts.
func (r Result) Instructions() uint64 {
	var total uint64
	for _, h := range r.Harts {
		total += h.Instructions
	}
	return total
}

// Option is a functional option for configuring the System.
type Option func(*System)

// WithLogger sets the logger of the system and of every core.
func WithLogger(logger logr.Logger) Option {
	return func(s *System) {
		s.logger = logger
	}
}

// WithHook registers a hook on every core.
func WithHook(hook sim.Hook) Option {
	return func(s *System) {
		s.hooks = append(s.hooks, hook)
	}
}

// WithEngine replaces the default serial engine.
func WithEngine(engine sim.Engine) Option {
	return func(s *System) {
		s.engine = engine
	}
}

// System is a set of harts sharing one bus.
type System struct {
	*sim.TickingComponent

	cfg    *config.SystemConfig
	logger logr.Logger
	hooks  []sim.Hook
	engine sim.Engine

	memory   *emu.Memory
	rams     []*platform.RAM
	clint    *platform.CLINT
	decoder  *platform.Decoder
	arbiter  *platform.Arbiter
	cores    []*core.Core
	external []bool

	reqs []bus.Request

	tohost     uint32
	hasToHost  bool
	sigBegin   uint32
	sigEnd     uint32
	hasSigDump bool

	cycles   uint64
	finished bool
	value    uint32
	err      error

	// writer is the hart whose store to tohost has not retired yet, or -1.
	writer int
}

// New builds a system from a validated copy of cfg.
func New(cfg *config.SystemConfig, opts ...Option) (*System, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to create system: %w", err)
	}

	s := &System{
		cfg:    cfg.Clone(),
		logger: logr.Discard(),
		memory: emu.NewMemory(),
		writer: -1,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.engine == nil {
		s.engine = sim.NewSerialEngine()
	}

	s.TickingComponent = sim.NewTickingComponent(
		"System", s.engine, sim.Freq(s.cfg.FreqMHz)*sim.MHz, s)

	if err := s.buildPlatform(); err != nil {
		return nil, err
	}
	if err := s.buildCores(); err != nil {
		return nil, err
	}

	s.logger.Info("system created",
		"variant", s.cfg.Variant,
		"harts", s.cfg.NumCores,
		"regions", len(s.rams))

	return s, nil
}

func (s *System) buildPlatform() error {
	s.decoder = platform.NewDecoder()

	for _, region := range s.cfg.Regions {
		ram := platform.NewRAM(region, s.memory)
		if err := s.decoder.AddSlave(region.Name, region.Base, region.Size, ram); err != nil {
			return fmt.Errorf("failed to map region: %w", err)
		}
		s.rams = append(s.rams, ram)
	}

	if s.cfg.CLINT != nil {
		s.clint = platform.NewCLINT(*s.cfg.CLINT, s.cfg.NumCores)
		region := s.cfg.CLINT.Region()
		if err := s.decoder.AddSlave(region.Name, region.Base, region.Size, s.clint); err != nil {
			return fmt.Errorf("failed to map interruptor: %w", err)
		}
	}

	s.arbiter = platform.NewArbiter(s.decoder, s.cfg.NumCores)
	return nil
}

func (s *System) buildCores() error {
	s.cores = make([]*core.Core, s.cfg.NumCores)
	s.external = make([]bool, s.cfg.NumCores)
	s.reqs = make([]bus.Request, s.cfg.NumCores)

	for i := range s.cores {
		coreCfg := s.cfg.Core
		coreCfg.HartID = uint32(i)

		c, err := core.NewCore(coreCfg,
			core.WithLogger(s.logger.WithValues("hart", i)))
		if err != nil {
			return fmt.Errorf("failed to create hart %d: %w", i, err)
		}
		for _, hook := range s.hooks {
			c.AcceptHook(hook)
		}
		s.cores[i] = c
	}

	return nil
}

// Config returns the configuration the system was built from.
func (s *System) Config() *config.SystemConfig {
	return s.cfg
}

// Engine returns the engine that drives the clock.
func (s *System) Engine() sim.Engine {
	return s.engine
}

// Memory returns the backing store shared by every memory region.
func (s *System) Memory() *emu.Memory {
	return s.memory
}

// Cores returns the harts in hart-ID order.
func (s *System) Cores() []*core.Core {
	return s.cores
}

// Core returns one hart.
func (s *System) Core(hart int) *core.Core {
	return s.cores[hart]
}

// CLINT returns the interruptor, or nil when the platform has none.
func (s *System) CLINT() *platform.CLINT {
	return s.clint
}

// RAM returns the memory slave of a named region.
func (s *System) RAM(name string) (*platform.RAM, bool) {
	for _, ram := range s.rams {
		if ram.Region().Name == name {
			return ram, true
		}
	}
	return nil, false
}

// Cycles returns the number of clocks simulated since the last reset.
func (s *System) Cycles() uint64 {
	return s.cycles
}

// SetToHost sets the address polled for the exit code after every clock.
func (s *System) SetToHost(addr uint32) {
	s.tohost = addr
	s.hasToHost = true
}

// SetSignature sets the [begin, end) range returned by Signature.
func (s *System) SetSignature(begin, end uint32) {
	s.sigBegin, s.sigEnd = begin, end
	s.hasSigDump = true
}

// LoadProgram copies an ELF image into memory and picks up the tohost and
// signature symbols.
func (s *System) LoadProgram(prog *loader.Program) {
	prog.LoadIntoMemory(s.memory)

	if addr, ok := prog.Symbol(s.cfg.ToHostSymbol); ok {
		s.SetToHost(addr)
	}
	if begin, end, ok := prog.SignatureRange(); ok {
		s.SetSignature(begin, end)
	}

	if prog.EntryPoint != s.cfg.Core.ResetAddress {
		s.logger.Info("entry point differs from the reset address",
			"entry", fmt.Sprintf("0x%08X", prog.EntryPoint),
			"reset", fmt.Sprintf("0x%08X", s.cfg.Core.ResetAddress))
	}
}

// SetExternalInterrupt drives the external interrupt line of a hart.
func (s *System) SetExternalInterrupt(hart int, level bool) {
	s.external[hart] = level
}

// Lines returns the interrupt lines a hart samples on the next clock.
func (s *System) Lines(hart int) csr.InterruptLines {
	var lines csr.InterruptLines
	if s.clint != nil {
		lines = s.clint.Lines(hart)
	}
	lines.External = s.external[hart]
	return lines
}

// ReadWord returns a word of memory as the cores currently see it.
func (s *System) ReadWord(addr uint32) uint32 {
	for _, ram := range s.rams {
		if ram.Region().Contains(addr) {
			return ram.ReadWord(addr)
		}
	}
	return s.memory.Read32(addr &^ 0b11)
}

// Signature returns the words of the signature range.
func (s *System) Signature() []uint32 {
	if !s.hasSigDump {
		return nil
	}

	words := make([]uint32, 0, (s.sigEnd-s.sigBegin)/4)
	for addr := s.sigBegin; addr < s.sigEnd; addr += 4 {
		words = append(words, s.ReadWord(addr))
	}
	return words
}

// WriteSignature writes the signature one word per line in lower-case hex.
func (s *System) WriteSignature(w io.Writer) error {
	for _, word := range s.Signature() {
		if _, err := fmt.Fprintf(w, "%08x\n", word); err != nil {
			return fmt.Errorf("failed to write signature: %w", err)
		}
	}
	return nil
}

// Reset returns every core and slave to its reset state. Memory contents
// are kept.
func (s *System) Reset() {
	for _, c := range s.cores {
		c.Reset()
	}
	for _, ram := range s.rams {
		ram.Reset()
	}
	if s.clint != nil {
		s.clint.Reset()
	}
	s.arbiter.Reset()
	for i := range s.external {
		s.external[i] = false
	}

	s.cycles = 0
	s.finished = false
	s.value = 0
	s.err = nil
	s.writer = -1
}

// Cycle advances the whole system by one clock.
func (s *System) Cycle() {
	lines := make([]csr.InterruptLines, len(s.cores))
	for i, c := range s.cores {
		s.reqs[i] = c.Request()
		lines[i] = s.Lines(i)
	}

	rsps, snoop := s.arbiter.Cycle(s.reqs)

	for i, c := range s.cores {
		c.Step(rsps[i], snoop, lines[i])
	}
	s.cycles++

	switch {
	case s.writer >= 0:
		if s.cores[s.writer].State() == core.StateFetch {
			s.finish()
		}
	case s.hasToHost && !s.finished:
		if value := s.ReadWord(s.tohost); value != 0 {
			s.value = value
			s.writer = s.toHostWriter(rsps)
			if s.writer < 0 {
				s.finish()
			}
		}
	}
}

// toHostWriter returns the hart whose store to tohost was acknowledged this
// cycle, or -1 when tohost changed without a bus store.
func (s *System) toHostWriter(rsps []bus.Response) int {
	for i, req := range s.reqs {
		if req.We && rsps[i].Ack && req.WordAddr() == s.tohost&^0b11 {
			return i
		}
	}
	return -1
}

// finish ends the run once the store to tohost has retired.
func (s *System) finish() {
	s.finished = true
	s.writer = -1
	s.logger.Info("tohost written",
		"value", s.value,
		"cycle", s.cycles)
}

// Done reports whether the run is over, either because the program wrote
// tohost or because the cycle limit was reached.
func (s *System) Done() bool {
	return s.finished || s.err != nil
}

// Tick implements sim.Ticker. The engine keeps ticking until the run is
// done.
func (s *System) Tick() bool {
	if s.Done() {
		return false
	}

	s.Cycle()

	if !s.finished && s.writer < 0 && s.cfg.MaxCycles > 0 && s.cycles >= s.cfg.MaxCycles {
		s.err = fmt.Errorf("%w after %d cycles", ErrMaxCycles, s.cycles)
	}

	return !s.Done()
}

// Run clocks the system until the program writes tohost or the cycle limit
// is reached. Without tohost and without limit it only returns when the
// engine is paused from outside.
func (s *System) Run() (Result, error) {
	s.logger.Info("run started", "max_cycles", s.cfg.MaxCycles)

	s.TickLater()
	if err := s.engine.Run(); err != nil {
		return s.Result(), fmt.Errorf("engine failed: %w", err)
	}

	for _, ram := range s.rams {
		ram.Flush()
	}

	result := s.Result()
	s.logger.Info("run finished",
		"cycles", result.Cycles,
		"instructions", result.Instructions(),
		"tohost", result.ToHost)

	return result, s.err
}

// Result returns the current run summary.
func (s *System) Result() Result {
	harts := make([]core.Stats, len(s.cores))
	for i, c := range s.cores {
		harts[i] = c.Stats()
	}
	return Result{
		Finished: s.finished,
		ToHost:   s.value,
		Cycles:   s.cycles,
		Harts:    harts,
	}
}
