package core_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/rv32sim/config"
	"github.com/sarchlab/rv32sim/emu"
	"github.com/sarchlab/rv32sim/insts"
	"github.com/sarchlab/rv32sim/platform"
	"github.com/sarchlab/rv32sim/timing/bus"
	"github.com/sarchlab/rv32sim/timing/core"
	"github.com/sarchlab/rv32sim/timing/csr"
)

const (
	resetAddr = config.DefaultResetAddress
	dataAddr  = resetAddr + 0x1000
)

// bench drives one core against a RAM behind an address decoder.
type bench struct {
	core    *core.Core
	memory  *emu.Memory
	ram     *platform.RAM
	decoder *platform.Decoder
	lines   csr.InterruptLines

	retired []core.RetireInfo
	traps   []core.TrapInfo
	halts   []core.HaltRequestInfo
}

func (b *bench) Func(ctx sim.HookCtx) {
	switch info := ctx.Item.(type) {
	case core.RetireInfo:
		b.retired = append(b.retired, info)
	case core.TrapInfo:
		b.traps = append(b.traps, info)
	case core.HaltRequestInfo:
		b.halts = append(b.halts, info)
	}
}

func newBench(cfg config.CoreConfig, latency uint64, program ...uint32) *bench {
	c, err := core.NewCore(cfg, core.WithLogger(GinkgoLogr))
	Expect(err).NotTo(HaveOccurred())

	b := &bench{
		core:    c,
		memory:  emu.NewMemory(),
		decoder: platform.NewDecoder(),
	}
	region := config.MemoryRegion{Name: "ram", Base: resetAddr, Size: 0x1_0000, Latency: latency}
	b.ram = platform.NewRAM(region, b.memory)
	Expect(b.decoder.AddSlave(region.Name, region.Base, region.Size, b.ram)).To(Succeed())

	b.memory.LoadProgram(resetAddr, insts.Assemble(program...))
	c.AcceptHook(b)
	return b
}

func standardCore() config.CoreConfig {
	return config.DefaultConfig().Core
}

func (b *bench) tick() {
	b.core.Tick(b.decoder, b.lines)
}

// tickWithSnoop runs one clock in which snoop is the shared bus traffic.
func (b *bench) tickWithSnoop(snoop bus.Snoop) {
	req := b.core.Request()
	rsp := b.decoder.Cycle(req)
	b.core.Step(rsp, snoop, b.lines)
}

func (b *bench) runUntil(cond func() bool) {
	for i := 0; !cond(); i++ {
		if i > 10_000 {
			Fail("condition never met")
		}
		b.tick()
	}
}

func (b *bench) runUntilRetired(n uint64) {
	b.runUntil(func() bool { return b.core.Stats().Instructions >= n })
}

func (b *bench) runUntilTraps(n uint64) {
	b.runUntil(func() bool { return b.core.Stats().Traps() >= n })
}

// runToHandler runs until the first trap and expects the core at the
// handler entry.
func runToHandler(b *bench) {
	b.runUntilTraps(1)
	Expect(b.core.PC()).To(Equal(resetAddr + handler))
}

// Register names used by the test programs.
const (
	ra uint8 = 1
	t0 uint8 = 5
	t1 uint8 = 6
	t2 uint8 = 7
)

// setMTVec returns the instructions that point mtvec at resetAddr+offset.
func setMTVec(offset int32) []uint32 {
	return []uint32{
		insts.EncodeLUI(t0, resetAddr>>12),
		insts.EncodeADDI(t0, t0, offset),
		insts.EncodeCSR(insts.Funct3CSRRW, 0, insts.CSRMTVec, t0),
	}
}

// at pads program with NOPs up to the word offset, then appends words.
func at(program []uint32, offset int, words ...uint32) []uint32 {
	for len(program) < offset/4 {
		program = append(program, insts.EncodeADDI(0, 0, 0))
	}
	return append(program, words...)
}

var selfLoop = insts.EncodeJAL(0, 0)
