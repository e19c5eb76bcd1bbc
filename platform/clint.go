package platform

import (
	"github.com/sarchlab/rv32sim/config"
	"github.com/sarchlab/rv32sim/timing/bus"
	"github.com/sarchlab/rv32sim/timing/csr"
)

// Register offsets of the core-local interruptor.
const (
	CLINTMSIP     uint32 = 0x000 // one word per hart
	CLINTMTimeCmp uint32 = 0x400 // two words per hart
	CLINTMTime    uint32 = 0xC00 // two words
)

// CLINT is the core-local interruptor. It holds one software interrupt bit
// and one 64-bit timer comparator per hart, and a shared 64-bit mtime that
// increments every ClockDivider cycles. The timer line of a hart is the
// registered result of mtime >= mtimecmp.
type CLINT struct {
	base    uint32
	divider uint64

	count    uint64
	mtime    uint64
	msip     []bool
	mtimecmp []uint64
	mtip     []bool
}

// NewCLINT creates an interruptor for harts harts.
func NewCLINT(cfg config.CLINTConfig, harts int) *CLINT {
	c := &CLINT{
		base:     cfg.Base,
		divider:  cfg.ClockDivider,
		msip:     make([]bool, harts),
		mtimecmp: make([]uint64, harts),
		mtip:     make([]bool, harts),
	}
	if c.divider == 0 {
		c.divider = 1
	}
	c.Reset()
	return c
}

// Reset clears the time and disarms every comparator.
func (c *CLINT) Reset() {
	c.count = c.divider - 1
	c.mtime = 0
	for i := range c.msip {
		c.msip[i] = false
		c.mtimecmp[i] = ^uint64(0)
		c.mtip[i] = false
	}
}

// MTime returns the current time.
func (c *CLINT) MTime() uint64 {
	return c.mtime
}

// Lines returns the interrupt lines of a hart. External is left low.
func (c *CLINT) Lines(hart int) csr.InterruptLines {
	if hart < 0 || hart >= len(c.msip) {
		return csr.InterruptLines{}
	}
	return csr.InterruptLines{
		Timer:    c.mtip[hart],
		Software: c.msip[hart],
	}
}

// Cycle implements bus.Slave. Accesses take one cycle. Cycle also advances
// the clock divider, so it must be called exactly once per clock.
func (c *CLINT) Cycle(req bus.Request) bus.Response {
	var rsp bus.Response

	for i := range c.mtip {
		c.mtip[i] = c.mtime >= c.mtimecmp[i]
	}
	if c.count == 0 {
		c.count = c.divider - 1
		c.mtime++
	} else {
		c.count--
	}

	if !req.Active() {
		return rsp
	}

	offset := req.WordAddr() - c.base
	reg, ok := c.register(offset)
	if !ok {
		return bus.Response{Err: true}
	}

	rsp.Ack = true
	rsp.Data = reg.read()
	if req.We {
		reg.write(mergeWord(reg.read(), req.Data, req.Sel))
	}
	return rsp
}

type clintRegister struct {
	read  func() uint32
	write func(uint32)
}

func (c *CLINT) register(offset uint32) (clintRegister, bool) {
	harts := uint32(len(c.msip))

	switch {
	case offset < CLINTMTimeCmp:
		hart := offset / 4
		if hart >= harts {
			return clintRegister{}, false
		}
		return clintRegister{
			read: func() uint32 {
				if c.msip[hart] {
					return 1
				}
				return 0
			},
			write: func(v uint32) { c.msip[hart] = v&1 != 0 },
		}, true

	case offset < CLINTMTime:
		hart := (offset - CLINTMTimeCmp) / 8
		if hart >= harts {
			return clintRegister{}, false
		}
		return halfOf(&c.mtimecmp[hart], offset&4 != 0), true

	case offset < CLINTMTime+8:
		return halfOf(&c.mtime, offset&4 != 0), true
	}

	return clintRegister{}, false
}

func halfOf(v *uint64, high bool) clintRegister {
	shift := uint(0)
	if high {
		shift = 32
	}
	return clintRegister{
		read: func() uint32 { return uint32(*v >> shift) },
		write: func(w uint32) {
			*v = *v&^(uint64(0xFFFF_FFFF)<<shift) | uint64(w)<<shift
		},
	}
}

func mergeWord(old, data uint32, sel uint8) uint32 {
	for i := uint(0); i < 4; i++ {
		if sel&(1<<i) != 0 {
			mask := uint32(0xFF) << (8 * i)
			old = old&^mask | data&mask
		}
	}
	return old
}
