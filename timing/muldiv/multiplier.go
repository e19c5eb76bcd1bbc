package muldiv

import "github.com/sarchlab/rv32sim/insts"

// Multiplier is a four-stage pipelined 32x32 multiplier built from 16x16
// partial products. Asserting Valid while the unit is idle starts an
// operation; Ready pulses once, four cycles after the start is registered.
type Multiplier struct {
	// active is a one-hot shift register tracking the operation through
	// the stages. Bit 4 is the ready pulse.
	active uint8

	// stage 1: operand magnitudes
	a, b     uint64
	negate1  bool
	lowHalf1 bool

	// stage 2: partial products
	ll, lh, hl, hh uint64
	negate2        bool
	lowHalf2       bool

	// stage 3: accumulated product magnitude
	product  uint64
	negate3  bool
	lowHalf3 bool

	// stage 4
	result uint32
}

// NewMultiplier creates an idle multiplier.
func NewMultiplier() *Multiplier {
	return &Multiplier{}
}

// Ready reports whether the result is available this cycle.
func (m *Multiplier) Ready() bool {
	return m.active&0b10000 != 0
}

// Busy reports whether an operation is in flight.
func (m *Multiplier) Busy() bool {
	return m.active != 0
}

// Result returns the registered result. It is meaningful when Ready.
func (m *Multiplier) Result() uint32 {
	return m.result
}

// Tick advances the multiplier by one clock edge.
func (m *Multiplier) Tick(in Input) {
	start := in.Valid && m.active == 0

	// Stages are updated last to first so that each reads the values the
	// previous stage held before the edge.
	full := m.product
	if m.negate3 {
		full = -full
	}
	if m.lowHalf3 {
		m.result = uint32(full)
	} else {
		m.result = uint32(full >> 32)
	}

	m.product = m.ll + m.hh<<32 + (m.lh+m.hl)<<16
	m.negate3, m.lowHalf3 = m.negate2, m.lowHalf2

	m.ll = (m.a & 0xFFFF) * (m.b & 0xFFFF)
	m.lh = (m.a & 0xFFFF) * (m.b >> 16)
	m.hl = (m.a >> 16) * (m.b & 0xFFFF)
	m.hh = (m.a >> 16) * (m.b >> 16)
	m.negate2, m.lowHalf2 = m.negate1, m.lowHalf1

	m.latchOperands(in)

	m.active = (m.active << 1) & 0b11111
	if start {
		m.active |= 1
	}
}

func (m *Multiplier) latchOperands(in Input) {
	aSigned := (in.Op == insts.OpMULH || in.Op == insts.OpMULHSU) && int32(in.A) < 0
	bSigned := in.Op == insts.OpMULH && int32(in.B) < 0

	m.a = magnitude(in.A, aSigned)
	m.b = magnitude(in.B, bSigned)
	m.negate1 = aSigned != bSigned
	m.lowHalf1 = in.Op == insts.OpMUL
}

// magnitude returns the 33-bit absolute value of v.
func magnitude(v uint32, signed bool) uint64 {
	if signed {
		return uint64(-int64(int32(v)))
	}
	return uint64(v)
}

// Reset returns the multiplier to idle.
func (m *Multiplier) Reset() {
	*m = Multiplier{}
}
