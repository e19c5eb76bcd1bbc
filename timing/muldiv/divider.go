package muldiv

import "github.com/sarchlab/rv32sim/insts"

// Divider is a restoring shift-subtract divider. Signed operations divide
// the operand magnitudes and fix the sign of the result afterwards, which
// also yields the RISC-V results for division by zero and signed overflow.
type Divider struct {
	start, startQ bool
	running       bool
	ready         bool

	dividend     uint32
	divisor      uint64 // 63 bits
	quotient     uint32
	quotientMask uint32
	outSign      bool

	result uint32
}

// NewDivider creates an idle divider.
func NewDivider() *Divider {
	return &Divider{}
}

// Ready reports whether the result is available this cycle.
func (d *Divider) Ready() bool {
	return d.ready
}

// Busy reports whether an operation is in flight.
func (d *Divider) Busy() bool {
	return d.running || d.start
}

// Result returns the registered result. It is meaningful when Ready.
func (d *Divider) Result() uint32 {
	return d.result
}

// Tick advances the divider by one clock edge.
func (d *Divider) Tick(in Input) {
	isDiv := in.Op == insts.OpDIV
	isRem := in.Op == insts.OpREM
	signed := isDiv || isRem
	rising := d.start && !d.startQ

	d.startQ = d.start
	d.start = in.Valid && !d.ready
	d.ready = false

	switch {
	case rising:
		aNeg := int32(in.A) < 0
		bNeg := int32(in.B) < 0
		d.dividend = in.A
		if signed && aNeg {
			d.dividend = -in.A
		}
		divisor := in.B
		if signed && bNeg {
			divisor = -in.B
		}
		d.divisor = uint64(divisor) << 31
		d.outSign = (isDiv && aNeg != bNeg && in.B != 0) || (isRem && aNeg)
		d.quotient = 0
		d.quotientMask = 1 << 31
		d.running = true

	case d.running && d.quotientMask == 0:
		d.running = false
		d.ready = true
		if isDiv || in.Op == insts.OpDIVU {
			d.result = d.quotient
			if d.outSign {
				d.result = -d.quotient
			}
		} else {
			d.result = d.dividend
			if d.outSign {
				d.result = -d.dividend
			}
		}

	case d.running:
		if d.divisor <= uint64(d.dividend) {
			d.dividend -= uint32(d.divisor)
			d.quotient |= d.quotientMask
		}
		d.divisor >>= 1
		d.quotientMask >>= 1
	}
}

// Reset returns the divider to idle.
func (d *Divider) Reset() {
	*d = Divider{}
}
