package lsu

import "github.com/sarchlab/rv32sim/timing/bus"

// TrackerInput holds the signals sampled by the Tracker at a clock edge.
type TrackerInput struct {
	// Cancel drops the reservation. It wins over every other input.
	Cancel bool

	// IsLR marks the core's own transaction as a load-reserved.
	IsLR bool

	// Internal is the core's own bus transaction.
	Internal bus.Snoop

	// Snoop is the shared bus, including the core's own writes.
	Snoop bus.Snoop
}

// Tracker holds the single, word-granular LR/SC reservation of a hart.
type Tracker struct {
	reservation uint32
	valid       bool
}

// NewTracker creates a Tracker with no reservation.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Reservation returns the reserved word address and whether it is valid.
func (t *Tracker) Reservation() (uint32, bool) {
	return t.reservation, t.valid
}

// SCOK reports whether a store-conditional to addr would succeed now.
func (t *Tracker) SCOK(addr uint32) bool {
	return t.valid && t.reservation == addr&^0b11
}

// Tick updates the reservation at a clock edge.
func (t *Tracker) Tick(in TrackerInput) {
	own := in.Internal
	switch {
	case in.Cancel:
		t.valid = false
	case in.IsLR && own.Valid && !own.We && own.Ack:
		t.reservation = own.Addr &^ 0b11
		t.valid = true
	case in.Snoop.AckedWrite() && in.Snoop.Addr&^0b11 == t.reservation:
		t.valid = false
	}
}

// Reset drops the reservation.
func (t *Tracker) Reset() {
	*t = Tracker{}
}
