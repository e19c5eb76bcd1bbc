package platform

import (
	"errors"
	"fmt"

	"github.com/sarchlab/rv32sim/timing/bus"
)

// ErrOverlap is returned when a slave window overlaps an existing one.
var ErrOverlap = errors.New("address window overlap")

type window struct {
	name  string
	base  uint32
	size  uint32
	slave bus.Slave
}

func (w window) contains(addr uint32) bool {
	return addr >= w.base && addr-w.base < w.size
}

func (w window) end() uint64 {
	return uint64(w.base) + uint64(w.size)
}

// Decoder routes a bus request to the slave whose window contains the
// address. Every slave sees exactly one request per cycle: the routed one,
// or an idle request. Unmapped transfers end with a bus error.
type Decoder struct {
	windows []window
}

// NewDecoder creates an empty decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// AddSlave maps slave at [base, base+size).
func (d *Decoder) AddSlave(name string, base, size uint32, slave bus.Slave) error {
	w := window{name: name, base: base, size: size, slave: slave}
	if size == 0 || w.end() > 1<<32 {
		return fmt.Errorf("failed to map %q: bad window 0x%08X+0x%X", name, base, size)
	}

	for _, other := range d.windows {
		if uint64(w.base) < other.end() && uint64(other.base) < w.end() {
			return fmt.Errorf("failed to map %q over %q: %w", name, other.name, ErrOverlap)
		}
	}

	d.windows = append(d.windows, w)
	return nil
}

// Lookup returns the name and slave mapped at addr.
func (d *Decoder) Lookup(addr uint32) (string, bus.Slave, bool) {
	for _, w := range d.windows {
		if w.contains(addr) {
			return w.name, w.slave, true
		}
	}
	return "", nil, false
}

// Cycle implements bus.Slave.
func (d *Decoder) Cycle(req bus.Request) bus.Response {
	var (
		rsp    bus.Response
		mapped bool
	)

	for _, w := range d.windows {
		if req.Cyc && w.contains(req.Addr) {
			mapped = true
			rsp = w.slave.Cycle(req)
			continue
		}
		w.slave.Cycle(bus.Request{})
	}

	if req.Active() && !mapped {
		return bus.Response{Err: true}
	}
	return rsp
}
