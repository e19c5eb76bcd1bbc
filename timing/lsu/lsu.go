// Package lsu provides the bus-facing side of the load/store unit and the
// load-reserved/store-conditional reservation tracker.
package lsu

import (
	"github.com/sarchlab/rv32sim/emu"
	"github.com/sarchlab/rv32sim/timing/bus"
)

// Access describes the memory access the core wants to perform this cycle.
type Access struct {
	Addr  uint32
	Width uint8 // funct3 of the access
	Data  uint32
	Write bool

	Cycle  bool
	Strobe bool
	Lock   bool
}

// Result is the outcome of an Access for one cycle.
type Result struct {
	LoadData   uint32
	Ready      bool
	Error      bool
	Misaligned bool
}

// Done reports whether the access ended this cycle, successfully or not.
func (r Result) Done() bool {
	return r.Ready || r.Error || r.Misaligned
}

// Request formats an access into a bus request. A misaligned access never
// reaches the bus: its cycle signal is forced low.
func Request(a Access) bus.Request {
	misaligned := emu.Misaligned(a.Width, a.Addr)

	return bus.Request{
		Addr: a.Addr &^ 0b11,
		Data: emu.WritePattern(a.Width, a.Data),
		Sel:  emu.ByteSelect(a.Width, a.Addr),
		We:   a.Write,
		Cyc:  a.Cycle && !misaligned,
		Stb:  a.Strobe,
		Lock: a.Lock,
	}
}

// Decode interprets the bus response to an access. Misalignment substitutes
// for a bus response.
func Decode(a Access, rsp bus.Response) Result {
	misaligned := emu.Misaligned(a.Width, a.Addr)
	if misaligned || !a.Cycle {
		return Result{Misaligned: misaligned && a.Cycle}
	}

	return Result{
		LoadData: emu.LoadValue(a.Width, a.Addr, rsp.Data),
		Ready:    rsp.Ack,
		Error:    rsp.Err,
	}
}
