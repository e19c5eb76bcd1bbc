// Package bus defines the word-addressed, byte-enabled request/acknowledge
// memory bus shared by the core and the platform.
//
// A master drives a Request every cycle. A transaction is active while Cyc
// and Stb are both high and ends on the cycle the slave raises Ack or Err.
// Ack and Err are mutually exclusive single-cycle pulses.
package bus

import "fmt"

// Request is the master side of the bus for one cycle.
type Request struct {
	// Addr is the byte address. Bits [1:0] are ignored on the wire.
	Addr uint32

	// Data is the write data, already replicated across byte lanes.
	Data uint32

	// Sel is the 4-bit byte-enable mask.
	Sel uint8

	We   bool // write intent
	Cyc  bool // bus cycle active; holding it keeps the arbiter grant
	Stb  bool // strobe, a transfer is requested this cycle
	Lock bool // exclusive access (LR/SC and AMO)
}

// Active reports whether the request asks for a transfer this cycle.
func (r Request) Active() bool {
	return r.Cyc && r.Stb
}

// WordAddr returns the word-aligned address of the request.
func (r Request) WordAddr() uint32 {
	return r.Addr &^ 0b11
}

// String implements fmt.Stringer.
func (r Request) String() string {
	if !r.Active() {
		return "idle"
	}
	if r.We {
		return fmt.Sprintf("W[0x%08X] sel=%04b data=0x%08X", r.WordAddr(), r.Sel, r.Data)
	}
	return fmt.Sprintf("R[0x%08X] sel=%04b", r.WordAddr(), r.Sel)
}

// Response is the slave side of the bus for one cycle.
type Response struct {
	Data uint32
	Ack  bool
	Err  bool
}

// Done reports whether the response ends the transaction.
func (r Response) Done() bool {
	return r.Ack || r.Err
}

// Snoop is a read-only view of one cycle of bus traffic. Reservation
// trackers observe it to invalidate reservations on foreign writes.
type Snoop struct {
	Addr  uint32
	We    bool
	Valid bool
	Ack   bool
}

// SnoopOf builds the snoop record of a request and its response.
func SnoopOf(req Request, rsp Response) Snoop {
	return Snoop{
		Addr:  req.WordAddr(),
		We:    req.We,
		Valid: req.Active(),
		Ack:   rsp.Ack,
	}
}

// AckedWrite reports whether the snooped cycle completed a write.
func (s Snoop) AckedWrite() bool {
	return s.Valid && s.We && s.Ack
}

// A Slave answers bus requests. Cycle is called exactly once per clock
// cycle with the request the slave sees on that cycle, idle or not.
type Slave interface {
	Cycle(req Request) Response
}

// SlaveFunc adapts a function to the Slave interface.
type SlaveFunc func(req Request) Response

// Cycle calls f(req).
func (f SlaveFunc) Cycle(req Request) Response {
	return f(req)
}
