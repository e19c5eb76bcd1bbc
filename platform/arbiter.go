package platform

import "github.com/sarchlab/rv32sim/timing/bus"

// Arbiter shares one slave between several masters with round-robin
// priority. The grant only moves while the bus is not busy, that is when the
// owner has dropped Cyc, or keeps Cyc without strobe or lock. The new owner
// is served from the next cycle on.
type Arbiter struct {
	slave bus.Slave
	n     int
	grant int
}

// NewArbiter creates an arbiter for n masters in front of slave.
func NewArbiter(slave bus.Slave, n int) *Arbiter {
	if n < 1 {
		n = 1
	}
	return &Arbiter{slave: slave, n: n}
}

// Grant returns the index of the master owning the bus.
func (a *Arbiter) Grant() int {
	return a.grant
}

// Cycle forwards the request of the owner to the slave. It returns the
// response of every master, where only the owner can see Ack or Err, and the
// snoop record of the shared bus.
func (a *Arbiter) Cycle(reqs []bus.Request) ([]bus.Response, bus.Snoop) {
	rsps := make([]bus.Response, a.n)

	var req bus.Request
	if a.grant < len(reqs) {
		req = reqs[a.grant]
	}
	rsp := a.slave.Cycle(req)
	rsps[a.grant] = rsp

	busy := req.Cyc && (req.Lock || req.Stb)
	if !busy {
		a.grant = a.next(reqs)
	}

	return rsps, bus.SnoopOf(req, rsp)
}

func (a *Arbiter) next(reqs []bus.Request) int {
	for i := 1; i < a.n; i++ {
		m := (a.grant + i) % a.n
		if m < len(reqs) && reqs[m].Cyc {
			return m
		}
	}
	return a.grant
}

// Reset gives the bus back to master 0.
func (a *Arbiter) Reset() {
	a.grant = 0
}
