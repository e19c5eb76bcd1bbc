// Package platform provides the bus slaves and interconnect that surround the
// cores: memories with wait states, an address decoder, a round-robin
// arbiter that shares one bus between several cores, and the core-local
// interruptor that drives the timer and software interrupt lines.
package platform

import (
	"github.com/sarchlab/rv32sim/config"
	"github.com/sarchlab/rv32sim/emu"
	"github.com/sarchlab/rv32sim/timing/bus"
	"github.com/sarchlab/rv32sim/timing/cache"
)

// RAMStats holds access statistics of a memory slave.
type RAMStats struct {
	Reads      uint64
	Writes     uint64
	Errors     uint64
	WaitCycles uint64
}

// RAM is a word-wide memory slave over one region of an emu.Memory. A
// read-only region behaves as a ROM and answers writes with a bus error.
type RAM struct {
	region config.MemoryRegion
	memory *emu.Memory
	cache  *cache.Cache

	busy bool
	wait uint64
	data uint32

	stats RAMStats
}

// NewRAM creates a memory slave for region. The memory is shared with the
// loader and the host, which address it with absolute addresses.
func NewRAM(region config.MemoryRegion, memory *emu.Memory) *RAM {
	r := &RAM{
		region: region,
		memory: memory,
	}
	if region.Cache != nil {
		r.cache = cache.New(*region.Cache, cache.NewMemoryBacking(memory))
	}
	return r
}

// Region returns the region the slave serves.
func (r *RAM) Region() config.MemoryRegion {
	return r.region
}

// Stats returns the access statistics.
func (r *RAM) Stats() RAMStats {
	return r.stats
}

// Cache returns the latency cache, or nil when the region has none.
func (r *RAM) Cache() *cache.Cache {
	return r.cache
}

// Cycle implements bus.Slave. A transfer is acknowledged after the wait
// states of the region (or of the cache access) have elapsed. The request
// must stay stable until the acknowledge.
func (r *RAM) Cycle(req bus.Request) bus.Response {
	if !req.Active() {
		r.busy = false
		return bus.Response{}
	}

	if !r.region.Contains(req.Addr) || (req.We && r.region.ReadOnly) {
		r.busy = false
		r.stats.Errors++
		return bus.Response{Err: true}
	}

	if !r.busy {
		r.busy = true
		r.wait = r.start(req)
	}
	if r.wait > 0 {
		r.wait--
		r.stats.WaitCycles++
		return bus.Response{}
	}

	r.busy = false
	if req.We {
		r.stats.Writes++
		if r.cache == nil {
			r.memory.WriteMasked(req.WordAddr(), req.Data, req.Sel)
		}
		return bus.Response{Ack: true}
	}

	r.stats.Reads++
	if r.cache == nil {
		r.data = r.memory.Read32(req.WordAddr())
	}
	return bus.Response{Ack: true, Data: r.data}
}

// start begins a transfer and returns its wait states. With a cache the data
// moves at the start, since the grant is held until the acknowledge.
func (r *RAM) start(req bus.Request) uint64 {
	if r.cache == nil {
		return r.region.Latency
	}

	var result cache.AccessResult
	if req.We {
		result = r.cache.Write(req.WordAddr(), req.Data, req.Sel)
	} else {
		result = r.cache.Read(req.WordAddr())
		r.data = result.Data
	}
	return result.Latency
}

// ReadWord returns the current value of the word at addr as the cores see
// it, without timing or statistics side effects.
func (r *RAM) ReadWord(addr uint32) uint32 {
	if r.cache != nil {
		if data, ok := r.cache.Peek(addr); ok {
			return data
		}
	}
	return r.memory.Read32(addr &^ 0b11)
}

// Flush writes dirty cache lines back to the memory.
func (r *RAM) Flush() {
	if r.cache != nil {
		r.cache.Flush()
	}
}

// Reset drops the transfer in flight, the cache contents and the statistics.
func (r *RAM) Reset() {
	r.busy = false
	r.wait = 0
	r.data = 0
	r.stats = RAMStats{}
	if r.cache != nil {
		r.cache.Reset()
	}
}
