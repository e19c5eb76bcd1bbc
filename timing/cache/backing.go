package cache

import (
	"github.com/sarchlab/rv32sim/emu"
)

// MemoryBacking wraps emu.Memory as a BackingStore.
type MemoryBacking struct {
	memory *emu.Memory
}

// NewMemoryBacking creates a new MemoryBacking adapter.
func NewMemoryBacking(memory *emu.Memory) *MemoryBacking {
	return &MemoryBacking{memory: memory}
}

// Read fetches data from the backing memory.
func (m *MemoryBacking) Read(addr uint32, size int) []byte {
	return m.memory.ReadBytes(addr, size)
}

// Write stores data to the backing memory.
func (m *MemoryBacking) Write(addr uint32, data []byte) {
	for i, b := range data {
		m.memory.Write8(addr+uint32(i), b)
	}
}
