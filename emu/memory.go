package emu

import "encoding/binary"

const (
	pageBits = 12
	pageSize = 1 << pageBits
	pageMask = pageSize - 1
)

// Memory is a sparse, little-endian, byte-addressable 32-bit address space.
// Untouched bytes read as zero.
type Memory struct {
	pages map[uint32]*[pageSize]byte
}

// NewMemory creates an empty memory.
func NewMemory() *Memory {
	return &Memory{pages: make(map[uint32]*[pageSize]byte)}
}

func (m *Memory) page(addr uint32, create bool) *[pageSize]byte {
	key := addr >> pageBits
	p, ok := m.pages[key]
	if !ok && create {
		p = new([pageSize]byte)
		m.pages[key] = p
	}
	return p
}

// Read8 reads a byte.
func (m *Memory) Read8(addr uint32) byte {
	p := m.page(addr, false)
	if p == nil {
		return 0
	}
	return p[addr&pageMask]
}

// Write8 writes a byte.
func (m *Memory) Write8(addr uint32, value byte) {
	m.page(addr, true)[addr&pageMask] = value
}

// Read16 reads a little-endian half-word.
func (m *Memory) Read16(addr uint32) uint16 {
	return uint16(m.Read8(addr)) | uint16(m.Read8(addr+1))<<8
}

// Write16 writes a little-endian half-word.
func (m *Memory) Write16(addr uint32, value uint16) {
	m.Write8(addr, byte(value))
	m.Write8(addr+1, byte(value>>8))
}

// Read32 reads a little-endian word.
func (m *Memory) Read32(addr uint32) uint32 {
	if addr&pageMask <= pageSize-4 {
		p := m.page(addr, false)
		if p == nil {
			return 0
		}
		off := addr & pageMask
		return binary.LittleEndian.Uint32(p[off : off+4])
	}
	return uint32(m.Read16(addr)) | uint32(m.Read16(addr+2))<<16
}

// Write32 writes a little-endian word.
func (m *Memory) Write32(addr uint32, value uint32) {
	if addr&pageMask <= pageSize-4 {
		off := addr & pageMask
		binary.LittleEndian.PutUint32(m.page(addr, true)[off:off+4], value)
		return
	}
	m.Write16(addr, uint16(value))
	m.Write16(addr+2, uint16(value>>16))
}

// WriteMasked writes the bytes of a bus word selected by the 4-bit byte
// enable mask. addr is the word-aligned bus address.
func (m *Memory) WriteMasked(addr uint32, data uint32, sel uint8) {
	for i := uint32(0); i < 4; i++ {
		if sel&(1<<i) != 0 {
			m.Write8(addr+i, byte(data>>(8*i)))
		}
	}
}

// LoadProgram copies program bytes into memory starting at addr.
func (m *Memory) LoadProgram(addr uint32, program []byte) {
	for i, b := range program {
		m.Write8(addr+uint32(i), b)
	}
}

// ReadBytes returns n bytes starting at addr.
func (m *Memory) ReadBytes(addr uint32, n int) []byte {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = m.Read8(addr + uint32(i))
	}
	return buf
}
