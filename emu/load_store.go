package emu

import "github.com/sarchlab/rv32sim/insts"

// Data formatting between register values and the 32-bit, byte-enabled
// memory bus. width is the funct3 of the access (B, H, W, BU, HU).

// ByteSelect returns the 4-bit byte-enable mask of an access at the given
// byte offset within the word.
func ByteSelect(width uint8, offset uint32) uint8 {
	offset &= 0b11
	switch width {
	case insts.Funct3B, insts.Funct3BU:
		return 0b0001 << offset
	case insts.Funct3H, insts.Funct3HU:
		return 0b0011 << offset
	case insts.Funct3W:
		return 0b1111
	}
	return 0
}

// WritePattern replicates the stored byte or half-word across the bus word
// so that the byte-enable mask selects the correct lane.
func WritePattern(width uint8, data uint32) uint32 {
	switch width {
	case insts.Funct3B:
		b := data & 0xFF
		return b | b<<8 | b<<16 | b<<24
	case insts.Funct3H:
		h := data & 0xFFFF
		return h | h<<16
	}
	return data
}

// LoadValue extracts and extends the loaded value from the bus word.
func LoadValue(width uint8, offset uint32, word uint32) uint32 {
	offset &= 0b11
	b := (word >> (8 * offset)) & 0xFF
	h := (word >> (16 * (offset >> 1))) & 0xFFFF

	switch width {
	case insts.Funct3B:
		return uint32(int32(int8(b)))
	case insts.Funct3BU:
		return b
	case insts.Funct3H:
		return uint32(int32(int16(h)))
	case insts.Funct3HU:
		return h
	}
	return word
}

// Misaligned reports whether an access of the given width at offset
// crosses its natural alignment.
func Misaligned(width uint8, offset uint32) bool {
	switch width {
	case insts.Funct3H, insts.Funct3HU:
		return offset&0b1 != 0
	case insts.Funct3W:
		return offset&0b11 != 0
	}
	return false
}

// LoadStoreUnit performs functional loads and stores against Memory using
// the same data formatting as the bus.
type LoadStoreUnit struct {
	memory *Memory
}

// NewLoadStoreUnit creates a new LoadStoreUnit connected to the given memory.
func NewLoadStoreUnit(memory *Memory) *LoadStoreUnit {
	return &LoadStoreUnit{memory: memory}
}

// Load reads a value of the given width.
func (lsu *LoadStoreUnit) Load(width uint8, addr uint32) uint32 {
	word := lsu.memory.Read32(addr &^ 0b11)
	return LoadValue(width, addr, word)
}

// Store writes the low bytes of value with the given width.
func (lsu *LoadStoreUnit) Store(width uint8, addr uint32, value uint32) {
	lsu.memory.WriteMasked(addr&^0b11, WritePattern(width, value), ByteSelect(width, addr))
}
