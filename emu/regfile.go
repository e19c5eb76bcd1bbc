// Package emu provides functional RV32IMA emulation and the pure datapath
// functions shared with the cycle-level core.
package emu

// RegFile represents the RV32 integer register file.
// It contains 32 general-purpose registers (x0-x31) and the program counter.
type RegFile struct {
	// X holds general-purpose registers x0-x31.
	// X[0] is hard-wired to zero; writes to it are suppressed.
	X [32]uint32

	// PC is the program counter.
	PC uint32
}

// ABI register numbers used by the emulator's environment calls.
const (
	RegRA uint8 = 1
	RegSP uint8 = 2
	RegA0 uint8 = 10
	RegA1 uint8 = 11
	RegA2 uint8 = 12
	RegA7 uint8 = 17
)

// ReadReg reads a register value. Register 0 always returns 0.
func (r *RegFile) ReadReg(reg uint8) uint32 {
	if reg == 0 || reg >= 32 {
		return 0
	}
	return r.X[reg]
}

// WriteReg writes a value to a register. Writes to register 0 are ignored.
func (r *RegFile) WriteReg(reg uint8, value uint32) {
	if reg == 0 || reg >= 32 {
		return
	}
	r.X[reg] = value
}
