package core

import (
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/rv32sim/insts"
)

// Hook positions invoked by the core.
var (
	// HookPosRetire fires once per retired instruction with a RetireInfo.
	HookPosRetire = &sim.HookPos{Name: "Retire"}

	// HookPosTrap fires when a trap is taken with a TrapInfo.
	HookPosTrap = &sim.HookPos{Name: "Trap"}

	// HookPosHaltRequest fires when a trigger requests a debug halt, with a
	// HaltRequestInfo.
	HookPosHaltRequest = &sim.HookPos{Name: "HaltRequest"}
)

// RetireInfo describes one retired instruction.
type RetireInfo struct {
	HartID uint32
	Cycle  uint64
	PC     uint32
	Word   uint32
	Op     insts.Op
	NextPC uint32

	// RdWritten is set when the instruction wrote Rd.
	RdWritten bool
	Rd        uint8
	RdValue   uint32
}

// TrapInfo describes one trap entry.
type TrapInfo struct {
	HartID    uint32
	Cycle     uint64
	PC        uint32
	Cause     insts.Cause
	Interrupt bool
	Value     uint32
	Target    uint32
	Priv      insts.PrivMode
}

// Describe returns the name of the trap cause.
func (t TrapInfo) Describe() string {
	return t.Cause.Describe(t.Interrupt)
}

// HaltRequestInfo describes a trigger halt request.
type HaltRequestInfo struct {
	HartID  uint32
	Cycle   uint64
	PC      uint32
	Trigger int
}
