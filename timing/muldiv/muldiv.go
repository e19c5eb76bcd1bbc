// Package muldiv provides the cycle-level integer multiplier and divider of
// the M extension.
//
// Both units are clocked with Tick and expose registered outputs. Neither
// unit queues operations: a new operation must not be started before the
// previous ready pulse.
package muldiv

import "github.com/sarchlab/rv32sim/insts"

// Input holds the operand and handshake signals driven into a unit for one
// cycle. Op, A and B must be held stable while the operation is running.
type Input struct {
	Op    insts.Op
	A     uint32
	B     uint32
	Valid bool
}

// Latencies count the cycles from the first Valid cycle to the Ready cycle.
// The multiplier registers the start and then runs four stages; the divider
// latches the start, sets up, iterates 32 times and latches the result.
const (
	MultiplierLatency = 5
	DividerLatency    = 35
)
