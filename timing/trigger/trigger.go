// Package trigger provides the debug match triggers of the core: address
// comparators on the fetched pc and on load/store effective addresses,
// programmed through tselect, tdata1 and tdata2.
package trigger

import (
	"errors"
	"fmt"

	"github.com/sarchlab/rv32sim/insts"
	"github.com/sarchlab/rv32sim/timing/csr"
)

// ErrTriggerCount is returned for a trigger count that is not a non-zero
// power of two.
var ErrTriggerCount = errors.New("unsupported number of triggers")

// mcontrol bits of tdata1.
const (
	MControlLoad    uint32 = 1 << 0
	MControlStore   uint32 = 1 << 1
	MControlExecute uint32 = 1 << 2
	MControlU       uint32 = 1 << 3
	MControlS       uint32 = 1 << 4
	MControlM       uint32 = 1 << 6

	MControlActionShift        = 12
	MControlActionMask  uint32 = 0xF << MControlActionShift

	MControlDMode uint32 = 1 << 27
)

// TypeMatch is the tdata1 type of an address match trigger.
const TypeMatch uint32 = 2

const typeShift = 28

// Action is what a matching trigger does.
type Action uint8

// Actions.
const (
	ActionBreakpoint  Action = 0
	ActionHaltRequest Action = 1
)

// Trigger is the state of one trigger.
type Trigger struct {
	// Control is the mcontrol value without the type field.
	Control uint32

	// Address is compared against the pc or the effective address.
	Address uint32
}

// Action returns the configured action.
func (t Trigger) Action() Action {
	return Action(t.Control & MControlActionMask >> MControlActionShift)
}

// Hit is the result of matching all triggers against one access.
type Hit struct {
	Breakpoint  bool
	HaltRequest bool
	Index       int
}

// Any reports whether a trigger fired.
func (h Hit) Any() bool {
	return h.Breakpoint || h.HaltRequest
}

// Unit is a bank of triggers sharing one set of CSRs.
type Unit struct {
	userMode bool
	selected uint32
	triggers []Trigger

	tselect *csr.Register
	tdata1  *csr.Register
	tdata2  *csr.Register
}

// New registers the trigger CSRs in file and creates n triggers.
func New(file *csr.File, n uint32, userMode bool) (*Unit, error) {
	if n == 0 || n&(n-1) != 0 {
		return nil, fmt.Errorf("failed to create %d triggers: %w", n, ErrTriggerCount)
	}

	u := &Unit{
		userMode: userMode,
		triggers: make([]Trigger, n),
	}

	var err error
	if u.tselect, err = file.AddRegister(insts.CSRTSelect); err != nil {
		return nil, err
	}
	if u.tdata1, err = file.AddRegister(insts.CSRTData1); err != nil {
		return nil, err
	}
	if u.tdata2, err = file.AddRegister(insts.CSRTData2); err != nil {
		return nil, err
	}

	u.Reset()
	return u, nil
}

// Len returns the number of triggers.
func (u *Unit) Len() int {
	return len(u.triggers)
}

// Trigger returns trigger i.
func (u *Unit) Trigger(i int) Trigger {
	return u.triggers[i]
}

// Selected returns the index selected by tselect.
func (u *Unit) Selected() int {
	return int(u.selected)
}

func (u *Unit) privOK(t Trigger, priv insts.PrivMode) bool {
	if t.Control&MControlM != 0 && priv == insts.PrivMachine {
		return true
	}
	return u.userMode && t.Control&MControlU != 0 && priv == insts.PrivUser
}

func (u *Unit) match(kind, addr uint32, priv insts.PrivMode) Hit {
	var hit Hit
	for i, t := range u.triggers {
		if t.Control&kind == 0 || t.Address != addr || !u.privOK(t, priv) {
			continue
		}

		switch t.Action() {
		case ActionBreakpoint:
			if !hit.Any() {
				hit.Index = i
			}
			hit.Breakpoint = true
		case ActionHaltRequest:
			if t.Control&MControlDMode == 0 {
				continue
			}
			if !hit.Any() {
				hit.Index = i
			}
			hit.HaltRequest = true
		}
	}
	return hit
}

// Execute matches the pc of the instruction about to execute.
func (u *Unit) Execute(pc uint32, priv insts.PrivMode) Hit {
	return u.match(MControlExecute, pc, priv)
}

// Access matches a load or store effective address.
func (u *Unit) Access(addr uint32, store bool, priv insts.PrivMode) Hit {
	kind := MControlLoad
	if store {
		kind = MControlStore
	}
	return u.match(kind, addr, priv)
}

// Tick applies software writes of the trigger CSRs and refreshes the views of
// the selected trigger.
func (u *Unit) Tick() {
	if u.tselect.Pending && u.tselect.Shadow < uint32(len(u.triggers)) {
		u.selected = u.tselect.Shadow
	}

	t := &u.triggers[u.selected]
	if u.tdata1.Pending {
		t.Control = u.tdata1.Shadow &^ (0xF << typeShift)
	}
	if u.tdata2.Pending {
		t.Address = u.tdata2.Shadow
	}

	u.refresh()
}

func (u *Unit) refresh() {
	t := u.triggers[u.selected]
	u.tselect.Value = u.selected
	u.tdata1.Value = TypeMatch<<typeShift | t.Control
	u.tdata2.Value = t.Address
}

// Reset disables every trigger and selects trigger 0.
func (u *Unit) Reset() {
	u.selected = 0
	for i := range u.triggers {
		u.triggers[i] = Trigger{}
	}
	u.refresh()
}
