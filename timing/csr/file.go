// Package csr provides the control and status register file of the core and
// the exception unit that owns the machine-mode trap state.
//
// Registers are registered by their owning units at construction time. The
// software access port follows a two-cycle handshake: the first valid cycle
// looks the register up and latches the read data, the second cycle sees
// ready and takes the write shadow. The owner of the register applies the
// shadow at the next clock edge, after which the pending flag is cleared.
package csr

import (
	"errors"
	"fmt"
	"sort"

	"github.com/sarchlab/rv32sim/insts"
)

// Sentinel errors returned while building a register file.
var (
	ErrUnknownRegister   = errors.New("unknown CSR address")
	ErrDuplicateRegister = errors.New("CSR already registered")
)

func unknownName(addr uint16) string {
	return fmt.Sprintf("csr0x%03X", addr)
}

// Register is one implemented CSR.
type Register struct {
	Layout *Layout

	// Value is the architectural value, owned by the registering unit.
	Value uint32

	// Shadow is the value written by software. It is valid while Pending.
	Shadow uint32

	// Pending marks a software write the owner must apply at the next edge.
	Pending bool
}

// Name returns the register name.
func (r *Register) Name() string {
	return r.Layout.Name
}

// Apply copies a pending software write into Value and reports whether one
// was pending.
func (r *Register) Apply() bool {
	if r.Pending {
		r.Value = r.Shadow
	}
	return r.Pending
}

// PortRequest is the core side of the CSR access port.
type PortRequest struct {
	Addr  uint16
	WData uint32
	We    bool
	Valid bool
}

// PortResponse is the register file side of the CSR access port.
type PortResponse struct {
	RData   uint32
	Ready   bool
	Invalid bool
}

type transition struct {
	resp   PortResponse
	target *Register
	write  bool
	shadow uint32
}

// File is the set of implemented CSRs plus the access port state.
type File struct {
	regs map[uint16]*Register

	resp   PortResponse
	target *Register
	next   transition
}

// NewFile creates an empty register file.
func NewFile() *File {
	return &File{regs: make(map[uint16]*Register)}
}

// AddRegister implements the CSR at addr. The address must be part of the
// supported CSR set and may only be registered once.
func (f *File) AddRegister(addr uint16) (*Register, error) {
	layout, ok := Lookup(addr)
	if !ok {
		return nil, fmt.Errorf("failed to add register 0x%03X: %w", addr, ErrUnknownRegister)
	}
	if _, dup := f.regs[addr]; dup {
		return nil, fmt.Errorf("failed to add register %s: %w", layout.Name, ErrDuplicateRegister)
	}

	r := &Register{Layout: layout}
	f.regs[addr] = r
	return r, nil
}

// Register returns the register implemented at addr.
func (f *File) Register(addr uint16) (*Register, bool) {
	r, ok := f.regs[addr]
	return r, ok
}

// Read returns the architectural value at addr, or 0 when unimplemented.
func (f *File) Read(addr uint16) uint32 {
	if r, ok := f.regs[addr]; ok {
		return r.Value
	}
	return 0
}

// Registers returns the implemented registers sorted by address.
func (f *File) Registers() []*Register {
	regs := make([]*Register, 0, len(f.regs))
	for _, r := range f.regs {
		regs = append(regs, r)
	}
	sort.Slice(regs, func(i, j int) bool {
		return regs[i].Layout.Addr < regs[j].Layout.Addr
	})
	return regs
}

// Response returns the registered port response.
func (f *File) Response() PortResponse {
	return f.resp
}

// Invalid reports whether an access to addr from priv is rejected.
func (f *File) Invalid(addr uint16, we bool, priv insts.PrivMode) bool {
	if _, ok := f.regs[addr]; !ok {
		return true
	}
	if we && ReadOnlyAddr(addr) {
		return true
	}
	return MinPriv(addr) > priv
}

// Evaluate computes the next port state from the current state and the
// request. Nothing changes until Tick.
func (f *File) Evaluate(req PortRequest, priv insts.PrivMode) {
	f.next = transition{}

	if !req.Valid {
		return
	}

	if !f.resp.Ready {
		r := f.regs[req.Addr]
		f.next.target = r
		f.next.resp.Ready = true
		f.next.resp.Invalid = f.Invalid(req.Addr, req.We, priv)
		if r != nil {
			f.next.resp.RData = r.Value
		}
		return
	}

	if req.We && !f.resp.Invalid && f.target != nil {
		mask := f.target.Layout.WriteMask()
		f.next.write = true
		f.next.shadow = f.target.Value&^mask | req.WData&mask
		f.next.target = f.target
	}
}

// Tick commits the state computed by Evaluate. Owners must have applied the
// pending writes of this edge before Tick clears them.
func (f *File) Tick() {
	for _, r := range f.regs {
		r.Pending = false
	}

	if f.next.write {
		f.next.target.Shadow = f.next.shadow
		f.next.target.Pending = true
	}

	f.resp = f.next.resp
	f.target = f.next.target
	f.next = transition{}
}

// Reset clears the port state and all values.
func (f *File) Reset() {
	for _, r := range f.regs {
		r.Value = 0
		r.Shadow = 0
		r.Pending = false
	}
	f.resp = PortResponse{}
	f.target = nil
	f.next = transition{}
}
