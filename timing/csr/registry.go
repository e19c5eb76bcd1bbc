package csr

import "github.com/sarchlab/rv32sim/insts"

// Access is the software access mode of a CSR field.
type Access uint8

// Access modes.
const (
	ReadOnly Access = iota
	ReadWrite
)

// Field is a contiguous bit range of a CSR.
type Field struct {
	Name   string
	Lsb    uint8
	Width  uint8
	Access Access
}

// Mask returns the in-place bit mask of the field.
func (f Field) Mask() uint32 {
	if f.Width >= 32 {
		return ^uint32(0)
	}
	return ((uint32(1) << f.Width) - 1) << f.Lsb
}

// Get extracts the field from a register value.
func (f Field) Get(value uint32) uint32 {
	return (value & f.Mask()) >> f.Lsb
}

// Set returns value with the field replaced by v.
func (f Field) Set(value, v uint32) uint32 {
	return value&^f.Mask() | (v<<f.Lsb)&f.Mask()
}

// Layout describes one architectural CSR.
type Layout struct {
	Name   string
	Addr   uint16
	Fields []Field
}

// WriteMask returns the bits software may change.
func (l *Layout) WriteMask() uint32 {
	var mask uint32
	for _, f := range l.Fields {
		if f.Access == ReadWrite {
			mask |= f.Mask()
		}
	}
	return mask
}

// Field looks up a field by name.
func (l *Layout) Field(name string) (Field, bool) {
	for _, f := range l.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// ReadOnlyAddr reports whether the address encodes a read-only register
// (bits [11:10] both set).
func ReadOnlyAddr(addr uint16) bool {
	return addr>>10&0b11 == 0b11
}

// MinPriv returns the lowest privilege mode allowed to access the address
// (bits [9:8]).
func MinPriv(addr uint16) insts.PrivMode {
	return insts.PrivMode(addr >> 8 & 0b11)
}

func rw(name string) []Field {
	return []Field{{Name: name, Lsb: 0, Width: 32, Access: ReadWrite}}
}

func ro(name string) []Field {
	return []Field{{Name: name, Lsb: 0, Width: 32, Access: ReadOnly}}
}

var registry = map[uint16]*Layout{}

func register(name string, addr uint16, fields []Field) {
	registry[addr] = &Layout{Name: name, Addr: addr, Fields: fields}
}

func init() {
	register("mvendorid", insts.CSRMVendorID, ro("mvendorid"))
	register("marchid", insts.CSRMArchID, ro("marchid"))
	register("mimpid", insts.CSRMImpID, ro("mimpid"))
	register("mhartid", insts.CSRMHartID, ro("mhartid"))

	register("mstatus", insts.CSRMStatus, []Field{
		{Name: "mie", Lsb: 3, Width: 1, Access: ReadWrite},
		{Name: "mpie", Lsb: 7, Width: 1, Access: ReadWrite},
		{Name: "mpp", Lsb: 11, Width: 2, Access: ReadWrite},
	})
	register("misa", insts.CSRMISA, []Field{
		{Name: "extensions", Lsb: 0, Width: 26, Access: ReadOnly},
		{Name: "mxl", Lsb: 30, Width: 2, Access: ReadOnly},
	})
	register("medeleg", insts.CSRMEDeleg, rw("medeleg"))
	register("mideleg", insts.CSRMIDeleg, rw("mideleg"))
	register("mie", insts.CSRMIE, []Field{
		{Name: "msie", Lsb: 3, Width: 1, Access: ReadWrite},
		{Name: "mtie", Lsb: 7, Width: 1, Access: ReadWrite},
		{Name: "meie", Lsb: 11, Width: 1, Access: ReadWrite},
	})
	register("mtvec", insts.CSRMTVec, []Field{
		{Name: "mode", Lsb: 0, Width: 2, Access: ReadWrite},
		{Name: "base", Lsb: 2, Width: 30, Access: ReadWrite},
	})
	register("mcounteren", insts.CSRMCounterEn, rw("mcounteren"))
	register("mscratch", insts.CSRMScratch, rw("mscratch"))
	register("mepc", insts.CSRMEPC, []Field{
		{Name: "zero", Lsb: 0, Width: 2, Access: ReadOnly},
		{Name: "epc", Lsb: 2, Width: 30, Access: ReadWrite},
	})
	register("mcause", insts.CSRMCause, []Field{
		{Name: "code", Lsb: 0, Width: 31, Access: ReadWrite},
		{Name: "interrupt", Lsb: 31, Width: 1, Access: ReadWrite},
	})
	register("mtval", insts.CSRMTVal, rw("mtval"))
	register("mip", insts.CSRMIP, []Field{
		{Name: "usip", Lsb: 0, Width: 1, Access: ReadWrite},
		{Name: "ssip", Lsb: 1, Width: 1, Access: ReadWrite},
		{Name: "msip", Lsb: 3, Width: 1, Access: ReadOnly},
		{Name: "utip", Lsb: 4, Width: 1, Access: ReadWrite},
		{Name: "stip", Lsb: 5, Width: 1, Access: ReadWrite},
		{Name: "mtip", Lsb: 7, Width: 1, Access: ReadOnly},
		{Name: "ueip", Lsb: 8, Width: 1, Access: ReadWrite},
		{Name: "seip", Lsb: 9, Width: 1, Access: ReadWrite},
		{Name: "meip", Lsb: 11, Width: 1, Access: ReadOnly},
	})

	register("mcycle", insts.CSRMCycle, rw("mcycle"))
	register("minstret", insts.CSRMInstret, rw("minstret"))
	register("mcycleh", insts.CSRMCycleH, rw("mcycleh"))
	register("minstreth", insts.CSRMInstretH, rw("minstreth"))
	register("cycle", insts.CSRCycle, ro("cycle"))
	register("instret", insts.CSRInstret, ro("instret"))
	register("cycleh", insts.CSRCycleH, ro("cycleh"))
	register("instreth", insts.CSRInstretH, ro("instreth"))

	register("tselect", insts.CSRTSelect, rw("tselect"))
	register("tdata1", insts.CSRTData1, []Field{
		{Name: "data", Lsb: 0, Width: 27, Access: ReadWrite},
		{Name: "dmode", Lsb: 27, Width: 1, Access: ReadWrite},
		{Name: "type", Lsb: 28, Width: 4, Access: ReadOnly},
	})
	register("tdata2", insts.CSRTData2, rw("tdata2"))
	register("dcsr", insts.CSRDCSR, rw("dcsr"))
	register("dpc", insts.CSRDPC, rw("dpc"))
}

// Lookup returns the layout of a supported CSR address.
func Lookup(addr uint16) (*Layout, bool) {
	l, ok := registry[addr]
	return l, ok
}

// Name returns the name of a CSR address, or its hex form when unknown.
func Name(addr uint16) string {
	if l, ok := registry[addr]; ok {
		return l.Name
	}
	return unknownName(addr)
}
