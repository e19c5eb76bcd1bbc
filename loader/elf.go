// Package loader provides ELF binary loading for RV32 executables and
// test-bench images.
package loader

import (
	"debug/elf"
	"errors"
	"fmt"
	"io"

	"github.com/sarchlab/rv32sim/emu"
)

// Well-known symbols of test-bench images.
const (
	SymbolToHost         = "tohost"
	SymbolBeginSignature = "begin_signature"
	SymbolEndSignature   = "end_signature"
)

// SegmentFlags represents memory protection flags for a segment.
type SegmentFlags uint32

const (
	// SegmentFlagExecute indicates the segment is executable.
	SegmentFlagExecute SegmentFlags = 1 << iota
	// SegmentFlagWrite indicates the segment is writable.
	SegmentFlagWrite
	// SegmentFlagRead indicates the segment is readable.
	SegmentFlagRead
)

// Segment represents a loadable segment from an ELF binary.
type Segment struct {
	// Addr is the physical address where this segment is loaded.
	Addr uint32
	// Data contains the segment contents from the file.
	Data []byte
	// MemSize is the size in memory (may be larger than len(Data) for BSS).
	MemSize uint32
	// Flags contains the segment protection flags.
	Flags SegmentFlags
}

// Program represents a loaded ELF program ready for execution.
type Program struct {
	// EntryPoint is the address where execution should begin.
	EntryPoint uint32
	// Segments contains all loadable segments from the ELF file.
	Segments []Segment
	// Symbols maps symbol names to their addresses.
	Symbols map[string]uint32
}

// Load parses an RV32 ELF binary.
func Load(path string) (*Program, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ELF file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if f.Class != elf.ELFCLASS32 {
		return nil, fmt.Errorf("not a 32-bit ELF file")
	}
	if f.Data != elf.ELFDATA2LSB {
		return nil, fmt.Errorf("not a little-endian ELF file")
	}
	if f.Machine != elf.EM_RISCV {
		return nil, fmt.Errorf("not a RISC-V ELF file (machine type: %v)", f.Machine)
	}

	prog := &Program{
		EntryPoint: uint32(f.Entry),
		Symbols:    make(map[string]uint32),
	}

	for _, phdr := range f.Progs {
		if phdr.Type != elf.PT_LOAD {
			continue
		}

		data := make([]byte, phdr.Filesz)
		if phdr.Filesz > 0 {
			n, err := phdr.ReadAt(data, 0)
			if err != nil && err != io.EOF {
				return nil, fmt.Errorf("failed to read segment at 0x%x: %w", phdr.Paddr, err)
			}
			if uint64(n) != phdr.Filesz {
				return nil, fmt.Errorf("short read for segment at 0x%x: got %d bytes, expected %d",
					phdr.Paddr, n, phdr.Filesz)
			}
		}

		var flags SegmentFlags
		if phdr.Flags&elf.PF_X != 0 {
			flags |= SegmentFlagExecute
		}
		if phdr.Flags&elf.PF_W != 0 {
			flags |= SegmentFlagWrite
		}
		if phdr.Flags&elf.PF_R != 0 {
			flags |= SegmentFlagRead
		}

		// Bare-metal images are placed by physical address.
		prog.Segments = append(prog.Segments, Segment{
			Addr:    uint32(phdr.Paddr),
			Data:    data,
			MemSize: uint32(phdr.Memsz),
			Flags:   flags,
		})
	}

	symbols, err := f.Symbols()
	if err != nil && !errors.Is(err, elf.ErrNoSymbols) {
		return nil, fmt.Errorf("failed to read symbols: %w", err)
	}
	for _, sym := range symbols {
		if sym.Name != "" {
			prog.Symbols[sym.Name] = uint32(sym.Value)
		}
	}

	return prog, nil
}

// Symbol returns the address of a symbol.
func (p *Program) Symbol(name string) (uint32, bool) {
	addr, ok := p.Symbols[name]
	return addr, ok
}

// SignatureRange returns the [begin, end) range of the test signature.
func (p *Program) SignatureRange() (begin, end uint32, ok bool) {
	begin, okBegin := p.Symbol(SymbolBeginSignature)
	end, okEnd := p.Symbol(SymbolEndSignature)
	if !okBegin || !okEnd || end < begin {
		return 0, 0, false
	}
	return begin, end, true
}

// LoadIntoMemory copies every segment into memory and zero-fills the rest
// of each segment.
func (p *Program) LoadIntoMemory(memory *emu.Memory) {
	for _, seg := range p.Segments {
		memory.LoadProgram(seg.Addr, seg.Data)
		for i := uint32(len(seg.Data)); i < seg.MemSize; i++ {
			memory.Write8(seg.Addr+i, 0)
		}
	}
}

// Size returns the number of bytes the program occupies in memory.
func (p *Program) Size() uint64 {
	var total uint64
	for _, seg := range p.Segments {
		total += uint64(seg.MemSize)
	}
	return total
}
