// Package elftest writes small ELF32 executables for tests.
package elftest

import (
	"encoding/binary"
	"fmt"
	"os"
	"sort"
)

// Machine types.
const (
	MachineX86   uint16 = 3
	MachineRISCV uint16 = 243
)

// Segment flags.
const (
	FlagsRX uint32 = 0x5
	FlagsRW uint32 = 0x6
)

const (
	headerSize = 52
	phdrSize   = 32
	shdrSize   = 40
	symSize    = 16

	progTypeLoad  = 1
	elfTypeExec   = 2
	sectionSymtab = 2
	sectionStrtab = 3
	symbolAbs     = 0xFFF1
	symbolGlobal  = 0x10
)

// Segment is one PT_LOAD segment.
type Segment struct {
	Addr    uint32
	Data    []byte
	MemSize uint32
	Flags   uint32
}

// Image describes an executable. Symbols are written as absolute global
// symbols.
type Image struct {
	Machine  uint16
	Entry    uint32
	Segments []Segment
	Symbols  map[string]uint32
}

// Write writes img to path as a little-endian ELF32 executable. With
// symbols it adds .symtab, .strtab and .shstrtab sections.
func Write(path string, img Image) error {
	le := binary.LittleEndian

	phoff := uint32(headerSize)
	offset := phoff + uint32(len(img.Segments))*phdrSize

	var body []byte
	phdrs := make([]byte, 0, len(img.Segments)*phdrSize)
	for _, seg := range img.Segments {
		memSize := seg.MemSize
		if memSize == 0 {
			memSize = uint32(len(seg.Data))
		}

		ph := make([]byte, phdrSize)
		le.PutUint32(ph[0:], progTypeLoad)
		le.PutUint32(ph[4:], offset+uint32(len(body)))
		le.PutUint32(ph[8:], seg.Addr)
		le.PutUint32(ph[12:], seg.Addr)
		le.PutUint32(ph[16:], uint32(len(seg.Data)))
		le.PutUint32(ph[20:], memSize)
		le.PutUint32(ph[24:], seg.Flags)
		le.PutUint32(ph[28:], 4)
		phdrs = append(phdrs, ph...)
		body = append(body, seg.Data...)
	}

	var (
		shoff uint32
		shnum uint16
		shstr uint16
		shdrs []byte
	)
	if len(img.Symbols) > 0 {
		names := make([]string, 0, len(img.Symbols))
		for name := range img.Symbols {
			names = append(names, name)
		}
		sort.Strings(names)

		strtab := []byte{0}
		symtab := make([]byte, symSize)
		for _, name := range names {
			sym := make([]byte, symSize)
			le.PutUint32(sym[0:], uint32(len(strtab)))
			le.PutUint32(sym[4:], img.Symbols[name])
			sym[12] = symbolGlobal
			le.PutUint16(sym[14:], symbolAbs)
			symtab = append(symtab, sym...)
			strtab = append(append(strtab, name...), 0)
		}
		shstrtab := []byte("\x00.symtab\x00.strtab\x00.shstrtab\x00")

		symOff := offset + uint32(len(body))
		body = append(body, symtab...)
		strOff := offset + uint32(len(body))
		body = append(body, strtab...)
		shstrOff := offset + uint32(len(body))
		body = append(body, shstrtab...)

		section := func(name, typ, off, size, link, info, entsize uint32) {
			sh := make([]byte, shdrSize)
			le.PutUint32(sh[0:], name)
			le.PutUint32(sh[4:], typ)
			le.PutUint32(sh[16:], off)
			le.PutUint32(sh[20:], size)
			le.PutUint32(sh[24:], link)
			le.PutUint32(sh[28:], info)
			le.PutUint32(sh[32:], 1)
			le.PutUint32(sh[36:], entsize)
			shdrs = append(shdrs, sh...)
		}
		section(0, 0, 0, 0, 0, 0, 0)
		section(1, sectionSymtab, symOff, uint32(len(symtab)), 2, 1, symSize)
		section(9, sectionStrtab, strOff, uint32(len(strtab)), 0, 0, 0)
		section(17, sectionStrtab, shstrOff, uint32(len(shstrtab)), 0, 0, 0)

		for len(body)%4 != 0 {
			body = append(body, 0)
		}
		shoff = offset + uint32(len(body))
		shnum = 4
		shstr = 3
	}

	header := make([]byte, headerSize)
	copy(header[0:4], []byte{0x7f, 'E', 'L', 'F'})
	header[4] = 1 // ELFCLASS32
	header[5] = 1 // little endian
	header[6] = 1 // version
	le.PutUint16(header[16:], elfTypeExec)
	le.PutUint16(header[18:], img.Machine)
	le.PutUint32(header[20:], 1)
	le.PutUint32(header[24:], img.Entry)
	le.PutUint32(header[28:], phoff)
	le.PutUint32(header[32:], shoff)
	le.PutUint16(header[40:], headerSize)
	le.PutUint16(header[42:], phdrSize)
	le.PutUint16(header[44:], uint16(len(img.Segments)))
	le.PutUint16(header[46:], shdrSize)
	le.PutUint16(header[48:], shnum)
	le.PutUint16(header[50:], shstr)

	var out []byte
	out = append(out, header...)
	out = append(out, phdrs...)
	out = append(out, body...)
	out = append(out, shdrs...)

	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("failed to write ELF file: %w", err)
	}
	return nil
}
