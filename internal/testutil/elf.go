package testutil

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

// BuildELF returns a minimal little-endian ELF32 ARM image with a symbol
// table holding symbols, plus an empty section for each name in sections.
func BuildELF(t *testing.T, symbols map[string]uint64, sections ...string) []byte {
	t.Helper()

	names := make([]string, 0, len(symbols))
	for name := range symbols {
		names = append(names, name)
	}
	sort.Strings(names)

	// Symbol string table and symbols. Index 0 of both is the null entry.
	strtab := []byte{0}
	syms := []elf.Sym32{{}}
	for _, name := range names {
		syms = append(syms, elf.Sym32{
			Name:  uint32(len(strtab)),
			Value: uint32(symbols[name]),
			Info:  elf.ST_INFO(elf.STB_GLOBAL, elf.STT_OBJECT),
			Shndx: uint16(elf.SHN_ABS),
		})
		strtab = append(strtab, name...)
		strtab = append(strtab, 0)
	}
	var symtab bytes.Buffer
	for _, sym := range syms {
		mustWrite(t, &symtab, sym)
	}

	// Section name string table.
	shstrtab := []byte{0}
	addName := func(name string) uint32 {
		off := uint32(len(shstrtab))
		shstrtab = append(shstrtab, name...)
		shstrtab = append(shstrtab, 0)
		return off
	}
	symtabName := addName(".symtab")
	strtabName := addName(".strtab")
	shstrtabName := addName(".shstrtab")
	extraNames := make([]uint32, len(sections))
	for i, name := range sections {
		extraNames[i] = addName(name)
	}

	const headerSize = 52
	strtabOff := uint32(headerSize)
	symtabOff := align4(strtabOff + uint32(len(strtab)))
	shstrtabOff := symtabOff + uint32(symtab.Len())
	shOff := align4(shstrtabOff + uint32(len(shstrtab)))

	headers := []elf.Section32{
		{},
		{
			Name:      symtabName,
			Type:      uint32(elf.SHT_SYMTAB),
			Off:       symtabOff,
			Size:      uint32(symtab.Len()),
			Link:      2,
			Info:      1,
			Addralign: 4,
			Entsize:   elf.Sym32Size,
		},
		{
			Name:      strtabName,
			Type:      uint32(elf.SHT_STRTAB),
			Off:       strtabOff,
			Size:      uint32(len(strtab)),
			Addralign: 1,
		},
		{
			Name:      shstrtabName,
			Type:      uint32(elf.SHT_STRTAB),
			Off:       shstrtabOff,
			Size:      uint32(len(shstrtab)),
			Addralign: 1,
		},
	}
	for _, name := range extraNames {
		headers = append(headers, elf.Section32{
			Name:      name,
			Type:      uint32(elf.SHT_PROGBITS),
			Off:       shstrtabOff,
			Addralign: 1,
		})
	}

	var ident [elf.EI_NIDENT]byte
	copy(ident[:], elf.ELFMAG)
	ident[elf.EI_CLASS] = byte(elf.ELFCLASS32)
	ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)

	header := elf.Header32{
		Ident:     ident,
		Type:      uint16(elf.ET_EXEC),
		Machine:   uint16(elf.EM_ARM),
		Version:   uint32(elf.EV_CURRENT),
		Shoff:     shOff,
		Ehsize:    headerSize,
		Shentsize: 40,
		Shnum:     uint16(len(headers)),
		Shstrndx:  3,
	}

	var out bytes.Buffer
	mustWrite(t, &out, header)
	out.Write(strtab)
	pad(&out, symtabOff)
	out.Write(symtab.Bytes())
	out.Write(shstrtab)
	pad(&out, shOff)
	for _, sh := range headers {
		mustWrite(t, &out, sh)
	}

	return out.Bytes()
}

// WriteELF writes BuildELF output to a file in a temporary directory and
// returns its path.
func WriteELF(t *testing.T, symbols map[string]uint64, sections ...string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "firmware.elf")
	if err := os.WriteFile(path, BuildELF(t, symbols, sections...), 0o600); err != nil {
		t.Fatalf("write ELF: %v", err)
	}
	return path
}

func mustWrite(t *testing.T, buf *bytes.Buffer, v any) {
	t.Helper()
	if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
		t.Fatalf("encode ELF: %v", err)
	}
}

func align4(v uint32) uint32 {
	return (v + 3) &^ 3
}

func pad(buf *bytes.Buffer, to uint32) {
	for uint32(buf.Len()) < to {
		buf.WriteByte(0)
	}
}
