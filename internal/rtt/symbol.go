// Package rtt implements host-side access to SEGGER real-time transfer (RTT)
// control blocks in target memory: locating the control block, enumerating its
// up (target to host) and down (host to target) channels, and moving data
// through the channel ring buffers.
package rtt

import (
	"debug/elf"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	coralerrors "github.com/coral-mesh/coral-probe/internal/errors"
)

const (
	// ControlBlockSymbol is the linker symbol of the RTT control block.
	ControlBlockSymbol = "_SEGGER_RTT"

	// defmtSection holds the defmt string table; defmt channels cannot be
	// decoded without it.
	defmtSection = ".defmt"
)

// FindControlBlock looks up the RTT control block symbol in the symbol table
// of the ELF image read from r.
func FindControlBlock(r io.ReaderAt) (uint64, bool) {
	f, err := elf.NewFile(r)
	if err != nil {
		return 0, false
	}

	symbols, err := f.Symbols()
	if err != nil {
		return 0, false
	}

	for _, sym := range symbols {
		if sym.Name == ControlBlockSymbol {
			return sym.Value, true
		}
	}
	return 0, false
}

// HasDefmtData reports whether the ELF binary at path carries a defmt table.
func HasDefmtData(path string, logger zerolog.Logger) (bool, error) {
	f, err := elf.Open(path)
	if err != nil {
		return false, fmt.Errorf("failed to open binary: %w", err)
	}
	defer coralerrors.DeferClose(logger, f, "failed to close ELF file")

	return f.Section(defmtSection) != nil, nil
}
