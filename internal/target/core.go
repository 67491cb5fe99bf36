package target

import "fmt"

// RegisterID identifies a core register in the probe's register file.
type RegisterID uint16

// Memory is byte-addressable access to target memory through the probe.
type Memory interface {
	// Read fills buf with the bytes starting at addr.
	Read(addr uint64, buf []byte) error
	// Write stores data starting at addr.
	Write(addr uint64, data []byte) error
}

// Core is the live hardware interface of one core. All operations are
// synchronous probe transactions; callers serialize access.
type Core interface {
	Memory

	// ID returns the core identifier, used as the DAP thread id.
	ID() int
	// Status reads the current execution status.
	Status() (CoreStatus, error)
	// ProgramCounter returns the register id of the program counter.
	ProgramCounter() RegisterID
	// ReadCoreReg reads a core register.
	ReadCoreReg(reg RegisterID) (uint64, error)
	// SetHWBreakpoint programs a hardware breakpoint comparator at addr.
	SetHWBreakpoint(addr uint64) error
	// ClearHWBreakpoint releases the comparator programmed at addr.
	ClearHWBreakpoint(addr uint64) error
}

// MemoryKind classifies a memory region.
type MemoryKind int

const (
	// MemoryGeneric is any addressable region without further classification.
	MemoryGeneric MemoryKind = iota
	// MemoryRAM is volatile read/write memory.
	MemoryRAM
	// MemoryNVM is flash or other non-volatile memory.
	MemoryNVM
)

// MemoryRegion is a contiguous address range [Start, End) of the device.
type MemoryRegion struct {
	Name  string
	Kind  MemoryKind
	Start uint64
	End   uint64
}

// Contains reports whether addr lies inside the region.
func (r MemoryRegion) Contains(addr uint64) bool {
	return addr >= r.Start && addr < r.End
}

// ContainsRange reports whether the size bytes starting at addr lie inside the region.
func (r MemoryRegion) ContainsRange(addr, size uint64) bool {
	if size == 0 {
		return r.Contains(addr)
	}
	end := addr + size
	return end > addr && addr >= r.Start && end <= r.End
}

// String returns a string representation of the region.
func (r MemoryRegion) String() string {
	return fmt.Sprintf("%s [%#x..%#x)", r.Name, r.Start, r.End)
}

// FindRegion returns the region of the memory map that contains addr.
func FindRegion(memoryMap []MemoryRegion, addr uint64) (MemoryRegion, bool) {
	for _, region := range memoryMap {
		if region.Contains(addr) {
			return region, true
		}
	}
	return MemoryRegion{}, false
}
