package testutil

import (
	"fmt"

	"github.com/coral-mesh/coral-probe/internal/target"
)

// PCRegister is the program counter register id reported by FakeCore.
const PCRegister target.RegisterID = 15

type memoryBlock struct {
	start uint64
	data  []byte
}

// FakeCore is a scripted target.Core. Exported fields may be changed between
// calls to simulate hardware state changes and failures.
type FakeCore struct {
	CoreID int

	// CurrentStatus is returned by Status unless StatusErr is set.
	CurrentStatus target.CoreStatus
	StatusErr     error
	StatusReads   int

	PC    uint64
	PCErr error

	// SetErr and ClearErr fail breakpoint operations for specific addresses.
	SetErr   map[uint64]error
	ClearErr map[uint64]error

	// Installed holds the addresses with a programmed comparator.
	Installed  map[uint64]bool
	SetCalls   []uint64
	ClearCalls []uint64

	// WriteErr fails every memory write.
	WriteErr error

	memory []memoryBlock
}

// NewFakeCore returns a running core with the given id and no memory.
func NewFakeCore(id int) *FakeCore {
	return &FakeCore{
		CoreID:        id,
		CurrentStatus: target.Running,
		SetErr:        make(map[uint64]error),
		ClearErr:      make(map[uint64]error),
		Installed:     make(map[uint64]bool),
	}
}

// ID implements target.Core.
func (c *FakeCore) ID() int {
	return c.CoreID
}

// Status implements target.Core.
func (c *FakeCore) Status() (target.CoreStatus, error) {
	c.StatusReads++
	if c.StatusErr != nil {
		return target.Unknown, c.StatusErr
	}
	return c.CurrentStatus, nil
}

// ProgramCounter implements target.Core.
func (c *FakeCore) ProgramCounter() target.RegisterID {
	return PCRegister
}

// ReadCoreReg implements target.Core.
func (c *FakeCore) ReadCoreReg(reg target.RegisterID) (uint64, error) {
	if reg != PCRegister {
		return 0, fmt.Errorf("register %d not available", reg)
	}
	if c.PCErr != nil {
		return 0, c.PCErr
	}
	return c.PC, nil
}

// SetHWBreakpoint implements target.Core.
func (c *FakeCore) SetHWBreakpoint(addr uint64) error {
	c.SetCalls = append(c.SetCalls, addr)
	if err := c.SetErr[addr]; err != nil {
		return err
	}
	c.Installed[addr] = true
	return nil
}

// ClearHWBreakpoint implements target.Core.
func (c *FakeCore) ClearHWBreakpoint(addr uint64) error {
	c.ClearCalls = append(c.ClearCalls, addr)
	if err := c.ClearErr[addr]; err != nil {
		return err
	}
	delete(c.Installed, addr)
	return nil
}

// AddMemory maps size zeroed bytes at start.
func (c *FakeCore) AddMemory(start uint64, size int) {
	c.memory = append(c.memory, memoryBlock{start: start, data: make([]byte, size)})
}

func (c *FakeCore) block(addr uint64, size int) ([]byte, error) {
	for _, b := range c.memory {
		if addr >= b.start && addr+uint64(size) <= b.start+uint64(len(b.data)) {
			offset := addr - b.start
			return b.data[offset : offset+uint64(size)], nil
		}
	}
	return nil, fmt.Errorf("unmapped memory access at %#x (%d bytes)", addr, size)
}

// Read implements target.Memory.
func (c *FakeCore) Read(addr uint64, buf []byte) error {
	src, err := c.block(addr, len(buf))
	if err != nil {
		return err
	}
	copy(buf, src)
	return nil
}

// Write implements target.Memory.
func (c *FakeCore) Write(addr uint64, data []byte) error {
	if c.WriteErr != nil {
		return c.WriteErr
	}
	dst, err := c.block(addr, len(data))
	if err != nil {
		return err
	}
	copy(dst, data)
	return nil
}

// Poke writes data into mapped memory, bypassing WriteErr. It panics on an
// unmapped address.
func (c *FakeCore) Poke(addr uint64, data []byte) {
	dst, err := c.block(addr, len(data))
	if err != nil {
		panic(err)
	}
	copy(dst, data)
}

// Peek returns a copy of size bytes of mapped memory. It panics on an
// unmapped address.
func (c *FakeCore) Peek(addr uint64, size int) []byte {
	src, err := c.block(addr, size)
	if err != nil {
		panic(err)
	}
	return append([]byte(nil), src...)
}
