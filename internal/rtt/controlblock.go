package rtt

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/coral-mesh/coral-probe/internal/safe"
	"github.com/coral-mesh/coral-probe/internal/target"
)

var (
	// ErrControlBlockNotFound is returned when no control block id is present.
	ErrControlBlockNotFound = errors.New("RTT control block not found")
	// ErrControlBlockCorrupted is returned when the control block header is invalid.
	ErrControlBlockCorrupted = errors.New("RTT control block corrupted")
	// ErrRegionOutOfRange is returned when the control block is outside the memory map.
	ErrRegionOutOfRange = errors.New("RTT control block outside target memory")
)

// Control block layout for 32-bit targets.
const (
	idSize             = 16
	headerSize         = idSize + 8
	bufferDescSize     = 24
	maxBuffers         = 255
	offsetMaxUpBuffers = idSize
	offsetMaxDown      = idSize + 4
)

// controlBlockID is the magic string at the start of every control block.
var controlBlockID = []byte("SEGGER RTT\x00\x00\x00\x00\x00\x00")

// RTT is an attached control block and its channels.
type RTT struct {
	address uint64
	up      []*UpChannel
	down    []*DownChannel
}

// Address returns the address of the control block.
func (r *RTT) Address() uint64 {
	return r.address
}

// UpChannels returns the target to host channels.
func (r *RTT) UpChannels() []*UpChannel {
	return r.up
}

// DownChannels returns the host to target channels.
func (r *RTT) DownChannels() []*DownChannel {
	return r.down
}

// Attach reads the control block at addr and its channel table. Memory is
// never scanned for the control block id: addr usually comes from the symbol
// table of the binary. The control block must lie entirely within a region
// of memoryMap.
func Attach(mem target.Memory, memoryMap []target.MemoryRegion, addr uint64) (*RTT, error) {
	if _, clamped := safe.Uint64ToUint32(addr); clamped {
		return nil, fmt.Errorf("%w: %#x is not a 32-bit address", ErrRegionOutOfRange, addr)
	}
	if !inMemoryMap(memoryMap, addr, headerSize) {
		return nil, fmt.Errorf("%w: %#x", ErrRegionOutOfRange, addr)
	}

	header := make([]byte, headerSize)
	if err := mem.Read(addr, header); err != nil {
		return nil, fmt.Errorf("read control block header: %w", err)
	}
	if !bytes.Equal(header[:idSize], controlBlockID) {
		return nil, fmt.Errorf("%w: no control block id at %#x", ErrControlBlockNotFound, addr)
	}

	maxUp := int32(binary.LittleEndian.Uint32(header[offsetMaxUpBuffers:]))
	maxDown := int32(binary.LittleEndian.Uint32(header[offsetMaxDown:]))
	if maxUp < 0 || maxUp > maxBuffers || maxDown < 0 || maxDown > maxBuffers {
		return nil, fmt.Errorf("%w: buffer counts up=%d down=%d", ErrControlBlockCorrupted, maxUp, maxDown)
	}

	total := uint64(headerSize) + uint64(maxUp+maxDown)*bufferDescSize
	if !inMemoryMap(memoryMap, addr, total) {
		return nil, fmt.Errorf("%w: %#x+%d", ErrRegionOutOfRange, addr, total)
	}

	descs := make([]byte, uint64(maxUp+maxDown)*bufferDescSize)
	if len(descs) > 0 {
		if err := mem.Read(addr+headerSize, descs); err != nil {
			return nil, fmt.Errorf("read buffer descriptors: %w", err)
		}
	}

	rtt := &RTT{address: addr}
	for i := 0; i < int(maxUp+maxDown); i++ {
		descAddr := addr + headerSize + uint64(i)*bufferDescSize
		isUp := i < int(maxUp)
		number := i
		if !isUp {
			number = i - int(maxUp)
		}

		ch, ok, err := readChannel(mem, number, descAddr, descs[i*bufferDescSize:(i+1)*bufferDescSize])
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if isUp {
			rtt.up = append(rtt.up, &UpChannel{channel: ch})
		} else {
			rtt.down = append(rtt.down, &DownChannel{channel: ch})
		}
	}

	return rtt, nil
}

func inMemoryMap(memoryMap []target.MemoryRegion, addr, size uint64) bool {
	for _, region := range memoryMap {
		if region.ContainsRange(addr, size) {
			return true
		}
	}
	return false
}
