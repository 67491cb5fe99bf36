package rtt

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/coral-mesh/coral-probe/internal/target"
)

// ErrChannelCorrupted is returned when a ring buffer offset is out of bounds.
var ErrChannelCorrupted = errors.New("RTT channel state corrupted")

// Buffer descriptor field offsets.
const (
	descName   = 0
	descBuffer = 4
	descSize   = 8
	descWrOff  = 12
	descRdOff  = 16
	descFlags  = 20

	maxNameLength = 64
	nameChunkSize = 16
)

type channel struct {
	number     int
	name       string
	descAddr   uint64
	bufferAddr uint64
	size       uint32
}

// readChannel decodes a buffer descriptor. Descriptors without a buffer are
// unused slots and are reported with ok=false.
func readChannel(mem target.Memory, number int, descAddr uint64, desc []byte) (channel, bool, error) {
	bufferPtr := binary.LittleEndian.Uint32(desc[descBuffer:])
	if bufferPtr == 0 {
		return channel{}, false, nil
	}

	ch := channel{
		number:     number,
		descAddr:   descAddr,
		bufferAddr: uint64(bufferPtr),
		size:       binary.LittleEndian.Uint32(desc[descSize:]),
	}
	if ch.size == 0 {
		return channel{}, false, nil
	}

	if namePtr := binary.LittleEndian.Uint32(desc[descName:]); namePtr != 0 {
		name, err := readCString(mem, uint64(namePtr))
		if err != nil {
			return channel{}, false, fmt.Errorf("read name of channel %d: %w", number, err)
		}
		ch.name = name
	}

	return ch, true, nil
}

func readCString(mem target.Memory, addr uint64) (string, error) {
	var name []byte
	chunk := make([]byte, nameChunkSize)
	for len(name) < maxNameLength {
		if err := mem.Read(addr+uint64(len(name)), chunk); err != nil {
			return "", err
		}
		for _, b := range chunk {
			if b == 0 {
				return string(name), nil
			}
			name = append(name, b)
		}
	}
	return string(name[:maxNameLength]), nil
}

// Number returns the channel number.
func (c *channel) Number() int {
	return c.number
}

// Name returns the channel name set by the target, if any.
func (c *channel) Name() string {
	return c.name
}

// BufferSize returns the ring buffer size in bytes.
func (c *channel) BufferSize() uint32 {
	return c.size
}

func (c *channel) readWord(mem target.Memory, offset uint64) (uint32, error) {
	var buf [4]byte
	if err := mem.Read(c.descAddr+offset, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func (c *channel) writeWord(mem target.Memory, offset uint64, value uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], value)
	return mem.Write(c.descAddr+offset, buf[:])
}

// offsets reads and validates the write and read offsets.
func (c *channel) offsets(mem target.Memory) (uint32, uint32, error) {
	wr, err := c.readWord(mem, descWrOff)
	if err != nil {
		return 0, 0, err
	}
	rd, err := c.readWord(mem, descRdOff)
	if err != nil {
		return 0, 0, err
	}
	if wr >= c.size || rd >= c.size {
		return 0, 0, fmt.Errorf("%w: channel %d wr=%d rd=%d size=%d", ErrChannelCorrupted, c.number, wr, rd, c.size)
	}
	return wr, rd, nil
}

// UpChannel carries data from the target to the host.
type UpChannel struct {
	channel
}

// Mode reads the current full-buffer behavior of the channel.
func (c *UpChannel) Mode(mem target.Memory) (ChannelMode, error) {
	flags, err := c.readWord(mem, descFlags)
	if err != nil {
		return 0, fmt.Errorf("read flags of channel %d: %w", c.number, err)
	}
	return ChannelMode(flags & modeMask), nil
}

// SetMode changes the full-buffer behavior of the channel, preserving the
// other flag bits.
func (c *UpChannel) SetMode(mem target.Memory, mode ChannelMode) error {
	flags, err := c.readWord(mem, descFlags)
	if err != nil {
		return fmt.Errorf("read flags of channel %d: %w", c.number, err)
	}
	flags = flags&^modeMask | uint32(mode)&modeMask
	if err := c.writeWord(mem, descFlags, flags); err != nil {
		return fmt.Errorf("write flags of channel %d: %w", c.number, err)
	}
	return nil
}

// Read drains up to len(buf) bytes from the ring buffer and returns the
// number of bytes read.
func (c *UpChannel) Read(mem target.Memory, buf []byte) (int, error) {
	wr, rd, err := c.offsets(mem)
	if err != nil {
		return 0, err
	}

	total := 0
	for total < len(buf) && rd != wr {
		count := c.size - rd
		if wr > rd {
			count = wr - rd
		}
		if remaining := uint32(len(buf) - total); count > remaining {
			count = remaining
		}
		if err := mem.Read(c.bufferAddr+uint64(rd), buf[total:total+int(count)]); err != nil {
			return 0, fmt.Errorf("read buffer of channel %d: %w", c.number, err)
		}
		total += int(count)
		rd += count
		if rd == c.size {
			rd = 0
		}
	}

	if total > 0 {
		if err := c.writeWord(mem, descRdOff, rd); err != nil {
			return 0, fmt.Errorf("update read offset of channel %d: %w", c.number, err)
		}
	}
	return total, nil
}

// DownChannel carries data from the host to the target.
type DownChannel struct {
	channel
}
