package testutil

import (
	"encoding/binary"
)

// RTTBuffer describes one buffer of a control block written by WriteRTTControlBlock.
type RTTBuffer struct {
	Name  string
	Size  uint32
	Flags uint32
	// Unused leaves the buffer pointer zero.
	Unused bool
}

// RTTLayout records where WriteRTTControlBlock placed each buffer.
type RTTLayout struct {
	ControlBlock uint64
	// UpDesc and DownDesc are the descriptor addresses.
	UpDesc   []uint64
	DownDesc []uint64
	// UpBuffer and DownBuffer are the ring buffer addresses.
	UpBuffer   []uint64
	DownBuffer []uint64
}

// WriteRTTControlBlock lays out a control block at addr followed by names
// and ring buffers. The memory must already be mapped.
func (c *FakeCore) WriteRTTControlBlock(addr uint64, up, down []RTTBuffer) RTTLayout {
	layout := RTTLayout{ControlBlock: addr}

	id := make([]byte, 16)
	copy(id, "SEGGER RTT")
	c.Poke(addr, id)

	var counts [8]byte
	binary.LittleEndian.PutUint32(counts[0:], uint32(len(up)))
	binary.LittleEndian.PutUint32(counts[4:], uint32(len(down)))
	c.Poke(addr+16, counts[:])

	next := addr + 24 + uint64(len(up)+len(down))*24
	all := append(append([]RTTBuffer{}, up...), down...)
	for i, buf := range all {
		descAddr := addr + 24 + uint64(i)*24
		desc := make([]byte, 24)

		var namePtr, bufPtr uint64
		if buf.Name != "" {
			namePtr = next
			name := make([]byte, len(buf.Name)+16)
			copy(name, buf.Name)
			c.Poke(namePtr, name)
			next += uint64(len(name))
		}
		if !buf.Unused {
			bufPtr = next
			next += uint64(buf.Size)
		}

		binary.LittleEndian.PutUint32(desc[0:], uint32(namePtr))
		binary.LittleEndian.PutUint32(desc[4:], uint32(bufPtr))
		binary.LittleEndian.PutUint32(desc[8:], buf.Size)
		binary.LittleEndian.PutUint32(desc[20:], buf.Flags)
		c.Poke(descAddr, desc)

		if i < len(up) {
			layout.UpDesc = append(layout.UpDesc, descAddr)
			layout.UpBuffer = append(layout.UpBuffer, bufPtr)
		} else {
			layout.DownDesc = append(layout.DownDesc, descAddr)
			layout.DownBuffer = append(layout.DownBuffer, bufPtr)
		}
	}

	return layout
}

// PushRTTUp appends data to the up buffer at index i as the target would,
// advancing WrOff. It does not handle wrap-around.
func (c *FakeCore) PushRTTUp(layout RTTLayout, i int, data []byte) {
	desc := layout.UpDesc[i]
	wr := binary.LittleEndian.Uint32(c.Peek(desc+12, 4))
	c.Poke(layout.UpBuffer[i]+uint64(wr), data)

	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], wr+uint32(len(data)))
	c.Poke(desc+12, buf[:])
}

// RTTFlags returns the flags word of the descriptor at descAddr.
func (c *FakeCore) RTTFlags(descAddr uint64) uint32 {
	return binary.LittleEndian.Uint32(c.Peek(descAddr+20, 4))
}
