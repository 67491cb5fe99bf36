package rtt

import (
	"fmt"
	"strings"
)

// DataFormat is the payload encoding of a channel.
type DataFormat string

const (
	// FormatString is UTF-8 text.
	FormatString DataFormat = "string"
	// FormatBinaryLE is raw little-endian binary data.
	FormatBinaryLE DataFormat = "binary_le"
	// FormatDefmt is the compact defmt binary log format. Frames must arrive
	// complete and in order.
	FormatDefmt DataFormat = "defmt"
)

// ParseDataFormat parses a data format name.
func ParseDataFormat(s string) (DataFormat, error) {
	switch f := DataFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatString, FormatBinaryLE, FormatDefmt:
		return f, nil
	case "":
		return FormatString, nil
	default:
		return "", fmt.Errorf("unknown RTT data format %q", s)
	}
}

// Valid reports whether f is a known format.
func (f DataFormat) Valid() bool {
	switch f {
	case FormatString, FormatBinaryLE, FormatDefmt:
		return true
	}
	return false
}

// MarshalText implements encoding.TextMarshaler.
func (f DataFormat) MarshalText() ([]byte, error) {
	return []byte(f), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. An empty value selects
// FormatString.
func (f *DataFormat) UnmarshalText(text []byte) error {
	parsed, err := ParseDataFormat(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// ChannelMode is the behavior of the target when an up channel buffer is full.
// It occupies the low two bits of the buffer descriptor flags.
type ChannelMode uint32

const (
	// ModeNoBlockSkip drops the whole message if it does not fit.
	ModeNoBlockSkip ChannelMode = 0
	// ModeNoBlockTrim writes as much as fits and drops the rest.
	ModeNoBlockTrim ChannelMode = 1
	// ModeBlockIfFull stalls the target until the host drains the buffer.
	ModeBlockIfFull ChannelMode = 2

	modeMask = 0x3
)

// ParseChannelMode parses a channel mode name.
func ParseChannelMode(s string) (ChannelMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "no_block_skip":
		return ModeNoBlockSkip, nil
	case "no_block_trim":
		return ModeNoBlockTrim, nil
	case "block_if_full":
		return ModeBlockIfFull, nil
	default:
		return 0, fmt.Errorf("unknown RTT channel mode %q", s)
	}
}

// String returns a string representation of the mode.
func (m ChannelMode) String() string {
	switch m {
	case ModeNoBlockSkip:
		return "no_block_skip"
	case ModeNoBlockTrim:
		return "no_block_trim"
	case ModeBlockIfFull:
		return "block_if_full"
	default:
		return fmt.Sprintf("mode(%d)", uint32(m))
	}
}
