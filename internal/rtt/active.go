package rtt

import (
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/coral-mesh/coral-probe/internal/target"
)

// ErrNoDefmtData is returned when a channel is configured for defmt but the
// program binary has no defmt table.
var ErrNoDefmtData = errors.New("defmt channel configured but binary has no defmt data")

// Config selects how RTT channels are presented.
type Config struct {
	Enabled  bool            `yaml:"enabled" json:"enabled" env:"CORAL_PROBE_RTT_ENABLED"`
	Channels []ChannelConfig `yaml:"channels,omitempty" json:"channels,omitempty"`
}

// ChannelConfig is the configuration of one up channel.
type ChannelConfig struct {
	ChannelNumber  int        `yaml:"channel_number" json:"channel_number"`
	Name           string     `yaml:"name,omitempty" json:"name,omitempty"`
	DataFormat     DataFormat `yaml:"data_format,omitempty" json:"data_format,omitempty" jsonschema:"enum=string,enum=binary_le,enum=defmt"`
	Mode           string     `yaml:"mode,omitempty" json:"mode,omitempty" jsonschema:"enum=no_block_skip,enum=no_block_trim,enum=block_if_full"`
	ShowTimestamps bool       `yaml:"show_timestamps" json:"show_timestamps"`
}

// channel returns the configuration for channel number, if any.
func (c Config) channel(number int) (ChannelConfig, bool) {
	for _, ch := range c.Channels {
		if ch.ChannelNumber == number {
			return ch, true
		}
	}
	return ChannelConfig{}, false
}

// ActiveChannel is an up channel, with its paired down channel if the target
// has one, and the presentation settings from the configuration.
type ActiveChannel struct {
	Up             *UpChannel
	Down           *DownChannel
	Name           string
	Format         DataFormat
	ShowTimestamps bool

	location *time.Location
}

// Number returns the channel number.
func (c *ActiveChannel) Number() int {
	return c.Up.Number()
}

// Render formats data read from the channel for display. Text is optionally
// prefixed with a timestamp in the configured offset; binary formats are hex
// encoded.
func (c *ActiveChannel) Render(data []byte, now time.Time) string {
	switch c.Format {
	case FormatBinaryLE, FormatDefmt:
		return hex.EncodeToString(data)
	default:
		if c.ShowTimestamps {
			return now.In(c.location).Format("15:04:05.000") + " " + string(data)
		}
		return string(data)
	}
}

// ActiveTarget is an attached control block with its configured channels.
type ActiveTarget struct {
	RTT      *RTT
	Channels []*ActiveChannel
}

// NewActiveTarget builds the active channel list for an attached control
// block. Timestamps are rendered in location (UTC if nil).
func NewActiveTarget(mem target.Memory, rtt *RTT, binaryPath string, cfg Config, location *time.Location, logger zerolog.Logger) (*ActiveTarget, error) {
	if location == nil {
		location = time.UTC
	}

	downByNumber := make(map[int]*DownChannel, len(rtt.DownChannels()))
	for _, down := range rtt.DownChannels() {
		downByNumber[down.Number()] = down
	}

	var defmtChecked, hasDefmt bool
	active := &ActiveTarget{RTT: rtt}

	for _, up := range rtt.UpChannels() {
		chCfg, _ := cfg.channel(up.Number())

		format := chCfg.DataFormat
		if format == "" {
			format = FormatString
		}
		if !format.Valid() {
			return nil, fmt.Errorf("channel %d: unknown data format %q", up.Number(), format)
		}

		if format == FormatDefmt {
			if !defmtChecked {
				var err error
				hasDefmt, err = HasDefmtData(binaryPath, logger)
				if err != nil {
					return nil, fmt.Errorf("channel %d: %w", up.Number(), err)
				}
				defmtChecked = true
			}
			if !hasDefmt {
				return nil, fmt.Errorf("channel %d: %w", up.Number(), ErrNoDefmtData)
			}
		}

		if chCfg.Mode != "" {
			mode, err := ParseChannelMode(chCfg.Mode)
			if err != nil {
				return nil, fmt.Errorf("channel %d: %w", up.Number(), err)
			}
			if err := up.SetMode(mem, mode); err != nil {
				return nil, err
			}
		}

		name := chCfg.Name
		if name == "" {
			name = up.Name()
		}
		if name == "" {
			name = fmt.Sprintf("Unnamed RTT up channel - %d", up.Number())
		}

		active.Channels = append(active.Channels, &ActiveChannel{
			Up:             up,
			Down:           downByNumber[up.Number()],
			Name:           name,
			Format:         format,
			ShowTimestamps: chCfg.ShowTimestamps,
			location:       location,
		})
	}

	logger.Debug().
		Str("address", fmt.Sprintf("%#x", rtt.Address())).
		Int("up_channels", len(rtt.UpChannels())).
		Int("down_channels", len(rtt.DownChannels())).
		Msg("RTT channels configured")

	return active, nil
}

// Channel returns the active channel with the given number.
func (t *ActiveTarget) Channel(number int) (*ActiveChannel, bool) {
	for _, ch := range t.Channels {
		if ch.Number() == number {
			return ch, true
		}
	}
	return nil, false
}
