package session

import (
	"errors"
	"fmt"
	"time"

	coralerrors "github.com/coral-mesh/coral-probe/internal/errors"
	"github.com/coral-mesh/coral-probe/internal/rtt"
	"github.com/coral-mesh/coral-probe/internal/safe"
	"github.com/coral-mesh/coral-probe/internal/target"
)

// rttReadSize is the most data forwarded per channel and poll.
const rttReadSize = 1024

var errNoRTTSymbol = errors.New("no RTT control block symbol in binary")

// AttachToRTT attaches to the RTT control block named by the symbol table of
// the program binary and announces every up channel to the client. Channels
// in defmt format are switched to block-if-full so no frame is lost.
//
// Failures are logged and leave the connection as it was; the caller may try
// again on a later request once the firmware has set up RTT. It reports
// whether the attach succeeded.
func (h *CoreHandle) AttachToRTT(protocol ProtocolSession, memoryMap []target.MemoryRegion, binaryPath string, cfg rtt.Config, timestampOffset *time.Location) bool {
	h.mustBeCheckedOut()
	active, err := h.openRTT(memoryMap, binaryPath, cfg, timestampOffset)
	if err == nil {
		err = forceDefmtBlocking(h.core, active)
	}
	if err != nil {
		h.logger.Warn().
			Err(err).
			Str("binary", binaryPath).
			Msg("Failed to initialize RTT, will retry on a later request")
		return false
	}

	channels := make([]DebuggerRTTChannel, 0, len(active.Channels))
	for _, ch := range active.Channels {
		// The client reports an opened window with a separate request.
		channels = append(channels, DebuggerRTTChannel{ChannelNumber: ch.Number(), HasClientWindow: false})
		protocol.RTTWindow(ch.Number(), ch.Name, ch.Format)
	}
	h.data.rtt = &RTTConnected{Target: active, Channels: channels}

	h.logger.Info().
		Str("address", fmt.Sprintf("0x%08x", active.RTT.Address())).
		Int("channels", len(channels)).
		Msg("RTT initialized")
	return true
}

func (h *CoreHandle) openRTT(memoryMap []target.MemoryRegion, binaryPath string, cfg rtt.Config, timestampOffset *time.Location) (*rtt.ActiveTarget, error) {
	f, err := safe.OpenRegularFile(binaryPath, &safe.OpenFileOptions{AllowSymlinks: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open binary: %w", err)
	}
	defer coralerrors.DeferClose(h.logger, f, "failed to close binary")

	// Only the exact symbol address is used. Scanning RAM could attach to a
	// stale control block left by previous firmware.
	addr, ok := rtt.FindControlBlock(f)
	if !ok {
		return nil, errNoRTTSymbol
	}

	block, err := rtt.Attach(h.core, memoryMap, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to attach to RTT: %w", err)
	}

	return rtt.NewActiveTarget(h.core, block, binaryPath, cfg, timestampOffset, h.logger)
}

func forceDefmtBlocking(mem target.Memory, active *rtt.ActiveTarget) error {
	for _, ch := range active.Channels {
		if ch.Format != rtt.FormatDefmt {
			continue
		}
		if err := ch.Up.SetMode(mem, rtt.ModeBlockIfFull); err != nil {
			return err
		}
	}
	return nil
}

// MaybeAttachToRTT retries AttachToRTT when RTT is enabled, the core is not
// connected yet and the retry backoff has elapsed. It reports whether an
// attach happened.
func (h *CoreHandle) MaybeAttachToRTT(protocol ProtocolSession, memoryMap []target.MemoryRegion, binaryPath string, cfg rtt.Config, timestampOffset *time.Location) bool {
	h.mustBeCheckedOut()
	if !cfg.Enabled {
		return false
	}
	if _, connected := h.data.RTT().(*RTTConnected); connected {
		return false
	}
	if !h.data.rttThrottle.Allow() {
		return false
	}

	if h.AttachToRTT(protocol, memoryMap, binaryPath, cfg, timestampOffset) {
		h.data.rttThrottle.Success()
		return true
	}

	h.data.rttThrottle.Failure()
	h.logger.Debug().
		Int("failures", h.data.rttThrottle.Failures()).
		Time("next_attempt", h.data.rttThrottle.NextAttempt()).
		Msg("RTT attach deferred")
	return false
}

// SetRTTClientWindow records whether the client has an output window open
// for channel. It reports whether the channel is known.
func (h *CoreHandle) SetRTTClientWindow(channel int, open bool) bool {
	h.mustBeCheckedOut()
	conn, ok := h.data.RTT().(*RTTConnected)
	if !ok {
		return false
	}
	for i := range conn.Channels {
		if conn.Channels[i].ChannelNumber == channel {
			conn.Channels[i].HasClientWindow = open
			return true
		}
	}
	return false
}

// PollRTT forwards pending up-channel data to the client windows. Channels
// without a window are left to fill up. Read failures are logged and the
// channel is skipped. It returns the number of bytes forwarded.
func (h *CoreHandle) PollRTT(protocol ProtocolSession) int {
	h.mustBeCheckedOut()
	conn, ok := h.data.RTT().(*RTTConnected)
	if !ok {
		return 0
	}

	total := 0
	buf := make([]byte, rttReadSize)
	for _, dc := range conn.Channels {
		if !dc.HasClientWindow {
			continue
		}
		ch, ok := conn.Target.Channel(dc.ChannelNumber)
		if !ok {
			continue
		}

		n, err := ch.Up.Read(h.core, buf)
		if err != nil {
			h.logger.Warn().Err(err).Int("channel", dc.ChannelNumber).Msg("Failed to read RTT channel")
			continue
		}
		if n == 0 {
			continue
		}

		if err := protocol.RTTData(dc.ChannelNumber, ch.Render(buf[:n], time.Now())); err != nil {
			h.logger.Warn().Err(err).Int("channel", dc.ChannelNumber).Msg("Failed to forward RTT data")
			continue
		}
		total += n
	}
	return total
}
