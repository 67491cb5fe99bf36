// Package dap is the protocol-session side of a core debug session: it tracks
// the configuration handshake and the all-cores-halted flag, and turns session
// notifications into Debug Adapter Protocol messages.
package dap

import (
	"fmt"
	"io"
	"sync"

	godap "github.com/google/go-dap"
	"github.com/rs/zerolog"

	"github.com/coral-mesh/coral-probe/internal/rtt"
)

// Custom events understood by the VS Code debug extension.
const (
	EventShowMessage      = "probe-rs-show-message"
	EventRTTChannelConfig = "probe-rs-rtt-channel-config"
	EventRTTData          = "probe-rs-rtt-data"
)

// ProtocolAdapter delivers DAP messages to the client.
type ProtocolAdapter interface {
	SendMessage(msg godap.Message) error
}

// StreamAdapter writes Content-Length framed messages to a stream.
type StreamAdapter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewStreamAdapter returns a ProtocolAdapter writing to w.
func NewStreamAdapter(w io.Writer) *StreamAdapter {
	return &StreamAdapter{w: w}
}

// SendMessage implements ProtocolAdapter.
func (a *StreamAdapter) SendMessage(msg godap.Message) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return godap.WriteProtocolMessage(a.w, msg)
}

// EventMessage is an event with an arbitrary body. go-dap only models the
// standard events; custom events share this shape.
type EventMessage struct {
	godap.Event
	Body any `json:"body,omitempty"`
}

// MessageSeverity is the severity of a user-visible message.
type MessageSeverity string

const (
	SeverityInformation MessageSeverity = "information"
	SeverityWarning     MessageSeverity = "warning"
	SeverityError       MessageSeverity = "error"
)

// ShowMessageBody is the body of the show-message event.
type ShowMessageBody struct {
	Severity MessageSeverity `json:"severity"`
	Message  string          `json:"message"`
}

// RTTChannelConfigBody is the body of the RTT channel config event, which asks
// the client to open an output window for the channel.
type RTTChannelConfigBody struct {
	ChannelNumber int            `json:"channelNumber"`
	ChannelName   string         `json:"channelName"`
	DataFormat    rtt.DataFormat `json:"dataFormat"`
}

// StoppedEventBody is the body of the stopped event. Unlike
// godap.StoppedEventBody it always carries the thread id and both flags, so
// core 0 and false flags reach the client.
type StoppedEventBody struct {
	Reason            string `json:"reason"`
	Description       string `json:"description,omitempty"`
	ThreadID          int    `json:"threadId"`
	PreserveFocusHint bool   `json:"preserveFocusHint"`
	AllThreadsStopped bool   `json:"allThreadsStopped"`
}

// RTTDataBody is the body of the RTT data event.
type RTTDataBody struct {
	ChannelNumber int    `json:"channelNumber"`
	Data          string `json:"data"`
}

// DebugAdapter is the protocol session of a debug adapter instance.
type DebugAdapter struct {
	adapter ProtocolAdapter
	logger  zerolog.Logger

	seq               int
	configurationDone bool
	allCoresHalted    bool
}

// NewDebugAdapter creates a protocol session that sends through adapter.
func NewDebugAdapter(adapter ProtocolAdapter, logger zerolog.Logger) *DebugAdapter {
	return &DebugAdapter{
		adapter: adapter,
		logger:  logger.With().Str("component", "dap").Logger(),
	}
}

// ConfigurationIsDone reports whether the client finished the configuration
// handshake with a configurationDone request.
func (d *DebugAdapter) ConfigurationIsDone() bool {
	return d.configurationDone
}

// SetConfigurationDone records the configurationDone request.
func (d *DebugAdapter) SetConfigurationDone() {
	d.configurationDone = true
}

// AllCoresHalted reports whether every core of the session is halted.
func (d *DebugAdapter) AllCoresHalted() bool {
	return d.allCoresHalted
}

// SetAllCoresHalted updates the all-cores-halted flag.
func (d *DebugAdapter) SetAllCoresHalted(halted bool) {
	d.allCoresHalted = halted
}

func (d *DebugAdapter) nextSeq() int {
	d.seq++
	return d.seq
}

// SendEvent sends the named event with body.
func (d *DebugAdapter) SendEvent(event string, body any) error {
	msg := &EventMessage{
		Event: godap.Event{
			ProtocolMessage: godap.ProtocolMessage{Seq: d.nextSeq(), Type: "event"},
			Event:           event,
		},
		Body: body,
	}
	if err := d.adapter.SendMessage(msg); err != nil {
		return fmt.Errorf("send %s event: %w", event, err)
	}
	d.logger.Trace().Str("event", event).Int("seq", msg.Seq).Msg("Sent event")
	return nil
}

// ShowMessage displays a message to the user, independent of any request.
// It reports whether the message was delivered.
func (d *DebugAdapter) ShowMessage(severity MessageSeverity, message string) bool {
	switch severity {
	case SeverityError:
		d.logger.Error().Msg(message)
	case SeverityWarning:
		d.logger.Warn().Msg(message)
	default:
		d.logger.Info().Msg(message)
	}

	if err := d.SendEvent(EventShowMessage, ShowMessageBody{Severity: severity, Message: message}); err != nil {
		d.logger.Warn().Err(err).Msg("Failed to show message to client")
		return false
	}
	return true
}

// SendErrorResponse sends an unsuccessful response that is not tied to a
// specific request, and shows the error to the user.
func (d *DebugAdapter) SendErrorResponse(err error) error {
	text := err.Error()
	resp := &godap.ErrorResponse{
		Response: godap.Response{
			ProtocolMessage: godap.ProtocolMessage{Seq: d.nextSeq(), Type: "response"},
			Command:         "error",
			Success:         false,
			Message:         text,
		},
		Body: godap.ErrorResponseBody{
			Error: &godap.ErrorMessage{
				Format:   text,
				ShowUser: true,
			},
		},
	}

	d.logger.Error().Err(err).Msg("Sending error response")
	if sendErr := d.adapter.SendMessage(resp); sendErr != nil {
		return fmt.Errorf("send error response: %w", sendErr)
	}
	return nil
}

// RTTWindow asks the client to open an output window for an RTT channel. It
// reports whether the request was delivered.
func (d *DebugAdapter) RTTWindow(channelNumber int, channelName string, format rtt.DataFormat) bool {
	body := RTTChannelConfigBody{
		ChannelNumber: channelNumber,
		ChannelName:   channelName,
		DataFormat:    format,
	}
	if err := d.SendEvent(EventRTTChannelConfig, body); err != nil {
		d.logger.Warn().Err(err).Int("channel", channelNumber).Msg("Failed to register RTT window")
		return false
	}
	return true
}

// RTTData forwards channel output to the client window of the channel.
func (d *DebugAdapter) RTTData(channelNumber int, data string) error {
	return d.SendEvent(EventRTTData, RTTDataBody{ChannelNumber: channelNumber, Data: data})
}
