// Package daptest provides an in-memory protocol adapter for tests.
package daptest

import (
	"sync"

	godap "github.com/google/go-dap"

	"github.com/coral-mesh/coral-probe/internal/dap"
)

// Recorder is a dap.ProtocolAdapter that keeps every message sent.
type Recorder struct {
	mu       sync.Mutex
	messages []godap.Message

	// Err, when set, fails every send.
	Err error
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// SendMessage implements dap.ProtocolAdapter.
func (r *Recorder) SendMessage(msg godap.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.messages = append(r.messages, msg)
	return nil
}

// Messages returns all recorded messages in send order.
func (r *Recorder) Messages() []godap.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]godap.Message(nil), r.messages...)
}

// Events returns the recorded events with the given name.
func (r *Recorder) Events(name string) []*dap.EventMessage {
	var out []*dap.EventMessage
	for _, msg := range r.Messages() {
		if ev, ok := msg.(*dap.EventMessage); ok && ev.Event.Event == name {
			out = append(out, ev)
		}
	}
	return out
}

// ErrorResponses returns the recorded error responses.
func (r *Recorder) ErrorResponses() []*godap.ErrorResponse {
	var out []*godap.ErrorResponse
	for _, msg := range r.Messages() {
		if resp, ok := msg.(*godap.ErrorResponse); ok {
			out = append(out, resp)
		}
	}
	return out
}

// Reset discards all recorded messages.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = nil
}
