package session

import (
	"github.com/coral-mesh/coral-probe/internal/debuginfo"
)

// SetStackFrames replaces the captured call stack after a halt.
func (h *CoreHandle) SetStackFrames(frames []debuginfo.StackFrame) {
	h.mustBeCheckedOut()
	h.data.StackFrames = append([]debuginfo.StackFrame(nil), frames...)
}

// StackFrame returns the captured frame with the given id.
func (h *CoreHandle) StackFrame(id int64) (*debuginfo.StackFrame, bool) {
	h.mustBeCheckedOut()
	for i := range h.data.StackFrames {
		if h.data.StackFrames[i].ID == id {
			return &h.data.StackFrames[i], true
		}
	}
	return nil, false
}
