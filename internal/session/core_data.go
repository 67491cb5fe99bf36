// Package session holds the per-core state of a debug session and the
// operations a request handler performs on a checked-out core: status
// polling with protocol notifications, the hardware breakpoint lifecycle,
// RTT attachment and the captured stack frames.
package session

import (
	"github.com/coral-mesh/coral-probe/internal/debuginfo"
	"github.com/coral-mesh/coral-probe/internal/retry"
	"github.com/coral-mesh/coral-probe/internal/rtt"
	"github.com/coral-mesh/coral-probe/internal/target"
)

// CoreData is the state kept for one core for the lifetime of the session.
type CoreData struct {
	CoreIndex int

	// LastKnownStatus is the status observed by the last poll. Requests that
	// implicitly resume the core set it to Running without a notification so
	// that the next poll reports the resulting halt.
	LastKnownStatus target.CoreStatus

	TargetName string
	DebugInfo  debuginfo.Resolver

	// StackFrames is valid from a halt until the next resume.
	StackFrames []debuginfo.StackFrame
	Breakpoints []ActiveBreakpoint

	rtt         RTTConnection
	rttThrottle *retry.Throttle

	fingerprint    uint64
	hasFingerprint bool
}

// NewCoreData creates the state of a newly attached core.
func NewCoreData(coreIndex int, targetName string, info debuginfo.Resolver, rttRetry retry.Config) *CoreData {
	return &CoreData{
		CoreIndex:       coreIndex,
		LastKnownStatus: target.Unknown,
		TargetName:      targetName,
		DebugInfo:       info,
		rtt:             RTTDisconnected{},
		rttThrottle:     retry.NewThrottle(rttRetry),
	}
}

// RTT returns the RTT connection state. It is never nil.
func (d *CoreData) RTT() RTTConnection {
	if d.rtt == nil {
		return RTTDisconnected{}
	}
	return d.rtt
}

// Fingerprint returns the fingerprint of the loaded binary, if one was
// recorded.
func (d *CoreData) Fingerprint() (uint64, bool) {
	return d.fingerprint, d.hasFingerprint
}

// SetFingerprint records the fingerprint of the binary the debug info was
// loaded from.
func (d *CoreData) SetFingerprint(sum uint64) {
	d.fingerprint = sum
	d.hasFingerprint = true
}

// RTTConnection is either RTTDisconnected or *RTTConnected.
type RTTConnection interface {
	isRTTConnection()
}

// RTTDisconnected is the state before a successful attach. A failed attach
// leaves the connection in this state.
type RTTDisconnected struct{}

// RTTConnected is an attached RTT control block and the channels announced
// to the client.
type RTTConnected struct {
	Target   *rtt.ActiveTarget
	Channels []DebuggerRTTChannel
}

// DebuggerRTTChannel tracks whether the client opened a window for a channel.
type DebuggerRTTChannel struct {
	ChannelNumber   int
	HasClientWindow bool
}

func (RTTDisconnected) isRTTConnection() {}
func (*RTTConnected) isRTTConnection()   {}
