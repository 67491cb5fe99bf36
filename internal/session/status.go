package session

import (
	"fmt"

	godap "github.com/google/go-dap"

	"github.com/coral-mesh/coral-probe/internal/dap"
	"github.com/coral-mesh/coral-probe/internal/rtt"
	"github.com/coral-mesh/coral-probe/internal/target"
)

// ProtocolSession is the part of the protocol session a core handle uses.
// It is implemented by *dap.DebugAdapter.
type ProtocolSession interface {
	ConfigurationIsDone() bool
	AllCoresHalted() bool
	SetAllCoresHalted(halted bool)
	SendEvent(event string, body any) error
	ShowMessage(severity dap.MessageSeverity, message string) bool
	SendErrorResponse(err error) error
	RTTWindow(channelNumber int, channelName string, format rtt.DataFormat) bool
	RTTData(channelNumber int, data string) error
}

var _ ProtocolSession = (*dap.DebugAdapter)(nil)

// PollCore reads the core status and notifies the client when it differs
// from the last known status. A locked-up or unknown status fails the poll.
//
// Until the client finished configuration the status is not meaningful:
// PollCore returns Unknown without touching the hardware or the cache.
func (h *CoreHandle) PollCore(protocol ProtocolSession) (target.CoreStatus, error) {
	h.mustBeCheckedOut()
	if !protocol.ConfigurationIsDone() {
		h.logger.Trace().
			Stringer("status", h.data.LastKnownStatus).
			Msg("Ignoring core status before configuration is done")
		return target.Unknown, nil
	}

	status, err := h.core.Status()
	if err != nil {
		h.data.LastKnownStatus = target.Unknown
		return target.Unknown, &HardwareError{Op: OpReadStatus, Err: err}
	}

	previous := h.data.LastKnownStatus
	if status != previous {
		if err := h.notifyStatusChange(protocol, previous, status); err != nil {
			return status, err
		}
	}

	// Halted has sub-variants, so the cache is updated even when no
	// notification was sent.
	h.data.LastKnownStatus = status

	switch status.Kind {
	case target.StatusLockedUp:
		_, description := status.ShortLongStatus(nil)
		return status, &LockedUpError{CoreIndex: h.data.CoreIndex, Description: description}
	case target.StatusUnknown:
		return status, &UnknownStatusError{CoreIndex: h.data.CoreIndex}
	}
	return status, nil
}

func (h *CoreHandle) notifyStatusChange(protocol ProtocolSession, previous, status target.CoreStatus) error {
	coreID := h.core.ID()

	switch status.Kind {
	case target.StatusRunning, target.StatusSleeping:
		body := godap.ContinuedEventBody{
			ThreadId:            coreID,
			AllThreadsContinued: true,
		}
		if err := protocol.SendEvent("continued", body); err != nil {
			return err
		}
		h.logger.Trace().Stringer("status", status).Msg("Notified client that the core continued")

	case target.StatusHalted:
		// A step already reports its halt through the step response.
		if previous == target.Halted(target.HaltStep) {
			return nil
		}

		var pc *uint64
		if value, err := h.core.ReadCoreReg(h.core.ProgramCounter()); err == nil {
			pc = &value
		}
		reason, description := status.ShortLongStatus(pc)
		body := dap.StoppedEventBody{
			Reason:            reason,
			Description:       description,
			ThreadID:          coreID,
			PreserveFocusHint: false,
			AllThreadsStopped: protocol.AllCoresHalted(),
		}
		if err := protocol.SendEvent("stopped", body); err != nil {
			return err
		}
		h.logger.Trace().Stringer("status", status).Msg("Notified client that the core halted")

	case target.StatusLockedUp:
		_, description := status.ShortLongStatus(nil)
		protocol.ShowMessage(dap.SeverityError, description)

	case target.StatusUnknown:
		unknownErr := &UnknownStatusError{CoreIndex: h.data.CoreIndex}
		if err := protocol.SendErrorResponse(unknownErr); err != nil {
			return fmt.Errorf("%w: failed to report to client: %w", unknownErr, err)
		}

	default:
		return fmt.Errorf("unhandled core status %s", status)
	}

	return nil
}

// ResetCoreStatus marks the core as running without notifying the client.
// Requests that resume the core and expect it to halt again, such as a step,
// call it so that the next poll detects the halt as a change.
func (h *CoreHandle) ResetCoreStatus(protocol ProtocolSession) {
	h.mustBeCheckedOut()
	h.data.LastKnownStatus = target.Running
	protocol.SetAllCoresHalted(false)
}
