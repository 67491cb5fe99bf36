// Package target models the hardware side of a debug session: the execution
// status of a core, the debug-probe operations available on it, and the memory
// map of the device.
package target

import "fmt"

// HaltReason describes why a core entered the halted state.
type HaltReason int

const (
	// HaltUnknown is reported when the probe cannot determine the cause.
	HaltUnknown HaltReason = iota
	// HaltMultiple means several halt conditions were signalled at once.
	HaltMultiple
	// HaltBreakpoint is a hardware or software breakpoint hit.
	HaltBreakpoint
	// HaltException is a fault or exception trap.
	HaltException
	// HaltWatchpoint is a data watchpoint hit.
	HaltWatchpoint
	// HaltStep is the completion of a single instruction or statement step.
	HaltStep
	// HaltRequest is a halt requested by the debugger.
	HaltRequest
	// HaltExternal is a halt requested by an external source (e.g. another core).
	HaltExternal
)

// String returns a string representation of the halt reason.
func (r HaltReason) String() string {
	switch r {
	case HaltMultiple:
		return "multiple"
	case HaltBreakpoint:
		return "breakpoint"
	case HaltException:
		return "exception"
	case HaltWatchpoint:
		return "watchpoint"
	case HaltStep:
		return "step"
	case HaltRequest:
		return "request"
	case HaltExternal:
		return "external"
	default:
		return "unknown"
	}
}

// label is the short, client-facing name of the halt reason.
func (r HaltReason) label() string {
	switch r {
	case HaltMultiple:
		return "Multiple"
	case HaltBreakpoint:
		return "Breakpoint"
	case HaltException:
		return "Exception"
	case HaltWatchpoint:
		return "Data Breakpoint"
	case HaltStep:
		return "Step"
	case HaltRequest:
		return "Pause"
	case HaltExternal:
		return "External"
	default:
		return "Unknown"
	}
}

// StatusKind is the coarse execution state of a core.
type StatusKind int

const (
	// StatusUnknown means the status could not be determined.
	StatusUnknown StatusKind = iota
	// StatusRunning means the core is executing instructions.
	StatusRunning
	// StatusSleeping means the core is in a low power wait state.
	StatusSleeping
	// StatusHalted means the core is stopped under debugger control.
	StatusHalted
	// StatusLockedUp means the core hit an unrecoverable fault.
	StatusLockedUp
)

// String returns a string representation of the status kind.
func (k StatusKind) String() string {
	switch k {
	case StatusRunning:
		return "running"
	case StatusSleeping:
		return "sleeping"
	case StatusHalted:
		return "halted"
	case StatusLockedUp:
		return "locked-up"
	default:
		return "unknown"
	}
}

// CoreStatus is the observed state of a core. Reason is only meaningful when
// Kind is StatusHalted; constructors keep it zero otherwise so that two
// statuses compare equal with == exactly when they describe the same state.
// The zero value is Unknown.
type CoreStatus struct {
	Kind   StatusKind
	Reason HaltReason
}

var (
	// Running is the status of an executing core.
	Running = CoreStatus{Kind: StatusRunning}
	// Sleeping is the status of a core in a wait-for-interrupt state.
	Sleeping = CoreStatus{Kind: StatusSleeping}
	// LockedUp is the status of a core in lockup.
	LockedUp = CoreStatus{Kind: StatusLockedUp}
	// Unknown is the status of a core that could not be read.
	Unknown = CoreStatus{Kind: StatusUnknown}
)

// Halted returns the halted status for the given reason.
func Halted(reason HaltReason) CoreStatus {
	return CoreStatus{Kind: StatusHalted, Reason: reason}
}

// IsHalted reports whether the core is halted, for any reason.
func (s CoreStatus) IsHalted() bool {
	return s.Kind == StatusHalted
}

// IsRunning reports whether the core is executing or sleeping.
func (s CoreStatus) IsRunning() bool {
	return s.Kind == StatusRunning || s.Kind == StatusSleeping
}

// String returns a string representation of the status.
func (s CoreStatus) String() string {
	if s.Kind == StatusHalted {
		return fmt.Sprintf("halted(%s)", s.Reason)
	}
	return s.Kind.String()
}

// ShortLongStatus returns a short label and a longer description of the
// status, suitable for a DAP stopped event. The program counter, when known,
// is included in the description of a halted core.
func (s CoreStatus) ShortLongStatus(pc *uint64) (string, string) {
	switch s.Kind {
	case StatusRunning:
		return "Running", "Core is running"
	case StatusSleeping:
		return "Sleeping", "Core is in SLEEP mode"
	case StatusLockedUp:
		return "Locked Up", "Core is in LOCKUP status - it encountered an unrecoverable exception"
	case StatusHalted:
		if pc != nil {
			return s.Reason.label(), fmt.Sprintf("Core halted at address 0x%08x", *pc)
		}
		return s.Reason.label(), "Core halted"
	default:
		return "Unknown", "Cannot determine target core state"
	}
}
