package session

import (
	"errors"
	"fmt"

	godap "github.com/google/go-dap"

	"github.com/coral-mesh/coral-probe/internal/debuginfo"
)

var (
	// ErrCoreNotFound is returned for a core index that is not attached.
	ErrCoreNotFound = errors.New("core not attached to session")
	// ErrCoreBusy is returned when a core is already checked out.
	ErrCoreBusy = errors.New("core is checked out by another request")
	// ErrCoreExists is returned when attaching a core index twice.
	ErrCoreExists = errors.New("core already attached to session")
	// ErrNoSourcePath is returned when a stored breakpoint location has no
	// file to re-resolve against.
	ErrNoSourcePath = errors.New("breakpoint location has no source path")
	// ErrNoDebugInfo is returned when the core has no debug information loaded.
	ErrNoDebugInfo = errors.New("no debug information loaded")
)

// HardwareOp names the hardware transaction that failed.
type HardwareOp string

const (
	OpReadStatus      HardwareOp = "read core status"
	OpSetBreakpoint   HardwareOp = "set hardware breakpoint"
	OpClearBreakpoint HardwareOp = "clear hardware breakpoint"
)

// HardwareError is a failed probe transaction. It is fatal for the request.
type HardwareError struct {
	Op      HardwareOp
	Address uint64
	Err     error
}

func (e *HardwareError) Error() string {
	if e.Op == OpReadStatus {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s at 0x%08x: %v", e.Op, e.Address, e.Err)
}

func (e *HardwareError) Unwrap() error {
	return e.Err
}

// LockedUpError reports a core that hit an unrecoverable exception.
type LockedUpError struct {
	CoreIndex   int
	Description string
}

func (e *LockedUpError) Error() string {
	return e.Description
}

// UnknownStatusError reports a core whose status cannot be determined.
type UnknownStatusError struct {
	CoreIndex int
}

func (e *UnknownStatusError) Error() string {
	return fmt.Sprintf("unknown device status received from probe for core %d", e.CoreIndex)
}

// BreakpointLocationError is returned when no valid breakpoint location
// exists for a requested source position.
type BreakpointLocationError struct {
	Path   string
	Line   uint64
	Column *uint64
	Err    error
}

func (e *BreakpointLocationError) Error() string {
	return fmt.Sprintf("Cannot set breakpoint here. Try reducing compile time-, and link time-, "+
		"optimization in your build configuration, or choose a different source location: %v", e.Err)
}

func (e *BreakpointLocationError) Unwrap() error {
	return e.Err
}

// RecomputeError is returned when a source breakpoint cannot be restored
// after the binary changed.
type RecomputeError struct {
	Source   godap.Source
	Location debuginfo.SourceLocation
	Err      error
}

func (e *RecomputeError) Error() string {
	source := e.Source.Path
	if source == "" {
		source = e.Source.Name
	}
	return fmt.Sprintf("Failed to recompute breakpoint at %s in %s. Error: %v", e.Location, source, e.Err)
}

func (e *RecomputeError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err ends the current request for the core:
// hardware failures and locked-up or unknown core states.
func IsFatal(err error) bool {
	var hwErr *HardwareError
	var lockedErr *LockedUpError
	var unknownErr *UnknownStatusError
	return errors.As(err, &hwErr) || errors.As(err, &lockedErr) || errors.As(err, &unknownErr)
}
