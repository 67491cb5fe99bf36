package session

import (
	"fmt"

	godap "github.com/google/go-dap"

	"github.com/coral-mesh/coral-probe/internal/debuginfo"
)

// BreakpointKind is the origin of a hardware breakpoint: SourceBreakpoint,
// InstructionBreakpoint or StepBreakpoint.
type BreakpointKind interface {
	// Equal reports whether other is the same kind with the same payload.
	Equal(other BreakpointKind) bool
	String() string
}

// SourceBreakpoint is requested by the client for a source position. It keeps
// what is needed to resolve the position again after a rebuild.
type SourceBreakpoint struct {
	Source   godap.Source
	Location debuginfo.SourceLocation
}

// Equal implements BreakpointKind.
func (b SourceBreakpoint) Equal(other BreakpointKind) bool {
	o, ok := other.(SourceBreakpoint)
	if !ok {
		return false
	}
	return b.Source.Path == o.Source.Path &&
		b.Source.Name == o.Source.Name &&
		b.Source.SourceReference == o.Source.SourceReference &&
		b.Location.Equal(o.Location)
}

func (b SourceBreakpoint) String() string {
	return fmt.Sprintf("source(%s)", b.Location)
}

// InstructionBreakpoint is requested by the client for an address.
type InstructionBreakpoint struct{}

// Equal implements BreakpointKind.
func (InstructionBreakpoint) Equal(other BreakpointKind) bool {
	_, ok := other.(InstructionBreakpoint)
	return ok
}

func (InstructionBreakpoint) String() string {
	return "instruction"
}

// StepBreakpoint is a transient breakpoint placed by the debugger while
// stepping.
type StepBreakpoint struct{}

// Equal implements BreakpointKind.
func (StepBreakpoint) Equal(other BreakpointKind) bool {
	_, ok := other.(StepBreakpoint)
	return ok
}

func (StepBreakpoint) String() string {
	return "step"
}

// ActiveBreakpoint is a breakpoint installed in a hardware slot.
type ActiveBreakpoint struct {
	Address uint64
	Kind    BreakpointKind
}

// SetBreakpoint installs a hardware breakpoint at address and records it.
// The caller ensures address is not already set.
func (h *CoreHandle) SetBreakpoint(address uint64, kind BreakpointKind) error {
	h.mustBeCheckedOut()
	if err := h.core.SetHWBreakpoint(address); err != nil {
		return &HardwareError{Op: OpSetBreakpoint, Address: address, Err: err}
	}
	h.data.Breakpoints = append(h.data.Breakpoints, ActiveBreakpoint{Address: address, Kind: kind})

	h.logger.Debug().
		Str("address", fmt.Sprintf("0x%08x", address)).
		Stringer("kind", kind).
		Msg("Breakpoint set")
	return nil
}

// ClearBreakpoint clears the hardware breakpoint at address and removes the
// first record for it, if any.
func (h *CoreHandle) ClearBreakpoint(address uint64) error {
	h.mustBeCheckedOut()
	if err := h.core.ClearHWBreakpoint(address); err != nil {
		return &HardwareError{Op: OpClearBreakpoint, Address: address, Err: err}
	}

	for i, bp := range h.data.Breakpoints {
		if bp.Address == address {
			h.data.Breakpoints = append(h.data.Breakpoints[:i], h.data.Breakpoints[i+1:]...)
			break
		}
	}

	h.logger.Debug().
		Str("address", fmt.Sprintf("0x%08x", address)).
		Msg("Breakpoint cleared")
	return nil
}

// ClearBreakpoints clears every breakpoint of the given kind. A nil kind
// clears source breakpoints only. It stops at the first hardware failure.
func (h *CoreHandle) ClearBreakpoints(kind BreakpointKind) error {
	h.mustBeCheckedOut()
	var addresses []uint64
	for _, bp := range h.data.Breakpoints {
		if matchesKind(kind, bp.Kind) {
			addresses = append(addresses, bp.Address)
		}
	}

	for _, address := range addresses {
		if err := h.ClearBreakpoint(address); err != nil {
			return err
		}
	}
	return nil
}

func matchesKind(filter, kind BreakpointKind) bool {
	if filter == nil {
		_, ok := kind.(SourceBreakpoint)
		return ok
	}
	return filter.Equal(kind)
}

// VerifyAndSetBreakpoint resolves the nearest valid breakpoint location for
// the requested source position and sets a source breakpoint there. It
// returns the location actually used.
func (h *CoreHandle) VerifyAndSetBreakpoint(sourcePath string, line uint64, column *uint64, source godap.Source) (debuginfo.VerifiedBreakpoint, error) {
	h.mustBeCheckedOut()
	if h.data.DebugInfo == nil {
		return debuginfo.VerifiedBreakpoint{}, &BreakpointLocationError{Path: sourcePath, Line: line, Column: column, Err: ErrNoDebugInfo}
	}

	verified, err := h.data.DebugInfo.BreakpointLocation(sourcePath, line, column)
	if err != nil {
		return debuginfo.VerifiedBreakpoint{}, &BreakpointLocationError{Path: sourcePath, Line: line, Column: column, Err: err}
	}

	kind := SourceBreakpoint{Source: source, Location: verified.SourceLocation}
	if err := h.SetBreakpoint(verified.Address, kind); err != nil {
		return debuginfo.VerifiedBreakpoint{}, err
	}
	return verified, nil
}

// RecomputeBreakpoints moves every source breakpoint to the address its
// location maps to in the current debug information. It stops at the first
// failure: the failing breakpoint is dropped, later source breakpoints stay
// installed at their old address. Every failure is a *RecomputeError.
func (h *CoreHandle) RecomputeBreakpoints() error {
	h.mustBeCheckedOut()
	snapshot := append([]ActiveBreakpoint(nil), h.data.Breakpoints...)

	for _, bp := range snapshot {
		src, ok := bp.Kind.(SourceBreakpoint)
		if !ok {
			continue
		}

		if err := h.ClearBreakpoint(bp.Address); err != nil {
			return &RecomputeError{Source: src.Source, Location: src.Location, Err: err}
		}

		path, ok := src.Location.CombinedPath()
		if !ok {
			return &RecomputeError{Source: src.Source, Location: src.Location, Err: ErrNoSourcePath}
		}
		var column *uint64
		if src.Location.Column != nil {
			c := src.Location.Column.Normalized()
			column = &c
		}

		if _, err := h.VerifyAndSetBreakpoint(path, src.Location.Line, column, src.Source); err != nil {
			return &RecomputeError{Source: src.Source, Location: src.Location, Err: err}
		}
	}
	return nil
}

// ReloadBinary refreshes the debug information after the binary at path was
// flashed. When its fingerprint is unchanged nothing is done; otherwise load
// provides the new debug information and source breakpoints are recomputed.
// It reports whether the debug information was replaced.
func (h *CoreHandle) ReloadBinary(path string, load func(path string) (debuginfo.Resolver, error)) (bool, error) {
	h.mustBeCheckedOut()
	sum, err := debuginfo.FingerprintFile(path, h.logger)
	if err != nil {
		return false, err
	}

	if previous, ok := h.data.Fingerprint(); ok && previous == sum {
		h.logger.Debug().Str("binary", path).Msg("Binary unchanged, keeping breakpoints")
		return false, nil
	}

	info, err := load(path)
	if err != nil {
		return false, fmt.Errorf("failed to load debug info: %w", err)
	}
	h.data.DebugInfo = info
	h.data.SetFingerprint(sum)

	h.logger.Info().
		Str("binary", path).
		Int("breakpoints", len(h.data.Breakpoints)).
		Msg("Binary changed, recomputing breakpoints")

	return true, h.RecomputeBreakpoints()
}
