package session

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	godap "github.com/google/go-dap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coral-mesh/coral-probe/internal/debuginfo"
)

var mainSource = godap.Source{Name: "main.c", Path: "main.c"}

func addresses(bps []ActiveBreakpoint) []uint64 {
	out := make([]uint64, 0, len(bps))
	for _, bp := range bps {
		out = append(out, bp.Address)
	}
	return out
}

func TestSetAndClearBreakpoint(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.handle.SetBreakpoint(0x0800_0100, InstructionBreakpoint{}))
	assert.True(t, f.core.Installed[0x0800_0100])
	assert.Equal(t, []uint64{0x0800_0100}, addresses(f.handle.Data().Breakpoints))

	require.NoError(t, f.handle.ClearBreakpoint(0x0800_0100))
	assert.False(t, f.core.Installed[0x0800_0100])
	assert.Empty(t, f.handle.Data().Breakpoints)
}

func TestSetBreakpoint_HardwareFailure(t *testing.T) {
	f := newFixture(t)
	slotErr := errors.New("no free comparator")
	f.core.SetErr[0x0800_0100] = slotErr

	err := f.handle.SetBreakpoint(0x0800_0100, InstructionBreakpoint{})
	require.Error(t, err)
	assert.ErrorIs(t, err, slotErr)

	var hwErr *HardwareError
	require.ErrorAs(t, err, &hwErr)
	assert.Equal(t, OpSetBreakpoint, hwErr.Op)
	assert.Equal(t, uint64(0x0800_0100), hwErr.Address)
	assert.Contains(t, err.Error(), "0x08000100")
	assert.Empty(t, f.handle.Data().Breakpoints)
}

func TestClearBreakpoint(t *testing.T) {
	t.Run("hardware failure leaves cache untouched", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.handle.SetBreakpoint(0x0800_0100, InstructionBreakpoint{}))
		f.core.ClearErr[0x0800_0100] = errors.New("probe timeout")

		err := f.handle.ClearBreakpoint(0x0800_0100)
		require.Error(t, err)
		assert.True(t, IsFatal(err))
		assert.Len(t, f.handle.Data().Breakpoints, 1)
	})

	t.Run("address without record", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.handle.SetBreakpoint(0x0800_0100, InstructionBreakpoint{}))

		require.NoError(t, f.handle.ClearBreakpoint(0x0800_0200))
		assert.Equal(t, []uint64{0x0800_0200}, f.core.ClearCalls)
		assert.Len(t, f.handle.Data().Breakpoints, 1)
	})

	t.Run("duplicate address removes first record", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.handle.SetBreakpoint(0x0800_0100, StepBreakpoint{}))
		require.NoError(t, f.handle.SetBreakpoint(0x0800_0100, InstructionBreakpoint{}))

		require.NoError(t, f.handle.ClearBreakpoint(0x0800_0100))
		require.Len(t, f.handle.Data().Breakpoints, 1)
		assert.Equal(t, InstructionBreakpoint{}, f.handle.Data().Breakpoints[0].Kind)
	})
}

func TestClearBreakpoints(t *testing.T) {
	source := SourceBreakpoint{Source: mainSource, Location: debuginfo.SourceLocation{File: "main.c", Line: 42}}
	other := SourceBreakpoint{Source: mainSource, Location: debuginfo.SourceLocation{File: "main.c", Line: 50}}

	tests := []struct {
		name   string
		filter BreakpointKind
		want   []uint64
	}{
		{name: "nil filter clears source breakpoints only", filter: nil, want: []uint64{0x0800_0300, 0x0800_0400}},
		{name: "instruction filter", filter: InstructionBreakpoint{}, want: []uint64{0x0800_0100, 0x0800_0200, 0x0800_0400}},
		{name: "step filter", filter: StepBreakpoint{}, want: []uint64{0x0800_0100, 0x0800_0200, 0x0800_0300}},
		{name: "source filter matches payload", filter: source, want: []uint64{0x0800_0200, 0x0800_0300, 0x0800_0400}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			require.NoError(t, f.handle.SetBreakpoint(0x0800_0100, source))
			require.NoError(t, f.handle.SetBreakpoint(0x0800_0200, other))
			require.NoError(t, f.handle.SetBreakpoint(0x0800_0300, InstructionBreakpoint{}))
			require.NoError(t, f.handle.SetBreakpoint(0x0800_0400, StepBreakpoint{}))

			require.NoError(t, f.handle.ClearBreakpoints(tt.filter))
			assert.Equal(t, tt.want, addresses(f.handle.Data().Breakpoints))
		})
	}
}

func TestClearBreakpoints_StopsAtFirstFailure(t *testing.T) {
	f := newFixture(t)
	for _, addr := range []uint64{0x0800_0100, 0x0800_0200, 0x0800_0300} {
		kind := SourceBreakpoint{Source: mainSource, Location: debuginfo.SourceLocation{File: "main.c", Line: addr}}
		require.NoError(t, f.handle.SetBreakpoint(addr, kind))
	}
	f.core.ClearErr[0x0800_0200] = errors.New("probe timeout")

	err := f.handle.ClearBreakpoints(nil)
	require.Error(t, err)

	assert.Equal(t, []uint64{0x0800_0200, 0x0800_0300}, addresses(f.handle.Data().Breakpoints))
	assert.True(t, f.core.Installed[0x0800_0300], "unprocessed breakpoint stays installed")
}

func TestVerifyAndSetBreakpoint(t *testing.T) {
	f := newFixture(t)
	f.resolver.add("main.c", 42, 0x0800_0100)
	column := uint64(5)

	verified, err := f.handle.VerifyAndSetBreakpoint("main.c", 42, &column, mainSource)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x0800_0100), verified.Address)
	assert.Equal(t, uint64(42), verified.SourceLocation.Line)

	require.Len(t, f.resolver.calls, 1)
	assert.Equal(t, &column, f.resolver.calls[0].column)

	require.Len(t, f.handle.Data().Breakpoints, 1)
	bp := f.handle.Data().Breakpoints[0]
	assert.Equal(t, uint64(0x0800_0100), bp.Address)
	kind, ok := bp.Kind.(SourceBreakpoint)
	require.True(t, ok)
	assert.Equal(t, mainSource.Path, kind.Source.Path)
	assert.True(t, kind.Location.Equal(verified.SourceLocation))
	assert.True(t, f.core.Installed[0x0800_0100])
}

func TestVerifyAndSetBreakpoint_Unresolvable(t *testing.T) {
	f := newFixture(t)

	_, err := f.handle.VerifyAndSetBreakpoint("main.c", 99, nil, mainSource)
	require.Error(t, err)

	var locErr *BreakpointLocationError
	require.ErrorAs(t, err, &locErr)
	assert.Equal(t, "main.c", locErr.Path)
	assert.Equal(t, uint64(99), locErr.Line)
	assert.ErrorIs(t, err, debuginfo.ErrNoValidLocation)
	assert.Contains(t, err.Error(), "Try reducing compile time-, and link time-, optimization")
	assert.False(t, IsFatal(err))

	assert.Empty(t, f.handle.Data().Breakpoints)
	assert.Empty(t, f.core.SetCalls)
}

func TestVerifyAndSetBreakpoint_NoDebugInfo(t *testing.T) {
	f := newFixture(t)
	f.handle.Data().DebugInfo = nil

	_, err := f.handle.VerifyAndSetBreakpoint("main.c", 42, nil, mainSource)
	assert.ErrorIs(t, err, ErrNoDebugInfo)
}

func TestRecomputeBreakpoints(t *testing.T) {
	f := newFixture(t)
	f.resolver.add("main.c", 42, 0x0800_0100)

	_, err := f.handle.VerifyAndSetBreakpoint("main.c", 42, nil, mainSource)
	require.NoError(t, err)
	require.NoError(t, f.handle.SetBreakpoint(0x0800_0500, InstructionBreakpoint{}))

	// Rebuilt binary: line 42 moved.
	f.resolver.add("main.c", 42, 0x0800_0108)

	require.NoError(t, f.handle.RecomputeBreakpoints())

	assert.Contains(t, f.core.ClearCalls, uint64(0x0800_0100))
	assert.False(t, f.core.Installed[0x0800_0100])
	assert.True(t, f.core.Installed[0x0800_0108])
	assert.True(t, f.core.Installed[0x0800_0500], "instruction breakpoint untouched")
	assert.ElementsMatch(t, []uint64{0x0800_0500, 0x0800_0108}, addresses(f.handle.Data().Breakpoints))
}

func TestRecomputeBreakpoints_ColumnNormalized(t *testing.T) {
	f := newFixture(t)
	leftEdge := debuginfo.LeftEdge()
	kind := SourceBreakpoint{
		Source:   mainSource,
		Location: debuginfo.SourceLocation{Directory: "/src", File: "main.c", Line: 42, Column: &leftEdge},
	}
	require.NoError(t, f.handle.SetBreakpoint(0x0800_0100, kind))
	f.resolver.add("/src/main.c", 42, 0x0800_0108)

	require.NoError(t, f.handle.RecomputeBreakpoints())

	require.Len(t, f.resolver.calls, 1)
	assert.Equal(t, "/src/main.c", f.resolver.calls[0].path)
	require.NotNil(t, f.resolver.calls[0].column)
	assert.Equal(t, uint64(0), *f.resolver.calls[0].column)
}

func TestRecomputeBreakpoints_FailFast(t *testing.T) {
	f := newFixture(t)
	f.resolver.add("main.c", 10, 0x0800_0100)
	f.resolver.add("main.c", 20, 0x0800_0200)
	f.resolver.add("main.c", 30, 0x0800_0300)

	for _, line := range []uint64{10, 20, 30} {
		_, err := f.handle.VerifyAndSetBreakpoint("main.c", line, nil, mainSource)
		require.NoError(t, err)
	}

	// After the rebuild line 10 moved and line 20 has no code any more.
	f.resolver.add("main.c", 10, 0x0800_0110)
	delete(f.resolver.locations, "main.c:20")

	err := f.handle.RecomputeBreakpoints()
	require.Error(t, err)

	var recomputeErr *RecomputeError
	require.ErrorAs(t, err, &recomputeErr)
	assert.Equal(t, uint64(20), recomputeErr.Location.Line)
	assert.Equal(t, "main.c", recomputeErr.Source.Path)
	assert.Contains(t, err.Error(), "main.c:20")
	assert.ErrorIs(t, err, debuginfo.ErrNoValidLocation)
	assert.False(t, IsFatal(err))

	assert.True(t, f.core.Installed[0x0800_0110], "resolvable breakpoint reset")
	assert.False(t, f.core.Installed[0x0800_0200], "failing breakpoint cleared")
	assert.True(t, f.core.Installed[0x0800_0300], "not yet reached")
	assert.NotContains(t, f.core.ClearCalls, uint64(0x0800_0300))
	assert.ElementsMatch(t, []uint64{0x0800_0300, 0x0800_0110}, addresses(f.handle.Data().Breakpoints))
}

func TestRecomputeBreakpoints_ClearFailure(t *testing.T) {
	f := newFixture(t)
	f.resolver.add("main.c", 42, 0x0800_0100)
	_, err := f.handle.VerifyAndSetBreakpoint("main.c", 42, nil, mainSource)
	require.NoError(t, err)

	probeErr := errors.New("probe disconnected")
	f.core.ClearErr = map[uint64]error{0x0800_0100: probeErr}

	err = f.handle.RecomputeBreakpoints()
	require.Error(t, err)

	var recomputeErr *RecomputeError
	require.ErrorAs(t, err, &recomputeErr)
	assert.Equal(t, uint64(42), recomputeErr.Location.Line)

	var hwErr *HardwareError
	require.ErrorAs(t, err, &hwErr)
	assert.Equal(t, OpClearBreakpoint, hwErr.Op)
	assert.ErrorIs(t, err, probeErr)
	assert.True(t, IsFatal(err))
	assert.True(t, f.core.Installed[0x0800_0100])
	assert.Equal(t, []uint64{0x0800_0100}, addresses(f.handle.Data().Breakpoints))
}

func TestRecomputeBreakpoints_NoSourcePath(t *testing.T) {
	f := newFixture(t)
	kind := SourceBreakpoint{Source: mainSource, Location: debuginfo.SourceLocation{Line: 42}}
	require.NoError(t, f.handle.SetBreakpoint(0x0800_0100, kind))

	err := f.handle.RecomputeBreakpoints()
	assert.ErrorIs(t, err, ErrNoSourcePath)

	var recomputeErr *RecomputeError
	assert.ErrorAs(t, err, &recomputeErr)
}

func TestReloadBinary(t *testing.T) {
	f := newFixture(t)
	f.resolver.add("main.c", 42, 0x0800_0100)
	_, err := f.handle.VerifyAndSetBreakpoint("main.c", 42, nil, mainSource)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "firmware.elf")
	require.NoError(t, os.WriteFile(path, []byte("firmware v1"), 0o600))

	rebuilt := newFakeResolver()
	rebuilt.add("main.c", 42, 0x0800_0108)
	loads := 0
	load := func(string) (debuginfo.Resolver, error) {
		loads++
		return rebuilt, nil
	}

	reloaded, err := f.handle.ReloadBinary(path, load)
	require.NoError(t, err)
	assert.True(t, reloaded)
	assert.True(t, f.core.Installed[0x0800_0108])
	assert.Same(t, rebuilt, f.handle.Data().DebugInfo)

	// Same content again: nothing to do.
	reloaded, err = f.handle.ReloadBinary(path, load)
	require.NoError(t, err)
	assert.False(t, reloaded)
	assert.Equal(t, 1, loads)

	// New content is loaded.
	require.NoError(t, os.WriteFile(path, []byte("firmware v2"), 0o600))
	reloaded, err = f.handle.ReloadBinary(path, load)
	require.NoError(t, err)
	assert.True(t, reloaded)
	assert.Equal(t, 2, loads)
}

func TestReloadBinary_Errors(t *testing.T) {
	f := newFixture(t)

	_, err := f.handle.ReloadBinary(filepath.Join(t.TempDir(), "missing.elf"), nil)
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "firmware.elf")
	require.NoError(t, os.WriteFile(path, []byte("firmware"), 0o600))
	loadErr := errors.New("no DWARF")
	_, err = f.handle.ReloadBinary(path, func(string) (debuginfo.Resolver, error) {
		return nil, loadErr
	})
	assert.ErrorIs(t, err, loadErr)
	_, ok := f.handle.Data().Fingerprint()
	assert.False(t, ok, "fingerprint only recorded after a successful load")
}

func TestBreakpointKind_Equal(t *testing.T) {
	a := SourceBreakpoint{Source: mainSource, Location: debuginfo.SourceLocation{File: "main.c", Line: 42}}
	b := SourceBreakpoint{Source: mainSource, Location: debuginfo.SourceLocation{File: "main.c", Line: 43}}

	assert.True(t, a.Equal(a))
	assert.False(t, a.Equal(b))
	assert.False(t, a.Equal(InstructionBreakpoint{}))
	assert.True(t, InstructionBreakpoint{}.Equal(InstructionBreakpoint{}))
	assert.False(t, InstructionBreakpoint{}.Equal(StepBreakpoint{}))
	assert.True(t, StepBreakpoint{}.Equal(StepBreakpoint{}))
	assert.Equal(t, "source(main.c:42)", a.String())
}
