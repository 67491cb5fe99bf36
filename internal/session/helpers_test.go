package session

import (
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/coral-mesh/coral-probe/internal/dap"
	"github.com/coral-mesh/coral-probe/internal/dap/daptest"
	"github.com/coral-mesh/coral-probe/internal/debuginfo"
	"github.com/coral-mesh/coral-probe/internal/retry"
	"github.com/coral-mesh/coral-probe/internal/testutil"
)

type resolveCall struct {
	path   string
	line   uint64
	column *uint64
}

// fakeResolver maps "path:line" to a verified breakpoint.
type fakeResolver struct {
	locations map[string]debuginfo.VerifiedBreakpoint
	calls     []resolveCall
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{locations: make(map[string]debuginfo.VerifiedBreakpoint)}
}

func (r *fakeResolver) add(path string, line uint64, addr uint64) {
	r.locations[fmt.Sprintf("%s:%d", path, line)] = debuginfo.VerifiedBreakpoint{
		Address:        addr,
		SourceLocation: debuginfo.SourceLocation{File: path, Line: line},
	}
}

func (r *fakeResolver) BreakpointLocation(path string, line uint64, column *uint64) (debuginfo.VerifiedBreakpoint, error) {
	r.calls = append(r.calls, resolveCall{path: path, line: line, column: column})
	verified, ok := r.locations[fmt.Sprintf("%s:%d", path, line)]
	if !ok {
		return debuginfo.VerifiedBreakpoint{}, debuginfo.ErrNoValidLocation
	}
	return verified, nil
}

type fixture struct {
	core     *testutil.FakeCore
	resolver *fakeResolver
	registry *Registry
	handle   *CoreHandle
	rec      *daptest.Recorder
	adapter  *dap.DebugAdapter
}

// newFixture checks out core 0 of a fresh session whose client finished
// configuration.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		core:     testutil.NewFakeCore(0),
		resolver: newFakeResolver(),
		registry: NewRegistry(zerolog.Nop()),
		rec:      daptest.NewRecorder(),
	}
	data := NewCoreData(0, "nrf52840_xxAA", f.resolver, retry.Config{})
	require.NoError(t, f.registry.AddCore(f.core, data))

	handle, err := f.registry.Checkout(0)
	require.NoError(t, err)
	t.Cleanup(handle.Release)
	f.handle = handle

	f.adapter = dap.NewDebugAdapter(f.rec, zerolog.Nop())
	f.adapter.SetConfigurationDone()
	return f
}
