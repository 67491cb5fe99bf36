package session

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/coral-mesh/coral-probe/internal/target"
)

type coreEntry struct {
	core       target.Core
	data       *CoreData
	checkedOut bool
}

// Registry owns the cores of a debug session and hands out exclusive
// handles to them.
type Registry struct {
	mu        sync.Mutex
	logger    zerolog.Logger
	sessionID string
	cores     map[int]*coreEntry
}

// NewRegistry creates an empty session.
func NewRegistry(logger zerolog.Logger) *Registry {
	sessionID := uuid.New().String()
	return &Registry{
		logger:    logger.With().Str("component", "session").Str("session_id", sessionID).Logger(),
		sessionID: sessionID,
		cores:     make(map[int]*coreEntry),
	}
}

// SessionID returns the unique id of the session.
func (r *Registry) SessionID() string {
	return r.sessionID
}

// AddCore attaches a core and its state, keyed by data.CoreIndex.
func (r *Registry) AddCore(core target.Core, data *CoreData) error {
	if core == nil || data == nil {
		return fmt.Errorf("core and core data are required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.cores[data.CoreIndex]; ok {
		return fmt.Errorf("%w: %d", ErrCoreExists, data.CoreIndex)
	}
	r.cores[data.CoreIndex] = &coreEntry{core: core, data: data}

	r.logger.Debug().
		Int("core_index", data.CoreIndex).
		Str("target", data.TargetName).
		Msg("Core attached")
	return nil
}

// RemoveCore detaches a core and discards its state. A checked-out core
// cannot be removed.
func (r *Registry) RemoveCore(coreIndex int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.cores[coreIndex]
	if !ok {
		return fmt.Errorf("%w: %d", ErrCoreNotFound, coreIndex)
	}
	if entry.checkedOut {
		return fmt.Errorf("%w: %d", ErrCoreBusy, coreIndex)
	}
	delete(r.cores, coreIndex)

	r.logger.Debug().Int("core_index", coreIndex).Msg("Core detached")
	return nil
}

// Cores returns the attached core indices in ascending order.
func (r *Registry) Cores() []int {
	r.mu.Lock()
	defer r.mu.Unlock()

	indices := make([]int, 0, len(r.cores))
	for index := range r.cores {
		indices = append(indices, index)
	}
	sort.Ints(indices)
	return indices
}

// Checkout grants exclusive access to a core for the duration of one
// request. The handle must be released when the request completes.
func (r *Registry) Checkout(coreIndex int) (*CoreHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.cores[coreIndex]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrCoreNotFound, coreIndex)
	}
	if entry.checkedOut {
		return nil, fmt.Errorf("%w: %d", ErrCoreBusy, coreIndex)
	}
	entry.checkedOut = true

	return &CoreHandle{
		core:     entry.core,
		data:     entry.data,
		registry: r,
		logger:   r.logger.With().Int("core_index", coreIndex).Logger(),
	}, nil
}

func (r *Registry) release(coreIndex int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.cores[coreIndex]; ok {
		entry.checkedOut = false
	}
}

// CoreHandle is an exclusive borrow of a core's hardware interface and its
// session state. Using a handle after Release panics: the core may already
// be checked out by another request.
type CoreHandle struct {
	core     target.Core
	data     *CoreData
	registry *Registry
	logger   zerolog.Logger

	releaseOnce sync.Once
	released    atomic.Bool
}

const releasedHandleMsg = "session: core handle used after Release"

func (h *CoreHandle) mustBeCheckedOut() {
	if h.released.Load() {
		panic(releasedHandleMsg)
	}
}

// Core returns the hardware interface of the core.
func (h *CoreHandle) Core() target.Core {
	h.mustBeCheckedOut()
	return h.core
}

// Data returns the session state of the core.
func (h *CoreHandle) Data() *CoreData {
	h.mustBeCheckedOut()
	return h.data
}

// Release returns the core to the registry. It is safe to call more than once.
func (h *CoreHandle) Release() {
	h.releaseOnce.Do(func() {
		h.released.Store(true)
		h.registry.release(h.data.CoreIndex)
	})
}
