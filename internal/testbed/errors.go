package testbed

import (
	"errors"
	"fmt"

	"github.com/san-kum/testbed/internal/backend"
	"github.com/san-kum/testbed/internal/pool"
)

var (
	// ErrQuit is returned by Tick once the operator asked to quit.
	ErrQuit = errors.New("testbed: quit requested")

	ErrNoSnapshot      = errors.New("testbed: no snapshot captured")
	ErrNoScenarios     = errors.New("testbed: no scenarios registered")
	ErrUnknownScenario = errors.New("testbed: unknown scenario")

	ErrPoolSize       = pool.ErrSize
	ErrDesync         = backend.ErrDesync
	ErrUnknownBackend = backend.ErrUnknownBackend
)

// TickError wraps a fatal failure of the active backend during a tick.
type TickError struct {
	Step    uint64
	Backend string
	Err     error
}

func (e *TickError) Error() string {
	return fmt.Sprintf("tick %d on %s: %v", e.Step, e.Backend, e.Err)
}

func (e *TickError) Unwrap() error { return e.Err }
