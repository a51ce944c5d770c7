// Package backend defines the capability contract shared by every
// simulation implementation the testbed can drive, and the registry that
// maps selector indices to them.
//
// Index 0 is always the canonical engine, which the testbed steps directly.
// Every other entry builds a shadow world from the current World State and
// writes its results back through Sync.
package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/san-kum/testbed/internal/events"
	"github.com/san-kum/testbed/internal/world"
)

var (
	// ErrDesync is returned by Sync when the backend holds a body that no
	// longer exists in the world it is synchronized into.
	ErrDesync         = errors.New("backend: state does not match world topology")
	ErrUnknownBackend = errors.New("backend: unknown backend")
)

// Backend is an alternate simulation implementation. It is built fresh from
// a World State, owns its shadow state exclusively and never modifies the
// world's colliders or joints.
type Backend interface {
	Name() string
	// Step advances the shadow state by one fixed timestep, reporting
	// contact and proximity transitions to h.
	Step(ctx context.Context, h events.Handler) error
	// Sync overwrites body poses, velocities and sleep state in w.
	Sync(w *world.World) error
}

// Settings are the solver knobs an alternate backend is built with.
type Settings struct {
	VelocityIterations int `yaml:"velocity_iterations"`
	PositionIterations int `yaml:"position_iterations"`
}

// Resolve fills unset iteration counts from the world's integration
// parameters.
func (s Settings) Resolve(p world.IntegrationParams) Settings {
	if s.VelocityIterations <= 0 {
		s.VelocityIterations = max(p.VelocityIterations, 1)
	}
	if s.PositionIterations <= 0 {
		s.PositionIterations = max(p.PositionIterations, 1)
	}
	return s
}

// DesyncError names the body that could not be mapped back.
type DesyncError struct {
	Backend string
	Body    world.BodyID
}

func (e *DesyncError) Error() string {
	return fmt.Sprintf("%s: body %d missing from world: %v", e.Backend, e.Body, ErrDesync)
}

func (e *DesyncError) Unwrap() error { return ErrDesync }

// syncBodies checks that every mirrored body still exists before applying
// any of them, so a desync leaves w untouched.
func syncBodies(w *world.World, name string, order []world.BodyID, apply func(id world.BodyID, dst *world.Body)) error {
	for _, id := range order {
		if _, ok := w.Bodies.Items[id]; !ok {
			return &DesyncError{Backend: name, Body: id}
		}
	}
	for _, id := range order {
		apply(id, w.Bodies.Items[id])
	}
	return nil
}

func orderedColliders(a, b world.ColliderID) (world.ColliderID, world.ColliderID) {
	p := world.MakePair(a, b)
	return p.A, p.B
}

func report(h events.Handler, a, b world.ColliderID, sensor, started bool) {
	if h == nil {
		return
	}
	c1, c2 := orderedColliders(a, b)
	if sensor {
		e := events.ProximityEvent{Collider1: c1, Collider2: c2, Prev: events.Disjoint, New: events.Intersecting}
		if !started {
			e.Prev, e.New = events.Intersecting, events.Disjoint
		}
		h.HandleProximity(e)
		return
	}
	kind := events.ContactStarted
	if !started {
		kind = events.ContactStopped
	}
	h.HandleContact(events.ContactEvent{Kind: kind, Collider1: c1, Collider2: c2})
}
