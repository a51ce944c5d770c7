package testbed

import (
	"context"
	"errors"

	"github.com/san-kum/testbed/internal/snapshot"
	"github.com/san-kum/testbed/internal/world"
)

// Tick performs one frame: pending actions, flag reconciliation, and up to
// StepsPerFrame simulation ticks if the run mode allows. A single step
// request performs exactly one tick. Tick returns ErrQuit once the operator
// has quit; backend failures are returned as *TickError.
func (tb *Testbed) Tick(ctx context.Context) error {
	if tb.run.Mode() == Quit {
		return ErrQuit
	}

	exampleChanged, err := tb.handleActions()
	if err != nil {
		return err
	}
	if err := tb.reconcile(exampleChanged); err != nil {
		return err
	}

	if tb.run.CanStep() {
		n := tb.stepsPerFrame
		if tb.run.Mode() == SingleStep {
			n = 1
		}
		for i := 0; i < n; i++ {
			if err := tb.Advance(ctx); err != nil {
				return err
			}
		}
	}

	tb.run.afterTick()
	return nil
}

// handleActions honors pending one-shot requests. Backend changes and
// restarts both reload the current scenario.
func (tb *Testbed) handleActions() (bool, error) {
	a := &tb.actions
	if a.BackendChanged {
		a.BackendChanged = false
		a.ExampleChanged = true
	}
	if a.Restart {
		a.Restart = false
		a.ExampleChanged = true
	}

	exampleChanged := a.ExampleChanged
	if exampleChanged {
		a.ExampleChanged = false
		if err := tb.load(); err != nil {
			return false, err
		}
	}

	if a.TakeSnapshot {
		a.TakeSnapshot = false
		if _, err := tb.CaptureNow(); err != nil {
			tb.log.Warn("snapshot capture failed, keeping previous snapshot", "step", tb.step, "err", err)
		}
	}

	if a.RestoreSnapshot {
		a.RestoreSnapshot = false
		if err := tb.RestoreNow(); err != nil {
			var re *snapshot.RestoreError
			if !errors.As(err, &re) && !errors.Is(err, ErrNoSnapshot) {
				return false, err
			}
			tb.log.Warn("snapshot restore failed, keeping live state", "step", tb.step, "err", err)
		}
	}

	if a.ResetWorldGraphics {
		a.ResetWorldGraphics = false
		if tb.observer != nil {
			tb.observer.WorldReset(tb.world)
		}
	}
	return exampleChanged, nil
}

// reconcile applies the edges between the flags of the previous tick and
// the current ones, then records the current flags as previous. Edges that
// change body activation or integration parameters rebuild an alternate
// backend from the updated world.
func (tb *Testbed) reconcile(exampleChanged bool) error {
	changed := edges(tb.prevFlags, tb.flags)
	rebuild := false
	if exampleChanged && tb.observer != nil {
		tb.observer.FlagChanged(FlagWireframe, tb.flags.Wireframe)
		tb.observer.FlagChanged(FlagAABBs, tb.flags.AABBs)
	}

	for _, f := range changed {
		on := tb.flags.Get(f)
		switch f {
		case FlagSleep:
			applySleep(tb.world, on)
			rebuild = true
		case FlagSubStepping:
			tb.params.ReturnAfterCCDSubstep = on
			tb.world.Params.ReturnAfterCCDSubstep = on
			rebuild = true
		default:
			if tb.observer != nil {
				tb.observer.FlagChanged(f, on)
			}
		}
		tb.log.Debug("flag changed", "flag", f, "on", on)
	}
	tb.prevFlags = tb.flags

	if rebuild && tb.shadow != nil {
		if err := tb.rebuildBackend(); err != nil {
			return &TickError{Step: tb.step, Backend: tb.backends.Name(tb.active), Err: err}
		}
	}
	return nil
}

// Advance performs exactly one simulation tick regardless of the run mode:
// the active backend steps, callbacks run in registration order and the
// event queues are drained.
func (tb *Testbed) Advance(ctx context.Context) error {
	tb.step++
	name := tb.backends.Name(tb.active)

	start := tb.clock()
	var err error
	if tb.shadow == nil {
		err = tb.pipeline.Step(ctx, tb.world, tb.events)
		tb.counters.Engine = tb.pipeline.Counters()
	} else {
		err = tb.shadow.Step(ctx, tb.events)
		if err == nil {
			err = tb.shadow.Sync(tb.world)
		}
	}
	elapsed := tb.clock().Sub(start)
	if err != nil {
		tb.events.Poll()
		return &TickError{Step: tb.step, Backend: name, Err: err}
	}

	tb.counters.StepTime = elapsed
	tb.counters.Total += elapsed
	tb.counters.Ticks++

	view := tb.events.View()
	for _, cb := range tb.callbacks {
		cb.OnStep(tb.world, view, tb.time)
	}
	tb.events.Poll()

	if tb.flags.Debug {
		tb.updateDigest()
	}
	tb.time += tb.world.Params.Dt
	return nil
}

func (tb *Testbed) updateDigest() {
	s, err := snapshot.Capture(tb.step, tb.world)
	if err != nil {
		tb.log.Warn("state hash failed", "step", tb.step, "err", err)
		return
	}
	tb.digest = s.Digest()
	tb.log.Debug("state hash", "step", tb.step,
		"broad_phase", tb.digest[snapshot.BroadPhase], "narrow_phase", tb.digest[snapshot.NarrowPhase],
		"bodies", tb.digest[snapshot.Bodies], "colliders", tb.digest[snapshot.Colliders],
		"joints", tb.digest[snapshot.Joints])
}

// CaptureNow snapshots the current world. On failure the previously
// retained snapshot is kept.
func (tb *Testbed) CaptureNow() (*snapshot.Snapshot, error) {
	s, err := snapshot.Capture(tb.step, tb.world)
	if err != nil {
		return nil, err
	}
	tb.snapshot = s
	sizes := s.Sizes()
	tb.log.Info("snapshot captured", "step", s.Step(), "bytes", s.Size(),
		"broad_phase", sizes[snapshot.BroadPhase], "narrow_phase", sizes[snapshot.NarrowPhase],
		"bodies", sizes[snapshot.Bodies], "colliders", sizes[snapshot.Colliders], "joints", sizes[snapshot.Joints])
	return s, nil
}

// RestoreNow replaces the world with the retained snapshot and rebuilds the
// active backend from it. A snapshot that fails to decode leaves the live
// state untouched.
func (tb *Testbed) RestoreNow() error {
	if tb.snapshot == nil {
		return ErrNoSnapshot
	}
	return tb.Restore(tb.snapshot)
}

// Restore replaces the world with s, which becomes the retained snapshot.
func (tb *Testbed) Restore(s *snapshot.Snapshot) error {
	r, err := s.Restore()
	if err != nil {
		return err
	}
	w := r.World(tb.gravity, tb.params)
	tb.installRestored(w, r.Step)
	tb.snapshot = s
	tb.log.Info("snapshot restored", "step", r.Step, "bodies", w.Bodies.Len())
	return tb.rebuildBackend()
}

func (tb *Testbed) installRestored(w *world.World, step uint64) {
	tb.world = w
	tb.step = step
	tb.time = float64(step) * tb.params.Dt
	tb.actions.ResetWorldGraphics = true
}
