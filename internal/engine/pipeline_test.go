package engine

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/san-kum/testbed/internal/events"
	"github.com/san-kum/testbed/internal/pool"
	"github.com/san-kum/testbed/internal/world"
)

func groundWorld() (*world.World, world.ColliderID) {
	w := world.New(mgl64.Vec2{0, -9.81}, world.DefaultIntegrationParams())
	ground := w.InsertBody(world.NewStaticBody(mgl64.Vec2{0, 0}))
	gc := w.MustInsertCollider(world.NewCuboidCollider(20, 0.5), ground)
	return w, gc
}

func dropBall(w *world.World, pos mgl64.Vec2, r float64) (world.BodyID, world.ColliderID) {
	id := w.InsertBody(world.NewDynamicBody(pos))
	return id, w.MustInsertCollider(world.NewBallCollider(r), id)
}

func stepN(t testing.TB, p *Pipeline, w *world.World, h events.Handler, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := p.Step(context.Background(), w, h); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
}

func TestBallRestsOnGround(t *testing.T) {
	w, _ := groundWorld()
	ball, _ := dropBall(w, mgl64.Vec2{0, 3}, 0.5)

	stepN(t, NewPipeline(nil), w, nil, 240)

	y := w.Bodies.Items[ball].Position[1]
	if y < 0.85 || y > 1.05 {
		t.Errorf("expected ball to rest at y~1, got %f", y)
	}
}

func TestInvalidTimestep(t *testing.T) {
	w, _ := groundWorld()
	w.Params.Dt = 0
	err := NewPipeline(nil).Step(context.Background(), w, nil)
	if !errors.Is(err, ErrInvalidDt) {
		t.Errorf("expected ErrInvalidDt, got %v", err)
	}
}

func pyramid(rows int) *world.World {
	w, _ := groundWorld()
	for row := 0; row < rows; row++ {
		for i := 0; i <= row; i++ {
			x := float64(i) - float64(row)/2
			y := 1.0 + float64(rows-row-1)*1.0
			id := w.InsertBody(world.NewDynamicBody(mgl64.Vec2{x * 1.05, y}))
			w.MustInsertCollider(world.NewCuboidCollider(0.5, 0.5), id)
		}
	}
	for i := 0; i < 8; i++ {
		dropBall(w, mgl64.Vec2{float64(i)*2 - 8, 8}, 0.4)
	}
	return w
}

func TestParallelMatchesSequential(t *testing.T) {
	seq := pyramid(6)
	par := seq.Clone()

	workers, err := pool.New(4)
	if err != nil {
		t.Fatal(err)
	}
	stepN(t, NewPipeline(nil), seq, nil, 120)
	stepN(t, NewPipeline(workers), par, nil, 120)

	if diff := cmp.Diff(seq, par); diff != "" {
		t.Errorf("parallel step diverged (-seq +par):\n%s", diff)
	}
}

func TestCancelledStepLeavesWorldUntouched(t *testing.T) {
	workers, err := pool.New(4)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for name, p := range map[string]*Pipeline{"sequential": NewPipeline(nil), "parallel": NewPipeline(workers)} {
		t.Run(name, func(t *testing.T) {
			w := pyramid(6)
			stepN(t, p, w, nil, 30)
			before := w.Clone()

			if err := p.Step(ctx, w, nil); !errors.Is(err, context.Canceled) {
				t.Fatalf("expected context.Canceled, got %v", err)
			}
			if diff := cmp.Diff(before, w, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("cancelled step changed the world (-before +after):\n%s", diff)
			}
		})
	}
}

func TestContactEvents(t *testing.T) {
	w, gc := groundWorld()
	_, bc := dropBall(w, mgl64.Vec2{0, 2}, 0.5)
	c := events.NewCollector()

	stepN(t, NewPipeline(nil), w, c, 90)

	batch := c.Poll()
	if len(batch.Contacts) == 0 {
		t.Fatal("expected a contact event")
	}
	want := events.ContactEvent{Kind: events.ContactStarted, Collider1: gc, Collider2: bc}
	if diff := cmp.Diff(want, batch.Contacts[0]); diff != "" {
		t.Errorf("first contact mismatch (-want +got):\n%s", diff)
	}
	if len(batch.Proximities) != 0 {
		t.Errorf("expected no proximity events, got %d", len(batch.Proximities))
	}
}

func TestSensorProximity(t *testing.T) {
	w := world.New(mgl64.Vec2{0, -9.81}, world.DefaultIntegrationParams())
	gate := w.InsertBody(world.NewStaticBody(mgl64.Vec2{0, 0}))
	sensor := world.NewCuboidCollider(1, 0.2)
	sensor.Sensor = true
	sc := w.MustInsertCollider(sensor, gate)
	ball, bc := dropBall(w, mgl64.Vec2{0, 2}, 0.5)

	c := events.NewCollector()
	stepN(t, NewPipeline(nil), w, c, 120)

	if y := w.Bodies.Items[ball].Position[1]; y > -5 {
		t.Errorf("ball should fall through the sensor, got y=%f", y)
	}
	batch := c.Poll()
	want := []events.ProximityEvent{
		{Collider1: sc, Collider2: bc, Prev: events.Disjoint, New: events.Intersecting},
		{Collider1: sc, Collider2: bc, Prev: events.Intersecting, New: events.Disjoint},
	}
	if diff := cmp.Diff(want, batch.Proximities); diff != "" {
		t.Errorf("proximity events mismatch (-want +got):\n%s", diff)
	}
	if len(batch.Contacts) != 0 {
		t.Errorf("sensor must not produce contacts, got %d", len(batch.Contacts))
	}
}

func TestRestingBodyFallsAsleep(t *testing.T) {
	w, _ := groundWorld()
	ball, _ := dropBall(w, mgl64.Vec2{0, 1.5}, 0.5)
	p := NewPipeline(nil)

	stepN(t, p, w, nil, 400)

	b := w.Bodies.Items[ball]
	if !b.Activation.Sleeping {
		t.Fatalf("expected resting ball to sleep, velocity %v", b.LinVel)
	}
	if p.Counters().Sleeping != 1 {
		t.Errorf("expected 1 sleeping body, got %d", p.Counters().Sleeping)
	}

	pos := b.Position
	stepN(t, p, w, nil, 10)
	if w.Bodies.Items[ball].Position != pos {
		t.Error("sleeping body moved")
	}
}

func TestNeverSleep(t *testing.T) {
	w, _ := groundWorld()
	ball, _ := dropBall(w, mgl64.Vec2{0, 1.5}, 0.5)
	w.Bodies.Items[ball].Activation.Threshold = world.NeverSleep

	stepN(t, NewPipeline(nil), w, nil, 400)

	if w.Bodies.Items[ball].Activation.Sleeping {
		t.Error("body with NeverSleep threshold fell asleep")
	}
}

func TestCCDSubsteps(t *testing.T) {
	tests := []struct {
		name        string
		returnAfter bool
		substeps    int
		x           float64
	}{
		{"full step", false, 4, 1.0},
		{"return after first substep", true, 1, 0.25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := world.DefaultIntegrationParams()
			params.MaxCCDSubsteps = 4
			params.ReturnAfterCCDSubstep = tt.returnAfter
			w := world.New(mgl64.Vec2{}, params)
			id, _ := dropBall(w, mgl64.Vec2{}, 0.1)
			w.Bodies.Items[id].LinVel = mgl64.Vec2{60, 0}

			p := NewPipeline(nil)
			stepN(t, p, w, nil, 1)

			if got := p.Counters().Substeps; got != tt.substeps {
				t.Errorf("expected %d substeps, got %d", tt.substeps, got)
			}
			if x := w.Bodies.Items[id].Position[0]; math.Abs(x-tt.x) > 1e-9 {
				t.Errorf("expected x=%f, got %f", tt.x, x)
			}
		})
	}
}

func TestPendulumKeepsLength(t *testing.T) {
	w := world.New(mgl64.Vec2{0, -9.81}, world.DefaultIntegrationParams())
	pivot := w.InsertBody(world.NewStaticBody(mgl64.Vec2{0, 5}))
	bob, _ := dropBall(w, mgl64.Vec2{2, 5}, 0.2)
	w.MustInsertJoint(world.NewBallJoint(mgl64.Vec2{}, mgl64.Vec2{-2, 0}), pivot, bob)

	stepN(t, NewPipeline(nil), w, nil, 120)

	d := w.Bodies.Items[bob].Position.Sub(mgl64.Vec2{0, 5}).Len()
	if math.Abs(d-2) > 0.15 {
		t.Errorf("pendulum length drifted to %f", d)
	}
	if w.Bodies.Items[bob].Position[1] > 4.5 {
		t.Error("pendulum bob should swing down")
	}
}

func BenchmarkPyramid(b *testing.B) {
	w := pyramid(10)
	p := NewPipeline(nil)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := p.Step(ctx, w, nil); err != nil {
			b.Fatal(err)
		}
	}
}
