package scenarios

import (
	"math"

	"github.com/charmbracelet/log"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/testbed/internal/events"
	"github.com/san-kum/testbed/internal/testbed"
	"github.com/san-kum/testbed/internal/world"
)

const groundHalfHeight = 0.5

// ground adds a static slab whose top surface is at y = 0.
func ground(w *world.World, halfWidth float64) world.BodyID {
	id := w.InsertBody(world.NewStaticBody(mgl64.Vec2{0, -groundHalfHeight}))
	w.MustInsertCollider(world.NewCuboidCollider(halfWidth, groundHalfHeight), id)
	return id
}

func ball(w *world.World, pos mgl64.Vec2, r float64) world.BodyID {
	id := w.InsertBody(world.NewDynamicBody(pos))
	w.MustInsertCollider(world.NewBallCollider(r), id)
	return id
}

func box(w *world.World, pos mgl64.Vec2, hx, hy float64) world.BodyID {
	id := w.InsertBody(world.NewDynamicBody(pos))
	w.MustInsertCollider(world.NewCuboidCollider(hx, hy), id)
	return id
}

func ballGrid(w *world.World, cols, rows int, r float64) {
	spacing := 2*r + 0.1
	x0 := -float64(cols-1) * spacing / 2
	for j := 0; j < rows; j++ {
		for i := 0; i < cols; i++ {
			// odd rows shift so the pile does not stand as perfect columns
			shift := float64(j%2) * r * 0.5
			ball(w, mgl64.Vec2{x0 + float64(i)*spacing + shift, r + 1 + float64(j)*spacing}, r)
		}
	}
}

func pyramid(w *world.World, base int, half float64) {
	for row := 0; row < base; row++ {
		n := base - row
		x0 := -float64(n-1) * half
		y := half + float64(row)*2*half
		for i := 0; i < n; i++ {
			box(w, mgl64.Vec2{x0 + float64(i)*2*half, y}, half, half)
		}
	}
}

// Balls drops a loose pile of bouncy balls.
func Balls(tb *testbed.Testbed) {
	w := tb.NewWorld()
	ground(w, 25)
	ballGrid(w, 10, 10, 0.5)
	for _, c := range w.Colliders.Items {
		if c.Shape.Kind == world.Ball {
			c.Restitution = 0.3
		}
	}
	tb.SetWorld(w)
}

// Boxes drops a grid of boxes of two sizes.
func Boxes(tb *testbed.Testbed) {
	w := tb.NewWorld()
	ground(w, 25)
	for j := 0; j < 8; j++ {
		for i := 0; i < 8; i++ {
			half := 0.4
			if (i+j)%3 == 0 {
				half = 0.6
			}
			box(w, mgl64.Vec2{float64(i)*1.5 - 5.25, 1 + float64(j)*1.5}, half, half)
		}
	}
	tb.SetWorld(w)
}

// Domino lines up thin slabs and tips the first one over.
func Domino(tb *testbed.Testbed) {
	w := tb.NewWorld()
	ground(w, 30)
	const n = 30
	const hx, hy = 0.1, 1.0
	var first world.BodyID
	for i := 0; i < n; i++ {
		id := box(w, mgl64.Vec2{float64(i)*1.2 - 18, hy}, hx, hy)
		if i == 0 {
			first = id
		}
	}
	b := w.Bodies.Items[first]
	b.AngVel = -1.5
	b.LinVel = mgl64.Vec2{1, 0}
	tb.SetWorld(w)
}

// Pyramid stacks boxes in a triangle.
func Pyramid(tb *testbed.Testbed) {
	w := tb.NewWorld()
	ground(w, 25)
	pyramid(w, 12, 0.5)
	tb.SetWorld(w)
}

// Joints hangs a ball-jointed chain and a distance-jointed rope from two
// static anchors.
func Joints(tb *testbed.Testbed) {
	w := tb.NewWorld()
	ground(w, 25)
	chain(w, mgl64.Vec2{-4, 12}, 10, 0.6, false)
	chain(w, mgl64.Vec2{4, 12}, 10, 0.6, true)
	tb.SetWorld(w)
}

// chain hangs n links horizontally from a static anchor at top, so the
// chain swings down when simulated.
func chain(w *world.World, top mgl64.Vec2, n int, gap float64, distance bool) {
	prev := w.InsertBody(world.NewStaticBody(top))
	for i := 1; i <= n; i++ {
		link := ball(w, top.Add(mgl64.Vec2{float64(i) * gap, 0}), gap/3)
		var j world.Joint
		if distance {
			j = world.NewDistanceJoint(mgl64.Vec2{}, mgl64.Vec2{}, gap)
		} else {
			j = world.NewBallJoint(mgl64.Vec2{gap / 2, 0}, mgl64.Vec2{-gap / 2, 0})
			if i == 1 {
				j.Anchor1 = mgl64.Vec2{}
				j.Anchor2 = mgl64.Vec2{-gap, 0}
			}
		}
		w.MustInsertJoint(j, prev, link)
		prev = link
	}
}

// Kinematic pushes boxes around with a sliding platform and a spinning
// paddle. The platform reverses when it reaches either end of its track.
func Kinematic(tb *testbed.Testbed) {
	w := tb.NewWorld()
	ground(w, 25)

	platform := w.InsertBody(world.NewKinematicBody(mgl64.Vec2{0, 2}))
	w.MustInsertCollider(world.NewCuboidCollider(3, 0.25), platform)
	w.Bodies.Items[platform].LinVel = mgl64.Vec2{2, 0}

	paddle := w.InsertBody(world.NewKinematicBody(mgl64.Vec2{0, 7}))
	w.MustInsertCollider(world.NewCuboidCollider(2.5, 0.2), paddle)
	w.Bodies.Items[paddle].AngVel = 1

	for i := 0; i < 6; i++ {
		box(w, mgl64.Vec2{float64(i)*0.9 - 2.25, 3}, 0.4, 0.4)
	}
	for i := 0; i < 12; i++ {
		ball(w, mgl64.Vec2{float64(i)*0.7 - 4, 10}, 0.3)
	}
	tb.SetWorld(w)

	const track = 6.0
	tb.AddCallback(testbed.CallbackFunc(func(w *world.World, _ events.View, _ float64) {
		b, ok := w.Bodies.Get(platform)
		if !ok {
			return
		}
		if (b.Position[0] > track && b.LinVel[0] > 0) || (b.Position[0] < -track && b.LinVel[0] < 0) {
			b.LinVel[0] = -b.LinVel[0]
		}
	}))
}

// Sensor drops balls through a sensor gate and counts how many are inside
// it at any time.
func Sensor(tb *testbed.Testbed) {
	w := tb.NewWorld()
	ground(w, 25)

	gate := w.InsertBody(world.NewStaticBody(mgl64.Vec2{0, 4}))
	sc := world.NewCuboidCollider(4, 1)
	sc.Sensor = true
	sensor := w.MustInsertCollider(sc, gate)

	for i := 0; i < 16; i++ {
		x := 3.5 * math.Sin(float64(i)*1.7)
		ball(w, mgl64.Vec2{x, 8 + float64(i)*0.8}, 0.3)
	}
	tb.SetWorld(w)

	tb.AddCallback(&SensorTracker{Sensor: sensor, logger: tb.Logger()})
}

// SensorTracker follows proximity events for a single sensor collider.
type SensorTracker struct {
	Sensor  world.ColliderID
	Inside  map[world.ColliderID]bool
	Entered int

	logger *log.Logger
}

func (s *SensorTracker) OnStep(_ *world.World, ev events.View, t float64) {
	if s.Inside == nil {
		s.Inside = make(map[world.ColliderID]bool)
	}
	for e := range ev.Proximities {
		other := e.Collider2
		switch s.Sensor {
		case e.Collider1:
		case e.Collider2:
			other = e.Collider1
		default:
			continue
		}
		switch e.New {
		case events.Intersecting:
			s.Inside[other] = true
			s.Entered++
		case events.Disjoint:
			delete(s.Inside, other)
		}
		if s.logger != nil {
			s.logger.Debug("sensor", "collider", other, "state", e.New, "time", t)
		}
	}
}
