package backend

import (
	"context"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/jakecoffman/cp"
	"github.com/san-kum/testbed/internal/events"
	"github.com/san-kum/testbed/internal/world"
)

// Chipmunk runs the scenario on a jakecoffman/cp space.
type Chipmunk struct {
	space     *cp.Space
	bodies    map[world.BodyID]*cp.Body
	order     []world.BodyID
	keepAwake []*cp.Body // dynamic bodies that may never sleep
	dt        float64
	h         events.Handler
}

// NewChipmunk mirrors w into a new chipmunk space. Body mass and moment are
// taken from the world so both engines simulate the same inertial
// properties.
func NewChipmunk(w *world.World, s Settings) (Backend, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	c := &Chipmunk{
		space:  cp.NewSpace(),
		bodies: make(map[world.BodyID]*cp.Body, w.Bodies.Len()),
		dt:     w.Params.Dt,
	}
	c.space.SetGravity(cpVec(w.Gravity))
	c.space.Iterations = uint(s.VelocityIterations)

	canSleep := false
	for _, id := range w.Bodies.IDs() {
		src := w.Bodies.Items[id]
		var body *cp.Body
		switch src.Type {
		case world.Dynamic:
			mass, moment := src.Mass, src.Inertia
			if mass <= 0 {
				mass = 1
			}
			if moment <= 0 {
				moment = math.Inf(1)
			}
			body = cp.NewBody(mass, moment)
		case world.Kinematic:
			body = cp.NewKinematicBody()
		default:
			body = cp.NewStaticBody()
		}
		body.SetPosition(cpVec(src.Position))
		body.SetAngle(src.Angle)
		body.SetVelocity(src.LinVel[0], src.LinVel[1])
		body.SetAngularVelocity(src.AngVel)
		body.UserData = id

		c.bodies[id] = c.space.AddBody(body)
		c.order = append(c.order, id)
		if src.Type == world.Dynamic {
			if src.Activation.CanSleep() {
				canSleep = true
			} else {
				c.keepAwake = append(c.keepAwake, body)
			}
		}
	}
	c.space.SleepTimeThreshold = math.Inf(1)
	if canSleep {
		c.space.SleepTimeThreshold = world.TimeToSleep
	}

	for _, cid := range w.Colliders.IDs() {
		col := w.Colliders.Items[cid]
		body := c.bodies[col.Parent]
		var shape *cp.Shape
		switch col.Shape.Kind {
		case world.Ball:
			shape = cp.NewCircle(body, col.Shape.Radius, cpVec(col.Offset))
		case world.Cuboid:
			he := col.Shape.HalfExtents
			bb := cp.BB{L: col.Offset[0] - he[0], B: col.Offset[1] - he[1], R: col.Offset[0] + he[0], T: col.Offset[1] + he[1]}
			shape = cp.NewBox2(body, bb, 0)
		}
		shape.SetFriction(col.Friction)
		shape.SetElasticity(col.Restitution)
		shape.SetSensor(col.Sensor)
		shape.UserData = cid
		c.space.AddShape(shape)
	}

	for _, jid := range w.Joints.IDs() {
		j := w.Joints.Items[jid]
		a, b := c.bodies[j.Body1], c.bodies[j.Body2]
		switch j.Kind {
		case world.BallJoint:
			c.space.AddConstraint(cp.NewPivotJoint2(a, b, cpVec(j.Anchor1), cpVec(j.Anchor2)))
		case world.DistanceJoint:
			c.space.AddConstraint(cp.NewPinJoint(a, b, cpVec(j.Anchor1), cpVec(j.Anchor2)))
		}
	}

	handler := c.space.NewCollisionHandler(0, 0)
	handler.BeginFunc = func(arb *cp.Arbiter, space *cp.Space, _ interface{}) bool {
		c.forward(arb, true)
		return true
	}
	handler.SeparateFunc = func(arb *cp.Arbiter, space *cp.Space, _ interface{}) {
		c.forward(arb, false)
	}
	return c, nil
}

func (c *Chipmunk) Name() string { return "chipmunk" }

func (c *Chipmunk) Step(ctx context.Context, h events.Handler) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.h = h
	for _, body := range c.keepAwake {
		body.Activate()
	}
	c.space.Step(c.dt)
	c.h = nil
	return nil
}

func (c *Chipmunk) Sync(w *world.World) error {
	return syncBodies(w, c.Name(), c.order, func(id world.BodyID, dst *world.Body) {
		src := c.bodies[id]
		dst.Position = mglVecCP(src.Position())
		dst.Angle = src.Angle()
		dst.LinVel = mglVecCP(src.Velocity())
		dst.AngVel = src.AngularVelocity()
		if dst.IsDynamic() {
			dst.Activation.Sleeping = src.IsSleeping()
		}
	})
}

func (c *Chipmunk) forward(arb *cp.Arbiter, started bool) {
	sa, sb := arb.Shapes()
	a, okA := sa.UserData.(world.ColliderID)
	b, okB := sb.UserData.(world.ColliderID)
	if !okA || !okB {
		return
	}
	report(c.h, a, b, sa.Sensor() || sb.Sensor(), started)
}

func cpVec(v mgl64.Vec2) cp.Vector { return cp.Vector{X: v[0], Y: v[1]} }

func mglVecCP(v cp.Vector) mgl64.Vec2 { return mgl64.Vec2{v.X, v.Y} }
