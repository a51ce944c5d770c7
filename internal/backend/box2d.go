package backend

import (
	"context"

	"github.com/ByteArena/box2d"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/testbed/internal/events"
	"github.com/san-kum/testbed/internal/world"
)

// Box2D runs the scenario on a ByteArena/box2d world.
type Box2D struct {
	world    *box2d.B2World
	bodies   map[world.BodyID]*box2d.B2Body
	order    []world.BodyID
	dt       float64
	settings Settings
	listener *b2Listener
}

// NewBox2D mirrors every body, collider and joint of w into a new box2d
// world.
func NewBox2D(w *world.World, s Settings) (Backend, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	bw := box2d.MakeB2World(b2Vec(w.Gravity))
	b := &Box2D{
		world:    &bw,
		bodies:   make(map[world.BodyID]*box2d.B2Body, w.Bodies.Len()),
		dt:       w.Params.Dt,
		settings: s,
		listener: &b2Listener{},
	}
	b.world.SetContactListener(b.listener)

	for _, id := range w.Bodies.IDs() {
		src := w.Bodies.Items[id]
		def := box2d.MakeB2BodyDef()
		switch src.Type {
		case world.Dynamic:
			def.Type = box2d.B2BodyType.B2_dynamicBody
		case world.Kinematic:
			def.Type = box2d.B2BodyType.B2_kinematicBody
		default:
			def.Type = box2d.B2BodyType.B2_staticBody
		}
		def.Position = b2Vec(src.Position)
		def.Angle = src.Angle
		def.LinearVelocity = b2Vec(src.LinVel)
		def.AngularVelocity = src.AngVel
		def.LinearDamping = src.LinearDamping
		def.AngularDamping = src.AngularDamping
		def.GravityScale = src.GravityScale
		def.AllowSleep = src.Activation.CanSleep()
		def.Awake = !src.Activation.Sleeping
		def.UserData = id

		b.bodies[id] = b.world.CreateBody(&def)
		b.order = append(b.order, id)
	}

	for _, cid := range w.Colliders.IDs() {
		c := w.Colliders.Items[cid]
		fd := box2d.MakeB2FixtureDef()
		switch c.Shape.Kind {
		case world.Ball:
			shape := box2d.MakeB2CircleShape()
			shape.M_radius = c.Shape.Radius
			shape.M_p = b2Vec(c.Offset)
			fd.Shape = &shape
		case world.Cuboid:
			shape := box2d.MakeB2PolygonShape()
			shape.SetAsBoxFromCenterAndAngle(c.Shape.HalfExtents[0], c.Shape.HalfExtents[1], b2Vec(c.Offset), 0)
			fd.Shape = &shape
		}
		fd.Density = c.Density
		fd.Friction = c.Friction
		fd.Restitution = c.Restitution
		fd.IsSensor = c.Sensor
		fd.UserData = cid
		b.bodies[c.Parent].CreateFixtureFromDef(&fd)
	}

	for _, jid := range w.Joints.IDs() {
		j := w.Joints.Items[jid]
		ba, bb := b.bodies[j.Body1], b.bodies[j.Body2]
		anchorA := w.Bodies.Items[j.Body1].WorldPoint(j.Anchor1)
		anchorB := w.Bodies.Items[j.Body2].WorldPoint(j.Anchor2)
		switch j.Kind {
		case world.BallJoint:
			jd := box2d.MakeB2RevoluteJointDef()
			jd.Initialize(ba, bb, b2Vec(anchorA))
			b.world.CreateJoint(&jd)
		case world.DistanceJoint:
			jd := box2d.MakeB2DistanceJointDef()
			jd.Initialize(ba, bb, b2Vec(anchorA), b2Vec(anchorB))
			jd.Length = j.Length
			b.world.CreateJoint(&jd)
		}
	}
	return b, nil
}

func (b *Box2D) Name() string { return "box2d" }

func (b *Box2D) Step(ctx context.Context, h events.Handler) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.listener.h = h
	b.world.Step(b.dt, b.settings.VelocityIterations, b.settings.PositionIterations)
	b.listener.h = nil
	return nil
}

func (b *Box2D) Sync(w *world.World) error {
	return syncBodies(w, b.Name(), b.order, func(id world.BodyID, dst *world.Body) {
		src := b.bodies[id]
		dst.Position = mglVec(src.GetPosition())
		dst.Angle = src.GetAngle()
		dst.LinVel = mglVec(src.GetLinearVelocity())
		dst.AngVel = src.GetAngularVelocity()
		if dst.IsDynamic() {
			dst.Activation.Sleeping = !src.IsAwake()
		}
	})
}

// b2Listener forwards box2d begin/end callbacks to the step's handler.
type b2Listener struct {
	h events.Handler
}

func (l *b2Listener) BeginContact(contact box2d.B2ContactInterface) { l.forward(contact, true) }
func (l *b2Listener) EndContact(contact box2d.B2ContactInterface)   { l.forward(contact, false) }

func (l *b2Listener) PreSolve(contact box2d.B2ContactInterface, oldManifold box2d.B2Manifold) {}

func (l *b2Listener) PostSolve(contact box2d.B2ContactInterface, impulse *box2d.B2ContactImpulse) {}

func (l *b2Listener) forward(contact box2d.B2ContactInterface, started bool) {
	fa, fb := contact.GetFixtureA(), contact.GetFixtureB()
	a, okA := fa.GetUserData().(world.ColliderID)
	c, okB := fb.GetUserData().(world.ColliderID)
	if !okA || !okB {
		return
	}
	report(l.h, a, c, fa.IsSensor() || fb.IsSensor(), started)
}

func b2Vec(v mgl64.Vec2) box2d.B2Vec2 { return box2d.MakeB2Vec2(v[0], v[1]) }

func mglVec(v box2d.B2Vec2) mgl64.Vec2 { return mgl64.Vec2{v.X, v.Y} }
