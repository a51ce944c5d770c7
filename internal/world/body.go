package world

import (
	"github.com/go-gl/mathgl/mgl64"
)

type BodyID uint32

type BodyType uint8

const (
	Dynamic BodyType = iota
	Static
	Kinematic
)

func (t BodyType) String() string {
	switch t {
	case Dynamic:
		return "dynamic"
	case Static:
		return "static"
	case Kinematic:
		return "kinematic"
	default:
		return "unknown"
	}
}

const (
	// DefaultSleepThreshold is the squared speed below which a body starts
	// accumulating sleep time.
	DefaultSleepThreshold = 0.01

	// NeverSleep disables sleeping for a body and keeps it awake.
	NeverSleep = -1.0

	// TimeToSleep is how long a body must stay below its threshold.
	TimeToSleep = 2.0
)

// Activation tracks whether a body is allowed to, or currently does, sleep.
type Activation struct {
	Threshold float64 `msgpack:"threshold"`
	Timer     float64 `msgpack:"timer"`
	Sleeping  bool    `msgpack:"sleeping"`
}

func DefaultActivation() Activation {
	return Activation{Threshold: DefaultSleepThreshold}
}

func (a *Activation) WakeUp() {
	a.Sleeping = false
	a.Timer = 0
}

func (a Activation) CanSleep() bool { return a.Threshold >= 0 }

type Body struct {
	ID       BodyID     `msgpack:"id"`
	Type     BodyType   `msgpack:"type"`
	Position mgl64.Vec2 `msgpack:"pos"`
	Angle    float64    `msgpack:"angle"`
	LinVel   mgl64.Vec2 `msgpack:"linvel"`
	AngVel   float64    `msgpack:"angvel"`

	Mass       float64 `msgpack:"mass"`
	InvMass    float64 `msgpack:"inv_mass"`
	Inertia    float64 `msgpack:"inertia"`
	InvInertia float64 `msgpack:"inv_inertia"`

	LinearDamping  float64 `msgpack:"lin_damping"`
	AngularDamping float64 `msgpack:"ang_damping"`
	GravityScale   float64 `msgpack:"gravity_scale"`

	Activation Activation `msgpack:"activation"`
}

func NewDynamicBody(pos mgl64.Vec2) Body {
	return Body{Type: Dynamic, Position: pos, GravityScale: 1, Activation: DefaultActivation()}
}

func NewStaticBody(pos mgl64.Vec2) Body {
	return Body{Type: Static, Position: pos, GravityScale: 1, Activation: DefaultActivation()}
}

func NewKinematicBody(pos mgl64.Vec2) Body {
	return Body{Type: Kinematic, Position: pos, GravityScale: 1, Activation: Activation{Threshold: NeverSleep}}
}

func (b *Body) IsDynamic() bool { return b.Type == Dynamic }

func (b *Body) WakeUp() { b.Activation.WakeUp() }

// Rotation returns the 2x2 rotation matrix for the body's angle.
func (b *Body) Rotation() mgl64.Mat2 { return mgl64.Rotate2D(b.Angle) }

// WorldPoint maps a point in body space to world space.
func (b *Body) WorldPoint(local mgl64.Vec2) mgl64.Vec2 {
	return b.Position.Add(b.Rotation().Mul2x1(local))
}

func (b *Body) addMass(mass, inertia float64) {
	if b.Type != Dynamic {
		return
	}
	b.Mass += mass
	b.Inertia += inertia
	b.updateInverse()
}

func (b *Body) updateInverse() {
	b.InvMass, b.InvInertia = 0, 0
	if b.Type != Dynamic {
		return
	}
	if b.Mass > 0 {
		b.InvMass = 1 / b.Mass
	}
	if b.Inertia > 0 {
		b.InvInertia = 1 / b.Inertia
	}
}

// BodySet owns every rigid body of a world and allocates their identifiers.
type BodySet struct {
	Items map[BodyID]*Body `msgpack:"items"`
	Next  BodyID           `msgpack:"next"`
}

func NewBodySet() BodySet {
	return BodySet{Items: make(map[BodyID]*Body), Next: 1}
}

func (s *BodySet) Len() int { return len(s.Items) }

func (s *BodySet) Get(id BodyID) (*Body, bool) {
	b, ok := s.Items[id]
	return b, ok
}

// IDs returns every body identifier in ascending order.
func (s *BodySet) IDs() []BodyID {
	return sortedKeys(s.Items)
}

func (s *BodySet) insert(b Body) BodyID {
	id := s.Next
	s.Next++
	b.ID = id
	b.updateInverse()
	s.Items[id] = &b
	return id
}

func (s BodySet) clone() BodySet {
	c := BodySet{Items: make(map[BodyID]*Body, len(s.Items)), Next: s.Next}
	for id, b := range s.Items {
		cp := *b
		c.Items[id] = &cp
	}
	return c
}
