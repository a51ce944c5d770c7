package world

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/go-gl/mathgl/mgl64"
)

var (
	ErrUnknownBody     = errors.New("world: unknown body")
	ErrUnknownCollider = errors.New("world: unknown collider")
	ErrDanglingRef     = errors.New("world: reference to a missing body")
)

// IntegrationParams configures a single simulation step.
type IntegrationParams struct {
	Dt                    float64 `yaml:"dt" msgpack:"dt"`
	VelocityIterations    int     `yaml:"velocity_iterations" msgpack:"velocity_iterations"`
	PositionIterations    int     `yaml:"position_iterations" msgpack:"position_iterations"`
	MaxCCDSubsteps        int     `yaml:"max_ccd_substeps" msgpack:"max_ccd_substeps"`
	ReturnAfterCCDSubstep bool    `yaml:"return_after_ccd_substep" msgpack:"return_after_ccd_substep"`
	AllowedPenetration    float64 `yaml:"allowed_penetration" msgpack:"allowed_penetration"`
	ERP                   float64 `yaml:"erp" msgpack:"erp"`
}

func DefaultIntegrationParams() IntegrationParams {
	return IntegrationParams{
		Dt:                 1.0 / 60.0,
		VelocityIterations: 4,
		PositionIterations: 1,
		MaxCCDSubsteps:     1,
		AllowedPenetration: 0.002,
		ERP:                0.2,
	}
}

// World is the canonical, backend independent simulation state.
type World struct {
	Gravity mgl64.Vec2
	Params  IntegrationParams

	Bodies    BodySet
	Colliders ColliderSet
	Joints    JointSet
	Broad     BroadPhase
	Narrow    NarrowPhase
}

func New(gravity mgl64.Vec2, params IntegrationParams) *World {
	return &World{
		Gravity:   gravity,
		Params:    params,
		Bodies:    NewBodySet(),
		Colliders: NewColliderSet(),
		Joints:    NewJointSet(),
		Broad:     NewBroadPhase(),
		Narrow:    NewNarrowPhase(),
	}
}

func (w *World) InsertBody(b Body) BodyID {
	return w.Bodies.insert(b)
}

// InsertCollider attaches c to parent and adds its mass to dynamic parents.
func (w *World) InsertCollider(c Collider, parent BodyID) (ColliderID, error) {
	body, ok := w.Bodies.Items[parent]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownBody, parent)
	}
	id := w.Colliders.Next
	w.Colliders.Next++
	c.ID = id
	c.Parent = parent
	w.Colliders.Items[id] = &c

	if !c.Sensor && c.Density > 0 {
		m := c.Shape.Area() * c.Density
		inertia := m * (c.Shape.unitInertia() + c.Offset.Dot(c.Offset))
		body.addMass(m, inertia)
	}
	return id, nil
}

func (w *World) InsertJoint(j Joint, body1, body2 BodyID) (JointID, error) {
	if _, ok := w.Bodies.Items[body1]; !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownBody, body1)
	}
	if _, ok := w.Bodies.Items[body2]; !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownBody, body2)
	}
	id := w.Joints.Next
	w.Joints.Next++
	j.ID = id
	j.Body1, j.Body2 = body1, body2
	w.Joints.Items[id] = &j
	return id, nil
}

// MustInsertCollider is InsertCollider for scene builders that just created
// the parent body.
func (w *World) MustInsertCollider(c Collider, parent BodyID) ColliderID {
	id, err := w.InsertCollider(c, parent)
	if err != nil {
		panic(err)
	}
	return id
}

func (w *World) MustInsertJoint(j Joint, body1, body2 BodyID) JointID {
	id, err := w.InsertJoint(j, body1, body2)
	if err != nil {
		panic(err)
	}
	return id
}

// RemoveBody deletes a body together with its colliders, joints and every
// cached pair or manifold that referenced one of its colliders.
func (w *World) RemoveBody(id BodyID) error {
	if _, ok := w.Bodies.Items[id]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownBody, id)
	}
	delete(w.Bodies.Items, id)

	removed := make(map[ColliderID]struct{})
	for cid, c := range w.Colliders.Items {
		if c.Parent == id {
			removed[cid] = struct{}{}
			delete(w.Colliders.Items, cid)
		}
	}
	for jid, j := range w.Joints.Items {
		if j.Body1 == id || j.Body2 == id {
			delete(w.Joints.Items, jid)
		}
	}
	if len(removed) == 0 {
		return nil
	}

	hit := func(p Pair) bool {
		_, a := removed[p.A]
		_, b := removed[p.B]
		return a || b
	}
	w.Broad.Pairs = slices.DeleteFunc(w.Broad.Pairs, hit)
	w.Narrow.Manifolds = slices.DeleteFunc(w.Narrow.Manifolds, func(m Manifold) bool {
		return hit(m.Pair)
	})
	return nil
}

// CollidersOf returns the colliders attached to a body, in id order.
func (w *World) CollidersOf(id BodyID) []*Collider {
	var out []*Collider
	for _, cid := range w.Colliders.IDs() {
		if c := w.Colliders.Items[cid]; c.Parent == id {
			out = append(out, c)
		}
	}
	return out
}

// DynamicBodies returns the ids of dynamic bodies in ascending order.
func (w *World) DynamicBodies() []BodyID {
	var ids []BodyID
	for _, id := range w.Bodies.IDs() {
		if w.Bodies.Items[id].IsDynamic() {
			ids = append(ids, id)
		}
	}
	return ids
}

// Validate checks that every collider, joint and manifold only references
// live objects.
func (w *World) Validate() error {
	for _, id := range w.Colliders.IDs() {
		c := w.Colliders.Items[id]
		if _, ok := w.Bodies.Items[c.Parent]; !ok {
			return fmt.Errorf("%w: collider %d -> body %d", ErrDanglingRef, id, c.Parent)
		}
	}
	for _, id := range w.Joints.IDs() {
		j := w.Joints.Items[id]
		for _, b := range []BodyID{j.Body1, j.Body2} {
			if _, ok := w.Bodies.Items[b]; !ok {
				return fmt.Errorf("%w: joint %d -> body %d", ErrDanglingRef, id, b)
			}
		}
	}
	for _, m := range w.Narrow.Manifolds {
		for _, c := range []ColliderID{m.Pair.A, m.Pair.B} {
			if _, ok := w.Colliders.Items[c]; !ok {
				return fmt.Errorf("%w: manifold references collider %d", ErrUnknownCollider, c)
			}
		}
	}
	return nil
}

func (w *World) Clone() *World {
	return &World{
		Gravity:   w.Gravity,
		Params:    w.Params,
		Bodies:    w.Bodies.clone(),
		Colliders: w.Colliders.clone(),
		Joints:    w.Joints.clone(),
		Broad:     w.Broad.clone(),
		Narrow:    w.Narrow.clone(),
	}
}

// KineticEnergy sums the kinetic energy of every dynamic body.
func (w *World) KineticEnergy() float64 {
	e := 0.0
	for _, id := range w.Bodies.IDs() {
		b := w.Bodies.Items[id]
		if !b.IsDynamic() {
			continue
		}
		e += 0.5*b.Mass*b.LinVel.Dot(b.LinVel) + 0.5*b.Inertia*b.AngVel*b.AngVel
	}
	return e
}

func sortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
