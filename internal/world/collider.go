package world

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

type ColliderID uint32

type ShapeKind uint8

const (
	Ball ShapeKind = iota
	Cuboid
)

type Shape struct {
	Kind        ShapeKind  `msgpack:"kind"`
	Radius      float64    `msgpack:"radius,omitempty"`
	HalfExtents mgl64.Vec2 `msgpack:"half_extents"`
}

func BallShape(radius float64) Shape { return Shape{Kind: Ball, Radius: radius} }

func CuboidShape(hx, hy float64) Shape {
	return Shape{Kind: Cuboid, HalfExtents: mgl64.Vec2{hx, hy}}
}

func (s Shape) Area() float64 {
	switch s.Kind {
	case Ball:
		return math.Pi * s.Radius * s.Radius
	case Cuboid:
		return 4 * s.HalfExtents[0] * s.HalfExtents[1]
	}
	return 0
}

// unitInertia is the moment of inertia about the shape's center for unit mass.
func (s Shape) unitInertia() float64 {
	switch s.Kind {
	case Ball:
		return 0.5 * s.Radius * s.Radius
	case Cuboid:
		w, h := 2*s.HalfExtents[0], 2*s.HalfExtents[1]
		return (w*w + h*h) / 12
	}
	return 0
}

// BoundingRadius is the radius of the smallest circle centered on the shape
// that contains it.
func (s Shape) BoundingRadius() float64 {
	if s.Kind == Ball {
		return s.Radius
	}
	return s.HalfExtents.Len()
}

type Collider struct {
	ID          ColliderID `msgpack:"id"`
	Parent      BodyID     `msgpack:"parent"`
	Shape       Shape      `msgpack:"shape"`
	Offset      mgl64.Vec2 `msgpack:"offset"`
	Density     float64    `msgpack:"density"`
	Friction    float64    `msgpack:"friction"`
	Restitution float64    `msgpack:"restitution"`
	Sensor      bool       `msgpack:"sensor"`
}

func NewBallCollider(radius float64) Collider {
	return Collider{Shape: BallShape(radius), Density: 1, Friction: 0.5}
}

func NewCuboidCollider(hx, hy float64) Collider {
	return Collider{Shape: CuboidShape(hx, hy), Density: 1, Friction: 0.5}
}

// Center returns the collider's center in world space.
func (c *Collider) Center(parent *Body) mgl64.Vec2 {
	return parent.WorldPoint(c.Offset)
}

type AABB struct {
	Min, Max mgl64.Vec2
}

func (a AABB) Intersects(b AABB) bool {
	return a.Min[0] <= b.Max[0] && a.Max[0] >= b.Min[0] &&
		a.Min[1] <= b.Max[1] && a.Max[1] >= b.Min[1]
}

func (c *Collider) AABB(parent *Body) AABB {
	center := c.Center(parent)
	var ext mgl64.Vec2
	switch c.Shape.Kind {
	case Ball:
		ext = mgl64.Vec2{c.Shape.Radius, c.Shape.Radius}
	case Cuboid:
		cs, sn := math.Abs(math.Cos(parent.Angle)), math.Abs(math.Sin(parent.Angle))
		hx, hy := c.Shape.HalfExtents[0], c.Shape.HalfExtents[1]
		ext = mgl64.Vec2{cs*hx + sn*hy, sn*hx + cs*hy}
	}
	return AABB{Min: center.Sub(ext), Max: center.Add(ext)}
}

type ColliderSet struct {
	Items map[ColliderID]*Collider `msgpack:"items"`
	Next  ColliderID               `msgpack:"next"`
}

func NewColliderSet() ColliderSet {
	return ColliderSet{Items: make(map[ColliderID]*Collider), Next: 1}
}

func (s *ColliderSet) Len() int { return len(s.Items) }

func (s *ColliderSet) Get(id ColliderID) (*Collider, bool) {
	c, ok := s.Items[id]
	return c, ok
}

func (s *ColliderSet) IDs() []ColliderID {
	return sortedKeys(s.Items)
}

func (s ColliderSet) clone() ColliderSet {
	c := ColliderSet{Items: make(map[ColliderID]*Collider, len(s.Items)), Next: s.Next}
	for id, col := range s.Items {
		cp := *col
		c.Items[id] = &cp
	}
	return c
}
