package world

import (
	"sort"

	"github.com/go-gl/mathgl/mgl64"
)

// Pair is an unordered pair of colliders stored with A < B.
type Pair struct {
	A ColliderID `msgpack:"a"`
	B ColliderID `msgpack:"b"`
}

func MakePair(a, b ColliderID) Pair {
	if a > b {
		a, b = b, a
	}
	return Pair{A: a, B: b}
}

func (p Pair) Less(o Pair) bool {
	if p.A != o.A {
		return p.A < o.A
	}
	return p.B < o.B
}

func (p Pair) Has(id ColliderID) bool { return p.A == id || p.B == id }

// BroadPhase is the coarse collision cache: a uniform grid over collider
// bounds and the candidate pairs it produced on the last step.
type BroadPhase struct {
	CellSize float64 `msgpack:"cell_size"`
	Pairs    []Pair  `msgpack:"pairs"`
}

func NewBroadPhase() BroadPhase { return BroadPhase{} }

func (bp BroadPhase) clone() BroadPhase {
	c := BroadPhase{CellSize: bp.CellSize}
	if bp.Pairs != nil {
		c.Pairs = append([]Pair(nil), bp.Pairs...)
	}
	return c
}

type ContactPoint struct {
	Point          mgl64.Vec2 `msgpack:"point"`
	Depth          float64    `msgpack:"depth"`
	NormalImpulse  float64    `msgpack:"normal_impulse"`
	TangentImpulse float64    `msgpack:"tangent_impulse"`
}

// Manifold is the persistent contact state between two colliders. The
// accumulated impulses are reused by the next step for warm starting.
type Manifold struct {
	Pair     Pair           `msgpack:"pair"`
	Normal   mgl64.Vec2     `msgpack:"normal"`
	Points   []ContactPoint `msgpack:"points"`
	Touching bool           `msgpack:"touching"`
	Sensor   bool           `msgpack:"sensor"`
}

func (m Manifold) clone() Manifold {
	c := m
	if m.Points != nil {
		c.Points = append([]ContactPoint(nil), m.Points...)
	}
	return c
}

// NarrowPhase holds manifolds sorted by pair.
type NarrowPhase struct {
	Manifolds []Manifold `msgpack:"manifolds"`
}

func NewNarrowPhase() NarrowPhase { return NarrowPhase{} }

func (np *NarrowPhase) Find(p Pair) (*Manifold, bool) {
	i := sort.Search(len(np.Manifolds), func(i int) bool {
		return !np.Manifolds[i].Pair.Less(p)
	})
	if i < len(np.Manifolds) && np.Manifolds[i].Pair == p {
		return &np.Manifolds[i], true
	}
	return nil, false
}

// NumTouching counts manifolds with at least one active contact.
func (np *NarrowPhase) NumTouching() int {
	n := 0
	for _, m := range np.Manifolds {
		if m.Touching {
			n++
		}
	}
	return n
}

func (np NarrowPhase) clone() NarrowPhase {
	c := NarrowPhase{}
	if np.Manifolds != nil {
		c.Manifolds = make([]Manifold, len(np.Manifolds))
		for i, m := range np.Manifolds {
			c.Manifolds[i] = m.clone()
		}
	}
	return c
}
