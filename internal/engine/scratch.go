package engine

import (
	"sync"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/testbed/internal/world"
)

// solverBody is the engine's private copy of a body for the duration of a
// step. Workers only ever write to these, never to the world.
type solverBody struct {
	id        world.BodyID
	kind      world.BodyType
	pos       mgl64.Vec2
	angle     float64
	v         mgl64.Vec2
	w         float64
	invMass   float64
	invI      float64
	linDamp   float64
	angDamp   float64
	gravity   float64
	act       world.Activation
	minExtent float64
}

func (b *solverBody) dynamic() bool { return b.kind == world.Dynamic }

// movable reports whether impulses change this body's velocity.
func (b *solverBody) movable() bool { return b.kind == world.Dynamic && !b.act.Sleeping }

type bodyPool struct {
	pool sync.Pool
}

func newBodyPool() *bodyPool {
	return &bodyPool{
		pool: sync.Pool{
			New: func() interface{} {
				s := make([]solverBody, 0, 64)
				return &s
			},
		},
	}
}

func (p *bodyPool) Get(n int) *[]solverBody {
	s := p.pool.Get().(*[]solverBody)
	if cap(*s) < n {
		*s = make([]solverBody, n)
	} else {
		*s = (*s)[:n]
	}
	return s
}

func (p *bodyPool) Put(s *[]solverBody) {
	clear(*s)
	*s = (*s)[:0]
	p.pool.Put(s)
}
