package engine

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/testbed/internal/events"
	"github.com/san-kum/testbed/internal/world"
)

// contactGeom is the raw output of a shape-vs-shape test. The normal points
// from the first shape to the second.
type contactGeom struct {
	normal mgl64.Vec2
	points []world.ContactPoint
}

func (g contactGeom) touching() bool { return len(g.points) > 0 }

// collide dispatches on the two shape kinds.
func collide(a, b *proxy, bodies []solverBody) contactGeom {
	ca, cb := a.center(bodies), b.center(bodies)
	angA, angB := bodies[a.body].angle, bodies[b.body].angle

	switch {
	case a.shape.Kind == world.Ball && b.shape.Kind == world.Ball:
		return ballBall(ca, a.shape.Radius, cb, b.shape.Radius)
	case a.shape.Kind == world.Cuboid && b.shape.Kind == world.Ball:
		return boxBall(ca, angA, a.shape.HalfExtents, cb, b.shape.Radius)
	case a.shape.Kind == world.Ball && b.shape.Kind == world.Cuboid:
		g := boxBall(cb, angB, b.shape.HalfExtents, ca, a.shape.Radius)
		g.normal = g.normal.Mul(-1)
		return g
	default:
		return boxBox(ca, angA, a.shape.HalfExtents, cb, angB, b.shape.HalfExtents)
	}
}

func ballBall(ca mgl64.Vec2, ra float64, cb mgl64.Vec2, rb float64) contactGeom {
	d := cb.Sub(ca)
	dist := d.Len()
	depth := ra + rb - dist
	if depth < 0 {
		return contactGeom{}
	}
	n := mgl64.Vec2{0, 1}
	if dist > 1e-12 {
		n = d.Mul(1 / dist)
	}
	p := ca.Add(n.Mul(ra - depth/2))
	return contactGeom{normal: n, points: []world.ContactPoint{{Point: p, Depth: depth}}}
}

// boxBall returns a normal pointing from the box to the ball.
func boxBall(cBox mgl64.Vec2, angle float64, he mgl64.Vec2, cBall mgl64.Vec2, r float64) contactGeom {
	rot := mgl64.Rotate2D(angle)
	local := rot.Transpose().Mul2x1(cBall.Sub(cBox))

	closest := mgl64.Vec2{
		math.Max(-he[0], math.Min(he[0], local[0])),
		math.Max(-he[1], math.Min(he[1], local[1])),
	}
	inside := closest == local

	var nLocal mgl64.Vec2
	var depth float64
	if inside {
		dx, dy := he[0]-math.Abs(local[0]), he[1]-math.Abs(local[1])
		if dx < dy {
			nLocal = mgl64.Vec2{math.Copysign(1, local[0]), 0}
			closest[0] = math.Copysign(he[0], local[0])
			depth = r + dx
		} else {
			nLocal = mgl64.Vec2{0, math.Copysign(1, local[1])}
			closest[1] = math.Copysign(he[1], local[1])
			depth = r + dy
		}
	} else {
		d := local.Sub(closest)
		dist := d.Len()
		depth = r - dist
		if depth < 0 {
			return contactGeom{}
		}
		nLocal = d.Mul(1 / dist)
	}

	n := rot.Mul2x1(nLocal)
	p := cBox.Add(rot.Mul2x1(closest))
	return contactGeom{normal: n, points: []world.ContactPoint{{Point: p, Depth: depth}}}
}

func boxVertices(c mgl64.Vec2, angle float64, he mgl64.Vec2) [4]mgl64.Vec2 {
	rot := mgl64.Rotate2D(angle)
	corners := [4]mgl64.Vec2{{-he[0], -he[1]}, {he[0], -he[1]}, {he[0], he[1]}, {-he[0], he[1]}}
	for i := range corners {
		corners[i] = c.Add(rot.Mul2x1(corners[i]))
	}
	return corners
}

func project(vs [4]mgl64.Vec2, axis mgl64.Vec2) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range vs {
		d := v.Dot(axis)
		lo, hi = math.Min(lo, d), math.Max(hi, d)
	}
	return lo, hi
}

// boxBox is a separating axis test over the four face normals. Contacts are
// the vertices of one box found inside the other along the chosen axis.
func boxBox(ca mgl64.Vec2, angA float64, heA mgl64.Vec2, cb mgl64.Vec2, angB float64, heB mgl64.Vec2) contactGeom {
	va, vb := boxVertices(ca, angA, heA), boxVertices(cb, angB, heB)
	ra, rb := mgl64.Rotate2D(angA), mgl64.Rotate2D(angB)
	axes := [4]mgl64.Vec2{ra.Col(0), ra.Col(1), rb.Col(0), rb.Col(1)}

	best := math.Inf(1)
	var n mgl64.Vec2
	for _, axis := range axes {
		loA, hiA := project(va, axis)
		loB, hiB := project(vb, axis)
		overlap := math.Min(hiA, hiB) - math.Max(loA, loB)
		if overlap < 0 {
			return contactGeom{}
		}
		if overlap < best-1e-9 {
			best, n = overlap, axis
		}
	}
	if cb.Sub(ca).Dot(n) < 0 {
		n = n.Mul(-1)
	}

	_, supportA := project(va, n)
	loB, _ := project(vb, n)

	var points []world.ContactPoint
	for _, v := range vb {
		if depth := supportA - v.Dot(n); depth >= 0 {
			points = append(points, world.ContactPoint{Point: v, Depth: depth})
		}
	}
	if len(points) == 0 {
		for _, v := range va {
			if depth := v.Dot(n) - loB; depth >= 0 {
				points = append(points, world.ContactPoint{Point: v, Depth: depth})
			}
		}
	}
	for len(points) > 2 {
		shallowest := 0
		for i := range points {
			if points[i].Depth < points[shallowest].Depth {
				shallowest = i
			}
		}
		points = append(points[:shallowest], points[shallowest+1:]...)
	}
	if len(points) == 0 {
		return contactGeom{}
	}
	return contactGeom{normal: n, points: points}
}

// narrowPhase computes one manifold per candidate pair. It is data parallel
// over pairs and writes only into the returned slice.
func (p *Pipeline) narrowPhase(pairs []world.Pair, index map[world.ColliderID]int, proxies []proxy, bodies []solverBody, prev *world.NarrowPhase) []world.Manifold {
	out := make([]world.Manifold, len(pairs))
	p.workers.For(len(pairs), 16, func(start, end int) {
		for i := start; i < end; i++ {
			pair := pairs[i]
			a, b := &proxies[index[pair.A]], &proxies[index[pair.B]]
			g := collide(a, b, bodies)

			m := world.Manifold{Pair: pair, Normal: g.normal, Sensor: a.sensor || b.sensor, Touching: g.touching()}
			if !m.Sensor && m.Touching {
				m.Points = g.points
				if old, ok := prev.Find(pair); ok && len(old.Points) == len(m.Points) {
					for k := range m.Points {
						m.Points[k].NormalImpulse = old.Points[k].NormalImpulse
						m.Points[k].TangentImpulse = old.Points[k].TangentImpulse
					}
				}
			}
			out[i] = m
		}
	})
	return out
}

// emitEvents compares the previous and current manifolds in pair order and
// reports contact and proximity transitions.
func emitEvents(prev, next []world.Manifold, h events.Handler) {
	if h == nil {
		return
	}
	i, j := 0, 0
	for i < len(prev) || j < len(next) {
		switch {
		case j >= len(next) || (i < len(prev) && prev[i].Pair.Less(next[j].Pair)):
			transition(&prev[i], nil, h)
			i++
		case i >= len(prev) || next[j].Pair.Less(prev[i].Pair):
			transition(nil, &next[j], h)
			j++
		default:
			transition(&prev[i], &next[j], h)
			i++
			j++
		}
	}
}

func transition(before, after *world.Manifold, h events.Handler) {
	was := before != nil && before.Touching
	is := after != nil && after.Touching
	if was == is {
		return
	}

	m := after
	if m == nil {
		m = before
	}
	if m.Sensor {
		e := events.ProximityEvent{Collider1: m.Pair.A, Collider2: m.Pair.B, Prev: events.Disjoint, New: events.Intersecting}
		if was {
			e.Prev, e.New = events.Intersecting, events.Disjoint
		}
		h.HandleProximity(e)
		return
	}

	kind := events.ContactStarted
	if was {
		kind = events.ContactStopped
	}
	h.HandleContact(events.ContactEvent{Kind: kind, Collider1: m.Pair.A, Collider2: m.Pair.B})
}
