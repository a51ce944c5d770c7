package engine

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/testbed/internal/events"
	"github.com/san-kum/testbed/internal/pool"
	"github.com/san-kum/testbed/internal/world"
)

var ErrInvalidDt = errors.New("engine: timestep must be positive")

// Counters describe the work done by the last step.
type Counters struct {
	Pairs    int
	Contacts int
	Islands  int
	Sleeping int
	Substeps int
}

type Pipeline struct {
	workers  *pool.Pool
	scratch  *bodyPool
	counters Counters
}

// NewPipeline returns a pipeline that solves islands on workers. A nil pool
// solves sequentially; both produce identical results.
func NewPipeline(workers *pool.Pool) *Pipeline {
	return &Pipeline{workers: workers, scratch: newBodyPool()}
}

func (p *Pipeline) Counters() Counters { return p.counters }

// SetPool swaps the worker pool used by subsequent steps.
func (p *Pipeline) SetPool(workers *pool.Pool) { p.workers = workers }

// Step advances w by one timestep. Events are reported to h in pair order.
// Cancellation is only observed before the step starts; a step that has
// begun always runs to completion so w is never left half solved.
func (p *Pipeline) Step(ctx context.Context, w *world.World, h events.Handler) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ctx = context.WithoutCancel(ctx)
	params := w.Params
	if params.Dt <= 0 {
		return fmt.Errorf("%w, got %f", ErrInvalidDt, params.Dt)
	}
	if params.VelocityIterations < 1 {
		params.VelocityIterations = 1
	}
	p.counters = Counters{}

	ids := w.Bodies.IDs()
	scratch := p.scratch.Get(len(ids))
	defer p.scratch.Put(scratch)
	bodies := *scratch

	bodyIndex := make(map[world.BodyID]int, len(ids))
	for i, id := range ids {
		b := w.Bodies.Items[id]
		bodyIndex[id] = i
		bodies[i] = solverBody{
			id: id, kind: b.Type, pos: b.Position, angle: b.Angle, v: b.LinVel, w: b.AngVel,
			invMass: b.InvMass, invI: b.InvInertia, linDamp: b.LinearDamping, angDamp: b.AngularDamping,
			gravity: b.GravityScale, act: b.Activation, minExtent: math.Inf(1),
		}
	}

	proxies, colliderIndex := p.loadProxies(w, bodyIndex, bodies)

	p.integrateVelocities(bodies, w.Gravity, params.Dt)

	pairs := broadPhase(&w.Broad, proxies, bodies)
	manifolds := p.narrowPhase(pairs, colliderIndex, proxies, bodies, &w.Narrow)
	emitEvents(w.Narrow.Manifolds, manifolds, h)
	p.counters.Pairs = len(pairs)

	contacts := p.prepareContacts(manifolds, colliderIndex, proxies, bodies, params)
	joints := p.prepareJoints(w, bodyIndex, bodies, params)
	islands := buildIslands(bodies, contacts, joints)
	p.counters.Contacts = len(contacts)
	p.counters.Islands = len(islands)

	for i := range islands {
		if !islands[i].awake {
			continue
		}
		for _, bi := range islands[i].bodies {
			if bodies[bi].act.Sleeping {
				bodies[bi].act.WakeUp()
			}
		}
	}

	err := p.workers.Each(ctx, len(islands), func(i int) error {
		if islands[i].awake {
			solveIsland(&islands[i], bodies, contacts, joints, params.VelocityIterations)
		}
		return nil
	})
	if err != nil {
		return err
	}

	p.counters.Substeps = p.integratePositions(bodies, params)
	p.counters.Sleeping = updateSleep(islands, bodies, params.Dt)

	storeImpulses(manifolds, contacts)
	for i := range joints {
		w.Joints.Items[joints[i].id].Impulse = joints[i].impulse
	}
	for i := range bodies {
		sb := &bodies[i]
		b := w.Bodies.Items[sb.id]
		b.Position, b.Angle, b.LinVel, b.AngVel = sb.pos, sb.angle, sb.v, sb.w
		b.Activation = sb.act
	}
	w.Broad.Pairs = pairs
	w.Narrow.Manifolds = manifolds
	return nil
}

func (p *Pipeline) loadProxies(w *world.World, bodyIndex map[world.BodyID]int, bodies []solverBody) ([]proxy, map[world.ColliderID]int) {
	cids := w.Colliders.IDs()
	proxies := make([]proxy, 0, len(cids))
	index := make(map[world.ColliderID]int, len(cids))
	for _, cid := range cids {
		c := w.Colliders.Items[cid]
		bi, ok := bodyIndex[c.Parent]
		if !ok {
			continue
		}
		parent := w.Bodies.Items[c.Parent]
		index[cid] = len(proxies)
		proxies = append(proxies, proxy{
			id:          cid,
			body:        bi,
			shape:       c.Shape,
			offset:      c.Offset,
			sensor:      c.Sensor,
			friction:    c.Friction,
			restitution: c.Restitution,
			aabb:        c.AABB(parent),
		})
		if !c.Sensor {
			bodies[bi].minExtent = math.Min(bodies[bi].minExtent, minExtent(c.Shape))
		}
	}
	return proxies, index
}

func minExtent(s world.Shape) float64 {
	if s.Kind == world.Ball {
		return s.Radius
	}
	return math.Min(s.HalfExtents[0], s.HalfExtents[1])
}

func storeImpulses(manifolds []world.Manifold, contacts []contactConstraint) {
	for _, c := range contacts {
		m := &manifolds[c.manifold]
		for k := range c.points {
			m.Points[k].NormalImpulse = c.points[k].normalImp
			m.Points[k].TangentImpulse = c.points[k].tangentImp
		}
	}
}

// updateSleep puts an island to sleep once every body in it has stayed below
// its activation threshold for TimeToSleep. It returns the number of
// sleeping dynamic bodies.
func updateSleep(islands []island, bodies []solverBody, dt float64) int {
	sleeping := 0
	for i := range islands {
		isl := &islands[i]
		if !isl.awake {
			sleeping += len(isl.bodies)
			continue
		}
		ready := true
		for _, bi := range isl.bodies {
			b := &bodies[bi]
			energy := b.v.LenSqr() + b.w*b.w
			if !b.act.CanSleep() || energy > b.act.Threshold {
				b.act.Timer = 0
				ready = false
				continue
			}
			b.act.Timer += dt
			if b.act.Timer < world.TimeToSleep {
				ready = false
			}
		}
		if !ready {
			continue
		}
		for _, bi := range isl.bodies {
			b := &bodies[bi]
			b.act.Sleeping = true
			b.v, b.w = mgl64.Vec2{}, 0
		}
		sleeping += len(isl.bodies)
	}
	return sleeping
}
