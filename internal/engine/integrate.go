package engine

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/testbed/internal/world"
)

// integrateVelocities applies gravity and damping to awake dynamic bodies.
func (p *Pipeline) integrateVelocities(bodies []solverBody, gravity mgl64.Vec2, dt float64) {
	p.workers.For(len(bodies), 64, func(start, end int) {
		for i := start; i < end; i++ {
			b := &bodies[i]
			if !b.movable() {
				continue
			}
			b.v = b.v.Add(gravity.Mul(b.gravity * dt))
			b.v = b.v.Mul(1 / (1 + dt*b.linDamp))
			b.w *= 1 / (1 + dt*b.angDamp)
		}
	})
}

// integratePositions moves every awake dynamic and kinematic body with
// semi-implicit Euler. Fast bodies are split into sub-steps so they travel
// at most their smallest extent per sub-step. It returns the number of
// sub-steps taken.
func (p *Pipeline) integratePositions(bodies []solverBody, params world.IntegrationParams) int {
	n := ccdSubsteps(bodies, params)
	taken := n
	if params.ReturnAfterCCDSubstep {
		taken = 1
	}
	h := params.Dt / float64(n)

	p.workers.For(len(bodies), 64, func(start, end int) {
		for i := start; i < end; i++ {
			b := &bodies[i]
			switch {
			case b.kind == world.Static:
				continue
			case b.kind == world.Dynamic && b.act.Sleeping:
				continue
			}
			for s := 0; s < taken; s++ {
				b.pos = b.pos.Add(b.v.Mul(h))
				b.angle += b.w * h
			}
		}
	})
	return taken
}

func ccdSubsteps(bodies []solverBody, params world.IntegrationParams) int {
	limit := max(params.MaxCCDSubsteps, 1)
	n := 1
	for i := range bodies {
		b := &bodies[i]
		if !b.movable() || math.IsInf(b.minExtent, 1) || b.minExtent <= 0 {
			continue
		}
		travel := b.v.Len() * params.Dt
		if need := int(math.Ceil(travel / b.minExtent)); need > n {
			n = need
		}
	}
	return min(n, limit)
}
