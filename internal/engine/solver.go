package engine

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/testbed/internal/world"
)

func cross(a, b mgl64.Vec2) float64 { return a[0]*b[1] - a[1]*b[0] }

// crossSV is w x r for a scalar angular velocity.
func crossSV(w float64, r mgl64.Vec2) mgl64.Vec2 { return mgl64.Vec2{-w * r[1], w * r[0]} }

type contactConstraint struct {
	manifold int
	a, b     int
	normal   mgl64.Vec2
	friction float64
	points   []pointConstraint
}

type pointConstraint struct {
	rA, rB      mgl64.Vec2
	normalMass  float64
	tangentMass float64
	bias        float64
	normalImp   float64
	tangentImp  float64
}

type jointConstraint struct {
	id      world.JointID
	kind    world.JointKind
	a, b    int
	rA, rB  mgl64.Vec2
	length  float64
	bias    mgl64.Vec2
	biasN   float64
	axis    mgl64.Vec2
	impulse mgl64.Vec2
}

type island struct {
	bodies   []int
	contacts []int
	joints   []int
	awake    bool
}

// buildIslands groups dynamic bodies connected by touching contacts or
// joints. Static and kinematic bodies never join an island, so islands can
// be solved independently and in any order.
func buildIslands(bodies []solverBody, contacts []contactConstraint, joints []jointConstraint) []island {
	parent := make([]int, len(bodies))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	union := func(a, b int) {
		if !bodies[a].dynamic() || !bodies[b].dynamic() {
			return
		}
		ra, rb := find(a), find(b)
		if ra == rb {
			return
		}
		if ra < rb {
			parent[rb] = ra
		} else {
			parent[ra] = rb
		}
	}
	for _, c := range contacts {
		union(c.a, c.b)
	}
	for _, j := range joints {
		union(j.a, j.b)
	}

	rootIsland := make(map[int]int)
	var islands []island
	owner := func(a, b int) int {
		if bodies[a].dynamic() {
			return a
		}
		return b
	}
	for i := range bodies {
		if !bodies[i].dynamic() {
			continue
		}
		r := find(i)
		idx, ok := rootIsland[r]
		if !ok {
			idx = len(islands)
			rootIsland[r] = idx
			islands = append(islands, island{})
		}
		islands[idx].bodies = append(islands[idx].bodies, i)
		if !bodies[i].act.Sleeping {
			islands[idx].awake = true
		}
	}
	for ci, c := range contacts {
		o := owner(c.a, c.b)
		if !bodies[o].dynamic() {
			continue
		}
		isl := &islands[rootIsland[find(o)]]
		isl.contacts = append(isl.contacts, ci)
	}
	for ji, j := range joints {
		o := owner(j.a, j.b)
		if !bodies[o].dynamic() {
			continue
		}
		isl := &islands[rootIsland[find(o)]]
		isl.joints = append(isl.joints, ji)
	}

	// a sleeping island touched by a moving kinematic body wakes up
	for ci := range contacts {
		c := &contacts[ci]
		for _, pair := range [][2]int{{c.a, c.b}, {c.b, c.a}} {
			k, d := &bodies[pair[0]], pair[1]
			if k.kind == world.Kinematic && bodies[d].dynamic() && (k.v.LenSqr() > 0 || k.w != 0) {
				islands[rootIsland[find(d)]].awake = true
			}
		}
	}
	return islands
}

func (p *Pipeline) prepareContacts(manifolds []world.Manifold, index map[world.ColliderID]int, proxies []proxy, bodies []solverBody, params world.IntegrationParams) []contactConstraint {
	var out []contactConstraint
	for mi := range manifolds {
		m := &manifolds[mi]
		if m.Sensor || !m.Touching {
			continue
		}
		pa, pb := &proxies[index[m.Pair.A]], &proxies[index[m.Pair.B]]
		a, b := &bodies[pa.body], &bodies[pb.body]

		c := contactConstraint{
			manifold: mi,
			a:        pa.body,
			b:        pb.body,
			normal:   m.Normal,
			friction: math.Sqrt(pa.friction * pb.friction),
		}
		restitution := math.Max(pa.restitution, pb.restitution)
		tangent := mgl64.Vec2{-m.Normal[1], m.Normal[0]}

		for _, cp := range m.Points {
			pc := pointConstraint{
				rA:         cp.Point.Sub(a.pos),
				rB:         cp.Point.Sub(b.pos),
				normalImp:  cp.NormalImpulse,
				tangentImp: cp.TangentImpulse,
			}
			rnA, rnB := cross(pc.rA, m.Normal), cross(pc.rB, m.Normal)
			kn := a.invMass + b.invMass + a.invI*rnA*rnA + b.invI*rnB*rnB
			if kn > 0 {
				pc.normalMass = 1 / kn
			}
			rtA, rtB := cross(pc.rA, tangent), cross(pc.rB, tangent)
			kt := a.invMass + b.invMass + a.invI*rtA*rtA + b.invI*rtB*rtB
			if kt > 0 {
				pc.tangentMass = 1 / kt
			}

			pc.bias = -params.ERP / params.Dt * math.Max(cp.Depth-params.AllowedPenetration, 0)
			dv := relativeVelocity(a, b, pc.rA, pc.rB)
			if vn := dv.Dot(m.Normal); vn < -1 {
				pc.bias += restitution * vn
			}
			c.points = append(c.points, pc)
		}
		out = append(out, c)
	}
	return out
}

func (p *Pipeline) prepareJoints(w *world.World, index map[world.BodyID]int, bodies []solverBody, params world.IntegrationParams) []jointConstraint {
	var out []jointConstraint
	for _, id := range w.Joints.IDs() {
		j := w.Joints.Items[id]
		ia, oka := index[j.Body1]
		ib, okb := index[j.Body2]
		if !oka || !okb {
			continue
		}
		a, b := &bodies[ia], &bodies[ib]
		jc := jointConstraint{
			id:      id,
			kind:    j.Kind,
			a:       ia,
			b:       ib,
			rA:      mgl64.Rotate2D(a.angle).Mul2x1(j.Anchor1),
			rB:      mgl64.Rotate2D(b.angle).Mul2x1(j.Anchor2),
			length:  j.Length,
			impulse: j.Impulse,
		}
		d := b.pos.Add(jc.rB).Sub(a.pos.Add(jc.rA))
		switch j.Kind {
		case world.BallJoint:
			jc.bias = d.Mul(params.ERP / params.Dt)
		case world.DistanceJoint:
			l := d.Len()
			if l > 1e-12 {
				jc.axis = d.Mul(1 / l)
			} else {
				jc.axis = mgl64.Vec2{1, 0}
			}
			jc.biasN = params.ERP / params.Dt * (l - j.Length)
		}
		out = append(out, jc)
	}
	return out
}

func relativeVelocity(a, b *solverBody, rA, rB mgl64.Vec2) mgl64.Vec2 {
	va := a.v.Add(crossSV(a.w, rA))
	vb := b.v.Add(crossSV(b.w, rB))
	return vb.Sub(va)
}

func applyImpulse(a, b *solverBody, rA, rB, imp mgl64.Vec2) {
	if a.movable() {
		a.v = a.v.Sub(imp.Mul(a.invMass))
		a.w -= a.invI * cross(rA, imp)
	}
	if b.movable() {
		b.v = b.v.Add(imp.Mul(b.invMass))
		b.w += b.invI * cross(rB, imp)
	}
}

// solveIsland runs sequential impulses over one island. It writes only to
// the island's own bodies; static and kinematic bodies are read-only.
func solveIsland(isl *island, bodies []solverBody, contacts []contactConstraint, joints []jointConstraint, iterations int) {
	for _, ci := range isl.contacts {
		c := &contacts[ci]
		a, b := &bodies[c.a], &bodies[c.b]
		tangent := mgl64.Vec2{-c.normal[1], c.normal[0]}
		for k := range c.points {
			pc := &c.points[k]
			imp := c.normal.Mul(pc.normalImp).Add(tangent.Mul(pc.tangentImp))
			applyImpulse(a, b, pc.rA, pc.rB, imp)
		}
	}
	for _, ji := range isl.joints {
		j := &joints[ji]
		applyImpulse(&bodies[j.a], &bodies[j.b], j.rA, j.rB, j.impulse)
	}

	for it := 0; it < iterations; it++ {
		for _, ji := range isl.joints {
			solveJoint(&joints[ji], bodies)
		}
		for _, ci := range isl.contacts {
			solveContact(&contacts[ci], bodies)
		}
	}
}

func solveContact(c *contactConstraint, bodies []solverBody) {
	a, b := &bodies[c.a], &bodies[c.b]
	tangent := mgl64.Vec2{-c.normal[1], c.normal[0]}

	for k := range c.points {
		pc := &c.points[k]
		dv := relativeVelocity(a, b, pc.rA, pc.rB)
		vt := dv.Dot(tangent)
		lambda := -vt * pc.tangentMass
		maxF := c.friction * pc.normalImp
		newImp := math.Max(-maxF, math.Min(maxF, pc.tangentImp+lambda))
		lambda = newImp - pc.tangentImp
		pc.tangentImp = newImp
		applyImpulse(a, b, pc.rA, pc.rB, tangent.Mul(lambda))
	}

	for k := range c.points {
		pc := &c.points[k]
		dv := relativeVelocity(a, b, pc.rA, pc.rB)
		vn := dv.Dot(c.normal)
		lambda := -(vn + pc.bias) * pc.normalMass
		newImp := math.Max(pc.normalImp+lambda, 0)
		lambda = newImp - pc.normalImp
		pc.normalImp = newImp
		applyImpulse(a, b, pc.rA, pc.rB, c.normal.Mul(lambda))
	}
}

func solveJoint(j *jointConstraint, bodies []solverBody) {
	a, b := &bodies[j.a], &bodies[j.b]
	dv := relativeVelocity(a, b, j.rA, j.rB)

	switch j.kind {
	case world.BallJoint:
		// K = (mA + mB) I + iA [rA]x^T [rA]x + iB [rB]x^T [rB]x
		k11 := a.invMass + b.invMass + a.invI*j.rA[1]*j.rA[1] + b.invI*j.rB[1]*j.rB[1]
		k12 := -a.invI*j.rA[0]*j.rA[1] - b.invI*j.rB[0]*j.rB[1]
		k22 := a.invMass + b.invMass + a.invI*j.rA[0]*j.rA[0] + b.invI*j.rB[0]*j.rB[0]
		det := k11*k22 - k12*k12
		if math.Abs(det) < 1e-12 {
			return
		}
		rhs := dv.Add(j.bias).Mul(-1)
		imp := mgl64.Vec2{
			(k22*rhs[0] - k12*rhs[1]) / det,
			(k11*rhs[1] - k12*rhs[0]) / det,
		}
		j.impulse = j.impulse.Add(imp)
		applyImpulse(a, b, j.rA, j.rB, imp)

	case world.DistanceJoint:
		rnA, rnB := cross(j.rA, j.axis), cross(j.rB, j.axis)
		k := a.invMass + b.invMass + a.invI*rnA*rnA + b.invI*rnB*rnB
		if k <= 0 {
			return
		}
		lambda := -(dv.Dot(j.axis) + j.biasN) / k
		imp := j.axis.Mul(lambda)
		j.impulse = j.impulse.Add(imp)
		applyImpulse(a, b, j.rA, j.rB, imp)
	}
}
