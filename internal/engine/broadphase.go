package engine

import (
	"math"
	"slices"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/testbed/internal/world"
)

// proxies covering more cells than this are tested against everything
// instead of being rasterized into the grid.
const maxCellsPerProxy = 1024

type proxy struct {
	id          world.ColliderID
	body        int
	shape       world.Shape
	offset      mgl64.Vec2
	sensor      bool
	friction    float64
	restitution float64
	aabb        world.AABB
}

func (p *proxy) center(bodies []solverBody) mgl64.Vec2 {
	b := &bodies[p.body]
	return b.pos.Add(mgl64.Rotate2D(b.angle).Mul2x1(p.offset))
}

type cellKey struct{ x, y int }

// broadPhase rebuilds the uniform grid and returns the sorted candidate
// pairs whose bounds overlap.
func broadPhase(bp *world.BroadPhase, proxies []proxy, bodies []solverBody) []world.Pair {
	cell := 0.0
	for i := range proxies {
		if bodies[proxies[i].body].dynamic() {
			cell = math.Max(cell, 2*proxies[i].shape.BoundingRadius())
		}
	}
	if cell <= 0 {
		cell = 1
	}
	bp.CellSize = cell

	grid := make(map[cellKey][]int)
	var oversized []int
	for i := range proxies {
		box := proxies[i].aabb
		x0, y0 := int(math.Floor(box.Min[0]/cell)), int(math.Floor(box.Min[1]/cell))
		x1, y1 := int(math.Floor(box.Max[0]/cell)), int(math.Floor(box.Max[1]/cell))
		if (x1-x0+1)*(y1-y0+1) > maxCellsPerProxy {
			oversized = append(oversized, i)
			continue
		}
		for x := x0; x <= x1; x++ {
			for y := y0; y <= y1; y++ {
				k := cellKey{x, y}
				grid[k] = append(grid[k], i)
			}
		}
	}

	seen := make(map[world.Pair]struct{})
	var pairs []world.Pair
	consider := func(i, j int) {
		a, b := &proxies[i], &proxies[j]
		if !shouldCollide(a, b, bodies) || !a.aabb.Intersects(b.aabb) {
			return
		}
		pair := world.MakePair(a.id, b.id)
		if _, dup := seen[pair]; dup {
			return
		}
		seen[pair] = struct{}{}
		pairs = append(pairs, pair)
	}

	for _, members := range grid {
		for x := 0; x < len(members); x++ {
			for y := x + 1; y < len(members); y++ {
				consider(members[x], members[y])
			}
		}
	}
	for _, i := range oversized {
		for j := range proxies {
			if i != j {
				consider(i, j)
			}
		}
	}

	slices.SortFunc(pairs, func(a, b world.Pair) int {
		switch {
		case a.Less(b):
			return -1
		case b.Less(a):
			return 1
		}
		return 0
	})
	return pairs
}

func shouldCollide(a, b *proxy, bodies []solverBody) bool {
	if a.body == b.body {
		return false
	}
	ba, bb := &bodies[a.body], &bodies[b.body]
	if !ba.dynamic() && !bb.dynamic() {
		return a.sensor || b.sensor
	}
	return true
}
