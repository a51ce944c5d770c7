package scenarios

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/testbed/internal/testbed"
	"github.com/san-kum/testbed/internal/world"
)

func StressBalls(tb *testbed.Testbed) {
	w := tb.NewWorld()
	ground(w, 60)
	ballGrid(w, 40, 25, 0.4)
	tb.SetWorld(w)
}

func StressPyramid(tb *testbed.Testbed) {
	w := tb.NewWorld()
	ground(w, 60)
	for k := 0; k < 3; k++ {
		base := 20
		shift := float64(k-1) * 22
		for row := 0; row < base; row++ {
			n := base - row
			x0 := shift - float64(n-1)*0.5
			for i := 0; i < n; i++ {
				box(w, mgl64.Vec2{x0 + float64(i), 0.5 + float64(row)}, 0.5, 0.5)
			}
		}
	}
	tb.SetWorld(w)
}

// StressJointBall builds a net of ball-jointed links hanging from a static
// top row.
func StressJointBall(tb *testbed.Testbed) {
	w := tb.NewWorld()
	ground(w, 40)
	const cols, rows = 25, 20
	const gap = 0.8
	ids := make([][]world.BodyID, rows)
	for j := 0; j < rows; j++ {
		ids[j] = make([]world.BodyID, cols)
		for i := 0; i < cols; i++ {
			pos := mgl64.Vec2{float64(i)*gap - float64(cols-1)*gap/2, 30 - float64(j)*gap}
			if j == 0 {
				ids[j][i] = w.InsertBody(world.NewStaticBody(pos))
				continue
			}
			ids[j][i] = ball(w, pos, gap/4)
		}
	}
	for j := 1; j < rows; j++ {
		for i := 0; i < cols; i++ {
			w.MustInsertJoint(world.NewBallJoint(mgl64.Vec2{}, mgl64.Vec2{0, gap}), ids[j-1][i], ids[j][i])
			if i > 0 {
				w.MustInsertJoint(world.NewBallJoint(mgl64.Vec2{}, mgl64.Vec2{-gap, 0}), ids[j][i-1], ids[j][i])
			}
		}
	}
	tb.SetWorld(w)
}
