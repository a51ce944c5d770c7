package world

import "github.com/go-gl/mathgl/mgl64"

type JointID uint32

type JointKind uint8

const (
	// BallJoint pins two anchor points together; a revolute joint in 2D.
	BallJoint JointKind = iota
	// DistanceJoint keeps two anchor points at a fixed length.
	DistanceJoint
)

func (k JointKind) String() string {
	if k == DistanceJoint {
		return "distance"
	}
	return "ball"
}

type Joint struct {
	ID      JointID    `msgpack:"id"`
	Kind    JointKind  `msgpack:"kind"`
	Body1   BodyID     `msgpack:"body1"`
	Body2   BodyID     `msgpack:"body2"`
	Anchor1 mgl64.Vec2 `msgpack:"anchor1"`
	Anchor2 mgl64.Vec2 `msgpack:"anchor2"`
	Length  float64    `msgpack:"length,omitempty"`

	// accumulated impulse kept for warm starting
	Impulse mgl64.Vec2 `msgpack:"impulse"`
}

func NewBallJoint(anchor1, anchor2 mgl64.Vec2) Joint {
	return Joint{Kind: BallJoint, Anchor1: anchor1, Anchor2: anchor2}
}

func NewDistanceJoint(anchor1, anchor2 mgl64.Vec2, length float64) Joint {
	return Joint{Kind: DistanceJoint, Anchor1: anchor1, Anchor2: anchor2, Length: length}
}

type JointSet struct {
	Items map[JointID]*Joint `msgpack:"items"`
	Next  JointID            `msgpack:"next"`
}

func NewJointSet() JointSet {
	return JointSet{Items: make(map[JointID]*Joint), Next: 1}
}

func (s *JointSet) Len() int { return len(s.Items) }

func (s *JointSet) IDs() []JointID {
	return sortedKeys(s.Items)
}

func (s JointSet) clone() JointSet {
	c := JointSet{Items: make(map[JointID]*Joint, len(s.Items)), Next: s.Next}
	for id, j := range s.Items {
		cp := *j
		c.Items[id] = &cp
	}
	return c
}
