// Package snapshot captures and restores the complete physics state of a
// world at a step boundary.
//
// A snapshot is five independently encoded buffers (broad phase, narrow
// phase, bodies, colliders, joints) plus the step index. Capture and
// restore are all-or-nothing: a failure in any buffer produces no snapshot
// and no restored state.
package snapshot

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/testbed/internal/world"
	"github.com/vmihailenco/msgpack/v5"
)

// Part identifies one serialized buffer of a snapshot.
type Part int

const (
	BroadPhase Part = iota
	NarrowPhase
	Bodies
	Colliders
	Joints

	NumParts = 5
)

var partNames = [NumParts]string{"broad_phase", "narrow_phase", "bodies", "colliders", "joints"}

func (p Part) String() string {
	if p < 0 || int(p) >= NumParts {
		return fmt.Sprintf("part(%d)", int(p))
	}
	return partNames[p]
}

// Parts lists every part in serialization order.
func Parts() []Part { return []Part{BroadPhase, NarrowPhase, Bodies, Colliders, Joints} }

// Snapshot is immutable once captured.
type Snapshot struct {
	step  uint64
	parts [NumParts][]byte
}

// CaptureError reports the part that failed to encode.
type CaptureError struct {
	Part Part
	Err  error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("snapshot capture %s: %v", e.Part, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }

// RestoreError reports the part that failed to decode.
type RestoreError struct {
	Part Part
	Err  error
}

func (e *RestoreError) Error() string {
	return fmt.Sprintf("snapshot restore %s: %v", e.Part, e.Err)
}

func (e *RestoreError) Unwrap() error { return e.Err }

var encodePart = func(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Capture encodes the five parts of w. Either all five succeed or a
// *CaptureError is returned and nothing is retained.
func Capture(step uint64, w *world.World) (*Snapshot, error) {
	values := [NumParts]any{&w.Broad, &w.Narrow, &w.Bodies, &w.Colliders, &w.Joints}
	s := &Snapshot{step: step}
	for i, v := range values {
		data, err := encodePart(v)
		if err != nil {
			return nil, &CaptureError{Part: Part(i), Err: err}
		}
		s.parts[i] = data
	}
	return s, nil
}

func (s *Snapshot) Step() uint64 { return s.step }

// Bytes returns a copy of one encoded part.
func (s *Snapshot) Bytes(p Part) []byte {
	return bytes.Clone(s.parts[p])
}

// Sizes returns the encoded size of every part, in part order.
func (s *Snapshot) Sizes() [NumParts]int {
	var out [NumParts]int
	for i, b := range s.parts {
		out[i] = len(b)
	}
	return out
}

// Size is the total encoded size of all parts.
func (s *Snapshot) Size() int {
	n := 0
	for _, b := range s.parts {
		n += len(b)
	}
	return n
}

// Digest returns the hex md5 of every part, in part order.
func (s *Snapshot) Digest() [NumParts]string {
	var out [NumParts]string
	for i, b := range s.parts {
		sum := md5.Sum(b)
		out[i] = hex.EncodeToString(sum[:])
	}
	return out
}

// Equal reports whether both snapshots hold the same step and bytes.
func (s *Snapshot) Equal(o *Snapshot) bool {
	if s == nil || o == nil {
		return s == o
	}
	if s.step != o.step {
		return false
	}
	for i := range s.parts {
		if !bytes.Equal(s.parts[i], o.parts[i]) {
			return false
		}
	}
	return true
}

// Restored is a fully decoded snapshot, ready to replace a live world.
type Restored struct {
	Step      uint64
	Broad     world.BroadPhase
	Narrow    world.NarrowPhase
	Bodies    world.BodySet
	Colliders world.ColliderSet
	Joints    world.JointSet
}

// Restore decodes every part into fresh values. The snapshot itself is not
// modified, so Restore can be called any number of times.
func (s *Snapshot) Restore() (*Restored, error) {
	r := &Restored{Step: s.step}
	targets := [NumParts]any{&r.Broad, &r.Narrow, &r.Bodies, &r.Colliders, &r.Joints}
	for i, dst := range targets {
		if err := msgpack.Unmarshal(s.parts[i], dst); err != nil {
			return nil, &RestoreError{Part: Part(i), Err: err}
		}
	}
	r.normalize()

	if err := r.assemble(mgl64.Vec2{}, world.IntegrationParams{}).Validate(); err != nil {
		return nil, &RestoreError{Part: Colliders, Err: err}
	}
	return r, nil
}

func (r *Restored) normalize() {
	if r.Bodies.Items == nil {
		r.Bodies.Items = make(map[world.BodyID]*world.Body)
	}
	if r.Colliders.Items == nil {
		r.Colliders.Items = make(map[world.ColliderID]*world.Collider)
	}
	if r.Joints.Items == nil {
		r.Joints.Items = make(map[world.JointID]*world.Joint)
	}
}

// World assembles a replacement world that shares nothing with r. Gravity
// and integration parameters are not part of the snapshot and come from the
// caller.
func (r *Restored) World(gravity mgl64.Vec2, params world.IntegrationParams) *world.World {
	return r.assemble(gravity, params).Clone()
}

func (r *Restored) assemble(gravity mgl64.Vec2, params world.IntegrationParams) *world.World {
	return &world.World{
		Gravity:   gravity,
		Params:    params,
		Bodies:    r.Bodies,
		Colliders: r.Colliders,
		Joints:    r.Joints,
		Broad:     r.Broad,
		Narrow:    r.Narrow,
	}
}
