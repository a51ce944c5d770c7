// Package world defines the canonical simulation state shared by every
// backend.
//
// A [World] owns five independently serializable parts:
//
//   - [BodySet]: rigid bodies keyed by [BodyID]
//   - [ColliderSet]: shapes attached to bodies
//   - [JointSet]: constraints between two bodies
//   - [BroadPhase]: candidate collider pairs from the last step
//   - [NarrowPhase]: persistent contact manifolds used for warm starting
//
// Identifiers are allocated monotonically and never reused, so a restored
// world keeps allocating where the captured one left off.
//
// # Thread Safety
//
// A World is not safe for concurrent use. The testbed owns it and hands out
// temporary exclusive access to callbacks.
package world
