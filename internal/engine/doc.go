// Package engine is the canonical rigid body pipeline driven by the testbed.
//
// A step runs velocity integration, a uniform-grid broad phase, the narrow
// phase, island construction, a sequential impulse solver and position
// integration with optional CCD sub-steps. Islands are solved on the worker
// pool; the result does not depend on the pool size.
package engine
