package testbed

import "github.com/san-kum/testbed/internal/world"

// Flag names one persistent state flag.
type Flag uint8

const (
	FlagSleep Flag = iota
	FlagSubStepping
	FlagShapes
	FlagJoints
	FlagAABBs
	FlagContactPoints
	FlagContactNormals
	FlagCenterOfMass
	FlagWireframe
	FlagStatistics
	FlagProfile
	FlagDebug

	numFlags
)

// StateFlags are persistent toggles. Changes take effect on the next tick,
// when they are diffed against the flags of the previous tick.
type StateFlags struct {
	Sleep          bool `yaml:"sleep"`
	SubStepping    bool `yaml:"sub_stepping"`
	Shapes         bool `yaml:"shapes"`
	Joints         bool `yaml:"joints"`
	AABBs          bool `yaml:"aabbs"`
	ContactPoints  bool `yaml:"contact_points"`
	ContactNormals bool `yaml:"contact_normals"`
	CenterOfMass   bool `yaml:"center_of_mass"`
	Wireframe      bool `yaml:"wireframe"`
	Statistics     bool `yaml:"statistics"`
	Profile        bool `yaml:"profile"`
	Debug          bool `yaml:"debug"`
}

// DefaultStateFlags has sleeping enabled and every overlay off.
func DefaultStateFlags() StateFlags {
	return StateFlags{Sleep: true, Shapes: true, Joints: true}
}

var flagFields = [numFlags]struct {
	name  string
	field func(*StateFlags) *bool
}{
	FlagSleep:          {"sleep", func(f *StateFlags) *bool { return &f.Sleep }},
	FlagSubStepping:    {"sub_stepping", func(f *StateFlags) *bool { return &f.SubStepping }},
	FlagShapes:         {"shapes", func(f *StateFlags) *bool { return &f.Shapes }},
	FlagJoints:         {"joints", func(f *StateFlags) *bool { return &f.Joints }},
	FlagAABBs:          {"aabbs", func(f *StateFlags) *bool { return &f.AABBs }},
	FlagContactPoints:  {"contact_points", func(f *StateFlags) *bool { return &f.ContactPoints }},
	FlagContactNormals: {"contact_normals", func(f *StateFlags) *bool { return &f.ContactNormals }},
	FlagCenterOfMass:   {"center_of_mass", func(f *StateFlags) *bool { return &f.CenterOfMass }},
	FlagWireframe:      {"wireframe", func(f *StateFlags) *bool { return &f.Wireframe }},
	FlagStatistics:     {"statistics", func(f *StateFlags) *bool { return &f.Statistics }},
	FlagProfile:        {"profile", func(f *StateFlags) *bool { return &f.Profile }},
	FlagDebug:          {"debug", func(f *StateFlags) *bool { return &f.Debug }},
}

func (f Flag) String() string {
	if f >= numFlags {
		return "unknown"
	}
	return flagFields[f].name
}

// AllFlags lists every flag in declaration order.
func AllFlags() []Flag {
	out := make([]Flag, numFlags)
	for i := range out {
		out[i] = Flag(i)
	}
	return out
}

func (s StateFlags) Get(f Flag) bool { return *flagFields[f].field(&s) }

func (s *StateFlags) Set(f Flag, on bool) { *flagFields[f].field(s) = on }

func (s *StateFlags) Toggle(f Flag) { s.Set(f, !s.Get(f)) }

// ActionFlags are one-shot requests, each cleared when honored.
type ActionFlags struct {
	ResetWorldGraphics bool
	ExampleChanged     bool
	Restart            bool
	BackendChanged     bool
	TakeSnapshot       bool
	RestoreSnapshot    bool
}

// FlagObserver is told about flag edges that have no effect on the
// simulation itself, such as overlay toggles.
type FlagObserver interface {
	FlagChanged(f Flag, on bool)
	WorldReset(w *world.World)
}

// edges returns the flags whose value differs between prev and cur.
func edges(prev, cur StateFlags) []Flag {
	var out []Flag
	for _, f := range AllFlags() {
		if prev.Get(f) != cur.Get(f) {
			out = append(out, f)
		}
	}
	return out
}

// applySleep sets every body's activation to honor the sleep flag.
func applySleep(w *world.World, on bool) {
	for _, b := range w.Bodies.Items {
		if on {
			if b.Type != world.Kinematic {
				b.Activation.Threshold = world.DefaultSleepThreshold
			}
			continue
		}
		b.WakeUp()
		b.Activation.Threshold = world.NeverSleep
	}
}
