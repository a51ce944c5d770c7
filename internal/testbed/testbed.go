// Package testbed drives a physics world tick by tick on behalf of an
// operator or a benchmark.
//
// A Testbed owns the World State exclusively. It selects the scenario and
// backend, advances the active backend one tick at a time, dispatches
// per-tick callbacks, drains events, and captures or restores snapshots at
// tick boundaries.
package testbed

import (
	"fmt"
	"io"
	"strings"
	"time"
	"unicode"

	"github.com/charmbracelet/log"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/testbed/internal/backend"
	"github.com/san-kum/testbed/internal/engine"
	"github.com/san-kum/testbed/internal/events"
	"github.com/san-kum/testbed/internal/pool"
	"github.com/san-kum/testbed/internal/snapshot"
	"github.com/san-kum/testbed/internal/world"
)

// Scenario is a named world builder. Build receives the testbed so it can
// install the world with SetWorld and register callbacks.
type Scenario struct {
	Name  string
	Build func(tb *Testbed)
}

// Callback runs after every tick with mutable access to the world and the
// tick's events. It must not retain either past the call.
type Callback interface {
	OnStep(w *world.World, ev events.View, t float64)
}

type CallbackFunc func(w *world.World, ev events.View, t float64)

func (f CallbackFunc) OnStep(w *world.World, ev events.View, t float64) { f(w, ev, t) }

type Options struct {
	Logger    *log.Logger
	Scenarios []Scenario
	Backends  *backend.Registry
	// Settings holds solver overrides per alternate backend name.
	Settings map[string]backend.Settings

	// Parallel solves canonical islands on a pool of Workers goroutines.
	// Workers == 0 means one per CPU.
	Parallel bool
	Workers  int

	Gravity       mgl64.Vec2
	Params        world.IntegrationParams
	StepsPerFrame int
	StartPaused   bool
	Example       string
	Backend       string
	Flags         StateFlags
	Observer      FlagObserver
	Clock         func() time.Time
}

// DefaultOptions uses the bundled backends, earth gravity and a 60 Hz
// step.
func DefaultOptions() Options {
	return Options{
		Backends:      backend.Default(),
		Gravity:       mgl64.Vec2{0, -9.81},
		Params:        world.DefaultIntegrationParams(),
		StepsPerFrame: 1,
		Flags:         DefaultStateFlags(),
	}
}

// Counters describe the last tick and the run so far.
type Counters struct {
	Step     uint64
	Time     float64
	Ticks    int
	StepTime time.Duration
	Total    time.Duration
	Engine   engine.Counters

	Bodies    int
	Colliders int
	Joints    int
	Sleeping  int
}

// Mean is the average backend step time since the world was loaded.
func (c Counters) Mean() time.Duration {
	if c.Ticks == 0 {
		return 0
	}
	return c.Total / time.Duration(c.Ticks)
}

type Testbed struct {
	log   *log.Logger
	clock func() time.Time
	run   *RunController

	flags     StateFlags
	prevFlags StateFlags
	actions   ActionFlags
	observer  FlagObserver

	scenarios []Scenario
	example   int

	backends *backend.Registry
	settings map[string]backend.Settings
	active   int
	shadow   backend.Backend

	workers  *pool.Pool
	pipeline *engine.Pipeline

	gravity       mgl64.Vec2
	params        world.IntegrationParams
	stepsPerFrame int

	world     *world.World
	events    *events.Collector
	callbacks []Callback
	step      uint64
	time      float64
	counters  Counters

	snapshot *snapshot.Snapshot
	digest   [snapshot.NumParts]string
}

// New builds a testbed and loads the initial scenario. Pool and backend
// construction errors are returned here, before any tick runs.
func New(opts Options) (*Testbed, error) {
	if len(opts.Scenarios) == 0 {
		return nil, ErrNoScenarios
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Backends == nil {
		opts.Backends = backend.Default()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.StepsPerFrame < 1 {
		opts.StepsPerFrame = 1
	}
	if opts.Params.Dt <= 0 {
		opts.Params = world.DefaultIntegrationParams()
	}

	var workers *pool.Pool
	if opts.Parallel {
		n := opts.Workers
		if n == 0 {
			n = pool.DefaultSize()
		}
		var err error
		if workers, err = pool.New(n); err != nil {
			return nil, err
		}
	}

	tb := &Testbed{
		log:           opts.Logger,
		clock:         opts.Clock,
		run:           NewRunController(opts.StartPaused),
		flags:         opts.Flags,
		prevFlags:     opts.Flags,
		observer:      opts.Observer,
		scenarios:     opts.Scenarios,
		backends:      opts.Backends,
		settings:      opts.Settings,
		workers:       workers,
		pipeline:      engine.NewPipeline(workers),
		gravity:       opts.Gravity,
		params:        opts.Params,
		stepsPerFrame: opts.StepsPerFrame,
		events:        events.NewCollector(),
	}
	tb.params.ReturnAfterCCDSubstep = opts.Flags.SubStepping

	if opts.Example != "" {
		i, err := FindScenario(opts.Scenarios, opts.Example)
		if err != nil {
			tb.log.Warn("falling back to the first scenario", "err", err)
		}
		tb.example = i
	}
	if opts.Backend != "" {
		i, err := opts.Backends.Index(opts.Backend)
		if err != nil {
			return nil, err
		}
		tb.active = i
	}

	tb.log.Info("testbed ready", "workers", workers.Workers(), "parallel", opts.Parallel,
		"backends", strings.Join(tb.backends.Names(), ","), "scenarios", len(tb.scenarios))

	if err := tb.load(); err != nil {
		return nil, err
	}
	return tb, nil
}

// FindScenario looks a scenario up by name, ignoring case, spaces and
// punctuation, so "StressTestPyramid" matches "(Stress test) pyramid". A
// unique prefix also matches.
func FindScenario(list []Scenario, name string) (int, error) {
	want := normalizeName(name)
	for i, s := range list {
		if normalizeName(s.Name) == want {
			return i, nil
		}
	}
	for i, s := range list {
		if strings.HasPrefix(normalizeName(s.Name), want) && want != "" {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownScenario, name)
}

func normalizeName(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// NewWorld returns an empty world using the testbed's gravity and
// integration parameters.
func (tb *Testbed) NewWorld() *world.World {
	return world.New(tb.gravity, tb.params)
}

// SetWorld installs a freshly built world. Caches, the step index and time
// are reset; the sleep flag is applied to every body.
func (tb *Testbed) SetWorld(w *world.World) {
	w.Params = tb.params
	w.Broad = world.NewBroadPhase()
	w.Narrow = world.NewNarrowPhase()
	applySleep(w, tb.flags.Sleep)

	tb.world = w
	tb.step = 0
	tb.time = 0
	tb.counters = Counters{}
	tb.actions.ResetWorldGraphics = true
	tb.log.Debug("world installed", "bodies", w.Bodies.Len(), "colliders", w.Colliders.Len(), "joints", w.Joints.Len())
}

func (tb *Testbed) AddCallback(cb Callback) { tb.callbacks = append(tb.callbacks, cb) }

func (tb *Testbed) World() *world.World          { return tb.world }
func (tb *Testbed) Run() *RunController          { return tb.run }
func (tb *Testbed) Mode() RunMode                { return tb.run.Mode() }
func (tb *Testbed) Step() uint64                 { return tb.step }
func (tb *Testbed) Time() float64                { return tb.time }
func (tb *Testbed) Flags() StateFlags            { return tb.flags }
func (tb *Testbed) Actions() ActionFlags         { return tb.actions }
func (tb *Testbed) Logger() *log.Logger          { return tb.log }
func (tb *Testbed) Snapshot() *snapshot.Snapshot { return tb.snapshot }

// Digest is the per-part hash of the state after the last tick. It is only
// maintained while the Debug flag is on.
func (tb *Testbed) Digest() [snapshot.NumParts]string { return tb.digest }

func (tb *Testbed) Counters() Counters {
	c := tb.counters
	c.Step, c.Time = tb.step, tb.time
	if tb.world != nil {
		c.Bodies = tb.world.Bodies.Len()
		c.Colliders = tb.world.Colliders.Len()
		c.Joints = tb.world.Joints.Len()
		for _, b := range tb.world.Bodies.Items {
			if b.IsDynamic() && b.Activation.Sleeping {
				c.Sleeping++
			}
		}
	}
	return c
}

func (tb *Testbed) Examples() []string {
	names := make([]string, len(tb.scenarios))
	for i, s := range tb.scenarios {
		names[i] = s.Name
	}
	return names
}

func (tb *Testbed) Example() (int, string) { return tb.example, tb.scenarios[tb.example].Name }

func (tb *Testbed) Backends() []string { return tb.backends.Names() }

func (tb *Testbed) Backend() (int, string) { return tb.active, tb.backends.Name(tb.active) }

// SetFlags replaces the state flags; edges are reconciled on the next tick.
func (tb *Testbed) SetFlags(f StateFlags) { tb.flags = f }

func (tb *Testbed) ToggleFlag(f Flag) { tb.flags.Toggle(f) }

// SetStepsPerFrame sets how many ticks a Running frame performs.
func (tb *Testbed) SetStepsPerFrame(n int) { tb.stepsPerFrame = max(n, 1) }

// SetSettings replaces the solver overrides of alternate backends. They
// apply from the next backend rebuild.
func (tb *Testbed) SetSettings(s map[string]backend.Settings) { tb.settings = s }

// Operator commands. They only record requests; Tick honors them.

func (tb *Testbed) ToggleRun() { tb.run.Toggle() }
func (tb *Testbed) StepOnce()  { tb.run.Step() }
func (tb *Testbed) Quit()      { tb.run.Quit() }

func (tb *Testbed) Restart()         { tb.actions.Restart = true }
func (tb *Testbed) RequestSnapshot() { tb.actions.TakeSnapshot = true }
func (tb *Testbed) RequestRestore()  { tb.actions.RestoreSnapshot = true }

// SelectExample picks a scenario by index; out-of-range indices select the
// first scenario.
func (tb *Testbed) SelectExample(i int) {
	if i < 0 || i >= len(tb.scenarios) {
		i = 0
	}
	tb.example = i
	tb.actions.ExampleChanged = true
}

func (tb *Testbed) NextExample() { tb.SelectExample((tb.example + 1) % len(tb.scenarios)) }

func (tb *Testbed) PrevExample() {
	tb.SelectExample((tb.example - 1 + len(tb.scenarios)) % len(tb.scenarios))
}

// SetBackend selects a backend by index. The scenario is reloaded with it
// on the next tick; out-of-range indices select the canonical engine.
func (tb *Testbed) SetBackend(i int) {
	tb.active = tb.backends.Clamp(i)
	tb.actions.BackendChanged = true
}

func (tb *Testbed) NextBackend() { tb.SetBackend((tb.active + 1) % tb.backends.Len()) }

// SwitchBackend makes backend i active immediately, building its shadow
// state from the current world without reloading the scenario.
func (tb *Testbed) SwitchBackend(i int) error {
	tb.active = tb.backends.Clamp(i)
	return tb.rebuildBackend()
}

// DeleteBodies removes a tenth of the dynamic bodies (at least one), lowest
// ids first, and rebuilds the active backend from what remains.
func (tb *Testbed) DeleteBodies() (int, error) {
	ids := tb.world.DynamicBodies()
	if len(ids) == 0 {
		return 0, nil
	}
	n := max(len(ids)/10, 1)
	for _, id := range ids[:n] {
		if err := tb.world.RemoveBody(id); err != nil {
			return 0, err
		}
	}
	tb.log.Info("deleted bodies", "count", n, "remaining", tb.world.Bodies.Len())
	return n, tb.rebuildBackend()
}

// load rebuilds the selected scenario from scratch with the active backend.
func (tb *Testbed) load() error {
	tb.callbacks = nil
	tb.world = nil
	sc := tb.scenarios[tb.example]
	sc.Build(tb)
	if tb.world == nil {
		tb.SetWorld(tb.NewWorld())
	}
	tb.log.Info("scenario loaded", "scenario", sc.Name, "backend", tb.backends.Name(tb.active),
		"bodies", tb.world.Bodies.Len())
	return tb.rebuildBackend()
}

// rebuildBackend discards any shadow state and builds the active backend
// from the current world.
func (tb *Testbed) rebuildBackend() error {
	tb.shadow = nil
	name := tb.backends.Name(tb.active)
	b, err := tb.backends.Build(tb.active, tb.world, tb.settings[name])
	if err != nil {
		return err
	}
	tb.shadow = b
	return nil
}

// Prepare loads scenario i with backend j immediately, for benchmarks.
func (tb *Testbed) Prepare(scenario, backendIndex int) error {
	if scenario < 0 || scenario >= len(tb.scenarios) {
		scenario = 0
	}
	tb.example = scenario
	tb.active = tb.backends.Clamp(backendIndex)
	tb.actions = ActionFlags{}
	return tb.load()
}
