package testbed

// RunMode is the state of the run controller.
type RunMode uint8

const (
	Running RunMode = iota
	Stopped
	// SingleStep performs exactly one tick and then reverts to Stopped.
	SingleStep
	// Quit is terminal; the driver ends the session at the next tick
	// boundary.
	Quit
)

func (m RunMode) String() string {
	switch m {
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	case SingleStep:
		return "step"
	case Quit:
		return "quit"
	default:
		return "unknown"
	}
}

// RunController owns the run mode. Commands only change the mode; ticks
// are performed by the orchestrator.
type RunController struct {
	mode RunMode
}

func NewRunController(paused bool) *RunController {
	if paused {
		return &RunController{mode: Stopped}
	}
	return &RunController{mode: Running}
}

func (c *RunController) Mode() RunMode { return c.mode }

// Toggle switches between Running and Stopped. A pending single step is
// cancelled.
func (c *RunController) Toggle() {
	switch c.mode {
	case Quit:
	case Stopped:
		c.mode = Running
	default:
		c.mode = Stopped
	}
}

// Step requests exactly one tick.
func (c *RunController) Step() {
	if c.mode != Quit {
		c.mode = SingleStep
	}
}

func (c *RunController) Quit() { c.mode = Quit }

// CanStep reports whether the orchestrator may advance the simulation in
// the current tick.
func (c *RunController) CanStep() bool {
	return c.mode == Running || c.mode == SingleStep
}

// afterTick reverts a consumed single step.
func (c *RunController) afterTick() {
	if c.mode == SingleStep {
		c.mode = Stopped
	}
}
