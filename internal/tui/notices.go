package tui

import (
	"fmt"
	"sync"

	"github.com/san-kum/testbed/internal/testbed"
	"github.com/san-kum/testbed/internal/world"
)

const maxNotices = 6

// Notices collects flag edges and world resets reported by the testbed so
// the view can show them. It is handed to testbed.Options.Observer.
type Notices struct {
	mu     sync.Mutex
	lines  []string
	resets int
}

func NewNotices() *Notices { return &Notices{} }

func (n *Notices) FlagChanged(f testbed.Flag, on bool) {
	state := "off"
	if on {
		state = "on"
	}
	n.push(fmt.Sprintf("%s %s", f, state))
}

func (n *Notices) WorldReset(w *world.World) {
	n.mu.Lock()
	n.resets++
	n.mu.Unlock()
	n.push(fmt.Sprintf("world reset: %d bodies", w.Bodies.Len()))
}

func (n *Notices) push(s string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.lines = append(n.lines, s)
	if len(n.lines) > maxNotices {
		n.lines = n.lines[len(n.lines)-maxNotices:]
	}
}

// Lines returns the most recent notices, oldest first.
func (n *Notices) Lines() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.lines...)
}

func (n *Notices) Resets() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.resets
}
