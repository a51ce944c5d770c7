// Package tui is the interactive control surface of the testbed. It shows
// status text only; nothing is rendered.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/testbed/internal/snapshot"
	"github.com/san-kum/testbed/internal/testbed"
)

const historyCapacity = 120

type TickMsg time.Time

type Model struct {
	ctx      context.Context
	tb       *testbed.Testbed
	notices  *Notices
	interval time.Duration

	history []float64
	width   int
	err     error
	status  string
}

// New drives tb at fps ticks per second. notices may be nil.
func New(ctx context.Context, tb *testbed.Testbed, notices *Notices, fps int) Model {
	if fps < 1 {
		fps = 60
	}
	if notices == nil {
		notices = NewNotices()
	}
	return Model{
		ctx:      ctx,
		tb:       tb,
		notices:  notices,
		interval: time.Second / time.Duration(fps),
		history:  make([]float64, 0, historyCapacity),
		width:    80,
	}
}

// Err is the error that ended the session, if any.
func (m Model) Err() error { return m.err }

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Init() tea.Cmd { return m.tick() }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case TickMsg:
		return m.step()
	}
	return m, nil
}

func (m Model) step() (tea.Model, tea.Cmd) {
	before := m.tb.Step()
	err := m.tb.Tick(m.ctx)
	switch {
	case errors.Is(err, testbed.ErrQuit):
		return m, tea.Quit
	case err != nil:
		m.err = err
		return m, tea.Quit
	}
	if m.tb.Step() != before {
		m.history = append(m.history, float64(m.tb.Counters().StepTime)/float64(time.Millisecond))
		if len(m.history) > historyCapacity {
			m.history = m.history[len(m.history)-historyCapacity:]
		}
	}
	return m, m.tick()
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	tb := m.tb
	switch key := msg.String(); key {
	case "q", "ctrl+c":
		tb.Quit()
		return m, tea.Quit
	case "t", " ":
		tb.ToggleRun()
	case "s":
		tb.StepOnce()
	case "r":
		tb.Restart()
		m.history = m.history[:0]
	case "n":
		tb.NextExample()
		m.history = m.history[:0]
	case "p":
		tb.PrevExample()
		m.history = m.history[:0]
	case "b":
		tb.NextBackend()
		m.history = m.history[:0]
	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		tb.SetBackend(int(key[0] - '1'))
		m.history = m.history[:0]
	case "c":
		tb.RequestSnapshot()
		m.status = "snapshot requested"
	case "x":
		tb.RequestRestore()
		m.status = "restore requested"
	case "z":
		tb.ToggleFlag(testbed.FlagSleep)
	case "u":
		tb.ToggleFlag(testbed.FlagSubStepping)
	case "g":
		tb.ToggleFlag(testbed.FlagDebug)
	case "i":
		tb.ToggleFlag(testbed.FlagStatistics)
	case "a":
		tb.ToggleFlag(testbed.FlagAABBs)
	case "w":
		tb.ToggleFlag(testbed.FlagWireframe)
	case "d":
		n, err := tb.DeleteBodies()
		if err != nil {
			m.err = err
			return m, tea.Quit
		}
		m.status = fmt.Sprintf("deleted %d bodies", n)
	}
	return m, nil
}

func (m Model) View() string {
	tb := m.tb
	c := tb.Counters()
	_, example := tb.Example()
	_, backendName := tb.Backend()

	mode := stoppedStyle.Render(tb.Mode().String())
	if tb.Mode() == testbed.Running {
		mode = runningStyle.Render(tb.Mode().String())
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render("testbed") + "\n")

	row := func(label, value string) {
		b.WriteString(labelStyle.Render(label) + valueStyle.Render(value) + "\n")
	}
	b.WriteString(labelStyle.Render("mode") + mode + "\n")
	row("example", example)
	row("backend", backendName)
	row("step", fmt.Sprintf("%d  t=%.2fs", c.Step, c.Time))
	row("bodies", fmt.Sprintf("%d  colliders %d  joints %d  sleeping %d", c.Bodies, c.Colliders, c.Joints, c.Sleeping))
	row("step time", fmt.Sprintf("%.3fms  mean %.3fms", ms(c.StepTime), ms(c.Mean())))
	if s := tb.Snapshot(); s != nil {
		row("snapshot", fmt.Sprintf("step %d  %d bytes", s.Step(), s.Size()))
	}

	flags := tb.Flags()
	if flags.Statistics {
		row("pairs", fmt.Sprintf("%d  contacts %d  islands %d  substeps %d",
			c.Engine.Pairs, c.Engine.Contacts, c.Engine.Islands, c.Engine.Substeps))
		row("energy", fmt.Sprintf("%.3f J", tb.World().KineticEnergy()))
	}

	var fl []string
	for _, f := range testbed.AllFlags() {
		if flags.Get(f) {
			fl = append(fl, onStyle.Render(f.String()))
		} else {
			fl = append(fl, offStyle.Render(f.String()))
		}
	}
	b.WriteString(labelStyle.Render("flags") + strings.Join(fl, " ") + "\n")

	if flags.Debug {
		digest := tb.Digest()
		for _, p := range snapshot.Parts() {
			b.WriteString(labelStyle.Render(p.String()) + hashStyle.Render(digest[p]) + "\n")
		}
	}

	if flags.Statistics && len(m.history) > 1 {
		chart := asciigraph.Plot(m.history, asciigraph.Height(4), asciigraph.Width(max(min(m.width-20, 60), 10)), asciigraph.Caption("step ms"))
		b.WriteString(graphStyle.Render(chart) + "\n")
	}

	for _, line := range m.notices.Lines() {
		b.WriteString(offStyle.Render("· "+line) + "\n")
	}
	if m.status != "" {
		b.WriteString(valueStyle.Render(m.status) + "\n")
	}
	if m.err != nil {
		b.WriteString(errStyle.Render(m.err.Error()) + "\n")
	}

	b.WriteString(helpStyle.Render("t run/stop · s step · r restart · n/p example · b/1-9 backend · c/x snapshot/restore · z sleep · u substep · g debug · i stats · d delete · q quit"))
	return panelStyle.Render(b.String())
}

func ms(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }
