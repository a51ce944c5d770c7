package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/testbed/internal/testbed"
	"github.com/san-kum/testbed/internal/world"
)

func pile(tb *testbed.Testbed) {
	w := tb.NewWorld()
	g := w.InsertBody(world.NewStaticBody(mgl64.Vec2{0, -0.5}))
	w.MustInsertCollider(world.NewCuboidCollider(10, 0.5), g)
	for i := 0; i < 20; i++ {
		id := w.InsertBody(world.NewDynamicBody(mgl64.Vec2{float64(i%5) - 2, 1 + float64(i/5)}))
		w.MustInsertCollider(world.NewBallCollider(0.4), id)
	}
	tb.SetWorld(w)
}

func newModel(t *testing.T) (Model, *testbed.Testbed, *Notices) {
	t.Helper()
	notices := NewNotices()
	opts := testbed.DefaultOptions()
	opts.Scenarios = []testbed.Scenario{{Name: "Pile", Build: pile}, {Name: "Empty", Build: func(*testbed.Testbed) {}}}
	opts.StartPaused = true
	opts.Observer = notices
	tb, err := testbed.New(opts)
	if err != nil {
		t.Fatal(err)
	}
	return New(context.Background(), tb, notices, 60), tb, notices
}

func press(m Model, key string) (Model, tea.Cmd) {
	var msg tea.KeyMsg
	switch key {
	case "ctrl+c":
		msg = tea.KeyMsg{Type: tea.KeyCtrlC}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func tick(m Model) (Model, tea.Cmd) {
	next, cmd := m.Update(TickMsg(time.Now()))
	return next.(Model), cmd
}

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func TestSingleStepKey(t *testing.T) {
	m, tb, _ := newModel(t)

	m, _ = tick(m)
	if tb.Step() != 0 {
		t.Fatalf("paused testbed advanced to step %d", tb.Step())
	}
	m, _ = press(m, "s")
	m, cmd := tick(m)
	if tb.Step() != 1 {
		t.Errorf("expected step 1, got %d", tb.Step())
	}
	if cmd == nil {
		t.Error("a tick should schedule the next tick")
	}
	if len(m.history) != 1 {
		t.Errorf("expected one timing sample, got %d", len(m.history))
	}
	if tb.Mode() != testbed.Stopped {
		t.Errorf("expected stopped after a single step, got %s", tb.Mode())
	}
}

func TestRunToggleKey(t *testing.T) {
	m, tb, _ := newModel(t)
	m, _ = press(m, "t")
	for i := 0; i < 3; i++ {
		m, _ = tick(m)
	}
	if tb.Step() != 3 {
		t.Errorf("expected step 3, got %d", tb.Step())
	}
	_, _ = press(m, "t")
	if tb.Mode() != testbed.Stopped {
		t.Errorf("expected stopped, got %s", tb.Mode())
	}
}

func TestQuitKeys(t *testing.T) {
	for _, key := range []string{"q", "ctrl+c"} {
		m, tb, _ := newModel(t)
		_, cmd := press(m, key)
		if !isQuit(cmd) {
			t.Errorf("%s: expected a quit command", key)
		}
		if tb.Mode() != testbed.Quit {
			t.Errorf("%s: expected quit mode, got %s", key, tb.Mode())
		}
	}
}

func TestFlagKeysReachObserver(t *testing.T) {
	m, tb, notices := newModel(t)
	m, _ = press(m, "i")
	m, _ = press(m, "z")
	m, _ = tick(m)

	if !tb.Flags().Statistics || tb.Flags().Sleep {
		t.Errorf("unexpected flags %+v", tb.Flags())
	}
	found := false
	for _, l := range notices.Lines() {
		if l == "statistics on" {
			found = true
		}
	}
	if !found {
		t.Errorf("statistics edge not reported: %v", notices.Lines())
	}
	if !strings.Contains(m.View(), "pairs") {
		t.Error("statistics view should show pair counts")
	}
}

func TestExampleAndDeleteKeys(t *testing.T) {
	m, tb, notices := newModel(t)
	resets := notices.Resets()

	m, _ = press(m, "d")
	if n := len(tb.World().DynamicBodies()); n != 18 {
		t.Errorf("expected 18 bodies after delete, got %d", n)
	}
	if !strings.Contains(m.View(), "deleted 2 bodies") {
		t.Error("delete status missing from view")
	}

	m, _ = press(m, "n")
	m, _ = tick(m)
	if _, name := tb.Example(); name != "Empty" {
		t.Errorf("expected Empty, got %s", name)
	}
	if notices.Resets() <= resets {
		t.Error("loading an example should reset the world graphics")
	}
	if !strings.Contains(m.View(), "Empty") {
		t.Error("view should name the example")
	}
}

func TestSnapshotKeys(t *testing.T) {
	m, tb, _ := newModel(t)
	m, _ = press(m, "t")
	for i := 0; i < 5; i++ {
		m, _ = tick(m)
	}
	m, _ = press(m, "c")
	m, _ = tick(m)
	if tb.Snapshot() == nil || tb.Snapshot().Step() != 5 {
		t.Fatalf("expected a snapshot at step 5, got %v", tb.Snapshot())
	}
	for i := 0; i < 5; i++ {
		m, _ = tick(m)
	}
	m, _ = press(m, "x")
	_, _ = press(m, "t")
	m, _ = tick(m)
	if tb.Step() != 5 {
		t.Errorf("expected restore to step 5, got %d", tb.Step())
	}
	if !strings.Contains(m.View(), "snapshot") {
		t.Error("view should report the snapshot")
	}
}
