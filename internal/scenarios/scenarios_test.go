package scenarios

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/san-kum/testbed/internal/events"
	"github.com/san-kum/testbed/internal/testbed"
	"github.com/san-kum/testbed/internal/world"
)

func names(list []testbed.Scenario) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = s.Name
	}
	return out
}

func TestAllOrdering(t *testing.T) {
	want := []string{
		"Balls", "Boxes", "Domino", "Joints", "Kinematic", "Pyramid", "Sensor",
		"(Stress test) balls", "(Stress test) joint ball", "(Stress test) pyramid",
	}
	if diff := cmp.Diff(want, names(All())); diff != "" {
		t.Errorf("scenario order mismatch (-want +got):\n%s", diff)
	}
	for _, s := range Stress() {
		if !strings.HasPrefix(s.Name, stressPrefix) {
			t.Errorf("%q is not a stress test", s.Name)
		}
	}
}

func TestByName(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"Pyramid", "Pyramid"},
		{"pyramid", "Pyramid"},
		{"StressTestPyramid", "(Stress test) pyramid"},
		{"stress_test_joint_ball", "(Stress test) joint ball"},
		{"kin", "Kinematic"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			s, err := ByName(tt.query)
			if err != nil {
				t.Fatal(err)
			}
			if s.Name != tt.want {
				t.Errorf("expected %q, got %q", tt.want, s.Name)
			}
		})
	}
	if _, err := ByName("ragdoll"); err == nil {
		t.Error("expected an error for an unknown scenario")
	}
}

func load(t *testing.T, name string) *testbed.Testbed {
	t.Helper()
	opts := testbed.DefaultOptions()
	opts.Scenarios = All()
	opts.Example = name
	tb, err := testbed.New(opts)
	if err != nil {
		t.Fatal(err)
	}
	return tb
}

func ticks(t *testing.T, tb *testbed.Testbed, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := tb.Tick(context.Background()); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
	}
}

func TestScenariosBuildAndStep(t *testing.T) {
	for _, s := range All() {
		if testing.Short() && strings.HasPrefix(s.Name, stressPrefix) {
			continue
		}
		t.Run(s.Name, func(t *testing.T) {
			tb := load(t, s.Name)
			if _, name := tb.Example(); name != s.Name {
				t.Fatalf("loaded %q instead of %q", name, s.Name)
			}
			w := tb.World()
			if len(w.DynamicBodies()) == 0 {
				t.Fatal("scenario has no dynamic bodies")
			}
			ticks(t, tb, 30)
			if err := w.Validate(); err != nil {
				t.Fatal(err)
			}
			for id, b := range tb.World().Bodies.Items {
				if math.IsNaN(b.Position[0]) || math.IsNaN(b.Position[1]) {
					t.Fatalf("body %d has a NaN position", id)
				}
			}
		})
	}
}

func TestKinematicPlatformStaysOnTrack(t *testing.T) {
	tb := load(t, "Kinematic")
	var platform world.BodyID
	for _, id := range tb.World().Bodies.IDs() {
		b := tb.World().Bodies.Items[id]
		if b.Type == world.Kinematic && b.LinVel[0] != 0 {
			platform = id
			break
		}
	}
	ticks(t, tb, 600)
	b := tb.World().Bodies.Items[platform]
	if x := b.Position[0]; math.Abs(x) > 6.1 {
		t.Errorf("platform left its track, x=%f", x)
	}
}

func TestDominoStartsTipped(t *testing.T) {
	tb := load(t, "Domino")
	first := tb.World().DynamicBodies()[0]
	ticks(t, tb, 10)
	if a := tb.World().Bodies.Items[first].Angle; a >= 0 {
		t.Errorf("first domino should lean forward, angle=%f", a)
	}
}

func TestSensorTracker(t *testing.T) {
	s := &SensorTracker{Sensor: 1}
	enter := []events.ProximityEvent{
		{Collider1: 1, Collider2: 5, Prev: events.Disjoint, New: events.Intersecting},
		{Collider1: 6, Collider2: 1, Prev: events.Disjoint, New: events.Intersecting},
		{Collider1: 7, Collider2: 8, Prev: events.Disjoint, New: events.Intersecting},
	}
	s.OnStep(nil, events.NewView(nil, enter), 0)

	want := map[world.ColliderID]bool{5: true, 6: true}
	if diff := cmp.Diff(want, s.Inside); diff != "" {
		t.Errorf("inside set mismatch (-want +got):\n%s", diff)
	}

	leave := []events.ProximityEvent{{Collider1: 1, Collider2: 5, Prev: events.Intersecting, New: events.Disjoint}}
	s.OnStep(nil, events.NewView(nil, leave), 0.1)
	if s.Entered != 2 || len(s.Inside) != 1 || !s.Inside[6] {
		t.Errorf("unexpected tracker state: entered=%d inside=%v", s.Entered, s.Inside)
	}
}

func TestSensorSeesFallingBalls(t *testing.T) {
	tb := load(t, "Sensor")
	entered := 0
	tb.AddCallback(testbed.CallbackFunc(func(_ *world.World, ev events.View, _ float64) {
		entered += ev.NumProximities()
	}))
	ticks(t, tb, 150)
	if entered == 0 {
		t.Error("expected proximity events from balls passing the sensor")
	}
}
