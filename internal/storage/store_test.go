package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/go-cmp/cmp"
	"github.com/san-kum/testbed/internal/bench"
	"github.com/san-kum/testbed/internal/snapshot"
	"github.com/san-kum/testbed/internal/world"
)

func testSnapshot(t *testing.T, step uint64) *snapshot.Snapshot {
	t.Helper()
	w := world.New(mgl64.Vec2{0, -9.81}, world.DefaultIntegrationParams())
	id := w.InsertBody(world.NewDynamicBody(mgl64.Vec2{1, 2}))
	w.MustInsertCollider(world.NewBallCollider(0.5), id)
	snap, err := snapshot.Capture(step, w)
	if err != nil {
		t.Fatal(err)
	}
	return snap
}

func TestSnapshotSaveLoad(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	snap := testSnapshot(t, 42)
	if _, err := st.SaveSnapshot("pile", snap); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	got, err := st.LoadSnapshot("pile")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if !got.Equal(snap) {
		t.Error("loaded snapshot differs from the saved one")
	}

	list, err := st.Snapshots()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Name != "pile" || list[0].Step != 42 || list[0].Bytes != snap.Size() {
		t.Errorf("unexpected listing: %+v", list)
	}
}

func TestSnapshotMissing(t *testing.T) {
	st := New(t.TempDir())
	if _, err := st.LoadSnapshot("nothing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	list, err := st.Snapshots()
	if err != nil || len(list) != 0 {
		t.Errorf("expected an empty listing, got %v, %v", list, err)
	}
}

func TestBenchSaveLoad(t *testing.T) {
	st := New(t.TempDir())
	st.now = func() time.Time { return time.Unix(1700000000, 0).UTC() }

	tables := []bench.Table{
		{Scenario: "Balls", Backends: []string{"canonical", "box2d"}, Rows: [][]float64{{1, 2}, {3, 4}}},
		{Scenario: "(Stress test) pyramid", Backends: []string{"canonical"}, Rows: [][]float64{{5}, {6}, {7}}},
	}
	runID, err := st.SaveBench(tables)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	meta, got, err := st.LoadBench(runID)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if diff := cmp.Diff(tables, got); diff != "" {
		t.Errorf("tables mismatch (-want +got):\n%s", diff)
	}
	if meta.Iterations != 3 || len(meta.Summary) != 3 {
		t.Errorf("unexpected metadata: %+v", meta)
	}

	runs, err := st.BenchRuns()
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].ID != runID {
		t.Errorf("unexpected runs: %+v", runs)
	}

	if _, _, err := st.LoadBench("run_0"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
