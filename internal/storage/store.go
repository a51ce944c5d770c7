// Package storage keeps snapshots and benchmark runs in a data directory.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/san-kum/testbed/internal/bench"
	"github.com/san-kum/testbed/internal/snapshot"
)

const (
	snapshotDir = "snapshots"
	benchDir    = "bench"
	snapshotExt = ".tbsn"
	metaFile    = "metadata.json"
)

var ErrNotFound = errors.New("storage: not found")

type Store struct {
	baseDir string
	now     func() time.Time
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir, now: time.Now}
}

func (s *Store) Dir() string { return s.baseDir }

func (s *Store) Init() error {
	for _, d := range []string{snapshotDir, benchDir} {
		if err := os.MkdirAll(filepath.Join(s.baseDir, d), 0755); err != nil {
			return err
		}
	}
	return nil
}

type SnapshotInfo struct {
	Name    string
	Step    uint64
	Bytes   int
	ModTime time.Time
}

func (s *Store) snapshotPath(name string) string {
	return filepath.Join(s.baseDir, snapshotDir, strings.TrimSuffix(name, snapshotExt)+snapshotExt)
}

// SaveSnapshot persists snap under name, replacing any snapshot with the
// same name.
func (s *Store) SaveSnapshot(name string, snap *snapshot.Snapshot) (string, error) {
	if err := s.Init(); err != nil {
		return "", err
	}
	path := s.snapshotPath(name)
	return path, snapshot.WriteFile(path, snap)
}

func (s *Store) LoadSnapshot(name string) (*snapshot.Snapshot, error) {
	snap, err := snapshot.ReadFile(s.snapshotPath(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: snapshot %q", ErrNotFound, name)
	}
	return snap, err
}

// Snapshots lists stored snapshots by name. Unreadable files are skipped.
func (s *Store) Snapshots() ([]SnapshotInfo, error) {
	entries, err := os.ReadDir(filepath.Join(s.baseDir, snapshotDir))
	if err != nil {
		if os.IsNotExist(err) {
			return []SnapshotInfo{}, nil
		}
		return nil, err
	}

	out := make([]SnapshotInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != snapshotExt {
			continue
		}
		name := strings.TrimSuffix(e.Name(), snapshotExt)
		snap, err := s.LoadSnapshot(name)
		if err != nil {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, SnapshotInfo{Name: name, Step: snap.Step(), Bytes: snap.Size(), ModTime: info.ModTime()})
	}
	return out, nil
}

type RunMetadata struct {
	ID         string        `json:"id"`
	Timestamp  time.Time     `json:"timestamp"`
	Iterations int           `json:"iterations"`
	Scenarios  []string      `json:"scenarios"`
	Summary    []bench.Stats `json:"summary"`
}

// SaveBench writes one CSV per table plus a metadata file into a new run
// directory and returns the run id.
func (s *Store) SaveBench(tables []bench.Table) (string, error) {
	ts := s.now()
	runID := fmt.Sprintf("run_%d", ts.UnixNano())
	runDir := filepath.Join(s.baseDir, benchDir, runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{ID: runID, Timestamp: ts}
	for _, t := range tables {
		if _, err := bench.WriteCSV(runDir, t); err != nil {
			return "", err
		}
		meta.Scenarios = append(meta.Scenarios, t.Scenario)
		meta.Summary = append(meta.Summary, t.Summary()...)
		meta.Iterations = max(meta.Iterations, len(t.Rows))
	}

	f, err := os.Create(filepath.Join(runDir, metaFile))
	if err != nil {
		return "", err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}
	return runID, nil
}

// BenchRuns lists benchmark runs, oldest first.
func (s *Store) BenchRuns() ([]RunMetadata, error) {
	entries, err := os.ReadDir(filepath.Join(s.baseDir, benchDir))
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.loadMeta(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	slices.SortFunc(runs, func(a, b RunMetadata) int { return a.Timestamp.Compare(b.Timestamp) })
	return runs, nil
}

func (s *Store) loadMeta(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, benchDir, runID, metaFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: bench run %q", ErrNotFound, runID)
		}
		return nil, err
	}
	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadBench reads back the tables of a run in scenario order.
func (s *Store) LoadBench(runID string) (*RunMetadata, []bench.Table, error) {
	meta, err := s.loadMeta(runID)
	if err != nil {
		return nil, nil, err
	}
	tables := make([]bench.Table, 0, len(meta.Scenarios))
	for _, sc := range meta.Scenarios {
		t, err := bench.ReadCSV(filepath.Join(s.baseDir, benchDir, runID, bench.FileName(sc)))
		if err != nil {
			return nil, nil, err
		}
		t.Scenario = sc
		tables = append(tables, t)
	}
	return meta, tables, nil
}
