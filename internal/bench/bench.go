// Package bench times every backend on every scenario and reports the
// per-tick durations.
package bench

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/san-kum/testbed/internal/backend"
	"github.com/san-kum/testbed/internal/testbed"
)

const DefaultIterations = 1000

var ErrNoIterations = errors.New("bench: iterations must be at least 1")

// Table holds one scenario's timings. Rows are indexed by tick and columns
// follow Backends; values are milliseconds.
type Table struct {
	Scenario string
	Backends []string
	Rows     [][]float64
}

// Column returns the timings of backend i.
func (t Table) Column(i int) []float64 {
	out := make([]float64, len(t.Rows))
	for r, row := range t.Rows {
		out[r] = row[i]
	}
	return out
}

type Runner struct {
	Logger     *log.Logger
	Clock      func() time.Time
	Iterations int
	// Settings override solver iterations per backend name while
	// benchmarking.
	Settings map[string]backend.Settings
}

func (r *Runner) defaults() error {
	if r.Logger == nil {
		r.Logger = log.New(io.Discard)
	}
	if r.Clock == nil {
		r.Clock = time.Now
	}
	if r.Iterations == 0 {
		r.Iterations = DefaultIterations
	}
	if r.Iterations < 1 {
		return fmt.Errorf("%w, got %d", ErrNoIterations, r.Iterations)
	}
	return nil
}

// Run benchmarks the given scenario and backend indices on tb. A nil slice
// selects all of them. Each (scenario, backend) pair starts from a fresh
// world and runs Iterations+1 ticks; the first tick is a warm-up and is
// not recorded.
func (r *Runner) Run(ctx context.Context, tb *testbed.Testbed, scenarios, backends []int) ([]Table, error) {
	if err := r.defaults(); err != nil {
		return nil, err
	}
	if scenarios == nil {
		scenarios = indices(len(tb.Examples()))
	}
	if backends == nil {
		backends = indices(len(tb.Backends()))
	}
	if r.Settings != nil {
		tb.SetSettings(r.Settings)
	}

	tables := make([]Table, 0, len(scenarios))
	for _, si := range scenarios {
		table := Table{Rows: make([][]float64, r.Iterations)}
		for i := range table.Rows {
			table.Rows[i] = make([]float64, len(backends))
		}
		for col, bi := range backends {
			if err := tb.Prepare(si, bi); err != nil {
				return nil, err
			}
			_, table.Scenario = tb.Example()
			_, name := tb.Backend()
			table.Backends = append(table.Backends, name)
			r.Logger.Info("benchmarking", "scenario", table.Scenario, "backend", name, "iterations", r.Iterations)

			for k := 0; k <= r.Iterations; k++ {
				if err := ctx.Err(); err != nil {
					return tables, err
				}
				start := r.Clock()
				if err := tb.Advance(ctx); err != nil {
					return tables, err
				}
				elapsed := r.Clock().Sub(start)
				if k > 0 {
					table.Rows[k-1][col] = float64(elapsed) / float64(time.Millisecond)
				}
			}
		}
		tables = append(tables, table)
	}
	return tables, nil
}

func indices(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
