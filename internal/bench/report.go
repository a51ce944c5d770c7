package bench

import (
	"fmt"
	"slices"
	"strings"

	"github.com/guptarohit/asciigraph"
)

type Stats struct {
	Backend string
	Mean    float64
	Min     float64
	Max     float64
	Median  float64
}

// Summary reduces each backend column to its statistics.
func (t Table) Summary() []Stats {
	out := make([]Stats, len(t.Backends))
	for i, name := range t.Backends {
		col := t.Column(i)
		out[i] = Stats{Backend: name}
		if len(col) == 0 {
			continue
		}
		slices.Sort(col)
		sum := 0.0
		for _, v := range col {
			sum += v
		}
		out[i].Mean = sum / float64(len(col))
		out[i].Min = col[0]
		out[i].Max = col[len(col)-1]
		mid := len(col) / 2
		if len(col)%2 == 0 {
			out[i].Median = (col[mid-1] + col[mid]) / 2
		} else {
			out[i].Median = col[mid]
		}
	}
	return out
}

func (t Table) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%d ticks)\n", t.Scenario, len(t.Rows))
	fmt.Fprintf(&b, "  %-10s %10s %10s %10s %10s\n", "backend", "mean", "min", "max", "median")
	for _, s := range t.Summary() {
		fmt.Fprintf(&b, "  %-10s %9.3fms %9.3fms %9.3fms %9.3fms\n", s.Backend, s.Mean, s.Min, s.Max, s.Median)
	}
	return b.String()
}

var plotColors = []asciigraph.AnsiColor{asciigraph.Green, asciigraph.Yellow, asciigraph.Cyan, asciigraph.Magenta, asciigraph.Red}

// Plot draws every backend's timings on one chart.
func (t Table) Plot(width, height int) string {
	if len(t.Rows) == 0 || len(t.Backends) == 0 {
		return ""
	}
	series := make([][]float64, len(t.Backends))
	colors := make([]asciigraph.AnsiColor, len(t.Backends))
	for i := range t.Backends {
		series[i] = t.Column(i)
		colors[i] = plotColors[i%len(plotColors)]
	}
	return asciigraph.PlotMany(series,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(t.Scenario+" step time (ms)"),
		asciigraph.SeriesColors(colors...),
		asciigraph.SeriesLegends(t.Backends...),
	)
}
