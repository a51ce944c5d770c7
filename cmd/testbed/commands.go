package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/san-kum/testbed/internal/backend"
	"github.com/san-kum/testbed/internal/bench"
	"github.com/san-kum/testbed/internal/config"
	"github.com/san-kum/testbed/internal/scenarios"
	"github.com/san-kum/testbed/internal/snapshot"
	"github.com/san-kum/testbed/internal/storage"
	"github.com/san-kum/testbed/internal/testbed"
	"github.com/san-kum/testbed/internal/tui"
	"github.com/spf13/cobra"
)

func runInteractive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	f, err := logFile(cfg)
	if err != nil {
		return err
	}
	defer f.Close()

	notices := tui.NewNotices()
	tb, err := newTestbed(cfg, newLogger(f, cfg), notices)
	if err != nil {
		return err
	}

	final, err := tea.NewProgram(tui.New(cmd.Context(), tb, notices, frameRate), tea.WithAltScreen()).Run()
	if err != nil {
		return err
	}
	if m, ok := final.(tui.Model); ok && m.Err() != nil {
		return m.Err()
	}
	return nil
}

func runBench(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(os.Stderr, cfg)
	tb, err := newTestbed(cfg, logger, nil)
	if err != nil {
		return err
	}

	selected, err := selectScenarios(append(args, cfg.Bench.Scenarios...))
	if err != nil {
		return err
	}
	backends, err := selectBackends(cfg.Bench.Backends)
	if err != nil {
		return err
	}

	r := &bench.Runner{Logger: logger, Iterations: cfg.Bench.Iterations, Settings: cfg.Backends}
	tables, err := r.Run(cmd.Context(), tb, selected, backends)
	if err != nil {
		return err
	}

	for _, t := range tables {
		path, err := bench.WriteCSV(cfg.Bench.OutputDir, t)
		if err != nil {
			return err
		}
		logger.Info("wrote benchmark", "scenario", t.Scenario, "path", path)
		fmt.Print(t.String())
		if plot {
			fmt.Println(t.Plot(80, 12))
		}
	}

	st := storage.New(cfg.DataDir)
	runID, err := st.SaveBench(tables)
	if err != nil {
		return err
	}
	logger.Info("stored benchmark run", "id", runID)
	return nil
}

// selectScenarios maps names to indices in scenarios.All. No names selects
// every scenario.
func selectScenarios(names []string) ([]int, error) {
	if len(names) == 0 {
		return nil, nil
	}
	all := scenarios.All()
	out := make([]int, 0, len(names))
	for _, n := range names {
		i, err := testbed.FindScenario(all, n)
		if err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, nil
}

func selectBackends(names []string) ([]int, error) {
	if len(names) == 0 {
		return nil, nil
	}
	reg := backend.Default()
	out := make([]int, 0, len(names))
	for _, n := range names {
		i, err := reg.Index(n)
		if err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, nil
}

func runHeadless(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cfg.StartPaused = false
	logger := newLogger(os.Stderr, cfg)
	tb, err := newTestbed(cfg, logger, nil)
	if err != nil {
		return err
	}

	restored := false
	for tb.Step() < uint64(ticks) {
		step := int(tb.Step())
		if step == snapshotAt {
			tb.RequestSnapshot()
		}
		if step == restoreAt && !restored {
			if tb.Snapshot() == nil && snapshotAt != restoreAt {
				return fmt.Errorf("restore at step %d: %w", step, testbed.ErrNoSnapshot)
			}
			tb.RequestRestore()
			restored = true
		}
		if err := tb.Tick(cmd.Context()); err != nil {
			return err
		}
		if err := cmd.Context().Err(); err != nil {
			return err
		}
	}

	snap, err := snapshot.Capture(tb.Step(), tb.World())
	if err != nil {
		return err
	}
	_, name := tb.Example()
	_, backendName := tb.Backend()
	fmt.Printf("%s on %s after %d steps\n", name, backendName, tb.Step())
	if err := printSnapshot(snap); err != nil {
		return err
	}

	if saveAs != "" {
		path, err := storage.New(cfg.DataDir).SaveSnapshot(saveAs, snap)
		if err != nil {
			return err
		}
		logger.Info("saved snapshot", "path", path, "bytes", snap.Size())
	}
	return nil
}

func printSnapshot(s *snapshot.Snapshot) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PART\tBYTES\tMD5")
	sizes := s.Sizes()
	digest := s.Digest()
	for _, p := range snapshot.Parts() {
		fmt.Fprintf(w, "%s\t%d\t%s\n", p, sizes[p], digest[p])
	}
	fmt.Fprintf(w, "total\t%d\t\n", s.Size())
	return w.Flush()
}

func listScenarios(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "INDEX\tNAME")
	for i, s := range scenarios.All() {
		fmt.Fprintf(w, "%d\t%s\n", i, s.Name)
	}
	return w.Flush()
}

func listBackends(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "INDEX\tNAME\tVEL ITERS\tPOS ITERS")
	for i, name := range backend.Default().Names() {
		s := cfg.Backends[name].Resolve(cfg.Params())
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\n", i, name, s.VelocityIterations, s.PositionIterations)
	}
	return w.Flush()
}

func listPresets(cmd *cobra.Command, args []string) error {
	for _, p := range config.ListPresets() {
		fmt.Println(p)
	}
	return nil
}

func plotCSV(cmd *cobra.Command, args []string) error {
	t, err := bench.ReadCSV(args[0])
	if err != nil {
		return err
	}
	fmt.Println(t.Plot(80, 15))
	fmt.Print(t.String())
	return nil
}

func listBenchRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.BenchRuns()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIME\tITERATIONS\tSCENARIOS")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\n",
			run.ID,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Iterations,
			len(run.Scenarios),
		)
	}
	return w.Flush()
}

func saveSnapshot(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(os.Stderr, cfg)
	tb, err := newTestbed(cfg, logger, nil)
	if err != nil {
		return err
	}
	for i := 0; i < ticks; i++ {
		if err := tb.Advance(cmd.Context()); err != nil {
			return err
		}
	}
	snap, err := tb.CaptureNow()
	if err != nil {
		return err
	}
	path, err := storage.New(cfg.DataDir).SaveSnapshot(args[0], snap)
	if err != nil {
		return err
	}
	logger.Info("saved snapshot", "path", path, "step", snap.Step(), "bytes", snap.Size())
	return nil
}

func inspectSnapshot(cmd *cobra.Command, args []string) error {
	snap, err := storage.New(dataDir).LoadSnapshot(args[0])
	if err != nil {
		return err
	}
	if _, err := snap.Restore(); err != nil {
		var re *snapshot.RestoreError
		if errors.As(err, &re) {
			fmt.Printf("snapshot %s does not restore: %v\n", args[0], err)
		}
		return err
	}
	fmt.Printf("snapshot %s at step %d\n", args[0], snap.Step())
	return printSnapshot(snap)
}

func listSnapshots(cmd *cobra.Command, args []string) error {
	list, err := storage.New(dataDir).Snapshots()
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Println("no snapshots found")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSTEP\tBYTES\tMODIFIED")
	for _, s := range list {
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", s.Name, s.Step, s.Bytes, s.ModTime.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}
