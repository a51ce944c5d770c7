package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/san-kum/testbed/internal/config"
	"github.com/san-kum/testbed/internal/scenarios"
	"github.com/san-kum/testbed/internal/testbed"
	"github.com/spf13/cobra"
)

var (
	dataDir    string
	configFile string
	preset     string
	logLevel   string
	example    string
	backendArg string
	paused     bool
	benchMode  bool
	parallel   bool
	workers    int
	iterations int
	frameRate  int
	ticks      int
	snapshotAt int
	restoreAt  int
	saveAs     string
	plot       bool
	outputDir  string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "testbed",
		Short: "interactive rigid body physics testbed",
		Long: "testbed loads a scenario into a 2d rigid body world and steps it on one of several\n" +
			"physics backends, with snapshot/restore and per-backend benchmarking.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if benchMode {
				return runBench(cmd, args)
			}
			return runInteractive(cmd, args)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&dataDir, "data", config.DefaultDataDir, "data directory")
	pf.StringVar(&configFile, "config", "", "config file path (yaml)")
	pf.StringVar(&preset, "preset", "", "use preset configuration")
	pf.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.StringVar(&example, "example", "", "initial scenario by name")
	pf.StringVar(&backendArg, "backend", "", "initial backend by name")
	pf.BoolVar(&parallel, "parallel", false, "solve islands on a worker pool")
	pf.IntVar(&workers, "workers", 0, "worker pool size (0 = one per cpu)")

	rootCmd.Flags().BoolVar(&paused, "pause", false, "start with the simulation stopped")
	rootCmd.Flags().BoolVar(&benchMode, "bench", false, "benchmark every scenario on every backend and exit")
	rootCmd.Flags().IntVar(&frameRate, "fps", 60, "interactive frame rate")
	rootCmd.Flags().IntVar(&iterations, "iterations", 0, "benchmark iterations per scenario and backend")

	benchCmd := &cobra.Command{
		Use:   "bench [scenario...]",
		Short: "benchmark scenarios on every backend and write one csv per scenario",
		RunE:  runBench,
	}
	benchCmd.Flags().IntVar(&iterations, "iterations", 0, "iterations per scenario and backend")
	benchCmd.Flags().BoolVar(&plot, "plot", false, "plot timings in the terminal")
	benchCmd.Flags().StringVar(&outputDir, "out", "", "csv output directory")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "step a scenario headless and print per-part state hashes",
		RunE:  runHeadless,
	}
	runCmd.Flags().IntVar(&ticks, "ticks", 600, "ticks to run")
	runCmd.Flags().IntVar(&snapshotAt, "snapshot-at", -1, "capture a snapshot at this step")
	runCmd.Flags().IntVar(&restoreAt, "restore-at", -1, "restore the snapshot once this step is reached")
	runCmd.Flags().StringVar(&saveAs, "save", "", "store the final state as a named snapshot")

	scenariosCmd := &cobra.Command{
		Use:   "scenarios",
		Short: "list scenarios",
		RunE:  listScenarios,
	}

	backendsCmd := &cobra.Command{
		Use:   "backends",
		Short: "list backends",
		RunE:  listBackends,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list config presets",
		RunE:  listPresets,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [csv]",
		Short: "plot a benchmark csv",
		Args:  cobra.ExactArgs(1),
		RunE:  plotCSV,
	}

	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "list stored benchmark runs",
		RunE:  listBenchRuns,
	}

	snapshotCmd := &cobra.Command{
		Use:   "snapshot",
		Short: "save, inspect and list stored snapshots",
	}
	snapshotSaveCmd := &cobra.Command{
		Use:   "save [name]",
		Short: "run a scenario and store its state",
		Args:  cobra.ExactArgs(1),
		RunE:  saveSnapshot,
	}
	snapshotSaveCmd.Flags().IntVar(&ticks, "ticks", 120, "ticks to run before capturing")
	snapshotInspectCmd := &cobra.Command{
		Use:   "inspect [name]",
		Short: "print a stored snapshot's sizes and hashes",
		Args:  cobra.ExactArgs(1),
		RunE:  inspectSnapshot,
	}
	snapshotListCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored snapshots",
		RunE:  listSnapshots,
	}
	snapshotCmd.AddCommand(snapshotSaveCmd, snapshotInspectCmd, snapshotListCmd)

	rootCmd.AddCommand(benchCmd, runCmd, scenariosCmd, backendsCmd, presetsCmd, plotCmd, runsCmd, snapshotCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// loadConfig resolves the config file or preset, then applies command line
// overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var cfg *config.Config
	var err error
	switch {
	case configFile != "":
		cfg, err = config.Load(configFile)
	case preset != "":
		cfg, err = config.GetPreset(preset)
	default:
		cfg = config.DefaultConfig()
	}
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("data") {
		cfg.DataDir = dataDir
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if example != "" {
		cfg.Example = example
	}
	if backendArg != "" {
		cfg.Backend = backendArg
	}
	if flags.Changed("parallel") {
		cfg.Parallel = parallel
	}
	if flags.Changed("workers") {
		cfg.Workers = workers
		if workers == 0 {
			cfg.Workers = config.DefaultConfig().Workers
		}
	}
	if flags.Changed("pause") {
		cfg.StartPaused = paused
	}
	if iterations > 0 {
		cfg.Bench.Iterations = iterations
	}
	if outputDir != "" {
		cfg.Bench.OutputDir = outputDir
	}
	return cfg, cfg.Validate()
}

func newLogger(w io.Writer, cfg *config.Config) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		Level:           cfg.Level(),
		Prefix:          "testbed",
		ReportTimestamp: true,
	})
}

// newTestbed builds a testbed over every registered scenario.
func newTestbed(cfg *config.Config, logger *log.Logger, observer testbed.FlagObserver) (*testbed.Testbed, error) {
	opts := cfg.Options()
	opts.Logger = logger
	opts.Scenarios = scenarios.All()
	opts.Observer = observer
	return testbed.New(opts)
}

// logFile opens the interactive session's log in the data directory.
func logFile(cfg *config.Config) (*os.File, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(filepath.Join(cfg.DataDir, "testbed.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
}
