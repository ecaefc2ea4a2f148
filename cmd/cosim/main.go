package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/cosim/internal/capture"
	"github.com/san-kum/cosim/internal/config"
	"github.com/san-kum/cosim/internal/dynamo"
	"github.com/san-kum/cosim/internal/experiment"
	"github.com/san-kum/cosim/internal/metrics"
	"github.com/san-kum/cosim/internal/network"
	"github.com/san-kum/cosim/internal/sim"
	"github.com/san-kum/cosim/internal/snapshot"
	"github.com/san-kum/cosim/internal/storage"
	"github.com/san-kum/cosim/internal/viz"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/stat"
)

var (
	dataDir    string
	configFile string
	logLevel   string
	cpuOnly    bool
	vis        bool
	record     bool
	out        string
	seed       int64
	steps      int
	serveAddr  string
	replicas   int
	metricList []string
	theme      string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "cosim",
		Short:         "multi-physics scene runner",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// no scenario named: pick one and watch it
			vis = true
			return runScenario(cmd, args)
		},
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".cosim", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "logging level (debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:   "run [preset]",
		Short: "run a preset or a scenario file",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runScenario,
	}
	addRunFlags(runCmd)

	serveCmd := &cobra.Command{
		Use:   "serve [preset]",
		Short: "run a scenario and stream its frames over websocket",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if serveAddr == "" {
				serveAddr = "localhost:8080"
			}
			return runScenario(cmd, args)
		},
	}
	addRunFlags(serveCmd)

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list built-in scenarios",
		RunE:  listPresets,
	}

	runsCmd := &cobra.Command{
		Use:   "runs [db]",
		Short: "list recorded runs in the data directory or a sqlite file",
		Args:  cobra.MaximumNArgs(1),
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot the particle centroid height of a recorded run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export a recorded run as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	metricsCmd := &cobra.Command{
		Use:   "metrics",
		Short: "list available run metrics",
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range experiment.NewRegistry().ListMetrics() {
				fmt.Println(name)
			}
		},
	}

	rootCmd.AddCommand(runCmd, serveCmd, presetsCmd, runsCmd, plotCmd, exportCmd, metricsCmd)
	addRunFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "scenario file (yaml)")
	cmd.Flags().BoolVar(&cpuOnly, "cpu", false, "force the cpu backend")
	cmd.Flags().BoolVar(&vis, "vis", false, "show the terminal viewer")
	cmd.Flags().BoolVar(&record, "rec", false, "record the run")
	cmd.Flags().StringVar(&out, "out", "", "recording destination: directory, .db/.sqlite or .gif")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed")
	cmd.Flags().IntVar(&steps, "steps", 0, "outer steps to run (0 runs until interrupted)")
	cmd.Flags().StringVar(&serveAddr, "serve", "", "stream frames over websocket on this address")
	cmd.Flags().IntVar(&replicas, "replicas", 1, "independent seeds to run side by side (headless)")
	cmd.Flags().StringSliceVar(&metricList, "metrics", nil, "metrics to report (default: all)")
	cmd.Flags().StringVar(&theme, "theme", "", "viewer theme")
}

// resolveConfig layers a preset, a scenario file and changed flags, in
// that order.
func resolveConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if len(args) > 0 {
		if cfg = config.GetPreset(args[0]); cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", args[0], config.ListPresets())
		}
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}
	if len(args) == 0 && configFile == "" {
		if !vis {
			return nil, errors.New("name a preset or pass --config")
		}
		name, err := viz.Pick(presetChoices())
		if err != nil {
			return nil, err
		}
		if name == "" {
			return nil, nil
		}
		cfg = config.GetPreset(name)
	}

	flags := cmd.Flags()
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("steps") {
		cfg.Steps = steps
	}
	if cpuOnly {
		cfg.Backend = "cpu"
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if out != "" {
		cfg.Record.Dest = out
	}
	return cfg, nil
}

func presetChoices() []viz.Choice {
	var choices []viz.Choice
	for _, name := range config.ListPresets() {
		cfg := config.GetPreset(name)
		domains := cfg.Domains()
		var kinds []string
		for _, k := range dynamo.Kinds {
			if _, ok := domains[k]; ok {
				kinds = append(kinds, k.String())
			}
		}
		choices = append(choices, viz.Choice{Name: name, Info: fmt.Sprintf("%s, %d steps", strings.Join(kinds, "+"), cfg.Steps)})
	}
	return choices
}

func newEngine(cfg *config.Config) (*dynamo.Engine, io.Closer, error) {
	opts := dynamo.EngineOptions{Seed: cfg.Seed, Backend: cfg.Backend, LogLevel: cfg.LogLevel}
	var closer io.Closer = nopCloser{}
	if vis {
		// the viewer owns the terminal
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, nil, err
		}
		f, err := os.OpenFile(filepath.Join(dataDir, "cosim.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, nil, err
		}
		opts.LogOut, closer = f, f
	}
	engine, err := dynamo.NewEngine(opts)
	if err != nil {
		closer.Close()
		return nil, nil, err
	}
	return engine, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func selectMetrics() ([]sim.Metric, error) {
	registry := experiment.NewRegistry()
	if len(metricList) == 0 {
		return registry.DefaultMetrics(), nil
	}
	return registry.GetMetrics(metricList)
}

func runScenario(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil || cfg == nil {
		return err
	}
	if theme != "" && !viz.SetTheme(theme) {
		return fmt.Errorf("unknown theme: %s (available: %v)", theme, viz.ThemeNames())
	}
	if _, err := selectMetrics(); err != nil {
		return err
	}

	engine, logs, err := newEngine(cfg)
	if err != nil {
		return err
	}
	defer logs.Close()
	defer engine.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if replicas > 1 {
		return runEnsemble(ctx, cfg, engine)
	}
	return runSingle(ctx, cfg, engine)
}

func runSingle(ctx context.Context, cfg *config.Config, engine *dynamo.Engine) error {
	exp, err := experiment.New(cfg, engine)
	if err != nil {
		return err
	}
	ms, err := selectMetrics()
	if err != nil {
		return err
	}
	if err := exp.Setup(ms); err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	meta := storage.RunMetadata{
		ID:       storage.NewID(cfg.Name),
		Scenario: cfg.Name,
		Seed:     cfg.Seed,
		Dt:       cfg.Sim.Dt,
		Substeps: cfg.Sim.Substeps,
		Backend:  engine.Backend.Name(),
	}
	dest := cfg.Record.Dest
	if dest == "" {
		dest = filepath.Join(dataDir, meta.ID)
	}

	runner := exp.Runner()
	var rec *capture.Recorder
	if record || vis {
		rec = capture.NewRecorder(meta, cfg.Record.Every)
		if record {
			if err := rec.StartRecording(); err != nil {
				return err
			}
		}
		runner.AddConsumer(rec.Consume)
	}
	if serveAddr != "" {
		runner.AddConsumer(func(ctx context.Context, pub *snapshot.Publisher) error {
			return network.Serve(ctx, serveAddr, pub, engine.Logger)
		})
	}
	if vis {
		opts := viz.Options{
			Title:      cfg.Name,
			Backend:    engine.Backend.Name(),
			Steps:      uint64(cfg.Steps),
			Recorder:   rec,
			RecordDest: dest,
			OnQuit:     cancel,
		}
		runner.AddConsumer(func(ctx context.Context, pub *snapshot.Publisher) error {
			return viz.Run(ctx, pub, opts)
		})
	}

	fmt.Fprintf(os.Stderr, "running %s...\n", cfg.Name)
	res, err := exp.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	if rec != nil && (rec.Recording() || rec.Frames() > 0) {
		rec.Annotate(res.Metrics)
		id, err := rec.StopRecording(dest)
		if err != nil {
			return fmt.Errorf("failed to write recording: %w", err)
		}
		fmt.Printf("run id: %s (%s)\n", id, dest)
	}
	printResult(res)
	return nil
}

func printResult(res *sim.Result) {
	fmt.Printf("steps: %d in %v (%.1f steps/s)\n", res.Steps, res.Elapsed.Round(time.Millisecond), res.StepsPerSecond())
	if f := res.Last; f != nil {
		fmt.Printf("particles: %d  bodies: %d  time: %.4fs\n", f.ParticleCount(), len(f.Bodies), f.Time)
		c := f.Counters
		fmt.Printf("contacts: %d  clamped: %d  velocity clamped: %d  refused: %d  dropped: %d\n",
			c.Contacts, c.BoundsClamped, c.VelocityClamped, c.EmissionRefused, c.SpawnDropped)
	}
	if len(res.Metrics) == 0 {
		return
	}
	fmt.Println("\nmetrics:")
	names := make([]string, 0, len(res.Metrics))
	for name := range res.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %s: %.6f\n", name, res.Metrics[name])
	}
}

// runEnsemble runs the scenario once per seed, seed, seed+1, ..., and
// reports each metric's mean and spread across replicas.
func runEnsemble(ctx context.Context, cfg *config.Config, engine *dynamo.Engine) error {
	if vis || record {
		return errors.New("--replicas runs headless; drop --vis and --rec")
	}
	ens := sim.NewEnsemble(replicas, func(i int) (*sim.Runner, error) {
		exp, err := experiment.New(cfg, engine.Replica(i, cfg.Seed+int64(i)))
		if err != nil {
			return nil, err
		}
		ms, err := selectMetrics()
		if err != nil {
			return nil, err
		}
		if err := exp.Setup(ms); err != nil {
			return nil, err
		}
		return exp.Runner(), nil
	})
	if cfg.Steps == 0 {
		return errors.New("--replicas needs a step count")
	}
	results, err := ens.Run(ctx, sim.Config{Steps: cfg.Steps})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "METRIC\tMEAN\tSTDDEV\tMIN\tMAX")
	names := make([]string, 0, len(results[0].Metrics))
	for name := range results[0].Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		vals := make([]float64, len(results))
		for i, r := range results {
			vals[i] = r.Metrics[name]
		}
		mean, std := stat.MeanStdDev(vals, nil)
		lo, hi := vals[0], vals[0]
		for _, v := range vals {
			lo, hi = min(lo, v), max(hi, v)
		}
		fmt.Fprintf(w, "%s\t%.6f\t%.6f\t%.6f\t%.6f\n", name, mean, std, lo, hi)
	}
	return w.Flush()
}

func listPresets(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tDOMAINS")
	for _, c := range presetChoices() {
		fmt.Fprintf(w, "%s\t%s\n", c.Name, c.Info)
	}
	return w.Flush()
}

func listRuns(cmd *cobra.Command, args []string) error {
	var (
		runs []storage.RunMetadata
		err  error
	)
	if len(args) > 0 && storage.IsDatabase(args[0]) {
		st, oerr := storage.OpenSQLite(args[0])
		if oerr != nil {
			return oerr
		}
		defer st.Close()
		runs, err = st.List()
	} else {
		runs, err = storage.New(dataDir).List()
	}
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSCENARIO\tTIME\tFRAMES\tDT\tSUBSTEPS\tBACKEND")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.4gs\t%d\t%s\n",
			run.ID,
			run.Scenario,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Frames,
			run.Dt,
			run.Substeps,
			run.Backend,
		)
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	frames, err := st.LoadFrames(args[0])
	if err != nil {
		return err
	}

	var heights []float64
	for _, f := range frames {
		if z, ok := metrics.Centroid(f, 2); ok {
			heights = append(heights, z)
		}
	}
	if len(heights) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("scenario: %s\n", meta.Scenario)
	fmt.Printf("frames: %d\n\n", len(heights))
	fmt.Println(asciigraph.Plot(heights,
		asciigraph.Height(10),
		asciigraph.Width(80),
		asciigraph.Caption("particle centroid z"),
	))
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	frames, err := st.LoadFrames(args[0])
	if err != nil {
		return err
	}
	return storage.ExportJSON(os.Stdout, &storage.Recording{Meta: *meta, Frames: frames})
}
