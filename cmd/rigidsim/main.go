package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/san-kum/rigidsim/internal/automation"
	"github.com/san-kum/rigidsim/internal/config"
	"github.com/san-kum/rigidsim/internal/metrics"
	"github.com/san-kum/rigidsim/internal/sim"
	"github.com/san-kum/rigidsim/internal/storage"
	"github.com/san-kum/rigidsim/internal/stream"
	"github.com/san-kum/rigidsim/internal/viz"
)

var (
	dataDir    string
	configFile string
	verbose    bool
	frames     int
	dt         float64
	seed       int64
	jitter     float64
	record     bool
	every      int
	notes      string
	realtime   bool
	addr       string
	gifPath    string
	initOut    string
	kernelName string
	themeName  string
)

func newLogger() *log.Logger {
	return log.New(os.Stderr, "[rigidsim] ", log.LstdFlags|log.Lmicroseconds)
}

func main() {
	rootCmd := &cobra.Command{
		Use:           "rigidsim",
		Short:         "concurrent rigid body simulation",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return viz.RunInteractive(newLogger())
		},
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".rigidsim", "data directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log ignored commands and scripted events")

	sceneFlags := func(c *cobra.Command) {
		c.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
		c.Flags().IntVar(&frames, "frames", 0, "frames to run (0 keeps the config value)")
		c.Flags().Float64Var(&dt, "dt", 0, "timestep in seconds (0 keeps the config tick rate)")
		c.Flags().Float64Var(&jitter, "jitter", 0, "randomise dynamic body positions by up to this much")
		c.Flags().Int64Var(&seed, "seed", 0, "jitter seed (0 picks one)")
		c.Flags().StringVar(&kernelName, "kernel", "", "stepper: box2d, euler, verlet or rk4 (empty keeps the config value)")
	}

	runCmd := &cobra.Command{
		Use:   "run [preset]",
		Short: "run a scene headless and record it",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runScene,
	}
	sceneFlags(runCmd)
	runCmd.Flags().BoolVar(&record, "record", true, "record the run to the data directory")
	runCmd.Flags().IntVar(&every, "every", 0, "record one frame in every N")
	runCmd.Flags().StringVar(&notes, "notes", "", "notes stored with the run")
	runCmd.Flags().BoolVar(&realtime, "realtime", false, "step at the tick rate instead of flat out")

	liveCmd := &cobra.Command{
		Use:   "live [preset]",
		Short: "run a scene in the terminal viewer",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLive,
	}
	sceneFlags(liveCmd)
	liveCmd.Flags().StringVar(&gifPath, "gif", "simulation.gif", "where the r key saves its recording")
	liveCmd.Flags().StringVar(&themeName, "theme", "", "colour theme ("+strings.Join(viz.ThemeNames(), ", ")+")")

	serveCmd := &cobra.Command{
		Use:   "serve [preset]",
		Short: "run a scene in real time and stream it over websockets",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runServe,
	}
	sceneFlags(serveCmd)
	serveCmd.Flags().StringVar(&addr, "addr", "", "listen address (empty keeps the config value)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list recorded runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a body's height over time",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().Uint64Var(&plotBody, "body", 1, "body id")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "spectrum, impacts and phase portrait of a body",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  analyzeRun,
	}
	analyzeCmd.Flags().Uint64Var(&analyzeBody, "body", 1, "body id")
	analyzeCmd.Flags().Float64Var(&floor, "floor", 0.5, "height counted as an impact")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export run summary as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	svgCmd := &cobra.Command{
		Use:   "svg [run_id]",
		Short: "draw recorded trajectories as SVG",
		Args:  cobra.ExactArgs(1),
		RunE:  svgRun,
	}
	svgCmd.Flags().Uint64Var(&svgBody, "body", 0, "body id (0 draws every body)")
	svgCmd.Flags().StringVarP(&svgOut, "out", "o", "", "output file (default stdout)")
	svgCmd.Flags().BoolVar(&braille, "braille", false, "render through the braille canvas")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list built-in scenes",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tBODIES\tCOLLIDERS\tEVENTS")
			for _, name := range config.ListPresets() {
				p := config.Presets[name]
				fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", name, len(p.Bodies), len(p.Colliders), len(p.Events))
			}
			return w.Flush()
		},
	}

	initCmd := &cobra.Command{
		Use:   "init [preset]",
		Short: "write a preset out as an editable config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.GetPreset(args[0])
			if cfg == nil {
				return fmt.Errorf("unknown preset: %s (available: %v)", args[0], config.ListPresets())
			}
			path := initOut
			if path == "" {
				path = args[0] + ".yaml"
			}
			if err := config.Save(path, cfg); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().StringVarP(&initOut, "out", "o", "", "output path (default <preset>.yaml)")

	rootCmd.AddCommand(runCmd, liveCmd, serveCmd, listCmd, plotCmd, analyzeCmd, exportCmd, svgCmd, presetsCmd, initCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadScene resolves the config from --config or a preset name and applies
// the scene flags on top.
func loadScene(cmd *cobra.Command, args []string) (*automation.Scenario, *config.Config, error) {
	var (
		cfg  *config.Config
		name string
		err  error
	)
	switch {
	case configFile != "":
		if cfg, err = config.Load(configFile); err != nil {
			return nil, nil, fmt.Errorf("failed to load config: %w", err)
		}
		name = strings.TrimSuffix(filepath.Base(configFile), filepath.Ext(configFile))
	case len(args) == 1:
		name = args[0]
		if cfg = config.GetPreset(name); cfg == nil {
			return nil, nil, fmt.Errorf("unknown preset: %s (available: %v)", name, config.ListPresets())
		}
	default:
		return nil, nil, errors.New("need a preset name or --config")
	}

	if cmd.Flags().Changed("frames") {
		cfg.Engine.Frames = frames
	}
	if cmd.Flags().Changed("dt") {
		if dt <= 0 {
			return nil, nil, fmt.Errorf("--dt must be positive, got %g", dt)
		}
		cfg.Engine.TickRate = 1 / dt
	}
	if kernelName != "" {
		cfg.Engine.Kernel = kernelName
		if err := cfg.Validate(); err != nil {
			return nil, nil, err
		}
	}
	if verbose {
		cfg.Engine.Verbose = true
	}
	if jitter > 0 {
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		cfg.Scene = automation.Perturb(cfg.Scene, jitter, seed)
	}
	return automation.FromConfig(name, cfg), cfg, nil
}

func newEngine(cfg *config.Config, logger *log.Logger, observers ...sim.Observer) (*sim.Engine, error) {
	opts := []sim.Option{sim.WithLogger(logger), sim.WithVerbose(cfg.Engine.Verbose)}
	for _, o := range observers {
		opts = append(opts, sim.WithObserver(o))
	}
	return sim.New(sim.ConfigFrom(cfg.Engine), opts...)
}

// driverLogger only surfaces per-event logs with --verbose.
func driverLogger(logger *log.Logger) *log.Logger {
	if verbose {
		return logger
	}
	return log.New(io.Discard, "", 0)
}

func runScene(cmd *cobra.Command, args []string) error {
	sc, cfg, err := loadScene(cmd, args)
	if err != nil {
		return err
	}
	logger := newLogger()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	observer := metrics.NewObserver(metrics.Default(-cfg.Scene.Gravity[1])...)
	observers := []sim.Observer{observer}

	var rec *storage.Recorder
	if record || cfg.Record.Enabled {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		n := cfg.Record.Every
		if cmd.Flags().Changed("every") {
			n = every
		}
		runNotes := cfg.Record.Notes
		if notes != "" {
			runNotes = notes
		}
		rec, err = st.NewRecorder(storage.RunInfo{Scene: sc.Name, Seed: seed, Dt: sc.Dt, Every: n, Notes: runNotes})
		if err != nil {
			return err
		}
		observers = append(observers, rec)
	}

	eng, err := newEngine(cfg, logger, observers...)
	if err != nil {
		return abandonRun(rec, err, nil)
	}
	if err := automation.Apply(eng, sc.Scene); err != nil {
		eng.Shutdown()
		return abandonRun(rec, err, nil)
	}

	fmt.Printf("running %s for %d frames...\n", sc.Name, sc.Frames)
	start := time.Now()
	d := automation.NewDriver(eng, sc, driverLogger(logger))
	if realtime {
		err = d.RunRealtime(ctx, cfg.Engine.TickRate, sc.Frames)
	} else {
		err = d.Run(ctx, sc.Frames)
	}
	eng.Shutdown()
	elapsed := time.Since(start)
	if err != nil && !errors.Is(err, context.Canceled) {
		return abandonRun(rec, err, observer.Values())
	}

	stats := eng.Stats()
	fmt.Printf("completed in %v\n", elapsed.Round(time.Millisecond))
	fmt.Printf("frames: %d published, %d bodies\n", eng.PublishedFrame(), stats.Bodies)
	fmt.Printf("commands: %d processed, %d ignored, %d dropped\n", stats.Commands, stats.Ignored, stats.Dropped)

	vals := observer.Values()
	if rec != nil {
		meta, err := rec.Finish(vals)
		if err != nil {
			return err
		}
		fmt.Printf("run id: %s (%d frames recorded", meta.ID, meta.Recorded)
		if meta.Dropped > 0 {
			fmt.Printf(", %d dropped", meta.Dropped)
		}
		fmt.Println(")")
	}

	fmt.Println("\nmetrics:")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, m := range sortedKeys(vals) {
		fmt.Fprintf(w, "  %s\t%.6f\n", m, vals[m])
	}
	return w.Flush()
}

// abandonRun closes an open recorder on a failed run so its files are
// flushed and the partial run stays listable, then returns cause.
func abandonRun(rec *storage.Recorder, cause error, vals map[string]float64) error {
	if rec != nil {
		if _, err := rec.Finish(vals); err != nil {
			return errors.Join(cause, err)
		}
	}
	return cause
}

func runLive(cmd *cobra.Command, args []string) error {
	sc, cfg, err := loadScene(cmd, args)
	if err != nil {
		return err
	}
	if themeName != "" {
		if err := viz.SetTheme(themeName); err != nil {
			return err
		}
	}
	// The alt screen owns the terminal; engine logs would tear it.
	logger := log.New(io.Discard, "", 0)
	eng, err := newEngine(cfg, logger)
	if err != nil {
		return err
	}
	return viz.Run(eng, sc, viz.Options{Rate: cfg.Engine.TickRate, GIFPath: gifPath, Logger: logger})
}

func runServe(cmd *cobra.Command, args []string) error {
	sc, cfg, err := loadScene(cmd, args)
	if err != nil {
		return err
	}
	if addr == "" {
		addr = cfg.Serve.Addr
	}
	logger := newLogger()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	eng, err := newEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer eng.Shutdown()
	if err := automation.Apply(eng, sc.Scene); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		d := automation.NewDriver(eng, sc, driverLogger(logger))
		if err := d.RunRealtime(ctx, cfg.Engine.TickRate, sc.Frames); err != nil && !errors.Is(err, context.Canceled) {
			logger.Printf("driver: %v", err)
			cancel()
		}
	}()

	srv, err := stream.NewServer(eng, cfg.Serve.Rate, logger)
	if err != nil {
		return err
	}
	return srv.Run(ctx, addr)
}
