package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/gravsim/internal/app"
	"github.com/san-kum/gravsim/internal/config"
	"github.com/san-kum/gravsim/internal/export"
	"github.com/san-kum/gravsim/internal/gravity"
	"github.com/san-kum/gravsim/internal/logging"
	"github.com/san-kum/gravsim/internal/metrics"
	"github.com/san-kum/gravsim/internal/remote"
	"github.com/san-kum/gravsim/internal/server"
	"github.com/san-kum/gravsim/internal/sim"
	"github.com/san-kum/gravsim/internal/storage"
	"github.com/san-kum/gravsim/internal/viz"
)

// maxPlottedBodies caps how many bodies plot draws.
const maxPlottedBodies = 4

type cli struct {
	configFile string
	dataDir    string
	cfg        *config.Config

	// run, live and remote setup
	preset   string
	scenario string
	steps    int
	stepS    float64

	addr      string
	staticDir string
	remoteURL string
	outFile   string
	svgSize   int
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	rootCmd := &cobra.Command{
		Use:          "gravsim",
		Short:        "two-dimensional gravitational n-body simulator",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.loadConfig(cmd)
		},
	}
	rootCmd.PersistentFlags().StringVar(&c.configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&c.dataDir, "data", config.DefaultDataDir, "data directory")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "serve the simulation over http",
		Args:  cobra.NoArgs,
		RunE:  c.serve,
	}
	serveCmd.Flags().StringVar(&c.addr, "addr", config.DefaultAddr, "listen address")
	serveCmd.Flags().StringVar(&c.staticDir, "static", config.DefaultStaticDir, "static file directory")
	serveCmd.Flags().StringVar(&c.preset, "preset", "", "preset to load before serving")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a scenario offline and store the result",
		Args:  cobra.NoArgs,
		RunE:  c.run,
	}
	c.scenarioFlags(runCmd)
	runCmd.Flags().IntVar(&c.steps, "steps", config.DefaultSteps, "number of steps")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		Args:  cobra.NoArgs,
		RunE:  c.list,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot body positions of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  c.plot,
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run data to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  c.exportJSON,
	}
	exportJSONCmd.Flags().StringVarP(&c.outFile, "out", "o", "", "output file (default stdout)")

	exportSVGCmd := &cobra.Command{
		Use:   "export-svg [run_id]",
		Short: "draw body trajectories of a run as SVG",
		Args:  cobra.ExactArgs(1),
		RunE:  c.exportSVG,
	}
	exportSVGCmd.Flags().StringVarP(&c.outFile, "out", "o", "", "output file (default stdout)")
	exportSVGCmd.Flags().IntVar(&c.svgSize, "size", 800, "image size in pixels")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list built-in scenarios",
		Args:  cobra.NoArgs,
		RunE:  c.presets,
	}

	scenarioCmd := &cobra.Command{
		Use:   "scenario [preset] [file]",
		Short: "write a built-in scenario to a yaml file for editing",
		Args:  cobra.ExactArgs(2),
		RunE:  c.writeScenario,
	}

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "run a scenario with live terminal visualization",
		Args:  cobra.NoArgs,
		RunE:  c.live,
	}
	c.scenarioFlags(liveCmd)

	rootCmd.AddCommand(serveCmd, runCmd, listCmd, plotCmd, exportJSONCmd, exportSVGCmd, presetsCmd, scenarioCmd, liveCmd, c.remoteCmd())
	return rootCmd
}

func (c *cli) scenarioFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&c.preset, "preset", "", "built-in scenario name")
	cmd.Flags().StringVar(&c.scenario, "scenario", "", "scenario file (yaml)")
	cmd.Flags().Float64Var(&c.stepS, "step", 0, "step size in seconds (0 keeps the scenario's)")
}

// loadConfig reads the config file, then the environment, then any flags the
// user set explicitly.
func (c *cli) loadConfig(cmd *cobra.Command) error {
	cfg := config.DefaultConfig()
	if c.configFile != "" {
		loaded, err := config.Load(c.configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}
	cfg.ApplyEnv(os.Getenv)

	flags := cmd.Flags()
	if flags.Changed("data") {
		cfg.Storage.DataDir = c.dataDir
	}
	if flags.Changed("addr") {
		cfg.Server.Addr = c.addr
	}
	if flags.Changed("static") {
		cfg.Server.StaticDir = c.staticDir
	}
	if flags.Changed("url") {
		cfg.Remote.URL = c.remoteURL
	}
	if flags.Changed("steps") {
		cfg.Run.Steps = c.steps
	}
	if flags.Changed("step") {
		cfg.Run.StepS = c.stepS
	}
	if flags.Changed("scenario") {
		cfg.Run.Scenario = c.scenario
		cfg.Run.Preset = ""
	}
	if flags.Changed("preset") {
		cfg.Run.Preset = c.preset
		cfg.Run.Scenario = ""
		cfg.Server.Preset = c.preset
	}

	c.cfg = cfg
	return nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func (c *cli) serve(cmd *cobra.Command, args []string) error {
	log := logging.NewLogger()

	s := app.New()
	if name := c.cfg.Server.Preset; name != "" {
		sc := config.GetPreset(name)
		if sc == nil {
			return fmt.Errorf("unknown preset: %s (available: %v)", name, config.ListPresets())
		}
		s = app.NewWithState(sc.State)
	}

	ctx, cancel := signalContext()
	defer cancel()

	srv := server.New(s, log, server.Options{StaticDir: c.cfg.Server.StaticDir})
	if err := srv.ListenAndServe(ctx, c.cfg.Server.Addr); err != nil {
		log.Error(ctx, "server stopped", err)
		return err
	}
	return nil
}

func (c *cli) run(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	name, x0, err := c.cfg.Run.InitialState()
	if err != nil {
		return err
	}
	for _, verr := range gravity.Validate(x0) {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", verr)
	}

	st := storage.New(c.cfg.Storage.DataDir)
	if err := st.Init(); err != nil {
		return err
	}

	runner := sim.New(gravity.Step)
	for _, m := range metrics.Default() {
		runner.AddMetric(m)
	}

	ctx, cancel := signalContext()
	defer cancel()

	fmt.Fprintf(out, "running %s (%d bodies, %d steps of %gs)...\n", name, len(x0.Entities), c.cfg.Run.Steps, x0.StepS)
	start := time.Now()

	runCfg := sim.DefaultConfig()
	runCfg.Steps = c.cfg.Run.Steps
	result, err := runner.Run(ctx, x0, runCfg)
	if err != nil && result == nil {
		return err
	}
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "interrupted: %v\n", err)
	}
	for _, serr := range result.Errors {
		fmt.Fprintf(cmd.ErrOrStderr(), "stopped: %v\n", serr)
	}

	runID, err := st.Save(name, result)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "completed in %v\n", time.Since(start))
	fmt.Fprintf(out, "run id: %s\n", runID)
	fmt.Fprintf(out, "steps: %d\n", result.StepsTaken)
	fmt.Fprintf(out, "simulated: %gs\n", result.Final().TimeS-x0.TimeS)
	fmt.Fprintln(out, "\nmetrics:")
	for _, m := range metrics.Default() {
		if v, ok := result.Metrics[m.Name()]; ok {
			fmt.Fprintf(out, "  %s: %.6g\n", m.Name(), v)
		}
	}
	return nil
}

func (c *cli) list(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	runs, err := storage.New(c.cfg.Storage.DataDir).List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Fprintln(out, "no runs found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSCENARIO\tTIME\tBODIES\tSTEPS\tSTEP\tSIMULATED")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%gs\t%gs\n",
			run.ID,
			run.Scenario,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Bodies,
			run.Steps,
			run.StepS,
			run.Duration(),
		)
	}
	return w.Flush()
}

func (c *cli) plot(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	st := storage.New(c.cfg.Storage.DataDir)

	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	states, err := st.LoadStates(args[0])
	if err != nil {
		return err
	}
	if len(states) == 0 || meta.Bodies == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Fprintf(out, "run: %s\n", meta.ID)
	fmt.Fprintf(out, "scenario: %s\n", meta.Scenario)
	fmt.Fprintf(out, "samples: %d\n\n", len(states))

	for body := 0; body < min(meta.Bodies, maxPlottedBodies); body++ {
		xs := make([]float64, len(states))
		ys := make([]float64, len(states))
		for i, s := range states {
			xs[i] = s.Entities[body].PositionM.X
			ys[i] = s.Entities[body].PositionM.Y
		}

		graph := asciigraph.PlotMany([][]float64{xs, ys},
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.SeriesColors(asciigraph.Blue, asciigraph.Red),
			asciigraph.Caption(fmt.Sprintf("body %d position x (blue) y (red) [m]", body)),
		)
		fmt.Fprintln(out, graph)
		fmt.Fprintln(out)
	}
	return nil
}

func (c *cli) exportJSON(cmd *cobra.Command, args []string) error {
	st := storage.New(c.cfg.Storage.DataDir)
	return c.writeOutput(cmd, func(w io.Writer) error {
		return st.ExportJSON(w, args[0])
	})
}

func (c *cli) exportSVG(cmd *cobra.Command, args []string) error {
	states, err := storage.New(c.cfg.Storage.DataDir).LoadStates(args[0])
	if err != nil {
		return err
	}
	return c.writeOutput(cmd, func(w io.Writer) error {
		return export.TrajectoriesSVG(w, states, c.svgSize)
	})
}

// writeOutput sends write to --out when set, stdout otherwise.
func (c *cli) writeOutput(cmd *cobra.Command, write func(io.Writer) error) error {
	if c.outFile == "" {
		return write(cmd.OutOrStdout())
	}

	f, err := os.Create(c.outFile)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "exported to %s\n", c.outFile)
	return nil
}

func (c *cli) presets(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tBODIES\tSTEP\tDESCRIPTION")
	for _, name := range config.ListPresets() {
		sc := config.Presets[name]
		fmt.Fprintf(w, "%s\t%d\t%gs\t%s\n", name, len(sc.State.Entities), sc.State.StepS, sc.Description)
	}
	return w.Flush()
}

// writeScenario saves a preset in the format --scenario reads, named after
// the target file so the edited copy stays distinguishable from the preset.
func (c *cli) writeScenario(cmd *cobra.Command, args []string) error {
	preset := config.GetPreset(args[0])
	if preset == nil {
		return fmt.Errorf("unknown preset: %s (available: %v)", args[0], config.ListPresets())
	}

	sc := *preset
	sc.Name = config.ScenarioName(args[1])
	if err := config.SaveScenario(args[1], &sc); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s to %s\n", args[0], args[1])
	return nil
}

func (c *cli) live(cmd *cobra.Command, args []string) error {
	name, x0, err := c.cfg.Run.InitialState()
	if err != nil {
		return err
	}
	return viz.Run(app.NewWithState(x0), name)
}

func (c *cli) remoteCmd() *cobra.Command {
	remoteCmd := &cobra.Command{
		Use:   "remote",
		Short: "drive a running gravsim server",
	}
	remoteCmd.PersistentFlags().StringVar(&c.remoteURL, "url", config.DefaultRemoteURL, "server base url")

	setupCmd := &cobra.Command{
		Use:   "setup",
		Short: "install a scenario on the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, x0, err := c.cfg.Run.InitialState()
			if err != nil {
				return err
			}
			return c.remoteCall(cmd, func(ctx context.Context, rc *remote.Client) (gravity.State, error) {
				return rc.Setup(ctx, x0)
			})
		},
	}
	c.scenarioFlags(setupCmd)

	var count int
	stepCmd := &cobra.Command{
		Use:   "step",
		Short: "advance the server by one or more steps",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 1 {
				return fmt.Errorf("count must be positive, got %d", count)
			}
			return c.remoteCall(cmd, func(ctx context.Context, rc *remote.Client) (gravity.State, error) {
				var s gravity.State
				var err error
				for i := 0; i < count; i++ {
					if s, err = rc.Step(ctx); err != nil {
						return s, err
					}
				}
				return s, nil
			})
		},
	}
	stepCmd.Flags().IntVarP(&count, "count", "n", 1, "number of steps")

	getCmd := &cobra.Command{
		Use:   "get",
		Short: "print the server's current snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.remoteCall(cmd, func(ctx context.Context, rc *remote.Client) (gravity.State, error) {
				return rc.Get(ctx)
			})
		},
	}

	remoteCmd.AddCommand(setupCmd, stepCmd, getCmd)
	return remoteCmd
}

func (c *cli) remoteCall(cmd *cobra.Command, call func(context.Context, *remote.Client) (gravity.State, error)) error {
	log := logging.NewLogger()
	rc := remote.New(c.cfg.Remote.URL, remote.Options{
		Timeout:     c.cfg.Remote.Timeout,
		MaxFailures: c.cfg.Remote.MaxFailures,
		Logger:      log,
	})

	ctx, cancel := signalContext()
	defer cancel()
	ctx = logging.WithCorrelationID(ctx, "")

	s, err := call(ctx, rc)
	if err != nil {
		return err
	}
	return printState(cmd.OutOrStdout(), s)
}

func printState(w io.Writer, s gravity.State) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}
