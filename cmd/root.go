package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/inference-sim/simcore/sim"
	"github.com/inference-sim/simcore/sim/elements"
	"github.com/inference-sim/simcore/sim/trace"
)

// envPrefix lets every flag be set from the environment (SIMCORE_HORIZON=10us).
const envPrefix = "SIMCORE"

// runOptions collects the resolved settings of one `run` invocation.
type runOptions struct {
	Model      string
	Horizon    string
	LogLevel   string
	TracePath  string
	TraceLevel string
}

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "simcore",
	Short: "Discrete-event simulation kernel with composable components",
}

// runCmd builds the model from a YAML file and runs it
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Build and run a simulation model",
	Run: func(cmd *cobra.Command, args []string) {
		opts := loadRunOptions()

		level, err := logrus.ParseLevel(opts.LogLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", opts.LogLevel)
		}
		logrus.SetLevel(level)

		if opts.Model == "" {
			logrus.Fatalf("No model file provided. Use --model or %s_MODEL.", envPrefix)
		}
		if !trace.IsValidTraceLevel(opts.TraceLevel) {
			logrus.Fatalf("Invalid trace level: %s", opts.TraceLevel)
		}

		// Configuration defects end the process here and nowhere else
		if err := runModel(opts, os.Stdout); err != nil {
			logrus.Fatalf("Simulation failed: %v", err)
		}
		logrus.Info("Simulation complete.")
	},
}

// elementsCmd lists every element type the CLI can build
var elementsCmd = &cobra.Command{
	Use:   "elements",
	Short: "List registered element types by family",
	Run: func(cmd *cobra.Command, args []string) {
		f, err := newFactory()
		if err != nil {
			logrus.Fatalf("Loading element libraries: %v", err)
		}
		writeElements(os.Stdout, f)
	},
}

// newFactory returns a Factory with every built-in library loaded.
func newFactory() (*sim.Factory, error) {
	f := sim.NewFactory()
	if err := f.LoadLibrary(elements.Library()); err != nil {
		return nil, err
	}
	return f, nil
}

func loadRunOptions() runOptions {
	return runOptions{
		Model:      viper.GetString("model"),
		Horizon:    viper.GetString("horizon"),
		LogLevel:   viper.GetString("log"),
		TracePath:  viper.GetString("trace"),
		TraceLevel: viper.GetString("trace-level"),
	}
}

// runModel executes the whole lifecycle of the model at opts.Model and prints a
// short report to out.
func runModel(opts runOptions, out io.Writer) error {
	g, err := sim.LoadConfigGraph(opts.Model)
	if err != nil {
		return err
	}
	f, err := newFactory()
	if err != nil {
		return err
	}

	var wt *trace.WiringTrace
	if opts.TracePath != "" {
		level := trace.TraceLevel(opts.TraceLevel)
		if level == "" || level == trace.TraceLevelNone {
			level = trace.TraceLevelTiming
		}
		wt = trace.NewWiringTrace(trace.TraceConfig{Level: level})
	}

	s, err := sim.NewSimulation(sim.SimulationConfig{
		TimeBase: g.TimeBase,
		Seed:     g.Seed,
		Horizon:  opts.Horizon,
		Factory:  f,
		Trace:    wt,
	})
	if err != nil {
		return err
	}
	defer s.Destroy()

	logrus.Infof("Building model %s (run %s, %d components, %d links)",
		opts.Model, s.RunID(), len(g.Components), len(g.Links))
	if err := s.Build(g); err != nil {
		return err
	}
	if err := s.Setup(); err != nil {
		return err
	}

	startTime := time.Now()
	if err := s.Run(); err != nil {
		return err
	}
	s.Finish()

	fmt.Fprintf(out, "=== Simulation Report ===\n")
	fmt.Fprintf(out, "run_id:        %s\n", s.RunID())
	fmt.Fprintf(out, "end_tick:      %d\n", s.CurrentSimCycle())
	fmt.Fprintf(out, "end_time_ns:   %d\n", s.TimeLord().Nano().FromCore(s.CurrentSimCycle()))
	fmt.Fprintf(out, "pending:       %d\n", s.PendingActivities())
	fmt.Fprintf(out, "wall_clock_ms: %d\n", time.Since(startTime).Milliseconds())

	if wt != nil {
		if err := writeTrace(opts.TracePath, wt); err != nil {
			return err
		}
		summary := trace.Summarize(wt)
		fmt.Fprintf(out, "links:         %d (own %d, inherited %d, self %d)\n",
			summary.TotalLinks, summary.OwnLinks, summary.InheritedLinks, summary.SelfLinks)
		fmt.Fprintf(out, "subcomponents: %d (anonymous %d)\n", summary.SubComponents, summary.AnonymousLoads)
	}
	return nil
}

func writeTrace(path string, wt *trace.WiringTrace) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating trace file: %w", err)
	}
	if err := wt.WriteYAML(file); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

func writeElements(out io.Writer, f *sim.Factory) {
	byFamily := f.Elements()
	families := make([]string, 0, len(byFamily))
	for family := range byFamily {
		families = append(families, family)
	}
	sort.Strings(families)
	for _, family := range families {
		fmt.Fprintf(out, "%s:\n", family)
		for _, name := range byFamily[family] {
			fmt.Fprintf(out, "  %s\n", name)
		}
	}
}

// initConfig binds flags and SIMCORE_* environment variables into viper.
func initConfig() {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	cobra.OnInitialize(initConfig)

	runCmd.Flags().String("model", "", "YAML model file")
	runCmd.Flags().String("horizon", "", "Stop time such as 10us (empty runs until idle)")
	runCmd.Flags().String("log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
	runCmd.Flags().String("trace", "", "Write the wiring trace as YAML to this file")
	runCmd.Flags().String("trace-level", "timing", "Trace detail (wiring, timing)")

	for _, name := range []string{"model", "horizon", "log", "trace", "trace-level"} {
		_ = viper.BindPFlag(name, runCmd.Flags().Lookup(name))
	}

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(elementsCmd)
}
