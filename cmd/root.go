package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/tracking-sim/sim"
	"github.com/inference-sim/tracking-sim/sim/runner"
	"github.com/inference-sim/tracking-sim/sim/trace"
	"github.com/inference-sim/tracking-sim/sim/workload"
)

var (
	// Run options
	cpuCores        int           // Size of the shared CPU pool
	videoStreams    int           // Number of concurrent camera streams
	totalFrames     int           // Frames each stream pushes through the pipeline
	runs            int           // Number of seeded runs to average
	seed            int64         // First seed; run i uses seed+i
	enableNewModule bool          // Add the gate-detection branch
	nnCache         sim.CacheMode // NN result cache behaviour
	logLevel        string        // Log verbosity level
	configPath      string        // YAML run config
	topologyPath    string        // YAML pipeline topology

	// Duration sources
	graphPaths         []string // GraphML files naming the flow-graph nodes
	graphTracesPath    string   // TBB traceml of the profiled pipeline
	nnInferencerTraces string   // Stopwatch log of the NN inferencer
	decoderTraces      string   // Stopwatch log of the decoder
	uniform            bool     // Fit uniform distributions instead of replaying samples
	distributionsPath  string   // YAML synthetic distributions (replaces traces)

	traceSummary bool // Print per-stage statistics of the first run
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "tracking-sim",
	Short: "Discrete-event throughput simulator for multi-camera tracking pipelines",
}

// runCmd executes the seeded runs using parameters from CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Simulate the pipeline and report average FPS",
	Run: func(cmd *cobra.Command, args []string) {
		// Set up logging
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		cfg, err := resolveRunConfig(cmd)
		if err != nil {
			logrus.Fatalf("Invalid run configuration: %v", err)
		}
		samplers, err := loadSamplers()
		if err != nil {
			logrus.Fatalf("Unable to build duration distributions: %v", err)
		}

		r, err := runner.New(cfg, samplers)
		if err != nil {
			logrus.Fatalf("Invalid run configuration: %v", err)
		}
		logrus.Infof("Starting %d run(s): %d streams x %d frames, %d cores, cache %v, new module %t",
			cfg.Runs, cfg.VideoStreams, cfg.TotalFrames, cfg.CPUCores, cfg.CacheMode, cfg.ExtendedModuleEnabled)

		report, err := r.Run()
		if err != nil {
			logrus.Fatalf("Simulation failed: %v", err)
		}
		writeReport(cmd.OutOrStdout(), report, traceSummary)

		logrus.Info("Simulation complete.")
	},
}

// resolveRunConfig layers the run options: defaults, then the --config file,
// then every flag set explicitly on the command line.
func resolveRunConfig(cmd *cobra.Command) (runner.Config, error) {
	cfg := runner.DefaultConfig()
	if configPath != "" {
		var err error
		cfg, err = loadRunConfig(configPath)
		if err != nil {
			return cfg, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("cpu-cores") {
		cfg.CPUCores = cpuCores
	}
	if flags.Changed("video-streams") {
		cfg.VideoStreams = videoStreams
	}
	if flags.Changed("total-frames") {
		cfg.TotalFrames = totalFrames
	}
	if flags.Changed("runs") {
		cfg.Runs = runs
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("enable-new-module") {
		cfg.ExtendedModuleEnabled = enableNewModule
	}
	if flags.Changed("nn-cache") {
		cfg.CacheMode = nnCache
	}

	if topologyPath != "" {
		topo, err := sim.LoadTopology(topologyPath)
		if err != nil {
			return cfg, err
		}
		cfg.Topology = topo
	}
	if traceSummary {
		cfg.Trace = trace.TraceConfig{Level: trace.TraceLevelStages}
	}
	return cfg, cfg.Validate()
}

// loadSamplers builds the duration samplers from --distributions when given,
// otherwise from the recorded traces.
func loadSamplers() (map[string]sim.Sampler, error) {
	if distributionsPath != "" {
		return workload.LoadDistSpecs(distributionsPath)
	}
	traces, err := workload.LoadTraces(traceFiles())
	if err != nil {
		return nil, fmt.Errorf("%w (or pass --distributions)", err)
	}
	return workload.NewSamplersFromTraces(traces, uniform)
}

func traceFiles() workload.TraceFiles {
	return workload.TraceFiles{
		Graphs:             graphPaths,
		GraphTraces:        graphTracesPath,
		NNInferencerTraces: nnInferencerTraces,
		DecoderTraces:      decoderTraces,
	}
}

// writeReport prints the overall throughput line, and the per-stage trace
// summary of the first run when requested.
func writeReport(w io.Writer, report *runner.Report, withSummary bool) {
	if len(report.Runs) > 1 {
		for _, run := range report.Runs {
			fmt.Fprintf(w, "Run %d (%s): %.3f FPS\n", run.Seed, run.ID, run.MeanFPS)
		}
	}
	fmt.Fprintf(w, "Average FPS: %.3f\n", report.MeanFPS)

	if !withSummary || len(report.Runs) == 0 {
		return
	}
	summary := trace.Summarize(report.Runs[0].Trace)
	fmt.Fprintf(w, "\n%-24s %8s %8s %8s %12s\n", "stage", "calls", "fwd", "absorbed", "mean (ms)")
	for _, name := range summary.StageNames() {
		s := summary.Stages[name]
		fmt.Fprintf(w, "%-24s %8d %8d %8d %12.3f\n", name, s.Invocations, s.Forwarded+s.Signalled, s.Absorbed, s.MeanService)
	}
	for _, res := range []string{sim.ResourceCPU, sim.ResourceGPU, sim.MutexNNCache, sim.MutexMulticameraTracker} {
		fmt.Fprintf(w, "peak %s: %d\n", res, summary.PeakHeld[res])
	}
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addTraceFlags(c *cobra.Command) {
	c.Flags().StringSliceVar(&graphPaths, "graphs", nil, "GraphML files naming the flow-graph nodes")
	c.Flags().StringVar(&graphTracesPath, "graph-traces", "", "TBB traceml file of the profiled pipeline")
	c.Flags().StringVar(&nnInferencerTraces, "nn-inferencer-traces", "", "Stopwatch log of the NN inferencer (first line is the compile time)")
	c.Flags().StringVar(&decoderTraces, "decoder-traces", "", "Stopwatch log of the decoder")
	c.Flags().BoolVar(&uniform, "uniform", false, "Fit uniform distributions to the traces instead of replaying samples")
}

// init sets up CLI flags and subcommands
func init() {
	runCmd.Flags().IntVar(&cpuCores, "cpu-cores", runner.DefaultCPUCores, "Number of CPU cores shared by all streams")
	runCmd.Flags().IntVar(&videoStreams, "video-streams", runner.DefaultVideoStreams, "Number of concurrent video streams")
	runCmd.Flags().IntVar(&totalFrames, "total-frames", runner.DefaultTotalFrames, "Frames per stream")
	runCmd.Flags().IntVar(&runs, "runs", runner.DefaultRuns, "Number of seeded runs to average")
	runCmd.Flags().Int64Var(&seed, "seed", 0, "First seed; run i uses seed+i")
	runCmd.Flags().BoolVar(&enableNewModule, "enable-new-module", false, "Add the gate-detection branch to the pipeline")
	runCmd.Flags().Var(&nnCache, "nn-cache", "NN cache mode (NOT_ACTIVATED, REAL_FULL, IDEAL_FULL)")
	runCmd.Flags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
	runCmd.Flags().StringVar(&configPath, "config", "", "YAML run config; explicit flags override it")
	runCmd.Flags().StringVar(&topologyPath, "topology", "", "YAML pipeline topology (default: built-in tracking pipeline)")
	runCmd.Flags().StringVar(&distributionsPath, "distributions", "", "YAML duration distributions, used instead of traces")
	runCmd.Flags().BoolVar(&traceSummary, "trace-summary", false, "Print per-stage statistics of the first run")
	addTraceFlags(runCmd)

	// Attach `run` as a subcommand to `root`
	rootCmd.AddCommand(runCmd)
}
