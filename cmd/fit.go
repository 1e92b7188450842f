package cmd

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/inference-sim/tracking-sim/sim/workload"
)

// fitCmd turns recorded traces into a distributions file for run --distributions.
var fitCmd = &cobra.Command{
	Use:   "fit",
	Short: "Convert recorded traces into a YAML distributions file",
	Long:  "Parse the GraphML, traceml and stopwatch traces and write the per-stage duration distributions (ms) as YAML. Output is written to stdout for piping.",
	Run: func(cmd *cobra.Command, args []string) {
		traces, err := workload.LoadTraces(traceFiles())
		if err != nil {
			logrus.Fatalf("Trace loading failed: %v", err)
		}
		if err := writeDistributions(cmd.OutOrStdout(), traces, uniform); err != nil {
			logrus.Fatalf("Fitting failed: %v", err)
		}
	},
}

// writeDistributions marshals the fitted distributions to YAML.
func writeDistributions(w io.Writer, traces workload.Traces, uniform bool) error {
	file, err := workload.FitDistSpecs(traces, uniform)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(file)
	if err != nil {
		return fmt.Errorf("YAML marshal failed: %w", err)
	}
	_, err = w.Write(data)
	return err
}

func init() {
	addTraceFlags(fitCmd)
	rootCmd.AddCommand(fitCmd)
}
