package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/synaptica-ai/biomarkers/pkg/common/models"
	"github.com/synaptica-ai/biomarkers/pkg/dataset"
	"github.com/synaptica-ai/biomarkers/pkg/pipeline"
	"github.com/synaptica-ai/biomarkers/pkg/preferences"
	"github.com/synaptica-ai/biomarkers/pkg/ranges"
)

type runOptions struct {
	input          string
	output         string
	catalog        string
	patientID      string
	anonymize      bool
	trendAlerts    bool
	trendThreshold float64
	format         string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Build the dashboard for a dataset file",
	Long: `Build the dashboard view-model for one patient of a dataset file.

Examples:
  # Print the summary for the default dataset
  biomarker-report run

  # Select a patient and export the full view-model
  biomarker-report run --input data.json --patient P002 --output dashboard.json

  # Emit JSON on stdout with trend alerts enabled
  biomarker-report run --format json --trend-alerts`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		f := cmd.Flags()
		opts := runOptions{format: "text"}
		opts.input, _ = f.GetString("input")
		opts.output, _ = f.GetString("output")
		opts.catalog, _ = f.GetString("catalog")
		opts.patientID, _ = f.GetString("patient")
		opts.anonymize, _ = f.GetBool("anonymize")
		opts.trendAlerts, _ = f.GetBool("trend-alerts")
		opts.trendThreshold, _ = f.GetFloat64("trend-threshold")
		opts.format, _ = f.GetString("format")

		if opts.input == "" {
			opts.input = cfg.DatasetPath
		}
		if opts.catalog == "" {
			opts.catalog = cfg.CatalogPath
		}
		if !f.Changed("trend-alerts") {
			opts.trendAlerts = cfg.TrendAlerts
		}
		if !f.Changed("trend-threshold") {
			opts.trendThreshold = cfg.TrendThreshold
		}
		return runReport(ctx, opts, cmd.OutOrStdout())
	},
}

func init() {
	f := runCmd.Flags()
	f.String("input", "", "dataset JSON file (default: DATASET_PATH)")
	f.String("output", "", "write the view-model JSON to this file")
	f.String("catalog", "", "biomarker catalog YAML (default: built-in)")
	f.String("patient", "", "patient id to select in multi-patient datasets")
	f.Bool("anonymize", false, "replace the patient name in the header")
	f.Bool("trend-alerts", false, "flag series whose change exceeds the trend threshold")
	f.Float64("trend-threshold", 20, "trend alert threshold in percent")
	f.String("format", "text", "stdout format: text or json")

	rootCmd.AddCommand(runCmd)
}

func runReport(ctx context.Context, opts runOptions, out io.Writer) error {
	if opts.format != "text" && opts.format != "json" {
		return fmt.Errorf("unknown format %q", opts.format)
	}

	catalog, err := ranges.Load(opts.catalog)
	if err != nil {
		return err
	}

	prefs := preferences.NewMemoryStore()
	if opts.patientID != "" {
		if err := prefs.Set(ctx, preferences.KeySelectedPatient, opts.patientID); err != nil {
			return err
		}
	}
	if opts.anonymize {
		if err := prefs.Set(ctx, preferences.KeyAnonymize, "true"); err != nil {
			return err
		}
	}

	p := pipeline.New(dataset.NewFileSource(opts.input), prefs, catalog, pipeline.Options{
		TrendAlerts:    opts.trendAlerts,
		TrendThreshold: opts.trendThreshold,
	})
	vm, err := p.Run(ctx)
	if err != nil {
		return err
	}

	if opts.output != "" {
		if err := writeViewModel(opts.output, vm); err != nil {
			return err
		}
	}

	if opts.format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(vm)
	}
	printSummary(out, vm)
	if opts.output != "" {
		fmt.Fprintf(out, "\nData exported to:\n  - %s\n", opts.output)
	}
	return nil
}

func writeViewModel(path string, vm *models.ViewModel) error {
	payload, err := json.MarshalIndent(vm, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding view-model: %w", err)
	}
	if err := os.WriteFile(path, append(payload, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
