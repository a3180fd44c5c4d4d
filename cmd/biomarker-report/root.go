package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/synaptica-ai/biomarkers/pkg/common/config"
	"github.com/synaptica-ai/biomarkers/pkg/common/logger"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "biomarker-report",
	Short: "Offline biomarker dashboard pipeline",
	Long:  "Runs the biomarker dashboard pipeline over a dataset file, prints a clinical summary and exports the view-model as JSON.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config.LoadDotEnv()
		logger.Init()
		cfg = config.Load()
		return nil
	},
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
