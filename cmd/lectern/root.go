package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/lectern/internal/api"
	"github.com/jackzampolin/lectern/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "lectern",
	Short: "PDF ingestion pipeline with classification and structure extraction",
	Long: `Lectern ingests PDF documents and runs them through an analysis
pipeline that produces a flat text report of everything it found.

The pipeline includes:
  - Validation and text extraction with per-page mapping
  - Table detection with competing extraction strategies
  - OCR fallback (tesseract or an OpenAI vision model) for scanned pages
  - Document classification (book, research paper, technical report)
  - Type-specific structure extraction and page-wise organization`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.lectern/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "lectern home directory (default: ~/.lectern)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}
