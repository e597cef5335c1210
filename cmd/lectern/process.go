package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/lectern/internal/config"
	"github.com/jackzampolin/lectern/internal/home"
	"github.com/jackzampolin/lectern/internal/jobcfg"
	"github.com/jackzampolin/lectern/internal/metrics"
	"github.com/jackzampolin/lectern/internal/store"
)

var processOutDir string

var processCmd = &cobra.Command{
	Use:   "process <file.pdf>",
	Short: "Run the pipeline on a PDF without a server",
	Long: `Process a single PDF through the full pipeline, synchronously.

The file is copied into the document store under the home directory, so
reports and metrics remain inspectable afterwards with the api commands
once a server is running.

Examples:
  lectern process paper.pdf                 # Process and print the summary
  lectern process paper.pdf --out ./done    # Also copy the report to ./done`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		pdfPath := args[0]

		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))

		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}

		cfgMgr, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		cfg := cfgMgr.Get()

		st := store.New(h)
		runner, err := jobcfg.BuildRunner(cfg, jobcfg.Deps{
			Home:    h,
			Store:   st,
			Metrics: metrics.NewRegistry(),
			Logger:  logger,
		})
		if err != nil {
			return err
		}

		f, err := os.Open(pdfPath)
		if err != nil {
			return err
		}
		doc, err := st.Create(filepath.Base(pdfPath), f)
		f.Close()
		if err != nil {
			return err
		}

		state, runErr := runner.Process(ctx, doc.ID)

		// The record carries the outcome even when the run failed.
		final, err := st.Get(doc.ID)
		if err != nil {
			return err
		}

		fmt.Printf("Document: %s (%s)\n", final.Filename, final.ID)
		fmt.Printf("Status:   %s\n", final.Status)
		if final.PageCount > 0 {
			fmt.Printf("Pages:    %d\n", final.PageCount)
		}
		if final.DocType != "" {
			fmt.Printf("Type:     %s (confidence %.2f)\n", final.DocType, final.Confidence)
		}
		if final.Error != "" {
			fmt.Printf("Error:    %s\n", final.Error)
		}
		if state != nil && len(state.Errors) > 0 {
			stages := make([]string, 0, len(state.Errors))
			for name := range state.Errors {
				stages = append(stages, name)
			}
			sort.Strings(stages)
			fmt.Printf("Degraded: %s\n", strings.Join(stages, ", "))
		}
		if sum := runner.Metrics().Summary(doc.ID); sum != nil && sum.Count > 0 {
			fmt.Printf("Metrics:  %d records, %d errors, %dms total\n",
				sum.Count, sum.ErrorCount, sum.TotalMS)
		}
		if final.ReportPath != "" {
			fmt.Printf("Report:   %s\n", final.ReportPath)
		}

		if processOutDir != "" && final.ReportPath != "" {
			dst, err := copyReport(final.ReportPath, processOutDir, final.Filename)
			if err != nil {
				return err
			}
			fmt.Printf("Copied:   %s\n", dst)
		}

		return runErr
	},
}

// copyReport places the report in dir under the original processed-file
// naming convention, <stem>_processed.txt.
func copyReport(reportPath, dir, filename string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	data, err := os.ReadFile(reportPath)
	if err != nil {
		return "", err
	}
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	dst := filepath.Join(dir, stem+"_processed.txt")
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return "", err
	}
	return dst, nil
}

func init() {
	processCmd.Flags().StringVar(&processOutDir, "out", "", "Directory to copy the report into")

	rootCmd.AddCommand(processCmd)
}
