package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"archivescraper/pkg/checkpoint"
	"archivescraper/pkg/logger"
	"archivescraper/pkg/models"
	"archivescraper/pkg/ui"
)

var statusDataset int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show stored progress for each dataset",
	Long: `Show how many pages of each dataset are complete, which page ranges are
still missing and which pages failed on the last attempt.`,
	Example: `  archivescraper status
  archivescraper status --dataset 9`,
	Args: cobra.NoArgs,
	Run:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().IntVarP(&statusDataset, "dataset", "d", 0, "dataset id (default: all configured datasets)")
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg := loadConfig(nil)
	log := logger.GetLogger()

	datasets, err := selectDatasets(cfg, statusDataset)
	if err != nil {
		ui.PrintError("Invalid dataset", err.Error())
		os.Exit(1)
	}

	store, err := checkpoint.NewStore(cfg.Storage, log)
	if err != nil {
		ui.PrintError("Failed to open progress storage", err.Error())
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()
	for _, ds := range datasets {
		progress, err := store.LoadProgress(ctx, ds.ID)
		if err != nil {
			ui.PrintError(fmt.Sprintf("Dataset %d", ds.ID), err.Error())
			continue
		}
		writeStatus(os.Stdout, ds, progress)
	}
}

// writeStatus prints one dataset's stored progress. A nil progress means nothing was stored yet.
func writeStatus(w io.Writer, ds models.Dataset, progress *models.DatasetProgress) {
	if progress == nil {
		fmt.Fprintf(w, "Dataset %d: no progress stored (estimated %d pages)\n", ds.ID, ds.EstimatedPages)
		return
	}

	target := progress.TargetPageCount
	if target <= 0 {
		target = ds.EstimatedPages
	}
	completed := len(progress.CompletedPages)
	pct := 0.0
	if target > 0 {
		pct = float64(completed) / float64(target) * 100
	}

	fmt.Fprintf(w, "Dataset %d: %d/%d pages (%.1f%%), %d links\n", ds.ID, completed, target, pct, len(progress.Links))
	if !progress.LastUpdated.IsZero() {
		fmt.Fprintf(w, "  Last updated: %s\n", progress.LastUpdated.Local().Format("2006-01-02 15:04:05"))
	}

	if gaps := checkpoint.FindGaps(progress.CompletedPages.Sorted(), target); len(gaps) > 0 {
		fmt.Fprintf(w, "  Missing: %s\n", checkpoint.FormatRanges(gaps))
	}
	if len(progress.FailedPages) > 0 {
		fmt.Fprintf(w, "  Failed (%d): %s\n", len(progress.FailedPages), checkpoint.FormatRanges(checkpoint.Runs(progress.FailedPages.Sorted())))
	}
}
