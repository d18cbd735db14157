package ui

import (
	"fmt"
	"io"
	"time"

	"archivescraper/pkg/checkpoint"
)

// DatasetSummary is one row of the end-of-run summary
type DatasetSummary struct {
	DatasetID      int
	CompletedPages int
	TargetPages    int
	Links          int
	NewPages       int
	NewFailures    int
	PagesPerSecond float64
	Duration       time.Duration
	FailedPages    []int
	CircuitBroken  bool
	ResultPath     string
}

// PrintSummary writes the end-of-run summary
func PrintSummary(w io.Writer, rows []DatasetSummary, total time.Duration) {
	fmt.Fprintf(w, "\n%s\n", Magenta("SUMMARY"))

	for _, r := range rows {
		mark := Green("✓")
		if len(r.FailedPages) > 0 || r.CircuitBroken {
			mark = Yellow("!")
		}
		fmt.Fprintf(w, "%s Dataset %d: %d/%d pages, %d links\n", mark, r.DatasetID, r.CompletedPages, r.TargetPages, r.Links)
		fmt.Fprintf(w, "  %s this run: +%d pages, %d failures, %.2f pages/sec in %s\n",
			Dim("•"), r.NewPages, r.NewFailures, r.PagesPerSecond, FormatDuration(r.Duration))
		if r.CircuitBroken {
			fmt.Fprintf(w, "  %s %s\n", Dim("•"), Yellow("stopped early after too many consecutive failures"))
		}
		if len(r.FailedPages) > 0 {
			fmt.Fprintf(w, "  %s %d failed pages, rerun with --retry-failed: %s\n",
				Dim("•"), len(r.FailedPages), checkpoint.FormatRanges(checkpoint.Runs(r.FailedPages)))
		}
		if r.ResultPath != "" {
			fmt.Fprintf(w, "  %s saved to %s\n", Dim("•"), r.ResultPath)
		}
	}

	fmt.Fprintf(w, "\nTotal time: %s\n", FormatDuration(total))
}
