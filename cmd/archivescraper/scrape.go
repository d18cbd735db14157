package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"archivescraper/pkg/browser"
	"archivescraper/pkg/checkpoint"
	"archivescraper/pkg/crawler"
	"archivescraper/pkg/export"
	"archivescraper/pkg/logger"
	"archivescraper/pkg/metrics"
	"archivescraper/pkg/models"
	"archivescraper/pkg/ui"
)

var (
	// Scrape command flags
	datasetID     int
	visible       bool
	maxPages      int
	concurrency   int
	retryFailed   bool
	clearProgress bool
	sequential    bool
	debugTimings  bool
	metricsAddr   string
	exportLinks   bool
	outputDir     string
	storageKind   string
)

// scrapeCmd represents the scrape command
var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape listing pages and record every video link",
	Long: `Scrape the paginated listings of one dataset, or of every configured dataset
when --dataset is omitted.

Progress is checkpointed while the run is going, so an interrupted run picks up
the remaining pages next time. Pages that failed are only retried with
--retry-failed.`,
	Example: `  # Scrape every configured dataset
  archivescraper scrape

  # Scrape dataset 10 with 8 concurrent tabs
  archivescraper scrape --dataset 10 --concurrency 8

  # Only the first 50 pages, with a visible browser
  archivescraper scrape --dataset 9 --max-pages 50 --visible

  # Retry the pages that failed last time
  archivescraper scrape --dataset 9 --retry-failed

  # Start over and export the result to Postgres
  archivescraper scrape --dataset 11 --clear-progress --export`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		runScrape(cmd, args)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scrapeCmd)

	scrapeCmd.Flags().IntVarP(&datasetID, "dataset", "d", 0, "dataset id to scrape (default: all configured datasets)")
	scrapeCmd.Flags().BoolVar(&visible, "visible", false, "show the browser window")
	scrapeCmd.Flags().IntVar(&maxPages, "max-pages", 0, "cap the number of pages (default: dataset estimate)")
	scrapeCmd.Flags().IntVar(&concurrency, "concurrency", 0, "number of concurrent page fetches (default from config)")
	scrapeCmd.Flags().BoolVar(&retryFailed, "retry-failed", false, "fetch only pages that failed before")
	scrapeCmd.Flags().BoolVar(&clearProgress, "clear-progress", false, "discard stored progress and start over")
	scrapeCmd.Flags().BoolVar(&sequential, "sequential", false, "walk pages one by one through the Next links")
	scrapeCmd.Flags().BoolVar(&debugTimings, "debug", false, "log per-page phase timings")
	scrapeCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	scrapeCmd.Flags().BoolVar(&exportLinks, "export", false, "publish each saved result to Postgres")
	scrapeCmd.Flags().StringVarP(&outputDir, "output", "o", "", "directory for progress and result files")
	scrapeCmd.Flags().StringVar(&storageKind, "storage", "", "progress backend (file, redis)")
}

func runScrape(cmd *cobra.Command, args []string) {
	// Build flags map from command line
	flags := make(map[string]interface{})
	if visible {
		flags["visible"] = true
	}
	if concurrency > 0 {
		flags["concurrency"] = concurrency
	}
	if metricsAddr != "" {
		flags["metrics-addr"] = metricsAddr
	}
	if outputDir != "" {
		flags["output"] = outputDir
	}
	if storageKind != "" {
		flags["storage"] = storageKind
	}
	if debugTimings && !cmd.Flags().Changed("log-level") {
		flags["log-level"] = "debug"
	}

	cfg := loadConfig(flags)
	log := logger.GetLogger()
	log.WithField("version", version).Info("archivescraper starting")

	datasets, err := selectDatasets(cfg, datasetID)
	if err != nil {
		ui.PrintError("Invalid dataset", err.Error())
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.Metrics.ListenAddr != "" {
		go func() {
			if err := m.Serve(ctx, cfg.Metrics.ListenAddr, log); err != nil {
				log.WithError(err).Error("Metrics endpoint failed")
			}
		}()
	}

	store, err := checkpoint.NewStore(cfg.Storage, log)
	if err != nil {
		ui.PrintError("Failed to open progress storage", err.Error())
		os.Exit(1)
	}
	defer store.Close()

	opts := []crawler.Option{
		crawler.WithReporter(ui.NewProgressDisplay(os.Stdout, ui.IsTerminal(os.Stdout), log)),
		crawler.WithMetrics(m),
		crawler.WithLogger(log),
	}

	if exportLinks {
		pub, err := export.Connect(ctx, cfg.Export, log)
		if err != nil {
			ui.PrintError("Failed to connect export database", err.Error())
			os.Exit(1)
		}
		defer pub.Close()
		opts = append(opts, crawler.WithPublisher(pub))
	}

	// The session outlives ctx so in-flight pages can finish after an interrupt.
	session, err := browser.NewChromeSession(context.Background(), cfg.Browser, log)
	if err != nil {
		ui.PrintError("Failed to start browser", err.Error())
		os.Exit(1)
	}
	defer session.Close()

	fetcher := browser.NewFetcher(session,
		browser.NewVerifier(cfg.Browser.VerificationTimeout, log),
		browser.OptionsFromConfig(cfg, debugTimings), log)

	c := crawler.New(fetcher, store, cfg.Scrape, opts...)

	ui.PrintInfo("Datasets", datasetList(datasets))
	ui.PrintInfo("Concurrency", fmt.Sprintf("%d", cfg.Scrape.Concurrency))

	start := time.Now()
	stats, runErr := c.RunDatasets(ctx, datasets, crawler.Options{
		MaxPages:      maxPages,
		RetryFailed:   retryFailed,
		ClearProgress: clearProgress,
		Sequential:    sequential,
	})

	rows := make([]ui.DatasetSummary, 0, len(stats))
	for _, s := range stats {
		row := s.Summary()
		if fs, ok := store.(*checkpoint.FileStore); ok {
			row.ResultPath = fs.ResultPath(s.DatasetID)
		}
		rows = append(rows, row)
	}
	ui.PrintSummary(os.Stdout, rows, time.Since(start))

	if ctx.Err() != nil {
		ui.PrintWarning("Interrupted, progress saved")
	}

	if runErr != nil {
		log.WithError(runErr).Error("Scrape failed")
		ui.PrintError("Scrape failed", runErr.Error())
		session.Close()
		store.Close()
		os.Exit(1)
	}
}

func datasetList(datasets []models.Dataset) string {
	s := ""
	for i, ds := range datasets {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%d", ds.ID)
	}
	return s
}
