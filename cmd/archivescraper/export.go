package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"archivescraper/pkg/checkpoint"
	"archivescraper/pkg/export"
	"archivescraper/pkg/logger"
	"archivescraper/pkg/ui"
)

var (
	exportDataset int
	postgresURL   string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Publish a stored dataset result to Postgres",
	Long: `Publish the saved result of a dataset to the configured Postgres table.
Links that are already present are skipped.`,
	Example: `  archivescraper export --dataset 9
  archivescraper export --dataset 10 --postgres-url postgres://localhost/archive`,
	Args: cobra.NoArgs,
	Run:  runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().IntVarP(&exportDataset, "dataset", "d", 0, "dataset id to export")
	exportCmd.Flags().StringVar(&postgresURL, "postgres-url", "", "Postgres connection string (overrides config)")
	_ = exportCmd.MarkFlagRequired("dataset")
}

func runExport(cmd *cobra.Command, args []string) {
	flags := make(map[string]interface{})
	if postgresURL != "" {
		flags["postgres-url"] = postgresURL
	}
	cfg := loadConfig(flags)
	log := logger.GetLogger()

	if _, ok := cfg.Dataset(exportDataset); !ok {
		ui.PrintError("Invalid dataset", fmt.Sprintf("unknown dataset %d", exportDataset))
		os.Exit(1)
	}

	ctx := context.Background()

	store, err := checkpoint.NewStore(cfg.Storage, log)
	if err != nil {
		ui.PrintError("Failed to open progress storage", err.Error())
		os.Exit(1)
	}
	defer store.Close()

	result, err := store.LoadResult(ctx, exportDataset)
	if err != nil {
		ui.PrintError("Failed to load result", err.Error())
		os.Exit(1)
	}
	if result == nil {
		ui.PrintError("No result stored", fmt.Sprintf("run 'archivescraper scrape --dataset %d' first", exportDataset))
		os.Exit(1)
	}

	pub, err := export.Connect(ctx, cfg.Export, log)
	if err != nil {
		ui.PrintError("Failed to connect export database", err.Error())
		os.Exit(1)
	}
	defer pub.Close()

	stats, err := pub.Publish(ctx, result)
	if err != nil {
		ui.PrintError("Export failed", err.Error())
		pub.Close()
		os.Exit(1)
	}

	ui.PrintSuccess(fmt.Sprintf("Exported dataset %d: %d links, %d new, %d batches",
		exportDataset, stats.Rows, stats.Inserted, stats.Batches))
}
