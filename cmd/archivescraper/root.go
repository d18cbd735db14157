package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"archivescraper/pkg/config"
	"archivescraper/pkg/logger"
	"archivescraper/pkg/models"
	"archivescraper/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "archivescraper",
	Short: "Collect video links from a paginated public document archive",
	Long: `archivescraper walks the paginated listings of a public document archive
with a real browser session and records every linked .mp4 file.

Features:
  - Bounded concurrent page fetches with a staggered ramp-up
  - Automatic handling of robot and age verification pages
  - Circuit breaker on consecutive failures
  - Periodic checkpoints so interrupted runs resume where they stopped
  - File or Redis progress storage, optional Postgres export`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cmd.Name() == "scrape" {
			ui.PrintBanner()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is .archivescraper.yaml or ~/.config/archivescraper/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.SetVersionTemplate(`archivescraper {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadConfig loads configuration with the given flag overrides and starts the logger
func loadConfig(flags map[string]interface{}) *config.Config {
	if flags == nil {
		flags = make(map[string]interface{})
	}
	if logLevel != "info" {
		flags["log-level"] = logLevel
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		ui.PrintError("Failed to initialize logger", err.Error())
		os.Exit(1)
	}
	return cfg
}

// selectDatasets resolves --dataset; zero selects every configured dataset
func selectDatasets(cfg *config.Config, id int) ([]models.Dataset, error) {
	var selected []config.DatasetConfig
	if id == 0 {
		selected = cfg.Datasets
	} else {
		ds, ok := cfg.Dataset(id)
		if !ok {
			return nil, fmt.Errorf("unknown dataset %d", id)
		}
		selected = []config.DatasetConfig{ds}
	}

	out := make([]models.Dataset, 0, len(selected))
	for _, ds := range selected {
		out = append(out, models.Dataset{ID: ds.ID, BaseURL: ds.BaseURL, EstimatedPages: ds.EstimatedPages})
	}
	return out, nil
}
