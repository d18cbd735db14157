package main

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"archivescraper/pkg/config"
	"archivescraper/pkg/ui"
)

const defaultConfigPath = ".archivescraper.yaml"

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage archivescraper configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (ARCHIVESCRAPER_*)
  - .env files
  - Configuration file
  - Default values (lowest priority)`,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration to a file",
	Long: `Write the default configuration, including the dataset catalog, to
'.archivescraper.yaml' unless a different path is given with --config.`,
	Run: runConfigInit,
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the configuration after all sources are merged.
Passwords in connection settings are masked.`,
	Run: runConfigShow,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Run:   runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) {
	path := configFile
	if path == "" {
		path = defaultConfigPath
	}

	if _, err := os.Stat(path); err == nil {
		ui.PrintError("Configuration file already exists", path)
		fmt.Println("\nTo overwrite, first remove the existing file:")
		fmt.Printf("  rm %s\n", path)
		os.Exit(1)
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		ui.PrintError("Failed to write configuration", err.Error())
		os.Exit(1)
	}

	ui.PrintSuccess(fmt.Sprintf("Configuration written to %s", path))
	fmt.Println("\nNext steps:")
	fmt.Println("1. Adjust concurrency, storage and datasets as needed")
	fmt.Println("2. Run 'archivescraper config validate' to check the configuration")
	fmt.Println("3. Start with 'archivescraper scrape --dataset 9 --max-pages 10'")
}

func runConfigShow(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}

	display := *cfg
	display.Export.PostgresURL = maskURL(display.Export.PostgresURL)
	if display.Storage.RedisPassword != "" {
		display.Storage.RedisPassword = "***"
	}

	data, err := yaml.Marshal(&display)
	if err != nil {
		ui.PrintError("Failed to format configuration", err.Error())
		os.Exit(1)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Println()
	fmt.Print(string(data))
}

func runConfigValidate(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		ui.PrintError("Configuration validation failed", err.Error())
		os.Exit(1)
	}

	var warnings, problems []string

	if cfg.Storage.Backend != "redis" {
		if err := os.MkdirAll(cfg.Storage.Directory, 0755); err != nil {
			problems = append(problems, fmt.Sprintf("Cannot create storage directory: %v", err))
		}
	}
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			problems = append(problems, fmt.Sprintf("Cannot create log directory: %v", err))
		}
	}
	if cfg.Export.PostgresURL == "" {
		warnings = append(warnings, "export.postgres_url not set, --export is unavailable")
	}
	if cfg.Scrape.Concurrency > 20 {
		warnings = append(warnings, "concurrency above 20 is likely to trigger access denials")
	}

	if len(problems) > 0 {
		ui.PrintError("Configuration has errors")
		for _, p := range problems {
			fmt.Printf("  - %s\n", p)
		}
		os.Exit(1)
	}

	if len(warnings) > 0 {
		ui.PrintWarning("Configuration warnings")
		for _, w := range warnings {
			fmt.Printf("  - %s\n", w)
		}
		fmt.Println()
	}

	ui.PrintSuccess("Configuration is valid")
}

// maskURL hides the password of a connection URL
func maskURL(raw string) string {
	if raw == "" {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}
