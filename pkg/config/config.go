package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the archive scraper
type Config struct {
	// Browser session settings
	Browser BrowserConfig `yaml:"browser" json:"browser"`

	// Crawl pacing and extraction
	Scrape ScrapeConfig `yaml:"scrape" json:"scrape"`

	// Known datasets
	Datasets []DatasetConfig `yaml:"datasets" json:"datasets"`

	// Progress persistence
	Storage StorageConfig `yaml:"storage" json:"storage"`

	// Optional relational export
	Export ExportConfig `yaml:"export" json:"export"`

	// Optional Prometheus endpoint
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// BrowserConfig describes the single shared browser session
type BrowserConfig struct {
	Headless            bool          `yaml:"headless" json:"headless"`
	UserAgent           string        `yaml:"user_agent" json:"user_agent"`
	ViewportWidth       int           `yaml:"viewport_width" json:"viewport_width"`
	ViewportHeight      int           `yaml:"viewport_height" json:"viewport_height"`
	Locale              string        `yaml:"locale" json:"locale"`
	Timezone            string        `yaml:"timezone" json:"timezone"`
	NavigationTimeout   time.Duration `yaml:"navigation_timeout" json:"navigation_timeout"`
	VerificationTimeout time.Duration `yaml:"verification_timeout" json:"verification_timeout"`
	ClickThroughTimeout time.Duration `yaml:"click_through_timeout" json:"click_through_timeout"`
	ExecPath            string        `yaml:"exec_path" json:"exec_path"`
}

// ScrapeConfig holds scheduler and extraction settings
type ScrapeConfig struct {
	Origin               string        `yaml:"origin" json:"origin"`
	LinkExtensions       []string      `yaml:"link_extensions" json:"link_extensions"`
	Concurrency          int           `yaml:"concurrency" json:"concurrency"`
	StaggerDelay         time.Duration `yaml:"stagger_delay" json:"stagger_delay"`
	MaxConsecutiveErrors int           `yaml:"max_consecutive_errors" json:"max_consecutive_errors"`
	CheckpointInterval   time.Duration `yaml:"checkpoint_interval" json:"checkpoint_interval"`
	WarmupDelay          time.Duration `yaml:"warmup_delay" json:"warmup_delay"`
}

// DatasetConfig is one paginated listing in the archive
type DatasetConfig struct {
	ID             int    `yaml:"id" json:"id"`
	BaseURL        string `yaml:"base_url" json:"base_url"`
	EstimatedPages int    `yaml:"estimated_pages" json:"estimated_pages"`
}

// StorageConfig selects where progress and results are persisted
type StorageConfig struct {
	Backend       string `yaml:"backend" json:"backend"`
	Directory     string `yaml:"directory" json:"directory"`
	RedisAddr     string `yaml:"redis_addr" json:"redis_addr"`
	RedisPassword string `yaml:"redis_password" json:"redis_password"`
	RedisDB       int    `yaml:"redis_db" json:"redis_db"`
	RedisPrefix   string `yaml:"redis_prefix" json:"redis_prefix"`
}

// ExportConfig holds the Postgres sink settings
type ExportConfig struct {
	PostgresURL string `yaml:"postgres_url" json:"postgres_url"`
	BatchSize   int    `yaml:"batch_size" json:"batch_size"`
	Table       string `yaml:"table" json:"table"`
}

// MetricsConfig holds the metrics listener address
type MetricsConfig struct {
	ListenAddr string `yaml:"listen_addr" json:"listen_addr"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultDatasets returns the catalog of known archive datasets
func DefaultDatasets() []DatasetConfig {
	return []DatasetConfig{
		{ID: 9, BaseURL: "https://www.justice.gov/epstein/doj-disclosures/data-set-9-files", EstimatedPages: 10002},
		{ID: 10, BaseURL: "https://www.justice.gov/epstein/doj-disclosures/data-set-10-files", EstimatedPages: 10000},
		{ID: 11, BaseURL: "https://www.justice.gov/epstein/doj-disclosures/data-set-11-files", EstimatedPages: 1000},
	}
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Browser: BrowserConfig{
			Headless:            true,
			UserAgent:           "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			ViewportWidth:       1920,
			ViewportHeight:      1080,
			Locale:              "en-US",
			Timezone:            "America/New_York",
			NavigationTimeout:   15 * time.Second,
			VerificationTimeout: 5 * time.Second,
			ClickThroughTimeout: 10 * time.Second,
		},
		Scrape: ScrapeConfig{
			Origin:               "https://www.justice.gov",
			LinkExtensions:       []string{".mp4"},
			Concurrency:          5,
			StaggerDelay:         100 * time.Millisecond,
			MaxConsecutiveErrors: 15,
			CheckpointInterval:   10 * time.Second,
			WarmupDelay:          time.Second,
		},
		Datasets: DefaultDatasets(),
		Storage: StorageConfig{
			Backend:     "file",
			Directory:   ".",
			RedisAddr:   "localhost:6379",
			RedisPrefix: "archivescraper",
		},
		Export: ExportConfig{
			BatchSize: 100,
			Table:     "media_links",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Dataset looks up a dataset by id
func (c *Config) Dataset(id int) (DatasetConfig, bool) {
	for _, ds := range c.Datasets {
		if ds.ID == id {
			return ds, true
		}
	}
	return DatasetConfig{}, false
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("ARCHIVESCRAPER_USER_AGENT"); v != "" {
		c.Browser.UserAgent = v
	}
	if v := os.Getenv("ARCHIVESCRAPER_HEADLESS"); v != "" {
		c.Browser.Headless = strings.ToLower(v) == "true"
	}
	if v := os.Getenv("ARCHIVESCRAPER_CHROME_PATH"); v != "" {
		c.Browser.ExecPath = v
	}

	if v := os.Getenv("ARCHIVESCRAPER_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid ARCHIVESCRAPER_CONCURRENCY: %w", err)
		}
		if n > 0 {
			c.Scrape.Concurrency = n
		}
	}
	if v := os.Getenv("ARCHIVESCRAPER_ORIGIN"); v != "" {
		c.Scrape.Origin = v
	}

	if v := os.Getenv("ARCHIVESCRAPER_STORAGE"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv("ARCHIVESCRAPER_OUTPUT_DIR"); v != "" {
		c.Storage.Directory = v
	}
	if v := os.Getenv("ARCHIVESCRAPER_REDIS_ADDR"); v != "" {
		c.Storage.RedisAddr = v
	}
	if v := os.Getenv("ARCHIVESCRAPER_REDIS_PASSWORD"); v != "" {
		c.Storage.RedisPassword = v
	}

	if v := os.Getenv("ARCHIVESCRAPER_POSTGRES_URL"); v != "" {
		c.Export.PostgresURL = v
	}
	if v := os.Getenv("ARCHIVESCRAPER_METRICS_ADDR"); v != "" {
		c.Metrics.ListenAddr = v
	}
	if v := os.Getenv("ARCHIVESCRAPER_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".archivescraper.yaml",
		".archivescraper.yml",
		filepath.Join(home, ".config", "archivescraper", "config.yaml"),
		filepath.Join(home, ".config", "archivescraper", "config.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Browser.NavigationTimeout <= 0 {
		errs = append(errs, errors.New("navigation timeout must be positive"))
	}
	if c.Browser.ViewportWidth <= 0 || c.Browser.ViewportHeight <= 0 {
		errs = append(errs, errors.New("viewport dimensions must be positive"))
	}

	if c.Scrape.Concurrency <= 0 {
		errs = append(errs, errors.New("concurrency must be positive"))
	}
	if c.Scrape.MaxConsecutiveErrors <= 0 {
		errs = append(errs, errors.New("max consecutive errors must be positive"))
	}
	if c.Scrape.StaggerDelay < 0 {
		errs = append(errs, errors.New("stagger delay cannot be negative"))
	}
	if c.Scrape.Origin == "" {
		errs = append(errs, errors.New("origin is required"))
	}
	if len(c.Scrape.LinkExtensions) == 0 {
		errs = append(errs, errors.New("at least one link extension is required"))
	}

	if len(c.Datasets) == 0 {
		errs = append(errs, errors.New("at least one dataset is required"))
	}
	seen := make(map[int]bool)
	for _, ds := range c.Datasets {
		if seen[ds.ID] {
			errs = append(errs, fmt.Errorf("duplicate dataset id %d", ds.ID))
		}
		seen[ds.ID] = true
		if ds.BaseURL == "" {
			errs = append(errs, fmt.Errorf("dataset %d: base url is required", ds.ID))
		}
		if ds.EstimatedPages <= 0 {
			errs = append(errs, fmt.Errorf("dataset %d: estimated pages must be positive", ds.ID))
		}
	}

	switch strings.ToLower(c.Storage.Backend) {
	case "file":
		if c.Storage.Directory == "" {
			errs = append(errs, errors.New("storage directory is required for file backend"))
		}
	case "redis":
		if c.Storage.RedisAddr == "" {
			errs = append(errs, errors.New("redis address is required for redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.Storage.Backend))
	}

	if c.Export.BatchSize <= 0 {
		errs = append(errs, errors.New("export batch size must be positive"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["visible"].(bool); ok && v {
		c.Browser.Headless = false
	}
	if v, ok := flags["concurrency"].(int); ok && v > 0 {
		c.Scrape.Concurrency = v
	}
	if v, ok := flags["output"].(string); ok && v != "" {
		c.Storage.Directory = v
	}
	if v, ok := flags["storage"].(string); ok && v != "" {
		c.Storage.Backend = v
	}
	if v, ok := flags["postgres-url"].(string); ok && v != "" {
		c.Export.PostgresURL = v
	}
	if v, ok := flags["metrics-addr"].(string); ok && v != "" {
		c.Metrics.ListenAddr = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".archivescraper.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
