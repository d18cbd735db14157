package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Scrape.Concurrency != 5 {
		t.Errorf("Expected default concurrency to be 5, got %d", config.Scrape.Concurrency)
	}
	if config.Scrape.MaxConsecutiveErrors != 15 {
		t.Errorf("Expected default breaker threshold to be 15, got %d", config.Scrape.MaxConsecutiveErrors)
	}
	if config.Browser.NavigationTimeout != 15*time.Second {
		t.Errorf("Expected navigation timeout 15s, got %v", config.Browser.NavigationTimeout)
	}

	assert.Equal(t, 100*time.Millisecond, config.Scrape.StaggerDelay)
	assert.Equal(t, 10*time.Second, config.Scrape.CheckpointInterval)
	assert.Equal(t, []string{".mp4"}, config.Scrape.LinkExtensions)
	assert.Equal(t, "https://www.justice.gov", config.Scrape.Origin)
	assert.Equal(t, 1920, config.Browser.ViewportWidth)
	assert.Equal(t, "America/New_York", config.Browser.Timezone)
	assert.NoError(t, config.Validate())
}

func TestDatasetLookup(t *testing.T) {
	config := DefaultConfig()

	tests := []struct {
		id    int
		pages int
		found bool
	}{
		{9, 10002, true},
		{10, 10000, true},
		{11, 1000, true},
		{12, 0, false},
	}

	for _, tt := range tests {
		ds, ok := config.Dataset(tt.id)
		assert.Equal(t, tt.found, ok, "dataset %d", tt.id)
		assert.Equal(t, tt.pages, ds.EstimatedPages, "dataset %d", tt.id)
	}

	ds, _ := config.Dataset(11)
	assert.Equal(t, "https://www.justice.gov/epstein/doj-disclosures/data-set-11-files", ds.BaseURL)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("ARCHIVESCRAPER_CONCURRENCY", "8")
	t.Setenv("ARCHIVESCRAPER_OUTPUT_DIR", "/tmp/archive-progress")
	t.Setenv("ARCHIVESCRAPER_STORAGE", "redis")
	t.Setenv("ARCHIVESCRAPER_REDIS_ADDR", "cache:6379")
	t.Setenv("ARCHIVESCRAPER_POSTGRES_URL", "postgres://localhost/archive")
	t.Setenv("ARCHIVESCRAPER_HEADLESS", "false")
	t.Setenv("ARCHIVESCRAPER_LOG_LEVEL", "debug")

	config := DefaultConfig()
	require.NoError(t, config.LoadFromEnv())

	assert.Equal(t, 8, config.Scrape.Concurrency)
	assert.Equal(t, "/tmp/archive-progress", config.Storage.Directory)
	assert.Equal(t, "redis", config.Storage.Backend)
	assert.Equal(t, "cache:6379", config.Storage.RedisAddr)
	assert.Equal(t, "postgres://localhost/archive", config.Export.PostgresURL)
	assert.False(t, config.Browser.Headless)
	assert.Equal(t, "debug", config.Logging.Level)
}

func TestLoadFromEnvInvalidNumber(t *testing.T) {
	t.Setenv("ARCHIVESCRAPER_CONCURRENCY", "many")

	config := DefaultConfig()
	assert.Error(t, config.LoadFromEnv())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
scrape:
  concurrency: 3
  stagger_delay: 250ms
  checkpoint_interval: 30s
  link_extensions: [".mp4", ".mov"]
datasets:
  - id: 42
    base_url: https://archive.example/listing
    estimated_pages: 12
storage:
  backend: file
  directory: /var/lib/archivescraper
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	config := DefaultConfig()
	require.NoError(t, config.LoadFromFile(path))

	assert.Equal(t, 3, config.Scrape.Concurrency)
	assert.Equal(t, 250*time.Millisecond, config.Scrape.StaggerDelay)
	assert.Equal(t, 30*time.Second, config.Scrape.CheckpointInterval)
	assert.Equal(t, []string{".mp4", ".mov"}, config.Scrape.LinkExtensions)
	require.Len(t, config.Datasets, 1)
	assert.Equal(t, 42, config.Datasets[0].ID)
	assert.Equal(t, "/var/lib/archivescraper", config.Storage.Directory)

	// untouched sections keep their defaults
	assert.Equal(t, 15, config.Scrape.MaxConsecutiveErrors)
}

func TestLoadFromFileMissing(t *testing.T) {
	config := DefaultConfig()
	err := config.LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"zero concurrency", func(c *Config) { c.Scrape.Concurrency = 0 }, true},
		{"zero breaker", func(c *Config) { c.Scrape.MaxConsecutiveErrors = 0 }, true},
		{"no extensions", func(c *Config) { c.Scrape.LinkExtensions = nil }, true},
		{"no datasets", func(c *Config) { c.Datasets = nil }, true},
		{"duplicate dataset", func(c *Config) { c.Datasets = append(c.Datasets, c.Datasets[0]) }, true},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "s3" }, true},
		{"redis without addr", func(c *Config) {
			c.Storage.Backend = "redis"
			c.Storage.RedisAddr = ""
		}, true},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, true},
		{"redis backend", func(c *Config) { c.Storage.Backend = "redis" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			err := config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	config := DefaultConfig()
	config.Scrape.Concurrency = 7
	require.NoError(t, config.Save(path))

	reloaded := DefaultConfig()
	require.NoError(t, reloaded.LoadFromFile(path))
	assert.Equal(t, 7, reloaded.Scrape.Concurrency)
	assert.Equal(t, config.Datasets, reloaded.Datasets)
}

func TestMergeCommandLineFlags(t *testing.T) {
	config := DefaultConfig()
	config.MergeCommandLineFlags(map[string]interface{}{
		"visible":      true,
		"concurrency":  2,
		"output":       "./out",
		"metrics-addr": ":9102",
		"log-level":    "warn",
		"postgres-url": "",
	})

	assert.False(t, config.Browser.Headless)
	assert.Equal(t, 2, config.Scrape.Concurrency)
	assert.Equal(t, "./out", config.Storage.Directory)
	assert.Equal(t, ":9102", config.Metrics.ListenAddr)
	assert.Equal(t, "warn", config.Logging.Level)
	assert.Empty(t, config.Export.PostgresURL)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scrape:\n  concurrency: 4\n"), 0644))

	t.Setenv("ARCHIVESCRAPER_CONCURRENCY", "6")

	config, err := Load(path, map[string]interface{}{"concurrency": 9})
	require.NoError(t, err)
	assert.Equal(t, 9, config.Scrape.Concurrency, "flags override env and file")

	config, err = Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 6, config.Scrape.Concurrency, "env overrides file")
}
