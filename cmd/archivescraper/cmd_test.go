package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"archivescraper/pkg/config"
	"archivescraper/pkg/models"
)

func TestSelectDatasets(t *testing.T) {
	cfg := config.DefaultConfig()

	all, err := selectDatasets(cfg, 0)
	require.NoError(t, err)
	assert.Len(t, all, len(cfg.Datasets))

	one, err := selectDatasets(cfg, 10)
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, 10, one[0].ID)
	assert.Equal(t, 10000, one[0].EstimatedPages)

	_, err = selectDatasets(cfg, 42)
	assert.Error(t, err)
}

func TestWriteStatus(t *testing.T) {
	ds := models.Dataset{ID: 9, BaseURL: "https://example.test/ds9", EstimatedPages: 10}

	t.Run("no progress", func(t *testing.T) {
		var buf bytes.Buffer
		writeStatus(&buf, ds, nil)
		assert.Contains(t, buf.String(), "no progress stored")
	})

	t.Run("missing and failed ranges", func(t *testing.T) {
		p := models.NewDatasetProgress(9, 10)
		for _, page := range []int{0, 1, 2, 5, 6, 9} {
			p.CompletedPages.Add(page)
		}
		p.FailedPages.Add(3)
		p.FailedPages.Add(4)
		p.FailedPages.Add(8)

		var buf bytes.Buffer
		writeStatus(&buf, ds, p)
		out := buf.String()

		assert.Contains(t, out, "Dataset 9: 6/10 pages (60.0%)")
		assert.Contains(t, out, "Missing: 3-4, 7-8")
		assert.Contains(t, out, "Failed (3): 3-4, 8")
	})

	t.Run("nothing completed", func(t *testing.T) {
		p := models.NewDatasetProgress(9, 10)
		for page := 0; page < 10; page++ {
			p.FailedPages.Add(page)
		}

		var buf bytes.Buffer
		writeStatus(&buf, ds, p)
		assert.Contains(t, buf.String(), "Missing: 0-9")
		assert.Contains(t, buf.String(), "Failed (10): 0-9")
	})

	t.Run("complete", func(t *testing.T) {
		p := models.NewDatasetProgress(9, 2)
		p.CompletedPages.Add(0)
		p.CompletedPages.Add(1)

		var buf bytes.Buffer
		writeStatus(&buf, ds, p)
		assert.False(t, strings.Contains(buf.String(), "Missing"))
		assert.Contains(t, buf.String(), "2/2 pages (100.0%)")
	})
}

func TestMaskURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"postgres://localhost/archive", "postgres://localhost/archive"},
		{"postgres://scraper:secret@db:5432/archive", "postgres://scraper:***@db:5432/archive"},
	}
	for _, tt := range tests {
		if got := maskURL(tt.in); got != tt.want {
			t.Errorf("maskURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
