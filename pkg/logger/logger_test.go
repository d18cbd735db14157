package logger

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"archivescraper/pkg/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(buf *bytes.Buffer) *zerologLogger {
	zlog := zerolog.New(buf).With().Timestamp().Logger().Level(zerolog.DebugLevel)
	return &zerologLogger{
		logger: &zlog,
		fields: make(map[string]interface{}),
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{"info level", &config.LoggingConfig{Level: "info"}, false},
		{"debug level", &config.LoggingConfig{Level: "debug"}, false},
		{"invalid level", &config.LoggingConfig{Level: "invalid"}, true},
		{"file output", &config.LoggingConfig{Level: "info", File: filepath.Join(t.TempDir(), "logs", "run.log")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && logger == nil {
				t.Error("New() returned nil logger")
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"INFO", zerolog.InfoLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			level, err := parseLogLevel(tt.level)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseLogLevel() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if level != tt.expected {
				t.Errorf("parseLogLevel() = %v, want %v", level, tt.expected)
			}
		})
	}
}

func TestLoggerMethods(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	for name, fn := range map[string]func(string){
		"debug": logger.Debug,
		"info":  logger.Info,
		"warn":  logger.Warn,
		"error": logger.Error,
	} {
		buf.Reset()
		fn(name + " message")
		if !strings.Contains(buf.String(), name+" message") {
			t.Errorf("%s message not found in output", name)
		}
	}
}

func TestFieldChaining(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	logger.
		WithField("dataset", 9).
		WithFields(map[string]interface{}{"page": 42, "mode": "retry"}).
		InfoWithFields("page folded", map[string]interface{}{"links": 3})

	output := buf.String()
	assert.Contains(t, output, "page folded")
	assert.Contains(t, output, `"dataset":9`)
	assert.Contains(t, output, `"page":42`)
	assert.Contains(t, output, `"mode":"retry"`)
	assert.Contains(t, output, `"links":3`)
}

func TestWithFieldDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	_ = logger.WithField("child", true)
	logger.Info("parent")

	assert.NotContains(t, buf.String(), "child")
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	if logger.WithError(nil) != logger {
		t.Error("WithError(nil) should return the same logger")
	}

	logger.WithError(errors.New("disk full")).Error("checkpoint failed")
	assert.Contains(t, buf.String(), "disk full")
}

func TestFieldTypes(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	logger.WithFields(map[string]interface{}{
		"int64":    int64(456),
		"float":    3.14,
		"time":     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		"duration": 5 * time.Second,
		"strings":  []string{"a", "b"},
		"ints":     []int{1, 2},
		"cause":    errors.New("boom"),
		"custom":   struct{ Name string }{Name: "x"},
	}).Info("all types")

	output := buf.String()
	assert.Contains(t, output, "all types")
	assert.Contains(t, output, `"ints":[1,2]`)
	assert.Contains(t, output, `"cause":"boom"`)
}

func TestGlobalLogger(t *testing.T) {
	if err := Initialize(&config.LoggingConfig{Level: "debug"}); err != nil {
		t.Fatalf("Failed to initialize logger: %v", err)
	}
	if GetLogger() == nil {
		t.Fatal("GetLogger() returned nil")
	}

	// ensure helpers don't panic
	LogPageOutcome(nil, 9, 3, true, 4, "", time.Second)
	LogPageOutcome(nil, 9, 4, false, 0, "access_denied", time.Second)
	LogFetchTimings(nil, 3, map[string]time.Duration{"goto": time.Second})
	LogDatasetProgress(nil, 9, 5, 10)
	LogComponentStart(nil, "scheduler", map[string]interface{}{"concurrency": 5})
	LogComponentStop(nil, "scheduler", "drained")
}

func TestTestLoggerCapture(t *testing.T) {
	tl := NewTestLogger()

	tl.WithField("dataset", 9).Warn("warmup failed")
	tl.WithError(errors.New("x")).Error("save failed")
	tl.InfoWithFields("done", map[string]interface{}{"pages": 3})

	assert.True(t, tl.HasMessage("warmup failed"))
	assert.True(t, tl.HasError())
	assert.Len(t, tl.GetMessagesByLevel("WARN"), 1)
	assert.Equal(t, 9, tl.GetMessagesByLevel("WARN")[0].Fields["dataset"])
	assert.EqualError(t, tl.GetMessagesByLevel("ERROR")[0].Error, "x")
	assert.Contains(t, tl.String(), "[INFO] done")

	tl.Clear()
	assert.Empty(t, tl.GetMessages())
}

func TestHelpersUseGivenLogger(t *testing.T) {
	tl := NewTestLogger()

	LogComponentStart(tl, "scheduler", map[string]interface{}{"concurrency": 5})
	LogDatasetProgress(tl, 9, 5, 10)
	LogPageOutcome(tl, 9, 4, false, 0, "access_denied", time.Second)
	LogComponentStop(tl, "scheduler", "drained")

	msgs := tl.GetMessages()
	require.Len(t, msgs, 4)
	assert.Equal(t, "Component started", msgs[0].Message)
	assert.Equal(t, 5, msgs[0].Fields["concurrency"])
	assert.Equal(t, "Dataset progress", msgs[1].Message)
	assert.Equal(t, "50.0%", msgs[1].Fields["percentage"])
	assert.Equal(t, "WARN", msgs[2].Level)
	assert.Equal(t, "access_denied", msgs[2].Fields["reason"])
	assert.Equal(t, "drained", msgs[3].Fields["reason"])
}
