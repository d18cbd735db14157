package logger

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// LogPageOutcome logs the result of a single listing page fetch
func LogPageOutcome(l Logger, datasetID, page int, success bool, links int, reason string, duration time.Duration) {
	l = orGlobal(l).WithFields(map[string]interface{}{
		"dataset":  datasetID,
		"page":     page,
		"duration": duration,
	})

	if success {
		l.DebugWithFields("Page fetched", map[string]interface{}{"links": links})
		return
	}
	l.WarnWithFields("Page failed", map[string]interface{}{"reason": reason})
}

// LogFetchTimings logs per-phase durations of a page fetch in debug mode
func LogFetchTimings(l Logger, page int, timings map[string]time.Duration) {
	fields := map[string]interface{}{"page": page}
	var total time.Duration
	for phase, d := range timings {
		fields[phase+"_ms"] = d.Milliseconds()
		total += d
	}
	fields["total_ms"] = total.Milliseconds()
	orGlobal(l).DebugWithFields("Fetch timings", fields)
}

// LogDatasetProgress logs how far a dataset run has got
func LogDatasetProgress(l Logger, datasetID, done, total int) {
	percentage := 0.0
	if total > 0 {
		percentage = float64(done) / float64(total) * 100
	}

	orGlobal(l).WithFields(map[string]interface{}{
		"dataset":    datasetID,
		"done":       done,
		"total":      total,
		"percentage": fmt.Sprintf("%.1f%%", percentage),
	}).Info("Dataset progress")
}

// LogComponentStart logs when a component starts
func LogComponentStart(l Logger, component string, config map[string]interface{}) {
	l = orGlobal(l).WithField("component", component)
	if len(config) > 0 {
		l = l.WithFields(config)
	}
	l.Info("Component started")
}

// LogComponentStop logs when a component stops
func LogComponentStop(l Logger, component string, reason string) {
	orGlobal(l).WithFields(map[string]interface{}{
		"component": component,
		"reason":    reason,
	}).Info("Component stopped")
}

// orGlobal falls back to the global logger when l is nil
func orGlobal(l Logger) Logger {
	if l == nil {
		return GetLogger()
	}
	return l
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) FatalWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger                               { return nil }
