// Package logger provides the structured logging interface used across the scraper.
//
// It wraps zerolog with a small API that supports leveled output, structured fields,
// a colored console writer on stderr and an optional log file.
//
// Basic Usage:
//
//	err := logger.Initialize(&config.LoggingConfig{Level: "info"})
//
//	logger.Info("Scraper started")
//	logger.WithField("dataset", 9).Info("Warming up session")
//	logger.WithError(err).Error("Failed to save progress")
//
// Components take a Logger in their constructors and fall back to GetLogger()
// when given nil. Tests use NewNopLogger() or NewTestLogger() to capture output.
package logger
