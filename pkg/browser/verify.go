package browser

import (
	"context"
	"time"

	"archivescraper/pkg/logger"
)

// Verifier dismisses the archive's robot check and age gate when they appear
type Verifier struct {
	timeout time.Duration
	logger  logger.Logger
}

// NewVerifier creates a verifier that waits up to timeout after the robot click
func NewVerifier(timeout time.Duration, log logger.Logger) *Verifier {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Verifier{timeout: timeout, logger: log}
}

// Handle runs both checks. Failures are swallowed; a page that still shows a
// challenge is caught later by the access check or an empty extraction.
func (v *Verifier) Handle(ctx context.Context, tab Tab) {
	v.RobotCheck(ctx, tab)
	v.AgeGate(ctx, tab)
}

// RobotCheck clicks the robot button and waits for the follow-up navigation
func (v *Verifier) RobotCheck(ctx context.Context, tab Tab) bool {
	n, err := tab.Count(ctx, RobotButtonSelector)
	if err != nil || n == 0 {
		return false
	}

	v.logger.Debug("Robot check present, clicking")
	if err := tab.ClickAndWait(ctx, RobotButtonSelector, v.timeout); err != nil {
		v.logger.WithError(err).Debug("Robot check navigation not observed")
	}
	return true
}

// AgeGate clicks the age confirmation without waiting; the page updates in place
func (v *Verifier) AgeGate(ctx context.Context, tab Tab) bool {
	n, err := tab.Count(ctx, AgeButtonSelector)
	if err != nil || n == 0 {
		return false
	}

	v.logger.Debug("Age verification present, clicking")
	if err := tab.Click(ctx, AgeButtonSelector); err != nil {
		v.logger.WithError(err).Debug("Age verification click failed")
	}
	return true
}
