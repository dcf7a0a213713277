package models

import "time"

type AlertType string

const (
	AlertValidationMismatch AlertType = "VALIDATION_MISMATCH"
	AlertPipelineFailure    AlertType = "PIPELINE_FAILURE"
	AlertStaleData          AlertType = "STALE_DATA"
)

type AlertSeverity string

const (
	AlertSeverityWarning  AlertSeverity = "WARNING"
	AlertSeverityCritical AlertSeverity = "CRITICAL"
)

// CriticalAlert is an escalation record written by the validator or the
// staleness monitor. Alerts are informational: the system never reconciles
// disagreeing pipelines on its own, a human decides. Only an operator
// acknowledgment mutates an alert after creation.
type CriticalAlert struct {
	ID           string
	Type         AlertType
	Message      string
	Severity     AlertSeverity
	Details      map[string]any
	CreatedAt    time.Time
	Acknowledged bool
}
