package models

import "time"

// Data-consistency status attached to every verification result, derived from
// the latest completed validation run.
const (
	DataStatusVerified = "verified" // latest run completed and both pipelines agreed
	DataStatusDegraded = "degraded" // latest run completed with a mismatch
	DataStatusUnknown  = "unknown"  // no completed run yet
)

// DeclarationSummary is the caller-facing view of an active declaration
// returned by a zone verification.
type DeclarationSummary struct {
	Type          DisasterType `json:"type"`
	SeverityLevel int          `json:"severity_level"`
	Authority     string       `json:"authority"`
	Description   string       `json:"description"`
	DeclaredOn    string       `json:"declared_on"`
}

// VerificationResult answers "is this postcode inside an active disaster
// zone". "Area not found" is a defined negative outcome, not an error.
type VerificationResult struct {
	VerificationID string               `json:"verification_id"`
	Postcode       string               `json:"postcode"`
	AreaCode       string               `json:"area_code,omitempty"`
	InZone         bool                 `json:"in_zone"`
	Reason         string               `json:"reason,omitempty"`
	DataStatus     string               `json:"data_status"`
	Disasters      []DeclarationSummary `json:"disasters"`
	Timestamp      time.Time            `json:"timestamp"`
	Error          string               `json:"error,omitempty"` // per-item failure in batch verification
}

// VerificationAuditRecord is the append-only compliance trail: one row per
// lookup with a well-formed postcode, regardless of outcome.
type VerificationAuditRecord struct {
	Postcode      string
	AreaCode      string
	InZone        bool
	DisasterCount int
	CreatedAt     time.Time
}
