package models

import "time"

// ValidationRun records one differential validation of the two extraction
// pipelines. A row with a zero CompletedAt is a start marker: the run began
// but never finished, which makes a crash mid-run visible.
type ValidationRun struct {
	ID               string
	StartedAt        time.Time
	CompletedAt      time.Time // zero while the run is in flight
	IsValid          bool
	Confidence       int // 0-100
	PrimaryCount     int // active declarations seen by the primary pipeline
	SecondaryCount   int
	Mismatches       []string // natural keys active in one pipeline but not the other
	Errors           []string // pipeline-level failures recorded during the run
	PrimaryElapsed   time.Duration
	SecondaryElapsed time.Duration
}

// Completed reports whether the run was finalized.
func (r *ValidationRun) Completed() bool {
	return !r.CompletedAt.IsZero()
}
