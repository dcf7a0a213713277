// Package pipeline defines the boundary to the two independent extraction
// pipelines. Each adapter wraps an opaque external collaborator and returns
// either a complete batch of raw records or an error; partial batches are not
// a supported outcome.
package pipeline

import (
	"context"
	"time"
)

// RawRecord is one declaration as extracted, before normalization. Fields are
// carried as the source encoded them; the normalizer owns interpretation.
type RawRecord struct {
	SourceID    string `json:"source_id"` // extraction reference, e.g. an AGRN
	Name        string `json:"name"`
	Category    string `json:"category"` // free-text disaster category
	State       string `json:"state"`
	AreaName    string `json:"area_name"` // free-text council / LGA name
	DeclaredOn  string `json:"declared_on"`
	RawEndDate  string `json:"end_date"`
	Severity    int    `json:"severity"`
	Authority   string `json:"authority"`
	Description string `json:"description"`
	URL         string `json:"url"`
}

// Adapter is one extraction pipeline. Run is idempotent to re-run; an error
// means the whole batch failed and the run's other pipeline proceeds alone.
type Adapter interface {
	// Run extracts a complete batch and reports how long extraction took.
	Run(ctx context.Context) ([]RawRecord, time.Duration, error)
	// Source names the system the adapter extracts from, recorded on every
	// normalized declaration for audit.
	Source() string
}
