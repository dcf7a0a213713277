package repository

import (
	"context"
	"time"

	"github.com/telecheck/zonewatch/internal/models"
)

// DeclarationRepository persists normalized declarations in per-pipeline
// partitions. Partitions are written only by their own pipeline's upsert step
// and are never merged, only compared.
type DeclarationRepository interface {
	// Upsert writes a batch in fixed-size chunks. Records matching an
	// existing natural key in the partition overwrite the mutable fields in
	// place; rows are never deleted. Returns the count committed so far,
	// which is exact even when a later chunk fails.
	Upsert(ctx context.Context, pipeline models.PipelineID, decls []models.DisasterDeclaration) (int, error)
	CountActive(ctx context.Context, pipeline models.PipelineID) (int, error)
	ActiveByArea(ctx context.Context, pipeline models.PipelineID, areaCode string) ([]models.DisasterDeclaration, error)
	ActiveKeys(ctx context.Context, pipeline models.PipelineID) ([]string, error)
	ActiveStateBreakdown(ctx context.Context, pipeline models.PipelineID) (map[string]int, error)
}

// ValidationRunRepository stores the differential-validation log. A run is
// created as an incomplete start marker before any extraction begins and
// finalized exactly once; finalized runs are immutable.
type ValidationRunRepository interface {
	CreateRun(ctx context.Context, run *models.ValidationRun) error
	FinalizeRun(ctx context.Context, run *models.ValidationRun) error
	LatestCompleted(ctx context.Context) (*models.ValidationRun, error)
	RecentRuns(ctx context.Context, limit int) ([]models.ValidationRun, error)
}

// AlertRepository is the durable alert log. Alerts mutate only via
// acknowledgment.
type AlertRepository interface {
	AddAlert(ctx context.Context, a *models.CriticalAlert) error
	UnacknowledgedAlerts(ctx context.Context, limit int) ([]models.CriticalAlert, error)
	HasUnacknowledgedSince(ctx context.Context, alertType models.AlertType, since time.Time) (bool, error)
	AcknowledgeAlert(ctx context.Context, id string) error
}

// AuditRepository is the append-only verification trail.
type AuditRepository interface {
	AppendAudit(ctx context.Context, rec *models.VerificationAuditRecord) error
	RecentAudits(ctx context.Context, limit int) ([]models.VerificationAuditRecord, error)
}

// ReferenceRepository reads the static area and postcode tables.
type ReferenceRepository interface {
	ListAreas(ctx context.Context) ([]models.AdministrativeArea, error)
	ListPostcodeMappings(ctx context.Context) ([]models.PostcodeMapping, error)
}
