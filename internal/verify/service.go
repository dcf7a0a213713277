// Package verify answers whether a postal area currently sits inside an
// active disaster zone. Every lookup with a well-formed postcode leaves an
// audit record, whatever the outcome.
package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/telecheck/zonewatch/internal/areaindex"
	"github.com/telecheck/zonewatch/internal/models"
	"github.com/telecheck/zonewatch/internal/observability"
	"github.com/telecheck/zonewatch/internal/repository"
	"github.com/telecheck/zonewatch/internal/worker"
)

// BatchLimit caps the number of postcodes in one batch verification.
const BatchLimit = 100

var (
	// ErrInvalidPostcode rejects malformed input before any store read or
	// audit write happens.
	ErrInvalidPostcode = errors.New("postcode must be exactly 4 digits")
	ErrBatchTooLarge   = fmt.Errorf("batch exceeds %d postcodes", BatchLimit)
)

var postcodePattern = regexp.MustCompile(`^\d{4}$`)

type Service struct {
	decls         repository.DeclarationRepository
	runs          repository.ValidationRunRepository
	audit         repository.AuditRepository
	index         *areaindex.Index
	pool          *worker.Pool
	metrics       *observability.Metrics
	authoritative models.PipelineID
	clock         clockwork.Clock
}

func NewService(
	decls repository.DeclarationRepository,
	runs repository.ValidationRunRepository,
	audit repository.AuditRepository,
	index *areaindex.Index,
	pool *worker.Pool,
	metrics *observability.Metrics,
	authoritative models.PipelineID,
	clock clockwork.Clock,
) *Service {
	return &Service{
		decls:         decls,
		runs:          runs,
		audit:         audit,
		index:         index,
		pool:          pool,
		metrics:       metrics,
		authoritative: authoritative,
		clock:         clock,
	}
}

// Verify resolves postcode -> area -> active declarations. A postcode with no
// mapping is a defined negative outcome, not an error, and is still audited.
func (s *Service) Verify(ctx context.Context, postcode string) (models.VerificationResult, error) {
	if !postcodePattern.MatchString(postcode) {
		s.metrics.VerifyRequests.WithLabelValues("invalid").Inc()
		return models.VerificationResult{}, ErrInvalidPostcode
	}

	result := models.VerificationResult{
		VerificationID: uuid.NewString(),
		Postcode:       postcode,
		DataStatus:     s.dataStatus(ctx),
		Disasters:      []models.DeclarationSummary{},
		Timestamp:      s.clock.Now(),
	}

	mapping, ok := s.index.Postcode(postcode)
	if !ok {
		result.Reason = "area not found"
		s.metrics.VerifyRequests.WithLabelValues("not_in_zone").Inc()
		s.writeAudit(ctx, &result)
		return result, nil
	}
	result.AreaCode = mapping.PrimaryAreaCode

	decls, err := s.decls.ActiveByArea(ctx, s.authoritative, mapping.PrimaryAreaCode)
	if err != nil {
		s.metrics.VerifyRequests.WithLabelValues("error").Inc()
		return models.VerificationResult{}, fmt.Errorf("error querying declarations: %w", err)
	}

	for _, d := range decls {
		result.Disasters = append(result.Disasters, models.DeclarationSummary{
			Type:          d.Type,
			SeverityLevel: d.SeverityLevel,
			Authority:     d.Authority,
			Description:   d.Description,
			DeclaredOn:    d.DeclarationDate.Format("2006-01-02"),
		})
	}
	result.InZone = len(decls) > 0
	if !result.InZone {
		result.Reason = "no active declarations for area"
	}

	if result.InZone {
		s.metrics.VerifyRequests.WithLabelValues("in_zone").Inc()
	} else {
		s.metrics.VerifyRequests.WithLabelValues("not_in_zone").Inc()
	}

	s.writeAudit(ctx, &result)
	return result, nil
}

// VerifyBatch verifies up to BatchLimit postcodes independently over the
// worker pool. One bad postcode never aborts the rest: its result carries the
// error in place.
func (s *Service) VerifyBatch(ctx context.Context, postcodes []string) ([]models.VerificationResult, error) {
	if len(postcodes) == 0 {
		return nil, errors.New("no postcodes supplied")
	}
	if len(postcodes) > BatchLimit {
		return nil, ErrBatchTooLarge
	}

	results := make([]models.VerificationResult, len(postcodes))
	var wg sync.WaitGroup
	for i, pc := range postcodes {
		i, pc := i, pc
		wg.Add(1)
		s.pool.Submit(func(taskCtx context.Context) {
			defer wg.Done()
			res, err := s.Verify(ctx, pc)
			if err != nil {
				results[i] = models.VerificationResult{
					Postcode:  pc,
					Error:     err.Error(),
					Timestamp: s.clock.Now(),
				}
				return
			}
			results[i] = res
		})
	}
	wg.Wait()

	return results, nil
}

// dataStatus reflects the latest completed validation run: callers see
// whether the answer comes from pipelines that currently agree. On
// disagreement the authoritative partition still serves, downgraded to
// "degraded" so billing callers can apply their own policy.
func (s *Service) dataStatus(ctx context.Context) string {
	run, err := s.runs.LatestCompleted(ctx)
	if err != nil {
		slog.Error("failed to read latest validation run", "error", err)
		return models.DataStatusUnknown
	}
	if run == nil {
		return models.DataStatusUnknown
	}
	if run.IsValid {
		return models.DataStatusVerified
	}
	return models.DataStatusDegraded
}

func (s *Service) writeAudit(ctx context.Context, result *models.VerificationResult) {
	rec := &models.VerificationAuditRecord{
		Postcode:      result.Postcode,
		AreaCode:      result.AreaCode,
		InZone:        result.InZone,
		DisasterCount: len(result.Disasters),
		CreatedAt:     s.clock.Now(),
	}
	if err := s.audit.AppendAudit(ctx, rec); err != nil {
		// The lookup result stands; a failed audit write is loud in the logs
		// because the trail is a compliance requirement.
		slog.Error("failed to write verification audit record",
			"postcode", result.Postcode, "error", err)
	}
}
