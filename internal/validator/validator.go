// Package validator runs the two extraction pipelines against the same
// source and compares their normalized output. With no independent ground
// truth available, agreement between two independently implemented pipelines
// is the correctness oracle: a disagreement means extraction drift and must
// reach a human before it can reach a billing decision.
package validator

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/telecheck/zonewatch/internal/alerting"
	"github.com/telecheck/zonewatch/internal/models"
	"github.com/telecheck/zonewatch/internal/normalize"
	"github.com/telecheck/zonewatch/internal/observability"
	"github.com/telecheck/zonewatch/internal/pipeline"
	"github.com/telecheck/zonewatch/internal/repository"
)

type Validator struct {
	adapters   map[models.PipelineID]pipeline.Adapter
	normalizer *normalize.Normalizer
	decls      repository.DeclarationRepository
	runs       repository.ValidationRunRepository
	alerts     *alerting.Dispatcher
	metrics    *observability.Metrics
	timeout    time.Duration
	clock      clockwork.Clock

	mu sync.Mutex // one validation run at a time
}

func New(
	primary, secondary pipeline.Adapter,
	normalizer *normalize.Normalizer,
	decls repository.DeclarationRepository,
	runs repository.ValidationRunRepository,
	alerts *alerting.Dispatcher,
	metrics *observability.Metrics,
	timeout time.Duration,
	clock clockwork.Clock,
) *Validator {
	return &Validator{
		adapters: map[models.PipelineID]pipeline.Adapter{
			models.PipelinePrimary:   primary,
			models.PipelineSecondary: secondary,
		},
		normalizer: normalizer,
		decls:      decls,
		runs:       runs,
		alerts:     alerts,
		metrics:    metrics,
		timeout:    timeout,
		clock:      clock,
	}
}

// pipelineResult carries one pipeline's outcome to the comparison step.
type pipelineResult struct {
	id          models.PipelineID
	accepted    []models.DisasterDeclaration
	activeKeys  map[string]struct{}
	activeCount int
	dropped     int
	elapsed     time.Duration
	err         error
}

// Run executes one full differential validation. The returned run is
// finalized and immutable. Run itself fails only when the run log cannot be
// written; pipeline and store failures are recorded inside the run instead,
// because the scheduler must keep running regardless.
func (v *Validator) Run(ctx context.Context) (*models.ValidationRun, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	run := &models.ValidationRun{
		ID:        uuid.NewString(),
		StartedAt: v.clock.Now(),
	}
	// Durable start marker before any work: a crash mid-run is visible as an
	// incomplete row.
	if err := v.runs.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("error recording run start: %w", err)
	}

	slog.Info("validation run started", "run_id", run.ID)

	// Both pipelines run concurrently with independent timeouts; a failure on
	// one never blocks the other. They join here before comparison.
	results := make([]*pipelineResult, 2)
	var wg sync.WaitGroup
	for i, id := range []models.PipelineID{models.PipelinePrimary, models.PipelineSecondary} {
		wg.Add(1)
		go func(i int, id models.PipelineID) {
			defer wg.Done()
			results[i] = v.runPipeline(ctx, id)
		}(i, id)
	}
	wg.Wait()

	primary, secondary := results[0], results[1]
	run.PrimaryElapsed = primary.elapsed
	run.SecondaryElapsed = secondary.elapsed

	pipelinesOK := true
	for _, r := range []*pipelineResult{primary, secondary} {
		if r.err != nil {
			pipelinesOK = false
			run.Errors = append(run.Errors, fmt.Sprintf("%s pipeline failed: %v", r.id, r.err))
			v.metrics.PipelineFailures.WithLabelValues(string(r.id)).Inc()
			continue
		}

		count, err := v.decls.Upsert(ctx, r.id, r.accepted)
		if err != nil {
			pipelinesOK = false
			run.Errors = append(run.Errors, fmt.Sprintf("%s store write failed after %d records: %v", r.id, count, err))
			continue
		}
		if r.dropped > 0 {
			run.Errors = append(run.Errors, fmt.Sprintf("%s dropped %d unnormalizable records", r.id, r.dropped))
		}

		v.metrics.ActiveDeclarations.WithLabelValues(string(r.id)).Set(float64(r.activeCount))
		slog.Info("pipeline batch persisted",
			"run_id", run.ID,
			"pipeline", r.id,
			"persisted", count,
			"active", r.activeCount,
			"dropped", r.dropped,
			"elapsed", r.elapsed,
		)
	}

	run.PrimaryCount = primary.activeCount
	run.SecondaryCount = secondary.activeCount
	if primary.err == nil && secondary.err == nil {
		run.Mismatches = diffKeys(primary.activeKeys, secondary.activeKeys)
	}

	run.IsValid = pipelinesOK && run.PrimaryCount == run.SecondaryCount && len(run.Mismatches) == 0
	run.Confidence = confidence(run.IsValid, run.PrimaryCount, run.SecondaryCount)
	run.CompletedAt = v.clock.Now()

	if err := v.runs.FinalizeRun(ctx, run); err != nil {
		return nil, fmt.Errorf("error finalizing run: %w", err)
	}

	switch {
	case run.IsValid:
		v.metrics.ValidationRuns.WithLabelValues("valid").Inc()
		slog.Info("validation run passed",
			"run_id", run.ID,
			"active_declarations", run.PrimaryCount,
		)
	case !pipelinesOK:
		v.metrics.ValidationRuns.WithLabelValues("error").Inc()
		v.raiseAlert(ctx, run, models.AlertPipelineFailure)
	default:
		v.metrics.ValidationRuns.WithLabelValues("mismatch").Inc()
		v.raiseAlert(ctx, run, models.AlertValidationMismatch)
	}

	return run, nil
}

func (v *Validator) runPipeline(ctx context.Context, id models.PipelineID) *pipelineResult {
	adapter := v.adapters[id]
	res := &pipelineResult{id: id, activeKeys: make(map[string]struct{})}

	pctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	raws, elapsed, err := adapter.Run(pctx)
	res.elapsed = elapsed
	v.metrics.PipelineDuration.WithLabelValues(string(id)).Observe(elapsed.Seconds())
	if err != nil {
		res.err = err
		return res
	}

	for _, raw := range raws {
		decl, err := v.normalizer.Normalize(raw, adapter.Source())
		if err != nil {
			// One bad record never aborts the batch; it is dropped and
			// counted so drift in drop rates stays observable.
			res.dropped++
			v.metrics.NormalizationErrors.WithLabelValues(string(id)).Inc()
			slog.Warn("record dropped during normalization",
				"pipeline", id, "source_id", raw.SourceID, "error", err)
			continue
		}
		if decl.ReviewReason != "" {
			slog.Warn("declaration flagged for review",
				"pipeline", id, "key", decl.NaturalKey(), "reason", decl.ReviewReason)
		}
		res.accepted = append(res.accepted, decl)
		if decl.IsActive {
			res.activeCount++
			res.activeKeys[decl.NaturalKey()] = struct{}{}
		}
	}

	return res
}

func (v *Validator) raiseAlert(ctx context.Context, run *models.ValidationRun, alertType models.AlertType) {
	alert := models.CriticalAlert{
		Type:     alertType,
		Severity: models.AlertSeverityCritical,
		Message: fmt.Sprintf("Pipeline validation failed: primary=%d, secondary=%d",
			run.PrimaryCount, run.SecondaryCount),
		Details: map[string]any{
			"run_id":          run.ID,
			"primary_count":   run.PrimaryCount,
			"secondary_count": run.SecondaryCount,
			"confidence":      run.Confidence,
			"mismatches":      len(run.Mismatches),
			"errors":          run.Errors,
		},
		CreatedAt: v.clock.Now(),
	}
	if err := v.alerts.Dispatch(ctx, alert); err != nil {
		slog.Error("failed to dispatch validation alert", "run_id", run.ID, "error", err)
	}
}

// diffKeys returns the natural keys active in exactly one pipeline, sorted.
func diffKeys(a, b map[string]struct{}) []string {
	var diff []string
	for k := range a {
		if _, ok := b[k]; !ok {
			diff = append(diff, k)
		}
	}
	for k := range b {
		if _, ok := a[k]; !ok {
			diff = append(diff, k)
		}
	}
	sort.Strings(diff)
	return diff
}

// confidence scores how closely the pipelines agree. 100 means agreement,
// including agreement that nothing is active. A mismatch scales by the ratio
// of the smaller to the larger count; two pipelines that disagree about
// emptiness score 0.
func confidence(valid bool, a, b int) int {
	if valid {
		return 100
	}
	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}
	if hi == 0 {
		return 0
	}
	return int(math.Round(100 * float64(lo) / float64(hi)))
}
