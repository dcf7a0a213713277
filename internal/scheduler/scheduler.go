// Package scheduler owns the recurring work: periodic validation runs, the
// staleness monitor, and the active-declaration gauge refresh. Tasks are
// isolated from each other; a failing task logs, skips this tick, and waits
// for its next one. Staleness tracking reads the durable run log, never
// process memory, so a restart cannot lose it.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/telecheck/zonewatch/internal/alerting"
	"github.com/telecheck/zonewatch/internal/config"
	"github.com/telecheck/zonewatch/internal/models"
	"github.com/telecheck/zonewatch/internal/observability"
	"github.com/telecheck/zonewatch/internal/repository"
	"github.com/telecheck/zonewatch/internal/validator"
)

type Scheduler struct {
	cfg       config.SchedulerConfig
	validator *validator.Validator
	runs      repository.ValidationRunRepository
	decls     repository.DeclarationRepository
	alerts    *alerting.Dispatcher
	alertLog  repository.AlertRepository
	metrics   *observability.Metrics
	clock     clockwork.Clock

	trigger chan struct{}
	wg      sync.WaitGroup
}

func New(
	cfg config.SchedulerConfig,
	v *validator.Validator,
	runs repository.ValidationRunRepository,
	decls repository.DeclarationRepository,
	alerts *alerting.Dispatcher,
	alertLog repository.AlertRepository,
	metrics *observability.Metrics,
	clock clockwork.Clock,
) *Scheduler {
	return &Scheduler{
		cfg:       cfg,
		validator: v,
		runs:      runs,
		decls:     decls,
		alerts:    alerts,
		alertLog:  alertLog,
		metrics:   metrics,
		clock:     clock,
		trigger:   make(chan struct{}, 1),
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	if s.cfg.InitialValidation {
		// Initial run before the schedule begins, so a restart does not wait
		// a full interval for fresh data. Non-fatal on failure.
		s.invoke(ctx, "validation", s.runValidation)
	}

	s.wg.Add(3)
	go s.runTask(ctx, "validation", s.cfg.ValidationInterval, s.runValidation, s.trigger)
	go s.runTask(ctx, "staleness", s.cfg.StalenessInterval, s.checkStaleness, nil)
	go s.runTask(ctx, "active-monitor", s.cfg.ActiveMonitorInterval, s.refreshActiveGauges, nil)
}

// TriggerValidation requests an out-of-schedule validation run. Non-blocking;
// a request while one is already queued is coalesced.
func (s *Scheduler) TriggerValidation() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

func (s *Scheduler) Stop() {
	s.wg.Wait()
	slog.Info("scheduler stopped")
}

func (s *Scheduler) runTask(ctx context.Context, name string, interval time.Duration, fn func(context.Context) error, trigger <-chan struct{}) {
	defer s.wg.Done()
	slog.Info("starting scheduled task", "task", name, "interval", interval)

	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("scheduled task shutting down", "task", name)
			return
		case <-ticker.Chan():
			s.invoke(ctx, name, fn)
		case _, ok := <-trigger:
			if !ok {
				return
			}
			s.invoke(ctx, name, fn)
		}
	}
}

// invoke runs one tick of a task. Failures and panics are contained here:
// they are logged and the task simply waits for its next tick, no immediate
// retry loop.
func (s *Scheduler) invoke(ctx context.Context, name string, fn func(context.Context) error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("scheduled task panicked", "task", name, "panic", r)
		}
	}()

	if err := fn(ctx); err != nil {
		slog.Error("scheduled task failed", "task", name, "error", err)
	}
}

func (s *Scheduler) runValidation(ctx context.Context) error {
	_, err := s.validator.Run(ctx)
	return err
}

// checkStaleness alerts when no validation run has completed within the
// threshold. The dedup check is durable: no new alert while an
// unacknowledged stale-data alert newer than the last completed run exists.
func (s *Scheduler) checkStaleness(ctx context.Context) error {
	last, err := s.runs.LatestCompleted(ctx)
	if err != nil {
		return fmt.Errorf("error reading last completed run: %w", err)
	}
	if last == nil {
		// Nothing has ever completed; the initial validation covers startup.
		return nil
	}

	age := s.clock.Now().Sub(last.CompletedAt)
	s.metrics.HoursSinceLastRun.Set(age.Hours())
	if age <= s.cfg.StalenessThreshold {
		return nil
	}

	exists, err := s.alertExists(ctx, last.CompletedAt)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	return s.alerts.Dispatch(ctx, models.CriticalAlert{
		Type:     models.AlertStaleData,
		Severity: models.AlertSeverityCritical,
		Message: fmt.Sprintf("No completed validation run in %.1f hours (threshold %.0fh)",
			age.Hours(), s.cfg.StalenessThreshold.Hours()),
		Details: map[string]any{
			"last_run_id":           last.ID,
			"last_run_completed_at": last.CompletedAt,
			"hours_since":           age.Hours(),
		},
		CreatedAt: s.clock.Now(),
	})
}

func (s *Scheduler) alertExists(ctx context.Context, since time.Time) (bool, error) {
	exists, err := s.alertLog.HasUnacknowledgedSince(ctx, models.AlertStaleData, since)
	if err != nil {
		return false, fmt.Errorf("error checking stale alerts: %w", err)
	}
	return exists, nil
}

// refreshActiveGauges keeps the per-pipeline active-declaration gauges
// current between validation runs.
func (s *Scheduler) refreshActiveGauges(ctx context.Context) error {
	for _, id := range []models.PipelineID{models.PipelinePrimary, models.PipelineSecondary} {
		count, err := s.decls.CountActive(ctx, id)
		if err != nil {
			return fmt.Errorf("error counting active declarations for %s: %w", id, err)
		}
		s.metrics.ActiveDeclarations.WithLabelValues(string(id)).Set(float64(count))
	}
	return nil
}
