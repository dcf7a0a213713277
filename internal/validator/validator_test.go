package validator

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telecheck/zonewatch/internal/alerting"
	"github.com/telecheck/zonewatch/internal/areaindex"
	"github.com/telecheck/zonewatch/internal/models"
	"github.com/telecheck/zonewatch/internal/normalize"
	"github.com/telecheck/zonewatch/internal/observability"
	"github.com/telecheck/zonewatch/internal/pipeline"
)

type mockAdapter struct {
	source  string
	records []pipeline.RawRecord
	err     error
}

func (m *mockAdapter) Run(ctx context.Context) ([]pipeline.RawRecord, time.Duration, error) {
	return m.records, 10 * time.Millisecond, m.err
}

func (m *mockAdapter) Source() string { return m.source }

type mockDeclRepo struct {
	upserts map[models.PipelineID][]models.DisasterDeclaration
	err     error
}

func newMockDeclRepo() *mockDeclRepo {
	return &mockDeclRepo{upserts: make(map[models.PipelineID][]models.DisasterDeclaration)}
}

func (m *mockDeclRepo) Upsert(ctx context.Context, p models.PipelineID, decls []models.DisasterDeclaration) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.upserts[p] = append(m.upserts[p], decls...)
	return len(decls), nil
}

func (m *mockDeclRepo) CountActive(ctx context.Context, p models.PipelineID) (int, error) {
	count := 0
	for _, d := range m.upserts[p] {
		if d.IsActive {
			count++
		}
	}
	return count, nil
}

func (m *mockDeclRepo) ActiveByArea(ctx context.Context, p models.PipelineID, areaCode string) ([]models.DisasterDeclaration, error) {
	return nil, nil
}

func (m *mockDeclRepo) ActiveKeys(ctx context.Context, p models.PipelineID) ([]string, error) {
	return nil, nil
}

func (m *mockDeclRepo) ActiveStateBreakdown(ctx context.Context, p models.PipelineID) (map[string]int, error) {
	return nil, nil
}

type mockRunRepo struct {
	created   []models.ValidationRun
	finalized []models.ValidationRun
}

func (m *mockRunRepo) CreateRun(ctx context.Context, run *models.ValidationRun) error {
	m.created = append(m.created, *run)
	return nil
}

func (m *mockRunRepo) FinalizeRun(ctx context.Context, run *models.ValidationRun) error {
	m.finalized = append(m.finalized, *run)
	return nil
}

func (m *mockRunRepo) LatestCompleted(ctx context.Context) (*models.ValidationRun, error) {
	if len(m.finalized) == 0 {
		return nil, nil
	}
	return &m.finalized[len(m.finalized)-1], nil
}

func (m *mockRunRepo) RecentRuns(ctx context.Context, limit int) ([]models.ValidationRun, error) {
	return m.finalized, nil
}

type mockAlertRepo struct {
	alerts []models.CriticalAlert
}

func (m *mockAlertRepo) AddAlert(ctx context.Context, a *models.CriticalAlert) error {
	m.alerts = append(m.alerts, *a)
	return nil
}

func (m *mockAlertRepo) UnacknowledgedAlerts(ctx context.Context, limit int) ([]models.CriticalAlert, error) {
	return m.alerts, nil
}

func (m *mockAlertRepo) HasUnacknowledgedSince(ctx context.Context, t models.AlertType, since time.Time) (bool, error) {
	return false, nil
}

func (m *mockAlertRepo) AcknowledgeAlert(ctx context.Context, id string) error { return nil }

func rawFlood(areaName string, day int) pipeline.RawRecord {
	return pipeline.RawRecord{
		SourceID:   fmt.Sprintf("AGRN-%d", day),
		Category:   "Flood",
		State:      "QLD",
		AreaName:   areaName,
		DeclaredOn: fmt.Sprintf("2026-02-%02d", day),
		RawEndDate: "-",
		Severity:   3,
	}
}

type fixture struct {
	validator *Validator
	decls     *mockDeclRepo
	runs      *mockRunRepo
	alertRepo *mockAlertRepo
}

func setup(t *testing.T, primary, secondary *mockAdapter) *fixture {
	t.Helper()

	index := areaindex.New([]models.AdministrativeArea{
		{AreaCode: "31000", Name: "Brisbane", State: "QLD"},
		{AreaCode: "34590", Name: "Logan", State: "QLD"},
		{AreaCode: "33430", Name: "Gold Coast", State: "QLD"},
	}, nil)

	decls := newMockDeclRepo()
	runs := &mockRunRepo{}
	alertRepo := &mockAlertRepo{}
	dispatcher := alerting.NewDispatcher(alertRepo)
	t.Cleanup(dispatcher.Close)

	v := New(primary, secondary, normalize.New(index), decls, runs, dispatcher,
		observability.NewMetricsForTesting(), time.Minute,
		clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)))

	return &fixture{validator: v, decls: decls, runs: runs, alertRepo: alertRepo}
}

func TestRun_AgreementIsValid(t *testing.T) {
	records := []pipeline.RawRecord{rawFlood("Brisbane", 10), rawFlood("Logan", 11)}
	f := setup(t,
		&mockAdapter{source: "feed-a", records: records},
		&mockAdapter{source: "feed-b", records: records},
	)

	run, err := f.validator.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, run.IsValid)
	assert.Equal(t, 100, run.Confidence)
	assert.Equal(t, 2, run.PrimaryCount)
	assert.Equal(t, 2, run.SecondaryCount)
	assert.Empty(t, run.Mismatches)
	assert.Empty(t, run.Errors)
	assert.True(t, run.Completed())
	assert.Empty(t, f.alertRepo.alerts, "agreement must not raise alerts")

	// Both partitions were written.
	assert.Len(t, f.decls.upserts[models.PipelinePrimary], 2)
	assert.Len(t, f.decls.upserts[models.PipelineSecondary], 2)

	// Start marker preceded the finalize of the same run.
	require.Len(t, f.runs.created, 1)
	require.Len(t, f.runs.finalized, 1)
	assert.Equal(t, f.runs.created[0].ID, f.runs.finalized[0].ID)
	assert.False(t, f.runs.created[0].Completed())
}

func TestRun_CountMismatchRaisesAlert(t *testing.T) {
	f := setup(t,
		&mockAdapter{source: "feed-a", records: []pipeline.RawRecord{
			rawFlood("Brisbane", 10), rawFlood("Logan", 11), rawFlood("Gold Coast", 12), rawFlood("Brisbane", 13),
		}},
		&mockAdapter{source: "feed-b", records: []pipeline.RawRecord{
			rawFlood("Brisbane", 10), rawFlood("Logan", 11), rawFlood("Gold Coast", 12),
		}},
	)

	run, err := f.validator.Run(context.Background())
	require.NoError(t, err)

	assert.False(t, run.IsValid)
	assert.Equal(t, 4, run.PrimaryCount)
	assert.Equal(t, 3, run.SecondaryCount)
	assert.Equal(t, 75, run.Confidence) // round(100 * 3/4)
	require.Len(t, run.Mismatches, 1)
	assert.Equal(t, "31000|flood|2026-02-13", run.Mismatches[0])

	require.Len(t, f.alertRepo.alerts, 1)
	alert := f.alertRepo.alerts[0]
	assert.Equal(t, models.AlertValidationMismatch, alert.Type)
	assert.Equal(t, models.AlertSeverityCritical, alert.Severity)
	assert.Equal(t, run.ID, alert.Details["run_id"])
}

func TestRun_PipelineFailure(t *testing.T) {
	f := setup(t,
		&mockAdapter{source: "feed-a", records: []pipeline.RawRecord{rawFlood("Brisbane", 10)}},
		&mockAdapter{source: "feed-b", err: errors.New("scraper timeout")},
	)

	run, err := f.validator.Run(context.Background())
	require.NoError(t, err, "a pipeline failure is recorded in the run, not returned")

	assert.False(t, run.IsValid)
	require.Len(t, run.Errors, 1)
	assert.Contains(t, run.Errors[0], "secondary pipeline failed")

	// The healthy pipeline's partition is still written.
	assert.Len(t, f.decls.upserts[models.PipelinePrimary], 1)
	assert.Empty(t, f.decls.upserts[models.PipelineSecondary])

	// No key comparison against a failed pipeline.
	assert.Empty(t, run.Mismatches)

	require.Len(t, f.alertRepo.alerts, 1)
	assert.Equal(t, models.AlertPipelineFailure, f.alertRepo.alerts[0].Type)
}

func TestRun_BothEmptyAgreeIsValid(t *testing.T) {
	f := setup(t,
		&mockAdapter{source: "feed-a"},
		&mockAdapter{source: "feed-b"},
	)

	run, err := f.validator.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, run.IsValid, "agreement that nothing is active is still agreement")
	assert.Equal(t, 100, run.Confidence)
	assert.Empty(t, f.alertRepo.alerts)
}

func TestRun_UnnormalizableRecordsDroppedNotFatal(t *testing.T) {
	bad := rawFlood("Brisbane", 10)
	bad.RawEndDate = "see website"

	f := setup(t,
		&mockAdapter{source: "feed-a", records: []pipeline.RawRecord{rawFlood("Logan", 11), bad}},
		&mockAdapter{source: "feed-b", records: []pipeline.RawRecord{rawFlood("Logan", 11)}},
	)

	run, err := f.validator.Run(context.Background())
	require.NoError(t, err)

	// The dropped record leaves both actives equal, so the run is valid but
	// the drop is still recorded.
	assert.True(t, run.IsValid)
	assert.Equal(t, 1, run.PrimaryCount)
	require.Len(t, run.Errors, 1)
	assert.Contains(t, run.Errors[0], "dropped 1 unnormalizable")
	assert.Len(t, f.decls.upserts[models.PipelinePrimary], 1)
}

func TestRun_StoreFailureRecorded(t *testing.T) {
	f := setup(t,
		&mockAdapter{source: "feed-a", records: []pipeline.RawRecord{rawFlood("Brisbane", 10)}},
		&mockAdapter{source: "feed-b", records: []pipeline.RawRecord{rawFlood("Brisbane", 10)}},
	)
	f.decls.err = errors.New("database is locked")

	run, err := f.validator.Run(context.Background())
	require.NoError(t, err)

	assert.False(t, run.IsValid)
	require.Len(t, run.Errors, 2)
	require.Len(t, f.alertRepo.alerts, 1)
	assert.Equal(t, models.AlertPipelineFailure, f.alertRepo.alerts[0].Type)
}

func TestConfidence(t *testing.T) {
	cases := []struct {
		valid bool
		a, b  int
		want  int
	}{
		{true, 37, 37, 100},
		{true, 0, 0, 100},
		{false, 40, 35, 88}, // round(100 * 35/40)
		{false, 3, 4, 75},
		{false, 0, 12, 0},
		{false, 12, 0, 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, confidence(tc.valid, tc.a, tc.b),
			"confidence(%v, %d, %d)", tc.valid, tc.a, tc.b)
	}
}

func TestDiffKeys(t *testing.T) {
	a := map[string]struct{}{"k1": {}, "k2": {}, "k3": {}}
	b := map[string]struct{}{"k2": {}, "k4": {}}

	diff := diffKeys(a, b)
	assert.Equal(t, []string{"k1", "k3", "k4"}, diff)
	assert.Empty(t, diffKeys(a, a))
}
