// Package normalize converts raw extraction records into canonical disaster
// declarations. Normalization is pure: all I/O belongs to the caller, and one
// bad record surfaces as an Error without aborting the batch it came from.
package normalize

import (
	"fmt"
	"strings"
	"time"

	"github.com/telecheck/zonewatch/internal/areaindex"
	"github.com/telecheck/zonewatch/internal/models"
	"github.com/telecheck/zonewatch/internal/pipeline"
)

// Error reports a raw field that could not be normalized. The record is
// dropped and counted; it is never written with guessed values.
type Error struct {
	Field  string
	Value  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("normalize %s: %s (value %q)", e.Field, e.Reason, e.Value)
}

// dateLayouts covers the formats both extraction pipelines have produced.
var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"2 Jan 2006",
	"2 January 2006",
}

type Normalizer struct {
	index *areaindex.Index
}

func New(index *areaindex.Index) *Normalizer {
	return &Normalizer{index: index}
}

// Normalize converts one raw record into a canonical declaration attributed
// to sourceSystem.
func (n *Normalizer) Normalize(raw pipeline.RawRecord, sourceSystem string) (models.DisasterDeclaration, error) {
	state, ok := stateCode(raw.State)
	if !ok {
		return models.DisasterDeclaration{}, &Error{Field: "state", Value: raw.State, Reason: "unknown state"}
	}

	declDate, ok := parseDate(raw.DeclaredOn)
	if !ok {
		return models.DisasterDeclaration{}, &Error{Field: "declaration_date", Value: raw.DeclaredOn, Reason: "unparseable date"}
	}

	area, ok := n.index.ResolveArea(raw.AreaName, state)
	if !ok {
		return models.DisasterDeclaration{}, &Error{Field: "area", Value: raw.AreaName, Reason: "no administrative area match in " + state}
	}

	endDate, active, review, err := deriveEndState(raw.RawEndDate)
	if err != nil {
		return models.DisasterDeclaration{}, err
	}

	now := clock.Now()
	return models.DisasterDeclaration{
		AreaCode:        area.AreaCode,
		State:           state,
		Type:            TypeFromCategory(raw.Category),
		DeclarationDate: declDate,
		RawEndDate:      raw.RawEndDate,
		EndDate:         endDate,
		IsActive:        active,
		SeverityLevel:   clampSeverity(raw.Severity),
		Authority:       raw.Authority,
		Description:     raw.Description,
		SourceSystem:    sourceSystem,
		SourceURL:       raw.URL,
		ReviewReason:    review,
		FirstSeenAt:     now,
		LastSyncedAt:    now,
	}, nil
}

// deriveEndState decides active vs expired from the raw end-date field.
// A sentinel means no end date is recorded, so the declaration is active.
// A parseable past date means expired. A parseable future date is a
// scheduling anomaly: kept active but flagged for review rather than
// silently accepted.
func deriveEndState(rawEnd string) (*time.Time, bool, string, error) {
	trimmed := strings.TrimSpace(rawEnd)
	if _, ok := endDateSentinels[strings.ToLower(trimmed)]; ok {
		return nil, true, "", nil
	}

	end, ok := parseDate(trimmed)
	if !ok {
		return nil, false, "", &Error{Field: "end_date", Value: rawEnd, Reason: "unrecognized end-date encoding"}
	}

	if end.After(clock.Now()) {
		return &end, true, "end date is in the future", nil
	}
	return &end, false, "", nil
}

func parseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// clampSeverity bounds the ordinal to 1-5. Sources that never report
// severity get the middle of the scale.
func clampSeverity(s int) int {
	switch {
	case s < 1:
		return 3
	case s > 5:
		return 5
	default:
		return s
	}
}
