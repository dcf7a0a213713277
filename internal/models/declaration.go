package models

import (
	"fmt"
	"time"
)

type DisasterType string

const (
	DisasterTypeBushfire DisasterType = "bushfire"
	DisasterTypeFlood    DisasterType = "flood"
	DisasterTypeCyclone  DisasterType = "cyclone"
	DisasterTypeStorm    DisasterType = "storm"
	DisasterTypeOther    DisasterType = "other"
)

// PipelineID identifies one of the two independent extraction pipelines.
// Records from each pipeline live in separate store partitions and are never
// merged, only compared.
type PipelineID string

const (
	PipelinePrimary   PipelineID = "primary"
	PipelineSecondary PipelineID = "secondary"
)

// DisasterDeclaration is the canonical form of an official declaration that a
// disaster affects an administrative area. A declaration is identified by
// (AreaCode, Type, DeclarationDate); re-extraction of the same declaration
// updates the existing row in place.
type DisasterDeclaration struct {
	AreaCode        string
	State           string
	Type            DisasterType
	DeclarationDate time.Time
	RawEndDate      string // original end-date string, retained for audit
	EndDate         *time.Time
	IsActive        bool
	SeverityLevel   int // ordinal 1-5
	Authority       string
	Description     string
	SourceSystem    string
	SourceURL       string
	ReviewReason    string // set when the record needs human review, e.g. a future end date
	FirstSeenAt     time.Time
	LastSyncedAt    time.Time
}

// NaturalKey returns the identity of the declaration across repeated
// extractions, independent of which pipeline observed it.
func (d *DisasterDeclaration) NaturalKey() string {
	return fmt.Sprintf("%s|%s|%s", d.AreaCode, d.Type, d.DeclarationDate.Format("2006-01-02"))
}
