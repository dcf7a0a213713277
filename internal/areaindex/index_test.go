package areaindex

import (
	"testing"

	"github.com/telecheck/zonewatch/internal/models"
)

func testAreas() []models.AdministrativeArea {
	return []models.AdministrativeArea{
		{AreaCode: "17200", Name: "Sydney", State: "NSW"},
		{AreaCode: "15990", Name: "North Sydney", State: "NSW"},
		{AreaCode: "31000", Name: "Brisbane", State: "QLD"},
		{AreaCode: "34590", Name: "Logan", State: "QLD"},
	}
}

func testMappings() []models.PostcodeMapping {
	return []models.PostcodeMapping{
		{Postcode: "2000", SuburbName: "Sydney", PrimaryAreaCode: "17200"},
		{Postcode: "4000", SuburbName: "Brisbane", PrimaryAreaCode: "31000"},
	}
}

func TestResolveArea_LongestNameWins(t *testing.T) {
	ix := New(testAreas(), testMappings())

	// "North Sydney" contains "Sydney"; the longer name must win.
	area, ok := ix.ResolveArea("North Sydney Council", "NSW")
	if !ok {
		t.Fatal("expected a match")
	}
	if area.AreaCode != "15990" {
		t.Errorf("expected 15990, got %s", area.AreaCode)
	}

	area, ok = ix.ResolveArea("City of Sydney", "NSW")
	if !ok {
		t.Fatal("expected a match")
	}
	if area.AreaCode != "17200" {
		t.Errorf("expected 17200, got %s", area.AreaCode)
	}
}

func TestResolveArea_CaseInsensitiveAndBidirectional(t *testing.T) {
	ix := New(testAreas(), testMappings())

	// Raw text contains the area name.
	if _, ok := ix.ResolveArea("BRISBANE city council", "QLD"); !ok {
		t.Error("expected raw text containing area name to match")
	}
	// Area name contains the raw text (truncated extraction).
	if _, ok := ix.ResolveArea("logan", "QLD"); !ok {
		t.Error("expected abbreviated raw text to match")
	}
}

func TestResolveArea_ScopedToState(t *testing.T) {
	ix := New(testAreas(), testMappings())

	if _, ok := ix.ResolveArea("Brisbane", "NSW"); ok {
		t.Error("Brisbane must not resolve within NSW")
	}
	if _, ok := ix.ResolveArea("", "QLD"); ok {
		t.Error("empty text must not resolve")
	}
}

func TestPostcodeLookup(t *testing.T) {
	ix := New(testAreas(), testMappings())

	m, ok := ix.Postcode("4000")
	if !ok {
		t.Fatal("expected mapping for 4000")
	}
	if m.PrimaryAreaCode != "31000" {
		t.Errorf("expected 31000, got %s", m.PrimaryAreaCode)
	}

	if _, ok := ix.Postcode("9999"); ok {
		t.Error("expected no mapping for 9999")
	}
}

func TestArea(t *testing.T) {
	ix := New(testAreas(), testMappings())

	a, ok := ix.Area("34590")
	if !ok || a.Name != "Logan" {
		t.Errorf("expected Logan, got %+v (ok=%v)", a, ok)
	}
	if _, ok := ix.Area("00000"); ok {
		t.Error("expected no area for unknown code")
	}
}
