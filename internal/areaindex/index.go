// Package areaindex holds the static administrative-area reference data and
// resolves free-text council names and postcodes to area codes.
package areaindex

import (
	"sort"
	"strings"

	"github.com/telecheck/zonewatch/internal/models"
)

// Index is an in-memory view of the administrative-area and postcode tables.
// Loaded once at startup and read-only afterwards, so lookups need no locking.
type Index struct {
	byCode    map[string]models.AdministrativeArea
	byState   map[string][]scopedArea
	postcodes map[string]models.PostcodeMapping
}

type scopedArea struct {
	area      models.AdministrativeArea
	lowerName string
}

func New(areas []models.AdministrativeArea, mappings []models.PostcodeMapping) *Index {
	ix := &Index{
		byCode:    make(map[string]models.AdministrativeArea, len(areas)),
		byState:   make(map[string][]scopedArea),
		postcodes: make(map[string]models.PostcodeMapping, len(mappings)),
	}

	for _, a := range areas {
		ix.byCode[a.AreaCode] = a
		ix.byState[a.State] = append(ix.byState[a.State], scopedArea{
			area:      a,
			lowerName: strings.ToLower(a.Name),
		})
	}

	// Longest names first so "North Sydney" wins over "Sydney" when both are
	// contained in the raw text. Ties break alphabetically to keep resolution
	// deterministic across loads.
	for state := range ix.byState {
		scoped := ix.byState[state]
		sort.Slice(scoped, func(i, j int) bool {
			if len(scoped[i].lowerName) != len(scoped[j].lowerName) {
				return len(scoped[i].lowerName) > len(scoped[j].lowerName)
			}
			return scoped[i].lowerName < scoped[j].lowerName
		})
	}

	for _, m := range mappings {
		ix.postcodes[m.Postcode] = m
	}

	return ix
}

// Area returns the administrative area for a code.
func (ix *Index) Area(code string) (models.AdministrativeArea, bool) {
	a, ok := ix.byCode[code]
	return a, ok
}

// ResolveArea matches a free-text location or council name against the areas
// of one state using case-insensitive substring containment. No match means
// the record cannot be attributed to an area; the caller drops it.
func (ix *Index) ResolveArea(freeText, state string) (models.AdministrativeArea, bool) {
	text := strings.ToLower(strings.TrimSpace(freeText))
	if text == "" {
		return models.AdministrativeArea{}, false
	}

	for _, sa := range ix.byState[state] {
		if strings.Contains(text, sa.lowerName) || strings.Contains(sa.lowerName, text) {
			return sa.area, true
		}
	}
	return models.AdministrativeArea{}, false
}

// Postcode returns the mapping for a 4-digit postcode.
func (ix *Index) Postcode(postcode string) (models.PostcodeMapping, bool) {
	m, ok := ix.postcodes[postcode]
	return m, ok
}
