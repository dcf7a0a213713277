package normalize

import (
	"strings"

	"github.com/telecheck/zonewatch/internal/models"
)

// endDateSentinels is the closed set of raw end-date encodings that mean "no
// end date recorded", i.e. the declaration is still in force. The source site
// has used all of these at various times. Anything outside this set that does
// not parse as a date is a normalization error, never a guess: a wrong
// default in either direction has asymmetric compliance cost.
var endDateSentinels = map[string]struct{}{
	"":    {},
	"-":   {},
	"–":   {}, // en-dash variant seen after a site markup change
	"--":  {},
	"- -": {},
	"n/a": {},
	"tba": {},
}

// typeRules maps category keywords to canonical disaster types. Rules are
// evaluated in order and the first match wins, so "flood and storm damage"
// classifies as flood regardless of map iteration order.
var typeRules = []struct {
	keywords []string
	result   models.DisasterType
}{
	{[]string{"flood"}, models.DisasterTypeFlood},
	{[]string{"fire", "bushfire", "wildfire"}, models.DisasterTypeBushfire},
	{[]string{"cyclone"}, models.DisasterTypeCyclone},
	{[]string{"storm", "thunderstorm", "hail"}, models.DisasterTypeStorm},
}

// TypeFromCategory classifies free-text category text using case-insensitive
// substring containment, falling back to the "other" bucket.
func TypeFromCategory(category string) models.DisasterType {
	text := strings.ToLower(strings.TrimSpace(category))
	for _, rule := range typeRules {
		for _, kw := range rule.keywords {
			if strings.Contains(text, kw) {
				return rule.result
			}
		}
	}
	return models.DisasterTypeOther
}

// stateCodes canonicalizes the state spellings the extraction pipelines emit.
var stateCodes = map[string]string{
	"new south wales":              "NSW",
	"nsw":                          "NSW",
	"victoria":                     "VIC",
	"vic":                          "VIC",
	"queensland":                   "QLD",
	"qld":                          "QLD",
	"south australia":              "SA",
	"sa":                           "SA",
	"western australia":            "WA",
	"wa":                           "WA",
	"tasmania":                     "TAS",
	"tas":                          "TAS",
	"northern territory":           "NT",
	"nt":                           "NT",
	"australian capital territory": "ACT",
	"act":                          "ACT",
}

func stateCode(raw string) (string, bool) {
	code, ok := stateCodes[strings.ToLower(strings.TrimSpace(raw))]
	return code, ok
}
