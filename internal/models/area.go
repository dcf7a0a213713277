package models

// AdministrativeArea is a local-government-equivalent region, the unit a
// disaster declaration is officially scoped to. Static reference data,
// read-only to the rest of the system.
type AdministrativeArea struct {
	AreaCode       string
	Name           string
	State          string
	ParentRegionID string
}

// PostcodeMapping resolves a 4-digit postcode to its single dominant
// administrative area for verification purposes.
type PostcodeMapping struct {
	Postcode        string
	SuburbName      string
	PrimaryAreaCode string
}
