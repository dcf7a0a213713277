package repository

import "fmt"

// Reference data for the administrative-area and postcode tables, loaded on
// first startup when the tables are empty. Area codes follow the ABS LGA
// numbering. Each postcode maps to its single dominant area; the mapping is
// deliberately one-to-one for verification purposes.
var seedAreas = []struct {
	code, name, state string
}{
	{"17200", "Sydney", "NSW"},
	{"15990", "North Sydney", "NSW"},
	{"15900", "Newcastle", "NSW"},
	{"18450", "Wollongong", "NSW"},
	{"16550", "Penrith", "NSW"},
	{"10750", "Blacktown", "NSW"},
	{"24600", "Melbourne", "VIC"},
	{"22170", "Greater Geelong", "VIC"},
	{"20570", "Ballarat", "VIC"},
	{"22620", "Greater Bendigo", "VIC"},
	{"31000", "Brisbane", "QLD"},
	{"33430", "Gold Coast", "QLD"},
	{"34590", "Logan", "QLD"},
	{"35010", "Ipswich", "QLD"},
	{"35760", "Moreton Bay", "QLD"},
	{"36580", "Toowoomba", "QLD"},
	{"40070", "Adelaide", "SA"},
	{"57080", "Perth", "WA"},
	{"62810", "Hobart", "TAS"},
	{"71000", "Darwin", "NT"},
	{"89000", "Australian Capital Territory", "ACT"},
}

var seedPostcodes = []struct {
	postcode, suburb, areaCode string
}{
	{"2000", "Sydney", "17200"},
	{"2060", "North Sydney", "15990"},
	{"2300", "Newcastle", "15900"},
	{"2500", "Wollongong", "18450"},
	{"2750", "Penrith", "16550"},
	{"2770", "Mount Druitt", "10750"},
	{"3000", "Melbourne", "24600"},
	{"3220", "Geelong", "22170"},
	{"3350", "Ballarat", "20570"},
	{"3550", "Bendigo", "22620"},
	{"4000", "Brisbane", "31000"},
	{"4114", "Logan Central", "34590"},
	{"4217", "Surfers Paradise", "33430"},
	{"4305", "Ipswich", "35010"},
	{"4350", "Toowoomba", "36580"},
	{"4500", "Strathpine", "35760"},
	{"5000", "Adelaide", "40070"},
	{"6000", "Perth", "57080"},
	{"7000", "Hobart", "62810"},
	{"0800", "Darwin", "71000"},
	{"2600", "Canberra", "89000"},
}

func (s *SQLiteDB) seedReferenceData() error {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM administrative_areas`).Scan(&count); err != nil {
		return fmt.Errorf("error counting areas: %w", err)
	}
	if count > 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("error beginning seed transaction: %w", err)
	}
	defer tx.Rollback()

	for _, a := range seedAreas {
		if _, err := tx.Exec(
			`INSERT INTO administrative_areas (area_code, name, state_code, parent_region_id) VALUES (?, ?, ?, ?)`,
			a.code, a.name, a.state, a.state,
		); err != nil {
			return fmt.Errorf("error seeding area %s: %w", a.code, err)
		}
	}

	for _, p := range seedPostcodes {
		if _, err := tx.Exec(
			`INSERT INTO postcode_mappings (postcode, suburb_name, area_code) VALUES (?, ?, ?)`,
			p.postcode, p.suburb, p.areaCode,
		); err != nil {
			return fmt.Errorf("error seeding postcode %s: %w", p.postcode, err)
		}
	}

	return tx.Commit()
}
