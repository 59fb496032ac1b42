package leasingsync

import (
	"reflect"
	"testing"
	"time"
)

func TestParseLeasingRow(t *testing.T) {
	index := FieldIndex{
		"property":  "Property",
		"unit":      "Unit",
		"floorplan": "Floorplan",
		"leaseDate": "Lease Date",
		"leaseType": "Lease Type",
		"rent":      "Rent",
		"budget":    "Budget",
	}
	row := RawRow{
		"Property":   "Aster Flats",
		"Unit":       "101",
		"Floorplan":  "A1",
		"Lease Date": "2026-03-14",
		"Lease Type": "New",
		"Rent":       "$1,450.00",
		"Budget":     "not-a-number",
	}

	got := parseLeasingRow(row, index)
	if got.Property != "Aster Flats" || got.Unit != "101" || got.Floorplan != "A1" {
		t.Fatalf("string fields mismatched: %+v", got)
	}
	if got.LeaseDate == nil || !got.LeaseDate.Equal(time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("lease date mismatched: %v", got.LeaseDate)
	}
	if !got.Rent.Valid || got.Rent.Decimal.String() != "1450" {
		t.Fatalf("rent mismatched: %+v", got.Rent)
	}
	// a broken cell nulls the field, never the row
	if got.Budget.Valid {
		t.Fatalf("unparseable budget must be NULL, got %+v", got.Budget)
	}
}

func TestParseMMRRow_PartialIndex(t *testing.T) {
	// only property and month resolved; every other field must come back NULL
	index := FieldIndex{"property": "Property", "month": "Month"}
	row := RawRow{"Property": "Aster Flats", "Month": "Mar 2026", "Occupied": "140"}

	got := parseMMRRow(row, index)
	if got.Property != "Aster Flats" || got.Month != "2026-03" {
		t.Fatalf("resolved fields mismatched: %+v", got)
	}
	if got.MMROcc != nil || got.MMRUnits != nil || got.Leased != nil || got.Available != nil {
		t.Fatalf("unresolved counts must be nil: %+v", got)
	}
	if got.Budget.Valid {
		t.Fatalf("unresolved budget must be NULL: %+v", got.Budget)
	}
}

func TestParseAll_KeepsRowCount(t *testing.T) {
	index := FieldIndex{"property": "Property", "unit": "Unit"}
	rows := []RawRow{
		{"Property": "A", "Unit": "101"},
		{"Property": "A"}, // ragged
		{},                // fully empty still yields a row
	}
	got := parseAll(rows, index, parseUnitRow)
	if len(got) != len(rows) {
		t.Fatalf("expected %d rows, got %d", len(rows), len(got))
	}
	if got[1].Unit != "" {
		t.Fatalf("missing cell must coerce to empty, got %q", got[1].Unit)
	}
}

func TestParseUnitRow_SqftAndRent(t *testing.T) {
	index := FieldIndex{
		"property":  "Property",
		"unit":      "Unit",
		"floorplan": "Floorplan",
		"status":    "Status",
		"sqft":      "Sqft",
		"rent":      "Rent",
	}
	row := RawRow{
		"Property":  "Aster Flats",
		"Unit":      "101",
		"Floorplan": "A1",
		"Status":    "Occupied",
		"Sqft":      "650",
		"Rent":      "$1,450.00",
	}
	got := parseUnitRow(row, index)
	if got.Sqft == nil || *got.Sqft != 650 {
		t.Fatalf("sqft mismatched: %+v", got.Sqft)
	}
	if !got.Rent.Valid || got.Rent.Decimal.String() != "1450" {
		t.Fatalf("rent mismatched: %+v", got.Rent)
	}
}

func TestParseRecentRentRow_Floorplan(t *testing.T) {
	index := FieldIndex{
		"property":   "Property",
		"unit":       "Unit",
		"floorplan":  "Floorplan",
		"rent":       "Rent",
		"signedDate": "Signed Date",
	}
	row := RawRow{
		"Property":    "Aster Flats",
		"Unit":        "101",
		"Floorplan":   "A1",
		"Rent":        "1400",
		"Signed Date": "2026-06-10",
	}
	got := parseRecentRentRow(row, index)
	if got.Floorplan != "A1" {
		t.Fatalf("floorplan mismatched: %+v", got)
	}
	if got.SignedDate == nil || !got.SignedDate.Equal(time.Date(2026, 6, 10, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("signed date mismatched: %v", got.SignedDate)
	}
}

func TestDatasetRegistry(t *testing.T) {
	keys := DatasetKeys()
	expected := []string{
		"leasing", "MMRData", "unitbyunittradeout", "portfolioUnitDetails",
		"units", "unitmix", "pricing", "recentrents",
	}
	if !reflect.DeepEqual(keys, expected) {
		t.Fatalf("dataset registry mismatch: %v", keys)
	}
	for _, key := range expected {
		spec := DatasetByKey(key)
		if spec == nil {
			t.Fatalf("DatasetByKey(%q) returned nil", key)
		}
		if len(spec.SortKey) == 0 {
			t.Fatalf("dataset %q has no sort key", key)
		}
		for _, f := range spec.SortKey {
			found := false
			for _, field := range spec.Fields {
				if field == f {
					found = true
					break
				}
			}
			if !found {
				t.Fatalf("dataset %q sort key field %q not among canonical fields", key, f)
			}
		}
	}
	if DatasetByKey("mmrdata") != nil {
		t.Fatal("dataset keys are case-sensitive provider spellings")
	}

	// the row models store these, so the registry must resolve them or the
	// columns go permanently NULL and trip the drift diagnostics
	hasField := func(key, field string) bool {
		for _, f := range DatasetByKey(key).Fields {
			if f == field {
				return true
			}
		}
		return false
	}
	for _, pair := range [][2]string{
		{"units", "sqft"},
		{"units", "rent"},
		{"recentrents", "floorplan"},
	} {
		if !hasField(pair[0], pair[1]) {
			t.Fatalf("dataset %q must carry canonical field %q", pair[0], pair[1])
		}
	}
}

func TestDecodeDatasets(t *testing.T) {
	if got := DecodeDatasets(nil); !reflect.DeepEqual(got, DatasetKeys()) {
		t.Fatalf("nil selection must mean all datasets, got %v", got)
	}
	if got := DecodeDatasets([]byte(`["leasing","pricing"]`)); !reflect.DeepEqual(got, []string{"leasing", "pricing"}) {
		t.Fatalf("expected explicit selection, got %v", got)
	}
	if got := DecodeDatasets([]byte(`not json`)); !reflect.DeepEqual(got, DatasetKeys()) {
		t.Fatalf("malformed selection must fall back to all datasets, got %v", got)
	}
}
