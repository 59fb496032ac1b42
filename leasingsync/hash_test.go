package leasingsync

import "testing"

var hashSpec = &DatasetSpec{
	Key:     "test",
	Fields:  []string{"property", "unit", "rent"},
	SortKey: []string{"property", "unit"},
}

func TestContentHash_OrderInsensitive(t *testing.T) {
	index := FieldIndex{"property": "Property", "unit": "Unit", "rent": "Rent"}
	rows := []RawRow{
		{"Property": "Aster", "Unit": "101", "Rent": "1450"},
		{"Property": "Aster", "Unit": "102", "Rent": "1500"},
		{"Property": "Birch", "Unit": "201", "Rent": "1200"},
	}
	reversed := []RawRow{rows[2], rows[1], rows[0]}

	if ContentHash(hashSpec, index, rows) != ContentHash(hashSpec, index, reversed) {
		t.Fatal("hash must not depend on row order")
	}
}

func TestContentHash_StableUnderHeaderRename(t *testing.T) {
	oldIndex := FieldIndex{"property": "Property", "unit": "Unit", "rent": "Rent"}
	newIndex := FieldIndex{"property": "Property Name", "unit": "Unit", "rent": "Effective Rent"}

	oldRows := []RawRow{{"Property": "Aster", "Unit": "101", "Rent": "1450"}}
	newRows := []RawRow{{"Property Name": "Aster", "Unit": "101", "Effective Rent": "1450"}}

	if ContentHash(hashSpec, oldIndex, oldRows) != ContentHash(hashSpec, newIndex, newRows) {
		t.Fatal("a header rename covered by aliases must not change the hash")
	}
}

func TestContentHash_NumberNormalization(t *testing.T) {
	index := FieldIndex{"property": "Property", "unit": "Unit", "rent": "Rent"}
	// JSON numbers decode as float64; the same value as a string must hash
	// identically.
	asNumber := []RawRow{{"Property": "Aster", "Unit": "101", "Rent": float64(1450)}}
	asString := []RawRow{{"Property": "Aster", "Unit": "101", "Rent": "1450"}}

	if ContentHash(hashSpec, index, asNumber) != ContentHash(hashSpec, index, asString) {
		t.Fatal("1450 and \"1450\" must hash identically")
	}
}

func TestContentHash_DetectsValueChange(t *testing.T) {
	index := FieldIndex{"property": "Property", "unit": "Unit", "rent": "Rent"}
	before := []RawRow{{"Property": "Aster", "Unit": "101", "Rent": "1450"}}
	after := []RawRow{{"Property": "Aster", "Unit": "101", "Rent": "1455"}}

	if ContentHash(hashSpec, index, before) == ContentHash(hashSpec, index, after) {
		t.Fatal("a changed canonical value must change the hash")
	}
}

func TestContentHash_UnresolvedFieldsHashAsEmpty(t *testing.T) {
	full := FieldIndex{"property": "Property", "unit": "Unit", "rent": "Rent"}
	missingRent := FieldIndex{"property": "Property", "unit": "Unit"}

	rows := []RawRow{{"Property": "Aster", "Unit": "101", "Rent": ""}}

	if ContentHash(hashSpec, full, rows) != ContentHash(hashSpec, missingRent, rows) {
		t.Fatal("an unresolved field and an empty cell must hash identically")
	}
}

func TestRawString(t *testing.T) {
	cases := []struct {
		in       interface{}
		expected string
	}{
		{nil, ""},
		{"  Aster  ", "Aster"},
		{float64(450), "450"},
		{float64(450.5), "450.5"},
		{true, "true"},
		{false, "false"},
	}
	for _, tc := range cases {
		if got := rawString(tc.in); got != tc.expected {
			t.Fatalf("rawString(%v) expected %q, got %q", tc.in, tc.expected, got)
		}
	}
}
