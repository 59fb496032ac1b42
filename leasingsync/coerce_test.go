package leasingsync

import (
	"testing"
	"time"
)

var coerceIndex = FieldIndex{
	"rent":      "Rent",
	"units":     "Units",
	"leaseDate": "Lease Date",
	"month":     "Month",
}

func TestCoerceDecimal(t *testing.T) {
	cases := []struct {
		in       interface{}
		valid    bool
		expected string
	}{
		{"1450.50", true, "1450.5"},
		{"$1,450.50", true, "1450.5"},
		{float64(1450), true, "1450"},
		{"", false, ""},
		{"n/a", false, ""},
	}
	for _, tc := range cases {
		d := coerceDecimal(RawRow{"Rent": tc.in}, coerceIndex, "rent")
		if d.Valid != tc.valid {
			t.Fatalf("coerceDecimal(%v) expected valid=%v, got %v", tc.in, tc.valid, d.Valid)
		}
		if tc.valid && d.Decimal.String() != tc.expected {
			t.Fatalf("coerceDecimal(%v) expected %s, got %s", tc.in, tc.expected, d.Decimal.String())
		}
	}
}

func TestCoerceInt(t *testing.T) {
	cases := []struct {
		in       interface{}
		expected *int
	}{
		{"12", intPtr(12)},
		{"1,200", intPtr(1200)},
		{"12.0", intPtr(12)},
		{float64(12), intPtr(12)},
		{"12.5", nil},
		{"twelve", nil},
		{"", nil},
	}
	for _, tc := range cases {
		got := coerceInt(RawRow{"Units": tc.in}, coerceIndex, "units")
		if (got == nil) != (tc.expected == nil) {
			t.Fatalf("coerceInt(%v) expected %v, got %v", tc.in, tc.expected, got)
		}
		if got != nil && *got != *tc.expected {
			t.Fatalf("coerceInt(%v) expected %d, got %d", tc.in, *tc.expected, *got)
		}
	}
}

func TestCoerceDate(t *testing.T) {
	expected := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	cases := []string{
		"2026-03-14",
		"2026-03-14T10:30:00Z",
		"2026-03-14 10:30:00",
		"03/14/2026",
		"3/14/2026",
		"Mar 14, 2026",
	}
	for _, in := range cases {
		got := coerceDate(RawRow{"Lease Date": in}, coerceIndex, "leaseDate")
		if got == nil {
			t.Fatalf("coerceDate(%q) returned nil", in)
		}
		if !got.Equal(expected) {
			t.Fatalf("coerceDate(%q) expected %v, got %v", in, expected, got)
		}
	}

	if got := coerceDate(RawRow{"Lease Date": "not a date"}, coerceIndex, "leaseDate"); got != nil {
		t.Fatalf("unparseable date must coerce to nil, got %v", got)
	}
	if got := coerceDate(RawRow{}, coerceIndex, "leaseDate"); got != nil {
		t.Fatalf("missing cell must coerce to nil, got %v", got)
	}
}

func TestCoerceMonth(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"2026-03", "2026-03"},
		{"Mar 2026", "2026-03"},
		{"March 2026", "2026-03"},
		{"03/2026", "2026-03"},
		{"2026-03-14", "2026-03"}, // full dates fall back to the date parser
		{"garbage", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := coerceMonth(RawRow{"Month": tc.in}, coerceIndex, "month"); got != tc.expected {
			t.Fatalf("coerceMonth(%q) expected %q, got %q", tc.in, tc.expected, got)
		}
	}
}

func intPtr(n int) *int { return &n }
