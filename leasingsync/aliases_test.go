package leasingsync

import (
	"reflect"
	"testing"

	"bitbucket.org/stoagroup/leasing_backend/models"
)

func aliasRows(dataset string, entries ...[2]string) []*models.LeasingColumnAlias {
	out := make([]*models.LeasingColumnAlias, 0, len(entries))
	for i, e := range entries {
		out = append(out, &models.LeasingColumnAlias{
			Dataset:        dataset,
			CanonicalField: e[0],
			Header:         e[1],
			Position:       i,
		})
	}
	return out
}

func TestResolveFields_FirstRegisteredAliasWins(t *testing.T) {
	aliases := aliasRows("leasing",
		[2]string{"property", "Property"},
		[2]string{"property", "Property Name"},
		[2]string{"rent", "Rent"},
	)
	// both spellings present: the earlier-registered one wins
	index, unknown := ResolveFields(aliases, []string{"Property Name", "Property", "Rent"})
	if index["property"] != "Property" {
		t.Fatalf("expected first registered alias to win, got %q", index["property"])
	}
	if index["rent"] != "Rent" {
		t.Fatalf("expected rent to resolve, got %q", index["rent"])
	}
	if len(unknown) != 0 {
		t.Fatalf("expected no unknown headers, got %v", unknown)
	}
}

func TestResolveFields_RenamedHeaderResolvesThroughLaterAlias(t *testing.T) {
	aliases := aliasRows("leasing",
		[2]string{"property", "Property"},
		[2]string{"property", "Property Name"},
	)
	index, _ := ResolveFields(aliases, []string{"Property Name"})
	if index["property"] != "Property Name" {
		t.Fatalf("expected fallback alias to resolve, got %q", index["property"])
	}
}

func TestResolveFields_UnknownHeadersSurface(t *testing.T) {
	aliases := aliasRows("leasing", [2]string{"property", "Property"})
	index, unknown := ResolveFields(aliases, []string{"Property", "Mystery Column"})
	if _, ok := index["property"]; !ok {
		t.Fatal("property should have resolved")
	}
	if !reflect.DeepEqual(unknown, []string{"Mystery Column"}) {
		t.Fatalf("expected unknown headers [Mystery Column], got %v", unknown)
	}
}

func TestResolveFields_MissingFieldAbsentFromIndex(t *testing.T) {
	aliases := aliasRows("leasing",
		[2]string{"property", "Property"},
		[2]string{"rent", "Rent"},
	)
	index, _ := ResolveFields(aliases, []string{"Property"})
	if _, ok := index["rent"]; ok {
		t.Fatal("rent has no matching header and must be absent from the index")
	}
}

func TestResolveFields_TrimsWhitespace(t *testing.T) {
	aliases := aliasRows("leasing", [2]string{"property", "Property"})
	index, unknown := ResolveFields(aliases, []string{"  Property  "})
	if index["property"] != "  Property  " {
		t.Fatalf("index must keep the original header casing/spacing, got %q", index["property"])
	}
	if len(unknown) != 0 {
		t.Fatalf("padded header should still match, got unknown %v", unknown)
	}
}

func TestDefaultAliasSeedsCoverRegistry(t *testing.T) {
	seeds := models.DefaultAliasSeeds()
	for _, spec := range Datasets {
		fields, ok := seeds[spec.Key]
		if !ok {
			t.Fatalf("no alias seeds for dataset %q", spec.Key)
		}
		for _, f := range spec.Fields {
			if len(fields[f]) == 0 {
				t.Fatalf("dataset %q field %q has no seeded alias, so it can never resolve", spec.Key, f)
			}
		}
	}
}

func TestHeadersOf_UnionAcrossRaggedRows(t *testing.T) {
	rows := []RawRow{
		{"Property": "A", "Unit": "101"},
		{"Property": "A", "Rent": "1450"},
	}
	got := HeadersOf(rows)
	expected := []string{"Property", "Rent", "Unit"}
	if !reflect.DeepEqual(got, expected) {
		t.Fatalf("expected %v, got %v", expected, got)
	}
}
