package leasingsync

import (
	"context"
	"sort"
	"strings"

	"bitbucket.org/stoagroup/leasing_backend/models"
)

// FieldIndex maps a dataset's canonical fields to the source header actually
// present in the current payload. Fields with no matching header are absent
// from the map and coerce to NULL downstream.
type FieldIndex map[string]string

// ResolveFields matches the payload's headers against the registered aliases.
// For each canonical field the first registered alias present among the
// headers wins; matching trims whitespace but is otherwise exact. The second
// return value lists headers that matched no alias of any field, for drift
// diagnostics.
func ResolveFields(aliases []*models.LeasingColumnAlias, headers []string) (FieldIndex, []string) {
	present := make(map[string]string, len(headers))
	for _, h := range headers {
		present[strings.TrimSpace(h)] = h
	}

	index := make(FieldIndex)
	known := make(map[string]bool)
	for _, alias := range aliases {
		known[strings.TrimSpace(alias.Header)] = true
		if _, done := index[alias.CanonicalField]; done {
			continue
		}
		if original, ok := present[strings.TrimSpace(alias.Header)]; ok {
			index[alias.CanonicalField] = original
		}
	}

	var unknown []string
	for _, h := range headers {
		if !known[strings.TrimSpace(h)] {
			unknown = append(unknown, h)
		}
	}
	return index, unknown
}

// HeadersOf collects the sorted union of headers across a payload's rows.
// Provider exports are ragged on occasion, so a single row's keys are not
// authoritative.
func HeadersOf(rows []RawRow) []string {
	var headers []string
	seen := make(map[string]bool)
	for _, row := range rows {
		for h := range row {
			if !seen[h] {
				seen[h] = true
				headers = append(headers, h)
			}
		}
	}
	// map iteration destroys provider ordering anyway, so sort for determinism
	sort.Strings(headers)
	return headers
}

// resolveDatasetFields loads the dataset's aliases and resolves the payload
// headers against them.
func resolveDatasetFields(ctx context.Context, dataset string, headers []string) (FieldIndex, []string, error) {
	aliases, err := models.GetColumnAliases(ctx, dataset)
	if err != nil {
		return nil, nil, err
	}
	index, unknown := ResolveFields(aliases, headers)
	return index, unknown, nil
}
