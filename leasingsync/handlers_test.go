package leasingsync

import (
	"net/http"
	"testing"
)

func TestPushStatusCode(t *testing.T) {
	synced := &DatasetOutcome{Dataset: "leasing", Status: OutcomeSynced}
	skipped := &DatasetOutcome{Dataset: "pricing", Status: OutcomeSkipped}
	errored := &DatasetOutcome{Dataset: "units", Status: OutcomeErrored, Reason: "db down"}

	cases := []struct {
		name     string
		outcomes []*DatasetOutcome
		want     int
	}{
		{"all synced", []*DatasetOutcome{synced}, http.StatusOK},
		{"partial failure", []*DatasetOutcome{synced, errored}, http.StatusOK},
		{"skips are not failures", []*DatasetOutcome{skipped, errored}, http.StatusOK},
		{"all errored", []*DatasetOutcome{errored, errored}, http.StatusBadGateway},
		{"nothing attempted", nil, http.StatusOK},
	}
	for _, tc := range cases {
		if got := pushStatusCode(tc.outcomes); got != tc.want {
			t.Errorf("%s: expected %d, got %d", tc.name, tc.want, got)
		}
	}
}
