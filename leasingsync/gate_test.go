package leasingsync

import (
	"testing"
	"time"

	"bitbucket.org/stoagroup/leasing_backend/models"
)

func TestShouldAccept_GateMatrix(t *testing.T) {
	day1 := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	day1Later := time.Date(2026, 3, 14, 23, 59, 0, 0, time.UTC)
	day2 := time.Date(2026, 3, 15, 0, 1, 0, 0, time.UTC)

	logAt := func(hash string, at time.Time) *models.LeasingSyncLog {
		return &models.LeasingSyncLog{
			Dataset:     "leasing",
			LastSyncAt:  at,
			LastSyncDay: at.UTC().Format("2006-01-02"),
			ContentHash: hash,
		}
	}

	cases := []struct {
		name     string
		last     *models.LeasingSyncLog
		hash     string
		now      time.Time
		accept   bool
		reason   string
	}{
		{"first sync", nil, "h1", day1, true, "first sync"},
		{"same hash same day", logAt("h1", day1), "h1", day1Later, false, ReasonUnchangedToday},
		{"changed hash same day", logAt("h1", day1), "h2", day1Later, true, "content changed"},
		{"same hash new day", logAt("h1", day1), "h1", day2, true, "new day"},
		{"changed hash new day", logAt("h1", day1), "h2", day2, true, "content changed"},
	}

	for _, tc := range cases {
		accept, reason := ShouldAccept(tc.last, tc.hash, tc.now)
		if accept != tc.accept {
			t.Fatalf("%s: expected accept=%v, got %v (reason %q)", tc.name, tc.accept, accept, reason)
		}
		if reason != tc.reason {
			t.Fatalf("%s: expected reason %q, got %q", tc.name, tc.reason, reason)
		}
	}
}

// The reference scenario: push H1 on day one (synced), push H1 again the same
// day (skipped), content changes to H2 (synced), then H2 arrives again the
// next day (synced, new day).
func TestShouldAccept_DayBoundaryScenario(t *testing.T) {
	d1 := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	d2 := d1.Add(24 * time.Hour)

	accept, _ := ShouldAccept(nil, "H1", d1)
	if !accept {
		t.Fatal("first push must be accepted")
	}
	log := &models.LeasingSyncLog{ContentHash: "H1", LastSyncAt: d1, LastSyncDay: d1.Format("2006-01-02")}

	if accept, reason := ShouldAccept(log, "H1", d1.Add(time.Hour)); accept {
		t.Fatalf("identical same-day push must be skipped, got accept (%s)", reason)
	}
	if accept, reason := ShouldAccept(log, "H2", d1.Add(2*time.Hour)); !accept || reason != "content changed" {
		t.Fatalf("changed content must be accepted, got accept=%v reason=%q", accept, reason)
	}
	log.ContentHash = "H2"
	log.LastSyncAt = d1.Add(2 * time.Hour)

	if accept, reason := ShouldAccept(log, "H2", d2); !accept || reason != "new day" {
		t.Fatalf("next-day identical push must be accepted, got accept=%v reason=%q", accept, reason)
	}
}
