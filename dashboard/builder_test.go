package dashboard

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"bitbucket.org/stoagroup/leasing_backend/models"
)

func dec(s string) decimal.NullDecimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

func ip(n int) *int { return &n }

func day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

var testAsOf = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

func fixtureSources() *SourceData {
	return &SourceData{
		Leasing: []*models.LeasingRow{
			{Property: "Aster Flats", Unit: "101", LeaseDate: day(2026, 6, 10), Rent: dec("1400")},
			{Property: "Aster Flats", Unit: "102", LeaseDate: day(2026, 5, 1), Rent: dec("1600")},
			{Property: "Aster Flats", Unit: "103", LeaseDate: day(2026, 3, 20), Rent: decimal.NullDecimal{}},
		},
		MMR: []*models.MMRRow{
			{Property: "Aster Flats", Month: "2026-05", MMROcc: ip(120), MMRUnits: ip(160), Leased: ip(130), Available: ip(30), Budget: dec("90")},
			{Property: "Aster Flats", Month: "2026-06", MMROcc: ip(140), MMRUnits: ip(160), Leased: ip(150), Available: ip(10), Budget: dec("90"), Stage: "Lease-Up"},
		},
		Tradeouts: []*models.TradeoutRow{
			{Property: "Aster Flats", Unit: "101", Month: "2026-05", LeaseType: "New Lease", TradeoutPct: dec("0.05"), TradeoutAmt: dec("70")},
			{Property: "Aster Flats", Unit: "102", Month: "2026-05", LeaseType: "Renewal", TradeoutPct: dec("0.03"), TradeoutAmt: dec("45")},
			{Property: "Aster Flats", Unit: "103", Month: "2026-06", TradeoutPct: decimal.NullDecimal{}, TradeoutAmt: decimal.NullDecimal{}},
		},
		UnitDetails: []*models.PortfolioUnitDetailRow{
			{Property: "Birch Court", Unit: "201", Floorplan: "B1", Status: "Occupied", Stage: "Stabilized"},
			{Property: "Birch Court", Unit: "202", Floorplan: "B1", Status: "Leased - Vacant"},
			{Property: "Birch Court", Unit: "203", Floorplan: "B2", Status: "Vacant"},
		},
		UnitMix: []*models.UnitMixRow{
			{Property: "Aster Flats", Floorplan: "A1", UnitCount: ip(80), AvgSqft: ip(650), MarketRent: dec("1400")},
			{Property: "Aster Flats", Floorplan: "A2", UnitCount: ip(80), AvgSqft: ip(900), MarketRent: dec("1700")},
		},
		Pricing: []*models.PricingRow{
			{Property: "Aster Flats", Floorplan: "A1", Month: "2026-06", Price: dec("1425"), AvailableUnits: ip(4)},
			{Property: "Aster Flats", Floorplan: "A1", Month: "2026-05", Price: dec("1410"), AvailableUnits: ip(6)},
			{Property: "Aster Flats", Floorplan: "A3", Month: "2026-06", Price: dec("1900")},
		},
		RecentRents: []*models.RecentRentRow{
			{Property: "Aster Flats", Unit: "101", Rent: dec("1400"), SignedDate: day(2026, 6, 10)},
			{Property: "Aster Flats", Unit: "102", Rent: dec("1600"), SignedDate: day(2026, 6, 12)},
		},
		Projects: []*models.Project{
			{Name: "Birch Court", BudgetedOcc: dec("0.95")},
		},
	}
}

func TestBuild_Deterministic(t *testing.T) {
	src := fixtureSources()
	p1 := Build(src, testAsOf, []string{"mmr", "pud"})
	p2 := Build(src, testAsOf, []string{"mmr", "pud"})
	p1.BuiltAt = time.Time{}
	p2.BuiltAt = time.Time{}

	b1, err := json.Marshal(p1)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	b2, err := json.Marshal(p2)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b1) != string(b2) {
		t.Fatal("two builds over the same sources must be byte-identical")
	}
}

func findProperty(t *testing.T, p *Payload, name string) *PropertyStatus {
	t.Helper()
	for _, ps := range p.Properties {
		if ps.Property == name {
			return ps
		}
	}
	t.Fatalf("property %q missing from payload", name)
	return nil
}

func TestBuild_StatusPrecedence(t *testing.T) {
	p := Build(fixtureSources(), testAsOf, []string{"mmr", "pud"})

	// Aster carries MMR data: the latest month's row wins.
	aster := findProperty(t, p, "Aster Flats")
	if aster.StatusSource != "mmr" {
		t.Fatalf("expected mmr source, got %q", aster.StatusSource)
	}
	if aster.Units == nil || *aster.Units != 160 || aster.Occupied == nil || *aster.Occupied != 140 {
		t.Fatalf("expected latest MMR month counts, got %+v", aster)
	}
	if aster.Stage != "Lease-Up" {
		t.Fatalf("expected stage from latest MMR row, got %q", aster.Stage)
	}
	if !aster.Occupancy.Valid || aster.Occupancy.Decimal.String() != "0.875" {
		t.Fatalf("expected occupancy 0.875, got %+v", aster.Occupancy)
	}
	// MMR budget 90 is a percentage and normalizes to 0.9
	if !aster.BudgetedOcc.Valid || aster.BudgetedOcc.Decimal.String() != "0.9" {
		t.Fatalf("expected budgeted occupancy 0.9, got %+v", aster.BudgetedOcc)
	}
	if !aster.OccupancyAndBudgetDelta.Valid || aster.OccupancyAndBudgetDelta.Decimal.String() != "-0.025" {
		t.Fatalf("expected delta -0.025, got %+v", aster.OccupancyAndBudgetDelta)
	}

	// Birch has no MMR rows and falls through to unit statuses.
	birch := findProperty(t, p, "Birch Court")
	if birch.StatusSource != "pud" {
		t.Fatalf("expected pud fallback, got %q", birch.StatusSource)
	}
	if birch.Units == nil || *birch.Units != 3 {
		t.Fatalf("expected 3 units, got %+v", birch.Units)
	}
	if birch.Occupied == nil || *birch.Occupied != 1 {
		t.Fatalf("expected 1 occupied, got %+v", birch.Occupied)
	}
	if birch.Leased == nil || *birch.Leased != 2 {
		t.Fatalf("occupied plus signed-vacant should count as leased, got %+v", birch.Leased)
	}
	if birch.Available == nil || *birch.Available != 1 {
		t.Fatalf("expected 1 available, got %+v", birch.Available)
	}
	// budget falls back to project metadata
	if !birch.BudgetedOcc.Valid || birch.BudgetedOcc.Decimal.String() != "0.95" {
		t.Fatalf("expected project budget fallback, got %+v", birch.BudgetedOcc)
	}
}

func TestBuild_HistoricalAsOfTruncatesMonths(t *testing.T) {
	asOf := time.Date(2026, 5, 31, 0, 0, 0, 0, time.UTC)
	p := Build(fixtureSources(), asOf, []string{"mmr", "pud"})

	// the June MMR row is out of range; May's counts win
	aster := findProperty(t, p, "Aster Flats")
	if aster.Occupied == nil || *aster.Occupied != 120 {
		t.Fatalf("expected May occupancy counts, got %+v", aster)
	}

	summary := p.Tradeouts["Aster Flats"]
	if summary == nil || summary.Count != 2 {
		t.Fatalf("June tradeouts must be excluded, got %+v", summary)
	}

	// pricing series stops at May, so May's price is current
	for _, mix := range p.UnitMix["Aster Flats"] {
		if mix.Floorplan == "A1" {
			if !mix.CurrentPrice.Valid || mix.CurrentPrice.Decimal.String() != "1410" {
				t.Fatalf("expected May price current, got %+v", mix.CurrentPrice)
			}
		}
		if mix.Floorplan == "A3" {
			t.Fatal("June-only floorplan pricing must be out of range")
		}
	}

	// June signings are in the future relative to the view
	if rents := p.RecentRents["Aster Flats"]; len(rents) != 0 {
		t.Fatalf("expected no in-range recent rents, got %+v", rents)
	}
}

func TestBuild_AverageLeasedRentSkipsNulls(t *testing.T) {
	p := Build(fixtureSources(), testAsOf, []string{"mmr", "pud"})
	aster := findProperty(t, p, "Aster Flats")
	// (1400 + 1600) / 2, the NULL rent row does not count
	if !aster.AverageLeasedRent.Valid || aster.AverageLeasedRent.Decimal.String() != "1500" {
		t.Fatalf("expected average 1500, got %+v", aster.AverageLeasedRent)
	}
}

func TestBuild_ZeroUnitsDiagnostic(t *testing.T) {
	src := &SourceData{
		MMR: []*models.MMRRow{
			{Property: "Empty Lot", Month: "2026-06", MMROcc: ip(0), MMRUnits: ip(0)},
		},
	}
	p := Build(src, testAsOf, []string{"mmr"})
	ps := findProperty(t, p, "Empty Lot")
	if ps.Occupancy.Valid {
		t.Fatalf("zero units must give null occupancy, got %+v", ps.Occupancy)
	}
	found := false
	for _, d := range p.Diagnostics {
		if strings.Contains(d, "zero units") && strings.Contains(d, "Empty Lot") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected zero-units diagnostic, got %v", p.Diagnostics)
	}
}

func TestBuild_UncoveredPropertyDiagnostic(t *testing.T) {
	src := &SourceData{
		Leasing: []*models.LeasingRow{{Property: "Orphan", Unit: "1"}},
	}
	p := Build(src, testAsOf, []string{"mmr", "pud"})
	ps := findProperty(t, p, "Orphan")
	if ps.StatusSource != "" {
		t.Fatalf("expected no status source, got %q", ps.StatusSource)
	}
	found := false
	for _, d := range p.Diagnostics {
		if strings.Contains(d, "no source carries") && strings.Contains(d, "Orphan") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected missing-source diagnostic, got %v", p.Diagnostics)
	}
}

func TestBuild_UnknownPrecedenceSourceDiagnostic(t *testing.T) {
	p := Build(fixtureSources(), testAsOf, []string{"mmr", "bogus"})
	count := 0
	for _, d := range p.Diagnostics {
		if strings.Contains(d, `unknown source "bogus"`) {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one unknown-source diagnostic, got %d (%v)", count, p.Diagnostics)
	}
}

func TestBuild_TradeoutAggregates(t *testing.T) {
	p := Build(fixtureSources(), testAsOf, []string{"mmr", "pud"})
	summary := p.Tradeouts["Aster Flats"]
	if summary == nil {
		t.Fatal("expected Aster tradeout summary")
	}
	if summary.Count != 3 {
		t.Fatalf("expected 3 tradeouts, got %d", summary.Count)
	}
	// averages only over rows carrying the value
	if !summary.AvgTradeoutPct.Valid || summary.AvgTradeoutPct.Decimal.String() != "0.04" {
		t.Fatalf("expected avg pct 0.04, got %+v", summary.AvgTradeoutPct)
	}
	if len(summary.Months) != 2 || summary.Months[0].Month != "2026-05" || summary.Months[1].Month != "2026-06" {
		t.Fatalf("expected sorted months, got %+v", summary.Months)
	}
	if summary.Months[1].AvgTradeoutPct.Valid {
		t.Fatalf("month with no valid samples must average null, got %+v", summary.Months[1].AvgTradeoutPct)
	}
	if summary.NewCount != 1 || summary.RenewalCount != 1 {
		t.Fatalf("expected 1 new / 1 renewal, got %d/%d", summary.NewCount, summary.RenewalCount)
	}
}

func TestBuild_TradeoutLeaseTypeCounts(t *testing.T) {
	src := &SourceData{
		Tradeouts: []*models.TradeoutRow{
			{Property: "Aster Flats", Unit: "101", Month: "2026-05", LeaseType: "New Lease"},
			{Property: "Aster Flats", Unit: "102", Month: "2026-05", LeaseType: "New"},
			{Property: "Aster Flats", Unit: "103", Month: "2026-05", LeaseType: "Renewal"},
			// blank label resolves through unit 103's earlier row
			{Property: "Aster Flats", Unit: "103", Month: "2026-06"},
			// blank label with no sibling stays unclassified
			{Property: "Aster Flats", Unit: "104", Month: "2026-06"},
		},
	}
	p := Build(src, testAsOf, []string{"mmr"})
	summary := p.Tradeouts["Aster Flats"]
	if summary == nil {
		t.Fatal("expected tradeout summary")
	}
	if summary.Count != 5 || summary.NewCount != 2 || summary.RenewalCount != 2 {
		t.Fatalf("expected count 5 with 2 new / 2 renewal, got %d/%d/%d",
			summary.Count, summary.NewCount, summary.RenewalCount)
	}
	if len(summary.Months) != 2 {
		t.Fatalf("expected two months, got %+v", summary.Months)
	}
	may := summary.Months[0]
	if may.Count != 3 || may.NewCount != 2 || may.RenewalCount != 1 {
		t.Fatalf("May must split 2 new / 1 renewal, got %+v", may)
	}
	june := summary.Months[1]
	if june.Count != 2 || june.NewCount != 0 || june.RenewalCount != 1 {
		t.Fatalf("June must classify unit 103 via the lookup only, got %+v", june)
	}
	found := false
	for _, d := range p.Diagnostics {
		if strings.Contains(d, "no lease type") && strings.Contains(d, `"104"`) {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected unclassified-unit diagnostic, got %v", p.Diagnostics)
	}
}

func TestBuild_UnitMixPricingSeries(t *testing.T) {
	p := Build(fixtureSources(), testAsOf, []string{"mmr", "pud"})
	mixes := p.UnitMix["Aster Flats"]
	if len(mixes) != 3 {
		t.Fatalf("expected A1, A2 and the orphan A3, got %d", len(mixes))
	}
	if mixes[0].Floorplan != "A1" || mixes[1].Floorplan != "A2" || mixes[2].Floorplan != "A3" {
		t.Fatalf("expected floorplan-sorted mixes, got %+v", mixes)
	}

	a1 := mixes[0]
	if len(a1.PriceSeries) != 2 || a1.PriceSeries[0].Month != "2026-05" {
		t.Fatalf("expected month-sorted price series, got %+v", a1.PriceSeries)
	}
	if !a1.CurrentPrice.Valid || a1.CurrentPrice.Decimal.String() != "1425" {
		t.Fatalf("current price must be the latest point, got %+v", a1.CurrentPrice)
	}

	// A3 is priced but missing from the mix: surfaced with a diagnostic
	a3 := mixes[2]
	if a3.UnitCount != nil {
		t.Fatalf("orphan floorplan has no mix row, got %+v", a3)
	}
	found := false
	for _, d := range p.Diagnostics {
		if strings.Contains(d, `"A3"`) {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected orphan floorplan diagnostic, got %v", p.Diagnostics)
	}
}

func TestBuild_VelocityWindows(t *testing.T) {
	mk := func(daysAgo int) *models.LeasingRow {
		d := testAsOf.AddDate(0, 0, -daysAgo)
		d = time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
		return &models.LeasingRow{Property: "Aster Flats", LeaseDate: &d}
	}
	src := &SourceData{
		Leasing: []*models.LeasingRow{
			mk(0), mk(29), // inside 30
			mk(30), mk(59), // inside 60
			mk(60), mk(89), // inside 90
			mk(90),  // outside
			mk(-1),  // future, ignored
			{Property: "Aster Flats"}, // no lease date, ignored
		},
	}
	p := Build(src, testAsOf, []string{"mmr"})
	v := p.Velocity["Aster Flats"]
	if v == nil {
		t.Fatal("expected velocity summary")
	}
	if v.Last30 != 2 || v.Last60 != 4 || v.Last90 != 6 {
		t.Fatalf("expected 2/4/6, got %d/%d/%d", v.Last30, v.Last60, v.Last90)
	}
}

func TestBuild_VelocityExcludesRenewals(t *testing.T) {
	mk := func(daysAgo int, leaseType string) *models.LeasingRow {
		d := testAsOf.AddDate(0, 0, -daysAgo)
		d = time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
		return &models.LeasingRow{Property: "Aster Flats", LeaseDate: &d, LeaseType: leaseType}
	}
	src := &SourceData{
		Leasing: []*models.LeasingRow{
			mk(5, "New Lease"),
			mk(10, "New"),
			mk(5, "Renewal"),
			mk(10, "Lease Renewal"),
			mk(15, ""), // untyped rows count as leasing activity
		},
	}
	p := Build(src, testAsOf, []string{"mmr"})
	v := p.Velocity["Aster Flats"]
	if v == nil {
		t.Fatal("expected velocity summary")
	}
	if v.Last30 != 3 || v.Last90 != 3 {
		t.Fatalf("renewals must not inflate velocity, got %d/%d", v.Last30, v.Last90)
	}
}

func TestBuild_RecentRentsByFloorplan(t *testing.T) {
	src := &SourceData{
		UnitMix: []*models.UnitMixRow{
			{Property: "Aster Flats", Floorplan: "A1", UnitCount: ip(10)},
		},
		RecentRents: []*models.RecentRentRow{
			{Property: "Aster Flats", Unit: "101", Floorplan: "A1", Rent: dec("1400"), SignedDate: day(2026, 6, 10)},
			{Property: "Aster Flats", Unit: "102", Floorplan: "A1", Rent: dec("1450"), SignedDate: day(2026, 6, 12)},
			{Property: "Aster Flats", Unit: "301", Floorplan: "Z9", SignedDate: day(2026, 6, 1)},
		},
	}
	p := Build(src, testAsOf, []string{"mmr"})

	mixes := p.UnitMix["Aster Flats"]
	if len(mixes) != 1 || mixes[0].Floorplan != "A1" {
		t.Fatalf("expected the A1 mix block, got %+v", mixes)
	}
	rents := mixes[0].RecentRents
	if len(rents) != 2 {
		t.Fatalf("expected 2 recent rents on A1, got %+v", rents)
	}
	if rents[0].Unit != "102" || rents[1].Unit != "101" {
		t.Fatalf("plan rents must stay newest first, got %+v", rents)
	}
	if rents[0].Floorplan != "A1" {
		t.Fatalf("recent rent must carry its floorplan, got %+v", rents[0])
	}

	found := false
	for _, d := range p.Diagnostics {
		if strings.Contains(d, "recent rents") && strings.Contains(d, `"Z9"`) {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected orphan-plan diagnostic, got %v", p.Diagnostics)
	}
}

func TestBuild_RecentRentsOrderedAndCapped(t *testing.T) {
	var rows []*models.RecentRentRow
	for i := 1; i <= 12; i++ {
		rows = append(rows, &models.RecentRentRow{
			Property:   "Aster Flats",
			Unit:       string(rune('A' + i - 1)),
			SignedDate: day(2026, 6, i),
		})
	}
	rows = append(rows, &models.RecentRentRow{Property: "Aster Flats", Unit: "ZZ"}) // no date sorts last

	p := Build(&SourceData{RecentRents: rows}, testAsOf, []string{"mmr"})
	rents := p.RecentRents["Aster Flats"]
	if len(rents) != recentRentLimit {
		t.Fatalf("expected %d rents, got %d", recentRentLimit, len(rents))
	}
	for i := 1; i < len(rents); i++ {
		prev, cur := rents[i-1].SignedDate, rents[i].SignedDate
		if prev == nil || cur == nil {
			t.Fatalf("dated rows must fill the capped list before undated ones: %+v", rents[i])
		}
		if cur.After(*prev) {
			t.Fatalf("rents must be newest first, got %v before %v", prev, cur)
		}
	}
}

func TestBuild_UnitsFallback(t *testing.T) {
	src := &SourceData{
		UnitDetails: []*models.PortfolioUnitDetailRow{
			{Property: "Birch Court", Unit: "202"},
			{Property: "Birch Court", Unit: "201"},
		},
		Units: []*models.UnitRow{
			{Property: "Birch Court", Unit: "999"},  // covered property: ignored
			{Property: "Cedar Walk", Unit: "301"},   // fallback
		},
	}
	p := Build(src, testAsOf, []string{"pud"})

	birch := p.Units["Birch Court"]
	if len(birch) != 2 || birch[0].Unit != "201" {
		t.Fatalf("unit details are authoritative and sorted, got %+v", birch)
	}
	cedar := p.Units["Cedar Walk"]
	if len(cedar) != 1 || cedar[0].Unit != "301" {
		t.Fatalf("units dataset must cover properties the detail export misses, got %+v", cedar)
	}
}

func TestBuild_RawRowEchoes(t *testing.T) {
	src := fixtureSources()
	p := Build(src, testAsOf, []string{"mmr", "pud"})
	if p.Raw == nil {
		t.Fatal("expected raw row echoes")
	}
	if len(p.Raw.Leasing) != len(src.Leasing) ||
		len(p.Raw.MMR) != len(src.MMR) ||
		len(p.Raw.Tradeouts) != len(src.Tradeouts) ||
		len(p.Raw.UnitDetails) != len(src.UnitDetails) ||
		len(p.Raw.Units) != len(src.Units) ||
		len(p.Raw.UnitMix) != len(src.UnitMix) ||
		len(p.Raw.Pricing) != len(src.Pricing) ||
		len(p.Raw.RecentRents) != len(src.RecentRents) {
		t.Fatalf("every dataset must echo verbatim, got %+v", p.Raw)
	}
	if p.Raw.Tradeouts[0].Unit != "101" {
		t.Fatalf("echoed rows must be the stored rows, got %+v", p.Raw.Tradeouts[0])
	}
}
