package dashboard

import (
	"testing"

	"github.com/shopspring/decimal"
)

func kpiPayload() *Payload {
	return &Payload{
		AsOf: "2026-06-15",
		Properties: []*PropertyStatus{
			{
				Property:                "Aster Flats",
				Units:                   ip(160),
				Occupied:                ip(140),
				Leased:                  ip(150),
				Available:               ip(10),
				Occupancy:               dec("0.875"),
				BudgetedOcc:             dec("0.9"),
				OccupancyAndBudgetDelta: dec("-0.025"),
				AverageLeasedRent:       dec("1500"),
			},
			{
				Property:                "Birch Court",
				Units:                   ip(100),
				Occupied:                ip(90),
				Leased:                  ip(95),
				Available:               ip(5),
				Occupancy:               dec("0.9"),
				BudgetedOcc:             dec("0.9"),
				OccupancyAndBudgetDelta: dec("0"),
				AverageLeasedRent:       dec("1200"),
			},
			{
				// no counts at all: every metric stays null
				Property: "Orphan",
			},
		},
		Velocity: map[string]*VelocitySummary{
			"Aster Flats": {Property: "Aster Flats", Last30: 2, Last60: 4, Last90: 6},
		},
	}
}

func TestKPI_UnknownName(t *testing.T) {
	if _, err := KPI(kpiPayload(), "nonsense", ""); err == nil {
		t.Fatal("unknown KPI name must error")
	}
}

func TestKPI_Occupancy(t *testing.T) {
	result, err := KPI(kpiPayload(), KPIOccupancy, "")
	if err != nil {
		t.Fatalf("KPI: %v", err)
	}
	if result.Properties["Orphan"] != nil {
		t.Fatalf("property without counts must be null, got %v", result.Properties["Orphan"])
	}
	// portfolio is unit-weighted: (140+90)/(160+100)
	portfolio, ok := result.Portfolio.(decimal.Decimal)
	if !ok {
		t.Fatalf("expected decimal portfolio, got %T", result.Portfolio)
	}
	if portfolio.String() != "0.8846" {
		t.Fatalf("expected 0.8846, got %s", portfolio.String())
	}
}

func TestKPI_LeasedAndAvailable(t *testing.T) {
	leased, err := KPI(kpiPayload(), KPILeased, "")
	if err != nil {
		t.Fatalf("KPI: %v", err)
	}
	if leased.Portfolio != int64(245) {
		t.Fatalf("expected 245 leased, got %v", leased.Portfolio)
	}
	available, err := KPI(kpiPayload(), KPIAvailable, "")
	if err != nil {
		t.Fatalf("KPI: %v", err)
	}
	if available.Portfolio != int64(15) {
		t.Fatalf("expected 15 available, got %v", available.Portfolio)
	}
}

func TestKPI_Velocity(t *testing.T) {
	result, err := KPI(kpiPayload(), KPIVelocity, "")
	if err != nil {
		t.Fatalf("KPI: %v", err)
	}
	total, ok := result.Portfolio.(*VelocitySummary)
	if !ok {
		t.Fatalf("expected velocity portfolio, got %T", result.Portfolio)
	}
	if total.Last30 != 2 || total.Last90 != 6 {
		t.Fatalf("expected 2/6, got %d/%d", total.Last30, total.Last90)
	}
	// properties without signings get a zero summary, not a miss
	v, ok := result.Properties["Birch Court"].(*VelocitySummary)
	if !ok || v.Last90 != 0 {
		t.Fatalf("expected zero summary for Birch Court, got %v", result.Properties["Birch Court"])
	}
}

func TestKPI_DeltaToBudget(t *testing.T) {
	result, err := KPI(kpiPayload(), KPIDeltaToBudget, "")
	if err != nil {
		t.Fatalf("KPI: %v", err)
	}
	// Aster: 150 - round(0.9*160) = 6; Birch: 95 - 90 = 5
	if result.Properties["Aster Flats"] != 6 {
		t.Fatalf("expected Aster delta 6, got %v", result.Properties["Aster Flats"])
	}
	if result.Properties["Birch Court"] != 5 {
		t.Fatalf("expected Birch delta 5, got %v", result.Properties["Birch Court"])
	}
	if result.Properties["Orphan"] != nil {
		t.Fatalf("missing inputs must give null, got %v", result.Properties["Orphan"])
	}
	if result.Portfolio != int64(11) {
		t.Fatalf("expected portfolio delta 11, got %v", result.Portfolio)
	}
}

func TestKPI_AverageLeasedRent(t *testing.T) {
	result, err := KPI(kpiPayload(), KPIAverageLeasedRent, "")
	if err != nil {
		t.Fatalf("KPI: %v", err)
	}
	portfolio, ok := result.Portfolio.(decimal.Decimal)
	if !ok {
		t.Fatalf("expected decimal portfolio, got %T", result.Portfolio)
	}
	if portfolio.String() != "1350" {
		t.Fatalf("expected 1350, got %s", portfolio.String())
	}
}

func TestKPI_PropertyFilter(t *testing.T) {
	result, err := KPI(kpiPayload(), KPIOccupancy, "Birch Court")
	if err != nil {
		t.Fatalf("KPI: %v", err)
	}
	if len(result.Properties) != 1 {
		t.Fatalf("expected one property, got %v", result.Properties)
	}
	portfolio, ok := result.Portfolio.(decimal.Decimal)
	if !ok || portfolio.String() != "0.9" {
		t.Fatalf("filtered portfolio must cover only that property, got %v", result.Portfolio)
	}

	unknown, err := KPI(kpiPayload(), KPIOccupancy, "Nowhere")
	if err != nil {
		t.Fatalf("unknown property must not error: %v", err)
	}
	if len(unknown.Properties) != 0 || unknown.Portfolio != nil {
		t.Fatalf("unknown property must give an empty result, got %+v", unknown)
	}
}
