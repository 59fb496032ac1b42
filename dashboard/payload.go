package dashboard

import (
	"time"

	"github.com/shopspring/decimal"

	"bitbucket.org/stoagroup/leasing_backend/models"
)

// SourceData is everything the builder reads: the raw dataset tables plus
// project metadata. Loading is separated from building so the aggregation is
// deterministic and testable without a database.
type SourceData struct {
	Leasing     []*models.LeasingRow
	MMR         []*models.MMRRow
	Tradeouts   []*models.TradeoutRow
	UnitDetails []*models.PortfolioUnitDetailRow
	Units       []*models.UnitRow
	UnitMix     []*models.UnitMixRow
	Pricing     []*models.PricingRow
	RecentRents []*models.RecentRentRow
	Projects    []*models.Project
}

// PropertyStatus is the per-property occupancy block. Counts come from the
// first status source (per configured precedence) that carries the property;
// StatusSource records which one won. Ratios are null when their denominator
// is missing or zero.
type PropertyStatus struct {
	Property                string              `json:"property"`
	Stage                   string              `json:"stage,omitempty"`
	StatusSource            string              `json:"status_source"`
	Units                   *int                `json:"units"`
	Occupied                *int                `json:"occupied"`
	Leased                  *int                `json:"leased"`
	Available               *int                `json:"available"`
	Occupancy               decimal.NullDecimal `json:"occupancy"`
	LeasedPct               decimal.NullDecimal `json:"leased_pct"`
	BudgetedOcc             decimal.NullDecimal `json:"budgeted_occ"`
	OccupancyAndBudgetDelta decimal.NullDecimal `json:"occupancy_and_budget_delta"`
	AverageLeasedRent       decimal.NullDecimal `json:"average_leased_rent"`
}

// TradeoutMonth aggregates one property's tradeouts for one month. Count
// splits into new and renewal leases; rows whose lease type never resolves
// stay in Count only.
type TradeoutMonth struct {
	Month          string              `json:"month"`
	Count          int                 `json:"count"`
	NewCount       int                 `json:"new_count"`
	RenewalCount   int                 `json:"renewal_count"`
	AvgTradeoutPct decimal.NullDecimal `json:"avg_tradeout_pct"`
	AvgTradeoutAmt decimal.NullDecimal `json:"avg_tradeout_amt"`
}

// TradeoutSummary aggregates one property's tradeouts overall and by month.
type TradeoutSummary struct {
	Property       string              `json:"property"`
	Count          int                 `json:"count"`
	NewCount       int                 `json:"new_count"`
	RenewalCount   int                 `json:"renewal_count"`
	AvgTradeoutPct decimal.NullDecimal `json:"avg_tradeout_pct"`
	AvgTradeoutAmt decimal.NullDecimal `json:"avg_tradeout_amt"`
	Months         []*TradeoutMonth    `json:"months"`
}

// MonthPrice is one point of a floorplan's asking price series.
type MonthPrice struct {
	Month          string              `json:"month"`
	Price          decimal.NullDecimal `json:"price"`
	AvailableUnits *int                `json:"available_units"`
}

// FloorplanMix is one floorplan's inventory block with its pricing series
// and the rents recently signed on that plan.
type FloorplanMix struct {
	Floorplan    string              `json:"floorplan"`
	UnitCount    *int                `json:"unit_count"`
	AvgSqft      *int                `json:"avg_sqft"`
	MarketRent   decimal.NullDecimal `json:"market_rent"`
	CurrentPrice decimal.NullDecimal `json:"current_price"`
	PriceSeries  []*MonthPrice       `json:"price_series"`
	RecentRents  []*RecentSignedRent `json:"recent_rents,omitempty"`
}

// RecentSignedRent is one recently signed lease echoed for context.
type RecentSignedRent struct {
	Unit       string              `json:"unit"`
	Floorplan  string              `json:"floorplan,omitempty"`
	Rent       decimal.NullDecimal `json:"rent"`
	SignedDate *time.Time          `json:"signed_date"`
}

// VelocitySummary counts new leases signed in the trailing 30/60/90 day
// windows ending at the snapshot's as-of day.
type VelocitySummary struct {
	Property string `json:"property"`
	Last30   int    `json:"last_30"`
	Last60   int    `json:"last_60"`
	Last90   int    `json:"last_90"`
}

// UnitDetail is the flat per-unit echo, sourced from portfolio unit details
// with the units dataset as fallback.
type UnitDetail struct {
	Unit       string              `json:"unit"`
	Floorplan  string              `json:"floorplan,omitempty"`
	Sqft       *int                `json:"sqft,omitempty"`
	Status     string              `json:"status,omitempty"`
	MarketRent decimal.NullDecimal `json:"market_rent"`
}

// RawRows echoes each dataset's stored rows verbatim so drill-down views can
// show the data behind an aggregate without a second round trip. Field names
// follow the provider's payload keys.
type RawRows struct {
	Leasing     []*models.LeasingRow             `json:"leasing"`
	MMR         []*models.MMRRow                 `json:"MMRData"`
	Tradeouts   []*models.TradeoutRow            `json:"unitbyunittradeout"`
	UnitDetails []*models.PortfolioUnitDetailRow `json:"portfolioUnitDetails"`
	Units       []*models.UnitRow                `json:"units"`
	UnitMix     []*models.UnitMixRow             `json:"unitmix"`
	Pricing     []*models.PricingRow             `json:"pricing"`
	RecentRents []*models.RecentRentRow          `json:"recentrents"`
}

// Payload is the full dashboard snapshot. It is derived entirely from the
// raw dataset tables and rebuilt wholesale; consumers never see a half
// updated snapshot.
type Payload struct {
	BuiltAt         time.Time                      `json:"built_at"`
	AsOf            string                         `json:"as_of"` // UTC "2006-01-02"
	Properties      []*PropertyStatus              `json:"properties"`
	Tradeouts       map[string]*TradeoutSummary    `json:"tradeouts"`
	UnitMix         map[string][]*FloorplanMix     `json:"unit_mix"`
	RecentRents     map[string][]*RecentSignedRent `json:"recent_rents"`
	Velocity        map[string]*VelocitySummary    `json:"velocity"`
	Units           map[string][]*UnitDetail       `json:"units"`
	Raw             *RawRows                       `json:"raw"`
	SourceRowCounts map[string]int                 `json:"source_row_counts"`
	Diagnostics     []string                       `json:"diagnostics"`
}
