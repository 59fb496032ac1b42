package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// The eight raw datasets pushed by the analytics provider. Each row keeps the
// canonical (post-alias-resolution) fields as typed nullable columns; values
// that fail coercion are stored as NULL rather than rejecting the row.
// Raw rows are authoritative; the dashboard snapshot is always derivable from them.

type LeasingRow struct {
	ID        int                 `gorm:"primary_key" json:"id"`
	Property  string              `gorm:"index;size:200" json:"property"`
	Unit      string              `gorm:"size:50" json:"unit"`
	Floorplan string              `gorm:"size:100" json:"floorplan"`
	LeaseDate *time.Time          `gorm:"index" json:"lease_date"`
	LeaseType string              `gorm:"size:50" json:"lease_type"`
	Rent      decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"rent"`
	Budget    decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"budget"`
	CreatedAt time.Time           `gorm:"autoCreateTime" json:"created_at"`
}

type MMRRow struct {
	ID        int                 `gorm:"primary_key" json:"id"`
	Property  string              `gorm:"index;size:200" json:"property"`
	Month     string              `gorm:"index;size:7" json:"month"` // "2006-01"
	MMROcc    *int                `json:"mmr_occ"`
	MMRUnits  *int                `json:"mmr_units"`
	Leased    *int                `json:"leased"`
	Available *int                `json:"available"`
	Budget    decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"budget"`
	Stage     string              `gorm:"size:100" json:"stage"`
	CreatedAt time.Time           `gorm:"autoCreateTime" json:"created_at"`
}

type TradeoutRow struct {
	ID          int                 `gorm:"primary_key" json:"id"`
	Property    string              `gorm:"index;size:200" json:"property"`
	Unit        string              `gorm:"size:50" json:"unit"`
	Month       string              `gorm:"index;size:7" json:"month"`
	LeaseType   string              `gorm:"size:50" json:"lease_type"`
	PriorRent   decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"prior_rent"`
	NewRent     decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"new_rent"`
	TradeoutPct decimal.NullDecimal `gorm:"type:decimal(8,4)" json:"tradeout_pct"`
	TradeoutAmt decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"tradeout_amt"`
	CreatedAt   time.Time           `gorm:"autoCreateTime" json:"created_at"`
}

type PortfolioUnitDetailRow struct {
	ID         int                 `gorm:"primary_key" json:"id"`
	Property   string              `gorm:"index;size:200" json:"property"`
	Unit       string              `gorm:"size:50" json:"unit"`
	Floorplan  string              `gorm:"size:100" json:"floorplan"`
	Sqft       *int                `json:"sqft"`
	Status     string              `gorm:"size:100" json:"status"`
	Stage      string              `gorm:"size:100" json:"stage"`
	MarketRent decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"market_rent"`
	CreatedAt  time.Time           `gorm:"autoCreateTime" json:"created_at"`
}

type UnitRow struct {
	ID        int                 `gorm:"primary_key" json:"id"`
	Property  string              `gorm:"index;size:200" json:"property"`
	Unit      string              `gorm:"size:50" json:"unit"`
	Floorplan string              `gorm:"size:100" json:"floorplan"`
	Sqft      *int                `json:"sqft"`
	Status    string              `gorm:"size:100" json:"status"`
	Rent      decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"rent"`
	CreatedAt time.Time           `gorm:"autoCreateTime" json:"created_at"`
}

type UnitMixRow struct {
	ID         int                 `gorm:"primary_key" json:"id"`
	Property   string              `gorm:"index;size:200" json:"property"`
	Floorplan  string              `gorm:"size:100" json:"floorplan"`
	UnitCount  *int                `json:"unit_count"`
	AvgSqft    *int                `json:"avg_sqft"`
	MarketRent decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"market_rent"`
	CreatedAt  time.Time           `gorm:"autoCreateTime" json:"created_at"`
}

type PricingRow struct {
	ID             int                 `gorm:"primary_key" json:"id"`
	Property       string              `gorm:"index;size:200" json:"property"`
	Floorplan      string              `gorm:"size:100" json:"floorplan"`
	Month          string              `gorm:"index;size:7" json:"month"`
	Price          decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"price"`
	AvailableUnits *int                `json:"available_units"`
	CreatedAt      time.Time           `gorm:"autoCreateTime" json:"created_at"`
}

type RecentRentRow struct {
	ID         int                 `gorm:"primary_key" json:"id"`
	Property   string              `gorm:"index;size:200" json:"property"`
	Floorplan  string              `gorm:"size:100" json:"floorplan"`
	Unit       string              `gorm:"size:50" json:"unit"`
	Rent       decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"rent"`
	SignedDate *time.Time          `json:"signed_date"`
	CreatedAt  time.Time           `gorm:"autoCreateTime" json:"created_at"`
}

func (LeasingRow) TableName() string             { return "leasing_rows" }
func (MMRRow) TableName() string                 { return "mmr_rows" }
func (TradeoutRow) TableName() string            { return "tradeout_rows" }
func (PortfolioUnitDetailRow) TableName() string { return "portfolio_unit_detail_rows" }
func (UnitRow) TableName() string                { return "unit_rows" }
func (UnitMixRow) TableName() string             { return "unit_mix_rows" }
func (PricingRow) TableName() string             { return "pricing_rows" }
func (RecentRentRow) TableName() string          { return "recent_rent_rows" }
