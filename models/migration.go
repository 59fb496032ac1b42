package models

import (
	"context"
	"log"

	"bitbucket.org/stoagroup/leasing_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&LeasingRow{}, &MMRRow{}, &TradeoutRow{}, &PortfolioUnitDetailRow{},
		&UnitRow{}, &UnitMixRow{}, &PricingRow{}, &RecentRentRow{},
		&LeasingSyncLog{}, &LeasingColumnAlias{}, &LeasingSyncRun{},
		&Project{}, &Bank{}, &Person{}, &Loan{}, &Covenant{},
		&User{},
	)
	if err != nil {
		log.Fatal(err)
	}

	if err := SeedColumnAliases(context.Background(), DefaultAliasSeeds()); err != nil {
		log.Fatal(err)
	}
}

// DefaultAliasSeeds maps each dataset's canonical fields to the header
// spellings the provider has shipped so far, in resolution order. New
// spellings get registered at runtime and land after these.
func DefaultAliasSeeds() map[string]map[string][]string {
	return map[string]map[string][]string{
		"leasing": {
			"property":  {"Property", "Property Name"},
			"unit":      {"Unit", "Unit Number", "Unit #"},
			"floorplan": {"Floorplan", "Floor Plan", "Unit Type"},
			"leaseDate": {"Lease Date", "Lease Start Date", "Date"},
			"leaseType": {"Lease Type", "Type"},
			"rent":      {"Rent", "Lease Rent", "Effective Rent"},
			"budget":    {"Budget", "Budgeted Rent"},
		},
		"MMRData": {
			"property":  {"Property", "Property Name"},
			"month":     {"Month", "Report Month"},
			"mmrOcc":    {"MMR Occ", "Occupied", "Occupied Units"},
			"mmrUnits":  {"MMR Units", "Total Units", "Units"},
			"leased":    {"Leased", "Leased Units"},
			"available": {"Available", "Available Units"},
			"budget":    {"Budget", "Budgeted Occupancy"},
			"stage":     {"Stage", "Property Stage"},
		},
		"unitbyunittradeout": {
			"property":    {"Property", "Property Name"},
			"unit":        {"Unit", "Unit Number"},
			"month":       {"Month"},
			"leaseType":   {"Lease Type", "Type"},
			"priorRent":   {"Prior Rent", "Previous Rent", "Old Rent"},
			"newRent":     {"New Rent", "Current Rent"},
			"tradeoutPct": {"Tradeout %", "Trade Out %", "Tradeout Percent"},
			"tradeoutAmt": {"Tradeout $", "Trade Out $", "Tradeout Amount"},
		},
		"portfolioUnitDetails": {
			"property":   {"Property", "Property Name"},
			"unit":       {"Unit", "Unit Number"},
			"floorplan":  {"Floorplan", "Floor Plan"},
			"sqft":       {"Sqft", "SqFt", "Square Feet"},
			"status":     {"Status", "Unit Status"},
			"stage":      {"Stage", "Property Stage"},
			"marketRent": {"Market Rent", "Market Rate"},
		},
		"units": {
			"property":  {"Property", "Property Name"},
			"unit":      {"Unit", "Unit Number"},
			"floorplan": {"Floorplan", "Floor Plan"},
			"status":    {"Status", "Unit Status"},
			"sqft":      {"Sqft", "SqFt", "Square Feet"},
			"rent":      {"Rent", "Current Rent", "Lease Rent"},
		},
		"unitmix": {
			"property":   {"Property", "Property Name"},
			"floorplan":  {"Floorplan", "Floor Plan", "Unit Type"},
			"unitCount":  {"Unit Count", "Units", "# Units"},
			"avgSqft":    {"Avg Sqft", "Average Sqft", "Avg SqFt"},
			"marketRent": {"Market Rent", "Market Rate", "Avg Market Rent"},
		},
		"pricing": {
			"property":       {"Property", "Property Name"},
			"floorplan":      {"Floorplan", "Floor Plan", "Unit Type"},
			"month":          {"Month", "Pricing Month"},
			"price":          {"Price", "Asking Rent", "Asking Price"},
			"availableUnits": {"Available Units", "Available", "# Available"},
		},
		"recentrents": {
			"property":   {"Property", "Property Name"},
			"unit":       {"Unit", "Unit Number"},
			"floorplan":  {"Floorplan", "Floor Plan", "Unit Type"},
			"rent":       {"Rent", "Signed Rent", "Lease Rent"},
			"signedDate": {"Signed Date", "Sign Date", "Lease Signed"},
		},
	}
}
