package dashboard

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Named KPIs served by the accessor endpoint.
const (
	KPIOccupancy               = "occupancy"
	KPIOccupancyAndBudgetDelta = "occupancyAndBudgetDelta"
	KPILeased                  = "leased"
	KPIAvailable               = "available"
	KPIVelocity                = "velocity"
	KPIDeltaToBudget           = "deltaToBudget"
	KPIAverageLeasedRent       = "averageLeasedRent"
)

var kpiNames = []string{
	KPIOccupancy,
	KPIOccupancyAndBudgetDelta,
	KPILeased,
	KPIAvailable,
	KPIVelocity,
	KPIDeltaToBudget,
	KPIAverageLeasedRent,
}

// KPINames lists the supported metric names.
func KPINames() []string {
	out := make([]string, len(kpiNames))
	copy(out, kpiNames)
	return out
}

// KPIResult carries one metric across properties plus a portfolio rollup.
// Per-property values are null when the underlying inputs are missing.
type KPIResult struct {
	Name       string                 `json:"name"`
	AsOf       string                 `json:"as_of"`
	Properties map[string]interface{} `json:"properties"`
	Portfolio  interface{}            `json:"portfolio"`
}

// KPI extracts one named metric from a payload, optionally filtered to a
// single property. Unknown metric names are an error; an unknown property
// yields an empty result rather than an error.
func KPI(payload *Payload, name string, property string) (*KPIResult, error) {
	name = strings.TrimSpace(name)
	known := false
	for _, n := range kpiNames {
		if n == name {
			known = true
			break
		}
	}
	if !known {
		return nil, fmt.Errorf("unknown kpi %q", name)
	}

	result := &KPIResult{
		Name:       name,
		AsOf:       payload.AsOf,
		Properties: make(map[string]interface{}),
	}

	include := func(p string) bool {
		return property == "" || p == property
	}

	switch name {
	case KPIOccupancy:
		var occ, units int64
		counted := false
		for _, ps := range payload.Properties {
			if !include(ps.Property) {
				continue
			}
			result.Properties[ps.Property] = nullableDecimal(ps.Occupancy)
			if ps.Occupied != nil && ps.Units != nil && *ps.Units > 0 {
				occ += int64(*ps.Occupied)
				units += int64(*ps.Units)
				counted = true
			}
		}
		if counted {
			result.Portfolio = decimal.NewFromInt(occ).DivRound(decimal.NewFromInt(units), ratioPlaces)
		}

	case KPIOccupancyAndBudgetDelta:
		var sum decimal.Decimal
		count := 0
		for _, ps := range payload.Properties {
			if !include(ps.Property) {
				continue
			}
			result.Properties[ps.Property] = nullableDecimal(ps.OccupancyAndBudgetDelta)
			if ps.OccupancyAndBudgetDelta.Valid {
				sum = sum.Add(ps.OccupancyAndBudgetDelta.Decimal)
				count++
			}
		}
		if count > 0 {
			result.Portfolio = sum.DivRound(decimal.NewFromInt(int64(count)), ratioPlaces)
		}

	case KPILeased:
		result.Portfolio = sumCounts(payload, property, result.Properties, func(ps *PropertyStatus) *int { return ps.Leased })

	case KPIAvailable:
		result.Portfolio = sumCounts(payload, property, result.Properties, func(ps *PropertyStatus) *int { return ps.Available })

	case KPIVelocity:
		total := &VelocitySummary{Property: "portfolio"}
		for _, ps := range payload.Properties {
			if !include(ps.Property) {
				continue
			}
			v, ok := payload.Velocity[ps.Property]
			if !ok {
				result.Properties[ps.Property] = &VelocitySummary{Property: ps.Property}
				continue
			}
			result.Properties[ps.Property] = v
			total.Last30 += v.Last30
			total.Last60 += v.Last60
			total.Last90 += v.Last90
		}
		result.Portfolio = total

	case KPIDeltaToBudget:
		var sum int64
		counted := false
		for _, ps := range payload.Properties {
			if !include(ps.Property) {
				continue
			}
			delta := leasedUnitsDeltaToBudget(ps)
			if delta == nil {
				result.Properties[ps.Property] = nil
				continue
			}
			result.Properties[ps.Property] = *delta
			sum += int64(*delta)
			counted = true
		}
		if counted {
			result.Portfolio = sum
		}

	case KPIAverageLeasedRent:
		var sum decimal.Decimal
		count := 0
		for _, ps := range payload.Properties {
			if !include(ps.Property) {
				continue
			}
			result.Properties[ps.Property] = nullableDecimal(ps.AverageLeasedRent)
			if ps.AverageLeasedRent.Valid {
				sum = sum.Add(ps.AverageLeasedRent.Decimal)
				count++
			}
		}
		if count > 0 {
			result.Portfolio = sum.DivRound(decimal.NewFromInt(int64(count)), 2)
		}
	}

	return result, nil
}

// leasedUnitsDeltaToBudget is the whole-unit gap between leased units and
// the budgeted occupancy applied to the unit count.
func leasedUnitsDeltaToBudget(ps *PropertyStatus) *int {
	if ps.Leased == nil || ps.Units == nil || !ps.BudgetedOcc.Valid {
		return nil
	}
	budgeted := ps.BudgetedOcc.Decimal.Mul(decimal.NewFromInt(int64(*ps.Units))).Round(0)
	delta := int(int64(*ps.Leased) - budgeted.IntPart())
	return &delta
}

func sumCounts(payload *Payload, property string, out map[string]interface{}, pick func(*PropertyStatus) *int) interface{} {
	var sum int64
	counted := false
	for _, ps := range payload.Properties {
		if property != "" && ps.Property != property {
			continue
		}
		v := pick(ps)
		if v == nil {
			out[ps.Property] = nil
			continue
		}
		out[ps.Property] = *v
		sum += int64(*v)
		counted = true
	}
	if !counted {
		return nil
	}
	return sum
}

func nullableDecimal(d decimal.NullDecimal) interface{} {
	if !d.Valid {
		return nil
	}
	return d.Decimal
}
