package dashboard

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

func cellDecimal(d decimal.NullDecimal) interface{} {
	if !d.Valid {
		return ""
	}
	f, _ := d.Decimal.Float64()
	return f
}

func cellInt(v *int) interface{} {
	if v == nil {
		return ""
	}
	return *v
}

// ExportExcel renders a payload as a workbook with one sheet per dashboard
// section.
func ExportExcel(payload *Payload) (*excelize.File, error) {
	f := excelize.NewFile()

	sheet := "Properties"
	f.SetSheetName("Sheet1", sheet)
	headers := []string{"Property", "Stage", "Source", "Units", "Occupied", "Leased", "Available",
		"Occupancy", "Budgeted Occ", "Delta", "Avg Leased Rent"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}
	for i, ps := range payload.Properties {
		row := i + 2
		values := []interface{}{
			ps.Property, ps.Stage, ps.StatusSource,
			cellInt(ps.Units), cellInt(ps.Occupied), cellInt(ps.Leased), cellInt(ps.Available),
			cellDecimal(ps.Occupancy), cellDecimal(ps.BudgetedOcc),
			cellDecimal(ps.OccupancyAndBudgetDelta), cellDecimal(ps.AverageLeasedRent),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			f.SetCellValue(sheet, cell, v)
		}
	}

	sheet = "Tradeouts"
	if _, err := f.NewSheet(sheet); err != nil {
		return nil, err
	}
	headers = []string{"Property", "Month", "Count", "New", "Renewal", "Avg Tradeout %", "Avg Tradeout $"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}
	row := 2
	for _, ps := range payload.Properties {
		summary, ok := payload.Tradeouts[ps.Property]
		if !ok {
			continue
		}
		for _, m := range summary.Months {
			values := []interface{}{summary.Property, m.Month, m.Count, m.NewCount, m.RenewalCount,
				cellDecimal(m.AvgTradeoutPct), cellDecimal(m.AvgTradeoutAmt)}
			for col, v := range values {
				cell, _ := excelize.CoordinatesToCellName(col+1, row)
				f.SetCellValue(sheet, cell, v)
			}
			row++
		}
	}

	sheet = "UnitMix"
	if _, err := f.NewSheet(sheet); err != nil {
		return nil, err
	}
	headers = []string{"Property", "Floorplan", "Unit Count", "Avg Sqft", "Market Rent", "Current Price"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}
	row = 2
	for _, ps := range payload.Properties {
		for _, mix := range payload.UnitMix[ps.Property] {
			values := []interface{}{ps.Property, mix.Floorplan, cellInt(mix.UnitCount),
				cellInt(mix.AvgSqft), cellDecimal(mix.MarketRent), cellDecimal(mix.CurrentPrice)}
			for col, v := range values {
				cell, _ := excelize.CoordinatesToCellName(col+1, row)
				f.SetCellValue(sheet, cell, v)
			}
			row++
		}
	}

	sheet = "Velocity"
	if _, err := f.NewSheet(sheet); err != nil {
		return nil, err
	}
	headers = []string{"Property", "Last 30", "Last 60", "Last 90"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}
	row = 2
	for _, ps := range payload.Properties {
		v, ok := payload.Velocity[ps.Property]
		if !ok {
			v = &VelocitySummary{Property: ps.Property}
		}
		values := []interface{}{ps.Property, v.Last30, v.Last60, v.Last90}
		for col, val := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			f.SetCellValue(sheet, cell, val)
		}
		row++
	}

	if len(payload.Diagnostics) > 0 {
		sheet = "Diagnostics"
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
		for i, d := range payload.Diagnostics {
			f.SetCellValue(sheet, fmt.Sprintf("A%d", i+1), d)
		}
	}

	return f, nil
}
