package leasingsync

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"bitbucket.org/stoagroup/leasing_backend/utils"
)

// Coercion never fails a row: a value that cannot be parsed becomes NULL and
// the row keeps its remaining fields.

// fieldValue extracts the canonical field's raw cell as a trimmed string.
// Unresolved fields and missing cells come back empty.
func fieldValue(row RawRow, index FieldIndex, field string) string {
	header, ok := index[field]
	if !ok {
		return ""
	}
	return rawString(row[header])
}

func coerceString(row RawRow, index FieldIndex, field string) string {
	return fieldValue(row, index, field)
}

func coerceDecimal(row RawRow, index FieldIndex, field string) decimal.NullDecimal {
	s := fieldValue(row, index, field)
	if s == "" {
		return decimal.NullDecimal{}
	}
	d, err := utils.ParseDecimal(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

func coerceInt(row RawRow, index FieldIndex, field string) *int {
	s := fieldValue(row, index, field)
	if s == "" {
		return nil
	}
	s = strings.ReplaceAll(s, ",", "")
	if n, err := strconv.Atoi(s); err == nil {
		return &n
	}
	// exports sometimes ship counts as "12.0"
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int(f)) {
		n := int(f)
		return &n
	}
	return nil
}

// dateLayouts covers the formats seen across provider exports.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	"Jan 2, 2006",
}

func coerceDate(row RawRow, index FieldIndex, field string) *time.Time {
	s := fieldValue(row, index, field)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			day := utils.TruncateToDayUTC(t)
			return &day
		}
	}
	return nil
}

// monthLayouts are tried for month-grained columns before falling back to
// full date parsing.
var monthLayouts = []string{
	"2006-01",
	"Jan 2006",
	"January 2006",
	"01/2006",
	"1/2006",
}

func coerceMonth(row RawRow, index FieldIndex, field string) string {
	s := fieldValue(row, index, field)
	if s == "" {
		return ""
	}
	for _, layout := range monthLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return utils.MonthKey(t)
		}
	}
	if t := coerceDate(row, index, field); t != nil {
		return utils.MonthKey(*t)
	}
	return ""
}
