package dashboard

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"bitbucket.org/stoagroup/leasing_backend/models"
	"bitbucket.org/stoagroup/leasing_backend/utils"
)

var oneHundred = decimal.NewFromInt(100)

// ratio precision in decimal places
const ratioPlaces = 4

// Build aggregates the raw dataset rows into a dashboard payload. It is a
// pure function of its inputs: same sources, as-of day, and precedence give
// a byte-identical payload. Any unit-level inconsistency degrades to a null
// value plus a diagnostics entry rather than failing the build.
func Build(src *SourceData, asOf time.Time, precedence []string) *Payload {
	asOfDay := utils.TruncateToDayUTC(asOf)
	b := &builder{src: src, asOf: asOfDay, precedence: precedence}
	return b.build()
}

type builder struct {
	src         *SourceData
	asOf        time.Time
	precedence  []string
	diagnostics []string
}

func (b *builder) diag(format string, args ...interface{}) {
	b.diagnostics = append(b.diagnostics, fmt.Sprintf(format, args...))
}

func (b *builder) build() *Payload {
	recents := b.buildRecentRents()
	payload := &Payload{
		BuiltAt:         time.Now().UTC(),
		AsOf:            b.asOf.Format("2006-01-02"),
		Tradeouts:       b.buildTradeouts(),
		UnitMix:         b.buildUnitMix(recents),
		RecentRents:     recents,
		Velocity:        b.buildVelocity(),
		Units:           b.buildUnits(),
		Raw:             b.rawRows(),
		SourceRowCounts: b.sourceRowCounts(),
	}
	payload.Properties = b.buildProperties()
	payload.Diagnostics = b.diagnostics
	if payload.Diagnostics == nil {
		payload.Diagnostics = []string{}
	}
	return payload
}

// rawRows passes the source tables through untouched for drill-down.
func (b *builder) rawRows() *RawRows {
	return &RawRows{
		Leasing:     b.src.Leasing,
		MMR:         b.src.MMR,
		Tradeouts:   b.src.Tradeouts,
		UnitDetails: b.src.UnitDetails,
		Units:       b.src.Units,
		UnitMix:     b.src.UnitMix,
		Pricing:     b.src.Pricing,
		RecentRents: b.src.RecentRents,
	}
}

func (b *builder) sourceRowCounts() map[string]int {
	return map[string]int{
		"leasing":              len(b.src.Leasing),
		"MMRData":              len(b.src.MMR),
		"unitbyunittradeout":   len(b.src.Tradeouts),
		"portfolioUnitDetails": len(b.src.UnitDetails),
		"units":                len(b.src.Units),
		"unitmix":              len(b.src.UnitMix),
		"pricing":              len(b.src.Pricing),
		"recentrents":          len(b.src.RecentRents),
	}
}

// propertyNames collects every property mentioned by any source, sorted.
func (b *builder) propertyNames() []string {
	seen := make(map[string]bool)
	add := func(p string) {
		p = strings.TrimSpace(p)
		if p != "" {
			seen[p] = true
		}
	}
	for _, r := range b.src.Leasing {
		add(r.Property)
	}
	for _, r := range b.src.MMR {
		add(r.Property)
	}
	for _, r := range b.src.Tradeouts {
		add(r.Property)
	}
	for _, r := range b.src.UnitDetails {
		add(r.Property)
	}
	for _, r := range b.src.Units {
		add(r.Property)
	}
	for _, r := range b.src.UnitMix {
		add(r.Property)
	}
	for _, r := range b.src.Pricing {
		add(r.Property)
	}
	for _, r := range b.src.RecentRents {
		add(r.Property)
	}

	names := make([]string, 0, len(seen))
	for p := range seen {
		names = append(names, p)
	}
	sort.Strings(names)
	return names
}

// asOfMonth is the snapshot's month bucket; month-keyed rows after it are
// out of range for the requested view.
func (b *builder) asOfMonth() string {
	return utils.MonthKey(b.asOf)
}

// latestMMRByProperty keeps each property's most recent MMR month at or
// before the as-of day.
func (b *builder) latestMMRByProperty() map[string]*models.MMRRow {
	cutoff := b.asOfMonth()
	latest := make(map[string]*models.MMRRow)
	for _, r := range b.src.MMR {
		p := strings.TrimSpace(r.Property)
		if p == "" || r.Month > cutoff {
			continue
		}
		if cur, ok := latest[p]; !ok || r.Month > cur.Month {
			latest[p] = r
		}
	}
	return latest
}

type statusCounts struct {
	units     int
	occupied  int
	leased    int
	available int
}

// pudStatusCounts derives occupancy counts from unit-level statuses. A unit
// counts as leased when it is occupied or carries a signed lease on a vacant
// unit.
func (b *builder) pudStatusCounts() map[string]*statusCounts {
	counts := make(map[string]*statusCounts)
	for _, r := range b.src.UnitDetails {
		p := strings.TrimSpace(r.Property)
		if p == "" {
			continue
		}
		c, ok := counts[p]
		if !ok {
			c = &statusCounts{}
			counts[p] = c
		}
		c.units++
		status := strings.ToLower(r.Status)
		switch {
		case strings.Contains(status, "occupied"):
			c.occupied++
			c.leased++
		case strings.Contains(status, "leased"):
			c.leased++
		case strings.Contains(status, "vacant") || strings.Contains(status, "available"):
			c.available++
		}
	}
	return counts
}

func ratio(num, den int) decimal.NullDecimal {
	if den == 0 {
		return decimal.NullDecimal{}
	}
	d := decimal.NewFromInt(int64(num)).DivRound(decimal.NewFromInt(int64(den)), ratioPlaces)
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

// normalizeOcc interprets a budget/occupancy figure as a fraction; values
// above 1 are treated as percentages.
func normalizeOcc(d decimal.Decimal) decimal.Decimal {
	if d.GreaterThan(decimal.NewFromInt(1)) {
		return d.DivRound(oneHundred, ratioPlaces)
	}
	return d
}

func (b *builder) buildProperties() []*PropertyStatus {
	mmr := b.latestMMRByProperty()
	pud := b.pudStatusCounts()
	budgets := make(map[string]decimal.NullDecimal)
	for _, proj := range b.src.Projects {
		if proj.BudgetedOcc.Valid {
			budgets[strings.TrimSpace(proj.Name)] = proj.BudgetedOcc
		}
	}
	avgRents := b.averageLeasedRents()

	precedence := make([]string, 0, len(b.precedence))
	for _, source := range b.precedence {
		if source == "mmr" || source == "pud" {
			precedence = append(precedence, source)
		} else {
			b.diag("status: unknown source %q in precedence", source)
		}
	}

	var results []*PropertyStatus
	for _, property := range b.propertyNames() {
		ps := &PropertyStatus{Property: property}

		for _, source := range precedence {
			switch source {
			case "mmr":
				row, ok := mmr[property]
				if !ok {
					continue
				}
				ps.StatusSource = "mmr"
				ps.Stage = row.Stage
				ps.Units = row.MMRUnits
				ps.Occupied = row.MMROcc
				ps.Leased = row.Leased
				ps.Available = row.Available
				if row.Budget.Valid {
					ps.BudgetedOcc = decimal.NullDecimal{Decimal: normalizeOcc(row.Budget.Decimal), Valid: true}
				}
			case "pud":
				c, ok := pud[property]
				if !ok {
					continue
				}
				ps.StatusSource = "pud"
				ps.Units = &c.units
				ps.Occupied = &c.occupied
				ps.Leased = &c.leased
				ps.Available = &c.available
				for _, r := range b.src.UnitDetails {
					if strings.TrimSpace(r.Property) == property && r.Stage != "" {
						ps.Stage = r.Stage
						break
					}
				}
			}
			break
		}

		if ps.StatusSource == "" {
			b.diag("status: no source carries property %q", property)
		}

		if !ps.BudgetedOcc.Valid {
			if budget, ok := budgets[property]; ok {
				ps.BudgetedOcc = decimal.NullDecimal{Decimal: normalizeOcc(budget.Decimal), Valid: true}
			}
		}

		if ps.Units != nil && ps.Occupied != nil {
			if *ps.Units == 0 {
				b.diag("occupancy: zero units for property %q", property)
			} else {
				ps.Occupancy = ratio(*ps.Occupied, *ps.Units)
			}
		}
		if ps.Units != nil && ps.Leased != nil && *ps.Units > 0 {
			ps.LeasedPct = ratio(*ps.Leased, *ps.Units)
		}
		if ps.Occupancy.Valid && ps.BudgetedOcc.Valid {
			ps.OccupancyAndBudgetDelta = decimal.NullDecimal{
				Decimal: ps.Occupancy.Decimal.Sub(ps.BudgetedOcc.Decimal),
				Valid:   true,
			}
		}
		if rent, ok := avgRents[property]; ok {
			ps.AverageLeasedRent = rent
		}

		results = append(results, ps)
	}
	return results
}

func (b *builder) averageLeasedRents() map[string]decimal.NullDecimal {
	sums := make(map[string]decimal.Decimal)
	counts := make(map[string]int)
	for _, r := range b.src.Leasing {
		p := strings.TrimSpace(r.Property)
		if p == "" || !r.Rent.Valid {
			continue
		}
		sums[p] = sums[p].Add(r.Rent.Decimal)
		counts[p]++
	}
	avgs := make(map[string]decimal.NullDecimal, len(sums))
	for p, sum := range sums {
		avgs[p] = decimal.NullDecimal{
			Decimal: sum.DivRound(decimal.NewFromInt(int64(counts[p])), 2),
			Valid:   true,
		}
	}
	return avgs
}

// classifyLeaseType maps a lease-type label to new vs renewal. The second
// result is false for blank or unrecognized labels.
func classifyLeaseType(leaseType string) (renewal bool, ok bool) {
	s := strings.ToLower(strings.TrimSpace(leaseType))
	switch {
	case s == "":
		return false, false
	case strings.Contains(s, "renew") || strings.Contains(s, "transfer"):
		return true, true
	case strings.Contains(s, "new"):
		return false, true
	default:
		return false, false
	}
}

// tradeoutLeaseTypes builds the (property, unit) -> lease-type lookup from
// the tradeout rows themselves, so rows whose own label is blank still
// classify when a sibling row for the same unit carries one.
func (b *builder) tradeoutLeaseTypes() map[string]bool {
	lookup := make(map[string]bool)
	for _, r := range b.src.Tradeouts {
		p := strings.TrimSpace(r.Property)
		if p == "" {
			continue
		}
		if renewal, ok := classifyLeaseType(r.LeaseType); ok {
			lookup[p+"\x00"+r.Unit] = renewal
		}
	}
	return lookup
}

func (b *builder) buildTradeouts() map[string]*TradeoutSummary {
	type agg struct {
		count        int
		newCount     int
		renewalCount int
		pctSum       decimal.Decimal
		pctCount     int
		amtSum       decimal.Decimal
		amtCount     int
	}
	overall := make(map[string]*agg)
	monthly := make(map[string]map[string]*agg)
	cutoff := b.asOfMonth()
	leaseTypes := b.tradeoutLeaseTypes()

	for _, r := range b.src.Tradeouts {
		p := strings.TrimSpace(r.Property)
		if p == "" || r.Month > cutoff {
			continue
		}
		renewal, known := classifyLeaseType(r.LeaseType)
		if !known {
			renewal, known = leaseTypes[p+"\x00"+r.Unit]
			if !known {
				b.diag("tradeout: no lease type for unit %q of %q", r.Unit, p)
			}
		}
		o, ok := overall[p]
		if !ok {
			o = &agg{}
			overall[p] = o
			monthly[p] = make(map[string]*agg)
		}
		m, ok := monthly[p][r.Month]
		if !ok {
			m = &agg{}
			monthly[p][r.Month] = m
		}
		for _, a := range []*agg{o, m} {
			a.count++
			if known {
				if renewal {
					a.renewalCount++
				} else {
					a.newCount++
				}
			}
			if r.TradeoutPct.Valid {
				a.pctSum = a.pctSum.Add(r.TradeoutPct.Decimal)
				a.pctCount++
			}
			if r.TradeoutAmt.Valid {
				a.amtSum = a.amtSum.Add(r.TradeoutAmt.Decimal)
				a.amtCount++
			}
		}
	}

	avg := func(sum decimal.Decimal, count int) decimal.NullDecimal {
		if count == 0 {
			return decimal.NullDecimal{}
		}
		return decimal.NullDecimal{Decimal: sum.DivRound(decimal.NewFromInt(int64(count)), ratioPlaces), Valid: true}
	}

	results := make(map[string]*TradeoutSummary, len(overall))
	for p, o := range overall {
		summary := &TradeoutSummary{
			Property:       p,
			Count:          o.count,
			NewCount:       o.newCount,
			RenewalCount:   o.renewalCount,
			AvgTradeoutPct: avg(o.pctSum, o.pctCount),
			AvgTradeoutAmt: avg(o.amtSum, o.amtCount),
		}
		months := make([]string, 0, len(monthly[p]))
		for m := range monthly[p] {
			months = append(months, m)
		}
		sort.Strings(months)
		for _, m := range months {
			a := monthly[p][m]
			summary.Months = append(summary.Months, &TradeoutMonth{
				Month:          m,
				Count:          a.count,
				NewCount:       a.newCount,
				RenewalCount:   a.renewalCount,
				AvgTradeoutPct: avg(a.pctSum, a.pctCount),
				AvgTradeoutAmt: avg(a.amtSum, a.amtCount),
			})
		}
		results[p] = summary
	}
	return results
}

func (b *builder) buildUnitMix(recents map[string][]*RecentSignedRent) map[string][]*FloorplanMix {
	// pricing grouped by property+floorplan, ordered by month
	series := make(map[string]map[string][]*MonthPrice)
	cutoff := b.asOfMonth()
	for _, r := range b.src.Pricing {
		p := strings.TrimSpace(r.Property)
		if p == "" || r.Month > cutoff {
			continue
		}
		if series[p] == nil {
			series[p] = make(map[string][]*MonthPrice)
		}
		series[p][r.Floorplan] = append(series[p][r.Floorplan], &MonthPrice{
			Month:          r.Month,
			Price:          r.Price,
			AvailableUnits: r.AvailableUnits,
		})
	}
	for _, plans := range series {
		for _, points := range plans {
			sort.Slice(points, func(i, j int) bool { return points[i].Month < points[j].Month })
		}
	}

	results := make(map[string][]*FloorplanMix)
	seen := make(map[string]map[string]bool)
	for _, r := range b.src.UnitMix {
		p := strings.TrimSpace(r.Property)
		if p == "" {
			continue
		}
		if seen[p] == nil {
			seen[p] = make(map[string]bool)
		}
		seen[p][r.Floorplan] = true
		mix := &FloorplanMix{
			Floorplan:  r.Floorplan,
			UnitCount:  r.UnitCount,
			AvgSqft:    r.AvgSqft,
			MarketRent: r.MarketRent,
		}
		if points := series[p][r.Floorplan]; len(points) > 0 {
			mix.PriceSeries = points
			mix.CurrentPrice = points[len(points)-1].Price
		}
		results[p] = append(results[p], mix)
	}

	// floorplans priced but absent from the mix still surface
	pricedProps := make([]string, 0, len(series))
	for p := range series {
		pricedProps = append(pricedProps, p)
	}
	sort.Strings(pricedProps)
	for _, p := range pricedProps {
		plans := make([]string, 0, len(series[p]))
		for plan := range series[p] {
			plans = append(plans, plan)
		}
		sort.Strings(plans)
		for _, plan := range plans {
			if seen[p] != nil && seen[p][plan] {
				continue
			}
			points := series[p][plan]
			b.diag("unitmix: floorplan %q of %q priced but missing from unit mix", plan, p)
			results[p] = append(results[p], &FloorplanMix{
				Floorplan:    plan,
				PriceSeries:  points,
				CurrentPrice: points[len(points)-1].Price,
			})
		}
	}

	// recent signed rents attach to their plan's block
	recentProps := make([]string, 0, len(recents))
	for p := range recents {
		recentProps = append(recentProps, p)
	}
	sort.Strings(recentProps)
	for _, p := range recentProps {
		byPlan := make(map[string][]*RecentSignedRent)
		for _, rent := range recents[p] {
			if rent.Floorplan == "" {
				continue
			}
			byPlan[rent.Floorplan] = append(byPlan[rent.Floorplan], rent)
		}
		if len(byPlan) == 0 {
			continue
		}
		for _, mix := range results[p] {
			mix.RecentRents = byPlan[mix.Floorplan]
			delete(byPlan, mix.Floorplan)
		}
		orphans := make([]string, 0, len(byPlan))
		for plan := range byPlan {
			orphans = append(orphans, plan)
		}
		sort.Strings(orphans)
		for _, plan := range orphans {
			b.diag("unitmix: recent rents for floorplan %q of %q have no mix entry", plan, p)
		}
	}

	for _, mixes := range results {
		sort.Slice(mixes, func(i, j int) bool { return mixes[i].Floorplan < mixes[j].Floorplan })
	}
	return results
}

const recentRentLimit = 10

func (b *builder) buildRecentRents() map[string][]*RecentSignedRent {
	results := make(map[string][]*RecentSignedRent)
	for _, r := range b.src.RecentRents {
		p := strings.TrimSpace(r.Property)
		if p == "" {
			continue
		}
		if r.SignedDate != nil && r.SignedDate.After(b.asOf) {
			continue
		}
		results[p] = append(results[p], &RecentSignedRent{
			Unit:       r.Unit,
			Floorplan:  strings.TrimSpace(r.Floorplan),
			Rent:       r.Rent,
			SignedDate: r.SignedDate,
		})
	}
	for p, rents := range results {
		sort.Slice(rents, func(i, j int) bool {
			x, y := rents[i].SignedDate, rents[j].SignedDate
			switch {
			case x == nil && y == nil:
				return rents[i].Unit < rents[j].Unit
			case x == nil:
				return false
			case y == nil:
				return true
			case x.Equal(*y):
				return rents[i].Unit < rents[j].Unit
			default:
				return x.After(*y)
			}
		})
		if len(rents) > recentRentLimit {
			results[p] = rents[:recentRentLimit]
		}
	}
	return results
}

func (b *builder) buildVelocity() map[string]*VelocitySummary {
	results := make(map[string]*VelocitySummary)
	for _, r := range b.src.Leasing {
		p := strings.TrimSpace(r.Property)
		if p == "" || r.LeaseDate == nil {
			continue
		}
		// velocity counts new leases; renewals are not leasing activity
		if renewal, ok := classifyLeaseType(r.LeaseType); ok && renewal {
			continue
		}
		days := int(b.asOf.Sub(utils.TruncateToDayUTC(*r.LeaseDate)).Hours() / 24)
		if days < 0 || days >= 90 {
			continue
		}
		v, ok := results[p]
		if !ok {
			v = &VelocitySummary{Property: p}
			results[p] = v
		}
		v.Last90++
		if days < 60 {
			v.Last60++
		}
		if days < 30 {
			v.Last30++
		}
	}
	return results
}

func (b *builder) buildUnits() map[string][]*UnitDetail {
	results := make(map[string][]*UnitDetail)
	covered := make(map[string]bool)

	for _, r := range b.src.UnitDetails {
		p := strings.TrimSpace(r.Property)
		if p == "" {
			continue
		}
		covered[p] = true
		results[p] = append(results[p], &UnitDetail{
			Unit:       r.Unit,
			Floorplan:  r.Floorplan,
			Sqft:       r.Sqft,
			Status:     r.Status,
			MarketRent: r.MarketRent,
		})
	}

	// units dataset fills in properties the detail export misses
	for _, r := range b.src.Units {
		p := strings.TrimSpace(r.Property)
		if p == "" || covered[p] {
			continue
		}
		results[p] = append(results[p], &UnitDetail{
			Unit:      r.Unit,
			Floorplan: r.Floorplan,
			Status:    r.Status,
		})
	}

	for _, units := range results {
		sort.Slice(units, func(i, j int) bool { return units[i].Unit < units[j].Unit })
	}
	return results
}
