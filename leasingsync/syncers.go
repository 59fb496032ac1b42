package leasingsync

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"bitbucket.org/stoagroup/leasing_backend/config"
	"bitbucket.org/stoagroup/leasing_backend/models"
)

const insertBatchSize = 500

// SeenHeaders is the last header set observed for a dataset, mirrored to
// Redis for the drift diagnostics endpoint. UnknownEver accumulates across
// syncs so intermittent drift is still visible after a clean run.
type SeenHeaders struct {
	Headers     []string  `json:"headers"`
	Unknown     []string  `json:"unknown"`
	UnknownEver []string  `json:"unknown_ever,omitempty"`
	SeenAt      time.Time `json:"seen_at"`
	RowCount    int       `json:"row_count"`
}

func headersCacheKey(dataset string) string {
	return "LeasingHeaders:" + dataset
}

func unknownHeadersSetKey(dataset string) string {
	return "LeasingUnknownHeaders:" + dataset
}

// GetSeenHeaders returns the last observed header set for a dataset, or nil
// when none has been recorded since the Redis instance started.
func GetSeenHeaders(dataset string) (*SeenHeaders, error) {
	var seen SeenHeaders
	exists, err := config.GetRedisObject(headersCacheKey(dataset), &seen)
	if err != nil || !exists {
		return nil, err
	}
	if ever, err := config.GetRedisSetMembers(unknownHeadersSetKey(dataset)); err == nil {
		seen.UnknownEver = ever
	}
	return &seen, nil
}

func recordSeenHeaders(dataset string, headers []string, unknown []string, rowCount int) {
	seen := SeenHeaders{
		Headers:  headers,
		Unknown:  unknown,
		SeenAt:   time.Now().UTC(),
		RowCount: rowCount,
	}
	_ = config.SetRedisObject(headersCacheKey(dataset), &seen, 0)
	for _, h := range unknown {
		_ = config.AddRedisSet(unknownHeadersSetKey(dataset), h)
	}
}

// parse functions project one raw row onto its typed model. They never fail;
// uncoercible values land as NULL.

func parseLeasingRow(row RawRow, index FieldIndex) models.LeasingRow {
	return models.LeasingRow{
		Property:  coerceString(row, index, "property"),
		Unit:      coerceString(row, index, "unit"),
		Floorplan: coerceString(row, index, "floorplan"),
		LeaseDate: coerceDate(row, index, "leaseDate"),
		LeaseType: coerceString(row, index, "leaseType"),
		Rent:      coerceDecimal(row, index, "rent"),
		Budget:    coerceDecimal(row, index, "budget"),
	}
}

func parseMMRRow(row RawRow, index FieldIndex) models.MMRRow {
	return models.MMRRow{
		Property:  coerceString(row, index, "property"),
		Month:     coerceMonth(row, index, "month"),
		MMROcc:    coerceInt(row, index, "mmrOcc"),
		MMRUnits:  coerceInt(row, index, "mmrUnits"),
		Leased:    coerceInt(row, index, "leased"),
		Available: coerceInt(row, index, "available"),
		Budget:    coerceDecimal(row, index, "budget"),
		Stage:     coerceString(row, index, "stage"),
	}
}

func parseTradeoutRow(row RawRow, index FieldIndex) models.TradeoutRow {
	return models.TradeoutRow{
		Property:    coerceString(row, index, "property"),
		Unit:        coerceString(row, index, "unit"),
		Month:       coerceMonth(row, index, "month"),
		LeaseType:   coerceString(row, index, "leaseType"),
		PriorRent:   coerceDecimal(row, index, "priorRent"),
		NewRent:     coerceDecimal(row, index, "newRent"),
		TradeoutPct: coerceDecimal(row, index, "tradeoutPct"),
		TradeoutAmt: coerceDecimal(row, index, "tradeoutAmt"),
	}
}

func parsePortfolioUnitDetailRow(row RawRow, index FieldIndex) models.PortfolioUnitDetailRow {
	return models.PortfolioUnitDetailRow{
		Property:   coerceString(row, index, "property"),
		Unit:       coerceString(row, index, "unit"),
		Floorplan:  coerceString(row, index, "floorplan"),
		Sqft:       coerceInt(row, index, "sqft"),
		Status:     coerceString(row, index, "status"),
		Stage:      coerceString(row, index, "stage"),
		MarketRent: coerceDecimal(row, index, "marketRent"),
	}
}

func parseUnitRow(row RawRow, index FieldIndex) models.UnitRow {
	return models.UnitRow{
		Property:  coerceString(row, index, "property"),
		Unit:      coerceString(row, index, "unit"),
		Floorplan: coerceString(row, index, "floorplan"),
		Status:    coerceString(row, index, "status"),
		Sqft:      coerceInt(row, index, "sqft"),
		Rent:      coerceDecimal(row, index, "rent"),
	}
}

func parseUnitMixRow(row RawRow, index FieldIndex) models.UnitMixRow {
	return models.UnitMixRow{
		Property:   coerceString(row, index, "property"),
		Floorplan:  coerceString(row, index, "floorplan"),
		UnitCount:  coerceInt(row, index, "unitCount"),
		AvgSqft:    coerceInt(row, index, "avgSqft"),
		MarketRent: coerceDecimal(row, index, "marketRent"),
	}
}

func parsePricingRow(row RawRow, index FieldIndex) models.PricingRow {
	return models.PricingRow{
		Property:       coerceString(row, index, "property"),
		Floorplan:      coerceString(row, index, "floorplan"),
		Month:          coerceMonth(row, index, "month"),
		Price:          coerceDecimal(row, index, "price"),
		AvailableUnits: coerceInt(row, index, "availableUnits"),
	}
}

func parseRecentRentRow(row RawRow, index FieldIndex) models.RecentRentRow {
	return models.RecentRentRow{
		Property:   coerceString(row, index, "property"),
		Unit:       coerceString(row, index, "unit"),
		Floorplan:  coerceString(row, index, "floorplan"),
		Rent:       coerceDecimal(row, index, "rent"),
		SignedDate: coerceDate(row, index, "signedDate"),
	}
}

// replaceRows swaps a dataset table's full content inside the caller's
// transaction. Raw tables hold exactly the last accepted payload, so partial
// merges are never attempted.
func replaceRows[T any](tx *gorm.DB, rows []T) error {
	if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(new(T)).Error; err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	return tx.CreateInBatches(rows, insertBatchSize).Error
}

func parseAll[T any](rows []RawRow, index FieldIndex, parse func(RawRow, FieldIndex) T) []T {
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		out = append(out, parse(row, index))
	}
	return out
}

func replaceDataset(tx *gorm.DB, key string, index FieldIndex, rows []RawRow) error {
	switch key {
	case "leasing":
		return replaceRows(tx, parseAll(rows, index, parseLeasingRow))
	case "MMRData":
		return replaceRows(tx, parseAll(rows, index, parseMMRRow))
	case "unitbyunittradeout":
		return replaceRows(tx, parseAll(rows, index, parseTradeoutRow))
	case "portfolioUnitDetails":
		return replaceRows(tx, parseAll(rows, index, parsePortfolioUnitDetailRow))
	case "units":
		return replaceRows(tx, parseAll(rows, index, parseUnitRow))
	case "unitmix":
		return replaceRows(tx, parseAll(rows, index, parseUnitMixRow))
	case "pricing":
		return replaceRows(tx, parseAll(rows, index, parsePricingRow))
	case "recentrents":
		return replaceRows(tx, parseAll(rows, index, parseRecentRentRow))
	default:
		return fmt.Errorf("unknown dataset %q", key)
	}
}

// SyncDataset runs one dataset payload through alias resolution, the dedup
// gate, and (when accepted) a full-replace upsert plus sync log update in a
// single transaction. Same-dataset calls are serialized; a payload arriving
// while its twin is mid-sync waits and then hits the gate as unchanged.
func SyncDataset(ctx context.Context, dataset string, rows []RawRow) (*DatasetOutcome, error) {
	spec := DatasetByKey(dataset)
	if spec == nil {
		return nil, fmt.Errorf("unknown dataset %q", dataset)
	}

	headers := HeadersOf(rows)
	index, unknown, err := resolveDatasetFields(ctx, dataset, headers)
	if err != nil {
		return nil, err
	}
	recordSeenHeaders(dataset, headers, unknown, len(rows))

	hash := ContentHash(spec, index, rows)

	release, err := acquireSyncLock(ctx, dataset)
	if err != nil {
		return nil, fmt.Errorf("dataset %s is locked by another sync", dataset)
	}
	defer release()

	last, err := models.GetSyncLog(ctx, dataset)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	accept, reason := ShouldAccept(last, hash, now)
	if !accept {
		return &DatasetOutcome{Dataset: dataset, Status: OutcomeSkipped, Reason: reason, RowCount: len(rows)}, nil
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := replaceDataset(tx, dataset, index, rows); err != nil {
			return err
		}
		return models.UpsertSyncLog(ctx, tx, dataset, now, hash, len(rows))
	})
	if err != nil {
		return nil, err
	}

	return &DatasetOutcome{Dataset: dataset, Status: OutcomeSynced, Reason: reason, RowCount: len(rows)}, nil
}

// previewDataset runs the gate dry on one dataset's rows: alias-resolve,
// hash, compare against the sync log, no writes.
func previewDataset(ctx context.Context, spec *DatasetSpec, rows []RawRow) (*DatasetOutcome, error) {
	headers := HeadersOf(rows)
	index, _, err := resolveDatasetFields(ctx, spec.Key, headers)
	if err != nil {
		return nil, err
	}
	hash := ContentHash(spec, index, rows)
	last, err := models.GetSyncLog(ctx, spec.Key)
	if err != nil {
		return nil, err
	}
	accept, reason := ShouldAccept(last, hash, time.Now().UTC())
	status := OutcomeSkipped
	if accept {
		status = OutcomeSynced
	}
	return &DatasetOutcome{Dataset: spec.Key, Status: status, Reason: reason, RowCount: len(rows)}, nil
}

// PreviewChanges runs the gate without writing anything: for each dataset in
// the payload it reports whether a real sync would accept it and why.
func PreviewChanges(ctx context.Context, payload map[string][]RawRow) ([]*DatasetOutcome, error) {
	outcomes := make([]*DatasetOutcome, 0, len(payload))
	for i := range Datasets {
		spec := &Datasets[i]
		rows, ok := payload[spec.Key]
		if !ok {
			continue
		}
		outcome, err := previewDataset(ctx, spec, rows)
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes, nil
}

// WipeDataset clears one dataset's raw rows and sync log (empty dataset =
// all datasets), so the next push is treated as a cold first sync.
func WipeDataset(ctx context.Context, dataset string) error {
	keys := []string{dataset}
	if dataset == "" {
		keys = DatasetKeys()
	} else if DatasetByKey(dataset) == nil {
		return fmt.Errorf("unknown dataset %q", dataset)
	}

	db := config.GetDB()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, key := range keys {
			if err := replaceDataset(tx, key, FieldIndex{}, nil); err != nil {
				return err
			}
			if err := models.DeleteSyncLog(ctx, tx, key); err != nil {
				return err
			}
		}
		return nil
	})
}
