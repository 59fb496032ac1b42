package leasingsync

// RawRow is one record as the provider ships it: source header -> value.
// Values arrive as strings or JSON numbers depending on the export path,
// so coercion always goes through rawString first.
type RawRow map[string]interface{}

// DatasetSpec describes one provider dataset: its payload key, the canonical
// fields its rows resolve to, and the subset of fields that identifies a row
// for content hashing.
type DatasetSpec struct {
	Key     string
	Fields  []string
	SortKey []string
}

// Datasets is the fixed registry of provider datasets, in the order they are
// pulled and synced. Keys match the provider payload exactly, including the
// inconsistent casing the provider uses.
var Datasets = []DatasetSpec{
	{
		Key:     "leasing",
		Fields:  []string{"property", "unit", "floorplan", "leaseDate", "leaseType", "rent", "budget"},
		SortKey: []string{"property", "unit", "leaseDate"},
	},
	{
		Key:     "MMRData",
		Fields:  []string{"property", "month", "mmrOcc", "mmrUnits", "leased", "available", "budget", "stage"},
		SortKey: []string{"property", "month"},
	},
	{
		Key:     "unitbyunittradeout",
		Fields:  []string{"property", "unit", "month", "leaseType", "priorRent", "newRent", "tradeoutPct", "tradeoutAmt"},
		SortKey: []string{"property", "unit", "month"},
	},
	{
		Key:     "portfolioUnitDetails",
		Fields:  []string{"property", "unit", "floorplan", "sqft", "status", "stage", "marketRent"},
		SortKey: []string{"property", "unit"},
	},
	{
		Key:     "units",
		Fields:  []string{"property", "unit", "floorplan", "status", "sqft", "rent"},
		SortKey: []string{"property", "unit"},
	},
	{
		Key:     "unitmix",
		Fields:  []string{"property", "floorplan", "unitCount", "avgSqft", "marketRent"},
		SortKey: []string{"property", "floorplan"},
	},
	{
		Key:     "pricing",
		Fields:  []string{"property", "floorplan", "month", "price", "availableUnits"},
		SortKey: []string{"property", "floorplan", "month"},
	},
	{
		Key:     "recentrents",
		Fields:  []string{"property", "unit", "floorplan", "rent", "signedDate"},
		SortKey: []string{"property", "unit", "signedDate"},
	},
}

// DatasetByKey returns the dataset definition for a payload key, or nil for
// unknown keys.
func DatasetByKey(key string) *DatasetSpec {
	for i := range Datasets {
		if Datasets[i].Key == key {
			return &Datasets[i]
		}
	}
	return nil
}

// DatasetKeys returns the registry keys in sync order.
func DatasetKeys() []string {
	keys := make([]string, 0, len(Datasets))
	for _, ds := range Datasets {
		keys = append(keys, ds.Key)
	}
	return keys
}

// Per-dataset sync outcome statuses.
const (
	OutcomeSynced  = "synced"
	OutcomeSkipped = "skipped"
	OutcomeErrored = "errored"
)

// DatasetOutcome is the result of gating and syncing one dataset within a
// push or a run. Exactly one of the three statuses applies; Reason explains
// skips and errors.
type DatasetOutcome struct {
	Dataset  string `json:"dataset"`
	Status   string `json:"status"`
	Reason   string `json:"reason,omitempty"`
	RowCount int    `json:"row_count"`
}
