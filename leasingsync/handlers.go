package leasingsync

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"bitbucket.org/stoagroup/leasing_backend/config"
	"bitbucket.org/stoagroup/leasing_backend/dashboard"
	"bitbucket.org/stoagroup/leasing_backend/models"
)

// Chunked push headers. Large exports arrive split across requests; the
// sender marks the first and last slice and optionally the expected total.
const (
	HeaderFirstChunk = "X-Leasing-Sync-First-Chunk"
	HeaderLastChunk  = "X-Leasing-Sync-Last-Chunk"
	HeaderTotalRows  = "X-Leasing-Sync-Total-Rows"
	HeaderDataHash   = "X-Leasing-Sync-Data-Hash"
	HeaderSyncSecret = "X-Sync-Secret"
)

// chunk buffers are per dataset; a chunked request carries exactly one
// dataset key.
var chunkState = struct {
	mu      sync.Mutex
	buffers map[string][]RawRow
	started map[string]time.Time
}{
	buffers: make(map[string][]RawRow),
	started: make(map[string]time.Time),
}

const chunkBufferTTL = 10 * time.Minute

func headerBool(c *gin.Context, name string) bool {
	v := strings.ToLower(strings.TrimSpace(c.GetHeader(name)))
	return v == "true" || v == "1" || v == "yes"
}

// requireSyncSecret guards mutating sync endpoints. With SYNC_SHARED_SECRET
// unset the guard is open, for local development.
func requireSyncSecret(c *gin.Context) bool {
	secret := strings.TrimSpace(os.Getenv("SYNC_SHARED_SECRET"))
	if secret == "" {
		return true
	}
	if c.GetHeader(HeaderSyncSecret) == secret {
		return true
	}
	c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid sync secret"})
	return false
}

func afterSyncedOutcomes(outcomes []*DatasetOutcome) {
	synced := false
	for _, o := range outcomes {
		if o.Status == OutcomeSynced {
			synced = true
			break
		}
	}
	if !synced {
		return
	}
	dashboard.Invalidate()
	if config.AutoRebuildSnapshotAfterSync() {
		go func() {
			if _, err := dashboard.ForceRebuild(context.Background()); err != nil {
				config.LogError(config.GetLogger(), "leasingsync", "afterSyncedOutcomes", "rebuild snapshot", nil, err)
			}
		}()
	}
}

// pushStatusCode maps a batch's outcomes to its HTTP status. Partial failure
// is still 200 with per-dataset outcomes; only a push where every attempted
// dataset errored is a gateway-level failure.
func pushStatusCode(outcomes []*DatasetOutcome) int {
	if len(outcomes) == 0 {
		return http.StatusOK
	}
	for _, o := range outcomes {
		if o.Status != OutcomeErrored {
			return http.StatusOK
		}
	}
	return http.StatusBadGateway
}

// PushSyncHandler accepts a provider push: a JSON object of dataset keys to
// row arrays. Each dataset flows through the gate independently; the
// response reports a per-dataset outcome. Chunked requests (single dataset)
// are reassembled in memory and processed on the last chunk.
func PushSyncHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSyncSecret(c) {
			return
		}
		var payload map[string][]RawRow
		if err := c.ShouldBindJSON(&payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
			return
		}

		for key := range payload {
			if DatasetByKey(key) == nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown dataset %q", key)})
				return
			}
		}

		chunked := c.GetHeader(HeaderFirstChunk) != "" || c.GetHeader(HeaderLastChunk) != ""
		if chunked {
			if len(payload) != 1 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "chunked push must carry exactly one dataset"})
				return
			}
			var dataset string
			var rows []RawRow
			for key, r := range payload {
				dataset, rows = key, r
			}

			complete, assembled, err := appendChunk(c, dataset, rows)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if !complete {
				c.JSON(http.StatusAccepted, gin.H{"dataset": dataset, "buffered": len(assembled)})
				return
			}
			payload = map[string][]RawRow{dataset: assembled}
		}

		// The sender's declared hash uses its own scheme, so it cannot gate
		// anything here; keep it in the log for troubleshooting mismatches.
		if declared := strings.TrimSpace(c.GetHeader(HeaderDataHash)); declared != "" {
			config.GetLogger().WithFields(logrus.Fields{
				"declared_hash": declared,
			}).Info("[leasingsync.push]")
		}

		ctx := c.Request.Context()
		outcomes := make([]*DatasetOutcome, 0, len(payload))
		for _, spec := range Datasets {
			rows, ok := payload[spec.Key]
			if !ok {
				continue
			}
			outcome, err := SyncDataset(ctx, spec.Key, rows)
			if err != nil {
				outcomes = append(outcomes, &DatasetOutcome{
					Dataset: spec.Key, Status: OutcomeErrored, Reason: err.Error(), RowCount: len(rows),
				})
				continue
			}
			outcomes = append(outcomes, outcome)
		}

		afterSyncedOutcomes(outcomes)
		c.JSON(pushStatusCode(outcomes), gin.H{"results": outcomes})
	}
}

// appendChunk buffers one slice of a chunked push. Returns the assembled
// rows once the last chunk arrives. Stale buffers from an abandoned upload
// are discarded when a new first chunk starts.
func appendChunk(c *gin.Context, dataset string, rows []RawRow) (bool, []RawRow, error) {
	chunkState.mu.Lock()
	defer chunkState.mu.Unlock()

	first := headerBool(c, HeaderFirstChunk)
	last := headerBool(c, HeaderLastChunk)

	if started, ok := chunkState.started[dataset]; ok && time.Since(started) > chunkBufferTTL {
		delete(chunkState.buffers, dataset)
		delete(chunkState.started, dataset)
	}

	if first {
		chunkState.buffers[dataset] = nil
		chunkState.started[dataset] = time.Now()
	} else if _, ok := chunkState.started[dataset]; !ok {
		return false, nil, fmt.Errorf("no chunked upload in progress for dataset %q", dataset)
	}

	chunkState.buffers[dataset] = append(chunkState.buffers[dataset], rows...)
	assembled := chunkState.buffers[dataset]

	if !last {
		return false, assembled, nil
	}

	delete(chunkState.buffers, dataset)
	delete(chunkState.started, dataset)

	if totalHdr := strings.TrimSpace(c.GetHeader(HeaderTotalRows)); totalHdr != "" {
		total, err := strconv.Atoi(totalHdr)
		if err != nil || total != len(assembled) {
			return false, nil, fmt.Errorf("chunked upload incomplete: got %d rows, expected %s", len(assembled), totalHdr)
		}
	}
	return true, assembled, nil
}

// CheckChangesHandler re-fetches datasets from the provider and reports which
// ones the gate would accept, without writing anything. External schedulers
// poll this to decide whether to trigger a full pull-and-sync.
// ?datasets=a,b limits the check.
func CheckChangesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSyncSecret(c) {
			return
		}
		var datasets []string
		if v := strings.TrimSpace(c.Query("datasets")); v != "" {
			for _, key := range strings.Split(v, ",") {
				key = strings.TrimSpace(key)
				if key == "" {
					continue
				}
				if DatasetByKey(key) == nil {
					c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown dataset %q", key)})
					return
				}
				datasets = append(datasets, key)
			}
		}
		outcomes, err := CheckProviderChanges(c.Request.Context(), datasets)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"results": outcomes})
	}
}

// PreviewChangesHandler runs the gate dry: same payload shape as the push
// endpoint, no writes.
func PreviewChangesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSyncSecret(c) {
			return
		}
		var payload map[string][]RawRow
		if err := c.ShouldBindJSON(&payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
			return
		}
		for key := range payload {
			if DatasetByKey(key) == nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown dataset %q", key)})
				return
			}
		}
		outcomes, err := PreviewChanges(c.Request.Context(), payload)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"results": outcomes})
	}
}

type pullSyncRequest struct {
	Datasets []string `json:"datasets"`
}

// PullSyncHandler queues (or runs inline) a provider pull over the selected
// datasets. With ?background=true the run is published to Pub/Sub and the
// run id returned immediately; a publish failure falls back to a goroutine.
func PullSyncHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSyncSecret(c) {
			return
		}

		var req pullSyncRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
				return
			}
		}
		for _, key := range req.Datasets {
			if DatasetByKey(key) == nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown dataset %q", key)})
				return
			}
		}

		var datasetsJSON []byte
		if len(req.Datasets) > 0 {
			datasetsJSON, _ = json.Marshal(req.Datasets)
		}

		run, err := models.CreateSyncRun(c.Request.Context(), models.SyncTriggeredManual, datasetsJSON)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		if strings.EqualFold(c.Query("background"), "true") {
			if err := PublishSyncRun(c.Request.Context(), run.ID); err != nil {
				config.LogError(config.GetLogger(), "leasingsync", "PullSyncHandler", "publish", run.ID, err)
				go func(id int) {
					_ = ProcessSyncRun(context.Background(), id)
				}(run.ID)
			}
			c.JSON(http.StatusAccepted, gin.H{"id": run.ID})
			return
		}

		if err := ProcessSyncRun(c.Request.Context(), run.ID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "id": run.ID})
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": run.ID})
	}
}

// SyncLogHandler lists the last accepted sync per dataset.
func SyncLogHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logs, err := models.GetAllSyncLogs(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": logs})
	}
}

type syncRunResponse struct {
	ID            int               `json:"id"`
	Status        string            `json:"status"`
	TriggeredBy   string            `json:"triggered_by"`
	Datasets      []string          `json:"datasets"`
	Outcomes      []*DatasetOutcome `json:"outcomes,omitempty"`
	RecordsSynced int               `json:"records_synced"`
	ErrorCount    int               `json:"error_count"`
	StartedAt     *string           `json:"started_at"`
	FinishedAt    *string           `json:"finished_at"`
	DurationMs    int64             `json:"duration_ms"`
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func mapRunToResponse(run *models.LeasingSyncRun, includeOutcomes bool) syncRunResponse {
	resp := syncRunResponse{
		ID:            run.ID,
		Status:        run.Status,
		TriggeredBy:   run.TriggeredBy,
		Datasets:      DecodeDatasets(run.DatasetsJSON),
		RecordsSynced: run.RecordsSynced,
		ErrorCount:    run.ErrorCount,
		StartedAt:     formatTime(run.StartedAt),
		FinishedAt:    formatTime(run.FinishedAt),
		DurationMs:    run.DurationMs,
	}
	if includeOutcomes && len(run.StatsJSON) > 0 {
		_ = json.Unmarshal(run.StatsJSON, &resp.Outcomes)
	}
	return resp
}

func SyncRunsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 0
		if v := strings.TrimSpace(c.Query("limit")); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				limit = n
			}
		}
		runs, err := models.ListSyncRuns(c.Request.Context(), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		items := make([]syncRunResponse, 0, len(runs))
		for _, run := range runs {
			items = append(items, mapRunToResponse(run, false))
		}
		c.JSON(http.StatusOK, gin.H{"items": items})
	}
}

func SyncRunDetailHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
			return
		}
		run, err := models.GetSyncRun(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if run == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusOK, mapRunToResponse(run, true))
	}
}

// nullableColumns lists, per dataset, the columns whose NULL (or empty, for
// month keys) counts matter for coercion drift.
var nullableColumns = map[string][]struct {
	Table  string
	Column string
	Empty  bool
}{
	"leasing": {
		{"leasing_rows", "lease_date", false},
		{"leasing_rows", "rent", false},
		{"leasing_rows", "budget", false},
	},
	"MMRData": {
		{"mmr_rows", "month", true},
		{"mmr_rows", "mmr_occ", false},
		{"mmr_rows", "mmr_units", false},
		{"mmr_rows", "leased", false},
		{"mmr_rows", "available", false},
		{"mmr_rows", "budget", false},
	},
	"unitbyunittradeout": {
		{"tradeout_rows", "month", true},
		{"tradeout_rows", "prior_rent", false},
		{"tradeout_rows", "new_rent", false},
		{"tradeout_rows", "tradeout_pct", false},
		{"tradeout_rows", "tradeout_amt", false},
	},
	"portfolioUnitDetails": {
		{"portfolio_unit_detail_rows", "sqft", false},
		{"portfolio_unit_detail_rows", "market_rent", false},
	},
	"units": {
		{"unit_rows", "sqft", false},
		{"unit_rows", "rent", false},
	},
	"unitmix": {
		{"unit_mix_rows", "unit_count", false},
		{"unit_mix_rows", "avg_sqft", false},
		{"unit_mix_rows", "market_rent", false},
	},
	"pricing": {
		{"pricing_rows", "month", true},
		{"pricing_rows", "price", false},
		{"pricing_rows", "available_units", false},
	},
	"recentrents": {
		{"recent_rent_rows", "rent", false},
		{"recent_rent_rows", "signed_date", false},
	},
}

// NullColumnsHandler reports, per dataset column, how many stored rows carry
// a NULL value. A column suddenly going all-NULL usually means the provider
// renamed a header that has no alias yet.
func NullColumnsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		db := config.GetDB().WithContext(c.Request.Context())

		results := make(map[string]map[string]interface{})
		for _, spec := range Datasets {
			columns := nullableColumns[spec.Key]
			report := make(map[string]interface{}, len(columns)+1)

			var total int64
			if len(columns) > 0 {
				if err := db.Table(columns[0].Table).Count(&total).Error; err != nil {
					c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
					return
				}
			}
			report["total_rows"] = total

			for _, col := range columns {
				var count int64
				q := db.Table(col.Table)
				if col.Empty {
					q = q.Where(col.Column + " IS NULL OR " + col.Column + " = ''")
				} else {
					q = q.Where(col.Column + " IS NULL")
				}
				if err := q.Count(&count).Error; err != nil {
					c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
					return
				}
				report[col.Column] = count
			}
			results[spec.Key] = report
		}
		c.JSON(http.StatusOK, results)
	}
}

// SeenHeadersHandler reports the header sets last observed per dataset and
// which of them resolved to no canonical field.
func SeenHeadersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		results := make(map[string]*SeenHeaders)
		for _, spec := range Datasets {
			seen, err := GetSeenHeaders(spec.Key)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			if seen != nil {
				results[spec.Key] = seen
			}
		}
		c.JSON(http.StatusOK, results)
	}
}

func AliasesGetHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		dataset := strings.TrimSpace(c.Query("dataset"))
		datasets := DatasetKeys()
		if dataset != "" {
			if DatasetByKey(dataset) == nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown dataset %q", dataset)})
				return
			}
			datasets = []string{dataset}
		}

		results := make(map[string][]*models.LeasingColumnAlias)
		for _, key := range datasets {
			aliases, err := models.GetColumnAliases(c.Request.Context(), key)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			results[key] = aliases
		}
		c.JSON(http.StatusOK, results)
	}
}

type registerAliasRequest struct {
	Dataset        string `json:"dataset" binding:"required"`
	CanonicalField string `json:"canonical_field" binding:"required"`
	Header         string `json:"header" binding:"required"`
}

func AliasesPostHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerAliasRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "dataset, canonical_field and header are required"})
			return
		}
		spec := DatasetByKey(req.Dataset)
		if spec == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown dataset %q", req.Dataset)})
			return
		}
		knownField := false
		for _, f := range spec.Fields {
			if f == req.CanonicalField {
				knownField = true
				break
			}
		}
		if !knownField {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown field %q for dataset %q", req.CanonicalField, req.Dataset)})
			return
		}

		alias, err := models.RegisterColumnAlias(c.Request.Context(), req.Dataset, req.CanonicalField, req.Header)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, alias)
	}
}

// WipeHandler clears raw rows and sync logs so the next push syncs cold.
// Guarded by the shared secret; ?dataset= limits the wipe to one dataset.
func WipeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSyncSecret(c) {
			return
		}
		dataset := strings.TrimSpace(c.Query("dataset"))
		if err := WipeDataset(c.Request.Context(), dataset); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		dashboard.Invalidate()
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// RegisterIngestRoutes mounts the endpoints the provider's push job calls.
// These authenticate with the shared sync secret, not a user session.
func RegisterIngestRoutes(rg *gin.RouterGroup) {
	rg.POST("/sync", PushSyncHandler())
	rg.GET("/sync/changes", CheckChangesHandler())
	rg.POST("/sync/changes", PreviewChangesHandler())
	rg.POST("/sync/pull", PullSyncHandler())
	rg.POST("/wipe", WipeHandler())
}

// RegisterRoutes mounts the session-guarded read and admin surface.
func RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/sync/log", SyncLogHandler())
	rg.GET("/sync/runs", SyncRunsHandler())
	rg.GET("/sync/runs/:id", SyncRunDetailHandler())
	rg.GET("/diagnostics/null-columns", NullColumnsHandler())
	rg.GET("/diagnostics/headers", SeenHeadersHandler())
	rg.GET("/aliases", AliasesGetHandler())
	rg.POST("/aliases", AliasesPostHandler())
}
