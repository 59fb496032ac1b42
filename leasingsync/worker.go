package leasingsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/stoagroup/leasing_backend/config"
	"bitbucket.org/stoagroup/leasing_backend/dashboard"
	"bitbucket.org/stoagroup/leasing_backend/models"
	"bitbucket.org/stoagroup/leasing_backend/utils"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("leasing-backend")

// DecodeDatasets parses a run's dataset selection; empty means all datasets.
func DecodeDatasets(raw []byte) []string {
	if len(raw) == 0 {
		return DatasetKeys()
	}
	var keys []string
	if err := utils.UnmarshalFromJSON(raw, &keys); err != nil || len(keys) == 0 {
		return DatasetKeys()
	}
	return utils.UniqueSlice(keys)
}

// CheckProviderChanges re-exports the selected datasets from the provider and
// runs the gate dry, so schedulers can decide whether a full pull-and-sync is
// worth queuing. Nothing is written.
func CheckProviderChanges(ctx context.Context, datasets []string) ([]*DatasetOutcome, error) {
	if len(datasets) == 0 {
		datasets = DatasetKeys()
	}
	client, err := newDomoClient()
	if err != nil {
		return nil, err
	}

	outcomes := make([]*DatasetOutcome, 0, len(datasets))
	for _, key := range datasets {
		spec := DatasetByKey(key)
		if spec == nil {
			outcomes = append(outcomes, &DatasetOutcome{Dataset: key, Status: OutcomeErrored, Reason: "unknown dataset"})
			continue
		}
		rows, err := client.exportDataset(ctx, key)
		if err != nil {
			outcomes = append(outcomes, &DatasetOutcome{Dataset: key, Status: OutcomeErrored, Reason: err.Error()})
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

// ProcessSyncRun executes one pull-and-sync run: export each selected dataset
// from the provider, push it through the gate and syncer, and record the
// per-dataset outcomes on the run. A dataset failure never aborts the others.
func ProcessSyncRun(ctx context.Context, runID int) error {
	ctx, span := tracer.Start(ctx, "leasingsync.ProcessSyncRun")
	defer span.End()

	logger := config.GetLogger()

	run, err := models.GetSyncRun(ctx, runID)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("sync run %d not found", runID)
	}
	if run.Status == models.SyncRunStatusSuccess || run.Status == models.SyncRunStatusFailed || run.Status == models.SyncRunStatusPartial {
		return nil
	}

	datasets := DecodeDatasets(run.DatasetsJSON)

	now := time.Now()
	startedAt := run.StartedAt
	if startedAt == nil {
		startedAt = &now
	}
	if err := models.UpdateSyncRun(ctx, run, map[string]interface{}{
		"status":     models.SyncRunStatusRunning,
		"started_at": startedAt,
	}); err != nil {
		return err
	}

	client, clientErr := newDomoClient()

	outcomes := make([]*DatasetOutcome, 0, len(datasets))
	errorCount := 0
	syncedCount := 0
	recordsSynced := 0

	for _, key := range datasets {
		if DatasetByKey(key) == nil {
			outcomes = append(outcomes, &DatasetOutcome{Dataset: key, Status: OutcomeErrored, Reason: "unknown dataset"})
			errorCount++
			continue
		}
		if clientErr != nil {
			outcomes = append(outcomes, &DatasetOutcome{Dataset: key, Status: OutcomeErrored, Reason: clientErr.Error()})
			errorCount++
			continue
		}

		rows, err := client.exportDataset(ctx, key)
		if err != nil {
			config.LogError(logger, "leasingsync", "ProcessSyncRun", "export "+key, nil, err)
			outcomes = append(outcomes, &DatasetOutcome{Dataset: key, Status: OutcomeErrored, Reason: err.Error()})
			errorCount++
			continue
		}

		outcome, err := SyncDataset(ctx, key, rows)
		if err != nil {
			config.LogError(logger, "leasingsync", "ProcessSyncRun", "sync "+key, nil, err)
			outcomes = append(outcomes, &DatasetOutcome{Dataset: key, Status: OutcomeErrored, Reason: err.Error()})
			errorCount++
			continue
		}
		outcomes = append(outcomes, outcome)
		if outcome.Status == OutcomeSynced {
			syncedCount++
			recordsSynced += outcome.RowCount
		}
	}

	finishedAt := time.Now()
	durationMs := finishedAt.Sub(*startedAt).Milliseconds()
	status := models.SyncRunStatusSuccess
	if errorCount > 0 && syncedCount == 0 && errorCount == len(datasets) {
		status = models.SyncRunStatusFailed
	} else if errorCount > 0 {
		status = models.SyncRunStatusPartial
	}

	statsJSON, _ := utils.MarshalToJSON(outcomes)
	if err := models.UpdateSyncRun(ctx, run, map[string]interface{}{
		"status":         status,
		"finished_at":    finishedAt,
		"duration_ms":    durationMs,
		"records_synced": recordsSynced,
		"error_count":    errorCount,
		"stats_json":     statsJSON,
	}); err != nil {
		return err
	}

	if syncedCount > 0 {
		dashboard.Invalidate()
		if config.AutoRebuildSnapshotAfterSync() {
			if _, err := dashboard.ForceRebuild(ctx); err != nil {
				config.LogError(logger, "leasingsync", "ProcessSyncRun", "rebuild snapshot", nil, err)
			}
		}
	}

	if status == models.SyncRunStatusFailed {
		return errors.New("all datasets failed")
	}
	return nil
}
