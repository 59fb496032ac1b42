package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/stoagroup/leasing_backend/config"
	"gorm.io/gorm"
)

// Sync run statuses. A run is one pull-and-sync pass over all (or selected)
// datasets; per-dataset outcomes live in StatsJSON.
const (
	SyncRunStatusQueued  = "QUEUED"
	SyncRunStatusRunning = "RUNNING"
	SyncRunStatusSuccess = "SUCCESS"
	SyncRunStatusPartial = "PARTIAL"
	SyncRunStatusFailed  = "FAILED"
)

const (
	SyncTriggeredManual = "MANUAL"
	SyncTriggeredCron   = "CRON"
	SyncTriggeredRetry  = "RETRY"
)

// LeasingSyncRun is the observable completion record for background
// pull-and-sync work: callers get the run id immediately and poll its status.
type LeasingSyncRun struct {
	ID            int        `gorm:"primary_key" json:"id"`
	Status        string     `gorm:"size:20;not null" json:"status"`
	TriggeredBy   string     `gorm:"size:20" json:"triggered_by"`
	DatasetsJSON  []byte     `gorm:"type:json" json:"-"`
	StatsJSON     []byte     `gorm:"type:json" json:"-"`
	ErrorCount    int        `json:"error_count"`
	RecordsSynced int        `json:"records_synced"`
	StartedAt     *time.Time `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at"`
	DurationMs    int64      `json:"duration_ms"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (LeasingSyncRun) TableName() string { return "leasing_sync_runs" }

func CreateSyncRun(ctx context.Context, triggeredBy string, datasetsJSON []byte) (*LeasingSyncRun, error) {
	run := LeasingSyncRun{
		Status:       SyncRunStatusQueued,
		TriggeredBy:  triggeredBy,
		DatasetsJSON: datasetsJSON,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&run).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

func GetSyncRun(ctx context.Context, id int) (*LeasingSyncRun, error) {
	var run LeasingSyncRun
	db := config.GetDB()
	if err := db.WithContext(ctx).Where("id = ?", id).Take(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}

func ListSyncRuns(ctx context.Context, limit int) ([]*LeasingSyncRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var runs []*LeasingSyncRun
	db := config.GetDB()
	if err := db.WithContext(ctx).Order("id desc").Limit(limit).Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

func UpdateSyncRun(ctx context.Context, run *LeasingSyncRun, updates map[string]interface{}) error {
	db := config.GetDB()
	return db.WithContext(ctx).Model(run).Updates(updates).Error
}
