package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/stoagroup/leasing_backend/config"
	"gorm.io/gorm"
)

// LeasingSyncLog records the last accepted ingestion per dataset. One row per
// dataset, overwritten on every accepted sync. Only the sync gate/syncer pair
// writes it; the gate and diagnostics read it.
type LeasingSyncLog struct {
	ID          int       `gorm:"primary_key" json:"id"`
	Dataset     string    `gorm:"uniqueIndex;size:50;not null" json:"dataset"`
	LastSyncAt  time.Time `json:"last_sync_at"`
	LastSyncDay string    `gorm:"size:10" json:"last_sync_day"` // UTC "2006-01-02"
	ContentHash string    `gorm:"size:64" json:"content_hash"`
	RowCount    int       `json:"row_count"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (LeasingSyncLog) TableName() string { return "leasing_sync_logs" }

// GetSyncLog returns the log row for a dataset, or nil when no sync has ever
// been accepted for it.
func GetSyncLog(ctx context.Context, dataset string) (*LeasingSyncLog, error) {
	var entry LeasingSyncLog
	db := config.GetDB()
	err := db.WithContext(ctx).Where("dataset = ?", dataset).Take(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// GetAllSyncLogs lists every dataset's log entry. Without a connected
// database there are no logs, which readers treat as "nothing ever synced"
// rather than an error.
func GetAllSyncLogs(ctx context.Context) ([]*LeasingSyncLog, error) {
	var entries []*LeasingSyncLog
	db := config.GetDB()
	if db == nil {
		return nil, nil
	}
	if err := db.WithContext(ctx).Order("dataset").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// UpsertSyncLog overwrites the dataset's log entry with the outcome of an
// accepted sync. Runs inside the caller's transaction when tx is non-nil.
func UpsertSyncLog(ctx context.Context, tx *gorm.DB, dataset string, syncedAt time.Time, contentHash string, rowCount int) error {
	if tx == nil {
		tx = config.GetDB().WithContext(ctx)
	}
	day := syncedAt.UTC().Format("2006-01-02")

	var existing LeasingSyncLog
	err := tx.Where("dataset = ?", dataset).Take(&existing).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		entry := LeasingSyncLog{
			Dataset:     dataset,
			LastSyncAt:  syncedAt,
			LastSyncDay: day,
			ContentHash: contentHash,
			RowCount:    rowCount,
		}
		return tx.Create(&entry).Error
	}

	return tx.Model(&existing).Updates(map[string]interface{}{
		"last_sync_at":  syncedAt,
		"last_sync_day": day,
		"content_hash":  contentHash,
		"row_count":     rowCount,
	}).Error
}

// DeleteSyncLog clears the log for one dataset (empty = all datasets), so the
// next push is treated as a cold first sync.
func DeleteSyncLog(ctx context.Context, tx *gorm.DB, dataset string) error {
	if tx == nil {
		tx = config.GetDB().WithContext(ctx)
	}
	q := tx.Model(&LeasingSyncLog{})
	if dataset != "" {
		q = q.Where("dataset = ?", dataset)
	} else {
		q = q.Where("1 = 1")
	}
	return q.Delete(&LeasingSyncLog{}).Error
}
