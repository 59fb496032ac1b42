package leasingsync

import (
	"context"
	"sync"
	"time"

	"github.com/bsm/redislock"

	"bitbucket.org/stoagroup/leasing_backend/config"
	"bitbucket.org/stoagroup/leasing_backend/models"
)

// Skip reasons surfaced to callers and run stats.
const (
	ReasonUnchangedToday = "unchanged content already synced today"
)

// ShouldAccept is the dedup gate decision. A payload is accepted when the
// dataset has never synced, when its content hash differs from the last
// accepted one, or when the last accepted sync happened on an earlier UTC
// day. Identical content within the same UTC day is skipped.
func ShouldAccept(last *models.LeasingSyncLog, contentHash string, now time.Time) (bool, string) {
	if last == nil {
		return true, "first sync"
	}
	if last.ContentHash != contentHash {
		return true, "content changed"
	}
	if last.LastSyncDay != now.UTC().Format("2006-01-02") {
		return true, "new day"
	}
	return false, ReasonUnchangedToday
}

// datasetLocks serializes same-dataset syncs within the process. Different
// datasets proceed in parallel.
var datasetLocks sync.Map

func lockDataset(dataset string) func() {
	mu, _ := datasetLocks.LoadOrStore(dataset, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

// acquireSyncLock takes the in-process dataset mutex plus, when Redis is up,
// a cross-replica lock. The distributed lock is best effort: a Redis outage
// degrades to per-process serialization rather than blocking ingestion.
func acquireSyncLock(ctx context.Context, dataset string) (release func(), err error) {
	unlockLocal := lockDataset(dataset)

	locker := config.GetRedisLock()
	if locker == nil {
		return unlockLocal, nil
	}

	key := "lock:leasing-sync:" + dataset
	lock, err := locker.Obtain(ctx, key, 2*time.Minute, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(500*time.Millisecond), 20),
	})
	if err != nil {
		if err == redislock.ErrNotObtained {
			unlockLocal()
			return nil, err
		}
		// Redis unavailable: proceed under the local mutex only
		return unlockLocal, nil
	}

	return func() {
		_ = lock.Release(context.Background())
		unlockLocal()
	}, nil
}
