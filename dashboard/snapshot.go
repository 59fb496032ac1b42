package dashboard

import (
	"context"
	"sync"
	"time"

	"bitbucket.org/stoagroup/leasing_backend/config"
	"bitbucket.org/stoagroup/leasing_backend/models"
)

const snapshotRedisKey = "LeasingDashboard:snapshot"

// BuildFunc produces a payload for an as-of day. Swappable for tests.
type BuildFunc func(ctx context.Context, asOf time.Time) (*Payload, error)

var store = struct {
	mu      sync.Mutex
	current *Payload
	build   BuildFunc
}{build: buildFromDB}

// SetBuildFunc replaces the snapshot builder and clears the cache. Test hook.
func SetBuildFunc(f BuildFunc) {
	store.mu.Lock()
	defer store.mu.Unlock()
	if f == nil {
		f = buildFromDB
	}
	store.build = f
	store.current = nil
}

func loadSources(ctx context.Context) (*SourceData, error) {
	db := config.GetDB().WithContext(ctx)
	src := &SourceData{}

	if err := db.Find(&src.Leasing).Error; err != nil {
		return nil, err
	}
	if err := db.Find(&src.MMR).Error; err != nil {
		return nil, err
	}
	if err := db.Find(&src.Tradeouts).Error; err != nil {
		return nil, err
	}
	if err := db.Find(&src.UnitDetails).Error; err != nil {
		return nil, err
	}
	if err := db.Find(&src.Units).Error; err != nil {
		return nil, err
	}
	if err := db.Find(&src.UnitMix).Error; err != nil {
		return nil, err
	}
	if err := db.Find(&src.Pricing).Error; err != nil {
		return nil, err
	}
	if err := db.Find(&src.RecentRents).Error; err != nil {
		return nil, err
	}
	if err := db.Find(&src.Projects).Error; err != nil {
		return nil, err
	}
	return src, nil
}

func buildFromDB(ctx context.Context, asOf time.Time) (*Payload, error) {
	src, err := loadSources(ctx)
	if err != nil {
		return nil, err
	}
	return Build(src, asOf, config.StatusSourcePrecedence()), nil
}

func todayUTC() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// isStale reports whether a cached payload predates the newest accepted
// sync. Sync log errors count as stale so a rebuild resolves them.
func isStale(ctx context.Context, p *Payload) bool {
	if p == nil {
		return true
	}
	if p.AsOf != todayUTC().Format("2006-01-02") {
		return true
	}
	logs, err := models.GetAllSyncLogs(ctx)
	if err != nil {
		return true
	}
	for _, entry := range logs {
		if entry.LastSyncAt.After(p.BuiltAt) {
			return true
		}
	}
	return false
}

// GetOrBuild returns the current snapshot, rebuilding when it is missing or
// stale. Rebuilds are single flight: concurrent callers queue on the store
// mutex and all but the first find a fresh snapshot waiting. Passing a
// non-nil asOf for a day other than today builds an uncached historical
// view.
func GetOrBuild(ctx context.Context, asOf *time.Time) (*Payload, error) {
	if asOf != nil {
		day := asOf.UTC()
		if day.Format("2006-01-02") != todayUTC().Format("2006-01-02") {
			return store.build(ctx, day)
		}
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	if store.current == nil {
		// process restart: the Redis mirror may still be warm
		var mirrored Payload
		if exists, err := config.GetRedisObject(snapshotRedisKey, &mirrored); err == nil && exists {
			store.current = &mirrored
		}
	}

	if !isStale(ctx, store.current) {
		return store.current, nil
	}

	payload, err := store.build(ctx, todayUTC())
	if err != nil {
		return nil, err
	}
	store.current = payload
	_ = config.SetRedisObject(snapshotRedisKey, payload, 0)
	return payload, nil
}

// ForceRebuild discards the cached snapshot and builds a new one for today.
func ForceRebuild(ctx context.Context) (*Payload, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	payload, err := store.build(ctx, todayUTC())
	if err != nil {
		return nil, err
	}
	store.current = payload
	_ = config.SetRedisObject(snapshotRedisKey, payload, 0)
	return payload, nil
}

// Invalidate drops the cached snapshot so the next read rebuilds.
func Invalidate() {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.current = nil
	_ = config.RemoveRedisKey(snapshotRedisKey)
}
