// sync-from-domo pulls the configured datasets from the provider and runs
// them through the sync gate, without going through the HTTP API. Meant for
// cron jobs and one-off backfills.
//
// Usage:
//   DOMO_CLIENT_ID=... DOMO_CLIENT_SECRET=... DB_USER=... go run ./cmd/sync-from-domo
//   go run ./cmd/sync-from-domo -datasets leasing,MMRData
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"bitbucket.org/stoagroup/leasing_backend/config"
	"bitbucket.org/stoagroup/leasing_backend/leasingsync"
	"bitbucket.org/stoagroup/leasing_backend/models"
)

func main() {
	datasetsFlag := flag.String("datasets", "", "comma-separated dataset keys (default: all)")
	flag.Parse()

	var datasets []string
	if strings.TrimSpace(*datasetsFlag) != "" {
		for _, key := range strings.Split(*datasetsFlag, ",") {
			key = strings.TrimSpace(key)
			if key == "" {
				continue
			}
			if leasingsync.DatasetByKey(key) == nil {
				fmt.Fprintf(os.Stderr, "unknown dataset %q (known: %s)\n", key, strings.Join(leasingsync.DatasetKeys(), ", "))
				os.Exit(1)
			}
			datasets = append(datasets, key)
		}
	}

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	var datasetsJSON []byte
	if len(datasets) > 0 {
		datasetsJSON, _ = json.Marshal(datasets)
	}

	run, err := models.CreateSyncRun(ctx, models.SyncTriggeredCron, datasetsJSON)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create sync run: %v\n", err)
		os.Exit(1)
	}

	if err := leasingsync.ProcessSyncRun(ctx, run.ID); err != nil {
		fmt.Fprintf(os.Stderr, "sync run %d failed: %v\n", run.ID, err)
		os.Exit(1)
	}

	final, err := models.GetSyncRun(ctx, run.ID)
	if err != nil || final == nil {
		fmt.Printf("Sync run %d finished\n", run.ID)
		return
	}
	fmt.Printf("Sync run %d finished: status=%s records=%d\n", final.ID, final.Status, final.RecordsSynced)
}
