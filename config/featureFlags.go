package config

import (
	"os"
	"strings"
)

// AutoRebuildSnapshotAfterSync rebuilds the dashboard snapshot as soon as a sync
// accepts new data, instead of lazily on the next dashboard read.
//
// Set via env:
// - AUTO_REBUILD_SNAPSHOT=true
func AutoRebuildSnapshotAfterSync() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("AUTO_REBUILD_SNAPSHOT")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// StatusSourcePrecedence controls which dataset wins when a property carries
// conflicting stage/status signals. Comma-separated source keys, highest first.
// Known keys: "mmr", "pud".
//
// Set via env:
// - STATUS_SOURCE_PRECEDENCE="mmr,pud"
func StatusSourcePrecedence() []string {
	raw := strings.TrimSpace(os.Getenv("STATUS_SOURCE_PRECEDENCE"))
	if raw == "" {
		raw = "mmr,pud"
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
