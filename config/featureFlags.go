package config

import (
	"os"
	"strings"
	"time"
)

const (
	UpsertModeMerge   = "merge"
	UpsertModeReplace = "replace"

	LedgerDriverSQL    = "sql"
	LedgerDriverRedis  = "redis"
	LedgerDriverSheets = "sheets"
)

// FeatureFlag reports whether env var key holds a truthy value.
func FeatureFlag(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// AutoReconcileOnUpsert chains a reconciliation pass after every POST /work-orders batch.
// POST /mypost always reconciles.
//
// Set via env:
// - AUTO_RECONCILE_ON_UPSERT=true
func AutoReconcileOnUpsert() bool {
	return FeatureFlag("AUTO_RECONCILE_ON_UPSERT")
}

// UpsertMode selects how bulk upserts reach the store.
// "replace" is for engines that only offer full-row replacement: rows are read and merged before writing.
//
// Set via env:
// - DB_UPSERT_MODE=merge|replace
func UpsertMode() string {
	if strings.EqualFold(strings.TrimSpace(os.Getenv("DB_UPSERT_MODE")), UpsertModeReplace) {
		return UpsertModeReplace
	}
	return UpsertModeMerge
}

// LedgerDriver selects the address ledger backend: sql (default), redis or sheets.
func LedgerDriver() string {
	switch v := strings.ToLower(strings.TrimSpace(os.Getenv("LEDGER_DRIVER"))); v {
	case LedgerDriverRedis, LedgerDriverSheets:
		return v
	}
	return LedgerDriverSQL
}

// QueryTimeout bounds every store operation issued on behalf of a request.
func QueryTimeout() time.Duration {
	secs := IntFromEnv("DB_QUERY_TIMEOUT_SECONDS", 30)
	if secs <= 0 {
		secs = 30
	}
	return time.Duration(secs) * time.Second
}

// APIPrefix is the route group the JSON endpoints are mounted under.
func APIPrefix() string {
	v := strings.TrimSpace(os.Getenv("API_PREFIX"))
	if v == "" {
		return "/api"
	}
	if v == "/" {
		return ""
	}
	if !strings.HasPrefix(v, "/") {
		v = "/" + v
	}
	return strings.TrimRight(v, "/")
}

// EnvOrDefault returns the trimmed value of key, or def when unset.
func EnvOrDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
