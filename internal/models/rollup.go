package models

import (
	"fmt"
	"time"
)

// RollupScopeGlobal is the scope key for unrestricted rollups.
const RollupScopeGlobal = "global"

// RollupScopeSource builds the scope key for a per-source rollup.
func RollupScopeSource(sourceID string) string {
	return "source:" + sourceID
}

// GematriaRollup caches one windowed aggregate per (scope, window, scheme).
// The row is refreshed in place; it is a TTL-bounded cache over a pure
// function of scheme, window, scope and "now".
type GematriaRollup struct {
	// Key is Scope + "|" + WindowHours + "|" + Scheme.
	Key         string        `json:"key" badgerhold:"key"`
	Scope       string        `json:"scope" badgerholdIndex:"Scope"`
	WindowHours int           `json:"window_hours"`
	Scheme      string        `json:"scheme" badgerholdIndex:"Scheme"`
	ComputedAt  time.Time     `json:"computed_at"`
	Payload     RollupPayload `json:"payload"`
}

// RollupKey builds the composite storage key for a rollup row.
func RollupKey(scope string, windowHours int, scheme string) string {
	return fmt.Sprintf("%s|%d|%s", scope, windowHours, scheme)
}

// RollupPayload is the full aggregate produced by the rollup computation and
// served to the UI layer.
type RollupPayload struct {
	Scheme          string            `json:"scheme"`
	Scope           string            `json:"scope"`
	WindowHours     int               `json:"window_hours"`
	WindowStart     string            `json:"window_start"`
	WindowEnd       string            `json:"window_end"`
	Summary         RollupSummary     `json:"summary"`
	TopValues       []RollupTopValue  `json:"top_values"`
	Trend           []RollupBucket    `json:"trend"`
	SourceBreakdown []RollupSourceRow `json:"source_breakdown"`
	Correlations    Correlations      `json:"correlations"`
	Meta            RollupMeta        `json:"meta"`
}

type RollupSummary struct {
	TotalItems    int         `json:"total_items"`
	UniqueSources int         `json:"unique_sources"`
	Sum           float64     `json:"sum"`
	Avg           float64     `json:"avg"`
	Min           *int        `json:"min"`
	Max           *int        `json:"max"`
	Percentiles   Percentiles `json:"percentiles"`
}

type Percentiles struct {
	P50 *float64 `json:"p50"`
	P90 *float64 `json:"p90"`
	P99 *float64 `json:"p99"`
}

type RollupTopValue struct {
	Value   int            `json:"value"`
	Count   int            `json:"count"`
	Share   float64        `json:"share"`
	Samples []RollupSample `json:"samples"`
}

type RollupSample struct {
	ItemID   string `json:"item_id"`
	Title    string `json:"title"`
	Lang     string `json:"lang"`
	SourceID string `json:"source_id"`
	Source   string `json:"source"`
}

type RollupBucket struct {
	BucketStart string  `json:"bucket_start"`
	BucketEnd   string  `json:"bucket_end"`
	Count       int     `json:"count"`
	Avg         float64 `json:"avg"`
}

type RollupSourceRow struct {
	SourceID string  `json:"source_id"`
	Name     string  `json:"name"`
	Count    int     `json:"count"`
	Avg      float64 `json:"avg"`
	Priority *int    `json:"priority"`
}

type Correlations struct {
	ValueVsTitleLength    *float64 `json:"value_vs_title_length"`
	ValueVsSourcePriority *float64 `json:"value_vs_source_priority"`
}

type RollupMeta struct {
	TotalValues int    `json:"total_values"`
	GeneratedAt string `json:"generated_at"`
}
