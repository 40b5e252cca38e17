package models

import "time"

// Pattern is a persisted cluster of recently ingested items sharing textual
// similarity. Rows older than the discovery lookback window are pruned at the
// start of each discovery run.
type Pattern struct {
	ID           string                 `json:"id" badgerhold:"key"`
	Label        string                 `json:"label" badgerholdIndex:"Label"`
	CreatedAt    time.Time              `json:"created_at" badgerholdIndex:"CreatedAt"`
	TopTerms     []string               `json:"top_terms"`
	AnomalyScore float64                `json:"anomaly_score"`
	ItemIDs      []string               `json:"item_ids"`
	Meta         map[string]interface{} `json:"meta,omitempty"`
}
