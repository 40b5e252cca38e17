package models

import "time"

// Run status constants shared by CrawlerRun rows and source bookkeeping.
const (
	RunStatusOK        = "ok"
	RunStatusUnchanged = "unchanged"
	RunStatusEmpty     = "empty"
	RunStatusError     = "error"
)

// CrawlerRun is one row of the append-only ingestion audit trail. A row is
// written for every attempt, including failures.
type CrawlerRun struct {
	ID           string    `json:"id" badgerhold:"key"`
	SourceID     string    `json:"source_id" badgerholdIndex:"SourceID"`
	StartedAt    time.Time `json:"started_at" badgerholdIndex:"StartedAt"`
	FinishedAt   time.Time `json:"finished_at"`
	Status       string    `json:"status"`
	ItemsFetched int       `json:"items_fetched"`
	DurationMs   int64     `json:"duration_ms"`
	Error        string    `json:"error,omitempty"`
}
