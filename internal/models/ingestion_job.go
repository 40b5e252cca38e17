package models

import "time"

// IngestionJobStatus constants
const (
	IngestionJobRunning = "running"
)

// IngestionJob is the ephemeral record of one in-flight or recently finished
// fetch, tracked in memory by the ingestion tracker and optionally mirrored
// to an external cache with a TTL.
type IngestionJob struct {
	JobID        string    `json:"job_id"`
	SourceID     string    `json:"source_id"`
	Name         string    `json:"name"`
	Endpoint     string    `json:"endpoint"`
	StartedAt    time.Time `json:"started_at"`
	ItemsFetched int       `json:"items_fetched"`
	Status       string    `json:"status"`
	DurationMs   int64     `json:"duration_ms"`
	Error        string    `json:"error,omitempty"`
}
