package ingest

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/gematria/internal/interfaces"
	"github.com/ternarybob/gematria/internal/models"
)

// Tracker records in-flight ingestion jobs in a mutex-guarded map. Job ids
// are monotonic per source. An optional mirror duplicates job state with a
// TTL for out-of-process observers; mirror writes never block or fail the
// caller.
type Tracker struct {
	mu       sync.Mutex
	jobs     map[string]*models.IngestionJob
	counters map[string]int
	mirror   interfaces.JobMirror
	logger   arbor.ILogger
}

// NewTracker creates a new ingestion job tracker
func NewTracker(mirror interfaces.JobMirror, logger arbor.ILogger) *Tracker {
	if mirror == nil {
		mirror = interfaces.NoopMirror{}
	}
	return &Tracker{
		jobs:     make(map[string]*models.IngestionJob),
		counters: make(map[string]int),
		mirror:   mirror,
		logger:   logger,
	}
}

// JobStarted registers a new job and returns its id
func (t *Tracker) JobStarted(sourceID, name, endpoint string) string {
	t.mu.Lock()
	t.counters[sourceID]++
	jobID := fmt.Sprintf("ingest-%s-%d", sourceID, t.counters[sourceID])

	job := &models.IngestionJob{
		JobID:     jobID,
		SourceID:  sourceID,
		Name:      name,
		Endpoint:  endpoint,
		StartedAt: time.Now().UTC(),
		Status:    models.IngestionJobRunning,
	}
	t.jobs[jobID] = job
	snapshot := *job
	t.mu.Unlock()

	t.mirror.Store(&snapshot)
	return jobID
}

// JobProgress updates the running item counter for a job
func (t *Tracker) JobProgress(jobID string, itemsFetched int) {
	t.mu.Lock()
	job, exists := t.jobs[jobID]
	if !exists {
		t.mu.Unlock()
		return
	}
	job.ItemsFetched = itemsFetched
	snapshot := *job
	t.mu.Unlock()

	t.mirror.Store(&snapshot)
}

// JobFinished records the final status of a job. The entry stays in the map
// until popped.
func (t *Tracker) JobFinished(jobID, status string, itemsFetched int, durationMs int64, errMsg string) {
	t.mu.Lock()
	job, exists := t.jobs[jobID]
	if !exists {
		t.mu.Unlock()
		return
	}
	job.Status = status
	job.ItemsFetched = itemsFetched
	job.DurationMs = durationMs
	job.Error = errMsg
	snapshot := *job
	t.mu.Unlock()

	t.mirror.Store(&snapshot)
}

// Pop removes and returns a job, or nil if unknown
func (t *Tracker) Pop(jobID string) *models.IngestionJob {
	t.mu.Lock()
	job, exists := t.jobs[jobID]
	if exists {
		delete(t.jobs, jobID)
	}
	t.mu.Unlock()

	if exists {
		t.mirror.Delete(jobID)
		return job
	}
	return nil
}

// Snapshot merges live in-memory jobs with mirrored entries not already
// present, newest first
func (t *Tracker) Snapshot() []*models.IngestionJob {
	t.mu.Lock()
	result := make([]*models.IngestionJob, 0, len(t.jobs))
	seen := make(map[string]bool, len(t.jobs))
	for id, job := range t.jobs {
		snapshot := *job
		result = append(result, &snapshot)
		seen[id] = true
	}
	t.mu.Unlock()

	for _, job := range t.mirror.Load() {
		if job != nil && !seen[job.JobID] {
			result = append(result, job)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].StartedAt.After(result[j].StartedAt)
	})
	return result
}
