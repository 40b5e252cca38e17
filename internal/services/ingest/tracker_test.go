package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/gematria/internal/models"
)

type memMirror struct {
	stored  map[string]*models.IngestionJob
	deleted []string
}

func newMemMirror() *memMirror {
	return &memMirror{stored: make(map[string]*models.IngestionJob)}
}

func (m *memMirror) Store(job *models.IngestionJob) {
	copied := *job
	m.stored[job.JobID] = &copied
}

func (m *memMirror) Delete(jobID string) {
	delete(m.stored, jobID)
	m.deleted = append(m.deleted, jobID)
}

func (m *memMirror) Load() []*models.IngestionJob {
	jobs := make([]*models.IngestionJob, 0, len(m.stored))
	for _, job := range m.stored {
		jobs = append(jobs, job)
	}
	return jobs
}

func TestTrackerMonotonicJobIDs(t *testing.T) {
	tracker := NewTracker(nil, arbor.NewLogger())

	first := tracker.JobStarted("src-1", "Feed One", "https://example.com/a.xml")
	second := tracker.JobStarted("src-1", "Feed One", "https://example.com/a.xml")
	other := tracker.JobStarted("src-2", "Feed Two", "https://example.com/b.xml")

	assert.Equal(t, "ingest-src-1-1", first)
	assert.Equal(t, "ingest-src-1-2", second)
	assert.Equal(t, "ingest-src-2-1", other)
}

func TestTrackerLifecycle(t *testing.T) {
	mirror := newMemMirror()
	tracker := NewTracker(mirror, arbor.NewLogger())

	jobID := tracker.JobStarted("src-1", "Feed", "https://example.com/a.xml")
	tracker.JobProgress(jobID, 3)
	tracker.JobFinished(jobID, models.RunStatusOK, 5, 1200, "")

	jobs := tracker.Snapshot()
	assert.Len(t, jobs, 1)
	assert.Equal(t, models.RunStatusOK, jobs[0].Status)
	assert.Equal(t, 5, jobs[0].ItemsFetched)
	assert.Equal(t, int64(1200), jobs[0].DurationMs)

	popped := tracker.Pop(jobID)
	assert.NotNil(t, popped)
	assert.Equal(t, jobID, popped.JobID)
	assert.Contains(t, mirror.deleted, jobID)

	assert.Nil(t, tracker.Pop(jobID))
	assert.Empty(t, tracker.Snapshot())
}

func TestTrackerSnapshotMergesMirroredJobs(t *testing.T) {
	mirror := newMemMirror()
	tracker := NewTracker(mirror, arbor.NewLogger())

	liveID := tracker.JobStarted("src-1", "Feed", "https://example.com/a.xml")

	// A job mirrored by another process, unknown to this tracker
	mirror.stored["ingest-src-9-1"] = &models.IngestionJob{
		JobID:    "ingest-src-9-1",
		SourceID: "src-9",
		Status:   models.RunStatusOK,
	}

	jobs := tracker.Snapshot()
	assert.Len(t, jobs, 2)

	ids := []string{jobs[0].JobID, jobs[1].JobID}
	assert.Contains(t, ids, liveID)
	assert.Contains(t, ids, "ingest-src-9-1")
}

func TestTrackerUnknownJobUpdatesIgnored(t *testing.T) {
	tracker := NewTracker(nil, arbor.NewLogger())

	tracker.JobProgress("ingest-missing-1", 5)
	tracker.JobFinished("ingest-missing-1", models.RunStatusOK, 5, 10, "")

	assert.Empty(t, tracker.Snapshot())
}
