package interfaces

import "github.com/ternarybob/gematria/internal/models"

// JobMirror duplicates ingestion job state to an external cache with a TTL so
// a separate observer process can read recent job status. All operations are
// fire-and-forget: implementations must never block the caller on failure and
// must never panic. The zero-value behavior is provided by NoopMirror.
type JobMirror interface {
	Store(job *models.IngestionJob)
	Delete(jobID string)
	// Load returns mirrored jobs still within their TTL. Best effort; an
	// unreachable mirror yields an empty slice.
	Load() []*models.IngestionJob
}

// NoopMirror is the default JobMirror used when no external cache is
// configured.
type NoopMirror struct{}

func (NoopMirror) Store(*models.IngestionJob)   {}
func (NoopMirror) Delete(string)                {}
func (NoopMirror) Load() []*models.IngestionJob { return nil }
