package ingest

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/gematria/internal/common"
	"github.com/ternarybob/gematria/internal/interfaces"
	"github.com/ternarybob/gematria/internal/models"
)

const mirrorOpTimeout = 2 * time.Second

// RedisMirror duplicates ingestion job state into Redis with a TTL. Every
// operation is best-effort: failures are logged at debug level and swallowed.
type RedisMirror struct {
	client    *redis.Client
	namespace string
	ttl       time.Duration
	logger    arbor.ILogger
}

// NewRedisMirror creates a job mirror backed by Redis
func NewRedisMirror(config *common.MirrorConfig, logger arbor.ILogger) interfaces.JobMirror {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	return &RedisMirror{
		client:    client,
		namespace: config.Namespace,
		ttl:       config.TTL,
		logger:    logger,
	}
}

func (m *RedisMirror) key(jobID string) string {
	return m.namespace + ":" + jobID
}

// Store writes a job snapshot with the configured TTL
func (m *RedisMirror) Store(job *models.IngestionJob) {
	if job == nil {
		return
	}

	data, err := json.Marshal(job)
	if err != nil {
		m.logger.Debug().Err(err).Str("job_id", job.JobID).Msg("Failed to encode mirrored job")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), mirrorOpTimeout)
	defer cancel()

	if err := m.client.Set(ctx, m.key(job.JobID), data, m.ttl).Err(); err != nil {
		m.logger.Debug().Err(err).Str("job_id", job.JobID).Msg("Failed to mirror job")
	}
}

// Delete removes a mirrored job
func (m *RedisMirror) Delete(jobID string) {
	ctx, cancel := context.WithTimeout(context.Background(), mirrorOpTimeout)
	defer cancel()

	if err := m.client.Del(ctx, m.key(jobID)).Err(); err != nil {
		m.logger.Debug().Err(err).Str("job_id", jobID).Msg("Failed to delete mirrored job")
	}
}

// Load returns all mirrored jobs still within their TTL
func (m *RedisMirror) Load() []*models.IngestionJob {
	ctx, cancel := context.WithTimeout(context.Background(), mirrorOpTimeout)
	defer cancel()

	var jobs []*models.IngestionJob

	iter := m.client.Scan(ctx, 0, m.namespace+":*", 100).Iterator()
	for iter.Next(ctx) {
		data, err := m.client.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			continue
		}
		var job models.IngestionJob
		if err := json.Unmarshal(data, &job); err != nil {
			continue
		}
		jobs = append(jobs, &job)
	}
	if err := iter.Err(); err != nil {
		m.logger.Debug().Err(err).Msg("Failed to scan mirrored jobs")
	}

	return jobs
}

// Close releases the Redis connection
func (m *RedisMirror) Close() error {
	return m.client.Close()
}
