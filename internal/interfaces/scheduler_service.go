package interfaces

import "time"

// JobStatus describes one registered scheduler job for the snapshot surface.
type JobStatus struct {
	Name            string     `json:"name"`
	IntervalSeconds float64    `json:"interval_seconds"`
	NextRunAt       *time.Time `json:"next_run_at"`
	LastRunAt       *time.Time `json:"last_run_at"`
	LastDuration    float64    `json:"last_duration_seconds"`
	TotalRuns       int        `json:"total_runs"`
	Running         bool       `json:"running"`
	Enabled         bool       `json:"enabled"`
	Error           string     `json:"error,omitempty"`
}

// SchedulerSnapshot is the point-in-time view of the scheduler and its jobs.
type SchedulerSnapshot struct {
	Name       string      `json:"name"`
	MaxWorkers int         `json:"max_workers"`
	ActiveJobs int         `json:"active_jobs"`
	QueuedJobs int         `json:"queued_jobs"`
	Jobs       []JobStatus `json:"jobs"`
}

// SchedulerService drives registered jobs on fixed intervals. It has no
// knowledge of what the jobs do.
type SchedulerService interface {
	Start()
	Stop()
	Restart()
	IsRunning() bool

	// RegisterJob registers a named job. Returns an error when the interval
	// is not positive or the name is already registered.
	RegisterJob(name string, fn func(), interval time.Duration, opts ...JobOption) error
	RemoveJob(name string) bool
	// EnableJob re-arms a job to run after delay from now. A negative delay
	// means "after its configured interval". Errors on unknown names.
	EnableJob(name string, delay time.Duration) error
	// DisableJob sets a job to never run. An in-flight execution is not
	// cancelled. Errors on unknown names.
	DisableJob(name string) error
	// TriggerJob forces an out-of-band run and marks the job enabled.
	// Returns false when the job was already running. Errors on unknown names.
	TriggerJob(name string) (bool, error)
	HasJob(name string) bool
	Snapshot() SchedulerSnapshot
}

// JobOption mutates job registration defaults.
type JobOption func(*JobSettings)

// JobSettings holds the optional registration parameters for a job.
type JobSettings struct {
	// StartAfter delays the first run by the given offset instead of the
	// full interval, staggering job starts at process boot.
	StartAfter    time.Duration
	HasStartAfter bool
	Enabled       bool
}

// WithStartAfter staggers the first run of a job by the given offset.
func WithStartAfter(offset time.Duration) JobOption {
	return func(s *JobSettings) {
		s.StartAfter = offset
		s.HasStartAfter = true
	}
}

// WithEnabled sets the initial enabled state of a job.
func WithEnabled(enabled bool) JobOption {
	return func(s *JobSettings) {
		s.Enabled = enabled
	}
}
