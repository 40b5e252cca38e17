package scheduler

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/gematria/internal/common"
	"github.com/ternarybob/gematria/internal/interfaces"
)

// jobEntry represents a registered job with metadata. All fields are
// protected by the service mutex; nextRun == nil means "never" (disabled,
// or currently running and rescheduled on completion).
type jobEntry struct {
	name         string
	fn           func()
	interval     time.Duration
	nextRun      *time.Time
	lastRun      *time.Time
	lastDuration time.Duration
	totalRuns    int
	running      bool
	enabled      bool
	lastError    string
}

// Service implements SchedulerService with a fixed worker pool driven by a
// single supervisor goroutine. Intervals are measured from job completion,
// not start, so a slow job never overlaps itself.
type Service struct {
	name            string
	maxWorkers      int
	shutdownTimeout time.Duration
	logger          arbor.ILogger

	mu   sync.Mutex
	jobs map[string]*jobEntry

	running bool
	wake    chan struct{}
	workCh  chan string
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewService creates a new scheduler service
func NewService(config *common.SchedulerConfig, logger arbor.ILogger) interfaces.SchedulerService {
	maxWorkers := 4
	shutdownTimeout := 30 * time.Second
	if config != nil {
		if config.MaxWorkers > 0 {
			maxWorkers = config.MaxWorkers
		}
		if config.ShutdownTimeout > 0 {
			shutdownTimeout = config.ShutdownTimeout
		}
	}
	return &Service{
		name:            "gematria-scheduler",
		maxWorkers:      maxWorkers,
		shutdownTimeout: shutdownTimeout,
		logger:          logger,
		jobs:            make(map[string]*jobEntry),
		wake:            make(chan struct{}, 1),
	}
}

// Start launches the supervisor and worker goroutines. Calling Start on a
// running scheduler is a no-op.
func (s *Service) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.workCh = make(chan string, s.maxWorkers)
	stopCh := s.stopCh
	workCh := s.workCh
	s.mu.Unlock()

	for i := 0; i < s.maxWorkers; i++ {
		s.wg.Add(1)
		go s.workerLoop(workCh, stopCh)
	}

	s.wg.Add(1)
	go s.supervisorLoop(stopCh, workCh)

	s.logger.Info().
		Int("max_workers", s.maxWorkers).
		Msg("Scheduler started")
}

// Stop signals all goroutines and waits up to the shutdown timeout for
// in-flight jobs to finish. Jobs still running after the timeout are
// abandoned, not cancelled.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("Scheduler stopped")
	case <-time.After(s.shutdownTimeout):
		s.logger.Warn().
			Dur("timeout", s.shutdownTimeout).
			Msg("Scheduler shutdown timed out with jobs still running")
	}
}

// Restart stops and starts the scheduler, keeping the registered jobs
func (s *Service) Restart() {
	s.Stop()
	s.Start()
}

// IsRunning returns true if the scheduler is active
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// RegisterJob registers a named job to run on a fixed interval
func (s *Service) RegisterJob(name string, fn func(), interval time.Duration, opts ...interfaces.JobOption) error {
	if interval <= 0 {
		return fmt.Errorf("job %s interval must be positive", name)
	}

	settings := interfaces.JobSettings{Enabled: true}
	for _, opt := range opts {
		opt(&settings)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s already registered", name)
	}

	entry := &jobEntry{
		name:     name,
		fn:       fn,
		interval: interval,
		enabled:  settings.Enabled,
	}
	if settings.Enabled {
		offset := interval
		if settings.HasStartAfter {
			offset = settings.StartAfter
		}
		next := time.Now().Add(offset)
		entry.nextRun = &next
	}
	s.jobs[name] = entry

	s.logger.Info().
		Str("job_name", name).
		Dur("interval", interval).
		Bool("enabled", settings.Enabled).
		Msg("Job registered")

	s.signal()
	return nil
}

// RemoveJob deregisters a job. A running execution finishes but is not
// rescheduled.
func (s *Service) RemoveJob(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; !exists {
		return false
	}
	delete(s.jobs, name)

	s.logger.Info().Str("job_name", name).Msg("Job removed")
	return true
}

// EnableJob re-arms a job to run after delay from now. A negative delay
// means "after its configured interval".
func (s *Service) EnableJob(name string, delay time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.jobs[name]
	if !exists {
		return fmt.Errorf("job %s not found", name)
	}

	if delay < 0 {
		delay = entry.interval
	}
	entry.enabled = true
	if !entry.running {
		next := time.Now().Add(delay)
		entry.nextRun = &next
	}

	s.logger.Info().
		Str("job_name", name).
		Dur("delay", delay).
		Msg("Job enabled")

	s.signal()
	return nil
}

// DisableJob sets a job to never run. An in-flight execution is not
// cancelled.
func (s *Service) DisableJob(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.jobs[name]
	if !exists {
		return fmt.Errorf("job %s not found", name)
	}

	entry.enabled = false
	entry.nextRun = nil

	s.logger.Info().Str("job_name", name).Msg("Job disabled")
	return nil
}

// TriggerJob forces an out-of-band run and marks the job enabled. Returns
// false without error when the job is already running.
func (s *Service) TriggerJob(name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.jobs[name]
	if !exists {
		return false, fmt.Errorf("job %s not found", name)
	}

	if entry.running {
		return false, nil
	}

	entry.enabled = true
	now := time.Now()
	entry.nextRun = &now

	s.logger.Info().Str("job_name", name).Msg("Job triggered")

	s.signal()
	return true, nil
}

// HasJob reports whether a job name is registered
func (s *Service) HasJob(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.jobs[name]
	return exists
}

// Snapshot returns a point-in-time view of the scheduler and its jobs,
// sorted by job name.
func (s *Service) Snapshot() interfaces.SchedulerSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	snapshot := interfaces.SchedulerSnapshot{
		Name:       s.name,
		MaxWorkers: s.maxWorkers,
		Jobs:       make([]interfaces.JobStatus, 0, len(s.jobs)),
	}

	for _, entry := range s.jobs {
		if entry.running {
			snapshot.ActiveJobs++
		} else if entry.enabled && entry.nextRun != nil && !entry.nextRun.After(now) {
			snapshot.QueuedJobs++
		}

		status := interfaces.JobStatus{
			Name:            entry.name,
			IntervalSeconds: entry.interval.Seconds(),
			LastDuration:    entry.lastDuration.Seconds(),
			TotalRuns:       entry.totalRuns,
			Running:         entry.running,
			Enabled:         entry.enabled,
			Error:           entry.lastError,
		}
		if entry.nextRun != nil {
			next := *entry.nextRun
			status.NextRunAt = &next
		}
		if entry.lastRun != nil {
			last := *entry.lastRun
			status.LastRunAt = &last
		}
		snapshot.Jobs = append(snapshot.Jobs, status)
	}

	sort.Slice(snapshot.Jobs, func(i, j int) bool {
		return snapshot.Jobs[i].Name < snapshot.Jobs[j].Name
	})
	return snapshot
}

// signal nudges the supervisor to re-evaluate due jobs. Non-blocking; a
// pending wake is enough.
func (s *Service) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// supervisorLoop dispatches due jobs to the worker pool and sleeps until
// the soonest next run
func (s *Service) supervisorLoop(stopCh chan struct{}, workCh chan string) {
	defer s.wg.Done()

	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		due, nextWake := s.collectDue()

		for _, name := range due {
			select {
			case workCh <- name:
			case <-stopCh:
				return
			}
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(nextWake)

		select {
		case <-stopCh:
			return
		case <-s.wake:
		case <-timer.C:
		}
	}
}

// collectDue marks due jobs as running and returns their names plus the
// sleep until the soonest pending run. Marking under the lock guarantees
// at most one execution per job.
func (s *Service) collectDue() ([]string, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	nextWake := time.Hour
	var due []string

	for _, entry := range s.jobs {
		if !entry.enabled || entry.running || entry.nextRun == nil {
			continue
		}
		if entry.nextRun.After(now) {
			if wait := entry.nextRun.Sub(now); wait < nextWake {
				nextWake = wait
			}
			continue
		}
		entry.running = true
		entry.nextRun = nil
		due = append(due, entry.name)
	}

	sort.Strings(due)
	return due, nextWake
}

func (s *Service) workerLoop(workCh chan string, stopCh chan struct{}) {
	defer s.wg.Done()

	for {
		select {
		case <-stopCh:
			return
		case name := <-workCh:
			s.executeJob(name)
		}
	}
}

// executeJob runs one job with panic recovery, then reschedules it from
// completion time
func (s *Service) executeJob(name string) {
	s.mu.Lock()
	entry, exists := s.jobs[name]
	if !exists {
		// Removed between dispatch and execution
		s.mu.Unlock()
		return
	}
	fn := entry.fn
	s.mu.Unlock()

	s.logger.Debug().Str("job_name", name).Msg("Job execution started")

	started := time.Now()
	var jobErr string

	func() {
		defer func() {
			if r := recover(); r != nil {
				jobErr = fmt.Sprintf("panic: %v", r)
				s.logger.Error().
					Str("job_name", name).
					Str("panic", fmt.Sprintf("%v", r)).
					Msg("PANIC RECOVERED in job execution")
			}
		}()
		fn()
	}()

	completed := time.Now()
	duration := completed.Sub(started)

	s.mu.Lock()
	if entry, exists := s.jobs[name]; exists {
		entry.running = false
		entry.lastRun = &completed
		entry.lastDuration = duration
		entry.totalRuns++
		entry.lastError = jobErr
		if entry.enabled {
			next := completed.Add(entry.interval)
			entry.nextRun = &next
		}
	}
	s.mu.Unlock()

	if jobErr == "" {
		s.logger.Debug().
			Str("job_name", name).
			Dur("duration", duration).
			Msg("Job execution completed")
	}

	s.signal()
}
