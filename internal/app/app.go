package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/gematria/internal/common"
	"github.com/ternarybob/gematria/internal/interfaces"
	"github.com/ternarybob/gematria/internal/services/alerts"
	"github.com/ternarybob/gematria/internal/services/analytics"
	"github.com/ternarybob/gematria/internal/services/ingest"
	"github.com/ternarybob/gematria/internal/services/patterns"
	"github.com/ternarybob/gematria/internal/services/scheduler"
	"github.com/ternarybob/gematria/internal/services/settings"
	badgerstorage "github.com/ternarybob/gematria/internal/storage/badger"
)

// Job names registered with the scheduler
const (
	JobPing             = "ping"
	JobRunDueSources    = "run_due_sources"
	JobEvaluateAlerts   = "evaluate_alerts"
	JobDiscoverPatterns = "discover_patterns"
	JobRefreshRollups   = "refresh_rollups"
)

// ErrWorkerUnavailable is returned when a worker command names an unknown
// worker.
var ErrWorkerUnavailable = errors.New("worker unavailable")

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	StorageManager interfaces.StorageManager

	SettingsService  *settings.Service
	IngestService    *ingest.Service
	AlertService     *alerts.Service
	PatternService   *patterns.Service
	AnalyticsService *analytics.Service
	SchedulerService interfaces.SchedulerService

	mirror interfaces.JobMirror
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	storageManager, err := badgerstorage.NewManager(logger, &cfg.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage manager: %w", err)
	}
	app.StorageManager = storageManager
	logger.Debug().
		Str("storage", "badger").
		Str("path", cfg.Storage.Badger.Path).
		Msg("Storage layer initialized")

	app.SettingsService = settings.NewService(storageManager.Settings(), logger)

	var mirror interfaces.JobMirror
	if cfg.Mirror.Enabled {
		mirror = ingest.NewRedisMirror(&cfg.Mirror, logger)
		logger.Info().
			Str("addr", cfg.Mirror.Addr).
			Str("namespace", cfg.Mirror.Namespace).
			Msg("Redis job mirror enabled")
	}
	app.mirror = mirror

	tracker := ingest.NewTracker(mirror, logger)
	fetcher := ingest.NewFetcher(&cfg.Ingest, logger)
	app.IngestService = ingest.NewService(storageManager, app.SettingsService, fetcher, tracker, &cfg.Ingest, logger)

	app.AlertService = alerts.NewService(storageManager, logger)
	app.PatternService = patterns.NewService(storageManager, nil, nil, logger)
	app.AnalyticsService = analytics.NewService(storageManager, &cfg.Rollups, logger)

	app.SchedulerService = scheduler.NewService(&cfg.Scheduler, logger)
	if err := app.registerJobs(); err != nil {
		storageManager.Close()
		return nil, fmt.Errorf("failed to register scheduler jobs: %w", err)
	}

	logger.Info().
		Str("environment", cfg.Environment).
		Bool("mirror_enabled", cfg.Mirror.Enabled).
		Msg("Application initialization complete")

	return app, nil
}

// registerJobs wires the worker jobs onto the scheduler with their
// configured cadences. Heavier jobs are staggered so they do not all fire
// at startup.
func (a *App) registerJobs() error {
	sch := a.Config.Scheduler

	if err := a.SchedulerService.RegisterJob(JobPing, a.ping, sch.PingInterval); err != nil {
		return err
	}
	if err := a.SchedulerService.RegisterJob(JobRunDueSources, a.runDueSources, sch.IngestInterval); err != nil {
		return err
	}
	if err := a.SchedulerService.RegisterJob(JobEvaluateAlerts, a.evaluateAlerts, sch.AlertInterval,
		interfaces.WithStartAfter(sch.AlertStartDelay)); err != nil {
		return err
	}
	if err := a.SchedulerService.RegisterJob(JobDiscoverPatterns, a.discoverPatterns, sch.PatternInterval,
		interfaces.WithStartAfter(sch.PatternStartDelay)); err != nil {
		return err
	}
	if err := a.SchedulerService.RegisterJob(JobRefreshRollups, a.refreshRollups, sch.RollupInterval,
		interfaces.WithStartAfter(sch.RollupStartDelay)); err != nil {
		return err
	}
	return nil
}

// Start launches the scheduler and optionally triggers an immediate ingest
// pass
func (a *App) Start() {
	a.SchedulerService.Start()

	if !a.Config.Scheduler.DisableStartupTriggers {
		if _, err := a.SchedulerService.TriggerJob(JobRunDueSources); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to trigger startup ingest pass")
		}
	}
}

// Stop shuts the scheduler down, waiting for in-flight jobs
func (a *App) Stop() {
	a.SchedulerService.Stop()
}

// Close releases storage and mirror resources. Call after Stop.
func (a *App) Close() {
	if a.mirror != nil {
		if closer, ok := a.mirror.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				a.Logger.Warn().Err(err).Msg("Failed to close job mirror")
			}
		}
	}
	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close storage manager")
		}
	}
}

func (a *App) ping() {
	sourceCount, err := a.StorageManager.Sources().CountSources(context.Background())
	if err != nil {
		a.Logger.Warn().Err(err).Msg("Ping source count failed")
		return
	}
	a.Logger.Info().
		Str("server", a.Config.Server.Name).
		Int("sources", sourceCount).
		Str("version", common.GetVersion()).
		Msg("Worker alive")
}

func (a *App) runDueSources() {
	processed := a.IngestService.RunDueSources(context.Background())
	if processed > 0 {
		a.Logger.Debug().Int("processed", processed).Msg("Ingestion cycle completed")
	}
}

func (a *App) evaluateAlerts() {
	triggered := a.AlertService.Evaluate(context.Background())
	if triggered > 0 {
		a.Logger.Info().Int("triggered", triggered).Msg("Alert evaluation produced events")
	}
}

func (a *App) discoverPatterns() {
	opts := patterns.OptionsFromConfig(&a.Config.Patterns)
	inserted := a.PatternService.Discover(context.Background(), opts)
	if inserted > 0 {
		a.Logger.Info().Int("inserted", inserted).Msg("Pattern discovery stored new patterns")
	}
}

func (a *App) refreshRollups() {
	a.AnalyticsService.RefreshRollups(context.Background(), nil, nil, nil)
}

// WorkerOverview reports the scheduler state and per-job status for
// operational tooling.
func (a *App) WorkerOverview() map[string]interface{} {
	snapshot := a.SchedulerService.Snapshot()

	jobs := make([]map[string]interface{}, 0, len(snapshot.Jobs))
	for _, job := range snapshot.Jobs {
		entry := map[string]interface{}{
			"name":             job.Name,
			"interval_seconds": job.IntervalSeconds,
			"total_runs":       job.TotalRuns,
			"running":          job.Running,
			"enabled":          job.Enabled,
		}
		if job.NextRunAt != nil {
			entry["next_run_at"] = job.NextRunAt
		}
		if job.LastRunAt != nil {
			entry["last_run_at"] = job.LastRunAt
			entry["last_duration_seconds"] = job.LastDuration
		}
		if job.Error != "" {
			entry["error"] = job.Error
		}
		jobs = append(jobs, entry)
	}

	return map[string]interface{}{
		"name":        snapshot.Name,
		"running":     a.SchedulerService.IsRunning(),
		"max_workers": snapshot.MaxWorkers,
		"active_jobs": snapshot.ActiveJobs,
		"queued_jobs": snapshot.QueuedJobs,
		"jobs":        jobs,
		"ingestion":   a.IngestService.Tracker().Snapshot(),
	}
}

// ExecuteWorkerCommand applies a control action to the scheduler or one of
// its jobs. Worker "scheduler" accepts start/stop/restart; a job name
// accepts enable/disable/trigger.
func (a *App) ExecuteWorkerCommand(worker, action string) error {
	action = strings.ToLower(strings.TrimSpace(action))

	if worker == "scheduler" {
		switch action {
		case "start":
			a.SchedulerService.Start()
		case "stop":
			a.SchedulerService.Stop()
		case "restart":
			a.SchedulerService.Restart()
		default:
			return fmt.Errorf("invalid scheduler action: %s", action)
		}
		return nil
	}

	if !a.SchedulerService.HasJob(worker) {
		return fmt.Errorf("%w: %s", ErrWorkerUnavailable, worker)
	}

	switch action {
	case "enable":
		return a.SchedulerService.EnableJob(worker, -1)
	case "disable":
		return a.SchedulerService.DisableJob(worker)
	case "trigger":
		started, err := a.SchedulerService.TriggerJob(worker)
		if err != nil {
			return err
		}
		if !started {
			return fmt.Errorf("job %s is already running", worker)
		}
		return nil
	default:
		return fmt.Errorf("invalid job action: %s", action)
	}
}
