package ingest

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/gematria/internal/common"
	"github.com/ternarybob/gematria/internal/interfaces"
	"github.com/ternarybob/gematria/internal/models"
	"github.com/ternarybob/gematria/internal/services/gematria"
	"github.com/ternarybob/gematria/internal/services/settings"
)

// Service runs the source ingestion cycle: fetch, dedupe, persist items,
// compute gematria rows, record run bookkeeping. Failures never propagate to
// the scheduler; they are recorded on the source and its run row.
type Service struct {
	storage  interfaces.StorageManager
	settings *settings.Service
	fetcher  *Fetcher
	tracker  *Tracker
	config   *common.IngestConfig
	logger   arbor.ILogger

	cacheMu sync.Mutex
	caches  map[string]FetchCache
}

// NewService creates a new ingestion service
func NewService(storage interfaces.StorageManager, settingsSvc *settings.Service, fetcher *Fetcher, tracker *Tracker, config *common.IngestConfig, logger arbor.ILogger) *Service {
	return &Service{
		storage:  storage,
		settings: settingsSvc,
		fetcher:  fetcher,
		tracker:  tracker,
		config:   config,
		logger:   logger,
		caches:   make(map[string]FetchCache),
	}
}

// Tracker exposes the job tracker for the observability surface
func (s *Service) Tracker() *Tracker {
	return s.tracker
}

// RunSource ingests one source and returns the count of newly created items.
// Returns 0 when scraping is disabled, the source is unknown, or the run
// fails.
func (s *Service) RunSource(ctx context.Context, sourceID string) int {
	ws := s.settings.WorkerSettings(ctx)
	if !ws.ScrapeEnabled {
		s.logger.Debug().Str("source_id", sourceID).Msg("Scraping disabled, skipping source run")
		return 0
	}

	source, err := s.storage.Sources().GetSource(ctx, sourceID)
	if err != nil || source == nil {
		s.logger.Warn().Str("source_id", sourceID).Msg("Source not found, skipping run")
		return 0
	}

	jobID := s.tracker.JobStarted(source.ID, source.Name, source.Endpoint)
	started := time.Now().UTC()

	newItems, entryCount, unchanged, runErr := s.ingest(ctx, source, jobID)

	durationMs := time.Since(started).Milliseconds()
	now := time.Now().UTC()

	var status string
	switch {
	case runErr != nil:
		status = models.RunStatusError
	case newItems > 0:
		status = models.RunStatusOK
	case entryCount > 0 || unchanged:
		status = models.RunStatusUnchanged
	default:
		status = models.RunStatusEmpty
	}

	if runErr != nil {
		s.logger.Warn().Err(runErr).
			Str("source_id", source.ID).
			Str("source_name", source.Name).
			Msg("Source ingestion failed")

		source.LastRunAt = &now
		source.LastCheckedAt = &now
		source.LastStatus = models.RunStatusError
		source.LastError = truncate(runErr.Error(), s.config.SourceErrorLen)
		source.LastDurationMs = durationMs
		source.ConsecutiveFailures++
		if err := s.storage.Sources().SaveSource(ctx, source); err != nil {
			s.logger.Error().Err(err).Str("source_id", source.ID).Msg("Failed to record source failure")
		}

		run := &models.CrawlerRun{
			ID:         common.NewID(),
			SourceID:   source.ID,
			StartedAt:  started,
			FinishedAt: now,
			Status:     models.RunStatusError,
			DurationMs: durationMs,
			Error:      truncate(runErr.Error(), s.config.RunErrorLen),
		}
		if err := s.storage.Runs().SaveRun(ctx, run); err != nil {
			s.logger.Error().Err(err).Str("source_id", source.ID).Msg("Failed to record error run")
		}

		s.tracker.JobFinished(jobID, models.RunStatusError, newItems, durationMs, truncate(runErr.Error(), s.config.RunErrorLen))
		return 0
	}

	source.LastRunAt = &now
	source.LastCheckedAt = &now
	source.LastStatus = status
	source.LastError = ""
	source.LastDurationMs = durationMs
	source.LastItemCount = newItems
	source.ConsecutiveFailures = 0
	if err := s.storage.Sources().SaveSource(ctx, source); err != nil {
		s.logger.Error().Err(err).Str("source_id", source.ID).Msg("Failed to update source bookkeeping")
	}

	run := &models.CrawlerRun{
		ID:           common.NewID(),
		SourceID:     source.ID,
		StartedAt:    started,
		FinishedAt:   now,
		Status:       status,
		ItemsFetched: newItems,
		DurationMs:   durationMs,
	}
	if err := s.storage.Runs().SaveRun(ctx, run); err != nil {
		s.logger.Error().Err(err).Str("source_id", source.ID).Msg("Failed to record run")
	}

	s.logger.Info().
		Str("source_id", source.ID).
		Str("source_name", source.Name).
		Str("status", status).
		Int("new_items", newItems).
		Int64("duration_ms", durationMs).
		Msg("Source ingestion completed")

	s.tracker.JobFinished(jobID, status, newItems, durationMs, "")
	return newItems
}

// ingest performs the fetch/persist steps and reports what happened
func (s *Service) ingest(ctx context.Context, source *models.Source, jobID string) (newItems, entryCount int, unchanged bool, err error) {
	s.cacheMu.Lock()
	cache := s.caches[source.ID]
	s.cacheMu.Unlock()

	result := s.fetcher.Fetch(ctx, source.Endpoint, cache)

	s.cacheMu.Lock()
	s.caches[source.ID] = result.Cache
	s.cacheMu.Unlock()

	entryCount = len(result.Entries)

	for _, entry := range result.Entries {
		seen, err := s.storage.Items().HasDedupeHash(ctx, entry.DedupeHash)
		if err != nil {
			return newItems, entryCount, result.Unchanged, fmt.Errorf("dedupe check failed: %w", err)
		}
		if seen {
			continue
		}

		item := &models.Item{
			ID:          common.NewID(),
			SourceID:    source.ID,
			URL:         entry.URL,
			Title:       entry.Title,
			Author:      entry.Author,
			FetchedAt:   time.Now().UTC(),
			PublishedAt: entry.PublishedAt,
			DedupeHash:  entry.DedupeHash,
		}
		if err := s.storage.Items().SaveItem(ctx, item); err != nil {
			return newItems, entryCount, result.Unchanged, fmt.Errorf("failed to save item: %w", err)
		}

		if err := s.computeGematria(ctx, item); err != nil {
			return newItems, entryCount, result.Unchanged, fmt.Errorf("failed to compute gematria: %w", err)
		}

		newItems++
		s.tracker.JobProgress(jobID, newItems)
	}

	if err := s.registerDiscoveredFeeds(ctx, source, result.DiscoveredFeeds); err != nil {
		return newItems, entryCount, result.Unchanged, err
	}

	return newItems, entryCount, result.Unchanged, nil
}

// registerDiscoveredFeeds creates disabled auto-discovered sources for
// candidate feed URLs that are not already known
func (s *Service) registerDiscoveredFeeds(ctx context.Context, source *models.Source, feeds []string) error {
	for _, feedURL := range feeds {
		if feedURL == source.Endpoint {
			continue
		}

		existing, err := s.storage.Sources().GetSourceByEndpoint(ctx, feedURL)
		if err != nil {
			return fmt.Errorf("failed to check discovered feed: %w", err)
		}
		if existing != nil {
			continue
		}

		now := time.Now().UTC()
		discovered := &models.Source{
			ID:             common.NewID(),
			Name:           deriveSourceName(feedURL),
			Type:           models.SourceTypeRSS,
			Endpoint:       feedURL,
			Enabled:        false,
			AutoDiscovered: true,
			DiscoveredAt:   &now,
			CreatedAt:      now,
		}
		if err := s.storage.Sources().SaveSource(ctx, discovered); err != nil {
			return fmt.Errorf("failed to save discovered source: %w", err)
		}

		s.logger.Info().
			Str("endpoint", feedURL).
			Str("via_source", source.ID).
			Msg("Discovered feed registered as disabled source")
	}
	return nil
}

// RunDueSources scans enabled sources oldest-run first and ingests each one
// that is due, up to the configured per-cycle cap (0 = unlimited). Returns
// the number of sources attempted.
func (s *Service) RunDueSources(ctx context.Context) int {
	ws := s.settings.WorkerSettings(ctx)
	if !ws.ScrapeEnabled {
		s.logger.Debug().Msg("Scraping disabled, skipping due-source scan")
		return 0
	}

	sources, err := s.storage.Sources().ListEnabledSources(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list enabled sources")
		return 0
	}

	now := time.Now().UTC()
	processed := 0

	for _, source := range sources {
		if ws.MaxSourcesPerCycle > 0 && processed >= ws.MaxSourcesPerCycle {
			break
		}

		intervalSec := source.IntervalSec
		if intervalSec <= 0 {
			intervalSec = ws.DefaultIntervalMinutes * 60
		}
		if source.LastRunAt != nil && source.LastRunAt.Add(time.Duration(intervalSec)*time.Second).After(now) {
			continue
		}

		s.RunSource(ctx, source.ID)
		processed++
	}

	if processed > 0 {
		s.logger.Info().Int("processed", processed).Msg("Due-source scan completed")
	}
	return processed
}

// ComputeItemGematria recomputes the gematria rows for one item using the
// currently enabled scheme set: rows for enabled schemes are upserted, rows
// for schemes no longer enabled are pruned.
func (s *Service) ComputeItemGematria(ctx context.Context, itemID string) error {
	item, err := s.storage.Items().GetItem(ctx, itemID)
	if err != nil {
		return err
	}
	return s.computeGematria(ctx, item)
}

func (s *Service) computeGematria(ctx context.Context, item *models.Item) error {
	gs := s.settings.GematriaSettings(ctx)

	normalized := gematria.Normalize(item.Title, gs.IgnorePattern)
	tokenCount := gematria.TokenCount(item.Title)
	values := gematria.ComputeAll(item.Title, gs.EnabledSchemes, gs.IgnorePattern)

	enabled := make(map[string]bool, len(gs.EnabledSchemes))
	for scheme, value := range values {
		enabled[scheme] = true
		row := &models.Gematria{
			ItemID:          item.ID,
			Scheme:          scheme,
			Value:           value,
			TokenCount:      tokenCount,
			NormalizedTitle: normalized,
		}
		if err := s.storage.Gematria().UpsertGematria(ctx, row); err != nil {
			return err
		}
	}

	existing, err := s.storage.Gematria().GetItemGematria(ctx, item.ID)
	if err != nil {
		return err
	}
	for _, row := range existing {
		if !enabled[row.Scheme] {
			if err := s.storage.Gematria().DeleteGematria(ctx, row.Key); err != nil {
				return err
			}
		}
	}
	return nil
}

// deriveSourceName builds a readable name from a feed URL host
func deriveSourceName(feedURL string) string {
	parsed, err := url.Parse(feedURL)
	if err != nil || parsed.Host == "" {
		return feedURL
	}
	return strings.TrimPrefix(parsed.Host, "www.")
}

// truncate caps a string at max runes
func truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
