package settings

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/gematria/internal/interfaces"
	"github.com/ternarybob/gematria/internal/models"
	"github.com/ternarybob/gematria/internal/services/gematria"
)

// WorkerSettings controls the ingestion worker behavior
type WorkerSettings struct {
	ScrapeEnabled          bool `json:"scrape_enabled"`
	DefaultIntervalMinutes int  `json:"default_interval_minutes"`
	MaxSourcesPerCycle     int  `json:"max_sources_per_cycle"`
}

// GematriaSettings controls which schemes are computed and how titles are
// normalized before computation
type GematriaSettings struct {
	EnabledSchemes []string `json:"enabled_schemes"`
	IgnorePattern  string   `json:"ignore_pattern"`
}

// DefaultWorkerSettings returns the built-in worker defaults
func DefaultWorkerSettings() WorkerSettings {
	return WorkerSettings{
		ScrapeEnabled:          true,
		DefaultIntervalMinutes: 15,
		MaxSourcesPerCycle:     10,
	}
}

// DefaultGematriaSettings returns the built-in gematria defaults
func DefaultGematriaSettings() GematriaSettings {
	return GematriaSettings{
		EnabledSchemes: append([]string{}, gematria.DefaultEnabledSchemes...),
		IgnorePattern:  gematria.DefaultIgnorePattern,
	}
}

// Service provides read-through settings with defaults. Missing keys or
// fields fall back to the defaults; stored values are coerced on write.
type Service struct {
	storage interfaces.SettingsStorage
	logger  arbor.ILogger
}

// NewService creates a new settings service
func NewService(storage interfaces.SettingsStorage, logger arbor.ILogger) *Service {
	return &Service{
		storage: storage,
		logger:  logger,
	}
}

// WorkerSettings reads the worker settings, merging stored values over defaults
func (s *Service) WorkerSettings(ctx context.Context) WorkerSettings {
	result := DefaultWorkerSettings()

	setting, err := s.storage.GetSetting(ctx, models.SettingWorkerScrape)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to read worker settings, using defaults")
		return result
	}
	if setting == nil || len(setting.Value) == 0 {
		return result
	}

	if err := json.Unmarshal(setting.Value, &result); err != nil {
		s.logger.Warn().Err(err).Msg("Malformed worker settings document, using defaults")
		return DefaultWorkerSettings()
	}
	if result.DefaultIntervalMinutes <= 0 {
		result.DefaultIntervalMinutes = DefaultWorkerSettings().DefaultIntervalMinutes
	}
	if result.MaxSourcesPerCycle < 0 {
		result.MaxSourcesPerCycle = 0
	}
	return result
}

// UpdateWorkerSettings coerces and persists the worker settings
func (s *Service) UpdateWorkerSettings(ctx context.Context, ws WorkerSettings) error {
	if ws.DefaultIntervalMinutes <= 0 {
		ws.DefaultIntervalMinutes = DefaultWorkerSettings().DefaultIntervalMinutes
	}
	if ws.MaxSourcesPerCycle < 0 {
		ws.MaxSourcesPerCycle = 0
	}

	value, err := json.Marshal(ws)
	if err != nil {
		return fmt.Errorf("failed to encode worker settings: %w", err)
	}

	return s.storage.PutSetting(ctx, &models.Setting{
		Key:   models.SettingWorkerScrape,
		Value: value,
	})
}

// GematriaSettings reads the gematria settings, merging stored values over
// defaults. Unknown scheme names are dropped; an empty result falls back to
// the default scheme set.
func (s *Service) GematriaSettings(ctx context.Context) GematriaSettings {
	result := DefaultGematriaSettings()

	setting, err := s.storage.GetSetting(ctx, models.SettingGematriaCompute)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to read gematria settings, using defaults")
		return result
	}
	if setting == nil || len(setting.Value) == 0 {
		return result
	}

	var stored GematriaSettings
	if err := json.Unmarshal(setting.Value, &stored); err != nil {
		s.logger.Warn().Err(err).Msg("Malformed gematria settings document, using defaults")
		return result
	}

	if len(stored.EnabledSchemes) > 0 {
		valid := gematria.ValidSchemeNames(stored.EnabledSchemes)
		if len(valid) > 0 {
			result.EnabledSchemes = valid
		}
	}
	if stored.IgnorePattern != "" {
		result.IgnorePattern = stored.IgnorePattern
	}
	return result
}

// UpdateGematriaSettings coerces and persists the gematria settings
func (s *Service) UpdateGematriaSettings(ctx context.Context, gs GematriaSettings) error {
	valid := gematria.ValidSchemeNames(gs.EnabledSchemes)
	if len(valid) == 0 {
		valid = append([]string{}, gematria.DefaultEnabledSchemes...)
	}
	gs.EnabledSchemes = valid

	if gs.IgnorePattern == "" {
		gs.IgnorePattern = gematria.DefaultIgnorePattern
	}

	value, err := json.Marshal(gs)
	if err != nil {
		return fmt.Errorf("failed to encode gematria settings: %w", err)
	}

	return s.storage.PutSetting(ctx, &models.Setting{
		Key:   models.SettingGematriaCompute,
		Value: value,
	})
}
