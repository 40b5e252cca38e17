package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/gematria/internal/models"
)

// SourceStorage - interface for feed source persistence
type SourceStorage interface {
	SaveSource(ctx context.Context, source *models.Source) error
	GetSource(ctx context.Context, id string) (*models.Source, error)
	GetSourceByEndpoint(ctx context.Context, endpoint string) (*models.Source, error)
	// ListEnabledSources returns enabled sources ordered by LastRunAt
	// ascending with never-run sources first, so no source starves.
	ListEnabledSources(ctx context.Context) ([]*models.Source, error)
	ListSources(ctx context.Context) ([]*models.Source, error)
	DeleteSource(ctx context.Context, id string) error
	CountSources(ctx context.Context) (int, error)
}

// ItemStorage - interface for ingested item persistence
type ItemStorage interface {
	// SaveItem inserts a new item. The item URL is globally unique; saving an
	// item whose URL already exists returns an error.
	SaveItem(ctx context.Context, item *models.Item) error
	GetItem(ctx context.Context, id string) (*models.Item, error)
	HasDedupeHash(ctx context.Context, hash string) (bool, error)
	// ListItemsFetchedBetween returns items with FetchedAt in [start, end],
	// newest first, capped at limit when limit > 0.
	ListItemsFetchedBetween(ctx context.Context, start, end time.Time, limit int) ([]*models.Item, error)
	CountItems(ctx context.Context) (int, error)
	DeleteItem(ctx context.Context, id string) error
}

// GematriaStorage - interface for per-item gematria rows
type GematriaStorage interface {
	UpsertGematria(ctx context.Context, row *models.Gematria) error
	GetItemGematria(ctx context.Context, itemID string) ([]*models.Gematria, error)
	DeleteGematria(ctx context.Context, key string) error
	DeleteItemGematria(ctx context.Context, itemID string) error
}

// RunStorage - interface for the crawler run audit trail
type RunStorage interface {
	SaveRun(ctx context.Context, run *models.CrawlerRun) error
	ListRunsBySource(ctx context.Context, sourceID string, limit int) ([]*models.CrawlerRun, error)
	ListRecentRuns(ctx context.Context, limit int) ([]*models.CrawlerRun, error)
}

// PatternStorage - interface for discovered pattern persistence
type PatternStorage interface {
	SavePattern(ctx context.Context, pattern *models.Pattern) error
	// GetLatestByLabel returns the most recently created pattern with the
	// given label, or nil when none exists.
	GetLatestByLabel(ctx context.Context, label string) (*models.Pattern, error)
	DeletePatternsBefore(ctx context.Context, cutoff time.Time) (int, error)
	ListPatterns(ctx context.Context, limit int) ([]*models.Pattern, error)
}

// AlertStorage - interface for alert and event persistence
type AlertStorage interface {
	SaveAlert(ctx context.Context, alert *models.Alert) error
	GetAlert(ctx context.Context, id string) (*models.Alert, error)
	ListEnabledAlerts(ctx context.Context) ([]*models.Alert, error)
	SaveEvent(ctx context.Context, event *models.Event) error
	ListEventsByAlert(ctx context.Context, alertID string, limit int) ([]*models.Event, error)
}

// RollupStorage - interface for the rollup cache
type RollupStorage interface {
	GetRollup(ctx context.Context, scope string, windowHours int, scheme string) (*models.GematriaRollup, error)
	UpsertRollup(ctx context.Context, rollup *models.GematriaRollup) error
	ListRollups(ctx context.Context) ([]*models.GematriaRollup, error)
}

// SettingsStorage - interface for the generic key/JSON settings store
type SettingsStorage interface {
	GetSetting(ctx context.Context, key string) (*models.Setting, error)
	PutSetting(ctx context.Context, setting *models.Setting) error
}

// StorageManager provides access to all storage implementations
type StorageManager interface {
	Sources() SourceStorage
	Items() ItemStorage
	Gematria() GematriaStorage
	Runs() RunStorage
	Patterns() PatternStorage
	Alerts() AlertStorage
	Rollups() RollupStorage
	Settings() SettingsStorage
	Close() error
}
