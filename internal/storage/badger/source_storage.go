package badger

import (
	"context"
	"fmt"
	"sort"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/gematria/internal/interfaces"
	"github.com/ternarybob/gematria/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// SourceStorage implements the SourceStorage interface for Badger
type SourceStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewSourceStorage creates a new SourceStorage instance
func NewSourceStorage(db *BadgerDB, logger arbor.ILogger) interfaces.SourceStorage {
	return &SourceStorage{
		db:     db,
		logger: logger,
	}
}

func (s *SourceStorage) SaveSource(ctx context.Context, source *models.Source) error {
	if source.ID == "" {
		return fmt.Errorf("source ID is required")
	}
	if err := source.Validate(); err != nil {
		return fmt.Errorf("invalid source: %w", err)
	}

	if err := s.db.Store().Upsert(source.ID, source); err != nil {
		return fmt.Errorf("failed to save source: %w", err)
	}
	return nil
}

func (s *SourceStorage) GetSource(ctx context.Context, id string) (*models.Source, error) {
	var source models.Source
	if err := s.db.Store().Get(id, &source); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("source not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get source: %w", err)
	}
	return &source, nil
}

func (s *SourceStorage) GetSourceByEndpoint(ctx context.Context, endpoint string) (*models.Source, error) {
	var sources []models.Source
	if err := s.db.Store().Find(&sources, badgerhold.Where("Endpoint").Eq(endpoint).Index("Endpoint")); err != nil {
		return nil, fmt.Errorf("failed to query source by endpoint: %w", err)
	}
	if len(sources) == 0 {
		return nil, nil
	}
	return &sources[0], nil
}

func (s *SourceStorage) ListEnabledSources(ctx context.Context) ([]*models.Source, error) {
	var sources []models.Source
	if err := s.db.Store().Find(&sources, badgerhold.Where("Enabled").Eq(true)); err != nil {
		return nil, fmt.Errorf("failed to list enabled sources: %w", err)
	}

	// Never-run sources sort first, then oldest LastRunAt ascending
	sort.SliceStable(sources, func(i, j int) bool {
		a, b := sources[i].LastRunAt, sources[j].LastRunAt
		if a == nil && b == nil {
			return sources[i].CreatedAt.Before(sources[j].CreatedAt)
		}
		if a == nil {
			return true
		}
		if b == nil {
			return false
		}
		return a.Before(*b)
	})

	result := make([]*models.Source, len(sources))
	for i := range sources {
		result[i] = &sources[i]
	}
	return result, nil
}

func (s *SourceStorage) ListSources(ctx context.Context) ([]*models.Source, error) {
	var sources []models.Source
	if err := s.db.Store().Find(&sources, badgerhold.Where("ID").Ne("").SortBy("CreatedAt")); err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}

	result := make([]*models.Source, len(sources))
	for i := range sources {
		result[i] = &sources[i]
	}
	return result, nil
}

func (s *SourceStorage) DeleteSource(ctx context.Context, id string) error {
	if err := s.db.Store().Delete(id, &models.Source{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return fmt.Errorf("source not found: %s", id)
		}
		return fmt.Errorf("failed to delete source: %w", err)
	}
	return nil
}

func (s *SourceStorage) CountSources(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.Source{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count sources: %w", err)
	}
	return int(count), nil
}
