package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/gematria/internal/interfaces"
	"github.com/ternarybob/gematria/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// PatternStorage implements the PatternStorage interface for Badger
type PatternStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewPatternStorage creates a new PatternStorage instance
func NewPatternStorage(db *BadgerDB, logger arbor.ILogger) interfaces.PatternStorage {
	return &PatternStorage{
		db:     db,
		logger: logger,
	}
}

func (s *PatternStorage) SavePattern(ctx context.Context, pattern *models.Pattern) error {
	if pattern.ID == "" {
		return fmt.Errorf("pattern ID is required")
	}

	if err := s.db.Store().Upsert(pattern.ID, pattern); err != nil {
		return fmt.Errorf("failed to save pattern: %w", err)
	}
	return nil
}

func (s *PatternStorage) GetLatestByLabel(ctx context.Context, label string) (*models.Pattern, error) {
	var patterns []models.Pattern
	query := badgerhold.Where("Label").Eq(label).Index("Label").SortBy("CreatedAt").Reverse().Limit(1)
	if err := s.db.Store().Find(&patterns, query); err != nil {
		return nil, fmt.Errorf("failed to get latest pattern: %w", err)
	}
	if len(patterns) == 0 {
		return nil, nil
	}
	return &patterns[0], nil
}

func (s *PatternStorage) DeletePatternsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	query := badgerhold.Where("CreatedAt").Lt(cutoff)

	count, err := s.db.Store().Count(&models.Pattern{}, query)
	if err != nil {
		return 0, fmt.Errorf("failed to count stale patterns: %w", err)
	}
	if count == 0 {
		return 0, nil
	}

	if err := s.db.Store().DeleteMatching(&models.Pattern{}, query); err != nil {
		return 0, fmt.Errorf("failed to delete stale patterns: %w", err)
	}
	return int(count), nil
}

func (s *PatternStorage) ListPatterns(ctx context.Context, limit int) ([]*models.Pattern, error) {
	query := badgerhold.Where("ID").Ne("").SortBy("CreatedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var patterns []models.Pattern
	if err := s.db.Store().Find(&patterns, query); err != nil {
		return nil, fmt.Errorf("failed to list patterns: %w", err)
	}

	result := make([]*models.Pattern, len(patterns))
	for i := range patterns {
		result[i] = &patterns[i]
	}
	return result, nil
}
