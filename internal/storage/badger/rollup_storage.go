package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/gematria/internal/interfaces"
	"github.com/ternarybob/gematria/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// RollupStorage implements the RollupStorage interface for Badger
type RollupStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewRollupStorage creates a new RollupStorage instance
func NewRollupStorage(db *BadgerDB, logger arbor.ILogger) interfaces.RollupStorage {
	return &RollupStorage{
		db:     db,
		logger: logger,
	}
}

func (s *RollupStorage) GetRollup(ctx context.Context, scope string, windowHours int, scheme string) (*models.GematriaRollup, error) {
	var rollup models.GematriaRollup
	key := models.RollupKey(scope, windowHours, scheme)
	if err := s.db.Store().Get(key, &rollup); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get rollup: %w", err)
	}
	return &rollup, nil
}

func (s *RollupStorage) UpsertRollup(ctx context.Context, rollup *models.GematriaRollup) error {
	if rollup.Scope == "" || rollup.Scheme == "" || rollup.WindowHours <= 0 {
		return fmt.Errorf("rollup scope, scheme and window are required")
	}
	rollup.Key = models.RollupKey(rollup.Scope, rollup.WindowHours, rollup.Scheme)

	if err := s.db.Store().Upsert(rollup.Key, rollup); err != nil {
		return fmt.Errorf("failed to upsert rollup: %w", err)
	}
	return nil
}

func (s *RollupStorage) ListRollups(ctx context.Context) ([]*models.GematriaRollup, error) {
	var rollups []models.GematriaRollup
	if err := s.db.Store().Find(&rollups, badgerhold.Where("Key").Ne("").SortBy("Key")); err != nil {
		return nil, fmt.Errorf("failed to list rollups: %w", err)
	}

	result := make([]*models.GematriaRollup, len(rollups))
	for i := range rollups {
		result[i] = &rollups[i]
	}
	return result, nil
}
