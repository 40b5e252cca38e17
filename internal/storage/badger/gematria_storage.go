package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/gematria/internal/interfaces"
	"github.com/ternarybob/gematria/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// GematriaStorage implements the GematriaStorage interface for Badger
type GematriaStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewGematriaStorage creates a new GematriaStorage instance
func NewGematriaStorage(db *BadgerDB, logger arbor.ILogger) interfaces.GematriaStorage {
	return &GematriaStorage{
		db:     db,
		logger: logger,
	}
}

func (s *GematriaStorage) UpsertGematria(ctx context.Context, row *models.Gematria) error {
	if row.ItemID == "" || row.Scheme == "" {
		return fmt.Errorf("gematria item ID and scheme are required")
	}
	row.Key = models.GematriaKey(row.ItemID, row.Scheme)

	if err := s.db.Store().Upsert(row.Key, row); err != nil {
		return fmt.Errorf("failed to upsert gematria row: %w", err)
	}
	return nil
}

func (s *GematriaStorage) GetItemGematria(ctx context.Context, itemID string) ([]*models.Gematria, error) {
	var rows []models.Gematria
	if err := s.db.Store().Find(&rows, badgerhold.Where("ItemID").Eq(itemID).Index("ItemID").SortBy("Scheme")); err != nil {
		return nil, fmt.Errorf("failed to get item gematria: %w", err)
	}

	result := make([]*models.Gematria, len(rows))
	for i := range rows {
		result[i] = &rows[i]
	}
	return result, nil
}

func (s *GematriaStorage) DeleteGematria(ctx context.Context, key string) error {
	if err := s.db.Store().Delete(key, &models.Gematria{}); err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to delete gematria row: %w", err)
	}
	return nil
}

func (s *GematriaStorage) DeleteItemGematria(ctx context.Context, itemID string) error {
	if err := s.db.Store().DeleteMatching(&models.Gematria{}, badgerhold.Where("ItemID").Eq(itemID).Index("ItemID")); err != nil {
		return fmt.Errorf("failed to delete item gematria rows: %w", err)
	}
	return nil
}
