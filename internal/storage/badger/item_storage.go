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

// ItemStorage implements the ItemStorage interface for Badger
type ItemStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewItemStorage creates a new ItemStorage instance
func NewItemStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ItemStorage {
	return &ItemStorage{
		db:     db,
		logger: logger,
	}
}

func (s *ItemStorage) SaveItem(ctx context.Context, item *models.Item) error {
	if item.ID == "" {
		return fmt.Errorf("item ID is required")
	}
	if item.URL == "" {
		return fmt.Errorf("item URL is required")
	}

	// URL is globally unique across sources
	existing, err := s.db.Store().Count(&models.Item{}, badgerhold.Where("URL").Eq(item.URL).Index("URL"))
	if err != nil {
		return fmt.Errorf("failed to check item URL: %w", err)
	}
	if existing > 0 {
		return fmt.Errorf("item URL already exists: %s", item.URL)
	}

	if err := s.db.Store().Insert(item.ID, item); err != nil {
		return fmt.Errorf("failed to save item: %w", err)
	}
	return nil
}

func (s *ItemStorage) GetItem(ctx context.Context, id string) (*models.Item, error) {
	var item models.Item
	if err := s.db.Store().Get(id, &item); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("item not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return &item, nil
}

func (s *ItemStorage) HasDedupeHash(ctx context.Context, hash string) (bool, error) {
	count, err := s.db.Store().Count(&models.Item{}, badgerhold.Where("DedupeHash").Eq(hash).Index("DedupeHash"))
	if err != nil {
		return false, fmt.Errorf("failed to check dedupe hash: %w", err)
	}
	return count > 0, nil
}

func (s *ItemStorage) ListItemsFetchedBetween(ctx context.Context, start, end time.Time, limit int) ([]*models.Item, error) {
	query := badgerhold.Where("FetchedAt").Ge(start).And("FetchedAt").Le(end).SortBy("FetchedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var items []models.Item
	if err := s.db.Store().Find(&items, query); err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}

	result := make([]*models.Item, len(items))
	for i := range items {
		result[i] = &items[i]
	}
	return result, nil
}

func (s *ItemStorage) CountItems(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.Item{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count items: %w", err)
	}
	return int(count), nil
}

func (s *ItemStorage) DeleteItem(ctx context.Context, id string) error {
	if err := s.db.Store().Delete(id, &models.Item{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return fmt.Errorf("item not found: %s", id)
		}
		return fmt.Errorf("failed to delete item: %w", err)
	}
	return nil
}
