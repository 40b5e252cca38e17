package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/gematria/internal/interfaces"
	"github.com/ternarybob/gematria/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// SettingsStorage implements the SettingsStorage interface for Badger
type SettingsStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewSettingsStorage creates a new SettingsStorage instance
func NewSettingsStorage(db *BadgerDB, logger arbor.ILogger) interfaces.SettingsStorage {
	return &SettingsStorage{
		db:     db,
		logger: logger,
	}
}

func (s *SettingsStorage) GetSetting(ctx context.Context, key string) (*models.Setting, error) {
	var setting models.Setting
	if err := s.db.Store().Get(key, &setting); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get setting: %w", err)
	}
	return &setting, nil
}

func (s *SettingsStorage) PutSetting(ctx context.Context, setting *models.Setting) error {
	if setting.Key == "" {
		return fmt.Errorf("setting key is required")
	}

	if err := s.db.Store().Upsert(setting.Key, setting); err != nil {
		return fmt.Errorf("failed to save setting: %w", err)
	}
	return nil
}
