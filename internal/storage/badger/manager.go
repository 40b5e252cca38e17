package badger

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/gematria/internal/common"
	"github.com/ternarybob/gematria/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db       *BadgerDB
	sources  interfaces.SourceStorage
	items    interfaces.ItemStorage
	gematria interfaces.GematriaStorage
	runs     interfaces.RunStorage
	patterns interfaces.PatternStorage
	alerts   interfaces.AlertStorage
	rollups  interfaces.RollupStorage
	settings interfaces.SettingsStorage
	logger   arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:       db,
		sources:  NewSourceStorage(db, logger),
		items:    NewItemStorage(db, logger),
		gematria: NewGematriaStorage(db, logger),
		runs:     NewRunStorage(db, logger),
		patterns: NewPatternStorage(db, logger),
		alerts:   NewAlertStorage(db, logger),
		rollups:  NewRollupStorage(db, logger),
		settings: NewSettingsStorage(db, logger),
		logger:   logger,
	}

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

// Sources returns the Source storage interface
func (m *Manager) Sources() interfaces.SourceStorage {
	return m.sources
}

// Items returns the Item storage interface
func (m *Manager) Items() interfaces.ItemStorage {
	return m.items
}

// Gematria returns the Gematria storage interface
func (m *Manager) Gematria() interfaces.GematriaStorage {
	return m.gematria
}

// Runs returns the CrawlerRun storage interface
func (m *Manager) Runs() interfaces.RunStorage {
	return m.runs
}

// Patterns returns the Pattern storage interface
func (m *Manager) Patterns() interfaces.PatternStorage {
	return m.patterns
}

// Alerts returns the Alert storage interface
func (m *Manager) Alerts() interfaces.AlertStorage {
	return m.alerts
}

// Rollups returns the Rollup storage interface
func (m *Manager) Rollups() interfaces.RollupStorage {
	return m.rollups
}

// Settings returns the Settings storage interface
func (m *Manager) Settings() interfaces.SettingsStorage {
	return m.settings
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
