package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/gematria/internal/interfaces"
	"github.com/ternarybob/gematria/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// AlertStorage implements the AlertStorage interface for Badger
type AlertStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewAlertStorage creates a new AlertStorage instance
func NewAlertStorage(db *BadgerDB, logger arbor.ILogger) interfaces.AlertStorage {
	return &AlertStorage{
		db:     db,
		logger: logger,
	}
}

func (s *AlertStorage) SaveAlert(ctx context.Context, alert *models.Alert) error {
	if alert.ID == "" {
		return fmt.Errorf("alert ID is required")
	}
	if alert.Name == "" {
		return fmt.Errorf("alert name is required")
	}

	if err := s.db.Store().Upsert(alert.ID, alert); err != nil {
		return fmt.Errorf("failed to save alert: %w", err)
	}
	return nil
}

func (s *AlertStorage) GetAlert(ctx context.Context, id string) (*models.Alert, error) {
	var alert models.Alert
	if err := s.db.Store().Get(id, &alert); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("alert not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}
	return &alert, nil
}

func (s *AlertStorage) ListEnabledAlerts(ctx context.Context) ([]*models.Alert, error) {
	var alerts []models.Alert
	if err := s.db.Store().Find(&alerts, badgerhold.Where("Enabled").Eq(true).SortBy("CreatedAt")); err != nil {
		return nil, fmt.Errorf("failed to list enabled alerts: %w", err)
	}

	result := make([]*models.Alert, len(alerts))
	for i := range alerts {
		result[i] = &alerts[i]
	}
	return result, nil
}

func (s *AlertStorage) SaveEvent(ctx context.Context, event *models.Event) error {
	if event.ID == "" {
		return fmt.Errorf("event ID is required")
	}

	if err := s.db.Store().Insert(event.ID, event); err != nil {
		return fmt.Errorf("failed to save event: %w", err)
	}
	return nil
}

func (s *AlertStorage) ListEventsByAlert(ctx context.Context, alertID string, limit int) ([]*models.Event, error) {
	query := badgerhold.Where("AlertID").Eq(alertID).Index("AlertID").SortBy("TriggeredAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var events []models.Event
	if err := s.db.Store().Find(&events, query); err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	result := make([]*models.Event, len(events))
	for i := range events {
		result[i] = &events[i]
	}
	return result, nil
}
