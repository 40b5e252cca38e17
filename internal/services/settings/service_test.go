package settings

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/gematria/internal/models"
)

type memSettings struct {
	values map[string]*models.Setting
}

func newMemSettings() *memSettings {
	return &memSettings{values: make(map[string]*models.Setting)}
}

func (m *memSettings) GetSetting(ctx context.Context, key string) (*models.Setting, error) {
	return m.values[key], nil
}

func (m *memSettings) PutSetting(ctx context.Context, setting *models.Setting) error {
	m.values[setting.Key] = setting
	return nil
}

func TestWorkerSettingsDefaults(t *testing.T) {
	svc := NewService(newMemSettings(), arbor.NewLogger())

	ws := svc.WorkerSettings(context.Background())

	assert.True(t, ws.ScrapeEnabled)
	assert.Equal(t, 15, ws.DefaultIntervalMinutes)
	assert.Equal(t, 10, ws.MaxSourcesPerCycle)
}

func TestWorkerSettingsStoredOverride(t *testing.T) {
	store := newMemSettings()
	svc := NewService(store, arbor.NewLogger())
	ctx := context.Background()

	err := svc.UpdateWorkerSettings(ctx, WorkerSettings{
		ScrapeEnabled:          false,
		DefaultIntervalMinutes: 5,
		MaxSourcesPerCycle:     3,
	})
	require.NoError(t, err)

	ws := svc.WorkerSettings(ctx)
	assert.False(t, ws.ScrapeEnabled)
	assert.Equal(t, 5, ws.DefaultIntervalMinutes)
	assert.Equal(t, 3, ws.MaxSourcesPerCycle)
}

func TestWorkerSettingsCoercion(t *testing.T) {
	store := newMemSettings()
	svc := NewService(store, arbor.NewLogger())
	ctx := context.Background()

	err := svc.UpdateWorkerSettings(ctx, WorkerSettings{
		ScrapeEnabled:          true,
		DefaultIntervalMinutes: -1,
		MaxSourcesPerCycle:     -5,
	})
	require.NoError(t, err)

	ws := svc.WorkerSettings(ctx)
	assert.Equal(t, 15, ws.DefaultIntervalMinutes)
	assert.Equal(t, 0, ws.MaxSourcesPerCycle)
}

func TestWorkerSettingsMalformedDocument(t *testing.T) {
	store := newMemSettings()
	store.values[models.SettingWorkerScrape] = &models.Setting{
		Key:   models.SettingWorkerScrape,
		Value: json.RawMessage(`{not json`),
	}
	svc := NewService(store, arbor.NewLogger())

	ws := svc.WorkerSettings(context.Background())
	assert.Equal(t, DefaultWorkerSettings(), ws)
}

func TestGematriaSettingsDefaults(t *testing.T) {
	svc := NewService(newMemSettings(), arbor.NewLogger())

	gs := svc.GematriaSettings(context.Background())

	assert.Equal(t, []string{"ordinal", "reduction", "reverse"}, gs.EnabledSchemes)
	assert.Equal(t, "[^A-Z]", gs.IgnorePattern)
}

func TestGematriaSettingsDropsUnknownSchemes(t *testing.T) {
	store := newMemSettings()
	svc := NewService(store, arbor.NewLogger())
	ctx := context.Background()

	err := svc.UpdateGematriaSettings(ctx, GematriaSettings{
		EnabledSchemes: []string{"prime", "klingon", "sumerian"},
		IgnorePattern:  "[^A-Z0-9]",
	})
	require.NoError(t, err)

	gs := svc.GematriaSettings(ctx)
	assert.Equal(t, []string{"prime", "sumerian"}, gs.EnabledSchemes)
	assert.Equal(t, "[^A-Z0-9]", gs.IgnorePattern)
}

func TestGematriaSettingsEmptySchemesFallBack(t *testing.T) {
	store := newMemSettings()
	svc := NewService(store, arbor.NewLogger())
	ctx := context.Background()

	err := svc.UpdateGematriaSettings(ctx, GematriaSettings{
		EnabledSchemes: []string{"klingon"},
	})
	require.NoError(t, err)

	gs := svc.GematriaSettings(ctx)
	assert.Equal(t, []string{"ordinal", "reduction", "reverse"}, gs.EnabledSchemes)
	assert.Equal(t, "[^A-Z]", gs.IgnorePattern)
}
