package badger

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/gematria/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

func newTestDB(t *testing.T) *BadgerDB {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "badger-test")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	options := badgerhold.DefaultOptions
	options.Dir = tmpDir
	options.ValueDir = tmpDir
	options.Logger = nil

	store, err := badgerhold.Open(options)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	return &BadgerDB{store: store}
}

func TestSourceOrderingNeverRunFirst(t *testing.T) {
	db := newTestDB(t)
	logger := arbor.NewLogger()
	storage := NewSourceStorage(db, logger)
	ctx := context.Background()

	now := time.Now()
	earlier := now.Add(-2 * time.Hour)
	later := now.Add(-1 * time.Hour)

	ran2 := &models.Source{
		ID: "ran-2", Name: "Ran Later", Type: models.SourceTypeRSS,
		Endpoint: "https://example.com/b.xml", Enabled: true,
		LastRunAt: &later, CreatedAt: now,
	}
	ran1 := &models.Source{
		ID: "ran-1", Name: "Ran Earlier", Type: models.SourceTypeRSS,
		Endpoint: "https://example.com/a.xml", Enabled: true,
		LastRunAt: &earlier, CreatedAt: now,
	}
	fresh := &models.Source{
		ID: "fresh", Name: "Never Ran", Type: models.SourceTypeRSS,
		Endpoint: "https://example.com/c.xml", Enabled: true,
		CreatedAt: now,
	}
	disabled := &models.Source{
		ID: "off", Name: "Disabled", Type: models.SourceTypeRSS,
		Endpoint: "https://example.com/d.xml", Enabled: false,
		CreatedAt: now,
	}

	for _, src := range []*models.Source{ran2, ran1, fresh, disabled} {
		if err := storage.SaveSource(ctx, src); err != nil {
			t.Fatalf("Failed to save source %s: %v", src.ID, err)
		}
	}

	sources, err := storage.ListEnabledSources(ctx)
	if err != nil {
		t.Fatalf("Failed to list enabled sources: %v", err)
	}

	if len(sources) != 3 {
		t.Fatalf("Expected 3 enabled sources, got %d", len(sources))
	}
	if sources[0].ID != "fresh" {
		t.Errorf("Expected never-run source first, got %s", sources[0].ID)
	}
	if sources[1].ID != "ran-1" {
		t.Errorf("Expected oldest run second, got %s", sources[1].ID)
	}
	if sources[2].ID != "ran-2" {
		t.Errorf("Expected newest run last, got %s", sources[2].ID)
	}
}

func TestSourceEndpointLookup(t *testing.T) {
	db := newTestDB(t)
	logger := arbor.NewLogger()
	storage := NewSourceStorage(db, logger)
	ctx := context.Background()

	src := &models.Source{
		ID: "s-1", Name: "Feed", Type: models.SourceTypeAtom,
		Endpoint: "https://example.com/feed.atom", Enabled: true,
		CreatedAt: time.Now(),
	}
	if err := storage.SaveSource(ctx, src); err != nil {
		t.Fatalf("Failed to save source: %v", err)
	}

	found, err := storage.GetSourceByEndpoint(ctx, "https://example.com/feed.atom")
	if err != nil {
		t.Fatalf("Failed to get source by endpoint: %v", err)
	}
	if found == nil || found.ID != "s-1" {
		t.Errorf("Expected source s-1, got %+v", found)
	}

	missing, err := storage.GetSourceByEndpoint(ctx, "https://example.com/missing.xml")
	if err != nil {
		t.Fatalf("Unexpected error for missing endpoint: %v", err)
	}
	if missing != nil {
		t.Errorf("Expected nil for missing endpoint, got %+v", missing)
	}
}

func TestItemURLUniqueness(t *testing.T) {
	db := newTestDB(t)
	logger := arbor.NewLogger()
	storage := NewItemStorage(db, logger)
	ctx := context.Background()

	item := &models.Item{
		ID:         "i-1",
		SourceID:   "s-1",
		URL:        "https://example.com/post/1",
		Title:      "First",
		FetchedAt:  time.Now(),
		DedupeHash: "hash-1",
	}
	if err := storage.SaveItem(ctx, item); err != nil {
		t.Fatalf("Failed to save item: %v", err)
	}

	dup := &models.Item{
		ID:         "i-2",
		SourceID:   "s-2",
		URL:        "https://example.com/post/1",
		Title:      "Duplicate",
		FetchedAt:  time.Now(),
		DedupeHash: "hash-2",
	}
	if err := storage.SaveItem(ctx, dup); err == nil {
		t.Error("Expected error saving duplicate URL, got nil")
	}

	seen, err := storage.HasDedupeHash(ctx, "hash-1")
	if err != nil {
		t.Fatalf("Failed to check dedupe hash: %v", err)
	}
	if !seen {
		t.Error("Expected dedupe hash to be present")
	}

	unseen, err := storage.HasDedupeHash(ctx, "hash-x")
	if err != nil {
		t.Fatalf("Failed to check dedupe hash: %v", err)
	}
	if unseen {
		t.Error("Expected unknown dedupe hash to be absent")
	}
}

func TestItemWindowQuery(t *testing.T) {
	db := newTestDB(t)
	logger := arbor.NewLogger()
	storage := NewItemStorage(db, logger)
	ctx := context.Background()

	now := time.Now()
	ages := []time.Duration{-1 * time.Hour, -10 * time.Hour, -100 * time.Hour}
	for i, age := range ages {
		item := &models.Item{
			ID:         "i-" + string(rune('a'+i)),
			SourceID:   "s-1",
			URL:        "https://example.com/post/" + string(rune('a'+i)),
			Title:      "Item",
			FetchedAt:  now.Add(age),
			DedupeHash: "h-" + string(rune('a'+i)),
		}
		if err := storage.SaveItem(ctx, item); err != nil {
			t.Fatalf("Failed to save item: %v", err)
		}
	}

	items, err := storage.ListItemsFetchedBetween(ctx, now.Add(-24*time.Hour), now, 0)
	if err != nil {
		t.Fatalf("Failed to list items: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("Expected 2 items inside window, got %d", len(items))
	}
	if items[0].ID != "i-a" {
		t.Errorf("Expected newest item first, got %s", items[0].ID)
	}
}

func TestGematriaUpsertAndDelete(t *testing.T) {
	db := newTestDB(t)
	logger := arbor.NewLogger()
	storage := NewGematriaStorage(db, logger)
	ctx := context.Background()

	row := &models.Gematria{
		ItemID:          "i-1",
		Scheme:          "ordinal",
		Value:           24,
		TokenCount:      1,
		NormalizedTitle: "CAT",
	}
	if err := storage.UpsertGematria(ctx, row); err != nil {
		t.Fatalf("Failed to upsert gematria: %v", err)
	}

	// Upsert with same item/scheme replaces, never duplicates
	row.Value = 42
	if err := storage.UpsertGematria(ctx, row); err != nil {
		t.Fatalf("Failed to re-upsert gematria: %v", err)
	}

	rows, err := storage.GetItemGematria(ctx, "i-1")
	if err != nil {
		t.Fatalf("Failed to get item gematria: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("Expected 1 gematria row, got %d", len(rows))
	}
	if rows[0].Value != 42 {
		t.Errorf("Expected upserted value 42, got %d", rows[0].Value)
	}

	if err := storage.DeleteGematria(ctx, models.GematriaKey("i-1", "ordinal")); err != nil {
		t.Fatalf("Failed to delete gematria row: %v", err)
	}
	rows, err = storage.GetItemGematria(ctx, "i-1")
	if err != nil {
		t.Fatalf("Failed to get item gematria: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("Expected 0 rows after delete, got %d", len(rows))
	}
}

func TestPatternPruneBeforeCutoff(t *testing.T) {
	db := newTestDB(t)
	logger := arbor.NewLogger()
	storage := NewPatternStorage(db, logger)
	ctx := context.Background()

	now := time.Now()
	old := &models.Pattern{ID: "p-old", Label: "alpha", CreatedAt: now.Add(-72 * time.Hour)}
	recent := &models.Pattern{ID: "p-new", Label: "alpha", CreatedAt: now.Add(-1 * time.Hour)}

	for _, p := range []*models.Pattern{old, recent} {
		if err := storage.SavePattern(ctx, p); err != nil {
			t.Fatalf("Failed to save pattern: %v", err)
		}
	}

	deleted, err := storage.DeletePatternsBefore(ctx, now.Add(-48*time.Hour))
	if err != nil {
		t.Fatalf("Failed to prune patterns: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Expected 1 pruned pattern, got %d", deleted)
	}

	latest, err := storage.GetLatestByLabel(ctx, "alpha")
	if err != nil {
		t.Fatalf("Failed to get latest pattern: %v", err)
	}
	if latest == nil || latest.ID != "p-new" {
		t.Errorf("Expected p-new as latest, got %+v", latest)
	}
}

func TestRollupRoundTrip(t *testing.T) {
	db := newTestDB(t)
	logger := arbor.NewLogger()
	storage := NewRollupStorage(db, logger)
	ctx := context.Background()

	missing, err := storage.GetRollup(ctx, models.RollupScopeGlobal, 24, "ordinal")
	if err != nil {
		t.Fatalf("Unexpected error for missing rollup: %v", err)
	}
	if missing != nil {
		t.Errorf("Expected nil for missing rollup, got %+v", missing)
	}

	rollup := &models.GematriaRollup{
		Scope:       models.RollupScopeGlobal,
		WindowHours: 24,
		Scheme:      "ordinal",
		ComputedAt:  time.Now(),
		Payload: models.RollupPayload{
			Scheme:      "ordinal",
			Scope:       models.RollupScopeGlobal,
			WindowHours: 24,
		},
	}
	if err := storage.UpsertRollup(ctx, rollup); err != nil {
		t.Fatalf("Failed to upsert rollup: %v", err)
	}

	got, err := storage.GetRollup(ctx, models.RollupScopeGlobal, 24, "ordinal")
	if err != nil {
		t.Fatalf("Failed to get rollup: %v", err)
	}
	if got == nil {
		t.Fatal("Expected rollup, got nil")
	}
	if got.Key != models.RollupKey(models.RollupScopeGlobal, 24, "ordinal") {
		t.Errorf("Unexpected rollup key: %s", got.Key)
	}
}
