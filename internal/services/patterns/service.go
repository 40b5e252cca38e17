package patterns

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/gematria/internal/common"
	"github.com/ternarybob/gematria/internal/interfaces"
	"github.com/ternarybob/gematria/internal/models"
)

// DiscoverOptions bounds one discovery pass
type DiscoverOptions struct {
	LookbackHours  int
	MaxItems       int
	MinClusterSize int
	MaxClusters    int
	MaxPatterns    int
}

// OptionsFromConfig builds discovery options from the patterns config section
func OptionsFromConfig(config *common.PatternsConfig) DiscoverOptions {
	return DiscoverOptions{
		LookbackHours:  config.LookbackHours,
		MaxItems:       config.MaxItems,
		MinClusterSize: config.MinClusterSize,
		MaxClusters:    config.MaxClusters,
		MaxPatterns:    config.MaxPatterns,
	}
}

// Service clusters recently ingested items into persisted patterns
type Service struct {
	storage   interfaces.StorageManager
	embedder  Embedder
	clusterer Clusterer
	logger    arbor.ILogger
}

// NewService creates a new pattern discovery service. A nil embedder or
// clusterer falls back to the deterministic hash/first-token strategies.
func NewService(storage interfaces.StorageManager, embedder Embedder, clusterer Clusterer, logger arbor.ILogger) *Service {
	if embedder == nil {
		embedder = HashEmbedder{}
	}
	if clusterer == nil {
		clusterer = FirstTokenClusterer{}
	}
	return &Service{
		storage:   storage,
		embedder:  embedder,
		clusterer: clusterer,
		logger:    logger,
	}
}

// Discover runs one discovery pass and returns the number of patterns
// inserted
func (s *Service) Discover(ctx context.Context, opts DiscoverOptions) int {
	now := time.Now().UTC()
	cutoff := now.Add(-time.Duration(opts.LookbackHours) * time.Hour)

	items, err := s.storage.Items().ListItemsFetchedBetween(ctx, cutoff, now, opts.MaxItems)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to load items for pattern discovery")
		return 0
	}
	if len(items) == 0 {
		return 0
	}

	embedded := make([]clusterItem, 0, len(items))
	for _, item := range items {
		embedded = append(embedded, clusterItem{
			ItemID: item.ID,
			Title:  item.Title,
			Tokens: Tokenize(item.Title),
			Vector: s.embedder.Embed(item.Title),
		})
	}

	clusters := s.clusterer.Cluster(embedded, opts.MaxClusters)

	candidates := make([]*models.Pattern, 0, len(clusters))
	for _, c := range clusters {
		if len(c.Members) < opts.MinClusterSize {
			continue
		}
		candidates = append(candidates, buildCandidate(c, len(embedded), now))
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].AnomalyScore > candidates[j].AnomalyScore
	})
	if opts.MaxPatterns > 0 && len(candidates) > opts.MaxPatterns {
		candidates = candidates[:opts.MaxPatterns]
	}

	pruned, err := s.storage.Patterns().DeletePatternsBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to prune stale patterns")
		return 0
	}
	if pruned > 0 {
		s.logger.Debug().Int("pruned", pruned).Msg("Stale patterns removed")
	}

	inserted := 0
	for _, candidate := range candidates {
		existing, err := s.storage.Patterns().GetLatestByLabel(ctx, candidate.Label)
		if err != nil {
			s.logger.Warn().Err(err).Str("label", candidate.Label).Msg("Failed to check existing pattern")
			continue
		}
		if existing != nil && sameItemSet(existing.ItemIDs, candidate.ItemIDs) {
			continue
		}

		if err := s.storage.Patterns().SavePattern(ctx, candidate); err != nil {
			s.logger.Error().Err(err).Str("label", candidate.Label).Msg("Failed to save pattern")
			continue
		}
		inserted++
	}

	if inserted > 0 {
		s.logger.Info().
			Int("inserted", inserted).
			Int("items_considered", len(embedded)).
			Msg("Pattern discovery completed")
	}
	return inserted
}

// buildCandidate derives label, top terms and anomaly score for one cluster
func buildCandidate(c cluster, totalConsidered int, now time.Time) *models.Pattern {
	freq := make(map[string]int)
	itemIDs := make([]string, 0, len(c.Members))
	for _, member := range c.Members {
		itemIDs = append(itemIDs, member.ItemID)
		for _, token := range member.Tokens {
			freq[token]++
		}
	}
	sort.Strings(itemIDs)

	terms := make([]string, 0, len(freq))
	for token := range freq {
		terms = append(terms, token)
	}
	sort.Slice(terms, func(i, j int) bool {
		if freq[terms[i]] != freq[terms[j]] {
			return freq[terms[i]] > freq[terms[j]]
		}
		return terms[i] < terms[j]
	})

	label := ""
	if len(terms) > 0 {
		label = terms[0]
	}
	topTerms := terms
	if len(topTerms) > 5 {
		topTerms = topTerms[:5]
	}

	anomaly := 1 - float64(len(c.Members))/float64(totalConsidered)

	return &models.Pattern{
		ID:           common.NewID(),
		Label:        label,
		CreatedAt:    now,
		TopTerms:     topTerms,
		AnomalyScore: math.Round(anomaly*10000) / 10000,
		ItemIDs:      itemIDs,
		Meta: map[string]interface{}{
			"cluster_size":     len(c.Members),
			"items_considered": totalConsidered,
		},
	}
}

// sameItemSet compares two sorted id slices for set equality
func sameItemSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	sortedA := append([]string{}, a...)
	sortedB := append([]string{}, b...)
	sort.Strings(sortedA)
	sort.Strings(sortedB)
	for i := range sortedA {
		if sortedA[i] != sortedB[i] {
			return false
		}
	}
	return true
}
