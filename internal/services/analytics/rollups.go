package analytics

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/gematria/internal/common"
	"github.com/ternarybob/gematria/internal/interfaces"
	"github.com/ternarybob/gematria/internal/models"
	"github.com/ternarybob/gematria/internal/services/gematria"
)

const (
	maxTrendBuckets   = 12
	topValueLimit     = 8
	samplesPerValue   = 3
	defaultTTLSeconds = 900
)

// DefaultWindowsHours are the rollup windows refreshed by the batch driver
var DefaultWindowsHours = []int{24, 48, 168}

// Service computes and caches windowed gematria aggregates
type Service struct {
	storage interfaces.StorageManager
	ttl     time.Duration
	windows []int
	logger  arbor.ILogger
}

// NewService creates a new rollup service
func NewService(storage interfaces.StorageManager, config *common.RollupsConfig, logger arbor.ILogger) *Service {
	ttlSeconds := defaultTTLSeconds
	windows := DefaultWindowsHours
	if config != nil {
		if config.TTLSeconds > 0 {
			ttlSeconds = config.TTLSeconds
		}
		if len(config.WindowsHours) > 0 {
			windows = config.WindowsHours
		}
	}
	return &Service{
		storage: storage,
		ttl:     time.Duration(ttlSeconds) * time.Second,
		windows: windows,
		logger:  logger,
	}
}

// dataPoint is one joined gematria/item/source row inside the window
type dataPoint struct {
	Value          int
	ItemID         string
	Title          string
	Lang           string
	FetchedAt      time.Time
	SourceID       string
	SourceName     string
	SourcePriority int
}

// ComputeRollup is a pure function of scheme, window, scope and now over the
// stored rows
func (s *Service) ComputeRollup(ctx context.Context, scheme string, windowHours int, scope string, now time.Time) (*models.RollupPayload, error) {
	windowStart := now.Add(-time.Duration(windowHours) * time.Hour)

	points, err := s.collect(ctx, scheme, scope, windowStart, now)
	if err != nil {
		return nil, err
	}

	payload := &models.RollupPayload{
		Scheme:      scheme,
		Scope:       scope,
		WindowHours: windowHours,
		WindowStart: windowStart.Format(time.RFC3339),
		WindowEnd:   now.Format(time.RFC3339),
		Meta: models.RollupMeta{
			TotalValues: len(points),
			GeneratedAt: now.Format(time.RFC3339),
		},
	}

	if len(points) == 0 {
		payload.TopValues = []models.RollupTopValue{}
		payload.Trend = []models.RollupBucket{}
		payload.SourceBreakdown = []models.RollupSourceRow{}
		return payload, nil
	}

	payload.Summary = summarize(points)
	payload.TopValues = topValues(points)
	payload.Trend = trendBuckets(points, windowStart, now, windowHours)
	payload.SourceBreakdown = sourceBreakdown(points)
	payload.Correlations = correlations(points)

	return payload, nil
}

// collect joins gematria rows to items and sources inside the window
func (s *Service) collect(ctx context.Context, scheme, scope string, start, end time.Time) ([]dataPoint, error) {
	items, err := s.storage.Items().ListItemsFetchedBetween(ctx, start, end, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load window items: %w", err)
	}

	onlySource := ""
	if strings.HasPrefix(scope, "source:") {
		onlySource = strings.TrimPrefix(scope, "source:")
	}

	sourceCache := make(map[string]*models.Source)
	points := make([]dataPoint, 0, len(items))

	for _, item := range items {
		if onlySource != "" && item.SourceID != onlySource {
			continue
		}

		rows, err := s.storage.Gematria().GetItemGematria(ctx, item.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load gematria rows: %w", err)
		}

		for _, row := range rows {
			if row.Scheme != scheme {
				continue
			}

			source, cached := sourceCache[item.SourceID]
			if !cached {
				source, _ = s.storage.Sources().GetSource(ctx, item.SourceID)
				sourceCache[item.SourceID] = source
			}

			point := dataPoint{
				Value:     row.Value,
				ItemID:    item.ID,
				Title:     item.Title,
				Lang:      item.Lang,
				FetchedAt: item.FetchedAt,
				SourceID:  item.SourceID,
			}
			if source != nil {
				point.SourceName = source.Name
				point.SourcePriority = source.Priority
			}
			points = append(points, point)
		}
	}
	return points, nil
}

func summarize(points []dataPoint) models.RollupSummary {
	values := make([]int, len(points))
	sources := make(map[string]bool)
	sum := 0.0
	for i, p := range points {
		values[i] = p.Value
		sources[p.SourceID] = true
		sum += float64(p.Value)
	}
	sort.Ints(values)

	min := values[0]
	max := values[len(values)-1]

	return models.RollupSummary{
		TotalItems:    len(points),
		UniqueSources: len(sources),
		Sum:           sum,
		Avg:           round4(sum / float64(len(points))),
		Min:           &min,
		Max:           &max,
		Percentiles: models.Percentiles{
			P50: percentile(values, 0.50),
			P90: percentile(values, 0.90),
			P99: percentile(values, 0.99),
		},
	}
}

// percentile uses linear interpolation on sorted values
func percentile(sorted []int, q float64) *float64 {
	if len(sorted) == 0 {
		return nil
	}
	if len(sorted) == 1 {
		v := float64(sorted[0])
		return &v
	}

	rank := q * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		v := float64(sorted[lower])
		return &v
	}

	frac := rank - float64(lower)
	v := round4(float64(sorted[lower]) + frac*float64(sorted[upper]-sorted[lower]))
	return &v
}

func topValues(points []dataPoint) []models.RollupTopValue {
	counts := make(map[int]int)
	samples := make(map[int][]models.RollupSample)
	for _, p := range points {
		counts[p.Value]++
		if len(samples[p.Value]) < samplesPerValue {
			samples[p.Value] = append(samples[p.Value], models.RollupSample{
				ItemID:   p.ItemID,
				Title:    p.Title,
				Lang:     p.Lang,
				SourceID: p.SourceID,
				Source:   p.SourceName,
			})
		}
	}

	values := make([]int, 0, len(counts))
	for v := range counts {
		values = append(values, v)
	}
	sort.Slice(values, func(i, j int) bool {
		if counts[values[i]] != counts[values[j]] {
			return counts[values[i]] > counts[values[j]]
		}
		return values[i] < values[j]
	})
	if len(values) > topValueLimit {
		values = values[:topValueLimit]
	}

	total := float64(len(points))
	result := make([]models.RollupTopValue, 0, len(values))
	for _, v := range values {
		result = append(result, models.RollupTopValue{
			Value:   v,
			Count:   counts[v],
			Share:   round4(float64(counts[v]) / total),
			Samples: samples[v],
		})
	}
	return result
}

func trendBuckets(points []dataPoint, start, end time.Time, windowHours int) []models.RollupBucket {
	bucketCount := maxTrendBuckets
	if windowHours < bucketCount {
		bucketCount = windowHours
	}
	if bucketCount < 1 {
		bucketCount = 1
	}

	span := end.Sub(start) / time.Duration(bucketCount)
	counts := make([]int, bucketCount)
	sums := make([]float64, bucketCount)

	for _, p := range points {
		idx := int(p.FetchedAt.Sub(start) / span)
		if idx < 0 {
			idx = 0
		}
		if idx >= bucketCount {
			idx = bucketCount - 1
		}
		counts[idx]++
		sums[idx] += float64(p.Value)
	}

	buckets := make([]models.RollupBucket, bucketCount)
	for i := 0; i < bucketCount; i++ {
		bucketStart := start.Add(time.Duration(i) * span)
		bucket := models.RollupBucket{
			BucketStart: bucketStart.Format(time.RFC3339),
			BucketEnd:   bucketStart.Add(span).Format(time.RFC3339),
			Count:       counts[i],
		}
		if counts[i] > 0 {
			bucket.Avg = round4(sums[i] / float64(counts[i]))
		}
		buckets[i] = bucket
	}
	return buckets
}

func sourceBreakdown(points []dataPoint) []models.RollupSourceRow {
	type agg struct {
		name     string
		count    int
		sum      float64
		priority int
	}
	bySource := make(map[string]*agg)
	for _, p := range points {
		a, ok := bySource[p.SourceID]
		if !ok {
			a = &agg{name: p.SourceName, priority: p.SourcePriority}
			bySource[p.SourceID] = a
		}
		a.count++
		a.sum += float64(p.Value)
	}

	ids := make([]string, 0, len(bySource))
	for id := range bySource {
		ids = append(ids, id)
	}
	// Count descending, source id ascending as tie-break
	sort.Slice(ids, func(i, j int) bool {
		if bySource[ids[i]].count != bySource[ids[j]].count {
			return bySource[ids[i]].count > bySource[ids[j]].count
		}
		return ids[i] < ids[j]
	})

	rows := make([]models.RollupSourceRow, 0, len(ids))
	for _, id := range ids {
		a := bySource[id]
		priority := a.priority
		rows = append(rows, models.RollupSourceRow{
			SourceID: id,
			Name:     a.name,
			Count:    a.count,
			Avg:      round4(a.sum / float64(a.count)),
			Priority: &priority,
		})
	}
	return rows
}

func correlations(points []dataPoint) models.Correlations {
	values := make([]float64, len(points))
	titleLens := make([]float64, len(points))
	priorities := make([]float64, len(points))
	for i, p := range points {
		values[i] = float64(p.Value)
		titleLens[i] = float64(len([]rune(p.Title)))
		priorities[i] = float64(p.SourcePriority)
	}

	return models.Correlations{
		ValueVsTitleLength:    pearson(values, titleLens),
		ValueVsSourcePriority: pearson(values, priorities),
	}
}

// pearson returns nil with fewer than 2 points or zero variance in either
// dimension
func pearson(x, y []float64) *float64 {
	if len(x) < 2 || len(x) != len(y) {
		return nil
	}

	n := float64(len(x))
	var sumX, sumY float64
	for i := range x {
		sumX += x[i]
		sumY += y[i]
	}
	meanX := sumX / n
	meanY := sumY / n

	var cov, varX, varY float64
	for i := range x {
		dx := x[i] - meanX
		dy := y[i] - meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return nil
	}

	r := round4(cov / math.Sqrt(varX*varY))
	return &r
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// GetRollup returns the cached payload when present and fresh; otherwise it
// recomputes, upserts and returns the new payload. Concurrent recomputation
// is resolved by last-write-wins on the unique key.
func (s *Service) GetRollup(ctx context.Context, scheme string, windowHours int, scope string, refresh bool) (*models.RollupPayload, error) {
	if !refresh {
		cached, err := s.storage.Rollups().GetRollup(ctx, scope, windowHours, scheme)
		if err != nil {
			return nil, err
		}
		if cached != nil && time.Since(cached.ComputedAt) < s.ttl {
			return &cached.Payload, nil
		}
	}

	now := time.Now().UTC()
	payload, err := s.ComputeRollup(ctx, scheme, windowHours, scope, now)
	if err != nil {
		return nil, err
	}

	rollup := &models.GematriaRollup{
		Scope:       scope,
		WindowHours: windowHours,
		Scheme:      scheme,
		ComputedAt:  now,
		Payload:     *payload,
	}
	if err := s.storage.Rollups().UpsertRollup(ctx, rollup); err != nil {
		return nil, err
	}
	return payload, nil
}

// RefreshRollups recomputes and upserts every combination of the given
// dimensions, defaulting to all known schemes, the configured windows, and
// the global scope. Returns the number of rollups refreshed.
func (s *Service) RefreshRollups(ctx context.Context, schemes []string, windows []int, scopes []string) int {
	if len(schemes) == 0 {
		for _, def := range gematria.AvailableSchemes() {
			schemes = append(schemes, def.Name)
		}
	}
	if len(windows) == 0 {
		windows = s.windows
	}
	if len(scopes) == 0 {
		scopes = []string{models.RollupScopeGlobal}
	}

	refreshed := 0
	for _, scheme := range schemes {
		for _, window := range windows {
			for _, scope := range scopes {
				if _, err := s.GetRollup(ctx, scheme, window, scope, true); err != nil {
					s.logger.Warn().Err(err).
						Str("scheme", scheme).
						Int("window_hours", window).
						Str("scope", scope).
						Msg("Rollup refresh failed")
					continue
				}
				refreshed++
			}
		}
	}

	s.logger.Info().Int("refreshed", refreshed).Msg("Rollup refresh completed")
	return refreshed
}
