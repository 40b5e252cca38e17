package alerts

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/gematria/internal/common"
	"github.com/ternarybob/gematria/internal/interfaces"
	"github.com/ternarybob/gematria/internal/models"
	"gopkg.in/yaml.v3"
)

// ruleDocument is the YAML shape of an alert rule:
//
//	when:
//	  all:
//	    - scheme: ordinal
//	      value_in: [93, 74]
//	    - source_in: [src-1]
//	    - window:
//	        period: 24h
//	        min_count: 1
type ruleDocument struct {
	When struct {
		All []ruleCondition `yaml:"all"`
	} `yaml:"when"`
}

type ruleCondition struct {
	Scheme   string      `yaml:"scheme"`
	ValueIn  []int       `yaml:"value_in"`
	SourceIn []string    `yaml:"source_in"`
	Window   *ruleWindow `yaml:"window"`
}

type ruleWindow struct {
	Period   string `yaml:"period"`
	MinCount int    `yaml:"min_count"`
}

// parsedRule is the flattened conjunction extracted from a rule document
type parsedRule struct {
	scheme   string
	valueIn  map[int]bool
	sourceIn map[string]bool
	lookback time.Duration
	minCount int
}

// Service evaluates declarative alert rules against recent gematria rows.
// Malformed rules never trigger and never raise.
type Service struct {
	storage interfaces.StorageManager
	logger  arbor.ILogger
}

// NewService creates a new alert evaluator
func NewService(storage interfaces.StorageManager, logger arbor.ILogger) *Service {
	return &Service{
		storage: storage,
		logger:  logger,
	}
}

// Evaluate runs every enabled alert once and returns how many triggered
func (s *Service) Evaluate(ctx context.Context) int {
	alerts, err := s.storage.Alerts().ListEnabledAlerts(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list enabled alerts")
		return 0
	}

	triggered := 0
	now := time.Now().UTC()

	for _, alert := range alerts {
		rule, ok := parseRule(alert.RuleYAML)
		if !ok {
			s.logger.Debug().Str("alert_id", alert.ID).Str("alert_name", alert.Name).Msg("Incomplete alert rule, skipping")
			continue
		}

		count, err := s.countMatches(ctx, rule, now)
		if err != nil {
			s.logger.Warn().Err(err).Str("alert_id", alert.ID).Msg("Alert evaluation query failed")
			continue
		}

		if count < rule.minCount {
			continue
		}

		event := &models.Event{
			ID:          common.NewID(),
			AlertID:     alert.ID,
			TriggeredAt: now,
			Severity:    alert.Severity,
			Payload:     map[string]interface{}{"count": count},
		}
		if err := s.storage.Alerts().SaveEvent(ctx, event); err != nil {
			s.logger.Error().Err(err).Str("alert_id", alert.ID).Msg("Failed to record alert event")
			continue
		}

		alert.LastEvalAt = &now
		if err := s.storage.Alerts().SaveAlert(ctx, alert); err != nil {
			s.logger.Error().Err(err).Str("alert_id", alert.ID).Msg("Failed to update alert timestamp")
		}

		s.logger.Info().
			Str("alert_id", alert.ID).
			Str("alert_name", alert.Name).
			Int("count", count).
			Msg("Alert triggered")
		triggered++
	}

	return triggered
}

// countMatches counts gematria rows matching the rule's scheme and value set,
// joined through items inside the window and sources in the allow-list
func (s *Service) countMatches(ctx context.Context, rule *parsedRule, now time.Time) (int, error) {
	items, err := s.storage.Items().ListItemsFetchedBetween(ctx, now.Add(-rule.lookback), now, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to load window items: %w", err)
	}

	count := 0
	for _, item := range items {
		if !rule.sourceIn[item.SourceID] {
			continue
		}

		rows, err := s.storage.Gematria().GetItemGematria(ctx, item.ID)
		if err != nil {
			return 0, fmt.Errorf("failed to load gematria rows: %w", err)
		}
		for _, row := range rows {
			if row.Scheme == rule.scheme && rule.valueIn[row.Value] {
				count++
			}
		}
	}
	return count, nil
}

// parseRule extracts the conjunction from rule YAML. Returns ok=false when
// the document is malformed or any of the three required conditions (scheme
// + values, sources, window) is missing.
func parseRule(ruleYAML string) (*parsedRule, bool) {
	var doc ruleDocument
	if err := yaml.Unmarshal([]byte(ruleYAML), &doc); err != nil {
		return nil, false
	}

	rule := &parsedRule{
		valueIn:  make(map[int]bool),
		sourceIn: make(map[string]bool),
	}

	for _, cond := range doc.When.All {
		if cond.Scheme != "" && len(cond.ValueIn) > 0 {
			rule.scheme = cond.Scheme
			for _, v := range cond.ValueIn {
				rule.valueIn[v] = true
			}
		}
		for _, src := range cond.SourceIn {
			rule.sourceIn[src] = true
		}
		if cond.Window != nil {
			lookback, ok := parsePeriod(cond.Window.Period)
			if !ok {
				return nil, false
			}
			rule.lookback = lookback
			rule.minCount = cond.Window.MinCount
		}
	}

	if rule.scheme == "" || len(rule.valueIn) == 0 || len(rule.sourceIn) == 0 || rule.lookback <= 0 {
		return nil, false
	}
	if rule.minCount <= 0 {
		rule.minCount = 1
	}
	return rule, true
}

// parsePeriod understands compact durations like "24h" and "7d"
func parsePeriod(period string) (time.Duration, bool) {
	period = strings.TrimSpace(strings.ToLower(period))
	if period == "" {
		return 0, false
	}

	if strings.HasSuffix(period, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(period, "d"))
		if err != nil || days <= 0 {
			return 0, false
		}
		return time.Duration(days) * 24 * time.Hour, true
	}

	d, err := time.ParseDuration(period)
	if err != nil || d <= 0 {
		return 0, false
	}
	return d, true
}
