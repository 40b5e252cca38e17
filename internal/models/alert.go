package models

import "time"

// Alert holds a declarative YAML rule evaluated periodically against recent
// gematria rows. A malformed rule never triggers; it does not raise.
type Alert struct {
	ID         string     `json:"id" badgerhold:"key"`
	Name       string     `json:"name"`
	Enabled    bool       `json:"enabled"`
	RuleYAML   string     `json:"rule_yaml"`
	LastEvalAt *time.Time `json:"last_eval_at,omitempty"`
	Severity   int        `json:"severity"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Event records one alert trigger. Append-only.
type Event struct {
	ID          string                 `json:"id" badgerhold:"key"`
	AlertID     string                 `json:"alert_id" badgerholdIndex:"AlertID"`
	TriggeredAt time.Time              `json:"triggered_at"`
	Severity    int                    `json:"severity"`
	Payload     map[string]interface{} `json:"payload,omitempty"`
}
