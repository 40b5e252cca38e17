package models

import (
	"fmt"
	"strings"
	"time"
)

// SourceType constants
const (
	SourceTypeRSS  = "rss"
	SourceTypeAtom = "atom"
)

// Source represents a feed source configuration together with the run
// bookkeeping updated by every ingestion attempt.
type Source struct {
	ID       string `json:"id" badgerhold:"key"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Endpoint string `json:"endpoint" badgerholdIndex:"Endpoint"`
	Enabled  bool   `json:"enabled"`
	// IntervalSec is the per-source fetch interval. Zero means the source is
	// always due when the selector scans it.
	IntervalSec int                    `json:"interval_sec"`
	Priority    int                    `json:"priority"`
	Tags        []string               `json:"tags,omitempty"`
	Notes       string                 `json:"notes,omitempty"`
	Auth        map[string]interface{} `json:"auth,omitempty"`
	Filters     map[string]interface{} `json:"filters,omitempty"`

	LastRunAt           *time.Time `json:"last_run_at,omitempty"`
	LastCheckedAt       *time.Time `json:"last_checked_at,omitempty"`
	LastStatus          string     `json:"last_status,omitempty"`
	LastError           string     `json:"last_error,omitempty"`
	LastDurationMs      int64      `json:"last_duration_ms"`
	LastItemCount       int        `json:"last_item_count"`
	ConsecutiveFailures int        `json:"consecutive_failures"`

	AutoDiscovered bool       `json:"auto_discovered"`
	DiscoveredAt   *time.Time `json:"discovered_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Validate validates the source configuration
func (s *Source) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("source name is required")
	}

	if s.Type == "" {
		return fmt.Errorf("source type is required")
	}

	validTypes := map[string]bool{
		SourceTypeRSS:  true,
		SourceTypeAtom: true,
	}
	if !validTypes[s.Type] {
		return fmt.Errorf("invalid source type: %s", s.Type)
	}

	if strings.TrimSpace(s.Endpoint) == "" {
		return fmt.Errorf("endpoint is required")
	}

	if s.IntervalSec < 0 {
		return fmt.Errorf("interval must be non-negative")
	}

	return nil
}
