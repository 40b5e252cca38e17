package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	Ingest      IngestConfig    `toml:"ingest"`
	Mirror      MirrorConfig    `toml:"mirror"`
	Rollups     RollupsConfig   `toml:"rollups"`
	Patterns    PatternsConfig  `toml:"patterns"`
}

type ServerConfig struct {
	Name string `toml:"name"` // Instance name reported in scheduler snapshots
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Format     string   `toml:"format"`      // "json" or "text"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs (default: "15:04:05.000")
}

// SchedulerConfig contains worker pool sizing and job cadences
type SchedulerConfig struct {
	MaxWorkers             int           `toml:"max_workers"`              // Concurrent job limit for the worker pool
	PingInterval           time.Duration `toml:"ping_interval"`            // Liveness job cadence
	IngestInterval         time.Duration `toml:"ingest_interval"`          // run_due_sources cadence
	AlertInterval          time.Duration `toml:"alert_interval"`           // evaluate_alerts cadence
	AlertStartDelay        time.Duration `toml:"alert_start_delay"`        // Stagger before first alert evaluation
	PatternInterval        time.Duration `toml:"pattern_interval"`         // discover_patterns cadence
	PatternStartDelay      time.Duration `toml:"pattern_start_delay"`      // Stagger before first pattern discovery
	RollupInterval         time.Duration `toml:"rollup_interval"`          // refresh_rollups cadence
	RollupStartDelay       time.Duration `toml:"rollup_start_delay"`       // Stagger before first rollup refresh
	ShutdownTimeout        time.Duration `toml:"shutdown_timeout"`         // Max wait for running jobs on stop
	DisableStartupTriggers bool          `toml:"disable_startup_triggers"` // Skip the initial ingest trigger on boot
}

// IngestConfig contains feed fetching configuration
type IngestConfig struct {
	UserAgent      string        `toml:"user_agent"`       // HTTP User-Agent for feed requests
	RequestTimeout time.Duration `toml:"request_timeout"`  // HTTP request timeout per feed
	MaxBodySize    int           `toml:"max_body_size"`    // Maximum response body size in bytes
	SourceErrorLen int           `toml:"source_error_len"` // Max stored error length on the source record
	RunErrorLen    int           `toml:"run_error_len"`    // Max stored error length on a run record
}

// MirrorConfig contains the optional Redis job mirror configuration
type MirrorConfig struct {
	Enabled   bool          `toml:"enabled"`   // Mirror active ingestion jobs to Redis
	Addr      string        `toml:"addr"`      // Redis address (host:port)
	Password  string        `toml:"password"`  // Redis password (empty = none)
	DB        int           `toml:"db"`        // Redis database number
	Namespace string        `toml:"namespace"` // Key prefix for mirrored jobs
	TTL       time.Duration `toml:"ttl"`       // Expiry on mirrored job keys
}

// RollupsConfig contains rollup aggregation configuration
type RollupsConfig struct {
	TTLSeconds   int   `toml:"ttl_seconds"`   // Cache lifetime for computed rollups
	WindowsHours []int `toml:"windows_hours"` // Rollup window sizes in hours
}

// PatternsConfig contains pattern discovery configuration
type PatternsConfig struct {
	LookbackHours  int `toml:"lookback_hours"`   // Item window for each discovery pass
	MaxItems       int `toml:"max_items"`        // Cap on items considered per pass
	MinClusterSize int `toml:"min_cluster_size"` // Clusters below this size are ignored
	MaxClusters    int `toml:"max_clusters"`     // Upper bound for the clusterer
	MaxPatterns    int `toml:"max_patterns"`     // Max patterns persisted per pass
	RetentionHours int `toml:"retention_hours"`  // Patterns older than this are pruned
}

// NewDefaultConfig creates a configuration with default values
// Technical parameters are hardcoded here for production stability.
// Only user-facing settings should be exposed in gematria.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development", // Default to development mode
		Server: ServerConfig{
			Name: "gematria",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",                     // Info level for production (debug|info|warn|error)
			Format: "text",                     // Human-readable text format (text|json)
			Output: []string{"stdout", "file"}, // Log to both console and file
		},
		Scheduler: SchedulerConfig{
			MaxWorkers:        4,
			PingInterval:      60 * time.Second,
			IngestInterval:    60 * time.Second,
			AlertInterval:     120 * time.Second,
			AlertStartDelay:   30 * time.Second,
			PatternInterval:   15 * time.Minute,
			PatternStartDelay: 2 * time.Minute,
			RollupInterval:    15 * time.Minute,
			RollupStartDelay:  3 * time.Minute,
			ShutdownTimeout:   30 * time.Second,
		},
		Ingest: IngestConfig{
			UserAgent:      "gematria-feed-worker/1.0 (+https://github.com/ternarybob/gematria)",
			RequestTimeout: 30 * time.Second,
			MaxBodySize:    10 * 1024 * 1024, // 10MB
			SourceErrorLen: 500,
			RunErrorLen:    1000,
		},
		Mirror: MirrorConfig{
			Enabled:   false, // Opt-in: worker runs fine without Redis
			Addr:      "localhost:6379",
			Namespace: "crawler:jobs",
			TTL:       15 * time.Minute,
		},
		Rollups: RollupsConfig{
			TTLSeconds:   900,
			WindowsHours: []int{24, 48, 168},
		},
		Patterns: PatternsConfig{
			LookbackHours:  48,
			MaxItems:       500,
			MinClusterSize: 3,
			MaxClusters:    8,
			MaxPatterns:    5,
			RetentionHours: 24 * 14,
		},
	}
}

// LoadFromFile loads configuration with priority: default -> file -> env -> CLI
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files with priority: default -> file1 -> file2 -> ... -> env -> CLI
// Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	// Start with defaults
	config := NewDefaultConfig()

	// Load and merge each config file in order (later files override earlier files)
	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		// Unmarshal into config (merges with existing values, later values override)
		err = toml.Unmarshal(data, config)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	// Apply environment variables (overrides all file configs)
	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	// Environment configuration (highest priority: GEMATRIA_ENV, fallback: GO_ENV)
	if env := os.Getenv("GEMATRIA_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if name := os.Getenv("GEMATRIA_SERVER_NAME"); name != "" {
		config.Server.Name = name
	}

	// Storage configuration
	if badgerPath := os.Getenv("GEMATRIA_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	// Logging configuration
	if level := os.Getenv("GEMATRIA_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("GEMATRIA_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
	if output := os.Getenv("GEMATRIA_LOG_OUTPUT"); output != "" {
		// Split comma-separated output types
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			trimmed := strings.TrimSpace(o)
			if trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Scheduler configuration
	if maxWorkers := os.Getenv("GEMATRIA_SCHEDULER_MAX_WORKERS"); maxWorkers != "" {
		if mw, err := strconv.Atoi(maxWorkers); err == nil && mw > 0 {
			config.Scheduler.MaxWorkers = mw
		}
	}
	if ingestInterval := os.Getenv("GEMATRIA_SCHEDULER_INGEST_INTERVAL"); ingestInterval != "" {
		if d, err := time.ParseDuration(ingestInterval); err == nil {
			config.Scheduler.IngestInterval = d
		}
	}
	if alertInterval := os.Getenv("GEMATRIA_SCHEDULER_ALERT_INTERVAL"); alertInterval != "" {
		if d, err := time.ParseDuration(alertInterval); err == nil {
			config.Scheduler.AlertInterval = d
		}
	}
	if patternInterval := os.Getenv("GEMATRIA_SCHEDULER_PATTERN_INTERVAL"); patternInterval != "" {
		if d, err := time.ParseDuration(patternInterval); err == nil {
			config.Scheduler.PatternInterval = d
		}
	}
	if rollupInterval := os.Getenv("GEMATRIA_SCHEDULER_ROLLUP_INTERVAL"); rollupInterval != "" {
		if d, err := time.ParseDuration(rollupInterval); err == nil {
			config.Scheduler.RollupInterval = d
		}
	}

	// Ingest configuration
	if userAgent := os.Getenv("GEMATRIA_INGEST_USER_AGENT"); userAgent != "" {
		config.Ingest.UserAgent = userAgent
	}
	if requestTimeout := os.Getenv("GEMATRIA_INGEST_REQUEST_TIMEOUT"); requestTimeout != "" {
		if rt, err := time.ParseDuration(requestTimeout); err == nil {
			config.Ingest.RequestTimeout = rt
		}
	}
	if maxBodySize := os.Getenv("GEMATRIA_INGEST_MAX_BODY_SIZE"); maxBodySize != "" {
		if mbs, err := strconv.Atoi(maxBodySize); err == nil {
			config.Ingest.MaxBodySize = mbs
		}
	}

	// Mirror configuration
	if enabled := os.Getenv("GEMATRIA_MIRROR_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.Mirror.Enabled = e
		}
	}
	if addr := os.Getenv("GEMATRIA_MIRROR_ADDR"); addr != "" {
		config.Mirror.Addr = addr
	}
	if password := os.Getenv("GEMATRIA_MIRROR_PASSWORD"); password != "" {
		config.Mirror.Password = password
	}
	if db := os.Getenv("GEMATRIA_MIRROR_DB"); db != "" {
		if d, err := strconv.Atoi(db); err == nil {
			config.Mirror.DB = d
		}
	}
	if namespace := os.Getenv("GEMATRIA_MIRROR_NAMESPACE"); namespace != "" {
		config.Mirror.Namespace = namespace
	}
	if ttl := os.Getenv("GEMATRIA_MIRROR_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			config.Mirror.TTL = d
		}
	}

	// Rollups configuration
	if ttlSeconds := os.Getenv("GEMATRIA_ROLLUPS_TTL_SECONDS"); ttlSeconds != "" {
		if t, err := strconv.Atoi(ttlSeconds); err == nil && t > 0 {
			config.Rollups.TTLSeconds = t
		}
	}

	// Patterns configuration
	if lookback := os.Getenv("GEMATRIA_PATTERNS_LOOKBACK_HOURS"); lookback != "" {
		if l, err := strconv.Atoi(lookback); err == nil && l > 0 {
			config.Patterns.LookbackHours = l
		}
	}
	if maxItems := os.Getenv("GEMATRIA_PATTERNS_MAX_ITEMS"); maxItems != "" {
		if mi, err := strconv.Atoi(maxItems); err == nil && mi > 0 {
			config.Patterns.MaxItems = mi
		}
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, dataPath string, logLevel string) {
	// Command-line flags have highest priority
	if dataPath != "" {
		config.Storage.Badger.Path = dataPath
	}
	if logLevel != "" {
		config.Logging.Level = logLevel
	}
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
