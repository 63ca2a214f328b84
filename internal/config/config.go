// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Flat koanf keys; env vars map BOSSTL_<KEY> to <key>.
// - New(ctx) returns defaults; Load(ctx) layers sources over them.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"context"
	"fmt"
	"regexp"
	"runtime"
	"strings"

	"github.com/okian/bosstimeline/internal/domain/aggregate"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// WorkerCount sets the number of per-report workers.
	WorkerCount int `koanf:"worker_count"`

	// QueueSize bounds the per-report job queue.
	QueueSize int `koanf:"queue_size"`

	// RateLimitPerSec and RateLimitBurst guard the log event source.
	// A non-positive rate disables limiting.
	RateLimitPerSec float64 `koanf:"rate_limit_per_sec"`
	RateLimitBurst  int     `koanf:"rate_limit_burst"`

	// Clustering.
	ClusterGapSec float64 `koanf:"cluster_gap_sec"`
	MinDamage     float64 `koanf:"min_damage"`
	IQRMultiplier float64 `koanf:"iqr_multiplier"`

	// Normalization.
	PhaseGapSec   float64  `koanf:"phase_gap_sec"`
	PhaseKeywords []string `koanf:"phase_keywords"`
	EngageMarkers []string `koanf:"engage_markers"`

	// Tracking.
	SameOccurrenceWindowSec float64 `koanf:"same_occurrence_window_sec"`
	NewOccurrenceGapSec     float64 `koanf:"new_occurrence_gap_sec"`
	MinConfidence           float64 `koanf:"min_confidence"`
	MaxGroupSpreadSec       float64 `koanf:"max_group_spread_sec"`

	// Aggregation.
	Strategy   string `koanf:"strategy"`
	PhaseAware bool   `koanf:"phase_aware"`

	// Script sync.
	SyncWindowSec float64 `koanf:"sync_window_sec"`
	FuzzyRatio    float64 `koanf:"fuzzy_ratio"`

	// Multi-hit consolidation.
	MultiHitWindowMS int `koanf:"multihit_window_ms"`
	MultiHitMinHits  int `koanf:"multihit_min_hits"`

	// Classification.
	TankBusterMinDamage float64 `koanf:"tank_buster_min_damage"`
	RaidWideMinTargets  int     `koanf:"raid_wide_min_targets"`
	HighDamage          float64 `koanf:"high_damage"`
	CriticalDamage      float64 `koanf:"critical_damage"`
	// Name patterns (regexp) replacing the built-in buster and raid-wide
	// patterns. Empty keeps the built-ins.
	TankBusterPatterns []string `koanf:"tank_buster_patterns"`
	RaidWidePatterns   []string `koanf:"raid_wide_patterns"`

	// Sources. Empty directories disable the file-backed collaborators.
	LogDir         string `koanf:"log_dir"`
	ScriptDir      string `koanf:"script_dir"`
	EnrichmentFile string `koanf:"enrichment_file"`

	// MaxRecentLimit caps GET /timelines?limit.
	MaxRecentLimit int `koanf:"max_recent_limit"`
}

// New creates a Config with defaults. The context is accepted first to
// satisfy the project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:                "info",
		LogFormat:               "text",
		Addr:                    ":9080",
		WorkerCount:             runtime.NumCPU(),
		QueueSize:               1024,
		RateLimitPerSec:         5,
		RateLimitBurst:          2,
		ClusterGapSec:           15,
		MinDamage:               0,
		IQRMultiplier:           1.5,
		PhaseGapSec:             30,
		PhaseKeywords:           []string{"enrage", "transition", "phase change"},
		EngageMarkers:           []string{"attack", "engage", "pull", "start"},
		SameOccurrenceWindowSec: 5,
		NewOccurrenceGapSec:     30,
		MinConfidence:           0.3,
		MaxGroupSpreadSec:       10,
		Strategy:                string(aggregate.StrategyMedian),
		PhaseAware:              false,
		SyncWindowSec:           20,
		FuzzyRatio:              0.7,
		MultiHitWindowMS:        2000,
		MultiHitMinHits:         2,
		TankBusterMinDamage:     60000,
		RaidWideMinTargets:      6,
		HighDamage:              80000,
		CriticalDamage:          150000,
		MaxRecentLimit:          100,
	}
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error { //nolint:gocyclo // flat list of independent checks
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}

	switch {
	case strings.TrimSpace(c.Addr) == "":
		return invalid("addr must not be empty")
	case c.WorkerCount < 1:
		return invalid("worker_count must be positive, got %d", c.WorkerCount)
	case c.QueueSize < 1:
		return invalid("queue_size must be positive, got %d", c.QueueSize)
	case c.ClusterGapSec <= 0:
		return invalid("cluster_gap_sec must be positive")
	case c.IQRMultiplier <= 0:
		return invalid("iqr_multiplier must be positive")
	case c.PhaseGapSec <= 0:
		return invalid("phase_gap_sec must be positive")
	case c.SameOccurrenceWindowSec <= 0 || c.NewOccurrenceGapSec < c.SameOccurrenceWindowSec:
		return invalid("need 0 < same_occurrence_window_sec <= new_occurrence_gap_sec")
	case c.MinConfidence < 0 || c.MinConfidence > 1:
		return invalid("min_confidence must be within [0, 1]")
	case c.MaxGroupSpreadSec <= 0:
		return invalid("max_group_spread_sec must be positive")
	case c.SyncWindowSec <= 0:
		return invalid("sync_window_sec must be positive")
	case c.FuzzyRatio <= 0 || c.FuzzyRatio > 1:
		return invalid("fuzzy_ratio must be within (0, 1]")
	case c.MultiHitWindowMS <= 0:
		return invalid("multihit_window_ms must be positive")
	case c.MultiHitMinHits < 2:
		return invalid("multihit_min_hits must be at least 2")
	case c.CriticalDamage <= c.HighDamage:
		return invalid("critical_damage must exceed high_damage")
	case c.MaxRecentLimit < 1:
		return invalid("max_recent_limit must be positive")
	}

	for _, p := range append(append([]string(nil), c.TankBusterPatterns...), c.RaidWidePatterns...) {
		if _, err := regexp.Compile(p); err != nil {
			return invalid("classification pattern %q: %v", p, err)
		}
	}

	if _, err := aggregate.ParseStrategy(c.Strategy); err != nil {
		return invalid("strategy: %v", err)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return invalid("log_format must be text or json, got %q", c.LogFormat)
	}
	return nil
}
