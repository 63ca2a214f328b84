package service

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/bosstimeline/internal/adapters/source"
	"github.com/okian/bosstimeline/internal/config"
	"github.com/okian/bosstimeline/internal/domain/aggregate"
	"github.com/okian/bosstimeline/internal/domain/classify"
	"github.com/okian/bosstimeline/internal/domain/cluster"
	"github.com/okian/bosstimeline/internal/domain/enrich"
	"github.com/okian/bosstimeline/internal/domain/multihit"
	"github.com/okian/bosstimeline/internal/domain/normalize"
	"github.com/okian/bosstimeline/internal/domain/scriptsync"
	"github.com/okian/bosstimeline/internal/domain/tracking"
)

// OptionsFromConfig translates process configuration into service options.
// File-backed sources are only wired when their directory is set.
func OptionsFromConfig(ctx context.Context, cfg *config.Config) ([]Option, error) {
	strategy, err := aggregate.ParseStrategy(cfg.Strategy)
	if err != nil {
		return nil, fmt.Errorf("strategy: %w", err)
	}

	classifier := classify.NewHeuristicClassifier(
		classify.WithTankBusterMinDamage(cfg.TankBusterMinDamage),
		classify.WithRaidWideMinTargets(cfg.RaidWideMinTargets),
		classify.WithImportanceThresholds(cfg.HighDamage, cfg.CriticalDamage),
		classify.WithTankBusterPatterns(cfg.TankBusterPatterns),
		classify.WithRaidWidePatterns(cfg.RaidWidePatterns),
	)

	opts := []Option{
		WithWorkerCount(cfg.WorkerCount),
		WithQueueSize(cfg.QueueSize),
		WithRateLimit(cfg.RateLimitPerSec, cfg.RateLimitBurst),
		WithClusterer(cluster.New(
			cluster.WithGap(cfg.ClusterGapSec),
			cluster.WithMinDamage(cfg.MinDamage),
			cluster.WithIQRMultiplier(cfg.IQRMultiplier),
			cluster.WithClassifier(classifier),
		)),
		WithNormalizer(normalize.New(
			normalize.WithPhaseGap(cfg.PhaseGapSec),
			normalize.WithPhaseKeywords(cfg.PhaseKeywords),
			normalize.WithEngageMarkers(cfg.EngageMarkers),
		)),
		WithConsolidator(multihit.New(
			multihit.WithWindow(time.Duration(cfg.MultiHitWindowMS)*time.Millisecond),
			multihit.WithMinHits(cfg.MultiHitMinHits),
		)),
		WithSynchronizer(scriptsync.New(
			scriptsync.WithWindow(cfg.SyncWindowSec),
			scriptsync.WithFuzzyRatio(cfg.FuzzyRatio),
		)),
		WithAggregateOptions(
			aggregate.WithStrategy(strategy),
			aggregate.WithPhaseAware(cfg.PhaseAware),
			aggregate.WithTracking(
				tracking.WithSameOccurrenceWindow(cfg.SameOccurrenceWindowSec),
				tracking.WithNewOccurrenceGap(cfg.NewOccurrenceGapSec),
				tracking.WithMinConfidence(cfg.MinConfidence),
				tracking.WithMaxSpread(cfg.MaxGroupSpreadSec),
			),
		),
	}

	if cfg.LogDir != "" {
		opts = append(opts, WithLogSource(source.NewFileLogSource(cfg.LogDir)))
	}
	if cfg.ScriptDir != "" {
		opts = append(opts, WithScriptSource(source.NewFileScriptSource(cfg.ScriptDir)))
	}
	if cfg.EnrichmentFile != "" {
		catalog, err := enrich.LoadCatalog(ctx, cfg.EnrichmentFile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithEnricher(catalog))
	}

	return opts, nil
}
