package service

import (
	"github.com/okian/bosstimeline/internal/adapters/repository"
	"github.com/okian/bosstimeline/internal/adapters/source"
	"github.com/okian/bosstimeline/internal/domain/aggregate"
	"github.com/okian/bosstimeline/internal/domain/cluster"
	"github.com/okian/bosstimeline/internal/domain/enrich"
	"github.com/okian/bosstimeline/internal/domain/multihit"
	"github.com/okian/bosstimeline/internal/domain/normalize"
	"github.com/okian/bosstimeline/internal/domain/scriptsync"
	"github.com/okian/bosstimeline/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of per-report workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the job queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithRateLimit limits log source fetches to perSecond with the given burst.
// A non-positive rate disables limiting.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(s *Service) {
		s.ratePerSec = perSecond
		s.rateBurst = burst
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithLogSource sets where reports and events come from.
func WithLogSource(src source.LogSource) Option {
	return func(s *Service) { s.logs = src }
}

// WithScriptSource sets where scripted timelines come from.
func WithScriptSource(src source.ScriptSource) Option {
	return func(s *Service) { s.scripts = src }
}

// WithEnricher sets the advisory annotation source.
func WithEnricher(e enrich.Enricher) Option {
	return func(s *Service) { s.enricher = e }
}

// WithStore replaces the default in-memory timeline store.
func WithStore(st repository.Store) Option {
	return func(s *Service) {
		if st != nil {
			s.store = st
		}
	}
}

// WithClusterer sets the per-report clusterer.
func WithClusterer(c *cluster.Clusterer) Option {
	return func(s *Service) {
		if c != nil {
			s.clusterer = c
		}
	}
}

// WithNormalizer sets the per-report normalizer.
func WithNormalizer(n *normalize.Normalizer) Option {
	return func(s *Service) {
		if n != nil {
			s.normalizer = n
		}
	}
}

// WithConsolidator sets the multi-hit consolidator used before and after aggregation.
func WithConsolidator(c *multihit.Consolidator) Option {
	return func(s *Service) {
		if c != nil {
			s.consolidator = c
		}
	}
}

// WithSynchronizer sets the script synchronizer.
func WithSynchronizer(sy *scriptsync.Synchronizer) Option {
	return func(s *Service) {
		if sy != nil {
			s.syncer = sy
		}
	}
}

// WithAggregateOptions sets the base aggregation options. Per-request
// strategy and phase overrides are appended to them.
func WithAggregateOptions(opts ...aggregate.Option) Option {
	return func(s *Service) {
		s.aggregateOpts = append([]aggregate.Option(nil), opts...)
	}
}
