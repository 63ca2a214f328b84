// Package service orchestrates reconcile runs: per-report processing on the
// worker pool, then aggregation, multi-hit folding, script sync and
// enrichment over the joined results.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	eventqueue "github.com/okian/bosstimeline/internal/adapters/mq/queue"
	workerpool "github.com/okian/bosstimeline/internal/adapters/mq/worker"
	"github.com/okian/bosstimeline/internal/adapters/repository"
	"github.com/okian/bosstimeline/internal/adapters/source"
	"github.com/okian/bosstimeline/internal/domain/aggregate"
	"github.com/okian/bosstimeline/internal/domain/cluster"
	"github.com/okian/bosstimeline/internal/domain/dedupe"
	"github.com/okian/bosstimeline/internal/domain/enrich"
	"github.com/okian/bosstimeline/internal/domain/model"
	"github.com/okian/bosstimeline/internal/domain/multihit"
	"github.com/okian/bosstimeline/internal/domain/normalize"
	"github.com/okian/bosstimeline/internal/domain/scriptsync"
	"github.com/okian/bosstimeline/pkg/logger"
	"github.com/okian/bosstimeline/pkg/metrics"
)

// Request describes one reconcile run.
type Request struct {
	Boss string

	// Reports are processed as given. When empty they are listed from the
	// log source.
	Reports []model.Report

	// Script is used as given. When nil it is read from the script source.
	Script []model.ScriptEntry

	// Reference is the preferred reference action for normalization.
	Reference string

	// Anchor is the preferred scripted entry for offset discovery.
	Anchor string

	// Strategy and PhaseAware override the configured aggregation.
	Strategy   string
	PhaseAware *bool
}

// Response is the canonical timeline of one run.
type Response struct {
	RunID       string
	Boss        string
	Actions     []model.AggregatedAction
	Mappings    []model.SyncMapping
	Diagnostics model.RunDiagnostics
}

// Service implements the API dependencies for timeline reconciliation.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      repository.Store
	jobs       *eventqueue.InMemoryQueue
	workerPool *workerpool.Pool

	// Collaborators
	logs     source.LogSource
	scripts  source.ScriptSource
	enricher enrich.Enricher

	// Pipeline stages
	clusterer     *cluster.Clusterer
	normalizer    *normalize.Normalizer
	consolidator  *multihit.Consolidator
	syncer        *scriptsync.Synchronizer
	aggregateOpts []aggregate.Option

	// Configuration
	workerCount int
	queueSize   int
	ratePerSec  float64
	rateBurst   int

	started bool

	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		clusterer:    cluster.New(),
		normalizer:   normalize.New(),
		consolidator: multihit.New(),
		syncer:       scriptsync.New(),
		workerCount:  runtime.NumCPU(),
		queueSize:    1024,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start creates the queue, the store and the worker pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Named("service")
	}

	if s.store == nil {
		s.store = repository.NewTreapStore(ctx)
	}
	s.jobs = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))

	proc := &reportProcessor{
		logs:         s.logs,
		clusterer:    s.clusterer,
		consolidator: s.consolidator,
		normalizer:   s.normalizer,
	}
	s.workerPool = workerpool.NewPool(s.workerCount, s.jobs, proc,
		workerpool.WithLimiter(workerpool.NewLimiter(s.ratePerSec, s.rateBurst)))
	s.workerPool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "timeline service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Float64("ratePerSec", s.ratePerSec),
		logger.Bool("logSource", s.logs != nil),
		logger.Bool("scriptSource", s.scripts != nil),
		logger.Bool("enricher", s.enricher != nil),
	)
	return nil
}

// Stop drains the pool and closes the store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()

	if err := s.workerPool.Shutdown(ctx); err != nil {
		s.logger.Error(ctx, "worker pool shutdown", logger.Error(err))
	}
	if closer, ok := s.store.(interface{ Close() error }); ok {
		_ = closer.Close()
	}

	s.started = false
	s.logger.Info(ctx, "timeline service stopped")
}

// Reconcile runs the whole pipeline for one boss and stores the result.
// Only cancellation and log source failures are returned as errors; every
// other degraded path is counted in the diagnostics.
func (s *Service) Reconcile(ctx context.Context, req Request) (Response, error) { //nolint:gocritic // hugeParam: request is a value
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()
	if !started {
		return Response{}, ErrNotStarted
	}
	if req.Boss == "" {
		return Response{}, fmt.Errorf("%w: boss is required", ErrInvalidRequest)
	}

	aggOpts := append([]aggregate.Option(nil), s.aggregateOpts...)
	if req.Strategy != "" {
		st, err := aggregate.ParseStrategy(req.Strategy)
		if err != nil {
			return Response{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		aggOpts = append(aggOpts, aggregate.WithStrategy(st))
	}
	if req.PhaseAware != nil {
		aggOpts = append(aggOpts, aggregate.WithPhaseAware(*req.PhaseAware))
	}

	runID := uuid.NewString()
	log := s.logger.With(logger.String("run", runID), logger.String("boss", req.Boss))
	begin := time.Now()

	resp, err := s.reconcile(ctx, log, runID, req, aggregate.New(aggOpts...))
	if err != nil {
		metrics.RecordRun("error")
		log.Error(ctx, "reconcile failed", logger.Error(err))
		return Response{}, err
	}
	metrics.RecordRun("ok")
	metrics.RecordStageDuration("run", msSince(begin))

	if err := s.store.Put(ctx, repository.Timeline{
		Boss:        resp.Boss,
		RunID:       resp.RunID,
		Actions:     resp.Actions,
		Diagnostics: resp.Diagnostics,
	}); err != nil {
		log.Error(ctx, "store timeline", logger.Error(err))
	}

	log.Info(ctx, "reconcile finished",
		logger.Int("reports", resp.Diagnostics.ReportsIn),
		logger.Int("actions", len(resp.Actions)),
		logger.Bool("degraded", resp.Diagnostics.Degraded()),
		logger.Duration("took", time.Since(begin)),
	)
	return resp, nil
}

func (s *Service) reconcile(ctx context.Context, log logger.Logger, runID string, req Request, agg *aggregate.Aggregator) (Response, error) { //nolint:gocritic // hugeParam: request is a value
	resp := Response{RunID: runID, Boss: req.Boss}
	diag := &resp.Diagnostics

	reports, err := s.reports(ctx, req)
	if err != nil {
		return Response{}, err
	}
	reports, diag.DuplicateReports = uniqueReports(reports)
	diag.ReportsIn = len(reports)

	timelines, err := s.runReports(ctx, log, runID, reports, req.Reference, diag)
	if err != nil {
		return Response{}, err
	}

	start := time.Now()
	ar := agg.Aggregate(timelines)
	metrics.RecordStageDuration("aggregate", msSince(start))
	diag.Groups = len(ar.Tracking.Groups)
	diag.SuspiciousGroups = ar.Tracking.Suspicious
	diag.LowConfidence = ar.Tracking.LowConfidence
	diag.WideSpread = ar.Tracking.WideSpread
	diag.MergedGroups = ar.Tracking.Merged
	diag.DroppedGroups = ar.Dropped
	diag.PhaseAware = ar.PhaseAware
	diag.PhaseFallback = ar.PhaseFallback
	diag.FallbackReason = ar.FallbackReason
	metrics.AddGroupOutcomes(diag.SuspiciousGroups, diag.DroppedGroups, diag.MergedGroups)

	if ar.PhaseFallback {
		metrics.RecordPhaseFallback()
		log.Warn(ctx, "phase-aware aggregation fell back to flat timeline",
			logger.String("reason", ar.FallbackReason))
	}
	if diag.SuspiciousGroups > 0 {
		log.Warn(ctx, "suspicious occurrence groups",
			logger.Int("suspicious", diag.SuspiciousGroups),
			logger.Int("lowConfidence", diag.LowConfidence),
			logger.Int("wideSpread", diag.WideSpread),
			logger.Int("dropped", diag.DroppedGroups),
		)
	}

	actions, collapsed := s.consolidator.Actions(ar.Actions)
	diag.MultiHitCollapsed += collapsed
	metrics.AddMultiHitCollapsed(diag.MultiHitCollapsed)

	script := s.script(ctx, log, req)
	diag.ScriptAvailable = script != nil
	diag.ScriptEntries = len(script)

	start = time.Now()
	sr := s.syncer.Sync(script, actions, req.Anchor)
	metrics.RecordStageDuration("sync", msSince(start))
	s.recordSync(ctx, log, diag, &sr)

	resp.Actions = sr.Actions
	resp.Mappings = sr.Mappings

	cache := enrich.NewCache()
	diag.Enriched = enrich.Apply(ctx, s.enricher, cache, resp.Actions)
	metrics.AddEnrichment(cache.Hits(), diag.Enriched)
	metrics.AddActions(len(resp.Actions))

	return resp, nil
}

// reports returns the inline reports or lists them from the log source.
// A boss the source does not know yields no reports.
func (s *Service) reports(ctx context.Context, req Request) ([]model.Report, error) { //nolint:gocritic // hugeParam: request is a value
	if len(req.Reports) > 0 || s.logs == nil {
		return req.Reports, nil
	}
	reports, err := s.logs.Reports(ctx, req.Boss)
	if errors.Is(err, source.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list reports for %s: %w", req.Boss, err)
	}
	return reports, nil
}

// uniqueReports drops repeated report ids, keeping the first.
func uniqueReports(reports []model.Report) ([]model.Report, int) {
	seen := dedupe.NewInMemoryDeduper()
	out := make([]model.Report, 0, len(reports))
	for _, r := range reports {
		if seen.SeenAndRecord(r.ID) {
			continue
		}
		out = append(out, r)
	}
	return out, len(reports) - len(out)
}

// runReports fans the reports out to the pool and waits for every result.
// Failed reports are skipped and counted.
func (s *Service) runReports(ctx context.Context, log logger.Logger, runID string, reports []model.Report, reference string, diag *model.RunDiagnostics) ([]model.ReportTimeline, error) {
	results := make(chan eventqueue.Result, len(reports))
	expected := 0
	for _, r := range reports {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		err := s.jobs.Submit(ctx, eventqueue.Job{RunID: runID, Report: r, Preferred: reference, Results: results})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			diag.ReportsFailed++
			log.Warn(ctx, "report not queued", logger.String("report", r.ID), logger.Error(err))
			continue
		}
		expected++
	}

	timelines := make([]model.ReportTimeline, 0, expected)
	for i := 0; i < expected; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res := <-results:
			if res.Err != nil {
				diag.ReportsFailed++
				log.Warn(ctx, "report skipped", logger.String("report", res.ReportID), logger.Error(res.Err))
				continue
			}
			diag.Occurrences += len(res.Timeline.Occurrences)
			diag.MultiHitCollapsed += res.Collapsed
			timelines = append(timelines, res.Timeline)
		}
	}

	// Completion order is scheduling-dependent.
	sort.Slice(timelines, func(i, j int) bool { return timelines[i].ReportID < timelines[j].ReportID })

	if diag.ReportsFailed > 0 {
		log.Warn(ctx, "some reports failed",
			logger.Int("failed", diag.ReportsFailed),
			logger.Int("reports", len(reports)))
	}
	return timelines, nil
}

// script returns the inline script or reads it from the script source.
// nil means no script is available and sync is skipped.
func (s *Service) script(ctx context.Context, log logger.Logger, req Request) []model.ScriptEntry { //nolint:gocritic // hugeParam: request is a value
	if req.Script != nil || s.scripts == nil {
		return req.Script
	}
	entries, err := s.scripts.Script(ctx, req.Boss)
	switch {
	case errors.Is(err, source.ErrNotFound):
		log.Info(ctx, "no scripted timeline, using report-only aggregation")
		return nil
	case err != nil:
		metrics.RecordErrorByComponent("service", "script_source")
		log.Warn(ctx, "scripted timeline unavailable, using report-only aggregation", logger.Error(err))
		return nil
	}
	return entries
}

func (s *Service) recordSync(ctx context.Context, log logger.Logger, diag *model.RunDiagnostics, sr *scriptsync.Result) {
	d := sr.Diagnostics
	diag.SyncOffset = d.Offset
	diag.OffsetFound = d.OffsetFound
	diag.AnchorName = d.Anchor.Entry.Name
	diag.Matched = d.Matched
	diag.NameOnlyMatched = d.Fallback
	diag.UnmatchedScript = d.UnmatchedScript
	diag.DamageOnly = d.DamageOnly

	_ = metrics.AddSyncOutcome(metrics.OutcomeMatched, d.Matched-d.Fallback)
	_ = metrics.AddSyncOutcome(metrics.OutcomeFallback, d.Fallback)
	_ = metrics.AddSyncOutcome(metrics.OutcomeUnmatched, d.UnmatchedScript)
	_ = metrics.AddSyncOutcome(metrics.OutcomeDamageOnly, d.DamageOnly)

	if diag.ScriptEntries == 0 {
		return
	}
	if !d.OffsetFound {
		log.Warn(ctx, "no sync anchor found, scripted times used unshifted")
	}
	if d.UnmatchedScript > 0 || d.Fallback > 0 {
		log.Warn(ctx, "scripted entries not fully matched",
			logger.Int("unmatched", d.UnmatchedScript),
			logger.Int("nameOnly", d.Fallback),
			logger.Int("damageOnly", d.DamageOnly),
		)
	}
}

// Timeline returns the last stored timeline for boss.
func (s *Service) Timeline(ctx context.Context, boss string) (repository.Timeline, error) {
	if err := s.ready(); err != nil {
		return repository.Timeline{}, err
	}
	return s.store.Get(ctx, boss)
}

// Recent lists up to n stored timelines, most recent first.
func (s *Service) Recent(ctx context.Context, n int) ([]repository.Summary, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.store.Recent(ctx, n)
}

func (s *Service) ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]any{
		"started":      s.started,
		"workerCount":  s.workerCount,
		"queueSize":    s.queueSize,
		"ratePerSec":   s.ratePerSec,
		"logSource":    s.logs != nil,
		"scriptSource": s.scripts != nil,
		"enricher":     s.enricher != nil,
	}

	if s.started {
		stats["queueLength"] = s.jobs.Len(ctx)
		stats["timelines"] = s.store.Count(ctx)
		stats["bosses"] = s.store.Bosses(ctx)
	}

	return stats
}
