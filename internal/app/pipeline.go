package service

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/bosstimeline/internal/adapters/mq/queue"
	"github.com/okian/bosstimeline/internal/adapters/source"
	"github.com/okian/bosstimeline/internal/domain/cluster"
	"github.com/okian/bosstimeline/internal/domain/multihit"
	"github.com/okian/bosstimeline/internal/domain/normalize"
	"github.com/okian/bosstimeline/pkg/metrics"
)

// reportProcessor is the per-report half of a run: fetch events, cluster,
// fold multi-hit bursts, normalize. It holds no mutable state.
type reportProcessor struct {
	logs         source.LogSource
	clusterer    *cluster.Clusterer
	consolidator *multihit.Consolidator
	normalizer   *normalize.Normalizer
}

// Process implements worker.Processor.
func (p *reportProcessor) Process(ctx context.Context, j queue.Job) (queue.Result, error) { //nolint:gocritic // hugeParam: Job is passed by value through channels
	report := j.Report
	if len(report.Events) == 0 && p.logs != nil {
		start := time.Now()
		events, err := p.logs.Events(ctx, report)
		metrics.RecordStageDuration("fetch", msSince(start))
		if err != nil {
			return queue.Result{}, fmt.Errorf("fetch events: %w", err)
		}
		report.Events = events
	}
	if err := ctx.Err(); err != nil {
		return queue.Result{}, err
	}

	start := time.Now()
	occs := p.clusterer.ClusterReport(report)
	metrics.RecordStageDuration("cluster", msSince(start))
	metrics.AddOccurrences(len(occs))

	occs, collapsed := p.consolidator.Occurrences(occs)

	start = time.Now()
	tl := p.normalizer.Normalize(report.ID, occs, report.StartSeconds(), j.Preferred)
	metrics.RecordStageDuration("normalize", msSince(start))

	return queue.Result{Timeline: tl, Collapsed: collapsed}, nil
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}
