// Package aggregate merges many reports' tracked timelines into one canonical
// timeline.
package aggregate

import (
	"math"
	"sort"
	"strconv"

	"github.com/okian/bosstimeline/internal/domain/model"
	"github.com/okian/bosstimeline/internal/domain/stats"
	"github.com/okian/bosstimeline/internal/domain/tracking"
)

// Phase fallback reasons.
const (
	FallbackMissingPhases = "a report has no phase data"
	FallbackPhaseCount    = "reports disagree on phase count"
)

// Aggregator merges report timelines. It holds configuration only and is safe
// for concurrent use.
type Aggregator struct {
	strategy   Strategy
	phaseAware bool
	trackOpts  []tracking.Option
}

// Result is the canonical timeline plus what happened on the way.
type Result struct {
	Actions        []model.AggregatedAction
	Tracking       tracking.Result
	Dropped        int // groups dropped for low confidence
	PhaseAware     bool
	PhaseFallback  bool
	FallbackReason string
}

// New creates an Aggregator with configuration options.
func New(opts ...Option) *Aggregator {
	a := &Aggregator{strategy: StrategyMedian}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Strategy returns the configured strategy.
func (a *Aggregator) Strategy() Strategy { return a.strategy }

// Aggregate tracks occurrence identity across timelines and collapses every
// group into one action. Groups below the tracker's minimum confidence stay
// flagged suspicious in Tracking but only StrategyMerge turns them into
// actions; every other strategy drops them and counts them in Dropped.
// Output is sorted by time, name and index and does not depend on the order
// of timelines.
func (a *Aggregator) Aggregate(timelines []model.ReportTimeline) Result {
	var res Result

	phaseAware := a.phaseAware
	if phaseAware {
		if reason := phaseMismatch(timelines); reason != "" {
			phaseAware = false
			res.PhaseFallback = true
			res.FallbackReason = reason
		}
	}
	res.PhaseAware = phaseAware

	opts := append(append([]tracking.Option(nil), a.trackOpts...), tracking.WithPhaseAware(phaseAware))
	tracker := tracking.New(opts...)
	res.Tracking = tracker.Track(timelines)

	var offsets []float64
	if phaseAware && len(timelines) > 0 {
		offsets = phaseOffsets(timelines)
	}

	for _, g := range res.Tracking.Groups {
		if !a.strategy.keepsLowConfidence() && g.Confidence < tracker.MinConfidence() {
			res.Dropped++
			continue
		}
		res.Actions = append(res.Actions, a.collapse(g, offsets))
	}
	SortActions(res.Actions)
	return res
}

// phaseMismatch returns why phase-aware aggregation cannot run, or "". No
// timelines is not a mismatch.
func phaseMismatch(timelines []model.ReportTimeline) string {
	if len(timelines) == 0 {
		return ""
	}
	n := len(timelines[0].Phases)
	for _, tl := range timelines {
		if len(tl.Phases) == 0 {
			return FallbackMissingPhases
		}
		if len(tl.Phases) != n {
			return FallbackPhaseCount
		}
	}
	return ""
}

// phaseOffsets returns, per phase, the reference-relative time of its start:
// the median first-phase start plus the median durations of the phases
// before it.
func phaseOffsets(timelines []model.ReportTimeline) []float64 {
	n := len(timelines[0].Phases)
	offsets := make([]float64, n)

	base := make([]float64, len(timelines))
	for i, tl := range timelines {
		base[i] = tl.Phases[0].Start - tl.ReferenceTime
	}
	offsets[0] = stats.Median(base)

	for p := 1; p < n; p++ {
		spans := make([]float64, len(timelines))
		for i, tl := range timelines {
			spans[i] = tl.Phases[p].Start - tl.Phases[p-1].Start
		}
		offsets[p] = offsets[p-1] + stats.Median(spans)
	}
	return offsets
}

func (a *Aggregator) collapse(g model.OccurrenceGroup, offsets []float64) model.AggregatedAction {
	times := make([]float64, len(g.Members))
	damages := make([]float64, len(g.Members))
	for i, m := range g.Members {
		times[i] = m.Time
		if offsets != nil && m.Phase >= 0 && m.Phase < len(offsets) {
			times[i] = offsets[m.Phase] + m.PhaseTime
		}
		damages[i] = m.Damage.Median
	}

	lo, hi := stats.MinMax(times)
	dlo, dhi := stats.MinMax(damages)

	act := model.AggregatedAction{
		ID: model.ActionID(g.Key, g.Index, g.Phase),
		AbilityOccurrence: model.AbilityOccurrence{
			Name:      g.Name,
			AbilityID: g.Members[0].AbilityID,
			Index:     g.Index,
			Time:      a.strategy.Apply(times),
			Phase:     g.Phase,
			Damage: model.DamageStats{
				Median: stats.Median(damages),
				Mean:   stats.Mean(damages),
				Min:    dlo,
				Max:    dhi,
				StdDev: stats.StdDev(damages),
				Count:  len(damages),
			},
		},
		Confidence:    g.Confidence,
		SourceReports: len(g.Reports),
		TimeRange:     model.TimeRange{Min: lo, Max: hi, StdDev: stats.StdDev(times)},
		Suspicious:    g.Suspicious,
		Source:        model.SourceReport,
	}
	if offsets != nil && act.Phase >= 0 && act.Phase < len(offsets) {
		act.PhaseTime = act.Time - offsets[act.Phase]
	}

	for _, m := range g.Members {
		act.TankBuster = act.TankBuster || m.TankBuster
		act.DualTankBuster = act.DualTankBuster || m.DualTankBuster
		act.RaidWide = act.RaidWide || m.RaidWide
		act.Importance = model.MaxImportance(act.Importance, m.Importance)
		act.HitCount = max(act.HitCount, m.HitCount)
		act.TargetCount = max(act.TargetCount, m.TargetCount)
		act.EventCount += m.EventCount
	}
	act.Category = MergeCategory(g.Members)
	act.DamageText = DamageText(damages)
	act.DamageTotal = act.Damage.Median
	return act
}

// MergeCategory returns mixed if any member is mixed or the known categories
// disagree; otherwise the one known category.
func MergeCategory(members []model.AbilityOccurrence) model.DamageCategory {
	out := model.CategoryUnknown
	for _, m := range members {
		switch {
		case m.Category == model.CategoryUnknown:
		case m.Category == model.CategoryMixed:
			return model.CategoryMixed
		case out == model.CategoryUnknown:
			out = m.Category
		case out != m.Category:
			return model.CategoryMixed
		}
	}
	return out
}

// DamageText renders a single value when every member agrees, otherwise
// "low-high". Values are rounded to whole damage.
func DamageText(damages []float64) string {
	if len(damages) == 0 {
		return "0"
	}
	lo, hi := stats.MinMax(damages)
	l, h := math.Round(lo), math.Round(hi)
	if l == h {
		return strconv.FormatFloat(l, 'f', 0, 64)
	}
	return strconv.FormatFloat(l, 'f', 0, 64) + "-" + strconv.FormatFloat(h, 'f', 0, 64)
}

// SortActions orders actions by time, name and occurrence index.
func SortActions(actions []model.AggregatedAction) {
	sort.SliceStable(actions, func(i, j int) bool {
		a, b := actions[i], actions[j]
		if a.Time != b.Time {
			return a.Time < b.Time
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		if a.Index != b.Index {
			return a.Index < b.Index
		}
		return a.ID < b.ID
	})
}
