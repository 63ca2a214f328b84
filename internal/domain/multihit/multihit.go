// Package multihit collapses bursts of closely spaced, same-named actions into
// one multi-hit action.
package multihit

import (
	"sort"
	"time"

	"github.com/okian/bosstimeline/internal/domain/aggregate"
	"github.com/okian/bosstimeline/internal/domain/cluster"
	"github.com/okian/bosstimeline/internal/domain/model"
	"github.com/okian/bosstimeline/internal/domain/names"
	"github.com/okian/bosstimeline/internal/domain/stats"
)

// Defaults.
const (
	DefaultWindow  = 2000 * time.Millisecond
	DefaultMinHits = 2
)

// Consolidator holds the burst settings. It is safe for concurrent use.
type Consolidator struct {
	window  time.Duration
	minHits int
}

// New creates a Consolidator with configuration options.
func New(opts ...Option) *Consolidator {
	c := &Consolidator{window: DefaultWindow, minHits: DefaultMinHits}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Consolidate collapses bursts in items. get exposes the occurrence inside an
// item; extra, when set, merges item-specific fields into the surviving first
// member. It returns the time-sorted result and the number of bursts
// collapsed. Running it on its own output changes nothing.
func Consolidate[T any](c *Consolidator, items []T, get func(*T) *model.AbilityOccurrence, extra func(dst *T, members []T)) ([]T, int) {
	cp := make([]T, len(items))
	copy(cp, items)
	sort.SliceStable(cp, func(i, j int) bool { return get(&cp[i]).Time < get(&cp[j]).Time })

	byName := make(map[string][]int)
	for i := range cp {
		k := names.Normalize(get(&cp[i]).Name)
		byName[k] = append(byName[k], i)
	}

	window := c.window.Seconds()
	drop := make([]bool, len(cp))
	collapsed := 0
	for _, idx := range byName {
		start := 0
		for k := 1; k <= len(idx); k++ {
			if k < len(idx) && get(&cp[idx[k]]).Time-get(&cp[idx[k-1]]).Time <= window {
				continue
			}
			if run := idx[start:k]; len(run) >= c.minHits {
				members := make([]T, len(run))
				for m, i := range run {
					members[m] = cp[i]
				}
				collapse(get(&cp[run[0]]), members, get)
				if extra != nil {
					extra(&cp[run[0]], members)
				}
				for _, i := range run[1:] {
					drop[i] = true
				}
				collapsed++
			}
			start = k
		}
	}

	out := cp[:0]
	for i := range cp {
		if !drop[i] {
			out = append(out, cp[i])
		}
	}
	return out, collapsed
}

func collapse[T any](dst *model.AbilityOccurrence, members []T, get func(*T) *model.AbilityOccurrence) {
	occs := make([]model.AbilityOccurrence, len(members))
	damages := make([]float64, len(members))
	for i := range members {
		occs[i] = *get(&members[i])
		damages[i] = occs[i].Damage.Median
	}

	dst.HitCount = len(members)
	dst.EventCount = 0
	dst.Damage.Count = 0
	for _, o := range occs {
		dst.TankBuster = dst.TankBuster || o.TankBuster
		dst.DualTankBuster = dst.DualTankBuster || o.DualTankBuster
		dst.RaidWide = dst.RaidWide || o.RaidWide
		dst.Importance = model.MaxImportance(dst.Importance, o.Importance)
		dst.TargetCount = max(dst.TargetCount, o.TargetCount)
		dst.EventCount += o.EventCount
		dst.Damage.Count += o.Damage.Count
	}
	lo, hi := stats.MinMax(damages)
	dst.Damage.Median = stats.Mean(damages)
	dst.Damage.Mean = dst.Damage.Median
	dst.Damage.Min = lo
	dst.Damage.Max = hi
	dst.Damage.StdDev = stats.StdDev(damages)
	dst.Category = aggregate.MergeCategory(occs)
}

// Occurrences consolidates one report's occurrences and renumbers them per
// name.
func (c *Consolidator) Occurrences(occs []model.AbilityOccurrence) ([]model.AbilityOccurrence, int) {
	out, n := Consolidate(c, occs, func(o *model.AbilityOccurrence) *model.AbilityOccurrence { return o }, nil)
	cluster.AssignIndices(out)
	return out, n
}

// Actions consolidates an aggregated timeline. Collapsed actions carry per-hit
// and total damage.
func (c *Consolidator) Actions(acts []model.AggregatedAction) ([]model.AggregatedAction, int) {
	out, n := Consolidate(c, acts,
		func(a *model.AggregatedAction) *model.AbilityOccurrence { return &a.AbilityOccurrence },
		mergeActions)
	aggregate.SortActions(out)
	return out, n
}

func mergeActions(dst *model.AggregatedAction, members []model.AggregatedAction) {
	damages := make([]float64, len(members))
	for i, m := range members {
		damages[i] = m.Damage.Median
		dst.Confidence = max(dst.Confidence, m.Confidence)
		dst.SourceReports = max(dst.SourceReports, m.SourceReports)
		dst.Suspicious = dst.Suspicious || m.Suspicious
		dst.TimeRange.Min = min(dst.TimeRange.Min, m.TimeRange.Min)
		dst.TimeRange.Max = max(dst.TimeRange.Max, m.TimeRange.Max)
	}
	dst.DamagePerHit = dst.Damage.Median
	dst.DamageTotal = dst.DamagePerHit * float64(dst.HitCount)
	dst.DamageText = aggregate.DamageText(damages)
}
