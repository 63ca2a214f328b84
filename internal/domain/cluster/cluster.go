// Package cluster turns raw combat-log damage events into discrete ability
// occurrences.
//
// Events are grouped by ability identity, split wherever two consecutive
// events of one ability are further apart than the gap, and every resulting
// cluster becomes one occurrence. Occurrence time is the median timestamp;
// damage is summarized after IQR outlier rejection.
package cluster

import (
	"sort"
	"strconv"

	"github.com/okian/bosstimeline/internal/domain/classify"
	"github.com/okian/bosstimeline/internal/domain/model"
	"github.com/okian/bosstimeline/internal/domain/names"
	"github.com/okian/bosstimeline/internal/domain/stats"
)

// DefaultGap is the default proximity gap in seconds.
const DefaultGap = 15.0

// Clusterer builds occurrences from events. It holds configuration only and
// is safe for concurrent use.
type Clusterer struct {
	gap        float64
	minDamage  float64
	iqrK       float64
	classifier classify.Classifier
}

// New creates a Clusterer with configuration options.
func New(opts ...Option) *Clusterer {
	c := &Clusterer{
		gap:  DefaultGap,
		iqrK: stats.DefaultIQRMultiplier,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ClusterReport clusters the events of one report and stamps the report id on
// every occurrence.
func (c *Clusterer) ClusterReport(r model.Report) []model.AbilityOccurrence {
	out := c.Cluster(r.Events)
	for i := range out {
		out[i].ReportID = r.ID
	}
	return out
}

// Cluster groups events into occurrences sorted by time. Occurrence times are
// absolute seconds. Indices are assigned per normalized name in time order.
func (c *Clusterer) Cluster(events []model.RawDamageEvent) []model.AbilityOccurrence {
	groups := make(map[string][]model.RawDamageEvent)
	for _, e := range events {
		if float64(e.Damage()) < c.minDamage {
			continue
		}
		k := identity(e)
		groups[k] = append(groups[k], e)
	}
	if len(groups) == 0 {
		return nil
	}

	// Map iteration order is random; the final sort restores determinism.
	var out []model.AbilityOccurrence
	for _, g := range groups {
		parts := stats.ClusterBy(g, model.RawDamageEvent.Seconds, c.gap)
		for _, part := range parts {
			out = append(out, c.build(part))
		}
	}

	SortOccurrences(out)
	AssignIndices(out)

	if c.classifier != nil {
		for i := range out {
			classify.Apply(c.classifier, &out[i])
		}
	}
	return out
}

func identity(e model.RawDamageEvent) string {
	if e.AbilityID != 0 {
		return "id:" + strconv.Itoa(e.AbilityID)
	}
	return "name:" + names.Normalize(e.AbilityName)
}

func (c *Clusterer) build(members []model.RawDamageEvent) model.AbilityOccurrence {
	ms := make([]float64, len(members))
	damages := make([]float64, len(members))
	for i, e := range members {
		ms[i] = float64(e.Timestamp)
		damages[i] = float64(e.Damage())
	}

	lo, hi, filter := stats.IQRBounds(damages, c.iqrK)
	kept := make([]float64, 0, len(members))
	targets := make(map[int]int)
	votes := make(map[model.DamageCategory]int)
	for i, e := range members {
		if filter && (damages[i] < lo || damages[i] > hi) {
			continue
		}
		kept = append(kept, damages[i])
		targets[e.TargetID]++
		votes[e.Category]++
	}

	dmin, dmax := stats.MinMax(kept)
	hits := 0
	for _, n := range targets {
		if n > hits {
			hits = n
		}
	}

	return model.AbilityOccurrence{
		Name:      displayName(members),
		AbilityID: members[0].AbilityID,
		Time:      stats.Median(ms) / 1000,
		Damage: model.DamageStats{
			Median:   stats.Median(kept),
			Mean:     stats.Mean(kept),
			Min:      dmin,
			Max:      dmax,
			StdDev:   stats.StdDev(kept),
			Count:    len(kept),
			Rejected: len(members) - len(kept),
		},
		HitCount:    hits,
		TargetCount: len(targets),
		EventCount:  len(members),
		Category:    MajorityCategory(votes),
	}
}

// displayName picks the most frequent display name, the lexicographically
// smallest on ties.
func displayName(members []model.RawDamageEvent) string {
	counts := make(map[string]int)
	for _, e := range members {
		counts[e.AbilityName]++
	}
	best, bestN := "", 0
	for n, c := range counts {
		if c > bestN || (c == bestN && n < best) {
			best, bestN = n, c
		}
	}
	return best
}

// MajorityCategory returns the category with the most votes. Unknown votes are
// ignored; a physical/magical tie, or mixed winning, yields mixed.
func MajorityCategory(votes map[model.DamageCategory]int) model.DamageCategory {
	phys := votes[model.CategoryPhysical]
	mag := votes[model.CategoryMagical]
	mixed := votes[model.CategoryMixed]
	switch {
	case phys == 0 && mag == 0 && mixed == 0:
		return model.CategoryUnknown
	case mixed >= phys && mixed >= mag:
		return model.CategoryMixed
	case phys > mag:
		return model.CategoryPhysical
	case mag > phys:
		return model.CategoryMagical
	default:
		return model.CategoryMixed
	}
}

// SortOccurrences orders occurrences by time, then name, then ability id.
func SortOccurrences(occs []model.AbilityOccurrence) {
	sort.SliceStable(occs, func(i, j int) bool {
		a, b := occs[i], occs[j]
		if a.Time != b.Time {
			return a.Time < b.Time
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.AbilityID < b.AbilityID
	})
}

// AssignIndices numbers time-sorted occurrences 1..n per normalized name.
func AssignIndices(occs []model.AbilityOccurrence) {
	seen := make(map[string]int)
	for i := range occs {
		k := names.Normalize(occs[i].Name)
		seen[k]++
		occs[i].Index = seen[k]
	}
}
