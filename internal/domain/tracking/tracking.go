// Package tracking gives same-named occurrences stable indices across reports
// and groups the occurrences believed to be the same event.
package tracking

import (
	"sort"
	"strings"

	"github.com/okian/bosstimeline/internal/domain/model"
	"github.com/okian/bosstimeline/internal/domain/names"
	"github.com/okian/bosstimeline/internal/domain/stats"
)

// Defaults.
const (
	DefaultSameOccurrenceWindow = 5.0
	DefaultNewOccurrenceGap     = 30.0
	DefaultMinConfidence        = 0.3
	DefaultMaxSpread            = 10.0
)

// Suspicion reasons.
const (
	ReasonLowConfidence = "low confidence"
	ReasonWideSpread    = "wide spread"
)

// Tracker assigns occurrence indices and builds groups. It holds
// configuration only and is safe for concurrent use.
type Tracker struct {
	sameWindow    float64
	newGap        float64
	minConfidence float64
	maxSpread     float64
	phaseAware    bool
}

// Result is the outcome of one tracking run.
type Result struct {
	Groups        []model.OccurrenceGroup
	Reports       int
	Suspicious    int
	LowConfidence int
	WideSpread    int
	Merged        int
}

// New creates a Tracker with configuration options.
func New(opts ...Option) *Tracker {
	t := &Tracker{
		sameWindow:    DefaultSameOccurrenceWindow,
		newGap:        DefaultNewOccurrenceGap,
		minConfidence: DefaultMinConfidence,
		maxSpread:     DefaultMaxSpread,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// PhaseAware reports whether groups are keyed by phase.
func (t *Tracker) PhaseAware() bool { return t.phaseAware }

// MinConfidence returns the configured confidence floor.
func (t *Tracker) MinConfidence() float64 { return t.minConfidence }

type groupKey struct {
	name  string
	index int
	phase int
}

// Track indexes every timeline and groups occurrences across them. The input
// is not modified; output order does not depend on report order.
func (t *Tracker) Track(timelines []model.ReportTimeline) Result {
	res := Result{Reports: len(timelines)}
	if len(timelines) == 0 {
		return res
	}

	ordered := make([]model.ReportTimeline, len(timelines))
	copy(ordered, timelines)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].ReportID < ordered[j].ReportID })

	buckets := make(map[groupKey][]model.AbilityOccurrence)
	for _, tl := range ordered {
		for _, o := range t.Index(tl.Occurrences) {
			k := groupKey{name: names.Normalize(o.Name), index: o.Index}
			if t.phaseAware {
				k.phase = o.Phase
			}
			buckets[k] = append(buckets[k], o)
		}
	}

	groups := make([]model.OccurrenceGroup, 0, len(buckets))
	for k, members := range buckets {
		groups = append(groups, t.build(k, members, len(ordered)))
	}
	sortGroups(groups)

	groups, res.Merged = t.mergeDuplicates(groups, len(ordered))

	for i := range groups {
		t.judge(&groups[i])
		if !groups[i].Suspicious {
			continue
		}
		res.Suspicious++
		if groups[i].Confidence < t.minConfidence {
			res.LowConfidence++
		}
		if groups[i].Spread() > t.maxSpread {
			res.WideSpread++
		}
	}
	res.Groups = groups
	return res
}

// Index returns a copy of occs, sorted by time, with indices reassigned per
// normalized name (and per phase when phase-aware). A name keeps its index
// until the gap since its previous occurrence exceeds the new-occurrence gap.
func (t *Tracker) Index(occs []model.AbilityOccurrence) []model.AbilityOccurrence {
	out := make([]model.AbilityOccurrence, len(occs))
	copy(out, occs)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time < out[j].Time })

	type state struct {
		index int
		last  float64
	}
	seen := make(map[groupKey]*state)
	for i := range out {
		k := groupKey{name: names.Normalize(out[i].Name)}
		if t.phaseAware {
			k.phase = out[i].Phase
		}
		s, ok := seen[k]
		switch {
		case !ok:
			s = &state{index: 1}
			seen[k] = s
		case out[i].Time-s.last > t.newGap:
			s.index++
		default:
			// Within the new-occurrence gap the index is kept, including
			// gaps wider than the same-occurrence window.
		}
		s.last = out[i].Time
		out[i].Index = s.index
	}
	return out
}

func (t *Tracker) build(k groupKey, members []model.AbilityOccurrence, total int) model.OccurrenceGroup {
	sort.SliceStable(members, func(i, j int) bool {
		if members[i].Time != members[j].Time {
			return members[i].Time < members[j].Time
		}
		return members[i].ReportID < members[j].ReportID
	})

	g := model.OccurrenceGroup{
		Key:     k.name,
		Index:   k.index,
		Phase:   k.phase,
		Members: members,
	}
	if !t.phaseAware {
		g.Phase = model.NoPhase
	}
	refresh(&g, total)
	return g
}

// refresh recomputes the derived fields of g from its members.
func refresh(g *model.OccurrenceGroup, total int) {
	times := make([]float64, len(g.Members))
	reports := make(map[string]struct{})
	nameCounts := make(map[string]int)
	for i, m := range g.Members {
		times[i] = m.Time
		reports[m.ReportID] = struct{}{}
		nameCounts[m.Name]++
	}

	g.Reports = g.Reports[:0]
	for r := range reports {
		g.Reports = append(g.Reports, r)
	}
	sort.Strings(g.Reports)

	g.Start, g.End = stats.MinMax(times)
	g.MedianTime = stats.Median(times)
	if total > 0 {
		g.Confidence = float64(len(g.Reports)) / float64(total)
	}

	best, bestN := "", 0
	for n, c := range nameCounts {
		if c > bestN || (c == bestN && n < best) {
			best, bestN = n, c
		}
	}
	g.Name = best
}

// mergeDuplicates folds groups of one name (and phase) whose median times lie
// within the same-occurrence window. The merged group keeps the lower index.
func (t *Tracker) mergeDuplicates(groups []model.OccurrenceGroup, total int) ([]model.OccurrenceGroup, int) {
	merged := 0
	out := make([]model.OccurrenceGroup, 0, len(groups))
	for _, g := range groups {
		j := -1
		for i := len(out) - 1; i >= 0; i-- {
			if out[i].Key == g.Key && out[i].Phase == g.Phase &&
				g.MedianTime-out[i].MedianTime <= t.sameWindow {
				j = i
				break
			}
		}
		if j < 0 {
			out = append(out, g)
			continue
		}

		prev := out[j]
		members := make([]model.AbilityOccurrence, 0, len(prev.Members)+len(g.Members))
		members = append(members, prev.Members...)
		members = append(members, g.Members...)
		nk := groupKey{name: g.Key, index: min(prev.Index, g.Index), phase: g.Phase}
		out[j] = t.build(nk, members, total)
		merged++
	}
	sortGroups(out)
	return out, merged
}

func (t *Tracker) judge(g *model.OccurrenceGroup) {
	var reasons []string
	if g.Confidence < t.minConfidence {
		reasons = append(reasons, ReasonLowConfidence)
	}
	if g.Spread() > t.maxSpread {
		reasons = append(reasons, ReasonWideSpread)
	}
	g.Suspicious = len(reasons) > 0
	g.Reason = strings.Join(reasons, ", ")
}

func sortGroups(groups []model.OccurrenceGroup) {
	sort.SliceStable(groups, func(i, j int) bool {
		a, b := groups[i], groups[j]
		if a.MedianTime != b.MedianTime {
			return a.MedianTime < b.MedianTime
		}
		if a.Key != b.Key {
			return a.Key < b.Key
		}
		if a.Phase != b.Phase {
			return a.Phase < b.Phase
		}
		return a.Index < b.Index
	})
}
