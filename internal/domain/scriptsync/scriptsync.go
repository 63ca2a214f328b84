// Package scriptsync aligns report-derived actions with the scripted timeline.
//
// A single anchor match gives the clock offset between the two sources. Each
// scripted entry then claims at most one action of the same name and index
// within the match window, closest first. The result keeps scripted names and
// timing and carries the reports' damage.
package scriptsync

import (
	"math"
	"sort"
	"strconv"

	"github.com/okian/bosstimeline/internal/domain/aggregate"
	"github.com/okian/bosstimeline/internal/domain/dedupe"
	"github.com/okian/bosstimeline/internal/domain/model"
	"github.com/okian/bosstimeline/internal/domain/names"
)

// DefaultWindow is the default match window in seconds.
const DefaultWindow = 20.0

// Synchronizer holds sync settings. It is safe for concurrent use.
type Synchronizer struct {
	window     float64
	fuzzyRatio float64
}

// New creates a Synchronizer with configuration options.
func New(opts ...Option) *Synchronizer {
	s := &Synchronizer{window: DefaultWindow, fuzzyRatio: names.DefaultFuzzyRatio}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Anchor is the matched pair the offset was derived from.
type Anchor struct {
	Entry  model.ScriptEntry
	Action string // report action name
	Time   float64
	Fuzzy  bool
}

// Diagnostics counts the outcome of one sync run.
type Diagnostics struct {
	Offset          float64
	OffsetFound     bool
	Anchor          Anchor
	Matched         int
	Fallback        int // matched on name only
	UnmatchedScript int
	DamageOnly      int // report actions with no scripted entry
}

// Result is the synchronized timeline.
type Result struct {
	Actions     []model.AggregatedAction
	Mappings    []model.SyncMapping
	Diagnostics Diagnostics
}

// FindOffset matches the preferred entry, then every entry in script order,
// against the first action with the same normalized name, then the first with
// a similar name. The offset is script time minus action time.
func (s *Synchronizer) FindOffset(script []model.ScriptEntry, actions []model.AggregatedAction, preferred string) (float64, Anchor, bool) {
	sorted := sortedByTime(actions)

	candidates := make([]model.ScriptEntry, 0, len(script)+1)
	if preferred != "" {
		for _, e := range script {
			if names.Equal(e.Name, preferred) {
				candidates = append(candidates, e)
				break
			}
		}
	}
	candidates = append(candidates, script...)

	for _, e := range candidates {
		if i := firstMatch(sorted, e.Name, names.Equal); i >= 0 {
			a := sorted[i]
			return e.Time - a.Time, Anchor{Entry: e, Action: a.Name, Time: a.Time}, true
		}
		similar := func(a, b string) bool { return names.Similar(a, b, s.fuzzyRatio) }
		if i := firstMatch(sorted, e.Name, similar); i >= 0 {
			a := sorted[i]
			return e.Time - a.Time, Anchor{Entry: e, Action: a.Name, Time: a.Time, Fuzzy: true}, true
		}
	}
	return 0, Anchor{}, false
}

func firstMatch(actions []model.AggregatedAction, name string, eq func(a, b string) bool) int {
	for i := range actions {
		if eq(actions[i].Name, name) {
			return i
		}
	}
	return -1
}

// Sync reconciles actions with script. An empty script leaves actions as they
// are. Matched entries take the scripted name and time and the action's
// damage; unmatched entries stay damage-less; unmatched actions are kept at
// their offset-corrected time.
func (s *Synchronizer) Sync(script []model.ScriptEntry, actions []model.AggregatedAction, preferred string) Result {
	if len(script) == 0 {
		out := make([]model.AggregatedAction, len(actions))
		copy(out, actions)
		return Result{Actions: out, Diagnostics: Diagnostics{DamageOnly: len(actions)}}
	}

	var res Result
	offset, anchor, ok := s.FindOffset(script, actions, preferred)
	res.Diagnostics.Offset = offset
	res.Diagnostics.Anchor = anchor
	res.Diagnostics.OffsetFound = ok

	sorted := sortedByTime(actions)
	claims := dedupe.NewInMemoryDeduper()
	res.Mappings = make([]model.SyncMapping, len(script))
	matchedAt := make([]int, len(script))

	for i, e := range script {
		res.Mappings[i] = model.SyncMapping{Entry: e}
		matchedAt[i] = s.claim(claims, sorted, e, offset, true)
	}
	for i, e := range script {
		if matchedAt[i] >= 0 {
			continue
		}
		if j := s.claim(claims, sorted, e, offset, false); j >= 0 {
			matchedAt[i] = j
			res.Mappings[i].Fallback = true
		}
	}

	for i, e := range script {
		j := matchedAt[i]
		if j < 0 {
			res.Diagnostics.UnmatchedScript++
			res.Actions = append(res.Actions, scriptOnly(e))
			continue
		}
		a := sorted[j]
		m := &res.Mappings[i]
		m.Matched = true
		m.ActionID = a.ID
		m.Damage = a.Damage.Median
		m.HitCount = a.HitCount
		m.TargetCount = a.TargetCount
		m.Time = a.Time + offset

		res.Diagnostics.Matched++
		if m.Fallback {
			res.Diagnostics.Fallback++
		}
		res.Actions = append(res.Actions, merged(e, a))
	}

	for j, a := range sorted {
		if claims.Seen(strconv.Itoa(j)) {
			continue
		}
		a.Time += offset
		a.TimeRange.Min += offset
		a.TimeRange.Max += offset
		a.Source = model.SourceReport
		res.Actions = append(res.Actions, a)
		res.Diagnostics.DamageOnly++
	}

	aggregate.SortActions(res.Actions)
	return res
}

// claim picks the closest unclaimed action within the window whose name is
// similar to the entry's and, when strict, whose index equals the entry's.
// Exact name matches beat fuzzy ones at equal distance. Returns -1 when
// nothing qualifies.
func (s *Synchronizer) claim(claims dedupe.Deduper, actions []model.AggregatedAction, e model.ScriptEntry, offset float64, strict bool) int {
	best, bestDist, bestExact := -1, math.Inf(1), false
	for j, a := range actions {
		if strict && a.Index != e.Index {
			continue
		}
		if !names.Similar(a.Name, e.Name, s.fuzzyRatio) {
			continue
		}
		dist := math.Abs(a.Time + offset - e.Time)
		if dist > s.window {
			continue
		}
		if claims.Seen(strconv.Itoa(j)) {
			continue
		}
		exact := names.Equal(a.Name, e.Name)
		if dist < bestDist || (dist == bestDist && exact && !bestExact) {
			best, bestDist, bestExact = j, dist, exact
		}
	}
	if best >= 0 {
		claims.SeenAndRecord(strconv.Itoa(best))
	}
	return best
}

func merged(e model.ScriptEntry, a model.AggregatedAction) model.AggregatedAction {
	out := a
	delta := e.Time - a.Time
	out.Name = e.Name
	out.Index = e.Index
	out.Time = e.Time
	out.TimeRange.Min += delta
	out.TimeRange.Max += delta
	if e.HitCount > out.HitCount {
		out.HitCount = e.HitCount
	}
	out.Source = model.SourceMerged
	return out
}

func scriptOnly(e model.ScriptEntry) model.AggregatedAction {
	hits := e.HitCount
	if hits == 0 {
		hits = 1
	}
	return model.AggregatedAction{
		ID: model.ActionID("script:"+names.Normalize(e.Name), e.Index, model.NoPhase),
		AbilityOccurrence: model.AbilityOccurrence{
			Name:     e.Name,
			Index:    e.Index,
			Time:     e.Time,
			Phase:    model.NoPhase,
			HitCount: hits,
		},
		TimeRange: model.TimeRange{Min: e.Time, Max: e.Time},
		Source:    model.SourceScript,
	}
}

func sortedByTime(actions []model.AggregatedAction) []model.AggregatedAction {
	out := make([]model.AggregatedAction, len(actions))
	copy(out, actions)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out
}
