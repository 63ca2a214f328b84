// Package normalize re-expresses one report's occurrences relative to a
// reference action and splits the timeline into phases.
package normalize

import (
	"github.com/okian/bosstimeline/internal/domain/cluster"
	"github.com/okian/bosstimeline/internal/domain/model"
	"github.com/okian/bosstimeline/internal/domain/names"
)

// Defaults.
const (
	DefaultPhaseGap = 30.0
	SignatureSize   = 5
)

var (
	defaultPhaseKeywords = []string{"enrage", "transition", "phase change"}
	defaultEngageMarkers = []string{"attack", "engage", "pull", "start"}
)

// Normalizer holds normalization settings. It is safe for concurrent use.
type Normalizer struct {
	phaseGap      float64
	keywords      []string
	engageMarkers []string
}

// New creates a Normalizer with configuration options.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{
		phaseGap:      DefaultPhaseGap,
		keywords:      defaultPhaseKeywords,
		engageMarkers: defaultEngageMarkers,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize builds the timeline of one report. occs carry absolute times in
// seconds; fightStart is the absolute fight start. preferred names the
// reference action and may be empty.
//
// In the result every occurrence has Time relative to the reference action,
// PhaseTime relative to its phase start and Phase set. Phase bounds are
// seconds from fight start.
func (n *Normalizer) Normalize(reportID string, occs []model.AbilityOccurrence, fightStart float64, preferred string) model.ReportTimeline {
	tl := model.ReportTimeline{ReportID: reportID}
	if len(occs) == 0 {
		return tl
	}

	sorted := make([]model.AbilityOccurrence, len(occs))
	copy(sorted, occs)
	for i := range sorted {
		sorted[i].Time -= fightStart
	}
	cluster.SortOccurrences(sorted)

	ref := n.Reference(sorted, preferred)
	tl.ReferenceName = sorted[ref].Name
	tl.ReferenceTime = sorted[ref].Time

	tl.Phases = n.detectPhases(sorted)

	for p := range tl.Phases {
		ph := &tl.Phases[p]
		for i := range ph.Occurrences {
			o := &ph.Occurrences[i]
			o.Phase = ph.Index
			o.PhaseTime = o.Time - ph.Start
			o.Time -= tl.ReferenceTime
			if o.ReportID == "" {
				o.ReportID = reportID
			}
		}
		tl.Occurrences = append(tl.Occurrences, ph.Occurrences...)
	}
	return tl
}

// Reference returns the index of the reference action in time-sorted occs:
// the first occurrence named preferred, else the first non-engage occurrence
// carrying damage or a tank-buster flag, else the first occurrence. occs must
// not be empty.
func (n *Normalizer) Reference(occs []model.AbilityOccurrence, preferred string) int {
	if preferred != "" {
		for i, o := range occs {
			if names.Equal(o.Name, preferred) {
				return i
			}
		}
	}
	for i, o := range occs {
		if n.isEngage(o.Name) {
			continue
		}
		if o.Damage.Median > 0 || o.TankBuster {
			return i
		}
	}
	return 0
}

func (n *Normalizer) isEngage(name string) bool {
	for _, m := range n.engageMarkers {
		if names.Equal(name, m) {
			return true
		}
	}
	return false
}

func (n *Normalizer) detectPhases(sorted []model.AbilityOccurrence) []model.Phase {
	var phases []model.Phase
	start := 0
	flush := func(end int) {
		members := make([]model.AbilityOccurrence, end-start)
		copy(members, sorted[start:end])
		phases = append(phases, model.Phase{
			Index:       len(phases),
			Start:       members[0].Time,
			End:         members[len(members)-1].Time,
			Signature:   Signature(members),
			RepeatOf:    model.NoPhase,
			Occurrences: members,
		})
	}

	for i := 1; i < len(sorted); i++ {
		gap := sorted[i].Time - sorted[i-1].Time
		if gap > n.phaseGap || names.ContainsAny(sorted[i].Name, n.keywords) {
			flush(i)
			start = i
		}
	}
	flush(len(sorted))

	for i := range phases {
		phases[i].RepeatOf = repeatOf(phases, i)
	}
	return phases
}

// Signature returns the first SignatureSize distinct normalized names.
func Signature(occs []model.AbilityOccurrence) []string {
	sig := make([]string, 0, SignatureSize)
	seen := make(map[string]struct{}, SignatureSize)
	for _, o := range occs {
		k := names.Normalize(o.Name)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		sig = append(sig, k)
		if len(sig) == SignatureSize {
			break
		}
	}
	return sig
}

func repeatOf(phases []model.Phase, i int) int {
	for j := 0; j < i; j++ {
		if equalSignature(phases[j].Signature, phases[i].Signature) {
			return j
		}
	}
	return model.NoPhase
}

func equalSignature(a, b []string) bool {
	if len(a) != len(b) || len(a) == 0 {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
