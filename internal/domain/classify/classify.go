// Package classify defines the contract for tagging ability occurrences as
// tank-busters, raid-wides and by importance.
package classify

import (
	"regexp"

	"github.com/okian/bosstimeline/internal/domain/model"
)

// Default classification thresholds.
const (
	defaultTankBusterMinDamage = 60_000
	defaultRaidWideMinTargets  = 6
	defaultHighDamage          = 80_000
	defaultCriticalDamage      = 150_000
	dualTankBusterTargets      = 2
)

var (
	defaultTankBusterPatterns = []string{`(?i)buster`, `(?i)\bcleave\b`, `(?i)\bslash\b`}
	defaultRaidWidePatterns   = []string{`(?i)\braidwide\b`, `(?i)\baoe\b`, `(?i)\bflare\b`}
)

// Tags are the derived classification flags of an occurrence.
type Tags struct {
	TankBuster     bool
	DualTankBuster bool
	RaidWide       bool
	Importance     model.Importance
}

// Classifier derives tags from an ability name, its damage and how many
// targets it hit. Implementations must be deterministic.
type Classifier interface {
	Classify(name string, damage float64, targetCount int) Tags
}

// Option applies a configuration option to the HeuristicClassifier.
type Option func(*HeuristicClassifier)

// WithTankBusterMinDamage sets the damage above which a one or two target hit is a buster.
func WithTankBusterMinDamage(damage float64) Option {
	return func(c *HeuristicClassifier) {
		if damage > 0 {
			c.tankBusterMinDamage = damage
		}
	}
}

// WithRaidWideMinTargets sets how many distinct targets make a hit raid-wide.
func WithRaidWideMinTargets(n int) Option {
	return func(c *HeuristicClassifier) {
		if n > 0 {
			c.raidWideMinTargets = n
		}
	}
}

// WithImportanceThresholds sets the high and critical damage levels.
func WithImportanceThresholds(high, critical float64) Option {
	return func(c *HeuristicClassifier) {
		if high > 0 && critical > high {
			c.highDamage = high
			c.criticalDamage = critical
		}
	}
}

// WithTankBusterPatterns replaces the name patterns that mark a buster.
// Invalid expressions are skipped.
func WithTankBusterPatterns(patterns []string) Option {
	return func(c *HeuristicClassifier) {
		if len(patterns) > 0 {
			c.tankBusterNames = compileAll(patterns)
		}
	}
}

// WithRaidWidePatterns replaces the name patterns that mark a raid-wide.
func WithRaidWidePatterns(patterns []string) Option {
	return func(c *HeuristicClassifier) {
		if len(patterns) > 0 {
			c.raidWideNames = compileAll(patterns)
		}
	}
}

// HeuristicClassifier implements Classifier with name patterns and damage /
// target-count thresholds.
type HeuristicClassifier struct {
	tankBusterMinDamage float64
	raidWideMinTargets  int
	highDamage          float64
	criticalDamage      float64
	tankBusterNames     []*regexp.Regexp
	raidWideNames       []*regexp.Regexp
}

// NewHeuristicClassifier creates a classifier with configuration options.
func NewHeuristicClassifier(opts ...Option) *HeuristicClassifier {
	c := &HeuristicClassifier{
		tankBusterMinDamage: defaultTankBusterMinDamage,
		raidWideMinTargets:  defaultRaidWideMinTargets,
		highDamage:          defaultHighDamage,
		criticalDamage:      defaultCriticalDamage,
		tankBusterNames:     compileAll(defaultTankBusterPatterns),
		raidWideNames:       compileAll(defaultRaidWidePatterns),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Classify tags one occurrence.
func (c *HeuristicClassifier) Classify(name string, damage float64, targetCount int) Tags {
	var t Tags

	t.RaidWide = targetCount >= c.raidWideMinTargets ||
		(matchAny(c.raidWideNames, name) && targetCount != 1 && targetCount != dualTankBusterTargets)

	if !t.RaidWide && targetCount > 0 && targetCount <= dualTankBusterTargets {
		heavy := damage >= c.tankBusterMinDamage
		if heavy || matchAny(c.tankBusterNames, name) {
			t.TankBuster = true
			t.DualTankBuster = targetCount == dualTankBusterTargets && heavy
		}
	}

	switch {
	case damage >= c.criticalDamage:
		t.Importance = model.ImportanceCritical
	case damage >= c.highDamage, t.TankBuster:
		t.Importance = model.ImportanceHigh
	case damage > 0 || t.RaidWide:
		t.Importance = model.ImportanceMedium
	default:
		t.Importance = model.ImportanceLow
	}

	return t
}

// Apply writes the tags of c onto occ.
func Apply(c Classifier, occ *model.AbilityOccurrence) {
	t := c.Classify(occ.Name, occ.Damage.Median, occ.TargetCount)
	occ.TankBuster = t.TankBuster
	occ.DualTankBuster = t.DualTankBuster
	occ.RaidWide = t.RaidWide
	occ.Importance = t.Importance
}

func compileAll(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			continue
		}
		out = append(out, re)
	}
	return out
}

func matchAny(res []*regexp.Regexp, name string) bool {
	for _, re := range res {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}
