package model

import (
	"fmt"
	"strings"
)

// DamageCategory classifies how an ability deals damage.
type DamageCategory string

// Damage categories.
const (
	CategoryUnknown  DamageCategory = ""
	CategoryPhysical DamageCategory = "physical"
	CategoryMagical  DamageCategory = "magical"
	CategoryMixed    DamageCategory = "mixed"
)

// CategoryFromAbilityType maps a log ability school to a damage category.
// 128 is physical and 1024 magical; darkness (32) hits both mitigation kinds.
func CategoryFromAbilityType(abilityType int) DamageCategory {
	switch abilityType {
	case 128:
		return CategoryPhysical
	case 1024:
		return CategoryMagical
	case 32:
		return CategoryMixed
	default:
		return CategoryUnknown
	}
}

// Importance orders how much attention an action needs in a raid plan.
type Importance int

// Importance levels, ordered.
const (
	ImportanceLow Importance = iota
	ImportanceMedium
	ImportanceHigh
	ImportanceCritical
)

var importanceNames = [...]string{"low", "medium", "high", "critical"}

func (i Importance) String() string {
	if i < ImportanceLow || i > ImportanceCritical {
		return fmt.Sprintf("importance(%d)", int(i))
	}
	return importanceNames[i]
}

// MarshalText implements encoding.TextMarshaler.
func (i Importance) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *Importance) UnmarshalText(b []byte) error {
	s := strings.ToLower(strings.TrimSpace(string(b)))
	for n, name := range importanceNames {
		if name == s {
			*i = Importance(n)
			return nil
		}
	}
	return fmt.Errorf("unknown importance: %q", s)
}

// MaxImportance returns the more severe of a and b.
func MaxImportance(a, b Importance) Importance {
	if a > b {
		return a
	}
	return b
}

// DamageStats summarizes the damage of one occurrence after outlier rejection.
type DamageStats struct {
	Median   float64
	Mean     float64
	Min      float64
	Max      float64
	StdDev   float64
	Count    int // samples kept
	Rejected int // samples dropped as outliers
}

// AbilityOccurrence is a single use of a named ability at a point in the fight.
type AbilityOccurrence struct {
	ReportID    string
	Name        string
	AbilityID   int
	Index       int     // 1-based, per ability name
	Time        float64 // seconds, relative to the fight start or the reference action
	PhaseTime   float64 // seconds since the start of Phase
	Phase       int
	Damage      DamageStats
	HitCount    int
	TargetCount int
	EventCount  int // raw events folded into this occurrence
	Category    DamageCategory

	TankBuster     bool
	DualTankBuster bool
	RaidWide       bool
	Importance     Importance
}

// NoPhase marks a missing phase back-reference.
const NoPhase = -1

// Phase is a contiguous sub-range of one report's timeline.
type Phase struct {
	Index       int
	Start       float64 // seconds from fight start
	End         float64 // seconds from fight start, time of the last member
	Signature   []string
	RepeatOf    int // index of an earlier phase with the same signature, NoPhase otherwise
	Occurrences []AbilityOccurrence
}

// Duration returns End - Start.
func (p Phase) Duration() float64 {
	return p.End - p.Start
}

// ReportTimeline is one report's normalized, phase-tagged occurrence list.
type ReportTimeline struct {
	ReportID      string
	ReferenceName string
	ReferenceTime float64 // seconds from fight start
	Phases        []Phase
	Occurrences   []AbilityOccurrence
}
