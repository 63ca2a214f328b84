// Package testreports generates synthetic boss kills for tests and load runs.
//
// A Fight lists abilities at fixed times on the fight clock. Each generated
// report replays the fight with seeded jitter on timing and damage, so equal
// seeds give equal reports.
package testreports

import (
	"sort"

	"github.com/okian/bosstimeline/internal/domain/model"
)

// Ability types as they appear in exported logs.
const (
	TypePhysical = 128
	TypeMagical  = 1024
)

// Ability is one mechanic of a synthetic fight.
type Ability struct {
	ID     int
	Name   string
	Type   int
	Times  []float64 // seconds after the pull, one per use
	Damage int64     // unmitigated damage per hit and target
	// Targets is the number of players hit. Zero means one.
	Targets int
	// Hits and HitSpacing describe multi-hit bursts.
	Hits       int
	HitSpacing float64
	// Unscripted abilities are left out of Script.
	Unscripted bool
}

// Fight is a synthetic encounter.
type Fight struct {
	Boss      string
	Duration  float64 // seconds
	Abilities []Ability
}

// DefaultFight returns a small encounter with a tank buster, a raid-wide, a
// multi-hit stack and one mechanic the script does not list.
func DefaultFight(boss string) Fight {
	return Fight{
		Boss:     boss,
		Duration: 120,
		Abilities: []Ability{
			{ID: 101, Name: "Heavy Slash", Type: TypePhysical, Times: []float64{5, 65}, Damage: 90000, Targets: 1},
			{ID: 102, Name: "Meteor", Type: TypeMagical, Times: []float64{20, 80}, Damage: 40000, Targets: 8},
			{ID: 103, Name: "Akh Morn", Type: TypeMagical, Times: []float64{35, 95}, Damage: 30000, Targets: 2, Hits: 4, HitSpacing: 0.6},
			{ID: 104, Name: "Tail Swipe", Type: TypePhysical, Times: []float64{50, 110}, Damage: 15000, Targets: 3, Unscripted: true},
		},
	}
}

// Uses returns the number of distinct action occurrences in the fight.
func (f Fight) Uses() int {
	n := 0
	for _, a := range f.Abilities {
		n += len(a.Times)
	}
	return n
}

// Script returns the scripted timeline of f with every time shifted by
// offset, in time order with 1-based indices per name.
func (f Fight) Script(offset float64) []model.ScriptEntry {
	var out []model.ScriptEntry
	for _, a := range f.Abilities {
		if a.Unscripted {
			continue
		}
		hits := a.Hits
		if hits < 1 {
			hits = 1
		}
		for i, at := range a.Times {
			out = append(out, model.ScriptEntry{Time: at + offset, Name: a.Name, Index: i + 1, HitCount: hits})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out
}
