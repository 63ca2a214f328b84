package model

import (
	"fmt"

	"github.com/google/uuid"
)

// OccurrenceGroup is the cross-report unit of aggregation: every per-report
// occurrence believed to be the same event.
type OccurrenceGroup struct {
	Name       string
	Key        string // normalized name
	Index      int
	Phase      int
	Members    []AbilityOccurrence
	Reports    []string // distinct report ids, sorted
	Start      float64
	End        float64
	MedianTime float64
	Confidence float64
	Suspicious bool
	Reason     string
}

// Spread returns End - Start.
func (g OccurrenceGroup) Spread() float64 {
	return g.End - g.Start
}

// TimeRange records the statistical basis of an aggregated time.
type TimeRange struct {
	Min    float64
	Max    float64
	StdDev float64
}

// Action sources.
const (
	SourceReport = "report"
	SourceScript = "script"
	SourceMerged = "merged"
)

// AggregatedAction is the canonical unit of the reconciled timeline.
type AggregatedAction struct {
	ID string
	AbilityOccurrence

	DamageText    string  // single value or "low-high"
	DamagePerHit  float64 // set for multi-hit actions
	DamageTotal   float64
	Confidence    float64
	SourceReports int
	TimeRange     TimeRange
	Suspicious    bool
	Source        string

	Description  string
	MechanicType string
}

var actionNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("bosstimeline/action"))

// ActionID derives a stable identifier from a normalized name, an occurrence
// index and a phase. Equal inputs always yield the same id.
func ActionID(key string, index, phase int) string {
	return uuid.NewSHA1(actionNamespace, []byte(fmt.Sprintf("%s#%d@%d", key, index, phase))).String()
}
