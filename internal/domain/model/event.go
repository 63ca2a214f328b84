// Package model contains domain models passed between layers.
package model

// RawDamageEvent is one combat-log damage record as delivered by the log source.
type RawDamageEvent struct {
	Timestamp         int64          // absolute timestamp in milliseconds
	SourceID          int            // caster actor id
	TargetID          int            // receiving actor id
	AbilityID         int            // game ability id, 0 when unknown
	AbilityName       string         // display name
	Amount            int64          // damage after mitigation
	UnmitigatedAmount int64          // damage before mitigation, 0 when not logged
	Category          DamageCategory // inferred from the ability school
}

// Damage returns the unmitigated amount when logged, otherwise the raw amount.
func (e RawDamageEvent) Damage() int64 {
	if e.UnmitigatedAmount > 0 {
		return e.UnmitigatedAmount
	}
	return e.Amount
}

// Seconds returns the event timestamp in seconds.
func (e RawDamageEvent) Seconds() float64 {
	return float64(e.Timestamp) / msPerSecond
}

// Report identifies one recorded kill of a boss.
type Report struct {
	ID        string           // report code
	FightID   int              // fight within the report
	StartTime int64            // fight start, milliseconds
	EndTime   int64            // fight end, milliseconds
	Events    []RawDamageEvent // may be empty when the events are fetched lazily
}

// StartSeconds returns the fight start in seconds.
func (r Report) StartSeconds() float64 {
	return float64(r.StartTime) / msPerSecond
}

const msPerSecond = 1000.0
