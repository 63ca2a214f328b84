package model

// ScriptEntry is one line of the community-maintained scripted timeline.
type ScriptEntry struct {
	Time     float64 // seconds on the script clock
	Name     string
	Index    int // 1-based occurrence of Name within the script
	Duration float64
	HitCount int
}

// SyncMapping pairs a scripted entry with the report-derived action it matched.
type SyncMapping struct {
	Entry       ScriptEntry
	Matched     bool
	Fallback    bool // matched on name only, occurrence index differed
	ActionID    string
	Damage      float64
	HitCount    int
	TargetCount int
	Time        float64 // offset-corrected action time
}
