package model

// RunDiagnostics counts every degraded or lossy path of one reconcile run.
// A run never fails for well-typed input; callers read these to warn users.
type RunDiagnostics struct {
	ReportsIn        int
	ReportsFailed    int
	DuplicateReports int
	Occurrences      int

	Groups           int
	SuspiciousGroups int
	LowConfidence    int
	WideSpread       int
	DroppedGroups    int
	MergedGroups     int

	PhaseAware     bool
	PhaseFallback  bool
	FallbackReason string

	MultiHitCollapsed int

	ScriptEntries   int
	ScriptAvailable bool
	SyncOffset      float64
	OffsetFound     bool
	AnchorName      string
	Matched         int
	NameOnlyMatched int
	UnmatchedScript int
	DamageOnly      int

	Enriched int
}

// Degraded reports whether any warning-worthy path was taken.
func (d *RunDiagnostics) Degraded() bool {
	return d.ReportsFailed > 0 || d.SuspiciousGroups > 0 || d.PhaseFallback ||
		d.UnmatchedScript > 0 || (d.ScriptEntries > 0 && !d.OffsetFound)
}
