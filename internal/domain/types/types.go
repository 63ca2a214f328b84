// Package types contains the wire shapes handed to downstream consumers
package types

import "github.com/okian/bosstimeline/internal/domain/model"

// TimelineRecord is one flat, ordered row of the canonical timeline.
type TimelineRecord struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Occurrence     int     `json:"occurrence"`
	Time           float64 `json:"time"`
	Damage         string  `json:"damage"`
	DamagePerHit   float64 `json:"damage_per_hit,omitempty"`
	DamageTotal    float64 `json:"damage_total,omitempty"`
	DamageType     string  `json:"damage_type"`
	HitCount       int     `json:"hit_count"`
	Importance     string  `json:"importance"`
	TankBuster     bool    `json:"tank_buster"`
	DualTankBuster bool    `json:"dual_tank_buster"`
	RaidWide       bool    `json:"raid_wide"`
	Confidence     float64 `json:"confidence"`
	SourceReports  int     `json:"source_reports"`
	Source         string  `json:"source"`
	Description    string  `json:"description,omitempty"`
	MechanicType   string  `json:"mechanic_type,omitempty"`
}

// FromAction flattens an aggregated action into its wire shape.
func FromAction(a *model.AggregatedAction) TimelineRecord {
	return TimelineRecord{
		ID:             a.ID,
		Name:           a.Name,
		Occurrence:     a.Index,
		Time:           a.Time,
		Damage:         a.DamageText,
		DamagePerHit:   a.DamagePerHit,
		DamageTotal:    a.DamageTotal,
		DamageType:     string(a.Category),
		HitCount:       a.HitCount,
		Importance:     a.Importance.String(),
		TankBuster:     a.TankBuster,
		DualTankBuster: a.DualTankBuster,
		RaidWide:       a.RaidWide,
		Confidence:     a.Confidence,
		SourceReports:  a.SourceReports,
		Source:         a.Source,
		Description:    a.Description,
		MechanicType:   a.MechanicType,
	}
}

// FromActions flattens a timeline, preserving order.
func FromActions(actions []model.AggregatedAction) []TimelineRecord {
	out := make([]TimelineRecord, len(actions))
	for i := range actions {
		out[i] = FromAction(&actions[i])
	}
	return out
}

// DiagnosticsRecord is the wire shape of model.RunDiagnostics.
type DiagnosticsRecord struct {
	ReportsIn         int     `json:"reports_in"`
	ReportsFailed     int     `json:"reports_failed"`
	DuplicateReports  int     `json:"duplicate_reports"`
	Occurrences       int     `json:"occurrences"`
	Groups            int     `json:"groups"`
	SuspiciousGroups  int     `json:"suspicious_groups"`
	LowConfidence     int     `json:"low_confidence_groups"`
	WideSpread        int     `json:"wide_spread_groups"`
	DroppedGroups     int     `json:"dropped_groups"`
	MergedGroups      int     `json:"merged_groups"`
	PhaseAware        bool    `json:"phase_aware"`
	PhaseFallback     bool    `json:"phase_fallback"`
	FallbackReason    string  `json:"fallback_reason,omitempty"`
	MultiHitCollapsed int     `json:"multihit_collapsed"`
	ScriptAvailable   bool    `json:"script_available"`
	ScriptEntries     int     `json:"script_entries"`
	SyncOffset        float64 `json:"sync_offset"`
	OffsetFound       bool    `json:"offset_found"`
	AnchorName        string  `json:"anchor,omitempty"`
	Matched           int     `json:"matched"`
	NameOnlyMatched   int     `json:"name_only_matched"`
	UnmatchedScript   int     `json:"unmatched_script"`
	DamageOnly        int     `json:"damage_only"`
	Enriched          int     `json:"enriched"`
	Degraded          bool    `json:"degraded"`
}

// FromDiagnostics converts run diagnostics into their wire shape.
func FromDiagnostics(d *model.RunDiagnostics) DiagnosticsRecord {
	return DiagnosticsRecord{
		ReportsIn:         d.ReportsIn,
		ReportsFailed:     d.ReportsFailed,
		DuplicateReports:  d.DuplicateReports,
		Occurrences:       d.Occurrences,
		Groups:            d.Groups,
		SuspiciousGroups:  d.SuspiciousGroups,
		LowConfidence:     d.LowConfidence,
		WideSpread:        d.WideSpread,
		DroppedGroups:     d.DroppedGroups,
		MergedGroups:      d.MergedGroups,
		PhaseAware:        d.PhaseAware,
		PhaseFallback:     d.PhaseFallback,
		FallbackReason:    d.FallbackReason,
		MultiHitCollapsed: d.MultiHitCollapsed,
		ScriptAvailable:   d.ScriptAvailable,
		ScriptEntries:     d.ScriptEntries,
		SyncOffset:        d.SyncOffset,
		OffsetFound:       d.OffsetFound,
		AnchorName:        d.AnchorName,
		Matched:           d.Matched,
		NameOnlyMatched:   d.NameOnlyMatched,
		UnmatchedScript:   d.UnmatchedScript,
		DamageOnly:        d.DamageOnly,
		Enriched:          d.Enriched,
		Degraded:          d.Degraded(),
	}
}

// MappingRecord is the wire shape of one scripted entry and its match.
type MappingRecord struct {
	Name        string  `json:"name"`
	Occurrence  int     `json:"occurrence"`
	ScriptTime  float64 `json:"script_time"`
	Matched     bool    `json:"matched"`
	NameOnly    bool    `json:"name_only,omitempty"`
	ActionID    string  `json:"action_id,omitempty"`
	ActionTime  float64 `json:"action_time,omitempty"`
	Damage      float64 `json:"damage,omitempty"`
	HitCount    int     `json:"hit_count,omitempty"`
	TargetCount int     `json:"target_count,omitempty"`
}

// FromMappings converts sync mappings, preserving script order.
func FromMappings(mappings []model.SyncMapping) []MappingRecord {
	out := make([]MappingRecord, len(mappings))
	for i, m := range mappings {
		out[i] = MappingRecord{
			Name:        m.Entry.Name,
			Occurrence:  m.Entry.Index,
			ScriptTime:  m.Entry.Time,
			Matched:     m.Matched,
			NameOnly:    m.Fallback,
			ActionID:    m.ActionID,
			ActionTime:  m.Time,
			Damage:      m.Damage,
			HitCount:    m.HitCount,
			TargetCount: m.TargetCount,
		}
	}
	return out
}
