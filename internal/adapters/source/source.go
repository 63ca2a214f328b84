// Package source is the boundary to the external collaborators: the combat-log
// event source and the scripted timeline source. Everything coming through
// here is validated once and handed to the engine as domain values.
package source

import (
	"context"

	"github.com/okian/bosstimeline/internal/domain/model"
)

// LogSource yields recorded kills of a boss and their damage events.
type LogSource interface {
	// Reports lists the kills recorded for boss. Events may be left empty and
	// fetched through Events.
	Reports(ctx context.Context, boss string) ([]model.Report, error)

	// Events returns every damage event of the report's fight window, in any
	// order.
	Events(ctx context.Context, report model.Report) ([]model.RawDamageEvent, error)
}

// ScriptSource yields the scripted timeline of a boss.
type ScriptSource interface {
	Script(ctx context.Context, boss string) ([]model.ScriptEntry, error)
}
