// Package repository keeps reconciled timelines for the read side.
package repository

import (
	"context"
	"time"

	"github.com/okian/bosstimeline/internal/domain/model"
)

// Timeline is the stored outcome of one reconcile run.
type Timeline struct {
	Boss        string
	RunID       string
	StoredAt    time.Time
	Actions     []model.AggregatedAction
	Diagnostics model.RunDiagnostics
}

// Summary is one row of the recency listing.
type Summary struct {
	Rank     int
	Boss     string
	RunID    string
	StoredAt time.Time
	Actions  int
	Degraded bool
}

// Store provides read/write access to reconciled timelines.
type Store interface {
	// Put replaces the timeline stored for t.Boss.
	Put(ctx context.Context, t Timeline) error

	// Get returns the timeline for a boss, or ErrNotFound.
	Get(ctx context.Context, boss string) (Timeline, error)

	// Recent returns up to n summaries, most recently stored first.
	Recent(ctx context.Context, n int) ([]Summary, error)

	// Bosses returns every stored boss id in ascending order.
	Bosses(ctx context.Context) []string

	// Count returns the number of stored timelines.
	Count(ctx context.Context) int
}
