package tracking

// Option applies a configuration option to the Tracker.
type Option func(*Tracker)

// WithSameOccurrenceWindow sets how close in seconds two group medians must be
// to be merged as one occurrence.
func WithSameOccurrenceWindow(seconds float64) Option {
	return func(t *Tracker) {
		if seconds > 0 {
			t.sameWindow = seconds
		}
	}
}

// WithNewOccurrenceGap sets the gap in seconds after which a repeated name
// starts a new occurrence index.
func WithNewOccurrenceGap(seconds float64) Option {
	return func(t *Tracker) {
		if seconds > 0 {
			t.newGap = seconds
		}
	}
}

// WithMinConfidence sets the confidence below which a group is suspicious.
func WithMinConfidence(c float64) Option {
	return func(t *Tracker) {
		if c >= 0 && c <= 1 {
			t.minConfidence = c
		}
	}
}

// WithMaxSpread sets the time spread in seconds above which a group is
// suspicious.
func WithMaxSpread(seconds float64) Option {
	return func(t *Tracker) {
		if seconds > 0 {
			t.maxSpread = seconds
		}
	}
}

// WithPhaseAware keys groups by phase as well and numbers occurrences per
// phase.
func WithPhaseAware(on bool) Option {
	return func(t *Tracker) {
		t.phaseAware = on
	}
}
