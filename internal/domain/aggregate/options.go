package aggregate

import "github.com/okian/bosstimeline/internal/domain/tracking"

// Option applies a configuration option to the Aggregator.
type Option func(*Aggregator)

// WithStrategy sets how member times collapse into one value.
func WithStrategy(s Strategy) Option {
	return func(a *Aggregator) {
		if s.valid() {
			a.strategy = s
		}
	}
}

// WithPhaseAware aggregates each phase separately when every report agrees on
// the phase structure.
func WithPhaseAware(on bool) Option {
	return func(a *Aggregator) {
		a.phaseAware = on
	}
}

// WithTracking passes options to the tracker run before aggregation.
func WithTracking(opts ...tracking.Option) Option {
	return func(a *Aggregator) {
		a.trackOpts = append(a.trackOpts, opts...)
	}
}
