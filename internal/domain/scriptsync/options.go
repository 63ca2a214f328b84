package scriptsync

// Option applies a configuration option to the Synchronizer.
type Option func(*Synchronizer)

// WithWindow sets how far in seconds an offset-corrected action may be from
// its scripted entry.
func WithWindow(seconds float64) Option {
	return func(s *Synchronizer) {
		if seconds > 0 {
			s.window = seconds
		}
	}
}

// WithFuzzyRatio sets the share of the shorter name a common run must cover.
func WithFuzzyRatio(r float64) Option {
	return func(s *Synchronizer) {
		if r > 0 && r <= 1 {
			s.fuzzyRatio = r
		}
	}
}
