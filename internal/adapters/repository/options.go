package repository

import "time"

// Option applies a configuration option to the TreapStore.
type Option func(*TreapStore)

// WithMetricsUpdateInterval sets the interval for background metrics updates.
func WithMetricsUpdateInterval(interval time.Duration) Option {
	return func(s *TreapStore) {
		if interval > 0 {
			s.metricsUpdateInterval = interval
		}
	}
}

// WithRecentCacheSize bounds the recency list kept in each snapshot.
func WithRecentCacheSize(n int) Option {
	return func(s *TreapStore) {
		if n > 0 {
			s.recentCacheSize = n
		}
	}
}

// WithClock replaces time.Now for stored-at stamps.
func WithClock(now func() time.Time) Option {
	return func(s *TreapStore) {
		if now != nil {
			s.now = now
		}
	}
}
