package multihit

import "time"

// Option applies a configuration option to the Consolidator.
type Option func(*Consolidator)

// WithWindow sets the largest gap between consecutive hits of one burst.
func WithWindow(d time.Duration) Option {
	return func(c *Consolidator) {
		if d > 0 {
			c.window = d
		}
	}
}

// WithMinHits sets how many hits a burst needs to collapse.
func WithMinHits(n int) Option {
	return func(c *Consolidator) {
		if n >= 2 {
			c.minHits = n
		}
	}
}
