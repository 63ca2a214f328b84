package cluster

import "github.com/okian/bosstimeline/internal/domain/classify"

// Option applies a configuration option to the Clusterer.
type Option func(*Clusterer)

// WithGap sets the largest gap in seconds between consecutive events of one
// occurrence.
func WithGap(seconds float64) Option {
	return func(c *Clusterer) {
		if seconds > 0 {
			c.gap = seconds
		}
	}
}

// WithMinDamage drops events whose damage is below min before clustering.
func WithMinDamage(min float64) Option {
	return func(c *Clusterer) {
		if min >= 0 {
			c.minDamage = min
		}
	}
}

// WithIQRMultiplier sets the outlier fence multiplier k.
func WithIQRMultiplier(k float64) Option {
	return func(c *Clusterer) {
		if k > 0 {
			c.iqrK = k
		}
	}
}

// WithClassifier tags every produced occurrence. nil disables tagging.
func WithClassifier(cl classify.Classifier) Option {
	return func(c *Clusterer) {
		c.classifier = cl
	}
}
