package normalize

// Option applies a configuration option to the Normalizer.
type Option func(*Normalizer)

// WithPhaseGap sets the silence in seconds that starts a new phase.
func WithPhaseGap(seconds float64) Option {
	return func(n *Normalizer) {
		if seconds > 0 {
			n.phaseGap = seconds
		}
	}
}

// WithPhaseKeywords replaces the name keywords that open a new phase.
func WithPhaseKeywords(keywords []string) Option {
	return func(n *Normalizer) {
		if len(keywords) > 0 {
			n.keywords = append([]string(nil), keywords...)
		}
	}
}

// WithEngageMarkers replaces the names never chosen as reference action
// unless nothing else qualifies.
func WithEngageMarkers(markers []string) Option {
	return func(n *Normalizer) {
		if len(markers) > 0 {
			n.engageMarkers = append([]string(nil), markers...)
		}
	}
}
