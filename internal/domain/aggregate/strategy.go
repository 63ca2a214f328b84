package aggregate

import (
	"fmt"
	"strings"

	"github.com/okian/bosstimeline/internal/domain/stats"
)

// Strategy names the rule that collapses member times into one value.
type Strategy string

// Strategies.
const (
	StrategyMedian   Strategy = "median"
	StrategyAverage  Strategy = "average"
	StrategyEarliest Strategy = "earliest"
	StrategyLatest   Strategy = "latest"
	StrategyMerge    Strategy = "merge"
)

// ParseStrategy resolves a case-insensitive strategy name.
func ParseStrategy(s string) (Strategy, error) {
	st := Strategy(strings.ToLower(strings.TrimSpace(s)))
	if !st.valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
	}
	return st, nil
}

func (s Strategy) valid() bool {
	switch s {
	case StrategyMedian, StrategyAverage, StrategyEarliest, StrategyLatest, StrategyMerge:
		return true
	}
	return false
}

// Apply collapses xs into one value. Merge uses the median.
func (s Strategy) Apply(xs []float64) float64 {
	switch s {
	case StrategyAverage:
		return stats.Mean(xs)
	case StrategyEarliest:
		lo, _ := stats.MinMax(xs)
		return lo
	case StrategyLatest:
		_, hi := stats.MinMax(xs)
		return hi
	default:
		return stats.Median(xs)
	}
}

// keepsLowConfidence reports whether low-confidence groups survive.
func (s Strategy) keepsLowConfidence() bool {
	return s == StrategyMerge
}
