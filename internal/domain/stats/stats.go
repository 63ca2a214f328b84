// Package stats holds the small robust-statistics toolkit used by the
// reconciliation stages: medians, quartiles, IQR outlier rejection and
// proximity clustering. Every function works on a copy of its input.
package stats

import (
	"math"
	"sort"
)

// DefaultIQRMultiplier is the Tukey fence multiplier.
const DefaultIQRMultiplier = 1.5

// MinSamplesForIQR is the smallest sample size for which quartiles are trusted.
const MinSamplesForIQR = 4

func sortedCopy(xs []float64) []float64 {
	cp := make([]float64, len(xs))
	copy(cp, xs)
	sort.Float64s(cp)
	return cp
}

// Median returns the middle value, averaging the two central values for even
// sized input. Empty input yields 0.
func Median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return medianSorted(sortedCopy(xs))
}

func medianSorted(cp []float64) float64 {
	n := len(cp)
	if n%2 == 1 {
		return cp[n/2]
	}
	return (cp[n/2-1] + cp[n/2]) / 2
}

// Mean returns the arithmetic mean, 0 for empty input.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, v := range xs {
		sum += v
	}
	return sum / float64(len(xs))
}

// StdDev returns the population standard deviation.
func StdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	mean := Mean(xs)
	var ss float64
	for _, v := range xs {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)))
}

// MinMax returns the extremes, zeros for empty input.
func MinMax(xs []float64) (lo, hi float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	lo, hi = xs[0], xs[0]
	for _, v := range xs[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// quantileSorted interpolates linearly between closest ranks of a sorted slice.
func quantileSorted(cp []float64, q float64) float64 {
	switch {
	case q <= 0:
		return cp[0]
	case q >= 1:
		return cp[len(cp)-1]
	}
	pos := q * float64(len(cp)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	return cp[lo] + frac*(cp[hi]-cp[lo])
}

// Quartiles returns the first and third quartile.
func Quartiles(xs []float64) (q1, q3 float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	cp := sortedCopy(xs)
	return quantileSorted(cp, 0.25), quantileSorted(cp, 0.75)
}

// IQRBounds returns the inclusive fence [Q1-k*IQR, Q3+k*IQR]. ok is false
// when there are fewer than MinSamplesForIQR samples.
func IQRBounds(xs []float64, k float64) (lo, hi float64, ok bool) {
	if len(xs) < MinSamplesForIQR {
		return 0, 0, false
	}
	if k <= 0 {
		k = DefaultIQRMultiplier
	}
	q1, q3 := Quartiles(xs)
	iqr := q3 - q1
	return q1 - k*iqr, q3 + k*iqr, true
}

// FilterOutliers drops values strictly outside the IQR fence. Fewer than
// MinSamplesForIQR samples are returned unfiltered.
func FilterOutliers(xs []float64, k float64) []float64 {
	lo, hi, ok := IQRBounds(xs, k)
	out := make([]float64, 0, len(xs))
	for _, v := range xs {
		if ok && (v < lo || v > hi) {
			continue
		}
		out = append(out, v)
	}
	return out
}

// ClusterBy sorts a copy of items by key and splits it wherever two
// consecutive keys are more than gap apart. The sort is stable so equal keys
// keep their input order.
func ClusterBy[T any](items []T, key func(T) float64, gap float64) [][]T {
	if len(items) == 0 {
		return nil
	}
	cp := make([]T, len(items))
	copy(cp, items)
	sort.SliceStable(cp, func(i, j int) bool { return key(cp[i]) < key(cp[j]) })

	var clusters [][]T
	start := 0
	for i := 1; i < len(cp); i++ {
		if key(cp[i])-key(cp[i-1]) > gap {
			clusters = append(clusters, cp[start:i:i])
			start = i
		}
	}
	return append(clusters, cp[start:])
}
