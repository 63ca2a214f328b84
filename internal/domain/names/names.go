// Package names normalizes ability names and decides when two differently
// spelled names refer to the same mechanic.
package names

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// DefaultFuzzyRatio is the share of the shorter name that the longest common
// run of characters must cover.
const DefaultFuzzyRatio = 0.7

var (
	reParenthetical = regexp.MustCompile(`\s*[(\[][^)\]]*[)\]]`)
	reHitSuffix     = regexp.MustCompile(`(\s+[xX×]|×)\s*\d+\s*$`)
	reTrailingNum   = regexp.MustCompile(`\s+\d+\s*$`)
	reSpaces        = regexp.MustCompile(`\s+`)
)

// Fold folds width variants, collapses whitespace and lower-cases name. It
// keeps annotations and suffixes that Normalize strips.
func Fold(name string) string {
	s := reSpaces.ReplaceAllString(strings.TrimSpace(norm.NFKC.String(name)), " ")
	return cases.Lower(language.Und).String(s)
}

// Normalize strips hit-count suffixes ("x3"), parenthetical annotations and
// trailing numerals, folds width variants and lower-cases the result.
func Normalize(name string) string {
	s := norm.NFKC.String(name)
	s = reParenthetical.ReplaceAllString(s, "")
	for {
		next := reTrailingNum.ReplaceAllString(reHitSuffix.ReplaceAllString(s, ""), "")
		if next == s {
			break
		}
		s = next
	}
	s = reSpaces.ReplaceAllString(strings.TrimSpace(s), " ")
	// Casers keep state, so one per call keeps Normalize safe across workers.
	return cases.Lower(language.Und).String(s)
}

// Equal reports whether a and b normalize to the same non-empty name.
func Equal(a, b string) bool {
	na := Normalize(a)
	return na != "" && na == Normalize(b)
}

// Similar reports whether a and b name the same mechanic: equal after
// normalization, one contained in the other, or sharing a consecutive run of
// characters covering at least ratio of the shorter name.
func Similar(a, b string, ratio float64) bool {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return false
	}
	if na == nb || strings.Contains(na, nb) || strings.Contains(nb, na) {
		return true
	}
	if ratio <= 0 {
		ratio = DefaultFuzzyRatio
	}
	shorter := utf8.RuneCountInString(na)
	if n := utf8.RuneCountInString(nb); n < shorter {
		shorter = n
	}
	return float64(LongestCommonRun(na, nb)) >= ratio*float64(shorter)
}

// LongestCommonRun returns the length in runes of the longest substring
// shared by a and b.
func LongestCommonRun(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	best := 0
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			if ra[i-1] == rb[j-1] {
				cur[j] = prev[j-1] + 1
				if cur[j] > best {
					best = cur[j]
				}
			} else {
				cur[j] = 0
			}
		}
		prev, cur = cur, prev
	}
	return best
}

// ContainsAny reports whether the folded name contains any of the folded
// keywords, annotations included: "Ultima (Enrage)" contains "enrage".
func ContainsAny(name string, keywords []string) bool {
	n := Fold(name)
	if n == "" {
		return false
	}
	for _, k := range keywords {
		if nk := Fold(k); nk != "" && strings.Contains(n, nk) {
			return true
		}
	}
	return false
}
