package search

import (
	"unicode"

	"github.com/agnivade/levenshtein"

	"github.com/retrofutureitalia25/retrofuture-search/internal/textnorm"
)

const (
	// MaxFuzzyRunes bounds the text compared against a query.
	MaxFuzzyRunes = 1000
	// FullScanRunes is the longest text scanned at every rune offset. Longer
	// text is only aligned at word starts.
	FullScanRunes = 256
)

// PartialRatio scores, from 0 to 100, how well the shorter of a and b matches
// its best-aligned window inside the longer one. Up to FullScanRunes the
// window slides across every offset, so a match inside a word counts too.
// Comparison is case-insensitive.
func PartialRatio(a, b string) float64 {
	s1 := []rune(textnorm.Normalize(a))
	s2 := []rune(textnorm.Normalize(b))
	if len(s1) == 0 || len(s2) == 0 {
		return 0
	}
	if len(s1) > len(s2) {
		s1, s2 = s2, s1
	}
	if len(s2) > MaxFuzzyRunes {
		s2 = s2[:MaxFuzzyRunes]
		if len(s1) > len(s2) {
			s1 = s1[:len(s2)]
		}
	}

	short := string(s1)
	m := len(s1)
	window := func(start int) float64 {
		if start+m > len(s2) {
			start = len(s2) - m
		}
		d := levenshtein.ComputeDistance(short, string(s2[start:start+m]))
		return 100 * (1 - float64(d)/float64(m))
	}

	full := len(s2) <= FullScanRunes
	best := window(0)
	for i := 1; i < len(s2) && best < 100; i++ {
		if !full && (!unicode.IsSpace(s2[i-1]) || unicode.IsSpace(s2[i])) {
			continue
		}
		if r := window(i); r > best {
			best = r
		}
	}
	return best
}
