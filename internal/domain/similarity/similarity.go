// Package similarity provides the string, amount, and date distance
// primitives used by the candidate scorer.
//
// All functions are pure. Merchant names and statement descriptions are
// normalized before comparison because card networks truncate, uppercase,
// and suffix merchant names with location codes (e.g. "AMZN Mktp US",
// "SQ *LOCAL COFFEE 0042").
package similarity

import (
	"strings"
	"time"
	"unicode"

	"github.com/agnivade/levenshtein"
)

// Normalize lowercases the input and strips everything that is not a letter,
// digit, or space, collapsing runs of whitespace to a single space.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	lastSpace := true
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case !lastSpace:
			b.WriteRune(' ')
			lastSpace = true
		}
	}

	return strings.TrimSpace(b.String())
}

// Tokens splits a normalized form of s into words.
func Tokens(s string) []string {
	norm := Normalize(s)
	if norm == "" {
		return nil
	}
	return strings.Fields(norm)
}

// Ratio returns a 0-1 similarity score between two strings based on
// levenshtein distance over their normalized forms. Identical strings
// score 1; strings with nothing in common score 0.
func Ratio(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}

	longest := len(na)
	if len(nb) > longest {
		longest = len(nb)
	}

	dist := levenshtein.ComputeDistance(na, nb)
	return 1 - float64(dist)/float64(longest)
}

// IsAbbreviation reports whether one string looks like an abbreviated or
// truncated form of the other. This catches the common statement-description
// patterns: a cleaned token of one side being a prefix of the other
// ("STARBUCK" vs "Starbucks"), or a consonant-style contraction that is a
// first-letter-anchored subsequence ("AMZN" vs "Amazon").
func IsAbbreviation(a, b string) bool {
	ta, tb := Tokens(a), Tokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return false
	}

	for _, wa := range ta {
		for _, wb := range tb {
			if tokenAbbreviates(wa, wb) || tokenAbbreviates(wb, wa) {
				return true
			}
		}
	}

	// One whole normalized name contained in the other also counts
	// ("amazon" inside "amazon com").
	na, nb := strings.Join(ta, " "), strings.Join(tb, " ")
	return strings.Contains(na, nb) || strings.Contains(nb, na)
}

// tokenAbbreviates reports whether short is an abbreviation of long.
func tokenAbbreviates(short, long string) bool {
	if len(short) < 3 || len(short) >= len(long) {
		return false
	}
	if strings.HasPrefix(long, short) {
		return true
	}
	// Subsequence check anchored on the first letter: every byte of short
	// must appear in long, in order.
	if short[0] != long[0] {
		return false
	}
	j := 0
	for i := 0; i < len(long) && j < len(short); i++ {
		if long[i] == short[j] {
			j++
		}
	}
	return j == len(short)
}

// SameDay reports whether two instants fall on the same calendar day (UTC).
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// DaysApart returns the absolute number of calendar days between two
// instants. Same-day instants return 0 regardless of time of day.
func DaysApart(a, b time.Time) int {
	da := time.Date(a.UTC().Year(), a.UTC().Month(), a.UTC().Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.UTC().Year(), b.UTC().Month(), b.UTC().Day(), 0, 0, 0, 0, time.UTC)

	days := int(db.Sub(da).Hours() / 24)
	if days < 0 {
		days = -days
	}
	return days
}
