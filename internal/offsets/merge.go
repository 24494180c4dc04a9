// Package offsets holds the pure interval arithmetic behind appearances:
// merging observed mention intervals and rebasing field-local offsets onto
// a resource's canonical text.
package offsets

import (
	"slices"

	"github.com/raphaelgruber/histograph-go/internal/models"
)

// Merge unions incoming intervals into existing ones, per language.
// Intervals are compared by exact (start, end) equality; overlapping but
// distinct spans are kept separately. Every output list is sorted by start,
// then end. Neither input is modified.
func Merge(existing, incoming models.Context) models.Context {
	out := make(models.Context, len(existing)+len(incoming))
	for lang, intervals := range existing {
		out[lang] = normalize(intervals, nil)
	}
	for lang, intervals := range incoming {
		out[lang] = normalize(out[lang], intervals)
	}
	return out
}

// normalize concatenates a and b, sorts and drops exact duplicates.
func normalize(a, b []models.Interval) []models.Interval {
	merged := make([]models.Interval, 0, len(a)+len(b))
	merged = append(merged, a...)
	merged = append(merged, b...)
	slices.SortFunc(merged, compare)
	return slices.Compact(merged)
}

func compare(a, b models.Interval) int {
	if a.Start() != b.Start() {
		return a.Start() - b.Start()
	}
	return a.End() - b.End()
}

// UnionLanguages returns existing followed by the incoming codes it lacks.
func UnionLanguages(existing, incoming []string) []string {
	out := make([]string, 0, len(existing)+len(incoming))
	for _, lang := range existing {
		if !slices.Contains(out, lang) {
			out = append(out, lang)
		}
	}
	for _, lang := range incoming {
		if !slices.Contains(out, lang) {
			out = append(out, lang)
		}
	}
	return out
}

// SortedLanguages returns the language keys of c in ascending order.
func SortedLanguages(c models.Context) []string {
	langs := c.Languages()
	slices.Sort(langs)
	return langs
}
