package timeline

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"

	"github.com/sakif/lifeline/internal/model"
)

// SortMode selects the order of a timeline view.
type SortMode string

const (
	SortDefault SortMode = ""        // by Order, as stored
	SortNewest  SortMode = "newest"  // date descending
	SortOldest  SortMode = "oldest"  // date ascending
	SortHighest SortMode = "highest" // score descending
	SortLowest  SortMode = "lowest"  // score ascending
)

// ParseSortMode accepts the empty string and the four named modes.
func ParseSortMode(s string) (SortMode, error) {
	switch m := SortMode(s); m {
	case SortDefault, SortNewest, SortOldest, SortHighest, SortLowest:
		return m, nil
	}
	return "", fmt.Errorf("unknown sort mode %q", s)
}

// Sort returns a sorted copy of events. The sort is stable, so events that
// compare equal keep their stored order. Dates are YYYY-MM-DD and therefore
// compare correctly as strings.
func Sort(events []model.Event, mode SortMode) []model.Event {
	out := slices.Clone(events)

	var less func(a, b model.Event) int
	switch mode {
	case SortNewest:
		less = func(a, b model.Event) int { return cmp.Compare(b.Date, a.Date) }
	case SortOldest:
		less = func(a, b model.Event) int { return cmp.Compare(a.Date, b.Date) }
	case SortHighest:
		less = func(a, b model.Event) int { return cmp.Compare(b.Score, a.Score) }
	case SortLowest:
		less = func(a, b model.Event) int { return cmp.Compare(a.Score, b.Score) }
	default:
		less = func(a, b model.Event) int { return cmp.Compare(a.Order, b.Order) }
	}

	slices.SortStableFunc(out, less)
	return out
}

// CategoryFilter selects events by category. The zero value matches all.
type CategoryFilter struct {
	All        bool
	CategoryID int64
}

// ParseCategoryFilter accepts "", "all" or a decimal category id.
func ParseCategoryFilter(s string) (CategoryFilter, error) {
	if s == "" || s == "all" {
		return CategoryFilter{All: true}, nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return CategoryFilter{}, fmt.Errorf("category filter must be \"all\" or an id, got %q", s)
	}
	return CategoryFilter{CategoryID: id}, nil
}

// Match reports whether e passes the filter.
func (f CategoryFilter) Match(e model.Event) bool {
	if f.All || (f == CategoryFilter{}) {
		return true
	}
	return e.CategoryID != nil && *e.CategoryID == f.CategoryID
}

// Filter returns the events that pass f, preserving order.
func Filter(events []model.Event, f CategoryFilter) []model.Event {
	out := make([]model.Event, 0, len(events))
	for _, e := range events {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	return out
}
