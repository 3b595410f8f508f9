package timeline

import (
	"cmp"
	"math"
	"slices"

	"github.com/sakif/lifeline/internal/model"
)

// Trend compares the newer half of a category's events with the older half.
type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

// CategoryStat summarizes the events tagged with one category.
type CategoryStat struct {
	CategoryID   int64  `json:"categoryId"`
	Name         string `json:"name"`
	Color        string `json:"color"`
	EventCount   int    `json:"eventCount"`
	AverageScore int    `json:"averageScore"`
	RecentAvg    int    `json:"recentAvg"`
	OlderAvg     int    `json:"olderAvg"`
	Trend        Trend  `json:"trend"`
}

// CategoryStats returns one entry per category, in the order given.
//
// Events are split by date: the newest floor(n/2) form the recent half and
// the rest the older half. With a single event the recent half is empty and
// averages to 0.
func CategoryStats(categories []model.Category, events []model.Event) []CategoryStat {
	stats := make([]CategoryStat, 0, len(categories))
	for _, c := range categories {
		var own []model.Event
		for _, e := range events {
			if e.CategoryID != nil && *e.CategoryID == c.ID {
				own = append(own, e)
			}
		}
		slices.SortStableFunc(own, func(a, b model.Event) int { return cmp.Compare(b.Date, a.Date) })

		mid := len(own) / 2
		recent := average(own[:mid])
		older := average(own[mid:])

		trend := TrendStable
		switch {
		case recent > older:
			trend = TrendUp
		case recent < older:
			trend = TrendDown
		}

		stats = append(stats, CategoryStat{
			CategoryID:   c.ID,
			Name:         c.Name,
			Color:        c.Color,
			EventCount:   len(own),
			AverageScore: average(own),
			RecentAvg:    recent,
			OlderAvg:     older,
			Trend:        trend,
		})
	}
	return stats
}

// average rounds half up; 0 for no events.
func average(events []model.Event) int {
	if len(events) == 0 {
		return 0
	}
	sum := 0
	for _, e := range events {
		sum += e.Score
	}
	return int(math.Floor(float64(sum)/float64(len(events)) + 0.5))
}
