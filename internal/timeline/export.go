package timeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/sakif/lifeline/internal/model"
)

// ExportText renders events as a plain-text journal, oldest first:
//
//	📅 January 2, 2006
//	😊 Title (Score: 75 - Good)
//	🏷️ Category
//	📝 Description
//	---
//
// The category and description lines are omitted when absent. Blocks are
// separated by a blank line.
func ExportText(events []model.Event, categories []model.Category) string {
	names := make(map[int64]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}

	sorted := Sort(events, SortOldest)
	blocks := make([]string, 0, len(sorted))
	for _, e := range sorted {
		lines := []string{
			"📅 " + formatDate(e.Date),
			fmt.Sprintf("%s %s (Score: %d - %s)", ScoreEmoji(e.Score), e.Title, e.Score, ScoreLabel(e.Score)),
		}
		if e.CategoryID != nil {
			if name, ok := names[*e.CategoryID]; ok {
				lines = append(lines, "🏷️ "+name)
			}
		}
		if e.Description != nil && strings.TrimSpace(*e.Description) != "" {
			lines = append(lines, "📝 "+*e.Description)
		}
		lines = append(lines, "---")
		blocks = append(blocks, strings.Join(lines, "\n"))
	}
	return strings.Join(blocks, "\n\n")
}

// formatDate falls back to the raw string for dates that do not parse.
func formatDate(date string) string {
	t, err := time.Parse(model.DateLayout, date)
	if err != nil {
		return date
	}
	return t.Format("January 2, 2006")
}
