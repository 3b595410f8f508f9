package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/sakif/lifeline/internal/model"
	"github.com/sakif/lifeline/internal/timeline"
)

const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

// render writes v in the selected format. table is the row layout used for
// the table format; the structured formats ignore it.
func (a *app) render(v any, table func(w *tabwriter.Writer)) error {
	switch a.output {
	case outputJSON:
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case outputYAML:
		// Round-trip through JSON so YAML keys match the API's field names.
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		var generic any
		if err := json.Unmarshal(data, &generic); err != nil {
			return err
		}
		enc := yaml.NewEncoder(a.stdout)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return err
		}
		return enc.Close()
	}

	w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	table(w)
	return w.Flush()
}

// message prints a one-line confirmation, or {"message": ...} in the
// structured formats.
func (a *app) message(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return a.render(map[string]string{"message": msg}, func(w *tabwriter.Writer) {
		fmt.Fprintln(w, msg)
	})
}

func (a *app) renderCategories(cats []model.Category) error {
	return a.render(cats, func(w *tabwriter.Writer) {
		fmt.Fprintln(w, "ID\tNAME\tCOLOR")
		for _, c := range cats {
			fmt.Fprintf(w, "%d\t%s\t%s\n", c.ID, c.Name, c.Color)
		}
	})
}

func (a *app) renderCategory(c *model.Category) error {
	return a.render(c, func(w *tabwriter.Writer) {
		fmt.Fprintln(w, "ID\tNAME\tCOLOR")
		fmt.Fprintf(w, "%d\t%s\t%s\n", c.ID, c.Name, c.Color)
	})
}

func (a *app) renderEvents(events []model.Event) error {
	return a.render(events, func(w *tabwriter.Writer) {
		writeEventHeader(w)
		for _, e := range events {
			writeEventRow(w, e)
		}
	})
}

func (a *app) renderEvent(e *model.Event) error {
	return a.render(e, func(w *tabwriter.Writer) {
		writeEventHeader(w)
		writeEventRow(w, *e)
	})
}

func writeEventHeader(w *tabwriter.Writer) {
	fmt.Fprintln(w, "ID\tDATE\tSCORE\tTITLE\tCATEGORY\tORDER")
}

func writeEventRow(w *tabwriter.Writer, e model.Event) {
	category := "-"
	if e.CategoryID != nil {
		category = strconv.FormatInt(*e.CategoryID, 10)
	}
	fmt.Fprintf(w, "%d\t%s\t%d %s\t%s\t%s\t%d\n",
		e.ID, e.Date, e.Score, timeline.ScoreEmoji(e.Score), oneLine(e.Title), category, e.Order)
}

func (a *app) renderStats(stats []timeline.CategoryStat) error {
	return a.render(stats, func(w *tabwriter.Writer) {
		fmt.Fprintln(w, "CATEGORY\tEVENTS\tAVERAGE\tRECENT\tOLDER\tTREND")
		for _, s := range stats {
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%s\n",
				s.Name, s.EventCount, s.AverageScore, s.RecentAvg, s.OlderAvg, s.Trend)
		}
	})
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
