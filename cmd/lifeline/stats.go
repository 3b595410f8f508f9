package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newStatsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Per-category event counts, averages and trend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := a.backend()
			if err != nil {
				return err
			}
			stats, err := b.CategoryStats(cmd.Context())
			if err != nil {
				return err
			}
			return a.renderStats(stats)
		},
	}
}

type visitorCount struct {
	Count int64 `json:"count"`
}

func newVisitorsCommand(a *app) *cobra.Command {
	var increment bool

	cmd := &cobra.Command{
		Use:   "visitors",
		Short: "Show the server's visitor counter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := a.remote()
			if err != nil {
				return err
			}

			var n int64
			if increment {
				n, err = c.IncrementVisitors(cmd.Context())
			} else {
				n, err = c.VisitorCount(cmd.Context())
			}
			if err != nil {
				return err
			}
			return a.render(visitorCount{Count: n}, func(w *tabwriter.Writer) {
				fmt.Fprintf(w, "%d\n", n)
			})
		},
	}

	cmd.Flags().BoolVar(&increment, "increment", false, "Count a visit before reading")
	return cmd
}
