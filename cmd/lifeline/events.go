package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sakif/lifeline/internal/model"
)

func newEventsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "events",
		Aliases: []string{"event", "ev"},
		Short:   "List and manage life events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(
		newEventsListCommand(a),
		newEventsAddCommand(a),
		newEventsUpdateCommand(a),
		newEventsRemoveCommand(a),
		newEventsExportCommand(a),
	)
	return cmd
}

func newEventsListCommand(a *app) *cobra.Command {
	var category, sort string

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List events",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := a.backend()
			if err != nil {
				return err
			}
			events, err := b.ListEvents(cmd.Context(), category, sort)
			if err != nil {
				return err
			}
			return a.renderEvents(events)
		},
	}

	cmd.Flags().StringVar(&category, "category", "", `Category id, or "all"`)
	cmd.Flags().StringVar(&sort, "sort", "", "newest, oldest, highest or lowest (default: order)")
	return cmd
}

func newEventsAddCommand(a *app) *cobra.Command {
	var (
		title, date, description string
		score, order             int
		category                 int64
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record an event",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := model.EventInput{
				Date:  date,
				Title: title,
				Score: model.Int(score),
				Order: model.Int(order),
			}
			if cmd.Flags().Changed("category") {
				in.CategoryID = model.Int64(category)
			}
			if description != "" {
				in.Description = model.String(description)
			}

			b, err := a.backend()
			if err != nil {
				return err
			}
			e, err := b.CreateEvent(cmd.Context(), in)
			if err != nil {
				return err
			}
			return a.renderEvent(e)
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "What happened")
	cmd.Flags().StringVar(&date, "date", time.Now().Format(model.DateLayout), "Date as YYYY-MM-DD")
	cmd.Flags().IntVar(&score, "score", 0, "How it felt, 0-100")
	cmd.Flags().IntVar(&order, "order", 0, "Position in the default listing")
	cmd.Flags().Int64Var(&category, "category", 0, "Category id")
	cmd.Flags().StringVar(&description, "description", "", "Longer notes")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("score")
	return cmd
}

func newEventsUpdateCommand(a *app) *cobra.Command {
	var (
		title, date, description string
		score, order             int
		category                 int64
	)

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Change some fields of an event",
		Long: "Only the flags given are changed. --category 0 and --description \"\" " +
			"clear those fields.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			var patch model.EventPatch
			if flags.Changed("title") {
				patch.Title = &title
			}
			if flags.Changed("date") {
				patch.Date = &date
			}
			if flags.Changed("score") {
				patch.Score = &score
			}
			if flags.Changed("order") {
				patch.Order = &order
			}
			if flags.Changed("category") {
				patch.CategoryID = model.Some(category)
				if category == 0 {
					patch.CategoryID = model.Null[int64]()
				}
			}
			if flags.Changed("description") {
				patch.Description = model.Some(description)
				if description == "" {
					patch.Description = model.Null[string]()
				}
			}
			if patch.Empty() {
				return fmt.Errorf("nothing to update: pass at least one of --title, --date, --score, --order, --category, --description")
			}

			b, err := a.backend()
			if err != nil {
				return err
			}
			e, err := b.UpdateEvent(cmd.Context(), id, patch)
			if err != nil {
				return err
			}
			return a.renderEvent(e)
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().StringVar(&date, "date", "", "New date as YYYY-MM-DD")
	cmd.Flags().IntVar(&score, "score", 0, "New score, 0-100")
	cmd.Flags().IntVar(&order, "order", 0, "New position")
	cmd.Flags().Int64Var(&category, "category", 0, "New category id (0 clears)")
	cmd.Flags().StringVar(&description, "description", "", `New notes ("" clears)`)
	return cmd
}

func newEventsRemoveCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "rm ID",
		Aliases: []string{"delete"},
		Short:   "Delete an event",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			b, err := a.backend()
			if err != nil {
				return err
			}
			if err := b.DeleteEvent(cmd.Context(), id); err != nil {
				return err
			}
			return a.message("Deleted event %d", id)
		},
	}
}

func newEventsExportCommand(a *app) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the journal as plain text, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := a.backend()
			if err != nil {
				return err
			}
			text, err := b.Export(cmd.Context())
			if err != nil {
				return err
			}
			if file != "" {
				if err := os.WriteFile(file, []byte(text), 0o644); err != nil {
					return fmt.Errorf("write export: %w", err)
				}
				return a.message("Wrote %s", file)
			}
			if text != "" && !strings.HasSuffix(text, "\n") {
				text += "\n"
			}
			_, err = fmt.Fprint(a.stdout, text)
			return err
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Write to this file instead of stdout")
	return cmd
}
