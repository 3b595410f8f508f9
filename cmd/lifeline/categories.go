package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sakif/lifeline/internal/model"
)

func newCategoriesCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "categories",
		Aliases: []string{"category", "cat"},
		Short:   "List and manage categories",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(
		newCategoriesListCommand(a),
		newCategoriesAddCommand(a),
		newCategoriesEditCommand(a),
		newCategoriesRemoveCommand(a),
	)
	return cmd
}

func newCategoriesListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List categories",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := a.backend()
			if err != nil {
				return err
			}
			cats, err := b.ListCategories(cmd.Context())
			if err != nil {
				return err
			}
			return a.renderCategories(cats)
		},
	}
}

func newCategoriesAddCommand(a *app) *cobra.Command {
	var color string

	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Create a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := a.backend()
			if err != nil {
				return err
			}
			cat, err := b.CreateCategory(cmd.Context(), model.CategoryInput{Name: args[0], Color: color})
			if err != nil {
				return err
			}
			return a.renderCategory(cat)
		},
	}

	cmd.Flags().StringVar(&color, "color", "", "Palette color such as #2563eb (default: next unused)")
	return cmd
}

func newCategoriesEditCommand(a *app) *cobra.Command {
	var name, color string

	cmd := &cobra.Command{
		Use:   "edit ID",
		Short: "Rename or recolor a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			b, err := a.backend()
			if err != nil {
				return err
			}

			// The API replaces the whole category, so fill in the name
			// from the current row when only the color changes.
			if name == "" {
				cats, err := b.ListCategories(cmd.Context())
				if err != nil {
					return err
				}
				for _, c := range cats {
					if c.ID == id {
						name = c.Name
					}
				}
			}

			cat, err := b.ReplaceCategory(cmd.Context(), id, model.CategoryInput{Name: name, Color: color})
			if err != nil {
				return err
			}
			return a.renderCategory(cat)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "New name")
	cmd.Flags().StringVar(&color, "color", "", "New palette color (default: keep)")
	return cmd
}

func newCategoriesRemoveCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "rm ID",
		Aliases: []string{"delete"},
		Short:   "Delete a category; events keep their category id",
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
			if err := b.DeleteCategory(cmd.Context(), id); err != nil {
				return err
			}
			return a.message("Deleted category %d", id)
		},
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q: must be a positive integer", s)
	}
	return id, nil
}
