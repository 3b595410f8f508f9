package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/sakif/lifeline/internal/apperror"
	"github.com/sakif/lifeline/internal/model"
	"github.com/sakif/lifeline/internal/repository"
	"github.com/sakif/lifeline/internal/timeline"
)

// CategoryService handles business logic for categories.
type CategoryService struct {
	repo   repository.CategoryRepository
	logger *slog.Logger
}

// NewCategoryService creates a new CategoryService.
func NewCategoryService(repo repository.CategoryRepository, logger *slog.Logger) *CategoryService {
	return &CategoryService{
		repo:   repo,
		logger: logger,
	}
}

// List returns the user's categories in creation order.
func (s *CategoryService) List(ctx context.Context, userID int64) ([]model.Category, error) {
	categories, err := s.repo.ListCategories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	return categories, nil
}

// Create validates and saves a new category for userID.
//
// An empty color picks the first palette color the user has not used yet.
func (s *CategoryService) Create(ctx context.Context, userID int64, in model.CategoryInput) (*model.Category, error) {
	name, err := validateCategoryName(in.Name)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.ListCategories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}

	color, err := resolveColor(in.Color, existing, 0)
	if err != nil {
		return nil, err
	}

	category := &model.Category{
		UserID: userID,
		Name:   name,
		Color:  color,
	}
	if err := s.repo.CreateCategory(ctx, category); err != nil {
		return nil, fmt.Errorf("creating category: %w", err)
	}

	s.logger.Info("category created",
		slog.Int64("id", category.ID),
		slog.Int64("userID", userID),
		slog.String("color", category.Color),
	)

	return category, nil
}

// Replace overwrites name and color of one of the user's categories.
// An empty color keeps the current one.
func (s *CategoryService) Replace(ctx context.Context, userID, id int64, in model.CategoryInput) (*model.Category, error) {
	name, err := validateCategoryName(in.Name)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.ListCategories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}

	var current *model.Category
	for i := range existing {
		if existing[i].ID == id {
			current = &existing[i]
			break
		}
	}
	if current == nil {
		return nil, apperror.NotFound("category", id)
	}

	color := current.Color
	if in.Color != "" {
		if color, err = resolveColor(in.Color, existing, id); err != nil {
			return nil, err
		}
	}

	category := &model.Category{
		ID:     id,
		UserID: userID,
		Name:   name,
		Color:  color,
	}
	if err := s.repo.UpdateCategory(ctx, category); err != nil {
		return nil, fmt.Errorf("updating category %d: %w", id, err)
	}

	return category, nil
}

// Delete removes one of the user's categories. Events tagged with it keep
// their categoryId. Deleting a missing or foreign category is a no-op.
func (s *CategoryService) Delete(ctx context.Context, userID, id int64) error {
	if err := s.repo.DeleteCategory(ctx, id, userID); err != nil {
		return fmt.Errorf("deleting category %d: %w", id, err)
	}

	s.logger.Info("category deleted", slog.Int64("id", id), slog.Int64("userID", userID))
	return nil
}

// === VALIDATION ===

func validateCategoryName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperror.ValidationFailed("name", "category name is required")
	}
	if utf8.RuneCountInString(name) > MaxCategoryNameLength {
		return "", apperror.ValidationFailed("name",
			fmt.Sprintf("category name must be %d characters or less", MaxCategoryNameLength))
	}
	return name, nil
}

// resolveColor normalizes color against the palette, or picks the next free
// one when it is empty. skipID excludes the category being edited from the
// set of used colors.
func resolveColor(color string, existing []model.Category, skipID int64) (string, error) {
	if strings.TrimSpace(color) == "" {
		used := make([]string, 0, len(existing))
		for _, c := range existing {
			if c.ID != skipID {
				used = append(used, c.Color)
			}
		}
		return timeline.NextAvailableColor(used), nil
	}

	normalized, ok := timeline.NormalizeColor(color)
	if !ok {
		return "", apperror.ValidationFailed("color",
			fmt.Sprintf("color %q is not in the palette", color))
	}
	return normalized, nil
}
