package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sakif/lifeline/internal/apperror"
	"github.com/sakif/lifeline/internal/model"
	"github.com/sakif/lifeline/internal/repository"
	"github.com/sakif/lifeline/internal/timeline"
)

// EventQuery narrows and orders GET /api/events.
//
// Category is "", "all" or a category id. Sort is "" (stored order),
// "newest", "oldest", "highest" or "lowest".
type EventQuery struct {
	Category string
	Sort     string
}

// EventService handles business logic for events. It also reads categories
// for the stats and export views.
type EventService struct {
	events     repository.EventRepository
	categories repository.CategoryRepository
	logger     *slog.Logger
}

// NewEventService creates a new EventService.
func NewEventService(events repository.EventRepository, categories repository.CategoryRepository, logger *slog.Logger) *EventService {
	return &EventService{
		events:     events,
		categories: categories,
		logger:     logger,
	}
}

// List returns the user's events, filtered and sorted per q.
func (s *EventService) List(ctx context.Context, userID int64, q EventQuery) ([]model.Event, error) {
	filter, err := timeline.ParseCategoryFilter(q.Category)
	if err != nil {
		return nil, apperror.ValidationFailed("category", err.Error())
	}
	mode, err := timeline.ParseSortMode(q.Sort)
	if err != nil {
		return nil, apperror.ValidationFailed("sort", err.Error())
	}

	events, err := s.events.ListEvents(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}

	return timeline.Sort(timeline.Filter(events, filter), mode), nil
}

// Create validates and saves a new event. An out-of-range score is rejected
// here, before anything reaches the store.
func (s *EventService) Create(ctx context.Context, userID int64, in model.EventInput) (*model.Event, error) {
	if in.Score == nil {
		return nil, apperror.ValidationFailed("score", "score is required")
	}
	if in.Order == nil {
		return nil, apperror.ValidationFailed("order", "order is required")
	}

	event := &model.Event{
		UserID:      userID,
		CategoryID:  in.CategoryID,
		Date:        in.Date,
		Title:       in.Title,
		Description: in.Description,
		Score:       *in.Score,
		Order:       *in.Order,
	}
	if err := validateEvent(event); err != nil {
		return nil, err
	}

	if err := s.events.CreateEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("creating event: %w", err)
	}

	s.logger.Info("event created",
		slog.Int64("id", event.ID),
		slog.Int64("userID", userID),
		slog.Int("score", event.Score),
	)

	return event, nil
}

// Update applies a partial update to one of the user's events. A missing or
// foreign id is reported as not found. An empty patch returns the event
// unchanged.
func (s *EventService) Update(ctx context.Context, userID, id int64, patch model.EventPatch) (*model.Event, error) {
	event, err := s.events.GetEvent(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if patch.Empty() {
		return event, nil
	}

	patch.Apply(event)
	if err := validateEvent(event); err != nil {
		return nil, err
	}

	if err := s.events.UpdateEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("updating event %d: %w", id, err)
	}

	return event, nil
}

// Delete removes one of the user's events. Missing or foreign ids are a no-op.
func (s *EventService) Delete(ctx context.Context, userID, id int64) error {
	if err := s.events.DeleteEvent(ctx, id, userID); err != nil {
		return fmt.Errorf("deleting event %d: %w", id, err)
	}

	s.logger.Info("event deleted", slog.Int64("id", id), slog.Int64("userID", userID))
	return nil
}

// Stats returns per-category statistics for the user.
func (s *EventService) Stats(ctx context.Context, userID int64) ([]timeline.CategoryStat, error) {
	categories, events, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return timeline.CategoryStats(categories, events), nil
}

// Export renders the user's events as a plain-text journal.
func (s *EventService) Export(ctx context.Context, userID int64) (string, error) {
	categories, events, err := s.load(ctx, userID)
	if err != nil {
		return "", err
	}
	return timeline.ExportText(events, categories), nil
}

func (s *EventService) load(ctx context.Context, userID int64) ([]model.Category, []model.Event, error) {
	categories, err := s.categories.ListCategories(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("listing categories: %w", err)
	}
	events, err := s.events.ListEvents(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("listing events: %w", err)
	}
	return categories, events, nil
}

// === VALIDATION ===

// validateEvent checks every rule an event must satisfy. Length limits apply
// to the trimmed text; the stored values are kept exactly as sent.
func validateEvent(e *model.Event) error {
	title := strings.TrimSpace(e.Title)
	if title == "" {
		return apperror.ValidationFailed("title", "Title is required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return apperror.ValidationFailed("title",
			fmt.Sprintf("title must be %d characters or less", MaxTitleLength))
	}

	if e.Description != nil && utf8.RuneCountInString(strings.TrimSpace(*e.Description)) > MaxDescriptionLength {
		return apperror.ValidationFailed("description",
			fmt.Sprintf("description must be %d characters or less", MaxDescriptionLength))
	}

	if _, err := time.Parse(model.DateLayout, e.Date); err != nil {
		return apperror.ValidationFailed("date", "date must be in YYYY-MM-DD format")
	}

	if !timeline.ValidScore(e.Score) {
		return apperror.ValidationFailed("score",
			fmt.Sprintf("score must be between %d and %d", timeline.MinScore, timeline.MaxScore))
	}

	if e.CategoryID != nil && *e.CategoryID <= 0 {
		return apperror.ValidationFailed("categoryId", "categoryId must be a positive id")
	}

	return nil
}
