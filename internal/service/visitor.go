package service

import (
	"context"
	"fmt"

	"github.com/sakif/lifeline/internal/metrics"
	"github.com/sakif/lifeline/internal/repository"
)

// VisitorService counts page visits. The count is global, not per user, and
// mirrors itself into the lifeline_visitors gauge.
type VisitorService struct {
	counter repository.VisitorCounter
	metrics *metrics.Metrics
}

// NewVisitorService creates a VisitorService. m may be nil.
func NewVisitorService(counter repository.VisitorCounter, m *metrics.Metrics) *VisitorService {
	return &VisitorService{counter: counter, metrics: m}
}

// Increment records one visit and returns the new total.
func (s *VisitorService) Increment(ctx context.Context) (int64, error) {
	n, err := s.counter.Increment(ctx)
	if err != nil {
		return 0, fmt.Errorf("incrementing visitor count: %w", err)
	}
	s.metrics.SetVisitors(n)
	return n, nil
}

// Count returns the current total without changing it.
func (s *VisitorService) Count(ctx context.Context) (int64, error) {
	n, err := s.counter.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("reading visitor count: %w", err)
	}
	s.metrics.SetVisitors(n)
	return n, nil
}
