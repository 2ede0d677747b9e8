package budget

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"bilancio/internal/core"
	"bilancio/internal/metrics"
)

// AllocationService manages a user's fund-allocation rule set:
// ABSENT -> DEFAULT on first read -> CUSTOM on any update. CUSTOM never
// reverts on its own.
type AllocationService struct {
	store AllocationStore
}

func NewAllocationService(store AllocationStore) *AllocationService {
	return &AllocationService{store: store}
}

// GetAllocation returns the user's rule set, creating the 50/20/10/20
// default exactly once when none exists. The create uses the store's
// conflict-is-success insert, so two concurrent first reads converge on a
// single row; whichever insert lost simply re-reads the winner's row.
func (s *AllocationService) GetAllocation(ctx context.Context, userID string) (core.Allocation, error) {
	if userID == "" {
		return core.Allocation{}, core.ErrEmptyUser
	}

	a, err := s.store.GetAllocation(ctx, userID)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, core.ErrAllocationNotFound) {
		return core.Allocation{}, fmt.Errorf("get allocation: %w", err)
	}

	def := DefaultAllocation(userID)
	if err := s.store.CreateAllocationIfAbsent(ctx, def); err != nil {
		return core.Allocation{}, fmt.Errorf("create default allocation: %w", err)
	}
	slog.InfoContext(ctx, "Created default allocation", "user_id", userID)

	a, err = s.store.GetAllocation(ctx, userID)
	if err != nil {
		return core.Allocation{}, fmt.Errorf("reread allocation after default: %w", err)
	}
	return a, nil
}

// UpdateAllocation replaces the user's rule set wholesale. All four buckets
// must be present; there is no partial merge. Invalid input is rejected
// before touching the store, with the offending bucket named.
func (s *AllocationService) UpdateAllocation(ctx context.Context, a core.Allocation) (core.Allocation, error) {
	if err := a.Validate(); err != nil {
		return core.Allocation{}, err
	}
	updated, err := s.store.ReplaceAllocation(ctx, a)
	if err != nil {
		return core.Allocation{}, fmt.Errorf("replace allocation: %w", err)
	}
	slog.InfoContext(ctx, "Allocation updated", "user_id", a.UserID)
	return updated, nil
}

// Preview runs the user's stored rules against an income figure without
// persisting anything.
func (s *AllocationService) Preview(ctx context.Context, userID string, income core.Money) (ComputedAllocation, error) {
	a, err := s.GetAllocation(ctx, userID)
	if err != nil {
		return ComputedAllocation{}, err
	}
	metrics.AllocationsComputed.Inc()
	return ComputeAllocation(a, income), nil
}
