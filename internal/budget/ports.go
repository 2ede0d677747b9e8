// Package budget implements the monthly tracking and fund-allocation engine:
// lazy per-period balance materialization, current-period reads, and the
// allocation calculator.
package budget

import (
	"context"

	"bilancio/internal/core"
)

// Ports for outbound adapters. The SQLite repository implements all three
// stores; tests substitute in-memory fakes.
type (
	// CategoryStore supplies a user's active budget categories with their
	// current limit and display order. The engine only reads it.
	CategoryStore interface {
		ListCategories(ctx context.Context, userID string) ([]core.Category, error)
	}

	// BalanceStore persists per-period category balances. CreateIfAbsent
	// must enforce uniqueness on (user, category, year, month) server-side
	// and report created=false instead of an error when the row already
	// exists, regardless of which caller created it.
	BalanceStore interface {
		CreateBalanceIfAbsent(ctx context.Context, b core.CategoryBalance) (created bool, err error)
		ListBalances(ctx context.Context, userID string, p core.Period) ([]core.EnrichedBalance, error)
		AddSpent(ctx context.Context, userID, categoryID string, p core.Period, amount core.Money) error
	}

	// AllocationStore persists one fund-allocation row per user.
	// CreateIfAbsent follows the same conflict-is-success contract as
	// BalanceStore, keyed on user id alone.
	AllocationStore interface {
		GetAllocation(ctx context.Context, userID string) (core.Allocation, error)
		CreateAllocationIfAbsent(ctx context.Context, a core.Allocation) error
		ReplaceAllocation(ctx context.Context, a core.Allocation) (core.Allocation, error)
	}

	// SnapshotPublisher announces that a user's balances were materialized
	// for a new period, so the export worker can archive the previous one.
	// Publishing is best-effort: failures are logged, never propagated.
	SnapshotPublisher interface {
		PublishPeriodMaterialized(ctx context.Context, userID string, p core.Period) error
	}
)
