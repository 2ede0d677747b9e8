package budget

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"bilancio/internal/core"
	"bilancio/internal/metrics"
)

// EnsureBalances makes sure a balance row exists for every active category
// of the user in the current period, creating missing ones with zero spend
// and the category's limit snapshotted at creation time. It is safe to call
// on every request: once the rows exist it performs no writes. Racing
// callers converge on the store's uniqueness constraint; "already exists"
// is success here, not an error.
func (t *Tracker) EnsureBalances(ctx context.Context, userID string) error {
	if userID == "" {
		return core.ErrEmptyUser
	}
	period := t.CurrentPeriod()

	cats, err := t.categories.ListCategories(ctx, userID)
	if err != nil {
		return fmt.Errorf("list categories: %w", err)
	}

	created := 0
	for _, c := range cats {
		balance := core.CategoryBalance{
			UserID:     userID,
			CategoryID: c.ID,
			Period:     period,
			Spent:      core.Money{},
			Limit:      c.Limit,
		}
		ok, err := t.balances.CreateBalanceIfAbsent(ctx, balance)
		if errors.Is(err, core.ErrCategoryMissing) {
			// Category deleted between listing and insert. Skip it; the
			// next call picks it up again if it reappears.
			slog.WarnContext(ctx, "Skipping vanished category during materialization",
				"user_id", userID, "category_id", c.ID, "period", period.String())
			continue
		}
		if err != nil {
			return fmt.Errorf("materialize balance for category %s: %w", c.ID, err)
		}
		if ok {
			created++
			metrics.BalancesMaterialized.Inc()
		} else {
			metrics.MaterializeConflicts.Inc()
		}
	}

	if created > 0 {
		slog.InfoContext(ctx, "Materialized period balances",
			"user_id", userID, "period", period.String(), "created", created)
		t.publishMaterialized(ctx, userID, period)
	}
	return nil
}

// RecordExpense adds spend to the user's balance for a category in the
// current period. The row is materialized first if the month just rolled
// over, so recording works as the first touch of a new period.
func (t *Tracker) RecordExpense(ctx context.Context, userID, categoryID string, amount core.Money) error {
	if userID == "" {
		return core.ErrEmptyUser
	}
	if err := amount.Validate(); err != nil {
		return err
	}

	if err := t.EnsureBalances(ctx, userID); err != nil {
		return err
	}

	period := t.CurrentPeriod()
	if err := t.balances.AddSpent(ctx, userID, categoryID, period, amount); err != nil {
		return fmt.Errorf("record expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense recorded",
		"user_id", userID, "category_id", categoryID,
		"period", period.String(), "amount_cents", amount.Cents)
	return nil
}

// publishMaterialized is fire-and-forget: export must never fail a request.
func (t *Tracker) publishMaterialized(ctx context.Context, userID string, p core.Period) {
	if t.publisher == nil {
		return
	}
	if err := t.publisher.PublishPeriodMaterialized(ctx, userID, p); err != nil {
		slog.ErrorContext(ctx, "Failed to publish materialization event",
			"user_id", userID, "period", p.String(), "error", err)
	}
}
