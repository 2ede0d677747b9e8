package budget

import (
	"context"
	"fmt"

	"bilancio/internal/core"
	"bilancio/internal/metrics"
)

// CurrentBalances returns the enriched balance rows for the user's current
// period only; prior periods are excluded by the query, not archived. Rows
// come back in category display order, then category id, so the sequence is
// stable across calls. Missing rows are not created here: callers that need
// the full set run EnsureBalances first.
func (t *Tracker) CurrentBalances(ctx context.Context, userID string) ([]core.EnrichedBalance, error) {
	if userID == "" {
		return nil, core.ErrEmptyUser
	}
	period := t.CurrentPeriod()

	balances, err := t.balances.ListBalances(ctx, userID, period)
	if err != nil {
		return nil, fmt.Errorf("list balances for %s: %w", period, err)
	}
	metrics.BalanceReads.Inc()
	return balances, nil
}

// BalancesFor returns the enriched rows for an arbitrary period. The export
// worker uses it to archive the month that just closed.
func (t *Tracker) BalancesFor(ctx context.Context, userID string, p core.Period) ([]core.EnrichedBalance, error) {
	if userID == "" {
		return nil, core.ErrEmptyUser
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return t.balances.ListBalances(ctx, userID, p)
}
