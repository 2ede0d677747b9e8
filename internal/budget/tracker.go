package budget

import (
	"bilancio/internal/core"
)

// Tracker is the monthly budget tracking engine. It resolves the current
// period, materializes balance rows lazily, serves the enriched
// current-period view, and records spending against it.
type Tracker struct {
	categories CategoryStore
	balances   BalanceStore
	clock      core.Clock
	publisher  SnapshotPublisher // optional
}

func NewTracker(categories CategoryStore, balances BalanceStore, clock core.Clock, publisher SnapshotPublisher) *Tracker {
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &Tracker{
		categories: categories,
		balances:   balances,
		clock:      clock,
		publisher:  publisher,
	}
}

// CurrentPeriod returns the tracking period the engine is in right now.
func (t *Tracker) CurrentPeriod() core.Period {
	return core.CurrentPeriod(t.clock)
}
