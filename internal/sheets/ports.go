package sheets

import (
	"context"

	"bilancio/internal/core"
)

// Ports for outbound adapters.
type (
	// SnapshotWriter appends a period's closing balances to an external sheet.
	SnapshotWriter interface {
		AppendSnapshot(ctx context.Context, userID string, p core.Period, balances []core.EnrichedBalance) (rowRef string, err error)
	}
)
