package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"bilancio/internal/amqp"
	"bilancio/internal/cache"
	"bilancio/internal/core"
	"bilancio/internal/metrics"
	"bilancio/internal/sheets"
)

// BalanceLister provides balances for an arbitrary period.
type BalanceLister interface {
	BalancesFor(ctx context.Context, userID string, p core.Period) ([]core.EnrichedBalance, error)
}

// SnapshotWorker exports a user's closing balances to the configured sheet
// when a new period is materialized for them.
type SnapshotWorker struct {
	balances BalanceLister
	writer   sheets.SnapshotWriter
	exported *cache.LRUCache[string]
	handled  atomic.Int64
}

func NewSnapshotWorker(balances BalanceLister, writer sheets.SnapshotWriter) *SnapshotWorker {
	return &SnapshotWorker{
		balances: balances,
		writer:   writer,
		// Dedupe window. Redelivered messages within it are dropped
		// instead of appending duplicate rows.
		exported: cache.NewLRUCache[string](1024, 24*time.Hour),
	}
}

// HandleMessage exports the period preceding the one that was materialized.
// The freshly created period has no spending yet; the closed one does.
func (w *SnapshotWorker) HandleMessage(ctx context.Context, msg *amqp.PeriodMaterializedMessage) error {
	w.handled.Add(1)

	closed := msg.Period().Previous()
	key := msg.UserID + "|" + closed.String()
	if _, seen := w.exported.Get(key); seen {
		slog.InfoContext(ctx, "Snapshot already exported, skipping",
			"user_id", msg.UserID,
			"period", closed.String())
		return nil
	}

	balances, err := w.balances.BalancesFor(ctx, msg.UserID, closed)
	if err != nil {
		return fmt.Errorf("list balances for snapshot: %w", err)
	}
	if len(balances) == 0 {
		slog.InfoContext(ctx, "No balances to export",
			"user_id", msg.UserID,
			"period", closed.String())
		w.exported.Set(key, "")
		return nil
	}

	ref, err := w.writer.AppendSnapshot(ctx, msg.UserID, closed, balances)
	if err != nil {
		return fmt.Errorf("append snapshot: %w", err)
	}

	w.exported.Set(key, ref)
	metrics.SnapshotsExported.Inc()

	slog.InfoContext(ctx, "Exported period snapshot",
		"user_id", msg.UserID,
		"period", closed.String(),
		"rows", len(balances),
		"sheets_ref", ref)

	return nil
}

// Handled returns the number of messages processed since startup.
func (w *SnapshotWorker) Handled() int64 {
	return w.handled.Load()
}

// Heartbeat logs processing stats until the context is cancelled.
func (w *SnapshotWorker) Heartbeat(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			slog.InfoContext(ctx, "Snapshot worker alive",
				"handled", w.Handled(),
				"dedupe_entries", w.exported.Size())
		}
	}
}
