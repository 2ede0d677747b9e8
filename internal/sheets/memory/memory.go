package memory

import (
	"context"
	"fmt"
	"sync"

	"bilancio/internal/core"
	ports "bilancio/internal/sheets"
)

// Writer is an in-memory snapshot sink for development and tests.
type Writer struct {
	mu        sync.Mutex
	snapshots []Snapshot
}

type Snapshot struct {
	UserID   string
	Period   core.Period
	Balances []core.EnrichedBalance
}

var _ ports.SnapshotWriter = (*Writer)(nil)

func NewWriter() *Writer {
	return &Writer{}
}

func (w *Writer) AppendSnapshot(_ context.Context, userID string, p core.Period, balances []core.EnrichedBalance) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.snapshots = append(w.snapshots, Snapshot{
		UserID:   userID,
		Period:   p,
		Balances: balances,
	})
	return fmt.Sprintf("memory:%d", len(w.snapshots)), nil
}

// Snapshots returns a copy of everything appended so far.
func (w *Writer) Snapshots() []Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]Snapshot, len(w.snapshots))
	copy(out, w.snapshots)
	return out
}
