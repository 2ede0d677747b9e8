package budget

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"bilancio/internal/core"
)

// In-memory fakes for the engine's ports. All of them are safe for
// concurrent use so the race tests exercise real interleavings.

type stubClock struct {
	mu sync.Mutex
	t  time.Time
}

func newStubClock(t time.Time) *stubClock { return &stubClock{t: t} }

func (c *stubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *stubClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func (c *stubClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type fakeCategoryStore struct {
	mu   sync.Mutex
	cats map[string][]core.Category // by user
}

func newFakeCategoryStore() *fakeCategoryStore {
	return &fakeCategoryStore{cats: make(map[string][]core.Category)}
}

func (s *fakeCategoryStore) add(c core.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cats[c.UserID] = append(s.cats[c.UserID], c)
}

func (s *fakeCategoryStore) setLimit(userID, catID string, limit core.Money) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.cats[userID] {
		if s.cats[userID][i].ID == catID {
			s.cats[userID][i].Limit = limit
		}
	}
}

func (s *fakeCategoryStore) ListCategories(_ context.Context, userID string) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Category, len(s.cats[userID]))
	copy(out, s.cats[userID])
	return out, nil
}

type fakeBalanceStore struct {
	mu       sync.Mutex
	rows     map[string]core.CategoryBalance // key user|cat|period
	names    map[string]string               // category id -> name
	orders   map[string]int                  // category id -> display order
	vanished map[string]bool                 // category ids rejected on insert
	inserts  int
}

func newFakeBalanceStore() *fakeBalanceStore {
	return &fakeBalanceStore{
		rows:     make(map[string]core.CategoryBalance),
		names:    make(map[string]string),
		orders:   make(map[string]int),
		vanished: make(map[string]bool),
	}
}

func balanceKey(userID, catID string, p core.Period) string {
	return fmt.Sprintf("%s|%s|%s", userID, catID, p)
}

func (s *fakeBalanceStore) CreateBalanceIfAbsent(_ context.Context, b core.CategoryBalance) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.vanished[b.CategoryID] {
		return false, core.ErrCategoryMissing
	}
	key := balanceKey(b.UserID, b.CategoryID, b.Period)
	s.inserts++
	if _, exists := s.rows[key]; exists {
		return false, nil
	}
	b.ID = fmt.Sprintf("bal-%d", len(s.rows)+1)
	s.rows[key] = b
	return true, nil
}

func (s *fakeBalanceStore) ListBalances(_ context.Context, userID string, p core.Period) ([]core.EnrichedBalance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.EnrichedBalance
	for _, b := range s.rows {
		if b.UserID == userID && b.Period.Equal(p) {
			out = append(out, b.Enrich(s.names[b.CategoryID]))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		oi, oj := s.orders[out[i].CategoryID], s.orders[out[j].CategoryID]
		if oi != oj {
			return oi < oj
		}
		return out[i].CategoryID < out[j].CategoryID
	})
	return out, nil
}

func (s *fakeBalanceStore) AddSpent(_ context.Context, userID, categoryID string, p core.Period, amount core.Money) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := balanceKey(userID, categoryID, p)
	b, ok := s.rows[key]
	if !ok {
		return core.ErrCategoryMissing
	}
	b.Spent.Cents += amount.Cents
	s.rows[key] = b
	return nil
}

func (s *fakeBalanceStore) rowCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

type fakeAllocationStore struct {
	mu   sync.Mutex
	rows map[string]core.Allocation
	// creates counts CreateAllocationIfAbsent calls that actually inserted.
	creates int
}

func newFakeAllocationStore() *fakeAllocationStore {
	return &fakeAllocationStore{rows: make(map[string]core.Allocation)}
}

func (s *fakeAllocationStore) GetAllocation(_ context.Context, userID string) (core.Allocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.rows[userID]
	if !ok {
		return core.Allocation{}, core.ErrAllocationNotFound
	}
	return a, nil
}

func (s *fakeAllocationStore) CreateAllocationIfAbsent(_ context.Context, a core.Allocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rows[a.UserID]; exists {
		return nil
	}
	s.creates++
	s.rows[a.UserID] = a
	return nil
}

func (s *fakeAllocationStore) ReplaceAllocation(_ context.Context, a core.Allocation) (core.Allocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[a.UserID] = a
	return a, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *fakePublisher) PublishPeriodMaterialized(_ context.Context, userID string, period core.Period) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, fmt.Sprintf("%s@%s", userID, period))
	return nil
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}
