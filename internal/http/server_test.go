package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"bilancio/internal/auth"
	"bilancio/internal/budget"
	"bilancio/internal/core"
)

// memStore is an in-memory implementation of every persistence port the
// server touches.
type memStore struct {
	mu          sync.Mutex
	categories  []core.Category
	balances    map[string]*core.CategoryBalance // userID|categoryID|period
	allocations map[string]core.Allocation
	nextID      int
}

func newMemStore() *memStore {
	return &memStore{
		balances:    make(map[string]*core.CategoryBalance),
		allocations: make(map[string]core.Allocation),
	}
}

func balanceKey(userID, categoryID string, p core.Period) string {
	return userID + "|" + categoryID + "|" + p.String()
}

func (m *memStore) CreateCategory(_ context.Context, c *core.Category) error {
	if err := c.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.categories {
		if existing.UserID == c.UserID && existing.Name == c.Name {
			return fmt.Errorf("category %q already exists", c.Name)
		}
	}
	m.nextID++
	c.ID = fmt.Sprintf("cat-%d", m.nextID)
	m.categories = append(m.categories, *c)
	return nil
}

func (m *memStore) ListCategories(_ context.Context, userID string) ([]core.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.Category
	for _, c := range m.categories {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DisplayOrder != out[j].DisplayOrder {
			return out[i].DisplayOrder < out[j].DisplayOrder
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *memStore) CreateBalanceIfAbsent(_ context.Context, b core.CategoryBalance) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	found := false
	for _, c := range m.categories {
		if c.ID == b.CategoryID {
			found = true
			break
		}
	}
	if !found {
		return false, core.ErrCategoryMissing
	}
	key := balanceKey(b.UserID, b.CategoryID, b.Period)
	if _, exists := m.balances[key]; exists {
		return false, nil
	}
	copied := b
	m.balances[key] = &copied
	return true, nil
}

func (m *memStore) ListBalances(ctx context.Context, userID string, p core.Period) ([]core.EnrichedBalance, error) {
	cats, _ := m.ListCategories(ctx, userID)
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.EnrichedBalance
	for _, c := range cats {
		if b, ok := m.balances[balanceKey(userID, c.ID, p)]; ok {
			out = append(out, b.Enrich(c.Name))
		}
	}
	return out, nil
}

func (m *memStore) AddSpent(_ context.Context, userID, categoryID string, p core.Period, amount core.Money) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.balances[balanceKey(userID, categoryID, p)]
	if !ok {
		return core.ErrCategoryMissing
	}
	b.Spent.Cents += amount.Cents
	return nil
}

func (m *memStore) GetAllocation(_ context.Context, userID string) (core.Allocation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.allocations[userID]
	if !ok {
		return core.Allocation{}, core.ErrAllocationNotFound
	}
	return a, nil
}

func (m *memStore) CreateAllocationIfAbsent(_ context.Context, a core.Allocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.allocations[a.UserID]; !exists {
		m.allocations[a.UserID] = a
	}
	return nil
}

func (m *memStore) ReplaceAllocation(_ context.Context, a core.Allocation) (core.Allocation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allocations[a.UserID] = a
	return a, nil
}

type testServer struct {
	*httptest.Server
	token string
	store *memStore
	clock *core.FixedClock
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store := newMemStore()
	clock := &core.FixedClock{Time: time.Date(2026, time.August, 15, 12, 0, 0, 0, time.UTC)}
	tracker := budget.NewTracker(store, store, clock, nil)
	allocations := budget.NewAllocationService(store)
	jwtMgr := auth.NewJWTManager("test-secret-key-with-enough-bytes", time.Hour)

	srv := NewServer(Options{
		Addr:            ":0",
		Tracker:         tracker,
		Allocations:     allocations,
		Categories:      store,
		JWT:             jwtMgr,
		BalanceCacheTTL: time.Minute,
	})
	ts := httptest.NewServer(srv.Server.Handler)
	t.Cleanup(ts.Close)
	t.Cleanup(func() { srv.Shutdown(context.Background()) })

	token, err := jwtMgr.Generate("ada")
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	return &testServer{Server: ts, token: token, store: store, clock: clock}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.URL+path, reader)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+ts.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("failed to read response: %v", err)
	}
	return resp, data
}

func (ts *testServer) createCategory(t *testing.T, name, limit string, order int) string {
	t.Helper()
	resp, body := ts.do(t, http.MethodPost, "/api/categories", categoryRequest{
		Name: name, Limit: limit, DisplayOrder: order,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("failed to create category %q: %d %s", name, resp.StatusCode, body)
	}
	var created categoryResponse
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("failed to decode category: %v", err)
	}
	return created.ID
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/period")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %d", resp.StatusCode)
	}
}

func TestCurrentPeriod(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodGet, "/api/period", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var got periodResponse
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.Year != 2026 || got.Month != 8 || got.Period != "2026-08" {
		t.Errorf("unexpected period response: %+v", got)
	}
}

func TestBalancesMaterializeOnRead(t *testing.T) {
	ts := newTestServer(t)
	ts.createCategory(t, "Spesa", "400.00", 0)
	ts.createCategory(t, "Svago", "200.00", 1)

	resp, body := ts.do(t, http.MethodGet, "/api/balances", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	var got balancesResponse
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.Period != "2026-08" {
		t.Errorf("expected period 2026-08, got %s", got.Period)
	}
	if len(got.Balances) != 2 {
		t.Fatalf("expected 2 balances, got %d", len(got.Balances))
	}
	first := got.Balances[0]
	if first.CategoryName != "Spesa" || first.Spent != "0.00" || first.Remaining != "400.00" || first.OverBudget {
		t.Errorf("unexpected first balance: %+v", first)
	}
}

func TestRecordExpenseFlow(t *testing.T) {
	ts := newTestServer(t)
	spesa := ts.createCategory(t, "Spesa", "400.00", 0)

	resp, body := ts.do(t, http.MethodPost, "/api/expenses", expenseRequest{
		CategoryID: spesa, Amount: "450.00",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.StatusCode, body)
	}

	resp, body = ts.do(t, http.MethodGet, "/api/balances", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var got balancesResponse
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	b := got.Balances[0]
	if b.Spent != "450.00" || b.Remaining != "-50.00" || !b.OverBudget {
		t.Errorf("expected over-budget balance after expense, got %+v", b)
	}
}

func TestRecordExpenseValidation(t *testing.T) {
	ts := newTestServer(t)
	spesa := ts.createCategory(t, "Spesa", "400.00", 0)

	t.Run("bad amount", func(t *testing.T) {
		resp, _ := ts.do(t, http.MethodPost, "/api/expenses", expenseRequest{
			CategoryID: spesa, Amount: "-5.00",
		})
		if resp.StatusCode != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", resp.StatusCode)
		}
	})

	t.Run("unknown category", func(t *testing.T) {
		resp, _ := ts.do(t, http.MethodPost, "/api/expenses", expenseRequest{
			CategoryID: "ghost", Amount: "5.00",
		})
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", resp.StatusCode)
		}
	})

	t.Run("missing category id", func(t *testing.T) {
		resp, _ := ts.do(t, http.MethodPost, "/api/expenses", expenseRequest{Amount: "5.00"})
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", resp.StatusCode)
		}
	})
}

func TestBalanceCacheInvalidation(t *testing.T) {
	ts := newTestServer(t)
	spesa := ts.createCategory(t, "Spesa", "400.00", 0)

	// Prime the cache, then write and re-read. A stale cache would still
	// show zero spending.
	ts.do(t, http.MethodGet, "/api/balances", nil)
	ts.do(t, http.MethodPost, "/api/expenses", expenseRequest{CategoryID: spesa, Amount: "10.00"})

	_, body := ts.do(t, http.MethodGet, "/api/balances", nil)
	var got balancesResponse
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.Balances[0].Spent != "10.00" {
		t.Errorf("expected cache to be invalidated by the write, got spent=%s", got.Balances[0].Spent)
	}
}

func TestAllocationDefaults(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodGet, "/api/allocation", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	var got allocationDTO
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.FixedCosts.Type != "percentage" || got.FixedCosts.Value != 50 {
		t.Errorf("unexpected fixed costs default: %+v", got.FixedCosts)
	}
	if got.GuiltFree.Value != 20 || got.Savings.Value != 20 || got.Investment.Value != 10 {
		t.Errorf("unexpected default split: %+v", got)
	}
	if got.FixedCosts.Cap != nil {
		t.Errorf("expected no cap on defaults, got %v", *got.FixedCosts.Cap)
	}
}

func TestUpdateAllocation(t *testing.T) {
	ts := newTestServer(t)

	savingsCap := "500.00"
	update := allocationDTO{
		FixedCosts: ruleDTO{Type: "fixed", Value: 120000},
		Savings:    ruleDTO{Type: "percentage", Value: 30, Cap: &savingsCap},
		Investment: ruleDTO{Type: "percentage", Value: 15},
		GuiltFree:  ruleDTO{Type: "percentage", Value: 10},
	}
	resp, body := ts.do(t, http.MethodPut, "/api/allocation", update)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}

	resp, body = ts.do(t, http.MethodGet, "/api/allocation", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var got allocationDTO
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.FixedCosts.Type != "fixed" || got.FixedCosts.Value != 120000 {
		t.Errorf("expected custom rules to persist, got %+v", got.FixedCosts)
	}
	if got.Savings.Cap == nil || *got.Savings.Cap != "500.00" {
		t.Errorf("expected savings cap 500.00, got %v", got.Savings.Cap)
	}
}

func TestUpdateAllocationRejectsInvalidBucket(t *testing.T) {
	ts := newTestServer(t)

	update := allocationDTO{
		FixedCosts: ruleDTO{Type: "percentage", Value: 50},
		Savings:    ruleDTO{Type: "percentage", Value: 20},
		Investment: ruleDTO{Type: "percentage", Value: 10},
		GuiltFree:  ruleDTO{Type: "percentage", Value: 130},
	}
	resp, body := ts.do(t, http.MethodPut, "/api/allocation", update)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "guiltFreeSpending") {
		t.Errorf("expected the offending bucket to be named, got %s", body)
	}
}

func TestAllocationPreview(t *testing.T) {
	ts := newTestServer(t)

	t.Run("default split of 3000", func(t *testing.T) {
		resp, body := ts.do(t, http.MethodGet, "/api/allocation/preview?income=3000.00", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
		}
		var got previewResponse
		if err := json.Unmarshal(body, &got); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if got.FixedCosts != "1500.00" || got.Savings != "600.00" || got.Investment != "300.00" || got.GuiltFree != "600.00" {
			t.Errorf("unexpected split: %+v", got)
		}
	})

	t.Run("negative income flows through", func(t *testing.T) {
		resp, body := ts.do(t, http.MethodGet, "/api/allocation/preview?income=-1000.00", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
		}
		var got previewResponse
		if err := json.Unmarshal(body, &got); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if got.FixedCosts != "-500.00" {
			t.Errorf("expected negative bucket amount, got %s", got.FixedCosts)
		}
	})

	t.Run("missing income", func(t *testing.T) {
		resp, _ := ts.do(t, http.MethodGet, "/api/allocation/preview", nil)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", resp.StatusCode)
		}
	})
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("request to %s failed: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("expected 200 from %s, got %d", path, resp.StatusCode)
		}
	}
}

func TestMetricsEndpointExposed(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from /metrics, got %d", resp.StatusCode)
	}
	data, _ := io.ReadAll(resp.Body)
	if !bytes.Contains(data, []byte("bilancio_")) {
		t.Error("expected application metrics in scrape output")
	}
}
