package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"bilancio/internal/core"
	"bilancio/internal/middleware"
)

type (
	periodResponse struct {
		Year   int    `json:"year"`
		Month  int    `json:"month"`
		Period string `json:"period"`
	}

	balanceResponse struct {
		CategoryID   string `json:"categoryId"`
		CategoryName string `json:"categoryName"`
		Limit        string `json:"limit"`
		Spent        string `json:"spent"`
		Remaining    string `json:"remaining"`
		OverBudget   bool   `json:"overBudget"`
	}

	balancesResponse struct {
		Period   string            `json:"period"`
		Balances []balanceResponse `json:"balances"`
	}

	expenseRequest struct {
		CategoryID string `json:"categoryId"`
		Amount     string `json:"amount"`
	}

	categoryRequest struct {
		Name         string `json:"name"`
		Limit        string `json:"limit"`
		DisplayOrder int    `json:"displayOrder"`
	}

	categoryResponse struct {
		ID           string `json:"id"`
		Name         string `json:"name"`
		Limit        string `json:"limit"`
		DisplayOrder int    `json:"displayOrder"`
	}

	ruleDTO struct {
		Type  string  `json:"type"`
		Value float64 `json:"value"`
		Cap   *string `json:"cap"`
	}

	allocationDTO struct {
		FixedCosts ruleDTO `json:"fixedCosts"`
		Savings    ruleDTO `json:"savings"`
		Investment ruleDTO `json:"investment"`
		GuiltFree  ruleDTO `json:"guiltFreeSpending"`
	}

	previewResponse struct {
		Income     string `json:"income"`
		FixedCosts string `json:"fixedCosts"`
		Savings    string `json:"savings"`
		Investment string `json:"investment"`
		GuiltFree  string `json:"guiltFreeSpending"`
	}

	errorResponse struct {
		Error string `json:"error"`
	}
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeDomainError maps sentinel errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrCategoryMissing):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrEmptyName),
		errors.Is(err, core.ErrEmptyUser),
		errors.Is(err, core.ErrUnknownRuleType),
		errors.Is(err, core.ErrNegativeValue),
		errors.Is(err, core.ErrPercentRange),
		errors.Is(err, core.ErrNegativeCap):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		slog.Error("Request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) handleCurrentPeriod(w http.ResponseWriter, r *http.Request) {
	p := s.tracker.CurrentPeriod()
	writeJSON(w, http.StatusOK, periodResponse{Year: p.Year, Month: p.Month, Period: p.String()})
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	period := s.tracker.CurrentPeriod()
	cacheKey := userID + "|" + period.String()

	if cached, ok := s.balanceCache.Get(cacheKey); ok {
		writeJSON(w, http.StatusOK, toBalancesResponse(period.String(), cached))
		return
	}

	if err := s.tracker.EnsureBalances(ctx, userID); err != nil {
		writeDomainError(w, err)
		return
	}
	balances, err := s.tracker.CurrentBalances(ctx, userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.balanceCache.Set(cacheKey, balances)
	writeJSON(w, http.StatusOK, toBalancesResponse(period.String(), balances))
}

func toBalancesResponse(period string, balances []core.EnrichedBalance) balancesResponse {
	out := balancesResponse{Period: period, Balances: make([]balanceResponse, 0, len(balances))}
	for _, b := range balances {
		out.Balances = append(out.Balances, balanceResponse{
			CategoryID:   b.CategoryID,
			CategoryName: b.CategoryName,
			Limit:        b.Limit.String(),
			Spent:        b.Spent.String(),
			Remaining:    b.Remaining.String(),
			OverBudget:   b.OverBudget,
		})
	}
	return out
}

func (s *Server) handleRecordExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req expenseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.CategoryID) == "" {
		writeError(w, http.StatusBadRequest, "categoryId is required")
		return
	}
	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if err := s.tracker.RecordExpense(ctx, userID, req.CategoryID, core.Money{Cents: cents}); err != nil {
		writeDomainError(w, err)
		return
	}
	s.invalidateBalances(userID)

	writeJSON(w, http.StatusCreated, map[string]string{
		"categoryId": req.CategoryID,
		"amount":     core.Money{Cents: cents}.String(),
		"period":     s.tracker.CurrentPeriod().String(),
	})
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cats, err := s.categories.ListCategories(ctx, middleware.GetUserID(ctx))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := make([]categoryResponse, 0, len(cats))
	for _, c := range cats {
		out = append(out, toCategoryResponse(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req categoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	cents, err := core.ParseDecimalToCents(req.Limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	c := core.Category{
		UserID:       userID,
		Name:         strings.TrimSpace(req.Name),
		Limit:        core.Money{Cents: cents},
		DisplayOrder: req.DisplayOrder,
	}
	if err := s.categories.CreateCategory(ctx, &c); err != nil {
		writeDomainError(w, err)
		return
	}
	s.invalidateBalances(userID)

	writeJSON(w, http.StatusCreated, toCategoryResponse(c))
}

func toCategoryResponse(c core.Category) categoryResponse {
	return categoryResponse{
		ID:           c.ID,
		Name:         c.Name,
		Limit:        c.Limit.String(),
		DisplayOrder: c.DisplayOrder,
	}
}

func (s *Server) handleGetAllocation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	a, err := s.allocations.GetAllocation(ctx, middleware.GetUserID(ctx))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAllocationDTO(a))
}

func (s *Server) handleUpdateAllocation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req allocationDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	a, err := fromAllocationDTO(userID, req)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	updated, err := s.allocations.UpdateAllocation(ctx, a)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAllocationDTO(updated))
}

func (s *Server) handleAllocationPreview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	incomeParam := strings.TrimSpace(r.URL.Query().Get("income"))
	if incomeParam == "" {
		writeError(w, http.StatusBadRequest, "income query parameter is required")
		return
	}
	cents, err := core.ParseSignedDecimalToCents(incomeParam)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	income := core.Money{Cents: cents}

	computed, err := s.allocations.Preview(ctx, middleware.GetUserID(ctx), income)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, previewResponse{
		Income:     income.String(),
		FixedCosts: computed.FixedCosts.String(),
		Savings:    computed.Savings.String(),
		Investment: computed.Investment.String(),
		GuiltFree:  computed.GuiltFree.String(),
	})
}

func toAllocationDTO(a core.Allocation) allocationDTO {
	return allocationDTO{
		FixedCosts: toRuleDTO(a.FixedCosts),
		Savings:    toRuleDTO(a.Savings),
		Investment: toRuleDTO(a.Investment),
		GuiltFree:  toRuleDTO(a.GuiltFree),
	}
}

func toRuleDTO(r core.Rule) ruleDTO {
	dto := ruleDTO{Type: string(r.Type), Value: r.Value}
	if r.Cap != nil {
		s := r.Cap.String()
		dto.Cap = &s
	}
	return dto
}

func fromAllocationDTO(userID string, dto allocationDTO) (core.Allocation, error) {
	a := core.Allocation{UserID: userID}
	for i, pair := range []struct {
		src ruleDTO
		dst *core.Rule
	}{
		{dto.FixedCosts, &a.FixedCosts},
		{dto.Savings, &a.Savings},
		{dto.Investment, &a.Investment},
		{dto.GuiltFree, &a.GuiltFree},
	} {
		rule, err := fromRuleDTO(pair.src)
		if err != nil {
			return core.Allocation{}, fmt.Errorf("%s: %w", core.BucketNames[i], err)
		}
		*pair.dst = rule
	}
	return a, nil
}

func fromRuleDTO(dto ruleDTO) (core.Rule, error) {
	r := core.Rule{Type: core.RuleType(dto.Type), Value: dto.Value}
	if dto.Cap != nil {
		cents, err := core.ParseDecimalToCents(*dto.Cap)
		if err != nil {
			return core.Rule{}, err
		}
		r.Cap = &core.Money{Cents: cents}
	}
	return r, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "storage unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
