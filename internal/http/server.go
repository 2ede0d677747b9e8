// Package http exposes the budget engine over a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"bilancio/internal/auth"
	"bilancio/internal/budget"
	"bilancio/internal/cache"
	"bilancio/internal/core"
	"bilancio/internal/metrics"
	"bilancio/internal/middleware"
	"bilancio/internal/middleware/ratelimit"
	"bilancio/internal/middleware/security"
	"bilancio/internal/middleware/trace"
)

// CategoryStore is the persistence surface the category endpoints need.
type CategoryStore interface {
	CreateCategory(ctx context.Context, c *core.Category) error
	ListCategories(ctx context.Context, userID string) ([]core.Category, error)
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options bundles the collaborators the server wires together.
type Options struct {
	Addr              string
	Tracker           *budget.Tracker
	Allocations       *budget.AllocationService
	Categories        CategoryStore
	Ready             Pinger
	JWT               *auth.JWTManager
	RequestsPerMinute int
	BalanceCacheTTL   time.Duration
}

type Server struct {
	http.Server

	tracker     *budget.Tracker
	allocations *budget.AllocationService
	categories  CategoryStore
	ready       Pinger

	rateLimiter  *ratelimit.Limiter
	balanceCache *cache.LRUCache[[]core.EnrichedBalance]

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(opts Options) *Server {
	ttl := opts.BalanceCacheTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	s := &Server{
		tracker:      opts.Tracker,
		allocations:  opts.Allocations,
		categories:   opts.Categories,
		ready:        opts.Ready,
		rateLimiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RequestsPerMinute}),
		balanceCache: cache.NewLRUCache[[]core.EnrichedBalance](256, ttl),
	}

	api := http.NewServeMux()
	api.HandleFunc("GET /api/period", s.handleCurrentPeriod)
	api.HandleFunc("GET /api/balances", s.handleBalances)
	api.HandleFunc("POST /api/expenses", s.handleRecordExpense)
	api.HandleFunc("GET /api/categories", s.handleListCategories)
	api.HandleFunc("POST /api/categories", s.handleCreateCategory)
	api.HandleFunc("GET /api/allocation", s.handleGetAllocation)
	api.HandleFunc("PUT /api/allocation", s.handleUpdateAllocation)
	api.HandleFunc("GET /api/allocation/preview", s.handleAllocationPreview)

	mux := http.NewServeMux()
	mux.Handle("/api/", middleware.RequireAuth(opts.JWT, api))
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", metrics.Handler())

	detector := security.NewDetector()
	traced := trace.NewMiddleware(detector.ExtractClientIP)

	var handler http.Handler = mux
	handler = s.rateLimiter.Middleware(detector.ExtractClientIP)(handler)
	handler = traced.Middleware(handler)
	handler = security.Headers(security.DefaultHeadersConfig())(handler)

	s.Server = http.Server{
		Addr:    opts.Addr,
		Handler: handler,
	}
	return s
}

// Shutdown stops the listener and the limiter's cleanup goroutine.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) invalidateBalances(userID string) {
	s.balanceCache.DeletePrefix(userID + "|")
}
