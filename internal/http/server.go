// Package http serves the library over a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"biblioteca/internal/log"
	"biblioteca/internal/metrics"
	"biblioteca/internal/middleware/ratelimit"
	"biblioteca/internal/middleware/security"
	"biblioteca/internal/middleware/trace"
	"biblioteca/internal/reports"
	"biblioteca/internal/services"
)

// Options tunes the server; zero values fall back to sensible defaults.
type Options struct {
	Logger             *log.Logger
	Metrics            *metrics.Metrics
	RateLimitPerMinute int
	DefaultTopN        int
}

type Server struct {
	http.Server
	library *services.LibraryService
	reports *reports.Aggregator
	logger  *log.Logger
	metrics *metrics.Metrics
	limiter *ratelimit.Limiter
	topN    int

	ready        atomic.Bool
	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run http.Server.
// Readiness stays false until SetReady is called.
func NewServer(addr string, library *services.LibraryService, agg *reports.Aggregator, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	topN := opts.DefaultTopN
	if topN <= 0 {
		topN = reports.DefaultTopN
	}

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		library: library,
		reports: agg,
		logger:  logger.WithComponent(log.ComponentHTTP),
		metrics: opts.Metrics,
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.RateLimitPerMinute,
			Methods:           ratelimit.MutatingMethods(),
		}),
		topN: topN,
	}

	mux := http.NewServeMux()
	s.routes(mux)

	detector := security.NewDetector()
	var h http.Handler = mux
	h = s.limiter.Middleware(detector.ExtractClientIP, s.handleRateLimited)(h)
	h = detector.Middleware(h)
	h = security.NewHeadersMiddleware(security.APIHeadersConfig()).Middleware(h)
	h = trace.NewMiddleware(detector.ExtractClientIP, s.logger, s.metrics).Middleware(h)
	s.Handler = h

	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", s.metrics.Handler())

	mux.HandleFunc("GET /books", s.handleListBooks)
	mux.HandleFunc("POST /books", s.handleCreateBook)
	mux.HandleFunc("GET /books/{id}", s.handleGetBook)
	mux.HandleFunc("PUT /books/{id}", s.handleUpdateBook)
	mux.HandleFunc("DELETE /books/{id}", s.handleDeleteBook)

	mux.HandleFunc("GET /users", s.handleListUsers)
	mux.HandleFunc("POST /users", s.handleCreateUser)
	mux.HandleFunc("GET /users/{id}", s.handleGetUser)
	mux.HandleFunc("PUT /users/{id}", s.handleUpdateUser)
	mux.HandleFunc("DELETE /users/{id}", s.handleDeleteUser)

	mux.HandleFunc("GET /loans", s.handleListLoans)
	mux.HandleFunc("POST /loans", s.handleCreateLoan)
	mux.HandleFunc("GET /loans/{id}", s.handleGetLoan)
	mux.HandleFunc("POST /loans/{id}/return", s.handleReturnLoan)

	mux.HandleFunc("GET /reports/years", s.handleReportYears)
	mux.HandleFunc("GET /reports/categories", s.handleReportCategories)
	mux.HandleFunc("GET /reports/{year}", s.handleYearReport)
	mux.HandleFunc("GET /reports/{year}/books", s.handleTopBooks)
	mux.HandleFunc("GET /reports/{year}/users", s.handleTopUsers)
	mux.HandleFunc("GET /reports/{year}/matrix", s.handleMatrix)
}

// SetReady flips /readyz; call it once the library state is loaded.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

// Shutdown stops the rate limiter and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.SetReady(false)
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.ready.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("loading"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded")
	writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded, try again later"})
}
