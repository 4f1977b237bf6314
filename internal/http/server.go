// Package http serves the ledger as a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	applog "pockets/internal/log"
	"pockets/internal/middleware/ratelimit"
	"pockets/internal/middleware/security"
	"pockets/internal/middleware/trace"
	"pockets/internal/services"
)

// Options configure a Server. Zero values select defaults.
type Options struct {
	Currency string
	Logger   *applog.Logger
	// RequestTimeout bounds the storage work of one request.
	RequestTimeout time.Duration
	RateLimit      ratelimit.Config
	// TrustProxyRequestID keeps X-Request-ID values set by a proxy.
	TrustProxyRequestID bool
	Now                 func() time.Time
}

type Server struct {
	http.Server
	svc      *services.PocketService
	currency string
	logger   *applog.Logger
	timeout  time.Duration
	now      func() time.Time
	started  time.Time

	tracer   *trace.Middleware
	limiter  *ratelimit.Limiter
	detector *security.Detector

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, svc *services.PocketService, opts Options) *Server {
	s := &Server{
		svc:      svc,
		currency: opts.Currency,
		logger:   opts.Logger,
		timeout:  opts.RequestTimeout,
		now:      opts.Now,
		tracer:   trace.NewMiddleware(opts.TrustProxyRequestID),
		limiter:  ratelimit.NewLimiter(opts.RateLimit),
		detector: security.NewDetector(),
	}
	if s.logger == nil {
		s.logger = applog.Discard()
	}
	s.logger = s.logger.WithComponent(applog.ComponentHTTP)
	if s.timeout <= 0 {
		s.timeout = 10 * time.Second
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.started = s.now()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/pockets", s.handleListPockets)
	mux.HandleFunc("POST /api/pockets", s.handleCreatePocket)
	mux.HandleFunc("DELETE /api/pockets/{id}", s.handleDeletePocket)

	mux.HandleFunc("GET /api/goals", s.handleListGoals)
	mux.HandleFunc("POST /api/goals", s.handleCreateGoal)
	mux.HandleFunc("DELETE /api/goals/{id}", s.handleDeleteGoal)

	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("PATCH /api/transactions/{id}", s.handleUpdateTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleRemoveTransaction)
	mux.HandleFunc("POST /api/income", s.handleRecordIncome)
	mux.HandleFunc("POST /api/expenses", s.handleSpend)
	mux.HandleFunc("POST /api/transfers", s.handleTransfer)
	mux.HandleFunc("POST /api/allocations", s.handleAllocate)
	mux.HandleFunc("POST /api/withdrawals", s.handleWithdraw)

	mux.HandleFunc("GET /api/summary", s.handleSummary)

	var h http.Handler = mux
	h = s.limiter.Middleware(s.detector.ExtractClientIP, s.writeRateLimited)(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.detector.Middleware(h)
	h = applog.Middleware(s.logger, trace.GetRequestID)(h)
	h = s.tracer.Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Shutdown stops the rate limiter and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// requestContext bounds storage work to the configured timeout.
func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.timeout)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"uptime":    s.now().Sub(s.started).Round(time.Second).String(),
		"requests":  s.tracer.TotalRequests(),
	})
}

// handleReady reads the balances once so a broken backend reports not ready.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()

	checks := map[string]string{"ledger": "ok"}
	status, code := "ready", http.StatusOK
	if _, err := s.svc.Ledger().PocketBalances(ctx); err != nil {
		checks["ledger"] = "failed: " + err.Error()
		status, code = "not_ready", http.StatusServiceUnavailable
		s.logger.WarnContext(ctx, "Readiness check failed", applog.FieldError, err)
	}
	writeJSON(w, code, map[string]any{
		"status":              status,
		"checks":              checks,
		"rate_limited":        s.limiter.Hits(),
		"suspicious_requests": s.detector.SuspiciousRequests(),
	})
}
