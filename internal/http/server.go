package http

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"ricorrenze/internal/cache"
	"ricorrenze/internal/core"
	"ricorrenze/internal/log"
	"ricorrenze/internal/middleware/ratelimit"
	"ricorrenze/internal/middleware/security"
	"ricorrenze/internal/middleware/trace"
	"ricorrenze/internal/services"
)

// rulesCacheKey is the single key under which the full rule listing is
// cached. Any write invalidates it.
const rulesCacheKey = "rules:all"

// TransactionReader lists the materialized transactions of a rule.
type TransactionReader interface {
	ListTransactionsByRule(ctx context.Context, ruleID int64) ([]core.Transaction, error)
}

// Server is the JSON API over the rule engine: rule CRUD, activation
// toggling, transaction history, and the external triggers for batch
// execution and reminder scans.
type Server struct {
	http.Server
	rules        *services.RuleService
	processor    *services.Processor
	scanner      *services.ReminderScanner
	transactions TransactionReader
	logger       *log.Logger

	limiter   *ratelimit.Limiter
	detector  *security.Detector
	traceMw   *trace.Middleware
	listCache *cache.LRUCache[[]core.Rule]
	cacheMgr  *cache.Manager
	startedAt time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, rules *services.RuleService, processor *services.Processor, scanner *services.ReminderScanner, transactions TransactionReader, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}

	s := &Server{
		rules:        rules,
		processor:    processor,
		scanner:      scanner,
		transactions: transactions,
		logger:       logger.WithComponent(log.ComponentHTTP),
		limiter:      ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		detector:     security.NewDetector(),
		listCache:    cache.NewLRUCache[[]core.Rule](8, 5*time.Minute),
		cacheMgr:     cache.NewManager(),
		startedAt:    time.Now(),
	}
	s.cacheMgr.Register(s.listCache)
	s.cacheMgr.StartCleanup(10 * time.Minute)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("POST /api/v1/rules", s.handleCreateRule)
	mux.HandleFunc("GET /api/v1/rules", s.handleListRules)
	mux.HandleFunc("GET /api/v1/rules/{id}", s.handleGetRule)
	mux.HandleFunc("PUT /api/v1/rules/{id}", s.handleUpdateRule)
	mux.HandleFunc("DELETE /api/v1/rules/{id}", s.handleDeleteRule)
	mux.HandleFunc("POST /api/v1/rules/{id}/activate", s.handleActivateRule)
	mux.HandleFunc("POST /api/v1/rules/{id}/deactivate", s.handleDeactivateRule)
	mux.HandleFunc("GET /api/v1/rules/{id}/transactions", s.handleRuleTransactions)

	mux.HandleFunc("POST /api/v1/process", s.handleProcess)
	mux.HandleFunc("POST /api/v1/reminders/scan", s.handleReminderScan)

	s.traceMw = trace.NewMiddleware(s.detector.ExtractClientIP)
	headersMw := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.traceMw.Middleware(headersMw.Middleware(s.withSecurity(s.withRateLimit(mux)))),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// withSecurity logs requests matching known probe patterns. They are
// served normally; the signal is for operators, not for blocking.
func (s *Server) withSecurity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.detector.DetectSuspiciousRequest(r) {
			s.logger.WarnContext(r.Context(), "suspicious request detected",
				log.FieldClientIP, s.detector.ExtractClientIP(r),
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path)
		}
		next.ServeHTTP(w, r)
	})
}

// withRateLimit applies the limiter to mutating requests only; reads
// are unthrottled.
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && !s.limiter.Allow(s.detector.ExtractClientIP(r)) {
			s.logger.WarnContext(r.Context(), "rate limit exceeded",
				log.FieldClientIP, s.detector.ExtractClientIP(r),
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Shutdown gracefully shuts down the server and its cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheMgr.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) invalidateRuleListing() {
	s.listCache.Delete(rulesCacheKey)
}

// handleMetrics exposes counters in Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	traceMetrics := s.traceMw.GetMetrics()
	rateLimitMetrics := s.limiter.GetMetrics()
	securityMetrics := s.detector.GetMetrics()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "# HELP http_requests_total Total number of HTTP requests\n")
	fmt.Fprintf(w, "# TYPE http_requests_total counter\n")
	fmt.Fprintf(w, "http_requests_total %d\n\n", traceMetrics.TotalRequests)

	fmt.Fprintf(w, "# HELP rate_limit_hits_total Total rate limit rejections\n")
	fmt.Fprintf(w, "# TYPE rate_limit_hits_total counter\n")
	fmt.Fprintf(w, "rate_limit_hits_total %d\n\n", rateLimitMetrics.TotalHits)

	fmt.Fprintf(w, "# HELP active_rate_limit_clients Currently tracked rate limit clients\n")
	fmt.Fprintf(w, "# TYPE active_rate_limit_clients gauge\n")
	fmt.Fprintf(w, "active_rate_limit_clients %d\n\n", s.limiter.ActiveClients())

	fmt.Fprintf(w, "# HELP suspicious_requests_total Total suspicious requests detected\n")
	fmt.Fprintf(w, "# TYPE suspicious_requests_total counter\n")
	fmt.Fprintf(w, "suspicious_requests_total %d\n\n", securityMetrics.SuspiciousRequests)

	fmt.Fprintf(w, "# HELP rule_cache_entries Current rule listing cache entries\n")
	fmt.Fprintf(w, "# TYPE rule_cache_entries gauge\n")
	fmt.Fprintf(w, "rule_cache_entries %d\n\n", s.listCache.Size())

	fmt.Fprintf(w, "# HELP uptime_seconds Application uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE uptime_seconds gauge\n")
	fmt.Fprintf(w, "uptime_seconds %.0f\n", time.Since(s.startedAt).Seconds())
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
