package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"sync"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
	"fintrack/internal/store"
	appweb "fintrack/web"
)

// TransactionService is the write and query surface the handlers use.
type TransactionService interface {
	Add(ctx context.Context, in core.TransactionInput) (core.Transaction, error)
	Update(ctx context.Context, id core.TxID, in core.TransactionInput) (core.Transaction, error)
	Delete(ctx context.Context, id core.TxID) error
	List(ctx context.Context, opts core.FilterOptions) ([]core.Transaction, error)
	Categories(ctx context.Context) ([]string, error)
}

// SummaryService computes the month overview shown by the dashboard.
type SummaryService interface {
	Overview(ctx context.Context, now time.Time) (core.MonthOverview, error)
}

// Config holds the server settings.
type Config struct {
	Addr               string
	CORSAllowedOrigins []string
	RateLimit          ratelimit.Config
	TrustedProxies     []string
	Logger             *log.Logger
}

// Server wraps http.Server with the fintrack routes and middleware.
type Server struct {
	http.Server
	logger       *log.Logger
	templates    *template.Template
	transactions TransactionService
	summaries    SummaryService
	pinger       store.Pinger

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	appMetrics       *appMetrics

	now          func() time.Time
	shutdownOnce sync.Once
}

// NewServer parses the embedded templates and builds the handler chain.
// pinger may be nil when the store has no remote connection.
func NewServer(cfg Config, txs TransactionService, summaries SummaryService, pinger store.Pinger) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	templates, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	detector := security.NewDetector(logger)
	for _, cidr := range cfg.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			return nil, fmt.Errorf("configure trusted proxies: %w", err)
		}
	}

	s := &Server{
		logger:           logger,
		templates:        templates,
		transactions:     txs,
		summaries:        summaries,
		pinger:           pinger,
		rateLimiter:      ratelimit.NewLimiter(cfg.RateLimit),
		securityDetector: detector,
		traceMiddleware:  trace.NewMiddleware(logger, detector.ExtractClientIP),
		appMetrics:       newAppMetrics(),
		now:              time.Now,
	}

	mux := http.NewServeMux()
	s.routes(mux)

	var handler http.Handler = mux
	handler = s.rateLimited(handler)
	handler = security.NewCORS(cfg.CORSAllowedOrigins).Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.traceMiddleware.Middleware(handler)
	handler = detector.Middleware(handler)

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/get-transactions", s.handleGetTransactions)
	mux.HandleFunc("GET /api/monthly-summary", s.handleMonthlySummary)
	mux.HandleFunc("POST /api/add-transaction", s.handleAddTransaction)
	mux.HandleFunc("PUT /api/update-transaction", s.handleUpdateTransaction)
	mux.HandleFunc("DELETE /api/delete-transaction", s.handleDeleteTransaction)
	mux.HandleFunc("GET /api/export", s.handleExport)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /ui/summary", s.handleSummaryPartial)
	mux.HandleFunc("GET /ui/transactions", s.handleTransactionsPartial)
	mux.HandleFunc("POST /ui/transactions", s.handleCreateTransactionForm)
	mux.HandleFunc("POST /ui/transactions/{id}/delete", s.handleDeleteTransactionForm)

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}
}

// rateLimited throttles the API and UI routes. Health probes and static
// assets are never limited.
func (s *Server) rateLimited(next http.Handler) http.Handler {
	limited := s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, s.onRateLimit)(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") || strings.HasPrefix(r.URL.Path, "/ui/") {
			limited.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		log.FieldPath, r.URL.Path)
	if isHTMX(r) {
		ErrorResponse(http.StatusTooManyRequests, "Too many requests, slow down").Write(w)
		return
	}
	writeAPIError(w, http.StatusTooManyRequests, "Too many requests", "rate limit exceeded")
}

// Shutdown stops background goroutines and drains connections.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
	})
	return s.Server.Shutdown(ctx)
}

func parseTemplates() (*template.Template, error) {
	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return t, nil
}

var templateFuncs = template.FuncMap{
	"money":    formatMoney,
	"txAmount": formatTxAmount,
	"percent":  formatPercent,
}
