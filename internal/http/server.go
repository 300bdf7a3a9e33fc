package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	applog "expensedash/internal/log"
	"expensedash/internal/middleware/ratelimit"
	"expensedash/internal/middleware/security"
	"expensedash/internal/middleware/trace"
	"expensedash/internal/services"
	appweb "expensedash/web"
)

// Options wires the server to the services it exposes.
type Options struct {
	Dashboard *services.DashboardService
	Expenses  *services.ExpenseService

	// Ready reports whether the data backend answers; nil means always ready.
	Ready func(context.Context) error

	// RateLimitPerMinute limits mutations per client IP; zero disables it.
	RateLimitPerMinute int

	Title  string
	Logger *applog.Logger
}

type Server struct {
	http.Server
	dashboard *services.DashboardService
	expenses  *services.ExpenseService
	ready     func(context.Context) error
	templates *template.Template
	title     string
	logger    *applog.Logger
	started   time.Time

	limiter  *ratelimit.Limiter
	tracer   *trace.Middleware
	detector *security.Detector

	shutdownOnce sync.Once
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run http.Server.
func NewServer(addr string, opts Options) (*Server, error) {
	if opts.Dashboard == nil || opts.Expenses == nil {
		return nil, errors.New("http: dashboard and expense services are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = applog.Discard()
	}
	if opts.Title == "" {
		opts.Title = "Expenses"
	}

	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	s := &Server{
		dashboard: opts.Dashboard,
		expenses:  opts.Expenses,
		ready:     opts.Ready,
		templates: t,
		title:     opts.Title,
		logger:    logger.WithComponent(applog.ComponentHTTP),
		started:   time.Now(),
		detector:  security.NewDetector(logger),
	}
	s.tracer = trace.NewMiddleware(logger, s.detector.ExtractClientIP)
	if opts.RateLimitPerMinute > 0 {
		s.limiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute})
	}

	mux := http.NewServeMux()
	if err := s.routes(mux); err != nil {
		return nil, err
	}

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.middleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

func (s *Server) routes(mux *http.ServeMux) error {
	sub, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		return fmt.Errorf("mount static assets: %w", err)
	}
	static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
	mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))

	// Pages and partials
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /ui/expenses", s.handleExpensesPartial)
	mux.HandleFunc("GET /ui/summary", s.handleSummaryPartial)

	// Expense API, same shapes as the remote backend
	mux.HandleFunc("GET /api/expenses", s.handleListExpenses)
	mux.HandleFunc("POST /api/expenses", s.handleCreateExpense)
	mux.HandleFunc("GET /api/expenses/dashboard", s.handleDashboard)
	mux.HandleFunc("PATCH /api/expenses/{id}", s.handleUpdateExpense)
	mux.HandleFunc("DELETE /api/expenses/{id}", s.handleDeleteExpense)
	mux.HandleFunc("GET /api/master-data", s.handleMasterData)

	// Computed views
	mux.HandleFunc("GET /api/view/expenses", s.handleExpenseView)
	mux.HandleFunc("GET /api/view/summary", s.handleSummaryView)
	mux.HandleFunc("GET /api/colors", s.handleColors)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	return nil
}

// middleware wraps h, outermost first: request logger, probe detection,
// tracing, security headers, then the mutation rate limit.
func (s *Server) middleware(h http.Handler) http.Handler {
	if s.limiter != nil {
		h = s.limiter.Middleware(s.detector.ExtractClientIP, s.onRateLimit,
			http.MethodPost, http.MethodPatch, http.MethodDelete)(h)
	}
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.tracer.Middleware(h)
	h = s.detector.Middleware(h)
	return applog.Middleware(s.logger)(h)
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.detector.ExtractClientIP(r),
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)

	w.Header().Set("Retry-After", "60")
	if isHTMX(r) {
		ErrorResponse(http.StatusTooManyRequests, "Too many requests, try again in a minute").Write(w)
		return
	}
	writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
}

// Shutdown stops the background goroutines and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.limiter != nil {
			s.limiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// render executes a named template into a buffer first so that a failing
// template never leaves a half-written response.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		logger := applog.FromContext(r.Context()).WithComponent(applog.ComponentTemplate)
		logger.ErrorContext(r.Context(), "Template execution failed",
			applog.FieldOperation, applog.OpRender,
			"template", name,
			applog.FieldError, err)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
