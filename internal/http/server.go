package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"cassa/internal/auth"
	"cassa/internal/cache"
	"cassa/internal/core"
	"cassa/internal/middleware/ratelimit"
	"cassa/internal/middleware/security"
	"cassa/internal/middleware/trace"
	"cassa/internal/services"
	appweb "cassa/web"
)

// Options tunes server behavior that is configured per deployment.
type Options struct {
	// SessionTTL bounds how long an admin login stays valid.
	SessionTTL time.Duration
	// DefaultDueAmount prefils the add-member form.
	DefaultDueAmount core.Money
}

// Server wires the payment services to the HTMX dashboard.
type Server struct {
	http.Server

	templates *template.Template
	members   *services.MemberService
	ledger    *services.LedgerService
	gate      *auth.Gate
	opts      Options

	sessions *sessionStore
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	summaryCache *cache.LRUCache[core.PeriodSummary]
	trendCache   *cache.LRUCache[[]core.TrendPoint]
	cacheManager *cache.Manager

	startedAt time.Time
}

// NewServer configures routes, middleware, and templates, returning a
// ready-to-run server.
func NewServer(addr string, members *services.MemberService, ledger *services.LedgerService, gate *auth.Gate, opts Options) *Server {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 12 * time.Hour
	}
	if opts.DefaultDueAmount.Cents <= 0 {
		opts.DefaultDueAmount = core.Money{Cents: 25000}
	}

	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr: addr,
		},
		members:      members,
		ledger:       ledger,
		gate:         gate,
		opts:         opts,
		sessions:     newSessionStore(opts.SessionTTL),
		limiter:      ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		detector:     security.NewDetector(),
		summaryCache: cache.NewLRUCache[core.PeriodSummary](64, 2*time.Minute),
		trendCache:   cache.NewLRUCache[[]core.TrendPoint](4, 2*time.Minute),
		cacheManager: cache.NewManager(),
		startedAt:    time.Now(),
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP)

	s.cacheManager.Register(s.summaryCache)
	s.cacheManager.Register(s.trendCache)
	s.cacheManager.Register(s.sessions.tokens)
	s.cacheManager.StartCleanup(time.Minute)

	// Parse embedded templates at startup.
	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		slog.Warn("Failed parsing templates", "error", err)
	}
	s.templates = t

	// Static assets from the embedded FS, cacheable for an hour.
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		slog.Warn("Failed to mount embedded static FS", "error", err)
	}

	// Public surface.
	mux.HandleFunc("/", s.handleHome)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/ui/progress", s.handleProgressFragment)
	mux.Handle("/login", s.limitMutations(http.HandlerFunc(s.handleLogin)))
	mux.Handle("/logout", s.limitMutations(http.HandlerFunc(s.handleLogout)))

	// Admin surface, behind the session gate.
	mux.HandleFunc("/admin", s.requireAdmin(s.handleAdminDashboard))
	mux.HandleFunc("/ui/summary", s.requireAdmin(s.handleSummaryFragment))
	mux.HandleFunc("/ui/trend", s.requireAdmin(s.handleTrendFragment))
	mux.HandleFunc("/ui/recent", s.requireAdmin(s.handleRecentFragment))
	mux.HandleFunc("/ui/members", s.requireAdmin(s.handleMembersFragment))
	mux.HandleFunc("/ui/member-history", s.requireAdmin(s.handleMemberHistoryFragment))
	mux.Handle("/admin/members", s.limitMutations(s.requireAdmin(s.handleMembers)))
	mux.Handle("/admin/members/update", s.limitMutations(s.requireAdmin(s.handleMemberUpdate)))
	mux.Handle("/admin/members/delete", s.limitMutations(s.requireAdmin(s.handleMemberDelete)))
	mux.Handle("/admin/payments/status", s.limitMutations(s.requireAdmin(s.handlePaymentStatus)))
	mux.HandleFunc("/admin/logs", s.requireAdmin(s.handleLogsPage))
	mux.HandleFunc("/admin/logs/export", s.requireAdmin(s.handleLogsExport))
	mux.HandleFunc("/admin/settings", s.requireAdmin(s.handleSettingsPage))
	mux.HandleFunc("/admin/backup", s.requireAdmin(s.handleBackup))
	mux.Handle("/admin/clear", s.limitMutations(s.requireAdmin(s.handleClearAll)))

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	s.Handler = s.tracer.Middleware(headers.Middleware(s.observeProbes(mux)))

	return s
}

// Shutdown stops the background workers before draining connections.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cacheManager.Stop()
	s.limiter.Stop()
	return s.Server.Shutdown(ctx)
}

// observeProbes logs requests the detector flags. Detection never blocks;
// the log line is the product.
func (s *Server) observeProbes(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.detector.DetectSuspiciousRequest(r) {
			slog.WarnContext(r.Context(), "Suspicious request detected",
				"method", r.Method,
				"path", r.URL.Path,
				"client_ip", s.detector.ExtractClientIP(r),
				"user_agent", r.Header.Get("User-Agent"))
		}
		next.ServeHTTP(w, r)
	})
}

// limitMutations rate limits POST requests on the wrapped route. Reads
// pass through untouched.
func (s *Server) limitMutations(next http.Handler) http.Handler {
	limited := s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		slog.WarnContext(r.Context(), "Rate limit exceeded",
			"client_ip", s.detector.ExtractClientIP(r),
			"path", r.URL.Path)
		w.Header().Set("Retry-After", "60")
		ErrorResponse(http.StatusTooManyRequests, "Too many requests. Please slow down.").Write(w)
	})(next)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			limited.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAdmin redirects unauthenticated requests to the login page.
// HTMX fragment requests get an HX-Redirect instead of a 303 so the
// whole page navigates, not just the swapped fragment.
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.sessions.valid(sessionToken(r)) {
			if r.Header.Get("HX-Request") == "true" {
				w.Header().Set("HX-Redirect", "/login")
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next(w, r)
	}
}

// render executes a template, logging failures. By the time execution
// fails the status line is usually gone, so it does not try to recover.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	if s.templates == nil {
		slog.ErrorContext(r.Context(), "Templates not loaded", "template", name)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		slog.ErrorContext(r.Context(), "Template execution failed", "error", err, "template", name)
	}
}

// getSummary loads a period summary through the fragment cache.
func (s *Server) getSummary(ctx context.Context, p core.Period) (core.PeriodSummary, error) {
	key := p.Key()
	if data, found := s.summaryCache.Get(key); found {
		slog.DebugContext(ctx, "Summary cache hit", "period", key)
		return data, nil
	}

	// Small timeout so a stuck query cannot hang the fragment.
	cctx, cancel := context.WithTimeout(ctx, 7*time.Second)
	defer cancel()
	data, err := s.ledger.Summary(cctx, p)
	if err != nil {
		return core.PeriodSummary{}, fmt.Errorf("load summary %s: %w", key, err)
	}

	s.summaryCache.Set(key, data)
	return data, nil
}

// getTrend loads the collected-per-month series through the fragment cache.
func (s *Server) getTrend(ctx context.Context) ([]core.TrendPoint, error) {
	if points, found := s.trendCache.Get("trend"); found {
		slog.DebugContext(ctx, "Trend cache hit", "points", len(points))
		result := make([]core.TrendPoint, len(points))
		copy(result, points)
		return result, nil
	}

	cctx, cancel := context.WithTimeout(ctx, 7*time.Second)
	defer cancel()
	points, err := s.ledger.Trend(cctx)
	if err != nil {
		return nil, fmt.Errorf("load trend: %w", err)
	}

	s.trendCache.Set("trend", points)
	return points, nil
}

// invalidatePeriod drops the cached fragments a payment write staled.
func (s *Server) invalidatePeriod(p core.Period) {
	s.summaryCache.Delete(p.Key())
	s.trendCache.Purge()
}

// invalidateAll drops every cached fragment. Member writes touch rows in
// more than one period, so targeted invalidation is not worth the risk.
func (s *Server) invalidateAll() {
	s.summaryCache.Purge()
	s.trendCache.Purge()
}
