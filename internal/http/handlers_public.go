package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"cassa/internal/core"
)

// publicEntry is one member card on the public board.
type publicEntry struct {
	MemberID    int64
	Name        string
	Phone       string
	Paid        bool
	Amount      string
	LastUpdated string
}

// handleHome renders the public board: current-month progress plus one
// card per member. No authentication required.
func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if resp := RequireMethod(r, http.MethodGet, http.MethodHead); resp != nil {
		resp.Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 7*time.Second)
	defer cancel()

	summary, err := s.ledger.CurrentSummary(ctx)
	if err != nil {
		slog.ErrorContext(r.Context(), "Current summary error", "error", err)
		InternalServerError("Could not load the board").Write(w)
		return
	}

	entries, err := s.ledger.PeriodEntries(ctx, summary.Period)
	if err != nil {
		slog.ErrorContext(r.Context(), "Period entries error", "error", err, "period", summary.Period.Key())
		InternalServerError("Could not load the board").Write(w)
		return
	}

	// Phones live on the member row, not the ledger row.
	phones := make(map[int64]string)
	if roster, err := s.members.ListMembers(ctx); err != nil {
		slog.ErrorContext(r.Context(), "List members error", "error", err)
	} else {
		for _, m := range roster {
			phones[m.ID] = m.Phone
		}
	}

	data := struct {
		PeriodLabel string
		Progress    int
		PaidCount   int
		MemberCount int
		Collected   string
		Entries     []publicEntry
		LoggedIn    bool
	}{
		PeriodLabel: summary.Period.Label(),
		Progress:    summary.Progress(),
		PaidCount:   summary.PaidCount,
		MemberCount: summary.MemberCount,
		Collected:   formatEuros(summary.Collected.Cents),
		LoggedIn:    s.sessions.valid(sessionToken(r)),
	}
	for _, e := range entries {
		data.Entries = append(data.Entries, publicEntry{
			MemberID:    e.MemberID,
			Name:        e.MemberName,
			Phone:       phones[e.MemberID],
			Paid:        e.Status == core.StatusPaid,
			Amount:      formatEuros(e.Amount.Cents),
			LastUpdated: formatTimestamp(e.LastUpdated),
		})
	}

	s.render(w, r, "public.html", data)
}

// handleProgressFragment renders the progress card, polled by the public
// board so the bar moves without a reload.
func (s *Server) handleProgressFragment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 7*time.Second)
	defer cancel()

	summary, err := s.ledger.CurrentSummary(ctx)
	if err != nil {
		slog.ErrorContext(r.Context(), "Progress fragment error", "error", err)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<div class="placeholder">Progress unavailable</div>`))
		return
	}

	data := struct {
		PeriodLabel string
		Progress    int
		PaidCount   int
		MemberCount int
		Collected   string
	}{
		PeriodLabel: summary.Period.Label(),
		Progress:    summary.Progress(),
		PaidCount:   summary.PaidCount,
		MemberCount: summary.MemberCount,
		Collected:   formatEuros(summary.Collected.Cents),
	}

	s.render(w, r, "progress.html", data)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady reports readiness by touching the database.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if _, _, err := s.ledger.Counts(ctx); err != nil {
		slog.ErrorContext(r.Context(), "Readiness check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// handleMetrics exposes counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	memberCount, paymentCount, err := s.ledger.Counts(ctx)
	if err != nil {
		slog.ErrorContext(r.Context(), "Metrics counts error", "error", err)
	}

	reqs := s.tracer.GetMetrics()
	rl := s.limiter.GetMetrics()
	det := s.detector.GetMetrics()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	fmt.Fprintf(w, "# HELP cassa_http_requests_total Requests served since start.\n")
	fmt.Fprintf(w, "# TYPE cassa_http_requests_total counter\n")
	fmt.Fprintf(w, "cassa_http_requests_total %d\n", reqs.TotalRequests)
	fmt.Fprintf(w, "# HELP cassa_http_request_duration_avg_us Mean request duration in microseconds.\n")
	fmt.Fprintf(w, "# TYPE cassa_http_request_duration_avg_us gauge\n")
	fmt.Fprintf(w, "cassa_http_request_duration_avg_us %d\n", reqs.AverageResponseMicros)
	fmt.Fprintf(w, "# HELP cassa_ratelimit_rejections_total Requests rejected by the rate limiter.\n")
	fmt.Fprintf(w, "# TYPE cassa_ratelimit_rejections_total counter\n")
	fmt.Fprintf(w, "cassa_ratelimit_rejections_total %d\n", rl.Rejections)
	fmt.Fprintf(w, "# HELP cassa_ratelimit_active_clients Client IPs currently tracked.\n")
	fmt.Fprintf(w, "# TYPE cassa_ratelimit_active_clients gauge\n")
	fmt.Fprintf(w, "cassa_ratelimit_active_clients %d\n", rl.ClientCount)
	fmt.Fprintf(w, "# HELP cassa_suspicious_requests_total Requests flagged by the probe detector.\n")
	fmt.Fprintf(w, "# TYPE cassa_suspicious_requests_total counter\n")
	fmt.Fprintf(w, "cassa_suspicious_requests_total %d\n", det.SuspiciousRequests)
	fmt.Fprintf(w, "# HELP cassa_members_total Members on the roster.\n")
	fmt.Fprintf(w, "# TYPE cassa_members_total gauge\n")
	fmt.Fprintf(w, "cassa_members_total %d\n", memberCount)
	fmt.Fprintf(w, "# HELP cassa_payments_total Payment rows in the ledger.\n")
	fmt.Fprintf(w, "# TYPE cassa_payments_total gauge\n")
	fmt.Fprintf(w, "cassa_payments_total %d\n", paymentCount)
	fmt.Fprintf(w, "# HELP cassa_uptime_seconds Seconds since the server started.\n")
	fmt.Fprintf(w, "# TYPE cassa_uptime_seconds gauge\n")
	fmt.Fprintf(w, "cassa_uptime_seconds %d\n", int64(time.Since(s.startedAt).Seconds()))
}
