package http

import (
	"log/slog"
	"net/http"
)

// handleAdminDashboard renders the admin shell. The summary, trend, and
// recent panels load themselves as fragments.
func (s *Server) handleAdminDashboard(w http.ResponseWriter, r *http.Request) {
	current, err := s.ledger.CurrentPeriod(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Current period error", "error", err)
		InternalServerError("Could not load the dashboard").Write(w)
		return
	}

	data := struct {
		PeriodLabel string
		Month       int
		Year        int
	}{
		PeriodLabel: current.Label(),
		Month:       current.Month,
		Year:        current.Year,
	}
	s.render(w, r, "admin.html", data)
}

// handleSummaryFragment renders the metric cards for one period.
// month/year query parameters select the period, defaulting to current.
func (s *Server) handleSummaryFragment(w http.ResponseWriter, r *http.Request) {
	current, err := s.ledger.CurrentPeriod(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Current period error", "error", err)
		InternalServerError("Could not load the summary").Write(w)
		return
	}
	p := ParsePeriodParams(r.URL.Query(), current)

	summary, err := s.getSummary(r.Context(), p)
	if err != nil {
		slog.ErrorContext(r.Context(), "Summary fragment error", "error", err, "period", p.Key())
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<div class="placeholder">Summary unavailable</div>`))
		return
	}

	data := struct {
		PeriodLabel string
		MemberCount int
		PaidCount   int
		UnpaidCount int
		Collected   string
		Progress    int
	}{
		PeriodLabel: summary.Period.Label(),
		MemberCount: summary.MemberCount,
		PaidCount:   summary.PaidCount,
		UnpaidCount: summary.UnpaidCount,
		Collected:   formatEuros(summary.Collected.Cents),
		Progress:    summary.Progress(),
	}
	s.render(w, r, "summary.html", data)
}

// handleTrendFragment renders collected-per-month bars, scaled against
// the best month so the chart fills its box.
func (s *Server) handleTrendFragment(w http.ResponseWriter, r *http.Request) {
	points, err := s.getTrend(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Trend fragment error", "error", err)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<div class="placeholder">Trend unavailable</div>`))
		return
	}

	var maxCents int64
	for _, pt := range points {
		if pt.Collected.Cents > maxCents {
			maxCents = pt.Collected.Cents
		}
	}

	type row struct {
		Label     string
		Collected string
		Width     int
	}
	data := struct{ Rows []row }{}
	for _, pt := range points {
		width := 0
		if maxCents > 0 && pt.Collected.Cents > 0 {
			width = int((pt.Collected.Cents*100 + maxCents/2) / maxCents) // rounded percent
			if width > 0 && width < 2 {                                   // keep tiny months visible
				width = 2
			}
			if width > 100 {
				width = 100
			}
		}
		data.Rows = append(data.Rows, row{
			Label:     shortPeriodLabel(pt.Period),
			Collected: formatEuros(pt.Collected.Cents),
			Width:     width,
		})
	}
	s.render(w, r, "trend.html", data)
}

// handleRecentFragment renders the latest ledger activity.
func (s *Server) handleRecentFragment(w http.ResponseWriter, r *http.Request) {
	entries, err := s.ledger.Recent(r.Context(), 8)
	if err != nil {
		slog.ErrorContext(r.Context(), "Recent fragment error", "error", err)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<div class="placeholder">Recent activity unavailable</div>`))
		return
	}

	type row struct {
		MemberID    int64
		Name        string
		Status      string
		Amount      string
		LastUpdated string
	}
	data := struct{ Rows []row }{}
	for _, e := range entries {
		data.Rows = append(data.Rows, row{
			MemberID:    e.MemberID,
			Name:        e.MemberName,
			Status:      string(e.Status),
			Amount:      formatEuros(e.Amount.Cents),
			LastUpdated: formatTimestamp(e.LastUpdated),
		})
	}
	s.render(w, r, "recent.html", data)
}
