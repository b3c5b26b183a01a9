package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"cassa/internal/services"
)

// handleLogsPage renders the per-month ledger: a period selector, the
// month's summary card, the full table, and the CSV download link.
func (s *Server) handleLogsPage(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 7*time.Second)
	defer cancel()

	current, err := s.ledger.CurrentPeriod(ctx)
	if err != nil {
		slog.ErrorContext(r.Context(), "Current period error", "error", err)
		InternalServerError("Could not load logs").Write(w)
		return
	}
	p := ParsePeriodParams(r.URL.Query(), current)

	periods, err := s.ledger.Periods(ctx)
	if err != nil {
		slog.ErrorContext(r.Context(), "Periods list error", "error", err)
		InternalServerError("Could not load logs").Write(w)
		return
	}

	summary, err := s.getSummary(ctx, p)
	if err != nil {
		slog.ErrorContext(r.Context(), "Logs summary error", "error", err, "period", p.Key())
		InternalServerError("Could not load logs").Write(w)
		return
	}

	entries, err := s.ledger.PeriodEntries(ctx, p)
	if err != nil {
		slog.ErrorContext(r.Context(), "Logs entries error", "error", err, "period", p.Key())
		InternalServerError("Could not load logs").Write(w)
		return
	}

	type periodOption struct {
		Label    string
		Key      string
		Selected bool
	}
	type row struct {
		MemberID    int64
		Name        string
		Status      string
		Amount      string
		LastUpdated string
	}
	data := struct {
		PeriodLabel string
		Month       int
		Year        int
		MemberCount int
		PaidCount   int
		UnpaidCount int
		Collected   string
		Periods     []periodOption
		Rows        []row
	}{
		PeriodLabel: p.Label(),
		Month:       p.Month,
		Year:        p.Year,
		MemberCount: summary.MemberCount,
		PaidCount:   summary.PaidCount,
		UnpaidCount: summary.UnpaidCount,
		Collected:   formatEuros(summary.Collected.Cents),
	}
	for _, candidate := range periods {
		data.Periods = append(data.Periods, periodOption{
			Label:    candidate.Label(),
			Key:      candidate.Key(),
			Selected: candidate.Equal(p),
		})
	}
	for _, e := range entries {
		data.Rows = append(data.Rows, row{
			MemberID:    e.MemberID,
			Name:        e.MemberName,
			Status:      string(e.Status),
			Amount:      formatEuros(e.Amount.Cents),
			LastUpdated: formatTimestamp(e.LastUpdated),
		})
	}

	s.render(w, r, "logs.html", data)
}

// handleLogsExport streams one period's rows as a CSV download.
func (s *Server) handleLogsExport(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 7*time.Second)
	defer cancel()

	current, err := s.ledger.CurrentPeriod(ctx)
	if err != nil {
		slog.ErrorContext(r.Context(), "Current period error", "error", err)
		InternalServerError("Could not export").Write(w)
		return
	}
	p := ParsePeriodParams(r.URL.Query(), current)

	csvBytes, err := s.ledger.ExportPeriodCSV(ctx, p)
	if err != nil {
		slog.ErrorContext(r.Context(), "CSV export error", "error", err, "period", p.Key())
		InternalServerError("Could not export").Write(w)
		return
	}

	slog.InfoContext(r.Context(), "CSV export served", "period", p.Key(), "bytes", len(csvBytes))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+services.ExportFilename(p)+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(csvBytes)
}
