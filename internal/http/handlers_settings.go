package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// handleSettingsPage renders maintenance: record counts, the backup
// download, and the danger zone.
func (s *Server) handleSettingsPage(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 7*time.Second)
	defer cancel()

	memberCount, paymentCount, err := s.ledger.Counts(ctx)
	if err != nil {
		slog.ErrorContext(r.Context(), "Counts error", "error", err)
		InternalServerError("Could not load settings").Write(w)
		return
	}

	data := struct {
		MemberCount  int64
		PaymentCount int64
	}{
		MemberCount:  memberCount,
		PaymentCount: paymentCount,
	}
	s.render(w, r, "settings.html", data)
}

// handleBackup streams a consistent snapshot of the database file.
func (s *Server) handleBackup(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	snapshot, err := s.ledger.Snapshot(ctx)
	if err != nil {
		slog.ErrorContext(r.Context(), "Backup snapshot error", "error", err)
		InternalServerError("Could not create backup").Write(w)
		return
	}

	filename := fmt.Sprintf("cassa-%s.db", time.Now().Format("20060102"))
	slog.InfoContext(r.Context(), "Backup served", "bytes", len(snapshot), "filename", filename)
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(snapshot)
}

// handleClearAll wipes every member and payment row. The frontend asks
// for confirmation; this handler assumes the caller meant it.
func (s *Server) handleClearAll(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}

	if err := s.ledger.ClearAll(r.Context()); err != nil {
		slog.ErrorContext(r.Context(), "Clear all error", "error", err)
		InternalServerError("Could not delete records").Write(w)
		return
	}

	s.invalidateAll()
	slog.WarnContext(r.Context(), "All records deleted",
		"client_ip", s.detector.ExtractClientIP(r))
	NewHTMXResponse().
		TriggerWarningNotification("All records deleted").
		Header("HX-Refresh", "true").
		BodyHTML(`<div class="warning">All records deleted</div>`).
		Write(w)
}
