package http

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"cassa/internal/core"
)

// handleMembers serves the roster page on GET and creates a member on
// POST. The table itself is a fragment that refreshes on member events.
func (s *Server) handleMembers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		data := struct {
			DefaultDue string
		}{
			DefaultDue: s.opts.DefaultDueAmount.Decimal(),
		}
		s.render(w, r, "members.html", data)

	case http.MethodPost:
		s.handleMemberCreate(w, r)

	default:
		MethodNotAllowedError("GET, POST").Write(w)
	}
}

func (s *Server) handleMemberCreate(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	name := sanitizeInput(r.Form.Get("name"))
	phone := sanitizeInput(r.Form.Get("phone"))
	due := s.opts.DefaultDueAmount
	if v := r.Form.Get("amount"); v != "" {
		cents, err := core.ParseDecimalToCents(v)
		if err != nil {
			UnprocessableEntityError("Invalid amount").Write(w)
			return
		}
		due = core.Money{Cents: cents}
	}

	member, err := s.members.CreateMember(r.Context(), name, phone, due)
	if err != nil {
		s.writeMemberError(w, r, err)
		return
	}

	s.invalidateAll()
	slog.InfoContext(r.Context(), "Member created via dashboard", "member_id", member.ID, "name", member.Name)
	NewHTMXResponse().
		TriggerMemberCreated(member.ID).
		TriggerFormReset().
		TriggerSuccessNotification("Member added").
		BodyHTML(`<div class="success">Added ` + template.HTMLEscapeString(member.Name) +
			` (#` + fmt.Sprint(member.ID) + `)</div>`).
		Write(w)
}

func (s *Server) handleMemberUpdate(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	id, err := ParseMemberID(r.Form.Get("id"))
	if err != nil {
		BadRequestError("Invalid member id").Write(w)
		return
	}
	name := sanitizeInput(r.Form.Get("name"))
	phone := sanitizeInput(r.Form.Get("phone"))
	cents, err := core.ParseDecimalToCents(r.Form.Get("amount"))
	if err != nil {
		UnprocessableEntityError("Invalid amount").Write(w)
		return
	}

	found, err := s.members.UpdateMember(r.Context(), id, name, phone, core.Money{Cents: cents})
	if err != nil {
		s.writeMemberError(w, r, err)
		return
	}
	if !found {
		NewHTMXResponse().
			TriggerWarningNotification("Member not found").
			BodyHTML(`<div class="warning">Member not found</div>`).
			Write(w)
		return
	}

	s.invalidateAll()
	slog.InfoContext(r.Context(), "Member updated via dashboard", "member_id", id)
	NewHTMXResponse().
		TriggerMemberUpdated(id).
		TriggerSuccessNotification("Changes saved").
		BodyHTML(`<div class="success">Saved</div>`).
		Write(w)
}

func (s *Server) handleMemberDelete(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	id, err := ParseMemberID(r.Form.Get("id"))
	if err != nil {
		BadRequestError("Invalid member id").Write(w)
		return
	}

	found, err := s.members.DeleteMember(r.Context(), id)
	if err != nil {
		slog.ErrorContext(r.Context(), "Member delete error", "error", err, "member_id", id)
		InternalServerError("Could not delete member").Write(w)
		return
	}
	if !found {
		NewHTMXResponse().
			TriggerWarningNotification("Member not found").
			BodyHTML(`<div class="warning">Member not found</div>`).
			Write(w)
		return
	}

	s.invalidateAll()
	slog.InfoContext(r.Context(), "Member deleted via dashboard", "member_id", id)
	NewHTMXResponse().
		TriggerMemberDeleted(id).
		TriggerSuccessNotification("Member deleted").
		BodyHTML(`<div class="success">Member deleted</div>`).
		Write(w)
}

// handlePaymentStatus flips one member's payment for a period.
func (s *Server) handlePaymentStatus(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	id, err := ParseMemberID(r.Form.Get("id"))
	if err != nil {
		BadRequestError("Invalid member id").Write(w)
		return
	}
	status, err := core.ParsePaymentStatus(r.Form.Get("status"))
	if err != nil {
		UnprocessableEntityError("Invalid payment status").Write(w)
		return
	}

	current, err := s.ledger.CurrentPeriod(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Current period error", "error", err)
		InternalServerError("Could not update payment").Write(w)
		return
	}
	p := ParsePeriodParams(r.Form, current)

	found, err := s.ledger.SetStatus(r.Context(), id, p, status)
	if err != nil {
		slog.ErrorContext(r.Context(), "Set status error", "error", err, "member_id", id, "period", p.Key())
		InternalServerError("Could not update payment").Write(w)
		return
	}
	if !found {
		NewHTMXResponse().
			TriggerWarningNotification("No payment row for that member and month").
			BodyHTML(`<div class="warning">No payment row for that member and month</div>`).
			Write(w)
		return
	}

	s.invalidatePeriod(p)
	slog.InfoContext(r.Context(), "Payment status updated via dashboard",
		"member_id", id, "period", p.Key(), "status", string(status))

	message := "Marked as Unpaid"
	if status == core.StatusPaid {
		message = "Marked as Paid"
	}
	NewHTMXResponse().
		TriggerPaymentUpdated(id, p).
		TriggerSuccessNotification(message).
		BodyHTML(`<div class="success">` + message + `</div>`).
		Write(w)
}

// handleMembersFragment renders the roster table with this month's
// status per member.
func (s *Server) handleMembersFragment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 7*time.Second)
	defer cancel()

	roster, err := s.members.ListMembers(ctx)
	if err != nil {
		slog.ErrorContext(r.Context(), "List members error", "error", err)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<div class="placeholder">Members unavailable</div>`))
		return
	}

	current, err := s.ledger.CurrentPeriod(ctx)
	if err != nil {
		slog.ErrorContext(r.Context(), "Current period error", "error", err)
		InternalServerError("Could not load members").Write(w)
		return
	}

	paid := make(map[int64]bool)
	if entries, err := s.ledger.PeriodEntries(ctx, current); err != nil {
		slog.ErrorContext(r.Context(), "Period entries error", "error", err, "period", current.Key())
	} else {
		for _, e := range entries {
			paid[e.MemberID] = e.Status == core.StatusPaid
		}
	}

	type row struct {
		ID    int64
		Name  string
		Phone string
		Due   string // decimal form for the edit input
		Paid  bool
		Next  string // status the toggle button submits
	}
	data := struct {
		Month int
		Year  int
		Rows  []row
	}{Month: current.Month, Year: current.Year}
	for _, m := range roster {
		status := core.StatusUnpaid
		if paid[m.ID] {
			status = core.StatusPaid
		}
		data.Rows = append(data.Rows, row{
			ID:    m.ID,
			Name:  m.Name,
			Phone: m.Phone,
			Due:   m.Due.Decimal(),
			Paid:  paid[m.ID],
			Next:  string(status.Toggled()),
		})
	}
	s.render(w, r, "members_table.html", data)
}

// handleMemberHistoryFragment renders one member's payment history.
func (s *Server) handleMemberHistoryFragment(w http.ResponseWriter, r *http.Request) {
	id, err := ParseMemberID(r.URL.Query().Get("id"))
	if err != nil {
		BadRequestError("Invalid member id").Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 7*time.Second)
	defer cancel()

	member, err := s.members.GetMember(ctx, id)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			NotFoundError("Member not found").Write(w)
			return
		}
		slog.ErrorContext(r.Context(), "Get member error", "error", err, "member_id", id)
		InternalServerError("Could not load history").Write(w)
		return
	}

	history, err := s.ledger.MemberHistory(ctx, id)
	if err != nil {
		slog.ErrorContext(r.Context(), "Member history error", "error", err, "member_id", id)
		InternalServerError("Could not load history").Write(w)
		return
	}

	type row struct {
		PeriodLabel string
		Status      string
		Amount      string
		LastUpdated string
	}
	data := struct {
		MemberID int64
		Name     string
		Rows     []row
	}{MemberID: member.ID, Name: member.Name}
	for _, h := range history {
		data.Rows = append(data.Rows, row{
			PeriodLabel: h.Period.Label(),
			Status:      string(h.Status),
			Amount:      formatEuros(h.Amount.Cents),
			LastUpdated: formatTimestamp(h.LastUpdated),
		})
	}
	s.render(w, r, "member_history.html", data)
}

// writeMemberError maps validation failures to 422 and everything else
// to 500.
func (s *Server) writeMemberError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrEmptyName):
		UnprocessableEntityError("Name required").Write(w)
	case errors.Is(err, core.ErrNameTooLong):
		UnprocessableEntityError("Name too long (max 100 characters)").Write(w)
	case errors.Is(err, core.ErrInvalidAmount):
		UnprocessableEntityError("Invalid amount").Write(w)
	case errors.Is(err, core.ErrIDSpaceExhausted):
		slog.ErrorContext(r.Context(), "Member ID space exhausted")
		InternalServerError("No free member IDs available").Write(w)
	default:
		slog.ErrorContext(r.Context(), "Member write error", "error", err)
		InternalServerError("Could not save member").Write(w)
	}
}
