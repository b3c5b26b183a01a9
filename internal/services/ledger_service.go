package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cassa/internal/clock"
	"cassa/internal/core"
)

const defaultRecentLimit = 8

// LedgerStore is the slice of storage the ledger service needs.
type LedgerStore interface {
	GetPayment(ctx context.Context, memberID int64, p core.Period) (core.PaymentRecord, error)
	SetPaymentStatus(ctx context.Context, memberID int64, p core.Period, status core.PaymentStatus, now time.Time) (*core.PaymentRecord, error)
	ListEntries(ctx context.Context) ([]core.LedgerEntry, error)
	ListPeriodEntries(ctx context.Context, p core.Period) ([]core.LedgerEntry, error)
	RecentEntries(ctx context.Context, p core.Period, limit int) ([]core.LedgerEntry, error)
	MemberHistory(ctx context.Context, memberID int64) ([]core.MemberHistoryEntry, error)
	Periods(ctx context.Context) ([]core.Period, error)
	PeriodSummary(ctx context.Context, p core.Period) (core.PeriodSummary, error)
	Trend(ctx context.Context) ([]core.TrendPoint, error)
	Counts(ctx context.Context) (int64, int64, error)
	ClearAll(ctx context.Context) error
	Snapshot(ctx context.Context) ([]byte, error)
}

// LedgerService answers every question about payment rows and owns the
// status writes. Reads go through the rollover first so the current period
// is always materialized by the time it is reported.
type LedgerService struct {
	store     LedgerStore
	rollover  *Rollover
	clock     clock.Clock
	publisher PaymentPublisher
}

func NewLedgerService(store LedgerStore, rollover *Rollover, clk clock.Clock, publisher PaymentPublisher) *LedgerService {
	return &LedgerService{
		store:     store,
		rollover:  rollover,
		clock:     clk,
		publisher: publisher,
	}
}

// CurrentPeriod materializes and returns the period the clock reports.
func (s *LedgerService) CurrentPeriod(ctx context.Context) (core.Period, error) {
	return s.rollover.EnsureCurrent(ctx)
}

// Payment is the point lookup for one member's row in one period. Absent rows
// come back as core.ErrNotFound.
func (s *LedgerService) Payment(ctx context.Context, memberID int64, p core.Period) (core.PaymentRecord, error) {
	if err := p.Validate(); err != nil {
		return core.PaymentRecord{}, err
	}
	return s.store.GetPayment(ctx, memberID, p)
}

// SetStatus writes an explicit payment status. Returns false when no row
// matches the member and period; flipping a payment that does not exist is a
// no-op, not an error.
func (s *LedgerService) SetStatus(ctx context.Context, memberID int64, p core.Period, status core.PaymentStatus) (bool, error) {
	if err := status.Validate(); err != nil {
		return false, err
	}
	if err := p.Validate(); err != nil {
		return false, err
	}

	payment, err := s.store.SetPaymentStatus(ctx, memberID, p, status, s.clock.Now(ctx))
	if err != nil {
		return false, fmt.Errorf("set payment status: %w", err)
	}
	if payment == nil {
		slog.InfoContext(ctx, "Status write for unknown payment ignored",
			"member_id", memberID,
			"period", p.Key())
		return false, nil
	}

	publishPaymentUpsert(ctx, s.publisher, payment)
	return true, nil
}

// CurrentSummary reports the paid/unpaid breakdown of the current period.
func (s *LedgerService) CurrentSummary(ctx context.Context) (core.PeriodSummary, error) {
	current, err := s.rollover.EnsureCurrent(ctx)
	if err != nil {
		return core.PeriodSummary{}, err
	}
	summary, err := s.store.PeriodSummary(ctx, current)
	if err != nil {
		return core.PeriodSummary{}, fmt.Errorf("current summary: %w", err)
	}
	return summary, nil
}

// Summary reports the paid/unpaid breakdown of an arbitrary period.
func (s *LedgerService) Summary(ctx context.Context, p core.Period) (core.PeriodSummary, error) {
	if err := p.Validate(); err != nil {
		return core.PeriodSummary{}, err
	}
	if _, err := s.rollover.EnsureCurrent(ctx); err != nil {
		return core.PeriodSummary{}, err
	}
	summary, err := s.store.PeriodSummary(ctx, p)
	if err != nil {
		return core.PeriodSummary{}, fmt.Errorf("period summary: %w", err)
	}
	return summary, nil
}

// Trend reports collected totals per period, oldest first.
func (s *LedgerService) Trend(ctx context.Context) ([]core.TrendPoint, error) {
	if _, err := s.rollover.EnsureCurrent(ctx); err != nil {
		return nil, err
	}
	points, err := s.store.Trend(ctx)
	if err != nil {
		return nil, fmt.Errorf("trend: %w", err)
	}
	return points, nil
}

// Recent returns the latest-touched rows of the current period.
func (s *LedgerService) Recent(ctx context.Context, limit int) ([]core.LedgerEntry, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	current, err := s.rollover.EnsureCurrent(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := s.store.RecentEntries(ctx, current, limit)
	if err != nil {
		return nil, fmt.Errorf("recent entries: %w", err)
	}
	return entries, nil
}

// Entries returns the whole ledger joined with member names, newest period
// first. The feed behind whole-history reporting.
func (s *LedgerService) Entries(ctx context.Context) ([]core.LedgerEntry, error) {
	if _, err := s.rollover.EnsureCurrent(ctx); err != nil {
		return nil, err
	}
	entries, err := s.store.ListEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return entries, nil
}

// PeriodEntries returns every row of one period, ordered by member name.
func (s *LedgerService) PeriodEntries(ctx context.Context, p core.Period) ([]core.LedgerEntry, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.rollover.EnsureCurrent(ctx); err != nil {
		return nil, err
	}
	entries, err := s.store.ListPeriodEntries(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("period entries: %w", err)
	}
	return entries, nil
}

// Periods lists every period the ledger knows, newest first.
func (s *LedgerService) Periods(ctx context.Context) ([]core.Period, error) {
	if _, err := s.rollover.EnsureCurrent(ctx); err != nil {
		return nil, err
	}
	periods, err := s.store.Periods(ctx)
	if err != nil {
		return nil, fmt.Errorf("periods: %w", err)
	}
	return periods, nil
}

// MemberHistory returns a member's rows across all periods, newest first.
// The member's current row is materialized first so the history never lags
// the calendar.
func (s *LedgerService) MemberHistory(ctx context.Context, memberID int64) ([]core.MemberHistoryEntry, error) {
	if _, err := s.rollover.EnsureCurrentFor(ctx, memberID); err != nil {
		return nil, err
	}
	history, err := s.store.MemberHistory(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("member history: %w", err)
	}
	return history, nil
}

// Counts reports how many members and payment rows exist.
func (s *LedgerService) Counts(ctx context.Context) (int64, int64, error) {
	return s.store.Counts(ctx)
}

// ClearAll wipes every member and payment row.
func (s *LedgerService) ClearAll(ctx context.Context) error {
	return s.store.ClearAll(ctx)
}

// Snapshot returns the whole database as a downloadable file.
func (s *LedgerService) Snapshot(ctx context.Context) ([]byte, error) {
	return s.store.Snapshot(ctx)
}
