package services

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"cassa/internal/clock"
	"cassa/internal/core"
)

// Member IDs are random five digit numbers, short enough to read out loud.
const (
	memberIDMin = 10000
	memberIDMax = 99999

	maxIDAttempts = 64
)

// MemberStore is the slice of storage the member service needs.
type MemberStore interface {
	CreateMemberWithPayment(ctx context.Context, m core.Member, p core.Period, now time.Time) (*core.PaymentRecord, bool, error)
	GetMember(ctx context.Context, id int64) (core.Member, error)
	ListMembers(ctx context.Context) ([]core.Member, error)
	UpdateMember(ctx context.Context, m core.Member, current core.Period, now time.Time) (*core.PaymentRecord, bool, error)
	DeleteMember(ctx context.Context, id int64) (bool, error)
}

// PaymentPublisher pushes payment change notifications to the mirror queue.
type PaymentPublisher interface {
	PublishPaymentUpsert(ctx context.Context, paymentID, version int64) error
}

// MemberService orchestrates member operations across SQLite and AMQP.
type MemberService struct {
	store     MemberStore
	rollover  *Rollover
	clock     clock.Clock
	publisher PaymentPublisher
}

func NewMemberService(store MemberStore, rollover *Rollover, clk clock.Clock, publisher PaymentPublisher) *MemberService {
	return &MemberService{
		store:     store,
		rollover:  rollover,
		clock:     clk,
		publisher: publisher,
	}
}

// CreateMember registers a member under a fresh random ID and opens their
// payment row for the current period in the same transaction. Colliding IDs
// are retried with a new draw; a full run of collisions means the ID space is
// effectively gone and the caller gets ErrIDSpaceExhausted.
func (s *MemberService) CreateMember(ctx context.Context, name, phone string, due core.Money) (core.Member, error) {
	m := core.Member{
		Name:  strings.TrimSpace(name),
		Phone: strings.TrimSpace(phone),
		Due:   due,
	}
	if err := m.Validate(); err != nil {
		return core.Member{}, err
	}

	now := s.clock.Now(ctx)
	current := core.PeriodOf(now)

	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		m.ID = memberIDMin + rand.Int64N(memberIDMax-memberIDMin+1)

		payment, created, err := s.store.CreateMemberWithPayment(ctx, m, current, now)
		if err != nil {
			return core.Member{}, fmt.Errorf("create member: %w", err)
		}
		if !created {
			slog.DebugContext(ctx, "Member ID collision, retrying",
				"member_id", m.ID,
				"attempt", attempt+1)
			continue
		}

		publishPaymentUpsert(ctx, s.publisher, payment)
		return m, nil
	}

	slog.ErrorContext(ctx, "Gave up drawing a member ID", "attempts", maxIDAttempts)
	return core.Member{}, core.ErrIDSpaceExhausted
}

func (s *MemberService) GetMember(ctx context.Context, id int64) (core.Member, error) {
	return s.store.GetMember(ctx, id)
}

func (s *MemberService) ListMembers(ctx context.Context) ([]core.Member, error) {
	return s.store.ListMembers(ctx)
}

// UpdateMember rewrites a member's details and keeps the current period's
// amount snapshot in step. Returns false when no member with that ID exists;
// that is a no-op, not an error.
func (s *MemberService) UpdateMember(ctx context.Context, id int64, name, phone string, due core.Money) (bool, error) {
	m := core.Member{
		ID:    id,
		Name:  strings.TrimSpace(name),
		Phone: strings.TrimSpace(phone),
		Due:   due,
	}
	if err := m.Validate(); err != nil {
		return false, err
	}

	// The current row must exist before its snapshot can be synced.
	current, err := s.rollover.EnsureCurrentFor(ctx, id)
	if err != nil {
		return false, err
	}

	payment, found, err := s.store.UpdateMember(ctx, m, current, s.clock.Now(ctx))
	if err != nil {
		return false, fmt.Errorf("update member: %w", err)
	}
	if !found {
		slog.InfoContext(ctx, "Update for unknown member ignored", "member_id", id)
		return false, nil
	}

	publishPaymentUpsert(ctx, s.publisher, payment)
	return true, nil
}

// DeleteMember removes a member and their whole payment history. Unknown IDs
// return false without an error.
func (s *MemberService) DeleteMember(ctx context.Context, id int64) (bool, error) {
	found, err := s.store.DeleteMember(ctx, id)
	if err != nil {
		return false, fmt.Errorf("delete member: %w", err)
	}
	if !found {
		slog.InfoContext(ctx, "Delete for unknown member ignored", "member_id", id)
	}
	return found, nil
}

func publishPaymentUpsert(ctx context.Context, publisher PaymentPublisher, payment *core.PaymentRecord) {
	if payment == nil {
		return
	}
	if publisher == nil {
		slog.DebugContext(ctx, "No mirror publisher configured, skipping payment event",
			"payment_id", payment.ID)
		return
	}
	if err := publisher.PublishPaymentUpsert(ctx, payment.ID, payment.Version); err != nil {
		// The local write already landed; the poll fallback picks the row up.
		slog.ErrorContext(ctx, "Failed to publish payment event",
			"payment_id", payment.ID,
			"version", payment.Version,
			"error", err)
	}
}
