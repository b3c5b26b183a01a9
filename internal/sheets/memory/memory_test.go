package memory

import (
	"context"
	"testing"

	"cassa/internal/core"
)

func TestStoreUpsertReplaces(t *testing.T) {
	ctx := context.Background()
	s := New()

	first := core.LedgerEntry{PaymentID: 1, MemberID: 12345, MemberName: "Anna", Status: core.StatusUnpaid}
	if err := s.UpsertPayment(ctx, first); err != nil {
		t.Fatalf("UpsertPayment: %v", err)
	}

	second := first
	second.Status = core.StatusPaid
	if err := s.UpsertPayment(ctx, second); err != nil {
		t.Fatalf("UpsertPayment: %v", err)
	}

	if s.Len() != 1 {
		t.Fatalf("Len = %d, want 1", s.Len())
	}
	entries := s.Entries()
	if entries[0].Status != core.StatusPaid {
		t.Fatalf("status = %q, want Paid", entries[0].Status)
	}
}

func TestStoreRejectsInvalidID(t *testing.T) {
	s := New()
	if err := s.UpsertPayment(context.Background(), core.LedgerEntry{PaymentID: 0}); err == nil {
		t.Fatal("expected error for zero payment id")
	}
}

func TestStoreEntriesOrdered(t *testing.T) {
	ctx := context.Background()
	s := New()

	for _, id := range []int64{3, 1, 2} {
		if err := s.UpsertPayment(ctx, core.LedgerEntry{PaymentID: id}); err != nil {
			t.Fatalf("UpsertPayment(%d): %v", id, err)
		}
	}

	entries := s.Entries()
	for i, want := range []int64{1, 2, 3} {
		if entries[i].PaymentID != want {
			t.Fatalf("entries[%d].PaymentID = %d, want %d", i, entries[i].PaymentID, want)
		}
	}
}
