package core

import (
	"errors"
	"testing"
	"time"
)

func TestPeriodValidate(t *testing.T) {
	cases := []struct {
		p  Period
		ok bool
	}{
		{Period{Month: 1, Year: 2025}, true},
		{Period{Month: 12, Year: 2025}, true},
		{Period{Month: 0, Year: 2025}, false},
		{Period{Month: 13, Year: 2025}, false},
		{Period{Month: 6, Year: 0}, false},
	}
	for i, tc := range cases {
		err := tc.p.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestPeriodOrdering(t *testing.T) {
	jan := Period{Month: 1, Year: 2025}
	feb := Period{Month: 2, Year: 2025}
	dec24 := Period{Month: 12, Year: 2024}

	if !jan.Before(feb) {
		t.Fatalf("expected %v before %v", jan, feb)
	}
	if !dec24.Before(jan) {
		t.Fatalf("expected %v before %v", dec24, jan)
	}
	if !feb.After(jan) {
		t.Fatalf("expected %v after %v", feb, jan)
	}
	if jan.Before(jan) || jan.After(jan) {
		t.Fatalf("period should not order before/after itself")
	}
	if !jan.Equal(Period{Month: 1, Year: 2025}) {
		t.Fatalf("expected equal periods")
	}
}

func TestPeriodKeyRoundTrip(t *testing.T) {
	cases := []Period{
		{Month: 1, Year: 2025},
		{Month: 9, Year: 2024},
		{Month: 12, Year: 1999},
	}
	for i, p := range cases {
		got, err := ParsePeriodKey(p.Key())
		if err != nil {
			t.Fatalf("case %d parse %q: %v", i, p.Key(), err)
		}
		if !got.Equal(p) {
			t.Fatalf("case %d round trip %q = %v, want %v", i, p.Key(), got, p)
		}
	}
	if got := (Period{Month: 8, Year: 2025}).Key(); got != "08-2025" {
		t.Fatalf("expected zero-padded month in key, got %q", got)
	}
	for _, bad := range []string{"", "x", "13-2025", "00-2025", "1-"} {
		if _, err := ParsePeriodKey(bad); err == nil {
			t.Fatalf("%q expected error", bad)
		}
	}
}

func TestPeriodOf(t *testing.T) {
	got := PeriodOf(time.Date(2025, time.March, 31, 23, 59, 0, 0, time.UTC))
	if !got.Equal(Period{Month: 3, Year: 2025}) {
		t.Fatalf("PeriodOf = %v, want 3-2025", got)
	}
}

func TestPeriodLabel(t *testing.T) {
	if got := (Period{Month: 1, Year: 2025}).Label(); got != "January 2025" {
		t.Fatalf("Label() = %q, want %q", got, "January 2025")
	}
}

func TestPaymentStatus(t *testing.T) {
	if _, err := ParsePaymentStatus("Paid"); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if _, err := ParsePaymentStatus(" Unpaid "); err != nil {
		t.Fatalf("expected ok for padded input, got %v", err)
	}
	if _, err := ParsePaymentStatus("paid"); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
	if got := StatusPaid.Toggled(); got != StatusUnpaid {
		t.Fatalf("Toggled() = %v, want %v", got, StatusUnpaid)
	}
	if got := StatusUnpaid.Toggled(); got != StatusPaid {
		t.Fatalf("Toggled() = %v, want %v", got, StatusPaid)
	}
}

func TestMemberValidate(t *testing.T) {
	good := Member{ID: 10001, Name: "Anna", Phone: "", Due: Money{Cents: 25000}}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	// zero due is allowed
	if err := (Member{Name: "Anna", Due: Money{Cents: 0}}).Validate(); err != nil {
		t.Fatalf("zero due should validate, got %v", err)
	}

	bads := []Member{
		{Name: "", Due: Money{Cents: 100}},
		{Name: "   ", Due: Money{Cents: 100}},
		{Name: "Anna", Due: Money{Cents: -1}},
	}
	for i, m := range bads {
		if err := m.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestPaymentRecordValidate(t *testing.T) {
	good := PaymentRecord{
		MemberID: 10001,
		Period:   Period{Month: 8, Year: 2025},
		Status:   StatusUnpaid,
		Amount:   Money{Cents: 25000},
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []PaymentRecord{
		{MemberID: 0, Period: good.Period, Status: StatusUnpaid, Amount: good.Amount},
		{MemberID: 1, Period: Period{Month: 0, Year: 2025}, Status: StatusUnpaid, Amount: good.Amount},
		{MemberID: 1, Period: good.Period, Status: "Maybe", Amount: good.Amount},
		{MemberID: 1, Period: good.Period, Status: StatusUnpaid, Amount: Money{Cents: -5}},
	}
	for i, r := range bads {
		if err := r.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestPeriodSummaryProgress(t *testing.T) {
	cases := []struct {
		members, paid int
		want          int
	}{
		{0, 0, 0},
		{4, 2, 50},
		{3, 1, 33},
		{3, 2, 67}, // rounded
		{5, 5, 100},
	}
	for i, tc := range cases {
		s := PeriodSummary{MemberCount: tc.members, PaidCount: tc.paid}
		if got := s.Progress(); got != tc.want {
			t.Fatalf("case %d Progress() = %d, want %d", i, got, tc.want)
		}
	}
}
