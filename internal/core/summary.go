package core

import "time"

// LedgerEntry is a payment record joined with its member's name, the
// canonical row every report and export is derived from.
type LedgerEntry struct {
	PaymentID   int64
	MemberID    int64
	MemberName  string
	Period      Period
	Status      PaymentStatus
	Amount      Money
	LastUpdated time.Time
}

// PeriodSummary is the compact per-period dashboard card.
type PeriodSummary struct {
	Period      Period
	MemberCount int
	PaidCount   int
	UnpaidCount int
	Collected   Money // sum of Paid amounts
}

// TrendPoint is one period's collected total, for the chronological series.
type TrendPoint struct {
	Period    Period
	Collected Money
}

// MemberHistoryEntry is one row of a member's payment history.
type MemberHistoryEntry struct {
	Period      Period
	Status      PaymentStatus
	Amount      Money
	LastUpdated time.Time
}

// Progress returns paid members as a 0-100 percentage for the public view.
func (s PeriodSummary) Progress() int {
	if s.MemberCount == 0 {
		return 0
	}
	return int((int64(s.PaidCount)*100 + int64(s.MemberCount)/2) / int64(s.MemberCount))
}
