package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	StatusUnpaid PaymentStatus = "Unpaid"
	StatusPaid   PaymentStatus = "Paid"
)

type (
	PaymentStatus string

	Period struct {
		Month int // 1-12
		Year  int
	}

	Money struct {
		Cents int64
	}

	Member struct {
		ID    int64
		Name  string
		Phone string // optional
		Due   Money  // expected contribution per month
	}

	PaymentRecord struct {
		ID          int64
		MemberID    int64
		Period      Period
		Status      PaymentStatus
		Amount      Money // due amount as billed for this period
		Version     int64
		LastUpdated time.Time
	}
)

var (
	ErrEmptyName        = errors.New("empty member name")
	ErrNameTooLong      = errors.New("member name too long (max 100 characters)")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidMonth     = errors.New("invalid month")
	ErrInvalidYear      = errors.New("invalid year")
	ErrInvalidStatus    = errors.New("invalid payment status")
	ErrNotFound         = errors.New("not found")
	ErrIDSpaceExhausted = errors.New("member id space exhausted")
)

// ParsePaymentStatus validates a raw status string.
func ParsePaymentStatus(s string) (PaymentStatus, error) {
	switch PaymentStatus(strings.TrimSpace(s)) {
	case StatusUnpaid:
		return StatusUnpaid, nil
	case StatusPaid:
		return StatusPaid, nil
	default:
		return "", ErrInvalidStatus
	}
}

func (s PaymentStatus) Validate() error {
	switch s {
	case StatusUnpaid, StatusPaid:
		return nil
	default:
		return ErrInvalidStatus
	}
}

// Toggled returns the opposite status.
func (s PaymentStatus) Toggled() PaymentStatus {
	if s == StatusPaid {
		return StatusUnpaid
	}
	return StatusPaid
}

// PeriodOf returns the calendar period containing t.
func PeriodOf(t time.Time) Period {
	return Period{Month: int(t.Month()), Year: t.Year()}
}

func (p Period) Validate() error {
	if p.Month < 1 || p.Month > 12 {
		return ErrInvalidMonth
	}
	if p.Year < 1 {
		return ErrInvalidYear
	}
	return nil
}

func (p Period) Equal(o Period) bool {
	return p.Year == o.Year && p.Month == o.Month
}

// Before reports whether p is calendar-earlier than o.
func (p Period) Before(o Period) bool {
	if p.Year != o.Year {
		return p.Year < o.Year
	}
	return p.Month < o.Month
}

func (p Period) After(o Period) bool {
	return o.Before(p)
}

// Key returns the canonical "MM-YYYY" form used for the rollover watermark.
func (p Period) Key() string {
	return fmt.Sprintf("%02d-%d", p.Month, p.Year)
}

// Label returns the human form used on the logs page, e.g. "January 2006".
func (p Period) Label() string {
	return time.Date(p.Year, time.Month(p.Month), 1, 0, 0, 0, 0, time.UTC).Format("January 2006")
}

// ParsePeriodKey parses the "MM-YYYY" watermark form.
func ParsePeriodKey(s string) (Period, error) {
	var month, year int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d-%d", &month, &year); err != nil {
		return Period{}, fmt.Errorf("parse period key %q: %w", s, err)
	}
	p := Period{Month: month, Year: year}
	if err := p.Validate(); err != nil {
		return Period{}, err
	}
	return p, nil
}

func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (m Member) Validate() error {
	name := strings.TrimSpace(m.Name)
	if name == "" {
		return ErrEmptyName
	}
	if len(name) > 100 {
		return ErrNameTooLong
	}
	if err := m.Due.Validate(); err != nil {
		return err
	}
	return nil
}

func (r PaymentRecord) Validate() error {
	if r.MemberID <= 0 {
		return errors.New("invalid member id")
	}
	if err := r.Period.Validate(); err != nil {
		return err
	}
	if err := r.Status.Validate(); err != nil {
		return err
	}
	if err := r.Amount.Validate(); err != nil {
		return err
	}
	return nil
}
