package http

import (
	"testing"
	"time"

	"cassa/internal/core"
)

func TestFormatEuros(t *testing.T) {
	tests := []struct {
		cents int64
		want  string
	}{
		{cents: 0, want: "€0,00"},
		{cents: 5, want: "€0,05"},
		{cents: 25000, want: "€250,00"},
		{cents: 123456, want: "€1234,56"},
		{cents: -2550, want: "-€25,50"},
	}
	for _, tt := range tests {
		if got := formatEuros(tt.cents); got != tt.want {
			t.Errorf("formatEuros(%d) = %q, want %q", tt.cents, got, tt.want)
		}
	}
}

func TestFormatTimestamp(t *testing.T) {
	ts := time.Date(2025, time.August, 15, 9, 30, 0, 0, time.UTC)
	if got := formatTimestamp(ts); got != "15/08/2025, 09:30 AM" {
		t.Errorf("formatTimestamp = %q", got)
	}

	evening := time.Date(2025, time.August, 15, 21, 5, 0, 0, time.UTC)
	if got := formatTimestamp(evening); got != "15/08/2025, 09:05 PM" {
		t.Errorf("formatTimestamp evening = %q", got)
	}

	if got := formatTimestamp(time.Time{}); got != "-" {
		t.Errorf("zero time = %q, want -", got)
	}
}

func TestShortPeriodLabel(t *testing.T) {
	if got := shortPeriodLabel(core.Period{Month: 8, Year: 2025}); got != "Aug 2025" {
		t.Errorf("shortPeriodLabel = %q", got)
	}
	if got := shortPeriodLabel(core.Period{Month: 12, Year: 2023}); got != "Dec 2023" {
		t.Errorf("shortPeriodLabel = %q", got)
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "trims whitespace", in: "  Amina  ", want: "Amina"},
		{name: "strips control chars", in: "Ami\x00na\x07", want: "Amina"},
		{name: "keeps inner spaces", in: "Al Amin", want: "Al Amin"},
		{name: "empty stays empty", in: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeInput(tt.in); got != tt.want {
				t.Errorf("sanitizeInput(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
