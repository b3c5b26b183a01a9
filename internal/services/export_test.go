package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"reflect"
	"testing"
	"time"

	"cassa/internal/core"
)

func TestExportPeriodCSV(t *testing.T) {
	store := &fakeLedgerStore{
		entries: []core.LedgerEntry{
			{
				PaymentID:   1,
				MemberID:    12345,
				MemberName:  "Anna",
				Period:      august,
				Status:      core.StatusPaid,
				Amount:      core.Money{Cents: 25000},
				LastUpdated: time.Date(2025, 8, 15, 9, 30, 0, 0, time.UTC),
			},
			{
				PaymentID:   2,
				MemberID:    67890,
				MemberName:  "Bruno",
				Period:      august,
				Status:      core.StatusUnpaid,
				Amount:      core.Money{Cents: 30050},
				LastUpdated: time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC),
			},
		},
	}
	svc := newTestLedgerService(store, &fakeRolloverStore{}, &fakePublisher{})

	data, err := svc.ExportPeriodCSV(context.Background(), august)
	if err != nil {
		t.Fatalf("ExportPeriodCSV: %v", err)
	}

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("read csv back: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("len(records) = %d, want 3", len(records))
	}
	if !reflect.DeepEqual(records[0], exportHeader) {
		t.Fatalf("header = %v", records[0])
	}
	want := []string{"12345", "Anna", "Paid", "250.00", "2025-08-15T09:30:00Z"}
	if !reflect.DeepEqual(records[1], want) {
		t.Fatalf("row = %v, want %v", records[1], want)
	}
	if records[2][3] != "300.50" {
		t.Fatalf("amount = %q, want 300.50", records[2][3])
	}
}

func TestExportPeriodCSVEmpty(t *testing.T) {
	svc := newTestLedgerService(&fakeLedgerStore{}, &fakeRolloverStore{}, &fakePublisher{})

	data, err := svc.ExportPeriodCSV(context.Background(), august)
	if err != nil {
		t.Fatalf("ExportPeriodCSV: %v", err)
	}
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("read csv back: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("empty period produced %d records, want header only", len(records))
	}
}

func TestExportPeriodCSVValidation(t *testing.T) {
	svc := newTestLedgerService(&fakeLedgerStore{}, &fakeRolloverStore{}, &fakePublisher{})

	if _, err := svc.ExportPeriodCSV(context.Background(), core.Period{Month: 13, Year: 2025}); err == nil {
		t.Fatal("expected error for invalid period")
	}
}

func TestExportFilename(t *testing.T) {
	if got := ExportFilename(august); got != "payments_08-2025.csv" {
		t.Fatalf("ExportFilename = %q", got)
	}
}
