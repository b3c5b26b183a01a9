package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"cassa/internal/core"
	"cassa/internal/sheets/memory"
	"cassa/internal/storage"
)

type fakeMirrorStore struct {
	pending    []storage.PendingMirrorPayment
	pendingErr error
	entries    map[int64]core.LedgerEntry

	mirrored [][2]int64
	errored  [][2]int64
}

func (s *fakeMirrorStore) PendingMirrorPayments(context.Context, int) ([]storage.PendingMirrorPayment, error) {
	return s.pending, s.pendingErr
}

func (s *fakeMirrorStore) GetLedgerEntryByPaymentID(_ context.Context, paymentID int64) (core.LedgerEntry, error) {
	e, ok := s.entries[paymentID]
	if !ok {
		return core.LedgerEntry{}, core.ErrNotFound
	}
	return e, nil
}

func (s *fakeMirrorStore) MarkMirrored(_ context.Context, paymentID, version int64) error {
	s.mirrored = append(s.mirrored, [2]int64{paymentID, version})
	return nil
}

func (s *fakeMirrorStore) MarkMirrorError(_ context.Context, paymentID, version int64) error {
	s.errored = append(s.errored, [2]int64{paymentID, version})
	return nil
}

type failingMirror struct {
	err   error
	calls int
}

func (m *failingMirror) UpsertPayment(context.Context, core.LedgerEntry) error {
	m.calls++
	return m.err
}

func TestDefaultMirrorProcessorConfig(t *testing.T) {
	config := DefaultMirrorProcessorConfig()

	if config.PollInterval != 30*time.Second {
		t.Errorf("expected PollInterval 30s, got %v", config.PollInterval)
	}
	if config.BatchSize != 10 {
		t.Errorf("expected BatchSize 10, got %d", config.BatchSize)
	}
	if config.MaxRetries != 3 {
		t.Errorf("expected MaxRetries 3, got %d", config.MaxRetries)
	}
}

func TestMirrorProcessorIsRunning(t *testing.T) {
	processor := NewMirrorProcessor(nil, nil, DefaultMirrorProcessorConfig())

	if processor.IsRunning() {
		t.Error("processor should not be running initially")
	}
}

func TestMirrorProcessorStartTwice(t *testing.T) {
	processor := NewMirrorProcessor(&fakeMirrorStore{}, memory.New(), DefaultMirrorProcessorConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := processor.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer processor.Stop(context.Background())

	if err := processor.Start(ctx); err == nil {
		t.Error("expected error when starting already running processor")
	}
}

func TestMirrorProcessorStopNotRunning(t *testing.T) {
	processor := NewMirrorProcessor(nil, nil, DefaultMirrorProcessorConfig())

	if err := processor.Stop(context.Background()); err != nil {
		t.Errorf("Stop should not error when not running: %v", err)
	}
}

func TestMirrorProcessorBatch(t *testing.T) {
	store := &fakeMirrorStore{
		pending: []storage.PendingMirrorPayment{{ID: 1, Version: 1}, {ID: 2, Version: 1}},
		entries: map[int64]core.LedgerEntry{
			1: {PaymentID: 1, MemberID: 10000, MemberName: "Anna", Status: core.StatusPaid},
			2: {PaymentID: 2, MemberID: 20000, MemberName: "Bruno", Status: core.StatusUnpaid},
		},
	}
	mirror := memory.New()
	processor := NewMirrorProcessor(store, mirror, DefaultMirrorProcessorConfig())

	processor.processBatch(context.Background())

	if mirror.Len() != 2 {
		t.Fatalf("mirrored rows = %d, want 2", mirror.Len())
	}
	if len(store.mirrored) != 2 {
		t.Fatalf("mirrored marks = %+v", store.mirrored)
	}
	if len(store.errored) != 0 {
		t.Fatalf("error marks = %+v", store.errored)
	}
}

func TestMirrorProcessorVanishedRow(t *testing.T) {
	store := &fakeMirrorStore{
		pending: []storage.PendingMirrorPayment{{ID: 5, Version: 2}},
		entries: map[int64]core.LedgerEntry{},
	}
	mirror := memory.New()
	processor := NewMirrorProcessor(store, mirror, DefaultMirrorProcessorConfig())

	processor.processBatch(context.Background())

	if mirror.Len() != 0 {
		t.Fatalf("mirrored rows = %d, want 0", mirror.Len())
	}
	if len(store.mirrored) != 0 || len(store.errored) != 0 {
		t.Fatalf("marks for vanished row: mirrored=%+v errored=%+v", store.mirrored, store.errored)
	}
}

func TestMirrorProcessorParksAfterRetries(t *testing.T) {
	store := &fakeMirrorStore{
		pending: []storage.PendingMirrorPayment{{ID: 1, Version: 1}},
		entries: map[int64]core.LedgerEntry{1: {PaymentID: 1}},
	}
	mirror := &failingMirror{err: errors.New("quota exceeded")}
	config := DefaultMirrorProcessorConfig()
	config.MaxRetries = 3
	processor := NewMirrorProcessor(store, mirror, config)

	for i := 0; i < 3; i++ {
		processor.processBatch(context.Background())
	}

	if mirror.calls != 3 {
		t.Fatalf("mirror calls = %d, want 3", mirror.calls)
	}
	if len(store.errored) != 1 || store.errored[0] != [2]int64{1, 1} {
		t.Fatalf("error marks = %+v", store.errored)
	}
	if len(store.mirrored) != 0 {
		t.Fatalf("mirrored marks = %+v", store.mirrored)
	}
}

func TestMirrorProcessorVersionResetsRetries(t *testing.T) {
	store := &fakeMirrorStore{
		pending: []storage.PendingMirrorPayment{{ID: 1, Version: 1}},
		entries: map[int64]core.LedgerEntry{1: {PaymentID: 1}},
	}
	mirror := &failingMirror{err: errors.New("quota exceeded")}
	config := DefaultMirrorProcessorConfig()
	config.MaxRetries = 3
	processor := NewMirrorProcessor(store, mirror, config)

	processor.processBatch(context.Background())
	processor.processBatch(context.Background())

	// A newer write resets the failure count for the row.
	store.pending = []storage.PendingMirrorPayment{{ID: 1, Version: 2}}
	processor.processBatch(context.Background())
	processor.processBatch(context.Background())

	if len(store.errored) != 0 {
		t.Fatalf("parked too early: %+v", store.errored)
	}

	processor.processBatch(context.Background())
	if len(store.errored) != 1 || store.errored[0] != [2]int64{1, 2} {
		t.Fatalf("error marks = %+v", store.errored)
	}
}

func TestMirrorProcessorStartStop(t *testing.T) {
	store := &fakeMirrorStore{
		pending: []storage.PendingMirrorPayment{{ID: 1, Version: 1}},
		entries: map[int64]core.LedgerEntry{1: {PaymentID: 1, MemberName: "Anna"}},
	}
	mirror := memory.New()
	config := DefaultMirrorProcessorConfig()
	config.PollInterval = 10 * time.Millisecond
	processor := NewMirrorProcessor(store, mirror, config)

	if err := processor.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for mirror.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if mirror.Len() == 0 {
		t.Fatal("nothing mirrored before deadline")
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := processor.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if processor.IsRunning() {
		t.Fatal("processor still running after Stop")
	}
}
