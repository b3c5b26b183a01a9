// Package worker mirrors payment rows to the configured ledger mirror in
// response to queue events.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cassa/internal/amqp"
	"cassa/internal/core"
	"cassa/internal/sheets"
	"cassa/internal/storage"
)

// MirrorStore is the slice of storage the worker needs.
type MirrorStore interface {
	PendingMirrorPayments(ctx context.Context, limit int) ([]storage.PendingMirrorPayment, error)
	GetLedgerEntryByPaymentID(ctx context.Context, paymentID int64) (core.LedgerEntry, error)
	MarkMirrored(ctx context.Context, paymentID, version int64) error
}

// MirrorWorker pushes changed payment rows to the mirror as queue events
// arrive. It always reloads the row before writing, so the mirror receives
// the current state even when events are delivered late or out of order.
type MirrorWorker struct {
	store     MirrorStore
	mirror    sheets.LedgerMirror
	batchSize int
}

func NewMirrorWorker(store MirrorStore, mirror sheets.LedgerMirror, batchSize int) *MirrorWorker {
	return &MirrorWorker{
		store:     store,
		mirror:    mirror,
		batchSize: batchSize,
	}
}

// HandlePaymentEvent processes a single payment event from the queue.
// Returning an error requeues the delivery.
func (w *MirrorWorker) HandlePaymentEvent(ctx context.Context, msg *amqp.PaymentEventMessage) error {
	slog.InfoContext(ctx, "Processing payment event",
		"payment_id", msg.PaymentID,
		"version", msg.Version)

	entry, err := w.store.GetLedgerEntryByPaymentID(ctx, msg.PaymentID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			// The member was deleted after the event was queued.
			slog.InfoContext(ctx, "Payment vanished before mirroring, dropping event",
				"payment_id", msg.PaymentID)
			return nil
		}
		return fmt.Errorf("load payment %d: %w", msg.PaymentID, err)
	}

	if err := w.mirror.UpsertPayment(ctx, entry); err != nil {
		return fmt.Errorf("mirror payment %d: %w", msg.PaymentID, err)
	}

	// Version-guarded: if the row changed since the event was queued, the
	// mark is a no-op and the row stays pending for the next pass.
	if err := w.store.MarkMirrored(ctx, msg.PaymentID, msg.Version); err != nil {
		slog.ErrorContext(ctx, "Failed to mark payment as mirrored",
			"payment_id", msg.PaymentID,
			"error", err)
	}

	return nil
}

// StartupMirrorCheck flushes payments that were left pending while the
// worker was down or events were lost.
func (w *MirrorWorker) StartupMirrorCheck(ctx context.Context) error {
	pending, err := w.store.PendingMirrorPayments(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("get pending payments for startup check: %w", err)
	}

	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending payments found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending payments on startup, processing...",
		"count", len(pending))

	successCount := 0
	errorCount := 0

	for _, item := range pending {
		entry, err := w.store.GetLedgerEntryByPaymentID(ctx, item.ID)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				continue
			}
			slog.ErrorContext(ctx, "Failed to load payment for startup mirror",
				"payment_id", item.ID, "error", err)
			errorCount++
			continue
		}

		if err := w.mirror.UpsertPayment(ctx, entry); err != nil {
			slog.ErrorContext(ctx, "Failed to mirror payment during startup",
				"payment_id", item.ID, "error", err)
			errorCount++
			continue
		}

		if err := w.store.MarkMirrored(ctx, item.ID, item.Version); err != nil {
			slog.ErrorContext(ctx, "Failed to mark payment as mirrored",
				"payment_id", item.ID, "error", err)
		}
		successCount++
	}

	slog.InfoContext(ctx, "Startup mirror check completed",
		"total", len(pending),
		"mirrored", successCount,
		"errors", errorCount)

	return nil
}
