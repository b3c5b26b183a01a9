package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cassa/internal/core"
	"cassa/internal/sheets"
	"cassa/internal/storage"
)

// MirrorProcessorConfig holds configuration for the mirror processor.
type MirrorProcessorConfig struct {
	// PollInterval is how often to check for pending rows (default: 30s)
	PollInterval time.Duration

	// BatchSize is the max number of rows to push per poll cycle (default: 10)
	BatchSize int

	// MaxRetries is how many consecutive failures a row survives before it
	// is parked with a mirror error (default: 3)
	MaxRetries int
}

// DefaultMirrorProcessorConfig returns sensible defaults.
func DefaultMirrorProcessorConfig() MirrorProcessorConfig {
	return MirrorProcessorConfig{
		PollInterval: 30 * time.Second,
		BatchSize:    10,
		MaxRetries:   3,
	}
}

// MirrorStore is the slice of storage the mirror processor needs.
type MirrorStore interface {
	PendingMirrorPayments(ctx context.Context, limit int) ([]storage.PendingMirrorPayment, error)
	GetLedgerEntryByPaymentID(ctx context.Context, paymentID int64) (core.LedgerEntry, error)
	MarkMirrored(ctx context.Context, paymentID, version int64) error
	MarkMirrorError(ctx context.Context, paymentID, version int64) error
}

// MirrorProcessor drains pending payment rows into the external mirror by
// polling the database. It is the fallback path when no AMQP broker is
// configured, and the safety net for events lost while one was down.
type MirrorProcessor struct {
	store  MirrorStore
	mirror sheets.LedgerMirror
	config MirrorProcessorConfig

	// Consecutive failures per payment ID, touched only by the run loop.
	// Reset whenever the row's version moves.
	failures map[int64]*mirrorFailure

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

type mirrorFailure struct {
	version  int64
	attempts int
}

// NewMirrorProcessor creates a new mirror processor.
func NewMirrorProcessor(store MirrorStore, mirror sheets.LedgerMirror, config MirrorProcessorConfig) *MirrorProcessor {
	return &MirrorProcessor{
		store:    store,
		mirror:   mirror,
		config:   config,
		failures: make(map[int64]*mirrorFailure),
	}
}

// Start begins the processing loop. Returns an error if already running.
func (p *MirrorProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("mirror processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Mirror processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize)

	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *MirrorProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.doneCh:
		slog.InfoContext(ctx, "Mirror processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Mirror processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	return nil
}

// IsRunning returns whether the processor is currently running.
func (p *MirrorProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *MirrorProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	// Process immediately on startup.
	p.processBatch(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.processBatch(ctx)
		}
	}
}

func (p *MirrorProcessor) processBatch(ctx context.Context) {
	pending, err := p.store.PendingMirrorPayments(ctx, p.config.BatchSize)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to read pending mirror rows", "error", err)
		return
	}
	if len(pending) == 0 {
		return
	}

	slog.DebugContext(ctx, "Processing mirror batch", "count", len(pending))

	for _, item := range pending {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		if err := p.mirrorOne(ctx, item); err != nil {
			p.handleFailure(ctx, item, err)
		} else {
			delete(p.failures, item.ID)
		}
	}
}

func (p *MirrorProcessor) mirrorOne(ctx context.Context, item storage.PendingMirrorPayment) error {
	entry, err := p.store.GetLedgerEntryByPaymentID(ctx, item.ID)
	if errors.Is(err, core.ErrNotFound) {
		// Deleted between the pending read and now; nothing left to mirror.
		slog.DebugContext(ctx, "Pending payment vanished before mirroring", "payment_id", item.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load payment %d: %w", item.ID, err)
	}

	if err := p.mirror.UpsertPayment(ctx, entry); err != nil {
		return fmt.Errorf("mirror payment %d: %w", item.ID, err)
	}

	// The version guard in storage keeps a write that landed after our read
	// pending, so it gets pushed again next cycle.
	if err := p.store.MarkMirrored(ctx, item.ID, item.Version); err != nil {
		slog.WarnContext(ctx, "Failed to mark payment mirrored",
			"payment_id", item.ID,
			"error", err)
	}

	slog.InfoContext(ctx, "Payment mirrored",
		"payment_id", item.ID,
		"version", item.Version)
	return nil
}

func (p *MirrorProcessor) handleFailure(ctx context.Context, item storage.PendingMirrorPayment, processErr error) {
	f := p.failures[item.ID]
	if f == nil || f.version != item.Version {
		f = &mirrorFailure{version: item.Version}
		p.failures[item.ID] = f
	}
	f.attempts++

	slog.WarnContext(ctx, "Mirror push failed",
		"payment_id", item.ID,
		"version", item.Version,
		"attempt", f.attempts,
		"error", processErr)

	if f.attempts >= p.config.MaxRetries {
		if err := p.store.MarkMirrorError(ctx, item.ID, item.Version); err != nil {
			slog.ErrorContext(ctx, "Failed to park payment as mirror error",
				"payment_id", item.ID,
				"error", err)
			return
		}
		delete(p.failures, item.ID)
		slog.ErrorContext(ctx, "Payment parked after repeated mirror failures",
			"payment_id", item.ID,
			"version", item.Version,
			"attempts", p.config.MaxRetries)
	}
}
