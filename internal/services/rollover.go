// Package services provides business logic and orchestration services.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cassa/internal/clock"
	"cassa/internal/core"
)

// RolloverStore is the slice of storage the rollover engine needs.
type RolloverStore interface {
	PeriodWatermark(ctx context.Context) (core.Period, bool, error)
	AdvancePeriodWatermark(ctx context.Context, p core.Period) error
	BackfillPeriod(ctx context.Context, p core.Period, now time.Time) (int64, error)
	BackfillMemberPeriod(ctx context.Context, memberID int64, p core.Period, now time.Time) (bool, error)
}

// Rollover materializes payment rows for the current calendar period on
// demand. There is no background job: every read path calls EnsureCurrent and
// the first request of a new month pays for the backfill.
type Rollover struct {
	store RolloverStore
	clock clock.Clock
}

func NewRollover(store RolloverStore, clk clock.Clock) *Rollover {
	return &Rollover{store: store, clock: clk}
}

// EnsureCurrent guarantees that every member has a payment row for the
// current period and returns that period. The stored watermark is only a
// fast path: when it already names the current period the backfill is
// skipped, and when it is missing or stale the backfill runs and re-derives
// it. The watermark never moves backward, so a clock regression still
// materializes rows for the reported period but leaves the watermark alone.
func (r *Rollover) EnsureCurrent(ctx context.Context) (core.Period, error) {
	now := r.clock.Now(ctx)
	current := core.PeriodOf(now)

	mark, ok, err := r.store.PeriodWatermark(ctx)
	if err != nil {
		return core.Period{}, fmt.Errorf("read period watermark: %w", err)
	}
	if ok && mark.Equal(current) {
		return current, nil
	}

	inserted, err := r.store.BackfillPeriod(ctx, current, now)
	if err != nil {
		return core.Period{}, fmt.Errorf("materialize period %s: %w", current.Key(), err)
	}
	if inserted > 0 {
		slog.InfoContext(ctx, "Period rows materialized",
			"period", current.Key(),
			"inserted", inserted)
	}

	if !ok || current.After(mark) {
		if err := r.store.AdvancePeriodWatermark(ctx, current); err != nil {
			return core.Period{}, fmt.Errorf("advance period watermark: %w", err)
		}
	}

	return current, nil
}

// EnsureCurrentFor guarantees a single member has a row for the current
// period and returns that period. Unknown member IDs insert nothing.
func (r *Rollover) EnsureCurrentFor(ctx context.Context, memberID int64) (core.Period, error) {
	now := r.clock.Now(ctx)
	current := core.PeriodOf(now)

	if _, err := r.store.BackfillMemberPeriod(ctx, memberID, current, now); err != nil {
		return core.Period{}, fmt.Errorf("materialize member period: %w", err)
	}
	return current, nil
}
