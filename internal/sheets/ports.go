package sheets

import (
	"context"

	"cassa/internal/core"
)

// LedgerMirror keeps an external read-only copy of payment rows. Upserts are
// keyed by payment ID, so replaying the same row is safe.
type LedgerMirror interface {
	UpsertPayment(ctx context.Context, entry core.LedgerEntry) error
}
