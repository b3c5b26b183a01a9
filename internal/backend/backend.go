// Package backend maps the configured mirror backend name to a
// constructed sheets.LedgerMirror. The implementations live under
// internal/sheets; this package only does the selection.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"cassa/internal/sheets"
	"cassa/internal/sheets/google"
	"cassa/internal/sheets/memory"
)

// Kind names a mirror backend implementation.
type Kind string

const (
	// KindMemory mirrors into process memory. Rows vanish on restart,
	// which is fine for development and tests.
	KindMemory Kind = "memory"
	// KindSheets mirrors into a Google Sheets worksheet.
	KindSheets Kind = "sheets"
)

func (k Kind) String() string { return string(k) }

// IsValid reports whether k names a known mirror backend.
func (k Kind) IsValid() bool {
	switch k {
	case KindMemory, KindSheets:
		return true
	}
	return false
}

// Kinds lists every valid mirror backend.
func Kinds() []Kind {
	return []Kind{KindMemory, KindSheets}
}

// NewMirror builds the mirror named by kind. The sheets mirror reads its
// spreadsheet ID and credentials from the environment, so it can fail
// here when those are missing.
func NewMirror(ctx context.Context, kind Kind) (sheets.LedgerMirror, error) {
	switch kind {
	case KindMemory:
		slog.InfoContext(ctx, "Using in-memory ledger mirror")
		return memory.New(), nil

	case KindSheets:
		cli, err := google.NewFromEnv(ctx)
		if err != nil {
			return nil, fmt.Errorf("initialize sheets mirror: %w", err)
		}
		slog.InfoContext(ctx, "Using Google Sheets ledger mirror")
		return cli, nil

	default:
		return nil, fmt.Errorf("unknown mirror backend %q, valid kinds are %v", kind, Kinds())
	}
}
