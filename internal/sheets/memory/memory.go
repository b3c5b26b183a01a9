// Package memory is an in-memory mirror for development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"cassa/internal/core"
	ports "cassa/internal/sheets"
)

// Store keeps the latest mirrored version of every payment row.
type Store struct {
	mu   sync.Mutex
	rows map[int64]core.LedgerEntry
}

var _ ports.LedgerMirror = (*Store)(nil)

func New() *Store {
	return &Store{rows: make(map[int64]core.LedgerEntry)}
}

// UpsertPayment replaces whatever was mirrored for this payment before.
func (s *Store) UpsertPayment(_ context.Context, entry core.LedgerEntry) error {
	if entry.PaymentID <= 0 {
		return fmt.Errorf("invalid payment id: %d", entry.PaymentID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[entry.PaymentID] = entry
	return nil
}

// Entries returns a copy of the mirrored rows ordered by payment ID.
func (s *Store) Entries() []core.LedgerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.LedgerEntry, 0, len(s.rows))
	for _, e := range s.rows {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PaymentID < out[j].PaymentID })
	return out
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}
