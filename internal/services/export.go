package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"cassa/internal/core"
)

var exportHeader = []string{"member_id", "name", "status", "amount", "last_updated"}

// ExportPeriodCSV renders one period of the ledger as CSV. Amounts are
// decimal strings and timestamps RFC3339, so the file survives a spreadsheet
// round trip.
func (s *LedgerService) ExportPeriodCSV(ctx context.Context, p core.Period) ([]byte, error) {
	entries, err := s.PeriodEntries(ctx, p)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(exportHeader); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, e := range entries {
		record := []string{
			strconv.FormatInt(e.MemberID, 10),
			e.MemberName,
			string(e.Status),
			e.Amount.Decimal(),
			e.LastUpdated.Format(time.RFC3339),
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("write csv record: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportFilename names the download for one period.
func ExportFilename(p core.Period) string {
	return fmt.Sprintf("payments_%s.csv", p.Key())
}
