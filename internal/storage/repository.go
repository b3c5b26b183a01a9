package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cassa/internal/core"

	_ "modernc.org/sqlite"
)

const periodWatermarkKey = "last_run_period"

const (
	mirrorPending = "pending"
	mirrorDone    = "done"
	mirrorError   = "error"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// CreateMemberWithPayment inserts a member together with their payment row for
// the given period. The member insert uses INSERT OR IGNORE so a concurrent
// grab of the same random ID surfaces as created=false instead of an error,
// letting the caller retry with a fresh ID.
func (r *SQLiteRepository) CreateMemberWithPayment(ctx context.Context, m core.Member, p core.Period, now time.Time) (*core.PaymentRecord, bool, error) {
	ts := now.Unix()
	var payment core.PaymentRecord
	created := false

	err := r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO members (id, name, phone, due_cents) VALUES (?, ?, ?, ?)`,
			m.ID, m.Name, m.Phone, m.Due.Cents)
		if err != nil {
			return fmt.Errorf("insert member: %w", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("member rows affected: %w", err)
		}
		if rows == 0 {
			return nil
		}

		res, err = tx.ExecContext(ctx,
			`INSERT INTO payments (member_id, month, year, status, amount_cents, last_updated) VALUES (?, ?, ?, ?, ?, ?)`,
			m.ID, p.Month, p.Year, string(core.StatusUnpaid), m.Due.Cents, ts)
		if err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}
		paymentID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("payment insert id: %w", err)
		}

		created = true
		payment = core.PaymentRecord{
			ID:          paymentID,
			MemberID:    m.ID,
			Period:      p,
			Status:      core.StatusUnpaid,
			Amount:      m.Due,
			Version:     1,
			LastUpdated: time.Unix(ts, 0).UTC(),
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if !created {
		return nil, false, nil
	}

	slog.InfoContext(ctx, "Member saved",
		"member_id", m.ID,
		"name", m.Name,
		"due_cents", m.Due.Cents,
		"payment_id", payment.ID)

	return &payment, true, nil
}

func (r *SQLiteRepository) GetMember(ctx context.Context, id int64) (core.Member, error) {
	var m core.Member
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, phone, due_cents FROM members WHERE id = ?`, id).
		Scan(&m.ID, &m.Name, &m.Phone, &m.Due.Cents)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Member{}, core.ErrNotFound
	}
	if err != nil {
		return core.Member{}, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

func (r *SQLiteRepository) ListMembers(ctx context.Context) ([]core.Member, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, phone, due_cents FROM members ORDER BY name COLLATE NOCASE, id`)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []core.Member
	for rows.Next() {
		var m core.Member
		if err := rows.Scan(&m.ID, &m.Name, &m.Phone, &m.Due.Cents); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}
	return members, nil
}

// UpdateMember rewrites the member row and keeps the amount snapshot of the
// current period's payment in step with the new due amount. Returns the
// refreshed payment row so callers can publish it, found=false when no member
// with that ID exists.
func (r *SQLiteRepository) UpdateMember(ctx context.Context, m core.Member, current core.Period, now time.Time) (*core.PaymentRecord, bool, error) {
	ts := now.Unix()
	found := false
	var payment *core.PaymentRecord

	err := r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE members SET name = ?, phone = ?, due_cents = ? WHERE id = ?`,
			m.Name, m.Phone, m.Due.Cents, m.ID)
		if err != nil {
			return fmt.Errorf("update member: %w", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("member rows affected: %w", err)
		}
		if rows == 0 {
			return nil
		}
		found = true

		if _, err := tx.ExecContext(ctx,
			`UPDATE payments SET amount_cents = ?, last_updated = ?, version = version + 1, mirror_status = ?
			 WHERE member_id = ? AND month = ? AND year = ?`,
			m.Due.Cents, ts, mirrorPending, m.ID, current.Month, current.Year); err != nil {
			return fmt.Errorf("sync current payment: %w", err)
		}

		var rec core.PaymentRecord
		var lastUpdated int64
		var status string
		err = tx.QueryRowContext(ctx,
			`SELECT id, member_id, month, year, status, amount_cents, version, last_updated
			 FROM payments WHERE member_id = ? AND month = ? AND year = ?`,
			m.ID, current.Month, current.Year).
			Scan(&rec.ID, &rec.MemberID, &rec.Period.Month, &rec.Period.Year, &status, &rec.Amount.Cents, &rec.Version, &lastUpdated)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reload current payment: %w", err)
		}
		rec.Status = core.PaymentStatus(status)
		rec.LastUpdated = time.Unix(lastUpdated, 0).UTC()
		payment = &rec
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}

	slog.InfoContext(ctx, "Member updated",
		"member_id", m.ID,
		"name", m.Name,
		"due_cents", m.Due.Cents)

	return payment, true, nil
}

// DeleteMember removes the member and every payment row that references them.
// Deleting an unknown ID is not an error.
func (r *SQLiteRepository) DeleteMember(ctx context.Context, id int64) (bool, error) {
	found := false
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM payments WHERE member_id = ?`, id); err != nil {
			return fmt.Errorf("delete member payments: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM members WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete member: %w", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("member rows affected: %w", err)
		}
		found = rows > 0
		return nil
	})
	if err != nil {
		return false, err
	}

	if found {
		slog.InfoContext(ctx, "Member deleted", "member_id", id)
	}
	return found, nil
}

// PeriodWatermark implements services.RolloverStore. A malformed stored value
// is discarded rather than surfaced; the worst case is one redundant backfill
// scan.
func (r *SQLiteRepository) PeriodWatermark(ctx context.Context) (core.Period, bool, error) {
	var raw string
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM meta WHERE key = ?`, periodWatermarkKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Period{}, false, nil
	}
	if err != nil {
		return core.Period{}, false, fmt.Errorf("read period watermark: %w", err)
	}

	p, err := core.ParsePeriodKey(raw)
	if err != nil {
		slog.WarnContext(ctx, "Discarding malformed period watermark", "value", raw)
		return core.Period{}, false, nil
	}
	return p, true, nil
}

func (r *SQLiteRepository) AdvancePeriodWatermark(ctx context.Context, p core.Period) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES (?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		periodWatermarkKey, p.Key())
	if err != nil {
		return fmt.Errorf("advance period watermark: %w", err)
	}
	return nil
}

// BackfillPeriod inserts an Unpaid payment row for every member that does not
// already have one in the given period. The single INSERT..SELECT keeps the
// backfill atomic and safe to repeat.
func (r *SQLiteRepository) BackfillPeriod(ctx context.Context, p core.Period, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO payments (member_id, month, year, status, amount_cents, last_updated)
		 SELECT m.id, ?, ?, ?, m.due_cents, ?
		 FROM members m
		 WHERE NOT EXISTS (
		     SELECT 1 FROM payments p WHERE p.member_id = m.id AND p.month = ? AND p.year = ?
		 )`,
		p.Month, p.Year, string(core.StatusUnpaid), now.Unix(), p.Month, p.Year)
	if err != nil {
		return 0, fmt.Errorf("backfill period: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("backfill rows affected: %w", err)
	}
	return rows, nil
}

// BackfillMemberPeriod is the single-member variant of BackfillPeriod.
// Returns true when a row was inserted, false when the member already had one
// or does not exist.
func (r *SQLiteRepository) BackfillMemberPeriod(ctx context.Context, memberID int64, p core.Period, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO payments (member_id, month, year, status, amount_cents, last_updated)
		 SELECT m.id, ?, ?, ?, m.due_cents, ?
		 FROM members m
		 WHERE m.id = ?
		   AND NOT EXISTS (
		       SELECT 1 FROM payments p WHERE p.member_id = m.id AND p.month = ? AND p.year = ?
		   )`,
		p.Month, p.Year, string(core.StatusUnpaid), now.Unix(), memberID, p.Month, p.Year)
	if err != nil {
		return false, fmt.Errorf("backfill member period: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("backfill rows affected: %w", err)
	}
	return rows > 0, nil
}

func (r *SQLiteRepository) GetPayment(ctx context.Context, memberID int64, p core.Period) (core.PaymentRecord, error) {
	var rec core.PaymentRecord
	var status string
	var lastUpdated int64
	err := r.db.QueryRowContext(ctx,
		`SELECT id, member_id, month, year, status, amount_cents, version, last_updated
		 FROM payments WHERE member_id = ? AND month = ? AND year = ?`,
		memberID, p.Month, p.Year).
		Scan(&rec.ID, &rec.MemberID, &rec.Period.Month, &rec.Period.Year, &status, &rec.Amount.Cents, &rec.Version, &lastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return core.PaymentRecord{}, core.ErrNotFound
	}
	if err != nil {
		return core.PaymentRecord{}, fmt.Errorf("get payment: %w", err)
	}
	rec.Status = core.PaymentStatus(status)
	rec.LastUpdated = time.Unix(lastUpdated, 0).UTC()
	return rec, nil
}

// SetPaymentStatus writes the new status and bumps the row version so the
// mirror picks the change up. Returns nil when no row matches; flipping a
// payment that does not exist is a no-op, not an error.
func (r *SQLiteRepository) SetPaymentStatus(ctx context.Context, memberID int64, p core.Period, status core.PaymentStatus, now time.Time) (*core.PaymentRecord, error) {
	ts := now.Unix()
	var payment *core.PaymentRecord

	err := r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE payments SET status = ?, last_updated = ?, version = version + 1, mirror_status = ?
			 WHERE member_id = ? AND month = ? AND year = ?`,
			string(status), ts, mirrorPending, memberID, p.Month, p.Year)
		if err != nil {
			return fmt.Errorf("update payment status: %w", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("payment rows affected: %w", err)
		}
		if rows == 0 {
			return nil
		}

		var rec core.PaymentRecord
		var st string
		var lastUpdated int64
		if err := tx.QueryRowContext(ctx,
			`SELECT id, member_id, month, year, status, amount_cents, version, last_updated
			 FROM payments WHERE member_id = ? AND month = ? AND year = ?`,
			memberID, p.Month, p.Year).
			Scan(&rec.ID, &rec.MemberID, &rec.Period.Month, &rec.Period.Year, &st, &rec.Amount.Cents, &rec.Version, &lastUpdated); err != nil {
			return fmt.Errorf("reload payment: %w", err)
		}
		rec.Status = core.PaymentStatus(st)
		rec.LastUpdated = time.Unix(lastUpdated, 0).UTC()
		payment = &rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, nil
	}

	slog.InfoContext(ctx, "Payment status saved",
		"payment_id", payment.ID,
		"member_id", memberID,
		"period", p.Key(),
		"status", string(status))

	return payment, nil
}

func (r *SQLiteRepository) GetLedgerEntryByPaymentID(ctx context.Context, paymentID int64) (core.LedgerEntry, error) {
	var e core.LedgerEntry
	var status string
	var lastUpdated int64
	err := r.db.QueryRowContext(ctx,
		`SELECT p.id, p.member_id, m.name, p.month, p.year, p.status, p.amount_cents, p.last_updated
		 FROM payments p
		 JOIN members m ON m.id = p.member_id
		 WHERE p.id = ?`, paymentID).
		Scan(&e.PaymentID, &e.MemberID, &e.MemberName, &e.Period.Month, &e.Period.Year, &status, &e.Amount.Cents, &lastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return core.LedgerEntry{}, core.ErrNotFound
	}
	if err != nil {
		return core.LedgerEntry{}, fmt.Errorf("get ledger entry: %w", err)
	}
	e.Status = core.PaymentStatus(status)
	e.LastUpdated = time.Unix(lastUpdated, 0).UTC()
	return e, nil
}

// ListEntries returns the whole ledger joined with member names, newest
// period first, members in name order within a period.
func (r *SQLiteRepository) ListEntries(ctx context.Context) ([]core.LedgerEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT p.id, p.member_id, m.name, p.month, p.year, p.status, p.amount_cents, p.last_updated
		 FROM payments p
		 JOIN members m ON m.id = p.member_id
		 ORDER BY p.year DESC, p.month DESC, m.name COLLATE NOCASE, p.member_id`)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()
	return scanLedgerEntries(rows)
}

func (r *SQLiteRepository) ListPeriodEntries(ctx context.Context, p core.Period) ([]core.LedgerEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT p.id, p.member_id, m.name, p.month, p.year, p.status, p.amount_cents, p.last_updated
		 FROM payments p
		 JOIN members m ON m.id = p.member_id
		 WHERE p.month = ? AND p.year = ?
		 ORDER BY m.name COLLATE NOCASE, p.member_id`,
		p.Month, p.Year)
	if err != nil {
		return nil, fmt.Errorf("list period entries: %w", err)
	}
	defer rows.Close()
	return scanLedgerEntries(rows)
}

// RecentEntries returns the latest-touched rows of a period, newest first.
func (r *SQLiteRepository) RecentEntries(ctx context.Context, p core.Period, limit int) ([]core.LedgerEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT p.id, p.member_id, m.name, p.month, p.year, p.status, p.amount_cents, p.last_updated
		 FROM payments p
		 JOIN members m ON m.id = p.member_id
		 WHERE p.month = ? AND p.year = ?
		 ORDER BY p.last_updated DESC, p.id DESC
		 LIMIT ?`,
		p.Month, p.Year, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent entries: %w", err)
	}
	defer rows.Close()
	return scanLedgerEntries(rows)
}

func scanLedgerEntries(rows *sql.Rows) ([]core.LedgerEntry, error) {
	var entries []core.LedgerEntry
	for rows.Next() {
		var e core.LedgerEntry
		var status string
		var lastUpdated int64
		if err := rows.Scan(&e.PaymentID, &e.MemberID, &e.MemberName, &e.Period.Month, &e.Period.Year, &status, &e.Amount.Cents, &lastUpdated); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		e.Status = core.PaymentStatus(status)
		e.LastUpdated = time.Unix(lastUpdated, 0).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger entries: %w", err)
	}
	return entries, nil
}

func (r *SQLiteRepository) MemberHistory(ctx context.Context, memberID int64) ([]core.MemberHistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT month, year, status, amount_cents, last_updated
		 FROM payments WHERE member_id = ?
		 ORDER BY year DESC, month DESC`,
		memberID)
	if err != nil {
		return nil, fmt.Errorf("member history: %w", err)
	}
	defer rows.Close()

	var history []core.MemberHistoryEntry
	for rows.Next() {
		var h core.MemberHistoryEntry
		var status string
		var lastUpdated int64
		if err := rows.Scan(&h.Period.Month, &h.Period.Year, &status, &h.Amount.Cents, &lastUpdated); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		h.Status = core.PaymentStatus(status)
		h.LastUpdated = time.Unix(lastUpdated, 0).UTC()
		history = append(history, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return history, nil
}

// Periods lists every distinct period present in the ledger, newest first.
func (r *SQLiteRepository) Periods(ctx context.Context) ([]core.Period, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT year, month FROM payments ORDER BY year DESC, month DESC`)
	if err != nil {
		return nil, fmt.Errorf("list periods: %w", err)
	}
	defer rows.Close()

	var periods []core.Period
	for rows.Next() {
		var p core.Period
		if err := rows.Scan(&p.Year, &p.Month); err != nil {
			return nil, fmt.Errorf("scan period: %w", err)
		}
		periods = append(periods, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate periods: %w", err)
	}
	return periods, nil
}

func (r *SQLiteRepository) PeriodSummary(ctx context.Context, p core.Period) (core.PeriodSummary, error) {
	summary := core.PeriodSummary{Period: p}
	var total, paid, collected int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN status = ? THEN amount_cents ELSE 0 END), 0)
		 FROM payments WHERE month = ? AND year = ?`,
		string(core.StatusPaid), string(core.StatusPaid), p.Month, p.Year).
		Scan(&total, &paid, &collected)
	if err != nil {
		return summary, fmt.Errorf("period summary: %w", err)
	}

	summary.MemberCount = int(total)
	summary.PaidCount = int(paid)
	summary.UnpaidCount = int(total - paid)
	summary.Collected = core.Money{Cents: collected}
	return summary, nil
}

// Trend reports the Paid total of every period in the ledger, oldest first.
// Periods where nothing was collected still appear with a zero total.
func (r *SQLiteRepository) Trend(ctx context.Context) ([]core.TrendPoint, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT year, month, COALESCE(SUM(CASE WHEN status = ? THEN amount_cents ELSE 0 END), 0)
		 FROM payments
		 GROUP BY year, month
		 ORDER BY year, month`,
		string(core.StatusPaid))
	if err != nil {
		return nil, fmt.Errorf("trend: %w", err)
	}
	defer rows.Close()

	var points []core.TrendPoint
	for rows.Next() {
		var pt core.TrendPoint
		var collected int64
		if err := rows.Scan(&pt.Period.Year, &pt.Period.Month, &collected); err != nil {
			return nil, fmt.Errorf("scan trend point: %w", err)
		}
		pt.Collected = core.Money{Cents: collected}
		points = append(points, pt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trend: %w", err)
	}
	return points, nil
}

// PendingMirrorPayment carries the minimum a mirror queue message needs.
type PendingMirrorPayment struct {
	ID      int64
	Version int64
}

// PendingMirrorPayments returns payments whose latest write has not reached
// the mirror yet, oldest row first.
func (r *SQLiteRepository) PendingMirrorPayments(ctx context.Context, limit int) ([]PendingMirrorPayment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, version FROM payments WHERE mirror_status = ? ORDER BY id LIMIT ?`,
		mirrorPending, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending mirror payments: %w", err)
	}
	defer rows.Close()

	var pending []PendingMirrorPayment
	for rows.Next() {
		var p PendingMirrorPayment
		if err := rows.Scan(&p.ID, &p.Version); err != nil {
			return nil, fmt.Errorf("scan pending payment: %w", err)
		}
		pending = append(pending, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending payments: %w", err)
	}
	return pending, nil
}

// MarkMirrored records that the given version of a payment reached the
// mirror. The version guard keeps a write that landed after the mirror read
// from being marked done by mistake.
func (r *SQLiteRepository) MarkMirrored(ctx context.Context, paymentID, version int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE payments SET mirror_status = ? WHERE id = ? AND version = ?`,
		mirrorDone, paymentID, version)
	if err != nil {
		return fmt.Errorf("mark payment mirrored: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mirrored rows affected: %w", err)
	}
	if rows == 0 {
		slog.DebugContext(ctx, "Payment changed since mirror read, left pending",
			"payment_id", paymentID, "version", version)
		return nil
	}

	slog.InfoContext(ctx, "Payment marked as mirrored", "payment_id", paymentID, "version", version)
	return nil
}

// MarkMirrorError flags a payment whose mirror write failed. Same version
// guard as MarkMirrored: a newer pending version stays pending.
func (r *SQLiteRepository) MarkMirrorError(ctx context.Context, paymentID, version int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE payments SET mirror_status = ? WHERE id = ? AND version = ?`,
		mirrorError, paymentID, version)
	if err != nil {
		return fmt.Errorf("mark payment mirror error: %w", err)
	}

	slog.WarnContext(ctx, "Payment marked with mirror error", "payment_id", paymentID, "version", version)
	return nil
}

// Counts reports how many members and payment rows the database holds.
func (r *SQLiteRepository) Counts(ctx context.Context) (int64, int64, error) {
	var members, payments int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM members`).Scan(&members); err != nil {
		return 0, 0, fmt.Errorf("count members: %w", err)
	}
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM payments`).Scan(&payments); err != nil {
		return 0, 0, fmt.Errorf("count payments: %w", err)
	}
	return members, payments, nil
}

// ClearAll removes every member and payment in one transaction and resets the
// payment ID sequence. The period watermark survives; the next request
// re-materializes rows for whatever members exist then.
func (r *SQLiteRepository) ClearAll(ctx context.Context) error {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM payments`); err != nil {
			return fmt.Errorf("delete payments: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM members`); err != nil {
			return fmt.Errorf("delete members: %w", err)
		}
		// sqlite_sequence only exists once an AUTOINCREMENT insert happened.
		if _, err := tx.ExecContext(ctx, `DELETE FROM sqlite_sequence WHERE name = 'payments'`); err != nil && !strings.Contains(err.Error(), "no such table") {
			return fmt.Errorf("reset payment sequence: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.WarnContext(ctx, "All members and payments deleted")
	return nil
}

// Snapshot serializes the whole database through VACUUM INTO and returns the
// bytes. The temporary file must not exist beforehand, hence the timestamped
// name.
func (r *SQLiteRepository) Snapshot(ctx context.Context) ([]byte, error) {
	tmp := filepath.Join(os.TempDir(), fmt.Sprintf("cassa-backup-%d.db", time.Now().UnixNano()))
	if _, err := r.db.ExecContext(ctx, `VACUUM INTO ?`, tmp); err != nil {
		return nil, fmt.Errorf("vacuum into snapshot: %w", err)
	}
	defer os.Remove(tmp)

	data, err := os.ReadFile(tmp)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	slog.InfoContext(ctx, "Database snapshot created", "bytes", len(data))
	return data, nil
}
