package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// LedgerRepository stores attendance records in PostgreSQL. The uniqueness
// of (identity, attended_on) is enforced by the table constraint.
type LedgerRepository struct {
	pool *Pool
	loc  *time.Location
}

// NewLedgerRepository creates a ledger whose dates and times are interpreted in loc.
func NewLedgerRepository(pool *Pool, loc *time.Location) *LedgerRepository {
	if loc == nil {
		loc = time.Local
	}
	return &LedgerRepository{pool: pool, loc: loc}
}

// Exists reports whether any record was ever written. The table itself is
// created by migrations, so an empty table counts as a ledger not yet in use.
func (r *LedgerRepository) Exists(ctx context.Context) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM attendance)").Scan(&exists); err != nil {
		return false, fmt.Errorf("check attendance exists: %w", err)
	}
	return exists, nil
}

// AppendUnique inserts rec unless the identity already attended that day.
func (r *LedgerRepository) AppendUnique(ctx context.Context, rec database.AttendanceRecord) (bool, error) {
	result, err := r.pool.Exec(ctx, `
		INSERT INTO attendance (identity, external_id, attended_on, attended_at, is_late)
		VALUES ($1, $2, $3::date, $4::time, $5)
		ON CONFLICT (identity, attended_on) DO NOTHING
	`, rec.Identity, rec.ExternalID, rec.Date(), rec.Time(), rec.IsLate)
	if err != nil {
		return false, fmt.Errorf("insert attendance: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// List returns records in the date range in insertion order.
func (r *LedgerRepository) List(ctx context.Context, dates database.DateRange) ([]database.AttendanceRecord, error) {
	var where []string
	var args []any
	if dates.From != "" {
		args = append(args, dates.From)
		where = append(where, fmt.Sprintf("attended_on >= $%d::date", len(args)))
	}
	if dates.To != "" {
		args = append(args, dates.To)
		where = append(where, fmt.Sprintf("attended_on <= $%d::date", len(args)))
	}

	query := `
		SELECT identity, external_id,
		       to_char(attended_on, 'YYYY-MM-DD'), to_char(attended_at, 'HH24:MI:SS'), is_late
		FROM attendance`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query attendance: %w", err)
	}
	defer rows.Close()

	var records []database.AttendanceRecord
	for rows.Next() {
		var rec database.AttendanceRecord
		var date, clock string
		if err := rows.Scan(&rec.Identity, &rec.ExternalID, &date, &clock, &rec.IsLate); err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		observed, err := time.ParseInLocation(database.DateLayout+" "+database.TimeLayout, date+" "+clock, r.loc)
		if err != nil {
			return nil, fmt.Errorf("parse attendance timestamp: %w", err)
		}
		rec.ObservedAt = observed
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance: %w", err)
	}
	return records, nil
}
