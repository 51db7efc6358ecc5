// Package attendance records one attendance event per identity per day and
// answers windowed queries over the resulting ledger.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// Outcome is the result of recording attendance.
type Outcome string

const (
	Recorded     Outcome = "recorded"
	Deduplicated Outcome = "deduplicated" // already recorded for that day, nothing written
)

// Option configures a Ledger or a Reporter.
type Option func(*clock)

// WithNow replaces time.Now as the source of the current time.
func WithNow(now func() time.Time) Option {
	return func(c *clock) {
		c.now = now
	}
}

type clock struct {
	loc *time.Location
	now func() time.Time
}

func newClock(loc *time.Location, opts []Option) clock {
	if loc == nil {
		loc = time.Local
	}
	c := clock{loc: loc, now: time.Now}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Ledger applies the attendance policy on top of a ledger store: lateness
// classification and one record per identity and day.
type Ledger struct {
	store         database.LedgerWriter
	lateThreshold TimeOfDay
	clock
}

// NewLedger creates a Ledger. Dates and times are taken in loc.
func NewLedger(store database.LedgerWriter, lateThreshold TimeOfDay, loc *time.Location, opts ...Option) *Ledger {
	return &Ledger{
		store:         store,
		lateThreshold: lateThreshold,
		clock:         newClock(loc, opts),
	}
}

// Record stores an attendance event for identity observed at observedAt, or
// now when observedAt is zero. A second call for the same identity and day
// returns Deduplicated and the earlier record stays untouched.
func (l *Ledger) Record(ctx context.Context, identity, externalID string, observedAt time.Time) (Outcome, database.AttendanceRecord, error) {
	if identity == "" {
		return "", database.AttendanceRecord{}, errors.New("identity is required")
	}
	if observedAt.IsZero() {
		observedAt = l.now()
	}
	at := observedAt.In(l.loc).Truncate(time.Second)

	rec := database.AttendanceRecord{
		Identity:   identity,
		ExternalID: externalID,
		ObservedAt: at,
		IsLate:     TimeOfDayOf(at).After(l.lateThreshold),
	}

	appended, err := l.store.AppendUnique(ctx, rec)
	if err != nil {
		return "", database.AttendanceRecord{}, fmt.Errorf("%w: append record: %w", ErrLedgerIO, err)
	}
	if !appended {
		return Deduplicated, rec, nil
	}
	return Recorded, rec, nil
}
