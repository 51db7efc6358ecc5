package attendance

import (
	"strings"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// Window is a named date range resolved against the current day.
type Window string

const (
	WindowToday     Window = "today"
	WindowYesterday Window = "yesterday"
	WindowWeek      Window = "week"
	WindowMonth     Window = "month"
	WindowAll       Window = "all"
)

// ParseWindow maps a window name to a Window. Unknown or empty names fall
// back to WindowAll rather than failing.
func ParseWindow(s string) Window {
	switch w := Window(strings.ToLower(strings.TrimSpace(s))); w {
	case WindowToday, WindowYesterday, WindowWeek, WindowMonth:
		return w
	default:
		return WindowAll
	}
}

// Label returns the human readable name shown in reports.
func (w Window) Label() string {
	switch w {
	case WindowToday:
		return "Today"
	case WindowYesterday:
		return "Yesterday"
	case WindowWeek:
		return "Last 7 Days"
	case WindowMonth:
		return "Last 30 Days"
	default:
		return "All Time"
	}
}

// Range resolves the window to inclusive calendar-day bounds, taking today
// from now in loc. week and month have no upper bound.
func (w Window) Range(now time.Time, loc *time.Location) database.DateRange {
	local := now.In(loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	day := func(offset int) string {
		return today.AddDate(0, 0, offset).Format(database.DateLayout)
	}

	switch w {
	case WindowToday:
		return database.DateRange{From: day(0), To: day(0)}
	case WindowYesterday:
		return database.DateRange{From: day(-1), To: day(-1)}
	case WindowWeek:
		return database.DateRange{From: day(-7)}
	case WindowMonth:
		return database.DateRange{From: day(-30)}
	default:
		return database.DateRange{}
	}
}
