package attendance

import (
	"fmt"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// TimeOfDay is a wall-clock time within a single day, in seconds since midnight.
type TimeOfDay int

// ParseTimeOfDay parses an HH:MM:SS string.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse(database.TimeLayout, s)
	if err != nil {
		return 0, fmt.Errorf("parse time of day %q: %w", s, err)
	}
	return TimeOfDayOf(t), nil
}

// TimeOfDayOf returns the wall-clock time of t in t's own location, ignoring
// anything below a second.
func TimeOfDayOf(t time.Time) TimeOfDay {
	h, m, s := t.Clock()
	return TimeOfDay(h*3600 + m*60 + s)
}

func (c TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", int(c)/3600, int(c)%3600/60, int(c)%60)
}

// After reports whether c is strictly later than other.
func (c TimeOfDay) After(other TimeOfDay) bool {
	return c > other
}
