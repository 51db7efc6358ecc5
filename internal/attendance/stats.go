package attendance

import (
	"math"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// Stats summarises a filtered set of records.
type Stats struct {
	TotalPresent   int     `json:"total_present"`
	OnTime         int     `json:"on_time"`
	Late           int     `json:"late"`
	AttendanceRate float64 `json:"attendance_rate"` // percent, one decimal, may exceed 100
}

// ComputeStats counts records against the configured class size.
func ComputeStats(records []database.AttendanceRecord, totalStudents int) Stats {
	var s Stats
	for i := range records {
		s.TotalPresent++
		if records[i].IsLate {
			s.Late++
		} else {
			s.OnTime++
		}
	}
	if totalStudents > 0 {
		rate := float64(s.TotalPresent) / float64(totalStudents) * 100
		s.AttendanceRate = math.Round(rate*10) / 10
	}
	return s
}
