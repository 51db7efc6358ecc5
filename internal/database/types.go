package database

import (
	"time"
)

// Ledger text formats shared by every backend and by export.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

// StoredSample represents one enrolled face sample in the gallery
type StoredSample struct {
	ID          string // UUID assigned at enrollment
	Identity    string // display name the sample belongs to
	ExternalID  string // student/employee number, "unknown" if it could not be derived
	SampleIndex int    // capture number within the identity
	Encoding    []float32
	Model       string
	CreatedAt   time.Time
}

// HasFace reports whether a face was detected when the sample was enrolled.
func (s *StoredSample) HasFace() bool {
	return len(s.Encoding) > 0
}

// AttendanceRecord is one ledger entry. ObservedAt carries both the calendar
// day and the time of day, in the ledger's location, at second resolution.
type AttendanceRecord struct {
	Identity   string    `json:"name"`
	ExternalID string    `json:"student_id"`
	ObservedAt time.Time `json:"observed_at"`
	IsLate     bool      `json:"is_late"`
}

// Date returns the record's calendar day as YYYY-MM-DD.
func (r *AttendanceRecord) Date() string {
	return r.ObservedAt.Format(DateLayout)
}

// Time returns the record's time of day as HH:MM:SS.
func (r *AttendanceRecord) Time() string {
	return r.ObservedAt.Format(TimeLayout)
}

// DateRange selects ledger records by calendar day. From and To are
// YYYY-MM-DD strings, both inclusive; an empty bound is open.
type DateRange struct {
	From string
	To   string
}

// Contains reports whether the given YYYY-MM-DD day lies in the range.
// The fixed-width layout makes string order equal to chronological order.
func (r DateRange) Contains(date string) bool {
	if r.From != "" && date < r.From {
		return false
	}
	if r.To != "" && date > r.To {
		return false
	}
	return true
}

// IdentitySummary describes one enrolled identity.
type IdentitySummary struct {
	Identity    string
	ExternalID  string
	SampleCount int
	FaceCount   int // samples with a detected face
}
