package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/database"
)

const (
	errNoFaceDetected = "No face detected. Please try again."
	errNoRecords      = "No attendance records found"
)

// Marker marks attendance from a probe image.
type Marker interface {
	Mark(ctx context.Context, probeImage []byte, observedAt time.Time) (*attendance.MarkResult, error)
}

// Reporter answers attendance queries and exports.
type Reporter interface {
	Query(ctx context.Context, w attendance.Window) (*attendance.Report, error)
	Export(ctx context.Context, w attendance.Window, format string) (*attendance.Export, error)
}

// AttendanceHandler handles marking, querying and exporting attendance.
type AttendanceHandler struct {
	marker   Marker
	reporter Reporter
}

// NewAttendanceHandler creates a new attendance handler.
func NewAttendanceHandler(marker Marker, reporter Reporter) *AttendanceHandler {
	return &AttendanceHandler{
		marker:   marker,
		reporter: reporter,
	}
}

// RecordResponse is one ledger record in API responses.
type RecordResponse struct {
	Name      string `json:"name"`
	StudentID string `json:"student_id"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	IsLate    bool   `json:"is_late"`
}

func newRecordResponse(r *database.AttendanceRecord) RecordResponse {
	return RecordResponse{
		Name:      r.Identity,
		StudentID: r.ExternalID,
		Date:      r.Date(),
		Time:      r.Time(),
		IsLate:    r.IsLate,
	}
}

// MarkResponse is the result of a mark request. Status is "recorded",
// "deduplicated" or "unmatched".
type MarkResponse struct {
	Name      string `json:"name"`
	StudentID string `json:"student_id"`
	Status    string `json:"status"`
	Date      string `json:"date,omitempty"`
	Time      string `json:"time,omitempty"`
	IsLate    bool   `json:"is_late"`
}

// Mark handles POST /attendance/mark.
func (h *AttendanceHandler) Mark(w http.ResponseWriter, r *http.Request) {
	image, err := readFormImage(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var observedAt time.Time
	if s := r.FormValue("observed_at"); s != "" {
		observedAt, err = time.Parse(time.RFC3339, s)
		if err != nil {
			respondError(w, http.StatusBadRequest, "observed_at must be an RFC 3339 timestamp")
			return
		}
	}

	res, err := h.marker.Mark(r.Context(), image, observedAt)
	if err != nil {
		if errors.Is(err, attendance.ErrNoFaceDetected) {
			respondError(w, http.StatusUnprocessableEntity, errNoFaceDetected)
			return
		}
		log.Printf("attendance: mark failed: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to mark attendance")
		return
	}

	resp := MarkResponse{
		Name:      res.Identity,
		StudentID: res.ExternalID,
		Status:    "unmatched",
	}
	if res.Matched {
		resp.Status = string(res.Outcome)
		resp.Date = res.Record.Date()
		resp.Time = res.Record.Time()
		resp.IsLate = res.Record.IsLate
		log.Printf("attendance: %s for %s", res.Outcome, sanitizeForLog(res.Identity))
	}
	respondJSON(w, http.StatusOK, resp)
}

// ReportResponse is the result of an attendance query.
type ReportResponse struct {
	Period  string           `json:"period"`
	Label   string           `json:"label"`
	Records []RecordResponse `json:"records"`
	Stats   attendance.Stats `json:"stats"`
}

// List handles GET /attendance?period=.
func (h *AttendanceHandler) List(w http.ResponseWriter, r *http.Request) {
	window := attendance.ParseWindow(periodParam(r))

	report, err := h.reporter.Query(r.Context(), window)
	if err != nil {
		log.Printf("attendance: query %s failed: %v", window, err)
		respondError(w, http.StatusInternalServerError, "failed to read attendance")
		return
	}

	resp := ReportResponse{
		Period:  string(report.Window),
		Label:   report.Label,
		Records: make([]RecordResponse, 0, len(report.Records)),
		Stats:   report.Stats,
	}
	for i := range report.Records {
		resp.Records = append(resp.Records, newRecordResponse(&report.Records[i]))
	}
	respondJSON(w, http.StatusOK, resp)
}

// Export handles GET /attendance/export?period=&format=.
func (h *AttendanceHandler) Export(w http.ResponseWriter, r *http.Request) {
	window := attendance.ParseWindow(periodParam(r))
	format := r.URL.Query().Get("format")
	if format == "" {
		format = attendance.FormatCSV
	}

	exp, err := h.reporter.Export(r.Context(), window, format)
	if err != nil {
		switch {
		case errors.Is(err, attendance.ErrUnsupportedFormat):
			respondError(w, http.StatusBadRequest, "Unsupported format")
		case errors.Is(err, attendance.ErrNoRecords):
			respondError(w, http.StatusNotFound, errNoRecords)
		default:
			log.Printf("attendance: export %s failed: %v", window, err)
			respondError(w, http.StatusInternalServerError, "failed to export attendance")
		}
		return
	}

	w.Header().Set("Content-Type", exp.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+exp.Filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(exp.Data)))
	w.WriteHeader(http.StatusOK)
	w.Write(exp.Data)
}

func periodParam(r *http.Request) string {
	if p := r.URL.Query().Get("period"); p != "" {
		return p
	}
	return string(attendance.WindowToday)
}
