package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorder_ObserveMark(t *testing.T) {
	r := New()
	r.ObserveMark(OutcomeRecorded, true)
	r.ObserveMark(OutcomeRecorded, false)
	r.ObserveMark(OutcomeDeduplicated, true)
	r.ObserveMark(OutcomeUnmatched, false)

	if got := testutil.ToFloat64(r.marks.WithLabelValues(OutcomeRecorded)); got != 2 {
		t.Errorf("recorded = %v; want 2", got)
	}
	if got := testutil.ToFloat64(r.marks.WithLabelValues(OutcomeDeduplicated)); got != 1 {
		t.Errorf("deduplicated = %v; want 1", got)
	}
	// late only counts for recorded marks
	if got := testutil.ToFloat64(r.lateMarks); got != 1 {
		t.Errorf("late = %v; want 1", got)
	}
}

func TestRecorder_ObserveEnrollment(t *testing.T) {
	r := New()
	r.ObserveEnrollment(true)
	r.ObserveEnrollment(true)
	r.ObserveEnrollment(false)

	if got := testutil.ToFloat64(r.enrollments.WithLabelValues("yes")); got != 2 {
		t.Errorf("yes = %v; want 2", got)
	}
	if got := testutil.ToFloat64(r.enrollments.WithLabelValues("no")); got != 1 {
		t.Errorf("no = %v; want 1", got)
	}
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *Recorder
	r.ObserveMark(OutcomeRecorded, true)
	r.ObserveMatch(time.Second, 3)
	r.ObserveEnrollment(true)
	r.ObserveHTTP("/", "GET", "200", time.Millisecond)
	if r.Registry() != nil {
		t.Error("nil recorder should have no registry")
	}

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d; want 404", rec.Code)
	}
}

func TestRecorder_Handler(t *testing.T) {
	r := New(WithNamespace("test"))
	r.ObserveHTTP("/api/v1/health", "GET", "200", 5*time.Millisecond)
	r.ObserveMatch(20*time.Millisecond, 4)

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, want := range []string{
		`test_http_requests_total{method="GET",route="/api/v1/health",status="200"} 1`,
		"test_match_duration_seconds_count 1",
		"test_match_samples_scanned_sum 4",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
