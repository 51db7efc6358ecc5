package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/mock"
	"github.com/kozaktomas/face-attendance/internal/gallery"
)

var testNow = time.Date(2026, 10, 17, 10, 30, 0, 0, time.UTC)

// fakeEncoder returns the configured faces for every image
type fakeEncoder struct {
	faces [][]float32
	err   error
}

func (f *fakeEncoder) EncodeFaces(ctx context.Context, imageData []byte) ([][]float32, error) {
	return f.faces, f.err
}

// testEnv wires real services over in-memory stores
type testEnv struct {
	gallery  *mock.MockGallery
	ledger   *mock.MockLedger
	encoder  *fakeEncoder
	service  *attendance.Service
	reporter *attendance.Reporter
	enroller *gallery.Enroller
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		gallery: mock.NewMockGallery(),
		ledger:  mock.NewMockLedger(),
		encoder: &fakeEncoder{},
	}
	threshold, err := attendance.ParseTimeOfDay("09:00:00")
	if err != nil {
		t.Fatalf("ParseTimeOfDay: %v", err)
	}
	now := attendance.WithNow(func() time.Time { return testNow })

	matcher := gallery.NewMatcher(env.gallery, env.encoder, 0.5)
	env.service = attendance.NewService(matcher, attendance.NewLedger(env.ledger, threshold, time.UTC, now), nil)
	env.reporter = attendance.NewReporter(env.ledger, 30, time.UTC, now)
	env.enroller = gallery.NewEnroller(env.gallery, env.encoder, "buffalo_l")
	return env
}

// multipartRequest builds a multipart POST with the given fields and an optional image part
func multipartRequest(t *testing.T, path string, fields map[string]string, image []byte) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			t.Fatalf("failed to write field: %v", err)
		}
	}
	if image != nil {
		part, err := writer.CreateFormFile("image", "capture.jpg")
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		part.Write(image)
	}
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// decodeJSON decodes a recorder body into v
func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v (body %q)", err, rec.Body.String())
	}
}

// assertStatusCode checks the HTTP status code
func assertStatusCode(t *testing.T, rec *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if rec.Code != expected {
		t.Errorf("expected status %d, got %d: %s", expected, rec.Code, rec.Body.String())
	}
}

// assertErrorMessage checks the "error" field of a JSON error response
func assertErrorMessage(t *testing.T, rec *httptest.ResponseRecorder, expected string) {
	t.Helper()
	var resp map[string]string
	decodeJSON(t, rec, &resp)
	if resp["error"] != expected {
		t.Errorf("expected error %q, got %q", expected, resp["error"])
	}
}

func record(identity, externalID string, at time.Time, late bool) database.AttendanceRecord {
	return database.AttendanceRecord{Identity: identity, ExternalID: externalID, ObservedAt: at, IsLate: late}
}
