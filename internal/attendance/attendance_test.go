package attendance

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/csvledger"
	"github.com/kozaktomas/face-attendance/internal/database/mock"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/metrics"
)

var fixedNow = time.Date(2026, 10, 17, 10, 30, 0, 0, time.UTC)

func nowFunc() time.Time { return fixedNow }

func mustTimeOfDay(t *testing.T, s string) TimeOfDay {
	t.Helper()
	c, err := ParseTimeOfDay(s)
	if err != nil {
		t.Fatalf("ParseTimeOfDay(%q): %v", s, err)
	}
	return c
}

func at(t *testing.T, date, clock string) time.Time {
	t.Helper()
	ts, err := time.ParseInLocation("2006-01-02 15:04:05", date+" "+clock, time.UTC)
	if err != nil {
		t.Fatalf("parse %s %s: %v", date, clock, err)
	}
	return ts
}

func rec(t *testing.T, identity, date, clock string, late bool) database.AttendanceRecord {
	return database.AttendanceRecord{Identity: identity, ExternalID: "1", ObservedAt: at(t, date, clock), IsLate: late}
}

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{"00:00:00", 0, false},
		{"09:00:00", 9 * 3600, false},
		{"23:59:59", 86399, false},
		{"9:00", 0, true},
		{"25:00:00", 0, true},
		{"", 0, true},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseTimeOfDay(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Errorf("ParseTimeOfDay(%q) expected error", tc.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTimeOfDay(%q) error: %v", tc.in, err)
			}
			if got != tc.want {
				t.Errorf("ParseTimeOfDay(%q) = %d; want %d", tc.in, got, tc.want)
			}
			if got.String() != tc.in {
				t.Errorf("String() = %q; want %q", got.String(), tc.in)
			}
		})
	}
}

func TestLedger_LateClassification(t *testing.T) {
	threshold := mustTimeOfDay(t, "09:00:00")
	tests := []struct {
		clock string
		late  bool
	}{
		{"08:59:59", false},
		{"09:00:00", false},
		{"09:00:01", true},
		{"00:00:00", false},
		{"23:59:59", true},
	}
	for _, tc := range tests {
		t.Run(tc.clock, func(t *testing.T) {
			l := NewLedger(mock.NewMockLedger(), threshold, time.UTC)
			_, r, err := l.Record(context.Background(), "Alice", "1", at(t, "2026-10-17", tc.clock))
			if err != nil {
				t.Fatalf("Record() error: %v", err)
			}
			if r.IsLate != tc.late {
				t.Errorf("IsLate = %v; want %v", r.IsLate, tc.late)
			}
		})
	}
}

func TestLedger_SubsecondIsTruncated(t *testing.T) {
	l := NewLedger(mock.NewMockLedger(), mustTimeOfDay(t, "09:00:00"), time.UTC)
	observed := at(t, "2026-10-17", "09:00:00").Add(999 * time.Millisecond)
	_, r, err := l.Record(context.Background(), "Alice", "1", observed)
	if err != nil {
		t.Fatalf("Record() error: %v", err)
	}
	if r.IsLate || r.Time() != "09:00:00" {
		t.Errorf("record = %+v; want on time at 09:00:00", r)
	}
}

func TestLedger_UsesConfiguredLocation(t *testing.T) {
	prague, err := time.LoadLocation("Europe/Prague")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	l := NewLedger(mock.NewMockLedger(), mustTimeOfDay(t, "09:00:00"), prague)
	// 07:30 UTC is 09:30 in Prague during summer time
	_, r, err := l.Record(context.Background(), "Alice", "1", time.Date(2026, 7, 1, 7, 30, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Record() error: %v", err)
	}
	if r.Time() != "09:30:00" || !r.IsLate {
		t.Errorf("record = %s late=%v; want 09:30:00 late", r.Time(), r.IsLate)
	}
}

func TestLedger_RecordThenDeduplicated(t *testing.T) {
	store := mock.NewMockLedger()
	l := NewLedger(store, mustTimeOfDay(t, "09:00:00"), time.UTC)
	ctx := context.Background()

	first, _, err := l.Record(ctx, "Alice", "1", at(t, "2026-10-17", "08:00:00"))
	if err != nil {
		t.Fatalf("Record() error: %v", err)
	}
	second, r, err := l.Record(ctx, "Alice", "1", at(t, "2026-10-17", "10:00:00"))
	if err != nil {
		t.Fatalf("Record() error: %v", err)
	}
	if first != Recorded || second != Deduplicated {
		t.Errorf("outcomes = %s, %s; want recorded, deduplicated", first, second)
	}
	if r.Identity != "Alice" {
		t.Errorf("dedup record identity = %q", r.Identity)
	}

	records := store.Records()
	if len(records) != 1 {
		t.Fatalf("ledger size = %d; want 1", len(records))
	}
	if records[0].Time() != "08:00:00" || records[0].IsLate {
		t.Errorf("first record was modified: %+v", records[0])
	}

	// next day is a new record
	third, _, err := l.Record(ctx, "Alice", "1", at(t, "2026-10-18", "08:00:00"))
	if err != nil || third != Recorded {
		t.Errorf("next day = %s, %v; want recorded", third, err)
	}
}

func TestLedger_DefaultsToNow(t *testing.T) {
	store := mock.NewMockLedger()
	l := NewLedger(store, mustTimeOfDay(t, "09:00:00"), time.UTC, WithNow(nowFunc))
	_, r, err := l.Record(context.Background(), "Alice", "1", time.Time{})
	if err != nil {
		t.Fatalf("Record() error: %v", err)
	}
	if !r.ObservedAt.Equal(fixedNow) || !r.IsLate {
		t.Errorf("record = %+v; want observed at fixed now and late", r)
	}
}

func TestLedger_Errors(t *testing.T) {
	store := mock.NewMockLedger()
	l := NewLedger(store, 0, time.UTC)

	if _, _, err := l.Record(context.Background(), "", "1", fixedNow); err == nil {
		t.Error("expected error for empty identity")
	}

	store.AppendError = errors.New("disk full")
	_, _, err := l.Record(context.Background(), "Alice", "1", fixedNow)
	if !errors.Is(err, ErrLedgerIO) {
		t.Errorf("error = %v; want ErrLedgerIO", err)
	}
	if !errors.Is(err, store.AppendError) {
		t.Error("underlying error should stay inspectable")
	}
}

func TestLedger_ConcurrentSameIdentity(t *testing.T) {
	store, err := csvledger.Open(filepath.Join(t.TempDir(), "attendance.csv"), time.UTC)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	l := NewLedger(store, mustTimeOfDay(t, "09:00:00"), time.UTC)
	base := at(t, "2026-10-17", "08:00:00")

	const workers = 24
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		recorded int
	)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, _, err := l.Record(context.Background(), "Alice", "1", base.Add(time.Duration(i)*time.Minute))
			if err != nil {
				t.Errorf("Record() error: %v", err)
				return
			}
			if outcome == Recorded {
				mu.Lock()
				recorded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if recorded != 1 {
		t.Errorf("recorded %d times; want 1", recorded)
	}
	all, err := store.List(context.Background(), database.DateRange{})
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("ledger size = %d; want 1", len(all))
	}
}

func TestParseWindow(t *testing.T) {
	tests := []struct {
		in   string
		want Window
	}{
		{"today", WindowToday},
		{"Yesterday", WindowYesterday},
		{" week ", WindowWeek},
		{"month", WindowMonth},
		{"all", WindowAll},
		{"", WindowAll},
		{"fortnight", WindowAll},
	}
	for _, tc := range tests {
		if got := ParseWindow(tc.in); got != tc.want {
			t.Errorf("ParseWindow(%q) = %q; want %q", tc.in, got, tc.want)
		}
	}
}

func TestWindow_Label(t *testing.T) {
	want := map[Window]string{
		WindowToday:     "Today",
		WindowYesterday: "Yesterday",
		WindowWeek:      "Last 7 Days",
		WindowMonth:     "Last 30 Days",
		WindowAll:       "All Time",
	}
	for w, label := range want {
		if got := w.Label(); got != label {
			t.Errorf("%s.Label() = %q; want %q", w, got, label)
		}
	}
}

func TestWindow_Range(t *testing.T) {
	tests := []struct {
		window Window
		want   database.DateRange
	}{
		{WindowToday, database.DateRange{From: "2026-10-17", To: "2026-10-17"}},
		{WindowYesterday, database.DateRange{From: "2026-10-16", To: "2026-10-16"}},
		{WindowWeek, database.DateRange{From: "2026-10-10"}},
		{WindowMonth, database.DateRange{From: "2026-09-17"}},
		{WindowAll, database.DateRange{}},
	}
	for _, tc := range tests {
		t.Run(string(tc.window), func(t *testing.T) {
			if got := tc.window.Range(fixedNow, time.UTC); got != tc.want {
				t.Errorf("Range() = %+v; want %+v", got, tc.want)
			}
		})
	}
}

func TestWindow_RangeAcrossMonthStart(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	if got := WindowYesterday.Range(now, time.UTC).From; got != "2026-02-28" {
		t.Errorf("yesterday = %s; want 2026-02-28", got)
	}
}

func TestComputeStats(t *testing.T) {
	records := []database.AttendanceRecord{
		rec(t, "A", "2026-10-17", "08:00:00", false),
		rec(t, "B", "2026-10-17", "08:30:00", false),
		rec(t, "C", "2026-10-17", "09:30:00", true),
	}
	tests := []struct {
		name    string
		records []database.AttendanceRecord
		total   int
		want    Stats
	}{
		{"three of thirty", records, 30, Stats{TotalPresent: 3, OnTime: 2, Late: 1, AttendanceRate: 10.0}},
		{"rounded", records, 7, Stats{TotalPresent: 3, OnTime: 2, Late: 1, AttendanceRate: 42.9}},
		{"over hundred", records, 2, Stats{TotalPresent: 3, OnTime: 2, Late: 1, AttendanceRate: 150.0}},
		{"zero configured", records, 0, Stats{TotalPresent: 3, OnTime: 2, Late: 1}},
		{"empty", nil, 30, Stats{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ComputeStats(tc.records, tc.total); got != tc.want {
				t.Errorf("ComputeStats() = %+v; want %+v", got, tc.want)
			}
		})
	}
}

func TestReporter_Query(t *testing.T) {
	store := mock.NewMockLedger()
	store.AddRecord(rec(t, "Old", "2026-10-09", "08:00:00", false))  // 8 days back
	store.AddRecord(rec(t, "Week", "2026-10-10", "08:00:00", false)) // 7 days back
	store.AddRecord(rec(t, "Yday", "2026-10-16", "09:10:00", true))
	store.AddRecord(rec(t, "Today", "2026-10-17", "08:45:00", false))

	r := NewReporter(store, 30, time.UTC, WithNow(nowFunc))

	tests := []struct {
		window Window
		want   []string
	}{
		{WindowToday, []string{"Today"}},
		{WindowYesterday, []string{"Yday"}},
		{WindowWeek, []string{"Week", "Yday", "Today"}},
		{WindowMonth, []string{"Old", "Week", "Yday", "Today"}},
		{WindowAll, []string{"Old", "Week", "Yday", "Today"}},
	}
	for _, tc := range tests {
		t.Run(string(tc.window), func(t *testing.T) {
			report, err := r.Query(context.Background(), tc.window)
			if err != nil {
				t.Fatalf("Query() error: %v", err)
			}
			var got []string
			for _, rec := range report.Records {
				got = append(got, rec.Identity)
			}
			if strings.Join(got, ",") != strings.Join(tc.want, ",") {
				t.Errorf("Query(%s) = %v; want %v", tc.window, got, tc.want)
			}
			if report.Stats.TotalPresent != len(tc.want) {
				t.Errorf("TotalPresent = %d; want %d", report.Stats.TotalPresent, len(tc.want))
			}
			if report.Label != tc.window.Label() {
				t.Errorf("Label = %q", report.Label)
			}
		})
	}
}

func TestReporter_QueryNeverCreated(t *testing.T) {
	store := mock.NewMockLedger()
	store.ListError = errors.New("must not be called")
	r := NewReporter(store, 30, time.UTC, WithNow(nowFunc))

	report, err := r.Query(context.Background(), WindowAll)
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	if len(report.Records) != 0 || report.Stats != (Stats{}) {
		t.Errorf("report = %+v; want empty", report)
	}
}

func TestReporter_QueryLedgerError(t *testing.T) {
	store := mock.NewMockLedger()
	store.ExistsError = errors.New("permission denied")
	r := NewReporter(store, 30, time.UTC)

	if _, err := r.Query(context.Background(), WindowToday); !errors.Is(err, ErrLedgerIO) {
		t.Errorf("Query() error = %v; want ErrLedgerIO", err)
	}
}

func TestReporter_Export(t *testing.T) {
	store := mock.NewMockLedger()
	store.AddRecord(rec(t, "Jan Novák", "2026-10-17", "08:45:00", false))
	store.AddRecord(rec(t, "Eva", "2026-10-17", "09:15:30", true))
	store.AddRecord(rec(t, "Old", "2026-10-01", "08:00:00", false))
	r := NewReporter(store, 30, time.UTC, WithNow(nowFunc))

	for _, format := range []string{FormatCSV, FormatPDF} {
		t.Run(format, func(t *testing.T) {
			exp, err := r.Export(context.Background(), WindowToday, format)
			if err != nil {
				t.Fatalf("Export() error: %v", err)
			}
			want := "Name,StudentID,Date,Time,IsLate\n" +
				"Jan Novák,1,2026-10-17,08:45:00,False\n" +
				"Eva,1,2026-10-17,09:15:30,True\n"
			if string(exp.Data) != want {
				t.Errorf("Data = %q; want %q", exp.Data, want)
			}
			if exp.Filename != "attendance_today_20261017_103000.csv" {
				t.Errorf("Filename = %q", exp.Filename)
			}
			if exp.ContentType != "text/csv" {
				t.Errorf("ContentType = %q", exp.ContentType)
			}
		})
	}
}

func TestReporter_ExportEmptyWindow(t *testing.T) {
	store := mock.NewMockLedger()
	store.MarkCreated()
	r := NewReporter(store, 30, time.UTC, WithNow(nowFunc))

	exp, err := r.Export(context.Background(), WindowToday, FormatCSV)
	if err != nil {
		t.Fatalf("Export() error: %v", err)
	}
	if string(exp.Data) != "Name,StudentID,Date,Time,IsLate\n" {
		t.Errorf("Data = %q; want header only", exp.Data)
	}
}

func TestReporter_ExportErrors(t *testing.T) {
	t.Run("never created", func(t *testing.T) {
		r := NewReporter(mock.NewMockLedger(), 30, time.UTC)
		if _, err := r.Export(context.Background(), WindowAll, FormatCSV); !errors.Is(err, ErrNoRecords) {
			t.Errorf("Export() error = %v; want ErrNoRecords", err)
		}
	})

	t.Run("unsupported format before any read", func(t *testing.T) {
		store := mock.NewMockLedger()
		store.ExistsError = errors.New("must not be called")
		r := NewReporter(store, 30, time.UTC)
		_, err := r.Export(context.Background(), WindowAll, "xlsx")
		if !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("Export() error = %v; want ErrUnsupportedFormat", err)
		}
	})

	t.Run("list failure", func(t *testing.T) {
		store := mock.NewMockLedger()
		store.MarkCreated()
		store.ListError = errors.New("read failed")
		r := NewReporter(store, 30, time.UTC)
		if _, err := r.Export(context.Background(), WindowAll, FormatCSV); !errors.Is(err, ErrLedgerIO) {
			t.Errorf("Export() error = %v; want ErrLedgerIO", err)
		}
	})
}

type fakeMatcher struct {
	result gallery.Result
	err    error
}

func (f *fakeMatcher) Match(ctx context.Context, probeImage []byte) (gallery.Result, error) {
	return f.result, f.err
}

func TestService_Mark(t *testing.T) {
	store := mock.NewMockLedger()
	ledger := NewLedger(store, mustTimeOfDay(t, "09:00:00"), time.UTC, WithNow(nowFunc))
	m := &fakeMatcher{result: gallery.Result{Matched: true, Identity: "Alice", ExternalID: "1001"}}
	svc := NewService(m, ledger, metrics.New())

	res, err := svc.Mark(context.Background(), []byte("img"), time.Time{})
	if err != nil {
		t.Fatalf("Mark() error: %v", err)
	}
	if !res.Matched || res.Identity != "Alice" || res.ExternalID != "1001" || res.Outcome != Recorded {
		t.Errorf("Mark() = %+v", res)
	}
	if res.Record == nil || !res.Record.IsLate {
		t.Errorf("Record = %+v; want late record", res.Record)
	}

	res, err = svc.Mark(context.Background(), []byte("img"), time.Time{})
	if err != nil {
		t.Fatalf("Mark() error: %v", err)
	}
	if res.Outcome != Deduplicated {
		t.Errorf("second Outcome = %s; want deduplicated", res.Outcome)
	}
	if len(store.Records()) != 1 {
		t.Errorf("ledger size = %d; want 1", len(store.Records()))
	}
}

func TestService_MarkUnmatched(t *testing.T) {
	store := mock.NewMockLedger()
	svc := NewService(&fakeMatcher{}, NewLedger(store, 0, time.UTC), nil)

	res, err := svc.Mark(context.Background(), []byte("img"), fixedNow)
	if err != nil {
		t.Fatalf("Mark() error: %v", err)
	}
	if res.Matched || res.Identity != UnknownIdentity || res.ExternalID != "" {
		t.Errorf("Mark() = %+v; want Unknown", res)
	}
	if len(store.Records()) != 0 {
		t.Error("unmatched probe must not write")
	}
}

func TestService_MarkNoFace(t *testing.T) {
	store := mock.NewMockLedger()
	svc := NewService(&fakeMatcher{err: gallery.ErrNoFaceDetected}, NewLedger(store, 0, time.UTC), nil)

	_, err := svc.Mark(context.Background(), []byte("img"), fixedNow)
	if !errors.Is(err, ErrNoFaceDetected) {
		t.Errorf("Mark() error = %v; want ErrNoFaceDetected", err)
	}
	if exists, _ := store.Exists(context.Background()); exists {
		t.Error("ledger must not be touched")
	}
}

func TestService_MarkErrors(t *testing.T) {
	store := mock.NewMockLedger()
	svc := NewService(&fakeMatcher{err: errors.New("embedding server down")}, NewLedger(store, 0, time.UTC), nil)
	if _, err := svc.Mark(context.Background(), []byte("img"), fixedNow); err == nil || errors.Is(err, ErrNoFaceDetected) {
		t.Errorf("Mark() error = %v; want matcher failure", err)
	}

	store.AppendError = errors.New("disk full")
	svc = NewService(&fakeMatcher{result: gallery.Result{Matched: true, Identity: "A"}}, NewLedger(store, 0, time.UTC), nil)
	if _, err := svc.Mark(context.Background(), []byte("img"), fixedNow); !errors.Is(err, ErrLedgerIO) {
		t.Errorf("Mark() error = %v; want ErrLedgerIO", err)
	}
}
