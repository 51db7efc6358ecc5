package attendance

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/csvledger"
)

// Export formats. FormatPDF is accepted but produces the same CSV text.
const (
	FormatCSV = "csv"
	FormatPDF = "pdf"
)

const exportTimestampLayout = "20060102_150405"

// Report is the result of a windowed query.
type Report struct {
	Window  Window                      `json:"period"`
	Label   string                      `json:"label"`
	Records []database.AttendanceRecord `json:"records"`
	Stats   Stats                       `json:"stats"`
}

// Export is a serialized report ready to be written out.
type Export struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Reporter answers read-only queries over the ledger.
type Reporter struct {
	store         database.LedgerReader
	totalStudents int
	clock
}

// NewReporter creates a Reporter. totalStudents is the denominator of the
// attendance rate.
func NewReporter(store database.LedgerReader, totalStudents int, loc *time.Location, opts ...Option) *Reporter {
	return &Reporter{
		store:         store,
		totalStudents: totalStudents,
		clock:         newClock(loc, opts),
	}
}

// Query returns the records in the window with their stats. A ledger that
// was never created yields an empty report.
func (r *Reporter) Query(ctx context.Context, w Window) (*Report, error) {
	report := &Report{Window: w, Label: w.Label()}

	exists, err := r.store.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: check ledger: %w", ErrLedgerIO, err)
	}
	if exists {
		records, err := r.store.List(ctx, w.Range(r.now(), r.loc))
		if err != nil {
			return nil, fmt.Errorf("%w: list records: %w", ErrLedgerIO, err)
		}
		report.Records = records
	}
	report.Stats = ComputeStats(report.Records, r.totalStudents)
	return report, nil
}

// Export serializes the window as CSV. An unknown format is rejected before
// the ledger is read.
func (r *Reporter) Export(ctx context.Context, w Window, format string) (*Export, error) {
	switch format {
	case FormatCSV, FormatPDF:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	exists, err := r.store.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: check ledger: %w", ErrLedgerIO, err)
	}
	if !exists {
		return nil, ErrNoRecords
	}

	now := r.now()
	records, err := r.store.List(ctx, w.Range(now, r.loc))
	if err != nil {
		return nil, fmt.Errorf("%w: list records: %w", ErrLedgerIO, err)
	}

	var buf bytes.Buffer
	if err := csvledger.Encode(&buf, records); err != nil {
		return nil, fmt.Errorf("encode export: %w", err)
	}

	return &Export{
		Filename:    fmt.Sprintf("attendance_%s_%s.csv", w, now.In(r.loc).Format(exportTimestampLayout)),
		ContentType: "text/csv",
		Data:        buf.Bytes(),
	}, nil
}
