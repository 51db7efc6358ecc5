package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/metrics"
)

// UnknownIdentity is reported for probes that match nobody.
const UnknownIdentity = "Unknown"

// Matcher resolves a probe image to an enrolled identity.
type Matcher interface {
	Match(ctx context.Context, probeImage []byte) (gallery.Result, error)
}

// MarkResult describes a mark attempt. Outcome and Record are only set when
// the probe matched.
type MarkResult struct {
	Matched    bool
	Identity   string
	ExternalID string
	Outcome    Outcome
	Record     *database.AttendanceRecord
}

// Service marks attendance from probe images.
type Service struct {
	matcher Matcher
	ledger  *Ledger
	metrics *metrics.Recorder
}

// NewService creates a Service. m may be nil.
func NewService(matcher Matcher, ledger *Ledger, m *metrics.Recorder) *Service {
	return &Service{matcher: matcher, ledger: ledger, metrics: m}
}

// Mark matches the probe and records attendance for the resolved identity.
// A probe without a face fails with ErrNoFaceDetected and the ledger is not
// touched. An unmatched probe is not an error.
func (s *Service) Mark(ctx context.Context, probeImage []byte, observedAt time.Time) (*MarkResult, error) {
	start := time.Now()
	match, err := s.matcher.Match(ctx, probeImage)
	s.metrics.ObserveMatch(time.Since(start), match.Scanned)
	if err != nil {
		if errors.Is(err, ErrNoFaceDetected) {
			s.metrics.ObserveMark(metrics.OutcomeNoFace, false)
			return nil, err
		}
		s.metrics.ObserveMark(metrics.OutcomeError, false)
		return nil, fmt.Errorf("match probe: %w", err)
	}

	if !match.Matched {
		s.metrics.ObserveMark(metrics.OutcomeUnmatched, false)
		return &MarkResult{Identity: UnknownIdentity}, nil
	}

	outcome, rec, err := s.ledger.Record(ctx, match.Identity, match.ExternalID, observedAt)
	if err != nil {
		s.metrics.ObserveMark(metrics.OutcomeError, false)
		return nil, err
	}
	s.metrics.ObserveMark(string(outcome), rec.IsLate)

	return &MarkResult{
		Matched:    true,
		Identity:   match.Identity,
		ExternalID: match.ExternalID,
		Outcome:    outcome,
		Record:     &rec,
	}, nil
}
