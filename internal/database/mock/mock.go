// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// MockGallery is an in-memory implementation of database.GalleryWriter
type MockGallery struct {
	mu      sync.RWMutex
	samples []database.StoredSample

	// Error injection
	ListError   error
	SaveError   error
	DeleteError error
}

// NewMockGallery creates a new mock gallery
func NewMockGallery() *MockGallery {
	return &MockGallery{}
}

// AddSample adds a sample to the mock store without ordering it
func (m *MockGallery) AddSample(s database.StoredSample) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = append(m.samples, s)
}

// ListSamples returns the samples in insertion order. Callers that need scan
// order must sort; this lets tests check that they do.
func (m *MockGallery) ListSamples(ctx context.Context) ([]database.StoredSample, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.samples), nil
}

// ListIdentities returns one summary per identity
func (m *MockGallery) ListIdentities(ctx context.Context) ([]database.IdentitySummary, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	byIdentity := make(map[string]*database.IdentitySummary)
	for _, s := range m.samples {
		sum, ok := byIdentity[s.Identity]
		if !ok {
			sum = &database.IdentitySummary{Identity: s.Identity, ExternalID: s.ExternalID}
			byIdentity[s.Identity] = sum
		}
		sum.SampleCount++
		if s.HasFace() {
			sum.FaceCount++
		}
	}

	out := make([]database.IdentitySummary, 0, len(byIdentity))
	for _, sum := range byIdentity {
		out = append(out, *sum)
	}
	slices.SortFunc(out, func(a, b database.IdentitySummary) int { return cmp.Compare(a.Identity, b.Identity) })
	return out, nil
}

// CountSamples returns the number of stored samples
func (m *MockGallery) CountSamples(ctx context.Context) (int, error) {
	if m.ListError != nil {
		return 0, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.samples), nil
}

// SaveSample stores a sample, replacing one with the same identity and index
func (m *MockGallery) SaveSample(ctx context.Context, s database.StoredSample) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.samples {
		if m.samples[i].Identity == s.Identity && m.samples[i].SampleIndex == s.SampleIndex {
			m.samples[i] = s
			return nil
		}
	}
	m.samples = append(m.samples, s)
	return nil
}

// DeleteIdentity removes all samples of an identity
func (m *MockGallery) DeleteIdentity(ctx context.Context, identity string) (int, error) {
	if m.DeleteError != nil {
		return 0, m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	before := len(m.samples)
	m.samples = slices.DeleteFunc(m.samples, func(s database.StoredSample) bool { return s.Identity == identity })
	return before - len(m.samples), nil
}

// MockLedger is an in-memory implementation of database.LedgerWriter
type MockLedger struct {
	mu      sync.Mutex
	records []database.AttendanceRecord
	created bool

	// Error injection
	ExistsError error
	ListError   error
	AppendError error
}

// NewMockLedger creates a ledger that has not been created yet
func NewMockLedger() *MockLedger {
	return &MockLedger{}
}

// AddRecord appends a record without the uniqueness check
func (m *MockLedger) AddRecord(r database.AttendanceRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = true
	m.records = append(m.records, r)
}

// MarkCreated makes Exists report true for an otherwise empty ledger
func (m *MockLedger) MarkCreated() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = true
}

// Records returns a copy of all records
func (m *MockLedger) Records() []database.AttendanceRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.records)
}

// Exists reports whether anything was written
func (m *MockLedger) Exists(ctx context.Context) (bool, error) {
	if m.ExistsError != nil {
		return false, m.ExistsError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.created, nil
}

// List returns the records in the range
func (m *MockLedger) List(ctx context.Context, dates database.DateRange) ([]database.AttendanceRecord, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []database.AttendanceRecord
	for _, r := range m.records {
		if dates.Contains(r.Date()) {
			out = append(out, r)
		}
	}
	return out, nil
}

// AppendUnique appends unless (identity, date) exists
func (m *MockLedger) AppendUnique(ctx context.Context, rec database.AttendanceRecord) (bool, error) {
	if m.AppendError != nil {
		return false, m.AppendError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = true
	for _, r := range m.records {
		if r.Identity == rec.Identity && r.Date() == rec.Date() {
			return false, nil
		}
	}
	m.records = append(m.records, rec)
	return true, nil
}
