package database

import (
	"context"
)

// GalleryReader provides read-only access to enrolled samples
type GalleryReader interface {
	// ListSamples returns every enrolled sample ordered by identity, sample index, then ID
	ListSamples(ctx context.Context) ([]StoredSample, error)
	// ListIdentities returns one summary per enrolled identity, ordered by identity
	ListIdentities(ctx context.Context) ([]IdentitySummary, error)
	// CountSamples returns the total number of samples stored
	CountSamples(ctx context.Context) (int, error)
}

// GalleryWriter provides write access to enrolled samples
type GalleryWriter interface {
	GalleryReader

	// SaveSample stores a sample, replacing any sample with the same identity and sample index
	SaveSample(ctx context.Context, sample StoredSample) error

	// DeleteIdentity removes every sample of an identity and returns how many were removed
	DeleteIdentity(ctx context.Context, identity string) (int, error)
}

// LedgerReader provides read-only access to the attendance ledger
type LedgerReader interface {
	// Exists reports whether the ledger has been created
	Exists(ctx context.Context) (bool, error)
	// List returns the records whose date lies in the range, in insertion order
	List(ctx context.Context, dates DateRange) ([]AttendanceRecord, error)
}

// LedgerWriter provides append access to the attendance ledger
type LedgerWriter interface {
	LedgerReader

	// AppendUnique appends rec unless a record with the same identity and date
	// already exists. The check and the write are a single atomic step with
	// respect to every other writer. Returns true when rec was appended.
	AppendUnique(ctx context.Context, rec AttendanceRecord) (bool, error)
}
