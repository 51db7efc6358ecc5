package attendance

import (
	"errors"

	"github.com/kozaktomas/face-attendance/internal/gallery"
)

var (
	// ErrNoFaceDetected is returned when a probe image has no face.
	ErrNoFaceDetected = gallery.ErrNoFaceDetected

	// ErrLedgerIO wraps any failure to read or write the ledger.
	ErrLedgerIO = errors.New("ledger i/o")

	// ErrUnsupportedFormat is returned for an unknown export format.
	ErrUnsupportedFormat = errors.New("unsupported export format")

	// ErrNoRecords is returned when exporting a ledger that was never created.
	ErrNoRecords = errors.New("no attendance records")
)
