// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Face matching constants
const (
	// DefaultMatchTolerance is the default maximum cosine distance for a gallery match.
	// Lower values = stricter matching
	DefaultMatchTolerance = 0.5

	// MaxImageSize is the maximum dimension (width or height) of a probe sent for encoding
	MaxImageSize = 1920
)

// Upload constants
const (
	// MaxUploadSize is the maximum size of a multipart request (32 MB)
	MaxUploadSize = 32 << 20
)

// Cache constants
const (
	// GalleryCacheTTL is how long the gallery summary is served from memory
	GalleryCacheTTL = time.Minute
)

// Bulk import constants
const (
	// ImportWorkers is the number of samples encoded in parallel by enroll import
	ImportWorkers = 4
)
