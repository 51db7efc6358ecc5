// Package gallery resolves probe images to enrolled identities and manages
// enrollment of new samples.
package gallery

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log"
	"slices"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/fingerprint"
)

// ErrNoFaceDetected is returned when the probe image contains no face.
var ErrNoFaceDetected = errors.New("no face detected")

// FaceEncoder turns an image into one encoding per detected face.
type FaceEncoder interface {
	EncodeFaces(ctx context.Context, imageData []byte) ([][]float32, error)
}

// MatchFunc decides whether a known encoding and a probe encoding belong to
// the same person.
type MatchFunc func(known, probe []float32, tolerance float64) bool

// Result is the outcome of a match. Identity and ExternalID are empty when
// Matched is false.
type Result struct {
	Matched    bool
	Identity   string
	ExternalID string
	SampleID   string
	Scanned    int // samples compared before the scan stopped
}

// Matcher scans the gallery in a fixed order and stops at the first sample
// that matches. It never ranks candidates: when two identities both fall
// within tolerance, the one earlier in scan order wins.
type Matcher struct {
	gallery   database.GalleryReader
	encoder   FaceEncoder
	match     MatchFunc
	tolerance float64
}

// MatcherOption configures a Matcher.
type MatcherOption func(*Matcher)

// WithMatchFunc replaces the default cosine-distance predicate.
func WithMatchFunc(fn MatchFunc) MatcherOption {
	return func(m *Matcher) {
		m.match = fn
	}
}

// NewMatcher creates a matcher over the given gallery.
func NewMatcher(gallery database.GalleryReader, encoder FaceEncoder, tolerance float64, opts ...MatcherOption) *Matcher {
	m := &Matcher{
		gallery:   gallery,
		encoder:   encoder,
		match:     fingerprint.FacesMatch,
		tolerance: tolerance,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Match encodes the probe image and resolves its first face. It fails with
// ErrNoFaceDetected when the image has no face.
func (m *Matcher) Match(ctx context.Context, probeImage []byte) (Result, error) {
	encodings, err := m.encoder.EncodeFaces(ctx, probeImage)
	if err != nil {
		return Result{}, fmt.Errorf("encode probe: %w", err)
	}
	if len(encodings) == 0 {
		return Result{}, ErrNoFaceDetected
	}
	return m.MatchEncoding(ctx, encodings[0])
}

// MatchEncoding resolves an already computed probe encoding.
func (m *Matcher) MatchEncoding(ctx context.Context, probe []float32) (Result, error) {
	samples, err := m.gallery.ListSamples(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list gallery samples: %w", err)
	}
	SortSamples(samples)

	var res Result
	for i := range samples {
		s := &samples[i]
		if !s.HasFace() {
			continue
		}
		if len(s.Encoding) != len(probe) {
			log.Printf("gallery: skipping sample %s of %q: encoding has %d dimensions, probe has %d",
				s.ID, s.Identity, len(s.Encoding), len(probe))
			continue
		}
		res.Scanned++
		if m.match(s.Encoding, probe, m.tolerance) {
			res.Matched = true
			res.Identity = s.Identity
			res.ExternalID = s.ExternalID
			res.SampleID = s.ID
			return res, nil
		}
	}
	return res, nil
}

// SortSamples puts samples in scan order: identity (byte-wise), then sample
// index, then ID. The order is total, so it never depends on how a store
// happened to return rows.
func SortSamples(samples []database.StoredSample) {
	slices.SortFunc(samples, func(a, b database.StoredSample) int {
		return cmp.Or(
			cmp.Compare(a.Identity, b.Identity),
			cmp.Compare(a.SampleIndex, b.SampleIndex),
			cmp.Compare(a.ID, b.ID),
		)
	})
}
