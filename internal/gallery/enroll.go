package gallery

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// ErrInvalidSample is returned for enrollment requests that cannot be stored.
var ErrInvalidSample = errors.New("invalid sample")

// EnrollRequest is one captured sample of an identity.
type EnrollRequest struct {
	Identity    string
	ExternalID  string
	SampleIndex int
	Image       []byte
}

// Enroller stores new gallery samples.
type Enroller struct {
	gallery database.GalleryWriter
	encoder FaceEncoder
	model   string
}

// NewEnroller creates an enroller recording model as the encoding model name.
func NewEnroller(gallery database.GalleryWriter, encoder FaceEncoder, model string) *Enroller {
	return &Enroller{gallery: gallery, encoder: encoder, model: model}
}

// Enroll encodes and stores one sample. An image without a face is still
// stored, without an encoding, and the returned sample reports HasFace false.
// Only the first detected face of a sample is kept.
func (e *Enroller) Enroll(ctx context.Context, req EnrollRequest) (database.StoredSample, error) {
	identity := facematch.CanonicalIdentity(req.Identity)
	if identity == "" {
		return database.StoredSample{}, fmt.Errorf("%w: identity is required", ErrInvalidSample)
	}
	if req.SampleIndex < 0 {
		return database.StoredSample{}, fmt.Errorf("%w: sample index must not be negative", ErrInvalidSample)
	}
	if len(req.Image) == 0 {
		return database.StoredSample{}, fmt.Errorf("%w: image is empty", ErrInvalidSample)
	}

	externalID := req.ExternalID
	if externalID == "" {
		externalID = facematch.UnknownExternalID
	}

	encodings, err := e.encoder.EncodeFaces(ctx, req.Image)
	if err != nil {
		return database.StoredSample{}, fmt.Errorf("encode sample: %w", err)
	}

	sample := database.StoredSample{
		ID:          uuid.NewString(),
		Identity:    identity,
		ExternalID:  externalID,
		SampleIndex: req.SampleIndex,
		Model:       e.model,
	}
	if len(encodings) > 0 {
		sample.Encoding = encodings[0]
	}

	if err := e.gallery.SaveSample(ctx, sample); err != nil {
		return database.StoredSample{}, fmt.Errorf("save sample: %w", err)
	}
	return sample, nil
}
