package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/metrics"
)

// Enroller stores gallery samples.
type Enroller interface {
	Enroll(ctx context.Context, req gallery.EnrollRequest) (database.StoredSample, error)
}

// EnrollHandler handles enrollment of new samples.
type EnrollHandler struct {
	enroller Enroller
	metrics  *metrics.Recorder
	onEnroll func()
}

// NewEnrollHandler creates a new enroll handler. onEnroll, when set, runs
// after every stored sample.
func NewEnrollHandler(enroller Enroller, m *metrics.Recorder, onEnroll func()) *EnrollHandler {
	return &EnrollHandler{
		enroller: enroller,
		metrics:  m,
		onEnroll: onEnroll,
	}
}

// EnrollResponse describes a stored sample.
type EnrollResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	StudentID    string `json:"student_id"`
	SampleIndex  int    `json:"sample_index"`
	FaceDetected bool   `json:"face_detected"`
	Message      string `json:"message,omitempty"`
}

// Enroll handles POST /enroll with multipart fields name, studentId,
// imageCount and image.
func (h *EnrollHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	image, err := readFormImage(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	name := r.FormValue("name")
	if strings.TrimSpace(name) == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	index, err := strconv.Atoi(r.FormValue("imageCount"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "imageCount must be a number")
		return
	}

	sample, err := h.enroller.Enroll(r.Context(), gallery.EnrollRequest{
		Identity:    name,
		ExternalID:  strings.TrimSpace(r.FormValue("studentId")),
		SampleIndex: index,
		Image:       image,
	})
	if err != nil {
		if errors.Is(err, gallery.ErrInvalidSample) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("enroll: failed for %s: %v", sanitizeForLog(name), err)
		respondError(w, http.StatusInternalServerError, "failed to enroll sample")
		return
	}

	h.metrics.ObserveEnrollment(sample.HasFace())
	if h.onEnroll != nil {
		h.onEnroll()
	}

	resp := EnrollResponse{
		ID:           sample.ID,
		Name:         sample.Identity,
		StudentID:    sample.ExternalID,
		SampleIndex:  sample.SampleIndex,
		FaceDetected: sample.HasFace(),
	}
	if !resp.FaceDetected {
		resp.Message = "Sample stored, but no face was detected in it."
	}
	respondJSON(w, http.StatusCreated, resp)
}
