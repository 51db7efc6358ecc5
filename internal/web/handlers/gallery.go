package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// galleryCache holds the identity summaries with expiry
type galleryCache struct {
	mu        sync.RWMutex
	data      []database.IdentitySummary
	expiresAt time.Time
}

func (c *galleryCache) get() ([]database.IdentitySummary, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.data == nil || time.Now().After(c.expiresAt) {
		return nil, false
	}
	return c.data, true
}

func (c *galleryCache) set(data []database.IdentitySummary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = data
	c.expiresAt = time.Now().Add(constants.GalleryCacheTTL)
}

func (c *galleryCache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = nil
}

// GalleryHandler lists enrolled identities
type GalleryHandler struct {
	gallery database.GalleryReader
	cache   galleryCache
}

// NewGalleryHandler creates a new gallery handler
func NewGalleryHandler(gallery database.GalleryReader) *GalleryHandler {
	return &GalleryHandler{gallery: gallery}
}

// InvalidateCache clears the cached summaries so the next request reads the store
func (h *GalleryHandler) InvalidateCache() {
	h.cache.invalidate()
}

// IdentityResponse is one enrolled identity
type IdentityResponse struct {
	Name      string `json:"name"`
	StudentID string `json:"student_id"`
	Samples   int    `json:"samples"`
	Faces     int    `json:"faces"`
}

// GalleryResponse lists enrolled identities
type GalleryResponse struct {
	Identities   []IdentityResponse `json:"identities"`
	TotalSamples int                `json:"total_samples"`
}

func (h *GalleryHandler) summaries(ctx context.Context) ([]database.IdentitySummary, error) {
	if data, ok := h.cache.get(); ok {
		return data, nil
	}
	data, err := h.gallery.ListIdentities(ctx)
	if err != nil {
		return nil, err
	}
	if data == nil {
		data = []database.IdentitySummary{}
	}
	h.cache.set(data)
	return data, nil
}

// List handles GET /gallery. The optional q parameter filters identities,
// ignoring case and diacritics.
func (h *GalleryHandler) List(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.summaries(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list gallery")
		return
	}

	query := r.URL.Query().Get("q")
	resp := GalleryResponse{Identities: []IdentityResponse{}}
	for _, s := range summaries {
		if !facematch.MatchesQuery(s.Identity, query) {
			continue
		}
		resp.Identities = append(resp.Identities, IdentityResponse{
			Name:      s.Identity,
			StudentID: s.ExternalID,
			Samples:   s.SampleCount,
			Faces:     s.FaceCount,
		})
		resp.TotalSamples += s.SampleCount
	}
	respondJSON(w, http.StatusOK, resp)
}
