package web

import (
	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-attendance/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	// Create handlers
	galleryHandler := handlers.NewGalleryHandler(s.deps.Gallery)
	enrollHandler := handlers.NewEnrollHandler(s.deps.Enroller, s.deps.Metrics, galleryHandler.InvalidateCache)
	attendanceHandler := handlers.NewAttendanceHandler(s.deps.Marker, s.deps.Reporter)

	s.router.Get("/api/v1/health", handlers.HealthCheck)
	s.router.Method("GET", "/metrics", s.deps.Metrics.Handler())

	s.router.Route("/api/v1", func(r chi.Router) {
		// Enrollment
		r.Post("/enroll", enrollHandler.Enroll)
		r.Get("/gallery", galleryHandler.List)

		// Attendance
		r.Post("/attendance/mark", attendanceHandler.Mark)
		r.Get("/attendance", attendanceHandler.List)
		r.Get("/attendance/export", attendanceHandler.Export)
	})
}
