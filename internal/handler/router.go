package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// NewRouter builds the chi router with the global middleware stack.
func NewRouter(h *RegistrationHandler, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer) // recover from panics, return 500
	r.Use(chimiddleware.RequestID) // attach request IDs
	r.Use(chimiddleware.RealIP)    // trust X-Forwarded-For
	r.Use(Logger(logger))
	r.Use(CORS)

	r.Get("/health", HealthCheck)

	r.Post("/register", h.Register)
	r.Delete("/unregister/{courseId}/{email}", h.Unregister)
	r.Get("/students/{email}/courses", h.UpcomingCourses)

	return r
}
