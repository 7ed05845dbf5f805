// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/Shivanand-hulikatti/course-registration/internal/model"
	"github.com/Shivanand-hulikatti/course-registration/internal/service"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// RegistrationHandler holds all HTTP handlers for the registration API.
type RegistrationHandler struct {
	svc    *service.RegistrationService
	logger *zap.Logger
}

// NewRegistrationHandler constructs a RegistrationHandler.
func NewRegistrationHandler(svc *service.RegistrationService, logger *zap.Logger) *RegistrationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegistrationHandler{svc: svc, logger: logger}
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// writeServiceError maps domain failures to client errors and hides
// everything else behind a 500.
func (h *RegistrationHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var domainErr *model.Error
	switch {
	case errors.Is(err, model.ErrNotFound) && errors.As(err, &domainErr):
		writeError(w, http.StatusNotFound, domainErr.Message)
	case errors.Is(err, model.ErrInvalidOperation) && errors.As(err, &domainErr):
		writeError(w, http.StatusConflict, domainErr.Message)
	default:
		h.logger.Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// emailParam returns the {email} path parameter. chi matches on RawPath when
// the request carries one, and only then is the parameter still escaped.
func emailParam(r *http.Request) (string, error) {
	email := chi.URLParam(r, "email")
	if r.URL.RawPath == "" {
		return email, nil
	}
	return url.PathUnescape(email)
}

// ─── Handlers ─────────────────────────────────────────────────────────────────

// Register handles POST /register
// Registers the student for the course and returns their upcoming courses.
func (h *RegistrationHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	courses, err := h.svc.Register(r.Context(), req.Email, req.CourseID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, courses)
}

// Unregister handles DELETE /unregister/{courseId}/{email}
// Removes the registration and responds with an empty body.
func (h *RegistrationHandler) Unregister(w http.ResponseWriter, r *http.Request) {
	courseID, err := strconv.ParseInt(chi.URLParam(r, "courseId"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "course id must be an integer")
		return
	}
	email, err := emailParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid email")
		return
	}

	if err := h.svc.Unregister(r.Context(), courseID, email); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UpcomingCourses handles GET /students/{email}/courses
// Returns the courses the student is registered for that have not started.
func (h *RegistrationHandler) UpcomingCourses(w http.ResponseWriter, r *http.Request) {
	email, err := emailParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid email")
		return
	}

	courses, err := h.svc.UpcomingCourses(r.Context(), email)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, courses)
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
