package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"productsnap/internal/domain"
	"productsnap/internal/jobs"
	"productsnap/internal/middleware"
)

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

type App struct {
	Jobs          *jobs.Service
	Checks        map[string]HealthCheck
	Logger        zerolog.Logger
	MaxUploadSize int64
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]string{"error": errCode, "message": message})
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

func (a *App) actor(r *http.Request) jobs.Actor {
	return jobs.Actor{
		UserID:    a.currentUserID(r),
		IP:        middleware.ClientIP(r),
		UserAgent: r.UserAgent(),
	}
}

// fail maps service errors onto HTTP responses.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	var admErr *jobs.AdmissionError
	switch {
	case errors.As(err, &admErr):
		a.error(w, http.StatusTooManyRequests, "quota_exceeded", admErr.Reason)
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "job not found")
	case errors.Is(err, domain.ErrInvalidMode), errors.Is(err, domain.ErrInvalidUpload):
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, domain.ErrNotCancellable), errors.Is(err, domain.ErrNotCompleted):
		a.error(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, domain.ErrNoResults):
		a.error(w, http.StatusNotFound, "not_found", err.Error())
	default:
		a.Logger.Error().Err(err).
			Str("request_id", middleware.RequestIDFromContext(r.Context())).
			Str("path", r.URL.Path).
			Msg("http: request failed")
		a.error(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}
