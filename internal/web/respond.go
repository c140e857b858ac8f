// Package web writes the JSON response envelope and maps sentinel errors to
// HTTP status codes.
package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/getsentry/sentry-go"

	"viewsphere/internal/errs"
)

// Envelope is the response shape for every endpoint: data is omitted on failure.
type Envelope struct {
	Status  int    `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message"`
}

func JSON(w http.ResponseWriter, status int, data any, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Envelope{Status: status, Data: data, Message: message})
}

func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, nil, message)
}

// Fail maps err to a status and user-safe message. Errors outside the
// taxonomy are reported to Sentry and surface as an opaque 500; internal
// detail never reaches the caller.
func Fail(w http.ResponseWriter, err error) {
	status, message := statusFor(err)
	if status == http.StatusInternalServerError {
		sentry.CaptureException(err)
	}
	Error(w, status, message)
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, errs.ErrBadRequest):
		return http.StatusBadRequest, "bad request"
	case errors.Is(err, errs.ErrUnauthorized), errors.Is(err, errs.ErrSessionMismatch):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, errs.ErrAlreadyExists):
		return http.StatusConflict, "already exists"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}
