package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"fsanano/foodshare/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

const maxBodyBytes = 1 << 20

var errBadBody = errors.New("invalid request body")

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errBadBody
	}
	return nil
}

// errorStatus maps service errors onto HTTP statuses. Unknown errors are logged and
// reported as a generic 500.
func errorStatus(log logrus.FieldLogger, r *http.Request, err error) (int, string) {
	switch {
	case errors.Is(err, errBadBody):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrValidation), errors.Is(err, service.ErrInvalidRole):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusNotFound, "Invalid credentials"
	case errors.Is(err, service.ErrDuplicate):
		return http.StatusConflict, "username already exists"
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "account not found"
	}

	log.WithFields(logrus.Fields{
		"request_id": middleware.GetReqID(r.Context()),
		"method":     r.Method,
		"path":       r.URL.Path,
	}).WithError(err).Error("request failed")
	return http.StatusInternalServerError, "internal server error"
}

// pathParam returns the decoded value of a route parameter. chi matches on RawPath when
// the request carries one, so the value may still be escaped.
func pathParam(r *http.Request, key string) string {
	v := chi.URLParam(r, key)
	if r.URL.RawPath != "" {
		if u, err := url.PathUnescape(v); err == nil {
			return u
		}
	}
	return v
}
