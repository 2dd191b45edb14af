// Package server provides the HTTP REST API for the session service.
package server

import (
	"errors"
	"net/http"

	"github.com/jonathan/cvperfect-sessions/internal/session"
)

// HTTPStatus returns the appropriate HTTP status code for an error.
// Expired sessions map to 410 rather than 404 so clients can tell a
// swept session apart from a bad id.
func HTTPStatus(err error) int {
	var verr *session.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrInvalidIDFormat):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrExpired):
		return http.StatusGone
	case errors.Is(err, session.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
