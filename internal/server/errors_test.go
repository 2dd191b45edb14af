package server

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/cvperfect-sessions/internal/session"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"validation error", &session.ValidationError{Field: "Email", Message: "invalid"}, http.StatusBadRequest},
		{"invalid id format", session.ErrInvalidIDFormat, http.StatusBadRequest},
		{"wrapped invalid id", fmt.Errorf("lookup: %w", session.ErrInvalidIDFormat), http.StatusBadRequest},
		{"not found", session.ErrNotFound, http.StatusNotFound},
		{"expired", session.ErrExpired, http.StatusGone},
		{"store unavailable", session.Unavailable(fmt.Errorf("connection refused")), http.StatusServiceUnavailable},
		{"unknown error", fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, HTTPStatus(tt.err))
		})
	}
}
