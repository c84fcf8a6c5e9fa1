package server

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/jonathan/talent-pipeline/internal/apperr"
	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", apperr.Validation("tjm", "must be positive"), http.StatusBadRequest},
		{"authentication", &apperr.AuthenticationError{}, http.StatusUnauthorized},
		{"forbidden", apperr.Forbidden("not the owner"), http.StatusForbidden},
		{"not found", apperr.NotFound("offre", uuid.New()), http.StatusNotFound},
		{"conflict", apperr.Conflict("already signed"), http.StatusConflict},
		{"invalid transition", apperr.InvalidTransition("facture", "PAYEE", "emettre"), http.StatusConflict},
		{"wrapped", fmt.Errorf("create contrat: %w", apperr.NotFound("client", uuid.New())), http.StatusNotFound},
		{"unexpected", errors.New("connection reset"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestPublicMessage(t *testing.T) {
	err := errors.New("pq: password authentication failed")
	assert.Equal(t, "internal error", publicMessage(err, http.StatusInternalServerError))

	conflict := apperr.Conflict("already signed")
	assert.Equal(t, "conflict: already signed", publicMessage(conflict, http.StatusConflict))
}
