package apperr

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestErrorMessages(t *testing.T) {
	id := uuid.MustParse("8c1d4f0e-4a55-4d83-9f0e-2b9f6f1b7a11")

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"validation with field", Validation("tjm", "must be positive"), "validation error: tjm - must be positive"},
		{"validation without field", Validation("", "empty body"), "validation error: empty body"},
		{"forbidden", Forbidden("not the owner"), "forbidden: not the owner"},
		{"not found", NotFound("contrat", id), "contrat not found: " + id.String()},
		{"conflict", Conflict("already signed"), "conflict: already signed"},
		{"authentication", &AuthenticationError{}, "authentication required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestInvalidTransition(t *testing.T) {
	err := InvalidTransition("facture", "PAYEE", "annuler")
	assert.True(t, IsConflict(err))
	assert.Contains(t, err.Error(), `action "annuler" not allowed from status PAYEE`)
}

func TestPredicatesSeeWrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("apply: %w", Conflict("duplicate"))
	assert.True(t, IsConflict(wrapped))
	assert.False(t, IsNotFound(wrapped))

	assert.True(t, IsNotFound(fmt.Errorf("load: %w", NotFound("offre", uuid.New()))))
	assert.True(t, IsValidation(fmt.Errorf("x: %w", Validation("f", "m"))))
	assert.True(t, IsForbidden(fmt.Errorf("x: %w", Forbidden("m"))))
}
