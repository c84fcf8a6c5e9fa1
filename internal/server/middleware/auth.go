// Package middleware provides HTTP middleware for authentication and authorization.
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/jonathan/talent-pipeline/internal/types"
)

// ContextKey is a typed key for context values to avoid collisions.
type ContextKey string

// principalKey is the context key for storing the authenticated caller.
const principalKey ContextKey = "principal"

// TokenValidator is an interface for validating session tokens.
// This allows the middleware to work with any JWT service implementation.
type TokenValidator interface {
	ValidateToken(tokenString string) (PrincipalGetter, error)
}

// PrincipalGetter is an interface for extracting the caller from token claims.
type PrincipalGetter interface {
	GetUserID() uuid.UUID
	GetRole() types.Role
}

// ErrorWriter writes an error response with the given status.
type ErrorWriter func(w http.ResponseWriter, status int, message string)

func plainError(w http.ResponseWriter, status int, message string) {
	http.Error(w, message, status)
}

// AuthMiddleware creates middleware that validates bearer tokens and adds the
// caller's principal to the request context. A nil writer falls back to text responses.
func AuthMiddleware(validator TokenValidator, writeError ErrorWriter) func(http.Handler) http.Handler {
	if writeError == nil {
		writeError = plainError
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			// Handle case-insensitive "Bearer" prefix
			parts := strings.Fields(authHeader)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			claims, err := validator.ValidateToken(parts[1])
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			p := types.Principal{UserID: claims.GetUserID(), Role: claims.GetRole()}
			if p.UserID == uuid.Nil || !p.Role.Valid() {
				writeError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// RequireRole rejects callers whose role is not listed with 403. It must run
// after AuthMiddleware.
func RequireRole(writeError ErrorWriter, roles ...types.Role) func(http.Handler) http.Handler {
	if writeError == nil {
		writeError = plainError
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := GetPrincipal(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			if !slices.Contains(roles, p.Role) {
				writeError(w, http.StatusForbidden, fmt.Sprintf("role %s cannot access this resource", p.Role))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p types.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// GetPrincipal extracts the authenticated caller from the request context.
func GetPrincipal(r *http.Request) (types.Principal, error) {
	p, ok := r.Context().Value(principalKey).(types.Principal)
	if !ok {
		return types.Principal{}, fmt.Errorf("principal not found in request context")
	}
	return p, nil
}
