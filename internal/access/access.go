// Package access resolves which talent or client an authenticated caller is and
// enforces role requirements shared by the lifecycle services.
package access

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonathan/talent-pipeline/internal/apperr"
	"github.com/jonathan/talent-pipeline/internal/store"
	"github.com/jonathan/talent-pipeline/internal/types"
)

// RequireAdmin rejects callers that are not operators.
func RequireAdmin(p types.Principal) error {
	if !p.IsAdmin() {
		return apperr.Forbidden("operator role required")
	}
	return nil
}

// Talent returns the talent profile of the caller.
func Talent(ctx context.Context, tx store.Tx, p types.Principal) (*types.Talent, error) {
	if p.Role != types.RoleTalent {
		return nil, apperr.Forbidden("talent role required")
	}
	t, err := tx.GetTalentByUserID(ctx, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load talent profile: %w", err)
	}
	if t == nil {
		return nil, apperr.Forbidden("no talent profile for this account")
	}
	return t, nil
}

// Client returns the client company of the caller.
func Client(ctx context.Context, tx store.Tx, p types.Principal) (*types.Client, error) {
	if p.Role != types.RoleClient {
		return nil, apperr.Forbidden("client role required")
	}
	c, err := tx.GetClientByUserID(ctx, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load client profile: %w", err)
	}
	if c == nil {
		return nil, apperr.Forbidden("no client profile for this account")
	}
	return c, nil
}

// OwnsOffre reports whether client c published offre o.
func OwnsOffre(c *types.Client, o *types.Offre) bool {
	return c != nil && o != nil && o.ClientID != nil && *o.ClientID == c.ID
}

// Operators returns the user ids notified on operator-facing events.
func Operators(ctx context.Context, tx store.Tx) ([]uuid.UUID, error) {
	ids, err := tx.ListUserIDsByRole(ctx, types.RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("failed to list operators: %w", err)
	}
	return ids, nil
}

// OffreClientUser returns the user id of the client owning offre o, or uuid.Nil
// for offres created directly by an operator.
func OffreClientUser(ctx context.Context, tx store.Tx, o *types.Offre) (uuid.UUID, error) {
	if o.ClientID == nil {
		return uuid.Nil, nil
	}
	c, err := tx.GetClientByID(ctx, *o.ClientID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to load client: %w", err)
	}
	if c == nil {
		return uuid.Nil, nil
	}
	return c.UserID, nil
}
