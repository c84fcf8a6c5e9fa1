package memstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonathan/talent-pipeline/internal/store"
	"github.com/jonathan/talent-pipeline/internal/types"
)

// Seed helpers populate a Store with reference data for tests and local runs.

// SeedUser creates an account with the given role and returns its principal.
func (s *Store) SeedUser(ctx context.Context, role types.Role) (types.Principal, error) {
	u := types.User{ID: uuid.New(), Role: role}
	u.Email = fmt.Sprintf("%s@example.test", u.ID)
	err := s.InTx(ctx, func(tx store.Tx) error {
		return tx.CreateUser(ctx, &u)
	})
	return types.Principal{UserID: u.ID, Role: role}, err
}

// SeedTalent creates a talent account with a profile.
func (s *Store) SeedTalent(ctx context.Context, prenom string, skills []string, years *int) (types.Principal, *types.Talent, error) {
	p, err := s.SeedUser(ctx, types.RoleTalent)
	if err != nil {
		return p, nil, err
	}
	t := &types.Talent{
		UserID:          p.UserID,
		Prenom:          prenom,
		Nom:             "Test",
		Skills:          skills,
		YearsExperience: years,
		Availability:    types.AvailableImmediate,
	}
	err = s.InTx(ctx, func(tx store.Tx) error {
		return tx.CreateTalent(ctx, t)
	})
	return p, t, err
}

// SeedClient creates a client account with its company.
func (s *Store) SeedClient(ctx context.Context, raisonSociale string) (types.Principal, *types.Client, error) {
	p, err := s.SeedUser(ctx, types.RoleClient)
	if err != nil {
		return p, nil, err
	}
	c := &types.Client{UserID: p.UserID, RaisonSociale: raisonSociale}
	err = s.InTx(ctx, func(tx store.Tx) error {
		return tx.CreateClient(ctx, c)
	})
	return p, c, err
}

// SeedOffre publishes an offre for client c, or an operator offre when c is nil.
func (s *Store) SeedOffre(ctx context.Context, c *types.Client, titre string, required, desired []string) (*types.Offre, error) {
	o := &types.Offre{
		Titre:          titre,
		RequiredSkills: required,
		DesiredSkills:  desired,
		Status:         types.OffrePublished,
	}
	if c != nil {
		o.ClientID = &c.ID
	}
	err := s.InTx(ctx, func(tx store.Tx) error {
		return tx.CreateOffre(ctx, o)
	})
	return o, err
}
