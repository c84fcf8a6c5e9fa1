// Package candidature implements the candidature lifecycle: applications,
// operator assignments, named status transitions and withdrawals.
package candidature

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/talent-pipeline/internal/access"
	"github.com/jonathan/talent-pipeline/internal/apperr"
	"github.com/jonathan/talent-pipeline/internal/notify"
	"github.com/jonathan/talent-pipeline/internal/scoring"
	"github.com/jonathan/talent-pipeline/internal/store"
	"github.com/jonathan/talent-pipeline/internal/types"
	"go.uber.org/zap"
)

// Service runs candidature operations, one unit of work each.
type Service struct {
	store          store.Store
	sender         *notify.Sender
	log            *zap.Logger
	experienceGate bool
	now            func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithExperienceGate scores applications with the experience-gated variant.
func WithExperienceGate(enabled bool) Option {
	return func(s *Service) { s.experienceGate = enabled }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a candidature service.
func NewService(st store.Store, sender *notify.Sender, log *zap.Logger, opts ...Option) *Service {
	s := &Service{store: st, sender: sender, log: log, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListFilter narrows a candidature listing.
type ListFilter struct {
	OffreUID *uuid.UUID
	Status   *types.CandidatureStatus
	Limit    int
	Offset   int
}

// Actions that tell the talent where their candidature stands.
var talentLabels = map[Action]string{
	ActionPreselectionner: "présélectionnée",
	ActionAccepter:        "acceptée",
	ActionRefuser:         "refusée",
	ActionReouvrir:        "de nouveau en revue",
}

// Apply creates the caller's candidature on a published offre and caches its score.
func (s *Service) Apply(ctx context.Context, p types.Principal, req types.ApplyRequest) (*types.Candidature, error) {
	var created *types.Candidature
	var batch notify.Batch

	err := s.store.InTx(ctx, func(tx store.Tx) error {
		talent, err := access.Talent(ctx, tx, p)
		if err != nil {
			return err
		}
		created, err = s.create(ctx, tx, talent, req.OffreID, types.RoleTalent, func(c *types.Candidature) {
			c.Motivation = req.Motivation
			c.TJMPropose = req.TJMPropose
		})
		if err != nil {
			return err
		}

		operators, err := access.Operators(ctx, tx)
		if err != nil {
			return err
		}
		batch.AddMany(operators, notify.TypeCandidatureRecue, "Nouvelle candidature",
			fmt.Sprintf("%s %s a postulé (score %d)", talent.Prenom, talent.Nom, created.ScoreMatch),
			link(created.UID))
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("candidature created",
		zap.String("candidature", created.UID.String()),
		zap.String("offre", created.OffreUID.String()),
		zap.Int("score", created.ScoreMatch),
	)
	s.sender.Send(ctx, &batch)
	return created, nil
}

// Assign lets an operator create a candidature for a talent on an offre.
func (s *Service) Assign(ctx context.Context, p types.Principal, offreUID uuid.UUID, req types.AssignRequest) (*types.Candidature, error) {
	if err := access.RequireAdmin(p); err != nil {
		return nil, err
	}

	var created *types.Candidature
	var batch notify.Batch

	err := s.store.InTx(ctx, func(tx store.Tx) error {
		talent, err := tx.GetTalent(ctx, req.TalentID)
		if err != nil {
			return fmt.Errorf("failed to load talent: %w", err)
		}
		if talent == nil {
			return apperr.NotFound("talent", req.TalentID)
		}
		created, err = s.create(ctx, tx, talent, offreUID, types.RoleAdmin, func(c *types.Candidature) {
			c.Notes = req.Notes
		})
		if err != nil {
			return err
		}
		batch.Add(talent.UserID, notify.TypeCandidatureStatut, "Nouvelle proposition de mission",
			"Un opérateur vous a positionné sur une offre", link(created.UID))
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("candidature assigned",
		zap.String("candidature", created.UID.String()),
		zap.String("offre", created.OffreUID.String()),
	)
	s.sender.Send(ctx, &batch)
	return created, nil
}

// create inserts the candidature, bumps the offre counter and caches the match in tx.
func (s *Service) create(ctx context.Context, tx store.Tx, talent *types.Talent, offreUID uuid.UUID, by types.Role, fill func(*types.Candidature)) (*types.Candidature, error) {
	offre, err := tx.GetOffre(ctx, offreUID)
	if err != nil {
		return nil, fmt.Errorf("failed to load offre: %w", err)
	}
	if offre == nil {
		return nil, apperr.NotFound("offre", offreUID)
	}
	if offre.Status != types.OffrePublished {
		return nil, apperr.Conflict("offre %s is not published", offreUID)
	}

	existing, err := tx.FindCandidature(ctx, offre.ID, talent.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing candidature: %w", err)
	}
	if existing != nil {
		return nil, apperr.Conflict("talent already has a %s candidature on this offre", existing.Status)
	}

	result := scoring.ForPair(talent, offre, s.experienceGate)
	c := &types.Candidature{
		OffreID:    offre.ID,
		TalentID:   talent.ID,
		Status:     types.CandidatureNouvelle,
		ScoreMatch: result.Score,
		CreatedBy:  by,
	}
	fill(c)

	if err := tx.CreateCandidature(ctx, c); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperr.Conflict("talent already applied to this offre")
		}
		return nil, fmt.Errorf("failed to create candidature: %w", err)
	}
	if err := tx.AdjustOffreCandidatures(ctx, offre.ID, 1); err != nil {
		return nil, fmt.Errorf("failed to update offre counter: %w", err)
	}

	candID := c.ID
	match := &types.Match{
		OffreID:         offre.ID,
		TalentID:        talent.ID,
		Score:           result.Score,
		MatchedRequired: result.MatchedRequired,
		MatchedDesired:  result.MatchedDesired,
		MissingRequired: result.MissingRequired,
		CandidatureID:   &candID,
		ComputedAt:      s.now(),
	}
	if err := tx.UpsertMatch(ctx, match); err != nil {
		return nil, fmt.Errorf("failed to cache match: %w", err)
	}
	return c, nil
}

// Transition applies one named action on behalf of an operator.
func (s *Service) Transition(ctx context.Context, p types.Principal, uid uuid.UUID, req types.CandidatureActionRequest) (*types.Candidature, error) {
	if err := access.RequireAdmin(p); err != nil {
		return nil, err
	}
	action := Action(req.Action)

	var c *types.Candidature
	var from types.CandidatureStatus
	var batch notify.Batch

	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		c, err = tx.GetCandidature(ctx, uid)
		if err != nil {
			return fmt.Errorf("failed to load candidature: %w", err)
		}
		if c == nil {
			return apperr.NotFound("candidature", uid)
		}
		from = c.Status
		if req.Notes != "" {
			c.Notes = req.Notes
		}
		if err := Advance(ctx, tx, c, action, s.now()); err != nil {
			return err
		}

		label, notifies := talentLabels[action]
		if !notifies {
			return nil
		}
		talent, err := tx.GetTalentByID(ctx, c.TalentID)
		if err != nil {
			return fmt.Errorf("failed to load talent: %w", err)
		}
		offre, err := tx.GetOffreByID(ctx, c.OffreID)
		if err != nil {
			return fmt.Errorf("failed to load offre: %w", err)
		}
		msg := fmt.Sprintf("Votre candidature pour « %s » est %s", offre.Titre, label)
		if action == ActionRefuser && req.MotifRefus != "" {
			msg += fmt.Sprintf(". Motif : %s", req.MotifRefus)
		}
		batch.Add(talent.UserID, notify.TypeCandidatureStatut, "Mise à jour de votre candidature", msg, link(c.UID))
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("candidature transition",
		zap.String("candidature", uid.String()),
		zap.String("action", string(action)),
		zap.String("from", string(from)),
		zap.String("to", string(c.Status)),
	)
	s.sender.Send(ctx, &batch)
	return c, nil
}

// Withdraw deletes the caller's candidature while it is still NOUVELLE or VUE.
// The offre counter and the match reference are updated in the same unit of work.
func (s *Service) Withdraw(ctx context.Context, p types.Principal, uid uuid.UUID) error {
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		talent, err := access.Talent(ctx, tx, p)
		if err != nil {
			return err
		}
		c, err := tx.GetCandidature(ctx, uid)
		if err != nil {
			return fmt.Errorf("failed to load candidature: %w", err)
		}
		if c == nil {
			return apperr.NotFound("candidature", uid)
		}
		if c.TalentID != talent.ID {
			return apperr.Forbidden("candidature belongs to another talent")
		}
		if c.Status != types.CandidatureNouvelle && c.Status != types.CandidatureVue {
			return apperr.InvalidTransition("candidature", c.Status, "retirer")
		}

		if err := tx.DeleteCandidature(ctx, c.ID); err != nil {
			if errors.Is(err, store.ErrReferenced) {
				return apperr.Conflict("candidature is still referenced by a shortlist or an entretien")
			}
			return fmt.Errorf("failed to delete candidature: %w", err)
		}
		if err := tx.AdjustOffreCandidatures(ctx, c.OffreID, -1); err != nil {
			return fmt.Errorf("failed to update offre counter: %w", err)
		}
		if err := tx.ClearMatchCandidature(ctx, c.OffreID, c.TalentID); err != nil {
			return fmt.Errorf("failed to clear match reference: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info("candidature withdrawn", zap.String("candidature", uid.String()))
	return nil
}

// Get returns one candidature if the caller may see it.
func (s *Service) Get(ctx context.Context, p types.Principal, uid uuid.UUID) (*types.Candidature, error) {
	var c *types.Candidature
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		c, err = tx.GetCandidature(ctx, uid)
		if err != nil {
			return fmt.Errorf("failed to load candidature: %w", err)
		}
		if c == nil {
			return apperr.NotFound("candidature", uid)
		}
		return s.checkVisible(ctx, tx, p, c)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) checkVisible(ctx context.Context, tx store.Tx, p types.Principal, c *types.Candidature) error {
	switch p.Role {
	case types.RoleAdmin:
		return nil
	case types.RoleTalent:
		talent, err := access.Talent(ctx, tx, p)
		if err != nil {
			return err
		}
		if c.TalentID != talent.ID {
			return apperr.Forbidden("candidature belongs to another talent")
		}
		return nil
	case types.RoleClient:
		client, err := access.Client(ctx, tx, p)
		if err != nil {
			return err
		}
		visible, err := tx.ListCandidatures(ctx, store.CandidatureFilter{OffreID: &c.OffreID, ClientID: &client.ID})
		if err != nil {
			return fmt.Errorf("failed to check visibility: %w", err)
		}
		for _, v := range visible {
			if v.ID == c.ID {
				return nil
			}
		}
		return apperr.Forbidden("candidature is not shortlisted on one of your offres")
	}
	return apperr.Forbidden("unknown role")
}

// List returns the candidatures visible to the caller: their own for a talent,
// shortlisted ones on their offres for a client, everything for an operator.
func (s *Service) List(ctx context.Context, p types.Principal, f ListFilter) ([]types.Candidature, error) {
	var out []types.Candidature
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		filter := store.CandidatureFilter{Status: f.Status, Limit: f.Limit, Offset: f.Offset}

		if f.OffreUID != nil {
			offre, err := tx.GetOffre(ctx, *f.OffreUID)
			if err != nil {
				return fmt.Errorf("failed to load offre: %w", err)
			}
			if offre == nil {
				return apperr.NotFound("offre", *f.OffreUID)
			}
			filter.OffreID = &offre.ID
		}

		switch p.Role {
		case types.RoleAdmin:
		case types.RoleTalent:
			talent, err := access.Talent(ctx, tx, p)
			if err != nil {
				return err
			}
			filter.TalentID = &talent.ID
		case types.RoleClient:
			client, err := access.Client(ctx, tx, p)
			if err != nil {
				return err
			}
			filter.ClientID = &client.ID
		default:
			return apperr.Forbidden("unknown role")
		}

		var err error
		out, err = tx.ListCandidatures(ctx, filter)
		if err != nil {
			return fmt.Errorf("failed to list candidatures: %w", err)
		}
		return nil
	})
	return out, err
}

func link(uid uuid.UUID) string {
	return "/candidatures/" + uid.String()
}
