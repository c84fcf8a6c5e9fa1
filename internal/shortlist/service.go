// Package shortlist curates the ordered candidate sets presented to clients and
// records the client's feedback on each candidate.
package shortlist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/talent-pipeline/internal/access"
	"github.com/jonathan/talent-pipeline/internal/apperr"
	"github.com/jonathan/talent-pipeline/internal/candidature"
	"github.com/jonathan/talent-pipeline/internal/notify"
	"github.com/jonathan/talent-pipeline/internal/store"
	"github.com/jonathan/talent-pipeline/internal/types"
	"go.uber.org/zap"
)

// Action is a client action on one shortlisted candidate.
type Action string

const (
	ActionVoir              Action = "voir"
	ActionSelectionner      Action = "selectionner"
	ActionRefuser           Action = "refuser"
	ActionDemanderEntretien Action = "demander_entretien"
	ActionDemanderInfos     Action = "demander_infos"
)

var feedbackFor = map[Action]types.Feedback{
	ActionVoir:              types.FeedbackVu,
	ActionSelectionner:      types.FeedbackSelectionne,
	ActionRefuser:           types.FeedbackRefuse,
	ActionDemanderEntretien: types.FeedbackDemandeEntretien,
	ActionDemanderInfos:     types.FeedbackDemandeInfos,
}

// Service runs shortlist operations.
type Service struct {
	store  store.Store
	sender *notify.Sender
	log    *zap.Logger
	now    func() time.Time
}

// NewService creates a shortlist service.
func NewService(st store.Store, sender *notify.Sender, log *zap.Logger) *Service {
	return &Service{store: st, sender: sender, log: log, now: time.Now}
}

// Create builds the shortlist of an offre from an ordered list of its candidatures.
// Each candidature is moved to SHORTLIST. An offre has at most one shortlist.
func (s *Service) Create(ctx context.Context, p types.Principal, req types.CreateShortlistRequest) (*types.Shortlist, error) {
	if err := access.RequireAdmin(p); err != nil {
		return nil, err
	}

	var sl *types.Shortlist
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		offre, err := tx.GetOffre(ctx, req.OffreID)
		if err != nil {
			return fmt.Errorf("failed to load offre: %w", err)
		}
		if offre == nil {
			return apperr.NotFound("offre", req.OffreID)
		}
		existing, err := tx.GetShortlistByOffre(ctx, offre.ID)
		if err != nil {
			return fmt.Errorf("failed to check existing shortlist: %w", err)
		}
		if existing != nil {
			return apperr.Conflict("offre already has a shortlist")
		}

		seen := make(map[uuid.UUID]bool, len(req.CandidatureIDs))
		for _, uid := range req.CandidatureIDs {
			if seen[uid] {
				return apperr.Validation("candidatureIds", "candidature %s is listed twice", uid)
			}
			seen[uid] = true
		}

		sl = &types.Shortlist{OffreID: offre.ID, Status: types.ShortlistEnCours}
		if err := tx.CreateShortlist(ctx, sl); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return apperr.Conflict("offre already has a shortlist")
			}
			return fmt.Errorf("failed to create shortlist: %w", err)
		}

		for i, uid := range req.CandidatureIDs {
			if err := s.addMember(ctx, tx, sl, offre, uid, i+1); err != nil {
				return err
			}
		}

		sl, err = tx.GetShortlist(ctx, sl.UID)
		if err != nil {
			return fmt.Errorf("failed to reload shortlist: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("shortlist created",
		zap.String("shortlist", sl.UID.String()),
		zap.String("offre", sl.OffreUID.String()),
		zap.Int("candidats", len(sl.Candidats)),
	)
	return sl, nil
}

// AddCandidat appends a candidature at the next position of an existing shortlist.
func (s *Service) AddCandidat(ctx context.Context, p types.Principal, uid uuid.UUID, req types.AddShortlistCandidatRequest) (*types.Shortlist, error) {
	if err := access.RequireAdmin(p); err != nil {
		return nil, err
	}

	var sl *types.Shortlist
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		sl, err = s.load(ctx, tx, uid)
		if err != nil {
			return err
		}
		offre, err := tx.GetOffreByID(ctx, sl.OffreID)
		if err != nil {
			return fmt.Errorf("failed to load offre: %w", err)
		}
		next := 1
		for _, m := range sl.Candidats {
			if m.CandidatureUID == req.CandidatureID {
				return apperr.Conflict("candidature is already in this shortlist")
			}
			if m.Position >= next {
				next = m.Position + 1
			}
		}
		if err := s.addMember(ctx, tx, sl, offre, req.CandidatureID, next); err != nil {
			return err
		}
		sl, err = tx.GetShortlist(ctx, uid)
		if err != nil {
			return fmt.Errorf("failed to reload shortlist: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sl, nil
}

func (s *Service) addMember(ctx context.Context, tx store.Tx, sl *types.Shortlist, offre *types.Offre, candUID uuid.UUID, position int) error {
	c, err := tx.GetCandidature(ctx, candUID)
	if err != nil {
		return fmt.Errorf("failed to load candidature: %w", err)
	}
	if c == nil {
		return apperr.NotFound("candidature", candUID)
	}
	if c.OffreID != offre.ID {
		return apperr.Validation("candidatureIds", "candidature %s belongs to another offre", candUID)
	}

	if c.Status != types.CandidatureShortlist {
		if err := candidature.Advance(ctx, tx, c, candidature.ActionAjouterShortlist, s.now()); err != nil {
			return err
		}
	}

	member := &types.ShortlistCandidat{ShortlistID: sl.ID, CandidatureID: c.ID, Position: position}
	if err := tx.AddShortlistCandidat(ctx, member); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return apperr.Conflict("candidature is already in this shortlist")
		}
		return fmt.Errorf("failed to add shortlist member: %w", err)
	}
	return nil
}

// SetStatus changes the coarse status used to filter shortlist listings.
func (s *Service) SetStatus(ctx context.Context, p types.Principal, uid uuid.UUID, status types.ShortlistStatus) (*types.Shortlist, error) {
	if err := access.RequireAdmin(p); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, apperr.Validation("statut", "unknown shortlist status %q", status)
	}

	var sl *types.Shortlist
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		sl, err = s.load(ctx, tx, uid)
		if err != nil {
			return err
		}
		if err := tx.UpdateShortlistStatus(ctx, sl.ID, status); err != nil {
			return fmt.Errorf("failed to update shortlist status: %w", err)
		}
		sl.Status = status
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sl, nil
}

// CandidateAction records the client's feedback on one shortlisted candidate.
// Selecting accepts the candidature and requesting an interview moves it to
// ENTRETIEN_DEMANDE. The shortlist's coarse status does not gate actions.
func (s *Service) CandidateAction(ctx context.Context, p types.Principal, uid, memberUID uuid.UUID, req types.ShortlistCandidatActionRequest) (*types.ShortlistCandidat, error) {
	action := Action(req.Action)
	feedback, ok := feedbackFor[action]
	if !ok {
		return nil, apperr.UnknownAction("shortlist candidat", req.Action)
	}
	if action == ActionDemanderInfos && req.Question == "" {
		return nil, apperr.Validation("question", "a question is required")
	}

	var member *types.ShortlistCandidat
	var batch notify.Batch

	err := s.store.InTx(ctx, func(tx store.Tx) error {
		sl, err := s.load(ctx, tx, uid)
		if err != nil {
			return err
		}
		offre, err := tx.GetOffreByID(ctx, sl.OffreID)
		if err != nil {
			return fmt.Errorf("failed to load offre: %w", err)
		}
		if !p.IsAdmin() {
			client, err := access.Client(ctx, tx, p)
			if err != nil {
				return err
			}
			if !access.OwnsOffre(client, offre) {
				return apperr.Forbidden("shortlist belongs to another client")
			}
		}

		for i := range sl.Candidats {
			if sl.Candidats[i].UID == memberUID {
				member = &sl.Candidats[i]
			}
		}
		if member == nil {
			return apperr.NotFound("shortlist candidat", memberUID)
		}

		c, err := tx.GetCandidatureByID(ctx, member.CandidatureID)
		if err != nil {
			return fmt.Errorf("failed to load candidature: %w", err)
		}
		talent, err := tx.GetTalentByID(ctx, c.TalentID)
		if err != nil {
			return fmt.Errorf("failed to load talent: %w", err)
		}

		now := s.now()
		switch action {
		case ActionSelectionner:
			if err := candidature.Advance(ctx, tx, c, candidature.ActionAccepter, now); err != nil {
				return err
			}
		case ActionDemanderEntretien:
			if c.Status != types.CandidatureEntretienDemande {
				if err := candidature.Advance(ctx, tx, c, candidature.ActionDemanderEntretien, now); err != nil {
					return err
				}
			}
		}

		member.Feedback = &feedback
		member.FeedbackAt = &now
		if req.Commentaire != "" {
			member.CommentaireClient = req.Commentaire
		}
		if req.Question != "" {
			member.QuestionClient = req.Question
		}
		if err := tx.UpdateShortlistCandidat(ctx, member); err != nil {
			return fmt.Errorf("failed to update shortlist member: %w", err)
		}

		return s.notifyFeedback(ctx, tx, &batch, action, offre, talent, req, link(sl.UID))
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("shortlist feedback",
		zap.String("shortlist", uid.String()),
		zap.String("candidat", memberUID.String()),
		zap.String("action", string(action)),
	)
	s.sender.Send(ctx, &batch)
	return member, nil
}

func (s *Service) notifyFeedback(ctx context.Context, tx store.Tx, batch *notify.Batch, action Action, offre *types.Offre, talent *types.Talent, req types.ShortlistCandidatActionRequest, href string) error {
	if action == ActionVoir {
		return nil
	}
	operators, err := access.Operators(ctx, tx)
	if err != nil {
		return err
	}
	name := talent.Prenom + " " + talent.Nom

	switch action {
	case ActionSelectionner:
		batch.AddMany(operators, notify.TypeCandidatSelectionne, "Candidat sélectionné",
			fmt.Sprintf("Le client a sélectionné %s pour « %s »", name, offre.Titre), href)
		batch.Add(talent.UserID, notify.TypeCandidatSelectionne, "Vous avez été sélectionné",
			fmt.Sprintf("Le client vous a retenu pour « %s »", offre.Titre), "")
	case ActionRefuser:
		msg := fmt.Sprintf("Le client a écarté %s pour « %s »", name, offre.Titre)
		if req.Commentaire != "" {
			msg += fmt.Sprintf(" : %s", req.Commentaire)
		}
		batch.AddMany(operators, notify.TypeCandidatRefuse, "Candidat écarté", msg, href)
	case ActionDemanderEntretien:
		batch.AddMany(operators, notify.TypeEntretienDemande, "Entretien demandé",
			fmt.Sprintf("Le client souhaite rencontrer %s pour « %s »", name, offre.Titre), href)
		batch.Add(talent.UserID, notify.TypeEntretienDemande, "Demande d'entretien",
			fmt.Sprintf("Le client souhaite vous rencontrer pour « %s »", offre.Titre), "")
	case ActionDemanderInfos:
		batch.AddMany(operators, notify.TypeInfosDemandees, "Informations demandées",
			fmt.Sprintf("Question du client sur %s : %s", name, req.Question), href)
	}
	return nil
}

// Get returns a shortlist if the caller may see it. Clients only see shortlists of
// their own offres once sent to them.
func (s *Service) Get(ctx context.Context, p types.Principal, uid uuid.UUID) (*types.Shortlist, error) {
	var sl *types.Shortlist
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		sl, err = s.load(ctx, tx, uid)
		if err != nil {
			return err
		}
		if p.IsAdmin() {
			return nil
		}
		client, err := access.Client(ctx, tx, p)
		if err != nil {
			return err
		}
		offre, err := tx.GetOffreByID(ctx, sl.OffreID)
		if err != nil {
			return fmt.Errorf("failed to load offre: %w", err)
		}
		if !access.OwnsOffre(client, offre) || !sl.Status.ClientVisible() {
			return apperr.Forbidden("shortlist is not available to this client")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sl, nil
}

// List returns shortlists visible to the caller, optionally narrowed to one status.
func (s *Service) List(ctx context.Context, p types.Principal, status *types.ShortlistStatus, limit, offset int) ([]types.Shortlist, error) {
	if status != nil && !status.Valid() {
		return nil, apperr.Validation("statut", "unknown shortlist status %q", *status)
	}

	var out []types.Shortlist
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		f := store.ShortlistFilter{Limit: limit, Offset: offset}
		if status != nil {
			f.Statuses = []types.ShortlistStatus{*status}
		}

		if !p.IsAdmin() {
			client, err := access.Client(ctx, tx, p)
			if err != nil {
				return err
			}
			f.ClientID = &client.ID
			if status == nil {
				f.Statuses = []types.ShortlistStatus{types.ShortlistEnvoyee, types.ShortlistEnAttenteRetour, types.ShortlistFinalisee}
			} else if !status.ClientVisible() {
				out = []types.Shortlist{}
				return nil
			}
		}

		var err error
		out, err = tx.ListShortlists(ctx, f)
		if err != nil {
			return fmt.Errorf("failed to list shortlists: %w", err)
		}
		return nil
	})
	return out, err
}

func (s *Service) load(ctx context.Context, tx store.Tx, uid uuid.UUID) (*types.Shortlist, error) {
	sl, err := tx.GetShortlist(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("failed to load shortlist: %w", err)
	}
	if sl == nil {
		return nil, apperr.NotFound("shortlist", uid)
	}
	return sl, nil
}

func link(uid uuid.UUID) string {
	return "/shortlists/" + uid.String()
}
