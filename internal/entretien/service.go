// Package entretien schedules interviews between a client and a shortlisted talent.
package entretien

import (
	"context"
	"fmt"
	"slices"
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

// Action is a named interview transition.
type Action string

const (
	ActionConfirmer           Action = "confirmer"
	ActionRefuser             Action = "refuser"
	ActionProposerDate        Action = "proposer_date"
	ActionAccepterAlternative Action = "accepter_alternative"
	ActionReprogrammer        Action = "reprogrammer"
	ActionAnnuler             Action = "annuler"
	ActionMarquerRealise      Action = "marquer_realise"
)

type side int

const (
	talentSide side = iota
	clientSide
)

type rule struct {
	by   side
	from []types.EntretienStatus
	to   types.EntretienStatus
	// propagate is applied to the candidature when its own table allows it.
	propagate candidature.Action
}

var rules = map[Action]rule{
	ActionConfirmer: {
		by:        talentSide,
		from:      []types.EntretienStatus{types.EntretienEnAttenteConfirmation},
		to:        types.EntretienConfirme,
		propagate: candidature.ActionPlanifierEntretien,
	},
	ActionRefuser: {
		by:        talentSide,
		from:      []types.EntretienStatus{types.EntretienEnAttenteConfirmation},
		to:        types.EntretienAnnule,
		propagate: candidature.ActionReplacerShortlist,
	},
	ActionProposerDate: {
		by:   talentSide,
		from: []types.EntretienStatus{types.EntretienEnAttenteConfirmation},
		to:   types.EntretienDateAlternativeProposee,
	},
	ActionAccepterAlternative: {
		by:        clientSide,
		from:      []types.EntretienStatus{types.EntretienDateAlternativeProposee},
		to:        types.EntretienConfirme,
		propagate: candidature.ActionPlanifierEntretien,
	},
	ActionReprogrammer: {
		by:   clientSide,
		from: []types.EntretienStatus{types.EntretienDateAlternativeProposee},
		to:   types.EntretienEnAttenteConfirmation,
	},
	ActionAnnuler: {
		by: clientSide,
		from: []types.EntretienStatus{
			types.EntretienEnAttenteConfirmation,
			types.EntretienDateAlternativeProposee,
			types.EntretienConfirme,
		},
		to:        types.EntretienAnnule,
		propagate: candidature.ActionReplacerShortlist,
	},
	ActionMarquerRealise: {
		by:        clientSide,
		from:      []types.EntretienStatus{types.EntretienConfirme},
		to:        types.EntretienRealise,
		propagate: candidature.ActionEntretienRealise,
	},
}

var schedulable = []types.CandidatureStatus{
	types.CandidatureShortlist,
	types.CandidatureProposeeClient,
	types.CandidatureEntretienDemande,
}

var messages = map[Action]string{
	ActionConfirmer:           "Le talent a confirmé l'entretien du %s",
	ActionRefuser:             "Le talent a décliné l'entretien du %s",
	ActionProposerDate:        "Le talent propose une autre date que le %s",
	ActionAccepterAlternative: "Le client a accepté la nouvelle date, entretien le %s",
	ActionReprogrammer:        "Le client propose une nouvelle date : %s",
	ActionAnnuler:             "L'entretien du %s a été annulé",
	ActionMarquerRealise:      "L'entretien du %s a eu lieu",
}

// Service runs interview operations.
type Service struct {
	store  store.Store
	sender *notify.Sender
	log    *zap.Logger
	now    func() time.Time
}

// NewService creates an entretien service.
func NewService(st store.Store, sender *notify.Sender, log *zap.Logger) *Service {
	return &Service{store: st, sender: sender, log: log, now: time.Now}
}

// parties holds the people concerned by one interview.
type parties struct {
	cand       *types.Candidature
	offre      *types.Offre
	talent     *types.Talent
	clientUser uuid.UUID
	operators  []uuid.UUID
}

func (s *Service) loadParties(ctx context.Context, tx store.Tx, c *types.Candidature) (*parties, error) {
	offre, err := tx.GetOffreByID(ctx, c.OffreID)
	if err != nil {
		return nil, fmt.Errorf("failed to load offre: %w", err)
	}
	talent, err := tx.GetTalentByID(ctx, c.TalentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load talent: %w", err)
	}
	clientUser, err := access.OffreClientUser(ctx, tx, offre)
	if err != nil {
		return nil, err
	}
	operators, err := access.Operators(ctx, tx)
	if err != nil {
		return nil, err
	}
	return &parties{cand: c, offre: offre, talent: talent, clientUser: clientUser, operators: operators}, nil
}

// authorize checks that p may act for the given side of the interview.
// Operators may act for the client side.
func (s *Service) authorize(ctx context.Context, tx store.Tx, p types.Principal, pt *parties, by side) error {
	switch by {
	case talentSide:
		t, err := access.Talent(ctx, tx, p)
		if err != nil {
			return err
		}
		if t.ID != pt.talent.ID {
			return apperr.Forbidden("interview concerns another talent")
		}
	case clientSide:
		if p.IsAdmin() {
			return nil
		}
		c, err := access.Client(ctx, tx, p)
		if err != nil {
			return err
		}
		if !access.OwnsOffre(c, pt.offre) {
			return apperr.Forbidden("interview concerns another client")
		}
	}
	return nil
}

func validSlot(field string, d types.Date, debut, fin string) error {
	if d.IsZero() {
		return apperr.Validation(field, "a date is required")
	}
	if debut == "" || fin == "" {
		return apperr.Validation("heureDebut", "start and end times are required")
	}
	// HH:MM strings order lexically.
	if fin <= debut {
		return apperr.Validation("heureFin", "end time must be after start time")
	}
	return nil
}

// Create proposes an interview for a shortlisted candidature. The candidature is
// moved to ENTRETIEN_DEMANDE. Only one pending or confirmed interview may exist
// per candidature.
func (s *Service) Create(ctx context.Context, p types.Principal, req types.CreateEntretienRequest) (*types.Entretien, error) {
	if err := validSlot("dateProposee", req.DateProposee, req.HeureDebut, req.HeureFin); err != nil {
		return nil, err
	}
	if !req.Type.Valid() {
		return nil, apperr.Validation("type", "unknown interview type %q", req.Type)
	}

	var e *types.Entretien
	var batch notify.Batch

	err := s.store.InTx(ctx, func(tx store.Tx) error {
		c, err := tx.GetCandidature(ctx, req.CandidatureID)
		if err != nil {
			return fmt.Errorf("failed to load candidature: %w", err)
		}
		if c == nil {
			return apperr.NotFound("candidature", req.CandidatureID)
		}
		pt, err := s.loadParties(ctx, tx, c)
		if err != nil {
			return err
		}
		if err := s.authorize(ctx, tx, p, pt, clientSide); err != nil {
			return err
		}

		if !slices.Contains(schedulable, c.Status) {
			return apperr.InvalidTransition("candidature", c.Status, "planifier un entretien")
		}
		existing, err := tx.ListEntretiensByCandidature(ctx, c.ID)
		if err != nil {
			return fmt.Errorf("failed to list interviews: %w", err)
		}
		for _, other := range existing {
			if other.Status.Active() {
				return apperr.Conflict("candidature already has a %s interview", other.Status)
			}
		}

		now := s.now()
		if c.Status != types.CandidatureEntretienDemande {
			if err := candidature.Advance(ctx, tx, c, candidature.ActionDemanderEntretien, now); err != nil {
				return err
			}
		}

		e = &types.Entretien{
			CandidatureID: c.ID,
			Proposition:   types.Slot{Date: req.DateProposee, HeureDebut: req.HeureDebut, HeureFin: req.HeureFin},
			Type:          req.Type,
			Lieu:          req.Lieu,
			Lien:          req.Lien,
			Status:        types.EntretienEnAttenteConfirmation,
			Notes:         req.Notes,
		}
		if err := tx.CreateEntretien(ctx, e); err != nil {
			return fmt.Errorf("failed to create interview: %w", err)
		}

		msg := fmt.Sprintf("Entretien proposé le %s de %s à %s pour « %s »", req.DateProposee, req.HeureDebut, req.HeureFin, pt.offre.Titre)
		batch.Add(pt.talent.UserID, notify.TypeEntretienPropose, "Proposition d'entretien", msg, link(e.UID))
		batch.AddMany(pt.operators, notify.TypeEntretienPropose, "Entretien proposé", msg, link(e.UID))
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("entretien created",
		zap.String("entretien", e.UID.String()),
		zap.String("candidature", e.CandidatureUID.String()),
	)
	s.sender.Send(ctx, &batch)
	return e, nil
}

// Transition applies one named action on the interview.
func (s *Service) Transition(ctx context.Context, p types.Principal, uid uuid.UUID, req types.EntretienActionRequest) (*types.Entretien, error) {
	action := Action(req.Action)
	r, ok := rules[action]
	if !ok {
		return nil, apperr.UnknownAction("entretien", req.Action)
	}
	switch action {
	case ActionProposerDate, ActionReprogrammer:
		if req.Date == nil {
			return nil, apperr.Validation("date", "a date is required")
		}
		if err := validSlot("date", *req.Date, req.HeureDebut, req.HeureFin); err != nil {
			return nil, err
		}
	}

	var e *types.Entretien
	var from types.EntretienStatus
	var batch notify.Batch

	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		e, err = tx.GetEntretien(ctx, uid)
		if err != nil {
			return fmt.Errorf("failed to load interview: %w", err)
		}
		if e == nil {
			return apperr.NotFound("entretien", uid)
		}
		c, err := tx.GetCandidatureByID(ctx, e.CandidatureID)
		if err != nil {
			return fmt.Errorf("failed to load candidature: %w", err)
		}
		pt, err := s.loadParties(ctx, tx, c)
		if err != nil {
			return err
		}
		if err := s.authorize(ctx, tx, p, pt, r.by); err != nil {
			return err
		}
		if !slices.Contains(r.from, e.Status) {
			return apperr.InvalidTransition("entretien", e.Status, req.Action)
		}
		if r.to == types.EntretienConfirme {
			if err := noOtherConfirmed(ctx, tx, e); err != nil {
				return err
			}
		}

		now := s.now()
		from = e.Status
		e.Status = r.to
		if req.Notes != "" {
			e.Notes = req.Notes
		}

		switch action {
		case ActionConfirmer:
			e.ConfirmedAt = &now
			e.ConfirmedBy = &p.UserID
		case ActionProposerDate:
			e.Alternative = &types.Slot{Date: *req.Date, HeureDebut: req.HeureDebut, HeureFin: req.HeureFin}
		case ActionAccepterAlternative:
			e.Proposition = *e.Alternative
			e.Alternative = nil
			e.ConfirmedAt = &now
			e.ConfirmedBy = &p.UserID
		case ActionReprogrammer:
			e.Proposition = types.Slot{Date: *req.Date, HeureDebut: req.HeureDebut, HeureFin: req.HeureFin}
			e.Alternative = nil
		case ActionRefuser, ActionAnnuler:
			e.MotifAnnulation = req.Motif
		}

		if err := tx.UpdateEntretien(ctx, e); err != nil {
			return fmt.Errorf("failed to update interview: %w", err)
		}

		if r.propagate != "" && candidature.Allowed(c.Status, r.propagate) {
			if err := candidature.Advance(ctx, tx, c, r.propagate, now); err != nil {
				return err
			}
		}

		s.notifyTransition(&batch, action, r.by, pt, e, req.Motif)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("entretien transition",
		zap.String("entretien", uid.String()),
		zap.String("action", string(action)),
		zap.String("from", string(from)),
		zap.String("to", string(e.Status)),
	)
	s.sender.Send(ctx, &batch)
	return e, nil
}

// noOtherConfirmed rejects confirming e while another interview of the same
// candidature is already confirmed.
func noOtherConfirmed(ctx context.Context, tx store.Tx, e *types.Entretien) error {
	others, err := tx.ListEntretiensByCandidature(ctx, e.CandidatureID)
	if err != nil {
		return fmt.Errorf("failed to list interviews: %w", err)
	}
	for _, o := range others {
		if o.ID != e.ID && o.Status == types.EntretienConfirme {
			return apperr.Conflict("candidature already has a confirmed interview")
		}
	}
	return nil
}

func (s *Service) notifyTransition(batch *notify.Batch, action Action, by side, pt *parties, e *types.Entretien, motif string) {
	date := e.Proposition.Date.String()
	if action == ActionReprogrammer || action == ActionAccepterAlternative {
		date = fmt.Sprintf("%s %s-%s", e.Proposition.Date, e.Proposition.HeureDebut, e.Proposition.HeureFin)
	}
	msg := fmt.Sprintf(messages[action], date)
	if motif != "" {
		msg += fmt.Sprintf(". Motif : %s", motif)
	}
	href := link(e.UID)
	title := fmt.Sprintf("Entretien « %s »", pt.offre.Titre)

	if by == talentSide {
		batch.Add(pt.clientUser, notify.TypeEntretienMisAJour, title, msg, href)
	} else {
		batch.Add(pt.talent.UserID, notify.TypeEntretienMisAJour, title, msg, href)
	}
	batch.AddMany(pt.operators, notify.TypeEntretienMisAJour, title, msg, href)
}

// Get returns an interview to the talent, the owning client or an operator.
func (s *Service) Get(ctx context.Context, p types.Principal, uid uuid.UUID) (*types.Entretien, error) {
	var e *types.Entretien
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		e, err = tx.GetEntretien(ctx, uid)
		if err != nil {
			return fmt.Errorf("failed to load interview: %w", err)
		}
		if e == nil {
			return apperr.NotFound("entretien", uid)
		}
		if p.IsAdmin() {
			return nil
		}
		c, err := tx.GetCandidatureByID(ctx, e.CandidatureID)
		if err != nil {
			return fmt.Errorf("failed to load candidature: %w", err)
		}
		pt, err := s.loadParties(ctx, tx, c)
		if err != nil {
			return err
		}
		by := clientSide
		if p.Role == types.RoleTalent {
			by = talentSide
		}
		return s.authorize(ctx, tx, p, pt, by)
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

func link(uid uuid.UUID) string {
	return "/entretiens/" + uid.String()
}
