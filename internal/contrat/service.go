// Package contrat manages contrats between talents and clients, their dual
// signature and the avenants that amend them.
package contrat

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/talent-pipeline/internal/access"
	"github.com/jonathan/talent-pipeline/internal/apperr"
	"github.com/jonathan/talent-pipeline/internal/notify"
	"github.com/jonathan/talent-pipeline/internal/store"
	"github.com/jonathan/talent-pipeline/internal/types"
	"go.uber.org/zap"
)

// Action is a named contrat transition.
type Action string

const (
	ActionEnvoyer  Action = "envoyer"
	ActionSigner   Action = "signer"
	ActionTerminer Action = "terminer"
	ActionResilier Action = "resilier"
	ActionAnnuler  Action = "annuler"
	ActionAvenant  Action = "avenant"
)

const referencePrefix = "CTR"

// Detail is a contrat with its avenants and the terms currently in force.
type Detail struct {
	*types.Contrat
	Avenants     []types.Avenant `json:"avenants"`
	CurrentTerms types.Terms     `json:"termesEnVigueur"`
}

// Service runs contrat and avenant operations.
type Service struct {
	store  store.Store
	sender *notify.Sender
	log    *zap.Logger
	now    func() time.Time
}

// NewService creates a contrat service.
func NewService(st store.Store, sender *notify.Sender, log *zap.Logger) *Service {
	return &Service{store: st, sender: sender, log: log, now: time.Now}
}

// parties of one contrat.
type parties struct {
	talent    *types.Talent
	client    *types.Client
	operators []uuid.UUID
}

func (pt *parties) users() []uuid.UUID {
	return []uuid.UUID{pt.talent.UserID, pt.client.UserID}
}

func (s *Service) loadParties(ctx context.Context, tx store.Tx, c *types.Contrat) (*parties, error) {
	talent, err := tx.GetTalentByID(ctx, c.TalentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load talent: %w", err)
	}
	client, err := tx.GetClientByID(ctx, c.ClientID)
	if err != nil {
		return nil, fmt.Errorf("failed to load client: %w", err)
	}
	if talent == nil || client == nil {
		return nil, fmt.Errorf("contrat %s references a missing party", c.UID)
	}
	operators, err := access.Operators(ctx, tx)
	if err != nil {
		return nil, err
	}
	return &parties{talent: talent, client: client, operators: operators}, nil
}

// party returns the signing role of p on the contrat, or an error when p is not one of its parties.
func party(p types.Principal, pt *parties) (types.Role, error) {
	switch {
	case p.Role == types.RoleTalent && p.UserID == pt.talent.UserID:
		return types.RoleTalent, nil
	case p.Role == types.RoleClient && p.UserID == pt.client.UserID:
		return types.RoleClient, nil
	}
	return "", apperr.Forbidden("caller is not a party to this contrat")
}

// nextReference returns the next CTR-YYYY-NNNN reference of a client.
func nextReference(ctx context.Context, tx store.Tx, clientID int64, now time.Time) (string, error) {
	prefix := fmt.Sprintf("%s-%d-", referencePrefix, now.Year())
	last, err := tx.LastContratReference(ctx, clientID, prefix)
	if err != nil {
		return "", fmt.Errorf("failed to read last reference: %w", err)
	}
	seq := 0
	if last != "" {
		seq, err = strconv.Atoi(strings.TrimPrefix(last, prefix))
		if err != nil {
			return "", fmt.Errorf("malformed contrat reference %q: %w", last, err)
		}
	}
	return fmt.Sprintf("%s%04d", prefix, seq+1), nil
}

func checkDates(debut types.Date, fin *types.Date) error {
	if debut.IsZero() {
		return apperr.Validation("dateDebut", "a start date is required")
	}
	if fin != nil && fin.Before(debut.Time) {
		return apperr.Validation("dateFin", "end date is before start date")
	}
	return nil
}

// Create drafts a contrat. When a candidature is given it must be ACCEPTEE and
// the talent, client and offre are taken from it.
func (s *Service) Create(ctx context.Context, p types.Principal, req types.CreateContratRequest) (*types.Contrat, error) {
	if err := access.RequireAdmin(p); err != nil {
		return nil, err
	}
	if err := checkDates(req.DateDebut, req.DateFin); err != nil {
		return nil, err
	}
	if req.CandidatureID == nil && (req.TalentID == nil || req.ClientID == nil) {
		return nil, apperr.Validation("candidatureId", "either a candidature or both a talent and a client are required")
	}

	var c *types.Contrat
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		c = &types.Contrat{
			Titre:                    req.Titre,
			TJM:                      req.TJM,
			DateDebut:                req.DateDebut,
			DateFin:                  req.DateFin,
			Plafond:                  req.Plafond,
			RenouvellementAuto:       req.RenouvellementAuto,
			ConditionsRenouvellement: req.ConditionsRenouvellement,
			Clauses:                  req.Clauses,
			Status:                   types.ContratBrouillon,
		}
		if err := s.resolveParties(ctx, tx, req, c); err != nil {
			return err
		}

		ref, err := nextReference(ctx, tx, c.ClientID, s.now())
		if err != nil {
			return err
		}
		c.Reference = ref

		if err := tx.CreateContrat(ctx, c); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return apperr.Conflict("contrat reference %s already exists", ref)
			}
			return fmt.Errorf("failed to create contrat: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("contrat created",
		zap.String("contrat", c.UID.String()),
		zap.String("reference", c.Reference),
	)
	return c, nil
}

func (s *Service) resolveParties(ctx context.Context, tx store.Tx, req types.CreateContratRequest, c *types.Contrat) error {
	if req.CandidatureID != nil {
		cand, err := tx.GetCandidature(ctx, *req.CandidatureID)
		if err != nil {
			return fmt.Errorf("failed to load candidature: %w", err)
		}
		if cand == nil {
			return apperr.NotFound("candidature", *req.CandidatureID)
		}
		if cand.Status != types.CandidatureAcceptee {
			return apperr.Conflict("candidature is %s, not ACCEPTEE", cand.Status)
		}
		offre, err := tx.GetOffreByID(ctx, cand.OffreID)
		if err != nil {
			return fmt.Errorf("failed to load offre: %w", err)
		}
		if offre.ClientID == nil {
			return apperr.Validation("candidatureId", "the offre of this candidature has no client")
		}
		c.TalentID = cand.TalentID
		c.ClientID = *offre.ClientID
		c.CandidatureID = &cand.ID
		c.OffreID = &offre.ID
		return nil
	}

	talent, err := tx.GetTalent(ctx, *req.TalentID)
	if err != nil {
		return fmt.Errorf("failed to load talent: %w", err)
	}
	if talent == nil {
		return apperr.NotFound("talent", *req.TalentID)
	}
	client, err := tx.GetClient(ctx, *req.ClientID)
	if err != nil {
		return fmt.Errorf("failed to load client: %w", err)
	}
	if client == nil {
		return apperr.NotFound("client", *req.ClientID)
	}
	c.TalentID = talent.ID
	c.ClientID = client.ID
	return nil
}

func (s *Service) load(ctx context.Context, tx store.Tx, uid uuid.UUID) (*types.Contrat, error) {
	c, err := tx.GetContrat(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("failed to load contrat: %w", err)
	}
	if c == nil {
		return nil, apperr.NotFound("contrat", uid)
	}
	return c, nil
}

// Update edits the terms of a draft contrat.
func (s *Service) Update(ctx context.Context, p types.Principal, uid uuid.UUID, req types.UpdateContratRequest) (*types.Contrat, error) {
	if err := access.RequireAdmin(p); err != nil {
		return nil, err
	}

	var c *types.Contrat
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		c, err = s.load(ctx, tx, uid)
		if err != nil {
			return err
		}
		if c.Status != types.ContratBrouillon {
			return apperr.Conflict("contrat is %s, changes now require an avenant", c.Status)
		}

		if req.Titre != nil {
			c.Titre = *req.Titre
		}
		if req.TJM != nil {
			c.TJM = *req.TJM
		}
		if req.DateDebut != nil {
			c.DateDebut = *req.DateDebut
		}
		if req.DateFin != nil {
			c.DateFin = req.DateFin
		}
		if req.Plafond != nil {
			c.Plafond = req.Plafond
		}
		if req.RenouvellementAuto != nil {
			c.RenouvellementAuto = *req.RenouvellementAuto
		}
		if req.ConditionsRenouvellement != nil {
			c.ConditionsRenouvellement = *req.ConditionsRenouvellement
		}
		if req.Clauses != nil {
			c.Clauses = *req.Clauses
		}
		if err := checkDates(c.DateDebut, c.DateFin); err != nil {
			return err
		}

		if err := tx.UpdateContrat(ctx, c); err != nil {
			return fmt.Errorf("failed to update contrat: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Delete removes a draft contrat.
func (s *Service) Delete(ctx context.Context, p types.Principal, uid uuid.UUID) error {
	if err := access.RequireAdmin(p); err != nil {
		return err
	}
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		c, err := s.load(ctx, tx, uid)
		if err != nil {
			return err
		}
		if c.Status != types.ContratBrouillon {
			return apperr.Conflict("only draft contrats can be deleted, this one is %s", c.Status)
		}
		if err := tx.DeleteContrat(ctx, c.ID); err != nil {
			if errors.Is(err, store.ErrReferenced) {
				return apperr.Conflict("contrat is still referenced by a facture or an avenant")
			}
			return fmt.Errorf("failed to delete contrat: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info("contrat deleted", zap.String("contrat", uid.String()))
	return nil
}

// Get returns a contrat with its avenants and current terms to one of its parties or an operator.
func (s *Service) Get(ctx context.Context, p types.Principal, uid uuid.UUID) (*Detail, error) {
	var d *Detail
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		c, err := s.load(ctx, tx, uid)
		if err != nil {
			return err
		}
		if !p.IsAdmin() {
			pt, err := s.loadParties(ctx, tx, c)
			if err != nil {
				return err
			}
			if _, err := party(p, pt); err != nil {
				return err
			}
		}
		d, err = s.detail(ctx, tx, c)
		return err
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) detail(ctx context.Context, tx store.Tx, c *types.Contrat) (*Detail, error) {
	avenants, err := tx.ListAvenants(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list avenants: %w", err)
	}
	return &Detail{Contrat: c, Avenants: avenants, CurrentTerms: CurrentTerms(c, avenants)}, nil
}

// Action applies one named transition to a contrat. Signing is done by the
// parties themselves, every other action by an operator.
func (s *Service) Action(ctx context.Context, p types.Principal, uid uuid.UUID, req types.ContratActionRequest) (*Detail, error) {
	action := Action(req.Action)
	switch action {
	case ActionSigner:
	case ActionEnvoyer, ActionTerminer, ActionAnnuler:
		if err := access.RequireAdmin(p); err != nil {
			return nil, err
		}
	case ActionResilier:
		if err := access.RequireAdmin(p); err != nil {
			return nil, err
		}
		if strings.TrimSpace(req.Motif) == "" {
			return nil, apperr.Validation("motif", "a reason is required to terminate early")
		}
	case ActionAvenant:
		if err := access.RequireAdmin(p); err != nil {
			return nil, err
		}
		if req.Avenant == nil {
			return nil, apperr.Validation("avenant", "avenant details are required")
		}
	default:
		return nil, apperr.UnknownAction("contrat", req.Action)
	}

	var d *Detail
	var from, to types.ContratStatus
	var batch notify.Batch

	err := s.store.InTx(ctx, func(tx store.Tx) error {
		c, err := s.load(ctx, tx, uid)
		if err != nil {
			return err
		}
		pt, err := s.loadParties(ctx, tx, c)
		if err != nil {
			return err
		}
		from = c.Status
		now := s.now()

		if action == ActionAvenant {
			if err := s.createAvenant(ctx, tx, c, *req.Avenant, now); err != nil {
				return err
			}
		} else {
			if err := s.transition(ctx, tx, p, c, pt, action, req.Motif, now, &batch); err != nil {
				return err
			}
			if err := tx.UpdateContrat(ctx, c); err != nil {
				return fmt.Errorf("failed to update contrat: %w", err)
			}
		}
		to = c.Status

		d, err = s.detail(ctx, tx, c)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("contrat action",
		zap.String("contrat", uid.String()),
		zap.String("action", string(action)),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
	s.sender.Send(ctx, &batch)
	return d, nil
}

func (s *Service) transition(ctx context.Context, tx store.Tx, p types.Principal, c *types.Contrat, pt *parties, action Action, motif string, now time.Time, batch *notify.Batch) error {
	href := link(c.UID)
	var next types.ContratStatus
	var err error

	switch action {
	case ActionEnvoyer:
		if next, err = send("contrat", c.Status); err != nil {
			return err
		}
		batch.AddMany(pt.users(), notify.TypeContratASigner, "Contrat à signer",
			fmt.Sprintf("Le contrat %s « %s » attend votre signature", c.Reference, c.Titre), href)

	case ActionSigner:
		role, err := party(p, pt)
		if err != nil {
			return err
		}
		if next, err = sign("contrat", &c.Signature, c.Status, role, now); err != nil {
			return err
		}
		if next == types.ContratActif {
			if err := s.activate(ctx, tx, c, pt); err != nil {
				return err
			}
			recipients := append(pt.users(), pt.operators...)
			batch.AddMany(recipients, notify.TypeContratActif, "Contrat actif",
				fmt.Sprintf("Le contrat %s est signé par les deux parties", c.Reference), href)
		} else {
			other := pt.client.UserID
			if role == types.RoleClient {
				other = pt.talent.UserID
			}
			msg := fmt.Sprintf("Le contrat %s a été signé par l'autre partie", c.Reference)
			batch.Add(other, notify.TypeContratSigne, "Contrat signé", msg, href)
			batch.AddMany(pt.operators, notify.TypeContratSigne, "Contrat signé", msg, href)
		}

	case ActionTerminer, ActionResilier:
		if c.Status != types.ContratActif {
			return apperr.InvalidTransition("contrat", c.Status, string(action))
		}
		next = types.ContratTermine
		msg := fmt.Sprintf("Le contrat %s est arrivé à son terme", c.Reference)
		if action == ActionResilier {
			next = types.ContratResilie
			c.MotifResiliation = motif
			msg = fmt.Sprintf("Le contrat %s a été résilié : %s", c.Reference, motif)
		}
		c.EndedAt = &now
		others, err := tx.CountActiveContrats(ctx, c.TalentID, c.ID)
		if err != nil {
			return fmt.Errorf("failed to count active contrats: %w", err)
		}
		if others == 0 {
			if err := tx.UpdateTalentStatus(ctx, c.TalentID, types.TalentActive); err != nil {
				return fmt.Errorf("failed to release talent: %w", err)
			}
		}
		batch.AddMany(pt.users(), notify.TypeContratTermine, "Fin de contrat", msg, href)

	case ActionAnnuler:
		if next, err = cancel("contrat", c.Status); err != nil {
			return err
		}
		c.EndedAt = &now
		batch.AddMany(pt.users(), notify.TypeContratTermine, "Contrat annulé",
			fmt.Sprintf("Le contrat %s a été annulé", c.Reference), href)
	}

	c.Status = next
	return nil
}

// activate puts the talent in mission and fills the originating offre.
func (s *Service) activate(ctx context.Context, tx store.Tx, c *types.Contrat, pt *parties) error {
	if err := tx.UpdateTalentStatus(ctx, pt.talent.ID, types.TalentInMission); err != nil {
		return fmt.Errorf("failed to set talent in mission: %w", err)
	}
	if c.OffreID != nil {
		if err := tx.UpdateOffreStatus(ctx, *c.OffreID, types.OffreFilled); err != nil {
			return fmt.Errorf("failed to fill offre: %w", err)
		}
	}
	return nil
}

func link(uid uuid.UUID) string {
	return "/contrats/" + uid.String()
}
