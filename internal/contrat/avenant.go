package contrat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/talent-pipeline/internal/access"
	"github.com/jonathan/talent-pipeline/internal/apperr"
	"github.com/jonathan/talent-pipeline/internal/notify"
	"github.com/jonathan/talent-pipeline/internal/store"
	"github.com/jonathan/talent-pipeline/internal/types"
	"go.uber.org/zap"
)

// createAvenant drafts the next avenant of c. Only contrats that have been in
// force can be amended.
func (s *Service) createAvenant(ctx context.Context, tx store.Tx, c *types.Contrat, req types.AvenantRequest, now time.Time) error {
	switch c.Status {
	case types.ContratActif, types.ContratTermine, types.ContratResilie:
	default:
		return apperr.InvalidTransition("contrat", c.Status, string(ActionAvenant))
	}
	if req.NouvelleDateFin != nil && req.NouvelleDateFin.Before(c.DateDebut.Time) {
		return apperr.Validation("nouvelleDateFin", "end date is before the contrat start date")
	}

	existing, err := tx.ListAvenants(ctx, c.ID)
	if err != nil {
		return fmt.Errorf("failed to list avenants: %w", err)
	}
	numero := 1
	for _, a := range existing {
		if a.Numero >= numero {
			numero = a.Numero + 1
		}
	}

	a := &types.Avenant{
		ContratID:       c.ID,
		Numero:          numero,
		Objet:           req.Objet,
		Modifications:   req.Modifications,
		NouveauTJM:      req.NouveauTJM,
		NouvelleDateFin: req.NouvelleDateFin,
		NouveauPlafond:  req.NouveauPlafond,
		DateEffet:       req.DateEffet,
		Status:          types.ContratBrouillon,
	}
	if a.DateEffet == nil {
		effet := types.NewDate(now)
		a.DateEffet = &effet
	}
	if err := tx.CreateAvenant(ctx, a); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return apperr.Conflict("avenant %d already exists", numero)
		}
		return fmt.Errorf("failed to create avenant: %w", err)
	}
	return nil
}

// AvenantAction applies envoyer, signer or annuler to an avenant with the same
// mechanics as its contrat. The parent contrat is never modified.
func (s *Service) AvenantAction(ctx context.Context, p types.Principal, contratUID, avenantUID uuid.UUID, req types.AvenantActionRequest) (*types.Avenant, error) {
	action := Action(req.Action)
	switch action {
	case ActionSigner:
	case ActionEnvoyer, ActionAnnuler:
		if err := access.RequireAdmin(p); err != nil {
			return nil, err
		}
	default:
		return nil, apperr.UnknownAction("avenant", req.Action)
	}

	var a *types.Avenant
	var batch notify.Batch

	err := s.store.InTx(ctx, func(tx store.Tx) error {
		c, err := s.load(ctx, tx, contratUID)
		if err != nil {
			return err
		}
		a, err = tx.GetAvenant(ctx, avenantUID)
		if err != nil {
			return fmt.Errorf("failed to load avenant: %w", err)
		}
		if a == nil || a.ContratID != c.ID {
			return apperr.NotFound("avenant", avenantUID)
		}
		pt, err := s.loadParties(ctx, tx, c)
		if err != nil {
			return err
		}

		href := link(c.UID)
		var next types.ContratStatus
		switch action {
		case ActionEnvoyer:
			if next, err = send("avenant", a.Status); err != nil {
				return err
			}
			batch.AddMany(pt.users(), notify.TypeAvenantASigner, "Avenant à signer",
				fmt.Sprintf("L'avenant n°%d au contrat %s attend votre signature", a.Numero, c.Reference), href)
		case ActionSigner:
			role, err := party(p, pt)
			if err != nil {
				return err
			}
			if next, err = sign("avenant", &a.Signature, a.Status, role, s.now()); err != nil {
				return err
			}
			if next == types.ContratActif {
				recipients := append(pt.users(), pt.operators...)
				batch.AddMany(recipients, notify.TypeAvenantActif, "Avenant en vigueur",
					fmt.Sprintf("L'avenant n°%d au contrat %s est signé par les deux parties", a.Numero, c.Reference), href)
			}
		case ActionAnnuler:
			if next, err = cancel("avenant", a.Status); err != nil {
				return err
			}
		}

		a.Status = next
		if err := tx.UpdateAvenant(ctx, a); err != nil {
			return fmt.Errorf("failed to update avenant: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("avenant action",
		zap.String("avenant", avenantUID.String()),
		zap.Int("numero", a.Numero),
		zap.String("action", string(action)),
		zap.String("status", string(a.Status)),
	)
	s.sender.Send(ctx, &batch)
	return a, nil
}
