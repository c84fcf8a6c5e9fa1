// Package facture issues client invoices and follows them until payment.
package facture

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

// Action is a named invoice transition.
type Action string

const (
	ActionEmettre  Action = "emettre"
	ActionPayer    Action = "payer"
	ActionRelancer Action = "relancer"
	ActionAnnuler  Action = "annuler"
)

const numeroPrefix = "FAC"

// Settings are the billing defaults.
type Settings struct {
	TVARate        float64
	DefaultDueDays int
}

// Service runs invoice operations.
type Service struct {
	store    store.Store
	sender   *notify.Sender
	log      *zap.Logger
	settings Settings
	now      func() time.Time
}

// NewService creates a facture service.
func NewService(st store.Store, sender *notify.Sender, log *zap.Logger, settings Settings) *Service {
	if settings.DefaultDueDays <= 0 {
		settings.DefaultDueDays = 30
	}
	return &Service{store: st, sender: sender, log: log, settings: settings, now: time.Now}
}

// nextNumero returns the next FAC-YYYY-NNNN number.
func nextNumero(ctx context.Context, tx store.Tx, now time.Time) (string, error) {
	prefix := fmt.Sprintf("%s-%d-", numeroPrefix, now.Year())
	last, err := tx.LastFactureNumero(ctx, prefix)
	if err != nil {
		return "", fmt.Errorf("failed to read last invoice number: %w", err)
	}
	seq := 0
	if last != "" {
		seq, err = strconv.Atoi(strings.TrimPrefix(last, prefix))
		if err != nil {
			return "", fmt.Errorf("malformed invoice number %q: %w", last, err)
		}
	}
	return fmt.Sprintf("%s%04d", prefix, seq+1), nil
}

func (s *Service) load(ctx context.Context, tx store.Tx, uid uuid.UUID) (*types.Facture, error) {
	f, err := tx.GetFacture(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("failed to load invoice: %w", err)
	}
	if f == nil {
		return nil, apperr.NotFound("facture", uid)
	}
	return f, nil
}

// Create drafts an invoice with its lines and totals.
func (s *Service) Create(ctx context.Context, p types.Principal, req types.CreateFactureRequest) (*types.Facture, error) {
	if err := access.RequireAdmin(p); err != nil {
		return nil, err
	}
	if err := checkRemise(req.Remise); err != nil {
		return nil, err
	}

	var f *types.Facture
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		client, err := tx.GetClient(ctx, req.ClientID)
		if err != nil {
			return fmt.Errorf("failed to load client: %w", err)
		}
		if client == nil {
			return apperr.NotFound("client", req.ClientID)
		}

		f = &types.Facture{
			ClientID: client.ID,
			Remise:   req.Remise,
			TauxTVA:  s.settings.TVARate,
			Status:   types.FactureBrouillon,
		}
		if req.TauxTVA != nil {
			f.TauxTVA = *req.TauxTVA
		}

		if req.ContratID != nil {
			c, err := tx.GetContrat(ctx, *req.ContratID)
			if err != nil {
				return fmt.Errorf("failed to load contrat: %w", err)
			}
			if c == nil {
				return apperr.NotFound("contrat", *req.ContratID)
			}
			if c.ClientID != client.ID {
				return apperr.Validation("contratId", "contrat belongs to another client")
			}
			if !c.Status.Billable() {
				return apperr.Conflict("cannot invoice a %s contrat", c.Status)
			}
			f.ContratID = &c.ID
		}

		lignes := BuildLignes(req.Lignes)
		apply(f, ComputeTotals(lignes, f.Remise, f.TauxTVA))

		if f.Numero, err = nextNumero(ctx, tx, s.now()); err != nil {
			return err
		}
		if err := tx.CreateFacture(ctx, f); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return apperr.Conflict("invoice number %s already exists", f.Numero)
			}
			return fmt.Errorf("failed to create invoice: %w", err)
		}
		if err := tx.ReplaceLignes(ctx, f.ID, lignes); err != nil {
			return fmt.Errorf("failed to insert invoice lines: %w", err)
		}

		f, err = tx.GetFacture(ctx, f.UID)
		if err != nil {
			return fmt.Errorf("failed to reload invoice: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("facture created",
		zap.String("facture", f.UID.String()),
		zap.String("numero", f.Numero),
		zap.Float64("ttc", f.MontantTTC),
	)
	return f, nil
}

// ReplaceLignes replaces every line of a draft invoice and recomputes its totals
// in one unit of work. The discount is replaced as submitted; the tax rate is
// kept unless one is given.
func (s *Service) ReplaceLignes(ctx context.Context, p types.Principal, uid uuid.UUID, req types.ReplaceLignesRequest) (*types.Facture, error) {
	if err := access.RequireAdmin(p); err != nil {
		return nil, err
	}
	if err := checkRemise(req.Remise); err != nil {
		return nil, err
	}

	var f *types.Facture
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		f, err = s.load(ctx, tx, uid)
		if err != nil {
			return err
		}
		if f.Status != types.FactureBrouillon {
			return apperr.Conflict("invoice is %s, only drafts can be edited", f.Status)
		}

		f.Remise = req.Remise
		if req.TauxTVA != nil {
			f.TauxTVA = *req.TauxTVA
		}
		lignes := BuildLignes(req.Lignes)
		apply(f, ComputeTotals(lignes, f.Remise, f.TauxTVA))

		if err := tx.ReplaceLignes(ctx, f.ID, lignes); err != nil {
			return fmt.Errorf("failed to replace invoice lines: %w", err)
		}
		if err := tx.UpdateFacture(ctx, f); err != nil {
			return fmt.Errorf("failed to update invoice totals: %w", err)
		}

		f, err = tx.GetFacture(ctx, uid)
		if err != nil {
			return fmt.Errorf("failed to reload invoice: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("facture lines replaced",
		zap.String("facture", uid.String()),
		zap.Int("lignes", len(f.Lignes)),
		zap.Float64("ttc", f.MontantTTC),
	)
	return f, nil
}

// Action applies one named transition to an invoice.
func (s *Service) Action(ctx context.Context, p types.Principal, uid uuid.UUID, req types.FactureActionRequest) (*types.Facture, error) {
	if err := access.RequireAdmin(p); err != nil {
		return nil, err
	}
	action := Action(req.Action)
	switch action {
	case ActionEmettre, ActionRelancer, ActionAnnuler:
	case ActionPayer:
		if req.ModePaiement == nil {
			return nil, apperr.Validation("modePaiement", "a payment method is required")
		}
	default:
		return nil, apperr.UnknownAction("facture", req.Action)
	}

	var f *types.Facture
	var from types.FactureStatus
	var batch notify.Batch

	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		f, err = s.load(ctx, tx, uid)
		if err != nil {
			return err
		}
		client, err := tx.GetClientByID(ctx, f.ClientID)
		if err != nil {
			return fmt.Errorf("failed to load client: %w", err)
		}
		from = f.Status
		now := s.now()
		href := link(f.UID)

		switch action {
		case ActionEmettre:
			if err := s.emettre(f, req.DateEcheance, now); err != nil {
				return err
			}
			batch.Add(client.UserID, notify.TypeFactureEmise, "Nouvelle facture",
				fmt.Sprintf("Facture %s de %.2f € TTC, échéance le %s", f.Numero, f.MontantTTC, f.DateEcheance), href)

		case ActionPayer:
			if f.Status != types.FactureEmise && f.Status != types.FactureEnRetard {
				return apperr.InvalidTransition("facture", f.Status, req.Action)
			}
			f.Status = types.FacturePayee
			f.ModePaiement = req.ModePaiement
			f.ReferencePaiement = req.ReferencePaiement
			if f.ReferencePaiement == "" {
				f.ReferencePaiement = fmt.Sprintf("PAY-%s-%s", f.Numero, now.Format("20060102"))
			}
			f.PaidAt = &now
			operators, err := access.Operators(ctx, tx)
			if err != nil {
				return err
			}
			msg := fmt.Sprintf("La facture %s a été réglée (%s)", f.Numero, f.ReferencePaiement)
			batch.AddMany(operators, notify.TypeFacturePayee, "Facture payée", msg, href)
			batch.Add(client.UserID, notify.TypeFacturePayee, "Paiement reçu", msg, href)

		case ActionRelancer:
			if f.Status != types.FactureEmise && f.Status != types.FactureEnRetard {
				return apperr.InvalidTransition("facture", f.Status, req.Action)
			}
			f.NbRelances++
			f.DerniereRelance = &now
			batch.Add(client.UserID, notify.TypeFactureRelance, "Relance de paiement",
				fmt.Sprintf("La facture %s de %.2f € TTC reste à régler", f.Numero, f.MontantTTC), href)

		case ActionAnnuler:
			if f.Status == types.FacturePayee || f.Status == types.FactureAnnulee {
				return apperr.InvalidTransition("facture", f.Status, req.Action)
			}
			f.Status = types.FactureAnnulee
			f.MotifAnnulation = req.Motif
		}

		if err := tx.UpdateFacture(ctx, f); err != nil {
			return fmt.Errorf("failed to update invoice: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("facture action",
		zap.String("facture", uid.String()),
		zap.String("action", string(action)),
		zap.String("from", string(from)),
		zap.String("to", string(f.Status)),
	)
	s.sender.Send(ctx, &batch)
	return f, nil
}

func (s *Service) emettre(f *types.Facture, due *types.Date, now time.Time) error {
	if f.Status != types.FactureBrouillon {
		return apperr.InvalidTransition("facture", f.Status, string(ActionEmettre))
	}
	if len(f.Lignes) == 0 {
		return apperr.Validation("lignes", "an invoice needs at least one line to be issued")
	}
	emission := types.NewDate(now)
	echeance := emission.AddDays(s.settings.DefaultDueDays)
	if due != nil {
		if due.Before(emission.Time) {
			return apperr.Validation("dateEcheance", "due date is before the issue date")
		}
		echeance = *due
	}
	f.Status = types.FactureEmise
	f.DateEmission = &emission
	f.DateEcheance = &echeance
	return nil
}

// Delete removes a draft invoice with its lines.
func (s *Service) Delete(ctx context.Context, p types.Principal, uid uuid.UUID) error {
	if err := access.RequireAdmin(p); err != nil {
		return err
	}
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		f, err := s.load(ctx, tx, uid)
		if err != nil {
			return err
		}
		if f.Status != types.FactureBrouillon {
			return apperr.Conflict("only draft invoices can be deleted, this one is %s", f.Status)
		}
		if err := tx.DeleteFacture(ctx, f.ID); err != nil {
			return fmt.Errorf("failed to delete invoice: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info("facture deleted", zap.String("facture", uid.String()))
	return nil
}

// Get returns an invoice to an operator or to its client once issued.
func (s *Service) Get(ctx context.Context, p types.Principal, uid uuid.UUID) (*types.Facture, error) {
	var f *types.Facture
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		f, err = s.load(ctx, tx, uid)
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
		if f.ClientID != client.ID || f.Status == types.FactureBrouillon {
			return apperr.Forbidden("invoice is not available to this client")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

// List returns invoices visible to the caller, optionally narrowed to one status.
func (s *Service) List(ctx context.Context, p types.Principal, status *types.FactureStatus, limit, offset int) ([]types.Facture, error) {
	var out []types.Facture
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		f := store.FactureFilter{Limit: limit, Offset: offset}
		if status != nil {
			f.Statuses = []types.FactureStatus{*status}
		}
		if !p.IsAdmin() {
			client, err := access.Client(ctx, tx, p)
			if err != nil {
				return err
			}
			f.ClientID = &client.ID
			if status == nil {
				f.Statuses = []types.FactureStatus{types.FactureEmise, types.FacturePayee, types.FactureEnRetard, types.FactureAnnulee}
			} else if *status == types.FactureBrouillon {
				out = []types.Facture{}
				return nil
			}
		}
		var err error
		out, err = tx.ListFactures(ctx, f)
		if err != nil {
			return fmt.Errorf("failed to list invoices: %w", err)
		}
		return nil
	})
	return out, err
}

// MarquerEnRetard moves every issued invoice whose due date has passed to
// EN_RETARD and returns how many were updated.
func (s *Service) MarquerEnRetard(ctx context.Context, now time.Time) (int, error) {
	var batch notify.Batch
	count := 0

	err := s.store.InTx(ctx, func(tx store.Tx) error {
		today := types.NewDate(now)
		overdue, err := tx.ListFacturesDueBefore(ctx, types.FactureEmise, today.Time)
		if err != nil {
			return fmt.Errorf("failed to list overdue invoices: %w", err)
		}
		if len(overdue) == 0 {
			return nil
		}
		operators, err := access.Operators(ctx, tx)
		if err != nil {
			return err
		}

		for i := range overdue {
			f := &overdue[i]
			f.Status = types.FactureEnRetard
			if err := tx.UpdateFacture(ctx, f); err != nil {
				return fmt.Errorf("failed to mark invoice %s overdue: %w", f.Numero, err)
			}
			client, err := tx.GetClientByID(ctx, f.ClientID)
			if err != nil {
				return fmt.Errorf("failed to load client: %w", err)
			}
			msg := fmt.Sprintf("La facture %s est échue depuis le %s", f.Numero, f.DateEcheance)
			batch.Add(client.UserID, notify.TypeFactureEnRetard, "Facture en retard", msg, link(f.UID))
			batch.AddMany(operators, notify.TypeFactureEnRetard, "Facture en retard", msg, link(f.UID))
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.log.Info("overdue sweep done", zap.Int("updated", count))
	s.sender.Send(ctx, &batch)
	return count, nil
}

func link(uid uuid.UUID) string {
	return "/factures/" + uid.String()
}
