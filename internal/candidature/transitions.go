package candidature

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/jonathan/talent-pipeline/internal/apperr"
	"github.com/jonathan/talent-pipeline/internal/store"
	"github.com/jonathan/talent-pipeline/internal/types"
)

// Action is a named candidature transition.
type Action string

const (
	ActionVoir               Action = "voir"
	ActionMettreEnRevue      Action = "mettre_en_revue"
	ActionPreselectionner    Action = "preselectionner"
	ActionAjouterShortlist   Action = "ajouter_shortlist"
	ActionProposerClient     Action = "proposer_client"
	ActionDemanderEntretien  Action = "demander_entretien"
	ActionPlanifierEntretien Action = "planifier_entretien"
	ActionReplacerShortlist  Action = "replacer_shortlist"
	ActionEntretienRealise   Action = "entretien_realise"
	ActionAccepter           Action = "accepter"
	ActionRefuser            Action = "refuser"
	ActionReouvrir           Action = "reouvrir"
)

type rule struct {
	from []types.CandidatureStatus
	to   types.CandidatureStatus
}

var nonTerminal = []types.CandidatureStatus{
	types.CandidatureNouvelle,
	types.CandidatureVue,
	types.CandidatureEnRevue,
	types.CandidaturePreSelectionne,
	types.CandidatureShortlist,
	types.CandidatureProposeeClient,
	types.CandidatureEntretienDemande,
	types.CandidatureEntretienPlanifie,
	types.CandidatureEntretienRealise,
}

var rules = map[Action]rule{
	ActionVoir: {
		from: []types.CandidatureStatus{types.CandidatureNouvelle, types.CandidatureVue},
		to:   types.CandidatureVue,
	},
	ActionMettreEnRevue: {
		from: []types.CandidatureStatus{types.CandidatureNouvelle, types.CandidatureVue},
		to:   types.CandidatureEnRevue,
	},
	ActionPreselectionner: {
		from: []types.CandidatureStatus{types.CandidatureNouvelle, types.CandidatureVue, types.CandidatureEnRevue},
		to:   types.CandidaturePreSelectionne,
	},
	ActionAjouterShortlist: {
		from: []types.CandidatureStatus{types.CandidatureNouvelle, types.CandidatureVue, types.CandidatureEnRevue, types.CandidaturePreSelectionne},
		to:   types.CandidatureShortlist,
	},
	ActionProposerClient: {
		from: []types.CandidatureStatus{types.CandidatureShortlist},
		to:   types.CandidatureProposeeClient,
	},
	ActionDemanderEntretien: {
		from: []types.CandidatureStatus{types.CandidatureShortlist, types.CandidatureProposeeClient},
		to:   types.CandidatureEntretienDemande,
	},
	ActionPlanifierEntretien: {
		from: []types.CandidatureStatus{types.CandidatureEntretienDemande},
		to:   types.CandidatureEntretienPlanifie,
	},
	ActionReplacerShortlist: {
		from: []types.CandidatureStatus{types.CandidatureEntretienDemande, types.CandidatureEntretienPlanifie},
		to:   types.CandidatureShortlist,
	},
	ActionEntretienRealise: {
		from: []types.CandidatureStatus{types.CandidatureEntretienPlanifie},
		to:   types.CandidatureEntretienRealise,
	},
	ActionAccepter: {
		from: []types.CandidatureStatus{
			types.CandidaturePreSelectionne,
			types.CandidatureShortlist,
			types.CandidatureProposeeClient,
			types.CandidatureEntretienDemande,
			types.CandidatureEntretienPlanifie,
			types.CandidatureEntretienRealise,
		},
		to: types.CandidatureAcceptee,
	},
	ActionRefuser: {
		from: nonTerminal,
		to:   types.CandidatureRefusee,
	},
	ActionReouvrir: {
		from: []types.CandidatureStatus{types.CandidatureAcceptee, types.CandidatureRefusee},
		to:   types.CandidatureEnRevue,
	},
}

// Next returns the status reached by applying action from status.
func Next(from types.CandidatureStatus, action Action) (types.CandidatureStatus, error) {
	r, ok := rules[action]
	if !ok {
		return "", apperr.UnknownAction("candidature", string(action))
	}
	if !slices.Contains(r.from, from) {
		return "", apperr.InvalidTransition("candidature", from, string(action))
	}
	return r.to, nil
}

// Allowed reports whether action can be applied from status.
func Allowed(from types.CandidatureStatus, action Action) bool {
	_, err := Next(from, action)
	return err == nil
}

// Advance applies action to c inside tx and persists it. It stamps ViewedAt the
// first time the candidature is viewed and RespondedAt on acceptance or refusal.
// Sibling lifecycles use it to propagate their own transitions.
func Advance(ctx context.Context, tx store.Tx, c *types.Candidature, action Action, now time.Time) error {
	next, err := Next(c.Status, action)
	if err != nil {
		return err
	}

	c.Status = next
	switch next {
	case types.CandidatureVue:
		if c.ViewedAt == nil {
			c.ViewedAt = &now
		}
	case types.CandidatureAcceptee, types.CandidatureRefusee:
		c.RespondedAt = &now
	case types.CandidatureEnRevue:
		if action == ActionReouvrir {
			c.RespondedAt = nil
		}
	}

	if err := tx.UpdateCandidature(ctx, c); err != nil {
		return fmt.Errorf("failed to update candidature: %w", err)
	}
	return nil
}
