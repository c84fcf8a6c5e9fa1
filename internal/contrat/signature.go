package contrat

import (
	"time"

	"github.com/jonathan/talent-pipeline/internal/apperr"
	"github.com/jonathan/talent-pipeline/internal/types"
)

// Contrats and avenants share the same signature mechanics.

func send(entity string, status types.ContratStatus) (types.ContratStatus, error) {
	if status != types.ContratBrouillon {
		return "", apperr.InvalidTransition(entity, status, "envoyer")
	}
	return types.ContratEnAttenteSignature, nil
}

// sign records the signature of party and returns the resulting status: ACTIF
// once both parties signed, otherwise the partial state of the signer.
func sign(entity string, sig *types.Signature, status types.ContratStatus, party types.Role, now time.Time) (types.ContratStatus, error) {
	switch status {
	case types.ContratEnAttenteSignature, types.ContratSigneTalent, types.ContratSigneClient:
	default:
		return "", apperr.InvalidTransition(entity, status, "signer")
	}

	partial := types.ContratSigneTalent
	switch party {
	case types.RoleTalent:
		if sig.SigneParTalent {
			return "", apperr.Conflict("%s already signed by the talent", entity)
		}
		sig.SigneParTalent = true
		sig.SigneTalentAt = &now
	case types.RoleClient:
		if sig.SigneParClient {
			return "", apperr.Conflict("%s already signed by the client", entity)
		}
		sig.SigneParClient = true
		sig.SigneClientAt = &now
		partial = types.ContratSigneClient
	default:
		return "", apperr.Forbidden("only the talent or the client can sign")
	}

	if sig.Complete() {
		return types.ContratActif, nil
	}
	return partial, nil
}

func cancel(entity string, status types.ContratStatus) (types.ContratStatus, error) {
	if !status.PreActive() {
		return "", apperr.InvalidTransition(entity, status, "annuler")
	}
	return types.ContratAnnule, nil
}
