package types

import (
	"time"

	"github.com/google/uuid"
)

// ContratStatus is the signature lifecycle shared by contrats and avenants.
// Avenants never reach TERMINE or RESILIE.
type ContratStatus string

const (
	ContratBrouillon          ContratStatus = "BROUILLON"
	ContratEnAttenteSignature ContratStatus = "EN_ATTENTE_SIGNATURE"
	ContratSigneTalent        ContratStatus = "SIGNE_TALENT"
	ContratSigneClient        ContratStatus = "SIGNE_CLIENT"
	ContratActif              ContratStatus = "ACTIF"
	ContratTermine            ContratStatus = "TERMINE"
	ContratResilie            ContratStatus = "RESILIE"
	ContratAnnule             ContratStatus = "ANNULE"
)

// PreActive reports whether the document has not yet been fully signed and is still cancellable.
func (s ContratStatus) PreActive() bool {
	switch s {
	case ContratBrouillon, ContratEnAttenteSignature, ContratSigneTalent, ContratSigneClient:
		return true
	}
	return false
}

// Signature holds the independent signature flags of one party pair.
type Signature struct {
	SigneParTalent bool       `json:"signeParTalent"`
	SigneParClient bool       `json:"signeParClient"`
	SigneTalentAt  *time.Time `json:"signeTalentAt,omitempty"`
	SigneClientAt  *time.Time `json:"signeClientAt,omitempty"`
}

// Complete reports whether both parties signed.
func (s Signature) Complete() bool {
	return s.SigneParTalent && s.SigneParClient
}

// Billable reports whether work under a contrat in this state can be invoiced.
func (s ContratStatus) Billable() bool {
	switch s {
	case ContratActif, ContratTermine, ContratResilie:
		return true
	}
	return false
}

// Contrat is the engagement between one talent and one client.
// Once signatures begin its terms are only changed through avenants.
type Contrat struct {
	ID                       int64     `json:"-"`
	UID                      uuid.UUID `json:"uid"`
	Reference                string    `json:"reference"`
	TalentID                 int64     `json:"-"`
	TalentUID                uuid.UUID `json:"talentUid"`
	ClientID                 int64     `json:"-"`
	ClientUID                uuid.UUID `json:"clientUid"`
	CandidatureID            *int64    `json:"-"`
	OffreID                  *int64    `json:"-"`
	Titre                    string    `json:"titre"`
	TJM                      float64   `json:"tjm"`
	DateDebut                Date      `json:"dateDebut"`
	DateFin                  *Date     `json:"dateFin,omitempty"`
	Plafond                  *float64  `json:"plafond,omitempty"`
	RenouvellementAuto       bool      `json:"renouvellementAuto"`
	ConditionsRenouvellement string    `json:"conditionsRenouvellement,omitempty"`
	Clauses                  string    `json:"clauses,omitempty"`
	Signature
	Status           ContratStatus `json:"statut"`
	MotifResiliation string        `json:"motifResiliation,omitempty"`
	EndedAt          *time.Time    `json:"endedAt,omitempty"`
	CreatedAt        time.Time     `json:"createdAt"`
	UpdatedAt        time.Time     `json:"updatedAt"`
}

// Avenant is an amendment to a contrat. It carries its own signature pair and
// never modifies the stored fields of its parent.
type Avenant struct {
	ID              int64     `json:"-"`
	UID             uuid.UUID `json:"uid"`
	ContratID       int64     `json:"-"`
	Numero          int       `json:"numero"`
	Objet           string    `json:"objet"`
	Modifications   string    `json:"modifications"`
	NouveauTJM      *float64  `json:"nouveauTjm,omitempty"`
	NouvelleDateFin *Date     `json:"nouvelleDateFin,omitempty"`
	NouveauPlafond  *float64  `json:"nouveauPlafond,omitempty"`
	DateEffet       *Date     `json:"dateEffet,omitempty"`
	Signature
	Status    ContratStatus `json:"statut"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// Terms are the effective commercial terms of a contrat after applying its signed avenants.
type Terms struct {
	TJM           float64  `json:"tjm"`
	DateFin       *Date    `json:"dateFin,omitempty"`
	Plafond       *float64 `json:"plafond,omitempty"`
	AvenantNumero *int     `json:"avenantNumero,omitempty"`
}

// CreateContratRequest creates a draft contrat, either from an accepted candidature
// or from an explicit talent and client.
type CreateContratRequest struct {
	CandidatureID            *uuid.UUID `json:"candidatureId,omitempty"`
	TalentID                 *uuid.UUID `json:"talentId,omitempty"`
	ClientID                 *uuid.UUID `json:"clientId,omitempty"`
	Titre                    string     `json:"titre" validate:"required,max=255"`
	TJM                      float64    `json:"tjm" validate:"gt=0"`
	DateDebut                Date       `json:"dateDebut"`
	DateFin                  *Date      `json:"dateFin,omitempty"`
	Plafond                  *float64   `json:"plafond,omitempty" validate:"omitempty,gt=0"`
	RenouvellementAuto       bool       `json:"renouvellementAuto"`
	ConditionsRenouvellement string     `json:"conditionsRenouvellement,omitempty"`
	Clauses                  string     `json:"clauses,omitempty"`
}

// UpdateContratRequest edits the substantive terms of a draft contrat. Nil fields are left unchanged.
type UpdateContratRequest struct {
	Titre                    *string  `json:"titre,omitempty" validate:"omitempty,min=1,max=255"`
	TJM                      *float64 `json:"tjm,omitempty" validate:"omitempty,gt=0"`
	DateDebut                *Date    `json:"dateDebut,omitempty"`
	DateFin                  *Date    `json:"dateFin,omitempty"`
	Plafond                  *float64 `json:"plafond,omitempty" validate:"omitempty,gt=0"`
	RenouvellementAuto       *bool    `json:"renouvellementAuto,omitempty"`
	ConditionsRenouvellement *string  `json:"conditionsRenouvellement,omitempty"`
	Clauses                  *string  `json:"clauses,omitempty"`
}

// AvenantRequest describes a new amendment.
type AvenantRequest struct {
	Objet           string   `json:"objet" validate:"required,max=255"`
	Modifications   string   `json:"modifications" validate:"required"`
	NouveauTJM      *float64 `json:"nouveauTjm,omitempty" validate:"omitempty,gt=0"`
	NouvelleDateFin *Date    `json:"nouvelleDateFin,omitempty"`
	NouveauPlafond  *float64 `json:"nouveauPlafond,omitempty" validate:"omitempty,gt=0"`
	DateEffet       *Date    `json:"dateEffet,omitempty"`
}

// ContratActionRequest drives one contrat transition. Motif is required by resilier;
// Avenant is required by the avenant action.
type ContratActionRequest struct {
	Action  string          `json:"action" validate:"required"`
	Motif   string          `json:"motif,omitempty" validate:"max=2000"`
	Avenant *AvenantRequest `json:"avenant,omitempty"`
}

// AvenantActionRequest drives one avenant transition.
type AvenantActionRequest struct {
	Action string `json:"action" validate:"required,oneof=envoyer signer annuler"`
}
