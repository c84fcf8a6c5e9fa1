package types

import (
	"time"

	"github.com/google/uuid"
)

// FactureStatus is the billing state of an invoice.
type FactureStatus string

const (
	FactureBrouillon FactureStatus = "BROUILLON"
	FactureEmise     FactureStatus = "EMISE"
	FacturePayee     FactureStatus = "PAYEE"
	FactureEnRetard  FactureStatus = "EN_RETARD"
	FactureAnnulee   FactureStatus = "ANNULEE"
)

// Valid reports whether s is a known invoice status.
func (s FactureStatus) Valid() bool {
	switch s {
	case FactureBrouillon, FactureEmise, FacturePayee, FactureEnRetard, FactureAnnulee:
		return true
	}
	return false
}

// RemiseType selects how a discount value is interpreted.
type RemiseType string

const (
	RemisePourcentage RemiseType = "POURCENTAGE"
	RemiseMontant     RemiseType = "MONTANT"
)

// ModePaiement is the payment method recorded when an invoice is paid.
type ModePaiement string

const (
	PaiementVirement    ModePaiement = "VIREMENT"
	PaiementCheque      ModePaiement = "CHEQUE"
	PaiementCarte       ModePaiement = "CARTE"
	PaiementPrelevement ModePaiement = "PRELEVEMENT"
	PaiementEspeces     ModePaiement = "ESPECES"
)

// Remise is an optional discount on the invoice subtotal.
type Remise struct {
	Type   RemiseType `json:"type" validate:"required,oneof=POURCENTAGE MONTANT"`
	Valeur float64    `json:"valeur" validate:"gte=0"`
}

// Facture is a client invoice. Its totals are always derived from its current lines.
type Facture struct {
	ID                int64          `json:"-"`
	UID               uuid.UUID      `json:"uid"`
	Numero            string         `json:"numero"`
	ClientID          int64          `json:"-"`
	ClientUID         uuid.UUID      `json:"clientUid"`
	ContratID         *int64         `json:"-"`
	ContratUID        *uuid.UUID     `json:"contratUid,omitempty"`
	DateEmission      *Date          `json:"dateEmission,omitempty"`
	DateEcheance      *Date          `json:"dateEcheance,omitempty"`
	Remise            *Remise        `json:"remise,omitempty"`
	MontantHT         float64        `json:"montantHT"`
	MontantRemise     float64        `json:"montantRemise"`
	TauxTVA           float64        `json:"tauxTVA"`
	MontantTVA        float64        `json:"montantTVA"`
	MontantTTC        float64        `json:"montantTTC"`
	Status            FactureStatus  `json:"statut"`
	ModePaiement      *ModePaiement  `json:"modePaiement,omitempty"`
	ReferencePaiement string         `json:"referencePaiement,omitempty"`
	PaidAt            *time.Time     `json:"paidAt,omitempty"`
	NbRelances        int            `json:"nbRelances"`
	DerniereRelance   *time.Time     `json:"derniereRelance,omitempty"`
	MotifAnnulation   string         `json:"motifAnnulation,omitempty"`
	Lignes            []LigneFacture `json:"lignes"`
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`
}

// LigneFacture is one invoice line.
type LigneFacture struct {
	ID           int64   `json:"-"`
	FactureID    int64   `json:"-"`
	Position     int     `json:"position"`
	Description  string  `json:"description"`
	Quantite     float64 `json:"quantite"`
	PrixUnitaire float64 `json:"prixUnitaire"`
	MontantHT    float64 `json:"montantHT"`
}

// LigneRequest is one submitted invoice line.
type LigneRequest struct {
	Description  string  `json:"description" validate:"required,max=500"`
	Quantite     float64 `json:"quantite" validate:"gt=0"`
	PrixUnitaire float64 `json:"prixUnitaire" validate:"gte=0"`
}

// CreateFactureRequest creates a draft invoice.
type CreateFactureRequest struct {
	ClientID  uuid.UUID      `json:"clientId" validate:"required"`
	ContratID *uuid.UUID     `json:"contratId,omitempty"`
	Lignes    []LigneRequest `json:"lignes" validate:"dive"`
	Remise    *Remise        `json:"remise,omitempty"`
	TauxTVA   *float64       `json:"tauxTVA,omitempty" validate:"omitempty,gte=0,lte=1"`
}

// ReplaceLignesRequest replaces every line of a draft invoice.
type ReplaceLignesRequest struct {
	Lignes  []LigneRequest `json:"lignes" validate:"dive"`
	Remise  *Remise        `json:"remise,omitempty"`
	TauxTVA *float64       `json:"tauxTVA,omitempty" validate:"omitempty,gte=0,lte=1"`
}

// FactureActionRequest drives one invoice transition.
type FactureActionRequest struct {
	Action            string        `json:"action" validate:"required,oneof=emettre payer annuler relancer"`
	DateEcheance      *Date         `json:"dateEcheance,omitempty"`
	ModePaiement      *ModePaiement `json:"modePaiement,omitempty" validate:"omitempty,oneof=VIREMENT CHEQUE CARTE PRELEVEMENT ESPECES"`
	ReferencePaiement string        `json:"referencePaiement,omitempty" validate:"max=255"`
	Motif             string        `json:"motif,omitempty" validate:"max=2000"`
}
