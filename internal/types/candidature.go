package types

import (
	"time"

	"github.com/google/uuid"
)

// CandidatureStatus is the pipeline stage of a candidature.
type CandidatureStatus string

const (
	CandidatureNouvelle          CandidatureStatus = "NOUVELLE"
	CandidatureVue               CandidatureStatus = "VUE"
	CandidatureEnRevue           CandidatureStatus = "EN_REVUE"
	CandidaturePreSelectionne    CandidatureStatus = "PRE_SELECTIONNE"
	CandidatureShortlist         CandidatureStatus = "SHORTLIST"
	CandidatureProposeeClient    CandidatureStatus = "PROPOSEE_CLIENT"
	CandidatureEntretienDemande  CandidatureStatus = "ENTRETIEN_DEMANDE"
	CandidatureEntretienPlanifie CandidatureStatus = "ENTRETIEN_PLANIFIE"
	CandidatureEntretienRealise  CandidatureStatus = "ENTRETIEN_REALISE"
	CandidatureAcceptee          CandidatureStatus = "ACCEPTEE"
	CandidatureRefusee           CandidatureStatus = "REFUSEE"
	CandidatureRetiree           CandidatureStatus = "RETIREE"
)

// Valid reports whether s is a known candidature status.
func (s CandidatureStatus) Valid() bool {
	switch s {
	case CandidatureNouvelle, CandidatureVue, CandidatureEnRevue, CandidaturePreSelectionne,
		CandidatureShortlist, CandidatureProposeeClient, CandidatureEntretienDemande,
		CandidatureEntretienPlanifie, CandidatureEntretienRealise, CandidatureAcceptee,
		CandidatureRefusee, CandidatureRetiree:
		return true
	}
	return false
}

// Terminal reports whether s can only be left through an administrative override.
func (s CandidatureStatus) Terminal() bool {
	switch s {
	case CandidatureAcceptee, CandidatureRefusee, CandidatureRetiree:
		return true
	}
	return false
}

// Candidature links one talent to one offre. The (offre, talent) pair is unique.
type Candidature struct {
	ID          int64             `json:"-"`
	UID         uuid.UUID         `json:"uid"`
	OffreID     int64             `json:"-"`
	OffreUID    uuid.UUID         `json:"offreUid"`
	TalentID    int64             `json:"-"`
	TalentUID   uuid.UUID         `json:"talentUid"`
	Status      CandidatureStatus `json:"statut"`
	ScoreMatch  int               `json:"scoreMatch"`
	TJMPropose  *float64          `json:"tjmPropose,omitempty"`
	Motivation  string            `json:"motivation,omitempty"`
	Notes       string            `json:"notes,omitempty"`
	CreatedBy   Role              `json:"createdBy"`
	ViewedAt    *time.Time        `json:"viewedAt,omitempty"`
	RespondedAt *time.Time        `json:"respondedAt,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// ApplyRequest is the body of a talent application.
type ApplyRequest struct {
	OffreID    uuid.UUID `json:"offreId" validate:"required"`
	Motivation string    `json:"motivation,omitempty" validate:"max=5000"`
	TJMPropose *float64  `json:"tjmPropose,omitempty" validate:"omitempty,gt=0"`
}

// AssignRequest is the body of an operator assigning a talent to an offre.
type AssignRequest struct {
	TalentID uuid.UUID `json:"talentId" validate:"required"`
	Notes    string    `json:"notes,omitempty"`
}

// CandidatureActionRequest drives one named candidature transition.
type CandidatureActionRequest struct {
	Action     string `json:"action" validate:"required"`
	Notes      string `json:"notes,omitempty"`
	MotifRefus string `json:"motifRefus,omitempty" validate:"max=2000"`
}
