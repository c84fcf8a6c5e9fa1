package types

import (
	"time"

	"github.com/google/uuid"
)

// EntretienStatus is the scheduling state of an interview.
type EntretienStatus string

const (
	EntretienEnAttenteConfirmation   EntretienStatus = "EN_ATTENTE_CONFIRMATION"
	EntretienConfirme                EntretienStatus = "CONFIRME"
	EntretienDateAlternativeProposee EntretienStatus = "DATE_ALTERNATIVE_PROPOSEE"
	EntretienAnnule                  EntretienStatus = "ANNULE"
	EntretienRealise                 EntretienStatus = "REALISE"
)

// Active reports whether the interview still blocks a new one for the same candidature.
// An interview waiting on an alternative date can still be confirmed, so it blocks too.
func (s EntretienStatus) Active() bool {
	switch s {
	case EntretienEnAttenteConfirmation, EntretienDateAlternativeProposee, EntretienConfirme:
		return true
	}
	return false
}

// EntretienType is the meeting medium.
type EntretienType string

const (
	EntretienVisio      EntretienType = "VISIO"
	EntretienPresentiel EntretienType = "PRESENTIEL"
	EntretienTelephone  EntretienType = "TELEPHONE"
)

// Valid reports whether t is a known meeting medium.
func (t EntretienType) Valid() bool {
	switch t {
	case EntretienVisio, EntretienPresentiel, EntretienTelephone:
		return true
	}
	return false
}

// Slot is a proposed meeting date with start and end times (HH:MM).
type Slot struct {
	Date       Date   `json:"date"`
	HeureDebut string `json:"heureDebut"`
	HeureFin   string `json:"heureFin"`
}

// Entretien is one interview attempt for a candidature. Cancelled and realized
// attempts are kept alongside newer ones.
type Entretien struct {
	ID              int64           `json:"-"`
	UID             uuid.UUID       `json:"uid"`
	CandidatureID   int64           `json:"-"`
	CandidatureUID  uuid.UUID       `json:"candidatureUid"`
	Proposition     Slot            `json:"proposition"`
	Alternative     *Slot           `json:"alternative,omitempty"`
	Type            EntretienType   `json:"type"`
	Lieu            string          `json:"lieu,omitempty"`
	Lien            string          `json:"lien,omitempty"`
	Status          EntretienStatus `json:"statut"`
	ConfirmedAt     *time.Time      `json:"confirmedAt,omitempty"`
	ConfirmedBy     *uuid.UUID      `json:"confirmedBy,omitempty"`
	MotifAnnulation string          `json:"motifAnnulation,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// CreateEntretienRequest proposes an interview for a candidature.
type CreateEntretienRequest struct {
	CandidatureID uuid.UUID     `json:"candidatureId" validate:"required"`
	DateProposee  Date          `json:"dateProposee"`
	HeureDebut    string        `json:"heureDebut" validate:"required,datetime=15:04"`
	HeureFin      string        `json:"heureFin" validate:"required,datetime=15:04"`
	Type          EntretienType `json:"type" validate:"required,oneof=VISIO PRESENTIEL TELEPHONE"`
	Lieu          string        `json:"lieu,omitempty" validate:"max=500"`
	Lien          string        `json:"lien,omitempty" validate:"omitempty,url"`
	Notes         string        `json:"notes,omitempty" validate:"max=2000"`
}

// EntretienActionRequest drives one interview transition. Date fields are used by
// proposer_date and reprogrammer, Motif by refuser and annuler.
type EntretienActionRequest struct {
	Action     string `json:"action" validate:"required"`
	Date       *Date  `json:"date,omitempty"`
	HeureDebut string `json:"heureDebut,omitempty" validate:"omitempty,datetime=15:04"`
	HeureFin   string `json:"heureFin,omitempty" validate:"omitempty,datetime=15:04"`
	Motif      string `json:"motif,omitempty" validate:"max=2000"`
	Notes      string `json:"notes,omitempty" validate:"max=2000"`
}
