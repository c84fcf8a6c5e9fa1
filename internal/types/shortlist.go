package types

import (
	"time"

	"github.com/google/uuid"
)

// ShortlistStatus is the coarse status of a shortlist, used only for list filtering.
type ShortlistStatus string

const (
	ShortlistEnCours         ShortlistStatus = "EN_COURS"
	ShortlistPrete           ShortlistStatus = "PRETE"
	ShortlistEnvoyee         ShortlistStatus = "ENVOYEE"
	ShortlistEnAttenteRetour ShortlistStatus = "EN_ATTENTE_RETOUR"
	ShortlistFinalisee       ShortlistStatus = "FINALISEE"
)

// Valid reports whether s is a known shortlist status.
func (s ShortlistStatus) Valid() bool {
	switch s {
	case ShortlistEnCours, ShortlistPrete, ShortlistEnvoyee, ShortlistEnAttenteRetour, ShortlistFinalisee:
		return true
	}
	return false
}

// ClientVisible reports whether clients may list a shortlist in this status.
func (s ShortlistStatus) ClientVisible() bool {
	switch s {
	case ShortlistEnvoyee, ShortlistEnAttenteRetour, ShortlistFinalisee:
		return true
	}
	return false
}

// Feedback is the client's opinion on one shortlisted candidate. It is independent
// from the candidature's own pipeline status.
type Feedback string

const (
	FeedbackVu               Feedback = "VU"
	FeedbackSelectionne      Feedback = "SELECTIONNE"
	FeedbackRefuse           Feedback = "REFUSE"
	FeedbackDemandeEntretien Feedback = "DEMANDE_ENTRETIEN"
	FeedbackDemandeInfos     Feedback = "DEMANDE_INFOS"
)

// Shortlist is the curated, ordered set of candidatures presented to a client for one offre.
type Shortlist struct {
	ID        int64               `json:"-"`
	UID       uuid.UUID           `json:"uid"`
	OffreID   int64               `json:"-"`
	OffreUID  uuid.UUID           `json:"offreUid"`
	Status    ShortlistStatus     `json:"statut"`
	Candidats []ShortlistCandidat `json:"candidats"`
	CreatedAt time.Time           `json:"createdAt"`
	UpdatedAt time.Time           `json:"updatedAt"`
}

// ShortlistCandidat wraps one candidature inside a shortlist.
type ShortlistCandidat struct {
	ID                int64      `json:"-"`
	UID               uuid.UUID  `json:"uid"`
	ShortlistID       int64      `json:"-"`
	CandidatureID     int64      `json:"-"`
	CandidatureUID    uuid.UUID  `json:"candidatureUid"`
	Position          int        `json:"position"`
	Feedback          *Feedback  `json:"feedback,omitempty"`
	CommentaireClient string     `json:"commentaireClient,omitempty"`
	QuestionClient    string     `json:"questionClient,omitempty"`
	FeedbackAt        *time.Time `json:"feedbackAt,omitempty"`
}

// CreateShortlistRequest creates a shortlist with its ordered members.
type CreateShortlistRequest struct {
	OffreID        uuid.UUID   `json:"offreId" validate:"required"`
	CandidatureIDs []uuid.UUID `json:"candidatureIds" validate:"required,min=1,dive,required"`
}

// AddShortlistCandidatRequest appends one candidature to an existing shortlist.
type AddShortlistCandidatRequest struct {
	CandidatureID uuid.UUID `json:"candidatureId" validate:"required"`
}

// ShortlistStatusRequest changes the coarse status of a shortlist.
type ShortlistStatusRequest struct {
	Statut ShortlistStatus `json:"statut" validate:"required"`
}

// ShortlistCandidatActionRequest is a client action on one shortlisted candidate.
type ShortlistCandidatActionRequest struct {
	Action      string `json:"action" validate:"required"`
	Commentaire string `json:"commentaire,omitempty" validate:"max=2000"`
	Question    string `json:"question,omitempty" validate:"max=2000"`
}
