package types

import (
	"time"

	"github.com/google/uuid"
)

// TalentStatus is the soft lifecycle of a talent profile. Talents are never hard-deleted.
type TalentStatus string

const (
	TalentActive    TalentStatus = "ACTIVE"
	TalentInMission TalentStatus = "IN_MISSION"
	TalentInactive  TalentStatus = "INACTIVE"
	TalentSuspended TalentStatus = "SUSPENDED"
)

// Availability is the declared availability of a talent.
type Availability string

const (
	AvailableImmediate   Availability = "IMMEDIATE"
	AvailableOneMonth    Availability = "ONE_MONTH"
	AvailableThreeMonths Availability = "THREE_MONTHS"
	Unavailable          Availability = "UNAVAILABLE"
)

// Talent is an independent contractor profile.
type Talent struct {
	ID              int64        `json:"-"`
	UID             uuid.UUID    `json:"uid"`
	UserID          uuid.UUID    `json:"userId"`
	Prenom          string       `json:"prenom"`
	Nom             string       `json:"nom"`
	Skills          []string     `json:"skills"`
	YearsExperience *int         `json:"anneesExperience,omitempty"`
	TJMMin          *float64     `json:"tjmMin,omitempty"`
	TJMMax          *float64     `json:"tjmMax,omitempty"`
	Availability    Availability `json:"disponibilite"`
	Status          TalentStatus `json:"statut"`
	CreatedAt       time.Time    `json:"createdAt"`
}

// Client is a company publishing offres and signing contrats.
type Client struct {
	ID            int64     `json:"-"`
	UID           uuid.UUID `json:"uid"`
	UserID        uuid.UUID `json:"userId"`
	RaisonSociale string    `json:"raisonSociale"`
	Email         string    `json:"email"`
	CreatedAt     time.Time `json:"createdAt"`
}

// OffreStatus is the publication state of an offre.
type OffreStatus string

const (
	OffreDraft     OffreStatus = "DRAFT"
	OffrePublished OffreStatus = "PUBLISHED"
	OffreFilled    OffreStatus = "FILLED"
	OffreClosed    OffreStatus = "CLOSED"
)

// Offre is a mission posting, owned by a client or created directly by an operator.
type Offre struct {
	ID             int64       `json:"-"`
	UID            uuid.UUID   `json:"uid"`
	ClientID       *int64      `json:"-"`
	Titre          string      `json:"titre"`
	RequiredSkills []string    `json:"competencesRequises"`
	DesiredSkills  []string    `json:"competencesSouhaitees"`
	MinExperience  *int        `json:"experienceMin,omitempty"`
	TJMMin         *float64    `json:"tjmMin,omitempty"`
	TJMMax         *float64    `json:"tjmMax,omitempty"`
	Status         OffreStatus `json:"statut"`
	NbCandidatures int         `json:"nbCandidatures"`
	CreatedAt      time.Time   `json:"createdAt"`
}

// Match is the cached scoring result for an (offre, talent) pair.
// At most one row exists per pair; recomputation replaces it.
type Match struct {
	ID              int64     `json:"-"`
	OffreID         int64     `json:"-"`
	TalentID        int64     `json:"-"`
	TalentUID       uuid.UUID `json:"talentUid"`
	Score           int       `json:"score"`
	MatchedRequired []string  `json:"competencesRequisesCouvertes"`
	MatchedDesired  []string  `json:"competencesSouhaiteesCouvertes"`
	MissingRequired []string  `json:"competencesManquantes"`
	CandidatureID   *int64    `json:"-"`
	ComputedAt      time.Time `json:"computedAt"`
}
