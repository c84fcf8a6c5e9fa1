// Package store defines the repository contract shared by the lifecycle services.
//
// Lookups return (nil, nil) when the row does not exist. Inserts that violate a
// uniqueness constraint return an error wrapping ErrDuplicate; deletes of a row
// other rows still point at return an error wrapping ErrReferenced.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/talent-pipeline/internal/types"
)

// ErrDuplicate is returned when a write violates a uniqueness constraint.
var ErrDuplicate = errors.New("duplicate key")

// ErrReferenced is returned when a delete would leave dangling references.
var ErrReferenced = errors.New("row is still referenced")

// Store opens units of work. Every write of fn is committed when fn returns nil
// and rolled back otherwise.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// CandidatureFilter narrows candidature listings.
type CandidatureFilter struct {
	OffreID  *int64
	TalentID *int64
	// ClientID restricts to candidatures on the client's offres that belong to a shortlist.
	ClientID *int64
	Status   *types.CandidatureStatus
	Limit    int
	Offset   int
}

// ShortlistFilter narrows shortlist listings.
type ShortlistFilter struct {
	ClientID *int64
	Statuses []types.ShortlistStatus
	Limit    int
	Offset   int
}

// FactureFilter narrows invoice listings.
type FactureFilter struct {
	ClientID *int64
	Statuses []types.FactureStatus
	Limit    int
	Offset   int
}

// Tx is the set of repository operations available inside a unit of work.
type Tx interface {
	// Users
	CreateUser(ctx context.Context, u *types.User) error
	ListUserIDsByRole(ctx context.Context, role types.Role) ([]uuid.UUID, error)

	// Talents
	CreateTalent(ctx context.Context, t *types.Talent) error
	GetTalent(ctx context.Context, uid uuid.UUID) (*types.Talent, error)
	GetTalentByID(ctx context.Context, id int64) (*types.Talent, error)
	GetTalentByUserID(ctx context.Context, userID uuid.UUID) (*types.Talent, error)
	ListTalentsByStatus(ctx context.Context, status types.TalentStatus) ([]types.Talent, error)
	UpdateTalentStatus(ctx context.Context, id int64, status types.TalentStatus) error

	// Clients
	CreateClient(ctx context.Context, c *types.Client) error
	GetClient(ctx context.Context, uid uuid.UUID) (*types.Client, error)
	GetClientByID(ctx context.Context, id int64) (*types.Client, error)
	GetClientByUserID(ctx context.Context, userID uuid.UUID) (*types.Client, error)

	// Offres
	CreateOffre(ctx context.Context, o *types.Offre) error
	GetOffre(ctx context.Context, uid uuid.UUID) (*types.Offre, error)
	GetOffreByID(ctx context.Context, id int64) (*types.Offre, error)
	UpdateOffreStatus(ctx context.Context, id int64, status types.OffreStatus) error
	AdjustOffreCandidatures(ctx context.Context, id int64, delta int) error

	// Matches
	UpsertMatch(ctx context.Context, m *types.Match) error
	ListMatches(ctx context.Context, offreID int64) ([]types.Match, error)
	ClearMatchCandidature(ctx context.Context, offreID, talentID int64) error

	// Candidatures
	CreateCandidature(ctx context.Context, c *types.Candidature) error
	GetCandidature(ctx context.Context, uid uuid.UUID) (*types.Candidature, error)
	GetCandidatureByID(ctx context.Context, id int64) (*types.Candidature, error)
	FindCandidature(ctx context.Context, offreID, talentID int64) (*types.Candidature, error)
	ListCandidatures(ctx context.Context, f CandidatureFilter) ([]types.Candidature, error)
	UpdateCandidature(ctx context.Context, c *types.Candidature) error
	DeleteCandidature(ctx context.Context, id int64) error

	// Shortlists
	CreateShortlist(ctx context.Context, s *types.Shortlist) error
	GetShortlist(ctx context.Context, uid uuid.UUID) (*types.Shortlist, error)
	GetShortlistByOffre(ctx context.Context, offreID int64) (*types.Shortlist, error)
	ListShortlists(ctx context.Context, f ShortlistFilter) ([]types.Shortlist, error)
	UpdateShortlistStatus(ctx context.Context, id int64, status types.ShortlistStatus) error
	AddShortlistCandidat(ctx context.Context, sc *types.ShortlistCandidat) error
	UpdateShortlistCandidat(ctx context.Context, sc *types.ShortlistCandidat) error

	// Entretiens
	CreateEntretien(ctx context.Context, e *types.Entretien) error
	GetEntretien(ctx context.Context, uid uuid.UUID) (*types.Entretien, error)
	ListEntretiensByCandidature(ctx context.Context, candidatureID int64) ([]types.Entretien, error)
	UpdateEntretien(ctx context.Context, e *types.Entretien) error

	// Contrats
	CreateContrat(ctx context.Context, c *types.Contrat) error
	GetContrat(ctx context.Context, uid uuid.UUID) (*types.Contrat, error)
	// LastContratReference returns the reference with the highest sequence under
	// prefix: longest first, then greatest.
	LastContratReference(ctx context.Context, clientID int64, prefix string) (string, error)
	// CountActiveContrats counts the talent's ACTIF contrats other than exceptID.
	CountActiveContrats(ctx context.Context, talentID, exceptID int64) (int, error)
	UpdateContrat(ctx context.Context, c *types.Contrat) error
	DeleteContrat(ctx context.Context, id int64) error

	// Avenants
	CreateAvenant(ctx context.Context, a *types.Avenant) error
	GetAvenant(ctx context.Context, uid uuid.UUID) (*types.Avenant, error)
	ListAvenants(ctx context.Context, contratID int64) ([]types.Avenant, error)
	UpdateAvenant(ctx context.Context, a *types.Avenant) error

	// Factures
	CreateFacture(ctx context.Context, f *types.Facture) error
	GetFacture(ctx context.Context, uid uuid.UUID) (*types.Facture, error)
	// LastFactureNumero orders numeros like LastContratReference.
	LastFactureNumero(ctx context.Context, prefix string) (string, error)
	ListFactures(ctx context.Context, f FactureFilter) ([]types.Facture, error)
	ListFacturesDueBefore(ctx context.Context, status types.FactureStatus, before time.Time) ([]types.Facture, error)
	UpdateFacture(ctx context.Context, f *types.Facture) error
	ReplaceLignes(ctx context.Context, factureID int64, lignes []types.LigneFacture) error
	DeleteFacture(ctx context.Context, id int64) error
}
