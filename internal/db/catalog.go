package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/jonathan/talent-pipeline/internal/types"
)

// ============================================================================
// Users
// ============================================================================

func (q *queries) CreateUser(ctx context.Context, u *types.User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	_, err := q.tx.Exec(ctx,
		`INSERT INTO users (id, email, role) VALUES ($1, $2, $3)`,
		u.ID, u.Email, string(u.Role),
	)
	if err != nil {
		return wrap("create user", err)
	}
	return nil
}

func (q *queries) ListUserIDsByRole(ctx context.Context, role types.Role) ([]uuid.UUID, error) {
	rows, err := q.tx.Query(ctx, `SELECT id FROM users WHERE role = $1 ORDER BY id::text`, string(role))
	if err != nil {
		return nil, wrap("list users", err)
	}
	ids, err := collect(rows, func(r rowScanner) (*uuid.UUID, error) {
		var id uuid.UUID
		return &id, r.Scan(&id)
	})
	if err != nil {
		return nil, wrap("scan users", err)
	}
	return ids, nil
}

// ============================================================================
// Talents
// ============================================================================

const talentColumns = `id, uid, user_id, prenom, nom, skills, annees_experience, tjm_min, tjm_max,
	disponibilite, statut, created_at`

func scanTalent(r rowScanner) (*types.Talent, error) {
	var t types.Talent
	var availability, status string
	err := r.Scan(&t.ID, &t.UID, &t.UserID, &t.Prenom, &t.Nom, &t.Skills, &t.YearsExperience,
		&t.TJMMin, &t.TJMMax, &availability, &status, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	t.Availability = types.Availability(availability)
	t.Status = types.TalentStatus(status)
	return &t, nil
}

func (q *queries) CreateTalent(ctx context.Context, t *types.Talent) error {
	if t.UID == uuid.Nil {
		t.UID = uuid.New()
	}
	if t.Status == "" {
		t.Status = types.TalentActive
	}
	if t.Availability == "" {
		t.Availability = types.AvailableImmediate
	}
	err := q.tx.QueryRow(ctx,
		`INSERT INTO talents (uid, user_id, prenom, nom, skills, annees_experience, tjm_min, tjm_max,
		                      disponibilite, statut)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id, created_at`,
		t.UID, t.UserID, t.Prenom, t.Nom, orEmpty(t.Skills), t.YearsExperience, t.TJMMin, t.TJMMax,
		string(t.Availability), string(t.Status),
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return wrap("create talent", err)
	}
	return nil
}

func (q *queries) GetTalent(ctx context.Context, uid uuid.UUID) (*types.Talent, error) {
	t, err := one(scanTalent(q.tx.QueryRow(ctx, `SELECT `+talentColumns+` FROM talents WHERE uid = $1`, uid)))
	if err != nil {
		return nil, wrap("get talent", err)
	}
	return t, nil
}

func (q *queries) GetTalentByID(ctx context.Context, id int64) (*types.Talent, error) {
	t, err := one(scanTalent(q.tx.QueryRow(ctx, `SELECT `+talentColumns+` FROM talents WHERE id = $1`, id)))
	if err != nil {
		return nil, wrap("get talent", err)
	}
	return t, nil
}

func (q *queries) GetTalentByUserID(ctx context.Context, userID uuid.UUID) (*types.Talent, error) {
	t, err := one(scanTalent(q.tx.QueryRow(ctx, `SELECT `+talentColumns+` FROM talents WHERE user_id = $1`, userID)))
	if err != nil {
		return nil, wrap("get talent", err)
	}
	return t, nil
}

func (q *queries) ListTalentsByStatus(ctx context.Context, status types.TalentStatus) ([]types.Talent, error) {
	rows, err := q.tx.Query(ctx, `SELECT `+talentColumns+` FROM talents WHERE statut = $1 ORDER BY id`, string(status))
	if err != nil {
		return nil, wrap("list talents", err)
	}
	talents, err := collect(rows, scanTalent)
	if err != nil {
		return nil, wrap("scan talents", err)
	}
	return talents, nil
}

func (q *queries) UpdateTalentStatus(ctx context.Context, id int64, status types.TalentStatus) error {
	tag, err := q.tx.Exec(ctx, `UPDATE talents SET statut = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		return wrap("update talent status", err)
	}
	return expectOne(tag, "talent", id)
}

// ============================================================================
// Clients
// ============================================================================

const clientColumns = `id, uid, user_id, raison_sociale, email, created_at`

func scanClient(r rowScanner) (*types.Client, error) {
	var c types.Client
	if err := r.Scan(&c.ID, &c.UID, &c.UserID, &c.RaisonSociale, &c.Email, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (q *queries) CreateClient(ctx context.Context, c *types.Client) error {
	if c.UID == uuid.Nil {
		c.UID = uuid.New()
	}
	err := q.tx.QueryRow(ctx,
		`INSERT INTO clients (uid, user_id, raison_sociale, email)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		c.UID, c.UserID, c.RaisonSociale, c.Email,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return wrap("create client", err)
	}
	return nil
}

func (q *queries) GetClient(ctx context.Context, uid uuid.UUID) (*types.Client, error) {
	c, err := one(scanClient(q.tx.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE uid = $1`, uid)))
	if err != nil {
		return nil, wrap("get client", err)
	}
	return c, nil
}

func (q *queries) GetClientByID(ctx context.Context, id int64) (*types.Client, error) {
	c, err := one(scanClient(q.tx.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1`, id)))
	if err != nil {
		return nil, wrap("get client", err)
	}
	return c, nil
}

func (q *queries) GetClientByUserID(ctx context.Context, userID uuid.UUID) (*types.Client, error) {
	c, err := one(scanClient(q.tx.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE user_id = $1`, userID)))
	if err != nil {
		return nil, wrap("get client", err)
	}
	return c, nil
}

// ============================================================================
// Offres
// ============================================================================

const offreColumns = `id, uid, client_id, titre, competences_requises, competences_souhaitees,
	experience_min, tjm_min, tjm_max, statut, nb_candidatures, created_at`

func scanOffre(r rowScanner) (*types.Offre, error) {
	var o types.Offre
	var status string
	err := r.Scan(&o.ID, &o.UID, &o.ClientID, &o.Titre, &o.RequiredSkills, &o.DesiredSkills,
		&o.MinExperience, &o.TJMMin, &o.TJMMax, &status, &o.NbCandidatures, &o.CreatedAt)
	if err != nil {
		return nil, err
	}
	o.Status = types.OffreStatus(status)
	return &o, nil
}

func (q *queries) CreateOffre(ctx context.Context, o *types.Offre) error {
	if o.UID == uuid.Nil {
		o.UID = uuid.New()
	}
	if o.Status == "" {
		o.Status = types.OffreDraft
	}
	err := q.tx.QueryRow(ctx,
		`INSERT INTO offres (uid, client_id, titre, competences_requises, competences_souhaitees,
		                     experience_min, tjm_min, tjm_max, statut)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, nb_candidatures, created_at`,
		o.UID, o.ClientID, o.Titre, orEmpty(o.RequiredSkills), orEmpty(o.DesiredSkills),
		o.MinExperience, o.TJMMin, o.TJMMax, string(o.Status),
	).Scan(&o.ID, &o.NbCandidatures, &o.CreatedAt)
	if err != nil {
		return wrap("create offre", err)
	}
	return nil
}

func (q *queries) GetOffre(ctx context.Context, uid uuid.UUID) (*types.Offre, error) {
	o, err := one(scanOffre(q.tx.QueryRow(ctx, `SELECT `+offreColumns+` FROM offres WHERE uid = $1`, uid)))
	if err != nil {
		return nil, wrap("get offre", err)
	}
	return o, nil
}

func (q *queries) GetOffreByID(ctx context.Context, id int64) (*types.Offre, error) {
	o, err := one(scanOffre(q.tx.QueryRow(ctx, `SELECT `+offreColumns+` FROM offres WHERE id = $1`, id)))
	if err != nil {
		return nil, wrap("get offre", err)
	}
	return o, nil
}

func (q *queries) UpdateOffreStatus(ctx context.Context, id int64, status types.OffreStatus) error {
	tag, err := q.tx.Exec(ctx, `UPDATE offres SET statut = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		return wrap("update offre status", err)
	}
	return expectOne(tag, "offre", id)
}

// AdjustOffreCandidatures moves the denormalized counter, never below zero.
func (q *queries) AdjustOffreCandidatures(ctx context.Context, id int64, delta int) error {
	tag, err := q.tx.Exec(ctx,
		`UPDATE offres SET nb_candidatures = GREATEST(nb_candidatures + $2, 0) WHERE id = $1`,
		id, delta,
	)
	if err != nil {
		return wrap("adjust offre candidatures", err)
	}
	return expectOne(tag, "offre", id)
}
