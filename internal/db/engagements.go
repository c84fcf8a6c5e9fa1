package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/talent-pipeline/internal/types"
)

// ============================================================================
// Entretiens
// ============================================================================

const entretienSelect = `SELECT e.id, e.uid, e.candidature_id, c.uid, e.date_proposee, e.heure_debut, e.heure_fin,
	e.alt_date, e.alt_heure_debut, e.alt_heure_fin, e.type, e.lieu, e.lien, e.statut, e.confirmed_at,
	e.confirmed_by, e.motif_annulation, e.notes, e.created_at, e.updated_at
	FROM entretiens e
	JOIN candidatures c ON c.id = e.candidature_id`

func scanEntretien(r rowScanner) (*types.Entretien, error) {
	var e types.Entretien
	var date time.Time
	var altDate *time.Time
	var altDebut, altFin *string
	var typ, status string
	err := r.Scan(&e.ID, &e.UID, &e.CandidatureID, &e.CandidatureUID, &date, &e.Proposition.HeureDebut,
		&e.Proposition.HeureFin, &altDate, &altDebut, &altFin, &typ, &e.Lieu, &e.Lien, &status,
		&e.ConfirmedAt, &e.ConfirmedBy, &e.MotifAnnulation, &e.Notes, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	e.Proposition.Date = types.NewDate(date)
	if altDate != nil {
		e.Alternative = &types.Slot{Date: *toDate(altDate)}
		if altDebut != nil {
			e.Alternative.HeureDebut = *altDebut
		}
		if altFin != nil {
			e.Alternative.HeureFin = *altFin
		}
	}
	e.Type = types.EntretienType(typ)
	e.Status = types.EntretienStatus(status)
	return &e, nil
}

// alternativeArgs flattens the optional counter-proposal into nullable columns.
func alternativeArgs(s *types.Slot) (any, any, any) {
	if s == nil {
		return nil, nil, nil
	}
	return dateArg(&s.Date), s.HeureDebut, s.HeureFin
}

func (q *queries) CreateEntretien(ctx context.Context, e *types.Entretien) error {
	if e.UID == uuid.Nil {
		e.UID = uuid.New()
	}
	altDate, altDebut, altFin := alternativeArgs(e.Alternative)
	err := q.tx.QueryRow(ctx,
		`INSERT INTO entretiens (uid, candidature_id, date_proposee, heure_debut, heure_fin, alt_date,
		                         alt_heure_debut, alt_heure_fin, type, lieu, lien, statut, confirmed_at,
		                         confirmed_by, motif_annulation, notes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		 RETURNING id, created_at, updated_at, (SELECT uid FROM candidatures WHERE id = $2)`,
		e.UID, e.CandidatureID, e.Proposition.Date.Time, e.Proposition.HeureDebut, e.Proposition.HeureFin,
		altDate, altDebut, altFin, string(e.Type), e.Lieu, e.Lien, string(e.Status), e.ConfirmedAt,
		e.ConfirmedBy, e.MotifAnnulation, e.Notes,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt, &e.CandidatureUID)
	if err != nil {
		return wrap("create entretien", err)
	}
	return nil
}

func (q *queries) GetEntretien(ctx context.Context, uid uuid.UUID) (*types.Entretien, error) {
	e, err := one(scanEntretien(q.tx.QueryRow(ctx, entretienSelect+` WHERE e.uid = $1`, uid)))
	if err != nil {
		return nil, wrap("get entretien", err)
	}
	return e, nil
}

func (q *queries) ListEntretiensByCandidature(ctx context.Context, candidatureID int64) ([]types.Entretien, error) {
	rows, err := q.tx.Query(ctx, entretienSelect+` WHERE e.candidature_id = $1 ORDER BY e.id`, candidatureID)
	if err != nil {
		return nil, wrap("list entretiens", err)
	}
	out, err := collect(rows, scanEntretien)
	if err != nil {
		return nil, wrap("scan entretiens", err)
	}
	return out, nil
}

func (q *queries) UpdateEntretien(ctx context.Context, e *types.Entretien) error {
	altDate, altDebut, altFin := alternativeArgs(e.Alternative)
	err := q.tx.QueryRow(ctx,
		`UPDATE entretiens SET date_proposee = $2, heure_debut = $3, heure_fin = $4, alt_date = $5,
		        alt_heure_debut = $6, alt_heure_fin = $7, type = $8, lieu = $9, lien = $10, statut = $11,
		        confirmed_at = $12, confirmed_by = $13, motif_annulation = $14, notes = $15, updated_at = NOW()
		 WHERE id = $1
		 RETURNING updated_at`,
		e.ID, e.Proposition.Date.Time, e.Proposition.HeureDebut, e.Proposition.HeureFin, altDate, altDebut,
		altFin, string(e.Type), e.Lieu, e.Lien, string(e.Status), e.ConfirmedAt, e.ConfirmedBy,
		e.MotifAnnulation, e.Notes,
	).Scan(&e.UpdatedAt)
	if err != nil {
		return wrap("update entretien", err)
	}
	return nil
}

// ============================================================================
// Contrats
// ============================================================================

const contratSelect = `SELECT k.id, k.uid, k.reference, k.talent_id, t.uid, k.client_id, cl.uid, k.candidature_id,
	k.offre_id, k.titre, k.tjm, k.date_debut, k.date_fin, k.plafond, k.renouvellement_auto,
	k.conditions_renouvellement, k.clauses, k.signe_par_talent, k.signe_par_client, k.signe_talent_at,
	k.signe_client_at, k.statut, k.motif_resiliation, k.ended_at, k.created_at, k.updated_at
	FROM contrats k
	JOIN talents t ON t.id = k.talent_id
	JOIN clients cl ON cl.id = k.client_id`

func scanContrat(r rowScanner) (*types.Contrat, error) {
	var c types.Contrat
	var debut time.Time
	var fin *time.Time
	var status string
	err := r.Scan(&c.ID, &c.UID, &c.Reference, &c.TalentID, &c.TalentUID, &c.ClientID, &c.ClientUID,
		&c.CandidatureID, &c.OffreID, &c.Titre, &c.TJM, &debut, &fin, &c.Plafond, &c.RenouvellementAuto,
		&c.ConditionsRenouvellement, &c.Clauses, &c.SigneParTalent, &c.SigneParClient, &c.SigneTalentAt,
		&c.SigneClientAt, &status, &c.MotifResiliation, &c.EndedAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.DateDebut = types.NewDate(debut)
	c.DateFin = toDate(fin)
	c.Status = types.ContratStatus(status)
	return &c, nil
}

func (q *queries) CreateContrat(ctx context.Context, c *types.Contrat) error {
	if c.UID == uuid.Nil {
		c.UID = uuid.New()
	}
	err := q.tx.QueryRow(ctx,
		`INSERT INTO contrats (uid, reference, talent_id, client_id, candidature_id, offre_id, titre, tjm,
		                       date_debut, date_fin, plafond, renouvellement_auto, conditions_renouvellement,
		                       clauses, signe_par_talent, signe_par_client, signe_talent_at, signe_client_at,
		                       statut, motif_resiliation, ended_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		 RETURNING id, created_at, updated_at,
		           (SELECT uid FROM talents WHERE id = $3),
		           (SELECT uid FROM clients WHERE id = $4)`,
		c.UID, c.Reference, c.TalentID, c.ClientID, c.CandidatureID, c.OffreID, c.Titre, c.TJM,
		c.DateDebut.Time, dateArg(c.DateFin), c.Plafond, c.RenouvellementAuto, c.ConditionsRenouvellement,
		c.Clauses, c.SigneParTalent, c.SigneParClient, c.SigneTalentAt, c.SigneClientAt,
		string(c.Status), c.MotifResiliation, c.EndedAt,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt, &c.TalentUID, &c.ClientUID)
	if err != nil {
		return wrap("create contrat", err)
	}
	return nil
}

func (q *queries) GetContrat(ctx context.Context, uid uuid.UUID) (*types.Contrat, error) {
	c, err := one(scanContrat(q.tx.QueryRow(ctx, contratSelect+` WHERE k.uid = $1`, uid)))
	if err != nil {
		return nil, wrap("get contrat", err)
	}
	return c, nil
}

// LastContratReference returns the highest reference of the client starting
// with prefix, or "" when there is none.
func (q *queries) LastContratReference(ctx context.Context, clientID int64, prefix string) (string, error) {
	var ref *string
	err := q.tx.QueryRow(ctx,
		`SELECT (SELECT reference FROM contrats WHERE client_id = $1 AND starts_with(reference, $2)
			ORDER BY length(reference) DESC, reference DESC LIMIT 1)`,
		clientID, prefix,
	).Scan(&ref)
	if err != nil {
		return "", wrap("read last contrat reference", err)
	}
	if ref == nil {
		return "", nil
	}
	return *ref, nil
}

func (q *queries) CountActiveContrats(ctx context.Context, talentID, exceptID int64) (int, error) {
	var n int
	err := q.tx.QueryRow(ctx,
		`SELECT count(*) FROM contrats WHERE talent_id = $1 AND statut = $2 AND id <> $3`,
		talentID, types.ContratActif, exceptID,
	).Scan(&n)
	if err != nil {
		return 0, wrap("count active contrats", err)
	}
	return n, nil
}

func (q *queries) UpdateContrat(ctx context.Context, c *types.Contrat) error {
	err := q.tx.QueryRow(ctx,
		`UPDATE contrats SET candidature_id = $2, offre_id = $3, titre = $4, tjm = $5, date_debut = $6,
		        date_fin = $7, plafond = $8, renouvellement_auto = $9, conditions_renouvellement = $10,
		        clauses = $11, signe_par_talent = $12, signe_par_client = $13, signe_talent_at = $14,
		        signe_client_at = $15, statut = $16, motif_resiliation = $17, ended_at = $18,
		        updated_at = NOW()
		 WHERE id = $1
		 RETURNING updated_at`,
		c.ID, c.CandidatureID, c.OffreID, c.Titre, c.TJM, c.DateDebut.Time, dateArg(c.DateFin), c.Plafond,
		c.RenouvellementAuto, c.ConditionsRenouvellement, c.Clauses, c.SigneParTalent, c.SigneParClient,
		c.SigneTalentAt, c.SigneClientAt, string(c.Status), c.MotifResiliation, c.EndedAt,
	).Scan(&c.UpdatedAt)
	if err != nil {
		return wrap("update contrat", err)
	}
	return nil
}

func (q *queries) DeleteContrat(ctx context.Context, id int64) error {
	tag, err := q.tx.Exec(ctx, `DELETE FROM contrats WHERE id = $1`, id)
	if err != nil {
		return wrap("delete contrat", err)
	}
	return expectOne(tag, "contrat", id)
}

// ============================================================================
// Avenants
// ============================================================================

const avenantColumns = `id, uid, contrat_id, numero, objet, modifications, nouveau_tjm, nouvelle_date_fin,
	nouveau_plafond, date_effet, signe_par_talent, signe_par_client, signe_talent_at, signe_client_at,
	statut, created_at, updated_at`

func scanAvenant(r rowScanner) (*types.Avenant, error) {
	var a types.Avenant
	var dateFin, dateEffet *time.Time
	var status string
	err := r.Scan(&a.ID, &a.UID, &a.ContratID, &a.Numero, &a.Objet, &a.Modifications, &a.NouveauTJM,
		&dateFin, &a.NouveauPlafond, &dateEffet, &a.SigneParTalent, &a.SigneParClient, &a.SigneTalentAt,
		&a.SigneClientAt, &status, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.NouvelleDateFin = toDate(dateFin)
	a.DateEffet = toDate(dateEffet)
	a.Status = types.ContratStatus(status)
	return &a, nil
}

func (q *queries) CreateAvenant(ctx context.Context, a *types.Avenant) error {
	if a.UID == uuid.Nil {
		a.UID = uuid.New()
	}
	err := q.tx.QueryRow(ctx,
		`INSERT INTO avenants (uid, contrat_id, numero, objet, modifications, nouveau_tjm, nouvelle_date_fin,
		                       nouveau_plafond, date_effet, signe_par_talent, signe_par_client,
		                       signe_talent_at, signe_client_at, statut)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 RETURNING id, created_at, updated_at`,
		a.UID, a.ContratID, a.Numero, a.Objet, a.Modifications, a.NouveauTJM, dateArg(a.NouvelleDateFin),
		a.NouveauPlafond, dateArg(a.DateEffet), a.SigneParTalent, a.SigneParClient, a.SigneTalentAt,
		a.SigneClientAt, string(a.Status),
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return wrap("create avenant", err)
	}
	return nil
}

func (q *queries) GetAvenant(ctx context.Context, uid uuid.UUID) (*types.Avenant, error) {
	a, err := one(scanAvenant(q.tx.QueryRow(ctx, `SELECT `+avenantColumns+` FROM avenants WHERE uid = $1`, uid)))
	if err != nil {
		return nil, wrap("get avenant", err)
	}
	return a, nil
}

func (q *queries) ListAvenants(ctx context.Context, contratID int64) ([]types.Avenant, error) {
	rows, err := q.tx.Query(ctx,
		`SELECT `+avenantColumns+` FROM avenants WHERE contrat_id = $1 ORDER BY numero`, contratID)
	if err != nil {
		return nil, wrap("list avenants", err)
	}
	out, err := collect(rows, scanAvenant)
	if err != nil {
		return nil, wrap("scan avenants", err)
	}
	return out, nil
}

func (q *queries) UpdateAvenant(ctx context.Context, a *types.Avenant) error {
	err := q.tx.QueryRow(ctx,
		`UPDATE avenants SET objet = $2, modifications = $3, nouveau_tjm = $4, nouvelle_date_fin = $5,
		        nouveau_plafond = $6, date_effet = $7, signe_par_talent = $8, signe_par_client = $9,
		        signe_talent_at = $10, signe_client_at = $11, statut = $12, updated_at = NOW()
		 WHERE id = $1
		 RETURNING updated_at`,
		a.ID, a.Objet, a.Modifications, a.NouveauTJM, dateArg(a.NouvelleDateFin), a.NouveauPlafond,
		dateArg(a.DateEffet), a.SigneParTalent, a.SigneParClient, a.SigneTalentAt, a.SigneClientAt,
		string(a.Status),
	).Scan(&a.UpdatedAt)
	if err != nil {
		return wrap("update avenant", err)
	}
	return nil
}
