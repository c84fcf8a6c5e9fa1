package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jonathan/talent-pipeline/internal/store"
	"github.com/jonathan/talent-pipeline/internal/types"
)

const factureSelect = `SELECT f.id, f.uid, f.numero, f.client_id, cl.uid, f.contrat_id, k.uid, f.date_emission,
	f.date_echeance, f.remise_type, f.remise_valeur, f.montant_ht, f.montant_remise, f.taux_tva, f.montant_tva,
	f.montant_ttc, f.statut, f.mode_paiement, f.reference_paiement, f.paid_at, f.nb_relances,
	f.derniere_relance, f.motif_annulation, f.created_at, f.updated_at
	FROM factures f
	JOIN clients cl ON cl.id = f.client_id
	LEFT JOIN contrats k ON k.id = f.contrat_id`

func scanFacture(r rowScanner) (*types.Facture, error) {
	var f types.Facture
	var emission, echeance *time.Time
	var remiseType, mode *string
	var remiseValeur *float64
	var status string
	err := r.Scan(&f.ID, &f.UID, &f.Numero, &f.ClientID, &f.ClientUID, &f.ContratID, &f.ContratUID, &emission,
		&echeance, &remiseType, &remiseValeur, &f.MontantHT, &f.MontantRemise, &f.TauxTVA, &f.MontantTVA,
		&f.MontantTTC, &status, &mode, &f.ReferencePaiement, &f.PaidAt, &f.NbRelances,
		&f.DerniereRelance, &f.MotifAnnulation, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	f.DateEmission = toDate(emission)
	f.DateEcheance = toDate(echeance)
	if remiseType != nil {
		f.Remise = &types.Remise{Type: types.RemiseType(*remiseType)}
		if remiseValeur != nil {
			f.Remise.Valeur = *remiseValeur
		}
	}
	if mode != nil {
		m := types.ModePaiement(*mode)
		f.ModePaiement = &m
	}
	f.Status = types.FactureStatus(status)
	return &f, nil
}

func remiseArgs(r *types.Remise) (any, any) {
	if r == nil {
		return nil, nil
	}
	return string(r.Type), r.Valeur
}

func modeArg(m *types.ModePaiement) any {
	if m == nil {
		return nil
	}
	return string(*m)
}

func (q *queries) CreateFacture(ctx context.Context, f *types.Facture) error {
	if f.UID == uuid.Nil {
		f.UID = uuid.New()
	}
	remiseType, remiseValeur := remiseArgs(f.Remise)
	err := q.tx.QueryRow(ctx,
		`INSERT INTO factures (uid, numero, client_id, contrat_id, date_emission, date_echeance, remise_type,
		                       remise_valeur, montant_ht, montant_remise, taux_tva, montant_tva, montant_ttc,
		                       statut, mode_paiement, reference_paiement, paid_at, nb_relances,
		                       derniere_relance, motif_annulation)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		 RETURNING id, created_at, updated_at,
		           (SELECT uid FROM clients WHERE id = $3),
		           (SELECT uid FROM contrats WHERE id = $4)`,
		f.UID, f.Numero, f.ClientID, f.ContratID, dateArg(f.DateEmission), dateArg(f.DateEcheance), remiseType,
		remiseValeur, f.MontantHT, f.MontantRemise, f.TauxTVA, f.MontantTVA, f.MontantTTC,
		string(f.Status), modeArg(f.ModePaiement), f.ReferencePaiement, f.PaidAt, f.NbRelances,
		f.DerniereRelance, f.MotifAnnulation,
	).Scan(&f.ID, &f.CreatedAt, &f.UpdatedAt, &f.ClientUID, &f.ContratUID)
	if err != nil {
		return wrap("create facture", err)
	}
	f.Lignes = []types.LigneFacture{}
	return nil
}

func (q *queries) GetFacture(ctx context.Context, uid uuid.UUID) (*types.Facture, error) {
	f, err := one(scanFacture(q.tx.QueryRow(ctx, factureSelect+` WHERE f.uid = $1`, uid)))
	if err != nil {
		return nil, wrap("get facture", err)
	}
	if f == nil {
		return nil, nil
	}

	rows, err := q.tx.Query(ctx,
		`SELECT id, facture_id, position, description, quantite, prix_unitaire, montant_ht
		 FROM lignes_facture WHERE facture_id = $1 ORDER BY position`,
		f.ID,
	)
	if err != nil {
		return nil, wrap("list lignes", err)
	}
	f.Lignes, err = collect(rows, func(r rowScanner) (*types.LigneFacture, error) {
		var l types.LigneFacture
		err := r.Scan(&l.ID, &l.FactureID, &l.Position, &l.Description, &l.Quantite, &l.PrixUnitaire, &l.MontantHT)
		return &l, err
	})
	if err != nil {
		return nil, wrap("scan lignes", err)
	}
	return f, nil
}

// LastFactureNumero returns the highest numero starting with prefix, or "".
func (q *queries) LastFactureNumero(ctx context.Context, prefix string) (string, error) {
	var numero *string
	err := q.tx.QueryRow(ctx,
		`SELECT (SELECT numero FROM factures WHERE starts_with(numero, $1)
			ORDER BY length(numero) DESC, numero DESC LIMIT 1)`, prefix,
	).Scan(&numero)
	if err != nil {
		return "", wrap("read last facture numero", err)
	}
	if numero == nil {
		return "", nil
	}
	return *numero, nil
}

func statusArgs(statuses []types.FactureStatus) []string {
	var out []string
	for _, s := range statuses {
		out = append(out, string(s))
	}
	return out
}

func (q *queries) ListFactures(ctx context.Context, f store.FactureFilter) ([]types.Facture, error) {
	rows, err := q.tx.Query(ctx,
		factureSelect+`
		 WHERE ($1::bigint IS NULL OR f.client_id = $1)
		   AND ($2::text[] IS NULL OR f.statut = ANY($2))
		 ORDER BY f.id DESC
		 LIMIT $3 OFFSET $4`,
		f.ClientID, statusArgs(f.Statuses), limitArg(f.Limit), f.Offset,
	)
	if err != nil {
		return nil, wrap("list factures", err)
	}
	out, err := collect(rows, scanFacture)
	if err != nil {
		return nil, wrap("scan factures", err)
	}
	return out, nil
}

func (q *queries) ListFacturesDueBefore(ctx context.Context, status types.FactureStatus, before time.Time) ([]types.Facture, error) {
	rows, err := q.tx.Query(ctx,
		factureSelect+` WHERE f.statut = $1 AND f.date_echeance < $2::date ORDER BY f.id FOR UPDATE OF f`,
		string(status), before,
	)
	if err != nil {
		return nil, wrap("list due factures", err)
	}
	out, err := collect(rows, scanFacture)
	if err != nil {
		return nil, wrap("scan due factures", err)
	}
	return out, nil
}

func (q *queries) UpdateFacture(ctx context.Context, f *types.Facture) error {
	remiseType, remiseValeur := remiseArgs(f.Remise)
	err := q.tx.QueryRow(ctx,
		`UPDATE factures SET numero = $2, contrat_id = $3, date_emission = $4, date_echeance = $5,
		        remise_type = $6, remise_valeur = $7, montant_ht = $8, montant_remise = $9, taux_tva = $10,
		        montant_tva = $11, montant_ttc = $12, statut = $13, mode_paiement = $14,
		        reference_paiement = $15, paid_at = $16, nb_relances = $17, derniere_relance = $18,
		        motif_annulation = $19, updated_at = NOW()
		 WHERE id = $1
		 RETURNING updated_at`,
		f.ID, f.Numero, f.ContratID, dateArg(f.DateEmission), dateArg(f.DateEcheance), remiseType,
		remiseValeur, f.MontantHT, f.MontantRemise, f.TauxTVA, f.MontantTVA, f.MontantTTC, string(f.Status),
		modeArg(f.ModePaiement), f.ReferencePaiement, f.PaidAt, f.NbRelances, f.DerniereRelance,
		f.MotifAnnulation,
	).Scan(&f.UpdatedAt)
	if err != nil {
		return wrap("update facture", err)
	}
	return nil
}

// ReplaceLignes swaps every line of an invoice for lignes.
func (q *queries) ReplaceLignes(ctx context.Context, factureID int64, lignes []types.LigneFacture) error {
	if _, err := q.tx.Exec(ctx, `DELETE FROM lignes_facture WHERE facture_id = $1`, factureID); err != nil {
		return wrap("delete lignes", err)
	}
	if len(lignes) == 0 {
		return nil
	}

	rows := make([][]any, len(lignes))
	for i, l := range lignes {
		rows[i] = []any{factureID, l.Position, l.Description, l.Quantite, l.PrixUnitaire, l.MontantHT}
	}
	_, err := q.tx.CopyFrom(ctx,
		pgx.Identifier{"lignes_facture"},
		[]string{"facture_id", "position", "description", "quantite", "prix_unitaire", "montant_ht"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return wrap("insert lignes", err)
	}
	return nil
}

func (q *queries) DeleteFacture(ctx context.Context, id int64) error {
	tag, err := q.tx.Exec(ctx, `DELETE FROM factures WHERE id = $1`, id)
	if err != nil {
		return wrap("delete facture", err)
	}
	return expectOne(tag, "facture", id)
}
