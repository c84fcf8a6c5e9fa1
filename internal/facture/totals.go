package facture

import (
	"math"

	"github.com/jonathan/talent-pipeline/internal/apperr"
	"github.com/jonathan/talent-pipeline/internal/types"
)

// Totals are the derived amounts of an invoice.
type Totals struct {
	HT     float64
	Remise float64
	TVA    float64
	TTC    float64
}

func cents(v float64) float64 {
	return math.Round(v*100) / 100
}

// BuildLignes numbers the submitted lines and computes each line amount.
func BuildLignes(in []types.LigneRequest) []types.LigneFacture {
	out := make([]types.LigneFacture, len(in))
	for i, l := range in {
		out[i] = types.LigneFacture{
			Position:     i + 1,
			Description:  l.Description,
			Quantite:     l.Quantite,
			PrixUnitaire: l.PrixUnitaire,
			MontantHT:    cents(l.Quantite * l.PrixUnitaire),
		}
	}
	return out
}

// ComputeTotals derives HT from the lines, applies the discount (a percentage of
// HT or an amount capped at HT) and the tax rate. TTC = HT - remise + TVA.
func ComputeTotals(lignes []types.LigneFacture, remise *types.Remise, taux float64) Totals {
	var ht float64
	for _, l := range lignes {
		ht += cents(l.Quantite * l.PrixUnitaire)
	}
	ht = cents(ht)

	var r float64
	if remise != nil {
		switch remise.Type {
		case types.RemisePourcentage:
			r = cents(ht * remise.Valeur / 100)
		case types.RemiseMontant:
			r = cents(math.Min(remise.Valeur, ht))
		}
	}

	tva := cents((ht - r) * taux)
	return Totals{HT: ht, Remise: r, TVA: tva, TTC: cents(ht - r + tva)}
}

func checkRemise(r *types.Remise) error {
	if r == nil {
		return nil
	}
	switch r.Type {
	case types.RemisePourcentage:
		if r.Valeur < 0 || r.Valeur > 100 {
			return apperr.Validation("remise.valeur", "a percentage discount must be between 0 and 100")
		}
	case types.RemiseMontant:
		if r.Valeur < 0 {
			return apperr.Validation("remise.valeur", "a discount amount cannot be negative")
		}
	default:
		return apperr.Validation("remise.type", "unknown discount type %q", r.Type)
	}
	return nil
}

func apply(f *types.Facture, t Totals) {
	f.MontantHT = t.HT
	f.MontantRemise = t.Remise
	f.MontantTVA = t.TVA
	f.MontantTTC = t.TTC
}
