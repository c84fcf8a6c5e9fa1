package contrat

import (
	"github.com/jonathan/talent-pipeline/internal/types"
)

// CurrentTerms resolves the terms in force for c. Fully signed avenants are
// applied in numero order, each overriding only the fields it sets. The stored
// contrat is never modified.
func CurrentTerms(c *types.Contrat, avenants []types.Avenant) types.Terms {
	terms := types.Terms{
		TJM:     c.TJM,
		DateFin: c.DateFin,
		Plafond: c.Plafond,
	}

	last := 0
	for _, a := range avenants {
		if a.Status != types.ContratActif || a.ContratID != c.ID || a.Numero < last {
			continue
		}
		last = a.Numero
		applied := false
		if a.NouveauTJM != nil {
			terms.TJM = *a.NouveauTJM
			applied = true
		}
		if a.NouvelleDateFin != nil {
			terms.DateFin = a.NouvelleDateFin
			applied = true
		}
		if a.NouveauPlafond != nil {
			terms.Plafond = a.NouveauPlafond
			applied = true
		}
		if applied {
			numero := a.Numero
			terms.AvenantNumero = &numero
		}
	}
	return terms
}
