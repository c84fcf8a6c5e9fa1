package facture

import (
	"testing"

	"github.com/jonathan/talent-pipeline/internal/apperr"
	"github.com/jonathan/talent-pipeline/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestComputeTotals(t *testing.T) {
	lignes := BuildLignes([]types.LigneRequest{
		{Description: "Prestation", Quantite: 18, PrixUnitaire: 650},
		{Description: "Frais", Quantite: 1, PrixUnitaire: 123.456},
	})

	tests := []struct {
		name   string
		remise *types.Remise
		want   Totals
	}{
		{
			name: "no discount",
			want: Totals{HT: 11823.46, Remise: 0, TVA: 2364.69, TTC: 14188.15},
		},
		{
			name:   "percentage",
			remise: &types.Remise{Type: types.RemisePourcentage, Valeur: 10},
			want:   Totals{HT: 11823.46, Remise: 1182.35, TVA: 2128.22, TTC: 12769.33},
		},
		{
			name:   "amount",
			remise: &types.Remise{Type: types.RemiseMontant, Valeur: 823.46},
			want:   Totals{HT: 11823.46, Remise: 823.46, TVA: 2200, TTC: 13200},
		},
		{
			name:   "amount capped at HT",
			remise: &types.Remise{Type: types.RemiseMontant, Valeur: 50000},
			want:   Totals{HT: 11823.46, Remise: 11823.46, TVA: 0, TTC: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeTotals(lignes, tt.remise, 0.2)
			assert.InDelta(t, tt.want.HT, got.HT, 0.001)
			assert.InDelta(t, tt.want.Remise, got.Remise, 0.001)
			assert.InDelta(t, tt.want.TVA, got.TVA, 0.001)
			assert.InDelta(t, tt.want.TTC, got.TTC, 0.001)
			assert.InDelta(t, got.HT-got.Remise+got.TVA, got.TTC, 0.001)
		})
	}
}

func TestBuildLignes_PositionsAndAmounts(t *testing.T) {
	lignes := BuildLignes([]types.LigneRequest{
		{Description: "a", Quantite: 2.5, PrixUnitaire: 3.333},
		{Description: "b", Quantite: 1, PrixUnitaire: 0},
	})
	assert.Equal(t, 1, lignes[0].Position)
	assert.Equal(t, 2, lignes[1].Position)
	assert.InDelta(t, 8.33, lignes[0].MontantHT, 0.001)
	assert.Zero(t, lignes[1].MontantHT)

	empty := ComputeTotals(nil, nil, 0.2)
	assert.Zero(t, empty.TTC)
}

func TestCheckRemise(t *testing.T) {
	assert.NoError(t, checkRemise(nil))
	assert.NoError(t, checkRemise(&types.Remise{Type: types.RemisePourcentage, Valeur: 100}))
	assert.True(t, apperr.IsValidation(checkRemise(&types.Remise{Type: types.RemisePourcentage, Valeur: 120})))
	assert.True(t, apperr.IsValidation(checkRemise(&types.Remise{Type: types.RemiseMontant, Valeur: -1})))
	assert.True(t, apperr.IsValidation(checkRemise(&types.Remise{Type: "GRATUIT", Valeur: 1})))
}
