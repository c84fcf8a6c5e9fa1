package contrat

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/talent-pipeline/internal/apperr"
	"github.com/jonathan/talent-pipeline/internal/candidature"
	"github.com/jonathan/talent-pipeline/internal/notify"
	"github.com/jonathan/talent-pipeline/internal/store"
	"github.com/jonathan/talent-pipeline/internal/store/memstore"
	"github.com/jonathan/talent-pipeline/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	store   *memstore.Store
	rec     *notify.Recorder
	svc     *Service
	admin   types.Principal
	talentP types.Principal
	talent  *types.Talent
	clientP types.Principal
	client  *types.Client
	offre   *types.Offre
	cand    *types.Candidature
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{store: memstore.New(), rec: &notify.Recorder{}}
	sender := notify.NewSender(f.rec, zap.NewNop(), time.Second)
	f.svc = NewService(f.store, sender, zap.NewNop())
	f.svc.now = func() time.Time { return time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC) }
	candidates := candidature.NewService(f.store, sender, zap.NewNop())

	var err error
	f.admin, err = f.store.SeedUser(ctx, types.RoleAdmin)
	require.NoError(t, err)
	f.clientP, f.client, err = f.store.SeedClient(ctx, "Acme")
	require.NoError(t, err)
	f.offre, err = f.store.SeedOffre(ctx, f.client, "Architecte cloud", []string{"AWS"}, nil)
	require.NoError(t, err)
	f.talentP, f.talent, err = f.store.SeedTalent(ctx, "Eve", []string{"aws"}, nil)
	require.NoError(t, err)

	f.cand, err = candidates.Apply(ctx, f.talentP, types.ApplyRequest{OffreID: f.offre.UID})
	require.NoError(t, err)
	for _, a := range []candidature.Action{candidature.ActionPreselectionner, candidature.ActionAccepter} {
		f.cand, err = candidates.Transition(ctx, f.admin, f.cand.UID, types.CandidatureActionRequest{Action: string(a)})
		require.NoError(t, err)
	}
	f.rec.Reset()
	return f
}

func day(s string) types.Date {
	d, err := types.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (f *fixture) create(t *testing.T) *types.Contrat {
	t.Helper()
	c, err := f.svc.Create(context.Background(), f.admin, types.CreateContratRequest{
		CandidatureID: &f.cand.UID,
		Titre:         "Mission cloud",
		TJM:           650,
		DateDebut:     day("2026-04-01"),
	})
	require.NoError(t, err)
	return c
}

func (f *fixture) do(t *testing.T, p types.Principal, c *types.Contrat, action Action) *Detail {
	t.Helper()
	d, err := f.svc.Action(context.Background(), p, c.UID, types.ContratActionRequest{Action: string(action)})
	require.NoError(t, err)
	return d
}

func (f *fixture) activate(t *testing.T) *types.Contrat {
	t.Helper()
	c := f.create(t)
	f.do(t, f.admin, c, ActionEnvoyer)
	f.do(t, f.talentP, c, ActionSigner)
	return f.do(t, f.clientP, c, ActionSigner).Contrat
}

func (f *fixture) talentStatus(t *testing.T) types.TalentStatus {
	t.Helper()
	var status types.TalentStatus
	require.NoError(t, f.store.InTx(context.Background(), func(tx store.Tx) error {
		tl, err := tx.GetTalentByID(context.Background(), f.talent.ID)
		status = tl.Status
		return err
	}))
	return status
}

func TestCreate_FromAcceptedCandidature(t *testing.T) {
	f := newFixture(t)

	c := f.create(t)
	assert.Equal(t, "CTR-2026-0001", c.Reference)
	assert.Equal(t, types.ContratBrouillon, c.Status)
	assert.Equal(t, f.talent.UID, c.TalentUID)
	assert.Equal(t, f.client.UID, c.ClientUID)
	require.NotNil(t, c.OffreID)
	assert.Equal(t, f.offre.ID, *c.OffreID)

	second, err := f.svc.Create(context.Background(), f.admin, types.CreateContratRequest{
		TalentID:  &f.talent.UID,
		ClientID:  &f.client.UID,
		Titre:     "Renfort",
		TJM:       500,
		DateDebut: day("2026-06-01"),
	})
	require.NoError(t, err)
	assert.Equal(t, "CTR-2026-0002", second.Reference)
	assert.Nil(t, second.OffreID)
}

func TestCreate_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, f.admin, types.CreateContratRequest{Titre: "x", TJM: 1, DateDebut: day("2026-04-01")})
	assert.True(t, apperr.IsValidation(err))

	end := day("2026-03-01")
	_, err = f.svc.Create(ctx, f.admin, types.CreateContratRequest{CandidatureID: &f.cand.UID, Titre: "x", TJM: 1, DateDebut: day("2026-04-01"), DateFin: &end})
	assert.True(t, apperr.IsValidation(err))

	_, err = f.svc.Create(ctx, f.clientP, types.CreateContratRequest{CandidatureID: &f.cand.UID, Titre: "x", TJM: 1, DateDebut: day("2026-04-01")})
	assert.True(t, apperr.IsForbidden(err))

	missing := uuid.New()
	_, err = f.svc.Create(ctx, f.admin, types.CreateContratRequest{CandidatureID: &missing, Titre: "x", TJM: 1, DateDebut: day("2026-04-01")})
	assert.True(t, apperr.IsNotFound(err))
}

func TestSignature_OrderIndependent(t *testing.T) {
	orders := map[string][]func(f *fixture) types.Principal{
		"talent first": {func(f *fixture) types.Principal { return f.talentP }, func(f *fixture) types.Principal { return f.clientP }},
		"client first": {func(f *fixture) types.Principal { return f.clientP }, func(f *fixture) types.Principal { return f.talentP }},
	}

	for name, order := range orders {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			c := f.create(t)
			f.do(t, f.admin, c, ActionEnvoyer)

			first := f.do(t, order[0](f), c, ActionSigner)
			assert.NotEqual(t, types.ContratActif, first.Status)
			assert.False(t, first.Complete())
			assert.Equal(t, types.TalentActive, f.talentStatus(t))

			second := f.do(t, order[1](f), c, ActionSigner)
			assert.Equal(t, types.ContratActif, second.Status, "both signatures activate in the same call")
			assert.True(t, second.SigneParTalent)
			assert.True(t, second.SigneParClient)
			assert.Equal(t, types.TalentInMission, f.talentStatus(t))
		})
	}
}

func TestSignature_PartialStatesAndDoubleSign(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.create(t)

	_, err := f.svc.Action(ctx, f.talentP, c.UID, types.ContratActionRequest{Action: string(ActionSigner)})
	assert.True(t, apperr.IsConflict(err), "cannot sign a draft")

	f.do(t, f.admin, c, ActionEnvoyer)
	d := f.do(t, f.talentP, c, ActionSigner)
	assert.Equal(t, types.ContratSigneTalent, d.Status)
	assert.NotNil(t, d.SigneTalentAt)
	assert.Len(t, f.rec.For(f.clientP.UserID, notify.TypeContratSigne), 1)

	_, err = f.svc.Action(ctx, f.talentP, c.UID, types.ContratActionRequest{Action: string(ActionSigner)})
	assert.True(t, apperr.IsConflict(err), "double signature")

	_, err = f.svc.Action(ctx, f.admin, c.UID, types.ContratActionRequest{Action: string(ActionSigner)})
	assert.True(t, apperr.IsForbidden(err))

	otherP, _, err := f.store.SeedClient(ctx, "Globex")
	require.NoError(t, err)
	_, err = f.svc.Action(ctx, otherP, c.UID, types.ContratActionRequest{Action: string(ActionSigner)})
	assert.True(t, apperr.IsForbidden(err))

	d = f.do(t, f.clientP, c, ActionSigner)
	assert.Equal(t, types.ContratActif, d.Status)
	assert.Len(t, f.rec.For(f.admin.UserID, notify.TypeContratActif), 1)

	require.NoError(t, f.store.InTx(ctx, func(tx store.Tx) error {
		o, err := tx.GetOffreByID(ctx, f.offre.ID)
		require.NoError(t, err)
		assert.Equal(t, types.OffreFilled, o.Status)
		return nil
	}))

	_, err = f.svc.Action(ctx, f.clientP, c.UID, types.ContratActionRequest{Action: string(ActionSigner)})
	assert.True(t, apperr.IsConflict(err))
}

func TestEndOfContrat(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.activate(t)

	_, err := f.svc.Action(ctx, f.admin, c.UID, types.ContratActionRequest{Action: string(ActionResilier)})
	assert.True(t, apperr.IsValidation(err), "resiliation needs a reason")

	_, err = f.svc.Action(ctx, f.admin, c.UID, types.ContratActionRequest{Action: string(ActionAnnuler)})
	assert.True(t, apperr.IsConflict(err), "an active contrat cannot be cancelled")

	d, err := f.svc.Action(ctx, f.admin, c.UID, types.ContratActionRequest{Action: string(ActionResilier), Motif: "faute grave"})
	require.NoError(t, err)
	assert.Equal(t, types.ContratResilie, d.Status)
	assert.Equal(t, "faute grave", d.MotifResiliation)
	assert.NotNil(t, d.EndedAt)
	assert.Equal(t, types.TalentActive, f.talentStatus(t))

	_, err = f.svc.Action(ctx, f.admin, c.UID, types.ContratActionRequest{Action: string(ActionTerminer)})
	assert.True(t, apperr.IsConflict(err))

	_, err = f.svc.Action(ctx, f.admin, c.UID, types.ContratActionRequest{Action: "prolonger"})
	assert.True(t, apperr.IsConflict(err))
}

func TestEndOfContrat_TalentKeptInMissionWhileAnotherIsActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.activate(t)
	require.Equal(t, types.TalentInMission, f.talentStatus(t))

	second := &types.Contrat{
		Reference: "CTR-PARALLELE-1",
		TalentID:  f.talent.ID,
		ClientID:  f.client.ID,
		Titre:     "Astreinte",
		TJM:       300,
		DateDebut: day("2026-04-01"),
		Status:    types.ContratActif,
	}
	require.NoError(t, f.store.InTx(ctx, func(tx store.Tx) error {
		return tx.CreateContrat(ctx, second)
	}))

	f.do(t, f.admin, first, ActionTerminer)
	assert.Equal(t, types.TalentInMission, f.talentStatus(t), "another contrat is still active")

	f.do(t, f.admin, second, ActionTerminer)
	assert.Equal(t, types.TalentActive, f.talentStatus(t))
}

func TestCancelPreActive(t *testing.T) {
	for _, steps := range [][]Action{nil, {ActionEnvoyer}, {ActionEnvoyer, ActionSigner}} {
		t.Run(fmt.Sprint(len(steps)), func(t *testing.T) {
			f := newFixture(t)
			c := f.create(t)
			for _, a := range steps {
				p := f.admin
				if a == ActionSigner {
					p = f.clientP
				}
				f.do(t, p, c, a)
			}
			d := f.do(t, f.admin, c, ActionAnnuler)
			assert.Equal(t, types.ContratAnnule, d.Status)
		})
	}
}

func TestUpdateAndDelete_DraftOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.create(t)

	tjm := 700.0
	updated, err := f.svc.Update(ctx, f.admin, c.UID, types.UpdateContratRequest{TJM: &tjm})
	require.NoError(t, err)
	assert.Equal(t, 700.0, updated.TJM)

	f.do(t, f.admin, c, ActionEnvoyer)

	_, err = f.svc.Update(ctx, f.admin, c.UID, types.UpdateContratRequest{TJM: &tjm})
	assert.True(t, apperr.IsConflict(err))
	err = f.svc.Delete(ctx, f.admin, c.UID)
	assert.True(t, apperr.IsConflict(err))

	draft := f.create(t)
	require.NoError(t, f.svc.Delete(ctx, f.admin, draft.UID))
	_, err = f.svc.Get(ctx, f.admin, draft.UID)
	assert.True(t, apperr.IsNotFound(err))
}

func TestDelete_ReferencedDraftConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	draft := f.create(t)

	require.NoError(t, f.store.InTx(ctx, func(tx store.Tx) error {
		return tx.CreateFacture(ctx, &types.Facture{
			Numero:    "FAC-2026-0001",
			ClientID:  f.client.ID,
			ContratID: &draft.ID,
			TauxTVA:   0.2,
			Status:    types.FactureBrouillon,
		})
	}))

	err := f.svc.Delete(ctx, f.admin, draft.UID)
	assert.True(t, apperr.IsConflict(err))

	d, err := f.svc.Get(ctx, f.admin, draft.UID)
	require.NoError(t, err)
	assert.Equal(t, types.ContratBrouillon, d.Status)
}

func TestCreate_ReferencePastFourDigits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.InTx(ctx, func(tx store.Tx) error {
		for _, ref := range []string{"CTR-2026-9999", "CTR-2026-10000"} {
			c := &types.Contrat{Reference: ref, TalentID: f.talent.ID, ClientID: f.client.ID, Titre: "Ancien", TJM: 500, Status: types.ContratTermine}
			if err := tx.CreateContrat(ctx, c); err != nil {
				return err
			}
		}
		return nil
	}))

	c := f.create(t)
	assert.Equal(t, "CTR-2026-10001", c.Reference)
}

func TestAvenant_LifecycleAndCurrentTerms(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	draft := f.create(t)
	_, err := f.svc.Action(ctx, f.admin, draft.UID, types.ContratActionRequest{
		Action:  string(ActionAvenant),
		Avenant: &types.AvenantRequest{Objet: "x", Modifications: "y"},
	})
	assert.True(t, apperr.IsConflict(err), "drafts are edited directly")
	require.NoError(t, f.svc.Delete(ctx, f.admin, draft.UID))

	c := f.activate(t)
	tjm := 720.0
	end := day("2027-03-31")
	d, err := f.svc.Action(ctx, f.admin, c.UID, types.ContratActionRequest{
		Action: string(ActionAvenant),
		Avenant: &types.AvenantRequest{
			Objet:           "Revalorisation",
			Modifications:   "TJM porté à 720 et prolongation",
			NouveauTJM:      &tjm,
			NouvelleDateFin: &end,
		},
	})
	require.NoError(t, err)
	require.Len(t, d.Avenants, 1)
	av := d.Avenants[0]
	assert.Equal(t, 1, av.Numero)
	assert.Equal(t, types.ContratBrouillon, av.Status)
	assert.Equal(t, 650.0, d.CurrentTerms.TJM, "unsigned avenants do not apply")

	_, err = f.svc.AvenantAction(ctx, f.admin, c.UID, av.UID, types.AvenantActionRequest{Action: string(ActionEnvoyer)})
	require.NoError(t, err)
	a, err := f.svc.AvenantAction(ctx, f.clientP, c.UID, av.UID, types.AvenantActionRequest{Action: string(ActionSigner)})
	require.NoError(t, err)
	assert.Equal(t, types.ContratSigneClient, a.Status)

	_, err = f.svc.AvenantAction(ctx, f.clientP, c.UID, av.UID, types.AvenantActionRequest{Action: string(ActionSigner)})
	assert.True(t, apperr.IsConflict(err))

	a, err = f.svc.AvenantAction(ctx, f.talentP, c.UID, av.UID, types.AvenantActionRequest{Action: string(ActionSigner)})
	require.NoError(t, err)
	assert.Equal(t, types.ContratActif, a.Status)
	assert.Len(t, f.rec.For(f.talentP.UserID, notify.TypeAvenantActif), 1)

	got, err := f.svc.Get(ctx, f.talentP, c.UID)
	require.NoError(t, err)
	assert.Equal(t, 650.0, got.TJM, "the contrat itself is never modified")
	assert.Nil(t, got.DateFin)
	assert.Equal(t, 720.0, got.CurrentTerms.TJM)
	require.NotNil(t, got.CurrentTerms.DateFin)
	assert.Equal(t, "2027-03-31", got.CurrentTerms.DateFin.String())
	require.NotNil(t, got.CurrentTerms.AvenantNumero)
	assert.Equal(t, 1, *got.CurrentTerms.AvenantNumero)

	_, err = f.svc.AvenantAction(ctx, f.admin, uuid.New(), av.UID, types.AvenantActionRequest{Action: string(ActionAnnuler)})
	assert.True(t, apperr.IsNotFound(err))
	_, err = f.svc.AvenantAction(ctx, f.admin, c.UID, av.UID, types.AvenantActionRequest{Action: string(ActionAnnuler)})
	assert.True(t, apperr.IsConflict(err), "a signed avenant cannot be cancelled")
}

func TestCurrentTerms_LaterAvenantWinsPerField(t *testing.T) {
	plafond := 100000.0
	c := &types.Contrat{ID: 1, TJM: 500, Plafond: &plafond}
	tjm2, tjm3 := 550.0, 600.0
	end := day("2027-01-31")
	avenants := []types.Avenant{
		{ContratID: 1, Numero: 1, NouveauTJM: &tjm2, NouvelleDateFin: &end, Status: types.ContratActif},
		{ContratID: 1, Numero: 2, NouveauTJM: &tjm3, Status: types.ContratActif},
		{ContratID: 1, Numero: 3, NouveauPlafond: &plafond, Status: types.ContratSigneTalent},
	}

	terms := CurrentTerms(c, avenants)
	assert.Equal(t, 600.0, terms.TJM)
	assert.Equal(t, &end, terms.DateFin)
	assert.Equal(t, &plafond, terms.Plafond)
	require.NotNil(t, terms.AvenantNumero)
	assert.Equal(t, 2, *terms.AvenantNumero)

	none := CurrentTerms(c, nil)
	assert.Equal(t, 500.0, none.TJM)
	assert.Nil(t, none.AvenantNumero)
}
