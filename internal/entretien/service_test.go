package entretien

import (
	"context"
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
	store      *memstore.Store
	rec        *notify.Recorder
	svc        *Service
	candidates *candidature.Service
	admin      types.Principal
	talentP    types.Principal
	clientP    types.Principal
	cand       *types.Candidature
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{store: memstore.New(), rec: &notify.Recorder{}}
	sender := notify.NewSender(f.rec, zap.NewNop(), time.Second)
	f.svc = NewService(f.store, sender, zap.NewNop())
	f.candidates = candidature.NewService(f.store, sender, zap.NewNop())

	var err error
	f.admin, err = f.store.SeedUser(ctx, types.RoleAdmin)
	require.NoError(t, err)
	var client *types.Client
	f.clientP, client, err = f.store.SeedClient(ctx, "Acme")
	require.NoError(t, err)
	offre, err := f.store.SeedOffre(ctx, client, "SRE", []string{"Linux"}, nil)
	require.NoError(t, err)
	f.talentP, _, err = f.store.SeedTalent(ctx, "Chloé", []string{"linux"}, nil)
	require.NoError(t, err)

	f.cand, err = f.candidates.Apply(ctx, f.talentP, types.ApplyRequest{OffreID: offre.UID})
	require.NoError(t, err)
	f.cand, err = f.candidates.Transition(ctx, f.admin, f.cand.UID, types.CandidatureActionRequest{Action: string(candidature.ActionAjouterShortlist)})
	require.NoError(t, err)
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

func (f *fixture) request() types.CreateEntretienRequest {
	return types.CreateEntretienRequest{
		CandidatureID: f.cand.UID,
		DateProposee:  day("2026-11-03"),
		HeureDebut:    "10:00",
		HeureFin:      "11:00",
		Type:          types.EntretienVisio,
		Lien:          "https://meet.example.test/abc",
	}
}

func (f *fixture) candStatus(t *testing.T) types.CandidatureStatus {
	t.Helper()
	c, err := f.candidates.Get(context.Background(), f.admin, f.cand.UID)
	require.NoError(t, err)
	return c.Status
}

func act(action Action) types.EntretienActionRequest {
	return types.EntretienActionRequest{Action: string(action)}
}

func TestCreate_AdvancesCandidatureAndNotifiesTalent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	e, err := f.svc.Create(ctx, f.clientP, f.request())
	require.NoError(t, err)
	assert.Equal(t, types.EntretienEnAttenteConfirmation, e.Status)
	assert.Equal(t, f.cand.UID, e.CandidatureUID)
	assert.Equal(t, types.CandidatureEntretienDemande, f.candStatus(t))
	assert.Len(t, f.rec.For(f.talentP.UserID, notify.TypeEntretienPropose), 1)
	assert.Len(t, f.rec.For(f.admin.UserID, notify.TypeEntretienPropose), 1)
}

func TestCreate_DuplicateActiveRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Create(ctx, f.clientP, f.request())
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, f.admin, f.request())
	assert.True(t, apperr.IsConflict(err))

	_, err = f.svc.Transition(ctx, f.talentP, first.UID, act(ActionConfirmer))
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, f.clientP, f.request())
	assert.True(t, apperr.IsConflict(err), "a confirmed interview still blocks")

	_, err = f.svc.Transition(ctx, f.clientP, first.UID, types.EntretienActionRequest{Action: string(ActionAnnuler), Motif: "poste gelé"})
	require.NoError(t, err)
	assert.Equal(t, types.CandidatureShortlist, f.candStatus(t))

	second, err := f.svc.Create(ctx, f.clientP, f.request())
	require.NoError(t, err, "cancelled interviews do not block a new one")
	assert.NotEqual(t, first.UID, second.UID)
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := f.request()
	req.DateProposee = types.Date{}
	_, err := f.svc.Create(ctx, f.clientP, req)
	assert.True(t, apperr.IsValidation(err))

	req = f.request()
	req.HeureFin = "09:00"
	_, err = f.svc.Create(ctx, f.clientP, req)
	assert.True(t, apperr.IsValidation(err))

	_, err = f.svc.Create(ctx, f.talentP, f.request())
	assert.True(t, apperr.IsForbidden(err))

	otherP, _, err := f.store.SeedClient(ctx, "Globex")
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, otherP, f.request())
	assert.True(t, apperr.IsForbidden(err))
}

func TestTransition_ConfirmThenRealise(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e, err := f.svc.Create(ctx, f.clientP, f.request())
	require.NoError(t, err)
	f.rec.Reset()

	_, err = f.svc.Transition(ctx, f.clientP, e.UID, act(ActionConfirmer))
	assert.True(t, apperr.IsForbidden(err), "only the talent confirms")

	confirmed, err := f.svc.Transition(ctx, f.talentP, e.UID, act(ActionConfirmer))
	require.NoError(t, err)
	assert.Equal(t, types.EntretienConfirme, confirmed.Status)
	require.NotNil(t, confirmed.ConfirmedAt)
	assert.Equal(t, f.talentP.UserID, *confirmed.ConfirmedBy)
	assert.Equal(t, types.CandidatureEntretienPlanifie, f.candStatus(t))
	assert.Len(t, f.rec.For(f.clientP.UserID, notify.TypeEntretienMisAJour), 1)
	assert.Len(t, f.rec.For(f.admin.UserID, notify.TypeEntretienMisAJour), 1)

	_, err = f.svc.Transition(ctx, f.talentP, e.UID, act(ActionConfirmer))
	assert.True(t, apperr.IsConflict(err))

	done, err := f.svc.Transition(ctx, f.admin, e.UID, act(ActionMarquerRealise))
	require.NoError(t, err)
	assert.Equal(t, types.EntretienRealise, done.Status)
	assert.Equal(t, types.CandidatureEntretienRealise, f.candStatus(t))

	_, err = f.svc.Transition(ctx, f.clientP, e.UID, act(ActionAnnuler))
	assert.True(t, apperr.IsConflict(err))
}

func (f *fixture) proposeAlternative(t *testing.T, uid uuid.UUID) {
	t.Helper()
	alt := day("2026-11-05")
	_, err := f.svc.Transition(context.Background(), f.talentP, uid, types.EntretienActionRequest{
		Action:     string(ActionProposerDate),
		Date:       &alt,
		HeureDebut: "14:00",
		HeureFin:   "15:00",
	})
	require.NoError(t, err)
}

func TestCreate_PendingAlternativeBlocks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Create(ctx, f.clientP, f.request())
	require.NoError(t, err)
	f.proposeAlternative(t, first.UID)

	_, err = f.svc.Create(ctx, f.clientP, f.request())
	assert.True(t, apperr.IsConflict(err), "an interview awaiting an alternative date still blocks")

	accepted, err := f.svc.Transition(ctx, f.clientP, first.UID, act(ActionAccepterAlternative))
	require.NoError(t, err)
	assert.Equal(t, types.EntretienConfirme, accepted.Status)
	assert.Equal(t, types.CandidatureEntretienPlanifie, f.candStatus(t))
}

func TestTransition_ConfirmRejectedWhenAnotherConfirmed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Create(ctx, f.clientP, f.request())
	require.NoError(t, err)
	f.proposeAlternative(t, first.UID)

	err = f.store.InTx(ctx, func(tx store.Tx) error {
		c, err := tx.GetCandidature(ctx, f.cand.UID)
		if err != nil {
			return err
		}
		return tx.CreateEntretien(ctx, &types.Entretien{
			CandidatureID: c.ID,
			Proposition:   types.Slot{Date: day("2026-11-10"), HeureDebut: "09:00", HeureFin: "10:00"},
			Type:          types.EntretienTelephone,
			Status:        types.EntretienConfirme,
		})
	})
	require.NoError(t, err)

	_, err = f.svc.Transition(ctx, f.clientP, first.UID, act(ActionAccepterAlternative))
	assert.True(t, apperr.IsConflict(err))

	e, err := f.svc.Get(ctx, f.admin, first.UID)
	require.NoError(t, err)
	assert.Equal(t, types.EntretienDateAlternativeProposee, e.Status, "rejected confirmation is rolled back")
}

func TestTransition_AlternativeDate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e, err := f.svc.Create(ctx, f.clientP, f.request())
	require.NoError(t, err)

	_, err = f.svc.Transition(ctx, f.talentP, e.UID, act(ActionProposerDate))
	assert.True(t, apperr.IsValidation(err))

	alt := day("2026-11-05")
	proposed, err := f.svc.Transition(ctx, f.talentP, e.UID, types.EntretienActionRequest{
		Action:     string(ActionProposerDate),
		Date:       &alt,
		HeureDebut: "14:00",
		HeureFin:   "15:00",
	})
	require.NoError(t, err)
	assert.Equal(t, types.EntretienDateAlternativeProposee, proposed.Status)
	assert.Equal(t, "2026-11-03", proposed.Proposition.Date.String(), "original proposal is kept")
	require.NotNil(t, proposed.Alternative)
	assert.Equal(t, "2026-11-05", proposed.Alternative.Date.String())
	assert.Equal(t, types.CandidatureEntretienDemande, f.candStatus(t))

	accepted, err := f.svc.Transition(ctx, f.clientP, e.UID, act(ActionAccepterAlternative))
	require.NoError(t, err)
	assert.Equal(t, types.EntretienConfirme, accepted.Status)
	assert.Equal(t, "2026-11-05", accepted.Proposition.Date.String())
	assert.Equal(t, "14:00", accepted.Proposition.HeureDebut)
	assert.Nil(t, accepted.Alternative)
	assert.Equal(t, types.CandidatureEntretienPlanifie, f.candStatus(t))
}

func TestTransition_RescheduleAndDecline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e, err := f.svc.Create(ctx, f.clientP, f.request())
	require.NoError(t, err)

	alt := day("2026-11-05")
	_, err = f.svc.Transition(ctx, f.talentP, e.UID, types.EntretienActionRequest{
		Action: string(ActionProposerDate), Date: &alt, HeureDebut: "14:00", HeureFin: "15:00",
	})
	require.NoError(t, err)

	next := day("2026-11-10")
	rescheduled, err := f.svc.Transition(ctx, f.clientP, e.UID, types.EntretienActionRequest{
		Action: string(ActionReprogrammer), Date: &next, HeureDebut: "09:00", HeureFin: "09:30",
	})
	require.NoError(t, err)
	assert.Equal(t, types.EntretienEnAttenteConfirmation, rescheduled.Status)
	assert.Equal(t, "2026-11-10", rescheduled.Proposition.Date.String())
	assert.Nil(t, rescheduled.Alternative)

	declined, err := f.svc.Transition(ctx, f.talentP, e.UID, types.EntretienActionRequest{Action: string(ActionRefuser), Motif: "indisponible"})
	require.NoError(t, err)
	assert.Equal(t, types.EntretienAnnule, declined.Status)
	assert.Equal(t, "indisponible", declined.MotifAnnulation)
	assert.Equal(t, types.CandidatureShortlist, f.candStatus(t))

	_, err = f.svc.Transition(ctx, f.talentP, e.UID, act("ignorer"))
	assert.True(t, apperr.IsConflict(err))
}

func TestGet_Visibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e, err := f.svc.Create(ctx, f.clientP, f.request())
	require.NoError(t, err)

	for _, p := range []types.Principal{f.admin, f.talentP, f.clientP} {
		got, err := f.svc.Get(ctx, p, e.UID)
		require.NoError(t, err)
		assert.Equal(t, e.UID, got.UID)
	}

	strangerP, _, err := f.store.SeedTalent(ctx, "Dan", nil, nil)
	require.NoError(t, err)
	_, err = f.svc.Get(ctx, strangerP, e.UID)
	assert.True(t, apperr.IsForbidden(err))
}
