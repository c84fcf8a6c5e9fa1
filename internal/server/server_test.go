package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jonathan/talent-pipeline/internal/candidature"
	"github.com/jonathan/talent-pipeline/internal/config"
	"github.com/jonathan/talent-pipeline/internal/contrat"
	"github.com/jonathan/talent-pipeline/internal/entretien"
	"github.com/jonathan/talent-pipeline/internal/facture"
	"github.com/jonathan/talent-pipeline/internal/matching"
	"github.com/jonathan/talent-pipeline/internal/notify"
	"github.com/jonathan/talent-pipeline/internal/server/ratelimit"
	"github.com/jonathan/talent-pipeline/internal/shortlist"
	"github.com/jonathan/talent-pipeline/internal/store/memstore"
	"github.com/jonathan/talent-pipeline/internal/types"
)

type harness struct {
	t       *testing.T
	store   *memstore.Store
	rec     *notify.Recorder
	jwt     *JWTService
	runner  *matching.Runner
	server  *Server
	admin   types.Principal
	talent  types.Principal
	clientP types.Principal
	client  *types.Client
	offre   *types.Offre
}

func newHarness(t *testing.T, customize ...func(*Deps)) *harness {
	t.Helper()
	ctx := context.Background()
	log := zap.NewNop()

	h := &harness{t: t, store: memstore.New(), rec: &notify.Recorder{}}
	sender := notify.NewSender(h.rec, log, time.Second)
	h.jwt = setupTestJWTService(t, 1)
	h.runner = matching.NewRunner(h.store, log, matching.Settings{TopN: 10, Workers: 2})

	deps := Deps{
		Candidatures: candidature.NewService(h.store, sender, log),
		Shortlists:   shortlist.NewService(h.store, sender, log),
		Entretiens:   entretien.NewService(h.store, sender, log),
		Contrats:     contrat.NewService(h.store, sender, log),
		Factures:     facture.NewService(h.store, sender, log, facture.Settings{TVARate: 0.2, DefaultDueDays: 30}),
		Matching:     h.runner,
		Tokens:       h.jwt.AsTokenValidator(),
		Logger:       log,
	}
	for _, fn := range customize {
		fn(&deps)
	}
	h.server = New(config.ServerConfig{Port: 8080}, deps)

	var err error
	h.admin, err = h.store.SeedUser(ctx, types.RoleAdmin)
	require.NoError(t, err)
	h.talent, _, err = h.store.SeedTalent(ctx, "Ada", []string{"Go", "Kubernetes"}, nil)
	require.NoError(t, err)
	h.clientP, h.client, err = h.store.SeedClient(ctx, "Acme")
	require.NoError(t, err)
	h.offre, err = h.store.SeedOffre(ctx, h.client, "Platform engineer", []string{"Go", "Kubernetes"}, []string{"PostgreSQL"})
	require.NoError(t, err)

	return h
}

// do sends a request as p, or anonymously when p is nil.
func (h *harness) do(p *types.Principal, method, path string, body any) *httptest.ResponseRecorder {
	h.t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(h.t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if p != nil {
		token, err := h.jwt.GenerateToken(p.UserID, p.Role)
		require.NoError(h.t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]string](t, w)["error"]
}

func (h *harness) apply() types.Candidature {
	h.t.Helper()
	w := h.do(&h.talent, http.MethodPost, "/candidatures", types.ApplyRequest{OffreID: h.offre.UID, Motivation: "Kubernetes depuis 2019"})
	require.Equal(h.t, http.StatusCreated, w.Code, w.Body.String())
	return decode[types.Candidature](h.t, w)
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealth(t *testing.T) {
	h := newHarness(t)
	w := h.do(nil, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, w)["status"])

	down := newHarness(t, func(d *Deps) {
		d.Health = pingerFunc(func(context.Context) error { return errors.New("connection refused") })
	})
	w = down.do(nil, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAuthentication(t *testing.T) {
	h := newHarness(t)

	w := h.do(nil, http.MethodGet, "/candidatures", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotEmpty(t, errorMessage(t, w))

	req := httptest.NewRequest(http.MethodGet, "/candidatures", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRoleGuards(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name   string
		p      types.Principal
		method string
		path   string
	}{
		{"talent cannot run matching", h.talent, http.MethodPost, "/offres/" + h.offre.UID.String() + "/matching"},
		{"client cannot apply", h.clientP, http.MethodPost, "/candidatures"},
		{"talent cannot list factures", h.talent, http.MethodGet, "/factures"},
		{"client cannot create contrats", h.clientP, http.MethodPost, "/contrats"},
		{"talent cannot list shortlists", h.talent, http.MethodGet, "/shortlists"},
		{"admin cannot act as client on a shortlist", h.admin, http.MethodPatch, "/shortlists/" + uuid.NewString() + "/candidats/" + uuid.NewString()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := h.do(&tt.p, tt.method, tt.path, map[string]string{})
			assert.Equal(t, http.StatusForbidden, w.Code)
		})
	}
}

func TestApply_ValidationAndConflict(t *testing.T) {
	h := newHarness(t)

	w := h.do(&h.talent, http.MethodPost, "/candidatures", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, errorMessage(t, w), "offreId")

	w = h.do(&h.talent, http.MethodPost, "/candidatures", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(&h.talent, http.MethodPost, "/candidatures", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(&h.talent, http.MethodPost, "/candidatures", map[string]any{"offreId": h.offre.UID, "tjmPropose": -5})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, errorMessage(t, w), "tjmPropose")

	c := h.apply()
	assert.Equal(t, types.CandidatureNouvelle, c.Status)
	assert.Equal(t, 80, c.ScoreMatch)

	w = h.do(&h.talent, http.MethodPost, "/candidatures", types.ApplyRequest{OffreID: h.offre.UID})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = h.do(&h.talent, http.MethodPost, "/candidatures", types.ApplyRequest{OffreID: uuid.New()})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCandidature_NotesHiddenFromTalent(t *testing.T) {
	h := newHarness(t)
	c := h.apply()
	path := "/candidatures/" + c.UID.String()

	w := h.do(&h.admin, http.MethodPatch, path, types.CandidatureActionRequest{Action: "mettre_en_revue", Notes: "profil solide"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decode[types.Candidature](t, w)
	assert.Equal(t, types.CandidatureEnRevue, got.Status)
	assert.Equal(t, "profil solide", got.Notes)

	w = h.do(&h.talent, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[types.Candidature](t, w).Notes)

	w = h.do(&h.talent, http.MethodGet, "/candidatures", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[struct {
		Candidatures []types.Candidature `json:"candidatures"`
		Count        int                 `json:"count"`
	}](t, w)
	require.Equal(t, 1, list.Count)
	assert.Empty(t, list.Candidatures[0].Notes)

	// Not shortlisted yet, so the client cannot see it.
	w = h.do(&h.clientP, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = h.do(&h.admin, http.MethodPatch, path, types.CandidatureActionRequest{Action: "voir"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = h.do(&h.admin, http.MethodGet, "/candidatures?statut=en_revue", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode[map[string]any](t, w)["count"])

	w = h.do(&h.admin, http.MethodGet, "/candidatures?statut=PERDUE", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWithdraw(t *testing.T) {
	h := newHarness(t)
	c := h.apply()
	path := "/candidatures/" + c.UID.String()

	w := h.do(&h.talent, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = h.do(&h.talent, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = h.do(&h.talent, http.MethodDelete, "/candidatures/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestShortlistSelectionScenario(t *testing.T) {
	h := newHarness(t)
	c := h.apply()

	w := h.do(&h.admin, http.MethodPatch, "/candidatures/"+c.UID.String(), types.CandidatureActionRequest{Action: "preselectionner"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = h.do(&h.admin, http.MethodPost, "/shortlists", types.CreateShortlistRequest{OffreID: h.offre.UID, CandidatureIDs: []uuid.UUID{c.UID}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	sl := decode[types.Shortlist](t, w)
	require.Len(t, sl.Candidats, 1)

	// A draft shortlist is not listed for the client.
	w = h.do(&h.clientP, http.MethodGet, "/shortlists", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), decode[map[string]any](t, w)["count"])

	w = h.do(&h.admin, http.MethodPatch, "/shortlists/"+sl.UID.String(), types.ShortlistStatusRequest{Statut: "INCONNU"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(&h.admin, http.MethodPatch, "/shortlists/"+sl.UID.String(), types.ShortlistStatusRequest{Statut: types.ShortlistEnvoyee})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = h.do(&h.clientP, http.MethodGet, "/shortlists", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode[map[string]any](t, w)["count"])

	h.rec.Reset()
	memberPath := "/shortlists/" + sl.UID.String() + "/candidats/" + sl.Candidats[0].UID.String()
	w = h.do(&h.clientP, http.MethodPatch, memberPath, types.ShortlistCandidatActionRequest{Action: "selectionner", Commentaire: "parfait"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	member := decode[types.ShortlistCandidat](t, w)
	require.NotNil(t, member.Feedback)
	assert.Equal(t, types.FeedbackSelectionne, *member.Feedback)

	w = h.do(&h.clientP, http.MethodGet, "/candidatures/"+c.UID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, types.CandidatureAcceptee, decode[types.Candidature](t, w).Status)

	assert.Len(t, h.rec.For(h.talent.UserID, notify.TypeCandidatSelectionne), 1)

	w = h.do(&h.clientP, http.MethodPatch, memberPath, types.ShortlistCandidatActionRequest{Action: "selectionner"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Len(t, h.rec.For(h.talent.UserID, notify.TypeCandidatSelectionne), 1)
}

func TestMatching(t *testing.T) {
	h := newHarness(t)
	path := "/offres/" + h.offre.UID.String()

	w := h.do(&h.admin, http.MethodPost, path+"/matching", nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, h.offre.UID.String(), decode[map[string]string](t, w)["offreUid"])
	h.runner.Wait()

	w = h.do(&h.admin, http.MethodGet, path+"/matches", nil)
	require.Equal(t, http.StatusOK, w.Code)
	matches := decode[struct {
		Matches []types.Match `json:"matches"`
	}](t, w)
	require.Len(t, matches.Matches, 1)
	assert.Equal(t, 80, matches.Matches[0].Score)

	w = h.do(&h.admin, http.MethodGet, "/offres/"+uuid.NewString()+"/matches", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAssign(t *testing.T) {
	h := newHarness(t)
	_, talent, err := h.store.SeedTalent(context.Background(), "Grace", []string{"Go"}, nil)
	require.NoError(t, err)

	w := h.do(&h.admin, http.MethodPost, "/offres/"+h.offre.UID.String()+"/candidatures", types.AssignRequest{TalentID: talent.UID, Notes: "recommandée"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	c := decode[types.Candidature](t, w)
	assert.Equal(t, types.RoleAdmin, c.CreatedBy)
	assert.Equal(t, 40, c.ScoreMatch)
}

func TestFactureFlow(t *testing.T) {
	h := newHarness(t)

	w := h.do(&h.admin, http.MethodPost, "/factures", types.CreateFactureRequest{
		ClientID: h.client.UID,
		Lignes:   []types.LigneRequest{{Description: "Mission mars", Quantite: 10, PrixUnitaire: 500}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	f := decode[types.Facture](t, w)
	assert.Equal(t, types.FactureBrouillon, f.Status)
	assert.InDelta(t, 6000, f.MontantTTC, 0.001)
	path := "/factures/" + f.UID.String()

	w = h.do(&h.admin, http.MethodPost, "/factures", types.CreateFactureRequest{
		ClientID: h.client.UID,
		Lignes:   []types.LigneRequest{{Description: "", Quantite: 1, PrixUnitaire: 1}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, errorMessage(t, w), "lignes[0].description")

	// Drafts stay hidden from the client.
	w = h.do(&h.clientP, http.MethodGet, "/factures", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), decode[map[string]any](t, w)["count"])

	w = h.do(&h.admin, http.MethodPut, path+"/lignes", types.ReplaceLignesRequest{
		Lignes: []types.LigneRequest{{Description: "Mission mars", Quantite: 12, PrixUnitaire: 500}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.InDelta(t, 7200, decode[types.Facture](t, w).MontantTTC, 0.001)

	w = h.do(&h.admin, http.MethodPatch, path, types.FactureActionRequest{Action: "emettre"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, types.FactureEmise, decode[types.Facture](t, w).Status)

	w = h.do(&h.clientP, http.MethodGet, "/factures?statut=EMISE", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode[map[string]any](t, w)["count"])

	w = h.do(&h.admin, http.MethodPatch, path, types.FactureActionRequest{Action: "rembourser"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(&h.admin, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestContratNotFound(t *testing.T) {
	h := newHarness(t)

	w := h.do(&h.admin, http.MethodGet, "/contrats/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = h.do(&h.admin, http.MethodPatch, "/contrats/"+uuid.NewString()+"/avenants/"+uuid.NewString(), types.AvenantActionRequest{Action: "resilier"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRateLimit(t *testing.T) {
	limiter := ratelimit.NewLimiter(&ratelimit.Config{
		Enabled:       true,
		DefaultLimit:  1,
		DefaultWindow: time.Minute,
	})
	defer limiter.Stop()

	h := newHarness(t, func(d *Deps) { d.RateLimiter = limiter })

	w := h.do(&h.admin, http.MethodGet, "/factures", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))

	w = h.do(&h.admin, http.MethodGet, "/factures", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, "rate_limit_exceeded", decode[map[string]any](t, w)["error"])
}

func TestCORSPreflight(t *testing.T) {
	h := newHarness(t)

	req := httptest.NewRequest(http.MethodOptions, "/contrats", nil)
	w := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Authorization")
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "PATCH")
}

func TestFail_HidesUnexpectedErrors(t *testing.T) {
	h := newHarness(t)
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	w := httptest.NewRecorder()

	h.server.fail(w, req, errors.New("pgx: connection reset by peer"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal error", errorMessage(t, w))
	assert.False(t, strings.Contains(w.Body.String(), "pgx"))
}
