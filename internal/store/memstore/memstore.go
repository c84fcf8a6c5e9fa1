// Package memstore is an in-memory store.Store. Units of work are serialized and
// rolled back by restoring a snapshot, and the same uniqueness constraints as the
// relational schema are enforced. Lifecycle service tests run against it.
package memstore

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/talent-pipeline/internal/store"
	"github.com/jonathan/talent-pipeline/internal/types"
)

type matchKey struct {
	offreID, talentID int64
}

type state struct {
	seq int64

	users        map[uuid.UUID]types.User
	talents      map[int64]types.Talent
	clients      map[int64]types.Client
	offres       map[int64]types.Offre
	matches      map[matchKey]types.Match
	candidatures map[int64]types.Candidature
	shortlists   map[int64]types.Shortlist
	members      map[int64]types.ShortlistCandidat
	entretiens   map[int64]types.Entretien
	contrats     map[int64]types.Contrat
	avenants     map[int64]types.Avenant
	factures     map[int64]types.Facture
	lignes       map[int64][]types.LigneFacture
}

func newState() state {
	return state{
		users:        map[uuid.UUID]types.User{},
		talents:      map[int64]types.Talent{},
		clients:      map[int64]types.Client{},
		offres:       map[int64]types.Offre{},
		matches:      map[matchKey]types.Match{},
		candidatures: map[int64]types.Candidature{},
		shortlists:   map[int64]types.Shortlist{},
		members:      map[int64]types.ShortlistCandidat{},
		entretiens:   map[int64]types.Entretien{},
		contrats:     map[int64]types.Contrat{},
		avenants:     map[int64]types.Avenant{},
		factures:     map[int64]types.Facture{},
		lignes:       map[int64][]types.LigneFacture{},
	}
}

func (s state) clone() state {
	return state{
		seq:          s.seq,
		users:        maps.Clone(s.users),
		talents:      maps.Clone(s.talents),
		clients:      maps.Clone(s.clients),
		offres:       maps.Clone(s.offres),
		matches:      maps.Clone(s.matches),
		candidatures: maps.Clone(s.candidatures),
		shortlists:   maps.Clone(s.shortlists),
		members:      maps.Clone(s.members),
		entretiens:   maps.Clone(s.entretiens),
		contrats:     maps.Clone(s.contrats),
		avenants:     maps.Clone(s.avenants),
		factures:     maps.Clone(s.factures),
		lignes:       maps.Clone(s.lignes),
	}
}

// Store is an in-memory store.Store.
type Store struct {
	mu    sync.Mutex
	state state
	now   func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{state: newState(), now: time.Now}
}

// InTx runs fn with exclusive access to the store. Any error restores the state
// that existed before fn was called.
func (s *Store) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	snapshot := s.state.clone()
	if err := fn(&tx{s: &s.state, now: s.now}); err != nil {
		s.state = snapshot
		return err
	}
	return nil
}

type tx struct {
	s   *state
	now func() time.Time
}

func (t *tx) nextID() int64 {
	t.s.seq++
	return t.s.seq
}

func duplicate(what string) error {
	return fmt.Errorf("%s: %w", what, store.ErrDuplicate)
}

func missing(what string, id int64) error {
	return fmt.Errorf("%s %d does not exist", what, id)
}

func ensureUID(uid *uuid.UUID) {
	if *uid == uuid.Nil {
		*uid = uuid.New()
	}
}

func page[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return []T{}
		}
		items = items[offset:]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

// ============================================================================
// Users
// ============================================================================

func (t *tx) CreateUser(_ context.Context, u *types.User) error {
	ensureUID(&u.ID)
	for _, existing := range t.s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return duplicate("user email")
		}
	}
	t.s.users[u.ID] = *u
	return nil
}

func (t *tx) ListUserIDsByRole(_ context.Context, role types.Role) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0)
	for _, u := range t.s.users {
		if u.Role == role {
			ids = append(ids, u.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}

// ============================================================================
// Talents
// ============================================================================

func (t *tx) CreateTalent(_ context.Context, tl *types.Talent) error {
	ensureUID(&tl.UID)
	for _, existing := range t.s.talents {
		if existing.UID == tl.UID || existing.UserID == tl.UserID {
			return duplicate("talent")
		}
	}
	tl.ID = t.nextID()
	if tl.Status == "" {
		tl.Status = types.TalentActive
	}
	tl.CreatedAt = t.now()
	tl.Skills = slices.Clone(tl.Skills)
	t.s.talents[tl.ID] = *tl
	return nil
}

func (t *tx) GetTalent(_ context.Context, uid uuid.UUID) (*types.Talent, error) {
	for _, tl := range t.s.talents {
		if tl.UID == uid {
			return &tl, nil
		}
	}
	return nil, nil
}

func (t *tx) GetTalentByID(_ context.Context, id int64) (*types.Talent, error) {
	if tl, ok := t.s.talents[id]; ok {
		return &tl, nil
	}
	return nil, nil
}

func (t *tx) GetTalentByUserID(_ context.Context, userID uuid.UUID) (*types.Talent, error) {
	for _, tl := range t.s.talents {
		if tl.UserID == userID {
			return &tl, nil
		}
	}
	return nil, nil
}

func (t *tx) ListTalentsByStatus(_ context.Context, status types.TalentStatus) ([]types.Talent, error) {
	out := make([]types.Talent, 0)
	for _, tl := range t.s.talents {
		if tl.Status == status {
			out = append(out, tl)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *tx) UpdateTalentStatus(_ context.Context, id int64, status types.TalentStatus) error {
	tl, ok := t.s.talents[id]
	if !ok {
		return missing("talent", id)
	}
	tl.Status = status
	t.s.talents[id] = tl
	return nil
}

// ============================================================================
// Clients
// ============================================================================

func (t *tx) CreateClient(_ context.Context, c *types.Client) error {
	ensureUID(&c.UID)
	for _, existing := range t.s.clients {
		if existing.UID == c.UID || existing.UserID == c.UserID {
			return duplicate("client")
		}
	}
	c.ID = t.nextID()
	c.CreatedAt = t.now()
	t.s.clients[c.ID] = *c
	return nil
}

func (t *tx) GetClient(_ context.Context, uid uuid.UUID) (*types.Client, error) {
	for _, c := range t.s.clients {
		if c.UID == uid {
			return &c, nil
		}
	}
	return nil, nil
}

func (t *tx) GetClientByID(_ context.Context, id int64) (*types.Client, error) {
	if c, ok := t.s.clients[id]; ok {
		return &c, nil
	}
	return nil, nil
}

func (t *tx) GetClientByUserID(_ context.Context, userID uuid.UUID) (*types.Client, error) {
	for _, c := range t.s.clients {
		if c.UserID == userID {
			return &c, nil
		}
	}
	return nil, nil
}

// ============================================================================
// Offres
// ============================================================================

func (t *tx) CreateOffre(_ context.Context, o *types.Offre) error {
	ensureUID(&o.UID)
	if o.ClientID != nil {
		if _, ok := t.s.clients[*o.ClientID]; !ok {
			return missing("client", *o.ClientID)
		}
	}
	o.ID = t.nextID()
	if o.Status == "" {
		o.Status = types.OffreDraft
	}
	o.CreatedAt = t.now()
	o.RequiredSkills = slices.Clone(o.RequiredSkills)
	o.DesiredSkills = slices.Clone(o.DesiredSkills)
	t.s.offres[o.ID] = *o
	return nil
}

func (t *tx) GetOffre(_ context.Context, uid uuid.UUID) (*types.Offre, error) {
	for _, o := range t.s.offres {
		if o.UID == uid {
			return &o, nil
		}
	}
	return nil, nil
}

func (t *tx) GetOffreByID(_ context.Context, id int64) (*types.Offre, error) {
	if o, ok := t.s.offres[id]; ok {
		return &o, nil
	}
	return nil, nil
}

func (t *tx) UpdateOffreStatus(_ context.Context, id int64, status types.OffreStatus) error {
	o, ok := t.s.offres[id]
	if !ok {
		return missing("offre", id)
	}
	o.Status = status
	t.s.offres[id] = o
	return nil
}

func (t *tx) AdjustOffreCandidatures(_ context.Context, id int64, delta int) error {
	o, ok := t.s.offres[id]
	if !ok {
		return missing("offre", id)
	}
	o.NbCandidatures = max(0, o.NbCandidatures+delta)
	t.s.offres[id] = o
	return nil
}

// ============================================================================
// Matches
// ============================================================================

func (t *tx) UpsertMatch(_ context.Context, m *types.Match) error {
	key := matchKey{m.OffreID, m.TalentID}
	if existing, ok := t.s.matches[key]; ok {
		m.ID = existing.ID
		if m.CandidatureID == nil {
			m.CandidatureID = existing.CandidatureID
		}
	} else {
		m.ID = t.nextID()
	}
	if tl, ok := t.s.talents[m.TalentID]; ok {
		m.TalentUID = tl.UID
	}
	if m.ComputedAt.IsZero() {
		m.ComputedAt = t.now()
	}
	t.s.matches[key] = *m
	return nil
}

func (t *tx) ListMatches(_ context.Context, offreID int64) ([]types.Match, error) {
	out := make([]types.Match, 0)
	for key, m := range t.s.matches {
		if key.offreID == offreID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].TalentID < out[j].TalentID
	})
	return out, nil
}

func (t *tx) ClearMatchCandidature(_ context.Context, offreID, talentID int64) error {
	key := matchKey{offreID, talentID}
	if m, ok := t.s.matches[key]; ok {
		m.CandidatureID = nil
		t.s.matches[key] = m
	}
	return nil
}

// ============================================================================
// Candidatures
// ============================================================================

func (t *tx) fillCandidature(c types.Candidature) *types.Candidature {
	c.OffreUID = t.s.offres[c.OffreID].UID
	c.TalentUID = t.s.talents[c.TalentID].UID
	return &c
}

func (t *tx) CreateCandidature(_ context.Context, c *types.Candidature) error {
	if _, ok := t.s.offres[c.OffreID]; !ok {
		return missing("offre", c.OffreID)
	}
	if _, ok := t.s.talents[c.TalentID]; !ok {
		return missing("talent", c.TalentID)
	}
	for _, existing := range t.s.candidatures {
		if existing.OffreID == c.OffreID && existing.TalentID == c.TalentID {
			return duplicate("candidature (offre, talent)")
		}
	}
	ensureUID(&c.UID)
	c.ID = t.nextID()
	now := t.now()
	c.CreatedAt, c.UpdatedAt = now, now
	t.s.candidatures[c.ID] = *c
	*c = *t.fillCandidature(*c)
	return nil
}

func (t *tx) GetCandidature(_ context.Context, uid uuid.UUID) (*types.Candidature, error) {
	for _, c := range t.s.candidatures {
		if c.UID == uid {
			return t.fillCandidature(c), nil
		}
	}
	return nil, nil
}

func (t *tx) GetCandidatureByID(_ context.Context, id int64) (*types.Candidature, error) {
	if c, ok := t.s.candidatures[id]; ok {
		return t.fillCandidature(c), nil
	}
	return nil, nil
}

func (t *tx) FindCandidature(_ context.Context, offreID, talentID int64) (*types.Candidature, error) {
	for _, c := range t.s.candidatures {
		if c.OffreID == offreID && c.TalentID == talentID {
			return t.fillCandidature(c), nil
		}
	}
	return nil, nil
}

func (t *tx) shortlisted(candidatureID int64) bool {
	for _, m := range t.s.members {
		if m.CandidatureID == candidatureID {
			return true
		}
	}
	return false
}

func (t *tx) ListCandidatures(_ context.Context, f store.CandidatureFilter) ([]types.Candidature, error) {
	out := make([]types.Candidature, 0)
	for _, c := range t.s.candidatures {
		if f.OffreID != nil && c.OffreID != *f.OffreID {
			continue
		}
		if f.TalentID != nil && c.TalentID != *f.TalentID {
			continue
		}
		if f.Status != nil && c.Status != *f.Status {
			continue
		}
		if f.ClientID != nil {
			o := t.s.offres[c.OffreID]
			if o.ClientID == nil || *o.ClientID != *f.ClientID || !t.shortlisted(c.ID) {
				continue
			}
		}
		out = append(out, *t.fillCandidature(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return page(out, f.Limit, f.Offset), nil
}

func (t *tx) UpdateCandidature(_ context.Context, c *types.Candidature) error {
	existing, ok := t.s.candidatures[c.ID]
	if !ok {
		return missing("candidature", c.ID)
	}
	c.OffreID, c.TalentID, c.UID, c.CreatedAt = existing.OffreID, existing.TalentID, existing.UID, existing.CreatedAt
	c.UpdatedAt = t.now()
	t.s.candidatures[c.ID] = *c
	return nil
}

func (t *tx) DeleteCandidature(_ context.Context, id int64) error {
	if _, ok := t.s.candidatures[id]; !ok {
		return missing("candidature", id)
	}
	for _, m := range t.s.members {
		if m.CandidatureID == id {
			return fmt.Errorf("candidature %d is referenced by a shortlist: %w", id, store.ErrReferenced)
		}
	}
	delete(t.s.candidatures, id)
	return nil
}

// ============================================================================
// Shortlists
// ============================================================================

func (t *tx) fillShortlist(s types.Shortlist) *types.Shortlist {
	s.OffreUID = t.s.offres[s.OffreID].UID
	s.Candidats = make([]types.ShortlistCandidat, 0)
	for _, m := range t.s.members {
		if m.ShortlistID == s.ID {
			m.CandidatureUID = t.s.candidatures[m.CandidatureID].UID
			s.Candidats = append(s.Candidats, m)
		}
	}
	sort.Slice(s.Candidats, func(i, j int) bool { return s.Candidats[i].Position < s.Candidats[j].Position })
	return &s
}

func (t *tx) CreateShortlist(_ context.Context, s *types.Shortlist) error {
	if _, ok := t.s.offres[s.OffreID]; !ok {
		return missing("offre", s.OffreID)
	}
	for _, existing := range t.s.shortlists {
		if existing.OffreID == s.OffreID {
			return duplicate("shortlist offre")
		}
	}
	ensureUID(&s.UID)
	s.ID = t.nextID()
	now := t.now()
	s.CreatedAt, s.UpdatedAt = now, now
	stored := *s
	stored.Candidats = nil
	t.s.shortlists[s.ID] = stored
	*s = *t.fillShortlist(stored)
	return nil
}

func (t *tx) GetShortlist(_ context.Context, uid uuid.UUID) (*types.Shortlist, error) {
	for _, s := range t.s.shortlists {
		if s.UID == uid {
			return t.fillShortlist(s), nil
		}
	}
	return nil, nil
}

func (t *tx) GetShortlistByOffre(_ context.Context, offreID int64) (*types.Shortlist, error) {
	for _, s := range t.s.shortlists {
		if s.OffreID == offreID {
			return t.fillShortlist(s), nil
		}
	}
	return nil, nil
}

func (t *tx) ListShortlists(_ context.Context, f store.ShortlistFilter) ([]types.Shortlist, error) {
	out := make([]types.Shortlist, 0)
	for _, s := range t.s.shortlists {
		if f.ClientID != nil {
			o := t.s.offres[s.OffreID]
			if o.ClientID == nil || *o.ClientID != *f.ClientID {
				continue
			}
		}
		if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, s.Status) {
			continue
		}
		out = append(out, *t.fillShortlist(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return page(out, f.Limit, f.Offset), nil
}

func (t *tx) UpdateShortlistStatus(_ context.Context, id int64, status types.ShortlistStatus) error {
	s, ok := t.s.shortlists[id]
	if !ok {
		return missing("shortlist", id)
	}
	s.Status = status
	s.UpdatedAt = t.now()
	t.s.shortlists[id] = s
	return nil
}

func (t *tx) AddShortlistCandidat(_ context.Context, sc *types.ShortlistCandidat) error {
	if _, ok := t.s.shortlists[sc.ShortlistID]; !ok {
		return missing("shortlist", sc.ShortlistID)
	}
	cand, ok := t.s.candidatures[sc.CandidatureID]
	if !ok {
		return missing("candidature", sc.CandidatureID)
	}
	for _, m := range t.s.members {
		if m.ShortlistID == sc.ShortlistID && (m.CandidatureID == sc.CandidatureID || m.Position == sc.Position) {
			return duplicate("shortlist member")
		}
	}
	ensureUID(&sc.UID)
	sc.ID = t.nextID()
	sc.CandidatureUID = cand.UID
	t.s.members[sc.ID] = *sc
	return nil
}

func (t *tx) UpdateShortlistCandidat(_ context.Context, sc *types.ShortlistCandidat) error {
	existing, ok := t.s.members[sc.ID]
	if !ok {
		return missing("shortlist member", sc.ID)
	}
	sc.ShortlistID, sc.CandidatureID, sc.UID = existing.ShortlistID, existing.CandidatureID, existing.UID
	t.s.members[sc.ID] = *sc
	return nil
}

// ============================================================================
// Entretiens
// ============================================================================

func (t *tx) fillEntretien(e types.Entretien) *types.Entretien {
	e.CandidatureUID = t.s.candidatures[e.CandidatureID].UID
	if e.Alternative != nil {
		alt := *e.Alternative
		e.Alternative = &alt
	}
	return &e
}

func (t *tx) CreateEntretien(_ context.Context, e *types.Entretien) error {
	if _, ok := t.s.candidatures[e.CandidatureID]; !ok {
		return missing("candidature", e.CandidatureID)
	}
	ensureUID(&e.UID)
	e.ID = t.nextID()
	now := t.now()
	e.CreatedAt, e.UpdatedAt = now, now
	t.s.entretiens[e.ID] = *t.fillEntretien(*e)
	*e = *t.fillEntretien(*e)
	return nil
}

func (t *tx) GetEntretien(_ context.Context, uid uuid.UUID) (*types.Entretien, error) {
	for _, e := range t.s.entretiens {
		if e.UID == uid {
			return t.fillEntretien(e), nil
		}
	}
	return nil, nil
}

func (t *tx) ListEntretiensByCandidature(_ context.Context, candidatureID int64) ([]types.Entretien, error) {
	out := make([]types.Entretien, 0)
	for _, e := range t.s.entretiens {
		if e.CandidatureID == candidatureID {
			out = append(out, *t.fillEntretien(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *tx) UpdateEntretien(_ context.Context, e *types.Entretien) error {
	existing, ok := t.s.entretiens[e.ID]
	if !ok {
		return missing("entretien", e.ID)
	}
	e.CandidatureID, e.UID, e.CreatedAt = existing.CandidatureID, existing.UID, existing.CreatedAt
	e.UpdatedAt = t.now()
	t.s.entretiens[e.ID] = *t.fillEntretien(*e)
	return nil
}

// ============================================================================
// Contrats
// ============================================================================

func (t *tx) fillContrat(c types.Contrat) *types.Contrat {
	c.TalentUID = t.s.talents[c.TalentID].UID
	c.ClientUID = t.s.clients[c.ClientID].UID
	return &c
}

func (t *tx) CreateContrat(_ context.Context, c *types.Contrat) error {
	if _, ok := t.s.talents[c.TalentID]; !ok {
		return missing("talent", c.TalentID)
	}
	if _, ok := t.s.clients[c.ClientID]; !ok {
		return missing("client", c.ClientID)
	}
	for _, existing := range t.s.contrats {
		if existing.ClientID == c.ClientID && existing.Reference == c.Reference {
			return duplicate("contrat (client, reference)")
		}
	}
	ensureUID(&c.UID)
	c.ID = t.nextID()
	now := t.now()
	c.CreatedAt, c.UpdatedAt = now, now
	t.s.contrats[c.ID] = *c
	*c = *t.fillContrat(*c)
	return nil
}

func (t *tx) GetContrat(_ context.Context, uid uuid.UUID) (*types.Contrat, error) {
	for _, c := range t.s.contrats {
		if c.UID == uid {
			return t.fillContrat(c), nil
		}
	}
	return nil, nil
}

func (t *tx) LastContratReference(_ context.Context, clientID int64, prefix string) (string, error) {
	last := ""
	for _, c := range t.s.contrats {
		if c.ClientID == clientID && strings.HasPrefix(c.Reference, prefix) && laterSequence(c.Reference, last) {
			last = c.Reference
		}
	}
	return last, nil
}

func (t *tx) CountActiveContrats(_ context.Context, talentID, exceptID int64) (int, error) {
	n := 0
	for _, c := range t.s.contrats {
		if c.TalentID == talentID && c.ID != exceptID && c.Status == types.ContratActif {
			n++
		}
	}
	return n, nil
}

// laterSequence reports whether a sorts after b when both end in a zero-padded
// counter that may outgrow its padding.
func laterSequence(a, b string) bool {
	if len(a) != len(b) {
		return len(a) > len(b)
	}
	return a > b
}

func (t *tx) UpdateContrat(_ context.Context, c *types.Contrat) error {
	existing, ok := t.s.contrats[c.ID]
	if !ok {
		return missing("contrat", c.ID)
	}
	c.UID, c.Reference, c.TalentID, c.ClientID, c.CreatedAt = existing.UID, existing.Reference, existing.TalentID, existing.ClientID, existing.CreatedAt
	c.UpdatedAt = t.now()
	t.s.contrats[c.ID] = *c
	return nil
}

func (t *tx) DeleteContrat(_ context.Context, id int64) error {
	if _, ok := t.s.contrats[id]; !ok {
		return missing("contrat", id)
	}
	for _, a := range t.s.avenants {
		if a.ContratID == id {
			return fmt.Errorf("contrat %d has avenants: %w", id, store.ErrReferenced)
		}
	}
	for _, f := range t.s.factures {
		if f.ContratID != nil && *f.ContratID == id {
			return fmt.Errorf("contrat %d is referenced by a facture: %w", id, store.ErrReferenced)
		}
	}
	delete(t.s.contrats, id)
	return nil
}

// ============================================================================
// Avenants
// ============================================================================

func (t *tx) CreateAvenant(_ context.Context, a *types.Avenant) error {
	if _, ok := t.s.contrats[a.ContratID]; !ok {
		return missing("contrat", a.ContratID)
	}
	for _, existing := range t.s.avenants {
		if existing.ContratID == a.ContratID && existing.Numero == a.Numero {
			return duplicate("avenant (contrat, numero)")
		}
	}
	ensureUID(&a.UID)
	a.ID = t.nextID()
	now := t.now()
	a.CreatedAt, a.UpdatedAt = now, now
	t.s.avenants[a.ID] = *a
	return nil
}

func (t *tx) GetAvenant(_ context.Context, uid uuid.UUID) (*types.Avenant, error) {
	for _, a := range t.s.avenants {
		if a.UID == uid {
			return &a, nil
		}
	}
	return nil, nil
}

func (t *tx) ListAvenants(_ context.Context, contratID int64) ([]types.Avenant, error) {
	out := make([]types.Avenant, 0)
	for _, a := range t.s.avenants {
		if a.ContratID == contratID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Numero < out[j].Numero })
	return out, nil
}

func (t *tx) UpdateAvenant(_ context.Context, a *types.Avenant) error {
	existing, ok := t.s.avenants[a.ID]
	if !ok {
		return missing("avenant", a.ID)
	}
	a.UID, a.ContratID, a.Numero, a.CreatedAt = existing.UID, existing.ContratID, existing.Numero, existing.CreatedAt
	a.UpdatedAt = t.now()
	t.s.avenants[a.ID] = *a
	return nil
}

// ============================================================================
// Factures
// ============================================================================

func (t *tx) fillFacture(f types.Facture, withLignes bool) *types.Facture {
	f.ClientUID = t.s.clients[f.ClientID].UID
	f.ContratUID = nil
	if f.ContratID != nil {
		uid := t.s.contrats[*f.ContratID].UID
		f.ContratUID = &uid
	}
	if f.Remise != nil {
		r := *f.Remise
		f.Remise = &r
	}
	f.Lignes = nil
	if withLignes {
		f.Lignes = slices.Clone(t.s.lignes[f.ID])
		if f.Lignes == nil {
			f.Lignes = []types.LigneFacture{}
		}
	}
	return &f
}

func (t *tx) CreateFacture(_ context.Context, f *types.Facture) error {
	if _, ok := t.s.clients[f.ClientID]; !ok {
		return missing("client", f.ClientID)
	}
	for _, existing := range t.s.factures {
		if existing.Numero == f.Numero {
			return duplicate("facture numero")
		}
	}
	ensureUID(&f.UID)
	f.ID = t.nextID()
	now := t.now()
	f.CreatedAt, f.UpdatedAt = now, now
	stored := *t.fillFacture(*f, false)
	t.s.factures[f.ID] = stored
	*f = *t.fillFacture(stored, true)
	return nil
}

func (t *tx) GetFacture(_ context.Context, uid uuid.UUID) (*types.Facture, error) {
	for _, f := range t.s.factures {
		if f.UID == uid {
			return t.fillFacture(f, true), nil
		}
	}
	return nil, nil
}

func (t *tx) LastFactureNumero(_ context.Context, prefix string) (string, error) {
	last := ""
	for _, f := range t.s.factures {
		if strings.HasPrefix(f.Numero, prefix) && laterSequence(f.Numero, last) {
			last = f.Numero
		}
	}
	return last, nil
}

func (t *tx) ListFactures(_ context.Context, f store.FactureFilter) ([]types.Facture, error) {
	out := make([]types.Facture, 0)
	for _, fa := range t.s.factures {
		if f.ClientID != nil && fa.ClientID != *f.ClientID {
			continue
		}
		if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, fa.Status) {
			continue
		}
		out = append(out, *t.fillFacture(fa, false))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return page(out, f.Limit, f.Offset), nil
}

func (t *tx) ListFacturesDueBefore(_ context.Context, status types.FactureStatus, before time.Time) ([]types.Facture, error) {
	out := make([]types.Facture, 0)
	for _, fa := range t.s.factures {
		if fa.Status == status && fa.DateEcheance != nil && fa.DateEcheance.Before(before) {
			out = append(out, *t.fillFacture(fa, false))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *tx) UpdateFacture(_ context.Context, f *types.Facture) error {
	existing, ok := t.s.factures[f.ID]
	if !ok {
		return missing("facture", f.ID)
	}
	f.UID, f.ClientID, f.CreatedAt = existing.UID, existing.ClientID, existing.CreatedAt
	f.UpdatedAt = t.now()
	for _, other := range t.s.factures {
		if other.ID != f.ID && other.Numero == f.Numero {
			return duplicate("facture numero")
		}
	}
	t.s.factures[f.ID] = *t.fillFacture(*f, false)
	return nil
}

func (t *tx) ReplaceLignes(_ context.Context, factureID int64, lignes []types.LigneFacture) error {
	if _, ok := t.s.factures[factureID]; !ok {
		return missing("facture", factureID)
	}
	stored := make([]types.LigneFacture, len(lignes))
	for i, l := range lignes {
		l.ID = t.nextID()
		l.FactureID = factureID
		stored[i] = l
	}
	t.s.lignes[factureID] = stored
	return nil
}

func (t *tx) DeleteFacture(_ context.Context, id int64) error {
	if _, ok := t.s.factures[id]; !ok {
		return missing("facture", id)
	}
	delete(t.s.factures, id)
	delete(t.s.lignes, id)
	return nil
}

var _ store.Store = (*Store)(nil)
var _ store.Tx = (*tx)(nil)
