package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/jonathan/talent-pipeline/internal/store"
	"github.com/jonathan/talent-pipeline/internal/types"
)

// ============================================================================
// Matches
// ============================================================================

// UpsertMatch replaces the cached score of a pair and keeps an existing
// candidature link unless m carries one.
func (q *queries) UpsertMatch(ctx context.Context, m *types.Match) error {
	err := q.tx.QueryRow(ctx,
		`INSERT INTO matches (offre_id, talent_id, score, matched_required, matched_desired,
		                      missing_required, candidature_id, computed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8::timestamptz, NOW()))
		 ON CONFLICT (offre_id, talent_id) DO UPDATE SET
		     score = EXCLUDED.score,
		     matched_required = EXCLUDED.matched_required,
		     matched_desired = EXCLUDED.matched_desired,
		     missing_required = EXCLUDED.missing_required,
		     candidature_id = COALESCE(EXCLUDED.candidature_id, matches.candidature_id),
		     computed_at = EXCLUDED.computed_at
		 RETURNING id, candidature_id, computed_at,
		           (SELECT uid FROM talents WHERE id = $2)`,
		m.OffreID, m.TalentID, m.Score, orEmpty(m.MatchedRequired), orEmpty(m.MatchedDesired),
		orEmpty(m.MissingRequired), m.CandidatureID, timeArg(m.ComputedAt),
	).Scan(&m.ID, &m.CandidatureID, &m.ComputedAt, &m.TalentUID)
	if err != nil {
		return wrap("upsert match", err)
	}
	return nil
}

func (q *queries) ListMatches(ctx context.Context, offreID int64) ([]types.Match, error) {
	rows, err := q.tx.Query(ctx,
		`SELECT m.id, m.offre_id, m.talent_id, t.uid, m.score, m.matched_required, m.matched_desired,
		        m.missing_required, m.candidature_id, m.computed_at
		 FROM matches m
		 JOIN talents t ON t.id = m.talent_id
		 WHERE m.offre_id = $1
		 ORDER BY m.score DESC, m.talent_id`,
		offreID,
	)
	if err != nil {
		return nil, wrap("list matches", err)
	}
	matches, err := collect(rows, func(r rowScanner) (*types.Match, error) {
		var m types.Match
		err := r.Scan(&m.ID, &m.OffreID, &m.TalentID, &m.TalentUID, &m.Score, &m.MatchedRequired,
			&m.MatchedDesired, &m.MissingRequired, &m.CandidatureID, &m.ComputedAt)
		return &m, err
	})
	if err != nil {
		return nil, wrap("scan matches", err)
	}
	return matches, nil
}

func (q *queries) ClearMatchCandidature(ctx context.Context, offreID, talentID int64) error {
	_, err := q.tx.Exec(ctx,
		`UPDATE matches SET candidature_id = NULL WHERE offre_id = $1 AND talent_id = $2`,
		offreID, talentID,
	)
	if err != nil {
		return wrap("clear match candidature", err)
	}
	return nil
}

// ============================================================================
// Candidatures
// ============================================================================

const candidatureSelect = `SELECT c.id, c.uid, c.offre_id, o.uid, c.talent_id, t.uid, c.statut, c.score_match,
	c.tjm_propose, c.motivation, c.notes, c.created_by, c.viewed_at, c.responded_at, c.created_at, c.updated_at
	FROM candidatures c
	JOIN offres o ON o.id = c.offre_id
	JOIN talents t ON t.id = c.talent_id`

func scanCandidature(r rowScanner) (*types.Candidature, error) {
	var c types.Candidature
	var status, createdBy string
	err := r.Scan(&c.ID, &c.UID, &c.OffreID, &c.OffreUID, &c.TalentID, &c.TalentUID, &status, &c.ScoreMatch,
		&c.TJMPropose, &c.Motivation, &c.Notes, &createdBy, &c.ViewedAt, &c.RespondedAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Status = types.CandidatureStatus(status)
	c.CreatedBy = types.Role(createdBy)
	return &c, nil
}

func (q *queries) CreateCandidature(ctx context.Context, c *types.Candidature) error {
	if c.UID == uuid.Nil {
		c.UID = uuid.New()
	}
	err := q.tx.QueryRow(ctx,
		`INSERT INTO candidatures (uid, offre_id, talent_id, statut, score_match, tjm_propose, motivation,
		                           notes, created_by, viewed_at, responded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING id, created_at, updated_at,
		           (SELECT uid FROM offres WHERE id = $2),
		           (SELECT uid FROM talents WHERE id = $3)`,
		c.UID, c.OffreID, c.TalentID, string(c.Status), c.ScoreMatch, c.TJMPropose, c.Motivation,
		c.Notes, string(c.CreatedBy), c.ViewedAt, c.RespondedAt,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt, &c.OffreUID, &c.TalentUID)
	if err != nil {
		return wrap("create candidature", err)
	}
	return nil
}

func (q *queries) GetCandidature(ctx context.Context, uid uuid.UUID) (*types.Candidature, error) {
	c, err := one(scanCandidature(q.tx.QueryRow(ctx, candidatureSelect+` WHERE c.uid = $1`, uid)))
	if err != nil {
		return nil, wrap("get candidature", err)
	}
	return c, nil
}

func (q *queries) GetCandidatureByID(ctx context.Context, id int64) (*types.Candidature, error) {
	c, err := one(scanCandidature(q.tx.QueryRow(ctx, candidatureSelect+` WHERE c.id = $1`, id)))
	if err != nil {
		return nil, wrap("get candidature", err)
	}
	return c, nil
}

func (q *queries) FindCandidature(ctx context.Context, offreID, talentID int64) (*types.Candidature, error) {
	c, err := one(scanCandidature(q.tx.QueryRow(ctx,
		candidatureSelect+` WHERE c.offre_id = $1 AND c.talent_id = $2`, offreID, talentID)))
	if err != nil {
		return nil, wrap("find candidature", err)
	}
	return c, nil
}

// ListCandidatures applies every non-nil filter. A client filter only returns
// candidatures that belong to a shortlist.
func (q *queries) ListCandidatures(ctx context.Context, f store.CandidatureFilter) ([]types.Candidature, error) {
	var status *string
	if f.Status != nil {
		s := string(*f.Status)
		status = &s
	}
	rows, err := q.tx.Query(ctx,
		candidatureSelect+`
		 WHERE ($1::bigint IS NULL OR c.offre_id = $1)
		   AND ($2::bigint IS NULL OR c.talent_id = $2)
		   AND ($3::text IS NULL OR c.statut = $3)
		   AND ($4::bigint IS NULL OR (o.client_id = $4 AND EXISTS (
		         SELECT 1 FROM shortlist_candidats sc WHERE sc.candidature_id = c.id)))
		 ORDER BY c.id DESC
		 LIMIT $5 OFFSET $6`,
		f.OffreID, f.TalentID, status, f.ClientID, limitArg(f.Limit), f.Offset,
	)
	if err != nil {
		return nil, wrap("list candidatures", err)
	}
	out, err := collect(rows, scanCandidature)
	if err != nil {
		return nil, wrap("scan candidatures", err)
	}
	return out, nil
}

func (q *queries) UpdateCandidature(ctx context.Context, c *types.Candidature) error {
	err := q.tx.QueryRow(ctx,
		`UPDATE candidatures SET statut = $2, score_match = $3, tjm_propose = $4, motivation = $5,
		        notes = $6, viewed_at = $7, responded_at = $8, updated_at = NOW()
		 WHERE id = $1
		 RETURNING updated_at`,
		c.ID, string(c.Status), c.ScoreMatch, c.TJMPropose, c.Motivation, c.Notes, c.ViewedAt, c.RespondedAt,
	).Scan(&c.UpdatedAt)
	if err != nil {
		return wrap("update candidature", err)
	}
	return nil
}

func (q *queries) DeleteCandidature(ctx context.Context, id int64) error {
	tag, err := q.tx.Exec(ctx, `DELETE FROM candidatures WHERE id = $1`, id)
	if err != nil {
		return wrap("delete candidature", err)
	}
	return expectOne(tag, "candidature", id)
}

// ============================================================================
// Shortlists
// ============================================================================

const shortlistSelect = `SELECT s.id, s.uid, s.offre_id, o.uid, s.statut, s.created_at, s.updated_at
	FROM shortlists s
	JOIN offres o ON o.id = s.offre_id`

func scanShortlist(r rowScanner) (*types.Shortlist, error) {
	var s types.Shortlist
	var status string
	if err := r.Scan(&s.ID, &s.UID, &s.OffreID, &s.OffreUID, &status, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	s.Status = types.ShortlistStatus(status)
	return &s, nil
}

func scanMember(r rowScanner) (*types.ShortlistCandidat, error) {
	var m types.ShortlistCandidat
	var feedback *string
	err := r.Scan(&m.ID, &m.UID, &m.ShortlistID, &m.CandidatureID, &m.CandidatureUID, &m.Position,
		&feedback, &m.CommentaireClient, &m.QuestionClient, &m.FeedbackAt)
	if err != nil {
		return nil, err
	}
	if feedback != nil {
		fb := types.Feedback(*feedback)
		m.Feedback = &fb
	}
	return &m, nil
}

// loadMembers fills the members of every shortlist, ordered by position.
func (q *queries) loadMembers(ctx context.Context, lists []types.Shortlist) error {
	if len(lists) == 0 {
		return nil
	}
	ids := make([]int64, len(lists))
	index := make(map[int64]int, len(lists))
	for i := range lists {
		ids[i] = lists[i].ID
		index[lists[i].ID] = i
		lists[i].Candidats = make([]types.ShortlistCandidat, 0)
	}

	rows, err := q.tx.Query(ctx,
		`SELECT sc.id, sc.uid, sc.shortlist_id, sc.candidature_id, c.uid, sc.position, sc.feedback,
		        sc.commentaire_client, sc.question_client, sc.feedback_at
		 FROM shortlist_candidats sc
		 JOIN candidatures c ON c.id = sc.candidature_id
		 WHERE sc.shortlist_id = ANY($1)
		 ORDER BY sc.shortlist_id, sc.position`,
		ids,
	)
	if err != nil {
		return wrap("list shortlist members", err)
	}
	members, err := collect(rows, scanMember)
	if err != nil {
		return wrap("scan shortlist members", err)
	}
	for _, m := range members {
		i := index[m.ShortlistID]
		lists[i].Candidats = append(lists[i].Candidats, m)
	}
	return nil
}

func (q *queries) getShortlist(ctx context.Context, where string, arg any) (*types.Shortlist, error) {
	s, err := one(scanShortlist(q.tx.QueryRow(ctx, shortlistSelect+` WHERE `+where, arg)))
	if err != nil {
		return nil, wrap("get shortlist", err)
	}
	if s == nil {
		return nil, nil
	}
	lists := []types.Shortlist{*s}
	if err := q.loadMembers(ctx, lists); err != nil {
		return nil, err
	}
	return &lists[0], nil
}

func (q *queries) CreateShortlist(ctx context.Context, s *types.Shortlist) error {
	if s.UID == uuid.Nil {
		s.UID = uuid.New()
	}
	err := q.tx.QueryRow(ctx,
		`INSERT INTO shortlists (uid, offre_id, statut)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at, updated_at, (SELECT uid FROM offres WHERE id = $2)`,
		s.UID, s.OffreID, string(s.Status),
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt, &s.OffreUID)
	if err != nil {
		return wrap("create shortlist", err)
	}
	s.Candidats = make([]types.ShortlistCandidat, 0)
	return nil
}

func (q *queries) GetShortlist(ctx context.Context, uid uuid.UUID) (*types.Shortlist, error) {
	return q.getShortlist(ctx, `s.uid = $1`, uid)
}

func (q *queries) GetShortlistByOffre(ctx context.Context, offreID int64) (*types.Shortlist, error) {
	return q.getShortlist(ctx, `s.offre_id = $1`, offreID)
}

func (q *queries) ListShortlists(ctx context.Context, f store.ShortlistFilter) ([]types.Shortlist, error) {
	var statuses []string
	for _, s := range f.Statuses {
		statuses = append(statuses, string(s))
	}
	rows, err := q.tx.Query(ctx,
		shortlistSelect+`
		 WHERE ($1::bigint IS NULL OR o.client_id = $1)
		   AND ($2::text[] IS NULL OR s.statut = ANY($2))
		 ORDER BY s.id DESC
		 LIMIT $3 OFFSET $4`,
		f.ClientID, statuses, limitArg(f.Limit), f.Offset,
	)
	if err != nil {
		return nil, wrap("list shortlists", err)
	}
	lists, err := collect(rows, scanShortlist)
	if err != nil {
		return nil, wrap("scan shortlists", err)
	}
	if err := q.loadMembers(ctx, lists); err != nil {
		return nil, err
	}
	return lists, nil
}

func (q *queries) UpdateShortlistStatus(ctx context.Context, id int64, status types.ShortlistStatus) error {
	tag, err := q.tx.Exec(ctx,
		`UPDATE shortlists SET statut = $2, updated_at = NOW() WHERE id = $1`, id, string(status))
	if err != nil {
		return wrap("update shortlist status", err)
	}
	return expectOne(tag, "shortlist", id)
}

func feedbackArg(f *types.Feedback) *string {
	if f == nil {
		return nil
	}
	s := string(*f)
	return &s
}

func (q *queries) AddShortlistCandidat(ctx context.Context, sc *types.ShortlistCandidat) error {
	if sc.UID == uuid.Nil {
		sc.UID = uuid.New()
	}
	err := q.tx.QueryRow(ctx,
		`INSERT INTO shortlist_candidats (uid, shortlist_id, candidature_id, position, feedback,
		                                  commentaire_client, question_client, feedback_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, (SELECT uid FROM candidatures WHERE id = $3)`,
		sc.UID, sc.ShortlistID, sc.CandidatureID, sc.Position, feedbackArg(sc.Feedback),
		sc.CommentaireClient, sc.QuestionClient, sc.FeedbackAt,
	).Scan(&sc.ID, &sc.CandidatureUID)
	if err != nil {
		return wrap("add shortlist member", err)
	}
	return nil
}

func (q *queries) UpdateShortlistCandidat(ctx context.Context, sc *types.ShortlistCandidat) error {
	tag, err := q.tx.Exec(ctx,
		`UPDATE shortlist_candidats SET position = $2, feedback = $3, commentaire_client = $4,
		        question_client = $5, feedback_at = $6
		 WHERE id = $1`,
		sc.ID, sc.Position, feedbackArg(sc.Feedback), sc.CommentaireClient, sc.QuestionClient, sc.FeedbackAt,
	)
	if err != nil {
		return wrap("update shortlist member", err)
	}
	return expectOne(tag, "shortlist member", sc.ID)
}
