package server

import (
	"net/http"

	"github.com/jonathan/talent-pipeline/internal/apperr"
	"github.com/jonathan/talent-pipeline/internal/types"
)

// handleCreateShortlist creates the shortlist of an offre.
func (s *Server) handleCreateShortlist(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}

	var req types.CreateShortlistRequest
	if err := s.bind(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	sl, err := s.deps.Shortlists.Create(r.Context(), p, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, sl)
}

// handleListShortlists lists shortlists, filtered by statut.
func (s *Server) handleListShortlists(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	status, err := statusQuery(r, types.ShortlistStatus.Valid)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	limit, offset := page(r)

	list, err := s.deps.Shortlists.List(r.Context(), p, status, limit, offset)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if list == nil {
		list = []types.Shortlist{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"shortlists": list,
		"count":      len(list),
		"limit":      limit,
		"offset":     offset,
	})
}

// handleGetShortlist returns one shortlist with its members.
func (s *Server) handleGetShortlist(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	uid, err := pathUID(r, "uid")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	sl, err := s.deps.Shortlists.Get(r.Context(), p, uid)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, sl)
}

// handleShortlistStatus changes the coarse status.
func (s *Server) handleShortlistStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	uid, err := pathUID(r, "uid")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var req types.ShortlistStatusRequest
	if err := s.bind(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if !req.Statut.Valid() {
		s.fail(w, r, apperr.Validation("statut", "unknown status %q", req.Statut))
		return
	}

	sl, err := s.deps.Shortlists.SetStatus(r.Context(), p, uid, req.Statut)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, sl)
}

// handleAddShortlistCandidat appends a candidature to a shortlist.
func (s *Server) handleAddShortlistCandidat(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	uid, err := pathUID(r, "uid")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var req types.AddShortlistCandidatRequest
	if err := s.bind(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	sl, err := s.deps.Shortlists.AddCandidat(r.Context(), p, uid, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, sl)
}

// handleShortlistCandidatAction records client feedback on one shortlisted candidate.
func (s *Server) handleShortlistCandidatAction(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	uid, err := pathUID(r, "uid")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	memberUID, err := pathUID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var req types.ShortlistCandidatActionRequest
	if err := s.bind(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	member, err := s.deps.Shortlists.CandidateAction(r.Context(), p, uid, memberUID, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, member)
}
