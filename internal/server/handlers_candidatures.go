package server

import (
	"net/http"

	"github.com/jonathan/talent-pipeline/internal/candidature"
	"github.com/jonathan/talent-pipeline/internal/types"
)

// projectCandidature hides operator notes from talents and clients.
func projectCandidature(p types.Principal, c types.Candidature) types.Candidature {
	if !p.IsAdmin() {
		c.Notes = ""
	}
	return c
}

// handleApply creates the caller's candidature on a published offre.
func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}

	var req types.ApplyRequest
	if err := s.bind(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	c, err := s.deps.Candidatures.Apply(r.Context(), p, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, projectCandidature(p, *c))
}

// handleListCandidatures lists the candidatures visible to the caller.
func (s *Server) handleListCandidatures(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}

	offreUID, err := queryUID(r, "offreId")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	status, err := statusQuery(r, types.CandidatureStatus.Valid)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	limit, offset := page(r)

	list, err := s.deps.Candidatures.List(r.Context(), p, candidature.ListFilter{
		OffreUID: offreUID,
		Status:   status,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	out := make([]types.Candidature, 0, len(list))
	for _, c := range list {
		out = append(out, projectCandidature(p, c))
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"candidatures": out,
		"count":        len(out),
		"limit":        limit,
		"offset":       offset,
	})
}

// handleGetCandidature returns one candidature.
func (s *Server) handleGetCandidature(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	uid, err := pathUID(r, "uid")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	c, err := s.deps.Candidatures.Get(r.Context(), p, uid)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, projectCandidature(p, *c))
}

// handleCandidatureAction applies one named transition.
func (s *Server) handleCandidatureAction(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	uid, err := pathUID(r, "uid")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var req types.CandidatureActionRequest
	if err := s.bind(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	c, err := s.deps.Candidatures.Transition(r.Context(), p, uid, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, projectCandidature(p, *c))
}

// handleWithdraw deletes the caller's candidature while it is still unread.
func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	uid, err := pathUID(r, "uid")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if err := s.deps.Candidatures.Withdraw(r.Context(), p, uid); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
