package server

import (
	"net/http"

	"github.com/jonathan/talent-pipeline/internal/types"
)

// handleAssign creates a candidature on behalf of a talent.
func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	offreUID, err := pathUID(r, "uid")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var req types.AssignRequest
	if err := s.bind(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	c, err := s.deps.Candidatures.Assign(r.Context(), p, offreUID, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, projectCandidature(p, *c))
}

// handleRunMatching schedules a background scoring run and returns immediately.
func (s *Server) handleRunMatching(w http.ResponseWriter, r *http.Request) {
	offreUID, err := pathUID(r, "uid")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.deps.Matching.RunAsync(r.Context(), offreUID)
	s.jsonResponse(w, http.StatusAccepted, map[string]string{
		"status":   "accepted",
		"offreUid": offreUID.String(),
	})
}

// handleListMatches lists the cached scores of an offre.
func (s *Server) handleListMatches(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	offreUID, err := pathUID(r, "uid")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	matches, err := s.deps.Matching.Matches(r.Context(), p, offreUID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if matches == nil {
		matches = []types.Match{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"matches": matches,
		"count":   len(matches),
	})
}
