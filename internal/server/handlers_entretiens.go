package server

import (
	"net/http"

	"github.com/jonathan/talent-pipeline/internal/types"
)

// handleCreateEntretien proposes an interview slot for a shortlisted candidature.
func (s *Server) handleCreateEntretien(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}

	var req types.CreateEntretienRequest
	if err := s.bind(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	e, err := s.deps.Entretiens.Create(r.Context(), p, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, e)
}

// handleGetEntretien returns one interview to either party or an operator.
func (s *Server) handleGetEntretien(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	uid, err := pathUID(r, "uid")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	e, err := s.deps.Entretiens.Get(r.Context(), p, uid)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, e)
}

// handleEntretienAction applies one interview transition; the service checks which side may act.
func (s *Server) handleEntretienAction(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	uid, err := pathUID(r, "uid")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var req types.EntretienActionRequest
	if err := s.bind(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	e, err := s.deps.Entretiens.Transition(r.Context(), p, uid, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, e)
}
