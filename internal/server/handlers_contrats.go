package server

import (
	"net/http"

	"github.com/jonathan/talent-pipeline/internal/types"
)

func (s *Server) handleCreateContrat(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}

	var req types.CreateContratRequest
	if err := s.bind(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	c, err := s.deps.Contrats.Create(r.Context(), p, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, c)
}

// handleGetContrat returns the contrat with its avenants and the terms in force.
func (s *Server) handleGetContrat(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	uid, err := pathUID(r, "uid")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	d, err := s.deps.Contrats.Get(r.Context(), p, uid)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, d)
}

func (s *Server) handleUpdateContrat(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	uid, err := pathUID(r, "uid")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var req types.UpdateContratRequest
	if err := s.bind(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	c, err := s.deps.Contrats.Update(r.Context(), p, uid, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, c)
}

func (s *Server) handleDeleteContrat(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	uid, err := pathUID(r, "uid")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if err := s.deps.Contrats.Delete(r.Context(), p, uid); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleContratAction runs envoyer, signer, terminer, resilier, annuler or avenant.
func (s *Server) handleContratAction(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	uid, err := pathUID(r, "uid")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var req types.ContratActionRequest
	if err := s.bind(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	d, err := s.deps.Contrats.Action(r.Context(), p, uid, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, d)
}

func (s *Server) handleAvenantAction(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	contratUID, err := pathUID(r, "uid")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	avenantUID, err := pathUID(r, "avenantUid")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var req types.AvenantActionRequest
	if err := s.bind(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	a, err := s.deps.Contrats.AvenantAction(r.Context(), p, contratUID, avenantUID, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, a)
}
