package server

import (
	"net/http"

	"github.com/jonathan/talent-pipeline/internal/types"
)

func (s *Server) handleCreateFacture(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}

	var req types.CreateFactureRequest
	if err := s.bind(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	f, err := s.deps.Factures.Create(r.Context(), p, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, f)
}

// handleListFactures lists invoices; clients never see drafts.
func (s *Server) handleListFactures(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	status, err := statusQuery(r, types.FactureStatus.Valid)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	limit, offset := page(r)

	list, err := s.deps.Factures.List(r.Context(), p, status, limit, offset)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if list == nil {
		list = []types.Facture{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"factures": list,
		"count":    len(list),
		"limit":    limit,
		"offset":   offset,
	})
}

func (s *Server) handleGetFacture(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	uid, err := pathUID(r, "uid")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	f, err := s.deps.Factures.Get(r.Context(), p, uid)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, f)
}

// handleReplaceLignes swaps every line of a draft and recomputes its totals.
func (s *Server) handleReplaceLignes(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	uid, err := pathUID(r, "uid")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var req types.ReplaceLignesRequest
	if err := s.bind(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	f, err := s.deps.Factures.ReplaceLignes(r.Context(), p, uid, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, f)
}

func (s *Server) handleDeleteFacture(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	uid, err := pathUID(r, "uid")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if err := s.deps.Factures.Delete(r.Context(), p, uid); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleFactureAction runs emettre, payer, annuler or relancer.
func (s *Server) handleFactureAction(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	uid, err := pathUID(r, "uid")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var req types.FactureActionRequest
	if err := s.bind(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	f, err := s.deps.Factures.Action(r.Context(), p, uid, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, f)
}
