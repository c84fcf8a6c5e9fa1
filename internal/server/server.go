// Package server provides the HTTP JSON API of the talent pipeline.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/jonathan/talent-pipeline/internal/candidature"
	"github.com/jonathan/talent-pipeline/internal/config"
	"github.com/jonathan/talent-pipeline/internal/contrat"
	"github.com/jonathan/talent-pipeline/internal/entretien"
	"github.com/jonathan/talent-pipeline/internal/facture"
	"github.com/jonathan/talent-pipeline/internal/matching"
	"github.com/jonathan/talent-pipeline/internal/server/middleware"
	"github.com/jonathan/talent-pipeline/internal/server/ratelimit"
	"github.com/jonathan/talent-pipeline/internal/shortlist"
	"github.com/jonathan/talent-pipeline/internal/types"
)

// RateLimiter decides whether a client may issue a request.
type RateLimiter interface {
	Allow(clientID, endpoint, method string) (bool, ratelimit.Info)
}

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the API is built on.
type Deps struct {
	Candidatures *candidature.Service
	Shortlists   *shortlist.Service
	Entretiens   *entretien.Service
	Contrats     *contrat.Service
	Factures     *facture.Service
	Matching     *matching.Runner
	Tokens       middleware.TokenValidator
	RateLimiter  RateLimiter // optional
	Health       Pinger      // optional
	Logger       *zap.Logger
}

// Server represents the HTTP server
type Server struct {
	deps       Deps
	log        *zap.Logger
	validate   *validator.Validate
	handler    http.Handler
	httpServer *http.Server
}

// New creates a new server instance
func New(cfg config.ServerConfig, deps Deps) *Server {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	s := &Server{
		deps:     deps,
		log:      log,
		validate: newValidator(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)

	// Candidatures
	s.route(mux, "POST /candidatures", s.handleApply, types.RoleTalent)
	s.route(mux, "GET /candidatures", s.handleListCandidatures)
	s.route(mux, "GET /candidatures/{uid}", s.handleGetCandidature)
	s.route(mux, "PATCH /candidatures/{uid}", s.handleCandidatureAction, types.RoleAdmin)
	s.route(mux, "DELETE /candidatures/{uid}", s.handleWithdraw, types.RoleTalent)

	// Offres
	s.route(mux, "POST /offres/{uid}/candidatures", s.handleAssign, types.RoleAdmin)
	s.route(mux, "POST /offres/{uid}/matching", s.handleRunMatching, types.RoleAdmin)
	s.route(mux, "GET /offres/{uid}/matches", s.handleListMatches, types.RoleAdmin)

	// Shortlists
	s.route(mux, "POST /shortlists", s.handleCreateShortlist, types.RoleAdmin)
	s.route(mux, "GET /shortlists", s.handleListShortlists, types.RoleAdmin, types.RoleClient)
	s.route(mux, "GET /shortlists/{uid}", s.handleGetShortlist, types.RoleAdmin, types.RoleClient)
	s.route(mux, "PATCH /shortlists/{uid}", s.handleShortlistStatus, types.RoleAdmin)
	s.route(mux, "POST /shortlists/{uid}/candidats", s.handleAddShortlistCandidat, types.RoleAdmin)
	s.route(mux, "PATCH /shortlists/{uid}/candidats/{id}", s.handleShortlistCandidatAction, types.RoleClient)

	// Entretiens
	s.route(mux, "POST /entretiens", s.handleCreateEntretien, types.RoleClient, types.RoleAdmin)
	s.route(mux, "GET /entretiens/{uid}", s.handleGetEntretien)
	s.route(mux, "PATCH /entretiens/{uid}", s.handleEntretienAction)

	// Contrats and avenants
	s.route(mux, "POST /contrats", s.handleCreateContrat, types.RoleAdmin)
	s.route(mux, "GET /contrats/{uid}", s.handleGetContrat)
	s.route(mux, "PUT /contrats/{uid}", s.handleUpdateContrat, types.RoleAdmin)
	s.route(mux, "DELETE /contrats/{uid}", s.handleDeleteContrat, types.RoleAdmin)
	s.route(mux, "PATCH /contrats/{uid}", s.handleContratAction)
	s.route(mux, "PATCH /contrats/{uid}/avenants/{avenantUid}", s.handleAvenantAction)

	// Factures
	s.route(mux, "POST /factures", s.handleCreateFacture, types.RoleAdmin)
	s.route(mux, "GET /factures", s.handleListFactures, types.RoleAdmin, types.RoleClient)
	s.route(mux, "GET /factures/{uid}", s.handleGetFacture, types.RoleAdmin, types.RoleClient)
	s.route(mux, "PUT /factures/{uid}/lignes", s.handleReplaceLignes, types.RoleAdmin)
	s.route(mux, "DELETE /factures/{uid}", s.handleDeleteFacture, types.RoleAdmin)
	s.route(mux, "PATCH /factures/{uid}", s.handleFactureAction, types.RoleAdmin)

	s.handler = s.withRateLimit(s.withLogging(s.withCORS(mux)))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// route registers an authenticated handler, restricted to roles when any are given.
func (s *Server) route(mux *http.ServeMux, pattern string, h http.HandlerFunc, roles ...types.Role) {
	var handler http.Handler = h
	if len(roles) > 0 {
		handler = middleware.RequireRole(s.errorResponse, roles...)(handler)
	}
	mux.Handle(pattern, middleware.AuthMiddleware(s.deps.Tokens, s.errorResponse)(handler))
}

// Start serves until ctx is cancelled, then shuts down gracefully and waits
// for background matching runs.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server starting", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	if s.deps.Matching != nil {
		s.deps.Matching.Wait()
	}

	s.log.Info("server stopped")
	return nil
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	if s.deps.RateLimiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, info := s.deps.RateLimiter.Allow(s.extractClientID(r), r.URL.Path, r.Method)

		s.setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, r, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
			zap.String("remote", r.RemoteAddr),
		)
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health != nil {
		if err := s.deps.Health.Ping(r.Context()); err != nil {
			s.log.Warn("health check failed", zap.Error(err))
			s.jsonResponse(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Warn("failed to encode JSON response", zap.Error(err))
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// fail maps a service error to its status code and writes it.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := HTTPStatus(err)
	if status == http.StatusInternalServerError {
		s.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	s.errorResponse(w, status, publicMessage(err, status))
}

// extractClientID extracts the client identifier from the request.
// X-Forwarded-For is ignored since it can be forged without a trusted proxy.
func (s *Server) extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetTime.Unix()))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, r *http.Request, info ratelimit.Info) {
	response := map[string]any{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
	}
	if !info.ResetTime.IsZero() {
		response["reset_at"] = info.ResetTime.Format(time.RFC3339)
	}

	if info.RetryAfter > 0 {
		seconds := int(info.RetryAfter.Round(time.Second).Seconds())
		if seconds < 1 {
			seconds = 1
		}
		response["retry_after"] = seconds
		w.Header().Set("Retry-After", fmt.Sprintf("%d", seconds))
	}

	s.log.Warn("rate limit exceeded",
		zap.String("client", s.extractClientID(r)),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("limit", info.Limit),
	)

	s.jsonResponse(w, http.StatusTooManyRequests, response)
}
