// Package api exposes the coordination services over HTTP with JSON bodies.
// Successful responses are wrapped in a {"data": ...} envelope, failures in
// {"errors": [{"code", "message"}]} using the service error taxonomy.
package api

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/likith-indpro/votereum-backend/service"
	"github.com/likith-indpro/votereum-backend/store"
)

// Server wires the coordination services to HTTP routes.
type Server struct {
	logger     zerolog.Logger
	server     *http.Server
	store      *store.Store
	elections  *service.ElectionCoordinator
	votes      *service.VoteCoordinator
	gate       *service.EligibilityGate
	results    *service.ResultsAggregator
	enrollment *service.EnrollmentService
}

// NewServer creates the HTTP server listening on the given port.
func NewServer(
	port int,
	st *store.Store,
	elections *service.ElectionCoordinator,
	votes *service.VoteCoordinator,
	gate *service.EligibilityGate,
	results *service.ResultsAggregator,
	enrollment *service.EnrollmentService,
	logger zerolog.Logger,
) *Server {
	s := &Server{
		logger:     logger.With().Str("component", "api").Logger(),
		store:      st,
		elections:  elections,
		votes:      votes,
		gate:       gate,
		results:    results,
		enrollment: enrollment,
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("POST /api/elections", s.handleCreateElection)
	mux.HandleFunc("GET /api/elections", s.handleListElections)
	mux.HandleFunc("GET /api/elections/{id}", s.handleGetElection)
	mux.HandleFunc("POST /api/elections/{id}/deactivate", s.handleDeactivateElection)
	mux.HandleFunc("PUT /api/elections/{id}/timing", s.handleUpdateTiming)
	mux.HandleFunc("POST /api/elections/{id}/voters", s.handleEnrollVoter)
	mux.HandleFunc("GET /api/elections/{id}/eligibility", s.handleEligibility)
	mux.HandleFunc("GET /api/elections/{id}/results", s.handleResults)

	mux.HandleFunc("POST /api/vote", s.handleVote)

	return mux
}

// Start binds the listener and serves in the background. Bind failures are
// reported synchronously so the caller can abort startup.
func (s *Server) Start() error {
	startupCh := make(chan error, 1)

	go func() {
		ln, err := net.Listen("tcp", s.server.Addr)
		if err != nil {
			startupCh <- fmt.Errorf("failed to bind to %s: %w", s.server.Addr, err)
			return
		}
		startupCh <- nil

		serveErr := s.server.Serve(ln)
		if serveErr != nil && serveErr != http.ErrServerClosed {
			s.logger.Error().Err(serveErr).Msg("api server error")
			return
		}
		s.logger.Info().Msg("api server stopped")
	}()

	select {
	case err := <-startupCh:
		if err == nil {
			s.logger.Info().Str("addr", s.server.Addr).Msg("api server listening")
		}
		return err
	case <-time.After(5 * time.Second):
		return fmt.Errorf("timed out waiting for api server to bind")
	}
}

// Stop shuts the server down immediately.
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}
	return s.server.Close()
}
