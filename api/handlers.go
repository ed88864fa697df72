package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/likith-indpro/votereum-backend/service"
	"github.com/likith-indpro/votereum-backend/store"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Errors []apiError `json:"errors"`
}

type dataEnvelope struct {
	Data any `json:"data"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}

func (s *Server) writeData(w http.ResponseWriter, status int, data any) {
	s.writeJSON(w, status, dataEnvelope{Data: data})
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := service.CodeOf(err)
	msg := err.Error()
	var svcErr *service.Error
	if errors.As(err, &svcErr) {
		msg = svcErr.Message
	}
	s.writeJSON(w, statusForCode(code), errorEnvelope{
		Errors: []apiError{{Code: string(code), Message: msg}},
	})
}

func (s *Server) writeBadRequest(w http.ResponseWriter, format string, args ...any) {
	s.writeError(w, service.NewError(service.CodeInvalidPayload, format, args...))
}

func statusForCode(code service.Code) int {
	switch code {
	case service.CodeInvalidPayload:
		return http.StatusBadRequest
	case service.CodeInvalidSignature:
		return http.StatusUnauthorized
	case service.CodeNotEligible:
		return http.StatusForbidden
	case service.CodeAlreadyVoted, service.CodeAlreadyEnrolled, service.CodeElectionNotStarted:
		return http.StatusConflict
	case service.CodeElectionNotFound, service.CodeCandidateNotFound:
		return http.StatusNotFound
	case service.CodeElectionExpired:
		return http.StatusGone
	case service.CodeTransactionFailed:
		return http.StatusBadGateway
	case service.CodeIndeterminate:
		return http.StatusGatewayTimeout
	case service.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeData(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateElection(w http.ResponseWriter, r *http.Request) {
	var req service.CreateElectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeBadRequest(w, "invalid request body: %v", err)
		return
	}

	result, err := s.elections.CreateElection(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeData(w, http.StatusCreated, result)
}

func (s *Server) handleListElections(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"

	elections, err := s.store.Elections(activeOnly)
	if err != nil {
		s.writeError(w, service.WrapError(err, service.CodeUnavailable, "failed to list elections"))
		return
	}
	s.writeData(w, http.StatusOK, elections)
}

func (s *Server) handleGetElection(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	election, err := s.store.Election(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, service.NewError(service.CodeElectionNotFound, "election %s not found", id))
			return
		}
		s.writeError(w, service.WrapError(err, service.CodeUnavailable, "failed to load election"))
		return
	}

	candidates, err := s.store.CandidatesByElection(id)
	if err != nil {
		s.writeError(w, service.WrapError(err, service.CodeUnavailable, "failed to load candidates"))
		return
	}

	s.writeData(w, http.StatusOK, map[string]any{
		"election":   election,
		"candidates": candidates,
	})
}

func (s *Server) handleDeactivateElection(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := s.elections.Deactivate(id); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeData(w, http.StatusOK, map[string]string{"election_id": id, "status": "deactivated"})
}

type updateTimingRequest struct {
	StartTime int64 `json:"start_time"`
	EndTime   int64 `json:"end_time"`
}

func (s *Server) handleUpdateTiming(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req updateTimingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeBadRequest(w, "invalid request body: %v", err)
		return
	}

	if err := s.elections.UpdateTiming(id, req.StartTime, req.EndTime); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeData(w, http.StatusOK, map[string]any{
		"election_id": id,
		"start_time":  req.StartTime,
		"end_time":    req.EndTime,
	})
}

func (s *Server) handleEnrollVoter(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req service.EnrollVoterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeBadRequest(w, "invalid request body: %v", err)
		return
	}

	record, err := s.enrollment.EnrollVoter(id, req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeData(w, http.StatusCreated, record)
}

func (s *Server) handleEligibility(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	voter := r.URL.Query().Get("voter")
	if !common.IsHexAddress(voter) {
		s.writeBadRequest(w, "voter must be a hex address")
		return
	}

	eligibility, err := s.gate.Check(r.Context(), common.HexToAddress(voter), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeData(w, http.StatusOK, eligibility)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	results, err := s.results.Results(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeData(w, http.StatusOK, results)
}

type voteRequest struct {
	ElectionID   string `json:"election_id"`
	CandidateID  string `json:"candidate_id"`
	VoterAddress string `json:"voter_address"`
	Message      string `json:"message"`
	Signature    string `json:"signature"` // 0x-prefixed hex
}

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	var req voteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeBadRequest(w, "invalid request body: %v", err)
		return
	}

	sig, err := hexutil.Decode(req.Signature)
	if err != nil {
		s.writeBadRequest(w, "signature must be 0x-prefixed hex: %v", err)
		return
	}

	receipt, err := s.votes.SubmitVote(r.Context(), service.VoteRequest{
		ElectionID:   req.ElectionID,
		CandidateID:  req.CandidateID,
		VoterAddress: req.VoterAddress,
		Message:      req.Message,
		Signature:    sig,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeData(w, http.StatusOK, receipt)
}
