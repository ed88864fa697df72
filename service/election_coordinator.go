package service

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/likith-indpro/votereum-backend/chain"
	"github.com/likith-indpro/votereum-backend/models"
	"github.com/likith-indpro/votereum-backend/store"
)

// CandidateInput describes a candidate to register at election creation.
type CandidateInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CreateElectionRequest is the input to CreateElection.
type CreateElectionRequest struct {
	Title            string           `json:"title"`
	Description      string           `json:"description"`
	StartTime        int64            `json:"start_time"` // unix seconds
	EndTime          int64            `json:"end_time"`   // unix seconds
	AuthorityAddress string           `json:"authority_address"`
	OpenEnrollment   bool             `json:"open_enrollment"`
	Candidates       []CandidateInput `json:"candidates"`
}

// CandidateFailure reports a candidate that did not complete both halves of
// its creation. LedgerIndex is non-zero when the on-chain half succeeded.
type CandidateFailure struct {
	Name        string `json:"name"`
	LedgerIndex uint64 `json:"ledger_index,omitempty"`
	Error       string `json:"error"`
}

// CreateElectionResult is the outcome of a creation run. The operation is
// not atomic: callers must inspect Failed for partial completion.
type CreateElectionResult struct {
	Election   *models.Election   `json:"election"`
	Candidates []models.Candidate `json:"candidates"`
	Failed     []CandidateFailure `json:"failed,omitempty"`
}

// ElectionCoordinator creates elections and candidates across the ledger and
// the record store. The ledger write always comes first: a ledger failure
// leaves no off-chain trace, while an off-chain failure after a confirmed
// ledger write becomes a reconciliation task (ledgers have no rollback).
type ElectionCoordinator struct {
	store          *store.Store
	gateway        chain.Gateway
	reconciler     *Reconciler
	logger         zerolog.Logger
	now            func() time.Time
	allowPastStart bool
}

// NewElectionCoordinator creates the coordinator.
func NewElectionCoordinator(st *store.Store, gateway chain.Gateway, reconciler *Reconciler, allowPastStart bool, logger zerolog.Logger) *ElectionCoordinator {
	return &ElectionCoordinator{
		store:          st,
		gateway:        gateway,
		reconciler:     reconciler,
		logger:         logger.With().Str("component", "election_coordinator").Logger(),
		now:            time.Now,
		allowPastStart: allowPastStart,
	}
}

// CreateElection runs the two-phase creation protocol. Candidates are
// registered strictly one at a time: all their transactions are signed by
// the same admin key, and the ledger only accepts one key's transactions in
// nonce order.
func (c *ElectionCoordinator) CreateElection(ctx context.Context, req CreateElectionRequest) (*CreateElectionResult, error) {
	if err := c.validate(req); err != nil {
		return nil, err
	}

	ledgerAddr, err := c.gateway.CreateElection(ctx, req.Title, req.Description, req.StartTime, req.EndTime)
	if err != nil {
		// Nothing was persisted yet, so the failure is clean.
		return nil, classifyLedgerError(err, "election creation")
	}

	election := &models.Election{
		Title:            req.Title,
		Description:      req.Description,
		StartTime:        req.StartTime,
		EndTime:          req.EndTime,
		LedgerAddress:    ledgerAddr.Hex(),
		AuthorityAddress: req.AuthorityAddress,
		OpenEnrollment:   req.OpenEnrollment,
		Active:           true,
	}
	if err := c.store.CreateElection(election); err != nil {
		// The election now exists on the ledger with no off-chain record.
		// The ledger cannot be rolled back; queue the repair instead.
		c.logger.Error().
			Err(err).
			Str("ledger_address", election.LedgerAddress).
			Msg("election orphaned on ledger, off-chain persistence failed")
		c.reconciler.EnqueueOrphanedElection(election)
		return nil, WrapError(err, CodeUnavailable, "election created on ledger but off-chain record failed")
	}

	result := &CreateElectionResult{Election: election}
	for _, input := range req.Candidates {
		index, err := c.gateway.AddCandidate(ctx, ledgerAddr, input.Name, input.Description)
		if err != nil {
			result.Failed = append(result.Failed, CandidateFailure{Name: input.Name, Error: err.Error()})
			c.logger.Error().
				Err(err).
				Str("election_id", election.ID).
				Str("candidate", input.Name).
				Msg("candidate registration failed on ledger")
			continue
		}

		candidate := models.Candidate{
			ElectionID:  election.ID,
			Name:        input.Name,
			Description: input.Description,
			LedgerIndex: index,
		}
		if err := c.store.CreateCandidate(&candidate); err != nil {
			// The on-chain index exists; record the mismatch and move on
			// rather than blocking the remaining candidates.
			result.Failed = append(result.Failed, CandidateFailure{Name: input.Name, LedgerIndex: index, Error: err.Error()})
			c.logger.Error().
				Err(err).
				Str("election_id", election.ID).
				Str("candidate", input.Name).
				Uint64("ledger_index", index).
				Msg("candidate registered on ledger but off-chain persistence failed")
			c.reconciler.EnqueueUnrecordedCandidate(election.ID, input.Name, input.Description, index)
			continue
		}
		result.Candidates = append(result.Candidates, candidate)
	}

	c.logger.Info().
		Str("election_id", election.ID).
		Str("ledger_address", election.LedgerAddress).
		Int("candidates", len(result.Candidates)).
		Int("failed", len(result.Failed)).
		Msg("election created")
	return result, nil
}

// UpdateTiming adjusts the voting window of an election. The ledger address
// is not touchable through any update path.
func (c *ElectionCoordinator) UpdateTiming(electionID string, startUnix, endUnix int64) error {
	if startUnix >= endUnix {
		return NewError(CodeInvalidPayload, "start time must be before end time")
	}
	if err := c.store.UpdateElectionTiming(electionID, startUnix, endUnix); err != nil {
		if err == store.ErrNotFound {
			return NewError(CodeElectionNotFound, "election %s not found", electionID)
		}
		return WrapError(err, CodeUnavailable, "failed to update election timing")
	}
	return nil
}

// Deactivate retires an election. Rows are never deleted: the off-chain
// record is part of the audit trail.
func (c *ElectionCoordinator) Deactivate(electionID string) error {
	if err := c.store.DeactivateElection(electionID); err != nil {
		if err == store.ErrNotFound {
			return NewError(CodeElectionNotFound, "election %s not found", electionID)
		}
		return WrapError(err, CodeUnavailable, "failed to deactivate election")
	}
	c.logger.Info().Str("election_id", electionID).Msg("election deactivated")
	return nil
}

func (c *ElectionCoordinator) validate(req CreateElectionRequest) error {
	if req.Title == "" {
		return NewError(CodeInvalidPayload, "title is required")
	}
	if req.StartTime >= req.EndTime {
		return NewError(CodeInvalidPayload, "start time must be before end time")
	}
	if !c.allowPastStart && req.StartTime < c.now().Unix() {
		return NewError(CodeInvalidPayload, "start time is in the past")
	}
	if req.AuthorityAddress != "" && !common.IsHexAddress(req.AuthorityAddress) {
		return NewError(CodeInvalidPayload, "authority address %q is not a valid address", req.AuthorityAddress)
	}
	for _, cand := range req.Candidates {
		if cand.Name == "" {
			return NewError(CodeInvalidPayload, "candidate name is required")
		}
	}
	return nil
}

// classifyLedgerError maps gateway failures into the response taxonomy.
func classifyLedgerError(err error, operation string) error {
	var indeterminate *chain.IndeterminateError
	if asErr(err, &indeterminate) {
		return WrapError(err, CodeIndeterminate, "%s outcome unknown", operation)
	}
	var failed *chain.TxFailedError
	if asErr(err, &failed) {
		if failed.IsAlreadyVoted() {
			return WrapError(err, CodeAlreadyVoted, "ledger rejected the vote: %s", failed.Reason)
		}
		return WrapError(err, CodeTransactionFailed, "%s rejected by ledger: %s", operation, failed.Reason)
	}
	return WrapError(err, CodeTransactionFailed, "%s failed", operation)
}
