package service

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/likith-indpro/votereum-backend/chain"
	"github.com/likith-indpro/votereum-backend/store"
)

// VoteRequest is one vote attempt. Message must be the canonical
// VoteMessage for the election and candidate; anything else is rejected so
// a signature can never authorize a different choice than it names.
type VoteRequest struct {
	ElectionID   string
	CandidateID  string
	VoterAddress string
	Message      string
	Signature    []byte
}

// VoteReceipt is returned for a confirmed vote. Reconciled is false when the
// ledger confirmed the vote but the off-chain record update failed; the vote
// stands regardless and the record converges via the reconciler.
type VoteReceipt struct {
	ElectionID   string `json:"election_id"`
	CandidateID  string `json:"candidate_id"`
	VoterAddress string `json:"voter_address"`
	TxHash       string `json:"tx_hash"`
	BlockNumber  uint64 `json:"block_number"`
	Reconciled   bool   `json:"reconciled"`
}

// VoteCoordinator runs the vote protocol: verify signature, re-check
// eligibility, check the voting window, resolve the candidate's ledger
// index, submit, await confirmation, reconcile the record store.
//
// Repeated submissions for a voter who already voted always resolve to
// ALREADY_VOTED, detected locally when possible and by the ledger otherwise,
// so at most one vote is ever counted even under client retries.
type VoteCoordinator struct {
	store      *store.Store
	gateway    chain.Gateway
	gate       *EligibilityGate
	verifier   SignatureVerifier
	reconciler *Reconciler
	logger     zerolog.Logger
	now        func() time.Time
}

// NewVoteCoordinator creates the coordinator.
func NewVoteCoordinator(st *store.Store, gateway chain.Gateway, gate *EligibilityGate, reconciler *Reconciler, logger zerolog.Logger) *VoteCoordinator {
	return &VoteCoordinator{
		store:      st,
		gateway:    gateway,
		gate:       gate,
		verifier:   SignatureVerifier{},
		reconciler: reconciler,
		logger:     logger.With().Str("component", "vote_coordinator").Logger(),
		now:        time.Now,
	}
}

// SubmitVote processes one vote attempt end to end.
func (vc *VoteCoordinator) SubmitVote(ctx context.Context, req VoteRequest) (*VoteReceipt, error) {
	if !common.IsHexAddress(req.VoterAddress) {
		return nil, NewError(CodeInvalidPayload, "voter address %q is not a valid address", req.VoterAddress)
	}
	voter := common.HexToAddress(req.VoterAddress)

	if req.Message != VoteMessage(req.ElectionID, req.CandidateID) {
		return nil, NewError(CodeInvalidPayload, "message does not bind this election and candidate")
	}

	// The signature gate runs before anything else so an unauthenticated
	// request performs zero ledger or store operations.
	if !vc.verifier.Verify(voter, req.Message, req.Signature) {
		return nil, NewError(CodeInvalidSignature, "signature does not match voter address")
	}

	// Re-check eligibility at the moment of submission. The voter may have
	// voted (in another session, or via a retried request) since the ballot
	// was loaded.
	eligibility, err := vc.gate.Check(ctx, voter, req.ElectionID)
	if err != nil {
		return nil, err
	}
	if eligibility.AlreadyVoted {
		return nil, NewError(CodeAlreadyVoted, "voter has already voted in this election")
	}
	if !eligibility.Eligible {
		return nil, NewError(CodeNotEligible, "voter is not eligible for this election")
	}

	election, err := vc.store.Election(req.ElectionID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, NewError(CodeElectionNotFound, "election %s not found", req.ElectionID)
		}
		return nil, WrapError(err, CodeUnavailable, "failed to load election")
	}
	if !election.HasLedgerAddress() {
		// Creation never completed; the election cannot accept votes.
		return nil, NewError(CodeElectionNotStarted, "election has no ledger contract yet")
	}
	now := vc.now()
	if !election.Active || now.Unix() >= election.EndTime {
		return nil, NewError(CodeElectionExpired, "election voting window has closed")
	}
	if now.Unix() < election.StartTime {
		return nil, NewError(CodeElectionNotStarted, "election voting window has not opened")
	}

	candidate, err := vc.store.Candidate(req.CandidateID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, NewError(CodeCandidateNotFound, "candidate %s not found", req.CandidateID)
		}
		return nil, WrapError(err, CodeUnavailable, "failed to load candidate")
	}
	if candidate.ElectionID != req.ElectionID {
		return nil, NewError(CodeCandidateNotFound, "candidate %s does not belong to election %s", req.CandidateID, req.ElectionID)
	}
	if candidate.LedgerIndex == 0 {
		return nil, NewError(CodeCandidateNotFound, "candidate %s has no ledger index mapping", req.CandidateID)
	}

	ledgerAddr := common.HexToAddress(election.LedgerAddress)
	handle, err := vc.gateway.CastVote(ctx, ledgerAddr, candidate.LedgerIndex, voter)
	if err != nil {
		return nil, vc.classifyVoteError(err, voter, req.ElectionID)
	}

	receipt, err := vc.gateway.AwaitConfirmation(ctx, handle)
	if err != nil {
		var indeterminate *chain.IndeterminateError
		if asErr(err, &indeterminate) {
			// The vote was submitted but its fate is unknown. Never
			// re-submit: the probe task settles it against the ledger.
			vc.logger.Warn().
				Str("voter", voter.Hex()).
				Str("election_id", req.ElectionID).
				Str("tx", handle.Hash.Hex()).
				Msg("vote confirmation timed out, outcome unknown")
			vc.reconciler.EnqueueProbeVote(normalizeAddress(voter), req.ElectionID, req.CandidateID, handle.Hash.Hex())
			return nil, WrapError(err, CodeIndeterminate, "vote submitted but not confirmed; check results before retrying")
		}
		return nil, vc.classifyVoteError(err, voter, req.ElectionID)
	}

	result := &VoteReceipt{
		ElectionID:   req.ElectionID,
		CandidateID:  req.CandidateID,
		VoterAddress: normalizeAddress(voter),
		TxHash:       receipt.TxHash.Hex(),
		BlockNumber:  receipt.BlockNumber,
		Reconciled:   true,
	}

	if err := vc.store.MarkVoted(result.VoterAddress, req.ElectionID, req.CandidateID); err != nil {
		// The ledger confirmed the vote, so the vote stands. Success is
		// never withheld because of an off-chain write failure; the record
		// converges through the reconciler.
		vc.logger.Error().
			Err(err).
			Str("voter", result.VoterAddress).
			Str("election_id", req.ElectionID).
			Msg("vote confirmed on ledger but record update failed, scheduling repair")
		vc.reconciler.EnqueueStaleVoterRecord(result.VoterAddress, req.ElectionID, req.CandidateID)
		result.Reconciled = false
	}

	vc.logger.Info().
		Str("voter", result.VoterAddress).
		Str("election_id", req.ElectionID).
		Str("candidate_id", req.CandidateID).
		Str("tx", result.TxHash).
		Msg("vote confirmed")
	return result, nil
}

// classifyVoteError maps gateway failures from the vote path. A ledger
// rejection whose reason names a prior vote is more authoritative than the
// local eligibility decision that just passed, so the cached record is
// corrected on the spot.
func (vc *VoteCoordinator) classifyVoteError(err error, voter common.Address, electionID string) error {
	var failed *chain.TxFailedError
	if asErr(err, &failed) && failed.IsAlreadyVoted() {
		if merr := vc.store.MarkVoted(normalizeAddress(voter), electionID, ""); merr != nil {
			vc.logger.Warn().Err(merr).
				Str("voter", voter.Hex()).
				Str("election_id", electionID).
				Msg("failed to converge voted flag after ledger rejection")
			vc.reconciler.EnqueueStaleVoterRecord(normalizeAddress(voter), electionID, "")
		}
		return WrapError(err, CodeAlreadyVoted, "ledger rejected the vote: %s", failed.Reason)
	}
	return classifyLedgerError(err, "vote")
}
