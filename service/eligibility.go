package service

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/likith-indpro/votereum-backend/chain"
	"github.com/likith-indpro/votereum-backend/store"
)

// Eligibility is the answer to "may this voter vote in this election".
type Eligibility struct {
	Eligible     bool `json:"eligible"`
	AlreadyVoted bool `json:"voted"`
}

// EligibilityGate decides whether a vote attempt may proceed. The record
// store answers eligibility; the ledger's hasVoted predicate overrides the
// cached voted flag, never the other way around. The gate is consulted both
// when a voter loads a ballot and again at the moment of submission, which
// closes the gap between checking and voting.
type EligibilityGate struct {
	store      *store.Store
	gateway    chain.Gateway
	reconciler *Reconciler
	logger     zerolog.Logger
}

// NewEligibilityGate creates the gate.
func NewEligibilityGate(st *store.Store, gateway chain.Gateway, reconciler *Reconciler, logger zerolog.Logger) *EligibilityGate {
	return &EligibilityGate{
		store:      st,
		gateway:    gateway,
		reconciler: reconciler,
		logger:     logger.With().Str("component", "eligibility_gate").Logger(),
	}
}

// Check evaluates eligibility for a (voter, election) pair. A failed record
// lookup makes the voter not eligible and returns a transient error; an
// infrastructure failure must never silently become a permissive decision.
func (g *EligibilityGate) Check(ctx context.Context, voter common.Address, electionID string) (Eligibility, error) {
	election, err := g.store.Election(electionID)
	if err != nil {
		if err == store.ErrNotFound {
			return Eligibility{}, NewError(CodeElectionNotFound, "election %s not found", electionID)
		}
		return Eligibility{}, WrapError(err, CodeUnavailable, "failed to load election %s", electionID)
	}

	result := Eligibility{}
	record, err := g.store.VoterRecord(normalizeAddress(voter), electionID)
	switch {
	case err == store.ErrNotFound:
		// No enrollment row. Only open-enrollment elections admit unknown
		// voters; everyone else must have been enrolled first.
		result.Eligible = election.OpenEnrollment
	case err != nil:
		return Eligibility{}, WrapError(err, CodeUnavailable, "failed to load voter record")
	default:
		result.Eligible = record.Eligible
		result.AlreadyVoted = record.Voted
	}

	// Confirm a cached "not voted" against the ledger. A cached "voted"
	// needs no confirmation: the flag is monotonic.
	if !result.AlreadyVoted && election.HasLedgerAddress() {
		voted, err := g.gateway.HasVoted(ctx, common.HexToAddress(election.LedgerAddress), voter)
		if err != nil {
			return Eligibility{}, WrapError(err, CodeUnavailable, "failed to confirm voted state with ledger")
		}
		if voted {
			result.AlreadyVoted = true
			g.logger.Warn().
				Str("voter", voter.Hex()).
				Str("election_id", electionID).
				Msg("ledger reports voted but cached record does not, scheduling repair")
			g.reconciler.EnqueueStaleVoterRecord(normalizeAddress(voter), electionID, "")
		}
	}

	return result, nil
}

// normalizeAddress is the canonical form voter addresses are stored under.
func normalizeAddress(addr common.Address) string {
	return addr.Hex()
}
