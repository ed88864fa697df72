package service

import (
	"context"
	"math"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/likith-indpro/votereum-backend/chain"
	"github.com/likith-indpro/votereum-backend/models"
	"github.com/likith-indpro/votereum-backend/store"
)

// CandidateResult is one row of an election's results.
type CandidateResult struct {
	CandidateID string  `json:"candidate_id,omitempty"`
	LedgerIndex uint64  `json:"ledger_index"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	VoteCount   uint64  `json:"vote_count"`
	Percentage  float64 `json:"percentage"`
}

// ResultsAggregator merges live ledger tallies with off-chain candidate
// metadata. Tallies are recomputed from the ledger on every call and never
// cached: the ledger is the source of truth and a stale copy would
// misrepresent an immutable audit record.
type ResultsAggregator struct {
	store   *store.Store
	gateway chain.Gateway
	logger  zerolog.Logger
}

// NewResultsAggregator creates the aggregator.
func NewResultsAggregator(st *store.Store, gateway chain.Gateway, logger zerolog.Logger) *ResultsAggregator {
	return &ResultsAggregator{
		store:   st,
		gateway: gateway,
		logger:  logger.With().Str("component", "results_aggregator").Logger(),
	}
}

// Results returns the election's tallies ordered by vote count descending,
// ties broken by candidate id.
func (ra *ResultsAggregator) Results(ctx context.Context, electionID string) ([]CandidateResult, error) {
	election, err := ra.store.Election(electionID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, NewError(CodeElectionNotFound, "election %s not found", electionID)
		}
		return nil, WrapError(err, CodeUnavailable, "failed to load election")
	}
	if !election.HasLedgerAddress() {
		return nil, NewError(CodeElectionNotStarted, "election has no ledger contract yet")
	}

	onChain, err := ra.gateway.GetCandidates(ctx, common.HexToAddress(election.LedgerAddress))
	if err != nil {
		return nil, WrapError(err, CodeUnavailable, "failed to read tallies from ledger")
	}
	offChain, err := ra.store.CandidatesByElection(electionID)
	if err != nil {
		return nil, WrapError(err, CodeUnavailable, "failed to load candidate metadata")
	}

	byIndex := make(map[uint64]*models.Candidate, len(offChain))
	byName := make(map[string]*models.Candidate, len(offChain))
	for i := range offChain {
		cand := &offChain[i]
		if cand.LedgerIndex != 0 {
			byIndex[cand.LedgerIndex] = cand
		}
		if _, dup := byName[cand.Name]; !dup {
			byName[cand.Name] = cand
		}
	}

	var total uint64
	for _, info := range onChain {
		total += info.VoteCount
	}

	results := make([]CandidateResult, 0, len(onChain))
	for _, info := range onChain {
		row := CandidateResult{
			LedgerIndex: info.Index,
			Name:        info.Name,
			Description: info.Description,
			VoteCount:   info.VoteCount,
		}

		// The stored ledger-index mapping is the primary join; matching by
		// name is a degraded fallback that breaks on duplicate names.
		if cand, ok := byIndex[info.Index]; ok {
			row.CandidateID = cand.ID
			row.Name = cand.Name
			row.Description = cand.Description
		} else if cand, ok := byName[info.Name]; ok {
			ra.logger.Warn().
				Str("election_id", electionID).
				Str("candidate", info.Name).
				Uint64("ledger_index", info.Index).
				Msg("ledger index mapping missing, joined candidate by name")
			row.CandidateID = cand.ID
			row.Description = cand.Description
		}

		if total > 0 {
			row.Percentage = math.Round(float64(info.VoteCount)/float64(total)*10000) / 100
		}
		results = append(results, row)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].VoteCount != results[j].VoteCount {
			return results[i].VoteCount > results[j].VoteCount
		}
		if results[i].CandidateID != results[j].CandidateID {
			return results[i].CandidateID < results[j].CandidateID
		}
		return results[i].LedgerIndex < results[j].LedgerIndex
	})
	return results, nil
}
