// Package chain talks to the election contracts on the ledger. Every
// mutating call is submit-then-confirm; a failure between submission and
// confirmation is surfaced as IndeterminateError, never silently retried.
package chain

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// CandidateInfo is the decoded on-chain candidate state.
type CandidateInfo struct {
	Index       uint64 // 1-based candidate id assigned by the contract
	Name        string
	Description string
	VoteCount   uint64
}

// TxHandle identifies a submitted but not yet confirmed transaction.
type TxHandle struct {
	Hash common.Hash
	Tx   *types.Transaction // nil for handles not produced by the EVM gateway
}

// Receipt is the confirmation of a mined, successful transaction.
type Receipt struct {
	TxHash      common.Hash
	BlockNumber uint64
	GasUsed     uint64
}

// Gateway exposes the election contract operations. Mutating calls either
// confirm internally (CreateElection, AddCandidate) or hand back a TxHandle
// to be confirmed separately (CastVote).
type Gateway interface {
	// CreateElection deploys a new election contract via the factory and
	// returns its address once the deployment transaction is confirmed.
	CreateElection(ctx context.Context, title, description string, startUnix, endUnix int64) (common.Address, error)

	// AddCandidate registers a candidate on the election contract and
	// returns the ledger-assigned 1-based candidate index.
	AddCandidate(ctx context.Context, election common.Address, name, description string) (uint64, error)

	// GetCandidates reads all candidates and their live vote counts.
	GetCandidates(ctx context.Context, election common.Address) ([]CandidateInfo, error)

	// HasVoted reports whether the voter already voted in the election.
	// This predicate is the ultimate source of truth for voted state.
	HasVoted(ctx context.Context, election, voter common.Address) (bool, error)

	// CastVote submits a relayed vote on behalf of the voter and returns a
	// pending handle. The ledger enforces one vote per voter address.
	CastVote(ctx context.Context, election common.Address, candidateIndex uint64, voter common.Address) (*TxHandle, error)

	// AwaitConfirmation blocks until the transaction is finalized or fails.
	// A timeout or lost connection yields IndeterminateError: the outcome is
	// unknown, not failed.
	AwaitConfirmation(ctx context.Context, handle *TxHandle) (*Receipt, error)
}

// TxFailedError reports a transaction the ledger rejected or reverted.
// Reason carries the contract's revert string when it could be recovered.
type TxFailedError struct {
	Hash   common.Hash
	Reason string
}

func (e *TxFailedError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("transaction %s reverted", e.Hash.Hex())
	}
	return fmt.Sprintf("transaction %s reverted: %s", e.Hash.Hex(), e.Reason)
}

// IsAlreadyVoted reports whether the revert reason indicates a prior vote.
func (e *TxFailedError) IsAlreadyVoted() bool {
	return strings.Contains(strings.ToLower(e.Reason), "already voted")
}

// IndeterminateError reports a submitted transaction whose confirmation
// could not be observed before the caller gave up waiting.
type IndeterminateError struct {
	Hash  common.Hash
	Cause error
}

func (e *IndeterminateError) Error() string {
	return fmt.Sprintf("outcome of transaction %s is unknown: %v", e.Hash.Hex(), e.Cause)
}

func (e *IndeterminateError) Unwrap() error {
	return e.Cause
}
