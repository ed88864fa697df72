package service

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/likith-indpro/votereum-backend/chain"
	"github.com/likith-indpro/votereum-backend/store"
)

// fakeElection mirrors one election contract's state.
type fakeElection struct {
	candidates []chain.CandidateInfo
	voted      map[common.Address]uint64 // voter -> chosen candidate index
}

// fakeGateway is an in-process stand-in for the ledger. CastVote enforces
// one vote per address atomically, the way the contract does.
type fakeGateway struct {
	mu        sync.Mutex
	elections map[common.Address]*fakeElection
	nextAddr  int64

	addsInFlight    int
	maxAddsInFlight int

	createErr    error
	addErr       func(name string) error
	castErr      error
	confirmErr   error
	hasVotedErr  error
	castCalls    int
	confirmCalls int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		elections: make(map[common.Address]*fakeElection),
		nextAddr:  0x1000,
	}
}

func (f *fakeGateway) CreateElection(ctx context.Context, title, description string, startUnix, endUnix int64) (common.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return common.Address{}, f.createErr
	}
	f.nextAddr++
	addr := common.BigToAddress(big.NewInt(f.nextAddr))
	f.elections[addr] = &fakeElection{voted: make(map[common.Address]uint64)}
	return addr, nil
}

func (f *fakeGateway) AddCandidate(ctx context.Context, election common.Address, name, description string) (uint64, error) {
	f.mu.Lock()
	f.addsInFlight++
	if f.addsInFlight > f.maxAddsInFlight {
		f.maxAddsInFlight = f.addsInFlight
	}
	f.mu.Unlock()

	// Window for a concurrent caller to show up as overlap.
	time.Sleep(time.Millisecond)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.addsInFlight--

	if f.addErr != nil {
		if err := f.addErr(name); err != nil {
			return 0, err
		}
	}
	e, ok := f.elections[election]
	if !ok {
		return 0, errors.New("no such election contract")
	}
	index := uint64(len(e.candidates) + 1)
	e.candidates = append(e.candidates, chain.CandidateInfo{Index: index, Name: name, Description: description})
	return index, nil
}

func (f *fakeGateway) GetCandidates(ctx context.Context, election common.Address) ([]chain.CandidateInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.elections[election]
	if !ok {
		return nil, errors.New("no such election contract")
	}
	out := make([]chain.CandidateInfo, len(e.candidates))
	copy(out, e.candidates)
	return out, nil
}

func (f *fakeGateway) HasVoted(ctx context.Context, election, voter common.Address) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hasVotedErr != nil {
		return false, f.hasVotedErr
	}
	e, ok := f.elections[election]
	if !ok {
		return false, errors.New("no such election contract")
	}
	_, voted := e.voted[voter]
	return voted, nil
}

func (f *fakeGateway) CastVote(ctx context.Context, election common.Address, candidateIndex uint64, voter common.Address) (*chain.TxHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.castCalls++
	if f.castErr != nil {
		return nil, f.castErr
	}
	e, ok := f.elections[election]
	if !ok {
		return nil, errors.New("no such election contract")
	}
	if _, voted := e.voted[voter]; voted {
		return nil, &chain.TxFailedError{Hash: f.txHashLocked(), Reason: "Voter has already voted"}
	}
	if candidateIndex == 0 || candidateIndex > uint64(len(e.candidates)) {
		return nil, &chain.TxFailedError{Hash: f.txHashLocked(), Reason: "Invalid candidate"}
	}
	e.voted[voter] = candidateIndex
	e.candidates[candidateIndex-1].VoteCount++
	return &chain.TxHandle{Hash: f.txHashLocked()}, nil
}

func (f *fakeGateway) AwaitConfirmation(ctx context.Context, handle *chain.TxHandle) (*chain.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmCalls++
	if f.confirmErr != nil {
		return nil, f.confirmErr
	}
	return &chain.Receipt{TxHash: handle.Hash, BlockNumber: 42}, nil
}

func (f *fakeGateway) txHashLocked() common.Hash {
	f.nextAddr++
	return common.BigToHash(big.NewInt(f.nextAddr))
}

func (f *fakeGateway) voteCount(election common.Address) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.elections[election]
	if !ok {
		return 0
	}
	return len(e.voted)
}

// fixture wires the full service layer over an in-memory store and the
// fake gateway.
type fixture struct {
	store      *store.Store
	gateway    *fakeGateway
	reconciler *Reconciler
	gate       *EligibilityGate
	elections  *ElectionCoordinator
	votes      *VoteCoordinator
	results    *ResultsAggregator
	enrollment *EnrollmentService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st, err := store.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	gw := newFakeGateway()
	log := zerolog.Nop()

	// The reconciler is never started: tests drain it explicitly so task
	// handling stays deterministic.
	rec := NewReconciler(st, gw, time.Hour, 3, log)
	gate := NewEligibilityGate(st, gw, rec, log)

	return &fixture{
		store:      st,
		gateway:    gw,
		reconciler: rec,
		gate:       gate,
		elections:  NewElectionCoordinator(st, gw, rec, true, log),
		votes:      NewVoteCoordinator(st, gw, gate, rec, log),
		results:    NewResultsAggregator(st, gw, log),
		enrollment: NewEnrollmentService(st, log),
	}
}

// createElection sets up a confirmed election with an open voting window.
func (f *fixture) createElection(t *testing.T, openEnrollment bool, candidates ...string) *CreateElectionResult {
	t.Helper()

	inputs := make([]CandidateInput, len(candidates))
	for i, name := range candidates {
		inputs[i] = CandidateInput{Name: name}
	}
	now := time.Now().Unix()
	result, err := f.elections.CreateElection(context.Background(), CreateElectionRequest{
		Title:          "Board Election",
		StartTime:      now - 60,
		EndTime:        now + 3600,
		OpenEnrollment: openEnrollment,
		Candidates:     inputs,
	})
	require.NoError(t, err)
	require.Empty(t, result.Failed)
	return result
}
