package service

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/likith-indpro/votereum-backend/models"
)

func TestCreateElectionPersistsBothHalves(t *testing.T) {
	f := newFixture(t)

	result := f.createElection(t, true, "Alice", "Bob", "Carol")

	assert.NotEmpty(t, result.Election.ID)
	assert.NotEmpty(t, result.Election.LedgerAddress)
	assert.True(t, result.Election.Active)
	require.Len(t, result.Candidates, 3)

	// Ledger indices are assigned sequentially, starting at 1.
	for i, cand := range result.Candidates {
		assert.Equal(t, uint64(i+1), cand.LedgerIndex)
		assert.Equal(t, result.Election.ID, cand.ElectionID)
	}

	stored, err := f.store.Election(result.Election.ID)
	require.NoError(t, err)
	assert.Equal(t, result.Election.LedgerAddress, stored.LedgerAddress)
}

func TestCreateElectionRegistersCandidatesOneAtATime(t *testing.T) {
	f := newFixture(t)

	f.createElection(t, true, "A", "B", "C", "D", "E")

	// All candidate transactions are signed by one key; overlapping
	// submissions would collide on the nonce.
	assert.Equal(t, 1, f.gateway.maxAddsInFlight)
}

func TestCreateElectionLedgerFailureLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	f.gateway.createErr = errors.New("rpc connection refused")

	_, err := f.elections.CreateElection(context.Background(), CreateElectionRequest{
		Title:     "Doomed",
		StartTime: time.Now().Unix(),
		EndTime:   time.Now().Add(time.Hour).Unix(),
	})
	assert.True(t, IsCode(err, CodeTransactionFailed))

	elections, lerr := f.store.Elections(false)
	require.NoError(t, lerr)
	assert.Empty(t, elections)
}

func TestCreateElectionContinuesPastFailedCandidate(t *testing.T) {
	f := newFixture(t)
	f.gateway.addErr = func(name string) error {
		if name == "Bob" {
			return errors.New("out of gas")
		}
		return nil
	}

	result, err := f.elections.CreateElection(context.Background(), CreateElectionRequest{
		Title:      "Partial",
		StartTime:  time.Now().Unix(),
		EndTime:    time.Now().Add(time.Hour).Unix(),
		Candidates: []CandidateInput{{Name: "Alice"}, {Name: "Bob"}, {Name: "Carol"}},
	})
	require.NoError(t, err)

	require.Len(t, result.Candidates, 2)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "Bob", result.Failed[0].Name)
	assert.Zero(t, result.Failed[0].LedgerIndex)
}

func TestCreateElectionValidation(t *testing.T) {
	f := newFixture(t)
	now := time.Now().Unix()

	cases := []struct {
		name string
		req  CreateElectionRequest
	}{
		{"missing title", CreateElectionRequest{StartTime: now, EndTime: now + 60}},
		{"inverted window", CreateElectionRequest{Title: "x", StartTime: now + 60, EndTime: now}},
		{"bad authority", CreateElectionRequest{Title: "x", StartTime: now, EndTime: now + 60, AuthorityAddress: "nope"}},
		{"unnamed candidate", CreateElectionRequest{Title: "x", StartTime: now, EndTime: now + 60, Candidates: []CandidateInput{{}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.elections.CreateElection(context.Background(), tc.req)
			assert.True(t, IsCode(err, CodeInvalidPayload))
		})
	}
}

func TestCreateElectionRejectsPastStartWhenDisallowed(t *testing.T) {
	f := newFixture(t)
	strict := NewElectionCoordinator(f.store, f.gateway, f.reconciler, false, zerolog.Nop())

	now := time.Now().Unix()
	_, err := strict.CreateElection(context.Background(), CreateElectionRequest{
		Title:     "Late",
		StartTime: now - 3600,
		EndTime:   now + 3600,
	})
	assert.True(t, IsCode(err, CodeInvalidPayload))
}

func TestUpdateTiming(t *testing.T) {
	f := newFixture(t)
	created := f.createElection(t, true)

	newStart := created.Election.StartTime + 600
	newEnd := created.Election.EndTime + 600
	require.NoError(t, f.elections.UpdateTiming(created.Election.ID, newStart, newEnd))

	stored, err := f.store.Election(created.Election.ID)
	require.NoError(t, err)
	assert.Equal(t, newStart, stored.StartTime)
	assert.Equal(t, newEnd, stored.EndTime)
	assert.Equal(t, created.Election.LedgerAddress, stored.LedgerAddress)

	assert.True(t, IsCode(f.elections.UpdateTiming("missing", newStart, newEnd), CodeElectionNotFound))
	assert.True(t, IsCode(f.elections.UpdateTiming(created.Election.ID, newEnd, newStart), CodeInvalidPayload))
}

func TestDeactivateKeepsRecord(t *testing.T) {
	f := newFixture(t)
	created := f.createElection(t, true, "Alice")

	require.NoError(t, f.elections.Deactivate(created.Election.ID))

	stored, err := f.store.Election(created.Election.ID)
	require.NoError(t, err)
	assert.False(t, stored.Active)

	// Candidates survive deactivation; nothing is deleted.
	candidates, err := f.store.CandidatesByElection(created.Election.ID)
	require.NoError(t, err)
	assert.Len(t, candidates, 1)

	assert.True(t, IsCode(f.elections.Deactivate("missing"), CodeElectionNotFound))
}

func TestOrphanedElectionRepair(t *testing.T) {
	f := newFixture(t)

	// An election confirmed on the ledger whose off-chain row was lost.
	orphan := &models.Election{
		ID:            "orphan-1",
		Title:         "Lost",
		StartTime:     time.Now().Unix(),
		EndTime:       time.Now().Add(time.Hour).Unix(),
		LedgerAddress: "0x00000000000000000000000000000000000000AA",
	}
	f.reconciler.EnqueueOrphanedElection(orphan)

	f.reconciler.drain(context.Background())

	stored, err := f.store.Election("orphan-1")
	require.NoError(t, err)
	assert.Equal(t, orphan.LedgerAddress, stored.LedgerAddress)
	assert.Equal(t, orphan.Title, stored.Title)
	assert.True(t, stored.Active)
}
