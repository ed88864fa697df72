package service

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnrollVoterCreatesProfileAndRecord(t *testing.T) {
	f := newFixture(t)
	created := f.createElection(t, false)
	addr := common.HexToAddress("0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B")

	record, err := f.enrollment.EnrollVoter(created.Election.ID, EnrollVoterRequest{
		VoterAddress: addr.Hex(),
		FirstName:    "Ada",
		LastName:     "Lovelace",
		Region:       "Vilnius",
		Age:          36,
	})
	require.NoError(t, err)
	assert.True(t, record.Eligible)
	assert.False(t, record.Voted)

	voter, err := f.store.Voter(addr.Hex())
	require.NoError(t, err)
	assert.Equal(t, "Ada", voter.FirstName)
	assert.True(t, voter.Verified)
	assert.NotEmpty(t, voter.VerificationHash)
}

func TestEnrollVoterNormalizesAddressCase(t *testing.T) {
	f := newFixture(t)
	created := f.createElection(t, false)

	_, err := f.enrollment.EnrollVoter(created.Election.ID, EnrollVoterRequest{
		VoterAddress: "0xab5801a7d398351b8be11c439e05c5b3259aec9b",
	})
	require.NoError(t, err)

	// Stored under the checksummed form the rest of the system uses.
	_, err = f.store.VoterRecord(common.HexToAddress("0xab5801a7d398351b8be11c439e05c5b3259aec9b").Hex(), created.Election.ID)
	assert.NoError(t, err)
}

func TestEnrollVoterRejectsDuplicate(t *testing.T) {
	f := newFixture(t)
	created := f.createElection(t, false)
	req := EnrollVoterRequest{VoterAddress: "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B"}

	_, err := f.enrollment.EnrollVoter(created.Election.ID, req)
	require.NoError(t, err)

	_, err = f.enrollment.EnrollVoter(created.Election.ID, req)
	assert.True(t, IsCode(err, CodeAlreadyEnrolled))
}

func TestEnrollVoterRejectsInactiveElection(t *testing.T) {
	f := newFixture(t)
	created := f.createElection(t, false)
	require.NoError(t, f.elections.Deactivate(created.Election.ID))

	_, err := f.enrollment.EnrollVoter(created.Election.ID, EnrollVoterRequest{
		VoterAddress: "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B",
	})
	assert.True(t, IsCode(err, CodeElectionExpired))
}

func TestEnrollVoterValidation(t *testing.T) {
	f := newFixture(t)
	created := f.createElection(t, false)

	_, err := f.enrollment.EnrollVoter(created.Election.ID, EnrollVoterRequest{VoterAddress: "nope"})
	assert.True(t, IsCode(err, CodeInvalidPayload))

	_, err = f.enrollment.EnrollVoter("missing", EnrollVoterRequest{
		VoterAddress: "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B",
	})
	assert.True(t, IsCode(err, CodeElectionNotFound))
}

func TestEnrollVoterKeepsSuppliedDocumentHash(t *testing.T) {
	f := newFixture(t)
	created := f.createElection(t, false)
	addr := "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B"

	_, err := f.enrollment.EnrollVoter(created.Election.ID, EnrollVoterRequest{
		VoterAddress: addr,
		DocumentHash: "deadbeef",
	})
	require.NoError(t, err)

	voter, err := f.store.Voter(common.HexToAddress(addr).Hex())
	require.NoError(t, err)
	assert.Equal(t, "deadbeef", voter.VerificationHash)
}
