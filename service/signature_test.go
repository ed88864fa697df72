package service

import (
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signMessage(t *testing.T, message string) ([]byte, common.Address) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
	require.NoError(t, err)
	return sig, crypto.PubkeyToAddress(key.PublicKey)
}

func TestVoteMessageBindsElectionAndCandidate(t *testing.T) {
	a := VoteMessage("election-1", "candidate-1")
	b := VoteMessage("election-1", "candidate-2")
	c := VoteMessage("election-2", "candidate-1")

	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Contains(t, a, "election-1")
	assert.Contains(t, a, "candidate-1")
}

func TestVerifyAcceptsValidSignature(t *testing.T) {
	msg := VoteMessage("election-1", "candidate-1")
	sig, addr := signMessage(t, msg)

	assert.True(t, SignatureVerifier{}.Verify(addr, msg, sig))
}

func TestVerifyAcceptsLegacyRecoveryID(t *testing.T) {
	// Wallets commonly emit V as 27/28 instead of 0/1.
	msg := VoteMessage("election-1", "candidate-1")
	sig, addr := signMessage(t, msg)
	sig[crypto.RecoveryIDOffset] += 27

	assert.True(t, SignatureVerifier{}.Verify(addr, msg, sig))
}

func TestVerifyRejectsWrongSigner(t *testing.T) {
	msg := VoteMessage("election-1", "candidate-1")
	sig, _ := signMessage(t, msg)
	_, other := signMessage(t, msg)

	assert.False(t, SignatureVerifier{}.Verify(other, msg, sig))
}

func TestVerifyRejectsTamperedMessage(t *testing.T) {
	sig, addr := signMessage(t, VoteMessage("election-1", "candidate-1"))

	assert.False(t, SignatureVerifier{}.Verify(addr, VoteMessage("election-1", "candidate-2"), sig))
}

func TestVerifyRejectsMalformedSignature(t *testing.T) {
	msg := VoteMessage("election-1", "candidate-1")
	_, addr := signMessage(t, msg)

	assert.False(t, SignatureVerifier{}.Verify(addr, msg, nil))
	assert.False(t, SignatureVerifier{}.Verify(addr, msg, []byte{0x01, 0x02}))
	assert.False(t, SignatureVerifier{}.Verify(addr, msg, make([]byte, 65)))
}
