package service

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// VoteMessage returns the canonical text a voter signs to authorize a vote.
// The message binds both election and candidate so a signature can never be
// replayed against a different race or choice.
func VoteMessage(electionID, candidateID string) string {
	return fmt.Sprintf("Votereum vote\nelection: %s\ncandidate: %s", electionID, candidateID)
}

// SignatureVerifier checks that a claimed address authorized a message.
// Verification is pure and runs before any ledger-affecting action, so an
// unauthenticated request never consumes a ledger write.
type SignatureVerifier struct{}

// Verify recovers the signer of an EIP-191 personal message and compares it
// to the claimed address. The signature is the usual 65-byte [R || S || V]
// encoding wallets produce, with V of either 0/1 or 27/28.
func (SignatureVerifier) Verify(claimed common.Address, message string, signature []byte) bool {
	if len(signature) != crypto.SignatureLength {
		return false
	}

	sig := make([]byte, crypto.SignatureLength)
	copy(sig, signature)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pubKey, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return false
	}
	return crypto.PubkeyToAddress(*pubKey) == claimed
}
