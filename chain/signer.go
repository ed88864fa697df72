package chain

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// NonceSource supplies the pending nonce for an address.
type NonceSource interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
}

// TxSigner serializes all transactions signed with one key. The ledger only
// accepts transactions from a key in increasing nonce order, so two writes
// from the same key must never be in flight concurrently.
type TxSigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int

	mu        sync.Mutex
	nonce     uint64
	nonceInit bool
}

// NewTxSigner builds a signer from a hex-encoded private key.
func NewTxSigner(hexKey string, chainID int64) (*TxSigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse signing key")
	}
	return &TxSigner{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		chainID: big.NewInt(chainID),
	}, nil
}

// Address returns the account this signer controls.
func (s *TxSigner) Address() common.Address {
	return s.address
}

// Transact runs submit with exclusive use of the key's nonce sequence.
// The nonce is fetched from the backend on first use and tracked locally
// afterwards; any submission error invalidates the local counter so the
// next transaction re-syncs with the pending pool.
func (s *TxSigner) Transact(
	ctx context.Context,
	backend NonceSource,
	submit func(opts *bind.TransactOpts) (*types.Transaction, error),
) (*types.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.nonceInit {
		nonce, err := backend.PendingNonceAt(ctx, s.address)
		if err != nil {
			return nil, errors.Wrap(err, "failed to fetch pending nonce")
		}
		s.nonce = nonce
		s.nonceInit = true
	}

	opts, err := bind.NewKeyedTransactorWithChainID(s.key, s.chainID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build transactor")
	}
	opts.Context = ctx
	opts.Nonce = new(big.Int).SetUint64(s.nonce)

	tx, err := submit(opts)
	if err != nil {
		s.nonceInit = false
		return nil, err
	}

	s.nonce++
	return tx, nil
}
