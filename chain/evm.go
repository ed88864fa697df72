package chain

import (
	"context"
	"math/big"
	"strings"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// EVMGateway implements Gateway against an ElectionFactory contract and the
// per-election Election contracts it deploys. All writes go through the
// admin TxSigner, which serializes them per key.
type EVMGateway struct {
	client         *ethclient.Client
	signer         *TxSigner
	factory        common.Address
	factoryABI     abi.ABI
	electionABI    abi.ABI
	retrier        *Retrier
	confirmTimeout time.Duration
	logger         zerolog.Logger
}

// NewEVMGateway dials the RPC endpoint and prepares the bound contracts.
func NewEVMGateway(
	rpcURL string,
	factory common.Address,
	signer *TxSigner,
	retryCfg *RetryConfig,
	confirmTimeout time.Duration,
	logger zerolog.Logger,
) (*EVMGateway, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to dial ledger RPC %s", rpcURL)
	}

	factoryABI, err := abi.JSON(strings.NewReader(electionFactoryABI))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse factory ABI")
	}
	electionABI, err := abi.JSON(strings.NewReader(electionABI))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse election ABI")
	}

	return &EVMGateway{
		client:         client,
		signer:         signer,
		factory:        factory,
		factoryABI:     factoryABI,
		electionABI:    electionABI,
		retrier:        NewRetrier(retryCfg, logger),
		confirmTimeout: confirmTimeout,
		logger:         logger.With().Str("component", "evm_gateway").Logger(),
	}, nil
}

// Close releases the underlying RPC connection.
func (g *EVMGateway) Close() {
	g.client.Close()
}

func (g *EVMGateway) factoryContract() *bind.BoundContract {
	return bind.NewBoundContract(g.factory, g.factoryABI, g.client, g.client, g.client)
}

func (g *EVMGateway) electionContract(addr common.Address) *bind.BoundContract {
	return bind.NewBoundContract(addr, g.electionABI, g.client, g.client, g.client)
}

// CreateElection submits the factory call and waits for confirmation, then
// extracts the deployed election address from the ElectionCreated event.
func (g *EVMGateway) CreateElection(ctx context.Context, title, description string, startUnix, endUnix int64) (common.Address, error) {
	contract := g.factoryContract()
	tx, err := g.signer.Transact(ctx, g.client, func(opts *bind.TransactOpts) (*types.Transaction, error) {
		return contract.Transact(opts, "createElection", title, description, big.NewInt(startUnix), big.NewInt(endUnix))
	})
	if err != nil {
		return common.Address{}, g.classifySubmitError(err, "createElection")
	}

	receipt, err := g.waitMined(ctx, tx)
	if err != nil {
		return common.Address{}, err
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return common.Address{}, &TxFailedError{Hash: tx.Hash(), Reason: g.replayForReason(ctx, tx, receipt.BlockNumber)}
	}

	eventID := g.factoryABI.Events["ElectionCreated"].ID
	for _, lg := range receipt.Logs {
		if len(lg.Topics) > 1 && lg.Topics[0] == eventID {
			addr := common.BytesToAddress(lg.Topics[1].Bytes())
			g.logger.Info().
				Str("election", addr.Hex()).
				Str("tx", tx.Hash().Hex()).
				Msg("election created on ledger")
			return addr, nil
		}
	}
	return common.Address{}, errors.Errorf("ElectionCreated event missing from receipt %s", tx.Hash().Hex())
}

// AddCandidate registers a candidate and returns the ledger-assigned index.
func (g *EVMGateway) AddCandidate(ctx context.Context, election common.Address, name, description string) (uint64, error) {
	contract := g.electionContract(election)
	tx, err := g.signer.Transact(ctx, g.client, func(opts *bind.TransactOpts) (*types.Transaction, error) {
		return contract.Transact(opts, "addCandidate", name, description)
	})
	if err != nil {
		return 0, g.classifySubmitError(err, "addCandidate")
	}

	receipt, err := g.waitMined(ctx, tx)
	if err != nil {
		return 0, err
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return 0, &TxFailedError{Hash: tx.Hash(), Reason: g.replayForReason(ctx, tx, receipt.BlockNumber)}
	}

	eventID := g.electionABI.Events["CandidateAdded"].ID
	for _, lg := range receipt.Logs {
		if len(lg.Topics) > 1 && lg.Topics[0] == eventID {
			return new(big.Int).SetBytes(lg.Topics[1].Bytes()).Uint64(), nil
		}
	}

	// Degraded path: the event was not in the receipt, so recover the
	// index from the contract's counter.
	count, err := g.candidatesCount(ctx, election)
	if err != nil {
		return 0, errors.Wrap(err, "candidate registered but index could not be recovered")
	}
	return count, nil
}

func (g *EVMGateway) candidatesCount(ctx context.Context, election common.Address) (uint64, error) {
	contract := g.electionContract(election)
	var count uint64
	err := g.retrier.Do(ctx, "candidatesCount", func() error {
		var out []interface{}
		if err := contract.Call(&bind.CallOpts{Context: ctx}, &out, "candidatesCount"); err != nil {
			return err
		}
		count = out[0].(*big.Int).Uint64()
		return nil
	})
	return count, err
}

// GetCandidates reads every candidate registered on the election contract.
func (g *EVMGateway) GetCandidates(ctx context.Context, election common.Address) ([]CandidateInfo, error) {
	count, err := g.candidatesCount(ctx, election)
	if err != nil {
		return nil, err
	}

	contract := g.electionContract(election)
	candidates := make([]CandidateInfo, 0, count)
	for i := uint64(1); i <= count; i++ {
		var info CandidateInfo
		err := g.retrier.Do(ctx, "getCandidate", func() error {
			var out []interface{}
			if err := contract.Call(&bind.CallOpts{Context: ctx}, &out, "getCandidate", new(big.Int).SetUint64(i)); err != nil {
				return err
			}
			info = CandidateInfo{
				Index:       out[0].(*big.Int).Uint64(),
				Name:        out[1].(string),
				Description: out[2].(string),
				VoteCount:   out[3].(*big.Int).Uint64(),
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, info)
	}
	return candidates, nil
}

// HasVoted reads the contract's voted predicate for the voter.
func (g *EVMGateway) HasVoted(ctx context.Context, election, voter common.Address) (bool, error) {
	contract := g.electionContract(election)
	var voted bool
	err := g.retrier.Do(ctx, "hasVoted", func() error {
		var out []interface{}
		if err := contract.Call(&bind.CallOpts{Context: ctx}, &out, "hasVoted", voter); err != nil {
			return err
		}
		voted = out[0].(bool)
		return nil
	})
	return voted, err
}

// CastVote submits a relayed vote and returns the pending handle without
// waiting for confirmation.
func (g *EVMGateway) CastVote(ctx context.Context, election common.Address, candidateIndex uint64, voter common.Address) (*TxHandle, error) {
	contract := g.electionContract(election)
	tx, err := g.signer.Transact(ctx, g.client, func(opts *bind.TransactOpts) (*types.Transaction, error) {
		return contract.Transact(opts, "castVote", new(big.Int).SetUint64(candidateIndex), voter)
	})
	if err != nil {
		return nil, g.classifySubmitError(err, "castVote")
	}

	g.logger.Debug().
		Str("election", election.Hex()).
		Str("voter", voter.Hex()).
		Uint64("candidate_index", candidateIndex).
		Str("tx", tx.Hash().Hex()).
		Msg("vote submitted")
	return &TxHandle{Hash: tx.Hash(), Tx: tx}, nil
}

// AwaitConfirmation waits for the transaction to be mined within the
// configured confirmation timeout.
func (g *EVMGateway) AwaitConfirmation(ctx context.Context, handle *TxHandle) (*Receipt, error) {
	if handle == nil || handle.Tx == nil {
		return nil, errors.New("handle does not reference a submitted transaction")
	}

	receipt, err := g.waitMined(ctx, handle.Tx)
	if err != nil {
		return nil, err
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return nil, &TxFailedError{Hash: handle.Hash, Reason: g.replayForReason(ctx, handle.Tx, receipt.BlockNumber)}
	}

	return &Receipt{
		TxHash:      receipt.TxHash,
		BlockNumber: receipt.BlockNumber.Uint64(),
		GasUsed:     receipt.GasUsed,
	}, nil
}

// waitMined polls for the receipt. Receipt polling is a read, so transient
// errors inside bind.WaitMined are tolerated; only the overall deadline
// turns the outcome indeterminate.
func (g *EVMGateway) waitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	wctx, cancel := context.WithTimeout(ctx, g.confirmTimeout)
	defer cancel()

	receipt, err := bind.WaitMined(wctx, g.client, tx)
	if err != nil {
		return nil, &IndeterminateError{Hash: tx.Hash(), Cause: err}
	}
	return receipt, nil
}

// classifySubmitError distinguishes a revert detected during gas estimation
// (the ledger would reject the transaction, nothing was submitted) from an
// infrastructure failure.
func (g *EVMGateway) classifySubmitError(err error, operation string) error {
	if reason := revertReason(err); reason != "" {
		return &TxFailedError{Reason: reason}
	}
	return errors.Wrapf(err, "failed to submit %s", operation)
}

// replayForReason re-executes a failed transaction as a read-only call at the
// block it was mined in, to recover the contract's revert string.
func (g *EVMGateway) replayForReason(ctx context.Context, tx *types.Transaction, blockNumber *big.Int) string {
	msg := ethereum.CallMsg{
		From:     g.signer.Address(),
		To:       tx.To(),
		Gas:      tx.Gas(),
		GasPrice: tx.GasPrice(),
		Value:    tx.Value(),
		Data:     tx.Data(),
	}
	_, err := g.client.CallContract(ctx, msg, blockNumber)
	return revertReason(err)
}

// revertReason extracts the contract revert string from an RPC error, if any.
func revertReason(err error) string {
	if err == nil {
		return ""
	}

	var dataErr interface{ ErrorData() interface{} }
	if errors.As(err, &dataErr) {
		if encoded, ok := dataErr.ErrorData().(string); ok {
			if raw, derr := hexutil.Decode(encoded); derr == nil {
				if reason, uerr := abi.UnpackRevert(raw); uerr == nil {
					return reason
				}
			}
		}
	}

	msg := err.Error()
	if i := strings.Index(msg, "execution reverted"); i >= 0 {
		reason := strings.TrimPrefix(strings.TrimSpace(strings.TrimPrefix(msg[i:], "execution reverted")), ": ")
		if reason == "" {
			return "execution reverted"
		}
		return reason
	}
	return ""
}
