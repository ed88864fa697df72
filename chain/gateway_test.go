package chain

import (
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTxFailedErrorIsAlreadyVoted(t *testing.T) {
	assert.True(t, (&TxFailedError{Reason: "Voter has already voted"}).IsAlreadyVoted())
	assert.True(t, (&TxFailedError{Reason: "ALREADY VOTED"}).IsAlreadyVoted())
	assert.False(t, (&TxFailedError{Reason: "Invalid candidate"}).IsAlreadyVoted())
	assert.False(t, (&TxFailedError{}).IsAlreadyVoted())
}

func TestIndeterminateErrorUnwraps(t *testing.T) {
	cause := errors.New("deadline exceeded")
	err := &IndeterminateError{Cause: cause}
	assert.ErrorIs(t, err, cause)
}

type rpcDataError struct {
	msg  string
	data interface{}
}

func (e *rpcDataError) Error() string          { return e.msg }
func (e *rpcDataError) ErrorData() interface{} { return e.data }

func TestRevertReasonFromErrorData(t *testing.T) {
	// ABI-encoded Error("Voter has already voted"), the way geth returns
	// revert data on eth_call and gas estimation.
	packed, err := abi.NewType("string", "", nil)
	require.NoError(t, err)
	args := abi.Arguments{{Type: packed}}
	encoded, err := args.Pack("Voter has already voted")
	require.NoError(t, err)
	data := append(hexutil.MustDecode("0x08c379a0"), encoded...)

	rpcErr := &rpcDataError{msg: "execution reverted", data: hexutil.Encode(data)}
	assert.Equal(t, "Voter has already voted", revertReason(rpcErr))
}

func TestRevertReasonFromMessage(t *testing.T) {
	assert.Equal(t, "Voter has already voted",
		revertReason(errors.New("execution reverted: Voter has already voted")))
	assert.Equal(t, "execution reverted",
		revertReason(errors.New("execution reverted")))
	assert.Equal(t, "", revertReason(errors.New("connection refused")))
	assert.Equal(t, "", revertReason(nil))
}
