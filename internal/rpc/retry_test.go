package rpc_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/JeroniMan/solana-indexer/internal/rpc"
	"github.com/JeroniMan/solana-indexer/test/mocks"
	gethRpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

var fastPolicy = rpc.RetryPolicy{
	MaxAttempts:    5,
	InitialBackoff: time.Millisecond,
	MaxBackoff:     4 * time.Millisecond,
}

func TestFetchBlock_Success(t *testing.T) {
	mockRPC := mocks.NewMockIRPCClient(t)
	mockRPC.EXPECT().GetBlock(mock.Anything, uint64(100)).Return(json.RawMessage(`{"blockhash":"a"}`), nil).Once()

	result := rpc.FetchBlock(context.Background(), mockRPC, 100, fastPolicy)

	assert.Equal(t, rpc.FetchSuccess, result.Status)
	assert.Equal(t, 1, result.Attempts)
	assert.JSONEq(t, `{"blockhash":"a"}`, string(result.Block))
}

func TestFetchBlock_SkippedSlot(t *testing.T) {
	mockRPC := mocks.NewMockIRPCClient(t)
	mockRPC.EXPECT().GetBlock(mock.Anything, uint64(7)).
		Return(nil, &rpc.CodedError{Code: rpc.CodeSlotSkipped, Message: "Slot 7 was skipped"}).Once()

	result := rpc.FetchBlock(context.Background(), mockRPC, 7, fastPolicy)

	assert.Equal(t, rpc.FetchSkippedNotFound, result.Status)
	assert.Equal(t, rpc.CodeSlotSkipped, result.Code)
	assert.Equal(t, 1, result.Attempts)
}

func TestFetchBlock_TransientThenSuccess(t *testing.T) {
	mockRPC := mocks.NewMockIRPCClient(t)
	mockRPC.EXPECT().GetBlock(mock.Anything, uint64(8)).
		Return(nil, &rpc.CodedError{Code: rpc.CodeBlockNotAvailable, Message: "not available"}).Twice()
	mockRPC.EXPECT().GetBlock(mock.Anything, uint64(8)).Return(json.RawMessage(`{}`), nil).Once()

	result := rpc.FetchBlock(context.Background(), mockRPC, 8, fastPolicy)

	assert.Equal(t, rpc.FetchSuccess, result.Status)
	assert.Equal(t, 3, result.Attempts)
}

func TestFetchBlock_FailsAfterMaxAttempts(t *testing.T) {
	mockRPC := mocks.NewMockIRPCClient(t)
	mockRPC.EXPECT().GetBlock(mock.Anything, uint64(9)).Return(nil, errors.New("connection reset")).Times(5)

	result := rpc.FetchBlock(context.Background(), mockRPC, 9, fastPolicy)

	assert.Equal(t, rpc.FetchFailedAfterRetries, result.Status)
	assert.Equal(t, 5, result.Attempts)
	assert.Error(t, result.Err)
}

func TestFetchBlock_PermanentErrorIsNotRetried(t *testing.T) {
	mockRPC := mocks.NewMockIRPCClient(t)
	mockRPC.EXPECT().GetBlock(mock.Anything, uint64(10)).
		Return(nil, &rpc.CodedError{Code: rpc.CodeUnsupportedTransactionVersion, Message: "unsupported"}).Once()

	result := rpc.FetchBlock(context.Background(), mockRPC, 10, fastPolicy)

	assert.Equal(t, rpc.FetchFailedAfterRetries, result.Status)
	assert.Equal(t, 1, result.Attempts)
}

func TestFetchBlock_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	mockRPC := mocks.NewMockIRPCClient(t)
	mockRPC.EXPECT().GetBlock(mock.Anything, uint64(11)).
		Run(func(context.Context, uint64) { cancel() }).
		Return(nil, errors.New("timeout")).Once()

	result := rpc.FetchBlock(ctx, mockRPC, 11, rpc.RetryPolicy{MaxAttempts: 5, InitialBackoff: time.Hour})

	assert.Equal(t, rpc.FetchFailedAfterRetries, result.Status)
	assert.ErrorIs(t, result.Err, context.Canceled)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want rpc.ErrorKind
	}{
		{"sentinel not found", fmt.Errorf("slot 1: %w", rpc.ErrBlockNotFound), rpc.ErrorKindNotFound},
		{"long term storage skipped", &rpc.CodedError{Code: rpc.CodeLongTermStorageSlotSkipped}, rpc.ErrorKindNotFound},
		{"node unhealthy", &rpc.CodedError{Code: rpc.CodeNodeUnhealthy}, rpc.ErrorKindTransient},
		{"min context slot", &rpc.CodedError{Code: rpc.CodeMinContextSlotNotReached}, rpc.ErrorKindTransient},
		{"signature len mismatch", &rpc.CodedError{Code: rpc.CodeTransactionSignatureLenMismatch}, rpc.ErrorKindPermanent},
		{"rate limited", gethRpc.HTTPError{StatusCode: 429, Status: "429 Too Many Requests"}, rpc.ErrorKindTransient},
		{"bad gateway", gethRpc.HTTPError{StatusCode: 502}, rpc.ErrorKindTransient},
		{"forbidden", gethRpc.HTTPError{StatusCode: 403}, rpc.ErrorKindPermanent},
		{"unknown", errors.New("EOF"), rpc.ErrorKindTransient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rpc.Classify(tt.err))
		})
	}
}

func TestGetBlockParams(t *testing.T) {
	params := rpc.GetBlockParams(42, "finalized")
	encoded, err := json.Marshal(params)
	assert.NoError(t, err)
	assert.JSONEq(t,
		`[42,{"encoding":"jsonParsed","maxSupportedTransactionVersion":0,"rewards":true,"transactionDetails":"full","commitment":"finalized"}]`,
		string(encoded))
}
