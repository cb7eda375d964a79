package rpc

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	gethRpc "github.com/ethereum/go-ethereum/rpc"
)

var (
	// ErrBlockNotFound means the slot was skipped by the leader or is not
	// available; it is an expected outcome, not a failure.
	ErrBlockNotFound = errors.New("block not found")
	// ErrPermanent marks errors that will not go away by retrying.
	ErrPermanent = errors.New("permanent rpc error")
)

type ErrorKind string

const (
	ErrorKindNotFound  ErrorKind = "not_found"
	ErrorKindTransient ErrorKind = "transient"
	ErrorKindPermanent ErrorKind = "permanent"
)

// Solana JSON-RPC server error codes.
const (
	CodeBlockCleanedUp                  = -32001
	CodeSendTransactionPreflight        = -32002
	CodeTransactionSignatureVerify      = -32003
	CodeBlockNotAvailable               = -32004
	CodeNodeUnhealthy                   = -32005
	CodeSlotSkipped                     = -32007
	CodeLongTermStorageSlotSkipped      = -32009
	CodeKeyExcludedFromSecondaryIndex   = -32010
	CodeScanError                       = -32012
	CodeTransactionSignatureLenMismatch = -32013
	CodeBlockStatusNotAvailableYet      = -32014
	CodeUnsupportedTransactionVersion   = -32015
	CodeMinContextSlotNotReached        = -32016
	CodeInvalidParams                   = -32602
)

var notFoundCodes = map[int]struct{}{
	CodeSlotSkipped:                {},
	CodeLongTermStorageSlotSkipped: {},
}

var permanentCodes = map[int]struct{}{
	CodeKeyExcludedFromSecondaryIndex:   {},
	CodeTransactionSignatureLenMismatch: {},
	CodeUnsupportedTransactionVersion:   {},
}

// CodedError is a JSON-RPC error carrying its numeric code. It satisfies
// go-ethereum's rpc.Error so both come through the same classification.
type CodedError struct {
	Code    int
	Message string
}

func (e *CodedError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func (e *CodedError) ErrorCode() int {
	return e.Code
}

// ErrorCode extracts the JSON-RPC code or HTTP status of err, 0 when unknown.
func ErrorCode(err error) int {
	var rpcErr gethRpc.Error
	if errors.As(err, &rpcErr) {
		return rpcErr.ErrorCode()
	}
	var httpErr gethRpc.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}

// Classify maps an error returned by the RPC client to the action the
// caller should take. Unknown errors are transient.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrBlockNotFound):
		return ErrorKindNotFound
	case errors.Is(err, ErrPermanent):
		return ErrorKindPermanent
	case errors.Is(err, context.Canceled):
		return ErrorKindPermanent
	}

	var rpcErr gethRpc.Error
	if errors.As(err, &rpcErr) {
		code := rpcErr.ErrorCode()
		if _, ok := notFoundCodes[code]; ok {
			return ErrorKindNotFound
		}
		if _, ok := permanentCodes[code]; ok {
			return ErrorKindPermanent
		}
		return ErrorKindTransient
	}

	var httpErr gethRpc.HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= 500 {
			return ErrorKindTransient
		}
		if httpErr.StatusCode >= 400 {
			return ErrorKindPermanent
		}
	}
	return ErrorKindTransient
}
