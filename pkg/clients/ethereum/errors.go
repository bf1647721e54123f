package ethereum

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/txpool"
)

type ErrorKind string

const (
	ErrorKind_NonceTooLow            ErrorKind = "nonce_too_low"
	ErrorKind_ReplacementUnderpriced ErrorKind = "replacement_underpriced"
	ErrorKind_InsufficientFunds      ErrorKind = "insufficient_funds"
	ErrorKind_Timeout                ErrorKind = "timeout"
	ErrorKind_Unknown                ErrorKind = "unknown"
)

// TxError is returned by the sender for every failed submission.
type TxError struct {
	Kind ErrorKind
	Err  error
}

func (e *TxError) Error() string {
	return fmt.Sprintf("transaction failed (%s): %v", e.Kind, e.Err)
}

func (e *TxError) Unwrap() error {
	return e.Err
}

// Retryable reports whether resubmitting with a fresh nonce may succeed.
func (e *TxError) Retryable() bool {
	return e.Kind == ErrorKind_NonceTooLow || e.Kind == ErrorKind_ReplacementUnderpriced
}

func KindOf(err error) ErrorKind {
	var txErr *TxError
	if errors.As(err, &txErr) {
		return txErr.Kind
	}
	return ErrorKind_Unknown
}

// classifyError maps node errors onto an ErrorKind. Errors that crossed the JSON-RPC
// boundary lose their identity, so the node's canonical messages are matched as well.
func classifyError(err error) ErrorKind {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorKind_Timeout
	}
	msg := strings.ToLower(err.Error())
	switch {
	case errors.Is(err, core.ErrNonceTooLow) || strings.Contains(msg, core.ErrNonceTooLow.Error()):
		return ErrorKind_NonceTooLow
	case errors.Is(err, txpool.ErrReplaceUnderpriced) || strings.Contains(msg, txpool.ErrReplaceUnderpriced.Error()):
		return ErrorKind_ReplacementUnderpriced
	case errors.Is(err, core.ErrInsufficientFunds) || strings.Contains(msg, "insufficient funds"):
		return ErrorKind_InsufficientFunds
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded"):
		return ErrorKind_Timeout
	}
	return ErrorKind_Unknown
}

func newTxError(err error) *TxError {
	return &TxError{Kind: classifyError(err), Err: err}
}
