package domain

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrRateLimited   = errors.New("rate limited")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrSigningFailed = errors.New("signing failed")
	ErrWSDisconnect  = errors.New("websocket disconnected")
	ErrLockHeld      = errors.New("lock already held")

	// ErrMalformedRoute is returned when a route's token and fee counts do
	// not line up, or a fee does not fit in three bytes.
	ErrMalformedRoute = errors.New("malformed route")
	// ErrNoOpportunity means the protocol reports nothing to repay.
	ErrNoOpportunity = errors.New("no liquidation opportunity")
	// ErrNoYield means a simulated plan left the receiver no better off.
	ErrNoYield = errors.New("no yield")
	// ErrQuoteConvergence means the aggregator never quoted enough output
	// within the iteration bound.
	ErrQuoteConvergence = errors.New("aggregator quote did not converge")
	// ErrQuoteUnavailable means no quote could be sized at all (aggregator
	// disabled, or a zero unit price).
	ErrQuoteUnavailable = errors.New("aggregator quote unavailable")
	ErrSimulationRevert = errors.New("simulation reverted")
	ErrRelayFailure     = errors.New("private relay failure")
	ErrExecutionRevert  = errors.New("execution reverted")
)

// SimulationRevertError reports which step of a simulated batch failed.
type SimulationRevertError struct {
	Index  int
	Op     string
	Reason string
	Data   []byte
}

func (e *SimulationRevertError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = fmt.Sprintf("0x%x", e.Data)
	}
	return fmt.Sprintf("simulation reverted at step %d (%s): %s", e.Index, e.Op, reason)
}

func (e *SimulationRevertError) Unwrap() error { return ErrSimulationRevert }

// RelayError is a private submission failure at a named stage
// (sign, simulate, submit, wait).
type RelayError struct {
	Stage string
	Err   error
}

func (e *RelayError) Error() string {
	return fmt.Sprintf("relay %s: %v", e.Stage, e.Err)
}

func (e *RelayError) Unwrap() []error { return []error{ErrRelayFailure, e.Err} }

// ExecutionRevertError is a mined transaction with a failed status.
type ExecutionRevertError struct {
	TxHash common.Hash
}

func (e *ExecutionRevertError) Error() string {
	return fmt.Sprintf("transaction %s reverted", e.TxHash.Hex())
}

func (e *ExecutionRevertError) Unwrap() error { return ErrExecutionRevert }
