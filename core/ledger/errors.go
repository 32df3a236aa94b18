package ledger

import (
	"fmt"

	"golang.org/x/xerrors"
)

// ErrInvalidArgument is returned when an input of a local computation is
// malformed, like a non-positive chunk size or an unparsable identifier.
var ErrInvalidArgument = xerrors.New("invalid argument")

// PrecheckError is returned when the network rejects a transaction or a query
// before processing it. The outcome is known: nothing has been applied.
type PrecheckError struct {
	Status Status
}

// Error implements error.
func (e *PrecheckError) Error() string {
	return fmt.Sprintf("precheck failed with status %v", e.Status)
}

// ReceiptError is returned when a transaction was accepted by the network but
// failed during its execution.
type ReceiptError struct {
	Status        Status
	TransactionID TransactionID
}

// Error implements error.
func (e *ReceiptError) Error() string {
	return fmt.Sprintf("receipt for transaction %v contained error status %v",
		e.TransactionID, e.Status)
}

// TimeoutError is returned when the network did not answer in time. The outcome
// of the request is unknown.
type TimeoutError struct {
	Op string
}

// Error implements error.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out", e.Op)
}

// ContractExecutionError is returned when a contract call was processed by the
// network but the contract itself reported an error.
type ContractExecutionError struct {
	Message string
}

// Error implements error.
func (e *ContractExecutionError) Error() string {
	return e.Message
}

// IsPrecheck returns the precheck error wrapped in the error, if any.
func IsPrecheck(err error) (*PrecheckError, bool) {
	var precheck *PrecheckError
	ok := xerrors.As(err, &precheck)

	return precheck, ok
}

// IsReceipt returns the receipt error wrapped in the error, if any.
func IsReceipt(err error) (*ReceiptError, bool) {
	var receipt *ReceiptError
	ok := xerrors.As(err, &receipt)

	return receipt, ok
}

// IsTimeout returns true if the error is or wraps a timeout.
func IsTimeout(err error) bool {
	var timeout *TimeoutError
	return xerrors.As(err, &timeout)
}

// IsContractExecution returns the contract execution error wrapped in the
// error, if any.
func IsContractExecution(err error) (*ContractExecutionError, bool) {
	var exec *ContractExecutionError
	ok := xerrors.As(err, &exec)

	return exec, ok
}

// IsInvalidArgument returns true if the error is or wraps an invalid argument.
func IsInvalidArgument(err error) bool {
	return xerrors.Is(err, ErrInvalidArgument)
}
