package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/diamond/internal/ir"
)

// ExecutionError represents a generic execution failure raised by the
// environment itself rather than by module logic.
//
// Execution errors include:
//   - Resource exhaustion: the message ran out of gas
//   - Write protection: a static call attempted to write
//   - Call depth: nesting exceeded MaxCallDepth
//   - Missing implementation: code has no registered Go module
//   - Unknown method: a function table has no handler for a selector
//
// Module logic reports its own failures with typed errors of its own
// package; those pass through the engine unchanged.
type ExecutionError struct {
	// Code identifies the error category.
	Code ExecutionErrorCode

	// Message is a human-readable description.
	Message string

	// Address is the account being executed, when known.
	Address ir.Address

	// Selector is the function being executed, when known.
	Selector ir.Selector
}

// ExecutionErrorCode categorizes execution errors.
type ExecutionErrorCode string

const (
	// ErrCodeOutOfGas indicates the message exhausted its gas limit.
	ErrCodeOutOfGas ExecutionErrorCode = "OUT_OF_GAS"

	// ErrCodeWriteProtection indicates a state change inside a static call.
	ErrCodeWriteProtection ExecutionErrorCode = "WRITE_PROTECTION"

	// ErrCodeCallDepth indicates nesting beyond MaxCallDepth.
	ErrCodeCallDepth ExecutionErrorCode = "CALL_DEPTH"

	// ErrCodeNoImplementation indicates code without a registered module.
	ErrCodeNoImplementation ExecutionErrorCode = "NO_IMPLEMENTATION"

	// ErrCodeInsufficientBalance indicates a value transfer the sender
	// cannot cover.
	ErrCodeInsufficientBalance ExecutionErrorCode = "INSUFFICIENT_BALANCE"

	// ErrCodeUnknownMethod indicates a selector a function table does not
	// define.
	ErrCodeUnknownMethod ExecutionErrorCode = "UNKNOWN_METHOD"

	// ErrCodeInvalidInput indicates call data that does not decode.
	ErrCodeInvalidInput ExecutionErrorCode = "INVALID_INPUT"

	// ErrCodeAddressCollision indicates a deployment onto an address that
	// already holds different code.
	ErrCodeAddressCollision ExecutionErrorCode = "ADDRESS_COLLISION"

	// ErrCodeRevert indicates an explicit revert by module code.
	ErrCodeRevert ExecutionErrorCode = "REVERT"
)

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	if !e.Address.IsZero() {
		return fmt.Sprintf("%s: %s (address=%s)", e.Code, e.Message, e.Address)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsOutOfGas returns true if the error is a gas exhaustion error.
// Uses errors.As to handle wrapped errors.
func IsOutOfGas(err error) bool {
	return CodeOf(err) == ErrCodeOutOfGas
}

// IsWriteProtection returns true if the error is a static-call write.
func IsWriteProtection(err error) bool {
	return CodeOf(err) == ErrCodeWriteProtection
}

// CodeOf returns the execution error code in err's chain, or "" if there
// is none.
func CodeOf(err error) ExecutionErrorCode {
	var ee *ExecutionError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ""
}

// Revertf creates an explicit revert error for module code.
func Revertf(format string, args ...any) *ExecutionError {
	return &ExecutionError{
		Code:    ErrCodeRevert,
		Message: fmt.Sprintf(format, args...),
	}
}

func newOutOfGas(limit uint64) *ExecutionError {
	return &ExecutionError{
		Code:    ErrCodeOutOfGas,
		Message: fmt.Sprintf("gas limit %d exhausted", limit),
	}
}

func newWriteProtection(addr ir.Address, what string) *ExecutionError {
	return &ExecutionError{
		Code:    ErrCodeWriteProtection,
		Message: what + " inside static call",
		Address: addr,
	}
}

// fatalError marks an infrastructure failure (storage, cancellation) that
// must abort the message and surface to the caller of Execute rather than
// being reported as a reverted receipt.
type fatalError struct {
	err error
}

func (e *fatalError) Error() string { return e.err.Error() }
func (e *fatalError) Unwrap() error { return e.err }

func fatal(err error) error {
	if err == nil {
		return nil
	}
	var fe *fatalError
	if errors.As(err, &fe) {
		return err
	}
	return &fatalError{err: err}
}
