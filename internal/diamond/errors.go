package diamond

import (
	"errors"
	"fmt"

	"github.com/roach88/diamond/internal/engine"
	"github.com/roach88/diamond/internal/ir"
)

// Error is a typed failure of the dispatch and upgrade core.
//
// Every Error aborts the whole top-level message. Generic execution
// failures such as OUT_OF_GAS are engine.ExecutionError values and are
// never converted into an Error.
type Error struct {
	// Code identifies the error kind.
	Code Code

	// Message is a human-readable description.
	Message string

	// Selector is the selector involved, when there is one.
	Selector ir.Selector

	// Module is the facet or initializer involved, when there is one.
	Module ir.Address

	// Err is the underlying cause (initializer failures).
	Err error
}

// Code categorizes diamond errors. Values match the error names used by
// the audit tooling.
type Code string

const (
	// ErrFunctionNotFound: the dispatcher has no facet for a selector.
	ErrFunctionNotFound Code = "FunctionNotFound"

	// ErrNoCutItems: a cut batch with zero items.
	ErrNoCutItems Code = "NoCutItems"

	// ErrNoSelectors: a cut item with an empty selector list.
	ErrNoSelectors Code = "NoSelectors"

	// ErrInvalidModule: Add or Replace naming the zero address or an
	// address without code.
	ErrInvalidModule Code = "InvalidModule"

	// ErrSelectorAlreadyExists: Add colliding with an existing route.
	ErrSelectorAlreadyExists Code = "SelectorAlreadyExists"

	// ErrSelectorNotFound: Replace or Remove of an unrouted selector.
	ErrSelectorNotFound Code = "SelectorNotFound"

	// ErrIdenticalModule: Replace onto the facet that already owns the
	// selector.
	ErrIdenticalModule Code = "IdenticalModule"

	// ErrInvalidRemoveModule: Remove with a non-zero facet address.
	ErrInvalidRemoveModule Code = "InvalidRemoveModule"

	// ErrInvalidInitialization: initializer address and call data not
	// both present or both absent, or the initializer failed.
	ErrInvalidInitialization Code = "InvalidInitialization"

	// ErrInvalidAction: a cut action outside Add, Replace and Remove.
	ErrInvalidAction Code = "InvalidAction"

	// ErrCannotRemoveCutFunction: a cut that would leave diamondCut
	// unrouted.
	ErrCannotRemoveCutFunction Code = "CannotRemoveCutFunction"

	// ErrNotOwner: an owner-gated function called by someone else.
	ErrNotOwner Code = "NotOwner"

	// ErrInvalidNewOwner: ownership transfer to the zero address.
	ErrInvalidNewOwner Code = "InvalidNewOwner"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Selector != (ir.Selector{}) {
		msg += fmt.Sprintf(" (selector=%s)", e.Selector)
	}
	if !e.Module.IsZero() {
		msg += fmt.Sprintf(" (module=%s)", e.Module)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the diamond error code in err's chain, or "" if none.
// The outermost Error wins, so a wrapped initializer failure reports
// InvalidInitialization rather than the initializer's own code.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// ErrorCode returns the code tooling reports for err: the diamond code
// when present, otherwise the engine's execution code, otherwise "".
func ErrorCode(err error) string {
	if c := CodeOf(err); c != "" {
		return string(c)
	}
	return string(engine.CodeOf(err))
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}

// IsNotOwner returns true if err is an authorization failure.
func IsNotOwner(err error) bool {
	return Is(err, ErrNotOwner)
}

// IsFunctionNotFound returns true if the dispatcher found no facet.
func IsFunctionNotFound(err error) bool {
	return Is(err, ErrFunctionNotFound)
}

func newError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func selectorError(code Code, sel ir.Selector, module ir.Address, format string, args ...any) *Error {
	return &Error{
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Selector: sel,
		Module:   module,
	}
}
