package diamond

import (
	"github.com/roach88/diamond/internal/engine"
	"github.com/roach88/diamond/internal/ir"
)

// EventOwnershipTransferred is emitted whenever the owner changes,
// including the initial assignment from the zero address.
const EventOwnershipTransferred = "OwnershipTransferred"

// State opens the core registry in the frame's storage context.
func State(f *engine.Frame) *Registry {
	return NewRegistry(f.Storage(StorageNamespace))
}

// EnforceOwner fails NotOwner unless the frame's caller is the owner.
func EnforceOwner(f *engine.Frame) error {
	owner, err := State(f).Owner()
	if err != nil {
		return err
	}
	if f.Caller() != owner {
		return &Error{
			Code:    ErrNotOwner,
			Message: "caller " + f.Caller().Hex() + " is not the owner",
		}
	}
	return nil
}

// TransferOwnership hands the diamond to next. Only the current owner may
// call it and next must not be the zero address.
func TransferOwnership(f *engine.Frame, next ir.Address) error {
	if err := EnforceOwner(f); err != nil {
		return err
	}
	if next.IsZero() {
		return newError(ErrInvalidNewOwner, "new owner is the zero address")
	}
	return setOwner(f, next)
}

func setOwner(f *engine.Frame, next ir.Address) error {
	reg := State(f)
	previous, err := reg.Owner()
	if err != nil {
		return err
	}
	if err := reg.SetOwner(next); err != nil {
		return err
	}
	return f.Emit(EventOwnershipTransferred, map[string]any{
		"previous": previous,
		"next":     next,
	})
}
