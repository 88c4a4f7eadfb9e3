package diamond

import (
	"github.com/roach88/diamond/internal/engine"
	"github.com/roach88/diamond/internal/ir"
)

// EventDiamondCut is emitted once per applied cut batch.
const EventDiamondCut = "DiamondCut"

// Cut applies a cut batch on behalf of the frame's caller, who must be
// the owner.
func Cut(f *engine.Frame, cuts []ir.FacetCut, initAddr ir.Address, calldata []byte) error {
	if err := EnforceOwner(f); err != nil {
		return err
	}
	return ApplyCut(f, cuts, initAddr, calldata)
}

// ApplyCut applies a cut batch without an owner check, emits DiamondCut
// and runs the initializer.
//
// Items apply in order and any failure returns immediately. The engine
// rolls back the whole frame on error, so a batch is applied completely
// or not at all.
func ApplyCut(f *engine.Frame, cuts []ir.FacetCut, initAddr ir.Address, calldata []byte) error {
	reg := State(f)
	if err := reg.ApplyCuts(cuts, codeChecker(f)); err != nil {
		return err
	}

	cutFacet, err := reg.FacetAddress(CutSelector)
	if err != nil {
		return err
	}
	if cutFacet.IsZero() {
		return selectorError(ErrCannotRemoveCutFunction, CutSelector, ir.Address{},
			"cut would leave diamondCut unrouted")
	}

	if err := f.Emit(EventDiamondCut, cutEventData(f.Caller(), cuts, initAddr, calldata)); err != nil {
		return err
	}
	return initialize(f, initAddr, calldata)
}

// initialize runs the optional one-shot initializer against the diamond's
// storage. Address and call data must be both present or both absent.
func initialize(f *engine.Frame, initAddr ir.Address, calldata []byte) error {
	if initAddr.IsZero() {
		if len(calldata) > 0 {
			return newError(ErrInvalidInitialization, "initializer is the zero address but call data is not empty")
		}
		return nil
	}
	if len(calldata) == 0 {
		return &Error{
			Code:    ErrInvalidInitialization,
			Message: "initializer call data is empty",
			Module:  initAddr,
		}
	}

	size, err := f.CodeSize(initAddr)
	if err != nil {
		return err
	}
	if size == 0 {
		return &Error{
			Code:    ErrInvalidInitialization,
			Message: "initializer has no code",
			Module:  initAddr,
		}
	}

	if _, err := f.DelegateCall(initAddr, calldata); err != nil {
		if engine.IsOutOfGas(err) {
			return err
		}
		return &Error{
			Code:    ErrInvalidInitialization,
			Message: "initializer failed",
			Module:  initAddr,
			Err:     err,
		}
	}
	return nil
}

func codeChecker(f *engine.Frame) CodeChecker {
	return func(addr ir.Address) (bool, error) {
		n, err := f.CodeSize(addr)
		return n > 0, err
	}
}

func cutEventData(initiator ir.Address, cuts []ir.FacetCut, initAddr ir.Address, calldata []byte) map[string]any {
	items := make([]any, len(cuts))
	for i, c := range cuts {
		sels := make([]any, len(c.FunctionSelectors))
		for j, s := range c.FunctionSelectors {
			sels[j] = s
		}
		items[i] = map[string]any{
			"facet":     c.FacetAddress,
			"action":    uint8(c.Action),
			"selectors": sels,
		}
	}
	if calldata == nil {
		calldata = []byte{}
	}
	return map[string]any{
		"initiator": initiator,
		"cuts":      items,
		"init":      initAddr,
		"calldata":  calldata,
	}
}
