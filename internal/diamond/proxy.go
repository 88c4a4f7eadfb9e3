package diamond

import (
	"github.com/roach88/diamond/internal/engine"
	"github.com/roach88/diamond/internal/ir"
)

// ProxyCode is the code identity of the diamond proxy.
var ProxyCode = []byte("module:diamond.proxy@1\nreceive()\nfallback()")

// Proxy is the diamond itself: a stable address that forwards every call
// to the facet routed for its selector.
//
// Empty call data is a plain value transfer and succeeds. Any other call
// resolves its selector in the registry and delegate-calls the facet with
// the original input, so the facet runs against the proxy's storage with
// the original caller and value. Return data and errors come back
// unchanged.
type Proxy struct{}

var (
	_ engine.Module      = Proxy{}
	_ engine.Constructor = Proxy{}
)

// Code implements engine.Module.
func (Proxy) Code() []byte {
	return ProxyCode
}

// Invoke implements engine.Module.
func (Proxy) Invoke(f *engine.Frame) ([]byte, error) {
	if len(f.Input()) == 0 {
		return nil, nil
	}
	sel := f.Selector()
	facet, err := State(f).FacetAddress(sel)
	if err != nil {
		return nil, err
	}
	if facet.IsZero() {
		return nil, selectorError(ErrFunctionNotFound, sel, ir.Address{}, "diamond has no facet for function")
	}
	return f.DelegateCall(facet, f.Input())
}

// Construct sets the owner and routes diamondCut to the cut facet.
// Constructor arguments: (address owner, address cutFacet).
func (Proxy) Construct(f *engine.Frame) error {
	var owner, cutFacet ir.Address
	if err := f.Args(&owner, &cutFacet); err != nil {
		return err
	}
	if owner.IsZero() {
		return newError(ErrInvalidNewOwner, "owner is the zero address")
	}
	if err := setOwner(f, owner); err != nil {
		return err
	}
	return ApplyCut(f, []ir.FacetCut{{
		FacetAddress:      cutFacet,
		Action:            ir.Add,
		FunctionSelectors: []ir.Selector{CutSelector},
	}}, ir.Address{}, nil)
}
