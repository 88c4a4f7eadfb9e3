// Package facets provides the standard diamond facets: cut, loupe,
// ownership and the ERC-165 initializer.
package facets

import (
	"github.com/roach88/diamond/internal/abi"
	"github.com/roach88/diamond/internal/diamond"
	"github.com/roach88/diamond/internal/engine"
	"github.com/roach88/diamond/internal/ir"
)

// Version is the code version of every facet in this package.
const Version = "1"

// NewCut returns the cut facet. diamondCut checks ownership before it
// decodes its arguments, so a non-owner always fails NotOwner.
func NewCut() *engine.FunctionTable {
	return engine.NewFunctionTable("diamond.cut", Version).
		Handle(diamond.SigDiamondCut, func(f *engine.Frame) ([]byte, error) {
			if err := diamond.EnforceOwner(f); err != nil {
				return nil, err
			}
			var cuts []ir.FacetCut
			var initAddr ir.Address
			var calldata []byte
			if err := f.Args(&cuts, &initAddr, &calldata); err != nil {
				return nil, err
			}
			if err := diamond.ApplyCut(f, cuts, initAddr, calldata); err != nil {
				return nil, err
			}
			return abi.EncodeValues()
		})
}

// NewLoupe returns the introspection facet. Every function reads the
// registry directly.
func NewLoupe() *engine.FunctionTable {
	return engine.NewFunctionTable("diamond.loupe", Version).
		Handle(diamond.SigFacets, func(f *engine.Frame) ([]byte, error) {
			facets, err := diamond.State(f).Facets()
			if err != nil {
				return nil, err
			}
			return abi.EncodeValues(facets)
		}).
		Handle(diamond.SigFacetFunctionSelectors, func(f *engine.Frame) ([]byte, error) {
			var facet ir.Address
			if err := f.Args(&facet); err != nil {
				return nil, err
			}
			sels, err := diamond.State(f).FacetFunctionSelectors(facet)
			if err != nil {
				return nil, err
			}
			return abi.EncodeValues(sels)
		}).
		Handle(diamond.SigFacetAddresses, func(f *engine.Frame) ([]byte, error) {
			addrs, err := diamond.State(f).FacetAddresses()
			if err != nil {
				return nil, err
			}
			return abi.EncodeValues(addrs)
		}).
		Handle(diamond.SigFacetAddress, func(f *engine.Frame) ([]byte, error) {
			var sel ir.Selector
			if err := f.Args(&sel); err != nil {
				return nil, err
			}
			facet, err := diamond.State(f).FacetAddress(sel)
			if err != nil {
				return nil, err
			}
			return abi.EncodeValues(facet)
		}).
		Handle(diamond.SigSupportsInterface, func(f *engine.Frame) ([]byte, error) {
			var id ir.Selector
			if err := f.Args(&id); err != nil {
				return nil, err
			}
			ok, err := diamond.State(f).SupportsInterface(id)
			if err != nil {
				return nil, err
			}
			return abi.EncodeValues(ok)
		}).
		Handle(diamond.SigFacetSupportsSelector, func(f *engine.Frame) ([]byte, error) {
			var facet ir.Address
			var sel ir.Selector
			if err := f.Args(&facet, &sel); err != nil {
				return nil, err
			}
			routed, err := diamond.State(f).FacetAddress(sel)
			if err != nil {
				return nil, err
			}
			return abi.EncodeValues(!facet.IsZero() && routed == facet)
		})
}

// NewOwnership returns the ERC-173 ownership facet.
func NewOwnership() *engine.FunctionTable {
	return engine.NewFunctionTable("diamond.ownership", Version).
		Handle(diamond.SigOwner, func(f *engine.Frame) ([]byte, error) {
			owner, err := diamond.State(f).Owner()
			if err != nil {
				return nil, err
			}
			return abi.EncodeValues(owner)
		}).
		Handle(diamond.SigTransferOwnership, func(f *engine.Frame) ([]byte, error) {
			var next ir.Address
			if err := f.Args(&next); err != nil {
				return nil, err
			}
			if err := diamond.TransferOwnership(f, next); err != nil {
				return nil, err
			}
			return abi.EncodeValues()
		})
}

// NewInit returns the standard initializer. init() registers the ERC-165,
// cut, loupe and ERC-173 interface IDs.
func NewInit() *engine.FunctionTable {
	return engine.NewFunctionTable("diamond.init", Version).
		Handle(diamond.SigInit, func(f *engine.Frame) ([]byte, error) {
			reg := diamond.State(f)
			for _, id := range diamond.StandardInterfaces() {
				if err := reg.SetInterface(id, true); err != nil {
					return nil, err
				}
			}
			return abi.EncodeValues()
		})
}

// Standard returns bootstrap options wired with this package's facets.
func Standard(owner ir.Address, extra ...diamond.FacetModule) diamond.BootstrapOptions {
	return diamond.BootstrapOptions{
		Owner:     owner,
		Cut:       NewCut(),
		Loupe:     NewLoupe(),
		Ownership: NewOwnership(),
		Init:      NewInit(),
		Facets:    extra,
	}
}
