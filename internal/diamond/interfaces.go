package diamond

import (
	"github.com/roach88/diamond/internal/abi"
	"github.com/roach88/diamond/internal/ir"
)

// Function signatures of the standard facets.
const (
	SigDiamondCut             = "diamondCut((address,uint8,bytes4[])[],address,bytes)"
	SigFacets                 = "facets()"
	SigFacetFunctionSelectors = "facetFunctionSelectors(address)"
	SigFacetAddresses         = "facetAddresses()"
	SigFacetAddress           = "facetAddress(bytes4)"
	SigSupportsInterface      = "supportsInterface(bytes4)"
	SigFacetSupportsSelector  = "facetSupportsSelector(address,bytes4)"
	SigOwner                  = "owner()"
	SigTransferOwnership      = "transferOwnership(address)"
	SigInit                   = "init()"
)

// Selectors of the standard functions.
var (
	CutSelector               = abi.MustSelector(SigDiamondCut)
	FacetsSelector            = abi.MustSelector(SigFacets)
	FacetFunctionSelectorsSel = abi.MustSelector(SigFacetFunctionSelectors)
	FacetAddressesSelector    = abi.MustSelector(SigFacetAddresses)
	FacetAddressSelector      = abi.MustSelector(SigFacetAddress)
	SupportsInterfaceSelector = abi.MustSelector(SigSupportsInterface)
	OwnerSelector             = abi.MustSelector(SigOwner)
	TransferOwnershipSelector = abi.MustSelector(SigTransferOwnership)
	InitSelector              = abi.MustSelector(SigInit)
)

// ERC-165 interface IDs registered by the standard initializer.
var (
	InterfaceERC165 = SupportsInterfaceSelector
	InterfaceCut    = CutSelector
	InterfaceLoupe  = ir.InterfaceID(
		FacetsSelector,
		FacetFunctionSelectorsSel,
		FacetAddressesSelector,
		FacetAddressSelector,
	)
	InterfaceERC173 = ir.InterfaceID(OwnerSelector, TransferOwnershipSelector)
)

// StandardInterfaces lists the IDs a bootstrapped diamond supports.
func StandardInterfaces() []ir.Selector {
	return []ir.Selector{InterfaceERC165, InterfaceCut, InterfaceLoupe, InterfaceERC173}
}
