package diamond

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/roach88/diamond/internal/abi"
	"github.com/roach88/diamond/internal/engine"
	"github.com/roach88/diamond/internal/ir"
)

// FacetModule is a module that can list the selectors it implements.
// *engine.FunctionTable satisfies it.
type FacetModule interface {
	engine.Module
	Selectors() []ir.Selector
}

// ProxySalt derives the deployment salt of owner's nonce-th diamond.
func ProxySalt(owner ir.Address, nonce uint64) ir.Hash {
	return ir.Keccak256([]byte("diamond:"), owner[:], binary.BigEndian.AppendUint64(nil, nonce))
}

// DeployModule deploys m with salt and returns its address. An execution
// failure of the deployment is returned as the error.
func DeployModule(ctx context.Context, e *engine.Engine, from ir.Address, m engine.Module, salt ir.Hash, args ...any) (ir.Address, error) {
	r, err := e.Deploy(ctx, engine.Deployment{From: from, Module: m, Salt: salt, Args: args})
	if err != nil {
		return ir.Address{}, err
	}
	if r.Err != nil {
		return ir.Address{}, r.Err
	}
	return r.Address, nil
}

// Deploy deploys a diamond proxy owned by owner whose diamondCut routes to
// cutFacet.
func Deploy(ctx context.Context, e *engine.Engine, owner, cutFacet ir.Address, salt ir.Hash) (ir.Address, error) {
	addr, err := DeployModule(ctx, e, owner, Proxy{}, salt, owner, cutFacet)
	if err != nil {
		return ir.Address{}, fmt.Errorf("deploy diamond: %w", err)
	}
	return addr, nil
}

// BootstrapOptions describes a standard diamond.
type BootstrapOptions struct {
	Owner ir.Address
	Nonce uint64

	Cut       engine.Module
	Loupe     FacetModule
	Ownership FacetModule

	// Init is delegate-called with init() after the first cut. Nil skips
	// initialization.
	Init engine.Module

	// Facets are business facets added with every selector they define.
	Facets []FacetModule
}

// Bootstrapped reports what Bootstrap deployed.
type Bootstrapped struct {
	Diamond  ir.Address
	CutFacet ir.Address
	Init     ir.Address
	Facets   []ir.Address // loupe, ownership, then business facets
	Receipt  *engine.Receipt
}

// Bootstrap deploys the cut facet and a proxy, then adds the loupe,
// ownership and business facets in a single cut with the initializer.
// Facets deploy at the zero salt, so repeated bootstraps share them.
func Bootstrap(ctx context.Context, e *engine.Engine, opts BootstrapOptions) (*Bootstrapped, error) {
	if opts.Cut == nil || opts.Loupe == nil || opts.Ownership == nil {
		return nil, fmt.Errorf("bootstrap: cut, loupe and ownership facets are required")
	}
	var out Bootstrapped
	var err error

	out.CutFacet, err = DeployModule(ctx, e, opts.Owner, opts.Cut, ir.Hash{})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: deploy cut facet: %w", err)
	}
	out.Diamond, err = Deploy(ctx, e, opts.Owner, out.CutFacet, ProxySalt(opts.Owner, opts.Nonce))
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	facets := append([]FacetModule{opts.Loupe, opts.Ownership}, opts.Facets...)
	cuts := make([]ir.FacetCut, 0, len(facets))
	for _, m := range facets {
		addr, err := DeployModule(ctx, e, opts.Owner, m, ir.Hash{})
		if err != nil {
			return nil, fmt.Errorf("bootstrap: deploy facet: %w", err)
		}
		out.Facets = append(out.Facets, addr)
		cuts = append(cuts, ir.FacetCut{
			FacetAddress:      addr,
			Action:            ir.Add,
			FunctionSelectors: m.Selectors(),
		})
	}

	var calldata []byte
	if opts.Init != nil {
		out.Init, err = DeployModule(ctx, e, opts.Owner, opts.Init, ir.Hash{})
		if err != nil {
			return nil, fmt.Errorf("bootstrap: deploy initializer: %w", err)
		}
		calldata = abi.MustEncodeCall(InitSelector)
	}

	out.Receipt, err = SendCut(ctx, e, opts.Owner, out.Diamond, cuts, out.Init, calldata)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	if out.Receipt.Err != nil {
		return nil, fmt.Errorf("bootstrap: cut: %w", out.Receipt.Err)
	}
	return &out, nil
}

// SendCut sends diamondCut(cuts, init, calldata) to the diamond from from.
func SendCut(ctx context.Context, e *engine.Engine, from, diamond ir.Address, cuts []ir.FacetCut, initAddr ir.Address, calldata []byte) (*engine.Receipt, error) {
	data, err := EncodeCut(cuts, initAddr, calldata)
	if err != nil {
		return nil, err
	}
	return e.Execute(ctx, engine.Message{From: from, To: diamond, Data: data})
}

// EncodeCut builds diamondCut call data.
func EncodeCut(cuts []ir.FacetCut, initAddr ir.Address, calldata []byte) ([]byte, error) {
	if calldata == nil {
		calldata = []byte{}
	}
	data, err := abi.EncodeCall(CutSelector, cuts, initAddr, calldata)
	if err != nil {
		return nil, fmt.Errorf("encode cut: %w", err)
	}
	return data, nil
}
