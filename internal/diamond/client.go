package diamond

import (
	"context"
	"fmt"

	"github.com/roach88/diamond/internal/abi"
	"github.com/roach88/diamond/internal/engine"
	"github.com/roach88/diamond/internal/ir"
)

// Client sends loupe and ownership messages to a diamond through an
// engine. Reads are queries: they go through the proxy and facets like
// any other call, but their effects are discarded.
type Client struct {
	Engine  *engine.Engine
	Diamond ir.Address
	From    ir.Address

	// Serialized sends through the engine's run loop (Submit and
	// SubmitQuery). Set it when Run is serving other goroutines.
	Serialized bool
}

// NewClient returns a client for diamond that sends as from.
func NewClient(e *engine.Engine, diamond, from ir.Address) *Client {
	return &Client{Engine: e, Diamond: diamond, From: from}
}

func (c *Client) query(ctx context.Context, sel ir.Selector, out []any, args ...any) error {
	data, err := abi.EncodeCall(sel, args...)
	if err != nil {
		return err
	}
	r, err := c.send(ctx, engine.Message{From: c.From, To: c.Diamond, Data: data}, true)
	if err != nil {
		return err
	}
	if r.Err != nil {
		return r.Err
	}
	if err := abi.DecodeValues(r.Return, out...); err != nil {
		return fmt.Errorf("decode %s result: %w", sel, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, msg engine.Message, static bool) (*engine.Receipt, error) {
	switch {
	case c.Serialized && static:
		return c.Engine.SubmitQuery(ctx, msg)
	case c.Serialized:
		return c.Engine.Submit(ctx, msg)
	case static:
		return c.Engine.Query(ctx, msg)
	default:
		return c.Engine.Execute(ctx, msg)
	}
}

// Facets calls facets().
func (c *Client) Facets(ctx context.Context) ([]ir.Facet, error) {
	var out []ir.Facet
	err := c.query(ctx, FacetsSelector, []any{&out})
	return out, err
}

// FacetFunctionSelectors calls facetFunctionSelectors(facet).
func (c *Client) FacetFunctionSelectors(ctx context.Context, facet ir.Address) ([]ir.Selector, error) {
	var out []ir.Selector
	err := c.query(ctx, FacetFunctionSelectorsSel, []any{&out}, facet)
	return out, err
}

// FacetAddresses calls facetAddresses().
func (c *Client) FacetAddresses(ctx context.Context) ([]ir.Address, error) {
	var out []ir.Address
	err := c.query(ctx, FacetAddressesSelector, []any{&out})
	return out, err
}

// FacetAddress calls facetAddress(sel). The zero address means unrouted.
func (c *Client) FacetAddress(ctx context.Context, sel ir.Selector) (ir.Address, error) {
	var out ir.Address
	err := c.query(ctx, FacetAddressSelector, []any{&out}, sel)
	return out, err
}

// SupportsInterface calls supportsInterface(id).
func (c *Client) SupportsInterface(ctx context.Context, id ir.Selector) (bool, error) {
	var out bool
	err := c.query(ctx, SupportsInterfaceSelector, []any{&out}, id)
	return out, err
}

// Owner calls owner().
func (c *Client) Owner(ctx context.Context) (ir.Address, error) {
	var out ir.Address
	err := c.query(ctx, OwnerSelector, []any{&out})
	return out, err
}

// TransferOwnership sends transferOwnership(next) from the client's sender.
func (c *Client) TransferOwnership(ctx context.Context, next ir.Address) (*engine.Receipt, error) {
	data, err := abi.EncodeCall(TransferOwnershipSelector, next)
	if err != nil {
		return nil, err
	}
	return c.send(ctx, engine.Message{From: c.From, To: c.Diamond, Data: data}, false)
}

// Cut sends diamondCut from the client's sender.
func (c *Client) Cut(ctx context.Context, cuts []ir.FacetCut, initAddr ir.Address, calldata []byte) (*engine.Receipt, error) {
	if !c.Serialized {
		return SendCut(ctx, c.Engine, c.From, c.Diamond, cuts, initAddr, calldata)
	}
	data, err := EncodeCut(cuts, initAddr, calldata)
	if err != nil {
		return nil, err
	}
	return c.Engine.Submit(ctx, engine.Message{From: c.From, To: c.Diamond, Data: data})
}
