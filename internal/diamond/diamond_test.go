package diamond_test

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/diamond/internal/abi"
	"github.com/roach88/diamond/internal/diamond"
	"github.com/roach88/diamond/internal/engine"
	"github.com/roach88/diamond/internal/facets"
	"github.com/roach88/diamond/internal/facets/counter"
	"github.com/roach88/diamond/internal/ir"
	"github.com/roach88/diamond/internal/store"
)

var (
	owner    = ir.AccountAddress("owner")
	stranger = ir.AccountAddress("stranger")
)

type fixture struct {
	t   *testing.T
	ctx context.Context
	e   *engine.Engine
	d   *diamond.Bootstrapped
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	s, err := store.Open(filepath.Join(t.TempDir(), "diamond.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	e, err := engine.New(ctx, s)
	require.NoError(t, err)

	d, err := diamond.Bootstrap(ctx, e, facets.Standard(owner))
	require.NoError(t, err)
	return &fixture{t: t, ctx: ctx, e: e, d: d}
}

func (fx *fixture) deploy(m engine.Module) ir.Address {
	fx.t.Helper()
	addr, err := diamond.DeployModule(fx.ctx, fx.e, owner, m, ir.Hash{})
	require.NoError(fx.t, err)
	return addr
}

func (fx *fixture) call(from ir.Address, sig string, args ...any) *engine.Receipt {
	fx.t.Helper()
	r, err := fx.e.Execute(fx.ctx, engine.Message{
		From: from,
		To:   fx.d.Diamond,
		Data: abi.MustEncodeCall(abi.MustSelector(sig), args...),
	})
	require.NoError(fx.t, err)
	return r
}

func (fx *fixture) query(sig string, out any, args ...any) {
	fx.t.Helper()
	r, err := fx.e.Query(fx.ctx, engine.Message{
		From: stranger,
		To:   fx.d.Diamond,
		Data: abi.MustEncodeCall(abi.MustSelector(sig), args...),
	})
	require.NoError(fx.t, err)
	require.NoError(fx.t, r.Err)
	require.NoError(fx.t, abi.DecodeValues(r.Return, out))
}

func (fx *fixture) cut(from ir.Address, cuts []ir.FacetCut, initAddr ir.Address, calldata []byte) *engine.Receipt {
	fx.t.Helper()
	r, err := diamond.SendCut(fx.ctx, fx.e, from, fx.d.Diamond, cuts, initAddr, calldata)
	require.NoError(fx.t, err)
	return r
}

func (fx *fixture) digest() ir.Hash {
	fx.t.Helper()
	v, err := diamond.Snapshot(fx.ctx, fx.e, fx.d.Diamond)
	require.NoError(fx.t, err)
	return v.Digest
}

func selectors(sigs ...string) []ir.Selector {
	out := make([]ir.Selector, len(sigs))
	for i, s := range sigs {
		out[i] = abi.MustSelector(s)
	}
	return out
}

func TestBootstrap_StandardFacets(t *testing.T) {
	fx := setup(t)

	var addrs []ir.Address
	fx.query(diamond.SigFacetAddresses, &addrs)
	assert.Equal(t, append([]ir.Address{fx.d.CutFacet}, fx.d.Facets...), addrs)

	var got []ir.Facet
	fx.query(diamond.SigFacets, &got)
	require.Len(t, got, 3)
	assert.Equal(t, []ir.Selector{diamond.CutSelector}, got[0].FunctionSelectors)
	assert.ElementsMatch(t, facets.NewLoupe().Selectors(), got[1].FunctionSelectors)
	assert.ElementsMatch(t, facets.NewOwnership().Selectors(), got[2].FunctionSelectors)

	var who ir.Address
	fx.query(diamond.SigOwner, &who)
	assert.Equal(t, owner, who)

	for _, id := range diamond.StandardInterfaces() {
		var ok bool
		fx.query(diamond.SigSupportsInterface, &ok, id)
		assert.True(t, ok, "interface %s", id)
	}
	var ok bool
	fx.query(diamond.SigSupportsInterface, &ok, ir.MustParseSelector("0xffffffff"))
	assert.False(t, ok)
}

func TestBootstrap_Idempotent(t *testing.T) {
	fx := setup(t)
	again, err := diamond.Bootstrap(fx.ctx, fx.e, facets.Standard(owner))
	require.Error(t, err, "second cut collides with routed selectors")
	assert.Nil(t, again)

	other, err := diamond.Bootstrap(fx.ctx, fx.e, diamond.BootstrapOptions{
		Owner:     owner,
		Nonce:     1,
		Cut:       facets.NewCut(),
		Loupe:     facets.NewLoupe(),
		Ownership: facets.NewOwnership(),
	})
	require.NoError(t, err)
	assert.NotEqual(t, fx.d.Diamond, other.Diamond)
	assert.Equal(t, fx.d.CutFacet, other.CutFacet, "facets are shared")
}

func TestDispatcher_FunctionNotFound(t *testing.T) {
	fx := setup(t)

	r := fx.call(stranger, "getX()")
	assert.True(t, diamond.IsFunctionNotFound(r.Err))

	var facet ir.Address
	fx.query(diamond.SigFacetAddress, &facet, abi.MustSelector("getX()"))
	assert.True(t, facet.IsZero())
}

func TestDispatcher_Receive(t *testing.T) {
	fx := setup(t)
	require.NoError(t, fx.e.Fund(fx.ctx, stranger, 10))

	r, err := fx.e.Execute(fx.ctx, engine.Message{From: stranger, To: fx.d.Diamond, Value: 10})
	require.NoError(t, err)
	require.NoError(t, r.Err)

	bal, err := fx.e.BalanceOf(fx.ctx, fx.d.Diamond)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), bal)
}

func TestDispatcher_ShortCallData(t *testing.T) {
	fx := setup(t)
	r, err := fx.e.Execute(fx.ctx, engine.Message{From: stranger, To: fx.d.Diamond, Data: []byte{0x1f, 0x93}})
	require.NoError(t, err)
	assert.True(t, diamond.IsFunctionNotFound(r.Err))
}

func TestCut_NotOwner(t *testing.T) {
	fx := setup(t)
	a := fx.deploy(counter.NewFacet())

	// Valid batch, invalid batch and malformed input all fail NotOwner.
	r := fx.cut(stranger, []ir.FacetCut{{FacetAddress: a, Action: ir.Add, FunctionSelectors: selectors("getX()")}}, ir.Address{}, nil)
	assert.True(t, diamond.IsNotOwner(r.Err))

	r = fx.cut(stranger, nil, ir.Address{}, nil)
	assert.True(t, diamond.IsNotOwner(r.Err))

	r, err := fx.e.Execute(fx.ctx, engine.Message{From: stranger, To: fx.d.Diamond, Data: diamond.CutSelector[:]})
	require.NoError(t, err)
	assert.True(t, diamond.IsNotOwner(r.Err))
}

func TestCut_CounterUpgradeFlow(t *testing.T) {
	fx := setup(t)
	v1 := fx.deploy(counter.NewFacet())
	init1 := fx.deploy(counter.NewInit())

	r := fx.cut(owner, []ir.FacetCut{{
		FacetAddress:      v1,
		Action:            ir.Add,
		FunctionSelectors: counter.NewFacet().Selectors(),
	}}, init1, abi.MustEncodeCall(abi.MustSelector("init()")))
	require.NoError(t, r.Err)

	var x uint64
	fx.query("getX()", &x)
	assert.Equal(t, uint64(100), x)

	require.NoError(t, fx.call(stranger, "changeX()").Err)
	fx.query("getX()", &x)
	assert.Equal(t, uint64(101), x)

	v2 := fx.deploy(counter.NewFacetV2())
	init2 := fx.deploy(counter.NewInitV2())
	r = fx.cut(owner, []ir.FacetCut{
		{FacetAddress: v2, Action: ir.Replace, FunctionSelectors: selectors("getX()", "changeX()")},
		{FacetAddress: v2, Action: ir.Add, FunctionSelectors: selectors("getY()")},
	}, init2, abi.MustEncodeCall(abi.MustSelector("init2()")))
	require.NoError(t, r.Err)

	require.NoError(t, fx.call(stranger, "changeX()").Err)
	fx.query("getX()", &x)
	assert.Equal(t, uint64(111), x, "state survives the upgrade")

	var y uint64
	fx.query("getY()", &y)
	assert.Equal(t, uint64(200), y)

	var addrs []ir.Address
	fx.query(diamond.SigFacetAddresses, &addrs)
	assert.NotContains(t, addrs, v1, "v1 lost its last selector")
	assert.Contains(t, addrs, v2)

	var supported bool
	fx.query(diamond.SigFacetSupportsSelector, &supported, v2, abi.MustSelector("getY()"))
	assert.True(t, supported)
	fx.query(diamond.SigFacetSupportsSelector, &supported, v1, abi.MustSelector("getX()"))
	assert.False(t, supported)
}

func TestCut_AtomicBatch(t *testing.T) {
	fx := setup(t)
	v1 := fx.deploy(counter.NewFacet())
	before := fx.digest()

	r := fx.cut(owner, []ir.FacetCut{
		{FacetAddress: v1, Action: ir.Add, FunctionSelectors: selectors("getX()")},
		{FacetAddress: v1, Action: ir.Add, FunctionSelectors: selectors("changeX()")},
		{FacetAddress: v1, Action: ir.Add, FunctionSelectors: selectors("owner()")},
	}, ir.Address{}, nil)
	assert.Equal(t, diamond.ErrSelectorAlreadyExists, diamond.CodeOf(r.Err))
	assert.Empty(t, r.Logs)
	assert.Equal(t, before, fx.digest())

	var facet ir.Address
	fx.query(diamond.SigFacetAddress, &facet, abi.MustSelector("getX()"))
	assert.True(t, facet.IsZero())
}

func TestCut_InvalidModuleWithoutCode(t *testing.T) {
	fx := setup(t)
	r := fx.cut(owner, []ir.FacetCut{{
		FacetAddress:      ir.AccountAddress("no-code"),
		Action:            ir.Add,
		FunctionSelectors: selectors("getX()"),
	}}, ir.Address{}, nil)
	assert.Equal(t, diamond.ErrInvalidModule, diamond.CodeOf(r.Err))
}

func TestCut_CannotRemoveCutFunction(t *testing.T) {
	fx := setup(t)

	r := fx.cut(owner, []ir.FacetCut{{Action: ir.Remove, FunctionSelectors: []ir.Selector{diamond.CutSelector}}}, ir.Address{}, nil)
	assert.Equal(t, diamond.ErrCannotRemoveCutFunction, diamond.CodeOf(r.Err))

	// Moving diamondCut to another deployed cut facet keeps the diamond upgradeable.
	next := fx.deploy(engine.NewFunctionTable("diamond.cut", "next").
		Handle(diamond.SigDiamondCut, facets.NewCut().Invoke))
	r = fx.cut(owner, []ir.FacetCut{{FacetAddress: next, Action: ir.Replace, FunctionSelectors: []ir.Selector{diamond.CutSelector}}}, ir.Address{}, nil)
	require.NoError(t, r.Err)

	var facet ir.Address
	fx.query(diamond.SigFacetAddress, &facet, diamond.CutSelector)
	assert.Equal(t, next, facet)
}

func TestCut_Initialization(t *testing.T) {
	fx := setup(t)
	v1 := fx.deploy(counter.NewFacet())
	init1 := fx.deploy(counter.NewInit())
	addV1 := []ir.FacetCut{{FacetAddress: v1, Action: ir.Add, FunctionSelectors: selectors("getX()")}}

	t.Run("calldata without initializer", func(t *testing.T) {
		r := fx.cut(owner, addV1, ir.Address{}, abi.MustEncodeCall(abi.MustSelector("init()")))
		assert.Equal(t, diamond.ErrInvalidInitialization, diamond.CodeOf(r.Err))
	})

	t.Run("initializer without calldata", func(t *testing.T) {
		r := fx.cut(owner, addV1, init1, nil)
		assert.Equal(t, diamond.ErrInvalidInitialization, diamond.CodeOf(r.Err))
	})

	t.Run("initializer without code", func(t *testing.T) {
		r := fx.cut(owner, addV1, ir.AccountAddress("nothing"), abi.MustEncodeCall(abi.MustSelector("init()")))
		assert.Equal(t, diamond.ErrInvalidInitialization, diamond.CodeOf(r.Err))
	})

	t.Run("initializer fails", func(t *testing.T) {
		r := fx.cut(owner, addV1, init1, abi.MustEncodeCall(abi.MustSelector("missing()")))
		assert.Equal(t, diamond.ErrInvalidInitialization, diamond.CodeOf(r.Err))
		assert.Equal(t, engine.ErrCodeUnknownMethod, engine.CodeOf(errors.Unwrap(r.Err)))

		var facet ir.Address
		fx.query(diamond.SigFacetAddress, &facet, abi.MustSelector("getX()"))
		assert.True(t, facet.IsZero(), "failed initializer aborts the cut")
	})

	t.Run("initializer out of gas", func(t *testing.T) {
		burner := fx.deploy(engine.NewFunctionTable("burner", "1").
			Handle("burn()", func(f *engine.Frame) ([]byte, error) {
				for {
					if _, err := f.Storage(counter.Namespace).Load([]byte("x")); err != nil {
						return nil, err
					}
				}
			}))
		r := fx.cut(owner, addV1, burner, abi.MustEncodeCall(abi.MustSelector("burn()")))
		assert.True(t, engine.IsOutOfGas(r.Err))
		assert.Equal(t, diamond.Code(""), diamond.CodeOf(r.Err))
	})
}

func TestCut_EmitsDiamondCut(t *testing.T) {
	fx := setup(t)
	v1 := fx.deploy(counter.NewFacet())

	r := fx.cut(owner, []ir.FacetCut{{FacetAddress: v1, Action: ir.Add, FunctionSelectors: selectors("getX()")}}, ir.Address{}, nil)
	require.NoError(t, r.Err)
	require.Len(t, r.Logs, 1)

	l := r.Logs[0]
	assert.Equal(t, diamond.EventDiamondCut, l.Event)
	assert.Equal(t, fx.d.Diamond, l.Address)

	ev, err := diamond.DecodeCutEvent(l)
	require.NoError(t, err)
	assert.Equal(t, owner, ev.Initiator)
	assert.True(t, ev.Init.IsZero())
	assert.Equal(t, "0x", ev.Calldata)
	require.Len(t, ev.Cuts, 1)
	assert.Equal(t, v1, ev.Cuts[0].FacetAddress)
	assert.Equal(t, ir.Add, ev.Cuts[0].Action)
	assert.Equal(t, selectors("getX()"), ev.Cuts[0].FunctionSelectors)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(l.Data, &raw))
	assert.Len(t, raw, 4)
}

func TestOwnership_Transfer(t *testing.T) {
	fx := setup(t)

	r := fx.call(stranger, diamond.SigTransferOwnership, stranger)
	assert.True(t, diamond.IsNotOwner(r.Err))

	r = fx.call(owner, diamond.SigTransferOwnership, ir.Address{})
	assert.Equal(t, diamond.ErrInvalidNewOwner, diamond.CodeOf(r.Err))

	r = fx.call(owner, diamond.SigTransferOwnership, stranger)
	require.NoError(t, r.Err)
	require.Len(t, r.Logs, 1)
	assert.Equal(t, diamond.EventOwnershipTransferred, r.Logs[0].Event)
	assert.JSONEq(t, `{"previous":"`+owner.Hex()+`","next":"`+stranger.Hex()+`"}`, string(r.Logs[0].Data))

	var who ir.Address
	fx.query(diamond.SigOwner, &who)
	assert.Equal(t, stranger, who)

	// The old owner lost the cut gate.
	v1 := fx.deploy(counter.NewFacet())
	r = fx.cut(owner, []ir.FacetCut{{FacetAddress: v1, Action: ir.Add, FunctionSelectors: selectors("getX()")}}, ir.Address{}, nil)
	assert.True(t, diamond.IsNotOwner(r.Err))
	r = fx.cut(stranger, []ir.FacetCut{{FacetAddress: v1, Action: ir.Add, FunctionSelectors: selectors("getX()")}}, ir.Address{}, nil)
	require.NoError(t, r.Err)
}

func TestVerify_ReplayMatchesLiveRegistry(t *testing.T) {
	fx := setup(t)
	v1 := fx.deploy(counter.NewFacet())
	v2 := fx.deploy(counter.NewFacetV2())

	require.NoError(t, fx.cut(owner, []ir.FacetCut{{FacetAddress: v1, Action: ir.Add, FunctionSelectors: counter.NewFacet().Selectors()}}, ir.Address{}, nil).Err)
	require.NoError(t, fx.cut(owner, []ir.FacetCut{{FacetAddress: v2, Action: ir.Replace, FunctionSelectors: selectors("changeX()")}}, ir.Address{}, nil).Err)
	require.NoError(t, fx.cut(owner, []ir.FacetCut{{Action: ir.Remove, FunctionSelectors: selectors("getX()")}}, ir.Address{}, nil).Err)
	// A failed cut leaves no log to replay.
	require.Error(t, fx.cut(owner, []ir.FacetCut{{Action: ir.Remove, FunctionSelectors: selectors("getX()")}}, ir.Address{}, nil).Err)

	res, err := diamond.Verify(fx.ctx, fx.e, fx.d.Diamond)
	require.NoError(t, err)
	assert.True(t, res.OK(), "live %s replayed %s: %s", res.Live, res.Replayed, res.Violation)
	assert.Equal(t, 5, res.Cuts, "constructor, bootstrap and three upgrades")
	assert.Equal(t, fx.digest(), res.Live)
}

func TestSnapshot(t *testing.T) {
	fx := setup(t)
	v, err := diamond.Snapshot(fx.ctx, fx.e, fx.d.Diamond)
	require.NoError(t, err)
	assert.Equal(t, owner, v.Owner)
	assert.Len(t, v.Facets, 3)
	assert.False(t, v.Digest.IsZero())
}
