package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/diamond/internal/engine"
)

func TestNewDiamond(t *testing.T) {
	f := NewDiamond(t, "counter")
	ctx := context.Background()

	owner, err := f.Client(f.Owner).Owner(ctx)
	require.NoError(t, err)
	assert.Equal(t, f.Owner, owner)

	facets, err := f.Client(f.Owner).FacetAddresses(ctx)
	require.NoError(t, err)
	assert.Equal(t, f.Facet(t, "counter"), facets[len(facets)-1])
	assert.FileExists(t, f.Path)
}

func TestNewEngine_SequentialTxIDs(t *testing.T) {
	st, _ := OpenStore(t)
	e := NewEngine(t, st)
	alice := Fund(t, e, "alice")

	for _, want := range []string{"tx-1", "tx-2"} {
		r, err := e.Query(context.Background(), engine.Message{From: alice, To: alice})
		require.NoError(t, err)
		assert.Equal(t, want, r.TxID)
	}
}

func TestFund(t *testing.T) {
	st, _ := OpenStore(t)
	e := NewEngine(t, st)
	addr := Fund(t, e, "alice")

	bal, err := e.BalanceOf(context.Background(), addr)
	require.NoError(t, err)
	assert.Equal(t, Balance, bal)
}
