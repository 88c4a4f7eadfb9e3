// Package testutil builds deterministic engines and diamonds for tests in
// packages that sit above the diamond runtime.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/diamond/internal/catalog"
	"github.com/roach88/diamond/internal/diamond"
	"github.com/roach88/diamond/internal/engine"
	"github.com/roach88/diamond/internal/ir"
	"github.com/roach88/diamond/internal/store"
)

// Balance is what Fund gives every test account.
const Balance uint64 = 1_000_000_000

// OpenStore opens a fresh database in a temp directory and returns it with
// its path. The store is closed when the test ends.
func OpenStore(t testing.TB) (*store.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "diamond.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st, path
}

// NewEngine returns an engine over st with every default catalog module
// registered and sequential transaction IDs (tx-1, tx-2, ...). Extra
// options are applied last.
func NewEngine(t testing.TB, st *store.Store, opts ...engine.EngineOption) *engine.Engine {
	t.Helper()
	base := []engine.EngineOption{
		engine.WithTxIDGenerator(&engine.SequenceGenerator{Prefix: "tx"}),
		engine.WithModules(catalog.Default().Modules()...),
	}
	e, err := engine.New(context.Background(), st, append(base, opts...)...)
	require.NoError(t, err)
	return e
}

// Fund gives label's account Balance and returns its address.
func Fund(t testing.TB, e *engine.Engine, label string) ir.Address {
	t.Helper()
	addr := ir.AccountAddress(label)
	require.NoError(t, e.Fund(context.Background(), addr, Balance))
	return addr
}

// Fixture is a bootstrapped diamond on a temp-dir database.
type Fixture struct {
	Store   *store.Store
	Path    string
	Engine  *engine.Engine
	Catalog *catalog.Catalog
	Owner   ir.Address
	Diamond *diamond.Bootstrapped
}

// NewDiamond deploys the default catalog and bootstraps a diamond owned by
// "owner" with the standard facets plus the named business facets.
func NewDiamond(t testing.TB, facets ...string) *Fixture {
	t.Helper()
	ctx := context.Background()
	st, path := OpenStore(t)
	e := NewEngine(t, st)
	cat := catalog.Default()
	owner := Fund(t, e, "owner")
	require.NoError(t, cat.Deploy(ctx, e, owner))

	opts, err := cat.Standard(owner, facets...)
	require.NoError(t, err)
	b, err := diamond.Bootstrap(ctx, e, opts)
	require.NoError(t, err)
	require.NoError(t, b.Receipt.Err)

	return &Fixture{
		Store:   st,
		Path:    path,
		Engine:  e,
		Catalog: cat,
		Owner:   owner,
		Diamond: b,
	}
}

// Address is the diamond's address.
func (f *Fixture) Address() ir.Address {
	return f.Diamond.Diamond
}

// Client returns a client for the diamond sending as from.
func (f *Fixture) Client(from ir.Address) *diamond.Client {
	return diamond.NewClient(f.Engine, f.Diamond.Diamond, from)
}

// Facet resolves a catalog name to its deployed address.
func (f *Fixture) Facet(t testing.TB, name string) ir.Address {
	t.Helper()
	addr, err := f.Catalog.Resolve(name)
	require.NoError(t, err)
	return addr
}
