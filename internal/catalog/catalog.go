// Package catalog names the built-in modules so tooling can deploy them,
// register their implementations and resolve "loupe" to an address.
package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/diamond/internal/diamond"
	"github.com/roach88/diamond/internal/engine"
	"github.com/roach88/diamond/internal/facets"
	"github.com/roach88/diamond/internal/facets/counter"
	"github.com/roach88/diamond/internal/ir"
)

// Entry is one named module.
type Entry struct {
	Name        string
	Description string
	Module      engine.Module
}

// Address is where the module lives when deployed at the zero salt.
func (e Entry) Address() ir.Address {
	return engine.AddressOf(e.Module, ir.Hash{})
}

// Selectors lists the functions the module defines, or nil when the
// module does not expose a function table.
func (e Entry) Selectors() []ir.Selector {
	if fm, ok := e.Module.(diamond.FacetModule); ok {
		return fm.Selectors()
	}
	return nil
}

// Signatures lists the module's normalized function signatures, when known.
func (e Entry) Signatures() []string {
	if t, ok := e.Module.(*engine.FunctionTable); ok {
		return t.Signatures()
	}
	return nil
}

// Catalog is a name → module registry.
type Catalog struct {
	entries map[string]Entry
	byAddr  map[ir.Address]string
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{
		entries: make(map[string]Entry),
		byAddr:  make(map[ir.Address]string),
	}
}

// Add registers m under name. Names and code identities must be unique.
func (c *Catalog) Add(name, description string, m engine.Module) error {
	if name == "" || strings.HasPrefix(name, "0x") {
		return fmt.Errorf("catalog: invalid module name %q", name)
	}
	if _, dup := c.entries[name]; dup {
		return fmt.Errorf("catalog: module %q already registered", name)
	}
	e := Entry{Name: name, Description: description, Module: m}
	if other, dup := c.byAddr[e.Address()]; dup {
		return fmt.Errorf("catalog: %q has the same code as %q", name, other)
	}
	c.entries[name] = e
	c.byAddr[e.Address()] = name
	return nil
}

// MustAdd is Add that panics on error.
func (c *Catalog) MustAdd(name, description string, m engine.Module) {
	if err := c.Add(name, description, m); err != nil {
		panic(err)
	}
}

// Lookup returns the entry named name.
func (c *Catalog) Lookup(name string) (Entry, bool) {
	e, ok := c.entries[name]
	return e, ok
}

// ByAddress returns the entry deployed at addr with the zero salt.
func (c *Catalog) ByAddress(addr ir.Address) (Entry, bool) {
	name, ok := c.byAddr[addr]
	if !ok {
		return Entry{}, false
	}
	return c.entries[name], true
}

// Names returns every name in sorted order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.entries))
	for n := range c.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Entries returns every entry sorted by name.
func (c *Catalog) Entries() []Entry {
	names := c.Names()
	out := make([]Entry, len(names))
	for i, n := range names {
		out[i] = c.entries[n]
	}
	return out
}

// Modules returns every module, for engine.WithModules.
func (c *Catalog) Modules() []engine.Module {
	entries := c.Entries()
	out := make([]engine.Module, len(entries))
	for i, e := range entries {
		out[i] = e.Module
	}
	return out
}

// Resolve turns a module name or 0x address into an address.
func (c *Catalog) Resolve(ref string) (ir.Address, error) {
	if strings.HasPrefix(ref, "0x") || strings.HasPrefix(ref, "0X") {
		return ir.ParseAddress(ref)
	}
	e, ok := c.entries[ref]
	if !ok {
		return ir.Address{}, fmt.Errorf("unknown module %q (known: %s)", ref, strings.Join(c.Names(), ", "))
	}
	return e.Address(), nil
}

// NameOf returns the catalog name for addr, or its hex form.
func (c *Catalog) NameOf(addr ir.Address) string {
	if name, ok := c.byAddr[addr]; ok {
		return name
	}
	return addr.Hex()
}

// Default returns the catalog of built-in modules.
func Default() *Catalog {
	c := New()
	c.MustAdd("proxy", "diamond proxy (deploy with diamond init)", diamond.Proxy{})
	c.MustAdd("cut", "diamondCut facet", facets.NewCut())
	c.MustAdd("loupe", "introspection facet (ERC-2535 loupe, ERC-165)", facets.NewLoupe())
	c.MustAdd("ownership", "ERC-173 ownership facet", facets.NewOwnership())
	c.MustAdd("init", "standard initializer registering ERC-165 interface IDs", facets.NewInit())
	c.MustAdd("counter", "sample counter facet: getX, changeX (+1)", counter.NewFacet())
	c.MustAdd("counter-v2", "sample counter facet v2: getX, changeX (+10), getY", counter.NewFacetV2())
	c.MustAdd("counter-init", "sample initializer: init() sets x = 100", counter.NewInit())
	c.MustAdd("counter-init-v2", "sample initializer: init2() sets y = 200", counter.NewInitV2())
	return c
}

// Deploy deploys every module without a constructor at the zero salt, in
// name order, so manifests can name any of them. Already deployed modules
// are left alone.
func (c *Catalog) Deploy(ctx context.Context, e *engine.Engine, from ir.Address) error {
	for _, entry := range c.Entries() {
		if _, ok := entry.Module.(engine.Constructor); ok {
			continue
		}
		if _, err := diamond.DeployModule(ctx, e, from, entry.Module, ir.Hash{}); err != nil {
			return fmt.Errorf("deploy %s: %w", entry.Name, err)
		}
	}
	return nil
}

// Standard returns bootstrap options using the catalog's standard facets
// plus the named business facets.
func (c *Catalog) Standard(owner ir.Address, business ...string) (diamond.BootstrapOptions, error) {
	opts := diamond.BootstrapOptions{Owner: owner}
	var err error
	if opts.Cut, err = c.module("cut"); err != nil {
		return opts, err
	}
	if opts.Loupe, err = c.facet("loupe"); err != nil {
		return opts, err
	}
	if opts.Ownership, err = c.facet("ownership"); err != nil {
		return opts, err
	}
	if opts.Init, err = c.module("init"); err != nil {
		return opts, err
	}
	for _, name := range business {
		fm, err := c.facet(name)
		if err != nil {
			return opts, err
		}
		opts.Facets = append(opts.Facets, fm)
	}
	return opts, nil
}

func (c *Catalog) module(name string) (engine.Module, error) {
	e, ok := c.entries[name]
	if !ok {
		return nil, fmt.Errorf("unknown module %q", name)
	}
	return e.Module, nil
}

func (c *Catalog) facet(name string) (diamond.FacetModule, error) {
	e, ok := c.entries[name]
	if !ok {
		return nil, fmt.Errorf("unknown module %q", name)
	}
	fm, ok := e.Module.(diamond.FacetModule)
	if !ok {
		return nil, fmt.Errorf("module %q is not a facet", name)
	}
	return fm, nil
}
