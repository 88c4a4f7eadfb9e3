package diamond

import (
	"encoding/binary"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/roach88/diamond/internal/ir"
)

// ErrCorrupt is wrapped by every structural inconsistency Check or a
// registry read detects.
var ErrCorrupt = errors.New("registry invariant violated")

// CodeChecker reports whether an address holds deployed code.
type CodeChecker func(addr ir.Address) (bool, error)

// Registry is the selector routing table stored in a Slots partition.
//
// Layout (keys are ASCII, hex for identities):
//
//	sel/<selector>        facet(20) ‖ position in the facet's list(4)
//	facet/<address>       number of selectors routed to the facet(4)
//	facet/<address>/<i>   i-th selector of the facet(4)
//	fpos/<address>        position of the facet in the facet list(4)
//	facets                number of facets(4)
//	facets/<i>            i-th facet(20)
//	owner                 owner address(20)
//	iface/<id>            ERC-165 flag(1)
//
// Removal swaps the last element into the freed position in both lists,
// and keys that become empty are deleted.
type Registry struct {
	s Slots
}

// NewRegistry returns a registry over s.
func NewRegistry(s Slots) *Registry {
	return &Registry{s: s}
}

func selKey(sel ir.Selector) []byte { return []byte("sel/" + sel.Hex()) }
func facetCountKey(a ir.Address) []byte { return []byte("facet/" + a.Hex()) }
func fposKey(a ir.Address) []byte { return []byte("fpos/" + a.Hex()) }
func facetAtKey(i uint32) []byte { return []byte("facets/" + strconv.FormatUint(uint64(i), 10)) }
func ifaceKey(id ir.Selector) []byte { return []byte("iface/" + id.Hex()) }
func facetSelKey(a ir.Address, i uint32) []byte {
	return []byte("facet/" + a.Hex() + "/" + strconv.FormatUint(uint64(i), 10))
}

var (
	facetsKey = []byte("facets")
	ownerKey  = []byte("owner")
)

func (r *Registry) loadU32(key []byte) (uint32, bool, error) {
	v, err := r.s.Load(key)
	if err != nil || v == nil {
		return 0, false, err
	}
	if len(v) != 4 {
		return 0, false, fmt.Errorf("%w: %s holds %d bytes", ErrCorrupt, key, len(v))
	}
	return binary.BigEndian.Uint32(v), true, nil
}

func (r *Registry) storeU32(key []byte, v uint32) error {
	return r.s.Store(key, binary.BigEndian.AppendUint32(nil, v))
}

// storeCount writes a count, deleting the key at zero.
func (r *Registry) storeCount(key []byte, n uint32) error {
	if n == 0 {
		return r.s.Clear(key)
	}
	return r.storeU32(key, n)
}

func (r *Registry) loadAddress(key []byte) (ir.Address, bool, error) {
	v, err := r.s.Load(key)
	if err != nil || v == nil {
		return ir.Address{}, false, err
	}
	if len(v) != ir.AddressLength {
		return ir.Address{}, false, fmt.Errorf("%w: %s holds %d bytes", ErrCorrupt, key, len(v))
	}
	return ir.BytesToAddress(v), true, nil
}

func (r *Registry) loadSelector(key []byte) (ir.Selector, error) {
	v, err := r.s.Load(key)
	if err != nil {
		return ir.Selector{}, err
	}
	if len(v) != ir.SelectorLength {
		return ir.Selector{}, fmt.Errorf("%w: %s holds %d bytes", ErrCorrupt, key, len(v))
	}
	var sel ir.Selector
	copy(sel[:], v)
	return sel, nil
}

// Route returns the facet a selector is routed to and the selector's
// position in that facet's list.
func (r *Registry) Route(sel ir.Selector) (facet ir.Address, pos uint32, found bool, err error) {
	v, err := r.s.Load(selKey(sel))
	if err != nil || v == nil {
		return ir.Address{}, 0, false, err
	}
	if len(v) != ir.AddressLength+4 {
		return ir.Address{}, 0, false, fmt.Errorf("%w: route %s holds %d bytes", ErrCorrupt, sel, len(v))
	}
	return ir.BytesToAddress(v[:ir.AddressLength]), binary.BigEndian.Uint32(v[ir.AddressLength:]), true, nil
}

func (r *Registry) storeRoute(sel ir.Selector, facet ir.Address, pos uint32) error {
	v := make([]byte, 0, ir.AddressLength+4)
	v = append(v, facet[:]...)
	v = binary.BigEndian.AppendUint32(v, pos)
	return r.s.Store(selKey(sel), v)
}

// FacetAddress returns the facet routed for sel, or the zero address.
func (r *Registry) FacetAddress(sel ir.Selector) (ir.Address, error) {
	facet, _, _, err := r.Route(sel)
	return facet, err
}

// SelectorCount returns how many selectors are routed to facet.
func (r *Registry) SelectorCount(facet ir.Address) (uint32, error) {
	n, _, err := r.loadU32(facetCountKey(facet))
	return n, err
}

// FacetFunctionSelectors returns the selectors routed to facet in list
// order.
func (r *Registry) FacetFunctionSelectors(facet ir.Address) ([]ir.Selector, error) {
	n, err := r.SelectorCount(facet)
	if err != nil {
		return nil, err
	}
	out := make([]ir.Selector, n)
	for i := uint32(0); i < n; i++ {
		if out[i], err = r.loadSelector(facetSelKey(facet, i)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// FacetCount returns the number of facets with at least one selector.
func (r *Registry) FacetCount() (uint32, error) {
	n, _, err := r.loadU32(facetsKey)
	return n, err
}

// FacetAddresses returns every facet with at least one selector, in list
// order.
func (r *Registry) FacetAddresses() ([]ir.Address, error) {
	n, err := r.FacetCount()
	if err != nil {
		return nil, err
	}
	out := make([]ir.Address, n)
	for i := uint32(0); i < n; i++ {
		a, ok, err := r.loadAddress(facetAtKey(i))
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: facet list hole at %d of %d", ErrCorrupt, i, n)
		}
		out[i] = a
	}
	return out, nil
}

// Facets returns every facet with its selectors.
func (r *Registry) Facets() ([]ir.Facet, error) {
	addrs, err := r.FacetAddresses()
	if err != nil {
		return nil, err
	}
	out := make([]ir.Facet, len(addrs))
	for i, a := range addrs {
		sels, err := r.FacetFunctionSelectors(a)
		if err != nil {
			return nil, err
		}
		out[i] = ir.Facet{FacetAddress: a, FunctionSelectors: sels}
	}
	return out, nil
}

// Routes returns the routing table sorted by selector.
func (r *Registry) Routes() ([]ir.Route, error) {
	facets, err := r.Facets()
	if err != nil {
		return nil, err
	}
	var routes []ir.Route
	for _, f := range facets {
		for _, sel := range f.FunctionSelectors {
			routes = append(routes, ir.Route{Selector: sel, Facet: f.FacetAddress})
		}
	}
	slices.SortFunc(routes, func(a, b ir.Route) int { return a.Selector.Compare(b.Selector) })
	return routes, nil
}

// Digest hashes the routing table. Two registries with the same
// selector→facet mapping have the same digest regardless of list order.
func (r *Registry) Digest() (ir.Hash, error) {
	routes, err := r.Routes()
	if err != nil {
		return ir.Hash{}, err
	}
	facets, err := r.FacetAddresses()
	if err != nil {
		return ir.Hash{}, err
	}
	slices.SortFunc(facets, ir.Address.Compare)
	return ir.RoutingDigest(routes, facets)
}

// Owner returns the owner, or the zero address before one is set.
func (r *Registry) Owner() (ir.Address, error) {
	a, _, err := r.loadAddress(ownerKey)
	return a, err
}

// SetOwner records the owner. The zero address clears it.
func (r *Registry) SetOwner(owner ir.Address) error {
	if owner.IsZero() {
		return r.s.Clear(ownerKey)
	}
	return r.s.Store(ownerKey, owner[:])
}

// SupportsInterface reports the ERC-165 flag for id.
func (r *Registry) SupportsInterface(id ir.Selector) (bool, error) {
	v, err := r.s.Load(ifaceKey(id))
	if err != nil {
		return false, err
	}
	return len(v) == 1 && v[0] == 1, nil
}

// SetInterface sets or clears the ERC-165 flag for id.
func (r *Registry) SetInterface(id ir.Selector, supported bool) error {
	if !supported {
		return r.s.Clear(ifaceKey(id))
	}
	return r.s.Store(ifaceKey(id), []byte{1})
}

// ApplyCuts validates and applies a cut batch item by item. The first
// failing item returns its error; earlier items stay applied, so callers
// must run ApplyCuts inside a transaction that is discarded on error.
//
// hasCode verifies that Add and Replace targets hold code. A nil checker
// skips the check (replays of already validated cuts).
func (r *Registry) ApplyCuts(cuts []ir.FacetCut, hasCode CodeChecker) error {
	if len(cuts) == 0 {
		return newError(ErrNoCutItems, "cut batch has no items")
	}
	for i, c := range cuts {
		if err := r.applyCut(c, hasCode); err != nil {
			var de *Error
			if errors.As(err, &de) && de.Message != "" {
				de.Message = fmt.Sprintf("item %d: %s", i, de.Message)
			}
			return err
		}
	}
	return nil
}

func (r *Registry) applyCut(c ir.FacetCut, hasCode CodeChecker) error {
	if len(c.FunctionSelectors) == 0 {
		return selectorError(ErrNoSelectors, ir.Selector{}, c.FacetAddress, "%s has no selectors", c.Action)
	}
	switch c.Action {
	case ir.Add:
		if err := r.requireModule(c.FacetAddress, hasCode); err != nil {
			return err
		}
		for _, sel := range c.FunctionSelectors {
			old, _, found, err := r.Route(sel)
			if err != nil {
				return err
			}
			if found {
				return selectorError(ErrSelectorAlreadyExists, sel, old, "selector already routed")
			}
			if err := r.addSelector(c.FacetAddress, sel); err != nil {
				return err
			}
		}
	case ir.Replace:
		if err := r.requireModule(c.FacetAddress, hasCode); err != nil {
			return err
		}
		for _, sel := range c.FunctionSelectors {
			old, pos, found, err := r.Route(sel)
			if err != nil {
				return err
			}
			if !found {
				return selectorError(ErrSelectorNotFound, sel, c.FacetAddress, "cannot replace unrouted selector")
			}
			if old == c.FacetAddress {
				return selectorError(ErrIdenticalModule, sel, old, "selector already routed to this facet")
			}
			if err := r.removeSelector(sel, old, pos); err != nil {
				return err
			}
			if err := r.addSelector(c.FacetAddress, sel); err != nil {
				return err
			}
		}
	case ir.Remove:
		if !c.FacetAddress.IsZero() {
			return selectorError(ErrInvalidRemoveModule, ir.Selector{}, c.FacetAddress, "remove must name the zero address")
		}
		for _, sel := range c.FunctionSelectors {
			old, pos, found, err := r.Route(sel)
			if err != nil {
				return err
			}
			if !found {
				return selectorError(ErrSelectorNotFound, sel, ir.Address{}, "cannot remove unrouted selector")
			}
			if err := r.removeSelector(sel, old, pos); err != nil {
				return err
			}
		}
	default:
		return selectorError(ErrInvalidAction, ir.Selector{}, c.FacetAddress, "unknown action %d", uint8(c.Action))
	}
	return nil
}

func (r *Registry) requireModule(facet ir.Address, hasCode CodeChecker) error {
	if facet.IsZero() {
		return selectorError(ErrInvalidModule, ir.Selector{}, facet, "facet is the zero address")
	}
	if hasCode == nil {
		return nil
	}
	ok, err := hasCode(facet)
	if err != nil {
		return err
	}
	if !ok {
		return selectorError(ErrInvalidModule, ir.Selector{}, facet, "facet has no code")
	}
	return nil
}

// addSelector appends sel to facet's list, adding facet to the facet list
// when this is its first selector.
func (r *Registry) addSelector(facet ir.Address, sel ir.Selector) error {
	n, err := r.SelectorCount(facet)
	if err != nil {
		return err
	}
	if n == 0 {
		total, err := r.FacetCount()
		if err != nil {
			return err
		}
		if err := r.s.Store(facetAtKey(total), facet[:]); err != nil {
			return err
		}
		if err := r.storeU32(fposKey(facet), total); err != nil {
			return err
		}
		if err := r.storeCount(facetsKey, total+1); err != nil {
			return err
		}
	}
	if err := r.s.Store(facetSelKey(facet, n), sel[:]); err != nil {
		return err
	}
	if err := r.storeCount(facetCountKey(facet), n+1); err != nil {
		return err
	}
	return r.storeRoute(sel, facet, n)
}

// removeSelector deletes sel, which sits at pos in facet's list. The last
// selector moves into pos. A facet left with no selectors leaves the facet
// list the same way.
func (r *Registry) removeSelector(sel ir.Selector, facet ir.Address, pos uint32) error {
	n, err := r.SelectorCount(facet)
	if err != nil {
		return err
	}
	if n == 0 || pos >= n {
		return fmt.Errorf("%w: %s at position %d of %d in %s", ErrCorrupt, sel, pos, n, facet)
	}
	last := n - 1
	if pos != last {
		moved, err := r.loadSelector(facetSelKey(facet, last))
		if err != nil {
			return err
		}
		if err := r.s.Store(facetSelKey(facet, pos), moved[:]); err != nil {
			return err
		}
		if err := r.storeRoute(moved, facet, pos); err != nil {
			return err
		}
	}
	if err := r.s.Clear(facetSelKey(facet, last)); err != nil {
		return err
	}
	if err := r.s.Clear(selKey(sel)); err != nil {
		return err
	}
	if err := r.storeCount(facetCountKey(facet), last); err != nil {
		return err
	}
	if last > 0 {
		return nil
	}
	return r.removeFacet(facet)
}

func (r *Registry) removeFacet(facet ir.Address) error {
	fpos, ok, err := r.loadU32(fposKey(facet))
	if err != nil {
		return err
	}
	total, err := r.FacetCount()
	if err != nil {
		return err
	}
	if !ok || total == 0 || fpos >= total {
		return fmt.Errorf("%w: facet %s not in facet list", ErrCorrupt, facet)
	}
	last := total - 1
	if fpos != last {
		moved, ok, err := r.loadAddress(facetAtKey(last))
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: facet list hole at %d", ErrCorrupt, last)
		}
		if err := r.s.Store(facetAtKey(fpos), moved[:]); err != nil {
			return err
		}
		if err := r.storeU32(fposKey(moved), fpos); err != nil {
			return err
		}
	}
	if err := r.s.Clear(facetAtKey(last)); err != nil {
		return err
	}
	if err := r.s.Clear(fposKey(facet)); err != nil {
		return err
	}
	return r.storeCount(facetsKey, last)
}

// Check verifies the registry's structural invariants and returns the
// first violation:
//
//  1. every listed selector routes back to its facet and position
//  2. every listed facet has at least one selector and a matching
//     position entry
//  3. the facet list has no duplicates
func (r *Registry) Check() error {
	facets, err := r.FacetAddresses()
	if err != nil {
		return err
	}
	seen := make(map[ir.Address]bool, len(facets))
	for i, facet := range facets {
		if facet.IsZero() {
			return fmt.Errorf("%w: zero address at facet position %d", ErrCorrupt, i)
		}
		if seen[facet] {
			return fmt.Errorf("%w: facet %s listed twice", ErrCorrupt, facet)
		}
		seen[facet] = true

		fpos, ok, err := r.loadU32(fposKey(facet))
		if err != nil {
			return err
		}
		if !ok || fpos != uint32(i) {
			return fmt.Errorf("%w: facet %s at %d has position entry %d", ErrCorrupt, facet, i, fpos)
		}

		sels, err := r.FacetFunctionSelectors(facet)
		if err != nil {
			return err
		}
		if len(sels) == 0 {
			return fmt.Errorf("%w: facet %s listed without selectors", ErrCorrupt, facet)
		}
		for j, sel := range sels {
			routed, pos, found, err := r.Route(sel)
			if err != nil {
				return err
			}
			if !found || routed != facet || pos != uint32(j) {
				return fmt.Errorf("%w: %s listed under %s at %d but routes to %s at %d",
					ErrCorrupt, sel, facet, j, routed, pos)
			}
		}
	}
	return nil
}
