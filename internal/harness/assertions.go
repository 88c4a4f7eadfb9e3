package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/diamond/internal/abi"
	"github.com/roach88/diamond/internal/catalog"
	"github.com/roach88/diamond/internal/diamond"
	"github.com/roach88/diamond/internal/ir"
)

// AssertionContext provides what assertions read from.
type AssertionContext struct {
	Ctx     context.Context
	Client  *diamond.Client
	Catalog *catalog.Catalog

	// Account resolves a scenario account label.
	Account func(label string) (ir.Address, error)
}

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			status := "ok"
			if ev.Error != "" {
				status = ev.Error
			}
			fmt.Fprintf(&buf, "  [%d] %s %s from %s: %s\n", ev.Step, ev.Kind, ev.Function, ev.From, status)
		}
	}
	return buf.String()
}

// EvaluateAssertions runs every assertion and returns failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(result, a, actx); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertFacets:
		return assertFacets(result, a, actx)
	case AssertSelectors:
		return assertSelectors(result, a, actx)
	case AssertFacetAddress:
		return assertFacetAddress(result, a, actx)
	case AssertOwner:
		return assertOwner(result, a, actx)
	case AssertSupportsInterface:
		return assertSupportsInterface(result, a, actx)
	case AssertRegistryValid:
		return assertRegistryValid(result, actx)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// resolveFacet turns a catalog name, 0x address or "none" into an address.
func resolveFacet(cat *catalog.Catalog, ref string) (ir.Address, error) {
	if ref == "none" {
		return ir.Address{}, nil
	}
	return cat.Resolve(ref)
}

func parseFunction(s string) (ir.Selector, error) {
	if strings.HasPrefix(s, "0x") {
		return ir.ParseSelector(s)
	}
	return abi.SelectorOf(s)
}

// assertFacets compares facets() against the expected names in order.
func assertFacets(result *Result, a Assertion, actx *AssertionContext) error {
	facets, err := actx.Client.FacetAddresses(actx.Ctx)
	if err != nil {
		return err
	}
	got := make([]string, len(facets))
	for i, f := range facets {
		got[i] = actx.Catalog.NameOf(f)
	}
	want := a.Facets
	if want == nil {
		want = []string{}
	}
	if !slices.Equal(want, got) {
		return &AssertionError{
			Type:     AssertFacets,
			Expected: fmt.Sprintf("%v", want),
			Actual:   fmt.Sprintf("%v", got),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertSelectors compares facetFunctionSelectors(facet), order included.
func assertSelectors(result *Result, a Assertion, actx *AssertionContext) error {
	facet, err := resolveFacet(actx.Catalog, a.Facet)
	if err != nil {
		return err
	}
	got, err := actx.Client.FacetFunctionSelectors(actx.Ctx, facet)
	if err != nil {
		return err
	}
	want := make([]ir.Selector, len(a.Functions))
	for i, fn := range a.Functions {
		if want[i], err = parseFunction(fn); err != nil {
			return err
		}
	}
	if !slices.Equal(want, got) {
		return &AssertionError{
			Type:     AssertSelectors,
			Expected: fmt.Sprintf("%s: %v", a.Facet, want),
			Actual:   fmt.Sprintf("%s: %v", a.Facet, got),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertFacetAddress checks facetAddress(function).
func assertFacetAddress(result *Result, a Assertion, actx *AssertionContext) error {
	sel, err := parseFunction(a.Function)
	if err != nil {
		return err
	}
	want, err := resolveFacet(actx.Catalog, a.Facet)
	if err != nil {
		return err
	}
	got, err := actx.Client.FacetAddress(actx.Ctx, sel)
	if err != nil {
		return err
	}
	if got != want {
		return &AssertionError{
			Type:     AssertFacetAddress,
			Expected: fmt.Sprintf("%s routed to %s", a.Function, a.Facet),
			Actual:   fmt.Sprintf("%s routed to %s", a.Function, displayFacet(actx.Catalog, got)),
			Trace:    result.Trace,
		}
	}
	return nil
}

func displayFacet(cat *catalog.Catalog, addr ir.Address) string {
	if addr.IsZero() {
		return "none"
	}
	return cat.NameOf(addr)
}

// assertOwner checks owner().
func assertOwner(result *Result, a Assertion, actx *AssertionContext) error {
	want, err := actx.Account(a.Account)
	if err != nil {
		return err
	}
	got, err := actx.Client.Owner(actx.Ctx)
	if err != nil {
		return err
	}
	if got != want {
		return &AssertionError{
			Type:     AssertOwner,
			Expected: a.Account,
			Actual:   got.Hex(),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertSupportsInterface checks supportsInterface(id).
func assertSupportsInterface(result *Result, a Assertion, actx *AssertionContext) error {
	id, err := ir.ParseSelector(a.Interface)
	if err != nil {
		return err
	}
	got, err := actx.Client.SupportsInterface(actx.Ctx, id)
	if err != nil {
		return err
	}
	if got != *a.Supported {
		return &AssertionError{
			Type:     AssertSupportsInterface,
			Expected: fmt.Sprintf("supportsInterface(%s) = %t", a.Interface, *a.Supported),
			Actual:   fmt.Sprintf("%t", got),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertRegistryValid checks the registry's internal consistency and that
// replaying the DiamondCut log reproduces the live routing table.
func assertRegistryValid(result *Result, actx *AssertionContext) error {
	res, err := diamond.Verify(actx.Ctx, actx.Client.Engine, actx.Client.Diamond)
	if err != nil {
		return err
	}
	if !res.OK() {
		actual := res.Violation
		if actual == "" {
			actual = fmt.Sprintf("live digest %s, replayed %s", res.Live, res.Replayed)
		}
		return &AssertionError{
			Type:     AssertRegistryValid,
			Expected: "consistent registry matching its audit log",
			Actual:   actual,
			Trace:    result.Trace,
		}
	}
	return nil
}
