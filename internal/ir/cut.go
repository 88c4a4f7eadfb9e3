package ir

import "fmt"

// FacetCutAction is the kind of change a cut item makes to the routing table.
type FacetCutAction uint8

const (
	// Add routes new selectors to a facet.
	Add FacetCutAction = 0
	// Replace moves existing selectors to a different facet.
	Replace FacetCutAction = 1
	// Remove deletes selectors from the routing table.
	Remove FacetCutAction = 2
)

func (a FacetCutAction) String() string {
	switch a {
	case Add:
		return "Add"
	case Replace:
		return "Replace"
	case Remove:
		return "Remove"
	default:
		return fmt.Sprintf("FacetCutAction(%d)", uint8(a))
	}
}

// ParseFacetCutAction accepts "add", "replace" and "remove" in any case.
func ParseFacetCutAction(s string) (FacetCutAction, error) {
	switch s {
	case "add", "Add", "ADD":
		return Add, nil
	case "replace", "Replace", "REPLACE":
		return Replace, nil
	case "remove", "Remove", "REMOVE":
		return Remove, nil
	default:
		return 0, fmt.Errorf("unknown cut action %q", s)
	}
}

// FacetCut is one item of a cut batch. It encodes as the ABI tuple
// (address,uint8,bytes4[]).
type FacetCut struct {
	_                 struct{}       `cbor:",toarray"`
	FacetAddress      Address        `json:"facet"`
	Action            FacetCutAction `json:"action"`
	FunctionSelectors []Selector     `json:"selectors"`
}

// Facet is one row of the loupe's facets() view. It encodes as the ABI
// tuple (address,bytes4[]).
type Facet struct {
	_                 struct{}   `cbor:",toarray"`
	FacetAddress      Address    `json:"facet"`
	FunctionSelectors []Selector `json:"selectors"`
}

// Route is one selector to facet mapping of the routing table.
type Route struct {
	Selector Selector `json:"selector"`
	Facet    Address  `json:"facet"`
}
