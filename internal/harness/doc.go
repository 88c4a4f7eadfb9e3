// Package harness provides conformance testing for diamonds.
//
// A scenario bootstraps a diamond from catalog modules, sends a sequence
// of cuts, calls and ownership transfers through a real engine, and then
// checks the routing table through the loupe.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	accounts: [alice]
//	diamond:
//	  owner: owner
//	  facets: [counter]
//	steps:
//	  - cut:
//	      from: owner
//	      manifest:
//	        cuts:
//	          - action: replace
//	            facet: counter-v2
//	            functions: ["getX()"]
//	  - call: {from: alice, function: getX(), query: true}
//	    expect: {return: ["100"]}
//	  - transfer_ownership: {from: owner, to: alice}
//	assertions:
//	  - type: facet_address
//	    function: getX()
//	    facet: counter-v2
//	  - type: registry_valid
//
// # Assertion Types
//
//   - facets: facetAddresses() in order, as catalog names
//   - selectors: facetFunctionSelectors(facet) in order
//   - facet_address: facetAddress(function); "none" for unrouted
//   - owner: owner()
//   - supports_interface: supportsInterface(id)
//   - registry_valid: registry invariants hold and the DiamondCut log
//     replays to the live routing table
//
// # Determinism
//
// Transaction IDs come from engine.SequenceGenerator and log sequence
// numbers from a fresh clock, so the same scenario always yields the same
// trace. Addresses in traces are replaced by account labels, catalog names
// and "diamond".
//
// # Golden Files
//
// Traces can be compared against golden files:
//
//	result, err := harness.RunWithGolden(t, scenario)
//
// Golden files live in testdata/golden/. Regenerate with:
//
//	go test ./internal/harness -update
package harness
