// Package diamond implements the dispatch and upgrade core of an EIP-2535
// diamond: the selector registry, the proxy that routes calls to facets,
// the cut engine that edits the routing table, and the single-owner gate
// that guards it.
//
// The core runs inside the engine like any other module. The proxy is a
// Module; cut, loupe and ownership are ordinary facets (see package
// facets) reached through the proxy's own routing table. All registry
// state lives in the StorageNamespace partition of the proxy's storage.
//
// Every successful cut emits a DiamondCut log. Replay rebuilds the
// routing table from those logs alone and Verify compares the result with
// the live registry.
package diamond
