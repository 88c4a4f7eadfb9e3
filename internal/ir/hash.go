package ir

import (
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/sha3"
)

// Domain prefixes for SHA-256 digests with domain separation.
// Version suffix enables future algorithm migration.
const (
	DomainRegistry = "diamond/registry/v1"
)

// Keccak256 returns the legacy Keccak-256 digest of the concatenated inputs
// (the Ethereum variant, not FIPS-202 SHA3-256).
func Keccak256(data ...[]byte) Hash {
	h := sha3.NewLegacyKeccak256()
	for _, b := range data {
		h.Write(b)
	}
	var out Hash
	h.Sum(out[:0])
	return out
}

// SelectorOf derives the routing identifier of a function signature:
// the first four bytes of Keccak-256 over the normalized signature.
//
// The signature must already be normalized ("name(type1,type2)" with no
// spaces or parameter names); see abi.NormalizeSignature.
func SelectorOf(signature string) Selector {
	h := Keccak256([]byte(signature))
	var sel Selector
	copy(sel[:], h[:SelectorLength])
	return sel
}

// InterfaceID computes the ERC-165 interface identifier of a set of
// selectors (their XOR).
func InterfaceID(selectors ...Selector) Selector {
	var id Selector
	for _, s := range selectors {
		for i := range id {
			id[i] ^= s[i]
		}
	}
	return id
}

// Namespace derives the storage partition key for a module from a fixed
// tag such as "diamond.standard.diamond.storage".
func Namespace(tag string) Hash {
	return Keccak256([]byte(tag))
}

// CodeHash returns the content identity of module code.
func CodeHash(code []byte) Hash {
	return Keccak256(code)
}

// CreateAddress computes the content-addressed deployment address of code
// deployed with salt: keccak256(0xff ++ salt ++ keccak256(code))[12:].
func CreateAddress(salt Hash, codeHash Hash) Address {
	h := Keccak256([]byte{0xff}, salt[:], codeHash[:])
	return BytesToAddress(h[:])
}

// AccountAddress derives a stable external account address from a label.
// Used for named accounts in tooling and scenarios ("owner", "alice").
func AccountAddress(label string) Address {
	h := Keccak256([]byte("account:" + label))
	return BytesToAddress(h[:])
}

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) Hash {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	var out Hash
	h.Sum(out[:0])
	return out
}

// RoutingDigest hashes a routing table snapshot. Routes and facets must be
// sorted by the caller; the canonical JSON encoding makes the digest
// independent of storage layout.
func RoutingDigest(routes []Route, facets []Address) (Hash, error) {
	routeList := make([]any, len(routes))
	for i, r := range routes {
		routeList[i] = map[string]any{
			"selector": r.Selector.Hex(),
			"facet":    r.Facet.Hex(),
		}
	}
	facetList := make([]any, len(facets))
	for i, f := range facets {
		facetList[i] = f.Hex()
	}

	canonical, err := MarshalCanonical(map[string]any{
		"routes": routeList,
		"facets": facetList,
	})
	if err != nil {
		return Hash{}, fmt.Errorf("RoutingDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainRegistry, canonical), nil
}
