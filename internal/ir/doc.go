// Package ir provides the identity types shared by every layer of the
// diamond runtime.
//
// This package contains value types and pure functions only. All other
// internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Selectors and addresses are derived with Keccak-256 so they match
//     Ethereum tooling byte for byte (selector of "transfer(address,uint256)"
//     is 0xa9059cbb)
//   - Addresses are content addressed: salt plus code hash, never a counter
//   - Log payloads are RFC 8785 canonical JSON so the audit format is stable
//   - Logical clocks (seq) only, never wall-clock timestamps
package ir
