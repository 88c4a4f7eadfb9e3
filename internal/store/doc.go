// Package store provides SQLite-backed persistent state for the diamond
// runtime.
//
// The store holds:
//   - Code: immutable module code keyed by code hash
//   - Accounts: address, optional code hash, balance
//   - Slots: per account, per namespace key/value storage
//   - Logs: committed events ordered by logical sequence number
//
// # Atomicity
//
// All mutation goes through a Tx. The engine opens one Tx per top-level
// message and one SAVEPOINT per nested call, so a failed nested call
// rolls back only its own writes and a failed message rolls back all of
// them.
//
// # Determinism
//
//   - All ordering uses seq INTEGER (logical clock), never timestamps
//   - Slot and account listings are ordered by key bytes (BINARY collation)
//   - Log payloads are RFC 8785 canonical JSON produced by internal/ir
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
