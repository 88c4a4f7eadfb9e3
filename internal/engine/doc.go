// Package engine implements the execution environment diamonds run in.
//
// Accounts hold a balance and optionally code. Code is a Go Module bound
// to the hash of its code identity; deploying a module stores the code and
// derives the account address from a salt and that hash.
//
// ARCHITECTURE:
//
// Single-Writer Execution:
// Every top-level message runs to completion inside one SQLite transaction
// before the next one starts. Concurrent submitters go through the FIFO
// queue drained by Run.
//
// Call Frames:
// A frame has a storage context (Self) and a code address. Call and
// StaticCall switch both to the target; DelegateCall switches only the
// code and keeps Self, Caller and Value. Each frame runs under a SAVEPOINT
// so a failing nested call rolls back its own writes and logs while the
// caller continues.
//
// Failure Model:
// Gas, write protection and call depth are enforced here. A message that
// fails leaves no trace in state or logs; the receipt carries the error.
// Storage failures and cancellation abort the message and are returned
// as Go errors instead.
//
// Logical Clock:
// Committed logs are stamped with a strictly increasing seq from Clock.
// The clock resumes from the store on restart.
package engine
