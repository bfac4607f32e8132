// Package engine runs vault operations through a journaled single writer.
//
// # Request Lifecycle
//
//	Request → bind → seq, timestamp → [invocation] → vault op → [completion] → [events]
//
// Binding decodes the request arguments before anything is sequenced, so a
// malformed request consumes no seq and leaves no journal record. Once an
// invocation is written the request always completes: a vault rejection is
// recorded as a completion whose output case is the vault error code.
//
// # Time
//
// The engine reads the wall clock once per request and records the value
// on the invocation. The vault's timelock compares against that recorded
// value only. Replay feeds the recorded timestamps back in, so a proposal
// that was executable at seq N is executable at seq N on every replay.
//
// # Content-Addressed IDs
//
// Invocation, completion, and event ids are hashes of canonical JSON
// (RFC 8785) of their contents:
//
//   - InvocationID covers request id, operation, caller, args, seq, timestamp
//   - CompletionID covers invocation id, output case, result, seq
//   - EventID covers invocation id, event name, payload, position
//
// Replay recomputes each id from a fresh in-memory ledger and reports any
// mismatch as a Divergence. Identical ids mean identical history.
//
// # Crash Safety
//
// An invocation without a completion means the process stopped mid-request.
// The ledger update is atomic, so the vault is either fully before or fully
// after that request. store.GetJournalState lists such invocations.
package engine
