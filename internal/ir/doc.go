// Package ir provides the shared record types for SolForge.
//
// This package contains identities, address derivation, canonical JSON and
// the journal records written by the engine. All other internal packages
// import ir; ir imports nothing internal.
//
// Key design constraints:
//   - NO float types anywhere - lamport amounts travel as decimal strings
//     because they can exceed the int64 range
//   - All JSON tags use snake_case
//   - Journal ordering uses the logical seq, never the recorded timestamp
package ir
