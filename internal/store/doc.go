// Package store provides SQLite-backed durable storage for the vault.
//
// One database holds three things:
//   - Accounts: the ledger the vault runs on (lamports and account data).
//     Store implements ledger.Ledger; each Update is one SQL transaction.
//   - Journal: an append-only log of invocations (requests as sequenced)
//     and completions (their outcomes).
//   - Events: observer-facing records emitted after successful operations.
//
// # Ordering
//
// Journal and event queries order by seq (the engine's logical clock) and
// then by id with BINARY collation, never by wall time. Replay reads the
// journal back in exactly the order it was written.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Lamport balances are stored as decimal TEXT because SQLite integers are
// signed 64-bit.
package store
