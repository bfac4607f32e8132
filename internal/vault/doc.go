// Package vault implements the fee vault: a single program-owned account
// that takes deposits, burns a configured fraction of each one, and keeps
// the remainder under an authority.
//
// Every operation follows the same shape:
//
//  1. Load and decode the vault Record, verifying its derived address.
//  2. Check the caller against the stored authority.
//  3. Validate arguments.
//  4. Compute new values with checked arithmetic.
//  5. Move lamports and write the Record back.
//
// Steps 1 to 5 run inside one ledger.Update, so a failure anywhere leaves
// both balances and the Record untouched. Events are emitted only after the
// update commits.
//
// Parameter changes go through a timelock: the authority proposes new
// values, waits for the configured delay, and then executes (or cancels).
// At most one proposal is pending at a time.
package vault
