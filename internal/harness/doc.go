// Package harness runs YAML conformance scenarios against the engine.
//
// A scenario names its identities, runs setup requests that must succeed,
// then runs flow requests whose output cases and results are checked
// against expect clauses. The wall clock starts at start_time and only
// moves when a flow step sets at or advance, so timelock behavior is
// exercised exactly.
//
//	name: timelock_burn_update
//	description: A burn-rate change waits for its timelock.
//	identities:
//	  authority: 4vJ9JU1bJJE96FWSJKvHsmmFADCg4gpZQff4P3bkLKi
//	flow:
//	  - invoke: initialize
//	    caller: authority
//	    args: {fee_bps: 500, burn_bps: 2000, delay_seconds: 86400}
//	  - invoke: execute_parameter_update
//	    caller: authority
//	    advance: 3600
//	    expect: {case: NoPendingUpdate}
//	assertions:
//	  - type: final_state
//	    table: vault
//	    expect: {burn_percentage_bps: 2000}
//
// Every request goes through engine.Execute over an in-memory store, so
// the trace is what the journal would hold. Traces are compared against
// golden files with goldie.
package harness
