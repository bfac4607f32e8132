package harness

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/solforge/internal/engine"
	"github.com/roach88/solforge/internal/ir"
	"github.com/roach88/solforge/internal/ledger"
	"github.com/roach88/solforge/internal/store"
)

// AssertionError provides detailed context when an assertion fails.
// Includes the invocations of the trace for debugging.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error formats the assertion failure.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			if event.Type == TraceInvocation {
				fmt.Fprintf(&buf, "  [%d] %s by %s %s\n", event.Seq, event.Operation, event.Caller, render(event.Args))
			}
		}
	}
	return buf.String()
}

// AssertionContext gives state assertions access to the scenario's store
// and engine.
type AssertionContext struct {
	Ctx      context.Context
	Store    *store.Store
	Engine   *engine.Engine
	Scenario *Scenario
}

// EvaluateAssertions runs all assertions and returns failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion, actx)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertEventOrder:
			err = assertEventOrder(result.Trace, assertion)
		case AssertFinalState:
			if actx == nil || actx.Engine == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires an engine", i)
			} else {
				err = assertFinalState(actx, result, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

// assertTraceContains checks that an invocation of the operation with
// matching args appears in the trace. Args are a subset match.
func assertTraceContains(trace []TraceEvent, assertion Assertion, actx *AssertionContext) error {
	want, err := resolveExpectation(actx, assertion.Args)
	if err != nil {
		return fmt.Errorf("trace_contains: %w", err)
	}
	for _, event := range trace {
		if event.Type == TraceInvocation && event.Operation == assertion.Operation {
			if len(subsetDiff(want, event.Args)) == 0 {
				return nil
			}
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("operation %s with args %s", assertion.Operation, render(want)),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the first invocation of each listed
// operation appears in the given order.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		if event.Type != TraceInvocation {
			continue
		}
		if _, seen := positions[event.Operation]; !seen {
			positions[event.Operation] = i + 1
		}
	}

	for _, op := range assertion.Operations {
		if positions[op] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all operations present: %v", assertion.Operations),
				Actual:   fmt.Sprintf("missing operation: %s", op),
				Trace:    trace,
			}
		}
	}
	for i := 1; i < len(assertion.Operations); i++ {
		prev, curr := assertion.Operations[i-1], assertion.Operations[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("operations in order: %v", assertion.Operations),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks the exact number of invocations of an operation.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Type == TraceInvocation && event.Operation == assertion.Operation {
			count++
		}
	}
	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Operation),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertEventOrder checks the full sequence of emitted event names.
func assertEventOrder(trace []TraceEvent, assertion Assertion) error {
	var names []string
	for _, event := range trace {
		if event.Type == TraceEmitted {
			names = append(names, event.Name)
		}
	}
	if !slices.Equal(names, assertion.Events) {
		return &AssertionError{
			Type:     AssertEventOrder,
			Expected: fmt.Sprintf("events %v", assertion.Events),
			Actual:   fmt.Sprintf("events %v", names),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState compares the vault snapshot or one account balance
// against the expected fields.
func assertFinalState(actx *AssertionContext, result *Result, assertion Assertion) error {
	want, err := resolveExpectation(actx, assertion.Expect)
	if err != nil {
		return fmt.Errorf("final_state: %w", err)
	}

	var actual ir.IRObject
	var what string
	switch assertion.Table {
	case TableVault:
		what = "vault"
		if len(result.State) == 0 {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: "an initialized vault",
				Actual:   "vault not initialized",
			}
		}
		actual = result.State
	case TableBalances:
		name, _ := assertion.Where["account"].(string)
		what = "balance of " + name
		id, err := actx.Scenario.resolve(name)
		if err != nil {
			return fmt.Errorf("final_state: %w", err)
		}
		lamports, err := ledger.Balance(actx.Ctx, actx.Engine.Ledger(), id)
		if err != nil {
			return fmt.Errorf("final_state: %w", err)
		}
		actual = ir.IRObject{"lamports": ir.Lamports(lamports)}
	default:
		return fmt.Errorf("final_state: unknown table %q", assertion.Table)
	}

	if diffs := subsetDiff(want, actual); len(diffs) > 0 {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s matching %s", what, render(want)),
			Actual:   strings.Join(diffs, "; "),
		}
	}
	return nil
}

func resolveExpectation(actx *AssertionContext, m map[string]any) (ir.IRObject, error) {
	if actx == nil || actx.Scenario == nil {
		return ir.ToIRObject(m)
	}
	return actx.Scenario.resolveObject(m)
}

// valuesMatch compares an expected value with an actual one. Lamport
// amounts are decimal strings in results, so an expected integer matches
// the same number written as a string. Objects match as subsets.
func valuesMatch(expected, actual ir.IRValue) bool {
	switch exp := expected.(type) {
	case ir.IRInt:
		if s, ok := actual.(ir.IRString); ok {
			return strconv.FormatInt(int64(exp), 10) == string(s)
		}
	case ir.IRObject:
		if act, ok := actual.(ir.IRObject); ok {
			return len(subsetDiff(exp, act)) == 0
		}
		return false
	}
	return reflect.DeepEqual(expected, actual)
}

// render formats an IR value as canonical JSON for messages.
func render(v ir.IRValue) string {
	if v == nil {
		return "null"
	}
	b, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
