package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/solforge/internal/ir"
)

func sampleTrace() []TraceEvent {
	return []TraceEvent{
		{Type: TraceInvocation, Seq: 1, Operation: "initialize", Caller: "authority",
			Args: ir.IRObject{"fee_bps": ir.IRInt(500), "burn_bps": ir.IRInt(2000)}},
		{Type: TraceCompletion, Seq: 1, OutputCase: ir.OutputSuccess},
		{Type: TraceEmitted, Seq: 1, Name: "VaultInitialized"},
		{Type: TraceInvocation, Seq: 2, Operation: "accrue_fee", Caller: "payer",
			Args: ir.IRObject{"amount": ir.IRInt(1_000)}},
		{Type: TraceCompletion, Seq: 2, OutputCase: ir.OutputSuccess},
		{Type: TraceEmitted, Seq: 2, Name: "FeeAccrued"},
		{Type: TraceInvocation, Seq: 3, Operation: "accrue_fee", Caller: "payer",
			Args: ir.IRObject{"amount": ir.IRInt(2_000)}},
		{Type: TraceCompletion, Seq: 3, OutputCase: ir.OutputSuccess},
		{Type: TraceEmitted, Seq: 3, Name: "FeeAccrued"},
	}
}

func evaluate(t *testing.T, a Assertion) []string {
	t.Helper()
	result := NewResult()
	result.Trace = sampleTrace()
	return EvaluateAssertions(result, []Assertion{a}, nil)
}

func TestAssertTraceContains(t *testing.T) {
	assert.Empty(t, evaluate(t, Assertion{
		Type:      AssertTraceContains,
		Operation: "accrue_fee",
		Args:      map[string]any{"amount": 2000},
	}))
	assert.Empty(t, evaluate(t, Assertion{Type: AssertTraceContains, Operation: "initialize"}))

	errs := evaluate(t, Assertion{
		Type:      AssertTraceContains,
		Operation: "accrue_fee",
		Args:      map[string]any{"amount": 3000},
	})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "not found in trace")
	assert.Contains(t, errs[0], "[2] accrue_fee by payer")
}

func TestAssertTraceOrder(t *testing.T) {
	assert.Empty(t, evaluate(t, Assertion{
		Type:       AssertTraceOrder,
		Operations: []string{"initialize", "accrue_fee"},
	}))

	errs := evaluate(t, Assertion{
		Type:       AssertTraceOrder,
		Operations: []string{"accrue_fee", "initialize"},
	})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "accrue_fee (pos 4) should be before initialize (pos 1)")

	errs = evaluate(t, Assertion{
		Type:       AssertTraceOrder,
		Operations: []string{"initialize", "burn_sol"},
	})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "missing operation: burn_sol")
}

func TestAssertTraceCount(t *testing.T) {
	assert.Empty(t, evaluate(t, Assertion{Type: AssertTraceCount, Operation: "accrue_fee", Count: 2}))
	assert.Empty(t, evaluate(t, Assertion{Type: AssertTraceCount, Operation: "burn_sol", Count: 0}))

	errs := evaluate(t, Assertion{Type: AssertTraceCount, Operation: "accrue_fee", Count: 1})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "1 occurrences of accrue_fee")
	assert.Contains(t, errs[0], "Actual: 2 occurrences")
}

func TestAssertEventOrder(t *testing.T) {
	assert.Empty(t, evaluate(t, Assertion{
		Type:   AssertEventOrder,
		Events: []string{"VaultInitialized", "FeeAccrued", "FeeAccrued"},
	}))

	errs := evaluate(t, Assertion{
		Type:   AssertEventOrder,
		Events: []string{"VaultInitialized", "FeeAccrued"},
	})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "events [VaultInitialized FeeAccrued FeeAccrued]")
}

func TestAssertFinalState_RequiresEngine(t *testing.T) {
	errs := evaluate(t, Assertion{Type: AssertFinalState, Table: TableVault, Expect: map[string]any{}})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "final_state requires an engine")
}

func TestEvaluateAssertions_UnknownType(t *testing.T) {
	errs := evaluate(t, Assertion{Type: "trace_exists"})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], `unknown assertion type "trace_exists"`)
}

func TestValuesMatch(t *testing.T) {
	tests := []struct {
		name     string
		expected ir.IRValue
		actual   ir.IRValue
		want     bool
	}{
		{"equal ints", ir.IRInt(5), ir.IRInt(5), true},
		{"int matches lamport string", ir.IRInt(800_000_000), ir.Lamports(800_000_000), true},
		{"int differs from lamport string", ir.IRInt(1), ir.Lamports(2), false},
		{"string does not match int", ir.IRString("5"), ir.IRInt(5), false},
		{"bools", ir.IRBool(false), ir.IRBool(false), true},
		{"object subset", ir.IRObject{"a": ir.IRInt(1)}, ir.IRObject{"a": ir.IRInt(1), "b": ir.IRInt(2)}, true},
		{"object missing key", ir.IRObject{"c": ir.IRInt(1)}, ir.IRObject{"a": ir.IRInt(1)}, false},
		{"object against scalar", ir.IRObject{}, ir.IRInt(1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, valuesMatch(tt.expected, tt.actual))
		})
	}
}

func TestSubsetDiff(t *testing.T) {
	want := ir.IRObject{"burned": ir.IRInt(200), "missing": ir.IRBool(true), "total": ir.IRInt(9)}
	got := ir.IRObject{"burned": ir.Lamports(200), "total": ir.Lamports(800)}

	assert.Equal(t, []string{
		"missing: missing",
		`total: want 9, got "800"`,
	}, subsetDiff(want, got))
}
