package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/roach88/solforge/internal/engine"
	"github.com/roach88/solforge/internal/ir"
	"github.com/roach88/solforge/internal/store"
	"github.com/roach88/solforge/internal/testutil"
	"github.com/roach88/solforge/internal/vault"
)

// identityArgs are argument, result, and state keys whose values may be
// identity names.
var identityArgs = []string{
	engine.ArgAuthority,
	engine.ArgRecipient,
	engine.ArgTo,
	"caller",
	"payer",
	"vault",
}

var builtinIdentities = map[string]func() ir.Identity{
	"vault": func() ir.Identity {
		addr, _, err := vault.Address()
		if err != nil {
			panic(err)
		}
		return addr
	},
	"incinerator": func() ir.Identity { return ir.Incinerator },
}

// resolve maps an identity name to its identity.
func (s *Scenario) resolve(name string) (ir.Identity, error) {
	if f, ok := builtinIdentities[name]; ok {
		return f(), nil
	}
	if b58, ok := s.Identities[name]; ok {
		return ir.ParseIdentity(b58)
	}
	return ir.Identity{}, fmt.Errorf("unknown identity %q", name)
}

// resolveObject converts YAML values to IR values and replaces identity
// names under identityArgs with base58 identities. Values that are not
// names are left as written.
func (s *Scenario) resolveObject(m map[string]any) (ir.IRObject, error) {
	obj, err := ir.ToIRObject(m)
	if err != nil {
		return nil, err
	}
	for _, key := range identityArgs {
		name, ok := obj[key].(ir.IRString)
		if !ok {
			continue
		}
		if id, err := s.resolve(string(name)); err == nil {
			obj[key] = ir.IdentityValue(id)
		}
	}
	return obj, nil
}

// Harness runs one scenario against a real engine over an in-memory store.
// Seqs, request ids, and wall time are deterministic.
type Harness struct {
	scenario *Scenario
	store    *store.Store
	engine   *engine.Engine
	wall     *testutil.ManualClock
	logger   *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database. A setup step that
// fails, or a request the engine cannot run at all, aborts the scenario
// with an error; flow expectations and assertions that do not hold are
// reported in Result.Errors.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	wall := testutil.NewManualClock(scenario.StartTime)
	eng, err := engine.New(st, st,
		engine.WithSequencer(testutil.NewDeterministicClock()),
		engine.WithWallClock(wall),
		engine.WithRequestIDs(testutil.NewSequentialRequestIDs(scenario.Name)),
		engine.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	h := &Harness{
		scenario: scenario,
		store:    st,
		engine:   eng,
		wall:     wall,
		logger:   logger,
	}

	result := NewResult()
	if err := h.executeSetup(ctx, result); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}
	if err := h.executeFlow(ctx, result); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	if snap, err := eng.Vault().State(ctx); err == nil {
		result.State = snapshotObject(snap)
	}

	actx := &AssertionContext{Ctx: ctx, Store: st, Engine: eng, Scenario: scenario}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

// execute runs one step and records it in the trace.
func (h *Harness) execute(ctx context.Context, step ActionStep, result *Result) (engine.Result, error) {
	caller, err := h.scenario.resolve(step.Caller)
	if err != nil {
		return engine.Result{}, err
	}
	args, err := h.scenario.resolveObject(step.Args)
	if err != nil {
		return engine.Result{}, fmt.Errorf("args: %w", err)
	}

	res, err := h.engine.Execute(ctx, engine.Request{
		Operation: step.Invoke,
		Caller:    caller,
		Args:      args,
	})
	if err != nil {
		return res, err
	}

	result.AddInvocationTrace(step.Caller, res.Invocation)
	result.AddCompletionTrace(res.Completion)
	for _, ev := range res.Events {
		result.AddEventTrace(ev)
	}
	return res, nil
}

// executeSetup runs all setup steps. Setup establishes preconditions, so
// any rejected request is an error.
func (h *Harness) executeSetup(ctx context.Context, result *Result) error {
	for i, step := range h.scenario.Setup {
		res, err := h.execute(ctx, step, result)
		if err != nil {
			return fmt.Errorf("setup[%d] %s: %w", i, step.Invoke, err)
		}
		if res.Err != nil {
			return fmt.Errorf("setup[%d] %s: %w", i, step.Invoke, res.Err)
		}
		h.logger.Info("setup step completed", "step", i, "operation", step.Invoke)
	}
	return nil
}

// executeFlow runs all flow steps and validates expect clauses.
func (h *Harness) executeFlow(ctx context.Context, result *Result) error {
	for i, step := range h.scenario.Flow {
		switch {
		case step.At != 0:
			h.wall.Set(step.At)
		case step.Advance > 0:
			h.wall.Advance(step.Advance)
		}

		res, err := h.execute(ctx, step.ActionStep, result)
		if err != nil {
			return fmt.Errorf("flow[%d] %s: %w", i, step.Invoke, err)
		}

		expected := &ExpectClause{Case: ir.OutputSuccess}
		if step.Expect != nil {
			expected = step.Expect
		}
		if res.Completion.OutputCase != expected.Case {
			result.AddError(fmt.Sprintf("flow[%d] %s: expected case %s, got %s%s",
				i, step.Invoke, expected.Case, res.Completion.OutputCase, describeFailure(res)))
			continue
		}
		if len(expected.Result) > 0 {
			want, err := h.scenario.resolveObject(expected.Result)
			if err != nil {
				return fmt.Errorf("flow[%d].expect.result: %w", i, err)
			}
			if diffs := subsetDiff(want, res.Completion.Result); len(diffs) > 0 {
				result.AddError(fmt.Sprintf("flow[%d] %s: result mismatch: %s",
					i, step.Invoke, strings.Join(diffs, "; ")))
			}
		}

		h.logger.Info("flow step completed",
			"step", i,
			"operation", step.Invoke,
			"output_case", res.Completion.OutputCase,
		)
	}
	return nil
}

func describeFailure(res engine.Result) string {
	if res.Err == nil {
		return ""
	}
	return " (" + res.Err.Error() + ")"
}

// snapshotObject flattens a vault snapshot into the fields final_state
// assertions address.
func snapshotObject(s vault.Snapshot) ir.IRObject {
	rec := s.Record
	obj := ir.IRObject{
		"authority":            ir.IdentityValue(rec.Authority),
		"total_accrued":        ir.Lamports(rec.TotalAccrued),
		"fee_basis_points":     ir.IRInt(rec.FeeBasisPoints),
		"burn_percentage_bps":  ir.IRInt(rec.BurnPercentageBps),
		"delay_seconds":        ir.IRInt(rec.DelaySeconds),
		"bump":                 ir.IRInt(rec.Bump),
		"has_pending":          ir.IRBool(rec.HasPending()),
		"pending_release_time": ir.IRInt(rec.PendingReleaseTime),
		"lamports":             ir.Lamports(s.Lamports),
		"surplus":              ir.Lamports(s.Surplus()),
	}
	if bps, ok := rec.PendingBurnPercentageBps.Get(); ok {
		obj["pending_burn_bps"] = ir.IRInt(bps)
	}
	if d, ok := rec.PendingDelaySeconds.Get(); ok {
		obj["pending_delay_seconds"] = ir.IRInt(d)
	}
	return obj
}

// subsetDiff lists the keys of want whose values are missing from or
// different in got, sorted by key.
func subsetDiff(want, got ir.IRObject) []string {
	keys := make([]string, 0, len(want))
	for k := range want {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var diffs []string
	for _, k := range keys {
		actual, ok := got[k]
		if !ok {
			diffs = append(diffs, fmt.Sprintf("%s: missing", k))
			continue
		}
		if !valuesMatch(want[k], actual) {
			diffs = append(diffs, fmt.Sprintf("%s: want %s, got %s", k, render(want[k]), render(actual)))
		}
	}
	return diffs
}
