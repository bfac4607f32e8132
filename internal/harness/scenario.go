package harness

import (
	"bytes"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/solforge/internal/engine"
	"github.com/roach88/solforge/internal/ir"
)

// DefaultStartTime is the wall-clock time a scenario starts at when it
// does not set start_time.
const DefaultStartTime int64 = 1_700_000_000

// Scenario defines a conformance test scenario.
// Scenarios drive the engine through a sequence of vault operations and
// assert on the resulting trace and final state.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// StartTime is the unix time of the first request.
	StartTime int64 `yaml:"start_time,omitempty"`

	// Identities maps names used in caller and identity-valued args to
	// base58 identities. "vault" and "incinerator" are predefined.
	Identities map[string]string `yaml:"identities,omitempty"`

	// Setup contains requests run before the flow. Each must succeed.
	Setup []ActionStep `yaml:"setup,omitempty"`

	// Flow contains the main test flow with expected outcomes.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final trace and state.
	// Supported types: trace_contains, trace_order, trace_count,
	// event_order, final_state
	Assertions []Assertion `yaml:"assertions"`
}

// ActionStep is a single request.
type ActionStep struct {
	// Invoke is the operation name (e.g. "accrue_fee").
	Invoke string `yaml:"invoke"`

	// Caller names the signer.
	Caller string `yaml:"caller"`

	// Args are the request arguments. Values of authority, recipient and
	// to may be identity names.
	Args map[string]any `yaml:"args"`
}

// FlowStep is a request in the main flow, optionally preceded by a clock
// change and followed by an expectation.
type FlowStep struct {
	ActionStep `yaml:",inline"`

	// At sets the wall clock to this unix time before the request.
	At int64 `yaml:"at,omitempty"`

	// Advance moves the wall clock forward by this many seconds before the
	// request. Ignored when At is set.
	Advance int64 `yaml:"advance,omitempty"`

	// Expect specifies the expected completion. Nil means Success.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies expected completion behavior.
type ExpectClause struct {
	// Case is the expected output case ("Success" or a vault error code).
	Case string `yaml:"case"`

	// Result is a subset match against the completion result.
	Result map[string]any `yaml:"result,omitempty"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": an invocation of Operation with Args appears
	// - "trace_order": Operations first appear in this order
	// - "trace_count": Operation is invoked exactly Count times
	// - "event_order": emitted event names equal Events exactly
	// - "final_state": Table ("vault" or "balances") matches Expect
	Type string `yaml:"type"`

	Operation  string         `yaml:"operation,omitempty"`
	Operations []string       `yaml:"operations,omitempty"`
	Args       map[string]any `yaml:"args,omitempty"`
	Count      int            `yaml:"count,omitempty"`
	Events     []string       `yaml:"events,omitempty"`

	// Table is "vault" for the vault snapshot or "balances" for one
	// account, selected by Where["account"].
	Table  string         `yaml:"table,omitempty"`
	Where  map[string]any `yaml:"where,omitempty"`
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertEventOrder    = "event_order"
	AssertFinalState    = "final_state"
)

// State tables.
const (
	TableVault    = "vault"
	TableBalances = "balances"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // catches typos like "assertion:" vs "assertions:"
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if scenario.StartTime == 0 {
		scenario.StartTime = DefaultStartTime
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for name, b58 := range s.Identities {
		if _, reserved := builtinIdentities[name]; reserved {
			return fmt.Errorf("identities: %q is predefined", name)
		}
		if _, err := ir.ParseIdentity(b58); err != nil {
			return fmt.Errorf("identities.%s: %w", name, err)
		}
	}

	ops := engine.Operations()
	checkStep := func(where string, step ActionStep) error {
		if step.Invoke == "" {
			return fmt.Errorf("%s: invoke is required", where)
		}
		if !slices.Contains(ops, step.Invoke) {
			return fmt.Errorf("%s: unknown operation %q", where, step.Invoke)
		}
		if step.Caller == "" {
			return fmt.Errorf("%s: caller is required", where)
		}
		if _, err := s.resolve(step.Caller); err != nil {
			return fmt.Errorf("%s: caller: %w", where, err)
		}
		return nil
	}

	for i, step := range s.Setup {
		if err := checkStep(fmt.Sprintf("setup[%d]", i), step); err != nil {
			return err
		}
	}
	for i, step := range s.Flow {
		where := fmt.Sprintf("flow[%d]", i)
		if err := checkStep(where, step.ActionStep); err != nil {
			return err
		}
		if step.Advance < 0 {
			return fmt.Errorf("%s: advance must be non-negative", where)
		}
		if step.Expect != nil && step.Expect.Case == "" {
			return fmt.Errorf("%s.expect: case is required", where)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertTraceContains:
		if a.Operation == "" {
			return fmt.Errorf("assertions[%d]: operation is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Operations) == 0 {
			return fmt.Errorf("assertions[%d]: operations list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Operation == "" {
			return fmt.Errorf("assertions[%d]: operation is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertEventOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for event_order", index)
		}
	case AssertFinalState:
		switch a.Table {
		case TableVault:
		case TableBalances:
			if _, ok := a.Where["account"].(string); !ok {
				return fmt.Errorf("assertions[%d]: where.account is required for balances", index)
			}
		default:
			return fmt.Errorf("assertions[%d]: table must be %q or %q", index, TableVault, TableBalances)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
