package harness

import "github.com/roach88/solforge/internal/ir"

// Trace event types.
const (
	TraceInvocation = "invocation"
	TraceCompletion = "completion"
	TraceEmitted    = "event"
)

// TraceEvent is one entry of a scenario trace: an invocation, its
// completion, or an event the request emitted. Fields not relevant to the
// entry's Type are empty.
type TraceEvent struct {
	Type      string `json:"type"`
	Seq       int64  `json:"seq"`
	Timestamp int64  `json:"timestamp,omitempty"`

	Operation string      `json:"operation,omitempty"`
	Caller    string      `json:"caller,omitempty"` // identity name from the scenario
	Args      ir.IRObject `json:"args,omitempty"`

	OutputCase string      `json:"output_case,omitempty"`
	Result     ir.IRObject `json:"result,omitempty"`

	Name    string      `json:"name,omitempty"`
	Payload ir.IRObject `json:"payload,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass is true if every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace contains invocations, completions, and events in seq order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State is the final vault snapshot, keyed by field name. Empty when
	// the scenario never initialized the vault.
	State ir.IRObject `json:"state,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddInvocationTrace adds an invocation to the trace.
func (r *Result) AddInvocationTrace(caller string, inv ir.Invocation) {
	r.Trace = append(r.Trace, TraceEvent{
		Type:      TraceInvocation,
		Seq:       inv.Seq,
		Timestamp: inv.Timestamp,
		Operation: inv.Operation,
		Caller:    caller,
		Args:      inv.Args,
	})
}

// AddCompletionTrace adds a completion to the trace.
func (r *Result) AddCompletionTrace(comp ir.Completion) {
	r.Trace = append(r.Trace, TraceEvent{
		Type:       TraceCompletion,
		Seq:        comp.Seq,
		OutputCase: comp.OutputCase,
		Result:     comp.Result,
	})
}

// AddEventTrace adds an emitted event to the trace.
func (r *Result) AddEventTrace(ev ir.EventRecord) {
	r.Trace = append(r.Trace, TraceEvent{
		Type:    TraceEmitted,
		Seq:     ev.Seq,
		Name:    ev.Name,
		Payload: ev.Payload,
	})
}
