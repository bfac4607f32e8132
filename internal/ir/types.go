package ir

// Output cases recorded on completions. Failures record the vault error
// code (e.g. "Unauthorized") instead of OutputSuccess.
const (
	OutputSuccess = "Success"
	OutputFailure = "Failure"
)

// Invocation is the journal record of one request, written before the
// request is applied.
type Invocation struct {
	ID            string   `json:"id"`         // Content-addressed hash
	RequestID     string   `json:"request_id"` // Caller-visible correlation id
	Operation     string   `json:"operation"`
	Caller        Identity `json:"caller"`
	Args          IRObject `json:"args"`
	Seq           int64    `json:"seq"`       // Logical clock
	Timestamp     int64    `json:"timestamp"` // Unix seconds observed by the vault
	EngineVersion string   `json:"engine_version"`
	IRVersion     string   `json:"ir_version"`
}

// Completion is the journal record of a request's outcome.
type Completion struct {
	ID           string   `json:"id"`
	InvocationID string   `json:"invocation_id"`
	OutputCase   string   `json:"output_case"`
	Result       IRObject `json:"result"`
	Seq          int64    `json:"seq"`
}

// Succeeded reports whether the completion is a success.
func (c Completion) Succeeded() bool {
	return c.OutputCase == OutputSuccess
}

// EventRecord is an observer-facing event as persisted in the event log.
type EventRecord struct {
	ID           string   `json:"id"`
	InvocationID string   `json:"invocation_id"`
	Seq          int64    `json:"seq"`
	Name         string   `json:"name"`
	Payload      IRObject `json:"payload"`
}
