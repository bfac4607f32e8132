package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/solforge/internal/ir"
)

// TraceSnapshot captures the complete trace for a scenario execution.
// It is serialized as canonical JSON so golden files are byte-stable.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Trace        []TraceEvent `json:"trace"`
}

// toCanonicalMap converts the snapshot to IR values. Empty fields are
// left out so each entry carries only what its type defines.
func (s *TraceSnapshot) toCanonicalMap() ir.IRObject {
	trace := make(ir.IRArray, len(s.Trace))
	for i, event := range s.Trace {
		entry := ir.IRObject{
			"type": ir.IRString(event.Type),
			"seq":  ir.IRInt(event.Seq),
		}
		switch event.Type {
		case TraceInvocation:
			entry["timestamp"] = ir.IRInt(event.Timestamp)
			entry["operation"] = ir.IRString(event.Operation)
			entry["caller"] = ir.IRString(event.Caller)
			entry["args"] = nonNil(event.Args)
		case TraceCompletion:
			entry["output_case"] = ir.IRString(event.OutputCase)
			entry["result"] = nonNil(event.Result)
		case TraceEmitted:
			entry["name"] = ir.IRString(event.Name)
			entry["payload"] = nonNil(event.Payload)
		}
		trace[i] = entry
	}
	return ir.IRObject{
		"scenario_name": ir.IRString(s.ScenarioName),
		"trace":         trace,
	}
}

func nonNil(obj ir.IRObject) ir.IRObject {
	if obj == nil {
		return ir.IRObject{}
	}
	return obj
}

// MarshalTrace returns the canonical JSON form of a scenario trace.
func MarshalTrace(scenarioName string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{ScenarioName: scenarioName, Trace: result.Trace}
	return ir.MarshalCanonical(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares the trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result's trace against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := MarshalTrace(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)
	return nil
}
