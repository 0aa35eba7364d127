package harness

import (
	"fmt"
	"slices"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/shade/internal/trace"
)

// Snapshot renders a run as a canonical JSON value: the scenario and
// session, every exchange, the final state of each thread and the
// failure code if the run stopped early.
func Snapshot(scenarioName string, result *Result) (trace.Object, error) {
	exchanges := make(trace.Array, len(result.Exchanges))
	for i, ex := range result.Exchanges {
		obj, err := ex.Snapshot()
		if err != nil {
			return nil, fmt.Errorf("exchange %d: %w", ex.Seq, err)
		}
		exchanges[i] = obj
	}

	ids := make([]int64, 0, len(result.Threads))
	for id := range result.Threads {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	threads := make(trace.Array, len(ids))
	for i, id := range ids {
		ts := result.Threads[id]
		stack := make(trace.Array, len(ts.EvalStack))
		for j, c := range ts.EvalStack {
			stack[j] = trace.Bool(c)
		}
		threads[i] = trace.Object{
			"thread":     trace.Int(id),
			"depth":      trace.Int(ts.Depth),
			"eval_stack": stack,
		}
	}

	obj := trace.Object{
		"scenario":  trace.String(scenarioName),
		"session":   trace.String(result.SessionID),
		"exchanges": exchanges,
		"threads":   threads,
	}
	if result.Failure != nil {
		obj["failure"] = trace.String(FailureCode(result.Failure))
	}
	return obj, nil
}

// MarshalSnapshot is Snapshot encoded as canonical JSON.
func MarshalSnapshot(scenarioName string, result *Result) ([]byte, error) {
	obj, err := Snapshot(scenarioName, result)
	if err != nil {
		return nil, err
	}
	return trace.MarshalCanonical(obj)
}

// RunWithGolden runs a scenario and compares its snapshot with
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result with its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := MarshalSnapshot(scenarioName, result)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
