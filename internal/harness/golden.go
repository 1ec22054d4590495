package harness

import (
	"strconv"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/brickbook/internal/ir"
)

// TraceSnapshot captures the trace and final history of a scenario
// execution. Log timestamps are left out so snapshots are reproducible.
type TraceSnapshot struct {
	ScenarioName string
	Trace        []TraceEvent
	History      map[int64][]ir.LogEntry
}

// Canonical renders the snapshot as an ir.Object for canonical JSON.
func (s *TraceSnapshot) Canonical() ir.Object {
	trace := make(ir.Array, len(s.Trace))
	for i, e := range s.Trace {
		obj := ir.Object{
			"step":     ir.Int(e.Step),
			"action":   ir.String(e.Action),
			"building": ir.Int(e.Building),
			"user":     ir.Int(e.User),
		}
		if e.Parallel > 0 {
			obj["parallel"] = ir.Int(e.Parallel)
			counts := make(ir.Object, len(e.Counts))
			for k, n := range e.Counts {
				counts[k] = ir.Int(n)
			}
			obj["counts"] = counts
		} else {
			obj["outcome"] = ir.String(e.Outcome)
		}
		if e.Revision != 0 {
			obj["revision"] = ir.Int(e.Revision)
		}
		trace[i] = obj
	}

	history := make(ir.Object, len(s.History))
	for id, entries := range s.History {
		list := make(ir.Array, len(entries))
		for i, e := range entries {
			var reverse ir.Value = ir.Null{}
			if e.Reverse != nil {
				reverse = e.Reverse
			}
			list[i] = ir.Object{
				"log_id":  ir.Int(e.ID),
				"user_id": ir.String(e.UserID.String()),
				"forward": e.Forward,
				"reverse": reverse,
			}
		}
		history[strconv.FormatInt(id, 10)] = list
	}

	return ir.Object{
		"scenario_name": ir.String(s.ScenarioName),
		"trace":         trace,
		"history":       history,
	}
}

// MarshalSnapshot renders a result as canonical JSON.
func MarshalSnapshot(scenarioName string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		Trace:        result.Trace,
		History:      result.History,
	}
	return ir.MarshalCanonical(snapshot.Canonical())
}

// RunWithGolden executes a scenario and compares the snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
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

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
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
