package harness

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// TraceSnapshot captures the complete trace for a scenario execution.
// Struct fields marshal in declaration order and map keys sorted, so the
// JSON is deterministic.
type TraceSnapshot struct {
	Scenario string            `json:"scenario"`
	Trace    []TraceEvent      `json:"trace"`
	Remote   map[string]string `json:"remote"`
	Version  int64             `json:"version"`
}

// Snapshot builds the golden snapshot of a result.
func Snapshot(name string, result *Result) TraceSnapshot {
	return TraceSnapshot{
		Scenario: name,
		Trace:    result.Trace,
		Remote:   result.Remote,
		Version:  result.Version,
	}
}

// MarshalSnapshot renders a snapshot in golden-file form.
func MarshalSnapshot(s TraceSnapshot) ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	data, err := MarshalSnapshot(Snapshot(scenario.Name, result))
	if err != nil {
		return nil, err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)

	return result, nil
}
