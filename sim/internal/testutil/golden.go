// Package testutil provides shared test infrastructure for the simulation kernel.
// It holds the golden-run dataset: example models with their known outcomes.
package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// GoldenDataset represents the structure of testdata/golden_runs.json.
type GoldenDataset struct {
	Runs []GoldenRun `json:"runs"`
}

// GoldenRun is one model run and the outcome it must reproduce.
type GoldenRun struct {
	Name     string        `json:"name"`
	Model    string        `json:"model"` // relative to testdata/
	Horizon  string        `json:"horizon"`
	Pinger   string        `json:"pinger"` // component whose round trips are checked
	Expected GoldenOutcome `json:"expected"`
}

// GoldenOutcome represents the expected results of a golden run.
type GoldenOutcome struct {
	// Exact match on simulated time
	EndTick    uint64   `json:"end_tick"`
	RoundTrips []uint64 `json:"round_trips"`

	// Only checked when present
	Wiring *GoldenWiring `json:"wiring,omitempty"`
}

// GoldenWiring is the expected wiring trace summary.
type GoldenWiring struct {
	TotalLinks     int `json:"total_links"`
	OwnLinks       int `json:"own_links"`
	InheritedLinks int `json:"inherited_links"`
	SelfLinks      int `json:"self_links"`
	SubComponents  int `json:"subcomponents"`
	AnonymousLoads int `json:"anonymous_loads"`
}

func testdataDir(t *testing.T) string {
	t.Helper()
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("Failed to get current file path")
	}
	// Navigate from sim/internal/testutil/ to repo root testdata/
	return filepath.Join(filepath.Dir(thisFile), "..", "..", "..", "testdata")
}

// LoadGoldenDataset loads the golden runs from the repo root testdata directory.
func LoadGoldenDataset(t *testing.T) *GoldenDataset {
	t.Helper()
	path := filepath.Join(testdataDir(t), "golden_runs.json")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read golden dataset: %v", err)
	}

	var dataset GoldenDataset
	if err := json.Unmarshal(data, &dataset); err != nil {
		t.Fatalf("Failed to parse golden dataset: %v", err)
	}
	return &dataset
}

// ModelPath resolves a model file name under testdata/models/.
func ModelPath(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join(testdataDir(t), "models", name)
}

// ModelPathFor resolves the model of a golden run.
func ModelPathFor(t *testing.T, run GoldenRun) string {
	t.Helper()
	return filepath.Join(testdataDir(t), run.Model)
}
