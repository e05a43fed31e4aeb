package cmd

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/inference-sim/simcore/sim"
)

const pingPongModel = "../testdata/models/pingpong.yaml"

func TestRunModel_PingPong_ReportAndTrace(t *testing.T) {
	// GIVEN the ping-pong model and a trace destination
	tracePath := filepath.Join(t.TempDir(), "trace.yaml")
	var out bytes.Buffer

	// WHEN the model is run to completion
	err := runModel(runOptions{Model: pingPongModel, TracePath: tracePath, TraceLevel: "timing"}, &out)

	// THEN the report shows the end time and the wiring summary
	require.NoError(t, err)
	report := out.String()
	assert.Contains(t, report, "=== Simulation Report ===")
	assert.Contains(t, report, "end_tick:      7000\n")
	assert.Contains(t, report, "end_time_ns:   7\n")
	assert.Contains(t, report, "links:         4 (own 1, inherited 3, self 0)")
	assert.Contains(t, report, "subcomponents: 2 (anonymous 1)")

	// AND the trace file is valid YAML stamped with the run ID
	data, err := os.ReadFile(tracePath)
	require.NoError(t, err)
	var written struct {
		RunID string           `yaml:"run_id"`
		Links []map[string]any `yaml:"links"`
	}
	require.NoError(t, yaml.Unmarshal(data, &written))
	assert.NotEmpty(t, written.RunID)
	assert.Contains(t, report, written.RunID)
	assert.Len(t, written.Links, 4)
}

func TestRunModel_HorizonStopsEarly(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runModel(runOptions{Model: pingPongModel, Horizon: "3ns"}, &out))
	assert.Contains(t, out.String(), "end_tick:      3000\n")
	assert.NotContains(t, out.String(), "links:", "no trace requested")
}

func TestRunModel_ConfigurationDefects(t *testing.T) {
	write := func(t *testing.T, body string) string {
		path := filepath.Join(t.TempDir(), "model.yaml")
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
		return path
	}

	t.Run("unknown element type", func(t *testing.T) {
		path := write(t, "components:\n  - name: a\n    type: simple.nothing\n")
		err := runModel(runOptions{Model: path}, &bytes.Buffer{})
		assert.True(t, sim.IsConfiguration(err))
		assert.True(t, errors.Is(err, sim.ErrNotRegistered))
	})
	t.Run("unknown field", func(t *testing.T) {
		path := write(t, "components:\n  - name: a\n    kind: simple.pinger\n")
		assert.Error(t, runModel(runOptions{Model: path}, &bytes.Buffer{}))
	})
	t.Run("pinger without a link", func(t *testing.T) {
		path := write(t, "components:\n  - name: a\n    type: simple.pinger\n")
		err := runModel(runOptions{Model: path}, &bytes.Buffer{})
		assert.True(t, sim.IsConfiguration(err))
	})
	t.Run("missing file", func(t *testing.T) {
		assert.Error(t, runModel(runOptions{Model: filepath.Join(t.TempDir(), "nope.yaml")}, &bytes.Buffer{}))
	})
}

func TestLoadRunOptions_EnvironmentOverridesDefaults(t *testing.T) {
	// GIVEN SIMCORE_* variables and no command-line flags
	t.Setenv("SIMCORE_HORIZON", "5ns")
	t.Setenv("SIMCORE_TRACE_LEVEL", "wiring")
	initConfig()

	// WHEN options are resolved
	opts := loadRunOptions()

	// THEN env values win over flag defaults and untouched flags keep theirs
	assert.Equal(t, "5ns", opts.Horizon)
	assert.Equal(t, "wiring", opts.TraceLevel)
	assert.Equal(t, "warn", opts.LogLevel)
	assert.Equal(t, "warn", viper.GetString("log"))
}

func TestWriteElements_MatchesGolden(t *testing.T) {
	f, err := newFactory()
	require.NoError(t, err)
	var out bytes.Buffer

	writeElements(&out, f)

	// Regenerate with: go test ./cmd -run TestWriteElements -update
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "elements", out.Bytes())
}
