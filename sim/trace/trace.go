package trace

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// TraceLevel controls the verbosity of wiring tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelWiring captures port resolution and sub-component loads.
	TraceLevelWiring TraceLevel = "wiring"
	// TraceLevelTiming additionally captures clock, one-shot and time-base registrations.
	TraceLevelTiming TraceLevel = "timing"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:   true,
	TraceLevelWiring: true,
	TraceLevelTiming: true,
	"":               true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
}

// WiringTrace collects wiring records during model construction and the run.
type WiringTrace struct {
	RunID         string               `yaml:"run_id"`
	Config        TraceConfig          `yaml:"-"`
	Links         []LinkRecord         `yaml:"links"`
	Timings       []TimingRecord       `yaml:"timings,omitempty"`
	SubComponents []SubComponentRecord `yaml:"subcomponents"`
}

// NewWiringTrace creates a WiringTrace ready for recording.
func NewWiringTrace(config TraceConfig) *WiringTrace {
	return &WiringTrace{
		Config:        config,
		Links:         make([]LinkRecord, 0),
		Timings:       make([]TimingRecord, 0),
		SubComponents: make([]SubComponentRecord, 0),
	}
}

// Enabled reports whether anything is recorded at all.
func (wt *WiringTrace) Enabled() bool {
	return wt != nil && wt.Config.Level != TraceLevelNone && wt.Config.Level != ""
}

// RecordLink appends a link configuration record.
func (wt *WiringTrace) RecordLink(record LinkRecord) {
	wt.Links = append(wt.Links, record)
}

// RecordTiming appends a timing record. Dropped below TraceLevelTiming.
func (wt *WiringTrace) RecordTiming(record TimingRecord) {
	if wt.Config.Level != TraceLevelTiming {
		return
	}
	wt.Timings = append(wt.Timings, record)
}

// RecordSubComponent appends a sub-component load record.
func (wt *WiringTrace) RecordSubComponent(record SubComponentRecord) {
	wt.SubComponents = append(wt.SubComponents, record)
}

// WriteYAML serializes the trace.
func (wt *WiringTrace) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(wt); err != nil {
		return fmt.Errorf("encoding wiring trace: %w", err)
	}
	return enc.Close()
}
