// Package trace provides wiring-trace recording for composition analysis.
// This package has no dependencies on sim/: it stores pure data types.
package trace

// LinkSource says where a configured endpoint came from.
type LinkSource string

const (
	// LinkSourceOwn: the port was wired directly to the component in the model.
	LinkSourceOwn LinkSource = "own"
	// LinkSourceInherited: the endpoint was claimed from an ancestor's shared ports.
	LinkSourceInherited LinkSource = "inherited"
	// LinkSourceSelf: a loopback endpoint created by the component itself.
	LinkSourceSelf LinkSource = "self"
)

// LinkRecord captures a single port configuration.
type LinkRecord struct {
	Component      string     `yaml:"component"`
	Port           string     `yaml:"port"`
	Source         LinkSource `yaml:"source"`
	From           string     `yaml:"from,omitempty"` // ancestor that gave up the endpoint (inherited only)
	Polling        bool       `yaml:"polling"`
	TimeBaseFactor uint64     `yaml:"time_base_factor"` // 0 = unset at configuration time
	Clock          uint64     `yaml:"clock"`
}

// TimingKind distinguishes the three time registrations a component can make.
type TimingKind string

const (
	TimingClock    TimingKind = "clock"
	TimingOneShot  TimingKind = "oneshot"
	TimingTimeBase TimingKind = "timebase"
)

// TimingRecord captures a clock, one-shot or time-base registration.
type TimingRecord struct {
	Component  string     `yaml:"component"`
	Kind       TimingKind `yaml:"kind"`
	Resolution string     `yaml:"resolution"`
	Factor     uint64     `yaml:"factor"`
	Priority   int        `yaml:"priority,omitempty"`
	Clock      uint64     `yaml:"clock"`
}

// SubComponentRecord captures a sub-component load.
type SubComponentRecord struct {
	Parent     string `yaml:"parent"`
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Slot       string `yaml:"slot"`
	Index      int    `yaml:"index"`
	Anonymous  bool   `yaml:"anonymous"`
	SharePorts bool   `yaml:"share_ports"`
}
