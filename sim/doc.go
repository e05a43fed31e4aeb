// Package sim provides the composition and wiring kernel of a discrete-event
// simulator: components, sub-components, modules, links and clocks.
//
// # Reading Guide
//
// Start with these files to understand the kernel:
//   - component_info.go: the composition tree and the port inheritance walk
//   - base_component.go: the API an element uses to claim ports, register clocks
//     and load sub-components and modules
//   - simulation.go: the event loop, model construction and the lifecycle
//
// # Architecture
//
// A Factory holds every registered element type, grouped into libraries. A model
// is described by a ConfigGraph (YAML) or built programmatically with
// Simulation.AddComponent, DeclareSubComponent and Connect. Instantiate then
// constructs each top-level component; components construct their own
// sub-components during construction, and unclaimed link endpoints flow down to
// sub-components that share ports.
//
// Time is expressed in core ticks (SimTime). A TimeLord owns the core time base
// and interns one TimeConverter per resolution, so converters can be compared by
// pointer.
//
// Sub-packages:
//   - sim/elements/: a small element library used by the CLI and end-to-end tests
//   - sim/trace/: wiring and timing trace recording
//
// # Errors
//
// Kernel errors are *Error values classified as configuration, advisory or
// contract defects. Library code returns them; only the command layer terminates
// the process.
package sim
