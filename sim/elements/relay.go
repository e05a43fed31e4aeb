package elements

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/simcore/sim"
)

var relayDoc = sim.ElementDoc{
	Name:        "relay",
	Description: "passes events between two ports through an anonymous forwarder",
	Params: []sim.ParamDoc{
		{Name: "timebase", Description: "default time base handed to the forwarder", Default: "1ns"},
		{Name: "forwarder.delay", Description: "extra forwarding delay in timebase units", Default: "0"},
	},
	Ports: []sim.PortDoc{
		{Name: "left", Description: "either side of the relay"},
		{Name: "right", Description: "either side of the relay"},
	},
}

var forwarderDoc = sim.ElementDoc{
	Name:        "forwarder",
	Description: "claims its parent's left and right ports and forwards between them",
	Params: []sim.ParamDoc{
		{Name: "delay", Description: "extra forwarding delay in the inherited time base", Default: "0"},
	},
	Ports: []sim.PortDoc{
		{Name: "left", Description: "inherited from the parent"},
		{Name: "right", Description: "inherited from the parent"},
	},
}

// Relay owns the ports but delegates all traffic to a Forwarder it creates itself.
type Relay struct {
	*sim.BaseComponent
	forwarder *Forwarder
}

func newRelay(args sim.ComponentArgs) (sim.Component, error) {
	r := &Relay{BaseComponent: args.Base}
	if _, err := r.RegisterTimeBase(args.Params.String("timebase", "1ns"), true); err != nil {
		return nil, err
	}
	fwd, err := sim.SubComponentAs[*Forwarder](
		r.LoadAnonymousSubComponent(ForwarderType, "forwarder", 0, sim.SharePorts, args.Params.Scoped("forwarder.")))
	if err != nil {
		return nil, err
	}
	r.forwarder = fwd
	return r, nil
}

// Forwarder returns the anonymous sub-component doing the work.
func (r *Relay) Forwarder() *Forwarder { return r.forwarder }

// Forwarder moves events from one inherited port to the other.
type Forwarder struct {
	*sim.BaseComponent

	delay     uint64
	left      *sim.Link
	right     *sim.Link
	forwarded uint64
	dropped   uint64
}

func newForwarder(args sim.SubComponentArgs) (sim.Component, error) {
	f := &Forwarder{BaseComponent: args.Base}
	var err error
	if f.delay, err = args.Params.Uint64("delay", 0); err != nil {
		return nil, fmt.Errorf("forwarder: %w", err)
	}
	if f.left, err = f.ConfigureLink("left", nil, sim.NewEventHandler(func(ev sim.Event) { f.forward(f.right, ev) })); err != nil {
		return nil, err
	}
	if f.right, err = f.ConfigureLink("right", nil, sim.NewEventHandler(func(ev sim.Event) { f.forward(f.left, ev) })); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *Forwarder) forward(out *sim.Link, ev sim.Event) {
	if out == nil {
		f.dropped++
		return
	}
	if err := out.Send(f.delay, ev); err != nil {
		logrus.Errorf("forwarder %s: %v", f.Name(), err)
		f.dropped++
		return
	}
	f.forwarded++
}

// Left returns the endpoint claimed for "left", or nil when unconnected.
func (f *Forwarder) Left() *sim.Link { return f.left }

// Right returns the endpoint claimed for "right", or nil when unconnected.
func (f *Forwarder) Right() *sim.Link { return f.right }

func (f *Forwarder) Forwarded() uint64 { return f.forwarded }
func (f *Forwarder) Dropped() uint64   { return f.dropped }
