package elements

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/simcore/sim"
)

var hostDoc = sim.ElementDoc{
	Name:        "host",
	Description: "a node whose network port is served by the sub-component in its nic slot",
	Ports: []sim.PortDoc{
		{Name: "port", Description: "network port, claimed by the nic"},
	},
	Slots: []sim.SlotDoc{
		{Name: "nic", Description: "network interface", API: NICAPI},
	},
}

var echoNICDoc = sim.ElementDoc{
	Name:        "echo_nic",
	Description: "network interface that answers pings itself",
	Params: []sim.ParamDoc{
		{Name: "timebase", Description: "time base of the claimed port", Default: "1ns"},
	},
	Ports: []sim.PortDoc{
		{Name: "port", Description: "inherited from the host"},
	},
}

// NIC is the API of sub-components that fill a host's nic slot.
type NIC interface {
	sim.Component
	Received() uint64
}

// Host delegates its port to a configured NIC.
type Host struct {
	*sim.BaseComponent
	nic NIC
}

func newHost(args sim.ComponentArgs) (sim.Component, error) {
	h := &Host{BaseComponent: args.Base}
	nic, err := sim.SubComponentAs[NIC](h.LoadNamedSubComponent("nic", sim.SharePorts, nil))
	if err != nil {
		return nil, err
	}
	if nic == nil {
		logrus.Warnf("host %s: no nic configured, port stays unserved", h.Name())
	}
	h.nic = nic
	return h, nil
}

// NIC returns the loaded interface, or nil.
func (h *Host) NIC() NIC { return h.nic }

// EchoNIC answers pings received on the port it claims from its host.
type EchoNIC struct {
	*sim.BaseComponent
	port     *sim.Link
	received uint64
}

func newEchoNIC(args sim.SubComponentArgs) (sim.Component, error) {
	n := &EchoNIC{BaseComponent: args.Base}
	var err error
	n.port, err = n.ConfigureLinkIn("port", args.Params.String("timebase", "1ns"), sim.NewEventHandler(n.handle))
	if err != nil {
		return nil, err
	}
	if n.port == nil {
		return nil, fmt.Errorf("echo_nic %s: host port is not connected", n.Name())
	}
	return n, nil
}

func (n *EchoNIC) handle(ev sim.Event) {
	n.received++
	ping, ok := ev.(Ping)
	if !ok {
		return
	}
	if err := n.port.Send(0, Pong{Seq: ping.Seq, Token: ping.Token, Via: n.Name()}); err != nil {
		logrus.Errorf("echo_nic %s: %v", n.Name(), err)
	}
}

// Port returns the claimed endpoint.
func (n *EchoNIC) Port() *sim.Link { return n.port }

// Received returns the number of events delivered to the nic.
func (n *EchoNIC) Received() uint64 { return n.received }
