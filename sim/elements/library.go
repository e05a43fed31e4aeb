// Package elements provides the "simple" element library: small components that
// exercise every wiring path of the kernel. A model built from them plays
// ping-pong across plain links, ports handed down to anonymous sub-components,
// ports claimed by declared sub-components and self links.
package elements

import (
	"errors"

	"github.com/inference-sim/simcore/sim"
)

// LibraryName qualifies every element of this package ("simple.pinger").
const LibraryName = "simple"

// Sub-component APIs defined by this library.
const (
	PortHandlerAPI = "simple.PortHandler"
	NICAPI         = "simple.NIC"
)

// Fully qualified element names.
const (
	PingerType    = LibraryName + ".pinger"
	PongerType    = LibraryName + ".ponger"
	RelayType     = LibraryName + ".relay"
	ForwarderType = LibraryName + ".forwarder"
	HostType      = LibraryName + ".host"
	EchoNICType   = LibraryName + ".echo_nic"
	LCGType       = LibraryName + ".lcg"
)

// Library returns the library descriptor to pass to Factory.LoadLibrary.
func Library() sim.Library {
	return sim.Library{Name: LibraryName, Register: register}
}

func register(r *sim.Registrar) error {
	return errors.Join(
		r.Component(pingerDoc, newPinger),
		r.Component(pongerDoc, newPonger),
		r.Component(relayDoc, newRelay),
		r.SubComponent(PortHandlerAPI, forwarderDoc, newForwarder),
		r.Component(hostDoc, newHost),
		r.SubComponent(NICAPI, echoNICDoc, newEchoNIC),
		r.Module(lcgDoc, newLCG),
	)
}

// Ping is sent by a pinger and echoed back as a Pong.
type Ping struct {
	Seq    uint64
	Token  uint64
	SentAt uint64 // sender's cycles
}

// Pong answers a Ping.
type Pong struct {
	Seq   uint64
	Token uint64
	Via   string // component that produced the answer
}
