package elements

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/simcore/sim"
)

var pingerDoc = sim.ElementDoc{
	Name:        "pinger",
	Description: "sends one Ping per clock cycle and matches the Pongs that come back",
	Params: []sim.ParamDoc{
		{Name: "count", Description: "number of pings to send", Default: "10"},
		{Name: "clock", Description: "send clock", Default: "1GHz"},
		{Name: "end_on_done", Description: "end the simulation when every pong arrived", Default: "true"},
	},
	Ports: []sim.PortDoc{
		{Name: "port", Description: "sends Ping, receives Pong"},
	},
}

// Pinger sends Count pings, one per clock cycle, and records round trips.
type Pinger struct {
	*sim.BaseComponent

	count     uint64
	endOnDone bool
	port      *sim.Link
	clock     *sim.TimeConverter
	tokens    *LCG

	sent        uint64
	received    uint64
	mismatches  uint64
	outstanding map[uint64]Ping
	roundTrips  []uint64 // in clock cycles
}

func newPinger(args sim.ComponentArgs) (sim.Component, error) {
	p := &Pinger{BaseComponent: args.Base, outstanding: make(map[uint64]Ping)}
	var err error
	if p.count, err = args.Params.Uint64("count", 10); err != nil {
		return nil, fmt.Errorf("pinger: %w", err)
	}
	if p.endOnDone, err = args.Params.Bool("end_on_done", true); err != nil {
		return nil, fmt.Errorf("pinger: %w", err)
	}
	p.tokens, err = sim.ModuleAs[*LCG](p.LoadModuleWithComponent(LCGType, args.Params.Scoped("lcg.")))
	if err != nil {
		return nil, err
	}

	p.clock, err = p.RegisterClock(args.Params.String("clock", "1GHz"), sim.NewClockHandler(p.tick), true)
	if err != nil {
		return nil, err
	}
	p.port, err = p.ConfigureLink("port", nil, sim.NewEventHandler(p.handlePong))
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Setup rejects a pinger whose port was left unconnected.
func (p *Pinger) Setup() error {
	if p.port == nil {
		return fmt.Errorf("pinger %s: port is not connected", p.Name())
	}
	return nil
}

func (p *Pinger) tick(_ sim.Cycle) bool {
	if p.sent >= p.count {
		return true
	}
	ping := Ping{Seq: p.sent, Token: p.tokens.Next(), SentAt: p.CurrentSimTime(nil)}
	p.outstanding[ping.Seq] = ping
	if err := p.port.Send(0, ping); err != nil {
		logrus.Errorf("pinger %s: %v", p.Name(), err)
		return true
	}
	p.sent++
	return p.sent >= p.count
}

func (p *Pinger) handlePong(ev sim.Event) {
	pong, ok := ev.(Pong)
	if !ok {
		logrus.Warnf("pinger %s: unexpected event %T", p.Name(), ev)
		return
	}
	ping, ok := p.outstanding[pong.Seq]
	if !ok || ping.Token != pong.Token {
		p.mismatches++
		return
	}
	delete(p.outstanding, pong.Seq)
	p.received++
	p.roundTrips = append(p.roundTrips, p.CurrentSimTime(nil)-ping.SentAt)
	if p.endOnDone && p.received == p.count {
		p.EndSimulation()
	}
}

// Finish logs the run summary.
func (p *Pinger) Finish() {
	logrus.Infof("pinger %s: sent %d, received %d, mismatched %d", p.Name(), p.sent, p.received, p.mismatches)
}

func (p *Pinger) Sent() uint64       { return p.sent }
func (p *Pinger) Received() uint64   { return p.received }
func (p *Pinger) Mismatches() uint64 { return p.mismatches }

// RoundTrips returns the measured round trips in clock cycles.
func (p *Pinger) RoundTrips() []uint64 {
	return append([]uint64(nil), p.roundTrips...)
}

// ClockPeriod returns the converter of the send clock.
func (p *Pinger) ClockPeriod() *sim.TimeConverter { return p.clock }
