package elements

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/simcore/sim"
)

var pongerDoc = sim.ElementDoc{
	Name:        "ponger",
	Description: "answers every Ping with a Pong, optionally after a processing delay",
	Params: []sim.ParamDoc{
		{Name: "timebase", Description: "resolution of delay", Default: "1ns"},
		{Name: "delay", Description: "processing delay in timebase units", Default: "0"},
	},
	Ports: []sim.PortDoc{
		{Name: "port", Description: "receives Ping, sends Pong"},
	},
}

// Ponger echoes pings. A non-zero delay is modelled with a self link.
type Ponger struct {
	*sim.BaseComponent

	delay    uint64
	port     *sim.Link
	loopback *sim.Link
	answered uint64
}

func newPonger(args sim.ComponentArgs) (sim.Component, error) {
	p := &Ponger{BaseComponent: args.Base}
	var err error
	if p.delay, err = args.Params.Uint64("delay", 0); err != nil {
		return nil, fmt.Errorf("ponger: %w", err)
	}
	if _, err := p.RegisterTimeBase(args.Params.String("timebase", "1ns"), true); err != nil {
		return nil, err
	}
	if p.port, err = p.ConfigureLink("port", nil, sim.NewEventHandler(p.handlePing)); err != nil {
		return nil, err
	}
	if p.delay > 0 {
		if p.loopback, err = p.ConfigureSelfLink("delay", nil, sim.NewEventHandler(p.reply)); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Ponger) handlePing(ev sim.Event) {
	ping, ok := ev.(Ping)
	if !ok {
		logrus.Warnf("ponger %s: unexpected event %T", p.Name(), ev)
		return
	}
	pong := Pong{Seq: ping.Seq, Token: ping.Token, Via: p.Name()}
	if p.loopback != nil {
		if err := p.loopback.Send(p.delay, pong); err != nil {
			logrus.Errorf("ponger %s: %v", p.Name(), err)
		}
		return
	}
	p.reply(pong)
}

func (p *Ponger) reply(ev sim.Event) {
	if err := p.port.Send(0, ev); err != nil {
		logrus.Errorf("ponger %s: %v", p.Name(), err)
		return
	}
	p.answered++
}

// Answered returns the number of pongs sent.
func (p *Ponger) Answered() uint64 { return p.answered }
